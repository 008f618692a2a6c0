package clients

import "time"

const (
	MAX_RETRIES     = 5
	INITIAL_BACKOFF = 250 * time.Millisecond
	MAX_BACKOFF     = 4 * time.Second
)
