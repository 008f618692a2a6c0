package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"
)

const VALKEY_PROCESSED_KEY_PREFIX = "callsignal:processed:"

type ValkeyOptions struct {
	Address  string
	Password string
	TLS      bool
}

// ValkeyLedger records which company quarters have been scored so that
// separate hosts sharing a scores root agree on what to skip.
type ValkeyLedger struct {
	Client valkey.Client
}

func NewValkeyLedger(ctx context.Context, opts ValkeyOptions) (*ValkeyLedger, error) {
	clientOpts := valkey.ClientOption{
		InitAddress:      []string{opts.Address},
		Password:         opts.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}
	if opts.TLS {
		clientOpts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}

	client, err := valkey.NewClient(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to create Valkey: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", err)
	}

	slog.Info("[ValkeyClient] Successfully connected to valkey")
	return &ValkeyLedger{Client: client}, nil
}

func processedKey(company string) string {
	return VALKEY_PROCESSED_KEY_PREFIX + company
}

func (vl *ValkeyLedger) MarkProcessed(ctx context.Context, company string, period string) error {
	res := vl.DoWithRetry(ctx, vl.Client.B().Sadd().Key(processedKey(company)).Member(period).Build(), MAX_RETRIES)
	if err := res.Error(); err != nil {
		return err
	}

	slog.Info("[ValkeyClient] Marked quarter processed",
		slog.String("company", company),
		slog.String("period", period))
	return nil
}

func (vl *ValkeyLedger) IsProcessed(ctx context.Context, company string, period string) (bool, error) {
	res := vl.DoWithRetry(ctx, vl.Client.B().Sismember().Key(processedKey(company)).Member(period).Build(), MAX_RETRIES)
	if err := res.Error(); err != nil {
		return false, err
	}
	return res.AsBool()
}

func (vl *ValkeyLedger) DoWithRetry(ctx context.Context, completed valkey.Completed, retries int) valkey.ValkeyResult {
	var result valkey.ValkeyResult
	backoff := INITIAL_BACKOFF
	for i := 0; i < retries; i++ {
		result = vl.Client.Do(ctx, completed)
		if result.Error() == nil || !isConnectionError(result.Error()) {
			break
		}

		slog.Warn("[ValkeyClient] Do failed",
			slog.Int("attempt", i+1),
			slog.String("error", result.Error().Error()))

		select {
		case <-ctx.Done():
			return result
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, MAX_BACKOFF)
	}

	return result
}

func (vl *ValkeyLedger) Close() {
	vl.Client.Close()
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}
