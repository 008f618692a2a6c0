package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Env        string
	LogLevel   slog.Level
	ScoresRoot string
	ChunkSize  int
	Workers    int
	ModelPath  string

	AWSRegion          string
	AWSEndpoint        string
	DynamoRecordsTable string
	DynamoSummaryTable string

	ValkeyAddress  string
	ValkeyPassword string
	ValkeyTLS      bool
}

// Load reads the configuration from the environment, applying defaults for
// anything unset.
func Load() (Config, error) {
	cfg := Config{
		Env:                getEnv("APP_ENV", "dev"),
		ScoresRoot:         getEnv("SCORES_ROOT", "scores"),
		ModelPath:          getEnv("SENTIMENT_MODEL_PATH", "./models/finbert"),
		AWSRegion:          getEnv("AWS_REGION", "us-west-2"),
		AWSEndpoint:        os.Getenv("AWS_ENDPOINT"),
		DynamoRecordsTable: getEnv("DYNAMO_RECORDS_TABLE", "Sentiment_Details"),
		DynamoSummaryTable: getEnv("DYNAMO_SUMMARY_TABLE", "Sentiment_Summary"),
		ValkeyAddress:      os.Getenv("VALKEY_INIT_ADDRESS"),
		ValkeyPassword:     os.Getenv("VALKEY_PASSWORD"),
		ValkeyTLS:          os.Getenv("VALKEY_TLS") == "true",
	}

	var err error
	if cfg.ChunkSize, err = getInt("CHUNK_SIZE", 1024); err != nil {
		return cfg, err
	}
	if cfg.Workers, err = getInt("SCORER_WORKERS", 4); err != nil {
		return cfg, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return cfg, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, v)
	}
	return n, nil
}
