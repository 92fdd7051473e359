package cache

import (
	"crypto/sha256"
	"fmt"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the Redis at url and instruments it with OpenTelemetry
// tracing and metrics.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis metrics: %w", err)
	}
	return client, nil
}

// hashKey builds a cache key from the sha256 of data.
func hashKey(prefix string, data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s%x", prefix, hash)
}
