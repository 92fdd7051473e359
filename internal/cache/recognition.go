package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RecognitionCache keeps ingredient lists recognized from images, keyed by image content.
// Every failure degrades to a miss; a nil client disables the cache.
type RecognitionCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRecognitionCache creates a recognition cache. client may be nil.
func NewRecognitionCache(client *redis.Client, ttl time.Duration) *RecognitionCache {
	return &RecognitionCache{
		client: client,
		prefix: "recognition:",
		ttl:    ttl,
	}
}

func (c *RecognitionCache) makeKey(image []byte) string {
	return hashKey(c.prefix, image)
}

// Get returns the cached ingredient list for image and whether it was found.
func (c *RecognitionCache) Get(ctx context.Context, image []byte) ([]string, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, c.makeKey(image)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("Redis cache get failed", "error", err)
		return nil, false
	}

	var items []string
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		slog.Warn("Failed to unmarshal cached recognition", "error", err)
		return nil, false
	}
	return items, true
}

// Set stores the ingredient list recognized from image.
func (c *RecognitionCache) Set(ctx context.Context, image []byte, items []string) {
	if c == nil || c.client == nil {
		return
	}

	data, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.makeKey(image), data, c.ttl).Err(); err != nil {
		slog.Warn("Redis cache set failed", "error", err)
	}
}
