package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/daddyholnes/podplay-claude-sub001/pkg/config"
)

// Exchange is one cached user/assistant turn.
type Exchange struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// Cache keeps the most recent exchanges per user in a Redis list so chat
// context does not require a round trip to the remote memory API.
type Cache struct {
	rdb        *redis.Client
	ttl        time.Duration
	maxEntries int64
}

// NewCache connects to Redis and verifies the connection with a ping.
func NewCache(cfg config.MemoryConfig) (*Cache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 1 * time.Hour
	}
	maxEntries := int64(cfg.CacheEntries)
	if maxEntries <= 0 {
		maxEntries = 20
	}

	log.Printf("[Memory] Redis context cache connected (%s)", opts.Addr)
	return &Cache{rdb: rdb, ttl: ttl, maxEntries: maxEntries}, nil
}

func contextKey(userID string) string {
	return "podplay:context:" + userID
}

// Append pushes an exchange onto the user's context list, trimming to the
// configured size and refreshing the TTL.
func (c *Cache) Append(ctx context.Context, userID string, ex Exchange) error {
	data, err := json.Marshal(ex)
	if err != nil {
		return err
	}

	key := contextKey(userID)
	pipe := c.rdb.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -c.maxEntries, -1)
	pipe.Expire(ctx, key, c.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns the cached exchanges for a user, oldest first.
func (c *Cache) Recent(ctx context.Context, userID string) ([]Exchange, error) {
	items, err := c.rdb.LRange(ctx, contextKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	exchanges := make([]Exchange, 0, len(items))
	for _, item := range items {
		var ex Exchange
		if err := json.Unmarshal([]byte(item), &ex); err != nil {
			// Skip corrupt entries rather than failing the whole read.
			continue
		}
		exchanges = append(exchanges, ex)
	}
	return exchanges, nil
}

// Clear drops the cached context for a user.
func (c *Cache) Clear(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, contextKey(userID)).Err()
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}
