package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"livestock-heat-api/config"

	"github.com/redis/go-redis/v9"
)

const (
	pingRetries    = 10
	pingTimeout    = 2 * time.Second
	pingRetryDelay = 2 * time.Second
)

// CacheService wraps redis for the read caches and the forecast pub/sub
// channel. A failed startup leaves the client nil and every method a
// no-op, so the API serves uncached rather than crashing.
type CacheService struct {
	client *redis.Client
}

func NewCacheService(cfg config.RedisConfig) (*CacheService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Redis often comes up after the API under docker-compose; retry
	// before giving up.
	var lastErr error
	for i := 0; i < pingRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		lastErr = client.Ping(ctx).Err()
		cancel()
		if lastErr == nil {
			return &CacheService{client: client}, nil
		}
		log.Printf("Redis ping attempt %d/%d failed: %v", i+1, pingRetries, lastErr)
		time.Sleep(pingRetryDelay)
	}

	return &CacheService{client: nil}, fmt.Errorf("redis ping failed after %d attempts: %w", pingRetries, lastErr)
}

func (s *CacheService) Available() bool {
	return s.client != nil
}

// Get unmarshals the cached value into dest. A cache miss leaves dest
// untouched and returns nil.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	if s.client == nil {
		return redis.Nil
	}
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(val), dest)
}

func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if s.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *CacheService) Publish(ctx context.Context, channel string, message interface{}) error {
	if s.client == nil {
		return nil
	}
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, channel, data).Err()
}

func (s *CacheService) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	if s.client == nil {
		return nil
	}
	return s.client.Subscribe(ctx, channel)
}

func (s *CacheService) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
