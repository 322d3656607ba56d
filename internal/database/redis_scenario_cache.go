// Scenario cache backed by Redis. Generated scenarios are immutable, so
// they cache cleanly; when Redis is unavailable the cache degrades to an
// in-memory map so playback keeps working.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// ScenarioKeyPrefix is the prefix for cached scenario keys.
	// Format: practice:scenario:{scenarioID}
	ScenarioKeyPrefix = "practice:scenario"

	// DefaultScenarioTTL bounds how long a generated scenario stays hot.
	DefaultScenarioTTL = time.Hour
)

// ScenarioCache stores scenario payloads keyed by ID
type ScenarioCache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger

	mu       sync.RWMutex
	fallback map[string][]byte
}

// RedisConfig holds Redis connection settings for the cache
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	PoolSize int
	TTL      time.Duration
}

// NewScenarioCache creates a scenario cache. A nil return error with a nil
// client means Redis was disabled and the in-memory fallback is active.
func NewScenarioCache(cfg RedisConfig, logger zerolog.Logger) *ScenarioCache {
	log := logger.With().Str("component", "scenario_cache").Logger()

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultScenarioTTL
	}

	cache := &ScenarioCache{
		ttl:      ttl,
		log:      log,
		fallback: make(map[string][]byte),
	}

	if cfg.Address == "" {
		log.Info().Msg("redis disabled, using in-memory scenario cache")
		return cache
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, using in-memory scenario cache")
		return cache
	}

	cache.client = client
	log.Info().Str("address", cfg.Address).Msg("redis scenario cache connected")
	return cache
}

// Put caches a scenario payload under its ID
func (c *ScenarioCache) Put(ctx context.Context, id string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}

	if c.client == nil {
		c.mu.Lock()
		c.fallback[id] = data
		c.mu.Unlock()
		return nil
	}

	if err := c.client.Set(ctx, c.key(id), data, c.ttl).Err(); err != nil {
		// Cache writes are best effort. Keep the fallback warm instead.
		c.log.Warn().Err(err).Str("scenario_id", id).Msg("redis set failed")
		c.mu.Lock()
		c.fallback[id] = data
		c.mu.Unlock()
	}
	return nil
}

// Get retrieves a cached scenario payload into out. The boolean reports a
// cache hit.
func (c *ScenarioCache) Get(ctx context.Context, id string, out interface{}) (bool, error) {
	if c.client != nil {
		data, err := c.client.Get(ctx, c.key(id)).Bytes()
		if err == nil {
			return true, json.Unmarshal(data, out)
		}
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("scenario_id", id).Msg("redis get failed")
		}
	}

	c.mu.RLock()
	data, ok := c.fallback[id]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, out)
}

// Delete evicts a scenario from the cache
func (c *ScenarioCache) Delete(ctx context.Context, id string) {
	c.mu.Lock()
	delete(c.fallback, id)
	c.mu.Unlock()

	if c.client != nil {
		if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
			c.log.Warn().Err(err).Str("scenario_id", id).Msg("redis delete failed")
		}
	}
}

// Close releases the Redis connection
func (c *ScenarioCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *ScenarioCache) key(id string) string {
	return fmt.Sprintf("%s:%s", ScenarioKeyPrefix, id)
}
