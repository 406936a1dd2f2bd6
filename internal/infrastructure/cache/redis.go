package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"mizan/internal/shared/config"
	appLogger "mizan/internal/shared/logger"
)

var (
	redisClient *redis.Client
	redisMu     sync.RWMutex
)

// InitRedis creates and tests the shared Redis client connection.
func InitRedis(cfg *config.RedisConfig) error {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	redisMu.Lock()
	redisClient = client
	redisMu.Unlock()

	appLogger.Info("redis connection established", "addr", cfg.GetAddr(), "db", cfg.DB)
	return nil
}

// GetRedis returns the shared Redis client
func GetRedis() *redis.Client {
	redisMu.RLock()
	defer redisMu.RUnlock()
	return redisClient
}

// CloseRedis closes the shared Redis client
func CloseRedis() error {
	redisMu.RLock()
	client := redisClient
	redisMu.RUnlock()

	if client == nil {
		return nil
	}
	return client.Close()
}
