package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/taskmaster/kanban/internal/infrastructure/config"
	"github.com/taskmaster/kanban/internal/infrastructure/logger"
)

const (
	maxRetries   = 5
	initialDelay = 2 * time.Second
)

// Connect opens a Redis client and pings it, retrying with exponential backoff
func Connect(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	delay := initialDelay

	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Infow("Connecting to Redis", "addr", cfg.GetAddr(), "attempt", attempt, "max_attempts", maxRetries)

		client := redis.NewClient(&redis.Options{
			Addr:         cfg.GetAddr(),
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			MinIdleConns: 3,
		})

		err := client.Ping(ctx).Err()
		if err == nil {
			log.Infow("Redis connected", "addr", cfg.GetAddr())
			return client, nil
		}
		client.Close()

		log.Warnw("Redis connection failed", "error", err, "attempt", attempt)
		if attempt == maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return nil, fmt.Errorf("failed to connect to Redis after %d attempts", maxRetries)
}

// HealthCheck pings client with a short timeout
func HealthCheck(ctx context.Context, client *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
