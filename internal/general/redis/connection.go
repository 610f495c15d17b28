package redis

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"ridebook/internal/general/config"
	"ridebook/internal/general/logger"

	"github.com/redis/go-redis/v9"
)

// NewClient creates a Redis client from cfg and verifies connectivity.
func NewClient(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*redis.Client, error) {
	addr := net.JoinHostPort(cfg.Redis.Host, strconv.Itoa(cfg.Redis.Port))

	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	// Verify connection.
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info(ctx, "redis_connected", "Connected to Redis", map[string]any{"addr": addr})

	return client, nil
}
