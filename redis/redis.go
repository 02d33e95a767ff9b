package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Client is nil until InitRedis succeeds; features backed by Redis check it
var Client *redis.Client

func InitRedis(ctx context.Context, addr, password string) error {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	Client = client
	log.Info().Str("addr", addr).Msg("connected to redis")
	return nil
}

func Close() error {
	if Client == nil {
		return nil
	}
	return Client.Close()
}
