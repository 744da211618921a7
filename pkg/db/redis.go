package db

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"example.com/settlement/pkg/config"
)

// ConnectRedis создаёт клиент Redis и проверяет соединение.
// Клиент возвращается и при ошибке ping: Redis используется в режиме
// fail-open (идемпотентность, rate limit), сервис может стартовать без него.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return client, fmt.Errorf("ошибка ping Redis: %w", err)
	}
	return client, nil
}
