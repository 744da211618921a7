// Package healthcheck — проверки зависимостей для readiness эндпоинта (/readyz).
package healthcheck

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
)

// Check — проверка одной зависимости.
type Check func(context.Context) error

// MySQL проверяет доступность MySQL через GORM.
func MySQL(db *gorm.DB) Check {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("mysql: %w", err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("mysql ping: %w", err)
		}
		return nil
	}
}

// Redis проверяет доступность Redis.
func Redis(rdb *redis.Client) Check {
	return func(ctx context.Context) error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		return nil
	}
}

// Kafka проверяет, что доступен хотя бы один брокер.
func Kafka(brokers []string) Check {
	return func(ctx context.Context) error {
		if len(brokers) == 0 {
			return errors.New("kafka: брокеры не указаны")
		}
		var lastErr error
		for _, broker := range brokers {
			conn, err := kafka.DialContext(ctx, "tcp", broker)
			if err != nil {
				lastErr = err
				continue
			}
			_ = conn.Close()
			return nil
		}
		return fmt.Errorf("kafka dial: %w", lastErr)
	}
}

// Composite возвращает первую ошибку из проверок или nil.
func Composite(checks ...Check) func(context.Context) error {
	return func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}
