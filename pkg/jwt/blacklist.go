package jwt

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// prefixToken — ключ отозванного токена: jwt:blacklist:{jti}.
const prefixToken = "jwt:blacklist:"

// Blacklist хранит отозванные токены в Redis.
type Blacklist struct {
	redis *redis.Client
}

// NewBlacklist создаёт blacklist.
func NewBlacklist(client *redis.Client) *Blacklist {
	return &Blacklist{redis: client}
}

// Add отзывает токен. Ключ живёт до истечения токена.
func (b *Blacklist) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := b.redis.Set(ctx, prefixToken+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("ошибка добавления токена в blacklist: %w", err)
	}
	return nil
}

// Check сообщает, отозван ли токен.
func (b *Blacklist) Check(ctx context.Context, jti string) (bool, error) {
	exists, err := b.redis.Exists(ctx, prefixToken+jti).Result()
	if err != nil {
		return false, fmt.Errorf("ошибка проверки blacklist: %w", err)
	}
	return exists > 0, nil
}
