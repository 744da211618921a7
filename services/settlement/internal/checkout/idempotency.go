package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"example.com/settlement/services/settlement/internal/domain"
)

const (
	// idempotencyPrefix — префикс ключа Redis: checkout:idempotency:{user_id}:{key}.
	idempotencyPrefix = "checkout:idempotency:"

	// processingMarker — значение ключа, пока заказ оформляется.
	processingMarker = "processing"
)

// IdempotencyStore хранит результаты оформления по ключу Idempotency-Key.
type IdempotencyStore interface {
	// Reserve занимает ключ. Возвращает сохранённый результат, если заказ по ключу
	// уже оформлен, ErrCheckoutInProgress, если оформление ещё идёт, и (nil, nil),
	// если ключ занят этим вызовом.
	Reserve(ctx context.Context, userID, key string) (*Result, error)

	// Complete сохраняет результат оформления.
	Complete(ctx context.Context, userID, key string, result *Result) error

	// Release освобождает ключ после неудачного оформления.
	Release(ctx context.Context, userID, key string) error
}

type redisIdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewIdempotencyStore создаёт IdempotencyStore на Redis.
func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) IdempotencyStore {
	return &redisIdempotencyStore{rdb: rdb, ttl: ttl}
}

func idempotencyKey(userID, key string) string {
	return idempotencyPrefix + userID + ":" + key
}

func (s *redisIdempotencyStore) Reserve(ctx context.Context, userID, key string) (*Result, error) {
	redisKey := idempotencyKey(userID, key)

	ok, err := s.rdb.SetNX(ctx, redisKey, processingMarker, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка резервирования ключа идемпотентности: %w", err)
	}
	if ok {
		return nil, nil
	}

	val, err := s.rdb.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		// Ключ истёк между SETNX и GET — пробуем ещё раз.
		return s.Reserve(ctx, userID, key)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ключа идемпотентности: %w", err)
	}
	if val == processingMarker {
		return nil, domain.ErrCheckoutInProgress
	}

	var result Result
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return nil, fmt.Errorf("ошибка разбора сохранённого результата: %w", err)
	}
	return &result, nil
}

func (s *redisIdempotencyStore) Complete(ctx context.Context, userID, key string, result *Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("ошибка сериализации результата: %w", err)
	}
	if err := s.rdb.SetArgs(ctx, idempotencyKey(userID, key), data, redis.SetArgs{KeepTTL: true}).Err(); err != nil {
		return fmt.Errorf("ошибка сохранения результата: %w", err)
	}
	return nil
}

func (s *redisIdempotencyStore) Release(ctx context.Context, userID, key string) error {
	if err := s.rdb.Del(ctx, idempotencyKey(userID, key)).Err(); err != nil {
		return fmt.Errorf("ошибка освобождения ключа идемпотентности: %w", err)
	}
	return nil
}
