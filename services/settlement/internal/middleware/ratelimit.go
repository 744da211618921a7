package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"example.com/settlement/pkg/logger"
)

// rateLimitScript — атомарный INCR + EXPIRE: ключ не останется без TTL.
var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
    redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RateLimitConfig — конфигурация rate limiter.
type RateLimitConfig struct {
	Redis  *redis.Client
	Limit  int           // по умолчанию 100
	Window time.Duration // по умолчанию 1 минута
}

// RateLimitMiddleware ограничивает число запросов в окне (fixed window в Redis).
// Ключ — user_id, если запрос уже аутентифицирован, иначе IP клиента.
type RateLimitMiddleware struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

// NewRateLimitMiddleware создаёт RateLimitMiddleware.
func NewRateLimitMiddleware(cfg RateLimitConfig) *RateLimitMiddleware {
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &RateLimitMiddleware{redis: cfg.Redis, limit: cfg.Limit, window: cfg.Window}
}

// Handle возвращает Gin handler function для middleware.
// При ошибке Redis запрос пропускается (fail-open).
func (m *RateLimitMiddleware) Handle() gin.HandlerFunc {
	windowSec := int(m.window.Seconds())

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logger.FromContext(ctx)

		key := "rate:ip:" + c.ClientIP()
		if userID := c.GetString(ContextUserID); userID != "" {
			key = "rate:user:" + userID
		}

		count, err := rateLimitScript.Run(ctx, m.redis, []string{key}, windowSec).Int()
		if err != nil {
			log.Warn().Err(err).Msg("Ошибка проверки rate limit")
			c.Next()
			return
		}

		remaining := max(m.limit-count, 0)
		c.Header("X-RateLimit-Limit", strconv.Itoa(m.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > m.limit {
			log.Warn().Str("key", key).Int("limit", m.limit).Msg("Rate limit превышен")
			c.Header("Retry-After", strconv.Itoa(windowSec))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": fmt.Sprintf("Превышен лимит запросов. Попробуйте через %d секунд", windowSec),
			})
			return
		}

		c.Next()
	}
}
