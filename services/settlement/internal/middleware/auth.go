// Package middleware содержит HTTP middleware Settlement API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"example.com/settlement/pkg/jwt"
	"example.com/settlement/pkg/logger"
)

// Ключи gin.Context, которые выставляет AuthMiddleware.
const (
	ContextUserID   = "user_id"
	ContextIdentity = "identity"
	ContextJTI      = "jti"
)

// TokenValidator проверяет токен. Реализуется *jwt.Manager.
type TokenValidator interface {
	ValidateWithBlacklist(ctx context.Context, token string) (*jwt.Claims, error)
}

// AuthMiddleware проверяет Bearer токен покупателя: подпись RS256, срок действия,
// издателя и отсутствие в blacklist.
type AuthMiddleware struct {
	validator TokenValidator
}

// NewAuthMiddleware создаёт AuthMiddleware.
func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// Handle возвращает Gin handler function для middleware.
func (m *AuthMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logger.FromContext(ctx)

		token := ExtractBearerToken(c)
		if token == "" {
			log.Debug().Msg("Отсутствует токен авторизации")
			abortUnauthorized(c, "Требуется авторизация")
			return
		}

		claims, err := m.validator.ValidateWithBlacklist(ctx, token)
		if err != nil {
			log.Warn().Err(err).Msg("Ошибка валидации токена")
			abortUnauthorized(c, "Невалидный токен")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextIdentity, claims.Identity)
		c.Set(ContextJTI, claims.ID)

		log.Debug().
			Str("user_id", claims.UserID).
			Str("jti", claims.ID).
			Msg("Пользователь аутентифицирован")

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"message": message,
	})
}

// ExtractBearerToken извлекает токен из заголовка "Authorization: Bearer <token>".
// Префикс регистронезависимый.
func ExtractBearerToken(c *gin.Context) string {
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
