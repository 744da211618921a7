package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"example.com/settlement/pkg/logger"
)

// HTTP заголовки для трассировки.
const (
	HeaderTraceID       = "X-Trace-ID"
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderRequestID     = "X-Request-ID" // алиас для Trace ID
)

// RequestIDs берёт trace_id и correlation_id из заголовков или генерирует новые,
// кладёт их в контекст запроса (для логов и outbox) и возвращает клиенту.
func RequestIDs() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		traceID := c.GetHeader(HeaderTraceID)
		if traceID == "" {
			traceID = c.GetHeader(HeaderRequestID)
		}
		if traceID == "" {
			traceID = uuid.New().String()
		}
		correlationID := c.GetHeader(HeaderCorrelationID)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		ctx := logger.NewContextWithIDs(c.Request.Context(), traceID, correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Header(HeaderTraceID, traceID)
		c.Header(HeaderCorrelationID, correlationID)

		c.Next()

		status := c.Writer.Status()
		log := logger.FromContext(ctx)
		event := log.Info()
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Str("client_ip", c.ClientIP()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("Запрос обработан")
	}
}
