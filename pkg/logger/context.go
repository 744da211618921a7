package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// ctxKey — приватный тип ключей контекста.
type ctxKey string

const (
	// traceIDKey — идентификатор запроса, сквозной для всех компонентов.
	traceIDKey ctxKey = "trace_id"

	// correlationIDKey — связывает запросы одной бизнес-операции.
	correlationIDKey ctxKey = "correlation_id"

	// orderIDKey — заказ, над которым идёт работа (checkout, сверка, уведомления).
	orderIDKey ctxKey = "order_id"

	// loggerKey — явно переданный логгер.
	loggerKey ctxKey = "logger"
)

// WithTraceID добавляет trace_id в контекст.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext извлекает trace_id. Пустая строка, если не установлен.
func TraceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// WithCorrelationID добавляет correlation_id в контекст.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationIDFromContext извлекает correlation_id. Пустая строка, если не установлен.
func CorrelationIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(correlationIDKey).(string); ok {
		return v
	}
	return ""
}

// WithOrderID добавляет order_id в контекст.
// Все последующие записи через FromContext получат поле order_id.
func WithOrderID(ctx context.Context, orderID string) context.Context {
	return context.WithValue(ctx, orderIDKey, orderID)
}

// OrderIDFromContext извлекает order_id. Пустая строка, если не установлен.
func OrderIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(orderIDKey).(string); ok {
		return v
	}
	return ""
}

// WithLogger кладёт логгер в контекст.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext возвращает логгер из контекста (или глобальный) и добавляет
// trace_id, correlation_id и order_id, если они есть в контексте.
//
//	func (r *Reconciler) Reconcile(ctx context.Context, orderID string) (*Result, error) {
//	    log := logger.FromContext(ctx)
//	    log.Info().Msg("Сверка статуса оплаты")
//	}
func FromContext(ctx context.Context) zerolog.Logger {
	l := log
	if ctxLogger, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		l = ctxLogger
	}

	lctx := l.With()
	if v := TraceIDFromContext(ctx); v != "" {
		lctx = lctx.Str("trace_id", v)
	}
	if v := CorrelationIDFromContext(ctx); v != "" {
		lctx = lctx.Str("correlation_id", v)
	}
	if v := OrderIDFromContext(ctx); v != "" {
		lctx = lctx.Str("order_id", v)
	}

	return lctx.Logger()
}

// Ctx возвращает указатель на логгер из контекста (аналог zerolog.Ctx).
func Ctx(ctx context.Context) *zerolog.Logger {
	l := FromContext(ctx)
	return &l
}

// NewContextWithIDs добавляет непустые trace_id и correlation_id в контекст.
func NewContextWithIDs(ctx context.Context, traceID, correlationID string) context.Context {
	if traceID != "" {
		ctx = WithTraceID(ctx, traceID)
	}
	if correlationID != "" {
		ctx = WithCorrelationID(ctx, correlationID)
	}
	return ctx
}
