package gateway

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	"example.com/settlement/pkg/circuitbreaker"
	"example.com/settlement/pkg/tracing"
)

// Guarded оборачивает провайдера в circuit breaker и tracing spans.
// Открытый breaker возвращает circuitbreaker.ErrUnavailable без обращения к шлюзу.
type Guarded struct {
	next    Provider
	breaker *circuitbreaker.Breaker
}

// NewGuarded создаёт защищённый провайдер.
func NewGuarded(next Provider, breaker *circuitbreaker.Breaker) *Guarded {
	return &Guarded{next: next, breaker: breaker}
}

func (g *Guarded) CreateOrder(ctx context.Context, req CreateOrderRequest) (session *Session, err error) {
	ctx, span := tracing.StartSpan(ctx, "gateway.CreateOrder", attribute.String("order_id", req.OrderID))
	defer func() { tracing.EndSpan(span, err) }()

	err = g.breaker.Execute(func() error {
		var callErr error
		session, callErr = g.next.CreateOrder(ctx, req)
		return callErr
	}, isFailure)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (g *Guarded) FetchPayments(ctx context.Context, orderID string) (attempts []PaymentAttempt, err error) {
	ctx, span := tracing.StartSpan(ctx, "gateway.FetchPayments", attribute.String("order_id", orderID))
	defer func() { tracing.EndSpan(span, err) }()

	err = g.breaker.Execute(func() error {
		var callErr error
		attempts, callErr = g.next.FetchPayments(ctx, orderID)
		return callErr
	}, isFailure)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("attempts", len(attempts)))
	return attempts, nil
}

// ParseWebhook не обращается к шлюзу и идёт мимо breaker.
func (g *Guarded) ParseWebhook(header http.Header, body []byte) (string, error) {
	return g.next.ParseWebhook(header, body)
}

// isFailure — сбоем считаются сетевые ошибки и 5xx. Отмена запроса клиентом — не сбой шлюза.
func isFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return !IsClientError(err)
}
