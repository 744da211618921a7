// Package gateway — контракт внешнего платёжного шлюза и его реализации (Cashfree, Stripe).
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// AttemptStatus — статус попытки оплаты в словаре шлюза.
type AttemptStatus string

const (
	AttemptSuccess      AttemptStatus = "SUCCESS"
	AttemptFailed       AttemptStatus = "FAILED"
	AttemptUserDropped  AttemptStatus = "USER_DROPPED"
	AttemptCancelled    AttemptStatus = "CANCELLED"
	AttemptPending      AttemptStatus = "PENDING"
	AttemptNotAttempted AttemptStatus = "NOT_ATTEMPTED"
)

// IsDecisive сообщает, окончательна ли попытка (успех или один из видов отказа).
func (s AttemptStatus) IsDecisive() bool {
	switch s {
	case AttemptSuccess, AttemptFailed, AttemptUserDropped, AttemptCancelled:
		return true
	default:
		return false
	}
}

// Ошибки шлюза.
var (
	ErrInvalidSignature = errors.New("неверная подпись webhook")
	ErrNoOrderID        = errors.New("в событии webhook нет идентификатора заказа")
)

// Customer — данные покупателя для платёжной сессии.
type Customer struct {
	ID    string
	Phone string
	Email string
	Name  string
}

// CreateOrderRequest — параметры создания платёжной сессии.
type CreateOrderRequest struct {
	OrderID   string
	Amount    decimal.Decimal
	Currency  string
	Customer  Customer
	ReturnURL string
}

// Session — созданная платёжная сессия.
type Session struct {
	SessionToken   string
	GatewayOrderID string
}

// PaymentAttempt — одна попытка оплаты заказа.
type PaymentAttempt struct {
	ID     string
	Status AttemptStatus
	Amount decimal.Decimal
	Method string
}

// Gateway — внешний платёжный шлюз.
type Gateway interface {
	// CreateOrder регистрирует заказ в шлюзе и возвращает токен платёжной сессии.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Session, error)

	// FetchPayments возвращает все попытки оплаты заказа (возможно, пустой список).
	FetchPayments(ctx context.Context, orderID string) ([]PaymentAttempt, error)
}

// WebhookParser проверяет подпись уведомления шлюза и извлекает ID заказа.
type WebhookParser interface {
	ParseWebhook(header http.Header, body []byte) (orderID string, err error)
}

// Provider — шлюз вместе с разбором его webhook.
type Provider interface {
	Gateway
	WebhookParser
}

// APIError — ответ шлюза с кодом ошибки.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ошибка платёжного шлюза (HTTP %d): %s", e.StatusCode, e.Message)
}

// IsClientError — ошибка запроса (4xx). Такие ошибки не говорят о недоступности шлюза.
func IsClientError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
	}
	return false
}

// SelectAttempt выбирает решающую попытку: первую окончательную, иначе первую в списке.
// Для пустого списка возвращает false.
func SelectAttempt(attempts []PaymentAttempt) (PaymentAttempt, bool) {
	if len(attempts) == 0 {
		return PaymentAttempt{}, false
	}
	for _, a := range attempts {
		if a.Status.IsDecisive() {
			return a, true
		}
	}
	return attempts[0], true
}
