package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"github.com/stripe/stripe-go/v83/webhook"
)

// metadataOrderID — ключ metadata PaymentIntent с ID заказа.
const metadataOrderID = "order_id"

// HeaderStripeSignature — заголовок подписи webhook Stripe.
const HeaderStripeSignature = "Stripe-Signature"

// StripeConfig — параметры Stripe.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// Stripe — провайдер на PaymentIntent API.
type Stripe struct {
	webhookSecret string
}

// NewStripe настраивает ключ stripe-go и создаёт провайдер.
func NewStripe(cfg StripeConfig) *Stripe {
	stripe.Key = cfg.SecretKey
	return &Stripe{webhookSecret: cfg.WebhookSecret}
}

// CreateOrder создаёт PaymentIntent. Токен сессии — client_secret.
func (s *Stripe) CreateOrder(_ context.Context, req CreateOrderRequest) (*Session, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(toMinorUnits(req.Amount)),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			metadataOrderID: req.OrderID,
			"customer_id":   req.Customer.ID,
		},
	}
	if req.Customer.Email != "" {
		params.ReceiptEmail = stripe.String(req.Customer.Email)
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, wrapStripeError(err)
	}
	return &Session{SessionToken: intent.ClientSecret, GatewayOrderID: intent.ID}, nil
}

// FetchPayments ищет PaymentIntent заказа по metadata.
func (s *Stripe) FetchPayments(_ context.Context, orderID string) ([]PaymentAttempt, error) {
	params := &stripe.PaymentIntentSearchParams{}
	params.Query = fmt.Sprintf("metadata['%s']:'%s'", metadataOrderID, strings.ReplaceAll(orderID, "'", ""))

	var attempts []PaymentAttempt
	iter := paymentintent.Search(params)
	for iter.Next() {
		attempts = append(attempts, attemptFromIntent(iter.PaymentIntent()))
	}
	if err := iter.Err(); err != nil {
		return nil, wrapStripeError(err)
	}
	return attempts, nil
}

// ParseWebhook проверяет подпись события и достаёт order_id из PaymentIntent.
func (s *Stripe) ParseWebhook(header http.Header, body []byte) (string, error) {
	event, err := webhook.ConstructEventWithOptions(body, header.Get(HeaderStripeSignature), s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if !strings.HasPrefix(string(event.Type), "payment_intent.") {
		return "", ErrNoOrderID
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return "", fmt.Errorf("ошибка разбора PaymentIntent: %w", err)
	}
	orderID := intent.Metadata[metadataOrderID]
	if orderID == "" {
		return "", ErrNoOrderID
	}
	return orderID, nil
}

func attemptFromIntent(pi *stripe.PaymentIntent) PaymentAttempt {
	return PaymentAttempt{
		ID:     pi.ID,
		Status: mapIntentStatus(pi),
		Amount: decimal.New(pi.Amount, -2),
		Method: strings.Join(pi.PaymentMethodTypes, ","),
	}
}

// mapIntentStatus переводит статус PaymentIntent в словарь шлюза.
// Окончательный отказ только canceled: после отклонённой карты (requires_payment_method
// с LastPaymentError) покупатель может повторить оплату на том же PaymentIntent.
func mapIntentStatus(pi *stripe.PaymentIntent) AttemptStatus {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return AttemptSuccess
	case stripe.PaymentIntentStatusCanceled:
		return AttemptCancelled
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			return AttemptPending
		}
		return AttemptNotAttempted
	default:
		return AttemptPending
	}
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// wrapStripeError переводит ошибку Stripe в APIError, чтобы 4xx не открывали circuit breaker.
func wrapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode > 0 {
		return &APIError{StatusCode: stripeErr.HTTPStatusCode, Message: stripeErr.Msg}
	}
	return fmt.Errorf("ошибка запроса к Stripe: %w", err)
}
