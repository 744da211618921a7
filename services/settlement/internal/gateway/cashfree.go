package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"example.com/settlement/pkg/logger"
)

// CashfreeConfig — параметры Cashfree PG API.
type CashfreeConfig struct {
	BaseURL       string // https://sandbox.cashfree.com/pg
	AppID         string
	SecretKey     string
	APIVersion    string
	WebhookSecret string // если пусто, используется SecretKey
	Timeout       time.Duration
}

// Cashfree — клиент Cashfree PG REST API.
type Cashfree struct {
	cfg    CashfreeConfig
	client *http.Client
}

// NewCashfree создаёт клиент Cashfree.
func NewCashfree(cfg CashfreeConfig) *Cashfree {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Cashfree{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

type cashfreeCustomer struct {
	CustomerID    string `json:"customer_id"`
	CustomerPhone string `json:"customer_phone"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerName  string `json:"customer_name,omitempty"`
}

type cashfreeCreateOrder struct {
	OrderID         string           `json:"order_id"`
	OrderAmount     json.Number      `json:"order_amount"`
	OrderCurrency   string           `json:"order_currency"`
	CustomerDetails cashfreeCustomer `json:"customer_details"`
	OrderMeta       struct {
		ReturnURL string `json:"return_url,omitempty"`
	} `json:"order_meta"`
}

type cashfreeOrder struct {
	CfOrderID        json.Number `json:"cf_order_id"`
	PaymentSessionID string      `json:"payment_session_id"`
}

type cashfreePayment struct {
	CfPaymentID   json.Number     `json:"cf_payment_id"`
	PaymentStatus string          `json:"payment_status"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	PaymentGroup  string          `json:"payment_group"`
}

type cashfreeError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// CreateOrder — POST /orders.
func (c *Cashfree) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Session, error) {
	body := cashfreeCreateOrder{
		OrderID:       req.OrderID,
		OrderAmount:   json.Number(req.Amount.StringFixed(2)),
		OrderCurrency: req.Currency,
		CustomerDetails: cashfreeCustomer{
			CustomerID:    req.Customer.ID,
			CustomerPhone: req.Customer.Phone,
			CustomerEmail: req.Customer.Email,
			CustomerName:  req.Customer.Name,
		},
	}
	body.OrderMeta.ReturnURL = req.ReturnURL

	var out cashfreeOrder
	if err := c.do(ctx, http.MethodPost, "/orders", body, &out); err != nil {
		return nil, err
	}
	if out.PaymentSessionID == "" {
		return nil, &APIError{StatusCode: http.StatusBadGateway, Message: "пустой payment_session_id"}
	}

	return &Session{SessionToken: out.PaymentSessionID, GatewayOrderID: out.CfOrderID.String()}, nil
}

// FetchPayments — GET /orders/{order_id}/payments.
func (c *Cashfree) FetchPayments(ctx context.Context, orderID string) ([]PaymentAttempt, error) {
	var payments []cashfreePayment
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID)+"/payments", nil, &payments); err != nil {
		return nil, err
	}

	attempts := make([]PaymentAttempt, 0, len(payments))
	for _, p := range payments {
		attempts = append(attempts, PaymentAttempt{
			ID:     p.CfPaymentID.String(),
			Status: AttemptStatus(strings.ToUpper(p.PaymentStatus)),
			Amount: p.PaymentAmount,
			Method: p.PaymentGroup,
		})
	}
	return attempts, nil
}

func (c *Cashfree) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("ошибка сериализации запроса: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-client-id", c.cfg.AppID)
	req.Header.Set("x-client-secret", c.cfg.SecretKey)
	req.Header.Set("x-api-version", c.cfg.APIVersion)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка запроса к Cashfree: %w", err)
	}
	defer resp.Body.Close()

	logger.Ctx(ctx).Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Запрос к Cashfree")

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа Cashfree: %w", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr cashfreeError
		_ = json.Unmarshal(data, &apiErr)
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Message}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("ошибка разбора ответа Cashfree: %w", err)
	}
	return nil
}

// Заголовки webhook Cashfree.
const (
	HeaderCashfreeSignature = "x-webhook-signature"
	HeaderCashfreeTimestamp = "x-webhook-timestamp"
)

type cashfreeWebhook struct {
	Type string `json:"type"`
	Data struct {
		Order struct {
			OrderID string `json:"order_id"`
		} `json:"order"`
	} `json:"data"`
}

// ParseWebhook проверяет подпись base64(HMAC-SHA256(timestamp + body)).
func (c *Cashfree) ParseWebhook(header http.Header, body []byte) (string, error) {
	signature := header.Get(HeaderCashfreeSignature)
	timestamp := header.Get(HeaderCashfreeTimestamp)
	if signature == "" || timestamp == "" {
		return "", ErrInvalidSignature
	}

	expected := SignCashfreeWebhook(c.webhookSecret(), timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return "", ErrInvalidSignature
	}

	var event cashfreeWebhook
	if err := json.Unmarshal(body, &event); err != nil {
		return "", fmt.Errorf("ошибка разбора webhook: %w", err)
	}
	if event.Data.Order.OrderID == "" {
		return "", ErrNoOrderID
	}
	return event.Data.Order.OrderID, nil
}

func (c *Cashfree) webhookSecret() string {
	if c.cfg.WebhookSecret != "" {
		return c.cfg.WebhookSecret
	}
	return c.cfg.SecretKey
}

// SignCashfreeWebhook вычисляет подпись webhook.
func SignCashfreeWebhook(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
