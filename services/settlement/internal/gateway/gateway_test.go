package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/settlement/pkg/circuitbreaker"
)

// =============================================================================
// SelectAttempt
// =============================================================================

func TestSelectAttempt(t *testing.T) {
	tests := []struct {
		name     string
		attempts []PaymentAttempt
		wantOK   bool
		wantID   string
	}{
		{name: "нет попыток", attempts: nil, wantOK: false},
		{
			name: "окончательная попытка важнее незавершённой",
			attempts: []PaymentAttempt{
				{ID: "1", Status: AttemptPending},
				{ID: "2", Status: AttemptSuccess},
			},
			wantOK: true, wantID: "2",
		},
		{
			name: "отказ пользователя тоже окончательный",
			attempts: []PaymentAttempt{
				{ID: "1", Status: AttemptNotAttempted},
				{ID: "2", Status: AttemptUserDropped},
			},
			wantOK: true, wantID: "2",
		},
		{
			name: "без окончательных берётся первая",
			attempts: []PaymentAttempt{
				{ID: "1", Status: AttemptPending},
				{ID: "2", Status: "FLAGGED"},
			},
			wantOK: true, wantID: "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectAttempt(tt.attempts)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(&APIError{StatusCode: 400}))
	assert.False(t, IsClientError(&APIError{StatusCode: 503}))
	assert.False(t, IsClientError(errors.New("dial tcp: refused")))
}

// =============================================================================
// Cashfree
// =============================================================================

func newTestCashfree(t *testing.T, handler http.HandlerFunc) *Cashfree {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewCashfree(CashfreeConfig{
		BaseURL:    srv.URL + "/",
		AppID:      "app-id",
		SecretKey:  "secret",
		APIVersion: "2023-08-01",
		Timeout:    time.Second,
	})
}

func TestCashfree_CreateOrder(t *testing.T) {
	var received map[string]any
	c := newTestCashfree(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "app-id", r.Header.Get("x-client-id"))
		assert.Equal(t, "secret", r.Header.Get("x-client-secret"))
		assert.Equal(t, "2023-08-01", r.Header.Get("x-api-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		_, _ = w.Write([]byte(`{"cf_order_id":"2149460581","order_id":"order-1","payment_session_id":"session_abc"}`))
	})

	session, err := c.CreateOrder(context.Background(), CreateOrderRequest{
		OrderID:   "order-1",
		Amount:    decimal.RequireFromString("950.5"),
		Currency:  "INR",
		Customer:  Customer{ID: "user-1", Phone: "9999999999", Email: "a@example.com", Name: "Аня"},
		ReturnURL: "https://shop.example.com/payment/verify?order_id=order-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "session_abc", session.SessionToken)
	assert.Equal(t, "2149460581", session.GatewayOrderID)
	assert.Equal(t, "order-1", received["order_id"])
	assert.Equal(t, 950.5, received["order_amount"])
	assert.Equal(t, "INR", received["order_currency"])
	customer := received["customer_details"].(map[string]any)
	assert.Equal(t, "9999999999", customer["customer_phone"])
	meta := received["order_meta"].(map[string]any)
	assert.Contains(t, meta["return_url"], "order_id=order-1")
}

func TestCashfree_CreateOrder_APIError(t *testing.T) {
	c := newTestCashfree(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"order_amount : invalid value","code":"order_amount_invalid"}`))
	})

	_, err := c.CreateOrder(context.Background(), CreateOrderRequest{OrderID: "o", Amount: decimal.Zero})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "order_amount")
	assert.True(t, IsClientError(err))
}

func TestCashfree_FetchPayments(t *testing.T) {
	c := newTestCashfree(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/order-1/payments", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"cf_payment_id": 101, "payment_status": "USER_DROPPED", "payment_amount": 950.00, "payment_group": "upi"},
			{"cf_payment_id": 102, "payment_status": "SUCCESS", "payment_amount": 950.00, "payment_group": "card"}
		]`))
	})

	attempts, err := c.FetchPayments(context.Background(), "order-1")
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, AttemptUserDropped, attempts[0].Status)
	assert.Equal(t, "102", attempts[1].ID)
	assert.True(t, attempts[1].Amount.Equal(decimal.NewFromInt(950)))
}

func TestCashfree_FetchPayments_Empty(t *testing.T) {
	c := newTestCashfree(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	attempts, err := c.FetchPayments(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Empty(t, attempts)
}

func TestCashfree_ParseWebhook(t *testing.T) {
	c := NewCashfree(CashfreeConfig{SecretKey: "secret"})
	body := []byte(`{"type":"PAYMENT_SUCCESS_WEBHOOK","data":{"order":{"order_id":"order-1"}}}`)
	ts := "1700000000"

	t.Run("верная подпись", func(t *testing.T) {
		h := http.Header{}
		h.Set(HeaderCashfreeTimestamp, ts)
		h.Set(HeaderCashfreeSignature, SignCashfreeWebhook("secret", ts, body))

		orderID, err := c.ParseWebhook(h, body)
		require.NoError(t, err)
		assert.Equal(t, "order-1", orderID)
	})

	t.Run("подпись другим ключом", func(t *testing.T) {
		h := http.Header{}
		h.Set(HeaderCashfreeTimestamp, ts)
		h.Set(HeaderCashfreeSignature, SignCashfreeWebhook("other", ts, body))

		_, err := c.ParseWebhook(h, body)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("нет заголовков", func(t *testing.T) {
		_, err := c.ParseWebhook(http.Header{}, body)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("нет order_id", func(t *testing.T) {
		empty := []byte(`{"type":"PAYMENT_SUCCESS_WEBHOOK","data":{}}`)
		h := http.Header{}
		h.Set(HeaderCashfreeTimestamp, ts)
		h.Set(HeaderCashfreeSignature, SignCashfreeWebhook("secret", ts, empty))

		_, err := c.ParseWebhook(h, empty)
		assert.ErrorIs(t, err, ErrNoOrderID)
	})
}

// =============================================================================
// Stripe (без сети: только преобразования)
// =============================================================================

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(95050), toMinorUnits(decimal.RequireFromString("950.50")))
	assert.Equal(t, int64(1), toMinorUnits(decimal.RequireFromString("0.005")))
}

// =============================================================================
// Guarded
// =============================================================================

type stubProvider struct {
	createErr error
	calls     int
}

func (s *stubProvider) CreateOrder(context.Context, CreateOrderRequest) (*Session, error) {
	s.calls++
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &Session{SessionToken: "tok"}, nil
}

func (s *stubProvider) FetchPayments(context.Context, string) ([]PaymentAttempt, error) {
	s.calls++
	return []PaymentAttempt{{ID: "1", Status: AttemptSuccess}}, nil
}

func (s *stubProvider) ParseWebhook(http.Header, []byte) (string, error) {
	return "order-1", nil
}

func breakerSettings() circuitbreaker.Settings {
	return circuitbreaker.Settings{MaxRequests: 1, Interval: time.Minute, Timeout: time.Hour, FailureRatio: 0.5, MinRequests: 2}
}

func TestGuarded(t *testing.T) {
	t.Run("успешные вызовы проходят", func(t *testing.T) {
		stub := &stubProvider{}
		g := NewGuarded(stub, circuitbreaker.NewWithSettings("ok", breakerSettings()))

		session, err := g.CreateOrder(context.Background(), CreateOrderRequest{OrderID: "o"})
		require.NoError(t, err)
		assert.Equal(t, "tok", session.SessionToken)

		attempts, err := g.FetchPayments(context.Background(), "o")
		require.NoError(t, err)
		assert.Len(t, attempts, 1)
	})

	t.Run("5xx открывают breaker", func(t *testing.T) {
		stub := &stubProvider{createErr: &APIError{StatusCode: http.StatusServiceUnavailable}}
		g := NewGuarded(stub, circuitbreaker.NewWithSettings("down", breakerSettings()))

		for range 2 {
			_, err := g.CreateOrder(context.Background(), CreateOrderRequest{OrderID: "o"})
			require.Error(t, err)
		}

		_, err := g.CreateOrder(context.Background(), CreateOrderRequest{OrderID: "o"})
		assert.ErrorIs(t, err, circuitbreaker.ErrUnavailable)
		assert.Equal(t, 2, stub.calls, "при открытом breaker шлюз не вызывается")
	})

	t.Run("4xx не открывают breaker", func(t *testing.T) {
		stub := &stubProvider{createErr: &APIError{StatusCode: http.StatusBadRequest}}
		g := NewGuarded(stub, circuitbreaker.NewWithSettings("client", breakerSettings()))

		for range 4 {
			_, err := g.CreateOrder(context.Background(), CreateOrderRequest{OrderID: "o"})
			assert.True(t, IsClientError(err))
		}
		assert.Equal(t, 4, stub.calls)
	})
}
