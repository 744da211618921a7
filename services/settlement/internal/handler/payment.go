package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"example.com/settlement/pkg/logger"
	"example.com/settlement/services/settlement/internal/domain"
	"example.com/settlement/services/settlement/internal/gateway"
)

// maxWebhookBody — ограничение размера тела webhook.
const maxWebhookBody = 1 << 20

// PaymentHandler — проверка оплаты и webhook шлюза.
type PaymentHandler struct {
	service PaymentService
	parser  gateway.WebhookParser
}

// NewPaymentHandler создаёт PaymentHandler. parser может быть nil — тогда webhook отключён.
func NewPaymentHandler(service PaymentService, parser gateway.WebhookParser) *PaymentHandler {
	return &PaymentHandler{service: service, parser: parser}
}

// VerifyResponse — статус оплаты заказа.
type VerifyResponse struct {
	OrderID           string     `json:"order_id"`
	Status            string     `json:"status"`
	OrderStatus       string     `json:"order_status"`
	PaymentStatus     string     `json:"payment_status"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
}

// WebhookResponse — подтверждение приёма webhook.
type WebhookResponse struct {
	Status string `json:"status"`
}

// Verify сверяет оплату заказа текущего пользователя.
// GET /api/v1/payment/verify?order_id=...
func (h *PaymentHandler) Verify(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	orderID := c.Query("order_id")
	if orderID == "" {
		badRequest(c, "Не указан order_id")
		return
	}

	result, err := h.service.Verify(c.Request.Context(), userID, orderID)
	if err != nil {
		HandleError(c, err, "Verify")
		return
	}

	c.JSON(http.StatusOK, VerifyResponse{
		OrderID:           result.OrderID,
		Status:            string(result.Status),
		OrderStatus:       string(result.OrderStatus),
		PaymentStatus:     string(result.PaymentStatus),
		EstimatedDelivery: result.EstimatedDelivery,
	})
}

// Webhook принимает уведомление шлюза и запускает ту же сверку, что и Verify.
// Шлюз повторяет доставку при не-2xx ответе, поэтому уведомления без заказа
// и по неизвестным заказам подтверждаются со статусом ignored.
// POST /api/v1/payment/webhook
func (h *PaymentHandler) Webhook(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	if h.parser == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Webhook не настроен"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		badRequest(c, "Не удалось прочитать тело запроса")
		return
	}

	orderID, err := h.parser.ParseWebhook(c.Request.Header, body)
	switch {
	case errors.Is(err, gateway.ErrInvalidSignature):
		log.Warn().Str("client_ip", c.ClientIP()).Msg("Webhook с неверной подписью")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_signature", Message: err.Error()})
		return
	case errors.Is(err, gateway.ErrNoOrderID):
		c.JSON(http.StatusOK, WebhookResponse{Status: "ignored"})
		return
	case err != nil:
		log.Warn().Err(err).Msg("Некорректный webhook")
		badRequest(c, "Некорректное уведомление")
		return
	}

	ctx = logger.WithOrderID(ctx, orderID)
	result, err := h.service.Reconcile(ctx, orderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		log.Warn().Str("order_id", orderID).Msg("Webhook по неизвестному заказу")
		c.JSON(http.StatusOK, WebhookResponse{Status: "ignored"})
		return
	}
	if err != nil {
		HandleError(c, err, "Webhook")
		return
	}

	c.JSON(http.StatusOK, WebhookResponse{Status: string(result.Status)})
}
