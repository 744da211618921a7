package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"example.com/settlement/pkg/jwt"
	"example.com/settlement/pkg/logger"
	"example.com/settlement/services/settlement/internal/checkout"
	"example.com/settlement/services/settlement/internal/coupon"
	"example.com/settlement/services/settlement/internal/domain"
	"example.com/settlement/services/settlement/internal/middleware"
	"example.com/settlement/services/settlement/internal/pricing"
)

// HeaderIdempotencyKey — заголовок ключа идемпотентности оформления.
const HeaderIdempotencyKey = "Idempotency-Key"

// CheckoutHandler — обработчик оформления заказа.
type CheckoutHandler struct {
	service CheckoutService
}

// NewCheckoutHandler создаёт CheckoutHandler.
func NewCheckoutHandler(service CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

// === Request/Response DTOs ===

// CheckoutRequest — запрос на оформление. Цены позиций, если клиент их прислал,
// не читаются: сумма считается только по каталогу.
type CheckoutRequest struct {
	Items           []CartItemRequest `json:"items" binding:"dive"`
	CouponID        string            `json:"coupon_id"`
	CouponCode      string            `json:"coupon_code"`
	ShippingAddress AddressRequest    `json:"shipping_address"`
	PaymentMethod   string            `json:"payment_method" binding:"required"`
}

// CartItemRequest — позиция корзины.
type CartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

// AddressRequest — адрес доставки.
type AddressRequest struct {
	FullName   string `json:"full_name" binding:"required"`
	Phone      string `json:"phone" binding:"required"`
	Line1      string `json:"line1" binding:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code" binding:"required"`
	Country    string `json:"country"`
}

// CheckoutResponse — ответ на оформление.
type CheckoutResponse struct {
	OrderID             string          `json:"order_id"`
	PaymentMethod       string          `json:"payment_method"`
	PaymentSessionToken string          `json:"payment_session_token,omitempty"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	Discount            decimal.Decimal `json:"discount"`
	Shipping            decimal.Decimal `json:"shipping"`
	Total               decimal.Decimal `json:"total"`
	CouponApplied       bool            `json:"coupon_applied"`
	CouponReason        string          `json:"coupon_reason,omitempty"`
	SkippedItems        []string        `json:"skipped_items,omitempty"`
	OutOfStock          []string        `json:"out_of_stock,omitempty"`
}

// === Handlers ===

// Checkout оформляет заказ.
// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	userID, ok := getUserID(c)
	if !ok {
		return
	}

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug().Err(err).Msg("Невалидный запрос на оформление заказа")
		badRequest(c, "Невалидные данные запроса")
		return
	}

	identity, _ := c.Get(middleware.ContextIdentity)
	id, _ := identity.(jwt.Identity)
	customer := checkout.Customer{ID: userID, Email: id.Email, Phone: id.Phone, Name: id.Name}
	if customer.Name == "" {
		customer.Name = req.ShippingAddress.FullName
	}
	if customer.Phone == "" {
		customer.Phone = req.ShippingAddress.Phone
	}

	result, err := h.service.Checkout(ctx, customer, toCheckoutRequest(&req, c.GetHeader(HeaderIdempotencyKey)))
	if err != nil {
		HandleError(c, err, "Checkout")
		return
	}

	c.JSON(http.StatusCreated, CheckoutResponse{
		OrderID:             result.OrderID,
		PaymentMethod:       string(result.PaymentMethod),
		PaymentSessionToken: result.PaymentSessionToken,
		Subtotal:            result.Subtotal,
		Discount:            result.Discount,
		Shipping:            result.Shipping,
		Total:               result.Total,
		CouponApplied:       result.CouponApplied,
		CouponReason:        result.CouponReason,
		SkippedItems:        result.SkippedItems,
		OutOfStock:          result.OutOfStock,
	})
}

func toCheckoutRequest(req *CheckoutRequest, idempotencyKey string) checkout.Request {
	items := make([]pricing.CartLine, len(req.Items))
	for i, it := range req.Items {
		items[i] = pricing.CartLine{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	a := req.ShippingAddress
	return checkout.Request{
		Items:  items,
		Coupon: coupon.Ref{ID: req.CouponID, Code: req.CouponCode},
		ShippingAddress: domain.ShippingAddress{
			FullName:   a.FullName,
			Phone:      a.Phone,
			Line1:      a.Line1,
			Line2:      a.Line2,
			City:       a.City,
			State:      a.State,
			PostalCode: a.PostalCode,
			Country:    a.Country,
		},
		PaymentMethod:  domain.PaymentMethod(req.PaymentMethod),
		IdempotencyKey: idempotencyKey,
	}
}

// getUserID извлекает user_id из контекста (установлен AuthMiddleware).
func getUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.ContextUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Требуется авторизация",
		})
		return "", false
	}
	return userID, true
}
