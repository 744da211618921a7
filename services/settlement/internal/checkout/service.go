// Package checkout — Order Builder: пересчёт корзины, применение купона,
// сохранение заказа и ветвление по способу оплаты.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"example.com/settlement/pkg/logger"
	"example.com/settlement/pkg/metrics"
	"example.com/settlement/pkg/money"
	"example.com/settlement/pkg/tracing"
	"example.com/settlement/services/settlement/internal/commission"
	"example.com/settlement/services/settlement/internal/coupon"
	"example.com/settlement/services/settlement/internal/domain"
	"example.com/settlement/services/settlement/internal/gateway"
	"example.com/settlement/services/settlement/internal/pricing"
	"example.com/settlement/services/settlement/internal/repository"
)

// orderIDPlaceholder подставляется в шаблон return URL.
const orderIDPlaceholder = "{order_id}"

// Customer — аутентифицированный покупатель.
type Customer struct {
	ID    string
	Email string
	Phone string
	Name  string
}

// Request — запрос на оформление заказа. Цены клиента в запрос не попадают.
type Request struct {
	Items           []pricing.CartLine
	Coupon          coupon.Ref
	ShippingAddress domain.ShippingAddress
	PaymentMethod   domain.PaymentMethod
	IdempotencyKey  string
}

// Result — результат оформления.
type Result struct {
	OrderID             string               `json:"order_id"`
	PaymentMethod       domain.PaymentMethod `json:"payment_method"`
	PaymentSessionToken string               `json:"payment_session_token,omitempty"`
	Subtotal            decimal.Decimal      `json:"subtotal"`
	Discount            decimal.Decimal      `json:"discount"`
	Shipping            decimal.Decimal      `json:"shipping"`
	Total               decimal.Decimal      `json:"total"`
	CouponApplied       bool                 `json:"coupon_applied"`
	CouponReason        string               `json:"coupon_reason,omitempty"`
	SkippedItems        []string             `json:"skipped_items,omitempty"`
	OutOfStock          []string             `json:"out_of_stock,omitempty"`
}

// Ledger начисляет партнёрскую комиссию.
type Ledger interface {
	Attribute(ctx context.Context, order *domain.Order) (commission.Outcome, error)
}

// Config — параметры оформления.
type Config struct {
	Shipping  decimal.Decimal
	Currency  string
	ReturnURL string // шаблон с {order_id}
}

// Deps — зависимости Service.
type Deps struct {
	Orders      repository.OrderRepository
	Profiles    repository.ProfileRepository
	Coupons     repository.CouponRepository
	Resolver    *pricing.Resolver
	Evaluator   *coupon.Evaluator
	Ledger      Ledger
	Gateway     gateway.Gateway
	Idempotency IdempotencyStore // nil — без идемпотентности
}

// Service — Order Builder.
type Service struct {
	deps Deps
	cfg  Config
}

// NewService создаёт Service.
func NewService(deps Deps, cfg Config) *Service {
	return &Service{deps: deps, cfg: cfg}
}

// Checkout оформляет заказ.
func (s *Service) Checkout(ctx context.Context, customer Customer, req Request) (result *Result, err error) {
	log := logger.FromContext(ctx).With().Str("user_id", customer.ID).Logger()

	method, err := domain.ParsePaymentMethod(string(req.PaymentMethod))
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "checkout.Checkout",
		attribute.String("user.id", customer.ID),
		attribute.String("payment.method", string(method)),
	)
	defer func() {
		tracing.EndSpan(span, err)
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.CheckoutTotal.WithLabelValues(string(method), outcome).Inc()
	}()

	// Идемпотентность
	reserved := false
	if req.IdempotencyKey != "" && s.deps.Idempotency != nil {
		cached, rErr := s.deps.Idempotency.Reserve(ctx, customer.ID, req.IdempotencyKey)
		switch {
		case errors.Is(rErr, domain.ErrCheckoutInProgress):
			return nil, rErr
		case rErr != nil:
			// Redis недоступен — оформляем без идемпотентности.
			log.Warn().Err(rErr).Str("idempotency_key", req.IdempotencyKey).Msg("Ключ идемпотентности не проверен")
		case cached != nil:
			log.Info().
				Str("order_id", cached.OrderID).
				Str("idempotency_key", req.IdempotencyKey).
				Msg("Возвращён существующий заказ по ключу идемпотентности")
			return cached, nil
		default:
			reserved = true
		}
	}
	if reserved {
		defer func() {
			if err != nil {
				if relErr := s.deps.Idempotency.Release(ctx, customer.ID, req.IdempotencyKey); relErr != nil {
					log.Warn().Err(relErr).Msg("Не удалось освободить ключ идемпотентности")
				}
				return
			}
			if cErr := s.deps.Idempotency.Complete(ctx, customer.ID, req.IdempotencyKey, result); cErr != nil {
				log.Warn().Err(cErr).Msg("Не удалось сохранить результат оформления")
			}
		}()
	}

	quote, err := s.deps.Resolver.Resolve(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	decision, err := s.deps.Evaluator.Evaluate(ctx, req.Coupon, quote.Subtotal)
	if err != nil {
		return nil, err
	}

	shipping := s.cfg.Shipping
	total := money.Normalize(money.NonNegative(quote.Subtotal.Sub(decision.Discount).Add(shipping)))

	// Шлюз не принимает нулевую сумму, такой заказ оформляется только с COD.
	if method == domain.PaymentMethodOnline && !total.IsPositive() {
		return nil, domain.ErrZeroOnlineTotal
	}

	s.upsertProfile(ctx, customer)

	order := buildOrder(customer.ID, method, req.ShippingAddress, quote, decision, shipping, total)
	ctx = logger.WithOrderID(ctx, order.ID)
	log = log.With().Str("order_id", order.ID).Logger()

	if err := s.deps.Orders.Create(ctx, order); err != nil {
		log.Error().Err(err).Msg("Ошибка создания заказа")
		return nil, fmt.Errorf("ошибка создания заказа: %w", err)
	}

	result = &Result{
		OrderID:       order.ID,
		PaymentMethod: method,
		Subtotal:      quote.Subtotal,
		Discount:      decision.Discount,
		Shipping:      shipping,
		Total:         total,
		CouponApplied: decision.Applied(),
		CouponReason:  decision.Reason,
		SkippedItems:  quote.Skipped,
	}
	for _, l := range quote.Lines {
		if !l.InStock {
			result.OutOfStock = append(result.OutOfStock, l.ProductID)
		}
	}

	switch method {
	case domain.PaymentMethodCOD:
		s.settleCOD(ctx, order)
	case domain.PaymentMethodOnline:
		session, gErr := s.deps.Gateway.CreateOrder(ctx, gateway.CreateOrderRequest{
			OrderID:  order.ID,
			Amount:   total,
			Currency: s.cfg.Currency,
			Customer: gateway.Customer{
				ID:    customer.ID,
				Phone: customer.Phone,
				Email: customer.Email,
				Name:  customer.Name,
			},
			ReturnURL: strings.ReplaceAll(s.cfg.ReturnURL, orderIDPlaceholder, order.ID),
		})
		if gErr != nil {
			log.Error().Err(gErr).Msg("Ошибка создания платёжной сессии")
			return nil, fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, gErr)
		}
		result.PaymentSessionToken = session.SessionToken
	}

	log.Info().
		Str("payment_method", string(method)).
		Str("total", total.String()).
		Int("items_count", len(order.Items)).
		Bool("coupon_applied", decision.Applied()).
		Msg("Заказ оформлен")

	return result, nil
}

// settleCOD — подтверждение наложенного платежа при оформлении: списание купона
// и начисление комиссии. Ошибки не отменяют уже созданный заказ.
func (s *Service) settleCOD(ctx context.Context, order *domain.Order) {
	log := logger.FromContext(ctx)

	if !order.HasCoupon() {
		return
	}

	if err := s.deps.Coupons.IncrementUsage(ctx, *order.CouponID); err != nil {
		metrics.SideEffectFailures.WithLabelValues("coupon_usage").Inc()
		log.Error().Err(err).Str("coupon_id", *order.CouponID).Msg("Ошибка списания использования купона")
	}

	if _, err := s.deps.Ledger.Attribute(ctx, order); err != nil {
		metrics.SideEffectFailures.WithLabelValues("commission").Inc()
		log.Error().Err(err).Msg("Ошибка начисления комиссии")
	}
}

// upsertProfile обновляет контакты покупателя. Ошибка не прерывает оформление.
func (s *Service) upsertProfile(ctx context.Context, c Customer) {
	err := s.deps.Profiles.Upsert(ctx, &domain.Profile{
		ID:    c.ID,
		Email: c.Email,
		Phone: c.Phone,
		Name:  c.Name,
	})
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("user_id", c.ID).Msg("Не удалось обновить профиль покупателя")
	}
}

func buildOrder(
	userID string,
	method domain.PaymentMethod,
	address domain.ShippingAddress,
	quote *pricing.Quote,
	decision coupon.Decision,
	shipping, total decimal.Decimal,
) *domain.Order {
	orderID := uuid.New().String()

	items := make([]domain.OrderItem, len(quote.Lines))
	for i, l := range quote.Lines {
		items[i] = domain.OrderItem{
			ID:              uuid.New().String(),
			OrderID:         orderID,
			ProductID:       l.ProductID,
			ProductName:     l.ProductName,
			Quantity:        l.Quantity,
			PriceAtPurchase: l.UnitPrice,
		}
	}

	address.Breakdown = domain.PriceBreakdown{
		Subtotal: quote.Subtotal,
		Discount: decision.Discount,
		Shipping: shipping,
	}

	return &domain.Order{
		ID:              orderID,
		UserID:          userID,
		TotalAmount:     total,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		PaymentMethod:   method,
		ShippingAddress: address,
		CouponID:        decision.CouponID,
		Items:           items,
	}
}
