// Package reconcile — сверка статуса оплаты заказа с платёжным шлюзом.
//
// Reconcile идемпотентен: его вызывают опрос клиента, вебхук шлюза и Sweeper,
// в том числе одновременно для одного заказа. Повторные вызовы по завершённому
// заказу не обращаются к шлюзу, переход фиксируется CAS-обновлением, а побочные
// эффекты выполняет только тот вызов, который этот переход совершил.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"example.com/settlement/pkg/logger"
	"example.com/settlement/pkg/metrics"
	"example.com/settlement/pkg/tracing"
	"example.com/settlement/services/settlement/internal/commission"
	"example.com/settlement/services/settlement/internal/domain"
	"example.com/settlement/services/settlement/internal/gateway"
	"example.com/settlement/services/settlement/internal/notify"
	"example.com/settlement/services/settlement/internal/repository"
)

// Status — нормализованный статус для клиента.
type Status string

const (
	StatusPaid         Status = "paid"
	StatusFailed       Status = "failed"
	StatusPending      Status = "pending"
	StatusCODConfirmed Status = "cod_confirmed"
)

// Result — ответ сверки.
type Result struct {
	OrderID           string               `json:"order_id"`
	Status            Status               `json:"status"`
	OrderStatus       domain.OrderStatus   `json:"order_status"`
	PaymentStatus     domain.PaymentStatus `json:"payment_status"`
	EstimatedDelivery *time.Time           `json:"estimated_delivery,omitempty"`
}

// Ledger начисляет партнёрскую комиссию.
type Ledger interface {
	Attribute(ctx context.Context, order *domain.Order) (commission.Outcome, error)
}

// Reconciler — Payment Reconciler.
type Reconciler struct {
	orders       repository.OrderRepository
	coupons      repository.CouponRepository
	gateway      gateway.Gateway
	notifier     notify.Dispatcher
	ledger       Ledger
	deliveryDays int
}

// NewReconciler создаёт Reconciler.
// deliveryDays — срок доставки для estimated_delivery (0 — не вычислять).
func NewReconciler(
	orders repository.OrderRepository,
	coupons repository.CouponRepository,
	gw gateway.Gateway,
	notifier notify.Dispatcher,
	ledger Ledger,
	deliveryDays int,
) *Reconciler {
	return &Reconciler{
		orders:       orders,
		coupons:      coupons,
		gateway:      gw,
		notifier:     notifier,
		ledger:       ledger,
		deliveryDays: deliveryDays,
	}
}

// Verify сверяет заказ пользователя. Чужой заказ — ErrOrderForbidden.
func (r *Reconciler) Verify(ctx context.Context, userID, orderID string) (*Result, error) {
	order, err := r.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrOrderForbidden
	}
	return r.reconcile(ctx, order)
}

// Reconcile сверяет заказ без проверки владельца (вебхук, Sweeper).
func (r *Reconciler) Reconcile(ctx context.Context, orderID string) (*Result, error) {
	order, err := r.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return r.reconcile(ctx, order)
}

func (r *Reconciler) reconcile(ctx context.Context, order *domain.Order) (result *Result, err error) {
	ctx = logger.WithOrderID(ctx, order.ID)
	ctx, span := tracing.StartSpan(ctx, "reconcile.Reconcile",
		attribute.String("order.id", order.ID),
		attribute.String("payment.method", string(order.PaymentMethod)),
	)
	defer func() { tracing.EndSpan(span, err) }()

	log := logger.FromContext(ctx)

	// Завершённый заказ: шлюз не опрашиваем.
	if order.IsSettled() {
		return r.result(order), nil
	}

	if order.PaymentMethod == domain.PaymentMethodCOD {
		return r.confirmCOD(ctx, order)
	}

	attempts, err := r.gateway.FetchPayments(ctx, order.ID)
	if err != nil {
		// Шлюз недоступен — остаёмся в pending, следующий вызов повторит сверку.
		log.Warn().Err(err).Msg("Не удалось получить платежи из шлюза")
		return r.result(order), nil
	}

	attempt, ok := gateway.SelectAttempt(attempts)
	if !ok {
		log.Debug().Msg("Попыток оплаты пока нет")
		return r.result(order), nil
	}

	status, paymentStatus, ok := mapAttempt(attempt.Status)
	if !ok || paymentStatus == order.PaymentStatus || order.PaymentStatus == domain.PaymentStatusSucceeded {
		return r.result(order), nil
	}

	from := order.PaymentStatus
	if err := r.orders.TransitionPayment(ctx, order.ID, from, status, paymentStatus); err != nil {
		if errors.Is(err, domain.ErrPaymentAlreadySettled) {
			// Переход уже совершил параллельный вызов — отдаём его результат.
			current, getErr := r.orders.GetByID(ctx, order.ID)
			if getErr != nil {
				return nil, getErr
			}
			return r.result(current), nil
		}
		return nil, fmt.Errorf("ошибка обновления статуса оплаты: %w", err)
	}

	metrics.PaymentTransitions.WithLabelValues(string(from), string(paymentStatus)).Inc()
	log.Info().
		Str("attempt_id", attempt.ID).
		Str("gateway_status", string(attempt.Status)).
		Str("from", string(from)).
		Str("to", string(paymentStatus)).
		Msg("Статус оплаты изменён")

	order.Status = status
	order.PaymentStatus = paymentStatus

	if paymentStatus == domain.PaymentStatusSucceeded {
		r.runEffects(ctx, order, r.couponEffect(), r.notifyEffect(), r.commissionEffect())
	}

	return r.result(order), nil
}

// confirmCOD — однократное подтверждение наложенного платежа (pending → processing).
// Купон уже списан при оформлении, поэтому здесь только письмо и комиссия.
func (r *Reconciler) confirmCOD(ctx context.Context, order *domain.Order) (*Result, error) {
	if order.Status != domain.OrderStatusPending {
		return r.result(order), nil
	}

	confirmed, err := r.orders.ConfirmCOD(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("ошибка подтверждения COD заказа: %w", err)
	}
	if !confirmed {
		current, err := r.orders.GetByID(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		return r.result(current), nil
	}

	log := logger.FromContext(ctx)
	log.Info().Msg("COD заказ подтверждён")

	order.Status = domain.OrderStatusProcessing
	r.runEffects(ctx, order, r.notifyEffect(), r.commissionEffect())

	return r.result(order), nil
}

// =============================================================================
// Побочные эффекты
// =============================================================================

// effect — независимый побочный эффект подтверждения.
type effect struct {
	name string
	run  func(ctx context.Context, order *domain.Order) error
}

func (r *Reconciler) couponEffect() effect {
	return effect{name: "coupon_usage", run: func(ctx context.Context, order *domain.Order) error {
		if !order.HasCoupon() {
			return nil
		}
		return r.coupons.IncrementUsage(ctx, *order.CouponID)
	}}
}

func (r *Reconciler) notifyEffect() effect {
	return effect{name: "notification", run: func(ctx context.Context, order *domain.Order) error {
		return r.notifier.SendOrderEmails(ctx, order.ID)
	}}
}

func (r *Reconciler) commissionEffect() effect {
	return effect{name: "commission", run: func(ctx context.Context, order *domain.Order) error {
		_, err := r.ledger.Attribute(ctx, order)
		return err
	}}
}

// runEffects выполняет эффекты по порядку. Ошибка или паника одного
// не отменяет остальные и не откатывает уже зафиксированный статус.
func (r *Reconciler) runEffects(ctx context.Context, order *domain.Order, effects ...effect) {
	for _, e := range effects {
		if err := runEffect(ctx, order, e); err != nil {
			metrics.SideEffectFailures.WithLabelValues(e.name).Inc()
			log := logger.FromContext(ctx)
			log.Error().Err(err).Str("effect", e.name).Msg("Ошибка побочного эффекта подтверждения заказа")
		}
	}
}

func runEffect(ctx context.Context, order *domain.Order, e effect) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("паника: %v", rec)
		}
	}()
	return e.run(ctx, order)
}

// =============================================================================
// Маппинг статусов
// =============================================================================

// mapAttempt переводит статус попытки шлюза во внутреннюю пару статусов.
// ok=false — попытка ещё не завершена, статус не меняется.
func mapAttempt(s gateway.AttemptStatus) (domain.OrderStatus, domain.PaymentStatus, bool) {
	switch s {
	case gateway.AttemptSuccess:
		return domain.OrderStatusProcessing, domain.PaymentStatusSucceeded, true
	case gateway.AttemptFailed, gateway.AttemptUserDropped, gateway.AttemptCancelled:
		return domain.OrderStatusCancelled, domain.PaymentStatusFailed, true
	default:
		return "", "", false
	}
}

// normalize сводит пару статусов к статусу для клиента.
func normalize(order *domain.Order) Status {
	switch {
	case order.PaymentStatus == domain.PaymentStatusSucceeded:
		return StatusPaid
	case order.PaymentStatus == domain.PaymentStatusFailed, order.Status == domain.OrderStatusCancelled:
		return StatusFailed
	case order.PaymentMethod == domain.PaymentMethodCOD && order.Status != domain.OrderStatusPending:
		return StatusCODConfirmed
	default:
		return StatusPending
	}
}

func (r *Reconciler) result(order *domain.Order) *Result {
	res := &Result{
		OrderID:       order.ID,
		Status:        normalize(order),
		OrderStatus:   order.Status,
		PaymentStatus: order.PaymentStatus,
	}
	if r.deliveryDays > 0 && (order.Status == domain.OrderStatusProcessing || order.Status == domain.OrderStatusShipped) {
		eta := order.CreatedAt.AddDate(0, 0, r.deliveryDays)
		res.EstimatedDelivery = &eta
	}
	return res
}
