// Package coupon — проверка купона и расчёт скидки.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"example.com/settlement/pkg/logger"
	"example.com/settlement/pkg/money"
	"example.com/settlement/services/settlement/internal/domain"
	"example.com/settlement/services/settlement/internal/repository"
)

// Причины отказа в скидке.
const (
	ReasonNone        = ""
	ReasonNotFound    = "not_found"
	ReasonInactive    = "inactive"
	ReasonExpired     = "expired"
	ReasonExhausted   = "exhausted"
	ReasonMinPurchase = "min_purchase"
)

// Ref — ссылка на купон из запроса: по ID или по коду. ID приоритетнее.
type Ref struct {
	ID   string
	Code string
}

// IsEmpty сообщает, что купон не указан.
func (r Ref) IsEmpty() bool {
	return strings.TrimSpace(r.ID) == "" && strings.TrimSpace(r.Code) == ""
}

// Decision — результат проверки купона.
type Decision struct {
	CouponID *string // nil — купон к заказу не привязывается
	Discount decimal.Decimal
	Reason   string // почему скидка не применена
}

// Applied сообщает, что купон принят.
func (d Decision) Applied() bool {
	return d.CouponID != nil
}

func rejected(reason string) Decision {
	return Decision{Discount: decimal.Zero, Reason: reason}
}

// Evaluator — Coupon Evaluator.
type Evaluator struct {
	coupons repository.CouponRepository
	now     func() time.Time
}

// NewEvaluator создаёт Evaluator.
func NewEvaluator(coupons repository.CouponRepository) *Evaluator {
	return &Evaluator{coupons: coupons, now: time.Now}
}

// WithClock подменяет часы (для тестов).
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// Evaluate проверяет купон для суммы subtotal.
// Отсутствующий или неактивный купон — не ошибка: заказ оформляется без скидки.
// Ошибка хранилища возвращается, чтобы не оформить заказ дороже, чем ожидает покупатель.
func (e *Evaluator) Evaluate(ctx context.Context, ref Ref, subtotal decimal.Decimal) (Decision, error) {
	if ref.IsEmpty() {
		return rejected(ReasonNone), nil
	}

	c, err := e.load(ctx, ref)
	if errors.Is(err, domain.ErrCouponNotFound) {
		logger.Ctx(ctx).Info().Str("coupon_id", ref.ID).Str("coupon_code", ref.Code).Msg("Купон не найден, скидка не применена")
		return rejected(ReasonNotFound), nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("ошибка загрузки купона: %w", err)
	}

	if reason := e.check(c, subtotal); reason != ReasonNone {
		logger.Ctx(ctx).Info().
			Str("coupon_id", c.ID).
			Str("reason", reason).
			Msg("Купон отклонён")
		return rejected(reason), nil
	}

	id := c.ID
	return Decision{CouponID: &id, Discount: Discount(c, subtotal)}, nil
}

func (e *Evaluator) load(ctx context.Context, ref Ref) (*domain.Coupon, error) {
	if id := strings.TrimSpace(ref.ID); id != "" {
		return e.coupons.GetByID(ctx, id)
	}
	return e.coupons.GetByCode(ctx, ref.Code)
}

// check применяет правила по порядку: активность, срок, лимит, минимальная сумма.
func (e *Evaluator) check(c *domain.Coupon, subtotal decimal.Decimal) string {
	switch {
	case !c.IsActive:
		return ReasonInactive
	case c.IsExpired(e.now()):
		return ReasonExpired
	case c.IsExhausted():
		return ReasonExhausted
	case subtotal.LessThan(c.MinPurchaseAmount):
		return ReasonMinPurchase
	default:
		return ReasonNone
	}
}

// Discount считает скидку. Процентная ограничивается max_discount_amount,
// фиксированная не ограничивается суммой заказа.
func Discount(c *domain.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	switch c.DiscountType {
	case domain.DiscountTypePercentage:
		d := money.Percent(subtotal, c.DiscountValue)
		if c.MaxDiscountAmount != nil {
			d = money.CapAt(d, *c.MaxDiscountAmount)
		}
		return money.Normalize(d)
	case domain.DiscountTypeFixed:
		return c.DiscountValue
	default:
		return decimal.Zero
	}
}
