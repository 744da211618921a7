// Package commission начисляет партнёрские комиссии по оплаченным заказам.
package commission

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"example.com/settlement/pkg/logger"
	"example.com/settlement/pkg/metrics"
	"example.com/settlement/pkg/money"
	"example.com/settlement/services/settlement/internal/domain"
	"example.com/settlement/services/settlement/internal/repository"
)

// Outcome — результат попытки начисления.
type Outcome string

const (
	OutcomeRecorded    Outcome = "recorded"
	OutcomeNoCoupon    Outcome = "no_coupon"
	OutcomeNoAffiliate Outcome = "no_affiliate"
	OutcomeNonPositive Outcome = "non_positive"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeError       Outcome = "error"
)

// Ledger — журнал комиссий.
type Ledger struct {
	affiliates repository.AffiliateRepository
}

// NewLedger создаёт Ledger.
func NewLedger(affiliates repository.AffiliateRepository) *Ledger {
	return &Ledger{affiliates: affiliates}
}

// Compute возвращает комиссию: floor(net * rate / 100), затем округление до целого.
func Compute(netSale, rate decimal.Decimal) decimal.Decimal {
	return money.FloorThenRound(money.Percent(netSale, rate))
}

// Attribute начисляет комиссию партнёру, чей купон использован в заказе.
// Повторный вызов для того же заказа ничего не меняет (OutcomeDuplicate).
func (l *Ledger) Attribute(ctx context.Context, order *domain.Order) (outcome Outcome, err error) {
	defer func() {
		if err != nil {
			outcome = OutcomeError
		}
		metrics.CommissionsTotal.WithLabelValues(string(outcome)).Inc()
	}()

	if !order.HasCoupon() {
		return OutcomeNoCoupon, nil
	}

	log := logger.FromContext(ctx).With().Str("order_id", order.ID).Str("coupon_id", *order.CouponID).Logger()

	affiliate, err := l.affiliates.GetByCouponID(ctx, *order.CouponID)
	if errors.Is(err, domain.ErrAffiliateNotFound) {
		return OutcomeNoAffiliate, nil
	}
	if err != nil {
		return "", fmt.Errorf("ошибка поиска партнёра: %w", err)
	}

	netSale := order.NetSale()
	if !netSale.IsPositive() {
		return OutcomeNonPositive, nil
	}

	amount := Compute(netSale, affiliate.CommissionRate)
	if !amount.IsPositive() {
		return OutcomeNonPositive, nil
	}

	record := &domain.AffiliateCommission{
		ID:          uuid.New().String(),
		AffiliateID: affiliate.ID,
		OrderID:     order.ID,
		Amount:      amount,
		RateApplied: affiliate.CommissionRate,
		Status:      domain.CommissionStatusPending,
	}
	if err := l.affiliates.CreateCommission(ctx, record); err != nil {
		if errors.Is(err, domain.ErrCommissionExists) {
			log.Debug().Str("affiliate_id", affiliate.ID).Msg("Комиссия по заказу уже начислена")
			return OutcomeDuplicate, nil
		}
		return "", fmt.Errorf("ошибка записи комиссии: %w", err)
	}

	if err := l.affiliates.AddEarnings(ctx, affiliate.ID, amount); err != nil {
		return "", fmt.Errorf("ошибка обновления заработка партнёра: %w", err)
	}

	log.Info().
		Str("affiliate_id", affiliate.ID).
		Str("amount", amount.String()).
		Str("rate", affiliate.CommissionRate.String()).
		Msg("Начислена партнёрская комиссия")

	return OutcomeRecorded, nil
}
