package coupon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/settlement/services/settlement/internal/domain"
	"example.com/settlement/services/settlement/internal/testutil"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func newEvaluator(coupons ...domain.Coupon) *Evaluator {
	return NewEvaluator(testutil.NewCouponStore(coupons...)).WithClock(func() time.Time { return now })
}

func TestEvaluator_Scenarios(t *testing.T) {
	t.Run("10% с ограничением 50 от 1000", func(t *testing.T) {
		e := newEvaluator(domain.Coupon{
			ID: "c-10", Code: "TEN", DiscountType: domain.DiscountTypePercentage,
			DiscountValue: dec("10"), MaxDiscountAmount: ptr(dec("50")), IsActive: true,
		})

		d, err := e.Evaluate(context.Background(), Ref{ID: "c-10"}, dec("1000"))
		require.NoError(t, err)
		assert.True(t, d.Applied())
		assert.Equal(t, "c-10", *d.CouponID)
		assert.True(t, d.Discount.Equal(dec("50")))
	})

	t.Run("фиксированная 200 при сумме 150 не ограничивается", func(t *testing.T) {
		e := newEvaluator(domain.Coupon{
			ID: "c-200", Code: "FLAT200", DiscountType: domain.DiscountTypeFixed,
			DiscountValue: dec("200"), IsActive: true,
		})

		d, err := e.Evaluate(context.Background(), Ref{Code: " flat200 "}, dec("150"))
		require.NoError(t, err)
		assert.True(t, d.Applied())
		assert.True(t, d.Discount.Equal(dec("200")))
	})
}

func TestEvaluator_Rejections(t *testing.T) {
	base := domain.Coupon{
		ID: "c-1", Code: "SAVE", DiscountType: domain.DiscountTypePercentage,
		DiscountValue: dec("10"), IsActive: true,
	}

	tests := []struct {
		name       string
		mutate     func(c *domain.Coupon)
		ref        Ref
		wantReason string
	}{
		{name: "не указан", mutate: func(*domain.Coupon) {}, ref: Ref{}, wantReason: ReasonNone},
		{name: "не найден", mutate: func(*domain.Coupon) {}, ref: Ref{ID: "missing"}, wantReason: ReasonNotFound},
		{name: "неактивен", mutate: func(c *domain.Coupon) { c.IsActive = false }, ref: Ref{ID: "c-1"}, wantReason: ReasonInactive},
		{name: "истёк", mutate: func(c *domain.Coupon) { c.ExpiresAt = ptr(now.Add(-time.Minute)) }, ref: Ref{ID: "c-1"}, wantReason: ReasonExpired},
		{name: "истекает ровно сейчас", mutate: func(c *domain.Coupon) { c.ExpiresAt = ptr(now) }, ref: Ref{ID: "c-1"}, wantReason: ReasonExpired},
		{name: "лимит исчерпан", mutate: func(c *domain.Coupon) { c.UsageLimit = ptr(5); c.UsedCount = 5 }, ref: Ref{ID: "c-1"}, wantReason: ReasonExhausted},
		{name: "сумма меньше минимальной", mutate: func(c *domain.Coupon) { c.MinPurchaseAmount = dec("1000.01") }, ref: Ref{ID: "c-1"}, wantReason: ReasonMinPurchase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)

			d, err := newEvaluator(c).Evaluate(context.Background(), tt.ref, dec("1000"))
			require.NoError(t, err)
			assert.False(t, d.Applied())
			assert.True(t, d.Discount.IsZero())
			assert.Equal(t, tt.wantReason, d.Reason)
		})
	}
}

func TestEvaluator_Accepts(t *testing.T) {
	c := domain.Coupon{
		ID: "c-1", Code: "SAVE", DiscountType: domain.DiscountTypePercentage, DiscountValue: dec("10"),
		IsActive: true, UsageLimit: ptr(5), UsedCount: 4,
		MinPurchaseAmount: dec("1000"), ExpiresAt: ptr(now.Add(time.Hour)),
	}

	d, err := newEvaluator(c).Evaluate(context.Background(), Ref{ID: "c-1"}, dec("1000"))
	require.NoError(t, err)
	assert.True(t, d.Applied(), "сумма равна минимальной, до истечения час, осталось одно использование")
	assert.True(t, d.Discount.Equal(dec("100")))
}

func TestEvaluator_StoreError(t *testing.T) {
	store := testutil.NewCouponStore()
	store.GetErr = errors.New("too many connections")

	_, err := NewEvaluator(store).Evaluate(context.Background(), Ref{ID: "c-1"}, dec("100"))
	assert.Error(t, err)
}

func TestDiscount(t *testing.T) {
	assert.Equal(t, "33.33", Discount(&domain.Coupon{
		DiscountType: domain.DiscountTypePercentage, DiscountValue: dec("33.333"),
	}, dec("100")).String())

	assert.True(t, Discount(&domain.Coupon{DiscountType: "bogus", DiscountValue: dec("5")}, dec("100")).IsZero())
}
