package commission

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/settlement/services/settlement/internal/domain"
	"example.com/settlement/services/settlement/internal/testutil"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func affiliate() domain.Affiliate {
	return domain.Affiliate{ID: "aff-1", UserID: "partner", CouponID: "c-1", CommissionRate: dec("10"), TotalEarnings: decimal.Zero}
}

func order(total, shipping string, couponID *string) *domain.Order {
	return &domain.Order{
		ID:          "order-1",
		TotalAmount: dec(total),
		CouponID:    couponID,
		ShippingAddress: domain.ShippingAddress{
			Breakdown: domain.PriceBreakdown{Shipping: dec(shipping)},
		},
	}
}

func coupon(id string) *string { return &id }

func TestCompute(t *testing.T) {
	tests := []struct {
		net, rate, want string
	}{
		{"950", "10", "95"},
		{"999.99", "10", "99"},
		{"19.99", "5", "0"},
		{"1234.56", "7.5", "92"},
	}
	for _, tt := range tests {
		t.Run(tt.net+"×"+tt.rate+"%", func(t *testing.T) {
			assert.True(t, Compute(dec(tt.net), dec(tt.rate)).Equal(dec(tt.want)))
		})
	}
}

func TestLedger_Attribute(t *testing.T) {
	t.Run("комиссия начисляется с суммы без доставки", func(t *testing.T) {
		store := testutil.NewAffiliateStore(affiliate())
		l := NewLedger(store)

		outcome, err := l.Attribute(context.Background(), order("1000", "50", coupon("c-1")))
		require.NoError(t, err)
		assert.Equal(t, OutcomeRecorded, outcome)

		commissions, _ := store.ListCommissionsByOrder(context.Background(), "order-1")
		require.Len(t, commissions, 1)
		assert.True(t, commissions[0].Amount.Equal(dec("95")))
		assert.True(t, commissions[0].RateApplied.Equal(dec("10")))
		assert.Equal(t, domain.CommissionStatusPending, commissions[0].Status)
		assert.True(t, store.Earnings("aff-1").Equal(dec("95")))
	})

	t.Run("без купона", func(t *testing.T) {
		outcome, err := NewLedger(testutil.NewAffiliateStore(affiliate())).
			Attribute(context.Background(), order("1000", "0", nil))
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoCoupon, outcome)
	})

	t.Run("купон не партнёрский", func(t *testing.T) {
		outcome, err := NewLedger(testutil.NewAffiliateStore(affiliate())).
			Attribute(context.Background(), order("1000", "0", coupon("other")))
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoAffiliate, outcome)
	})

	t.Run("заказ оплачен только доставкой", func(t *testing.T) {
		store := testutil.NewAffiliateStore(affiliate())
		outcome, err := NewLedger(store).Attribute(context.Background(), order("50", "50", coupon("c-1")))
		require.NoError(t, err)
		assert.Equal(t, OutcomeNonPositive, outcome)
		assert.Zero(t, store.CommissionCount())
	})

	t.Run("комиссия меньше единицы", func(t *testing.T) {
		store := testutil.NewAffiliateStore(affiliate())
		outcome, err := NewLedger(store).Attribute(context.Background(), order("9.99", "0", coupon("c-1")))
		require.NoError(t, err)
		assert.Equal(t, OutcomeNonPositive, outcome)
		assert.Zero(t, store.CommissionCount())
	})

	t.Run("повторное начисление не меняет заработок", func(t *testing.T) {
		store := testutil.NewAffiliateStore(affiliate())
		l := NewLedger(store)
		o := order("1000", "0", coupon("c-1"))

		first, err := l.Attribute(context.Background(), o)
		require.NoError(t, err)
		second, err := l.Attribute(context.Background(), o)
		require.NoError(t, err)

		assert.Equal(t, OutcomeRecorded, first)
		assert.Equal(t, OutcomeDuplicate, second)
		assert.Equal(t, 1, store.CommissionCount())
		assert.True(t, store.Earnings("aff-1").Equal(dec("100")))
	})

	t.Run("ошибка обновления заработка возвращается", func(t *testing.T) {
		store := testutil.NewAffiliateStore(affiliate())
		store.AddEarningsErr = errors.New("lock wait timeout")

		outcome, err := NewLedger(store).Attribute(context.Background(), order("1000", "0", coupon("c-1")))
		assert.Error(t, err)
		assert.Equal(t, OutcomeError, outcome)
	})
}

func TestLedger_Attribute_Concurrent(t *testing.T) {
	store := testutil.NewAffiliateStore(affiliate())
	l := NewLedger(store)
	o := order("1000", "0", coupon("c-1"))

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Attribute(context.Background(), o)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.CommissionCount(), "одна запись комиссии при любом числе параллельных вызовов")
	assert.True(t, store.Earnings("aff-1").Equal(dec("100")))
}
