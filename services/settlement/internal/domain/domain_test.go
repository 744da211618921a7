package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name   string
		from   PaymentStatus
		to     PaymentStatus
		expect bool
	}{
		{"pending → succeeded", PaymentStatusPending, PaymentStatusSucceeded, true},
		{"pending → failed", PaymentStatusPending, PaymentStatusFailed, true},
		{"succeeded → failed запрещён", PaymentStatusSucceeded, PaymentStatusFailed, false},
		{"succeeded → pending запрещён", PaymentStatusSucceeded, PaymentStatusPending, false},
		{"failed → succeeded запрещён", PaymentStatusFailed, PaymentStatusSucceeded, false},
		{"pending → pending не переход", PaymentStatusPending, PaymentStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOrder_IsSettled(t *testing.T) {
	assert.False(t, (&Order{Status: OrderStatusPending, PaymentStatus: PaymentStatusPending}).IsSettled())
	assert.False(t, (&Order{Status: OrderStatusProcessing, PaymentStatus: PaymentStatusPending}).IsSettled())
	assert.True(t, (&Order{Status: OrderStatusProcessing, PaymentStatus: PaymentStatusSucceeded}).IsSettled())
	assert.True(t, (&Order{Status: OrderStatusCancelled, PaymentStatus: PaymentStatusFailed}).IsSettled())
	assert.True(t, (&Order{Status: OrderStatusCancelled, PaymentStatus: PaymentStatusPending}).IsSettled())
}

func TestOrder_NetSale(t *testing.T) {
	o := &Order{
		TotalAmount: decimal.RequireFromString("1049"),
		ShippingAddress: ShippingAddress{Breakdown: PriceBreakdown{
			Shipping: decimal.RequireFromString("49"),
		}},
	}
	assert.True(t, decimal.NewFromInt(1000).Equal(o.NetSale()))
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod("cod")
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodCOD, m)

	_, err = ParsePaymentMethod("crypto")
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

func TestProduct_UnitPrice(t *testing.T) {
	price := decimal.NewNullDecimal(decimal.RequireFromString("500"))
	sale := decimal.NewNullDecimal(decimal.RequireFromString("399"))

	tests := []struct {
		name    string
		product Product
		want    string
		ok      bool
	}{
		{"обычная цена", Product{Price: price, SalePrice: sale}, "500", true},
		{"акционная цена", Product{Price: price, SalePrice: sale, OnSale: true}, "399", true},
		{"акция без акционной цены", Product{Price: price, OnSale: true}, "0", false},
		{"цена не задана", Product{}, "0", false},
		{"отрицательная цена", Product{Price: decimal.NewNullDecimal(decimal.NewFromInt(-1))}, "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.product.UnitPrice()
			assert.Equal(t, tt.ok, ok)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got))
		})
	}
}

func TestCoupon_Rules(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	limit := 3

	assert.True(t, (&Coupon{ExpiresAt: &past}).IsExpired(now))
	assert.False(t, (&Coupon{ExpiresAt: &future}).IsExpired(now))
	assert.False(t, (&Coupon{}).IsExpired(now))

	assert.True(t, (&Coupon{UsageLimit: &limit, UsedCount: 3}).IsExhausted())
	assert.False(t, (&Coupon{UsageLimit: &limit, UsedCount: 2}).IsExhausted())
	assert.False(t, (&Coupon{UsedCount: 1000}).IsExhausted())
}

func TestNormalizeCouponCode(t *testing.T) {
	assert.Equal(t, "SAVE10", NormalizeCouponCode("  save10 "))
}
