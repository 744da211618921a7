package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType — тип скидки купона.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

// Coupon — купон на скидку.
type Coupon struct {
	ID                string
	Code              string
	DiscountType      DiscountType
	DiscountValue     decimal.Decimal
	UsageLimit        *int // nil — без ограничения
	UsedCount         int
	MinPurchaseAmount decimal.Decimal
	MaxDiscountAmount *decimal.Decimal // ограничивает только процентные скидки
	ExpiresAt         *time.Time
	IsActive          bool
}

// NormalizeCouponCode приводит код купона к каноническому виду.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsExpired возвращает true, если срок действия задан и наступил.
func (c *Coupon) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// IsExhausted возвращает true, если лимит использований исчерпан.
func (c *Coupon) IsExhausted() bool {
	return c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit
}
