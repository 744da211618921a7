package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Affiliate — партнёр, привязанный к купону (1:1).
type Affiliate struct {
	ID             string
	UserID         string
	CouponID       string
	CommissionRate decimal.Decimal // процент
	TotalEarnings  decimal.Decimal
	PayoutInfo     []byte // непрозрачные реквизиты (JSON)
}

// CommissionStatus — статус начисления.
type CommissionStatus string

const (
	CommissionStatusPending   CommissionStatus = "pending"
	CommissionStatusPaid      CommissionStatus = "paid"
	CommissionStatusCancelled CommissionStatus = "cancelled"
)

// AffiliateCommission — одно начисление комиссии.
// Уникально по паре (AffiliateID, OrderID).
type AffiliateCommission struct {
	ID          string
	AffiliateID string
	OrderID     string
	Amount      decimal.Decimal
	RateApplied decimal.Decimal
	Status      CommissionStatus
	CreatedAt   time.Time
}
