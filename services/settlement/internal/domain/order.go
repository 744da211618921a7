// Package domain содержит бизнес-сущности и доменные ошибки Settlement Service.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus — статус исполнения заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus — статус оплаты заказа. Двигается только вперёд:
// pending → succeeded | failed.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// allowedPaymentTransitions — допустимые переходы статуса оплаты.
var allowedPaymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusSucceeded, PaymentStatusFailed},
}

// CanTransitionTo проверяет, допустим ли переход статуса оплаты.
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	for _, allowed := range allowedPaymentTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal возвращает true для succeeded и failed.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusFailed
}

// PaymentMethod — способ оплаты.
type PaymentMethod string

const (
	PaymentMethodOnline PaymentMethod = "online"
	PaymentMethodCOD    PaymentMethod = "cod"
)

// ParsePaymentMethod проверяет способ оплаты из запроса.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentMethodOnline, PaymentMethodCOD:
		return PaymentMethod(s), nil
	default:
		return "", ErrInvalidPaymentMethod
	}
}

// PriceBreakdown — снимок расчёта суммы на момент оформления.
type PriceBreakdown struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Shipping decimal.Decimal `json:"shipping"`
}

// ShippingAddress — адрес доставки со встроенной разбивкой цены.
type ShippingAddress struct {
	FullName   string         `json:"full_name"`
	Phone      string         `json:"phone"`
	Line1      string         `json:"line1"`
	Line2      string         `json:"line2,omitempty"`
	City       string         `json:"city"`
	State      string         `json:"state"`
	PostalCode string         `json:"postal_code"`
	Country    string         `json:"country"`
	Breakdown  PriceBreakdown `json:"price_breakdown"`
}

// Order — попытка покупки. Сумма всегда рассчитывается сервером.
type Order struct {
	ID              string
	UserID          string
	TotalAmount     decimal.Decimal
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	PaymentMethod   PaymentMethod
	ShippingAddress ShippingAddress
	CouponID        *string // устанавливается не более одного раза, при создании
	Items           []OrderItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsSettled возвращает true, если автоматических переходов больше не будет:
// оплата завершена (succeeded/failed) или заказ отменён.
func (o *Order) IsSettled() bool {
	return o.PaymentStatus.IsTerminal() || o.Status == OrderStatusCancelled
}

// NetSale возвращает сумму заказа без доставки.
func (o *Order) NetSale() decimal.Decimal {
	return o.TotalAmount.Sub(o.ShippingAddress.Breakdown.Shipping)
}

// HasCoupon возвращает true, если к заказу привязан купон.
func (o *Order) HasCoupon() bool {
	return o.CouponID != nil && *o.CouponID != ""
}

// OrderItem — позиция заказа с ценой, зафиксированной при оформлении.
type OrderItem struct {
	ID              string
	OrderID         string
	ProductID       string
	ProductName     string
	Quantity        int
	PriceAtPurchase decimal.Decimal
}

// LineTotal возвращает стоимость позиции.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.PriceAtPurchase.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Profile — облегчённый профиль покупателя, обновляемый при оформлении.
type Profile struct {
	ID    string
	Email string
	Phone string
	Name  string
}
