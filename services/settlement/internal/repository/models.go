// Package repository содержит GORM реализацию хранилищ Settlement Service.
package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"example.com/settlement/services/settlement/internal/domain"
)

// =============================================================================
// Заказы
// =============================================================================

// OrderModel — GORM модель для таблицы orders.
type OrderModel struct {
	ID              string                 `gorm:"column:id;type:varchar(36);primaryKey"`
	UserID          string                 `gorm:"column:user_id;type:varchar(36);not null;index"`
	TotalAmount     decimal.Decimal        `gorm:"column:total_amount;type:decimal(12,2);not null"`
	Status          string                 `gorm:"column:status;type:varchar(20);not null;index:idx_orders_sweep,priority:2"`
	PaymentStatus   string                 `gorm:"column:payment_status;type:varchar(20);not null;index:idx_orders_sweep,priority:1"`
	PaymentMethod   string                 `gorm:"column:payment_method;type:varchar(20);not null"`
	ShippingAddress domain.ShippingAddress `gorm:"column:shipping_address;type:json;serializer:json"`
	CouponID        *string                `gorm:"column:coupon_id;type:varchar(36);index"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime;index:idx_orders_sweep,priority:3"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
	Items           []OrderItemModel       `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName возвращает имя таблицы в БД.
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel — GORM модель для таблицы order_items.
type OrderItemModel struct {
	ID              string          `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID         string          `gorm:"column:order_id;type:varchar(36);not null;index"`
	ProductID       string          `gorm:"column:product_id;type:varchar(36);not null"`
	ProductName     string          `gorm:"column:product_name;type:varchar(255);not null"`
	Quantity        int             `gorm:"column:quantity;not null"`
	PriceAtPurchase decimal.Decimal `gorm:"column:price_at_purchase;type:decimal(12,2);not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// TableName возвращает имя таблицы в БД.
func (OrderItemModel) TableName() string {
	return "order_items"
}

func (m *OrderModel) toDomain() *domain.Order {
	o := &domain.Order{
		ID:              m.ID,
		UserID:          m.UserID,
		TotalAmount:     m.TotalAmount,
		Status:          domain.OrderStatus(m.Status),
		PaymentStatus:   domain.PaymentStatus(m.PaymentStatus),
		PaymentMethod:   domain.PaymentMethod(m.PaymentMethod),
		ShippingAddress: m.ShippingAddress,
		CouponID:        m.CouponID,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		Items:           make([]domain.OrderItem, len(m.Items)),
	}
	for i, item := range m.Items {
		o.Items[i] = domain.OrderItem{
			ID:              item.ID,
			OrderID:         item.OrderID,
			ProductID:       item.ProductID,
			ProductName:     item.ProductName,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase,
		}
	}
	return o
}

func orderModelFromDomain(o *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:              o.ID,
		UserID:          o.UserID,
		TotalAmount:     o.TotalAmount,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		PaymentMethod:   string(o.PaymentMethod),
		ShippingAddress: o.ShippingAddress,
		CouponID:        o.CouponID,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           make([]OrderItemModel, len(o.Items)),
	}
	for i, item := range o.Items {
		m.Items[i] = OrderItemModel{
			ID:              item.ID,
			OrderID:         o.ID,
			ProductID:       item.ProductID,
			ProductName:     item.ProductName,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase,
		}
	}
	return m
}

// =============================================================================
// Каталог
// =============================================================================

// ProductModel — GORM модель для таблицы products (только чтение).
type ProductModel struct {
	ID        string              `gorm:"column:id;type:varchar(36);primaryKey"`
	Name      string              `gorm:"column:name;type:varchar(255);not null"`
	Price     decimal.NullDecimal `gorm:"column:price;type:decimal(12,2)"`
	SalePrice decimal.NullDecimal `gorm:"column:sale_price;type:decimal(12,2)"`
	OnSale    bool                `gorm:"column:on_sale;not null;default:false"`
	Stock     int                 `gorm:"column:stock;not null;default:0"`
}

// TableName возвращает имя таблицы в БД.
func (ProductModel) TableName() string {
	return "products"
}

func (m *ProductModel) toDomain() *domain.Product {
	return &domain.Product{
		ID:        m.ID,
		Name:      m.Name,
		Price:     m.Price,
		SalePrice: m.SalePrice,
		OnSale:    m.OnSale,
		Stock:     m.Stock,
	}
}

// =============================================================================
// Купоны
// =============================================================================

// CouponModel — GORM модель для таблицы coupons.
type CouponModel struct {
	ID                string              `gorm:"column:id;type:varchar(36);primaryKey"`
	Code              string              `gorm:"column:code;type:varchar(64);not null;uniqueIndex"`
	DiscountType      string              `gorm:"column:discount_type;type:varchar(20);not null"`
	DiscountValue     decimal.Decimal     `gorm:"column:discount_value;type:decimal(12,2);not null"`
	UsageLimit        *int                `gorm:"column:usage_limit"`
	UsedCount         int                 `gorm:"column:used_count;not null;default:0"`
	MinPurchaseAmount decimal.Decimal     `gorm:"column:min_purchase_amount;type:decimal(12,2);not null;default:0"`
	MaxDiscountAmount decimal.NullDecimal `gorm:"column:max_discount_amount;type:decimal(12,2)"`
	ExpiresAt         *time.Time          `gorm:"column:expires_at"`
	IsActive          bool                `gorm:"column:is_active;not null;default:true"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (CouponModel) TableName() string {
	return "coupons"
}

func (m *CouponModel) toDomain() *domain.Coupon {
	c := &domain.Coupon{
		ID:                m.ID,
		Code:              m.Code,
		DiscountType:      domain.DiscountType(m.DiscountType),
		DiscountValue:     m.DiscountValue,
		UsageLimit:        m.UsageLimit,
		UsedCount:         m.UsedCount,
		MinPurchaseAmount: m.MinPurchaseAmount,
		ExpiresAt:         m.ExpiresAt,
		IsActive:          m.IsActive,
	}
	if m.MaxDiscountAmount.Valid {
		maxDiscount := m.MaxDiscountAmount.Decimal
		c.MaxDiscountAmount = &maxDiscount
	}
	return c
}

// =============================================================================
// Партнёры и комиссии
// =============================================================================

// AffiliateModel — GORM модель для таблицы affiliates.
type AffiliateModel struct {
	ID             string          `gorm:"column:id;type:varchar(36);primaryKey"`
	UserID         string          `gorm:"column:user_id;type:varchar(36);not null;index"`
	CouponID       string          `gorm:"column:coupon_id;type:varchar(36);not null;uniqueIndex"`
	CommissionRate decimal.Decimal `gorm:"column:commission_rate;type:decimal(5,2);not null"`
	TotalEarnings  decimal.Decimal `gorm:"column:total_earnings;type:decimal(14,2);not null;default:0"`
	PayoutInfo     []byte          `gorm:"column:payout_info;type:json"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (AffiliateModel) TableName() string {
	return "affiliates"
}

func (m *AffiliateModel) toDomain() *domain.Affiliate {
	return &domain.Affiliate{
		ID:             m.ID,
		UserID:         m.UserID,
		CouponID:       m.CouponID,
		CommissionRate: m.CommissionRate,
		TotalEarnings:  m.TotalEarnings,
		PayoutInfo:     m.PayoutInfo,
	}
}

// AffiliateCommissionModel — GORM модель для таблицы affiliate_commissions.
// Уникальный индекс (affiliate_id, order_id) гарантирует одно начисление на заказ.
type AffiliateCommissionModel struct {
	ID          string          `gorm:"column:id;type:varchar(36);primaryKey"`
	AffiliateID string          `gorm:"column:affiliate_id;type:varchar(36);not null;uniqueIndex:idx_affiliate_commission_unique,priority:1"`
	OrderID     string          `gorm:"column:order_id;type:varchar(36);not null;uniqueIndex:idx_affiliate_commission_unique,priority:2"`
	Amount      decimal.Decimal `gorm:"column:amount;type:decimal(12,2);not null"`
	RateApplied decimal.Decimal `gorm:"column:rate_applied;type:decimal(5,2);not null"`
	Status      string          `gorm:"column:status;type:varchar(20);not null;index"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (AffiliateCommissionModel) TableName() string {
	return "affiliate_commissions"
}

// =============================================================================
// Профили
// =============================================================================

// ProfileModel — GORM модель для таблицы profiles.
type ProfileModel struct {
	ID        string    `gorm:"column:id;type:varchar(36);primaryKey"`
	Email     string    `gorm:"column:email;type:varchar(255)"`
	Phone     string    `gorm:"column:phone;type:varchar(32)"`
	Name      string    `gorm:"column:name;type:varchar(255)"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (ProfileModel) TableName() string {
	return "profiles"
}

// isDuplicateKeyError проверяет нарушение уникального ключа MySQL (1062).
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "1062")
}
