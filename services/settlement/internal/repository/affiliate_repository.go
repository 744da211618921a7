package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"example.com/settlement/services/settlement/internal/domain"
)

// AffiliateRepository — партнёры и журнал комиссий.
type AffiliateRepository interface {
	// GetByCouponID возвращает партнёра, за которым закреплён купон.
	GetByCouponID(ctx context.Context, couponID string) (*domain.Affiliate, error)

	// CreateCommission добавляет начисление. Повтор по (affiliate_id, order_id)
	// возвращает ErrCommissionExists.
	CreateCommission(ctx context.Context, c *domain.AffiliateCommission) error

	// AddEarnings увеличивает total_earnings партнёра.
	AddEarnings(ctx context.Context, affiliateID string, amount decimal.Decimal) error

	// ListCommissionsByOrder возвращает начисления по заказу.
	ListCommissionsByOrder(ctx context.Context, orderID string) ([]*domain.AffiliateCommission, error)
}

type affiliateRepository struct {
	db *gorm.DB
}

// NewAffiliateRepository создаёт репозиторий партнёров.
func NewAffiliateRepository(db *gorm.DB) AffiliateRepository {
	return &affiliateRepository{db: db}
}

func (r *affiliateRepository) GetByCouponID(ctx context.Context, couponID string) (*domain.Affiliate, error) {
	var model AffiliateModel
	if err := r.db.WithContext(ctx).Where("coupon_id = ?", couponID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAffiliateNotFound
		}
		return nil, err
	}
	return model.toDomain(), nil
}

func (r *affiliateRepository) CreateCommission(ctx context.Context, c *domain.AffiliateCommission) error {
	model := &AffiliateCommissionModel{
		ID:          c.ID,
		AffiliateID: c.AffiliateID,
		OrderID:     c.OrderID,
		Amount:      c.Amount,
		RateApplied: c.RateApplied,
		Status:      string(c.Status),
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKeyError(err) {
			return domain.ErrCommissionExists
		}
		return err
	}

	c.CreatedAt = model.CreatedAt
	return nil
}

// AddEarnings прибавляет сумму на стороне БД одним UPDATE.
func (r *affiliateRepository) AddEarnings(ctx context.Context, affiliateID string, amount decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&AffiliateModel{}).
		Where("id = ?", affiliateID).
		UpdateColumn("total_earnings", gorm.Expr("total_earnings + ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrAffiliateNotFound
	}
	return nil
}

func (r *affiliateRepository) ListCommissionsByOrder(ctx context.Context, orderID string) ([]*domain.AffiliateCommission, error) {
	var models []AffiliateCommissionModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&models).Error; err != nil {
		return nil, err
	}

	result := make([]*domain.AffiliateCommission, len(models))
	for i, m := range models {
		result[i] = &domain.AffiliateCommission{
			ID:          m.ID,
			AffiliateID: m.AffiliateID,
			OrderID:     m.OrderID,
			Amount:      m.Amount,
			RateApplied: m.RateApplied,
			Status:      domain.CommissionStatus(m.Status),
			CreatedAt:   m.CreatedAt,
		}
	}
	return result, nil
}
