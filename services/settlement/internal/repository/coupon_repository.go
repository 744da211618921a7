package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"example.com/settlement/services/settlement/internal/domain"
)

// CouponRepository — чтение купонов и учёт использований.
type CouponRepository interface {
	GetByID(ctx context.Context, couponID string) (*domain.Coupon, error)

	// GetByCode ищет купон по нормализованному коду.
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)

	// IncrementUsage увеличивает used_count на единицу, не превышая usage_limit.
	IncrementUsage(ctx context.Context, couponID string) error
}

type couponRepository struct {
	db *gorm.DB
}

// NewCouponRepository создаёт репозиторий купонов.
func NewCouponRepository(db *gorm.DB) CouponRepository {
	return &couponRepository{db: db}
}

func (r *couponRepository) GetByID(ctx context.Context, couponID string) (*domain.Coupon, error) {
	return r.first(ctx, "id = ?", couponID)
}

func (r *couponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	return r.first(ctx, "code = ?", domain.NormalizeCouponCode(code))
}

func (r *couponRepository) first(ctx context.Context, query string, arg any) (*domain.Coupon, error) {
	var model CouponModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCouponNotFound
		}
		return nil, err
	}
	return model.toDomain(), nil
}

// IncrementUsage — условный UPDATE, used_count никогда не превышает usage_limit.
func (r *couponRepository) IncrementUsage(ctx context.Context, couponID string) error {
	result := r.db.WithContext(ctx).
		Model(&CouponModel{}).
		Where("id = ? AND (usage_limit IS NULL OR used_count < usage_limit)", couponID).
		UpdateColumn("used_count", gorm.Expr("used_count + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrCouponExhausted
	}
	return nil
}
