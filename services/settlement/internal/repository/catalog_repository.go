package repository

import (
	"context"

	"gorm.io/gorm"

	"example.com/settlement/services/settlement/internal/domain"
)

// CatalogRepository — доступ к каталогу товаров только на чтение.
type CatalogRepository interface {
	// GetByIDs возвращает найденные товары. Отсутствующие id просто не попадают в результат.
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Product, error)
}

type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository создаёт репозиторий каталога.
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var models []ProductModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}

	products := make([]*domain.Product, len(models))
	for i := range models {
		products[i] = models[i].toDomain()
	}
	return products, nil
}
