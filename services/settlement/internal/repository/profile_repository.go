package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/settlement/services/settlement/internal/domain"
)

// ProfileRepository — облегчённые профили покупателей.
type ProfileRepository interface {
	// Upsert создаёт профиль или обновляет контакты существующего.
	Upsert(ctx context.Context, p *domain.Profile) error

	// Get возвращает профиль. Отсутствие профиля — не ошибка: (nil, nil).
	Get(ctx context.Context, userID string) (*domain.Profile, error)
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository создаёт репозиторий профилей.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Upsert(ctx context.Context, p *domain.Profile) error {
	model := &ProfileModel{
		ID:    p.ID,
		Email: p.Email,
		Phone: p.Phone,
		Name:  p.Name,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "phone", "name", "updated_at"}),
		}).
		Create(model).Error
}

func (r *profileRepository) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	var model ProfileModel
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.Profile{ID: model.ID, Email: model.Email, Phone: model.Phone, Name: model.Name}, nil
}
