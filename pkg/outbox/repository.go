package outbox

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrOutboxNotFound — запись outbox не найдена.
var ErrOutboxNotFound = errors.New("запись outbox не найдена")

// Repository определяет методы работы с outbox.
type Repository interface {
	// Create сохраняет новую запись.
	Create(ctx context.Context, record *Outbox) error

	// GetUnprocessed возвращает неотправленные записи, сначала с меньшим числом попыток.
	GetUnprocessed(ctx context.Context, limit int) ([]*Outbox, error)

	// MarkProcessed помечает запись как отправленную.
	MarkProcessed(ctx context.Context, id string) error

	// MarkFailed увеличивает счётчик попыток и сохраняет текст ошибки.
	MarkFailed(ctx context.Context, id string, err error) error

	// DeleteProcessedBefore удаляет отправленные записи старше before.
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}

// repository — GORM реализация Repository, ограниченная одним типом агрегата.
type repository struct {
	db            *gorm.DB
	aggregateType string
}

// NewRepository создаёт репозиторий outbox для указанного типа агрегата.
func NewRepository(db *gorm.DB, aggregateType string) Repository {
	return &repository{db: db, aggregateType: aggregateType}
}

func (r *repository) Create(ctx context.Context, record *Outbox) error {
	if record.AggregateType == "" {
		record.AggregateType = r.aggregateType
	}
	model := newModel(record)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	record.CreatedAt = model.CreatedAt
	return nil
}

func (r *repository) GetUnprocessed(ctx context.Context, limit int) ([]*Outbox, error) {
	var models []Model

	if err := r.db.WithContext(ctx).
		Where("processed_at IS NULL AND aggregate_type = ?", r.aggregateType).
		Order("retry_count ASC, created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	result := make([]*Outbox, len(models))
	for i := range models {
		result[i] = models[i].record()
	}
	return result, nil
}

func (r *repository) MarkProcessed(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&Model{}).
		Where("id = ?", id).
		Update("processed_at", time.Now())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOutboxNotFound
	}
	return nil
}

func (r *repository) MarkFailed(ctx context.Context, id string, err error) error {
	result := r.db.WithContext(ctx).Model(&Model{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"retry_count": gorm.Expr("retry_count + 1"),
			"last_error":  err.Error(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOutboxNotFound
	}
	return nil
}

// DeleteProcessedBefore удаляет пачками по 1000, чтобы не держать длинные блокировки.
func (r *repository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("processed_at IS NOT NULL AND processed_at < ? AND aggregate_type = ?", before, r.aggregateType).
		Limit(1000).
		Delete(&Model{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
