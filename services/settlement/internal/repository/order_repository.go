package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"example.com/settlement/services/settlement/internal/domain"
)

// OrderRepository определяет интерфейс для работы с заказами в БД.
type OrderRepository interface {
	// Create сохраняет заказ и его позиции в одной транзакции.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID возвращает заказ с позициями.
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)

	// TransitionPayment атомарно меняет пару (status, payment_status), только если
	// текущий payment_status равен from. Иначе возвращает ErrPaymentAlreadySettled.
	TransitionPayment(ctx context.Context, orderID string, from domain.PaymentStatus, status domain.OrderStatus, to domain.PaymentStatus) error

	// ConfirmCOD переводит COD заказ из pending в processing.
	// Возвращает false, если заказ уже был подтверждён другим вызовом.
	ConfirmCOD(ctx context.Context, orderID string) (bool, error)

	// ListStalePending возвращает заказы в ожидании (онлайн и COD), созданные раньше olderThan.
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error)
}

// orderRepository — GORM реализация OrderRepository.
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create сохраняет заказ и позиции. Частичный заказ в БД не остаётся.
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	model := orderModelFromDomain(order)
	items := model.Items
	model.Items = nil

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return fmt.Errorf("ошибка создания заказа: %w", err)
		}
		if len(items) == 0 {
			return nil
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("ошибка создания позиций заказа: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	order.CreatedAt = model.CreatedAt
	order.UpdatedAt = model.UpdatedAt
	return nil
}

// GetByID возвращает заказ с позициями.
func (r *orderRepository) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	var model OrderModel

	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", orderID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	return model.toDomain(), nil
}

// TransitionPayment — compare-and-set по payment_status.
// Условие payment_status = from исключает откат succeeded при гонке сверок.
func (r *orderRepository) TransitionPayment(
	ctx context.Context,
	orderID string,
	from domain.PaymentStatus,
	status domain.OrderStatus,
	to domain.PaymentStatus,
) error {
	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ? AND payment_status = ? AND payment_status <> ?", orderID, string(from), string(domain.PaymentStatusSucceeded)).
		Updates(map[string]any{
			"status":         string(status),
			"payment_status": string(to),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrPaymentAlreadySettled
	}
	return nil
}

// ConfirmCOD переводит заказ pending → processing одним UPDATE.
func (r *orderRepository) ConfirmCOD(ctx context.Context, orderID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ? AND payment_method = ? AND status = ?", orderID, string(domain.PaymentMethodCOD), string(domain.OrderStatusPending)).
		Update("status", string(domain.OrderStatusProcessing))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListStalePending возвращает самые старые заказы в статусе pending.
// COD заказы тоже попадают в выборку: их подтверждает Sweeper, если клиент не опрашивает статус.
func (r *orderRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error) {
	var models []OrderModel

	err := r.db.WithContext(ctx).
		Where("payment_status = ? AND status = ? AND created_at < ?",
			string(domain.PaymentStatusPending), string(domain.OrderStatusPending), olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	orders := make([]*domain.Order, len(models))
	for i := range models {
		orders[i] = models[i].toDomain()
	}
	return orders, nil
}
