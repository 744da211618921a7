// Package notify ставит письма о заказе в очередь отправки.
// Письмо не отправляется синхронно: событие пишется в outbox, его публикует
// outbox.Worker, а рассылает сервис notifier.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"example.com/settlement/pkg/events"
	"example.com/settlement/pkg/logger"
	"example.com/settlement/pkg/outbox"
	"example.com/settlement/services/settlement/internal/domain"
	"example.com/settlement/services/settlement/internal/repository"
)

// ErrNoRecipient — у покупателя нет email, письмо отправить некуда.
var ErrNoRecipient = errors.New("не найден email получателя")

// Dispatcher отправляет письма по заказу.
type Dispatcher interface {
	SendOrderEmails(ctx context.Context, orderID string) error
}

// OutboxDispatcher — Dispatcher поверх таблицы outbox.
type OutboxDispatcher struct {
	orders   repository.OrderRepository
	profiles repository.ProfileRepository
	outbox   outbox.Repository
	topic    string
	currency string
}

// NewOutboxDispatcher создаёт OutboxDispatcher.
func NewOutboxDispatcher(
	orders repository.OrderRepository,
	profiles repository.ProfileRepository,
	outboxRepo outbox.Repository,
	topic, currency string,
) *OutboxDispatcher {
	return &OutboxDispatcher{
		orders:   orders,
		profiles: profiles,
		outbox:   outboxRepo,
		topic:    topic,
		currency: currency,
	}
}

// SendOrderEmails записывает событие order.confirmed со снимком заказа.
func (d *OutboxDispatcher) SendOrderEmails(ctx context.Context, orderID string) error {
	order, err := d.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("ошибка загрузки заказа: %w", err)
	}

	profile, err := d.profiles.Get(ctx, order.UserID)
	if err != nil {
		return fmt.Errorf("ошибка загрузки профиля: %w", err)
	}
	if profile == nil || profile.Email == "" {
		return ErrNoRecipient
	}

	event := buildNotification(order, profile, d.currency)

	record, err := outbox.NewRecord(ctx, events.AggregateOrder, order.ID, string(event.Type), d.topic, event)
	if err != nil {
		return err
	}
	if err := d.outbox.Create(ctx, record); err != nil {
		return fmt.Errorf("ошибка записи в outbox: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("order_id", order.ID).
		Str("outbox_id", record.ID).
		Msg("Уведомление о заказе поставлено в очередь")

	return nil
}

func buildNotification(order *domain.Order, profile *domain.Profile, currency string) *events.OrderNotification {
	name := profile.Name
	if name == "" {
		name = order.ShippingAddress.FullName
	}

	items := make([]events.OrderItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, events.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.PriceAtPurchase,
		})
	}

	b := order.ShippingAddress.Breakdown
	return &events.OrderNotification{
		Type:          events.EventOrderConfirmed,
		OrderID:       order.ID,
		UserID:        order.UserID,
		Email:         profile.Email,
		Name:          name,
		PaymentMethod: string(order.PaymentMethod),
		Subtotal:      b.Subtotal,
		Discount:      b.Discount,
		Shipping:      b.Shipping,
		Total:         order.TotalAmount,
		Currency:      currency,
		Items:         items,
		Timestamp:     time.Now().UTC(),
	}
}
