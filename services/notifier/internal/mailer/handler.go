package mailer

import (
	"context"
	"fmt"

	"example.com/settlement/pkg/events"
	"example.com/settlement/pkg/kafka"
	"example.com/settlement/pkg/logger"
	"example.com/settlement/pkg/metrics"
)

// Handler обрабатывает сообщения топика уведомлений.
type Handler struct {
	renderer *Renderer
	sender   Sender
}

// NewHandler создаёт обработчик.
func NewHandler(renderer *Renderer, sender Sender) *Handler {
	return &Handler{renderer: renderer, sender: sender}
}

// Handle разбирает событие, рендерит и отправляет письмо.
// Ошибка возвращается только если повтор имеет смысл (или сообщение должно уйти в DLQ).
func (h *Handler) Handle(ctx context.Context, msg *kafka.Message) error {
	n, err := events.OrderNotificationFromJSON(msg.Value)
	if err != nil {
		metrics.NotificationsSent.WithLabelValues("invalid").Inc()
		return err
	}

	ctx = logger.WithOrderID(ctx, n.OrderID)
	log := logger.FromContext(ctx)

	if n.Type != events.EventOrderConfirmed {
		log.Debug().Str("type", string(n.Type)).Msg("Неизвестный тип события, пропускаем")
		metrics.NotificationsSent.WithLabelValues("skipped").Inc()
		return nil
	}
	if n.Email == "" {
		log.Warn().Msg("В событии нет email получателя, письмо не отправлено")
		metrics.NotificationsSent.WithLabelValues("skipped").Inc()
		return nil
	}

	letter, err := h.renderer.Render(n)
	if err != nil {
		metrics.NotificationsSent.WithLabelValues("error").Inc()
		return fmt.Errorf("ошибка рендеринга письма: %w", err)
	}

	if err := h.sender.Send(ctx, letter); err != nil {
		log.Error().Err(err).Msg("Ошибка отправки письма")
		metrics.NotificationsSent.WithLabelValues("error").Inc()
		return err
	}

	log.Info().Str("to", n.Email).Msg("Письмо о заказе отправлено")
	metrics.NotificationsSent.WithLabelValues("ok").Inc()
	return nil
}
