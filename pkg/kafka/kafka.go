// Package kafka — обёртки над kafka-go для доставки уведомлений о заказах.
// Producer публикует записи outbox, Consumer читает их в сервисе уведомлений.
package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/settlement/pkg/logger"
)

// Топики уведомлений.
const (
	// TopicOrderNotifications — подтверждённые заказы (settlement -> notifier).
	TopicOrderNotifications = "order.notifications"

	// dlqPrefix — префикс Dead Letter Queue: dlq.<исходный топик>.
	dlqPrefix = "dlq."
)

// Ключи headers.
const (
	HeaderTraceID       = "trace_id"
	HeaderCorrelationID = "correlation_id"
	HeaderTimestamp     = "timestamp"
	HeaderEventType     = "event_type"
)

// DLQTopic возвращает топик Dead Letter Queue для исходного топика.
func DLQTopic(topic string) string {
	return dlqPrefix + topic
}

// Config — настройки подключения к Kafka.
type Config struct {
	Brokers       []string
	ConsumerGroup string
}

// Message — сообщение Kafka с метаданными.
type Message struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Headers   map[string]string // trace_id, correlation_id, event_type
	Time      time.Time
}

func fromKafkaMessage(m kafka.Message) *Message {
	headers := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}

	return &Message{
		Key:       m.Key,
		Value:     m.Value,
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Headers:   headers,
		Time:      m.Time,
	}
}

func (m *Message) toKafkaMessage() kafka.Message {
	headers := make([]kafka.Header, 0, len(m.Headers))
	for k, v := range m.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	return kafka.Message{
		Key:     m.Key,
		Value:   m.Value,
		Topic:   m.Topic,
		Headers: headers,
		Time:    m.Time,
	}
}

// withContextHeaders дополняет headers значениями trace_id и correlation_id из ctx,
// не перезаписывая уже заданные.
func (m *Message) withContextHeaders(ctx context.Context) {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	if _, ok := m.Headers[HeaderTraceID]; !ok {
		if traceID := logger.TraceIDFromContext(ctx); traceID != "" {
			m.Headers[HeaderTraceID] = traceID
		}
	}
	if _, ok := m.Headers[HeaderCorrelationID]; !ok {
		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			m.Headers[HeaderCorrelationID] = correlationID
		}
	}
	if _, ok := m.Headers[HeaderTimestamp]; !ok {
		m.Headers[HeaderTimestamp] = time.Now().UTC().Format(time.RFC3339Nano)
	}
}

// contextFromMessage переносит trace_id и correlation_id из headers в context.
func contextFromMessage(ctx context.Context, msg *Message) context.Context {
	if traceID, ok := msg.Headers[HeaderTraceID]; ok {
		ctx = logger.WithTraceID(ctx, traceID)
	}
	if correlationID, ok := msg.Headers[HeaderCorrelationID]; ok {
		ctx = logger.WithCorrelationID(ctx, correlationID)
	}
	return ctx
}
