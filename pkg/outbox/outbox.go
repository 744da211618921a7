// Package outbox реализует Outbox Pattern: событие записывается в таблицу outbox,
// отдельный Worker публикует его в Kafka с гарантией at-least-once.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/settlement/pkg/kafka"
	"example.com/settlement/pkg/logger"
)

// Outbox — запись в таблице outbox.
type Outbox struct {
	ID            string
	AggregateType string            // тип агрегата (order)
	AggregateID   string            // ID агрегата (order_id)
	EventType     string            // тип события (order.confirmed)
	Topic         string            // Kafka топик
	MessageKey    string            // ключ партиционирования
	Payload       []byte            // JSON payload
	Headers       map[string]string // trace_id, correlation_id
	CreatedAt     time.Time
	ProcessedAt   *time.Time // nil — ещё не отправлена
	RetryCount    int
	LastError     *string
}

// NewRecord сериализует payload и создаёт запись outbox.
// trace_id и correlation_id переносятся из контекста в headers сообщения.
func NewRecord(ctx context.Context, aggregateType, aggregateID, eventType, topic string, payload any) (*Outbox, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации события %s: %w", eventType, err)
	}

	headers := map[string]string{"event_type": eventType}
	if traceID := logger.TraceIDFromContext(ctx); traceID != "" {
		headers[kafka.HeaderTraceID] = traceID
	}
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		headers[kafka.HeaderCorrelationID] = correlationID
	}

	return &Outbox{
		ID:            uuid.New().String(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Topic:         topic,
		MessageKey:    aggregateID,
		Payload:       data,
		Headers:       headers,
		CreatedAt:     time.Now(),
	}, nil
}

// message собирает Kafka сообщение из записи.
func (o *Outbox) message() *kafka.Message {
	return &kafka.Message{
		Topic:   o.Topic,
		Key:     []byte(o.MessageKey),
		Value:   o.Payload,
		Headers: o.Headers,
	}
}

// HeadersJSON возвращает headers в формате JSON для БД.
func (o *Outbox) HeadersJSON() ([]byte, error) {
	if o.Headers == nil {
		return nil, nil
	}
	return json.Marshal(o.Headers)
}

// SetHeadersFromJSON устанавливает headers из JSON.
func (o *Outbox) SetHeadersFromJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &o.Headers)
}
