package kafka

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/settlement/pkg/logger"
)

// writer — часть *kafka.Writer, используемая Producer.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer отправляет сообщения в Kafka.
type Producer struct {
	writer writer
}

// NewProducer создаёт синхронный Producer.
func NewProducer(cfg Config) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("не указаны брокеры Kafka")
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{}, // один заказ — одна партиция
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	logger.Info().Strs("brokers", cfg.Brokers).Msg("Создан Kafka Producer")

	return &Producer{writer: w}, nil
}

// SendMessage отправляет сообщение, дополняя headers из context.
func (p *Producer) SendMessage(ctx context.Context, msg *Message) error {
	msg.withContextHeaders(ctx)

	if err := p.writer.WriteMessages(ctx, msg.toKafkaMessage()); err != nil {
		logger.Ctx(ctx).Error().
			Err(err).
			Str("topic", msg.Topic).
			Str("key", string(msg.Key)).
			Msg("Ошибка отправки сообщения в Kafka")
		return fmt.Errorf("ошибка отправки в Kafka: %w", err)
	}

	logger.Ctx(ctx).Debug().
		Str("topic", msg.Topic).
		Str("key", string(msg.Key)).
		Msg("Сообщение отправлено в Kafka")

	return nil
}

// SendToDLQ отправляет необработанное сообщение в dlq.<топик> с описанием ошибки.
func (p *Producer) SendToDLQ(ctx context.Context, original *Message, processingErr error) error {
	headers := maps.Clone(original.Headers)
	if headers == nil {
		headers = make(map[string]string)
	}
	headers["dlq_error"] = processingErr.Error()
	headers["dlq_original_topic"] = original.Topic
	headers["dlq_timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)

	return p.SendMessage(ctx, &Message{
		Topic:   DLQTopic(original.Topic),
		Key:     original.Key,
		Value:   original.Value,
		Headers: headers,
	})
}

// Close закрывает соединение с Kafka.
func (p *Producer) Close() error {
	if err := p.writer.Close(); err != nil {
		logger.Error().Err(err).Msg("Ошибка при закрытии Kafka Producer")
		return fmt.Errorf("ошибка закрытия producer: %w", err)
	}
	logger.Info().Msg("Kafka Producer закрыт")
	return nil
}
