package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/settlement/pkg/logger"
)

// MessageHandler обрабатывает одно сообщение. context содержит trace_id и correlation_id из headers.
type MessageHandler func(ctx context.Context, msg *Message) error

// reader — часть *kafka.Reader, используемая Consumer.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DLQSender отправляет необработанные сообщения в Dead Letter Queue.
type DLQSender interface {
	SendToDLQ(ctx context.Context, original *Message, processingErr error) error
}

// Consumer читает сообщения топика в составе consumer group.
type Consumer struct {
	reader reader
	dlq    DLQSender
	topic  string
}

// NewConsumer создаёт Consumer для топика.
func NewConsumer(cfg Config, topic string) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("не указаны брокеры Kafka")
	}
	if topic == "" {
		return nil, errors.New("не указан топик")
	}
	if cfg.ConsumerGroup == "" {
		return nil, errors.New("не указан group ID")
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          topic,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        100 * time.Millisecond,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	})

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", topic).
		Str("group_id", cfg.ConsumerGroup).
		Msg("Создан Kafka Consumer")

	return &Consumer{reader: r, topic: topic}, nil
}

// SetDLQ задаёт получателя сообщений, которые не удалось обработать.
func (c *Consumer) SetDLQ(dlq DLQSender) {
	c.dlq = dlq
}

// Consume читает сообщения до отмены context.
// Offset коммитится в любом случае: необработанные сообщения уходят в DLQ.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	logger.Info().Str("topic", c.topic).Msg("Запуск чтения сообщений из Kafka")

	for {
		if err := ctx.Err(); err != nil {
			logger.Info().Str("topic", c.topic).Msg("Остановка Consumer")
			return err
		}

		raw, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			logger.Error().Err(err).Str("topic", c.topic).Msg("Ошибка чтения сообщения из Kafka")
			continue
		}
		msg := fromKafkaMessage(raw)
		msgCtx := contextFromMessage(ctx, msg)

		if err := handler(msgCtx, msg); err != nil {
			logger.Ctx(msgCtx).Error().
				Err(err).
				Str("topic", c.topic).
				Str("key", string(msg.Key)).
				Int64("offset", msg.Offset).
				Msg("Ошибка обработки сообщения")

			if c.dlq != nil {
				if dlqErr := c.dlq.SendToDLQ(msgCtx, msg, err); dlqErr != nil {
					logger.Error().Err(dlqErr).Msg("Ошибка отправки в DLQ")
				}
			}
		}

		if err := c.reader.CommitMessages(ctx, raw); err != nil {
			logger.Error().Err(err).Msg("Ошибка коммита offset")
		}
	}
}

// ConsumeWithRetry повторяет обработку с экспоненциальной задержкой (100ms, 200ms, 400ms...).
// После maxRetries повторов сообщение уходит в DLQ.
func (c *Consumer) ConsumeWithRetry(ctx context.Context, handler MessageHandler, maxRetries int) error {
	return c.Consume(ctx, withRetry(handler, maxRetries))
}

func withRetry(handler MessageHandler, maxRetries int) MessageHandler {
	return func(ctx context.Context, msg *Message) error {
		var lastErr error
		for attempt := 0; attempt <= maxRetries; attempt++ {
			if attempt > 0 {
				delay := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}

			if lastErr = handler(ctx, msg); lastErr == nil {
				return nil
			}
		}
		return fmt.Errorf("исчерпаны попытки обработки: %w", lastErr)
	}
}

// Close закрывает Consumer.
func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия consumer: %w", err)
	}
	logger.Info().Str("topic", c.topic).Msg("Kafka Consumer закрыт")
	return nil
}
