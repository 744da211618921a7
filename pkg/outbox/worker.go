package outbox

import (
	"context"
	"time"

	"example.com/settlement/pkg/kafka"
	"example.com/settlement/pkg/logger"
	"example.com/settlement/pkg/metrics"
)

// Producer — отправка сообщений в Kafka (реализуется *kafka.Producer).
type Producer interface {
	SendMessage(ctx context.Context, msg *kafka.Message) error
}

// WorkerConfig — настройки Worker.
type WorkerConfig struct {
	PollInterval     time.Duration // интервал опроса таблицы
	BatchSize        int           // записей за один проход
	MaxRetries       int           // после превышения запись выводится из очереди (dead letter)
	CleanupInterval  time.Duration // как часто чистить отправленные записи
	CleanupRetention time.Duration // сколько хранить отправленные записи
}

// DefaultWorkerConfig возвращает конфигурацию по умолчанию.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval:     time.Second,
		BatchSize:        100,
		MaxRetries:       5,
		CleanupInterval:  time.Hour,
		CleanupRetention: 7 * 24 * time.Hour,
	}
}

// Worker читает outbox и публикует записи в Kafka.
type Worker struct {
	repo     Repository
	producer Producer
	cfg      WorkerConfig
	name     string
}

// NewWorker создаёт Worker. name используется в логах и метриках.
func NewWorker(repo Repository, producer Producer, cfg WorkerConfig, name string) *Worker {
	def := DefaultWorkerConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.CleanupRetention <= 0 {
		cfg.CleanupRetention = def.CleanupRetention
	}
	return &Worker{
		repo:     repo,
		producer: producer,
		cfg:      cfg,
		name:     name,
	}
}

// Run блокирует выполнение до отмены контекста.
func (w *Worker) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info().
		Str("name", w.name).
		Dur("poll_interval", w.cfg.PollInterval).
		Int("batch_size", w.cfg.BatchSize).
		Msg("Запуск Outbox Worker")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(w.cfg.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("name", w.name).Msg("Остановка Outbox Worker")
			return
		case <-ticker.C:
			w.processBatch(ctx)
		case <-cleanupTicker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	log := logger.FromContext(ctx)

	deleted, err := w.repo.DeleteProcessedBefore(ctx, time.Now().Add(-w.cfg.CleanupRetention))
	if err != nil {
		log.Error().Err(err).Str("name", w.name).Msg("Ошибка очистки outbox")
		return
	}
	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Str("name", w.name).Msg("Очистка отправленных записей outbox")
	}
}

// processBatch отправляет одну пачку записей.
func (w *Worker) processBatch(ctx context.Context) {
	log := logger.FromContext(ctx)

	records, err := w.repo.GetUnprocessed(ctx, w.cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Str("name", w.name).Msg("Ошибка чтения outbox")
		return
	}

	for _, record := range records {
		if ctx.Err() != nil {
			return
		}

		if record.RetryCount >= w.cfg.MaxRetries {
			log.Warn().
				Str("outbox_id", record.ID).
				Str("event_type", record.EventType).
				Str("aggregate_id", record.AggregateID).
				Int("retry_count", record.RetryCount).
				Msg("Dead letter: превышен лимит попыток, запись выведена из очереди")

			metrics.OutboxMessagesTotal.WithLabelValues(w.name, "dead_letter").Inc()
			if err := w.repo.MarkProcessed(ctx, record.ID); err != nil {
				log.Error().Err(err).Str("outbox_id", record.ID).Msg("Ошибка пометки dead letter")
			}
			continue
		}

		if err := w.Publish(ctx, record); err != nil {
			log.Error().
				Err(err).
				Str("outbox_id", record.ID).
				Str("topic", record.Topic).
				Msg("Ошибка публикации записи outbox")
		}
	}
}

// Publish отправляет одну запись и фиксирует результат в outbox.
func (w *Worker) Publish(ctx context.Context, record *Outbox) error {
	if err := w.producer.SendMessage(ctx, record.message()); err != nil {
		metrics.OutboxMessagesTotal.WithLabelValues(w.name, "error").Inc()
		if markErr := w.repo.MarkFailed(ctx, record.ID, err); markErr != nil {
			logger.Ctx(ctx).Error().Err(markErr).Str("outbox_id", record.ID).Msg("Ошибка пометки outbox как failed")
		}
		return err
	}

	metrics.OutboxMessagesTotal.WithLabelValues(w.name, "sent").Inc()
	return w.repo.MarkProcessed(ctx, record.ID)
}
