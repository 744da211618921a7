// Notifier Service — читает order.notifications из Kafka и отправляет письма покупателям.
// Сообщения, которые не удалось обработать после повторов, уходят в dlq.order.notifications.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"example.com/settlement/pkg/config"
	"example.com/settlement/pkg/healthcheck"
	"example.com/settlement/pkg/kafka"
	"example.com/settlement/pkg/logger"
	"example.com/settlement/pkg/metrics"
	"example.com/settlement/pkg/tracing"
	"example.com/settlement/services/notifier/internal/mailer"
)

const serviceName = "notifier-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:   cfg.App.LogLevel,
		Pretty:  cfg.App.LogPretty,
		Service: serviceName,
	})

	log := logger.Logger()

	log.Info().
		Str("env", cfg.App.Env).
		Str("topic", cfg.Kafka.NotificationsTopic).
		Str("smtp", cfg.SMTP.Host).
		Msg("Запуск Notifier Service")

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName: serviceName,
		Environment: cfg.App.Env,
		Endpoint:    cfg.Jaeger.OTLPEndpoint(),
		Enabled:     cfg.Jaeger.Enabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Не удалось инициализировать tracing")
	}

	// === Observability: Metrics ===

	var metricsServer *metrics.Server
	var metricsWg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(
			cfg.Metrics.Addr(),
			serviceName,
			metrics.WithReadinessCheck(healthcheck.Composite(healthcheck.Kafka(cfg.Kafka.Brokers))),
		)
		metricsWg.Add(1)
		go func() {
			defer metricsWg.Done()
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("Ошибка Metrics Server")
			}
		}()
	}

	// === Почта ===

	renderer, err := mailer.NewRenderer()
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка загрузки шаблонов писем")
	}

	sender, err := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		TLS:      cfg.SMTP.TLS,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка настройки SMTP")
	}

	handler := mailer.NewHandler(renderer, sender)

	// === Kafka ===

	kafkaCfg := kafka.Config{
		Brokers:       cfg.Kafka.Brokers,
		ConsumerGroup: cfg.Kafka.ConsumerGroup,
	}

	producer, err := kafka.NewProducer(kafkaCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка создания Kafka Producer для DLQ")
	}

	consumer, err := kafka.NewConsumer(kafkaCfg, cfg.Kafka.NotificationsTopic)
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка создания Kafka Consumer")
	}
	consumer.SetDLQ(producer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var workersWg sync.WaitGroup
	workersWg.Add(1)
	go func() {
		defer workersWg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Паника в обработчике уведомлений")
			}
		}()
		if err := consumer.ConsumeWithRetry(ctx, handler.Handle, cfg.Kafka.MaxRetries); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Ошибка чтения уведомлений")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Получен сигнал завершения, останавливаем сервис...")

	cancel()
	workersWg.Wait()

	if err := consumer.Close(); err != nil {
		log.Error().Err(err).Msg("Ошибка закрытия Kafka Consumer")
	}
	if err := producer.Close(); err != nil {
		log.Error().Err(err).Msg("Ошибка закрытия Kafka Producer")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Metrics Server")
		}
		metricsWg.Wait()
	}

	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Tracing")
		}
	}

	log.Info().Msg("Notifier Service остановлен")
}
