// Settlement Service — оформление заказов и сверка платежей.
// HTTP API: POST /api/v1/checkout, GET /api/v1/payment/verify, POST /api/v1/payment/webhook.
// Письма покупателю уходят через outbox в Kafka (order.notifications).
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"example.com/settlement/pkg/circuitbreaker"
	"example.com/settlement/pkg/config"
	dbpkg "example.com/settlement/pkg/db"
	"example.com/settlement/pkg/events"
	"example.com/settlement/pkg/healthcheck"
	"example.com/settlement/pkg/jwt"
	"example.com/settlement/pkg/kafka"
	"example.com/settlement/pkg/logger"
	"example.com/settlement/pkg/metrics"
	"example.com/settlement/pkg/outbox"
	"example.com/settlement/pkg/tracing"
	"example.com/settlement/services/settlement/internal/checkout"
	"example.com/settlement/services/settlement/internal/commission"
	"example.com/settlement/services/settlement/internal/coupon"
	"example.com/settlement/services/settlement/internal/gateway"
	"example.com/settlement/services/settlement/internal/handler"
	"example.com/settlement/services/settlement/internal/middleware"
	"example.com/settlement/services/settlement/internal/notify"
	"example.com/settlement/services/settlement/internal/pricing"
	"example.com/settlement/services/settlement/internal/reconcile"
	"example.com/settlement/services/settlement/internal/repository"
)

const serviceName = "settlement-service"

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Инициализируем логгер
	logger.Init(logger.Config{
		Level:   cfg.App.LogLevel,
		Pretty:  cfg.App.LogPretty,
		Service: serviceName,
	})

	log := logger.Logger()

	log.Info().
		Str("env", cfg.App.Env).
		Str("addr", cfg.HTTP.Addr()).
		Str("gateway", cfg.Gateway.Provider).
		Msg("Запуск Settlement Service")

	// === Observability: Tracing ===

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName: serviceName,
		Environment: cfg.App.Env,
		Endpoint:    cfg.Jaeger.OTLPEndpoint(),
		Enabled:     cfg.Jaeger.Enabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Не удалось инициализировать tracing")
	}

	// === Подключение к зависимостям ===

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()

	db, err := dbpkg.ConnectMySQL(startCtx, cfg.MySQL, cfg.IsDevelopment())
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к MySQL")
	}
	log.Info().Msg("Подключение к MySQL установлено")

	if cfg.MySQL.AutoMigrate {
		if err := repository.AutoMigrate(db); err != nil {
			log.Fatal().Err(err).Msg("Ошибка миграции схемы")
		}
		log.Info().Msg("Схема БД актуальна")
	}

	rdb, err := dbpkg.ConnectRedis(startCtx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к Redis")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Redis")
		}
	}()
	log.Info().Msg("Подключение к Redis установлено")

	// ReadinessChecker для /readyz — MySQL, Redis и Kafka
	readinessCheck := healthcheck.Composite(
		healthcheck.MySQL(db),
		healthcheck.Redis(rdb),
		healthcheck.Kafka(cfg.Kafka.Brokers),
	)

	// === Observability: Metrics ===

	var metricsServer *metrics.Server
	var metricsWg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(
			cfg.Metrics.Addr(),
			serviceName,
			metrics.WithReadinessCheck(readinessCheck),
		)
		metricsWg.Add(1)
		go func() {
			defer metricsWg.Done()
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("Ошибка Metrics Server")
			}
		}()
	}

	// === Платёжный шлюз ===

	provider, err := newProvider(cfg.Gateway)
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка настройки платёжного шлюза")
	}
	paymentGateway := gateway.NewGuarded(provider, circuitbreaker.New("payment-gateway"))

	// === Инициализация бизнес-логики ===

	orderRepo := repository.NewOrderRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	affiliateRepo := repository.NewAffiliateRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	outboxRepo := outbox.NewRepository(db, events.AggregateOrder)

	ledger := commission.NewLedger(affiliateRepo)
	dispatcher := notify.NewOutboxDispatcher(
		orderRepo, profileRepo, outboxRepo,
		cfg.Kafka.NotificationsTopic, cfg.Gateway.Currency,
	)

	checkoutService := checkout.NewService(checkout.Deps{
		Orders:      orderRepo,
		Profiles:    profileRepo,
		Coupons:     couponRepo,
		Resolver:    pricing.NewResolver(catalogRepo),
		Evaluator:   coupon.NewEvaluator(couponRepo),
		Ledger:      ledger,
		Gateway:     paymentGateway,
		Idempotency: checkout.NewIdempotencyStore(rdb, cfg.Checkout.IdempotencyTTL),
	}, checkout.Config{
		Shipping:  cfg.Checkout.Shipping(),
		Currency:  cfg.Gateway.Currency,
		ReturnURL: cfg.Gateway.ReturnURL,
	})

	reconciler := reconcile.NewReconciler(
		orderRepo, couponRepo, paymentGateway, dispatcher, ledger, cfg.Checkout.DeliveryDays,
	)

	// Контекст для фоновых воркеров
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var workersWg sync.WaitGroup

	// Outbox Worker: outbox -> Kafka
	var kafkaProducer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err = kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers})
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка создания Kafka Producer")
		}

		outboxWorker := outbox.NewWorker(outboxRepo, kafkaProducer, outbox.DefaultWorkerConfig(), "settlement")
		workersWg.Add(1)
		go func() {
			defer workersWg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Паника в Outbox Worker")
				}
			}()
			outboxWorker.Run(ctx)
		}()
	} else {
		log.Warn().Msg("Kafka не настроена — письма копятся в outbox")
	}

	// Sweeper: досверка зависших онлайн-заказов
	if cfg.Sweeper.Enabled {
		sweeper := reconcile.NewSweeper(orderRepo, reconciler, reconcile.SweeperConfig{
			PollInterval: cfg.Sweeper.PollInterval,
			MinAge:       cfg.Sweeper.MinAge,
			BatchSize:    cfg.Sweeper.BatchSize,
		})
		workersWg.Add(1)
		go func() {
			defer workersWg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Паника в Sweeper")
				}
			}()
			sweeper.Run(ctx)
		}()
	}

	// === HTTP API ===

	jwtManager, err := jwt.NewManager(jwt.Config{
		PublicKeyPath: cfg.JWT.PublicKeyPath,
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка инициализации JWT")
	}
	jwtManager.SetBlacklist(jwt.NewBlacklist(rdb))

	var rateLimitMW *middleware.RateLimitMiddleware
	if cfg.RateLimit.Enabled {
		rateLimitMW = middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
			Redis:  rdb,
			Limit:  cfg.RateLimit.Limit,
			Window: cfg.RateLimit.Window,
		})
	}

	router := handler.NewRouter(handler.RouterConfig{
		ServiceName:    serviceName,
		Checkout:       checkoutService,
		Payments:       reconciler,
		Webhooks:       paymentGateway,
		AuthMW:         middleware.NewAuthMiddleware(jwtManager),
		RateLimitMW:    rateLimitMW,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		ReadinessCheck: handler.ReadinessChecker(readinessCheck),
		Debug:          cfg.IsDevelopment(),
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router.Engine(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP сервер запущен")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Ошибка HTTP сервера")
		}
	}()

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Получен сигнал завершения, останавливаем сервер...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Сначала перестаём принимать запросы, потом гасим воркеры
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка остановки HTTP сервера")
	}

	cancel()
	workersWg.Wait()

	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Kafka Producer")
		}
	}

	if sqlDB, err := db.DB(); err == nil && sqlDB != nil {
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия MySQL")
		}
	}

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

	log.Info().Msg("Settlement Service остановлен")
}

// newProvider выбирает реализацию шлюза по GATEWAY_PROVIDER.
func newProvider(cfg config.GatewayConfig) (gateway.Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "cashfree":
		if cfg.AppID == "" || cfg.SecretKey == "" {
			return nil, errors.New("для Cashfree нужны GATEWAY_APP_ID и GATEWAY_SECRET_KEY")
		}
		return gateway.NewCashfree(gateway.CashfreeConfig{
			BaseURL:       cfg.BaseURL,
			AppID:         cfg.AppID,
			SecretKey:     cfg.SecretKey,
			APIVersion:    cfg.APIVersion,
			WebhookSecret: cfg.WebhookSecret,
			Timeout:       cfg.Timeout,
		}), nil
	case "stripe":
		if cfg.SecretKey == "" {
			return nil, errors.New("для Stripe нужен GATEWAY_SECRET_KEY")
		}
		return gateway.NewStripe(gateway.StripeConfig{
			SecretKey:     cfg.SecretKey,
			WebhookSecret: cfg.WebhookSecret,
		}), nil
	default:
		return nil, fmt.Errorf("неизвестный провайдер платежей: %q", cfg.Provider)
	}
}
