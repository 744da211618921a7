package reconcile

import (
	"context"
	"time"

	"example.com/settlement/pkg/logger"
	"example.com/settlement/services/settlement/internal/repository"
)

// =============================================================================
// Sweeper — фоновая сверка онлайн-заказов, зависших в pending
// =============================================================================

// SweeperConfig — настройки Sweeper.
type SweeperConfig struct {
	// PollInterval — интервал между проходами.
	PollInterval time.Duration

	// MinAge — минимальный возраст заказа. Более свежие заказы ещё оплачиваются
	// и сверяются опросом клиента.
	MinAge time.Duration

	// BatchSize — максимум заказов за проход.
	BatchSize int
}

// DefaultSweeperConfig возвращает конфигурацию по умолчанию.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		PollInterval: time.Minute,
		MinAge:       5 * time.Minute,
		BatchSize:    50,
	}
}

// Sweeper периодически сверяет онлайн-заказы в pending/pending старше MinAge,
// чтобы оплата зафиксировалась, даже если клиент не вернулся на страницу проверки.
type Sweeper struct {
	orders     repository.OrderRepository
	reconciler *Reconciler
	cfg        SweeperConfig
	now        func() time.Time
}

// NewSweeper создаёт Sweeper. Нулевые поля cfg заменяются значениями по умолчанию.
func NewSweeper(orders repository.OrderRepository, reconciler *Reconciler, cfg SweeperConfig) *Sweeper {
	def := DefaultSweeperConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MinAge <= 0 {
		cfg.MinAge = def.MinAge
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	return &Sweeper{orders: orders, reconciler: reconciler, cfg: cfg, now: time.Now}
}

// Run запускает Sweeper. Блокирует выполнение до отмены контекста.
func (s *Sweeper) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info().
		Dur("poll_interval", s.cfg.PollInterval).
		Dur("min_age", s.cfg.MinAge).
		Int("batch_size", s.cfg.BatchSize).
		Msg("Запуск Sweeper")

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Остановка Sweeper")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep выполняет один проход и возвращает количество заказов, вышедших из pending.
func (s *Sweeper) Sweep(ctx context.Context) int {
	log := logger.FromContext(ctx)

	orders, err := s.orders.ListStalePending(ctx, s.now().Add(-s.cfg.MinAge), s.cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Ошибка получения зависших заказов")
		return 0
	}
	if len(orders) == 0 {
		return 0
	}

	settled := 0
	for _, order := range orders {
		if ctx.Err() != nil {
			break
		}
		result, err := s.reconciler.reconcile(ctx, order)
		if err != nil {
			log.Error().Err(err).Str("order_id", order.ID).Msg("Ошибка сверки зависшего заказа")
			continue
		}
		if result.Status != StatusPending {
			settled++
		}
	}

	log.Info().
		Int("found", len(orders)).
		Int("settled", settled).
		Msg("Проход Sweeper завершён")

	return settled
}
