// Package circuitbreaker — Circuit Breaker для вызовов внешних сервисов (платёжный шлюз).
//
// Состояния:
//   - Closed: запросы проходят
//   - Open: запросы отклоняются сразу, без ожидания таймаута
//   - Half-Open: пропускаем пробные запросы для проверки восстановления
package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"example.com/settlement/pkg/logger"
)

// ErrUnavailable — breaker открыт или исчерпан лимит пробных запросов.
var ErrUnavailable = errors.New("сервис временно недоступен (circuit breaker)")

// Settings — настройки Circuit Breaker.
type Settings struct {
	MaxRequests  uint32        // запросов в Half-Open
	Interval     time.Duration // сброс счётчиков в Closed
	Timeout      time.Duration // время в Open до перехода в Half-Open
	FailureRatio float64       // доля ошибок для перехода в Open
	MinRequests  uint32        // минимум запросов для расчёта доли
}

// DefaultSettings возвращает настройки по умолчанию.
func DefaultSettings() Settings {
	return Settings{
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// Breaker — обёртка над gobreaker с логированием смены состояний.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// New создаёт Breaker с настройками по умолчанию.
func New(name string) *Breaker {
	return NewWithSettings(name, DefaultSettings())
}

// NewWithSettings создаёт Breaker с заданными настройками.
func NewWithSettings(name string, s Settings) *Breaker {
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log := logger.With().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Logger()

			switch to {
			case gobreaker.StateOpen:
				log.Warn().Msg("Circuit Breaker ОТКРЫТ — сервис недоступен")
			case gobreaker.StateHalfOpen:
				log.Info().Msg("Circuit Breaker ПОЛУОТКРЫТ — пробуем восстановить")
			case gobreaker.StateClosed:
				log.Info().Msg("Circuit Breaker ЗАКРЫТ — сервис восстановлен")
			}
		},
	})

	return &Breaker{cb: cb, name: name}
}

// Execute выполняет fn через breaker и возвращает ошибку fn без изменений.
// isFailure решает, считается ли ошибка сбоем: бизнес-ошибки (4xx) breaker не открывают.
// Если isFailure == nil, сбоем считается любая ошибка.
func (b *Breaker) Execute(fn func() error, isFailure func(error) bool) error {
	var callErr error

	_, cbErr := b.cb.Execute(func() (any, error) {
		callErr = fn()
		if callErr != nil && (isFailure == nil || isFailure(callErr)) {
			return nil, callErr
		}
		return nil, nil
	})

	if errors.Is(cbErr, gobreaker.ErrOpenState) || errors.Is(cbErr, gobreaker.ErrTooManyRequests) {
		return ErrUnavailable
	}
	return callErr
}

// State возвращает текущее состояние.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Name возвращает имя breaker.
func (b *Breaker) Name() string {
	return b.name
}
