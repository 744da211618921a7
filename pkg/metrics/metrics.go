// Package metrics — Prometheus метрики сервисов и HTTP сервер для /metrics, /healthz, /readyz.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/settlement/pkg/logger"
)

// =============================================================================
// HTTP метрики
// =============================================================================

var (
	// RequestsTotal — запросы по сервису, маршруту и HTTP коду.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Общее количество запросов по сервису, маршруту и коду ответа",
		},
		[]string{"service", "route", "code"},
	)

	// RequestDuration — latency запросов, от 5ms до 10s.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Время выполнения запроса в секундах",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service", "route"},
	)
)

// =============================================================================
// Server
// =============================================================================

// ReadinessChecker возвращает nil, если сервис готов принимать трафик.
type ReadinessChecker func(ctx context.Context) error

// Server — HTTP сервер метрик и проб.
type Server struct {
	httpServer     *http.Server
	service        string
	readinessCheck ReadinessChecker
}

// Option — функциональная опция Server.
type Option func(*Server)

// WithReadinessCheck задаёт проверку для /readyz. Ошибка проверки — 503.
func WithReadinessCheck(checker ReadinessChecker) Option {
	return func(s *Server) {
		s.readinessCheck = checker
	}
}

// NewServer создаёт сервер метрик на addr.
func NewServer(addr, service string, opts ...Option) *Server {
	s := &Server{service: service}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "alive")
	})
	mux.HandleFunc("/readyz", s.handleReady)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handler возвращает http.Handler сервера (используется в тестах).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.readinessCheck == nil {
		writeStatus(w, http.StatusOK, "ready")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.readinessCheck(ctx); err != nil {
		// Детали ошибки наружу не отдаём
		logger.Warn().Err(err).Str("service", s.service).Msg("Сервис не готов")
		writeStatus(w, http.StatusServiceUnavailable, "not_ready")
		return
	}
	writeStatus(w, http.StatusOK, "ready")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"status":"` + status + `"}`))
}

// Start запускает сервер. Блокирующий вызов.
func (s *Server) Start() error {
	logger.Info().Str("service", s.service).Str("addr", s.httpServer.Addr).Msg("Запуск Metrics Server")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown останавливает сервер.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// GinMetricsMiddleware пишет requests_total и request_duration_seconds для каждого запроса.
func GinMetricsMiddleware(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestsTotal.WithLabelValues(service, route, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(service, route).Observe(time.Since(start).Seconds())
	}
}
