package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"example.com/settlement/pkg/metrics"
	"example.com/settlement/services/settlement/internal/gateway"
	"example.com/settlement/services/settlement/internal/middleware"
)

// ReadinessChecker — функция проверки готовности сервиса.
type ReadinessChecker func(ctx context.Context) error

// RouterConfig — параметры для создания роутера.
type RouterConfig struct {
	ServiceName    string
	Checkout       CheckoutService
	Payments       PaymentService
	Webhooks       gateway.WebhookParser // nil — webhook отключён
	AuthMW         *middleware.AuthMiddleware
	RateLimitMW    *middleware.RateLimitMiddleware // nil — без ограничения
	CORSOrigins    []string
	ReadinessCheck ReadinessChecker // опциональная проверка готовности для /readyz
	Debug          bool
}

// Router — HTTP роутер Settlement API.
type Router struct {
	engine         *gin.Engine
	readinessCheck ReadinessChecker
}

// NewRouter создаёт и настраивает HTTP роутер.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "settlement"
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestIDs())
	engine.Use(middleware.CORS(cfg.CORSOrigins))
	engine.Use(middleware.SecurityHeaders())
	engine.Use(otelgin.Middleware(cfg.ServiceName))
	engine.Use(metrics.GinMetricsMiddleware(cfg.ServiceName))

	r := &Router{engine: engine, readinessCheck: cfg.ReadinessCheck}
	r.setupRoutes(cfg)
	return r
}

func (r *Router) setupRoutes(cfg RouterConfig) {
	// Health endpoints (без rate limiting и auth)
	r.engine.GET("/health", r.healthCheck)
	r.engine.GET("/healthz", r.livenessCheck)
	r.engine.GET("/readyz", r.readinessCheckHandler)

	v1 := r.engine.Group("/api/v1")

	// Защищённые маршруты: сначала auth, чтобы rate limit считал по user_id.
	protected := v1.Group("")
	if cfg.AuthMW != nil {
		protected.Use(cfg.AuthMW.Handle())
	}
	if cfg.RateLimitMW != nil {
		protected.Use(cfg.RateLimitMW.Handle())
	}

	checkoutHandler := NewCheckoutHandler(cfg.Checkout)
	protected.POST("/checkout", checkoutHandler.Checkout)

	paymentHandler := NewPaymentHandler(cfg.Payments, cfg.Webhooks)
	protected.GET("/payment/verify", paymentHandler.Verify)

	// Webhook без JWT: подлинность проверяется подписью шлюза.
	v1.POST("/payment/webhook", paymentHandler.Webhook)
}

// Engine возвращает Gin engine для запуска сервера.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "settlement"})
}

func (r *Router) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (r *Router) readinessCheckHandler(c *gin.Context) {
	if r.readinessCheck == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := r.readinessCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
