// Package config предоставляет загрузку конфигурации из переменных окружения.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config содержит полную конфигурацию приложения.
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	MySQL     MySQLConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	JWT       JWTConfig
	Jaeger    JaegerConfig
	Metrics   MetricsConfig
	Gateway   GatewayConfig
	SMTP      SMTPConfig
	Checkout  CheckoutConfig
	Sweeper   SweeperConfig
	RateLimit RateLimitConfig
}

// AppConfig содержит общие настройки приложения.
type AppConfig struct {
	Name      string `env:"APP_NAME" envDefault:"settlement"`
	Env       string `env:"APP_ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// HTTPConfig содержит настройки HTTP API.
type HTTPConfig struct {
	Host         string        `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port         int           `env:"HTTP_PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	CORSOrigins  []string      `env:"HTTP_CORS_ORIGINS" envDefault:"*" envSeparator:","`
}

// Addr возвращает адрес HTTP сервера.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MySQLConfig содержит настройки подключения к MySQL.
type MySQLConfig struct {
	Host            string        `env:"MYSQL_HOST" envDefault:"localhost"`
	Port            int           `env:"MYSQL_PORT" envDefault:"3306"`
	User            string        `env:"MYSQL_USER" envDefault:"root"`
	Password        string        `env:"MYSQL_PASSWORD" envDefault:"root"`
	Database        string        `env:"MYSQL_DATABASE" envDefault:"settlement"`
	MaxOpenConns    int           `env:"MYSQL_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MYSQL_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"MYSQL_CONN_MAX_LIFETIME" envDefault:"5m"`
	AutoMigrate     bool          `env:"MYSQL_AUTO_MIGRATE" envDefault:"true"`
}

// DSN возвращает строку подключения к MySQL.
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// RedisConfig содержит настройки подключения к Redis.
type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Addr возвращает адрес Redis сервера.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig содержит настройки подключения к Kafka.
type KafkaConfig struct {
	Brokers            []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	ConsumerGroup      string   `env:"KAFKA_CONSUMER_GROUP" envDefault:"settlement-notifier"`
	NotificationsTopic string   `env:"KAFKA_NOTIFICATIONS_TOPIC" envDefault:"order.notifications"`
	MaxRetries         int      `env:"KAFKA_MAX_RETRIES" envDefault:"3"`
}

// JWTConfig содержит настройки проверки JWT токенов (RS256).
// Сервис только валидирует токены, выдаёт их identity-провайдер.
type JWTConfig struct {
	PublicKeyPath string `env:"JWT_PUBLIC_KEY_PATH" envDefault:"keys/jwt_public.pem"`
	Issuer        string `env:"JWT_ISSUER" envDefault:"storefront"`
}

// JaegerConfig содержит настройки трассировки Jaeger.
type JaegerConfig struct {
	Enabled  bool   `env:"JAEGER_ENABLED" envDefault:"true"`
	Host     string `env:"JAEGER_HOST" envDefault:"localhost"`
	OTLPPort int    `env:"JAEGER_OTLP_PORT" envDefault:"4317"`
}

// OTLPEndpoint возвращает OTLP gRPC endpoint для Jaeger.
func (c JaegerConfig) OTLPEndpoint() string {
	return fmt.Sprintf("%s:%d", c.Host, c.OTLPPort)
}

// MetricsConfig содержит настройки Prometheus метрик.
type MetricsConfig struct {
	Enabled bool `env:"METRICS_ENABLED" envDefault:"true"`
	Port    int  `env:"METRICS_PORT" envDefault:"9090"`
}

// Addr возвращает адрес для Metrics HTTP сервера.
func (c MetricsConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// GatewayConfig содержит настройки платёжного шлюза.
// Provider выбирает реализацию: "cashfree" (REST PG API) или "stripe".
type GatewayConfig struct {
	Provider      string        `env:"GATEWAY_PROVIDER" envDefault:"cashfree"`
	BaseURL       string        `env:"GATEWAY_BASE_URL" envDefault:"https://sandbox.cashfree.com/pg"`
	AppID         string        `env:"GATEWAY_APP_ID"`
	SecretKey     string        `env:"GATEWAY_SECRET_KEY"`
	APIVersion    string        `env:"GATEWAY_API_VERSION" envDefault:"2023-08-01"`
	Currency      string        `env:"GATEWAY_CURRENCY" envDefault:"INR"`
	ReturnURL     string        `env:"GATEWAY_RETURN_URL" envDefault:"http://localhost:3000/payment/verify?order_id={order_id}"`
	WebhookSecret string        `env:"GATEWAY_WEBHOOK_SECRET"`
	Timeout       time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`
}

// SMTPConfig содержит настройки отправки писем.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST" envDefault:"localhost"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM" envDefault:"noreply@example.com"`
	TLS      bool   `env:"SMTP_TLS" envDefault:"true"`
}

// CheckoutConfig содержит параметры оформления заказа.
type CheckoutConfig struct {
	// ShippingFlat — фиксированная стоимость доставки (строка, парсится в decimal).
	ShippingFlat   string        `env:"CHECKOUT_SHIPPING_FLAT" envDefault:"0"`
	DeliveryDays   int           `env:"CHECKOUT_DELIVERY_DAYS" envDefault:"5"`
	IdempotencyTTL time.Duration `env:"CHECKOUT_IDEMPOTENCY_TTL" envDefault:"24h"`
}

// Shipping возвращает стоимость доставки. Некорректное значение трактуется как 0.
func (c CheckoutConfig) Shipping() decimal.Decimal {
	d, err := decimal.NewFromString(c.ShippingFlat)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// SweeperConfig содержит настройки фоновой сверки зависших онлайн-заказов.
type SweeperConfig struct {
	Enabled      bool          `env:"SWEEPER_ENABLED" envDefault:"true"`
	PollInterval time.Duration `env:"SWEEPER_POLL_INTERVAL" envDefault:"1m"`
	MinAge       time.Duration `env:"SWEEPER_MIN_AGE" envDefault:"5m"`
	BatchSize    int           `env:"SWEEPER_BATCH_SIZE" envDefault:"50"`
}

// RateLimitConfig содержит настройки ограничения запросов.
type RateLimitConfig struct {
	Enabled bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Limit   int           `env:"RATE_LIMIT" envDefault:"100"`
	Window  time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// Load загружает конфигурацию из переменных окружения.
// Опционально загружает .env файл, если он существует.
func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файл не найден)
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации: %w", err)
	}

	return cfg, nil
}

// LoadFromFile загружает конфигурацию из указанного .env файла.
func LoadFromFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("ошибка загрузки .env файла %s: %w", path, err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации: %w", err)
	}

	return cfg, nil
}

// IsDevelopment возвращает true, если приложение запущено в development режиме.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}
