// Package logger предоставляет структурированное логирование на базе zerolog.
// JSON формат для production, pretty-print для разработки.
// Все сообщения логов пишутся на русском языке.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// log — глобальный экземпляр логгера.
var log zerolog.Logger

// Config содержит настройки для инициализации логгера.
type Config struct {
	// Level — минимальный уровень: "debug", "info", "warn", "error". По умолчанию "info".
	Level string

	// Pretty включает читаемый цветной вывод вместо JSON.
	Pretty bool

	// Output — writer для вывода логов. По умолчанию os.Stdout.
	Output io.Writer

	// Service добавляется полем "service" к каждой записи, если задан.
	Service string
}

func init() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	Init(Config{
		Level:  level,
		Pretty: strings.ToLower(os.Getenv("LOG_PRETTY")) == "true",
	})
}

// Init инициализирует глобальный логгер.
// Вызывается в начале main после загрузки конфигурации.
func Init(cfg Config) {
	var output io.Writer = os.Stdout
	if cfg.Output != nil {
		output = cfg.Output
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	level := parseLevel(cfg.Level)

	lctx := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Caller()
	if cfg.Service != "" {
		lctx = lctx.Str("service", cfg.Service)
	}
	log = lctx.Logger()

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
}

// parseLevel преобразует строку в zerolog.Level. Неизвестный уровень — InfoLevel.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug создаёт событие уровня debug.
func Debug() *zerolog.Event {
	return log.Debug()
}

// Info создаёт событие уровня info.
// Пример: logger.Info().Str("order_id", "456").Msg("Заказ создан")
func Info() *zerolog.Event {
	return log.Info()
}

// Warn создаёт событие уровня warn.
func Warn() *zerolog.Event {
	return log.Warn()
}

// Error создаёт событие уровня error.
func Error() *zerolog.Event {
	return log.Error()
}

// Fatal создаёт событие уровня fatal.
// ВНИМАНИЕ: после вызова Msg() приложение завершится с кодом 1.
func Fatal() *zerolog.Event {
	return log.Fatal()
}

// With создаёт дочерний логгер с дополнительными полями.
//
//	workerLog := logger.With().Str("worker", "sweeper").Logger()
func With() zerolog.Context {
	return log.With()
}

// Logger возвращает глобальный экземпляр zerolog.Logger.
func Logger() zerolog.Logger {
	return log
}

// SetGlobalLogger подменяет глобальный логгер (используется в тестах).
func SetGlobalLogger(l zerolog.Logger) {
	log = l
}
