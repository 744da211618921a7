// Package db предоставляет подключение к MySQL (GORM) и Redis.
package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"example.com/settlement/pkg/config"
)

// pingTimeout — сколько ждём первого ответа от MySQL при старте.
const pingTimeout = 5 * time.Second

// ConnectMySQL открывает GORM соединение, проверяет его PingContext
// и настраивает пул. debug включает логирование SQL.
func ConnectMySQL(ctx context.Context, cfg config.MySQLConfig, debug bool) (*gorm.DB, error) {
	logLevel := gormlogger.Silent
	if debug {
		logLevel = gormlogger.Info
	}

	gdb, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к MySQL: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения sql.DB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ошибка ping MySQL: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return gdb, nil
}
