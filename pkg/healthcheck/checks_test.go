package healthcheck

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMySQL(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent), DisableAutomaticPing: true})
	require.NoError(t, err)

	mock.ExpectPing()
	assert.NoError(t, MySQL(db)(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	err = MySQL(db)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql ping")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	assert.NoError(t, Redis(rdb)(context.Background()))

	mr.Close()
	assert.Error(t, Redis(rdb)(context.Background()))
}

func TestKafka_NoBrokers(t *testing.T) {
	assert.Error(t, Kafka(nil)(context.Background()))
}

func TestComposite(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	ok := func(context.Context) error { calls++; return nil }
	fail := func(context.Context) error { calls++; return boom }

	assert.NoError(t, Composite(ok, ok)(context.Background()))

	calls = 0
	assert.ErrorIs(t, Composite(fail, ok)(context.Background()), boom)
	assert.Equal(t, 1, calls, "после первой ошибки проверки не продолжаются")
}
