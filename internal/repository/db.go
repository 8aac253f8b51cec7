package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"tradegate/pkg/retry"
	"tradegate/pkg/utils"
)

// PoolConfig параметры пула соединений и ожидания БД
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// ConnectAttempts число попыток ping при старте (0 - по умолчанию)
	ConnectAttempts int
}

// OpenPostgres открывает пул и ждёт доступности БД с повторами
func OpenPostgres(ctx context.Context, dsn string, pool PoolConfig, log *utils.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	cfg := retry.StartupConfig()
	if pool.ConnectAttempts > 0 {
		cfg.MaxAttempts = pool.ConnectAttempts
	}
	// таймаут отдельного ping повторяем, отмену родительского ctx нет
	cfg.RetryIf = func(error) bool { return ctx.Err() == nil }
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn("database not ready, retrying",
			utils.Int("attempt", attempt),
			utils.Err(err),
			utils.Latency(delay),
		)
	}

	err = retry.Do(ctx, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return classifyConnectError(db.PingContext(pingCtx))
	}, cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// classifyConnectError помечает ошибки, которые повтор не исправит:
// неверные учётные данные (класс 28) и несуществующая БД (3D000)
func classifyConnectError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Class() == "28" || pqErr.Code == "3D000" {
			return retry.Permanent(err)
		}
	}
	return err
}
