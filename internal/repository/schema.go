package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements DDL таблиц движка; идемпотентны
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS trades (
		id               BIGSERIAL PRIMARY KEY,
		symbol           VARCHAR(32)      NOT NULL,
		timeframe        VARCHAR(16)      NOT NULL,
		side             VARCHAR(8)       NOT NULL,
		entry_price      DOUBLE PRECISION NOT NULL,
		exit_price       DOUBLE PRECISION NOT NULL,
		stop_price       DOUBLE PRECISION NOT NULL,
		size_usd         DOUBLE PRECISION NOT NULL,
		fees_usd         DOUBLE PRECISION NOT NULL DEFAULT 0,
		high_price       DOUBLE PRECISION NOT NULL DEFAULT 0,
		low_price        DOUBLE PRECISION NOT NULL DEFAULT 0,
		qty              DOUBLE PRECISION NOT NULL,
		realized_pnl_usd DOUBLE PRECISION NOT NULL,
		r_usd            DOUBLE PRECISION NOT NULL,
		rr               DOUBLE PRECISION,
		mae_r            DOUBLE PRECISION,
		mfe_r            DOUBLE PRECISION,
		outcome          VARCHAR(8)       NOT NULL,
		closed_at        TIMESTAMPTZ      NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_closed_at ON trades (closed_at)`,
	`CREATE TABLE IF NOT EXISTS risk_audit (
		id       BIGSERIAL PRIMARY KEY,
		event_id UUID        NOT NULL UNIQUE,
		ts       TIMESTAMPTZ NOT NULL,
		gate     VARCHAR(32) NOT NULL,
		event    VARCHAR(16) NOT NULL,
		symbol   VARCHAR(32) NOT NULL DEFAULT '',
		meta     JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_risk_audit_ts ON risk_audit (ts)`,
}

// EnsureSchema создаёт таблицы trades и risk_audit, если их нет
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
