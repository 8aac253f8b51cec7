package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tradegate/internal/models"
)

// TradeRepository - работа с таблицей trades
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

const tradeColumns = `symbol, timeframe, side, entry_price, exit_price, stop_price, size_usd, fees_usd,
	high_price, low_price, qty, realized_pnl_usd, r_usd, rr, mae_r, mfe_r, outcome, closed_at`

// SaveTrade сохраняет закрытую сделку и проставляет rec.ID
func (r *TradeRepository) SaveTrade(ctx context.Context, rec *models.TradeRecord) error {
	query := `
		INSERT INTO trades (` + tradeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		rec.Symbol,
		rec.Timeframe,
		string(rec.Side),
		rec.EntryPrice,
		rec.ExitPrice,
		rec.StopPrice,
		rec.SizeUsd,
		rec.FeesUsd,
		rec.HighPrice,
		rec.LowPrice,
		rec.Quantity,
		rec.RealizedPnlUsd,
		rec.RiskUsd,
		nullFloat(rec.RewardRiskRatio),
		nullFloat(rec.MaeR),
		nullFloat(rec.MfeR),
		string(rec.Outcome),
		rec.ClosedAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}

	return nil
}

// LoadTrades возвращает сделки, закрытые не раньше since, по возрастанию времени
func (r *TradeRepository) LoadTrades(ctx context.Context, since time.Time) ([]*models.TradeRecord, error) {
	query := `
		SELECT id, ` + tradeColumns + `
		FROM trades
		WHERE closed_at >= $1
		ORDER BY closed_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []*models.TradeRecord
	for rows.Next() {
		rec := &models.TradeRecord{}
		var side, outcome string
		var rr, maeR, mfeR sql.NullFloat64
		err := rows.Scan(
			&rec.ID,
			&rec.Symbol,
			&rec.Timeframe,
			&side,
			&rec.EntryPrice,
			&rec.ExitPrice,
			&rec.StopPrice,
			&rec.SizeUsd,
			&rec.FeesUsd,
			&rec.HighPrice,
			&rec.LowPrice,
			&rec.Quantity,
			&rec.RealizedPnlUsd,
			&rec.RiskUsd,
			&rr,
			&maeR,
			&mfeR,
			&outcome,
			&rec.ClosedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		rec.Side = models.Side(side)
		rec.Outcome = models.Outcome(outcome)
		rec.RewardRiskRatio = floatPtr(rr)
		rec.MaeR = floatPtr(maeR)
		rec.MfeR = floatPtr(mfeR)
		trades = append(trades, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return trades, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
