package models

import (
	"strconv"
	"strings"
	"time"
)

// Side направление позиции
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Valid true для long/short
func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// Outcome результат закрытой сделки
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
)

// TradeInput представляет закрытую сделку, пришедшую на запись
//
// HighPrice/LowPrice - экстремумы цены за время жизни позиции, 0 = неизвестно.
// ClosedAt попадает только в сохраняемую запись, дневной бюджет
// считается по часам движка.
type TradeInput struct {
	Symbol     string     `json:"symbol"`
	Timeframe  string     `json:"timeframe"`
	Side       Side       `json:"side"`
	EntryPrice float64    `json:"entryPrice"`
	ExitPrice  float64    `json:"exitPrice"`
	StopPrice  float64    `json:"stopPrice"`
	SizeUsd    float64    `json:"sizeUsd"`
	HighPrice  float64    `json:"highPrice,omitempty"`
	LowPrice   float64    `json:"lowPrice,omitempty"`
	FeesUsd    float64    `json:"feesUsd"`
	ClosedAt   *time.Time `json:"closedAt,omitempty"`
}

// TradeOutcome представляет рассчитанный результат сделки
//
// RewardRiskRatio имеет смысл только при RatioDefined == true.
// MaeR/MfeR равны nil, если high/low не переданы или риск нулевой.
type TradeOutcome struct {
	Quantity        float64  `json:"qty"`
	RealizedPnlUsd  float64  `json:"realizedPnlUsd"`
	RewardRiskRatio float64  `json:"rr"`
	RatioDefined    bool     `json:"rrDefined"`
	RiskUsd         float64  `json:"rUsd"`
	MaeR            *float64 `json:"maeR,omitempty"`
	MfeR            *float64 `json:"mfeR,omitempty"`
	Outcome         Outcome  `json:"outcome"`
}

// TradeRecord представляет сохранённую сделку (входные данные + результат)
type TradeRecord struct {
	ID              int64     `json:"id,omitempty" db:"id"`
	Symbol          string    `json:"symbol" db:"symbol"`
	Timeframe       string    `json:"timeframe" db:"timeframe"`
	Side            Side      `json:"side" db:"side"`
	EntryPrice      float64   `json:"entryPrice" db:"entry_price"`
	ExitPrice       float64   `json:"exitPrice" db:"exit_price"`
	StopPrice       float64   `json:"stopPrice" db:"stop_price"`
	SizeUsd         float64   `json:"sizeUsd" db:"size_usd"`
	FeesUsd         float64   `json:"feesUsd" db:"fees_usd"`
	HighPrice       float64   `json:"highPrice,omitempty" db:"high_price"`
	LowPrice        float64   `json:"lowPrice,omitempty" db:"low_price"`
	Quantity        float64   `json:"qty" db:"qty"`
	RealizedPnlUsd  float64   `json:"realizedPnlUsd" db:"realized_pnl_usd"`
	RiskUsd         float64   `json:"rUsd" db:"r_usd"`
	RewardRiskRatio *float64  `json:"rr,omitempty" db:"rr"`
	MaeR            *float64  `json:"maeR,omitempty" db:"mae_r"`
	MfeR            *float64  `json:"mfeR,omitempty" db:"mfe_r"`
	Outcome         Outcome   `json:"outcome" db:"outcome"`
	ClosedAt        time.Time `json:"closedAt" db:"closed_at"`
}

// NewTradeRecord собирает запись из входа и рассчитанного результата
func NewTradeRecord(in TradeInput, out TradeOutcome, closedAt time.Time) *TradeRecord {
	rec := &TradeRecord{
		Symbol:         in.Symbol,
		Timeframe:      in.Timeframe,
		Side:           in.Side,
		EntryPrice:     in.EntryPrice,
		ExitPrice:      in.ExitPrice,
		StopPrice:      in.StopPrice,
		SizeUsd:        in.SizeUsd,
		FeesUsd:        in.FeesUsd,
		HighPrice:      in.HighPrice,
		LowPrice:       in.LowPrice,
		Quantity:       out.Quantity,
		RealizedPnlUsd: out.RealizedPnlUsd,
		RiskUsd:        out.RiskUsd,
		MaeR:           out.MaeR,
		MfeR:           out.MfeR,
		Outcome:        out.Outcome,
		ClosedAt:       closedAt.UTC(),
	}
	if out.RatioDefined {
		rr := out.RewardRiskRatio
		rec.RewardRiskRatio = &rr
	}
	return rec
}

// Input восстанавливает TradeInput из записи (для повторного проигрывания)
func (r *TradeRecord) Input() TradeInput {
	closedAt := r.ClosedAt
	return TradeInput{
		Symbol:     r.Symbol,
		Timeframe:  r.Timeframe,
		Side:       r.Side,
		EntryPrice: r.EntryPrice,
		ExitPrice:  r.ExitPrice,
		StopPrice:  r.StopPrice,
		SizeUsd:    r.SizeUsd,
		HighPrice:  r.HighPrice,
		LowPrice:   r.LowPrice,
		FeesUsd:    r.FeesUsd,
		ClosedAt:   &closedAt,
	}
}

// DedupKey стабильный ключ сделки для дедупликации при загрузке
func (r *TradeRecord) DedupKey() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return strings.Join([]string{
		r.Symbol,
		r.Timeframe,
		string(r.Side),
		f(r.EntryPrice),
		f(r.ExitPrice),
		f(r.StopPrice),
		f(r.SizeUsd),
		f(r.FeesUsd),
		r.ClosedAt.UTC().Format(time.RFC3339Nano),
	}, "|")
}
