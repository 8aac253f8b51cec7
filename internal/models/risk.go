package models

import "time"

// Типы гейтов риска
const (
	GateManualKillswitch = "manual_killswitch"
	GateDailyDrawdown    = "daily_drawdown"
	GateSymbolDrawdown   = "daily_drawdown_symbol"
)

// События переходов гейта
const (
	GateEventActivated   = "activated"
	GateEventDeactivated = "deactivated"
)

// Режимы глобального лимита
const (
	LimitModeNone = "none"
	LimitModeUSD  = "usd"
	LimitModePct  = "pct"
)

// RiskAuditEvent представляет переход гейта риска (включился/выключился)
//
// Symbol пустой для глобальных гейтов.
type RiskAuditEvent struct {
	ID        string                 `json:"id" db:"event_id"`
	Timestamp time.Time              `json:"ts" db:"ts"`
	Gate      string                 `json:"gate" db:"gate"`
	Event     string                 `json:"event" db:"event"`
	Symbol    string                 `json:"symbol,omitempty" db:"symbol"`
	Meta      map[string]interface{} `json:"meta,omitempty" db:"meta"`
}

// RiskStatus представляет снимок состояния риска для /risk/status
//
// ResetsAt - следующая полночь торгового дня (UTC).
type RiskStatus struct {
	Day      string                  `json:"day"`
	ResetsAt time.Time               `json:"resetsAt"`
	Gates    GateStatus              `json:"gates"`
	Global   GlobalBudget            `json:"global"`
	BySymbol map[string]SymbolBudget `json:"bySymbol"`
}

// GateStatus текущее состояние глобальных гейтов
type GateStatus struct {
	ManualKillswitchBlocked bool `json:"manual_killswitch_blocked"`
	DailyDrawdownBlocked    bool `json:"daily_drawdown_blocked"`
}

// GlobalBudget глобальный дневной бюджет убытка
type GlobalBudget struct {
	PnlTodayUsd float64 `json:"pnl_today_usd"`
	LimitUsd    float64 `json:"limit_usd"`
	Mode        string  `json:"mode"`
	Breached    bool    `json:"breached"`
}

// SymbolBudget дневной бюджет убытка по символу
type SymbolBudget struct {
	Symbol      string  `json:"symbol,omitempty"`
	PnlTodayUsd float64 `json:"pnl_today_usd"`
	LimitUsd    float64 `json:"limit_usd"`
	Blocked     bool    `json:"blocked"`
}
