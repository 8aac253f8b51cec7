package models

// TradeStats представляет агрегированную статистику закрытых сделок
//
// AvgRR считается только по сделкам с определённым rr.
// PnlByDay: ключ YYYY-MM-DD в таймзоне риска.
type TradeStats struct {
	Symbol    string             `json:"symbol,omitempty"`
	Timeframe string             `json:"timeframe,omitempty"`
	Total     int                `json:"total"`
	Wins      int                `json:"wins"`
	Losses    int                `json:"losses"`
	WinRate   float64            `json:"winrate"`
	AvgRR     float64            `json:"avgRR"`
	SumPnl    float64            `json:"sumPnl"`
	PnlWins   float64            `json:"pnlWins"`
	PnlLosses float64            `json:"pnlLosses"`
	PnlByDay  map[string]float64 `json:"pnlByDay"`
}

// MetricsSummary представляет JSON-сводку для /metrics/summary
type MetricsSummary struct {
	Risk   RiskStatus         `json:"risk"`
	Trades TradeStats         `json:"trades"`
	Blocks map[string]float64 `json:"blocks"`
}
