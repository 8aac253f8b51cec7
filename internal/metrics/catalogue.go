package metrics

// ============================================================
// Каталог метрик движка
// ============================================================
//
// Имена без namespace: внешние дашборды и тесты опираются на них напрямую.
// Набор меток фиксируется при первом использовании серии.

// Сделки
const (
	TradesCount           = "trades_count_total"
	TradesRR              = "trades_rr_ratio"
	TradesMaeR            = "trades_mae_r"
	TradesMfeR            = "trades_mfe_r"
	TradesPnlWinsUSD      = "trades_realized_pnl_wins_usd_total"
	TradesPnlLossesUSD    = "trades_realized_pnl_losses_usd_total"
	SignalsEnqueued       = "signals_enqueued_total"
	StoreWriteFailures    = "store_write_failures_total"
	HTTPRequests          = "http_requests_total"
	HTTPRequestDurationMs = "http_request_duration_ms"
)

// Риск
const (
	RiskKillSwitchActive       = "risk_killswitch_active"
	RiskDailyDrawdownUSD       = "risk_daily_drawdown_usd"
	RiskDailyDrawdownLimitUSD  = "risk_daily_drawdown_limit_usd"
	RiskSymbolDrawdownUSD      = "risk_daily_drawdown_symbol_usd"
	RiskSymbolDrawdownLimitUSD = "risk_daily_drawdown_symbol_limit_usd"
	RiskGateBlocked            = "risk_gate_blocked"
	RiskGateBlockedSymbol      = "risk_gate_blocked_symbol"
	RiskBlocks                 = "risk_blocks_total"
	RiskGateTransitions        = "risk_gate_transitions_total"
)

// Kind тип серии
type Kind int

const (
	KindCounter Kind = iota
	KindGauge
	KindHistogram
)

func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindGauge:
		return "gauge"
	case KindHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// Definition описание серии: тип, help и бакеты гистограммы
type Definition struct {
	Name    string
	Kind    Kind
	Help    string
	Buckets []float64
}

// Бакеты в единицах R
var rBuckets = []float64{0.25, 0.5, 1, 1.5, 2, 3, 5, 8}

// Catalogue стандартный набор определений
func Catalogue() []Definition {
	return []Definition{
		{Name: TradesCount, Kind: KindCounter, Help: "Closed trades recorded, by outcome"},
		{Name: TradesRR, Kind: KindHistogram, Help: "Reward/risk ratio of closed trades (only rr > 0 observed)", Buckets: rBuckets},
		{Name: TradesMaeR, Kind: KindHistogram, Help: "Maximum adverse excursion in R multiples", Buckets: rBuckets},
		{Name: TradesMfeR, Kind: KindHistogram, Help: "Maximum favorable excursion in R multiples", Buckets: rBuckets},
		{Name: TradesPnlWinsUSD, Kind: KindCounter, Help: "Sum of realized PnL of winning trades in USD"},
		{Name: TradesPnlLossesUSD, Kind: KindCounter, Help: "Sum of absolute realized PnL of losing trades in USD"},
		{Name: SignalsEnqueued, Kind: KindCounter, Help: "Signals admitted by the risk gate and forwarded"},
		{Name: StoreWriteFailures, Kind: KindCounter, Help: "Best-effort durability writes that failed"},
		{Name: HTTPRequests, Kind: KindCounter, Help: "HTTP requests served"},
		{Name: HTTPRequestDurationMs, Kind: KindHistogram, Help: "HTTP request duration in milliseconds", Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 1000}},

		{Name: RiskKillSwitchActive, Kind: KindGauge, Help: "Manual kill switch state (1 active, 0 inactive)"},
		{Name: RiskDailyDrawdownUSD, Kind: KindGauge, Help: "Global realized net PnL for the current day in USD"},
		{Name: RiskDailyDrawdownLimitUSD, Kind: KindGauge, Help: "Configured global daily loss limit in USD (0 = disabled)"},
		{Name: RiskSymbolDrawdownUSD, Kind: KindGauge, Help: "Per-symbol realized net PnL for the current day in USD"},
		{Name: RiskSymbolDrawdownLimitUSD, Kind: KindGauge, Help: "Configured per-symbol daily loss limit in USD"},
		{Name: RiskGateBlocked, Kind: KindGauge, Help: "1 while the gate of the given type is breached"},
		{Name: RiskGateBlockedSymbol, Kind: KindGauge, Help: "1 while the per-symbol drawdown gate is breached"},
		{Name: RiskBlocks, Kind: KindCounter, Help: "Rejected admission attempts by reason"},
		{Name: RiskGateTransitions, Kind: KindCounter, Help: "Risk gate state transitions"},
	}
}
