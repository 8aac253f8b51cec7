package risk

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"tradegate/internal/metrics"
	"tradegate/internal/models"
	"tradegate/pkg/utils"
)

// SymbolReasonPrefix префикс причины блокировки по символу
const SymbolReasonPrefix = "daily_drawdown_symbol_"

var (
	ErrInvalidLimit  = errors.New("risk limit must be a finite number > 0")
	ErrInvalidBase   = errors.New("base equity must be a finite number > 0")
	ErrInvalidPnl    = errors.New("realized pnl must be finite")
	ErrInvalidSymbol = errors.New("invalid symbol")
)

// Metrics то, что гейт пишет в реестр метрик
type Metrics interface {
	IncCounter(name string, labels metrics.Labels, delta float64) error
	SetGauge(name string, labels metrics.Labels, value float64) error
}

// Decision результат проверки допуска сигнала
type Decision struct {
	Admitted bool   `json:"admitted"`
	Reason   string `json:"reason,omitempty"`
}

// SymbolReason причина блокировки по дневному лимиту символа
func SymbolReason(symbol string) string {
	return SymbolReasonPrefix + symbol
}

// AuditListener получает переходы гейтов после освобождения блокировки
type AuditListener func(evt models.RiskAuditEvent)

// Gate - контроль допуска сигналов по риску
//
// Порядок проверок в Evaluate фиксирован и прерывается на первом срабатывании:
//  1. ручной kill switch
//  2. глобальный дневной лимит убытка
//  3. дневной лимит убытка символа
//
// Gauge гейтов отражают текущее состояние нарушения и обновляются сразу
// при любом изменении (сделка, лимит, kill switch, смена дня), а не только
// при вызове Evaluate. Всё состояние защищено одним мьютексом.
type Gate struct {
	mu      sync.Mutex
	metrics Metrics
	window  *DailyWindow
	audit   *AuditLog
	log     *utils.Logger

	killSwitch bool
	global     Budget
	limitMode  string
	symbols    map[string]*Budget

	// последнее опубликованное состояние гейтов, для детекта переходов
	blockedKill   bool
	blockedGlobal bool
	blockedSymbol map[string]bool

	listeners []AuditListener
}

// Option настройка гейта
type Option func(*Gate)

// WithLogger логгер гейта
func WithLogger(l *utils.Logger) Option {
	return func(g *Gate) { g.log = l }
}

// WithAuditLog внешний буфер аудита (по умолчанию DefaultAuditCapacity)
func WithAuditLog(a *AuditLog) Option {
	return func(g *Gate) { g.audit = a }
}

// NewGate создаёт гейт и публикует начальные значения gauge
func NewGate(m Metrics, window *DailyWindow, opts ...Option) *Gate {
	if window == nil {
		window = NewDailyWindow(nil, nil)
	}
	g := &Gate{
		metrics:       m,
		window:        window,
		limitMode:     models.LimitModeNone,
		symbols:       make(map[string]*Budget),
		blockedSymbol: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.audit == nil {
		g.audit = NewAuditLog(DefaultAuditCapacity)
	}
	if g.log == nil {
		g.log = utils.L()
	}
	g.log = g.log.WithComponent("risk")

	g.mu.Lock()
	g.global.DayStamp = window.Today()
	g.setGauge(metrics.RiskKillSwitchActive, nil, 0)
	g.setGauge(metrics.RiskDailyDrawdownUSD, nil, 0)
	g.setGauge(metrics.RiskDailyDrawdownLimitUSD, nil, 0)
	g.syncLocked()
	g.mu.Unlock()

	return g
}

// OnAudit подписывает listener на переходы гейтов
func (g *Gate) OnAudit(l AuditListener) {
	g.mu.Lock()
	g.listeners = append(g.listeners, l)
	g.mu.Unlock()
}

// Audit буфер последних переходов
func (g *Gate) Audit() *AuditLog {
	return g.audit
}

// Window окно торгового дня, которым пользуется гейт
func (g *Gate) Window() *DailyWindow {
	return g.window
}

// SetKillSwitch включает/выключает ручную блокировку всех сигналов
func (g *Gate) SetKillSwitch(active bool) {
	g.mu.Lock()
	g.killSwitch = active
	g.setGauge(metrics.RiskKillSwitchActive, nil, boolToFloat(active))
	events := g.syncLocked()
	g.mu.Unlock()

	g.log.Info("kill switch updated", utils.Bool("active", active))
	g.dispatch(events)
}

// SetGlobalLimit задаёт глобальный дневной лимит убытка в USD
func (g *Gate) SetGlobalLimit(usd float64) error {
	if err := utils.ValidateLimitUSD(usd); err != nil {
		return fmt.Errorf("%w: got %v", ErrInvalidLimit, usd)
	}
	g.applyGlobalLimit(usd, models.LimitModeUSD)
	return nil
}

// SetGlobalLimitPct задаёт глобальный лимит как процент от капитала
//
// pct >= 1 трактуется как проценты (5 = 5%), меньше 1 как доля.
// Возвращает рассчитанный лимит в USD.
func (g *Gate) SetGlobalLimitPct(pct, baseUsd float64) (float64, error) {
	if err := utils.ValidatePercentage(pct); err != nil {
		return 0, fmt.Errorf("%w: pct=%v", ErrInvalidLimit, pct)
	}
	if !utils.IsFinite(baseUsd) || baseUsd <= 0 {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidBase, baseUsd)
	}
	usd := baseUsd * utils.PercentToFraction(pct)
	if err := utils.ValidateLimitUSD(usd); err != nil {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidLimit, usd)
	}
	g.applyGlobalLimit(usd, models.LimitModePct)
	return usd, nil
}

func (g *Gate) applyGlobalLimit(usd float64, mode string) {
	g.mu.Lock()
	g.rollLocked()
	g.global.LimitUsd = usd
	g.limitMode = mode
	g.setGauge(metrics.RiskDailyDrawdownLimitUSD, nil, usd)
	events := g.syncLocked()
	g.mu.Unlock()

	g.log.Info("global drawdown limit updated", utils.LimitUSD(usd), utils.String("mode", mode))
	g.dispatch(events)
}

// SetSymbolLimit задаёт дневной лимит убытка для символа
func (g *Gate) SetSymbolLimit(symbol string, usd float64) error {
	symbol = strings.TrimSpace(symbol)
	if err := utils.ValidateSymbol(symbol); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSymbol, err)
	}
	if err := utils.ValidateLimitUSD(usd); err != nil {
		return fmt.Errorf("%w: got %v", ErrInvalidLimit, usd)
	}

	g.mu.Lock()
	g.rollLocked()
	b := g.symbolLocked(symbol)
	b.LimitUsd = usd
	g.setGauge(metrics.RiskSymbolDrawdownLimitUSD, metrics.Labels{"symbol": symbol}, usd)
	events := g.syncLocked()
	g.mu.Unlock()

	g.log.Info("symbol drawdown limit updated", utils.Symbol(symbol), utils.LimitUSD(usd))
	g.dispatch(events)
	return nil
}

// ApplyRealizedPnl добавляет реализованный PnL к дневным бюджетам
func (g *Gate) ApplyRealizedPnl(symbol string, pnlUsd float64) error {
	notify, err := g.ApplyRealizedPnlDeferred(symbol, pnlUsd)
	if err != nil {
		return err
	}
	notify()
	return nil
}

// ApplyRealizedPnlDeferred как ApplyRealizedPnl, но слушатели аудита
// вызываются только через возвращённый notify
//
// Для вызывающих, которые сами держат блокировку: notify вызывается
// после её освобождения.
func (g *Gate) ApplyRealizedPnlDeferred(symbol string, pnlUsd float64) (notify func(), err error) {
	if symbol == "" {
		return nil, ErrInvalidSymbol
	}
	if !utils.IsFinite(pnlUsd) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidPnl, pnlUsd)
	}

	g.mu.Lock()
	g.rollLocked()
	g.global.NetPnlUsd += pnlUsd
	b := g.symbolLocked(symbol)
	b.NetPnlUsd += pnlUsd
	g.setGauge(metrics.RiskDailyDrawdownUSD, nil, g.global.NetPnlUsd)
	g.setGauge(metrics.RiskSymbolDrawdownUSD, metrics.Labels{"symbol": symbol}, b.NetPnlUsd)
	events := g.syncLocked()
	g.mu.Unlock()

	return func() { g.dispatch(events) }, nil
}

// Evaluate решает, можно ли допустить сигнал по символу
//
// Каждый отказ увеличивает risk_blocks_total{reason} ровно на 1.
func (g *Gate) Evaluate(symbol string) Decision {
	g.mu.Lock()
	var events []models.RiskAuditEvent
	if g.rollLocked() {
		events = g.syncLocked()
	}

	d := Decision{Admitted: true}
	switch {
	case g.killSwitch:
		d = Decision{Reason: models.GateManualKillswitch}
	case g.global.Breached():
		d = Decision{Reason: models.GateDailyDrawdown}
	default:
		if b, ok := g.symbols[symbol]; ok && b.Breached() {
			d = Decision{Reason: SymbolReason(symbol)}
		}
	}
	if !d.Admitted {
		g.incCounter(metrics.RiskBlocks, metrics.Labels{"reason": d.Reason}, 1)
	}
	g.mu.Unlock()

	g.dispatch(events)
	return d
}

// Status снимок состояния риска
func (g *Gate) Status() models.RiskStatus {
	g.mu.Lock()
	var events []models.RiskAuditEvent
	if g.rollLocked() {
		events = g.syncLocked()
	}

	st := models.RiskStatus{
		Day:      g.global.DayStamp,
		ResetsAt: g.window.NextReset().UTC(),
		Gates: models.GateStatus{
			ManualKillswitchBlocked: g.killSwitch,
			DailyDrawdownBlocked:    g.global.Breached(),
		},
		Global:   g.globalLocked(),
		BySymbol: make(map[string]models.SymbolBudget, len(g.symbols)),
	}
	for sym, b := range g.symbols {
		st.BySymbol[sym] = symbolBudget(sym, b)
	}
	g.mu.Unlock()

	g.dispatch(events)
	return st
}

// GlobalStatus состояние глобального бюджета
func (g *Gate) GlobalStatus() models.GlobalBudget {
	return g.Status().Global
}

// SymbolStatus состояние бюджета символа; false, если символ не встречался
func (g *Gate) SymbolStatus(symbol string) (models.SymbolBudget, bool) {
	g.mu.Lock()
	var events []models.RiskAuditEvent
	if g.rollLocked() {
		events = g.syncLocked()
	}
	b, ok := g.symbols[symbol]
	var out models.SymbolBudget
	if ok {
		out = symbolBudget(symbol, b)
	}
	g.mu.Unlock()

	g.dispatch(events)
	return out, ok
}

// KillSwitchActive текущее состояние ручной блокировки
func (g *Gate) KillSwitchActive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.killSwitch
}

// ============================================================
// Внутреннее (вызывается под g.mu)
// ============================================================

func (g *Gate) globalLocked() models.GlobalBudget {
	return models.GlobalBudget{
		PnlTodayUsd: g.global.NetPnlUsd,
		LimitUsd:    g.global.LimitUsd,
		Mode:        g.limitMode,
		Breached:    g.global.Breached(),
	}
}

func symbolBudget(symbol string, b *Budget) models.SymbolBudget {
	return models.SymbolBudget{
		Symbol:      symbol,
		PnlTodayUsd: b.NetPnlUsd,
		LimitUsd:    b.LimitUsd,
		Blocked:     b.Breached(),
	}
}

func (g *Gate) symbolLocked(symbol string) *Budget {
	b, ok := g.symbols[symbol]
	if !ok {
		b = &Budget{DayStamp: g.global.DayStamp}
		g.symbols[symbol] = b
	}
	return b
}

// rollLocked переводит все бюджеты на текущий день
func (g *Gate) rollLocked() bool {
	today := g.window.Today()
	rolled := false
	if rollTo(&g.global, today) {
		g.setGauge(metrics.RiskDailyDrawdownUSD, nil, 0)
		rolled = true
	}
	for sym, b := range g.symbols {
		if rollTo(b, today) {
			g.setGauge(metrics.RiskSymbolDrawdownUSD, metrics.Labels{"symbol": sym}, 0)
			rolled = true
		}
	}
	return rolled
}

// syncLocked публикует gauge гейтов и собирает события переходов
func (g *Gate) syncLocked() []models.RiskAuditEvent {
	var events []models.RiskAuditEvent

	kill := g.killSwitch
	g.setGauge(metrics.RiskGateBlocked, metrics.Labels{"type": models.GateManualKillswitch}, boolToFloat(kill))
	if kill != g.blockedKill {
		g.blockedKill = kill
		events = append(events, g.transitionLocked(models.GateManualKillswitch, "", kill, nil))
	}

	global := g.global.Breached()
	g.setGauge(metrics.RiskGateBlocked, metrics.Labels{"type": models.GateDailyDrawdown}, boolToFloat(global))
	if global != g.blockedGlobal {
		g.blockedGlobal = global
		events = append(events, g.transitionLocked(models.GateDailyDrawdown, "", global, map[string]interface{}{
			"pnl_today_usd": g.global.NetPnlUsd,
			"limit_usd":     g.global.LimitUsd,
		}))
	}

	symbols := make([]string, 0, len(g.symbols))
	for sym := range g.symbols {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		b := g.symbols[sym]
		blocked := b.Breached()
		g.setGauge(metrics.RiskGateBlockedSymbol, metrics.Labels{"symbol": sym}, boolToFloat(blocked))
		if blocked != g.blockedSymbol[sym] {
			g.blockedSymbol[sym] = blocked
			events = append(events, g.transitionLocked(models.GateSymbolDrawdown, sym, blocked, map[string]interface{}{
				"pnl_today_usd": b.NetPnlUsd,
				"limit_usd":     b.LimitUsd,
			}))
		}
	}

	return events
}

func (g *Gate) transitionLocked(gate, symbol string, active bool, meta map[string]interface{}) models.RiskAuditEvent {
	event := models.GateEventDeactivated
	if active {
		event = models.GateEventActivated
	}
	evt := models.RiskAuditEvent{
		ID:        uuid.NewString(),
		Timestamp: g.window.Now().UTC(),
		Gate:      gate,
		Event:     event,
		Symbol:    symbol,
		Meta:      meta,
	}
	g.incCounter(metrics.RiskGateTransitions, metrics.Labels{"gate": gate, "symbol": symbol, "event": event}, 1)
	g.audit.Append(evt)
	return evt
}

func (g *Gate) setGauge(name string, labels metrics.Labels, v float64) {
	if g.metrics == nil {
		return
	}
	if err := g.metrics.SetGauge(name, labels, v); err != nil {
		g.log.Error("set gauge failed", utils.String("metric", name), utils.Err(err))
	}
}

func (g *Gate) incCounter(name string, labels metrics.Labels, delta float64) {
	if g.metrics == nil {
		return
	}
	if err := g.metrics.IncCounter(name, labels, delta); err != nil {
		g.log.Error("inc counter failed", utils.String("metric", name), utils.Err(err))
	}
}

// dispatch вызывается без блокировки
func (g *Gate) dispatch(events []models.RiskAuditEvent) {
	if len(events) == 0 {
		return
	}

	g.mu.Lock()
	listeners := make([]AuditListener, len(g.listeners))
	copy(listeners, g.listeners)
	g.mu.Unlock()

	for _, evt := range events {
		g.log.Info("risk gate transition",
			utils.Gate(evt.Gate),
			utils.Event(evt.Event),
			utils.Symbol(evt.Symbol),
		)
		for _, l := range listeners {
			l(evt)
		}
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
