package ledger

import (
	"errors"
	"sync"
	"time"

	"tradegate/internal/metrics"
	"tradegate/internal/models"
	"tradegate/pkg/utils"
)

// ErrInvalidTrade базовая ошибка валидации сделки (errors.Is)
var ErrInvalidTrade = errors.New("invalid trade")

// ValidationError ошибка валидации с разбивкой по полям
type ValidationError struct {
	Fields utils.ValidationErrors
}

func (e *ValidationError) Error() string {
	return "invalid trade: " + e.Fields.Error()
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidTrade
}

// Metrics то, что леджер пишет в реестр метрик
type Metrics interface {
	IncCounter(name string, labels metrics.Labels, delta float64) error
	ObserveHistogram(name string, labels metrics.Labels, value float64) error
}

// Budget получатель реализованного PnL (risk.Gate)
//
// notify рассылает переходы гейтов и вызывается леджером после
// освобождения своей блокировки: слушатели могут писать в хранилище.
type Budget interface {
	ApplyRealizedPnlDeferred(symbol string, pnlUsd float64) (notify func(), err error)
}

// Ledger - учёт закрытых сделок
//
// RecordTrade валидирует вход целиком до любых изменений, затем под одной
// блокировкой обновляет метрики, агрегаты и дневной бюджет. Параллельный
// Evaluate видит состояние либо до, либо после сделки. События аудита
// рассылаются уже без блокировки.
type Ledger struct {
	mu      sync.Mutex
	metrics Metrics
	budget  Budget
	stats   *Stats
	log     *utils.Logger
	now     func() time.Time
	dayOf   func(time.Time) string
}

// Option настройка леджера
type Option func(*Ledger)

func WithLogger(l *utils.Logger) Option {
	return func(ld *Ledger) { ld.log = l }
}

// WithClock часы и функция ключа дня (обычно от risk.DailyWindow)
func WithClock(now func() time.Time, dayOf func(time.Time) string) Option {
	return func(ld *Ledger) {
		if now != nil {
			ld.now = now
		}
		if dayOf != nil {
			ld.dayOf = dayOf
		}
	}
}

// New создаёт леджер; budget может быть nil (только метрики)
func New(m Metrics, budget Budget, opts ...Option) *Ledger {
	l := &Ledger{
		metrics: m,
		budget:  budget,
		stats:   NewStats(),
		now:     time.Now,
		dayOf:   func(t time.Time) string { return utils.DayKey(t, time.UTC) },
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = utils.L()
	}
	l.log = l.log.WithComponent("ledger")
	return l
}

// RecordTrade оценивает сделку и применяет её к метрикам и бюджету
func (l *Ledger) RecordTrade(in models.TradeInput) (models.TradeOutcome, error) {
	if err := Validate(in); err != nil {
		return models.TradeOutcome{}, err
	}
	out := Score(in)

	closedAt := l.now()
	if in.ClosedAt != nil {
		closedAt = *in.ClosedAt
	}

	errs := l.apply(in, out, l.dayOf(closedAt), true)()
	l.report(in, out, errs)
	return out, nil
}

// Replay повторно применяет сохранённую сделку (при загрузке)
//
// applyBudget = false обновляет только метрики и агрегаты.
func (l *Ledger) Replay(rec *models.TradeRecord, applyBudget bool) (models.TradeOutcome, error) {
	in := rec.Input()
	if err := Validate(in); err != nil {
		return models.TradeOutcome{}, err
	}
	out := Score(in)

	errs := l.apply(in, out, l.dayOf(rec.ClosedAt), applyBudget)()
	for _, err := range errs {
		l.log.Error("replay update failed", utils.Symbol(in.Symbol), utils.Err(err))
	}
	return out, nil
}

// Stats сводка агрегатов по фильтру
func (l *Ledger) Stats(symbol, timeframe string) models.TradeStats {
	return l.stats.Snapshot(symbol, timeframe)
}

// apply меняет состояние под l.mu; возвращённая функция рассылает
// события бюджета и вызывается после Unlock
func (l *Ledger) apply(in models.TradeInput, out models.TradeOutcome, day string, applyBudget bool) func() []error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	notify := func() {}
	track := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	byOutcome := metrics.Labels{"symbol": in.Symbol, "timeframe": in.Timeframe, "outcome": string(out.Outcome)}
	bySeries := metrics.Labels{"symbol": in.Symbol, "timeframe": in.Timeframe}

	if l.metrics != nil {
		track(l.metrics.IncCounter(metrics.TradesCount, byOutcome, 1))
		if out.RatioDefined && out.RewardRiskRatio > 0 {
			track(l.metrics.ObserveHistogram(metrics.TradesRR, byOutcome, out.RewardRiskRatio))
		}
		if out.MaeR != nil {
			track(l.metrics.ObserveHistogram(metrics.TradesMaeR, bySeries, *out.MaeR))
		}
		if out.MfeR != nil {
			track(l.metrics.ObserveHistogram(metrics.TradesMfeR, bySeries, *out.MfeR))
		}
		if out.Outcome == models.OutcomeWin {
			track(l.metrics.IncCounter(metrics.TradesPnlWinsUSD, bySeries, out.RealizedPnlUsd))
		} else {
			track(l.metrics.IncCounter(metrics.TradesPnlLossesUSD, bySeries, -out.RealizedPnlUsd))
		}
	}

	l.stats.Add(in.Symbol, in.Timeframe, day, out)

	if applyBudget && l.budget != nil {
		n, err := l.budget.ApplyRealizedPnlDeferred(in.Symbol, out.RealizedPnlUsd)
		track(err)
		if n != nil {
			notify = n
		}
	}
	return func() []error {
		notify()
		return errs
	}
}

func (l *Ledger) report(in models.TradeInput, out models.TradeOutcome, errs []error) {
	log := l.log.WithSymbol(in.Symbol).With(utils.Timeframe(in.Timeframe))
	for _, err := range errs {
		log.Error("trade update failed", utils.Err(err))
	}
	if !out.RatioDefined {
		log.Warn("reward/risk undefined: stop is not on the risk side of entry",
			utils.Side(string(in.Side)),
			utils.Float64("entry", in.EntryPrice),
			utils.Float64("stop", in.StopPrice),
		)
	}
	log.Debug("trade recorded",
		utils.String("outcome", string(out.Outcome)),
		utils.PNL(out.RealizedPnlUsd),
	)
}

// ============================================================
// Валидация и расчёт
// ============================================================

// Validate проверяет вход полностью, без побочных эффектов
func Validate(in models.TradeInput) error {
	var errs utils.ValidationErrors

	errs.AddError("symbol", utils.ValidateSymbol(in.Symbol))
	errs.AddError("timeframe", utils.ValidateTimeframe(in.Timeframe))
	if !in.Side.Valid() {
		errs.Add("side", `must be "long" or "short"`)
	}

	positive := []struct {
		field string
		value float64
	}{
		{"entryPrice", in.EntryPrice},
		{"exitPrice", in.ExitPrice},
		{"stopPrice", in.StopPrice},
		{"sizeUsd", in.SizeUsd},
	}
	for _, p := range positive {
		if !utils.IsFinite(p.value) || p.value <= 0 {
			errs.Add(p.field, "must be a finite number > 0")
		}
	}

	if !utils.IsFinite(in.FeesUsd) {
		errs.Add("feesUsd", "must be a finite number")
	}
	if !utils.IsFinite(in.HighPrice) || in.HighPrice < 0 {
		errs.Add("highPrice", "must be a finite number >= 0")
	}
	if !utils.IsFinite(in.LowPrice) || in.LowPrice < 0 {
		errs.Add("lowPrice", "must be a finite number >= 0")
	}
	if in.HighPrice > 0 && in.LowPrice > 0 && in.HighPrice < in.LowPrice {
		errs.Add("highPrice", "must be >= lowPrice")
	}

	if errs.HasErrors() {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// Score рассчитывает результат сделки; вход должен пройти Validate
func Score(in models.TradeInput) models.TradeOutcome {
	side := string(in.Side)
	qty := utils.PositionQuantity(in.SizeUsd, in.EntryPrice)
	realized := utils.CalculatePNL(side, in.EntryPrice, in.ExitPrice, qty) - in.FeesUsd

	out := models.TradeOutcome{
		Quantity:       qty,
		RealizedPnlUsd: realized,
		RiskUsd:        utils.RiskUSD(in.EntryPrice, in.StopPrice, qty),
		Outcome:        models.OutcomeLoss,
	}
	if realized > 0 {
		out.Outcome = models.OutcomeWin
	}

	// reward и risk в ценовых единицах, знак зависит от стороны
	reward, risk := in.ExitPrice-in.EntryPrice, in.EntryPrice-in.StopPrice
	if in.Side == models.SideShort {
		reward, risk = in.EntryPrice-in.ExitPrice, in.StopPrice-in.EntryPrice
	}
	if risk > 0 {
		if rr := reward / risk; utils.IsFinite(rr) {
			out.RewardRiskRatio = rr
			out.RatioDefined = true
		}
	}

	if out.RiskUsd > 0 {
		favorableKnown, adverseKnown := in.HighPrice > 0, in.LowPrice > 0
		if in.Side == models.SideShort {
			favorableKnown, adverseKnown = in.LowPrice > 0, in.HighPrice > 0
		}
		if favorableKnown {
			fav := utils.FavorableExcursion(side, in.EntryPrice, in.HighPrice, in.LowPrice, qty)
			if r, ok := utils.RMultiple(fav, out.RiskUsd); ok && r >= 0 {
				out.MfeR = &r
			}
		}
		if adverseKnown {
			adv := utils.AdverseExcursion(side, in.EntryPrice, in.HighPrice, in.LowPrice, qty)
			if r, ok := utils.RMultiple(adv, out.RiskUsd); ok && r >= 0 {
				out.MaeR = &r
			}
		}
	}

	return out
}

// IsValidationError true для ошибок валидации сделки
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidTrade)
}

// FieldErrors поля с ошибками (пусто для прочих ошибок)
func FieldErrors(err error) utils.ValidationErrors {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}
