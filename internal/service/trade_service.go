package service

import (
	"context"
	"time"

	"tradegate/internal/ledger"
	"tradegate/internal/metrics"
	"tradegate/internal/models"
	"tradegate/internal/risk"
	"tradegate/pkg/utils"
)

// storeWriteTimeout ограничение на одну best-effort запись в хранилище
const storeWriteTimeout = 5 * time.Second

// TradeService предоставляет бизнес-логику записи закрытых сделок.
//
// Функции:
// - RecordTrade: оценить сделку, обновить метрики и дневной бюджет, сохранить запись
// - Stats: агрегированная статистика по символу/таймфрейму
// - Preload: восстановить метрики и бюджет из хранилища при старте
//
// Хранилище и WebSocket опциональны. Запись в хранилище выполняется
// после обновления леджера; ошибка записи не отменяет сделку.
type TradeService struct {
	ledger  *ledger.Ledger
	window  *risk.DailyWindow
	store   TradeStore
	metrics Counter
	wsHub   TradeBroadcaster
	log     *utils.Logger
}

// NewTradeService создает новый экземпляр TradeService; store может быть nil
func NewTradeService(l *ledger.Ledger, window *risk.DailyWindow, store TradeStore, m Counter, log *utils.Logger) *TradeService {
	if log == nil {
		log = utils.L()
	}
	return &TradeService{
		ledger:  l,
		window:  window,
		store:   store,
		metrics: m,
		log:     log.WithComponent("trade_service"),
	}
}

// SetWebSocketHub устанавливает WebSocket hub для broadcast сделок
func (s *TradeService) SetWebSocketHub(hub TradeBroadcaster) {
	s.wsHub = hub
}

// RecordTrade записывает закрытую сделку.
//
// Ошибка возвращается только при невалидном входе, в этом случае
// ничего не изменено (ledger.IsValidationError(err) == true).
func (s *TradeService) RecordTrade(ctx context.Context, in models.TradeInput) (models.TradeOutcome, error) {
	out, err := s.ledger.RecordTrade(in)
	if err != nil {
		return models.TradeOutcome{}, err
	}

	closedAt := s.window.Now()
	if in.ClosedAt != nil {
		closedAt = *in.ClosedAt
	}
	rec := models.NewTradeRecord(in, out, closedAt)

	s.persist(ctx, rec)

	if s.wsHub != nil {
		s.wsHub.BroadcastTradeRecorded(rec, out)
	}
	return out, nil
}

// Stats агрегаты по фильтру; пустые symbol/timeframe означают "все"
func (s *TradeService) Stats(symbol, timeframe string) models.TradeStats {
	return s.ledger.Stats(symbol, timeframe)
}

// Preload проигрывает сохранённые сделки, закрытые не раньше since.
//
// Дубликаты (одинаковый DedupKey) пропускаются. В дневной бюджет
// попадают только сделки, закрытые в текущий торговый день.
// Возвращает число проигранных сделок.
func (s *TradeService) Preload(ctx context.Context, since time.Time) (int, error) {
	if s.store == nil {
		return 0, nil
	}

	trades, err := s.store.LoadTrades(ctx, since)
	if err != nil {
		return 0, err
	}

	today := s.window.Today()
	seen := make(map[string]struct{}, len(trades))
	replayed, skipped := 0, 0

	for _, rec := range trades {
		key := rec.DedupKey()
		if _, dup := seen[key]; dup {
			skipped++
			continue
		}
		seen[key] = struct{}{}

		applyBudget := s.window.DayOf(rec.ClosedAt) == today
		if _, err := s.ledger.Replay(rec, applyBudget); err != nil {
			skipped++
			s.log.Warn("skipping stored trade", utils.Symbol(rec.Symbol), utils.Err(err))
			continue
		}
		replayed++
	}

	s.log.Info("trades preloaded",
		utils.Int("replayed", replayed),
		utils.Int("skipped", skipped),
		utils.Day(today),
	)
	return replayed, nil
}

func (s *TradeService) persist(ctx context.Context, rec *models.TradeRecord) {
	if s.store == nil {
		return
	}

	// запрос может завершиться раньше записи
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
	defer cancel()

	if err := s.store.SaveTrade(ctx, rec); err != nil {
		s.log.Warn("trade not persisted", utils.Symbol(rec.Symbol), utils.Err(err))
		if s.metrics != nil {
			_ = s.metrics.IncCounter(metrics.StoreWriteFailures, metrics.Labels{"kind": "trade"}, 1)
		}
	}
}
