package service

import (
	"context"
	"sync"
	"time"

	"tradegate/internal/ledger"
	"tradegate/internal/metrics"
	"tradegate/internal/models"
	"tradegate/internal/risk"
	"tradegate/pkg/utils"
)

// ============ Mock TradeStore ============

type MockTradeStore struct {
	mu      sync.Mutex
	saved   []*models.TradeRecord
	stored  []*models.TradeRecord
	saveErr error
	loadErr error
}

func (m *MockTradeStore) SaveTrade(ctx context.Context, rec *models.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, rec)
	return nil
}

func (m *MockTradeStore) LoadTrades(ctx context.Context, since time.Time) ([]*models.TradeRecord, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	var out []*models.TradeRecord
	for _, rec := range m.stored {
		if !rec.ClosedAt.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ============ Mock AuditStore ============

type MockAuditStore struct {
	mu      sync.Mutex
	saved   []models.RiskAuditEvent
	stored  []*models.RiskAuditEvent
	saveErr error
	loadErr error

	// started получает сигнал при входе в SaveAudit, block держит запись до закрытия
	started chan struct{}
	block   chan struct{}
}

func (m *MockAuditStore) SaveAudit(ctx context.Context, evt *models.RiskAuditEvent) error {
	if m.started != nil {
		select {
		case m.started <- struct{}{}:
		default:
		}
	}
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, *evt)
	return nil
}

func (m *MockAuditStore) RecentAudit(ctx context.Context, limit int) ([]*models.RiskAuditEvent, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.stored, nil
}

// ============ Mock SignalSink ============

type MockSignalSink struct {
	jobs       []*models.SignalJob
	forwardErr error
}

func (m *MockSignalSink) Forward(ctx context.Context, job *models.SignalJob) error {
	if m.forwardErr != nil {
		return m.forwardErr
	}
	m.jobs = append(m.jobs, job)
	return nil
}

// ============ Mock Broadcaster ============

type MockBroadcaster struct {
	mu     sync.Mutex
	trades []*models.TradeRecord
	audit  []models.RiskAuditEvent
}

func (m *MockBroadcaster) BroadcastTradeRecorded(rec *models.TradeRecord, out models.TradeOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, rec)
}

func (m *MockBroadcaster) BroadcastRiskAudit(evt models.RiskAuditEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, evt)
}

// ============ Тестовое окружение ============

// testClock управляемые часы
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type testEnv struct {
	clock  *testClock
	reg    *metrics.Registry
	window *risk.DailyWindow
	gate   *risk.Gate
	ledger *ledger.Ledger
}

func newTestEnv() *testEnv {
	clock := &testClock{t: time.Date(2025, 9, 24, 12, 0, 0, 0, time.UTC)}
	reg := metrics.NewRegistry()
	window := risk.NewDailyWindow(time.UTC, clock.Now)
	gate := risk.NewGate(reg, window, risk.WithLogger(utils.NewNop()))
	l := ledger.New(reg, gate, ledger.WithLogger(utils.NewNop()), ledger.WithClock(window.Now, window.DayOf))
	return &testEnv{clock: clock, reg: reg, window: window, gate: gate, ledger: l}
}

func losingTrade(symbol string) models.TradeInput {
	return models.TradeInput{
		Symbol:     symbol,
		Timeframe:  "1m",
		Side:       models.SideLong,
		EntryPrice: 100,
		ExitPrice:  99,
		StopPrice:  98,
		SizeUsd:    600,
	}
}

func winningTrade(symbol string) models.TradeInput {
	in := losingTrade(symbol)
	in.ExitPrice = 102
	return in
}
