package handlers

import (
	"context"
	"sync"

	"tradegate/internal/ledger"
	"tradegate/internal/models"
	"tradegate/internal/service"
)

// ============ Mock Trade Service ============

// MockTradeService мок для TradeServiceInterface; валидирует вход как леджер
type MockTradeService struct {
	mu       sync.Mutex
	recorded []models.TradeInput
	stats    models.TradeStats
	err      error
	filter   [2]string
}

func (m *MockTradeService) RecordTrade(ctx context.Context, in models.TradeInput) (models.TradeOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.TradeOutcome{}, m.err
	}
	if err := ledger.Validate(in); err != nil {
		return models.TradeOutcome{}, err
	}
	m.recorded = append(m.recorded, in)
	return ledger.Score(in), nil
}

func (m *MockTradeService) Stats(symbol, timeframe string) models.TradeStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = [2]string{symbol, timeframe}
	return m.stats
}

// ============ Mock Risk Service ============

// MockRiskService мок для RiskServiceInterface
type MockRiskService struct {
	mu         sync.Mutex
	killSwitch bool
	global     models.GlobalBudget
	symbols    map[string]models.SymbolBudget
	audit      []models.RiskAuditEvent
	lastLimit  int
	setErr     error
}

func NewMockRiskService() *MockRiskService {
	return &MockRiskService{
		global:  models.GlobalBudget{Mode: models.LimitModeNone},
		symbols: make(map[string]models.SymbolBudget),
	}
}

func (m *MockRiskService) SetKillSwitch(active bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.killSwitch = active
	return active
}

func (m *MockRiskService) SetGlobalLimit(usd float64) (models.GlobalBudget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return models.GlobalBudget{}, m.setErr
	}
	m.global.LimitUsd = usd
	m.global.Mode = models.LimitModeUSD
	return m.global, nil
}

func (m *MockRiskService) SetGlobalLimitPct(pct, baseUsd float64) (models.GlobalBudget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return models.GlobalBudget{}, m.setErr
	}
	frac := pct
	if pct >= 1 {
		frac = pct / 100
	}
	m.global.LimitUsd = baseUsd * frac
	m.global.Mode = models.LimitModePct
	return m.global, nil
}

func (m *MockRiskService) SetSymbolLimit(symbol string, usd float64) (models.SymbolBudget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return models.SymbolBudget{}, m.setErr
	}
	b := m.symbols[symbol]
	b.Symbol = symbol
	b.LimitUsd = usd
	m.symbols[symbol] = b
	return b, nil
}

func (m *MockRiskService) Status() models.RiskStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	by := make(map[string]models.SymbolBudget, len(m.symbols))
	for k, v := range m.symbols {
		by[k] = v
	}
	return models.RiskStatus{
		Day: "2025-09-24",
		Gates: models.GateStatus{
			ManualKillswitchBlocked: m.killSwitch,
			DailyDrawdownBlocked:    m.global.Breached,
		},
		Global:   m.global,
		BySymbol: by,
	}
}

func (m *MockRiskService) GlobalStatus() models.GlobalBudget {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.global
}

func (m *MockRiskService) SymbolStatus(symbol string) models.SymbolBudget {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.symbols[symbol]; ok {
		return b
	}
	return models.SymbolBudget{Symbol: symbol}
}

func (m *MockRiskService) RecentAudit(limit int) []models.RiskAuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	if limit <= 0 || limit > len(m.audit) {
		return m.audit
	}
	return m.audit[len(m.audit)-limit:]
}

// ============ Mock Signal Service ============

// MockSignalService мок для SignalServiceInterface
type MockSignalService struct {
	mu     sync.Mutex
	reason string
	err    error
	jobs   []*models.SignalJob
}

func (m *MockSignalService) Enqueue(ctx context.Context, job *models.SignalJob) (*service.EnqueueResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.reason != "" {
		return &service.EnqueueResult{Reason: m.reason}, nil
	}
	if job.IdempotencyKey == "" {
		job.IdempotencyKey = "generated-key"
	}
	m.jobs = append(m.jobs, job)
	return &service.EnqueueResult{Admitted: true, Job: job}, nil
}

var (
	_ service.TradeServiceInterface  = (*MockTradeService)(nil)
	_ service.RiskServiceInterface   = (*MockRiskService)(nil)
	_ service.SignalServiceInterface = (*MockSignalService)(nil)
)
