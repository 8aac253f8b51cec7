package service

import (
	"context"
	"time"

	"tradegate/internal/metrics"
	"tradegate/internal/models"
	"tradegate/internal/repository"
	"tradegate/internal/risk"
)

// TradeStore определяет интерфейс хранилища закрытых сделок
type TradeStore interface {
	SaveTrade(ctx context.Context, rec *models.TradeRecord) error
	LoadTrades(ctx context.Context, since time.Time) ([]*models.TradeRecord, error)
}

// AuditStore определяет интерфейс хранилища аудита гейтов риска
type AuditStore interface {
	SaveAudit(ctx context.Context, evt *models.RiskAuditEvent) error
	RecentAudit(ctx context.Context, limit int) ([]*models.RiskAuditEvent, error)
}

// SignalSink принимает сигналы, допущенные гейтом
type SignalSink interface {
	Forward(ctx context.Context, job *models.SignalJob) error
}

// Counter часть реестра метрик, нужная сервисам
type Counter interface {
	IncCounter(name string, labels metrics.Labels, delta float64) error
}

// TradeBroadcaster - отправка записанных сделок через WebSocket
type TradeBroadcaster interface {
	BroadcastTradeRecorded(rec *models.TradeRecord, out models.TradeOutcome)
}

// AuditBroadcaster - отправка переходов гейтов через WebSocket
type AuditBroadcaster interface {
	BroadcastRiskAudit(evt models.RiskAuditEvent)
}

// Проверяем, что реальные хранилища реализуют интерфейсы
var _ TradeStore = (*repository.TradeRepository)(nil)
var _ TradeStore = (*repository.JSONLStore)(nil)
var _ AuditStore = (*repository.AuditRepository)(nil)
var _ AuditStore = (*repository.JSONLStore)(nil)
var _ Counter = (*metrics.Registry)(nil)

// ============ Интерфейсы сервисов для Dependency Injection ============

// TradeServiceInterface определяет интерфейс сервиса сделок
type TradeServiceInterface interface {
	RecordTrade(ctx context.Context, in models.TradeInput) (models.TradeOutcome, error)
	Stats(symbol, timeframe string) models.TradeStats
}

// RiskServiceInterface определяет интерфейс сервиса риска
type RiskServiceInterface interface {
	SetKillSwitch(active bool) bool
	SetGlobalLimit(usd float64) (models.GlobalBudget, error)
	SetGlobalLimitPct(pct, baseUsd float64) (models.GlobalBudget, error)
	SetSymbolLimit(symbol string, usd float64) (models.SymbolBudget, error)
	Status() models.RiskStatus
	GlobalStatus() models.GlobalBudget
	SymbolStatus(symbol string) models.SymbolBudget
	RecentAudit(limit int) []models.RiskAuditEvent
}

// SignalServiceInterface определяет интерфейс сервиса сигналов
type SignalServiceInterface interface {
	Enqueue(ctx context.Context, job *models.SignalJob) (*EnqueueResult, error)
}

// Проверяем, что реальные сервисы реализуют интерфейсы
var _ TradeServiceInterface = (*TradeService)(nil)
var _ RiskServiceInterface = (*RiskService)(nil)
var _ SignalServiceInterface = (*SignalService)(nil)
var _ SignalSink = (*LogSink)(nil)

// Gate часть risk.Gate, которой пользуется SignalService
type Gate interface {
	Evaluate(symbol string) risk.Decision
}

var _ Gate = (*risk.Gate)(nil)
