package service

import (
	"context"
	"strings"

	"tradegate/internal/metrics"
	"tradegate/internal/models"
	"tradegate/internal/risk"
	"tradegate/pkg/utils"
)

// Пределы выдачи журнала аудита
const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = risk.DefaultAuditCapacity
)

// RiskService - управление гейтами риска поверх risk.Gate
//
// Подписывается на переходы гейтов: каждое событие сохраняется в AuditStore
// и рассылается через WebSocket. Обработчик вызывается вне блокировки гейта.
type RiskService struct {
	gate    *risk.Gate
	store   AuditStore
	metrics Counter
	wsHub   AuditBroadcaster
	log     *utils.Logger
}

// NewRiskService создает сервис и подписывает его на аудит гейта; store может быть nil
func NewRiskService(gate *risk.Gate, store AuditStore, m Counter, log *utils.Logger) *RiskService {
	if log == nil {
		log = utils.L()
	}
	s := &RiskService{
		gate:    gate,
		store:   store,
		metrics: m,
		log:     log.WithComponent("risk_service"),
	}
	gate.OnAudit(s.handleAudit)
	return s
}

// SetWebSocketHub устанавливает WebSocket hub для broadcast аудита
func (s *RiskService) SetWebSocketHub(hub AuditBroadcaster) {
	s.wsHub = hub
}

// SeedAudit загружает последние события из хранилища в буфер гейта
//
// Вызывается один раз при старте, до приёма запросов.
func (s *RiskService) SeedAudit(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	events, err := s.store.RecentAudit(ctx, s.gate.Audit().Capacity())
	if err != nil {
		return 0, err
	}
	for _, evt := range events {
		s.gate.Audit().Append(*evt)
	}
	return len(events), nil
}

// SetKillSwitch включает/выключает ручную блокировку, возвращает новое состояние
func (s *RiskService) SetKillSwitch(active bool) bool {
	s.gate.SetKillSwitch(active)
	return s.gate.KillSwitchActive()
}

// SetGlobalLimit задаёт глобальный лимит в USD
func (s *RiskService) SetGlobalLimit(usd float64) (models.GlobalBudget, error) {
	if err := s.gate.SetGlobalLimit(usd); err != nil {
		return models.GlobalBudget{}, err
	}
	return s.gate.GlobalStatus(), nil
}

// SetGlobalLimitPct задаёт глобальный лимит как процент от base
func (s *RiskService) SetGlobalLimitPct(pct, baseUsd float64) (models.GlobalBudget, error) {
	if _, err := s.gate.SetGlobalLimitPct(pct, baseUsd); err != nil {
		return models.GlobalBudget{}, err
	}
	return s.gate.GlobalStatus(), nil
}

// SetSymbolLimit задаёт лимит символа и возвращает его бюджет
func (s *RiskService) SetSymbolLimit(symbol string, usd float64) (models.SymbolBudget, error) {
	symbol = strings.TrimSpace(symbol)
	if err := s.gate.SetSymbolLimit(symbol, usd); err != nil {
		return models.SymbolBudget{}, err
	}
	return s.SymbolStatus(symbol), nil
}

// Status снимок всех гейтов
func (s *RiskService) Status() models.RiskStatus {
	return s.gate.Status()
}

// GlobalStatus глобальный бюджет
func (s *RiskService) GlobalStatus() models.GlobalBudget {
	return s.gate.GlobalStatus()
}

// SymbolStatus бюджет символа; для незнакомого символа нулевой лимит и PnL
func (s *RiskService) SymbolStatus(symbol string) models.SymbolBudget {
	b, ok := s.gate.SymbolStatus(symbol)
	if !ok {
		return models.SymbolBudget{Symbol: symbol}
	}
	return b
}

// RecentAudit последние limit переходов; limit <= 0 даёт DefaultAuditLimit
func (s *RiskService) RecentAudit(limit int) []models.RiskAuditEvent {
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	limit = int(utils.Clamp(float64(limit), 1, MaxAuditLimit))
	return s.gate.Audit().Recent(limit)
}

func (s *RiskService) handleAudit(evt models.RiskAuditEvent) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
		err := s.store.SaveAudit(ctx, &evt)
		cancel()
		if err != nil {
			s.log.Warn("audit event not persisted", utils.Gate(evt.Gate), utils.Event(evt.Event), utils.Err(err))
			if s.metrics != nil {
				_ = s.metrics.IncCounter(metrics.StoreWriteFailures, metrics.Labels{"kind": "audit"}, 1)
			}
		}
	}

	if s.wsHub != nil {
		s.wsHub.BroadcastRiskAudit(evt)
	}
}
