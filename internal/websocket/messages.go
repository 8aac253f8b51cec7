package websocket

import (
	"time"

	"tradegate/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeRiskAudit - переход гейта риска (activated/deactivated)
	MessageTypeRiskAudit MessageType = "riskAudit"

	// MessageTypeTradeRecorded - записана закрытая сделка
	MessageTypeTradeRecorded MessageType = "tradeRecorded"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// RiskAuditMessage - сообщение о переходе гейта
type RiskAuditMessage struct {
	BaseMessage
	Data models.RiskAuditEvent `json:"data"`
}

// TradeRecordedMessage - сообщение о записанной сделке
//
// Содержит сохранённую запись и рассчитанный результат.
type TradeRecordedMessage struct {
	BaseMessage
	Data *TradeRecordedData `json:"data"`
}

// TradeRecordedData - данные записанной сделки
type TradeRecordedData struct {
	Symbol          string    `json:"symbol"`
	Timeframe       string    `json:"timeframe"`
	Side            string    `json:"side"`
	Outcome         string    `json:"outcome"`
	RealizedPnlUsd  float64   `json:"realizedPnlUsd"`
	RewardRiskRatio *float64  `json:"rr,omitempty"`
	MaeR            *float64  `json:"maeR,omitempty"`
	MfeR            *float64  `json:"mfeR,omitempty"`
	ClosedAt        time.Time `json:"closedAt"`
}

// ============ Фабричные функции для создания сообщений ============

// NewRiskAuditMessage создает сообщение аудита
func NewRiskAuditMessage(evt models.RiskAuditEvent) *RiskAuditMessage {
	return &RiskAuditMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeRiskAudit,
			Timestamp: time.Now(),
		},
		Data: evt,
	}
}

// NewTradeRecordedMessage создает сообщение о сделке
func NewTradeRecordedMessage(rec *models.TradeRecord, out models.TradeOutcome) *TradeRecordedMessage {
	return &TradeRecordedMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeTradeRecorded,
			Timestamp: time.Now(),
		},
		Data: &TradeRecordedData{
			Symbol:          rec.Symbol,
			Timeframe:       rec.Timeframe,
			Side:            string(rec.Side),
			Outcome:         string(out.Outcome),
			RealizedPnlUsd:  out.RealizedPnlUsd,
			RewardRiskRatio: rec.RewardRiskRatio,
			MaeR:            out.MaeR,
			MfeR:            out.MfeR,
			ClosedAt:        rec.ClosedAt,
		},
	}
}
