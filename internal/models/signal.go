package models

import "time"

// SignalJob представляет сигнал, допущенный гейтом к дальнейшей обработке
type SignalJob struct {
	Symbol         string                 `json:"symbol"`
	Timeframe      string                 `json:"timeframe"`
	CloseTime      *time.Time             `json:"closeTime,omitempty"`
	IdempotencyKey string                 `json:"idempotencyKey"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
	EnqueuedAt     time.Time              `json:"enqueuedAt"`
}
