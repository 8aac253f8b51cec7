package handlers

import (
	"errors"
	"net/http"
	"time"

	"tradegate/internal/models"
	"tradegate/internal/service"
	"tradegate/pkg/utils"
)

// SignalHandler отвечает за допуск сигналов
//
// Endpoints:
// - POST /signals/enqueue - проверка гейтов риска и постановка сигнала
type SignalHandler struct {
	signalService service.SignalServiceInterface
}

// NewSignalHandler создает новый SignalHandler с внедрением зависимостей
func NewSignalHandler(signalService service.SignalServiceInterface) *SignalHandler {
	return &SignalHandler{signalService: signalService}
}

// EnqueueRequest тело POST /signals/enqueue
type EnqueueRequest struct {
	Symbol         string                 `json:"symbol" validate:"required"`
	Timeframe      string                 `json:"timeframe" validate:"required"`
	CloseTime      *time.Time             `json:"closeTime,omitempty"`
	IdempotencyKey string                 `json:"idempotencyKey,omitempty" validate:"max=128"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
}

// Enqueue проверяет гейты и передаёт сигнал дальше
// POST /signals/enqueue
//
// Request Body:
//
//	{"symbol": "BTCUSDT", "timeframe": "1m", "closeTime": "2025-09-24T12:00:00Z"}
//
// Response:
// - 200 OK: {"ok":true,"job":{...}}
// - 400 Bad Request: нет symbol или timeframe
// - 429 Too Many Requests: {"ok":false,"reason":"manual_killswitch"}
// - 503 Service Unavailable: получатель сигналов недоступен
func (h *SignalHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	job := &models.SignalJob{
		Symbol:         req.Symbol,
		Timeframe:      req.Timeframe,
		CloseTime:      req.CloseTime,
		IdempotencyKey: req.IdempotencyKey,
		Payload:        req.Payload,
	}

	res, err := h.signalService.Enqueue(r.Context(), job)
	switch {
	case errors.Is(err, service.ErrInvalidSignal):
		var fields utils.ValidationErrors
		fields.Add("signal", err.Error())
		writeValidationError(w, "invalid signal", fields)
		return
	case errors.Is(err, service.ErrSinkUnavailable):
		writeError(w, http.StatusServiceUnavailable, CodeSinkUnavailable, "signal sink unavailable")
		return
	case err != nil:
		utils.L().Error("enqueue failed", utils.Symbol(req.Symbol), utils.Err(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}

	if !res.Admitted {
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"ok":     false,
			"reason": res.Reason,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":  true,
		"job": res.Job,
	})
}
