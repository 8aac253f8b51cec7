package handlers

import (
	"net/http"
	"strings"

	"tradegate/internal/ledger"
	"tradegate/internal/models"
	"tradegate/internal/service"
	"tradegate/pkg/utils"
)

// TradeHandler отвечает за учёт закрытых сделок
//
// Endpoints:
// - POST /trades/record - запись закрытой сделки
// - GET  /trades/stats  - агрегаты по symbol/timeframe
type TradeHandler struct {
	tradeService service.TradeServiceInterface
}

// NewTradeHandler создает новый TradeHandler с внедрением зависимостей
func NewTradeHandler(tradeService service.TradeServiceInterface) *TradeHandler {
	return &TradeHandler{tradeService: tradeService}
}

// RecordTrade записывает закрытую сделку
// POST /trades/record
//
// Request Body:
//
//	{
//	  "symbol": "BTCUSDT",
//	  "timeframe": "1m",
//	  "side": "long",
//	  "entryPrice": 100,
//	  "exitPrice": 99,
//	  "stopPrice": 98,
//	  "sizeUsd": 600,
//	  "feesUsd": 0,
//	  "highPrice": 101,
//	  "lowPrice": 98.5,
//	  "closedAt": "2025-09-24T12:00:00Z"
//	}
//
// Response:
// - 200 OK: {"ok":true,"outcome":{...}}
// - 400 Bad Request: невалидный вход, ничего не изменено
func (h *TradeHandler) RecordTrade(w http.ResponseWriter, r *http.Request) {
	var in models.TradeInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidJSON, err.Error())
		return
	}
	in.Symbol = strings.TrimSpace(in.Symbol)
	in.Timeframe = strings.TrimSpace(in.Timeframe)
	in.Side = models.Side(strings.ToLower(strings.TrimSpace(string(in.Side))))

	out, err := h.tradeService.RecordTrade(r.Context(), in)
	if err != nil {
		if ledger.IsValidationError(err) {
			writeValidationError(w, "invalid trade", ledger.FieldErrors(err))
			return
		}
		utils.L().Error("record trade failed", utils.Symbol(in.Symbol), utils.Err(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"outcome": out,
	})
}

// GetStats возвращает агрегаты сделок
// GET /trades/stats?symbol=BTCUSDT&timeframe=1m
//
// Пустой фильтр объединяет все серии.
func (h *TradeHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := strings.TrimSpace(q.Get("symbol"))
	timeframe := strings.TrimSpace(q.Get("timeframe"))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"stats": h.tradeService.Stats(symbol, timeframe),
	})
}
