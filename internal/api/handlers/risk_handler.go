package handlers

import (
	"bufio"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"tradegate/internal/models"
	"tradegate/internal/risk"
	"tradegate/internal/service"
	"tradegate/pkg/utils"
)

// RiskHandler отвечает за управление гейтами риска
//
// Endpoints:
// - POST /risk/killswitch               - ручная блокировка
// - POST /risk/drawdown-limit           - глобальный дневной лимит (usd или pct+base)
// - GET  /risk/drawdown-limit           - глобальный лимит и PnL дня
// - POST /risk/symbol-limit             - дневной лимит символа
// - GET  /risk/symbol-limit/{symbol}    - лимит символа и PnL дня
// - GET  /risk/status                   - снимок всех гейтов
// - GET  /risk/audit?limit=N            - последние переходы гейтов
// - GET  /risk/audit/export             - журнал переходов в формате JSON Lines
type RiskHandler struct {
	riskService service.RiskServiceInterface
}

// NewRiskHandler создает новый RiskHandler с внедрением зависимостей
func NewRiskHandler(riskService service.RiskServiceInterface) *RiskHandler {
	return &RiskHandler{riskService: riskService}
}

// KillSwitchRequest тело POST /risk/killswitch
//
// active принимает true/false, 1/0 и строки "1", "0", "true", "false".
type KillSwitchRequest struct {
	Active interface{} `json:"active"`
}

// DrawdownLimitRequest тело POST /risk/drawdown-limit
type DrawdownLimitRequest struct {
	USD  *float64 `json:"usd" validate:"omitnil,gt=0"`
	Pct  *float64 `json:"pct" validate:"omitnil,gt=0,lte=100"`
	Base *float64 `json:"base" validate:"omitnil,gt=0"`
}

// SymbolLimitRequest тело POST /risk/symbol-limit
type SymbolLimitRequest struct {
	Symbol string   `json:"symbol" validate:"required"`
	USD    *float64 `json:"usd" validate:"required,gt=0"`
}

// DrawdownLimitResponse ответ на изменение и чтение глобального лимита
type DrawdownLimitResponse struct {
	OK          bool    `json:"ok"`
	Mode        string  `json:"mode"`
	LimitUsd    float64 `json:"limitUsd"`
	PnlTodayUsd float64 `json:"pnl_today_usd"`
	Breached    bool    `json:"breached"`
}

// SymbolLimitResponse ответ на изменение и чтение лимита символа
type SymbolLimitResponse struct {
	OK          bool    `json:"ok"`
	Symbol      string  `json:"symbol"`
	LimitUsd    float64 `json:"limit_usd"`
	PnlTodayUsd float64 `json:"pnl_today_usd"`
	Blocked     bool    `json:"blocked"`
}

// SetKillSwitch включает или выключает ручную блокировку
// POST /risk/killswitch
//
// Request Body: {"active": true}
//
// Response:
// - 200 OK: {"ok":true,"active":true}
// - 400 Bad Request: active отсутствует или не распознан
func (h *RiskHandler) SetKillSwitch(w http.ResponseWriter, r *http.Request) {
	var req KillSwitchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidJSON, err.Error())
		return
	}

	active, ok := parseActive(req.Active)
	if !ok {
		var fields utils.ValidationErrors
		fields.Add("active", `must be true, false, 1, 0, "1" or "0"`)
		writeValidationError(w, "invalid request", fields)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"active": h.riskService.SetKillSwitch(active),
	})
}

// SetDrawdownLimit задаёт глобальный дневной лимит
// POST /risk/drawdown-limit
//
// Request Body: {"usd": 20} или {"pct": 1, "base": 1500}
//
// Response:
// - 200 OK: {"ok":true,"mode":"usd","limitUsd":20,...}
// - 400 Bad Request: нет ни usd, ни пары pct+base, либо значения <= 0
func (h *RiskHandler) SetDrawdownLimit(w http.ResponseWriter, r *http.Request) {
	var req DrawdownLimitRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	var (
		budget models.GlobalBudget
		err    error
	)
	switch {
	case req.USD != nil:
		budget, err = h.riskService.SetGlobalLimit(*req.USD)
	case req.Pct != nil && req.Base != nil:
		budget, err = h.riskService.SetGlobalLimitPct(*req.Pct, *req.Base)
	default:
		var fields utils.ValidationErrors
		fields.Add("usd", "usd > 0 or pct > 0 with base > 0 is required")
		writeValidationError(w, "invalid request", fields)
		return
	}
	if err != nil {
		h.writeRiskError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, drawdownResponse(budget))
}

// GetDrawdownLimit возвращает глобальный лимит и PnL дня
// GET /risk/drawdown-limit
func (h *RiskHandler) GetDrawdownLimit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, drawdownResponse(h.riskService.GlobalStatus()))
}

// SetSymbolLimit задаёт дневной лимит символа
// POST /risk/symbol-limit
//
// Request Body: {"symbol": "BTCUSDT", "usd": 5}
//
// Response:
// - 200 OK: {"ok":true,"symbol":"BTCUSDT","limit_usd":5,"pnl_today_usd":0,"blocked":false}
// - 400 Bad Request: нет symbol или usd <= 0
func (h *RiskHandler) SetSymbolLimit(w http.ResponseWriter, r *http.Request) {
	var req SymbolLimitRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	symbol := strings.TrimSpace(req.Symbol)
	if symbol == "" {
		var fields utils.ValidationErrors
		fields.Add("symbol", "is required")
		writeValidationError(w, "invalid request", fields)
		return
	}

	budget, err := h.riskService.SetSymbolLimit(symbol, *req.USD)
	if err != nil {
		h.writeRiskError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, symbolResponse(symbol, budget))
}

// GetSymbolLimit возвращает лимит символа и PnL дня
// GET /risk/symbol-limit/{symbol}
//
// Для символа без лимита возвращаются нули.
func (h *RiskHandler) GetSymbolLimit(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(mux.Vars(r)["symbol"])
	if symbol == "" {
		var fields utils.ValidationErrors
		fields.Add("symbol", "is required")
		writeValidationError(w, "invalid request", fields)
		return
	}

	writeJSON(w, http.StatusOK, symbolResponse(symbol, h.riskService.SymbolStatus(symbol)))
}

// GetStatus возвращает снимок всех гейтов
// GET /risk/status
func (h *RiskHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":   true,
		"risk": h.riskService.Status(),
	})
}

// GetAudit возвращает последние переходы гейтов
// GET /risk/audit?limit=50
//
// Отсутствующий, нечисловой или неположительный limit даёт 50, максимум 500.
func (h *RiskHandler) GetAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	events := h.riskService.RecentAudit(limit)
	if events == nil {
		events = []models.RiskAuditEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"events": events,
	})
}

// ExportAudit отдаёт буфер переходов как JSON Lines
// GET /risk/audit/export
func (h *RiskHandler) ExportAudit(w http.ResponseWriter, r *http.Request) {
	events := h.riskService.RecentAudit(service.MaxAuditLimit)

	w.Header().Set("Content-Type", "application/jsonl; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="risk_audit.jsonl"`)
	w.WriteHeader(http.StatusOK)

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			utils.L().Warn("audit export interrupted", utils.Err(err))
			return
		}
	}
	_ = bw.Flush()
}

func (h *RiskHandler) writeRiskError(w http.ResponseWriter, err error) {
	var fields utils.ValidationErrors
	switch {
	case errors.Is(err, risk.ErrInvalidBase):
		fields.Add("base", err.Error())
	case errors.Is(err, risk.ErrInvalidLimit), errors.Is(err, utils.ErrInvalidPercent):
		fields.Add("usd", err.Error())
	case errors.Is(err, risk.ErrInvalidSymbol):
		fields.Add("symbol", err.Error())
	default:
		utils.L().Error("risk update failed", utils.Err(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}
	writeValidationError(w, "invalid request", fields)
}

func drawdownResponse(b models.GlobalBudget) DrawdownLimitResponse {
	return DrawdownLimitResponse{
		OK:          true,
		Mode:        b.Mode,
		LimitUsd:    b.LimitUsd,
		PnlTodayUsd: b.PnlTodayUsd,
		Breached:    b.Breached,
	}
}

func symbolResponse(symbol string, b models.SymbolBudget) SymbolLimitResponse {
	return SymbolLimitResponse{
		OK:          true,
		Symbol:      symbol,
		LimitUsd:    b.LimitUsd,
		PnlTodayUsd: b.PnlTodayUsd,
		Blocked:     b.Blocked,
	}
}

// parseActive разбирает поле active; ok == false для отсутствующего или чужого значения
func parseActive(v interface{}) (active bool, ok bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case float64:
		switch val {
		case 1:
			return true, true
		case 0:
			return false, true
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "true":
			return true, true
		case "0", "false":
			return false, true
		}
	}
	return false, false
}
