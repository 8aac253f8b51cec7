package handlers

import (
	"net/http"

	"tradegate/internal/metrics"
	"tradegate/internal/models"
	"tradegate/internal/service"
	"tradegate/pkg/utils"
)

// MetricsSource реестр метрик с чтением серий
type MetricsSource interface {
	Render() (string, error)
	Samples(name string) ([]metrics.Sample, error)
}

var _ MetricsSource = (*metrics.Registry)(nil)

// HealthHandler отвечает за служебные endpoints
//
// Endpoints:
// - GET /healthz         - проверка живости
// - GET /metrics         - текстовая экспозиция Prometheus
// - GET /metrics/summary - JSON сводка по риску и сделкам
//
// Не зависит от хранилища: остаётся доступным при его недоступности.
type HealthHandler struct {
	registry MetricsSource
	risk     service.RiskServiceInterface
	trades   service.TradeServiceInterface
}

// NewHealthHandler создает новый HealthHandler; risk и trades нужны только для summary
func NewHealthHandler(registry MetricsSource, risk service.RiskServiceInterface, trades service.TradeServiceInterface) *HealthHandler {
	return &HealthHandler{
		registry: registry,
		risk:     risk,
		trades:   trades,
	}
}

// Healthz GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Metrics GET /metrics
//
// Экспозиция собирается целиком до отправки, чтобы ошибка сбора
// давала 500, а не обрезанный ответ.
func (h *HealthHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	text, err := h.registry.Render()
	if err != nil {
		utils.L().Error("metrics render failed", utils.Err(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "metrics unavailable")
		return
	}
	w.Header().Set("Content-Type", metrics.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

// Summary GET /metrics/summary
func (h *HealthHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary := models.MetricsSummary{Blocks: make(map[string]float64)}
	if h.risk != nil {
		summary.Risk = h.risk.Status()
	}
	if h.trades != nil {
		summary.Trades = h.trades.Stats("", "")
	}

	samples, err := h.registry.Samples(metrics.RiskBlocks)
	if err != nil {
		utils.L().Error("risk blocks read failed", utils.Err(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "metrics unavailable")
		return
	}
	for _, s := range samples {
		summary.Blocks[s.Labels["reason"]] += s.Value
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"summary": summary,
	})
}
