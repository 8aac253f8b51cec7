package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"tradegate/internal/api/handlers"
	"tradegate/internal/api/middleware"
	"tradegate/internal/metrics"
	"tradegate/internal/service"
	"tradegate/internal/websocket"
	"tradegate/pkg/utils"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	TradeService  service.TradeServiceInterface
	RiskService   service.RiskServiceInterface
	SignalService service.SignalServiceInterface

	Registry *metrics.Registry
	Hub      *websocket.Hub
	Logger   *utils.Logger

	// AllowedOrigins для CORS; пусто - локальные dev origins
	AllowedOrigins []string
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
//	├── GET  /healthz
//	├── GET  /metrics
//	├── GET  /metrics/summary
//	├── /trades/
//	│   ├── POST /record - запись закрытой сделки
//	│   └── GET  /stats  - агрегаты сделок
//	├── /risk/
//	│   ├── POST /killswitch
//	│   ├── POST /drawdown-limit
//	│   ├── GET  /drawdown-limit
//	│   ├── POST /symbol-limit
//	│   ├── GET  /symbol-limit/{symbol}
//	│   ├── GET  /status
//	│   ├── GET  /audit
//	│   └── GET  /audit/export
//	├── POST /signals/enqueue
//	└── GET  /ws/stream - WebSocket для real-time обновлений
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
func SetupRoutes(deps *Dependencies) *mux.Router {
	if deps == nil {
		deps = &Dependencies{}
	}
	log := deps.Logger
	if log == nil {
		log = utils.L()
	}
	registry := deps.Registry
	if registry == nil {
		registry = metrics.NewRegistry()
	}

	router := mux.NewRouter()

	recovery := middleware.Recovery(log)
	logging := middleware.Logging(log, registry)
	cors := middleware.CORS(deps.AllowedOrigins)

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(recovery)
	router.Use(logging)
	router.Use(cors)

	// mux не применяет middleware к 404/405, поэтому цепочка собирается вручную;
	// preflight OPTIONS к известному пути приходит сюда как 405 и завершается в CORS
	chain := func(h http.Handler) http.Handler {
		return recovery(logging(cors(h)))
	}
	router.NotFoundHandler = chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusNotFound, "not found", "NOT_FOUND")
	}))
	router.MethodNotAllowedHandler = chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusMethodNotAllowed, "method not allowed", "METHOD_NOT_ALLOWED")
	}))

	// Служебные endpoints работают без сервисов
	healthHandler := handlers.NewHealthHandler(registry, deps.RiskService, deps.TradeService)
	router.HandleFunc("/healthz", healthHandler.Healthz).Methods(http.MethodGet)
	router.HandleFunc("/metrics", healthHandler.Metrics).Methods(http.MethodGet)
	router.HandleFunc("/metrics/summary", healthHandler.Summary).Methods(http.MethodGet)

	// Trade routes
	if deps.TradeService != nil {
		tradeHandler := handlers.NewTradeHandler(deps.TradeService)
		router.HandleFunc("/trades/record", tradeHandler.RecordTrade).Methods(http.MethodPost)
		router.HandleFunc("/trades/stats", tradeHandler.GetStats).Methods(http.MethodGet)
	}

	// Risk routes
	if deps.RiskService != nil {
		riskHandler := handlers.NewRiskHandler(deps.RiskService)
		rr := router.PathPrefix("/risk").Subrouter()
		rr.HandleFunc("/killswitch", riskHandler.SetKillSwitch).Methods(http.MethodPost)
		rr.HandleFunc("/drawdown-limit", riskHandler.SetDrawdownLimit).Methods(http.MethodPost)
		rr.HandleFunc("/drawdown-limit", riskHandler.GetDrawdownLimit).Methods(http.MethodGet)
		rr.HandleFunc("/symbol-limit", riskHandler.SetSymbolLimit).Methods(http.MethodPost)
		rr.HandleFunc("/symbol-limit/{symbol}", riskHandler.GetSymbolLimit).Methods(http.MethodGet)
		rr.HandleFunc("/status", riskHandler.GetStatus).Methods(http.MethodGet)
		rr.HandleFunc("/audit", riskHandler.GetAudit).Methods(http.MethodGet)
		rr.HandleFunc("/audit/export", riskHandler.ExportAudit).Methods(http.MethodGet)
	}

	// Signal routes
	if deps.SignalService != nil {
		signalHandler := handlers.NewSignalHandler(deps.SignalService)
		router.HandleFunc("/signals/enqueue", signalHandler.Enqueue).Methods(http.MethodPost)
	}

	// WebSocket route
	if deps.Hub != nil {
		router.Handle("/ws/stream", deps.Hub).Methods(http.MethodGet)
	}

	return router
}

func writeStatus(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"ok":false,"error":%q,"code":%q}`+"\n", message, code)
}
