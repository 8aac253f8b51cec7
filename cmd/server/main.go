package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"tradegate/internal/api"
	"tradegate/internal/config"
	"tradegate/internal/ledger"
	"tradegate/internal/metrics"
	"tradegate/internal/repository"
	"tradegate/internal/risk"
	"tradegate/internal/service"
	"tradegate/internal/websocket"
	"tradegate/pkg/ratelimit"
	"tradegate/pkg/utils"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", utils.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// stores хранилища, выбранные STORE_DRIVER; nil - без сохранения
type stores struct {
	trades service.TradeStore
	audit  service.AuditStore
	close  func()
}

func run(cfg *config.Config, logger *utils.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := utils.LoadLocation(cfg.Risk.Timezone)
	if err != nil {
		return fmt.Errorf("risk timezone: %w", err)
	}

	// Ядро: реестр метрик, окно дня, гейт и леджер
	registry := metrics.NewRegistry(metrics.WithRuntimeCollectors())
	window := risk.NewDailyWindow(loc, nil)
	gate := risk.NewGate(registry, window,
		risk.WithLogger(logger),
		risk.WithAuditLog(risk.NewAuditLog(cfg.Risk.AuditBufferSize)),
	)
	tradeLedger := ledger.New(registry, gate,
		ledger.WithLogger(logger),
		ledger.WithClock(window.Now, window.DayOf),
	)

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	// Инициализация сервисов
	tradeService := service.NewTradeService(tradeLedger, window, st.trades, registry, logger)
	riskService := service.NewRiskService(gate, st.audit, registry, logger)
	signalService := service.NewSignalService(gate, signalSink(cfg.Signals, logger), registry, window.Now, logger)

	// Восстановление до подключения hub и до установки лимитов
	restore(ctx, cfg, window, tradeService, riskService, logger)

	if err := applyRiskConfig(riskService, cfg.Risk); err != nil {
		return err
	}

	// Инициализация WebSocket hub
	hub := websocket.NewHub(
		websocket.WithAllowedOrigins(cfg.CORS.AllowedOrigins),
		websocket.WithLogger(logger),
	)
	go hub.Run()
	defer hub.Stop()
	tradeService.SetWebSocketHub(hub)
	riskService.SetWebSocketHub(hub)

	// Настройка HTTP роутера
	router := api.SetupRoutes(&api.Dependencies{
		TradeService:   tradeService,
		RiskService:    riskService,
		SignalService:  signalService,
		Registry:       registry,
		Hub:            hub,
		Logger:         logger,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Запуск сервера в отдельной горутине
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			utils.String("addr", server.Addr),
			utils.String("store", cfg.Storage.Driver),
			utils.String("timezone", loc.String()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}

// openStores выбирает хранилище по STORE_DRIVER
func openStores(ctx context.Context, cfg *config.Config, logger *utils.Logger) (stores, error) {
	switch cfg.Storage.Driver {
	case config.StoreJSONL:
		s := repository.NewJSONLStore(cfg.Storage.TradesPath, cfg.Storage.AuditPath)
		logger.Info("using jsonl store",
			utils.String("trades", cfg.Storage.TradesPath),
			utils.String("audit", cfg.Storage.AuditPath),
		)
		return stores{trades: s, audit: s, close: func() {}}, nil

	case config.StorePostgres:
		logger.Info("connecting to database", utils.String("dsn", cfg.Database.DSNWithoutPassword()))
		db, err := repository.OpenPostgres(ctx, cfg.Database.DSN(), repository.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnectAttempts: cfg.Storage.ConnectAttempts,
		}, logger)
		if err != nil {
			return stores{}, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := repository.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return stores{}, err
		}
		logger.Info("connected to database")
		return stores{
			trades: repository.NewTradeRepository(db),
			audit:  repository.NewAuditRepository(db),
			close:  func() { db.Close() },
		}, nil

	default:
		logger.Info("durability disabled")
		return stores{close: func() {}}, nil
	}
}

// signalSink собирает sink для допущенных сигналов
func signalSink(sc config.SignalConfig, logger *utils.Logger) service.SignalSink {
	var sink service.SignalSink = service.NewLogSink(logger)
	if sc.ForwardRate > 0 {
		limiter := ratelimit.NewRateLimiter(sc.ForwardRate, sc.ForwardBurst)
		logger.Info("signal forwarding throttled",
			utils.Float64("rate", limiter.Rate()),
			utils.Float64("burst", limiter.Burst()),
		)
		sink = service.NewThrottledSink(sink, limiter, sc.ForwardMaxWait)
	}
	return sink
}

// restore загружает аудит и проигрывает сохранённые сделки.
//
// Ошибки хранилища не мешают старту: движок продолжает с пустым состоянием.
func restore(ctx context.Context, cfg *config.Config, window *risk.DailyWindow, trades *service.TradeService, rs *service.RiskService, logger *utils.Logger) {
	if n, err := rs.SeedAudit(ctx); err != nil {
		logger.Warn("audit history not loaded", utils.Err(err))
	} else if n > 0 {
		logger.Info("audit history loaded", utils.Int("events", n))
	}

	since := window.Now().Add(-cfg.Storage.ReplayLookback)
	if _, err := trades.Preload(ctx, since); err != nil {
		logger.Warn("trade history not replayed", utils.Err(err))
	}
}

// applyRiskConfig применяет начальные лимиты и kill switch из окружения
func applyRiskConfig(rs *service.RiskService, rc config.RiskConfig) error {
	switch {
	case rc.DrawdownUSD > 0:
		if _, err := rs.SetGlobalLimit(rc.DrawdownUSD); err != nil {
			return fmt.Errorf("MAX_DAILY_DRAWDOWN_USD: %w", err)
		}
	case rc.DrawdownPct > 0:
		if _, err := rs.SetGlobalLimitPct(rc.DrawdownPct, rc.BaseEquityUSD); err != nil {
			return fmt.Errorf("MAX_DAILY_DRAWDOWN_PCT: %w", err)
		}
	}
	if rc.KillSwitch {
		rs.SetKillSwitch(true)
	}
	return nil
}
