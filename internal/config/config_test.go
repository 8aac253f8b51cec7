package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "time/tzdata"
)

// clearEnv снимает переменные, которые читает Load; t.Setenv восстановит их после теста
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVER_PORT", "PORT", "SERVER_HOST", "SHUTDOWN_TIMEOUT",
		"MAX_DAILY_DRAWDOWN_USD", "MAX_DAILY_DRAWDOWN_PCT", "BASE_EQUITY_USD", "ACCOUNT_EQUITY_USD",
		"RISK_KILL_SWITCH", "RISK_TIMEZONE", "AUDIT_BUFFER_SIZE",
		"STORE_DRIVER", "TRADES_JSONL_PATH", "AUDIT_JSONL_PATH", "REPLAY_LOOKBACK", "DB_CONNECT_ATTEMPTS",
		"DATABASE_URL", "DB_HOST", "DB_PORT", "DB_PASSWORD",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_OUTPUT", "ALLOWED_ORIGINS",
		"SIGNAL_FORWARD_RATE", "SIGNAL_FORWARD_BURST", "SIGNAL_FORWARD_MAX_WAIT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

// chdirTemp переходит во временный каталог, чтобы не подхватить чужой .env
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	chdirTemp(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("unexpected addr %s", cfg.Server.Addr())
	}
	if cfg.Risk.DrawdownUSD != 0 || cfg.Risk.DrawdownPct != 0 {
		t.Error("limits must be disabled by default")
	}
	if cfg.Risk.Timezone != "UTC" {
		t.Errorf("expected UTC, got %s", cfg.Risk.Timezone)
	}
	if cfg.Risk.AuditBufferSize != 500 {
		t.Errorf("expected audit buffer 500, got %d", cfg.Risk.AuditBufferSize)
	}
	if cfg.Storage.Driver != StoreNone {
		t.Errorf("expected store none, got %s", cfg.Storage.Driver)
	}
	if cfg.CORS.AllowedOrigins != nil {
		t.Errorf("expected no origins, got %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Signals.ForwardRate != 0 || cfg.Signals.ForwardMaxWait != 2*time.Second {
		t.Errorf("unexpected signal defaults %+v", cfg.Signals)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	chdirTemp(t)

	t.Setenv("PORT", "3000")
	t.Setenv("MAX_DAILY_DRAWDOWN_PCT", "1")
	t.Setenv("ACCOUNT_EQUITY_USD", "1500")
	t.Setenv("RISK_TIMEZONE", "Europe/Moscow")
	t.Setenv("RISK_KILL_SWITCH", "true")
	t.Setenv("STORE_DRIVER", "JSONL")
	t.Setenv("REPLAY_LOOKBACK", "48h")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://example.com ,")
	t.Setenv("SIGNAL_FORWARD_RATE", "5")
	t.Setenv("SIGNAL_FORWARD_MAX_WAIT", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("PORT fallback not applied, got %d", cfg.Server.Port)
	}
	if cfg.Risk.DrawdownPct != 1 || cfg.Risk.BaseEquityUSD != 1500 {
		t.Errorf("unexpected pct limit: %+v", cfg.Risk)
	}
	if !cfg.Risk.KillSwitch {
		t.Error("expected kill switch from env")
	}
	if cfg.Storage.Driver != StoreJSONL {
		t.Errorf("driver should be lower-cased, got %s", cfg.Storage.Driver)
	}
	if cfg.Storage.ReplayLookback != 48*time.Hour {
		t.Errorf("unexpected lookback %v", cfg.Storage.ReplayLookback)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://example.com" {
		t.Errorf("unexpected origins %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Signals.ForwardRate != 5 || cfg.Signals.ForwardMaxWait != 250*time.Millisecond {
		t.Errorf("unexpected signal config %+v", cfg.Signals)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := chdirTemp(t)

	env := "MAX_DAILY_DRAWDOWN_USD=25\nLOG_LEVEL=debug\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// переменная процесса важнее .env
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Risk.DrawdownUSD != 25 {
		t.Errorf("expected limit from .env, got %v", cfg.Risk.DrawdownUSD)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected process env to win, got %s", cfg.Logging.Level)
	}
}

func TestLoad_ExplicitEnvFileMissing(t *testing.T) {
	clearEnv(t)
	chdirTemp(t)

	if _, err := Load("missing.env"); err == nil {
		t.Error("expected error for missing explicit env file")
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad port", map[string]string{"SERVER_PORT": "70000"}, "SERVER_PORT"},
		{"negative usd", map[string]string{"MAX_DAILY_DRAWDOWN_USD": "-5"}, "MAX_DAILY_DRAWDOWN_USD"},
		{"pct without base", map[string]string{"MAX_DAILY_DRAWDOWN_PCT": "2"}, "BASE_EQUITY_USD"},
		{"pct over 100", map[string]string{"MAX_DAILY_DRAWDOWN_PCT": "150", "BASE_EQUITY_USD": "1000"}, "MAX_DAILY_DRAWDOWN_PCT"},
		{"bad timezone", map[string]string{"RISK_TIMEZONE": "Mars/Olympus"}, "RISK_TIMEZONE"},
		{"zero audit buffer", map[string]string{"AUDIT_BUFFER_SIZE": "0"}, "AUDIT_BUFFER_SIZE"},
		{"unknown driver", map[string]string{"STORE_DRIVER": "redis"}, "STORE_DRIVER"},
		{"bad db port", map[string]string{"STORE_DRIVER": "postgres", "DB_PORT": "0"}, "DB_PORT"},
		{"connect attempts", map[string]string{"DB_CONNECT_ATTEMPTS": "0"}, "DB_CONNECT_ATTEMPTS"},
		{"negative signal rate", map[string]string{"SIGNAL_FORWARD_RATE": "-1"}, "SIGNAL_FORWARD_RATE"},
		{"negative max wait", map[string]string{"SIGNAL_FORWARD_MAX_WAIT": "-1s"}, "SIGNAL_FORWARD_MAX_WAIT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			chdirTemp(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if err == nil {
				t.Fatal("expected error but got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error about %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "secret", Name: "tg", SSLMode: "disable"}

	if dsn := d.DSN(); !strings.Contains(dsn, "password=secret") || !strings.Contains(dsn, "dbname=tg") {
		t.Errorf("unexpected DSN %s", dsn)
	}
	if safe := d.DSNWithoutPassword(); strings.Contains(safe, "secret") {
		t.Errorf("password leaked: %s", safe)
	}

	d.URL = "postgres://u:secret@db/tg"
	if d.DSN() != d.URL {
		t.Errorf("DATABASE_URL must win, got %s", d.DSN())
	}
	if strings.Contains(d.DSNWithoutPassword(), "secret") {
		t.Error("password leaked from URL")
	}
}
