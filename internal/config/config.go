package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Драйверы хранилища
const (
	StoreNone     = "none"
	StoreJSONL    = "jsonl"
	StorePostgres = "postgres"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Risk     RiskConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	CORS     CORSConfig
	Signals  SignalConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// RiskConfig - начальные лимиты и окно торгового дня
//
// DrawdownUSD имеет приоритет над DrawdownPct/BaseEquityUSD.
// 0 означает "лимит не задан".
type RiskConfig struct {
	DrawdownUSD     float64
	DrawdownPct     float64
	BaseEquityUSD   float64
	KillSwitch      bool
	Timezone        string
	AuditBufferSize int
}

// StorageConfig - хранилище сделок и аудита
type StorageConfig struct {
	Driver          string
	TradesPath      string
	AuditPath       string
	ReplayLookback  time.Duration
	ConnectAttempts int
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	URL             string
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// SignalConfig - частота передачи допущенных сигналов в очередь
//
// ForwardRate == 0 отключает ограничение.
type SignalConfig struct {
	ForwardRate    float64
	ForwardBurst   float64
	ForwardMaxWait time.Duration
}

// CORSConfig - разрешённые Origin для HTTP и WebSocket
type CORSConfig struct {
	AllowedOrigins []string
}

// Load загружает конфигурацию из .env (если есть) и переменных окружения
//
// Переменные окружения процесса имеют приоритет над .env.
func Load(envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", getEnvAsInt("PORT", 8080)),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Risk: RiskConfig{
			DrawdownUSD:     getEnvAsFloat("MAX_DAILY_DRAWDOWN_USD", 0),
			DrawdownPct:     getEnvAsFloat("MAX_DAILY_DRAWDOWN_PCT", 0),
			BaseEquityUSD:   getEnvAsFloat("BASE_EQUITY_USD", getEnvAsFloat("ACCOUNT_EQUITY_USD", 0)),
			KillSwitch:      getEnvAsBool("RISK_KILL_SWITCH", false),
			Timezone:        getEnv("RISK_TIMEZONE", "UTC"),
			AuditBufferSize: getEnvAsInt("AUDIT_BUFFER_SIZE", 500),
		},
		Storage: StorageConfig{
			Driver:          strings.ToLower(getEnv("STORE_DRIVER", StoreNone)),
			TradesPath:      getEnv("TRADES_JSONL_PATH", "data/trades.jsonl"),
			AuditPath:       getEnv("AUDIT_JSONL_PATH", "data/risk_audit.jsonl"),
			ReplayLookback:  getEnvAsDuration("REPLAY_LOOKBACK", 30*24*time.Hour),
			ConnectAttempts: getEnvAsInt("DB_CONNECT_ATTEMPTS", 5),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "tradegate"),
			User:            getEnv("DB_USER", "tradegate"),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS"),
		},
		Signals: SignalConfig{
			ForwardRate:    getEnvAsFloat("SIGNAL_FORWARD_RATE", 0),
			ForwardBurst:   getEnvAsFloat("SIGNAL_FORWARD_BURST", 0),
			ForwardMaxWait: getEnvAsDuration("SIGNAL_FORWARD_MAX_WAIT", 2*time.Second),
		},
	}

	// Валидация числовых диапазонов
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadDotEnv читает .env файлы; отсутствие файла по умолчанию не ошибка
func loadDotEnv(files ...string) error {
	explicit := len(files) > 0
	if !explicit {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if !explicit && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	// Валидация портов
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %v", c.Server.ShutdownTimeout)
	}

	// Лимиты риска: 0 = не задан, отрицательные значения запрещены
	if c.Risk.DrawdownUSD < 0 {
		return fmt.Errorf("MAX_DAILY_DRAWDOWN_USD cannot be negative, got %v", c.Risk.DrawdownUSD)
	}

	if c.Risk.DrawdownPct < 0 || c.Risk.DrawdownPct > 100 {
		return fmt.Errorf("MAX_DAILY_DRAWDOWN_PCT must be between 0 and 100, got %v", c.Risk.DrawdownPct)
	}

	if c.Risk.DrawdownPct > 0 && c.Risk.BaseEquityUSD <= 0 {
		return fmt.Errorf("BASE_EQUITY_USD is required when MAX_DAILY_DRAWDOWN_PCT is set")
	}

	if _, err := time.LoadLocation(c.Risk.Timezone); err != nil {
		return fmt.Errorf("RISK_TIMEZONE is not a valid IANA zone: %q", c.Risk.Timezone)
	}

	if c.Risk.AuditBufferSize < 1 || c.Risk.AuditBufferSize > 100000 {
		return fmt.Errorf("AUDIT_BUFFER_SIZE must be between 1 and 100000, got %d", c.Risk.AuditBufferSize)
	}

	switch c.Storage.Driver {
	case StoreNone, StoreJSONL:
	case StorePostgres:
		if c.Database.URL == "" && (c.Database.Port < 1 || c.Database.Port > 65535) {
			return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of none, jsonl, postgres, got %q", c.Storage.Driver)
	}

	if c.Storage.Driver == StoreJSONL && c.Storage.TradesPath == "" {
		return fmt.Errorf("TRADES_JSONL_PATH is required for the jsonl store")
	}

	if c.Storage.ReplayLookback < 0 {
		return fmt.Errorf("REPLAY_LOOKBACK cannot be negative, got %v", c.Storage.ReplayLookback)
	}

	if c.Storage.ConnectAttempts < 1 || c.Storage.ConnectAttempts > 20 {
		return fmt.Errorf("DB_CONNECT_ATTEMPTS must be between 1 and 20, got %d", c.Storage.ConnectAttempts)
	}

	if c.Signals.ForwardRate < 0 || c.Signals.ForwardBurst < 0 {
		return fmt.Errorf("SIGNAL_FORWARD_RATE and SIGNAL_FORWARD_BURST cannot be negative")
	}

	if c.Signals.ForwardMaxWait < 0 {
		return fmt.Errorf("SIGNAL_FORWARD_MAX_WAIT cannot be negative, got %v", c.Signals.ForwardMaxWait)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	if d.URL != "" {
		return "(DATABASE_URL)"
	}
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Addr адрес для http.Server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
