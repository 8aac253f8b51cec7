package cli

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/api"
	"tradegate/internal/metrics"
	"tradegate/internal/risk"
	"tradegate/internal/service"
	"tradegate/pkg/utils"
)

// newEngineServer поднимает настоящий API на фиксированных часах
func newEngineServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := utils.NewNop()
	now := func() time.Time { return time.Date(2025, 9, 24, 12, 0, 0, 0, time.UTC) }

	reg := metrics.NewRegistry()
	window := risk.NewDailyWindow(time.UTC, now)
	gate := risk.NewGate(reg, window, risk.WithLogger(log))

	srv := httptest.NewServer(api.SetupRoutes(&api.Dependencies{
		RiskService: service.NewRiskService(gate, nil, reg, log),
		Registry:    reg,
		Logger:      log,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, addr string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--addr", addr}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestStatus(t *testing.T) {
	srv := newEngineServer(t)

	out, err := run(t, srv.URL, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-09-24")
	assert.Contains(t, out, "resets 2025-09-25T00:00:00Z")
	assert.Regexp(t, `killswitch\s+off`, out)
	assert.Regexp(t, `daily drawdown\s+ok`, out)
}

func TestKillSwitch(t *testing.T) {
	srv := newEngineServer(t)

	out, err := run(t, srv.URL, "killswitch", "on")
	require.NoError(t, err)
	assert.Equal(t, "killswitch on\n", out)

	out, err = run(t, srv.URL, "status")
	require.NoError(t, err)
	assert.Regexp(t, `killswitch\s+on`, out)

	out, err = run(t, srv.URL, "killswitch", "OFF")
	require.NoError(t, err)
	assert.Equal(t, "killswitch off\n", out)

	_, err = run(t, srv.URL, "killswitch", "maybe")
	assert.Error(t, err)

	_, err = run(t, srv.URL, "killswitch")
	assert.Error(t, err)
}

func TestLimitGlobal(t *testing.T) {
	srv := newEngineServer(t)

	out, err := run(t, srv.URL, "limit", "global", "20")
	require.NoError(t, err)
	assert.Equal(t, "global limit=20.00 mode=usd pnl=0.00 ok\n", out)

	out, err = run(t, srv.URL, "limit", "global", "--pct", "1", "--base", "1500")
	require.NoError(t, err)
	assert.Equal(t, "global limit=15.00 mode=pct pnl=0.00 ok\n", out)

	out, err = run(t, srv.URL, "limit", "global")
	require.NoError(t, err)
	assert.Equal(t, "global limit=15.00 mode=pct pnl=0.00 ok\n", out)

	for _, args := range [][]string{
		{"limit", "global", "abc"},
		{"limit", "global", "0"},
		{"limit", "global", "--pct", "1"},
	} {
		_, err := run(t, srv.URL, args...)
		assert.Error(t, err, args)
	}
}

func TestLimitSymbol(t *testing.T) {
	srv := newEngineServer(t)

	out, err := run(t, srv.URL, "limit", "symbol", "BTCUSDT", "5")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT limit=5.00 pnl=0.00 ok\n", out)

	out, err = run(t, srv.URL, "limit", "symbol", "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT limit=5.00 pnl=0.00 ok\n", out)

	out, err = run(t, srv.URL, "limit", "symbol", "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT limit=0.00 pnl=0.00 ok\n", out)

	_, err = run(t, srv.URL, "limit", "symbol", "BTCUSDT", "nope")
	assert.Error(t, err)

	out, err = run(t, srv.URL, "limit", "symbol", "X", "5")
	require.NoError(t, err)
	assert.Equal(t, "X limit=5.00 pnl=0.00 ok\n", out)

	_, err = run(t, srv.URL, "limit", "symbol", "  ", "5")
	assert.Error(t, err)
}

func TestAudit(t *testing.T) {
	srv := newEngineServer(t)

	out, err := run(t, srv.URL, "audit")
	require.NoError(t, err)
	assert.Equal(t, "no gate transitions\n", out)

	_, err = run(t, srv.URL, "killswitch", "on")
	require.NoError(t, err)

	out, err = run(t, srv.URL, "audit", "--limit", "10")
	require.NoError(t, err)
	assert.Regexp(t, `2025-09-24T12:00:00Z\s+manual_killswitch\s+-\s+activated`, out)

	out, err = run(t, srv.URL, "audit", "--since", "2025-09-24T12:00:01Z")
	require.NoError(t, err)
	assert.Equal(t, "no gate transitions\n", out)

	_, err = run(t, srv.URL, "audit", "--since", "yesterday")
	assert.Error(t, err)
}

func TestServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/risk/symbol-limit":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"error":"invalid request","code":"VALIDATION_ERROR","fields":[{"field":"usd","message":"must be greater than 0"}]}`))
		case "/risk/status":
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"ok":false,"reason":"manual_killswitch"}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`<html>bad gateway</html>`))
		}
	}))
	defer srv.Close()

	_, err := run(t, srv.URL, "limit", "symbol", "BTCUSDT", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "usd: must be greater than 0")

	_, err = run(t, srv.URL, "status")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBlocked))

	_, err = run(t, srv.URL, "audit")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestInvalidAddr(t *testing.T) {
	_, err := run(t, "localhost", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --addr")
}
