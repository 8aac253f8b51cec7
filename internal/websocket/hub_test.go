package websocket

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"tradegate/internal/models"
	"tradegate/pkg/utils"
)

// ============================================================
// Unit Tests
// ============================================================

func newTestHub(opts ...HubOption) *Hub {
	return NewHub(append([]HubOption{WithLogger(utils.NewNop())}, opts...)...)
}

func TestNewHub(t *testing.T) {
	hub := newTestHub()

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}

	if hub.DroppedMessages() != 0 {
		t.Errorf("expected 0 dropped messages, got %d", hub.DroppedMessages())
	}
}

func TestOriginChecker_Check(t *testing.T) {
	checker := NewOriginChecker([]string{"http://localhost:3000", " https://example.com "})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},                       // empty origin allowed
		{"http://localhost:3000", true},  // allowed
		{"https://example.com", true},    // allowed
		{"http://evil.com", false},       // not allowed
		{"http://localhost:8080", false}, // not in list
	}

	for _, tt := range tests {
		got := checker.Check(tt.origin)
		if got != tt.want {
			t.Errorf("Check(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestOriginChecker_AllowAll(t *testing.T) {
	for _, checker := range []*OriginChecker{NewOriginChecker(nil), NewOriginChecker([]string{"*"})} {
		for _, origin := range []string{"http://localhost:3000", "https://evil.com"} {
			if !checker.Check(origin) {
				t.Errorf("allowAll=true but Check(%q) = false", origin)
			}
		}
	}
}

func TestHub_BroadcastNonBlocking(t *testing.T) {
	hub := newTestHub()
	// Run не запущен: канал заполняется, остальное отбрасывается

	for i := 0; i < broadcastBufferSize+10; i++ {
		hub.Broadcast(map[string]int{"i": i})
	}

	if got := hub.DroppedMessages(); got != 10 {
		t.Errorf("expected 10 dropped messages, got %d", got)
	}
}

func TestHub_Stop(t *testing.T) {
	hub := newTestHub()

	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	hub.Stop()
	hub.Stop() // повторный вызов безопасен

	select {
	case <-done:
		// OK - Run() exited
	case <-time.After(1 * time.Second):
		t.Error("Hub.Run() did not exit after Stop()")
	}
}

func TestHub_StreamsRiskAudit(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	waitForClients(t, hub, 1)

	hub.BroadcastRiskAudit(models.RiskAuditEvent{
		ID:    "evt-1",
		Gate:  models.GateDailyDrawdown,
		Event: models.GateEventActivated,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var msg RiskAuditMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if msg.Type != MessageTypeRiskAudit {
		t.Errorf("expected type %s, got %s", MessageTypeRiskAudit, msg.Type)
	}
	if msg.Data.ID != "evt-1" || msg.Data.Gate != models.GateDailyDrawdown {
		t.Errorf("unexpected payload: %+v", msg.Data)
	}
}

func TestHub_StreamsTradeRecorded(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	waitForClients(t, hub, 1)

	rr := 2.0
	rec := &models.TradeRecord{Symbol: "BTCUSDT", Timeframe: "1m", Side: models.SideLong, RewardRiskRatio: &rr}
	hub.BroadcastTradeRecorded(rec, models.TradeOutcome{RealizedPnlUsd: 20, Outcome: models.OutcomeWin})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var msg TradeRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if msg.Type != MessageTypeTradeRecorded || msg.Data.Outcome != "win" || msg.Data.RealizedPnlUsd != 20 {
		t.Errorf("unexpected message: %+v", msg.Data)
	}
}

func TestHub_OneEventPerFrame(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	waitForClients(t, hub, 1)

	const events = 20
	for i := 0; i < events; i++ {
		hub.BroadcastRiskAudit(models.RiskAuditEvent{
			ID:    fmt.Sprintf("evt-%d", i),
			Gate:  models.GateSymbolDrawdown,
			Event: models.GateEventActivated,
		})
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < events; i++ {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read %d failed: %v", i, err)
		}
		var msg RiskAuditMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("frame %d is not a single JSON message: %s", i, data)
		}
		if want := fmt.Sprintf("evt-%d", i); msg.Data.ID != want {
			t.Errorf("frame %d carries %s, want %s", i, msg.Data.ID, want)
		}
	}
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	hub := newTestHub(WithAllowedOrigins([]string{"http://localhost:3000"}))
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	header := http.Header{"Origin": []string{"http://evil.com"}}
	_, resp, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %v", resp)
	}
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d clients, got %d", want, hub.ClientCount())
}

// ============================================================
// Benchmarks
// ============================================================

// BenchmarkHub_Broadcast тестирует скорость broadcast
func BenchmarkHub_Broadcast(b *testing.B) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	evt := models.RiskAuditEvent{ID: "bench", Gate: models.GateManualKillswitch, Event: models.GateEventActivated}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hub.BroadcastRiskAudit(evt)
	}
}

// BenchmarkOriginChecker_Check тестирует скорость проверки origin
func BenchmarkOriginChecker_Check(b *testing.B) {
	checker := NewOriginChecker([]string{"http://localhost:3000"})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		checker.Check("http://localhost:3000")
	}
}

// ============================================================
// Parallel Stress Test
// ============================================================

func TestHub_ConcurrentOperations(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	var wg sync.WaitGroup
	const goroutines = 10
	const operations = 1000

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				hub.Broadcast(map[string]int{"goroutine": id, "op": j})
			}
		}(i)
	}

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				_ = hub.ClientCount()
			}
		}()
	}

	wg.Wait()
}
