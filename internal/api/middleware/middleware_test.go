package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"tradegate/internal/metrics"
	"tradegate/pkg/utils"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func TestCORS_Origins(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		origin     string
		wantOrigin string
	}{
		{"no origin header", []string{"http://app.local"}, "", "*"},
		{"allowed origin", []string{"http://app.local"}, "http://app.local", "http://app.local"},
		{"foreign origin", []string{"http://app.local"}, "http://evil.local", ""},
		{"wildcard", []string{"*"}, "http://any.local", "http://any.local"},
		{"default list", nil, "http://localhost:3000", "http://localhost:3000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := CORS(tt.origins)(http.HandlerFunc(okHandler))

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if rr.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
			}
		})
	}
}

func TestCORS_SecurityHeaders(t *testing.T) {
	h := CORS(nil)(http.HandlerFunc(okHandler))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	want := map[string]string{
		"X-Content-Type-Options":       "nosniff",
		"X-Frame-Options":              "DENY",
		"Referrer-Policy":              "no-referrer",
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
	}
	for k, v := range want {
		if got := rr.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	h := CORS([]string{"http://app.local"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/trades/record", nil)
	req.Header.Set("Origin", "http://app.local")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if called {
		t.Error("preflight must not reach the handler")
	}
}

func TestRecovery_ReturnsJSON500(t *testing.T) {
	h := Recovery(utils.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/trades/record", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `"code":"INTERNAL_ERROR"`) || strings.Contains(body, "boom") {
		t.Errorf("unexpected body %s", body)
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	h := Recovery(utils.NewNop())(http.HandlerFunc(okHandler))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Errorf("got %d %q", rr.Code, rr.Body.String())
	}
}

func TestRecovery_AbortHandlerRepanics(t *testing.T) {
	h := Recovery(utils.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("recover() = %v, want ErrAbortHandler", rec)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestLogging_RecordsRouteTemplate(t *testing.T) {
	reg := metrics.NewRegistry()

	router := mux.NewRouter()
	router.Use(Logging(utils.NewNop(), reg))
	router.HandleFunc("/risk/symbol-limit/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)
	router.HandleFunc("/healthz", okHandler).Methods(http.MethodGet)

	for _, path := range []string{"/risk/symbol-limit/BTCUSDT", "/risk/symbol-limit/ETHUSDT", "/healthz"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	}

	got := reg.Value(metrics.HTTPRequests, metrics.Labels{
		"method": "GET",
		"route":  "/risk/symbol-limit/{symbol}",
		"status": "404",
	})
	if got != 2 {
		t.Errorf("symbol-limit requests = %v, want 2", got)
	}
	if got := reg.Value(metrics.HTTPRequests, metrics.Labels{"method": "GET", "route": "/healthz", "status": "200"}); got != 1 {
		t.Errorf("healthz requests = %v, want 1", got)
	}

	samples, err := reg.Samples(metrics.HTTPRequestDurationMs)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 2 {
		t.Errorf("duration series = %d, want 2", len(samples))
	}
}

func TestLogging_NilObserver(t *testing.T) {
	h := Logging(utils.NewNop(), nil)(http.HandlerFunc(okHandler))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d", rr.Code)
	}
	if routeTemplate(httptest.NewRequest(http.MethodGet, "/x", nil)) != "unmatched" {
		t.Error("request outside a router must be unmatched")
	}
}

func TestLogging_RequestID(t *testing.T) {
	h := Logging(utils.NewNop(), nil)(http.HandlerFunc(okHandler))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Error("request id must be generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get(RequestIDHeader); got != "req-42" {
		t.Errorf("incoming request id must be echoed, got %q", got)
	}
}
