package handlers

import (
	"errors"
	"net/http"
	"testing"

	"tradegate/internal/models"
)

// ============ TradeHandler Tests ============

func TestTradeHandler_RecordTrade(t *testing.T) {
	t.Run("records valid trade", func(t *testing.T) {
		svc := &MockTradeService{}
		h := NewTradeHandler(svc)

		body := `{"symbol":" BTCUSDT ","timeframe":"1m","side":"LONG","entryPrice":100,"exitPrice":99,"stopPrice":98,"sizeUsd":600}`
		w := doRequest(h.RecordTrade, http.MethodPost, "/trades/record", body)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
		}
		resp := decodeBody(t, w)
		if resp["ok"] != true {
			t.Errorf("expected ok true, got %v", resp["ok"])
		}
		outcome := resp["outcome"].(map[string]interface{})
		if outcome["outcome"] != "loss" {
			t.Errorf("expected loss, got %v", outcome["outcome"])
		}
		if pnl := outcome["realizedPnlUsd"].(float64); pnl > -5.99 || pnl < -6.01 {
			t.Errorf("expected pnl -6, got %v", pnl)
		}

		if len(svc.recorded) != 1 {
			t.Fatalf("expected 1 recorded trade, got %d", len(svc.recorded))
		}
		if svc.recorded[0].Symbol != "BTCUSDT" || svc.recorded[0].Side != models.SideLong {
			t.Errorf("input not normalized: %+v", svc.recorded[0])
		}
	})

	tests := []struct {
		name      string
		body      string
		wantCode  string
		wantField string
	}{
		{"empty body", "", CodeInvalidJSON, ""},
		{"malformed json", `{"symbol":`, CodeInvalidJSON, ""},
		{"string price", `{"symbol":"BTCUSDT","timeframe":"1m","side":"long","entryPrice":"abc","exitPrice":99,"stopPrice":98,"sizeUsd":600}`, CodeInvalidJSON, ""},
		{"missing exit", `{"symbol":"BTCUSDT","timeframe":"1m","side":"long","entryPrice":100,"stopPrice":98,"sizeUsd":600}`, CodeValidation, "exitPrice"},
		{"bad side", `{"symbol":"BTCUSDT","timeframe":"1m","side":"flat","entryPrice":100,"exitPrice":99,"stopPrice":98,"sizeUsd":600}`, CodeValidation, "side"},
		{"zero size", `{"symbol":"BTCUSDT","timeframe":"1m","side":"short","entryPrice":100,"exitPrice":99,"stopPrice":98,"sizeUsd":0}`, CodeValidation, "sizeUsd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockTradeService{}
			h := NewTradeHandler(svc)

			w := doRequest(h.RecordTrade, http.MethodPost, "/trades/record", tt.body)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
			}
			resp := decodeBody(t, w)
			if resp["ok"] != false || resp["code"] != tt.wantCode {
				t.Errorf("unexpected error body %v", resp)
			}
			if tt.wantField != "" {
				names := fieldNames(t, resp)
				if len(names) == 0 || names[0] != tt.wantField {
					t.Errorf("expected field %q, got %v", tt.wantField, names)
				}
			}
			if len(svc.recorded) != 0 {
				t.Error("invalid trade must not be recorded")
			}
		})
	}

	t.Run("returns 500 on unexpected error", func(t *testing.T) {
		h := NewTradeHandler(&MockTradeService{err: errors.New("boom")})

		body := `{"symbol":"BTCUSDT","timeframe":"1m","side":"long","entryPrice":100,"exitPrice":99,"stopPrice":98,"sizeUsd":600}`
		w := doRequest(h.RecordTrade, http.MethodPost, "/trades/record", body)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}

func TestTradeHandler_GetStats(t *testing.T) {
	svc := &MockTradeService{stats: models.TradeStats{Symbol: "BTCUSDT", Total: 2, Wins: 1, Losses: 1, WinRate: 0.5}}
	h := NewTradeHandler(svc)

	w := doRequest(h.GetStats, http.MethodGet, "/trades/stats?symbol=BTCUSDT&timeframe=1m", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	stats := decodeBody(t, w)["stats"].(map[string]interface{})
	if stats["total"] != 2.0 || stats["winrate"] != 0.5 {
		t.Errorf("unexpected stats %v", stats)
	}
	if svc.filter != [2]string{"BTCUSDT", "1m"} {
		t.Errorf("filter not passed through: %v", svc.filter)
	}
}
