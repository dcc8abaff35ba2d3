package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLatestFetchesAndDecodes(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"timestamp": "2024-03-01T12:00:00Z",
			"open": 49800, "high": 50200, "low": 49700, "close": 50000,
			"volume": 320, "average_volume": 250,
			"ema_short": 50100, "ema_medium": 50050, "ema_long": 49900,
			"rsi_fast": 42.5, "rsi_slow": 48.1, "adx": 22.3
		}`))
	}))
	defer server.Close()

	feed := NewIndicatorFeed(server.URL, "BTCUSDT", "1h")
	snap, err := feed.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest returned error: %v", err)
	}

	if gotPath != "/snapshot?symbol=BTCUSDT&interval=1h" {
		t.Errorf("unexpected request path %q", gotPath)
	}
	if snap.Close != 50000 {
		t.Errorf("expected close 50000, got %v", snap.Close)
	}
	if snap.RSIFast != 42.5 {
		t.Errorf("expected rsi_fast 42.5, got %v", snap.RSIFast)
	}
	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if !snap.Timestamp.Equal(want) {
		t.Errorf("expected timestamp %v, got %v", want, snap.Timestamp)
	}
	if !snap.HighVolume() {
		t.Error("expected high volume with 320 > 250")
	}
}

func TestLatestRejectsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	feed := NewIndicatorFeed(server.URL, "BTCUSDT", "1h")
	if _, err := feed.Latest(context.Background()); err == nil {
		t.Fatal("expected an error for a 502 response")
	}
}

func TestLatestRejectsMalformedSnapshot(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no timestamp", `{"close": 50000, "volume": 1}`},
		{"zero close", `{"timestamp": "2024-03-01T12:00:00Z", "close": 0}`},
		{"negative volume", `{"timestamp": "2024-03-01T12:00:00Z", "close": 50000, "volume": -1}`},
		{"not json", `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			feed := NewIndicatorFeed(server.URL, "BTCUSDT", "1h")
			if _, err := feed.Latest(context.Background()); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
