package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"bingx-market-analyzer/internal/domain"
)

func waitForSubscribers(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Subscribers() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d subscribers, got %d", want, hub.Subscribers())
}

func TestHub_BroadcastsNewSignal(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	waitForSubscribers(t, hub, 1)

	hub.BroadcastSignal(&domain.SignalRecord{
		ID:         "sig-1",
		Symbol:     "BTC/USDT",
		Type:       domain.SignalStrongBuy,
		Confidence: 0.8,
		Rules:      []string{"ma_crossover", "volume_spike"},
		CreatedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}

	var event struct {
		Type    string `json:"type"`
		Payload struct {
			Symbol     string  `json:"symbol"`
			SignalType string  `json:"signal_type"`
			Confidence float64 `json:"confidence"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(msg, &event); err != nil {
		t.Fatal(err)
	}
	if event.Type != "new_signal" {
		t.Fatalf("expected new_signal event, got %s", event.Type)
	}
	if event.Payload.Symbol != "BTC/USDT" || event.Payload.SignalType != "STRONG_BUY" {
		t.Fatalf("unexpected payload %+v", event.Payload)
	}
}

func TestHub_DisconnectedClientIsDropped(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	waitForSubscribers(t, hub, 1)

	conn.Close()
	waitForSubscribers(t, hub, 0)
}
