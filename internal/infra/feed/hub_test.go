package feed

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"trading_core/internal/event"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

type countingGauge struct {
	n atomic.Int32
}

func (g *countingGauge) IncrementFeedClients() { g.n.Add(1) }
func (g *countingGauge) DecrementFeedClients() { g.n.Add(-1) }

type frame struct {
	Type   event.Type      `json:"type"`
	Symbol string          `json:"symbol"`
	Data   json.RawMessage `json:"data"`
}

func startHub(t *testing.T) (*Hub, *countingGauge, string) {
	t.Helper()
	gauge := &countingGauge{}
	hub := NewHub(gauge, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(NewServer("", hub).Handler)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, gauge, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/trades"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, g *countingGauge, n int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for g.n.Load() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients, got %d", n, g.n.Load())
		}
		time.Sleep(time.Millisecond)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	return f
}

func trade(id, symbol string) *event.TradeEvent {
	return &event.TradeEvent{
		BaseEvent: event.BaseEvent{Seq: 1, Ts: time.Now()},
		TradeID:   id,
		Symbol:    symbol,
		Quantity:  5,
		Price:     decimal.NewFromInt(10),
		Amount:    decimal.NewFromInt(50),
	}
}

func TestHub_BroadcastsBySymbol(t *testing.T) {
	hub, gauge, url := startHub(t)

	acme := dial(t, url+"?symbol=ACME")
	all := dial(t, url)
	waitClients(t, gauge, 2)

	hub.Publish(trade("t1", "T10"))
	hub.Publish(trade("t2", "ACME"))

	// The ACME subscriber skips T10 and sees t2 first
	f := readFrame(t, acme)
	if f.Type != event.TypeTrade || f.Symbol != "ACME" {
		t.Fatalf("Expected ACME trade, got %+v", f)
	}
	var tr event.TradeEvent
	if err := json.Unmarshal(f.Data, &tr); err != nil {
		t.Fatalf("Unmarshal trade failed: %v", err)
	}
	if tr.TradeID != "t2" || !tr.Amount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected t2 for 50, got %+v", tr)
	}

	first, second := readFrame(t, all), readFrame(t, all)
	if first.Symbol != "T10" || second.Symbol != "ACME" {
		t.Errorf("Expected [T10 ACME], got [%s %s]", first.Symbol, second.Symbol)
	}
}

func TestHub_OrderEvents(t *testing.T) {
	hub, gauge, url := startHub(t)
	conn := dial(t, url)
	waitClients(t, gauge, 1)

	hub.Publish(&event.OrderEvent{OrderID: "o1", Symbol: "ACME", Status: event.OrderPlaced})

	f := readFrame(t, conn)
	if f.Type != event.TypeOrder {
		t.Errorf("Expected ORDER frame, got %s", f.Type)
	}
}

func TestHub_Disconnect(t *testing.T) {
	_, gauge, url := startHub(t)
	conn := dial(t, url)
	waitClients(t, gauge, 1)

	conn.Close()
	waitClients(t, gauge, 0)
}
