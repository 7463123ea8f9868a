package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/atlas-desktop/sim-trader/internal/engine"
	"github.com/atlas-desktop/sim-trader/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestRegisterParsesSession(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/replays/flash_crash/start" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer team-7" {
			t.Errorf("authorization = %q", got)
		}
		if got := r.Header.Get("X-Team-Password"); got != "hunter2" {
			t.Errorf("password header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"token": "tok-1", "run_id": "run-9"})
	}))
	defer ts.Close()

	c := NewClient(zap.NewNop(), Config{
		Host:     strings.TrimPrefix(ts.URL, "http://"),
		Scenario: "flash_crash",
		Team:     "team-7",
		Password: "hunter2",
	})
	if err := c.Register(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.RunID() != "run-9" {
		t.Fatalf("run id = %q, want run-9", c.RunID())
	}
}

func TestRegisterRejectsMissingCredentials(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": ""})
	}))
	defer ts.Close()

	c := NewClient(zap.NewNop(), Config{Host: strings.TrimPrefix(ts.URL, "http://"), Scenario: "s", Team: "t"})
	if err := c.Register(context.Background()); err == nil {
		t.Fatal("want an error for a session without token/run_id")
	}
}

func TestStreamsDeliverEventsAndOrders(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var serverGotOrder, serverGotDone atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("/api/replays/normal_market/start", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": "tok", "run_id": "run-1"})
	})
	mux.HandleFunc("/api/ws/market", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("run_id"); got != "run-1" {
			t.Errorf("market run_id = %q", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		defer conn.Close()
		conn.WriteJSON(map[string]any{"type": "CONNECTED"})
		conn.WriteJSON(map[string]any{
			"type": "MARKET_DATA",
			"step": 1,
			"bid":  99.9,
			"ask":  100.1,
		})
	})
	mux.HandleFunc("/api/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "tok" {
			t.Errorf("orders token = %q", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		defer conn.Close()
		conn.WriteJSON(map[string]any{"type": "AUTHENTICATED"})

		// First inbound message is the order, second is DONE. Answer
		// the order with a fill.
		var order map[string]any
		if err := conn.ReadJSON(&order); err != nil {
			t.Error(err)
			return
		}
		serverGotOrder.Store(order["order_id"] == "ord-1" && order["side"] == "BUY" && order["price"] == 100.0)
		conn.WriteJSON(map[string]any{
			"type":     "FILL",
			"order_id": "ord-1",
			"side":     "BUY",
			"price":    100.0,
			"qty":      200,
		})

		var done map[string]any
		if err := conn.ReadJSON(&done); err != nil {
			t.Error(err)
			return
		}
		serverGotDone.Store(done["action"] == "DONE")
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := NewClient(zap.NewNop(), Config{
		Host:     strings.TrimPrefix(ts.URL, "http://"),
		Scenario: "normal_market",
		Team:     "team",
	})
	ctx := context.Background()
	if err := c.Register(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	inbox := make(chan engine.Event, 16)
	c.Start(inbox)

	var snap *types.MarketSnapshot
	var fill *types.Fill
	for ev := range inbox {
		switch ev := ev.(type) {
		case engine.SnapshotEvent:
			s := ev.Snapshot
			snap = &s
			if err := c.SendOrder(types.Order{
				ID:    "ord-1",
				Side:  types.SideBuy,
				Price: decimal.NewFromFloat(100.0),
				Qty:   200,
			}); err != nil {
				t.Fatal(err)
			}
		case engine.FillEvent:
			f := ev.Fill
			fill = &f
			if err := c.SendDone(); err != nil {
				t.Fatal(err)
			}
		}
	}

	if snap == nil || snap.Step != 1 || snap.Bid != 99.9 || snap.Ask != 100.1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	// No book levels on the wire: best bid/ask degrade to zero-qty levels.
	if len(snap.Bids) != 1 || snap.Bids[0].Price != 99.9 || snap.Bids[0].Qty != 0 {
		t.Fatalf("degraded bids = %+v", snap.Bids)
	}
	if fill == nil || fill.OrderID != "ord-1" || fill.Qty != 200 {
		t.Fatalf("fill = %+v", fill)
	}
	if !serverGotOrder.Load() {
		t.Fatal("server did not receive the expected order message")
	}
	if !serverGotDone.Load() {
		t.Fatal("server did not receive the step-complete signal")
	}
}
