package transport

import (
	"encoding/json"
	"time"

	"github.com/atlas-desktop/sim-trader/pkg/types"
	"github.com/shopspring/decimal"
)

// Inbound message types shared by both sockets.
const (
	msgTypeMarketData    = "MARKET_DATA"
	msgTypeSnapshot      = "SNAPSHOT"
	msgTypeConnected     = "CONNECTED"
	msgTypeFill          = "FILL"
	msgTypeError         = "ERROR"
	msgTypeAuthenticated = "AUTHENTICATED"
)

// inboundMessage is the superset envelope for everything either socket
// delivers; Type discriminates.
type inboundMessage struct {
	Type      string            `json:"type"`
	Step      int               `json:"step"`
	Bid       float64           `json:"bid"`
	Ask       float64           `json:"ask"`
	Bids      []types.BookLevel `json:"bids"`
	Asks      []types.BookLevel `json:"asks"`
	LastTrade float64           `json:"last_trade"`
	OrderID   string            `json:"order_id"`
	Side      string            `json:"side"`
	Price     float64           `json:"price"`
	Qty       int64             `json:"qty"`
	Message   string            `json:"message"`
}

// snapshot converts a market message into the core type. When the full
// book is absent the best bid/ask degrade to single zero-qty levels, so
// depth-based signals see a defined (if empty) book.
func (m *inboundMessage) snapshot(receivedAt time.Time) types.MarketSnapshot {
	snap := types.MarketSnapshot{
		Step:       m.Step,
		Bid:        m.Bid,
		Ask:        m.Ask,
		Bids:       m.Bids,
		Asks:       m.Asks,
		LastTrade:  m.LastTrade,
		ReceivedAt: receivedAt,
	}
	if len(snap.Bids) == 0 && snap.Bid > 0 {
		snap.Bids = []types.BookLevel{{Price: snap.Bid, Qty: 0}}
	}
	if len(snap.Asks) == 0 && snap.Ask > 0 {
		snap.Asks = []types.BookLevel{{Price: snap.Ask, Qty: 0}}
	}
	return snap
}

func (m *inboundMessage) fill() types.Fill {
	return types.Fill{
		OrderID: m.OrderID,
		Side:    types.Side(m.Side),
		Price:   decimal.NewFromFloat(m.Price),
		Qty:     m.Qty,
	}
}

// outboundOrder is the wire form of an order submission. Price goes out
// as a plain JSON number.
type outboundOrder struct {
	OrderID string  `json:"order_id"`
	Side    string  `json:"side"`
	Price   float64 `json:"price"`
	Qty     int64   `json:"qty"`
}

// outboundAction covers cancels and the step-complete signal.
type outboundAction struct {
	Action  string `json:"action"`
	OrderID string `json:"order_id,omitempty"`
}

func encodeOrder(o types.Order) ([]byte, error) {
	px, _ := o.Price.Float64()
	return json.Marshal(outboundOrder{
		OrderID: o.ID,
		Side:    string(o.Side),
		Price:   px,
		Qty:     o.Qty,
	})
}

func encodeCancel(orderID string) ([]byte, error) {
	return json.Marshal(outboundAction{Action: "CANCEL", OrderID: orderID})
}

func encodeDone() ([]byte, error) {
	return json.Marshal(outboundAction{Action: "DONE"})
}
