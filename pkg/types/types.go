// Package types provides shared type definitions for the trading bot.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents buy or sell
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Regime is a discrete label describing current market behavior.
type Regime string

const (
	RegimeCalibrating Regime = "CALIBRATING"
	RegimeNormal      Regime = "NORMAL"
	RegimeStressed    Regime = "STRESSED"
	RegimeCrash       Regime = "CRASH"
	RegimeHFT         Regime = "HFT"
	RegimeRecovery    Regime = "RECOVERY"
)

// BookLevel represents a single price level in the order book.
type BookLevel struct {
	Price float64 `json:"price"`
	Qty   int64   `json:"qty"`
}

// MarketSnapshot is one step of the quote stream.
type MarketSnapshot struct {
	Step       int         `json:"step"`
	Bid        float64     `json:"bid"`
	Ask        float64     `json:"ask"`
	Bids       []BookLevel `json:"bids,omitempty"`
	Asks       []BookLevel `json:"asks,omitempty"`
	LastTrade  float64     `json:"last_trade,omitempty"`
	ReceivedAt time.Time   `json:"-"`
}

// Mid returns the mid price: the bid/ask average when both sides are
// present, else whichever side is quoted, else 0.
func (s MarketSnapshot) Mid() float64 {
	switch {
	case s.Bid > 0 && s.Ask > 0:
		return (s.Bid + s.Ask) / 2
	case s.Bid > 0:
		return s.Bid
	case s.Ask > 0:
		return s.Ask
	default:
		return 0
	}
}

// Spread returns ask minus bid, or 0 when either side is missing.
func (s MarketSnapshot) Spread() float64 {
	if s.Bid > 0 && s.Ask > 0 {
		return s.Ask - s.Bid
	}
	return 0
}

// BidDepth returns the total quantity resting on the bid side.
func (s MarketSnapshot) BidDepth() int64 {
	var total int64
	for _, l := range s.Bids {
		total += l.Qty
	}
	return total
}

// AskDepth returns the total quantity resting on the ask side.
func (s MarketSnapshot) AskDepth() int64 {
	var total int64
	for _, l := range s.Asks {
		total += l.Qty
	}
	return total
}

// Order is a limit order, either a strategy candidate (ID unset) or a
// submitted resting order.
type Order struct {
	ID            string          `json:"order_id"`
	Side          Side            `json:"side"`
	Price         decimal.Decimal `json:"price"`
	Qty           int64           `json:"qty"`
	SubmittedStep int             `json:"-"`
}

// Fill is an execution report for a previously submitted order.
type Fill struct {
	OrderID   string          `json:"order_id"`
	Side      Side            `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Qty       int64           `json:"qty"`
	LatencyMs float64         `json:"latency_ms,omitempty"`
}

// Position tracks inventory, cash flow and mark-to-market PnL.
// It is mutated only through ApplyFill.
type Position struct {
	Inventory  int64           `json:"inventory"`
	CashFlow   decimal.Decimal `json:"cash_flow"`
	PnL        decimal.Decimal `json:"pnl"`
	OrdersSent int64           `json:"orders_sent"`
}

// ApplyFill updates inventory and cash flow from a confirmed fill and
// recomputes PnL against the given mark price.
func (p *Position) ApplyFill(f Fill, lastMid decimal.Decimal) {
	notional := f.Price.Mul(decimal.NewFromInt(f.Qty))
	if f.Side == SideBuy {
		p.Inventory += f.Qty
		p.CashFlow = p.CashFlow.Sub(notional)
	} else {
		p.Inventory -= f.Qty
		p.CashFlow = p.CashFlow.Add(notional)
	}
	p.MarkToMarket(lastMid)
}

// MarkToMarket recomputes PnL = cashFlow + inventory * mid.
func (p *Position) MarkToMarket(lastMid decimal.Decimal) {
	p.PnL = p.CashFlow.Add(lastMid.Mul(decimal.NewFromInt(p.Inventory)))
}
