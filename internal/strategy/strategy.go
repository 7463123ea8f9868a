// Package strategy implements the trading strategies the router
// dispatches to. Each strategy is a pure decision function over the
// current quote, position and signal set; none of them hold per-step
// mutable state.
package strategy

import (
	"github.com/atlas-desktop/sim-trader/internal/metrics"
	"github.com/atlas-desktop/sim-trader/pkg/types"
	"github.com/shopspring/decimal"
)

// Tick is the minimum price increment used for quote placement.
const Tick = 0.1

// Quote is the top of book for one step.
type Quote struct {
	Bid float64
	Ask float64
	Mid float64
}

// Spread returns ask minus bid.
func (q Quote) Spread() float64 { return q.Ask - q.Bid }

// Strategy decides what order, if any, to place for the current step.
// A nil return means no action.
type Strategy interface {
	Name() string
	Decide(q Quote, inventory int64, step int, sig metrics.Signals) *types.Order
}

// NormalizeQty rounds a quantity down to the nearest multiple of 100 and
// clamps it to [100, 500].
func NormalizeQty(qty int64) int64 {
	rounded := (qty / 100) * 100
	if rounded < 100 {
		return 100
	}
	if rounded > 500 {
		return 500
	}
	return rounded
}

// price converts a computed float price to a decimal rounded to the
// given number of places.
func price(v float64, places int32) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(places)
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
