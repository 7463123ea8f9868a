package strategy

import (
	"github.com/atlas-desktop/sim-trader/internal/metrics"
	"github.com/atlas-desktop/sim-trader/pkg/types"
)

// PassiveConfig parameterizes the passive market maker.
type PassiveConfig struct {
	SkewFactor   float64 `mapstructure:"skew_factor"`
	MaxInventory int64   `mapstructure:"max_inventory"`
	Qty          int64   `mapstructure:"qty"`
	TradeFreq    int     `mapstructure:"trade_freq"`
}

// PassiveMarketMaker provides liquidity on both sides of the book,
// alternating BUY and SELL quotes with a bounded inventory skew. Two
// tunings are in use: a slower, larger-size one for calm regimes and a
// faster, smaller-size one for HFT conditions.
type PassiveMarketMaker struct {
	name string
	cfg  PassiveConfig
}

// NewPassiveMarketMaker creates a passive market maker with the given
// name and tuning.
func NewPassiveMarketMaker(name string, cfg PassiveConfig) *PassiveMarketMaker {
	return &PassiveMarketMaker{name: name, cfg: cfg}
}

func (s *PassiveMarketMaker) Name() string { return s.name }

// Decide quotes one side per active step. The quote improves the inside
// by one tick only when the spread leaves room for it, and the skew is
// clamped so it can never force a cross.
func (s *PassiveMarketMaker) Decide(q Quote, inventory int64, step int, _ metrics.Signals) *types.Order {
	if s.cfg.TradeFreq <= 0 || step%s.cfg.TradeFreq != 0 {
		return nil
	}
	if absInt64(inventory) >= s.cfg.MaxInventory {
		return nil
	}

	improve := 0.0
	if q.Spread() >= 2*Tick {
		improve = Tick
	}
	buyBase := q.Bid + improve
	sellBase := q.Ask - improve

	skew := -s.cfg.SkewFactor * float64(inventory)
	if skew > 0.2 {
		skew = 0.2
	} else if skew < -0.2 {
		skew = -0.2
	}

	if (step/s.cfg.TradeFreq)%2 == 0 {
		// Join or improve the bid, never cross the ask.
		raw := buyBase + skew
		p := raw
		if p > q.Ask-Tick {
			p = q.Ask - Tick
		}
		if p < q.Bid {
			p = q.Bid
		}
		if p < Tick {
			p = Tick
		}
		return &types.Order{Side: types.SideBuy, Price: price(p, 1), Qty: s.cfg.Qty}
	}

	// Join or improve the ask, never cross the bid.
	raw := sellBase + skew
	p := raw
	if p < q.Bid+Tick {
		p = q.Bid + Tick
	}
	if p > q.Ask {
		p = q.Ask
	}
	return &types.Order{Side: types.SideSell, Price: price(p, 1), Qty: s.cfg.Qty}
}
