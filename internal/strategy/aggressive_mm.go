package strategy

import (
	"github.com/atlas-desktop/sim-trader/internal/metrics"
	"github.com/atlas-desktop/sim-trader/pkg/types"
)

// AggressiveConfig parameterizes the aggressive market maker.
type AggressiveConfig struct {
	MaxInventory int64 `mapstructure:"max_inventory"`
	Qty          int64 `mapstructure:"qty"`
	TradeFreq    int   `mapstructure:"trade_freq"`
}

const (
	aggressiveUnwindQty   = 300
	aggressiveFlattenBias = 1000
	aggressiveSkewFactor  = 0.008
)

// AggressiveMarketMaker quotes near or through the touch to keep fill
// rates high. Inventory beyond the limit triggers an unconditional
// unwind that bypasses the frequency gate.
type AggressiveMarketMaker struct {
	cfg AggressiveConfig
}

// NewAggressiveMarketMaker creates an aggressive market maker.
func NewAggressiveMarketMaker(cfg AggressiveConfig) *AggressiveMarketMaker {
	return &AggressiveMarketMaker{cfg: cfg}
}

func (s *AggressiveMarketMaker) Name() string { return "aggressive_mm" }

func (s *AggressiveMarketMaker) Decide(q Quote, inventory int64, step int, _ metrics.Signals) *types.Order {
	// Over-limit unwind happens on every step, not just active ones.
	if inventory >= s.cfg.MaxInventory {
		return &types.Order{Side: types.SideSell, Price: price(q.Bid, 2), Qty: aggressiveUnwindQty}
	}
	if inventory <= -s.cfg.MaxInventory {
		return &types.Order{Side: types.SideBuy, Price: price(q.Ask, 2), Qty: aggressiveUnwindQty}
	}

	if s.cfg.TradeFreq <= 0 || step%s.cfg.TradeFreq != 0 {
		return nil
	}

	// Bias toward flattening once the position is lopsided.
	if inventory > aggressiveFlattenBias {
		return &types.Order{Side: types.SideSell, Price: price(q.Bid+0.01, 2), Qty: s.cfg.Qty}
	}
	if inventory < -aggressiveFlattenBias {
		return &types.Order{Side: types.SideBuy, Price: price(q.Ask-0.01, 2), Qty: s.cfg.Qty}
	}

	skew := -aggressiveSkewFactor * float64(inventory)
	if (step/s.cfg.TradeFreq)%2 == 0 {
		return &types.Order{Side: types.SideBuy, Price: price(q.Mid-q.Spread()/4+skew, 2), Qty: s.cfg.Qty}
	}
	return &types.Order{Side: types.SideSell, Price: price(q.Mid+q.Spread()/4+skew, 2), Qty: s.cfg.Qty}
}
