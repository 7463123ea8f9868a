package strategy

import (
	"github.com/atlas-desktop/sim-trader/internal/metrics"
	"github.com/atlas-desktop/sim-trader/pkg/types"
)

// MomentumConfig parameterizes the momentum strategy.
type MomentumConfig struct {
	Threshold    float64 `mapstructure:"threshold"`
	MaxInventory int64   `mapstructure:"max_inventory"`
	Qty          int64   `mapstructure:"qty"`
	TradeFreq    int     `mapstructure:"trade_freq"`
}

// Momentum trades with the sign of recent drift, crossing the touch to
// capture a continuing move. Used as an alternative NORMAL-regime
// fallback when the mean reversion signal is weak.
type Momentum struct {
	cfg MomentumConfig
}

// NewMomentum creates a momentum strategy.
func NewMomentum(cfg MomentumConfig) *Momentum {
	return &Momentum{cfg: cfg}
}

func (s *Momentum) Name() string { return "momentum" }

func (s *Momentum) Decide(q Quote, inventory int64, step int, sig metrics.Signals) *types.Order {
	if s.cfg.TradeFreq <= 0 || step%s.cfg.TradeFreq != 0 {
		return nil
	}
	if absInt64(inventory) >= s.cfg.MaxInventory {
		return nil
	}

	if sig.Momentum > s.cfg.Threshold {
		return &types.Order{Side: types.SideBuy, Price: price(q.Ask, 2), Qty: s.cfg.Qty}
	}
	if sig.Momentum < -s.cfg.Threshold {
		return &types.Order{Side: types.SideSell, Price: price(q.Bid, 2), Qty: s.cfg.Qty}
	}
	return nil
}
