package strategy

import (
	"github.com/atlas-desktop/sim-trader/internal/metrics"
	"github.com/atlas-desktop/sim-trader/pkg/types"
)

// MeanReversionConfig parameterizes the mean reversion strategy.
type MeanReversionConfig struct {
	EntryZ       float64 `mapstructure:"entry_z"`
	ExitZ        float64 `mapstructure:"exit_z"`
	MaxInventory int64   `mapstructure:"max_inventory"`
	Qty          int64   `mapstructure:"qty"`
}

// Inventory magnitude below which a returned-to-mean position is left
// alone rather than reduced.
const reversionExitFloor = 300

// MeanReversion trades against large z-score excursions and reduces the
// position once the mid returns to its mean.
type MeanReversion struct {
	cfg MeanReversionConfig
}

// NewMeanReversion creates a mean reversion strategy.
func NewMeanReversion(cfg MeanReversionConfig) *MeanReversion {
	return &MeanReversion{cfg: cfg}
}

func (s *MeanReversion) Name() string { return "mean_reversion" }

func (s *MeanReversion) Decide(q Quote, inventory int64, step int, sig metrics.Signals) *types.Order {
	if absInt64(inventory) >= s.cfg.MaxInventory {
		return nil
	}

	z := sig.ZScore

	// Entry: mid far below mean, buy passively near the bid.
	if z < -s.cfg.EntryZ && inventory < s.cfg.MaxInventory {
		p := q.Bid
		if q.Ask-Tick < p {
			p = q.Ask - Tick
		}
		return &types.Order{Side: types.SideBuy, Price: price(p, 1), Qty: s.cfg.Qty}
	}

	// Entry: mid far above mean, sell passively near the ask.
	if z > s.cfg.EntryZ && inventory > -s.cfg.MaxInventory {
		p := q.Ask
		if q.Bid+Tick > p {
			p = q.Bid + Tick
		}
		return &types.Order{Side: types.SideSell, Price: price(p, 1), Qty: s.cfg.Qty}
	}

	// Exit: mid back near the mean, reduce whatever position remains.
	if z > -s.cfg.ExitZ && z < s.cfg.ExitZ {
		if inventory > reversionExitFloor {
			qty := NormalizeQty(minInt64(s.cfg.Qty, inventory))
			return &types.Order{Side: types.SideSell, Price: price(q.Bid, 2), Qty: qty}
		}
		if inventory < -reversionExitFloor {
			qty := NormalizeQty(minInt64(s.cfg.Qty, -inventory))
			return &types.Order{Side: types.SideBuy, Price: price(q.Ask, 2), Qty: qty}
		}
	}

	return nil
}
