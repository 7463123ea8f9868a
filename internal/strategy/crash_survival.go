package strategy

import (
	"github.com/atlas-desktop/sim-trader/internal/metrics"
	"github.com/atlas-desktop/sim-trader/pkg/types"
)

// CrashSurvivalConfig parameterizes the crash survival strategy.
type CrashSurvivalConfig struct {
	FlattenThreshold int64 `mapstructure:"flatten_threshold"`
	Qty              int64 `mapstructure:"qty"`
}

// CrashSurvival is the only strategy active during a crash. It never
// opens new risk; its only action is an aggressive guaranteed-fill
// unwind of whatever position exists.
type CrashSurvival struct {
	cfg CrashSurvivalConfig
}

// NewCrashSurvival creates a crash survival strategy.
func NewCrashSurvival(cfg CrashSurvivalConfig) *CrashSurvival {
	return &CrashSurvival{cfg: cfg}
}

func (s *CrashSurvival) Name() string { return "crash_survival" }

func (s *CrashSurvival) Decide(q Quote, inventory int64, step int, _ metrics.Signals) *types.Order {
	if absInt64(inventory) <= s.cfg.FlattenThreshold {
		return nil
	}

	qty := NormalizeQty(minInt64(s.cfg.Qty, absInt64(inventory)))
	if inventory > 0 {
		// Price below the bid so the sell cannot rest unfilled.
		return &types.Order{Side: types.SideSell, Price: price(q.Bid-0.10, 2), Qty: qty}
	}
	return &types.Order{Side: types.SideBuy, Price: price(q.Ask+0.10, 2), Qty: qty}
}
