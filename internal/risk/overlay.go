// Package risk holds the final inventory-limit overlay applied to every
// candidate order. It is the last line of defense: a strategy bug that
// proposes an over-limit order is corrected or blocked here.
package risk

import (
	"github.com/atlas-desktop/sim-trader/internal/strategy"
	"github.com/atlas-desktop/sim-trader/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config configures the risk overlay.
type Config struct {
	HardLimit     int64 `mapstructure:"hard_limit"`
	UnwindTrigger int64 `mapstructure:"unwind_trigger"`
	SafetyBuffer  int64 `mapstructure:"safety_buffer"`
	EmergencyQty  int64 `mapstructure:"emergency_qty"`
}

// DefaultConfig returns the standard inventory bounds.
func DefaultConfig() Config {
	return Config{
		HardLimit:     4500,
		UnwindTrigger: 3500,
		SafetyBuffer:  3000,
		EmergencyQty:  500,
	}
}

// Overlay vets candidate orders against the hard inventory limit.
type Overlay struct {
	logger *zap.Logger
	cfg    Config
}

// NewOverlay creates a risk overlay.
func NewOverlay(logger *zap.Logger, cfg Config) *Overlay {
	return &Overlay{logger: logger.Named("risk"), cfg: cfg}
}

// Apply vets the candidate order (which may be nil) against current
// inventory and returns the order to actually send, possibly modified,
// substituted by an unwind, or nil.
func (o *Overlay) Apply(candidate *types.Order, bid, ask float64, inventory int64) *types.Order {
	// No candidate: the overlay still acts when inventory has reached
	// the hard limit, regardless of what regime or strategy is active.
	if candidate == nil {
		if inventory >= o.cfg.HardLimit {
			o.logger.Warn("emergency unwind", zap.Int64("inventory", inventory))
			return &types.Order{
				Side:  types.SideSell,
				Price: decimal.NewFromFloat(bid - 0.05).Round(2),
				Qty:   o.cfg.EmergencyQty,
			}
		}
		if inventory <= -o.cfg.HardLimit {
			o.logger.Warn("emergency unwind", zap.Int64("inventory", inventory))
			return &types.Order{
				Side:  types.SideBuy,
				Price: decimal.NewFromFloat(ask + 0.05).Round(2),
				Qty:   o.cfg.EmergencyQty,
			}
		}
		return nil
	}

	resulting := inventory + candidate.Qty
	if candidate.Side == types.SideSell {
		resulting = inventory - candidate.Qty
	}

	if abs(resulting) >= o.cfg.HardLimit {
		o.logger.Warn("order blocked at hard limit",
			zap.String("side", string(candidate.Side)),
			zap.Int64("qty", candidate.Qty),
			zap.Int64("inventory", inventory),
		)
		// Close to the limit already: substitute a bounded unwind back
		// toward the safety buffer.
		if inventory > o.cfg.UnwindTrigger {
			return &types.Order{
				Side:  types.SideSell,
				Price: decimal.NewFromFloat(bid).Round(2),
				Qty:   strategy.NormalizeQty(inventory - o.cfg.SafetyBuffer),
			}
		}
		if inventory < -o.cfg.UnwindTrigger {
			return &types.Order{
				Side:  types.SideBuy,
				Price: decimal.NewFromFloat(ask).Round(2),
				Qty:   strategy.NormalizeQty(-inventory - o.cfg.SafetyBuffer),
			}
		}
		return nil
	}

	candidate.Qty = strategy.NormalizeQty(candidate.Qty)
	return candidate
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
