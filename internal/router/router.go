// Package router ties the per-step decision pipeline together: metrics
// update, regime classification, strategy dispatch, risk overlay.
package router

import (
	"github.com/atlas-desktop/sim-trader/internal/metrics"
	"github.com/atlas-desktop/sim-trader/internal/regime"
	"github.com/atlas-desktop/sim-trader/internal/risk"
	"github.com/atlas-desktop/sim-trader/internal/strategy"
	"github.com/atlas-desktop/sim-trader/pkg/types"
	"go.uber.org/zap"
)

// Strategies is the fixed set the router dispatches across.
type Strategies struct {
	PassiveNormal strategy.Strategy
	PassiveHFT    strategy.Strategy
	Aggressive    strategy.Strategy
	MeanReversion strategy.Strategy
	Momentum      strategy.Strategy
	CrashSurvival strategy.Strategy
}

// Decision is the outcome of one routing step.
type Decision struct {
	Order    *types.Order
	Regime   types.Regime
	Strategy string
	Signals  metrics.Signals
}

// Router owns the market-facing decision pipeline for one bot instance.
// It is not safe for concurrent use; the engine serializes all calls.
type Router struct {
	logger     *zap.Logger
	metrics    *metrics.Engine
	classifier *regime.Classifier
	overlay    *risk.Overlay
	strats     Strategies

	// |z| above this routes NORMAL steps to mean reversion instead of
	// the aggressive market maker.
	strongSignalZ float64
}

// New creates a router over the given pipeline components.
func New(logger *zap.Logger, eng *metrics.Engine, cls *regime.Classifier, overlay *risk.Overlay, strats Strategies, strongSignalZ float64) *Router {
	return &Router{
		logger:        logger.Named("router"),
		metrics:       eng,
		classifier:    cls,
		overlay:       overlay,
		strats:        strats,
		strongSignalZ: strongSignalZ,
	}
}

// Decide runs the full pipeline for one snapshot and returns the vetted
// order (possibly nil) plus the regime that produced it.
func (r *Router) Decide(snap types.MarketSnapshot, inventory int64) Decision {
	mid := snap.Mid()
	if mid <= 0 || snap.Bid <= 0 || snap.Ask <= 0 {
		// Unusable quote: no metrics update, no action.
		return Decision{Regime: r.classifier.Current()}
	}

	r.metrics.Update(mid, snap.Spread(), snap.BidDepth(), snap.AskDepth())
	sig := r.metrics.Signals()
	reg := r.classifier.Classify(sig)

	q := strategy.Quote{Bid: snap.Bid, Ask: snap.Ask, Mid: mid}
	var (
		active strategy.Strategy
		order  *types.Order
	)

	switch reg {
	case types.RegimeCalibrating:
		// No trading until the baseline exists.
	case types.RegimeCrash:
		active = r.strats.CrashSurvival
	case types.RegimeRecovery, types.RegimeStressed:
		active = r.strats.PassiveNormal
	case types.RegimeHFT:
		active = r.strats.PassiveHFT
	case types.RegimeNormal:
		if sig.ZScore > r.strongSignalZ || sig.ZScore < -r.strongSignalZ {
			active = r.strats.MeanReversion
		} else {
			active = r.strats.Aggressive
		}
	}

	name := ""
	if active != nil {
		order = active.Decide(q, inventory, snap.Step, sig)
		name = active.Name()
	}

	order = r.overlay.Apply(order, snap.Bid, snap.Ask, inventory)

	return Decision{Order: order, Regime: reg, Strategy: name, Signals: sig}
}

// Signals exposes the latest metrics snapshot for reporting.
func (r *Router) Signals() metrics.Signals { return r.metrics.Signals() }

// Regime exposes the current regime for reporting.
func (r *Router) Regime() types.Regime { return r.classifier.Current() }
