// Package regime classifies the market into discrete regimes from the
// metrics engine's signal set. Asymmetric enter/exit thresholds on the
// STRESSED and HFT boundaries prevent single-sample label oscillation.
package regime

import (
	"math"

	"github.com/atlas-desktop/sim-trader/internal/metrics"
	"github.com/atlas-desktop/sim-trader/pkg/types"
	"go.uber.org/zap"
)

// Thresholds holds all classification boundaries. Two sets are in use:
// the compound set combines moderately elevated signal pairs into CRASH
// detection, the simple set checks single signals against higher bars.
type Thresholds struct {
	CompoundSignals bool `mapstructure:"compound_signals"`

	CrashSpreadRatio float64 `mapstructure:"crash_spread_ratio"`
	CrashMomentum    float64 `mapstructure:"crash_momentum"`
	CrashImbalance   float64 `mapstructure:"crash_imbalance"`

	CompoundSpreadRatio float64 `mapstructure:"compound_spread_ratio"`
	CompoundMomentumLo  float64 `mapstructure:"compound_momentum_lo"`
	CompoundMomentumHi  float64 `mapstructure:"compound_momentum_hi"`
	CompoundImbalanceLo float64 `mapstructure:"compound_imbalance_lo"`
	CompoundImbalanceHi float64 `mapstructure:"compound_imbalance_hi"`

	RecoveryEnterSpread   float64 `mapstructure:"recovery_enter_spread"`
	RecoveryExitSpread    float64 `mapstructure:"recovery_exit_spread"`
	RecoveryCooldownSteps int     `mapstructure:"recovery_cooldown_steps"`

	StressedEnterSpread    float64 `mapstructure:"stressed_enter_spread"`
	StressedEnterImbalance float64 `mapstructure:"stressed_enter_imbalance"`
	StressedEnterDepth     float64 `mapstructure:"stressed_enter_depth"`
	StressedExitSpread     float64 `mapstructure:"stressed_exit_spread"`
	StressedExitImbalance  float64 `mapstructure:"stressed_exit_imbalance"`
	StressedExitDepth      float64 `mapstructure:"stressed_exit_depth"`

	HFTEnterChurn     float64 `mapstructure:"hft_enter_churn"`
	HFTExitChurn      float64 `mapstructure:"hft_exit_churn"`
	HFTMaxSpreadRatio float64 `mapstructure:"hft_max_spread_ratio"`
	HFTMinDepthRatio  float64 `mapstructure:"hft_min_depth_ratio"`
	HFTMaxMomentum    float64 `mapstructure:"hft_max_momentum"`
}

// DefaultThresholds returns the compound-OR threshold set.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CompoundSignals: true,

		CrashSpreadRatio: 2.0,
		CrashMomentum:    0.10,
		CrashImbalance:   0.5,

		CompoundSpreadRatio: 1.8,
		CompoundMomentumLo:  0.06,
		CompoundMomentumHi:  0.08,
		CompoundImbalanceLo: 0.4,
		CompoundImbalanceHi: 0.45,

		RecoveryEnterSpread:   1.8,
		RecoveryExitSpread:    1.5,
		RecoveryCooldownSteps: 100,

		StressedEnterSpread:    1.5,
		StressedEnterImbalance: 0.4,
		StressedEnterDepth:     0.5,
		StressedExitSpread:     1.2,
		StressedExitImbalance:  0.3,
		StressedExitDepth:      0.6,

		HFTEnterChurn:     0.20,
		HFTExitChurn:      0.12,
		HFTMaxSpreadRatio: 1.6,
		HFTMinDepthRatio:  0.4,
		HFTMaxMomentum:    0.08,
	}
}

// SimpleThresholds returns the single-signal threshold set with higher
// CRASH bars and no compound pairs.
func SimpleThresholds() Thresholds {
	t := DefaultThresholds()
	t.CompoundSignals = false
	t.CrashSpreadRatio = 2.5
	t.CrashMomentum = 0.15
	t.CrashImbalance = 0.6
	return t
}

// Classifier holds the regime state machine. It always resolves to a
// defined regime, for any finite or degenerate signal input.
type Classifier struct {
	logger     *zap.Logger
	thresholds Thresholds

	current       types.Regime
	previous      types.Regime
	duration      int
	crashCooldown int
}

// NewClassifier creates a classifier in the CALIBRATING state.
func NewClassifier(logger *zap.Logger, t Thresholds) *Classifier {
	return &Classifier{
		logger:     logger.Named("regime"),
		thresholds: t,
		current:    types.RegimeCalibrating,
		previous:   types.RegimeCalibrating,
	}
}

// sanitize maps NaN and infinities to a neutral value so degenerate
// metric inputs cannot leave the state machine undefined.
func sanitize(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// Classify advances the state machine by one step and returns the regime.
func (c *Classifier) Classify(sig metrics.Signals) types.Regime {
	c.previous = c.current

	if !sig.Calibrated {
		c.current = types.RegimeCalibrating
		return c.current
	}

	t := c.thresholds
	spreadRatio := sanitize(sig.SpreadRatio, 1.0)
	depthRatio := sanitize(sig.DepthRatio, 1.0)
	absMomentum := math.Abs(sanitize(sig.Momentum, 0))
	absImbalance := math.Abs(sanitize(sig.Imbalance, 0))
	churn := sanitize(sig.Churn, 0)

	isCrash := spreadRatio > t.CrashSpreadRatio ||
		absMomentum > t.CrashMomentum ||
		absImbalance > t.CrashImbalance
	if !isCrash && t.CompoundSignals {
		// Pairwise elevated signals indicate compound stress that no
		// single signal alone would catch.
		isCrash = (spreadRatio > t.CompoundSpreadRatio && absMomentum > t.CompoundMomentumLo) ||
			(spreadRatio > t.CompoundSpreadRatio && absImbalance > t.CompoundImbalanceLo) ||
			(absMomentum > t.CompoundMomentumHi && absImbalance > t.CompoundImbalanceHi)
	}

	switch {
	case isCrash:
		c.current = types.RegimeCrash
		c.crashCooldown = 0

	case c.previous == types.RegimeCrash && spreadRatio < t.RecoveryEnterSpread:
		c.current = types.RegimeRecovery
		c.crashCooldown = t.RecoveryCooldownSteps

	case c.current == types.RegimeRecovery:
		c.crashCooldown--
		if c.crashCooldown <= 0 && spreadRatio < t.RecoveryExitSpread {
			c.current = types.RegimeNormal
		}

	case c.previous == types.RegimeStressed:
		// Exit only past the stricter exit thresholds.
		if spreadRatio > t.StressedExitSpread ||
			absImbalance > t.StressedExitImbalance ||
			depthRatio < t.StressedExitDepth {
			c.current = types.RegimeStressed
		} else {
			c.current = types.RegimeNormal
		}

	case spreadRatio > t.StressedEnterSpread ||
		absImbalance > t.StressedEnterImbalance ||
		depthRatio < t.StressedEnterDepth:
		c.current = types.RegimeStressed

	default:
		stable := spreadRatio < t.HFTMaxSpreadRatio &&
			depthRatio > t.HFTMinDepthRatio &&
			absMomentum < t.HFTMaxMomentum

		churnBar := t.HFTEnterChurn
		if c.previous == types.RegimeHFT {
			churnBar = t.HFTExitChurn
		}
		if stable && churn >= churnBar {
			c.current = types.RegimeHFT
		} else {
			c.current = types.RegimeNormal
		}
	}

	c.bumpDuration()
	if c.current != c.previous {
		c.logger.Info("regime change",
			zap.String("from", string(c.previous)),
			zap.String("to", string(c.current)),
		)
	}
	return c.current
}

func (c *Classifier) bumpDuration() {
	if c.current == c.previous {
		c.duration++
	} else {
		c.duration = 0
	}
}

// Current returns the regime from the latest classification.
func (c *Classifier) Current() types.Regime { return c.current }

// Previous returns the regime from the prior classification.
func (c *Classifier) Previous() types.Regime { return c.previous }

// Duration returns the number of consecutive steps spent in the
// current regime.
func (c *Classifier) Duration() int { return c.duration }

// CrashCooldown returns the remaining mandatory-caution steps after a
// crash; meaningful only while in RECOVERY.
func (c *Classifier) CrashCooldown() int { return c.crashCooldown }
