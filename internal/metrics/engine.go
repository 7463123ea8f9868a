// Package metrics maintains incrementally updated market statistics over
// the quote stream. All updates are O(1): rolling windows are fixed-size
// ring buffers and mean/variance come from running sums.
package metrics

import (
	"math"

	"go.uber.org/zap"
)

// Config configures the metrics engine.
type Config struct {
	WindowSize       int
	CalibrationSteps int
	ChurnWindow      int
	MomentumLag      int
	Epsilon          float64
}

// DefaultConfig returns the standard window and calibration sizes.
func DefaultConfig() Config {
	return Config{
		WindowSize:       100,
		CalibrationSteps: 100,
		ChurnWindow:      20,
		MomentumLag:      10,
		Epsilon:          0.001,
	}
}

// Baseline holds the reference values captured once at calibration.
type Baseline struct {
	Spread float64 `json:"spread"`
	Depth  float64 `json:"depth"`
	Mid    float64 `json:"mid"`
}

// Signals is the derived signal set recomputed on every update.
type Signals struct {
	MeanMid     float64 `json:"mean_mid"`
	Volatility  float64 `json:"volatility"`
	ZScore      float64 `json:"z_score"`
	Momentum    float64 `json:"momentum"`
	Imbalance   float64 `json:"imbalance"`
	Churn       float64 `json:"churn"`
	SpreadRatio float64 `json:"spread_ratio"`
	DepthRatio  float64 `json:"depth_ratio"`
	Calibrated  bool    `json:"calibrated"`
	Samples     int     `json:"samples"`
}

// Engine turns the raw quote stream into the signal set consumed by the
// regime classifier and the strategies.
type Engine struct {
	logger *zap.Logger
	cfg    Config

	mids    *ring
	spreads *ring
	depths  *ring

	midSum      float64
	midSqSum    float64
	spreadSum   float64
	spreadSqSum float64
	depthSum    float64

	baseline   Baseline
	calibrated bool

	lastMid     float64
	haveLastMid bool
	midChanges  int
	seen        int // total samples observed, not capped by the window

	sig Signals
}

// NewEngine creates a metrics engine.
func NewEngine(logger *zap.Logger, cfg Config) *Engine {
	if cfg.WindowSize <= 0 {
		cfg = DefaultConfig()
	}
	return &Engine{
		logger:  logger.Named("metrics"),
		cfg:     cfg,
		mids:    newRing(cfg.WindowSize),
		spreads: newRing(cfg.WindowSize),
		depths:  newRing(cfg.WindowSize),
		sig:     Signals{SpreadRatio: 1.0, DepthRatio: 1.0},
	}
}

// Update ingests one market snapshot. Malformed inputs (negative or zero
// prices/depths) are tolerated; ratio and velocity terms guard their
// divisions and fall back to neutral values.
func (e *Engine) Update(mid, spread float64, bidDepth, askDepth int64) {
	totalDepth := float64(bidDepth + askDepth)

	// Subtract the values about to be evicted before appending, so the
	// running sums always match the window contents exactly.
	if old, full := e.mids.Push(mid); full {
		e.midSum -= old
		e.midSqSum -= old * old
	}
	if old, full := e.spreads.Push(spread); full {
		e.spreadSum -= old
		e.spreadSqSum -= old * old
	}
	if old, full := e.depths.Push(totalDepth); full {
		e.depthSum -= old
	}
	e.midSum += mid
	e.midSqSum += mid * mid
	e.spreadSum += spread
	e.spreadSqSum += spread * spread
	e.depthSum += totalDepth
	e.seen++

	n := e.mids.Len()
	e.sig.Samples = n

	avgMid := e.midSum / float64(n)
	avgSpread := e.spreadSum / float64(n)
	avgDepth := e.depthSum / float64(n)
	e.sig.MeanMid = avgMid

	// Var(X) = E[X^2] - E[X]^2; clamp the tiny negatives float error
	// can produce.
	midVariance := e.midSqSum/float64(n) - avgMid*avgMid
	e.sig.Volatility = math.Sqrt(math.Max(0, midVariance))

	if e.sig.Volatility > e.cfg.Epsilon {
		e.sig.ZScore = (mid - avgMid) / e.sig.Volatility
	} else {
		e.sig.ZScore = 0
	}

	if n >= e.cfg.MomentumLag {
		e.sig.Momentum = (mid - e.mids.FromNewest(e.cfg.MomentumLag-1)) / float64(e.cfg.MomentumLag)
	} else {
		e.sig.Momentum = 0
	}

	if totalDepth > 0 {
		e.sig.Imbalance = float64(bidDepth-askDepth) / totalDepth
	} else {
		e.sig.Imbalance = 0
	}

	// Churn: fraction of the last churnWindow steps in which the mid
	// moved by more than epsilon. The change counter resets each time
	// a full churn window has elapsed.
	if e.haveLastMid && math.Abs(mid-e.lastMid) > e.cfg.Epsilon {
		e.midChanges++
	}
	e.lastMid = mid
	e.haveLastMid = true
	if e.seen >= e.cfg.ChurnWindow {
		e.sig.Churn = math.Min(1.0, float64(e.midChanges)/float64(e.cfg.ChurnWindow))
		if e.seen%e.cfg.ChurnWindow == 0 {
			e.midChanges = 0
		}
	} else {
		e.sig.Churn = 0
	}

	// The baseline is captured exactly once, on the step where the
	// sample count first reaches the calibration length.
	if !e.calibrated && n >= e.cfg.CalibrationSteps {
		e.baseline = Baseline{Spread: avgSpread, Depth: avgDepth, Mid: avgMid}
		e.calibrated = true
		e.logger.Info("calibration complete",
			zap.Float64("baselineSpread", e.baseline.Spread),
			zap.Float64("baselineDepth", e.baseline.Depth),
			zap.Float64("baselineMid", e.baseline.Mid),
		)
	}
	e.sig.Calibrated = e.calibrated

	if e.calibrated && e.baseline.Spread > 0 {
		e.sig.SpreadRatio = spread / e.baseline.Spread
	} else {
		e.sig.SpreadRatio = 1.0
	}
	if e.calibrated && e.baseline.Depth > 0 {
		e.sig.DepthRatio = totalDepth / e.baseline.Depth
	} else {
		e.sig.DepthRatio = 1.0
	}
}

// Signals returns the current derived signal set.
func (e *Engine) Signals() Signals { return e.sig }

// Baseline returns the calibration baseline; zero until Calibrated.
func (e *Engine) Baseline() Baseline { return e.baseline }

// Calibrated reports whether the calibration baseline has been captured.
func (e *Engine) Calibrated() bool { return e.calibrated }
