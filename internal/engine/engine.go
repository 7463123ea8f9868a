// Package engine runs the event loop that serializes all state
// mutation. The market and order streams each have their own receive
// loop, but everything they produce funnels through one inbox channel
// consumed by a single goroutine; metrics updates, classification,
// order submission and fill reconciliation never race.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/atlas-desktop/sim-trader/internal/journal"
	"github.com/atlas-desktop/sim-trader/internal/lifecycle"
	"github.com/atlas-desktop/sim-trader/internal/obs"
	"github.com/atlas-desktop/sim-trader/internal/router"
	"github.com/atlas-desktop/sim-trader/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Event is a message from one of the stream receive loops.
type Event interface{ event() }

// SnapshotEvent carries one market snapshot.
type SnapshotEvent struct {
	Snapshot types.MarketSnapshot
}

// FillEvent carries one execution report.
type FillEvent struct {
	Fill       types.Fill
	ReceivedAt time.Time
}

// StreamErrorEvent carries an error message from either stream. These
// are absorbed and logged, never fatal to the loop.
type StreamErrorEvent struct {
	Message string
}

func (SnapshotEvent) event()    {}
func (FillEvent) event()        {}
func (StreamErrorEvent) event() {}

// DoneSender signals step completion back to the exchange, gating the
// next snapshot.
type DoneSender interface {
	SendDone() error
}

// Engine consumes the event inbox and drives the decision pipeline.
type Engine struct {
	logger  *zap.Logger
	router  *router.Router
	book    *lifecycle.Manager
	journal *journal.Journal // may be nil
	metrics *obs.Metrics     // may be nil
	done    DoneSender

	inbox chan Event

	lastMid     decimal.Decimal
	step        int
	fills       int64
	cancelsSeen int64
	pendingFill *types.Fill

	mu     sync.RWMutex
	status obs.Status
}

// New creates an engine. journal and metrics may be nil when the
// corresponding collaborator is disabled.
func New(logger *zap.Logger, rt *router.Router, book *lifecycle.Manager, jr *journal.Journal, m *obs.Metrics, done DoneSender) *Engine {
	return &Engine{
		logger:  logger.Named("engine"),
		router:  rt,
		book:    book,
		journal: jr,
		metrics: m,
		done:    done,
		inbox:   make(chan Event, 256),
	}
}

// Inbox returns the channel the stream receive loops push into.
func (e *Engine) Inbox() chan<- Event { return e.inbox }

// Run consumes events until the context is cancelled or the inbox is
// closed by the transport.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-e.inbox:
			if !ok {
				e.logger.Info("event stream closed",
					zap.Int("steps", e.step),
					zap.Int64("fills", e.fills),
				)
				return nil
			}
			switch ev := ev.(type) {
			case SnapshotEvent:
				e.handleSnapshot(ev.Snapshot)
			case FillEvent:
				e.handleFill(ev)
			case StreamErrorEvent:
				e.logger.Warn("stream error", zap.String("message", ev.Message))
				if e.metrics != nil {
					e.metrics.ObserveStreamError()
				}
			}
		}
	}
}

// handleSnapshot runs the full per-step pipeline and signals step
// completion, which releases the next snapshot from the exchange.
func (e *Engine) handleSnapshot(snap types.MarketSnapshot) {
	e.step = snap.Step
	if mid := snap.Mid(); mid > 0 {
		e.lastMid = decimal.NewFromFloat(mid)
	}
	e.book.MarkToMarket(e.lastMid)

	dec := e.router.Decide(snap, e.book.Position().Inventory)
	e.book.ExpireStale(snap.Step, dec.Regime)

	var action *types.Order
	if dec.Order != nil {
		id, err := e.book.Submit(*dec.Order, snap.Step, time.Now().UnixMilli())
		if err != nil {
			e.logger.Warn("order send failed",
				zap.Int("step", snap.Step),
				zap.String("side", string(dec.Order.Side)),
				zap.Error(err),
			)
		} else {
			sent := *dec.Order
			sent.ID = id
			action = &sent
			if e.metrics != nil {
				e.metrics.ObserveOrder()
			}
		}
	}

	// A fill received since the previous snapshot is journalled on this
	// step's row.
	fill := e.pendingFill
	e.pendingFill = nil

	pos := e.book.Position()
	if e.journal != nil {
		if err := e.journal.Write(snap.Step, snap, dec.Regime, pos, action, fill); err != nil {
			e.logger.Warn("journal write failed", zap.Int("step", snap.Step), zap.Error(err))
		}
	}
	if e.metrics != nil {
		e.metrics.ObserveStep(dec.Regime, pos)
		e.metrics.ObserveCancels(e.book.CancelsSent() - e.cancelsSeen)
	}
	e.cancelsSeen = e.book.CancelsSent()
	e.publishStatus(dec.Regime, pos)

	if err := e.done.SendDone(); err != nil {
		e.logger.Warn("step-complete send failed", zap.Int("step", snap.Step), zap.Error(err))
	}
}

// handleFill reconciles an execution report. Fills are matched by order
// id only, never by step, and apply even when the id is unknown: the
// exchange is authoritative over a pending cancel.
func (e *Engine) handleFill(ev FillEvent) {
	latency := e.book.OnFill(ev.Fill, e.lastMid, ev.ReceivedAt.UnixMilli())
	e.fills++

	f := ev.Fill
	if latency >= 0 {
		f.LatencyMs = latency
	}
	e.pendingFill = &f

	e.logger.Debug("fill",
		zap.String("orderId", f.OrderID),
		zap.String("side", string(f.Side)),
		zap.Int64("qty", f.Qty),
		zap.Float64("latencyMs", latency),
	)
	if e.metrics != nil {
		e.metrics.ObserveFill(latency)
	}
}

func (e *Engine) publishStatus(reg types.Regime, pos types.Position) {
	e.mu.Lock()
	e.status = obs.Status{
		Step:      e.step,
		Regime:    string(reg),
		Inventory: pos.Inventory,
		PnL:       pos.PnL.String(),
		Orders:    pos.OrdersSent,
		Fills:     e.fills,
	}
	e.mu.Unlock()
}

// Status returns a copy of the latest published status. Safe to call
// from other goroutines.
func (e *Engine) Status() obs.Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Position returns the final position after Run returns.
func (e *Engine) Position() types.Position { return e.book.Position() }

// Steps returns the last processed step number.
func (e *Engine) Steps() int { return e.step }

// Fills returns the number of execution reports processed.
func (e *Engine) Fills() int64 { return e.fills }
