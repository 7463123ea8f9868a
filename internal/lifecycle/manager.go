// Package lifecycle manages the book of resting orders: self-cross
// prevention, the resting-order cap, staleness sweeps, and fill
// reconciliation against the position.
package lifecycle

import (
	"sort"

	"github.com/atlas-desktop/sim-trader/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config configures the lifecycle manager.
type Config struct {
	MaxResting    int `mapstructure:"max_resting"`
	EvictCount    int `mapstructure:"evict_count"`
	StaleSteps    int `mapstructure:"stale_steps"`
	StaleStepsHFT int `mapstructure:"stale_steps_hft"`
	SweepEvery    int `mapstructure:"sweep_every"`
}

// DefaultConfig returns the standard order-book housekeeping parameters.
func DefaultConfig() Config {
	return Config{
		MaxResting:    8,
		EvictCount:    2,
		StaleSteps:    50,
		StaleStepsHFT: 15,
		SweepEvery:    10,
	}
}

// Sender is the outbound half of the transport: order submission and
// best-effort cancellation.
type Sender interface {
	SendOrder(o types.Order) error
	SendCancel(orderID string) error
}

// Manager owns the local view of resting orders and the position they
// feed. It is not safe for concurrent use; the engine serializes calls.
type Manager struct {
	logger *zap.Logger
	cfg    Config
	sender Sender

	buys  map[string]*types.Order
	sells map[string]*types.Order

	position types.Position
	cancels  int64

	// order id -> submission time for fill latency bookkeeping.
	sentAt map[string]int64
}

// NewManager creates a lifecycle manager sending through the given Sender.
func NewManager(logger *zap.Logger, cfg Config, sender Sender) *Manager {
	return &Manager{
		logger: logger.Named("lifecycle"),
		cfg:    cfg,
		sender: sender,
		buys:   make(map[string]*types.Order),
		sells:  make(map[string]*types.Order),
		sentAt: make(map[string]int64),
	}
}

// Submit assigns the order an id and sends it, first cancelling any
// resting opposite-side order the new price would cross (a BUY at P
// crosses resting sells priced <= P) and evicting the oldest resting
// orders if the book is at its cap.
func (m *Manager) Submit(o types.Order, step int, nowUnixMs int64) (string, error) {
	m.cancelCrossed(o)

	if len(m.buys)+len(m.sells) >= m.cfg.MaxResting {
		m.evictOldest(m.cfg.EvictCount)
	}

	o.ID = uuid.NewString()
	o.SubmittedStep = step
	if err := m.sender.SendOrder(o); err != nil {
		return "", err
	}

	if o.Side == types.SideBuy {
		m.buys[o.ID] = &o
	} else {
		m.sells[o.ID] = &o
	}
	m.sentAt[o.ID] = nowUnixMs
	m.position.OrdersSent++
	return o.ID, nil
}

// cancelCrossed removes every resting opposite-side order the new order
// would trade against, so the book never matches against itself.
func (m *Manager) cancelCrossed(o types.Order) {
	var crossed map[string]*types.Order
	if o.Side == types.SideBuy {
		crossed = m.sells
	} else {
		crossed = m.buys
	}
	for id, resting := range crossed {
		hit := false
		if o.Side == types.SideBuy {
			hit = resting.Price.LessThanOrEqual(o.Price)
		} else {
			hit = resting.Price.GreaterThanOrEqual(o.Price)
		}
		if hit {
			m.logger.Debug("cancelling crossed order",
				zap.String("orderId", id),
				zap.String("side", string(resting.Side)),
			)
			m.cancel(id)
		}
	}
}

// evictOldest cancels the n resting orders with the lowest submission
// step to make room under the cap.
func (m *Manager) evictOldest(n int) {
	all := make([]*types.Order, 0, len(m.buys)+len(m.sells))
	for _, o := range m.buys {
		all = append(all, o)
	}
	for _, o := range m.sells {
		all = append(all, o)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].SubmittedStep < all[j].SubmittedStep
	})
	if n > len(all) {
		n = len(all)
	}
	for _, o := range all[:n] {
		m.logger.Debug("evicting resting order at cap",
			zap.String("orderId", o.ID),
			zap.Int("submittedStep", o.SubmittedStep),
		)
		m.cancel(o.ID)
	}
}

// ExpireStale cancels resting orders older than the staleness threshold.
// It runs only on its configured cadence, and the threshold tightens
// during the HFT regime.
func (m *Manager) ExpireStale(step int, reg types.Regime) {
	if m.cfg.SweepEvery <= 0 || step%m.cfg.SweepEvery != 0 {
		return
	}
	threshold := m.cfg.StaleSteps
	if reg == types.RegimeHFT {
		threshold = m.cfg.StaleStepsHFT
	}
	for _, book := range []map[string]*types.Order{m.buys, m.sells} {
		for id, o := range book {
			if step-o.SubmittedStep > threshold {
				m.logger.Debug("expiring stale order",
					zap.String("orderId", id),
					zap.Int("age", step-o.SubmittedStep),
				)
				m.cancel(id)
			}
		}
	}
}

// cancel removes the order locally and fires the cancel without waiting
// for an acknowledgement. A fill arriving afterward is still applied.
func (m *Manager) cancel(orderID string) {
	delete(m.buys, orderID)
	delete(m.sells, orderID)
	delete(m.sentAt, orderID)
	m.cancels++
	if err := m.sender.SendCancel(orderID); err != nil {
		m.logger.Warn("cancel send failed", zap.String("orderId", orderID), zap.Error(err))
	}
}

// OnFill applies an execution report. The position update always
// happens, even when the order id is unknown (cancelled in flight or
// never ours to track): the exchange is authoritative. Returns the fill
// latency in milliseconds, or -1 when unknown.
func (m *Manager) OnFill(f types.Fill, lastMid decimal.Decimal, nowUnixMs int64) float64 {
	latency := -1.0
	if sent, ok := m.sentAt[f.OrderID]; ok {
		latency = float64(nowUnixMs - sent)
	}
	delete(m.buys, f.OrderID)
	delete(m.sells, f.OrderID)
	delete(m.sentAt, f.OrderID)

	m.position.ApplyFill(f, lastMid)
	return latency
}

// MarkToMarket recomputes PnL against the latest mid.
func (m *Manager) MarkToMarket(lastMid decimal.Decimal) {
	m.position.MarkToMarket(lastMid)
}

// Position returns the current position snapshot.
func (m *Manager) Position() types.Position { return m.position }

// CancelsSent returns the total number of cancel requests fired, from
// cross prevention, cap eviction and staleness sweeps combined.
func (m *Manager) CancelsSent() int64 { return m.cancels }

// RestingCount returns the number of orders currently resting.
func (m *Manager) RestingCount() int { return len(m.buys) + len(m.sells) }

// RestingBuy reports whether the given id is a tracked resting buy.
func (m *Manager) RestingBuy(id string) bool { _, ok := m.buys[id]; return ok }

// RestingSell reports whether the given id is a tracked resting sell.
func (m *Manager) RestingSell(id string) bool { _, ok := m.sells[id]; return ok }
