package lifecycle

import (
	"testing"

	"github.com/atlas-desktop/sim-trader/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type recordingSender struct {
	orders  []types.Order
	cancels []string
}

func (s *recordingSender) SendOrder(o types.Order) error { s.orders = append(s.orders, o); return nil }
func (s *recordingSender) SendCancel(id string) error    { s.cancels = append(s.cancels, id); return nil }

func newTestManager() (*Manager, *recordingSender) {
	sender := &recordingSender{}
	return NewManager(zap.NewNop(), DefaultConfig(), sender), sender
}

func buyAt(price float64, qty int64) types.Order {
	return types.Order{Side: types.SideBuy, Price: decimal.NewFromFloat(price), Qty: qty}
}

func sellAt(price float64, qty int64) types.Order {
	return types.Order{Side: types.SideSell, Price: decimal.NewFromFloat(price), Qty: qty}
}

func TestSubmitCancelsCrossedSells(t *testing.T) {
	m, sender := newTestManager()

	lowID, err := m.Submit(sellAt(100.2, 100), 1, 1000)
	if err != nil {
		t.Fatal(err)
	}
	highID, err := m.Submit(sellAt(100.5, 100), 1, 1000)
	if err != nil {
		t.Fatal(err)
	}

	// A BUY at 100.3 would trade against the 100.2 sell but not the
	// 100.5 one.
	if _, err := m.Submit(buyAt(100.3, 100), 2, 2000); err != nil {
		t.Fatal(err)
	}

	if m.RestingSell(lowID) {
		t.Fatalf("sell %s at 100.2 should have been cancelled", lowID)
	}
	if !m.RestingSell(highID) {
		t.Fatalf("sell %s at 100.5 should still be resting", highID)
	}
	if len(sender.cancels) != 1 || sender.cancels[0] != lowID {
		t.Fatalf("cancels = %v, want exactly [%s]", sender.cancels, lowID)
	}
	if m.CancelsSent() != 1 {
		t.Fatalf("CancelsSent() = %d, want 1", m.CancelsSent())
	}
}

func TestSubmitCancelsCrossedBuys(t *testing.T) {
	m, _ := newTestManager()

	highID, _ := m.Submit(buyAt(100.0, 100), 1, 1000)
	lowID, _ := m.Submit(buyAt(99.5, 100), 1, 1000)

	// A SELL at 99.8 crosses the 100.0 buy only.
	if _, err := m.Submit(sellAt(99.8, 100), 2, 2000); err != nil {
		t.Fatal(err)
	}

	if m.RestingBuy(highID) {
		t.Fatalf("buy %s at 100.0 should have been cancelled", highID)
	}
	if !m.RestingBuy(lowID) {
		t.Fatalf("buy %s at 99.5 should still be resting", lowID)
	}
}

func TestCapEvictsOldestThenAccepts(t *testing.T) {
	m, sender := newTestManager()

	var first, second string
	for i := 0; i < DefaultConfig().MaxResting; i++ {
		// Spread the prices out so nothing self-crosses.
		id, err := m.Submit(buyAt(90.0+float64(i), 100), i+1, int64(i))
		if err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			first = id
		}
		if i == 1 {
			second = id
		}
	}
	if got := m.RestingCount(); got != 8 {
		t.Fatalf("resting count = %d, want 8 at the cap", got)
	}

	newID, err := m.Submit(buyAt(89.0, 100), 100, 1000)
	if err != nil {
		t.Fatal(err)
	}

	// The two oldest were evicted to make room and the new order went in.
	if got := m.RestingCount(); got != 7 {
		t.Fatalf("resting count = %d, want 7 after eviction", got)
	}
	if !m.RestingBuy(newID) {
		t.Fatal("new order not resting after cap eviction")
	}
	if len(sender.cancels) != 2 {
		t.Fatalf("cancels = %v, want the two oldest", sender.cancels)
	}
	for _, id := range sender.cancels {
		if id != first && id != second {
			t.Fatalf("cancelled %s, want one of the two oldest (%s, %s)", id, first, second)
		}
	}
	if m.CancelsSent() != int64(len(sender.cancels)) {
		t.Fatalf("CancelsSent() = %d, want %d", m.CancelsSent(), len(sender.cancels))
	}
}

func TestExpireStaleRespectsCadenceAndRegime(t *testing.T) {
	m, _ := newTestManager()

	id, _ := m.Submit(buyAt(99.0, 100), 1, 1000)

	// Off-cadence steps never sweep, whatever the age.
	m.ExpireStale(75, types.RegimeNormal)
	if !m.RestingBuy(id) {
		t.Fatal("sweep ran off-cadence")
	}

	// Age 39 is under the NORMAL threshold of 50.
	m.ExpireStale(40, types.RegimeNormal)
	if !m.RestingBuy(id) {
		t.Fatal("order expired before the NORMAL staleness threshold")
	}

	// The same age is over the HFT threshold of 15.
	m.ExpireStale(40, types.RegimeHFT)
	if m.RestingBuy(id) {
		t.Fatal("order survived past the HFT staleness threshold")
	}
}

func TestFillUpdatesPosition(t *testing.T) {
	m, _ := newTestManager()

	id, _ := m.Submit(buyAt(100.0, 200), 1, 1000)
	mid := decimal.NewFromFloat(100.5)
	latency := m.OnFill(types.Fill{
		OrderID: id,
		Side:    types.SideBuy,
		Price:   decimal.NewFromFloat(100.0),
		Qty:     200,
	}, mid, 1250)

	if latency != 250 {
		t.Fatalf("latency = %v, want 250ms", latency)
	}
	pos := m.Position()
	if pos.Inventory != 200 {
		t.Fatalf("inventory = %d, want 200", pos.Inventory)
	}
	if !pos.CashFlow.Equal(decimal.NewFromInt(-20000)) {
		t.Fatalf("cash flow = %s, want -20000", pos.CashFlow)
	}
	// pnl = cashFlow + inventory*mid = -20000 + 200*100.5 = 100
	if !pos.PnL.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("pnl = %s, want 100", pos.PnL)
	}
	if m.RestingBuy(id) {
		t.Fatal("filled order still resting")
	}
}

func TestFillAfterCancelStillApplies(t *testing.T) {
	m, _ := newTestManager()

	id, _ := m.Submit(sellAt(101.0, 100), 1, 1000)
	m.ExpireStale(60, types.RegimeNormal)
	if m.RestingSell(id) {
		t.Fatal("order not expired")
	}

	// The exchange filled it before the cancel landed: the position
	// update still applies, only latency bookkeeping is skipped.
	latency := m.OnFill(types.Fill{
		OrderID: id,
		Side:    types.SideSell,
		Price:   decimal.NewFromFloat(101.0),
		Qty:     100,
	}, decimal.NewFromFloat(100.0), 2000)

	if latency != -1 {
		t.Fatalf("latency = %v, want -1 for a cancelled order", latency)
	}
	pos := m.Position()
	if pos.Inventory != -100 {
		t.Fatalf("inventory = %d, want -100", pos.Inventory)
	}
	if !pos.CashFlow.Equal(decimal.NewFromInt(10100)) {
		t.Fatalf("cash flow = %s, want 10100", pos.CashFlow)
	}
}
