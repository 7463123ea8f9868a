package strategy

import (
	"testing"

	"github.com/atlas-desktop/sim-trader/internal/metrics"
	"github.com/atlas-desktop/sim-trader/pkg/types"
	"github.com/shopspring/decimal"
)

var testQuote = Quote{Bid: 99.9, Ask: 100.1, Mid: 100.0}

func wantPrice(t *testing.T, got decimal.Decimal, want float64) {
	t.Helper()
	if !got.Equal(decimal.NewFromFloat(want)) {
		t.Fatalf("price = %s, want %v", got, want)
	}
}

func TestNormalizeQty(t *testing.T) {
	cases := []struct{ in, want int64 }{
		{150, 100},
		{250, 200},
		{1000, 500},
		{50, 100},
		{100, 100},
		{500, 500},
	}
	for _, tc := range cases {
		if got := NormalizeQty(tc.in); got != tc.want {
			t.Errorf("NormalizeQty(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestPassiveAlternatesSides(t *testing.T) {
	s := NewPassiveMarketMaker("passive_mm_normal", PassiveConfig{
		SkewFactor: 0.0002, MaxInventory: 3000, Qty: 200, TradeFreq: 5,
	})

	buy := s.Decide(testQuote, 0, 10, metrics.Signals{})
	if buy == nil || buy.Side != types.SideBuy {
		t.Fatalf("step 10: order = %+v, want BUY", buy)
	}
	// Spread 0.2 leaves room to improve inside by one tick.
	wantPrice(t, buy.Price, 100.0)

	sell := s.Decide(testQuote, 0, 5, metrics.Signals{})
	if sell == nil || sell.Side != types.SideSell {
		t.Fatalf("step 5: order = %+v, want SELL", sell)
	}
	wantPrice(t, sell.Price, 100.0)

	if got := s.Decide(testQuote, 0, 7, metrics.Signals{}); got != nil {
		t.Fatalf("step 7 is off-frequency, got %+v", got)
	}
}

func TestPassiveRespectsInventoryCap(t *testing.T) {
	s := NewPassiveMarketMaker("passive_mm_normal", PassiveConfig{
		SkewFactor: 0.0002, MaxInventory: 3000, Qty: 200, TradeFreq: 5,
	})
	if got := s.Decide(testQuote, 3000, 10, metrics.Signals{}); got != nil {
		t.Fatalf("at max inventory, got %+v, want nil", got)
	}
	if got := s.Decide(testQuote, -3000, 10, metrics.Signals{}); got != nil {
		t.Fatalf("at max short inventory, got %+v, want nil", got)
	}
}

func TestPassiveSkewNeverCrosses(t *testing.T) {
	// A huge short position pushes the skew to its +0.2 clamp; the buy
	// quote must still stay one tick under the ask.
	s := NewPassiveMarketMaker("passive_mm_normal", PassiveConfig{
		SkewFactor: 0.0002, MaxInventory: 5000, Qty: 200, TradeFreq: 5,
	})
	buy := s.Decide(testQuote, -4000, 10, metrics.Signals{})
	if buy == nil || buy.Side != types.SideBuy {
		t.Fatalf("order = %+v, want BUY", buy)
	}
	if !buy.Price.LessThan(decimal.NewFromFloat(testQuote.Ask)) {
		t.Fatalf("buy price %s crossed the ask %v", buy.Price, testQuote.Ask)
	}
}

func TestAggressiveForcedUnwindIgnoresFrequency(t *testing.T) {
	s := NewAggressiveMarketMaker(AggressiveConfig{MaxInventory: 3500, Qty: 200, TradeFreq: 2})

	// Step 7 is off-frequency, the unwind must fire anyway.
	sell := s.Decide(testQuote, 3500, 7, metrics.Signals{})
	if sell == nil || sell.Side != types.SideSell || sell.Qty != 300 {
		t.Fatalf("order = %+v, want SELL qty 300", sell)
	}
	wantPrice(t, sell.Price, 99.9)

	buy := s.Decide(testQuote, -3600, 7, metrics.Signals{})
	if buy == nil || buy.Side != types.SideBuy || buy.Qty != 300 {
		t.Fatalf("order = %+v, want BUY qty 300", buy)
	}
	wantPrice(t, buy.Price, 100.1)
}

func TestAggressiveFlattenBias(t *testing.T) {
	s := NewAggressiveMarketMaker(AggressiveConfig{MaxInventory: 3500, Qty: 200, TradeFreq: 2})

	sell := s.Decide(testQuote, 1500, 4, metrics.Signals{})
	if sell == nil || sell.Side != types.SideSell {
		t.Fatalf("order = %+v, want SELL when long past the bias point", sell)
	}
	wantPrice(t, sell.Price, 99.91)

	buy := s.Decide(testQuote, -1500, 4, metrics.Signals{})
	if buy == nil || buy.Side != types.SideBuy {
		t.Fatalf("order = %+v, want BUY when short past the bias point", buy)
	}
	wantPrice(t, buy.Price, 100.09)
}

func TestAggressiveAlternatesAroundMid(t *testing.T) {
	s := NewAggressiveMarketMaker(AggressiveConfig{MaxInventory: 3500, Qty: 200, TradeFreq: 2})

	// Even parity buys below mid by a quarter spread.
	buy := s.Decide(testQuote, 0, 4, metrics.Signals{})
	if buy == nil || buy.Side != types.SideBuy {
		t.Fatalf("order = %+v, want BUY", buy)
	}
	wantPrice(t, buy.Price, 99.95)

	sell := s.Decide(testQuote, 0, 6, metrics.Signals{})
	if sell == nil || sell.Side != types.SideSell {
		t.Fatalf("order = %+v, want SELL", sell)
	}
	wantPrice(t, sell.Price, 100.05)
}

func TestMeanReversionEntryAndExit(t *testing.T) {
	s := NewMeanReversion(MeanReversionConfig{EntryZ: 1.5, ExitZ: 0.5, MaxInventory: 2500, Qty: 200})

	buy := s.Decide(testQuote, 0, 1, metrics.Signals{ZScore: -2.0})
	if buy == nil || buy.Side != types.SideBuy {
		t.Fatalf("order = %+v, want BUY on z = -2", buy)
	}
	wantPrice(t, buy.Price, 99.9)

	sell := s.Decide(testQuote, 0, 1, metrics.Signals{ZScore: 2.0})
	if sell == nil || sell.Side != types.SideSell {
		t.Fatalf("order = %+v, want SELL on z = +2", sell)
	}
	wantPrice(t, sell.Price, 100.1)

	// Back near the mean with a long position: reduce, sized to the
	// smaller of the strategy qty and the inventory.
	exit := s.Decide(testQuote, 450, 1, metrics.Signals{ZScore: 0.1})
	if exit == nil || exit.Side != types.SideSell || exit.Qty != 200 {
		t.Fatalf("order = %+v, want SELL qty 200", exit)
	}

	// Small residual positions are left alone.
	if got := s.Decide(testQuote, 250, 1, metrics.Signals{ZScore: 0.1}); got != nil {
		t.Fatalf("order = %+v, want nil for inventory within exit floor", got)
	}
}

func TestCrashSurvivalOnlyFlattens(t *testing.T) {
	s := NewCrashSurvival(CrashSurvivalConfig{FlattenThreshold: 200, Qty: 500})

	if got := s.Decide(testQuote, 150, 1, metrics.Signals{}); got != nil {
		t.Fatalf("order = %+v, want nil for small inventory", got)
	}

	sell := s.Decide(testQuote, 800, 1, metrics.Signals{})
	if sell == nil || sell.Side != types.SideSell || sell.Qty != 500 {
		t.Fatalf("order = %+v, want SELL qty 500", sell)
	}
	wantPrice(t, sell.Price, 99.8)

	buy := s.Decide(testQuote, -250, 1, metrics.Signals{})
	if buy == nil || buy.Side != types.SideBuy || buy.Qty != 200 {
		t.Fatalf("order = %+v, want BUY qty 200 sized to the position", buy)
	}
	wantPrice(t, buy.Price, 100.2)
}

func TestMomentumFollowsDrift(t *testing.T) {
	s := NewMomentum(MomentumConfig{Threshold: 0.02, MaxInventory: 2000, Qty: 100, TradeFreq: 5})

	buy := s.Decide(testQuote, 0, 10, metrics.Signals{Momentum: 0.05})
	if buy == nil || buy.Side != types.SideBuy {
		t.Fatalf("order = %+v, want BUY on positive drift", buy)
	}
	sell := s.Decide(testQuote, 0, 10, metrics.Signals{Momentum: -0.05})
	if sell == nil || sell.Side != types.SideSell {
		t.Fatalf("order = %+v, want SELL on negative drift", sell)
	}
	if got := s.Decide(testQuote, 0, 10, metrics.Signals{Momentum: 0.01}); got != nil {
		t.Fatalf("order = %+v, want nil under threshold", got)
	}
}
