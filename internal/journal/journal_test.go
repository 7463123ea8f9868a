package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"

	"github.com/atlas-desktop/sim-trader/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestWriteProducesOneRecordPerStep(t *testing.T) {
	cfg := Config{
		Enabled:    true,
		DataDir:    t.TempDir(),
		Experiment: "exp1",
		Mode:       "active",
	}
	j, err := Open(zap.NewNop(), cfg, "normal_market", "run-42")
	if err != nil {
		t.Fatal(err)
	}

	snap := types.MarketSnapshot{
		Step: 7,
		Bid:  99.9,
		Ask:  100.1,
		Bids: []types.BookLevel{{Price: 99.9, Qty: 500}},
		Asks: []types.BookLevel{{Price: 100.1, Qty: 400}},
	}
	pos := types.Position{Inventory: 200, CashFlow: decimal.NewFromInt(-20000), PnL: decimal.NewFromInt(100), OrdersSent: 3}
	action := &types.Order{ID: "abc", Side: types.SideBuy, Price: decimal.NewFromFloat(100.0), Qty: 200}

	if err := j.Write(7, snap, types.RegimeNormal, pos, action, nil); err != nil {
		t.Fatal(err)
	}
	if err := j.Write(8, snap, types.RegimeNormal, pos, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(j.Path())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line %d: %v", len(records)+1, err)
		}
		records = append(records, rec)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	first := records[0]
	if first.Step != 7 || first.Scenario != "normal_market" || first.RunID != "run-42" {
		t.Fatalf("record header = %+v", first)
	}
	if first.Book.BidDepth != 500 || first.Book.AskDepth != 400 {
		t.Fatalf("book depth = %d/%d, want 500/400", first.Book.BidDepth, first.Book.AskDepth)
	}
	if first.State.Inventory != 200 || first.State.PnL != "100" {
		t.Fatalf("state = %+v", first.State)
	}
	if first.Action == nil || first.Action.Side != types.SideBuy {
		t.Fatalf("action = %+v, want the submitted BUY", first.Action)
	}
	if records[1].Action != nil {
		t.Fatalf("second record action = %+v, want null", records[1].Action)
	}
}

func TestBookLevelsCappedAtTen(t *testing.T) {
	cfg := Config{Enabled: true, DataDir: t.TempDir(), Experiment: "exp", Mode: "active"}
	j, err := Open(zap.NewNop(), cfg, "deep_book", "run-1")
	if err != nil {
		t.Fatal(err)
	}

	snap := types.MarketSnapshot{Step: 1, Bid: 99.0, Ask: 101.0}
	for i := 0; i < 15; i++ {
		snap.Bids = append(snap.Bids, types.BookLevel{Price: 99.0 - float64(i), Qty: 100})
	}
	if err := j.Write(1, snap, types.RegimeCalibrating, types.Position{}, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(j.Path())
	if err != nil {
		t.Fatal(err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatal(err)
	}
	if len(rec.Book.Bids) != 10 {
		t.Fatalf("journalled %d bid levels, want 10", len(rec.Book.Bids))
	}
	// Depth still counts the full book, not just the journalled levels.
	if rec.Book.BidDepth != 1500 {
		t.Fatalf("bid depth = %d, want 1500", rec.Book.BidDepth)
	}
}
