package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/atlas-desktop/sim-trader/internal/journal"
	"github.com/atlas-desktop/sim-trader/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func writeTestJournal(t *testing.T) string {
	t.Helper()
	j, err := journal.Open(zap.NewNop(), journal.Config{
		Enabled: true, DataDir: t.TempDir(), Experiment: "exp", Mode: "active",
	}, "normal_market", "run-3")
	if err != nil {
		t.Fatal(err)
	}

	snap := types.MarketSnapshot{
		Step: 1, Bid: 99.9, Ask: 100.1,
		Bids: []types.BookLevel{{Price: 99.9, Qty: 500}},
		Asks: []types.BookLevel{{Price: 100.1, Qty: 500}},
	}
	action := &types.Order{ID: "o1", Side: types.SideBuy, Price: decimal.NewFromFloat(100.0), Qty: 200}
	if err := j.Write(1, snap, types.RegimeCalibrating, types.Position{OrdersSent: 1}, action, nil); err != nil {
		t.Fatal(err)
	}

	fill := &types.Fill{OrderID: "o1", Side: types.SideBuy, Price: decimal.NewFromFloat(100.0), Qty: 200, LatencyMs: 12}
	pos := types.Position{
		Inventory:  200,
		CashFlow:   decimal.NewFromInt(-20000),
		PnL:        decimal.NewFromInt(100),
		OrdersSent: 1,
	}
	snap.Step = 2
	if err := j.Write(2, snap, types.RegimeNormal, pos, nil, fill); err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}
	return j.Path()
}

func TestSummarizeJournal(t *testing.T) {
	path := writeTestJournal(t)

	records, err := Load(zap.NewNop(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("loaded %d records, want 2", len(records))
	}

	s := Summarize(records)
	if s.Scenario != "normal_market" || s.RunID != "run-3" {
		t.Fatalf("header = %+v", s)
	}
	if s.TotalSteps != 2 || s.FirstStep != 1 || s.LastStep != 2 {
		t.Fatalf("steps = %d (%d..%d)", s.TotalSteps, s.FirstStep, s.LastStep)
	}
	if s.TotalActions != 1 || s.BuyActions != 1 {
		t.Fatalf("actions = %d buy %d", s.TotalActions, s.BuyActions)
	}
	if s.TotalFills != 1 || s.TotalFillQty != 200 {
		t.Fatalf("fills = %d qty %d", s.TotalFills, s.TotalFillQty)
	}
	if s.FillRatePct != 100 {
		t.Fatalf("fill rate = %v, want 100", s.FillRatePct)
	}
	if s.FinalInventory != 200 || s.FinalPnL != 100 {
		t.Fatalf("final inventory/pnl = %d/%v", s.FinalInventory, s.FinalPnL)
	}
	if s.AvgFillLatencyMs != 12 {
		t.Fatalf("avg fill latency = %v, want 12", s.AvgFillLatencyMs)
	}
	if s.RegimeSteps["NORMAL"] != 1 || s.RegimeSteps["CALIBRATING"] != 1 {
		t.Fatalf("regime steps = %v", s.RegimeSteps)
	}
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jsonl")
	content := `{"step":1,"market":{"bid":99.9,"ask":100.1,"mid":100.0}}
this is not json
{"step":2,"market":{"bid":99.9,"ask":100.1,"mid":100.0}}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	records, err := Load(zap.NewNop(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("loaded %d records, want 2 with the bad line skipped", len(records))
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	path := writeTestJournal(t)
	records, err := Load(zap.NewNop(), path)
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "run.csv")
	if err := WriteCSV(records, out); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("csv has %d rows, want header + 2", len(rows))
	}
	if rows[0][0] != "step" {
		t.Fatalf("header = %v", rows[0])
	}
	// Second data row carries the fill columns.
	if rows[2][21] != "BUY" || rows[2][23] != "200" {
		t.Fatalf("fill columns = %v", rows[2][21:])
	}
}
