package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/atlas-desktop/sim-trader/internal/journal"
)

var csvHeader = []string{
	"step", "timestamp", "scenario", "experiment", "run_id", "mode",
	"bid", "ask", "mid", "spread", "last_trade",
	"bid_depth", "ask_depth",
	"inventory", "cash_flow", "pnl", "orders_sent", "regime",
	"action_side", "action_price", "action_qty",
	"fill_side", "fill_price", "fill_qty", "fill_latency_ms",
}

// WriteCSV flattens journal records into one CSV row per step.
func WriteCSV(records []journal.Record, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			strconv.Itoa(rec.Step),
			rec.Timestamp,
			rec.Scenario,
			rec.Experiment,
			rec.RunID,
			rec.Mode,
			formatFloat(rec.Market.Bid),
			formatFloat(rec.Market.Ask),
			formatFloat(rec.Market.Mid),
			formatFloat(rec.Market.Spread),
			formatFloat(rec.Market.LastTrade),
			strconv.FormatInt(rec.Book.BidDepth, 10),
			strconv.FormatInt(rec.Book.AskDepth, 10),
			strconv.FormatInt(rec.State.Inventory, 10),
			rec.State.CashFlow,
			rec.State.PnL,
			strconv.FormatInt(rec.State.OrdersSent, 10),
			string(rec.Regime),
			"", "0", "0",
			"", "0", "0", "0",
		}
		if a := rec.Action; a != nil {
			row[18] = string(a.Side)
			row[19] = a.Price.String()
			row[20] = strconv.FormatInt(a.Qty, 10)
		}
		if fl := rec.Fill; fl != nil {
			row[21] = string(fl.Side)
			row[22] = fl.Price.String()
			row[23] = strconv.FormatInt(fl.Qty, 10)
			row[24] = formatFloat(fl.LatencyMs)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
