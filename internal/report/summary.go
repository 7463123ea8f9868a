// Package report computes run summaries from journal files and exports
// flattened CSV for offline analysis.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/atlas-desktop/sim-trader/internal/journal"
	"go.uber.org/zap"
)

// Stats is the summary of one journalled run.
type Stats struct {
	Scenario   string `json:"scenario"`
	Experiment string `json:"experiment"`
	RunID      string `json:"run_id"`
	Mode       string `json:"mode"`

	TotalSteps int `json:"total_steps"`
	FirstStep  int `json:"first_step"`
	LastStep   int `json:"last_step"`

	MinMid   float64 `json:"min_mid"`
	MaxMid   float64 `json:"max_mid"`
	AvgMid   float64 `json:"avg_mid"`
	MidRange float64 `json:"mid_range"`

	MinSpread float64 `json:"min_spread"`
	MaxSpread float64 `json:"max_spread"`
	AvgSpread float64 `json:"avg_spread"`

	MinInventory   int64   `json:"min_inventory"`
	MaxInventory   int64   `json:"max_inventory"`
	FinalInventory int64   `json:"final_inventory"`
	FinalPnL       float64 `json:"final_pnl"`
	FinalCashFlow  float64 `json:"final_cash_flow"`

	TotalActions int     `json:"total_actions"`
	BuyActions   int     `json:"buy_actions"`
	SellActions  int     `json:"sell_actions"`
	TotalFills   int     `json:"total_fills"`
	BuyFills     int     `json:"buy_fills"`
	SellFills    int     `json:"sell_fills"`
	FillRatePct  float64 `json:"fill_rate_pct"`

	TotalFillQty int64 `json:"total_fill_qty"`

	MinFillLatencyMs float64 `json:"min_fill_latency_ms"`
	MaxFillLatencyMs float64 `json:"max_fill_latency_ms"`
	AvgFillLatencyMs float64 `json:"avg_fill_latency_ms"`

	// Steps spent per regime label.
	RegimeSteps map[string]int `json:"regime_steps"`
}

// Load reads one journal file, skipping lines that fail to parse.
func Load(logger *zap.Logger, path string) ([]journal.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var records []journal.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec journal.Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			logger.Warn("skipping malformed journal line",
				zap.String("path", path),
				zap.Int("line", line),
				zap.Error(err),
			)
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return records, nil
}

// Summarize computes run statistics over the journal records.
func Summarize(records []journal.Record) Stats {
	var s Stats
	if len(records) == 0 {
		return s
	}
	first := records[0]
	s.Scenario = first.Scenario
	s.Experiment = first.Experiment
	s.RunID = first.RunID
	s.Mode = first.Mode
	s.TotalSteps = len(records)
	s.FirstStep = first.Step
	s.LastStep = first.Step
	s.RegimeSteps = make(map[string]int)

	var midSum, spreadSum float64
	var midCount, spreadCount int
	var latencySum float64
	var latencyCount int

	for i, rec := range records {
		if rec.Step < s.FirstStep {
			s.FirstStep = rec.Step
		}
		if rec.Step > s.LastStep {
			s.LastStep = rec.Step
		}
		s.RegimeSteps[string(rec.Regime)]++

		if mid := rec.Market.Mid; mid > 0 {
			if midCount == 0 || mid < s.MinMid {
				s.MinMid = mid
			}
			if mid > s.MaxMid {
				s.MaxMid = mid
			}
			midSum += mid
			midCount++
		}
		if spread := rec.Market.Spread; spread > 0 {
			if spreadCount == 0 || spread < s.MinSpread {
				s.MinSpread = spread
			}
			if spread > s.MaxSpread {
				s.MaxSpread = spread
			}
			spreadSum += spread
			spreadCount++
		}

		inv := rec.State.Inventory
		if i == 0 || inv < s.MinInventory {
			s.MinInventory = inv
		}
		if i == 0 || inv > s.MaxInventory {
			s.MaxInventory = inv
		}

		if rec.Action != nil {
			s.TotalActions++
			if rec.Action.Side == "BUY" {
				s.BuyActions++
			} else {
				s.SellActions++
			}
		}
		if rec.Fill != nil {
			s.TotalFills++
			if rec.Fill.Side == "BUY" {
				s.BuyFills++
			} else {
				s.SellFills++
			}
			s.TotalFillQty += rec.Fill.Qty
			if lat := rec.Fill.LatencyMs; lat > 0 {
				if latencyCount == 0 || lat < s.MinFillLatencyMs {
					s.MinFillLatencyMs = lat
				}
				if lat > s.MaxFillLatencyMs {
					s.MaxFillLatencyMs = lat
				}
				latencySum += lat
				latencyCount++
			}
		}
	}

	if midCount > 0 {
		s.AvgMid = midSum / float64(midCount)
		s.MidRange = s.MaxMid - s.MinMid
	}
	if spreadCount > 0 {
		s.AvgSpread = spreadSum / float64(spreadCount)
	}
	if latencyCount > 0 {
		s.AvgFillLatencyMs = latencySum / float64(latencyCount)
	}
	if s.TotalActions > 0 {
		s.FillRatePct = float64(s.TotalFills) / float64(s.TotalActions) * 100
	}

	last := records[len(records)-1]
	s.FinalInventory = last.State.Inventory
	s.FinalPnL = parseDecimalString(last.State.PnL)
	s.FinalCashFlow = parseDecimalString(last.State.CashFlow)
	return s
}

func parseDecimalString(v string) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}
