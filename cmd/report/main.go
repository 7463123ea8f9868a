// Package main summarizes journal files produced by the bot and
// optionally exports them as CSV.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/atlas-desktop/sim-trader/internal/report"
	"go.uber.org/zap"
)

func main() {
	input := flag.String("input", "data/raw", "Journal file or directory of .jsonl files")
	csvDir := flag.String("csv", "", "Optional directory to write per-run CSV exports")
	asJSON := flag.Bool("json", false, "Print summaries as JSON instead of text")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	paths, err := collectJournals(*input)
	if err != nil {
		logger.Fatal("Failed to find journals", zap.Error(err))
	}
	if len(paths) == 0 {
		logger.Fatal("No journal files found", zap.String("input", *input))
	}

	for _, path := range paths {
		records, err := report.Load(logger, path)
		if err != nil {
			logger.Error("Failed to load journal", zap.String("path", path), zap.Error(err))
			continue
		}
		stats := report.Summarize(records)

		if *asJSON {
			out, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				logger.Error("Failed to encode summary", zap.Error(err))
				continue
			}
			fmt.Println(string(out))
		} else {
			printStats(path, stats)
		}

		if *csvDir != "" {
			if err := os.MkdirAll(*csvDir, 0o755); err != nil {
				logger.Fatal("Failed to create csv dir", zap.Error(err))
			}
			base := strings.TrimSuffix(filepath.Base(path), ".jsonl")
			out := filepath.Join(*csvDir, base+".csv")
			if err := report.WriteCSV(records, out); err != nil {
				logger.Error("CSV export failed", zap.String("path", out), zap.Error(err))
				continue
			}
			logger.Info("CSV exported", zap.String("path", out))
		}
	}
}

func collectJournals(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{input}, nil
	}
	return filepath.Glob(filepath.Join(input, "*.jsonl"))
}

func printStats(path string, s report.Stats) {
	fmt.Printf("== %s\n", path)
	fmt.Printf("scenario=%s experiment=%s run_id=%s mode=%s\n", s.Scenario, s.Experiment, s.RunID, s.Mode)
	fmt.Printf("steps: %d (%d..%d)\n", s.TotalSteps, s.FirstStep, s.LastStep)
	fmt.Printf("mid: min=%.2f max=%.2f avg=%.2f range=%.2f\n", s.MinMid, s.MaxMid, s.AvgMid, s.MidRange)
	fmt.Printf("spread: min=%.4f max=%.4f avg=%.4f\n", s.MinSpread, s.MaxSpread, s.AvgSpread)
	fmt.Printf("inventory: min=%d max=%d final=%d\n", s.MinInventory, s.MaxInventory, s.FinalInventory)
	fmt.Printf("pnl: final=%.2f cash_flow=%.2f\n", s.FinalPnL, s.FinalCashFlow)
	fmt.Printf("actions: %d (buy %d / sell %d)  fills: %d (buy %d / sell %d)  fill_rate=%.1f%%\n",
		s.TotalActions, s.BuyActions, s.SellActions, s.TotalFills, s.BuyFills, s.SellFills, s.FillRatePct)
	if s.TotalFills > 0 {
		fmt.Printf("fill latency ms: min=%.1f max=%.1f avg=%.1f\n",
			s.MinFillLatencyMs, s.MaxFillLatencyMs, s.AvgFillLatencyMs)
	}
	if len(s.RegimeSteps) > 0 {
		fmt.Printf("regimes: %v\n", s.RegimeSteps)
	}
	fmt.Println()
}
