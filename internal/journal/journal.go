// Package journal persists one JSONL record per simulation step for
// offline analysis. The journal owns the record format; the engine only
// hands it the raw step event.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/atlas-desktop/sim-trader/pkg/types"
	"go.uber.org/zap"
)

// Config configures the step journal.
type Config struct {
	Enabled    bool   `mapstructure:"enabled"`
	DataDir    string `mapstructure:"data_dir"`
	Experiment string `mapstructure:"experiment"`
	Mode       string `mapstructure:"mode"`
}

// Market is the quote section of a journal record.
type Market struct {
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Mid       float64 `json:"mid"`
	Spread    float64 `json:"spread"`
	LastTrade float64 `json:"last_trade"`
}

// Book is the order-book section of a journal record. Levels are capped
// at the top ten per side.
type Book struct {
	Bids     []types.BookLevel `json:"bids"`
	Asks     []types.BookLevel `json:"asks"`
	BidDepth int64             `json:"bid_depth"`
	AskDepth int64             `json:"ask_depth"`
}

// State is the position section of a journal record.
type State struct {
	Inventory  int64  `json:"inventory"`
	CashFlow   string `json:"cash_flow"`
	PnL        string `json:"pnl"`
	OrdersSent int64  `json:"orders_sent"`
}

// Record is one complete journal line.
type Record struct {
	Step       int          `json:"step"`
	Timestamp  string       `json:"timestamp"`
	Experiment string       `json:"experiment"`
	Scenario   string       `json:"scenario"`
	RunID      string       `json:"run_id"`
	Mode       string       `json:"mode"`
	Market     Market       `json:"market"`
	Book       Book         `json:"book"`
	State      State        `json:"state"`
	Regime     types.Regime `json:"regime"`
	Action     *types.Order `json:"action"`
	Fill       *types.Fill  `json:"fill"`
}

// Journal writes step records to a per-run JSONL file.
type Journal struct {
	logger *zap.Logger
	cfg    Config

	scenario string
	runID    string

	file *os.File
	enc  *json.Encoder
	path string
}

// Open creates the data directory if needed and opens a fresh journal
// file named after the scenario, experiment, mode and wall time.
func Open(logger *zap.Logger, cfg Config, scenario, runID string) (*Journal, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s_%s_%s.jsonl",
		scenario, cfg.Experiment, cfg.Mode, time.Now().Format("20060102_150405"))
	path := filepath.Join(cfg.DataDir, name)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create journal file: %w", err)
	}
	logger.Named("journal").Info("journal open", zap.String("path", path))
	return &Journal{
		logger:   logger.Named("journal"),
		cfg:      cfg,
		scenario: scenario,
		runID:    runID,
		file:     f,
		enc:      json.NewEncoder(f),
		path:     path,
	}, nil
}

// Write appends one step record. Book levels beyond the top ten per
// side are dropped.
func (j *Journal) Write(step int, snap types.MarketSnapshot, reg types.Regime, pos types.Position, action *types.Order, fill *types.Fill) error {
	rec := Record{
		Step:       step,
		Timestamp:  time.Now().Format(time.RFC3339Nano),
		Experiment: j.cfg.Experiment,
		Scenario:   j.scenario,
		RunID:      j.runID,
		Mode:       j.cfg.Mode,
		Market: Market{
			Bid:       snap.Bid,
			Ask:       snap.Ask,
			Mid:       snap.Mid(),
			Spread:    snap.Spread(),
			LastTrade: snap.LastTrade,
		},
		Book: Book{
			Bids:     topLevels(snap.Bids),
			Asks:     topLevels(snap.Asks),
			BidDepth: snap.BidDepth(),
			AskDepth: snap.AskDepth(),
		},
		State: State{
			Inventory:  pos.Inventory,
			CashFlow:   pos.CashFlow.String(),
			PnL:        pos.PnL.String(),
			OrdersSent: pos.OrdersSent,
		},
		Regime: reg,
		Action: action,
		Fill:   fill,
	}
	return j.enc.Encode(rec)
}

func topLevels(levels []types.BookLevel) []types.BookLevel {
	if levels == nil {
		return []types.BookLevel{}
	}
	if len(levels) > 10 {
		return levels[:10]
	}
	return levels
}

// Path returns the journal file location.
func (j *Journal) Path() string { return j.path }

// Close flushes and closes the journal file.
func (j *Journal) Close() error {
	j.logger.Info("journal closed", zap.String("path", j.path))
	return j.file.Close()
}
