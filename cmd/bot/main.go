// Package main runs the trading bot: register a replay session, attach
// the market and order streams, and trade it to completion.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atlas-desktop/sim-trader/internal/config"
	"github.com/atlas-desktop/sim-trader/internal/engine"
	"github.com/atlas-desktop/sim-trader/internal/journal"
	"github.com/atlas-desktop/sim-trader/internal/lifecycle"
	"github.com/atlas-desktop/sim-trader/internal/metrics"
	"github.com/atlas-desktop/sim-trader/internal/obs"
	"github.com/atlas-desktop/sim-trader/internal/regime"
	"github.com/atlas-desktop/sim-trader/internal/risk"
	"github.com/atlas-desktop/sim-trader/internal/router"
	"github.com/atlas-desktop/sim-trader/internal/strategy"
	"github.com/atlas-desktop/sim-trader/internal/transport"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	host := flag.String("host", "", "Exchange host:port (overrides config)")
	scenario := flag.String("scenario", "", "Replay scenario name (overrides config)")
	team := flag.String("name", "", "Team name (overrides config)")
	password := flag.String("password", "", "Team password (overrides config)")
	secure := flag.Bool("secure", false, "Use HTTPS/WSS")
	configPath := flag.String("config", "", "Optional YAML config file")
	experiment := flag.String("experiment", "", "Experiment label for the journal (overrides config)")
	statusPort := flag.Int("status-port", 0, "Status/metrics HTTP port (overrides config)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	applyFlags(cfg, *host, *scenario, *team, *password, *secure, *experiment, *statusPort)
	if cfg.Transport.Team == "" {
		logger.Fatal("Team name is required (-name or config)")
	}

	logger.Info("Starting sim-trader",
		zap.String("host", cfg.Transport.Host),
		zap.String("scenario", cfg.Transport.Scenario),
		zap.String("team", cfg.Transport.Team),
		zap.Bool("secure", cfg.Transport.Secure),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Registration must succeed before anything else exists; a session
	// without credentials is fatal.
	client := transport.NewClient(logger, transport.Config(cfg.Transport))
	if err := client.Register(ctx); err != nil {
		logger.Fatal("Registration failed", zap.Error(err))
	}
	if err := client.Connect(ctx); err != nil {
		logger.Fatal("Stream connection failed", zap.Error(err))
	}
	defer client.Close()

	rt := router.New(
		logger,
		metrics.NewEngine(logger, metrics.Config(cfg.Metrics)),
		regime.NewClassifier(logger, regime.Thresholds(cfg.Classifier)),
		risk.NewOverlay(logger, risk.Config(cfg.Risk)),
		router.Strategies{
			PassiveNormal: strategy.NewPassiveMarketMaker("passive_mm_normal", strategy.PassiveConfig(cfg.Strategies.PassiveNormal)),
			PassiveHFT:    strategy.NewPassiveMarketMaker("passive_mm_hft", strategy.PassiveConfig(cfg.Strategies.PassiveHFT)),
			Aggressive:    strategy.NewAggressiveMarketMaker(strategy.AggressiveConfig(cfg.Strategies.Aggressive)),
			MeanReversion: strategy.NewMeanReversion(strategy.MeanReversionConfig(cfg.Strategies.MeanReversion)),
			Momentum:      strategy.NewMomentum(strategy.MomentumConfig(cfg.Strategies.Momentum)),
			CrashSurvival: strategy.NewCrashSurvival(strategy.CrashSurvivalConfig(cfg.Strategies.CrashSurvival)),
		},
		cfg.Strategies.StrongSignalZ,
	)
	book := lifecycle.NewManager(logger, lifecycle.Config(cfg.Lifecycle), client)

	var jr *journal.Journal
	if cfg.Journal.Enabled {
		jr, err = journal.Open(logger, journal.Config(cfg.Journal), cfg.Transport.Scenario, client.RunID())
		if err != nil {
			logger.Fatal("Failed to open journal", zap.Error(err))
		}
		defer jr.Close()
	}

	var collectors *obs.Metrics
	var statusServer *obs.Server
	if cfg.Status.Enabled {
		collectors = obs.NewMetrics()
	}

	eng := engine.New(logger, rt, book, jr, collectors, client)

	if cfg.Status.Enabled {
		statusServer = obs.NewServer(logger, obs.Config(cfg.Status), collectors, func() obs.Status {
			st := eng.Status()
			st.Scenario = cfg.Transport.Scenario
			st.RunID = client.RunID()
			return st
		})
		go func() {
			if err := statusServer.Start(); err != nil {
				logger.Warn("Status server failed", zap.Error(err))
			}
		}()
	}

	// The transport's receive loops feed the engine's inbox and close
	// it when the replay ends; a signal cancels the run early.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
		client.Close()
		cancel()
	}()

	client.Start(eng.Inbox())
	runErr := eng.Run(ctx)

	if statusServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutdownCancel()
		if err := statusServer.Stop(shutdownCtx); err != nil {
			logger.Warn("Status server shutdown failed", zap.Error(err))
		}
	}

	pos := eng.Position()
	logger.Info("Final results",
		zap.Int("steps", eng.Steps()),
		zap.Int64("ordersSent", pos.OrdersSent),
		zap.Int64("fills", eng.Fills()),
		zap.Int64("inventory", pos.Inventory),
		zap.String("cashFlow", pos.CashFlow.String()),
		zap.String("pnl", pos.PnL.String()),
	)
	if jr != nil {
		logger.Info("Journal written", zap.String("path", jr.Path()))
	}
	if runErr != nil && runErr != context.Canceled {
		logger.Fatal("Run ended with error", zap.Error(runErr))
	}
}

func applyFlags(cfg *config.Config, host, scenario, team, password string, secure bool, experiment string, statusPort int) {
	if host != "" {
		cfg.Transport.Host = host
	}
	if scenario != "" {
		cfg.Transport.Scenario = scenario
	}
	if team != "" {
		cfg.Transport.Team = team
	}
	if password != "" {
		cfg.Transport.Password = password
	}
	if secure {
		cfg.Transport.Secure = true
	}
	if experiment != "" {
		cfg.Journal.Experiment = experiment
	}
	if statusPort != 0 {
		cfg.Status.Port = statusPort
	}
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
