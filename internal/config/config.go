// Package config provides viper-backed configuration for the trading bot.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration for a bot run.
type Config struct {
	Transport  TransportConfig  `mapstructure:"transport"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Strategies StrategiesConfig `mapstructure:"strategies"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Lifecycle  LifecycleConfig  `mapstructure:"lifecycle"`
	Journal    JournalConfig    `mapstructure:"journal"`
	Status     StatusConfig     `mapstructure:"status"`
}

// TransportConfig configures the connection to the exchange simulator.
type TransportConfig struct {
	Host     string `mapstructure:"host"`
	Scenario string `mapstructure:"scenario"`
	Team     string `mapstructure:"team"`
	Password string `mapstructure:"password"`
	Secure   bool   `mapstructure:"secure"`
}

// MetricsConfig configures the incremental metrics engine.
type MetricsConfig struct {
	WindowSize       int     `mapstructure:"window_size"`
	CalibrationSteps int     `mapstructure:"calibration_steps"`
	ChurnWindow      int     `mapstructure:"churn_window"`
	MomentumLag      int     `mapstructure:"momentum_lag"`
	Epsilon          float64 `mapstructure:"epsilon"`
}

// ClassifierConfig configures regime classification thresholds.
// Two threshold sets exist for the CRASH/HFT boundaries; CompoundSignals
// selects between them.
type ClassifierConfig struct {
	CompoundSignals bool `mapstructure:"compound_signals"`

	CrashSpreadRatio float64 `mapstructure:"crash_spread_ratio"`
	CrashMomentum    float64 `mapstructure:"crash_momentum"`
	CrashImbalance   float64 `mapstructure:"crash_imbalance"`

	CompoundSpreadRatio float64 `mapstructure:"compound_spread_ratio"`
	CompoundMomentumLo  float64 `mapstructure:"compound_momentum_lo"`
	CompoundMomentumHi  float64 `mapstructure:"compound_momentum_hi"`
	CompoundImbalanceLo float64 `mapstructure:"compound_imbalance_lo"`
	CompoundImbalanceHi float64 `mapstructure:"compound_imbalance_hi"`

	RecoveryEnterSpread   float64 `mapstructure:"recovery_enter_spread"`
	RecoveryExitSpread    float64 `mapstructure:"recovery_exit_spread"`
	RecoveryCooldownSteps int     `mapstructure:"recovery_cooldown_steps"`

	StressedEnterSpread    float64 `mapstructure:"stressed_enter_spread"`
	StressedEnterImbalance float64 `mapstructure:"stressed_enter_imbalance"`
	StressedEnterDepth     float64 `mapstructure:"stressed_enter_depth"`
	StressedExitSpread     float64 `mapstructure:"stressed_exit_spread"`
	StressedExitImbalance  float64 `mapstructure:"stressed_exit_imbalance"`
	StressedExitDepth      float64 `mapstructure:"stressed_exit_depth"`

	HFTEnterChurn     float64 `mapstructure:"hft_enter_churn"`
	HFTExitChurn      float64 `mapstructure:"hft_exit_churn"`
	HFTMaxSpreadRatio float64 `mapstructure:"hft_max_spread_ratio"`
	HFTMinDepthRatio  float64 `mapstructure:"hft_min_depth_ratio"`
	HFTMaxMomentum    float64 `mapstructure:"hft_max_momentum"`
}

// StrategiesConfig holds per-strategy parameters.
type StrategiesConfig struct {
	StrongSignalZ float64 `mapstructure:"strong_signal_z"`

	PassiveNormal PassiveMMConfig     `mapstructure:"passive_normal"`
	PassiveHFT    PassiveMMConfig     `mapstructure:"passive_hft"`
	Aggressive    AggressiveMMConfig  `mapstructure:"aggressive"`
	MeanReversion MeanReversionConfig `mapstructure:"mean_reversion"`
	Momentum      MomentumConfig      `mapstructure:"momentum"`
	CrashSurvival CrashSurvivalConfig `mapstructure:"crash_survival"`
}

// PassiveMMConfig parameterizes the passive market maker.
type PassiveMMConfig struct {
	SkewFactor   float64 `mapstructure:"skew_factor"`
	MaxInventory int64   `mapstructure:"max_inventory"`
	Qty          int64   `mapstructure:"qty"`
	TradeFreq    int     `mapstructure:"trade_freq"`
}

// AggressiveMMConfig parameterizes the aggressive market maker.
type AggressiveMMConfig struct {
	MaxInventory int64 `mapstructure:"max_inventory"`
	Qty          int64 `mapstructure:"qty"`
	TradeFreq    int   `mapstructure:"trade_freq"`
}

// MeanReversionConfig parameterizes the mean reversion strategy.
type MeanReversionConfig struct {
	EntryZ       float64 `mapstructure:"entry_z"`
	ExitZ        float64 `mapstructure:"exit_z"`
	MaxInventory int64   `mapstructure:"max_inventory"`
	Qty          int64   `mapstructure:"qty"`
}

// MomentumConfig parameterizes the momentum strategy.
type MomentumConfig struct {
	Threshold    float64 `mapstructure:"threshold"`
	MaxInventory int64   `mapstructure:"max_inventory"`
	Qty          int64   `mapstructure:"qty"`
	TradeFreq    int     `mapstructure:"trade_freq"`
}

// CrashSurvivalConfig parameterizes the crash survival strategy.
type CrashSurvivalConfig struct {
	FlattenThreshold int64 `mapstructure:"flatten_threshold"`
	Qty              int64 `mapstructure:"qty"`
}

// RiskConfig configures the risk overlay.
type RiskConfig struct {
	HardLimit     int64 `mapstructure:"hard_limit"`
	UnwindTrigger int64 `mapstructure:"unwind_trigger"`
	SafetyBuffer  int64 `mapstructure:"safety_buffer"`
	EmergencyQty  int64 `mapstructure:"emergency_qty"`
}

// LifecycleConfig configures the order lifecycle manager.
type LifecycleConfig struct {
	MaxResting    int `mapstructure:"max_resting"`
	EvictCount    int `mapstructure:"evict_count"`
	StaleSteps    int `mapstructure:"stale_steps"`
	StaleStepsHFT int `mapstructure:"stale_steps_hft"`
	SweepEvery    int `mapstructure:"sweep_every"`
}

// JournalConfig configures the per-step JSONL journal.
type JournalConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	DataDir    string `mapstructure:"data_dir"`
	Experiment string `mapstructure:"experiment"`
	Mode       string `mapstructure:"mode"`
}

// StatusConfig configures the HTTP status/metrics endpoint.
type StatusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Default returns the configuration used when no file or overrides are given.
func Default() *Config {
	return &Config{
		Transport: TransportConfig{
			Host:     "localhost:8080",
			Scenario: "normal_market",
		},
		Metrics: MetricsConfig{
			WindowSize:       100,
			CalibrationSteps: 100,
			ChurnWindow:      20,
			MomentumLag:      10,
			Epsilon:          0.001,
		},
		Classifier: ClassifierConfig{
			CompoundSignals: true,

			CrashSpreadRatio: 2.0,
			CrashMomentum:    0.10,
			CrashImbalance:   0.5,

			CompoundSpreadRatio: 1.8,
			CompoundMomentumLo:  0.06,
			CompoundMomentumHi:  0.08,
			CompoundImbalanceLo: 0.4,
			CompoundImbalanceHi: 0.45,

			RecoveryEnterSpread:   1.8,
			RecoveryExitSpread:    1.5,
			RecoveryCooldownSteps: 100,

			StressedEnterSpread:    1.5,
			StressedEnterImbalance: 0.4,
			StressedEnterDepth:     0.5,
			StressedExitSpread:     1.2,
			StressedExitImbalance:  0.3,
			StressedExitDepth:      0.6,

			HFTEnterChurn:     0.20,
			HFTExitChurn:      0.12,
			HFTMaxSpreadRatio: 1.6,
			HFTMinDepthRatio:  0.4,
			HFTMaxMomentum:    0.08,
		},
		Strategies: StrategiesConfig{
			StrongSignalZ: 1.5,
			PassiveNormal: PassiveMMConfig{
				SkewFactor:   0.0002,
				MaxInventory: 3000,
				Qty:          200,
				TradeFreq:    5,
			},
			PassiveHFT: PassiveMMConfig{
				SkewFactor:   0.0001,
				MaxInventory: 3000,
				Qty:          100,
				TradeFreq:    1,
			},
			Aggressive: AggressiveMMConfig{
				MaxInventory: 3500,
				Qty:          200,
				TradeFreq:    2,
			},
			MeanReversion: MeanReversionConfig{
				EntryZ:       1.5,
				ExitZ:        0.5,
				MaxInventory: 2500,
				Qty:          200,
			},
			Momentum: MomentumConfig{
				Threshold:    0.02,
				MaxInventory: 2000,
				Qty:          100,
				TradeFreq:    5,
			},
			CrashSurvival: CrashSurvivalConfig{
				FlattenThreshold: 200,
				Qty:              500,
			},
		},
		Risk: RiskConfig{
			HardLimit:     4500,
			UnwindTrigger: 3500,
			SafetyBuffer:  3000,
			EmergencyQty:  500,
		},
		Lifecycle: LifecycleConfig{
			MaxResting:    8,
			EvictCount:    2,
			StaleSteps:    50,
			StaleStepsHFT: 15,
			SweepEvery:    10,
		},
		Journal: JournalConfig{
			Enabled:    true,
			DataDir:    "data/raw",
			Experiment: "default",
			Mode:       "active",
		},
		Status: StatusConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Load reads configuration from an optional YAML file and SIMTRADER_*
// environment variables, layered over Default().
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SIMTRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Env overrides only apply to keys viper knows about, so every key
	// is seeded from Default() before the file is read.
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()

	v.SetDefault("transport.host", def.Transport.Host)
	v.SetDefault("transport.scenario", def.Transport.Scenario)
	v.SetDefault("transport.team", def.Transport.Team)
	v.SetDefault("transport.password", def.Transport.Password)
	v.SetDefault("transport.secure", def.Transport.Secure)

	v.SetDefault("metrics.window_size", def.Metrics.WindowSize)
	v.SetDefault("metrics.calibration_steps", def.Metrics.CalibrationSteps)
	v.SetDefault("metrics.churn_window", def.Metrics.ChurnWindow)
	v.SetDefault("metrics.momentum_lag", def.Metrics.MomentumLag)
	v.SetDefault("metrics.epsilon", def.Metrics.Epsilon)

	v.SetDefault("classifier.compound_signals", def.Classifier.CompoundSignals)
	v.SetDefault("classifier.crash_spread_ratio", def.Classifier.CrashSpreadRatio)
	v.SetDefault("classifier.crash_momentum", def.Classifier.CrashMomentum)
	v.SetDefault("classifier.crash_imbalance", def.Classifier.CrashImbalance)
	v.SetDefault("classifier.compound_spread_ratio", def.Classifier.CompoundSpreadRatio)
	v.SetDefault("classifier.compound_momentum_lo", def.Classifier.CompoundMomentumLo)
	v.SetDefault("classifier.compound_momentum_hi", def.Classifier.CompoundMomentumHi)
	v.SetDefault("classifier.compound_imbalance_lo", def.Classifier.CompoundImbalanceLo)
	v.SetDefault("classifier.compound_imbalance_hi", def.Classifier.CompoundImbalanceHi)
	v.SetDefault("classifier.recovery_enter_spread", def.Classifier.RecoveryEnterSpread)
	v.SetDefault("classifier.recovery_exit_spread", def.Classifier.RecoveryExitSpread)
	v.SetDefault("classifier.recovery_cooldown_steps", def.Classifier.RecoveryCooldownSteps)
	v.SetDefault("classifier.stressed_enter_spread", def.Classifier.StressedEnterSpread)
	v.SetDefault("classifier.stressed_enter_imbalance", def.Classifier.StressedEnterImbalance)
	v.SetDefault("classifier.stressed_enter_depth", def.Classifier.StressedEnterDepth)
	v.SetDefault("classifier.stressed_exit_spread", def.Classifier.StressedExitSpread)
	v.SetDefault("classifier.stressed_exit_imbalance", def.Classifier.StressedExitImbalance)
	v.SetDefault("classifier.stressed_exit_depth", def.Classifier.StressedExitDepth)
	v.SetDefault("classifier.hft_enter_churn", def.Classifier.HFTEnterChurn)
	v.SetDefault("classifier.hft_exit_churn", def.Classifier.HFTExitChurn)
	v.SetDefault("classifier.hft_max_spread_ratio", def.Classifier.HFTMaxSpreadRatio)
	v.SetDefault("classifier.hft_min_depth_ratio", def.Classifier.HFTMinDepthRatio)
	v.SetDefault("classifier.hft_max_momentum", def.Classifier.HFTMaxMomentum)

	v.SetDefault("strategies.strong_signal_z", def.Strategies.StrongSignalZ)
	setPassiveDefaults(v, "strategies.passive_normal", def.Strategies.PassiveNormal)
	setPassiveDefaults(v, "strategies.passive_hft", def.Strategies.PassiveHFT)
	v.SetDefault("strategies.aggressive.max_inventory", def.Strategies.Aggressive.MaxInventory)
	v.SetDefault("strategies.aggressive.qty", def.Strategies.Aggressive.Qty)
	v.SetDefault("strategies.aggressive.trade_freq", def.Strategies.Aggressive.TradeFreq)
	v.SetDefault("strategies.mean_reversion.entry_z", def.Strategies.MeanReversion.EntryZ)
	v.SetDefault("strategies.mean_reversion.exit_z", def.Strategies.MeanReversion.ExitZ)
	v.SetDefault("strategies.mean_reversion.max_inventory", def.Strategies.MeanReversion.MaxInventory)
	v.SetDefault("strategies.mean_reversion.qty", def.Strategies.MeanReversion.Qty)
	v.SetDefault("strategies.momentum.threshold", def.Strategies.Momentum.Threshold)
	v.SetDefault("strategies.momentum.max_inventory", def.Strategies.Momentum.MaxInventory)
	v.SetDefault("strategies.momentum.qty", def.Strategies.Momentum.Qty)
	v.SetDefault("strategies.momentum.trade_freq", def.Strategies.Momentum.TradeFreq)
	v.SetDefault("strategies.crash_survival.flatten_threshold", def.Strategies.CrashSurvival.FlattenThreshold)
	v.SetDefault("strategies.crash_survival.qty", def.Strategies.CrashSurvival.Qty)

	v.SetDefault("risk.hard_limit", def.Risk.HardLimit)
	v.SetDefault("risk.unwind_trigger", def.Risk.UnwindTrigger)
	v.SetDefault("risk.safety_buffer", def.Risk.SafetyBuffer)
	v.SetDefault("risk.emergency_qty", def.Risk.EmergencyQty)

	v.SetDefault("lifecycle.max_resting", def.Lifecycle.MaxResting)
	v.SetDefault("lifecycle.evict_count", def.Lifecycle.EvictCount)
	v.SetDefault("lifecycle.stale_steps", def.Lifecycle.StaleSteps)
	v.SetDefault("lifecycle.stale_steps_hft", def.Lifecycle.StaleStepsHFT)
	v.SetDefault("lifecycle.sweep_every", def.Lifecycle.SweepEvery)

	v.SetDefault("journal.enabled", def.Journal.Enabled)
	v.SetDefault("journal.data_dir", def.Journal.DataDir)
	v.SetDefault("journal.experiment", def.Journal.Experiment)
	v.SetDefault("journal.mode", def.Journal.Mode)

	v.SetDefault("status.enabled", def.Status.Enabled)
	v.SetDefault("status.port", def.Status.Port)
}

func setPassiveDefaults(v *viper.Viper, prefix string, c PassiveMMConfig) {
	v.SetDefault(prefix+".skew_factor", c.SkewFactor)
	v.SetDefault(prefix+".max_inventory", c.MaxInventory)
	v.SetDefault(prefix+".qty", c.Qty)
	v.SetDefault(prefix+".trade_freq", c.TradeFreq)
}
