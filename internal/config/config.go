package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration for the trading engine.
type Config struct {
	App            AppConfig            `yaml:"app"`
	Broker         BrokerConfig         `yaml:"broker"`
	Redis          RedisConfig          `yaml:"redis"`
	Monitoring     MonitoringConfig     `yaml:"monitoring"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	Logging        LoggingConfig        `yaml:"logging"`
	PositionSizing PositionSizingConfig `yaml:"position_sizing"`
	Arbitrage      ArbitrageParams      `yaml:"arbitrage_params"`
	Recovery       RecoveryParams       `yaml:"recovery_params"`
	Coordinator    CoordinatorConfig    `yaml:"coordinator"`
}

// AppConfig represents application identification.
type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"`
}

// BrokerConfig describes how to reach the Broker Gateway facade.
type BrokerConfig struct {
	Name       string        `yaml:"name"`
	Server     string        `yaml:"server"`
	Login      string        `yaml:"login"`
	Password   string        `yaml:"password"`
	Timeout    time.Duration `yaml:"timeout"`
	DataDir    string        `yaml:"data_dir"`
	SymbolFile string        `yaml:"symbol_mapping_file"`
	OrderFile  string        `yaml:"order_tracking_file"`
}

// RedisConfig represents the optional correlation-matrix mirror cache.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// MonitoringConfig represents Prometheus exposition configuration.
type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	PrometheusPath    string `yaml:"prometheus_path"`
	ListenAddr        string `yaml:"listen_addr"`
}

// RateLimitConfig governs the Detector's order-placement throttle.
type RateLimitConfig struct {
	MinOrderIntervalSeconds int `yaml:"min_order_interval_seconds"`
	MaxOrdersPerDay         int `yaml:"max_orders_per_day"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	LogDir     string `yaml:"log_dir"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// LotCalculationConfig selects and parameterizes the lot-sizing model (spec §6.2).
type LotCalculationConfig struct {
	UseRiskBasedSizing   bool    `yaml:"use_risk_based_sizing"`
	RiskPerTradePercent  float64 `yaml:"risk_per_trade_percent"`
	StopLossPips         float64 `yaml:"stop_loss_pips"`
	BasePipValueTarget   float64 `yaml:"base_pip_value_target"`
	BaseBalance          float64 `yaml:"base_balance"`
	LotStep              float64 `yaml:"lot_step"`
	MinLot               float64 `yaml:"min_lot"`
	MaxLot               float64 `yaml:"max_lot"`
}

// PositionSizingConfig wraps the lot-calculation options.
type PositionSizingConfig struct {
	LotCalculation LotCalculationConfig `yaml:"lot_calculation"`
}

// DetectionConfig carries triangle-detection thresholds.
type DetectionConfig struct {
	MinThresholdPips  float64 `yaml:"min_threshold"`
	MaxSpreadRatio    float64 `yaml:"max_spread_ratio"`
	MinVolumeScore    float64 `yaml:"min_volume_threshold"`
	MinConfidence     float64 `yaml:"min_confidence"`
	CommissionRate    float64 `yaml:"commission_rate"`
	SlippagePercent   float64 `yaml:"slippage_percent"`
	PriceSampleCount  int     `yaml:"price_sample_count"`
	SampleIntervalMS  int     `yaml:"sample_interval_ms"`
	MaxPriceVariance  float64 `yaml:"max_price_variance"`
}

// TrianglesConfig bounds triangle concurrency.
type TrianglesConfig struct {
	MaxActiveTriangles int `yaml:"max_active_triangles"`
}

// ClosingConfig carries advisory group-closing hints (spec §6.2, non-binding).
type ClosingConfig struct {
	TrailingStopEnabled  bool    `yaml:"trailing_stop_enabled"`
	LockProfitPercentage float64 `yaml:"lock_profit_percentage"`
	GroupExpiry          time.Duration `yaml:"group_expiry"`
}

// ArbitrageParams groups the Detector's configurable behavior.
type ArbitrageParams struct {
	Detection DetectionConfig `yaml:"detection"`
	Triangles TrianglesConfig `yaml:"triangles"`
	Closing   ClosingConfig   `yaml:"closing"`
}

// LossThresholdsConfig gates when a position becomes hedge-eligible.
type LossThresholdsConfig struct {
	MinLossPercent float64 `yaml:"min_loss_percent"`
}

// ChainRecoveryConfig bounds recursive recovery-of-recovery depth.
type ChainRecoveryConfig struct {
	MaxChainDepth int `yaml:"max_chain_depth"`
}

// CorrelationConfig parameterizes the correlation matrix and candidate search.
type CorrelationConfig struct {
	LookbackDays      int           `yaml:"lookback_days"`
	RefreshInterval   time.Duration `yaml:"refresh_interval"`
	MinCorrelation    float64       `yaml:"min_correlation"`
	MaxCorrelation    float64       `yaml:"max_correlation"`
	DecayLambda       float64       `yaml:"decay_lambda"`
	TimeframeWeights  map[string]float64 `yaml:"timeframe_weights"`
	MaxCandidatePairs int           `yaml:"max_candidate_pairs"`
}

// RebalancingConfig governs portfolio exposure rebalancing.
type RebalancingConfig struct {
	Enabled                  bool          `yaml:"enabled"`
	FrequencyHours           time.Duration `yaml:"rebalancing_frequency_hours"`
	PortfolioBalanceThreshold float64      `yaml:"portfolio_balance_threshold"`
}

// RecoveryParams groups the Correlation Manager's configurable behavior.
type RecoveryParams struct {
	LossThresholds LossThresholdsConfig `yaml:"loss_thresholds"`
	ChainRecovery  ChainRecoveryConfig  `yaml:"chain_recovery"`
	Correlation    CorrelationConfig    `yaml:"correlation"`
	Rebalancing    RebalancingConfig    `yaml:"rebalancing"`
	MaxRecoveryTime time.Duration       `yaml:"max_recovery_time_hours"`
	MinAdvisorConfidence float64        `yaml:"min_advisor_confidence"`
}

// CoordinatorConfig governs the Adaptive Coordinator's control loop.
type CoordinatorConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// Default returns a Config populated with the spec's documented defaults.
func Default() *Config {
	return &Config{
		App: AppConfig{Name: "triarb", Version: "0.1.0", Env: "development"},
		Broker: BrokerConfig{
			Timeout:    10 * time.Second,
			DataDir:    "data",
			SymbolFile: "data/symbol_mapping.json",
			OrderFile:  "data/order_tracking.json",
		},
		Monitoring: MonitoringConfig{PrometheusEnabled: true, PrometheusPath: "/metrics", ListenAddr: ":9090"},
		RateLimit:  RateLimitConfig{MinOrderIntervalSeconds: 10, MaxOrdersPerDay: 50},
		Logging:    LoggingConfig{Level: "info", Format: "json", Output: "stdout", MaxSize: 100, MaxBackups: 5, MaxAge: 30},
		PositionSizing: PositionSizingConfig{
			LotCalculation: LotCalculationConfig{
				UseRiskBasedSizing:  false,
				RiskPerTradePercent: 1.5,
				StopLossPips:        50,
				BasePipValueTarget:  5.0,
				BaseBalance:         10000,
				LotStep:             0.01,
				MinLot:              0.01,
				MaxLot:              1.0,
			},
		},
		Arbitrage: ArbitrageParams{
			Detection: DetectionConfig{
				MinThresholdPips: 0.008,
				MaxSpreadRatio:   0.3,
				MinVolumeScore:   0.3,
				MinConfidence:    0.75,
				PriceSampleCount: 3,
				SampleIntervalMS: 100,
				MaxPriceVariance: 0.0001,
			},
			Triangles: TrianglesConfig{MaxActiveTriangles: 1},
			Closing:   ClosingConfig{GroupExpiry: 24 * time.Hour},
		},
		Recovery: RecoveryParams{
			LossThresholds: LossThresholdsConfig{MinLossPercent: 0.5},
			ChainRecovery:  ChainRecoveryConfig{MaxChainDepth: 3},
			Correlation: CorrelationConfig{
				LookbackDays:    30,
				RefreshInterval: 5 * time.Minute,
				MinCorrelation:  0.6,
				MaxCorrelation:  0.95,
				DecayLambda:     0.05,
				TimeframeWeights: map[string]float64{
					"H1": 0.5, "H4": 0.3, "D1": 0.2,
				},
				MaxCandidatePairs: 20,
			},
			Rebalancing: RebalancingConfig{
				Enabled:                   true,
				FrequencyHours:            6 * time.Hour,
				PortfolioBalanceThreshold: 0.10,
			},
			MaxRecoveryTime:      24 * time.Hour,
			MinAdvisorConfidence: 0.4,
		},
		Coordinator: CoordinatorConfig{TickInterval: 30 * time.Second, ShutdownGrace: 5 * time.Second},
	}
}

// Load loads configuration from a YAML file, starting from documented defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}
