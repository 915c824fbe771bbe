package config

import (
	"fmt"
	"strings"
)

// Validator validates a loaded Config against the engine's invariants.
type Validator struct {
	config *Config
}

// NewValidator creates a configuration validator.
func NewValidator(config *Config) *Validator {
	return &Validator{config: config}
}

// Validate checks every section of the configuration and returns an
// aggregate error describing every violation found.
func (v *Validator) Validate() error {
	var errs []string

	if err := v.validateApp(); err != nil {
		errs = append(errs, fmt.Sprintf("app config: %v", err))
	}
	if err := v.validateBroker(); err != nil {
		errs = append(errs, fmt.Sprintf("broker config: %v", err))
	}
	if err := v.validateRedis(); err != nil {
		errs = append(errs, fmt.Sprintf("redis config: %v", err))
	}
	if err := v.validatePositionSizing(); err != nil {
		errs = append(errs, fmt.Sprintf("position sizing config: %v", err))
	}
	if err := v.validateArbitrage(); err != nil {
		errs = append(errs, fmt.Sprintf("arbitrage params: %v", err))
	}
	if err := v.validateRecovery(); err != nil {
		errs = append(errs, fmt.Sprintf("recovery params: %v", err))
	}
	if err := v.validateCoordinator(); err != nil {
		errs = append(errs, fmt.Sprintf("coordinator config: %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

func (v *Validator) validateApp() error {
	app := v.config.App
	if app.Name == "" {
		return fmt.Errorf("app name must not be empty")
	}
	validEnvs := []string{"development", "staging", "production"}
	if !contains(validEnvs, app.Env) {
		return fmt.Errorf("invalid environment %q, valid values: %v", app.Env, validEnvs)
	}
	return nil
}

func (v *Validator) validateBroker() error {
	b := v.config.Broker
	if b.Timeout <= 0 {
		return fmt.Errorf("broker timeout must be greater than zero")
	}
	if b.DataDir == "" {
		return fmt.Errorf("broker data_dir must not be empty")
	}
	return nil
}

func (v *Validator) validateRedis() error {
	r := v.config.Redis
	if !r.Enabled {
		return nil
	}
	if r.Addr == "" || !strings.Contains(r.Addr, ":") {
		return fmt.Errorf("invalid redis address: %q", r.Addr)
	}
	if r.DB < 0 || r.DB > 15 {
		return fmt.Errorf("invalid redis db index: %d", r.DB)
	}
	if r.PoolSize <= 0 {
		return fmt.Errorf("redis pool_size must be greater than zero")
	}
	return nil
}

func (v *Validator) validatePositionSizing() error {
	lc := v.config.PositionSizing.LotCalculation
	if lc.RiskPerTradePercent <= 0 || lc.RiskPerTradePercent > 100 {
		return fmt.Errorf("risk_per_trade_percent must be in (0, 100]")
	}
	if lc.LotStep <= 0 {
		return fmt.Errorf("lot_step must be greater than zero")
	}
	if lc.MinLot <= 0 || lc.MaxLot <= lc.MinLot {
		return fmt.Errorf("min_lot must be positive and less than max_lot")
	}
	return nil
}

func (v *Validator) validateArbitrage() error {
	d := v.config.Arbitrage.Detection
	if d.MinThresholdPips <= 0 {
		return fmt.Errorf("detection.min_threshold must be greater than zero")
	}
	if d.MaxSpreadRatio <= 0 {
		return fmt.Errorf("detection.max_spread_ratio must be greater than zero")
	}
	if d.MinConfidence < 0 || d.MinConfidence > 1 {
		return fmt.Errorf("detection.min_confidence must be in [0, 1]")
	}
	if d.PriceSampleCount < 1 {
		return fmt.Errorf("detection.price_sample_count must be at least 1")
	}
	if v.config.Arbitrage.Triangles.MaxActiveTriangles < 1 {
		return fmt.Errorf("triangles.max_active_triangles must be at least 1")
	}
	return nil
}

func (v *Validator) validateRecovery() error {
	r := v.config.Recovery
	if r.LossThresholds.MinLossPercent <= 0 {
		return fmt.Errorf("loss_thresholds.min_loss_percent must be greater than zero")
	}
	if r.ChainRecovery.MaxChainDepth < 1 {
		return fmt.Errorf("chain_recovery.max_chain_depth must be at least 1")
	}
	c := r.Correlation
	if c.MinCorrelation < 0 || c.MinCorrelation > 1 || c.MaxCorrelation < c.MinCorrelation || c.MaxCorrelation > 1 {
		return fmt.Errorf("correlation.min_correlation/max_correlation must satisfy 0 <= min <= max <= 1")
	}
	if c.LookbackDays <= 0 {
		return fmt.Errorf("correlation.lookback_days must be greater than zero")
	}
	if r.Rebalancing.Enabled && r.Rebalancing.PortfolioBalanceThreshold <= 0 {
		return fmt.Errorf("rebalancing.portfolio_balance_threshold must be greater than zero when enabled")
	}
	if r.MaxRecoveryTime <= 0 {
		return fmt.Errorf("max_recovery_time_hours must be greater than zero")
	}
	return nil
}

func (v *Validator) validateCoordinator() error {
	c := v.config.Coordinator
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be greater than zero")
	}
	if c.ShutdownGrace <= 0 {
		return fmt.Errorf("shutdown_grace must be greater than zero")
	}
	return nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
