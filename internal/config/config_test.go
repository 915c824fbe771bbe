package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	content := `
app:
  name: "triarb-test"
  version: "1.0.0"
  env: "staging"
arbitrage_params:
  detection:
    min_threshold: 1.5
`
	path := writeTempConfig(t, content)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "triarb-test", cfg.App.Name)
	assert.Equal(t, "staging", cfg.App.Env)
	assert.Equal(t, 1.5, cfg.Arbitrage.Detection.MinThresholdPips)
	// Untouched defaults survive the partial override.
	assert.Equal(t, 10, cfg.RateLimit.MinOrderIntervalSeconds)
	assert.Equal(t, 0.6, cfg.Recovery.Correlation.MinCorrelation)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, NewValidator(cfg).Validate())
}

func TestValidateRejectsBadArbitrageThreshold(t *testing.T) {
	cfg := Default()
	cfg.Arbitrage.Detection.MinThresholdPips = 0
	err := NewValidator(cfg).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_threshold")
}

func TestValidateRejectsInvertedCorrelationBounds(t *testing.T) {
	cfg := Default()
	cfg.Recovery.Correlation.MinCorrelation = 0.9
	cfg.Recovery.Correlation.MaxCorrelation = 0.5
	err := NewValidator(cfg).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "correlation")
}

func TestValidateRejectsEmptyAppName(t *testing.T) {
	cfg := Default()
	cfg.App.Name = ""
	err := NewValidator(cfg).Validate()
	assert.Error(t, err)
}
