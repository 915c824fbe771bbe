package symbolmap

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanAndMapExactMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.json")
	m := New(path, nil)

	mapping := m.ScanAndMap([]string{"EURUSD", "GBPUSD"}, []string{"EURUSD"})
	assert.Equal(t, "EURUSD", mapping["EURUSD"])
	assert.Equal(t, "EURUSD", m.GetReal("EURUSD"))
}

func TestScanAndMapSuffixStripped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.json")
	m := New(path, nil)

	m.ScanAndMap([]string{"EURUSDm", "GBPUSD.a"}, []string{"EURUSD", "GBPUSD"})
	assert.Equal(t, "EURUSDm", m.GetReal("EURUSD"))
	assert.Equal(t, "GBPUSD.a", m.GetReal("GBPUSD"))
	assert.Equal(t, "EURUSD", m.GetCanonical("EURUSDm"))
}

func TestGetRealUnmappedReturnsUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.json")
	m := New(path, nil)
	assert.Equal(t, "USDCHF", m.GetReal("USDCHF"))
}

func TestScanAndMapOmitsUnmatchable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.json")
	m := New(path, nil)

	result := m.Validate([]string{"NZDCAD"})
	assert.False(t, result["NZDCAD"])

	m.ScanAndMap([]string{"EURUSD"}, []string{"NZDCAD"})
	result = m.Validate([]string{"NZDCAD"})
	assert.False(t, result["NZDCAD"])
}

func TestScanAndMapPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.json")
	m := New(path, nil)
	m.ScanAndMap([]string{"EURUSDm"}, []string{"EURUSD"})

	m2 := New(path, nil)
	assert.Equal(t, "EURUSDm", m2.GetReal("EURUSD"))
}

func TestValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.json")
	m := New(path, nil)
	m.ScanAndMap([]string{"EURUSD"}, []string{"EURUSD"})

	result := m.Validate([]string{"EURUSD", "GBPUSD"})
	require.Len(t, result, 2)
	assert.True(t, result["EURUSD"])
	assert.False(t, result["GBPUSD"])
}
