// Package symbolmap resolves canonical currency pairs (EURUSD) to their
// broker-specific symbol names (EURUSDm, EURUSD.a, ...) and back, per
// spec §4.1.
package symbolmap

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"triarb/internal/logging"
)

// knownSuffixes are stripped, longest first, when searching for a match.
var knownSuffixes = []string{".pro", "_sb", "m.", "a.", ".a", ".m", "_m", "_a", "m", "."}

// Mapper maintains the canonical<->broker symbol dictionaries.
type Mapper struct {
	mu        sync.RWMutex
	toBroker  map[string]string
	toCanon   map[string]string
	path      string
	log       *logging.Logger
}

// New creates a Mapper that persists to path. If path already holds a
// mapping it is loaded; a missing or malformed file is logged and treated
// as "no mapping yet", matching original_source's tolerant startup.
func New(path string, log *logging.Logger) *Mapper {
	m := &Mapper{
		toBroker: make(map[string]string),
		toCanon:  make(map[string]string),
		path:     path,
		log:      log,
	}
	m.load()
	return m
}

type persisted struct {
	Mapping map[string]string `json:"mapping"`
}

func (m *Mapper) load() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if m.log != nil {
			m.log.WithField("path", m.path).Debug("symbol mapping file not found, starting empty")
		}
		return
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		if m.log != nil {
			m.log.WithField("path", m.path).WithError(err).Warn("symbol mapping file malformed, starting empty")
		}
		return
	}

	for canon, broker := range p.Mapping {
		m.toBroker[canon] = broker
		m.toCanon[broker] = canon
	}
}

func (m *Mapper) persist() {
	m.mu.RLock()
	snapshot := make(map[string]string, len(m.toBroker))
	for k, v := range m.toBroker {
		snapshot[k] = v
	}
	m.mu.RUnlock()

	data, err := json.MarshalIndent(persisted{Mapping: snapshot}, "", "  ")
	if err != nil {
		if m.log != nil {
			m.log.WithError(err).Error("failed to marshal symbol mapping")
		}
		return
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		if m.log != nil {
			m.log.WithField("path", m.path).WithError(err).Error("failed to persist symbol mapping")
		}
	}
}

// GetReal returns the broker symbol for canonical, or canonical unchanged
// if unmapped.
func (m *Mapper) GetReal(canonical string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if broker, ok := m.toBroker[canonical]; ok {
		return broker
	}
	return canonical
}

// GetCanonical returns the canonical pair for a broker symbol, or broker
// unchanged if unmapped.
func (m *Mapper) GetCanonical(broker string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if canon, ok := m.toCanon[broker]; ok {
		return canon
	}
	return broker
}

// Validate reports, for each required canonical pair, whether it has a
// broker mapping.
func (m *Mapper) Validate(required []string) map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]bool, len(required))
	for _, pair := range required {
		_, ok := m.toBroker[pair]
		result[pair] = ok
	}
	return result
}

// ScanAndMap rebuilds the mapping from the broker's full symbol list
// against the required canonical pairs, and persists the result.
// Unmapped pairs are logged and omitted; no error is returned (spec §4.1).
func (m *Mapper) ScanAndMap(brokerSymbols []string, required []string) map[string]string {
	byUpper := make(map[string]string, len(brokerSymbols))
	for _, s := range brokerSymbols {
		byUpper[strings.ToUpper(s)] = s
	}

	m.mu.Lock()
	for _, canon := range required {
		broker, ok := matchSymbol(canon, byUpper)
		if !ok {
			if m.log != nil {
				m.log.WithField("pair", canon).Warn("no broker symbol mapping found")
			}
			continue
		}
		m.toBroker[canon] = broker
		m.toCanon[broker] = canon
	}
	result := make(map[string]string, len(m.toBroker))
	for k, v := range m.toBroker {
		result[k] = v
	}
	m.mu.Unlock()

	m.persist()
	return result
}

// matchSymbol applies the exact -> suffix-stripped -> prefix (<=3 char
// tail) search order described in spec §4.1.
func matchSymbol(canonical string, byUpper map[string]string) (string, bool) {
	upperCanon := strings.ToUpper(canonical)

	if broker, ok := byUpper[upperCanon]; ok {
		return broker, true
	}

	for upper, broker := range byUpper {
		for _, suffix := range knownSuffixes {
			stripped := strings.TrimSuffix(upper, strings.ToUpper(suffix))
			if stripped == upperCanon {
				return broker, true
			}
		}
	}

	for upper, broker := range byUpper {
		if strings.HasPrefix(upper, upperCanon) && len(upper)-len(upperCanon) <= 3 {
			return broker, true
		}
	}

	return "", false
}
