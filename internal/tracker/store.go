package tracker

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"triarb/internal/logging"
)

// Snapshot is the on-disk shape of data/order_tracking.json (spec §6.3).
type Snapshot struct {
	OrderTracking map[string]Order `json:"order_tracking"`
	Stats         Stats            `json:"stats"`
	SavedAt       time.Time        `json:"saved_at"`
}

// Store persists Tracker snapshots synchronously under the caller's lock.
type Store struct {
	path string
	log  *logging.Logger
}

// NewStore builds a Store writing to path.
func NewStore(path string, log *logging.Logger) *Store {
	return &Store{path: path, log: log}
}

// Load reads the snapshot file. A missing file returns (nil, nil); a
// malformed file is logged and also treated as empty rather than fatal,
// matching the tracker's "ignore malformed records" contract (spec §4.3).
func (s *Store) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		if s.log != nil {
			s.log.WithError(err).Warn("order tracking file malformed, ignoring")
		}
		return nil, nil
	}
	return &snap, nil
}

// Save writes the snapshot to disk. A write failure is logged; callers
// retain their in-memory state and continue (spec §7: disk write failure
// policy).
func (s *Store) Save(snap Snapshot) error {
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}
