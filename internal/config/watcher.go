package config

import (
	"os"
	"sync"
	"time"
)

// EventType identifies the kind of change a Watcher reports.
type EventType int

// FileModified is emitted when the watched file's modification time advances.
const FileModified EventType = iota

// Event describes a single file-change notification.
type Event struct {
	Type EventType
	Path string
}

// Watcher polls a configuration file for modifications and publishes events
// on a channel.
type Watcher struct {
	path          string
	checkInterval time.Duration
	lastModTime   time.Time
	events        chan Event
	stop          chan struct{}
	stopOnce      sync.Once
}

// NewWatcher creates a Watcher for the given file path using a 2-second poll
// interval, then starts polling in the background.
func NewWatcher(path string) (*Watcher, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:          path,
		checkInterval: 2 * time.Second,
		lastModTime:   stat.ModTime(),
		events:        make(chan Event, 1),
		stop:          make(chan struct{}),
	}

	go w.run()
	return w, nil
}

// Events returns the channel on which file-change notifications are published.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop terminates the polling loop and closes the events channel.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
}

func (w *Watcher) run() {
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()
	defer close(w.events)

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			stat, err := os.Stat(w.path)
			if err != nil {
				continue
			}
			if stat.ModTime().After(w.lastModTime) {
				w.lastModTime = stat.ModTime()
				select {
				case w.events <- Event{Type: FileModified, Path: w.path}:
				case <-w.stop:
					return
				}
			}
		}
	}
}
