// Package reload provides configuration hot-reload for southd: a polling
// file watcher and a handler that re-runs the module reload lifecycle.
package reload

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const defaultPollInterval = 5 * time.Second

// WatcherConfig configures the config file watcher.
type WatcherConfig struct {
	// ConfigPath is the southd config file to watch.
	ConfigPath string

	// PollInterval is how often the file is stat'd. Defaults to 5
	// seconds if zero.
	PollInterval time.Duration
}

func (c WatcherConfig) pollIntervalOrDefault() time.Duration {
	if c.PollInterval > 0 {
		return c.PollInterval
	}
	return defaultPollInterval
}

// Event signals that the watched config file changed on disk.
type Event struct {
	ConfigPath string
}

// fingerprint is the cheap change detector: a rewrite is visible as a new
// mtime or a new size. Size matters on filesystems with coarse mtime
// granularity, where an in-place rewrite within the same second keeps the
// old timestamp.
type fingerprint struct {
	modTime time.Time
	size    int64
}

func (f fingerprint) equal(other fingerprint) bool {
	return f.modTime.Equal(other.modTime) && f.size == other.size
}

// Watcher polls the southd config file and emits an Event when it
// changes. A missing file is not a change; the daemon keeps running on
// its loaded config until the file reappears.
type Watcher struct {
	cfg     WatcherConfig
	events  chan Event
	stop    chan struct{}
	stopped chan struct{}

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWatcher creates a watcher for the given config file.
func NewWatcher(cfg WatcherConfig) *Watcher {
	return &Watcher{
		cfg:     cfg,
		events:  make(chan Event, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start begins polling. Safe to call multiple times; only the first call
// starts the goroutine.
func (w *Watcher) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.started.Store(true)
		go w.poll(ctx)
	})
}

// Events returns the channel of change events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop stops the watcher. Safe to call multiple times and before Start.
//
// If Stop races with Start (after startOnce sets started but before the
// goroutine runs), Stop blocks on <-w.stopped until the goroutine starts,
// sees the closed stop channel, and exits.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
	if w.started.Load() {
		<-w.stopped
	}
}

func (w *Watcher) poll(ctx context.Context) {
	defer close(w.stopped)

	ticker := time.NewTicker(w.cfg.pollIntervalOrDefault())
	defer ticker.Stop()

	last, known := w.stat()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			current, ok := w.stat()
			if !ok {
				// File deleted or unreadable; keep the last known
				// fingerprint so a restored identical file stays quiet.
				continue
			}
			if known && current.equal(last) {
				continue
			}
			if known {
				select {
				case w.events <- Event{ConfigPath: w.cfg.ConfigPath}:
				default:
					// A reload is already pending; coalesce.
				}
			}
			last, known = current, true
		}
	}
}

func (w *Watcher) stat() (fingerprint, bool) {
	info, err := os.Stat(w.cfg.ConfigPath)
	if err != nil {
		return fingerprint{}, false
	}
	return fingerprint{modTime: info.ModTime(), size: info.Size()}, true
}
