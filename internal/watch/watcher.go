// Package watch detects out-of-band rewrites of the canonical routing
// document and hot-reloads the route table without a restart.
//
// The external sync subsystem restores and updates the document on its own
// schedule and offers no push notification, so the watcher polls the file's
// stat signal at a fixed interval. The interval is the sole detection
// latency knob. A rewrite with a stale snapshot shortly after an admin
// write is faithfully reloaded; that race is accepted and mitigated by the
// seconds-scale interval plus remediation at the source of truth.
package watch

import (
	"context"
	"crypto/sha256"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avelinc/edgegate/internal/store"
)

// DefaultInterval is the poll interval used when none is configured.
const DefaultInterval = 2 * time.Second

// ReloadCallback runs after a successful reload and swap. Callback errors
// are logged; the reload itself stands.
type ReloadCallback func(*store.Snapshot) error

// Watcher polls the canonical document for external modification.
type Watcher struct {
	st        *store.Store
	interval  time.Duration
	mu        sync.RWMutex
	callbacks []ReloadCallback

	// last observed stat signal; zero values mean "file not seen yet"
	lastMod  time.Time
	lastSize int64
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher creates a watcher over the given store's document path.
func NewWatcher(st *store.Store, opts ...Option) *Watcher {
	w := &Watcher{
		st:       st,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.prime()
	return w
}

// Interval returns the configured poll interval.
func (w *Watcher) Interval() time.Duration {
	return w.interval
}

// OnReload registers a callback invoked after each successful reload.
func (w *Watcher) OnReload(cb ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// prime records the current stat signal so the version loaded at startup
// is not immediately re-reloaded on the first tick.
func (w *Watcher) prime() {
	if fi, err := os.Stat(w.st.Path()); err == nil {
		w.lastMod = fi.ModTime()
		w.lastSize = fi.Size()
	}
}

// Watch polls until ctx is done. It always returns nil on cancellation;
// reload failures never escape, they are logged and retried next tick.
func (w *Watcher) Watch(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.tick()
		}
	}
}

func (w *Watcher) tick() {
	fi, err := os.Stat(w.st.Path())
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", w.st.Path()).Msg("cannot stat routing document")
		}
		// Absent file: keep the current table, wait for it to appear.
		return
	}

	if fi.ModTime().Equal(w.lastMod) && fi.Size() == w.lastSize {
		return
	}

	raw, err := os.ReadFile(w.st.Path())
	if err != nil {
		// The stat signal stays unconsumed so a transient read failure
		// does not swallow the write: the next tick tries again.
		log.Warn().Err(err).Str("path", w.st.Path()).Msg("cannot read changed routing document")
		return
	}
	w.lastMod = fi.ModTime()
	w.lastSize = fi.Size()
	if w.st.WroteSum(sha256.Sum256(raw)) {
		log.Debug().Str("path", w.st.Path()).Msg("document change was our own save, skipping reload")
		return
	}

	if err := w.st.Reload(); err != nil {
		// External writers are never trusted blindly: keep the previous
		// table and retry on the next tick.
		log.Warn().Err(err).Str("path", w.st.Path()).
			Msg("externally written document is unusable, keeping previous route table")
		return
	}

	snap := w.st.Current()
	log.Info().Str("path", w.st.Path()).Int("rules", snap.RuleCount()).
		Msg("routing document reloaded from external write")
	w.invokeCallbacks(snap)
}

func (w *Watcher) invokeCallbacks(snap *store.Snapshot) {
	w.mu.RLock()
	callbacks := make([]ReloadCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		if err := cb(snap); err != nil {
			log.Error().Err(err).Msg("reload callback error")
		}
	}
}
