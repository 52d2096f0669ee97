// Package gate implements the readiness barrier dependent services wait on
// before starting. The sync subsystem writes a completion marker (and an
// optional progress descriptor) when the restore finishes; the gate only
// ever reads them.
package gate

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/mo"
)

// Defaults. Freshness is generous because the marker survives across the
// sync daemon's periodic loop; a marker from a previous boot is stale.
const (
	DefaultInterval  = 1 * time.Second
	DefaultTimeout   = 180 * time.Second
	DefaultFreshness = 24 * time.Hour
)

// ErrTimeout is returned when the wait budget is exhausted. It is a
// fail-open signal: callers log the degraded start and proceed anyway.
var ErrTimeout = errors.New("gate: wait timed out, proceeding without sync readiness")

// Progress mirrors the sync daemon's progress descriptor.
type Progress struct {
	Stage    string `json:"stage"`
	Progress int    `json:"progress"`
	Current  int    `json:"current"`
	Total    int    `json:"total"`
}

// Gate polls for the completion marker. It never writes anything.
type Gate struct {
	markerPath   string
	progressPath string
	interval     time.Duration
	timeout      time.Duration
	freshness    time.Duration
}

// Option configures a Gate.
type Option func(*Gate)

// WithProgressPath points the gate at the optional progress descriptor.
func WithProgressPath(path string) Option {
	return func(g *Gate) { g.progressPath = path }
}

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.interval = d
		}
	}
}

// WithTimeout sets the total wait budget.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithFreshness sets the maximum marker age still treated as valid.
// Zero or negative disables the age check: existence alone suffices.
func WithFreshness(d time.Duration) Option {
	return func(g *Gate) { g.freshness = d }
}

// New creates a Gate for the given completion marker path.
func New(markerPath string, opts ...Option) *Gate {
	g := &Gate{
		markerPath: markerPath,
		interval:   DefaultInterval,
		timeout:    DefaultTimeout,
		freshness:  DefaultFreshness,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Ready reports whether the marker exists and is fresh. A marker older
// than the freshness window counts as absent.
func (g *Gate) Ready() bool {
	fi, err := os.Stat(g.markerPath)
	if err != nil {
		return false
	}
	if g.freshness <= 0 {
		return true
	}
	return time.Since(fi.ModTime()) < g.freshness
}

// ReadProgress returns the current progress descriptor when one is present
// and parsable. Absence is not an error: the descriptor is optional.
func (g *Gate) ReadProgress() mo.Option[Progress] {
	if g.progressPath == "" {
		return mo.None[Progress]()
	}
	raw, err := os.ReadFile(g.progressPath)
	if err != nil {
		return mo.None[Progress]()
	}
	var p Progress
	if err := json.Unmarshal(raw, &p); err != nil {
		return mo.None[Progress]()
	}
	return mo.Some(p)
}

// Wait blocks until the marker is fresh, the timeout elapses, or ctx is
// canceled. Timeout returns ErrTimeout after logging a degraded-start
// warning; it is never fatal. While waiting, progress is surfaced at info
// level whenever the stage or percentage moves.
func (g *Gate) Wait(ctx context.Context) error {
	if g.Ready() {
		return nil
	}

	log.Info().Str("marker", g.markerPath).Dur("timeout", g.timeout).
		Msg("waiting for sync readiness")

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	deadline := time.NewTimer(g.timeout)
	defer deadline.Stop()

	var last Progress
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-deadline.C:
			log.Warn().Str("marker", g.markerPath).Dur("timeout", g.timeout).
				Msg("sync readiness timed out, starting degraded")
			return ErrTimeout

		case <-ticker.C:
			if g.Ready() {
				log.Info().Str("marker", g.markerPath).Msg("sync ready")
				return nil
			}
			if p, ok := g.ReadProgress().Get(); ok && p != last {
				last = p
				evt := log.Info().Str("stage", p.Stage).Int("progress", p.Progress)
				if p.Total > 0 {
					evt = evt.Int("current", p.Current).Int("total", p.Total)
				}
				evt.Msg("sync in progress")
			}
		}
	}
}
