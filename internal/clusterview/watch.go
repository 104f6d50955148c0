package clusterview

import (
	"context"
	"log/slog"
	"reflect"
	"time"
)

// WatchConfig controls the polling cadence and backoff of a Watcher.
type WatchConfig struct {
	// Interval is the steady-state delay between successful polls.
	// Defaults to 10s.
	Interval time.Duration

	// InitialBackoff is the delay before the first retry after a failed
	// poll. Defaults to 1s.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff applied to consecutive
	// poll failures. Defaults to 30s.
	MaxBackoff time.Duration

	// Logger is the structured logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Watcher polls a ClusterView's NodeRoutes on an interval and delivers
// the full route set on Changes() whenever it differs from the last
// observed set. This plays the role the reference implementation's
// signaling channel plays for tunnel peers — notifying the datapath
// programmer when a peer joins, leaves, or changes pod CIDR — adapted
// from a push-based websocket channel to a pull-based poll since the
// cluster API has no dedicated overlay-policy push channel.
type Watcher struct {
	view ClusterView
	cfg  WatchConfig
	log  *slog.Logger

	ch   chan []NodeRoute
	done chan struct{}
}

// NewWatcher creates a Watcher over view. Call Run to start polling.
func NewWatcher(view ClusterView, cfg WatchConfig) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Watcher{
		view: view,
		cfg:  cfg,
		log:  log.With("component", "clusterview"),
		ch:   make(chan []NodeRoute, 1),
		done: make(chan struct{}),
	}
}

// Changes returns a channel that delivers the full node route set each
// time it changes. The channel is closed when Run returns.
func (w *Watcher) Changes() <-chan []NodeRoute {
	return w.ch
}

// Run polls until ctx is cancelled. It should be run in its own
// goroutine; it blocks until ctx.Done() fires.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.done)
	defer close(w.ch)

	var last []NodeRoute
	backoff := w.cfg.InitialBackoff

	for {
		routes, err := w.view.NodeRoutes(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			w.log.Warn("poll failed", "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff, w.cfg.MaxBackoff)
			continue
		}

		backoff = w.cfg.InitialBackoff

		if !reflect.DeepEqual(routes, last) {
			last = routes
			select {
			case w.ch <- routes:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.Interval):
		}
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next <= 0 || next > max {
		return max
	}
	return next
}
