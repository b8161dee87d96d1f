// Package reload watches rule sources and republishes the rule set when
// they change.
//
// The controller is the only writer of loaded rule sets into the store.
// Filesystem notifications arrive on a channel, are collapsed by a
// trailing debounce timer, and end in one call to Reload. A reload that
// cannot read or parse a source leaves the published set untouched.
package reload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roach88/handyrules/internal/loader"
	"github.com/roach88/handyrules/internal/rulestore"
)

// DefaultDebounce is the quiet period required after the last change
// notification before a reload runs.
const DefaultDebounce = 200 * time.Millisecond

// Result labels what a reload did.
type Result string

const (
	// ResultApplied means a new rule set was published.
	ResultApplied Result = "applied"

	// ResultUnchanged means the loaded set matched the active one.
	ResultUnchanged Result = "unchanged"

	// ResultFailed means a source failed and the active set was kept.
	ResultFailed Result = "failed"

	// ResultSuperseded means the store changed while the sources were
	// being read. The load is dropped and another reload is queued.
	ResultSuperseded Result = "superseded"
)

// Outcome describes one completed reload.
type Outcome struct {
	Result   Result
	Snapshot *rulestore.Snapshot
	Load     *loader.Result
}

// LoadFunc loads rule sources. loader.Load in production.
type LoadFunc func(sources []string, opts loader.Options) *loader.Result

// Controller reloads rules from sources into a store.
type Controller struct {
	sources  []string
	opts     loader.Options
	store    *rulestore.Store
	debounce time.Duration
	load     LoadFunc
	logger   *slog.Logger
	observe  func(Outcome)
	catchUp  bool

	trigger chan struct{}

	// mu serializes reloads so results publish in load order.
	mu sync.Mutex
}

// Option configures a Controller.
type Option func(*Controller)

// WithDebounce sets the quiet period. Non-positive values are ignored.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithLoadOptions sets the options passed to the loader.
func WithLoadOptions(opts loader.Options) Option {
	return func(c *Controller) {
		c.opts = opts
	}
}

// WithLoadFunc replaces loader.Load.
func WithLoadFunc(fn LoadFunc) Option {
	return func(c *Controller) {
		c.load = fn
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithObserver registers fn to be called after every reload.
func WithObserver(fn func(Outcome)) Option {
	return func(c *Controller) {
		c.observe = fn
	}
}

// WithStartupCheck makes Run reload once its watches are in place, so an
// edit made between the initial load and Run is not missed.
func WithStartupCheck() Option {
	return func(c *Controller) {
		c.catchUp = true
	}
}

// New creates a controller for sources publishing into store.
func New(sources []string, store *rulestore.Store, opts ...Option) *Controller {
	c := &Controller{
		sources:  append([]string(nil), sources...),
		store:    store,
		debounce: DefaultDebounce,
		load:     loader.Load,
		logger:   slog.Default(),
		observe:  func(Outcome) {},
		trigger:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reload loads the sources now and publishes the result if it differs
// from the active set. Safe to call from any goroutine.
func (c *Controller) Reload() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	base := c.store.Snapshot().Version
	res := c.load(c.sources, c.opts)
	res.Log(c.logger)

	out := Outcome{Load: res}
	switch {
	case res.Failed():
		out.Result = ResultFailed
		out.Snapshot = c.store.Snapshot()
		c.logger.Warn("reload failed, keeping active rule set",
			"version", out.Snapshot.Version,
			"errors", len(res.Errors()),
		)

	default:
		snap, published, err := c.store.PublishIfChangedSince(base, res.Set)
		out.Snapshot = snap
		switch {
		case errors.Is(err, rulestore.ErrSuperseded):
			out.Result = ResultSuperseded
			c.logger.Debug("rule set changed during reload, retrying", "version", snap.Version)
			c.Notify()
		case published:
			out.Result = ResultApplied
			c.logger.Info("rules reloaded",
				"version", snap.Version,
				"rules", snap.Len(),
				"enabled", snap.EnabledCount(),
				"files", len(res.Files),
			)
		default:
			out.Result = ResultUnchanged
			c.logger.Debug("reload produced identical rule set", "version", snap.Version)
		}
	}

	c.observe(out)
	return out
}

// Notify requests a debounced reload as if a source had changed.
// It never blocks.
func (c *Controller) Notify() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Run watches the sources until ctx is cancelled. Change notifications
// and Notify calls restart the debounce timer; a reload runs once the
// timer fires.
func (c *Controller) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	for _, target := range loader.WatchTargets(c.sources) {
		if err := watcher.Add(target); err != nil {
			c.logger.Warn("cannot watch rule path", "path", target, "error", err)
			continue
		}
		c.logger.Debug("watching rule path", "path", target)
	}

	timer := time.NewTimer(c.debounce)
	if !c.catchUp {
		timer.Stop()
	}
	defer timer.Stop()

	c.logger.Info("reload controller started", "debounce", c.debounce)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("reload controller stopping")
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !c.relevant(ev) {
				continue
			}
			c.logger.Debug("rule source changed", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(c.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("watcher error", "error", err)

		case <-c.trigger:
			timer.Reset(c.debounce)

		case <-timer.C:
			c.Reload()
		}
	}
}

func (c *Controller) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	return loader.Relevant(c.sources, ev.Name)
}
