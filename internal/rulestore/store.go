// Package rulestore holds the single active rule set.
//
// Readers take a Snapshot with one atomic load and keep it for the whole
// request. Writers build a complete replacement set and swap the pointer,
// so no reader ever sees a partially updated set. Writers are serialized
// by a mutex; readers never take it.
package rulestore

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/handyrules/internal/rule"
)

// ErrRuleNotFound is returned when a toggle names an id that is not in the
// active set.
var ErrRuleNotFound = errors.New("rule not found")

// ErrSuperseded is returned by PublishIfChangedSince when another writer
// published after the caller read its base version.
var ErrSuperseded = errors.New("rule set superseded")

// Snapshot is one published rule set. It is immutable.
type Snapshot struct {
	*rule.RuleSet

	// Version increases by one with every publish.
	Version uint64

	// PublishedAt is when the set became active.
	PublishedAt time.Time
}

// Persister writes a toggled enabled flag back to a rule's origin file.
type Persister interface {
	SaveEnabled(path, id string, enabled bool) error
}

// Store owns the active rule set.
type Store struct {
	current atomic.Pointer[Snapshot]

	// mu serializes writers. Readers use current only.
	mu sync.Mutex

	persister Persister
	logger    *slog.Logger
	onPublish func(*Snapshot)
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithPersister sets the write-back hook used by Toggle.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithPublishHook registers fn to run after every publish, under the
// writer lock. Used for metrics.
func WithPublishHook(fn func(*Snapshot)) Option {
	return func(s *Store) { s.onPublish = fn }
}

// WithClock overrides the time source for PublishedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store publishing initial. A nil initial publishes an
// empty set.
func New(initial *rule.RuleSet, opts ...Option) *Store {
	s := &Store{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if initial == nil {
		initial = rule.Empty()
	}
	s.mu.Lock()
	s.publishLocked(initial)
	s.mu.Unlock()
	return s
}

// Snapshot returns the active rule set. It never blocks.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Publish makes set the active rule set.
func (s *Store) Publish(set *rule.RuleSet) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publishLocked(set)
}

// PublishIfChanged publishes set only if its fingerprint differs from the
// active set. Returns the active snapshot and whether a publish happened.
func (s *Store) PublishIfChanged(set *rule.RuleSet) (*Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	if cur.Fingerprint() == set.Fingerprint() {
		return cur, false
	}
	return s.publishLocked(set), true
}

// PublishIfChangedSince is PublishIfChanged guarded by version: set is
// published only while the active snapshot is still version base. When a
// toggle or another publish happened in between, nothing is published and
// ErrSuperseded is returned with the active snapshot.
func (s *Store) PublishIfChangedSince(base uint64, set *rule.RuleSet) (*Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	if cur.Version != base {
		return cur, false, fmt.Errorf("%w: base version %d, active version %d", ErrSuperseded, base, cur.Version)
	}
	if cur.Fingerprint() == set.Fingerprint() {
		return cur, false, nil
	}
	return s.publishLocked(set), true, nil
}

// Toggle sets the enabled flag of rule id and publishes the resulting set.
// The change is then written back to the rule's source file through the
// Persister; a write-back failure is logged and does not undo the
// in-memory change.
func (s *Store) Toggle(id string, enabled bool) (rule.Rule, error) {
	return s.update(id, func(bool) bool { return enabled })
}

// Flip inverts the enabled flag of rule id. See Toggle.
func (s *Store) Flip(id string) (rule.Rule, error) {
	return s.update(id, func(cur bool) bool { return !cur })
}

func (s *Store) update(id string, next func(bool) bool) (rule.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	c, ok := cur.Lookup(id)
	if !ok {
		return rule.Rule{}, fmt.Errorf("%w: %q", ErrRuleNotFound, id)
	}

	enabled := next(c.Enabled())
	if enabled == c.Enabled() {
		return c.Rule(), nil
	}

	set, _ := cur.WithEnabled(id, enabled)
	snap := s.publishLocked(set)
	updated, _ := snap.Lookup(id)
	r := updated.Rule()

	s.logger.Info("rule toggled", "rule_id", id, "enabled", enabled, "version", snap.Version)

	if s.persister != nil && r.SourceFile != "" {
		if err := s.persister.SaveEnabled(r.SourceFile, id, enabled); err != nil {
			s.logger.Error("rule write-back failed",
				"rule_id", id,
				"path", r.SourceFile,
				"error", err,
			)
		}
	}

	return r, nil
}

func (s *Store) publishLocked(set *rule.RuleSet) *Snapshot {
	var version uint64 = 1
	if prev := s.current.Load(); prev != nil {
		version = prev.Version + 1
	}

	snap := &Snapshot{
		RuleSet:     set,
		Version:     version,
		PublishedAt: s.now(),
	}
	s.current.Store(snap)

	if s.onPublish != nil {
		s.onPublish(snap)
	}
	return snap
}
