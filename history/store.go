// Package history keeps a bounded, time-ordered log of classified errors
// with aggregation queries.
package history

import (
	"sync"
	"time"

	"github.com/aponysus/aegis/classify"
)

// recentLimit caps the Recent slice in Stats.
const recentLimit = 10

// Config holds the store settings.
type Config struct {
	// Capacity bounds how many entries are retained.
	Capacity int

	// Retention is the age cutoff applied by the sweep.
	Retention time.Duration

	// SweepInterval is how often the age sweep runs.
	SweepInterval time.Duration
}

// DefaultConfig returns the store defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:      1000,
		Retention:     24 * time.Hour,
		SweepInterval: 10 * time.Minute,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.Capacity <= 0 {
		c.Capacity = def.Capacity
	}
	if c.Retention <= 0 {
		c.Retention = def.Retention
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	return c
}

// Stats is the aggregation result of Statistics. ByKind and BySeverity are
// exhaustive over all enum values, zero-filled for absent ones.
type Stats struct {
	Total      int
	ByKind     map[classify.Kind]int
	BySeverity map[classify.Severity]int
	Recent     []*classify.ClassifiedError
}

// Store owns the error history exclusively; entries are never mutated after
// recording. Head of the sequence is the newest entry.
type Store struct {
	mu      sync.Mutex
	entries []*classify.ClassifiedError // index 0 = newest
	cfg     Config

	nowFn func() time.Time

	sweepStarted bool
	sweepStop    chan struct{}
	sweepOnce    sync.Once
}

// NewStore creates a store with cfg, filling zero fields from the defaults.
func NewStore(cfg Config) *Store {
	return &Store{cfg: cfg.normalize()}
}

// SetClock overrides the store clock, primarily for tests.
func (s *Store) SetClock(f func() time.Time) {
	s.mu.Lock()
	s.nowFn = f
	s.mu.Unlock()
}

// Record appends e at the head and prunes to capacity. Age-based pruning is
// left to the sweep; bounded staleness is acceptable.
func (s *Store) Record(e *classify.ClassifiedError) {
	if e == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, nil)
	copy(s.entries[1:], s.entries)
	s.entries[0] = e

	if len(s.entries) > s.cfg.Capacity {
		s.entries = s.entries[:s.cfg.Capacity]
	}
}

// Statistics aggregates the history. A window of 0 covers everything;
// otherwise only entries with OccurredAt >= now-window count. Recent holds
// the newest matching entries, capped at 10 regardless of window.
func (s *Store) Statistics(window time.Duration) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		ByKind:     make(map[classify.Kind]int, len(classify.Kinds())),
		BySeverity: make(map[classify.Severity]int, len(classify.Severities())),
	}
	for _, k := range classify.Kinds() {
		stats.ByKind[k] = 0
	}
	for _, sev := range classify.Severities() {
		stats.BySeverity[sev] = 0
	}

	var cutoff time.Time
	if window > 0 {
		cutoff = s.now().Add(-window)
	}

	for _, e := range s.entries {
		if window > 0 && e.OccurredAt.Before(cutoff) {
			continue
		}
		stats.Total++
		stats.ByKind[e.Kind]++
		stats.BySeverity[e.Severity]++
		if len(stats.Recent) < recentLimit {
			stats.Recent = append(stats.Recent, e)
		}
	}
	return stats
}

// Len returns the current history length.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear drops the whole history. Used at shutdown.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
}

// StartSweep begins the background age pruning loop. Callers in
// deterministic or test mode simply never start it. Starting twice is a
// no-op.
func (s *Store) StartSweep() {
	s.mu.Lock()
	if s.sweepStarted {
		s.mu.Unlock()
		return
	}
	s.sweepStarted = true
	s.sweepStop = make(chan struct{})
	stop := s.sweepStop
	interval := s.cfg.SweepInterval
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Prune()
			case <-stop:
				return
			}
		}
	}()
}

// StopSweep stops the background loop. Safe to call when never started.
func (s *Store) StopSweep() {
	s.mu.Lock()
	stop := s.sweepStop
	s.mu.Unlock()
	if stop != nil {
		s.sweepOnce.Do(func() { close(stop) })
	}
}

// Prune removes entries older than the retention cutoff. The sweep calls
// this periodically; it is exported so hosts can force a pass.
func (s *Store) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.cfg.Retention)

	// Entries are newest-first, so everything from the first stale index on
	// is stale.
	for i, e := range s.entries {
		if e.OccurredAt.Before(cutoff) {
			s.entries = s.entries[:i]
			return
		}
	}
}

func (s *Store) now() time.Time {
	if s.nowFn != nil {
		return s.nowFn()
	}
	return time.Now()
}
