// Package circuit tracks per-service-operation health with a keyed circuit
// breaker state machine.
package circuit

import (
	"sync"
	"time"
)

// halfOpenSuccessesToClose is how many half-open successes close a breaker.
const halfOpenSuccessesToClose = 2

type breaker struct {
	phase               Phase
	consecutiveFailures int
	lastFailureAt       time.Time
	nextProbeAt         time.Time
	halfOpenSuccesses   int
}

// Registry manages one breaker per service key. Breakers are created lazily
// on first reference and live for the process lifetime unless reset.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*breaker
	cfg      Config

	onTransition TransitionFunc
	nowFn        func() time.Time

	sweepStarted bool
	sweepStop    chan struct{}
	sweepOnce    sync.Once
}

// NewRegistry creates a registry with cfg, filling zero fields from the
// defaults.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		breakers: make(map[string]*breaker),
		cfg:      cfg.normalize(),
	}
}

// OnTransition registers fn to be called after announce-worthy phase
// transitions. It must be set before the registry is shared.
func (r *Registry) OnTransition(fn TransitionFunc) {
	r.mu.Lock()
	r.onTransition = fn
	r.mu.Unlock()
}

// SetClock overrides the registry clock, primarily for tests.
func (r *Registry) SetClock(f func() time.Time) {
	r.mu.Lock()
	r.nowFn = f
	r.mu.Unlock()
}

// CanAttempt reports whether an attempt against key may proceed.
//
// While open, the first call at or after the probe time transitions the
// breaker to half-open as a side effect and allows the attempt. The
// transition deliberately lives inside this gate check: a pure read plus a
// separate write would let two callers both observe open and never probe.
func (r *Registry) CanAttempt(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.get(key)
	switch b.phase {
	case PhaseOpen:
		if r.now().Before(b.nextProbeAt) {
			return false
		}
		b.phase = PhaseHalfOpen
		b.halfOpenSuccesses = 0
		return true
	default:
		// Closed always allows; half-open allows probes, possibly concurrently.
		return true
	}
}

// RecordSuccess records a successful attempt against key.
//
// Half-open successes accumulate toward closing; a success while closed
// decrements the failure count by one (gradual trust recovery, not a full
// reset). A success while open is ignored.
func (r *Registry) RecordSuccess(key string) {
	var announce func()

	r.mu.Lock()
	b := r.get(key)
	switch b.phase {
	case PhaseHalfOpen:
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= halfOpenSuccessesToClose {
			b.phase = PhaseClosed
			b.consecutiveFailures = 0
			b.lastFailureAt = time.Time{}
			b.nextProbeAt = time.Time{}
			b.halfOpenSuccesses = 0
			announce = r.announcement(key, PhaseHalfOpen, PhaseClosed)
		}
	case PhaseClosed:
		if b.consecutiveFailures > 0 {
			b.consecutiveFailures--
		}
	}
	r.mu.Unlock()

	if announce != nil {
		announce()
	}
}

// RecordFailure records a failed call against key, opening the breaker once
// the consecutive-failure threshold is reached.
func (r *Registry) RecordFailure(key string) {
	var announce func()

	r.mu.Lock()
	b := r.get(key)
	now := r.now()
	b.consecutiveFailures++
	b.lastFailureAt = now
	if b.consecutiveFailures >= r.cfg.FailureThreshold {
		from := b.phase
		b.phase = PhaseOpen
		b.nextProbeAt = now.Add(r.cfg.RecoveryTimeout)
		b.halfOpenSuccesses = 0
		if from != PhaseOpen {
			announce = r.announcement(key, from, PhaseOpen)
		}
	}
	r.mu.Unlock()

	if announce != nil {
		announce()
	}
}

// Reset forces key back to closed with all counters and timers cleared.
// It returns false if key has never been referenced.
func (r *Registry) Reset(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[key]
	if !ok {
		return false
	}
	*b = breaker{phase: PhaseClosed}
	return true
}

// Status returns a snapshot of every known breaker.
func (r *Registry) Status() map[string]Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Snapshot, len(r.breakers))
	for key, b := range r.breakers {
		out[key] = Snapshot{
			Phase:               b.phase,
			ConsecutiveFailures: b.consecutiveFailures,
			LastFailureAt:       b.lastFailureAt,
			NextProbeAt:         b.nextProbeAt,
			HalfOpenSuccesses:   b.halfOpenSuccesses,
		}
	}
	return out
}

// Clear drops every breaker. Used at shutdown.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.breakers = make(map[string]*breaker)
	r.mu.Unlock()
}

// StartSweep begins the background phase reconciliation loop, which promotes
// any open breaker whose probe time has elapsed into half-open so Status
// stays consistent with wall-clock time even without traffic. Callers in
// deterministic or test mode simply never start it. Starting twice is a
// no-op.
func (r *Registry) StartSweep() {
	r.mu.Lock()
	if r.sweepStarted {
		r.mu.Unlock()
		return
	}
	r.sweepStarted = true
	r.sweepStop = make(chan struct{})
	stop := r.sweepStop
	period := r.cfg.MonitoringPeriod
	r.mu.Unlock()

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.reconcile()
			case <-stop:
				return
			}
		}
	}()
}

// StopSweep stops the background loop. Safe to call when never started.
func (r *Registry) StopSweep() {
	r.mu.Lock()
	stop := r.sweepStop
	r.mu.Unlock()
	if stop != nil {
		r.sweepOnce.Do(func() { close(stop) })
	}
}

func (r *Registry) reconcile() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, b := range r.breakers {
		if b.phase == PhaseOpen && !now.Before(b.nextProbeAt) {
			b.phase = PhaseHalfOpen
			b.halfOpenSuccesses = 0
		}
	}
}

// get returns the breaker for key, creating it closed on first reference.
// Callers must hold mu.
func (r *Registry) get(key string) *breaker {
	b, ok := r.breakers[key]
	if !ok {
		b = &breaker{phase: PhaseClosed}
		r.breakers[key] = b
	}
	return b
}

// announcement captures a transition callback to run after mu is released.
// Callers must hold mu.
func (r *Registry) announcement(key string, from, to Phase) func() {
	fn := r.onTransition
	if fn == nil {
		return nil
	}
	return func() { fn(key, from, to) }
}

func (r *Registry) now() time.Time {
	if r.nowFn != nil {
		return r.nowFn()
	}
	return time.Now()
}
