// Package retry orchestrates attempts of caller-supplied operations,
// consulting the circuit breaker registry, backing off between attempts,
// classifying failures into history and fanning out lifecycle events.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aponysus/aegis/backoff"
	"github.com/aponysus/aegis/circuit"
	"github.com/aponysus/aegis/classify"
	"github.com/aponysus/aegis/events"
	"github.com/aponysus/aegis/history"
)

// ErrCircuitOpen is matched by errors.Is against the error returned when an
// open breaker short-circuits a call.
var ErrCircuitOpen = errors.New("aegis: circuit breaker is open")

// CircuitOpenError reports a call rejected without invoking the operation.
type CircuitOpenError struct {
	Key string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("aegis: circuit breaker is open for %s", e.Key)
}

func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

type Operation func(ctx context.Context) error
type OperationValue[T any] func(ctx context.Context) (T, error)

// Executor runs operations under the retry and circuit-breaking policy. The
// registry and history store are the only state shared across concurrent
// calls; both serialize internally.
type Executor struct {
	registry *circuit.Registry
	history  *history.Store
	notifier *events.Notifier

	defaultPolicy backoff.Policy
	clock         func() time.Time
	sleep         func(context.Context, time.Duration) error
}

type executorConfig struct {
	registry      *circuit.Registry
	history       *history.Store
	notifier      *events.Notifier
	defaultPolicy *backoff.Policy
	clock         func() time.Time
	sleep         func(context.Context, time.Duration) error
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*executorConfig)

// WithRegistry sets the circuit breaker registry.
func WithRegistry(r *circuit.Registry) ExecutorOption {
	return func(c *executorConfig) { c.registry = r }
}

// WithHistory sets the error history store.
func WithHistory(s *history.Store) ExecutorOption {
	return func(c *executorConfig) { c.history = s }
}

// WithNotifier sets the event notifier.
func WithNotifier(n *events.Notifier) ExecutorOption {
	return func(c *executorConfig) { c.notifier = n }
}

// WithDefaultPolicy sets the policy used when a call supplies none.
func WithDefaultPolicy(p backoff.Policy) ExecutorOption {
	return func(c *executorConfig) { c.defaultPolicy = &p }
}

// WithClock sets the clock function, primarily for tests.
func WithClock(f func() time.Time) ExecutorOption {
	return func(c *executorConfig) { c.clock = f }
}

// WithSleep replaces the backoff wait, primarily for tests.
func WithSleep(f func(context.Context, time.Duration) error) ExecutorOption {
	return func(c *executorConfig) { c.sleep = f }
}

// NewExecutor creates an Executor. Missing collaborators are constructed
// with their defaults; a default-constructed registry announces its
// transitions through the executor's notifier.
func NewExecutor(opts ...ExecutorOption) *Executor {
	cfg := &executorConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	e := &Executor{
		registry:      cfg.registry,
		history:       cfg.history,
		notifier:      cfg.notifier,
		defaultPolicy: backoff.Default(),
		clock:         cfg.clock,
		sleep:         cfg.sleep,
	}
	if cfg.defaultPolicy != nil {
		e.defaultPolicy = cfg.defaultPolicy.Normalize()
	}
	if e.notifier == nil {
		e.notifier = events.NewNotifier()
	}
	if e.registry == nil {
		e.registry = circuit.NewRegistry(circuit.DefaultConfig())
		e.registry.OnTransition(BreakerEvents(e.notifier, e.clockFn()))
	}
	if e.history == nil {
		e.history = history.NewStore(history.DefaultConfig())
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.sleep == nil {
		e.sleep = sleepWithContext
	}
	return e
}

// Registry returns the breaker registry backing this executor.
func (e *Executor) Registry() *circuit.Registry { return e.registry }

// History returns the error history store backing this executor.
func (e *Executor) History() *history.Store { return e.history }

// Notifier returns the event notifier backing this executor.
func (e *Executor) Notifier() *events.Notifier { return e.notifier }

// BreakerEvents adapts registry transitions into deferred breaker events on
// n. Deferring keeps registry bookkeeping decoupled from the caller's
// synchronous control flow.
func BreakerEvents(n *events.Notifier, now func() time.Time) circuit.TransitionFunc {
	if now == nil {
		now = time.Now
	}
	return func(key string, from, to circuit.Phase) {
		switch {
		case to == circuit.PhaseOpen:
			n.EmitDeferred(events.Event{Name: events.EventBreakerOpened, ServiceKey: key, At: now()})
		case to == circuit.PhaseClosed && from == circuit.PhaseHalfOpen:
			n.EmitDeferred(events.Event{Name: events.EventBreakerClosed, ServiceKey: key, At: now()})
		}
	}
}

// CallOption adjusts a single call.
type CallOption func(*callConfig)

type callConfig struct {
	policy      *backoff.Policy
	maxAttempts int
}

// WithPolicy replaces the executor's default policy for one call. The
// replacement is whole: zero fields are filled by Normalize, and Jitter is
// taken as given, so a partial literal runs without jitter. To change only
// the attempt ceiling, use WithMaxAttempts.
func WithPolicy(p backoff.Policy) CallOption {
	return func(c *callConfig) { c.policy = &p }
}

// WithMaxAttempts overrides only the attempt ceiling for one call, keeping
// the resolved policy's delays and jitter. Values below one are ignored.
func WithMaxAttempts(n int) CallOption {
	return func(c *callConfig) { c.maxAttempts = n }
}

// Do executes op under the resolved policy for opCtx.
func (e *Executor) Do(ctx context.Context, opCtx classify.OperationContext, op Operation, opts ...CallOption) error {
	_, err := DoValue(ctx, e, opCtx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts...)
	return err
}

// DoValue executes op under the resolved policy for opCtx and returns its
// value.
//
// Failures are classified for history and events only; the caller always
// receives the raw operation error. Retries may re-invoke an operation with
// side effects, so operations must be idempotent.
func DoValue[T any](ctx context.Context, e *Executor, opCtx classify.OperationContext, op OperationValue[T], opts ...CallOption) (T, error) {
	var zero T

	if ctx == nil {
		ctx = context.Background()
	}
	if e == nil {
		e = DefaultExecutor()
	}

	cc := &callConfig{}
	for _, opt := range opts {
		opt(cc)
	}

	pol := e.defaultPolicy
	if cc.policy != nil {
		pol = cc.policy.Normalize()
	}
	if opCtx.MaxAttempts > 0 {
		pol.MaxAttempts = opCtx.MaxAttempts
	}
	if cc.maxAttempts > 0 {
		pol.MaxAttempts = cc.maxAttempts
	}

	key := opCtx.Key()

	if !e.registry.CanAttempt(key) {
		ce := classify.New(
			classify.KindConnection,
			classify.SeverityHigh,
			"circuit breaker is open",
			classify.ErrorContext{OperationContext: opCtx, AttemptCeiling: pol.MaxAttempts},
			false,
			e.clock(),
		)
		e.history.Record(ce)
		e.notifier.Emit(events.Event{Name: events.EventBreakerOpened, ServiceKey: key, Error: ce, At: ce.OccurredAt})
		return zero, &CircuitOpenError{Key: key}
	}

	for attempt := 1; attempt <= pol.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := e.sleep(ctx, backoff.Delay(attempt-1, pol)); err != nil {
				return zero, err
			}
		}

		val, err := op(ctx)
		if err == nil {
			e.registry.RecordSuccess(key)
			if attempt > 1 {
				recov := classify.New(
					classify.KindUnknown,
					classify.SeverityLow,
					fmt.Sprintf("operation recovered after %d attempts", attempt),
					classify.ErrorContext{OperationContext: opCtx, Attempt: attempt, AttemptCeiling: pol.MaxAttempts},
					false,
					e.clock(),
				)
				e.notifier.Emit(events.Event{Name: events.EventRecovery, ServiceKey: key, Error: recov, At: recov.OccurredAt})
			}
			return val, nil
		}

		ce := classify.ClassifyAt(err, classify.ErrorContext{
			OperationContext: opCtx,
			Attempt:          attempt,
			AttemptCeiling:   pol.MaxAttempts,
		}, e.clock())
		e.history.Record(ce)
		e.notifier.Emit(events.Event{Name: events.EventError, ServiceKey: key, Error: ce, At: ce.OccurredAt})

		if attempt < pol.MaxAttempts && ce.Retryable {
			e.notifier.Emit(events.Event{Name: events.EventRetry, ServiceKey: key, Error: ce, At: ce.OccurredAt})
			continue
		}

		e.registry.RecordFailure(key)
		return val, err
	}

	// The loop always returns from its body; reaching here is a defect, not
	// a domain outcome.
	return zero, fmt.Errorf("aegis: retry loop for %s exited without an outcome", key)
}

func (e *Executor) clockFn() func() time.Time {
	if e.clock != nil {
		return e.clock
	}
	return time.Now
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)

	defer func() {
		if !timer.Stop() {
			select {
			case <-timer.C: // drain any pending tick so the channel doesn't retain value
			default:
			}
		}
	}()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
