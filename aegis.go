// Package aegis protects calls to unreliable remote services with retries,
// per-service circuit breakers, error classification and a bounded error
// history.
//
// The package is consumed in-process; hosts supply operations to Execute
// and subscribe to the emitted lifecycle events for display or logging.
package aegis

import (
	"context"
	"time"

	"github.com/aponysus/aegis/backoff"
	"github.com/aponysus/aegis/circuit"
	"github.com/aponysus/aegis/classify"
	"github.com/aponysus/aegis/events"
	"github.com/aponysus/aegis/history"
	"github.com/aponysus/aegis/retry"
)

// OperationContext describes one protected call site.
type OperationContext = classify.OperationContext

// Guard bundles the executor with its shared registry, history and
// notifier, and owns the background sweeps.
type Guard struct {
	notifier *events.Notifier
	registry *circuit.Registry
	history  *history.Store
	exec     *retry.Executor

	sweeps bool
}

type options struct {
	policy  *backoff.Policy
	breaker circuit.Config
	history history.Config
	clock   func() time.Time
	sweeps  bool
}

// Option configures a Guard.
type Option func(*options)

// WithDefaultPolicy sets the retry policy used when a call supplies none.
func WithDefaultPolicy(p backoff.Policy) Option {
	return func(o *options) { o.policy = &p }
}

// WithBreakerConfig sets the registry-wide breaker settings.
func WithBreakerConfig(cfg circuit.Config) Option {
	return func(o *options) { o.breaker = cfg }
}

// WithHistoryConfig sets the error history settings.
func WithHistoryConfig(cfg history.Config) Option {
	return func(o *options) { o.history = cfg }
}

// WithClock sets the clock used by the executor, registry and history,
// primarily for tests.
func WithClock(f func() time.Time) Option {
	return func(o *options) { o.clock = f }
}

// WithoutSweeps disables the background history pruning and breaker phase
// reconciliation loops, for deterministic execution in tests.
func WithoutSweeps() Option {
	return func(o *options) { o.sweeps = false }
}

// New creates a Guard. Unless WithoutSweeps is given, the background sweeps
// start immediately and run until Cleanup.
func New(opts ...Option) *Guard {
	o := &options{sweeps: true}
	for _, opt := range opts {
		opt(o)
	}

	g := &Guard{
		notifier: events.NewNotifier(),
		registry: circuit.NewRegistry(o.breaker),
		history:  history.NewStore(o.history),
		sweeps:   o.sweeps,
	}
	if o.clock != nil {
		g.registry.SetClock(o.clock)
		g.history.SetClock(o.clock)
	}
	g.registry.OnTransition(retry.BreakerEvents(g.notifier, o.clock))

	execOpts := []retry.ExecutorOption{
		retry.WithRegistry(g.registry),
		retry.WithHistory(g.history),
		retry.WithNotifier(g.notifier),
	}
	if o.policy != nil {
		execOpts = append(execOpts, retry.WithDefaultPolicy(*o.policy))
	}
	if o.clock != nil {
		execOpts = append(execOpts, retry.WithClock(o.clock))
	}
	g.exec = retry.NewExecutor(execOpts...)

	if g.sweeps {
		g.registry.StartSweep()
		g.history.StartSweep()
	}
	return g
}

// Execute runs op protected by the retry and circuit-breaking policy for
// opCtx. On failure the caller receives the raw operation error; the
// classified form feeds history and events only.
func (g *Guard) Execute(ctx context.Context, opCtx OperationContext, op retry.Operation, opts ...retry.CallOption) error {
	return g.exec.Do(ctx, opCtx, op, opts...)
}

// ExecuteValue is Execute for operations producing a value.
func ExecuteValue[T any](ctx context.Context, g *Guard, opCtx OperationContext, op retry.OperationValue[T], opts ...retry.CallOption) (T, error) {
	return retry.DoValue(ctx, g.exec, opCtx, op, opts...)
}

// Executor exposes the underlying executor for hosts that compose their own
// wiring.
func (g *Guard) Executor() *retry.Executor { return g.exec }

// Subscribe attaches h to events named name.
func (g *Guard) Subscribe(name string, h events.Handler) events.Subscription {
	return g.notifier.Subscribe(name, h)
}

// Unsubscribe detaches a previously attached handler.
func (g *Guard) Unsubscribe(sub events.Subscription) {
	g.notifier.Unsubscribe(sub)
}

// Notifier exposes the event notifier, e.g. for SubscribeAll.
func (g *Guard) Notifier() *events.Notifier { return g.notifier }

// Statistics aggregates the error history; window 0 covers everything.
func (g *Guard) Statistics(window time.Duration) history.Stats {
	return g.history.Statistics(window)
}

// Status snapshots every known circuit breaker.
func (g *Guard) Status() map[string]circuit.Snapshot {
	return g.registry.Status()
}

// Reset forces the breaker for key back to closed. It returns false for
// unknown keys.
func (g *Guard) Reset(key string) bool {
	return g.registry.Reset(key)
}

// Cleanup detaches all subscribers, clears the registry and history and
// stops the background sweeps. Hosts call it once at shutdown.
func (g *Guard) Cleanup() {
	g.registry.StopSweep()
	g.history.StopSweep()
	g.notifier.Close()
	g.registry.Clear()
	g.history.Clear()
}
