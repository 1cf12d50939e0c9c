package aegis

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/aponysus/aegis/circuit"
	"github.com/aponysus/aegis/events"
	"github.com/aponysus/aegis/history"
	"github.com/aponysus/aegis/retry"
)

var (
	globalGuard *Guard
	globalOnce  sync.Once
)

// Default returns the shared, lazy-initialized Guard.
func Default() *Guard {
	globalOnce.Do(func() {
		if globalGuard == nil {
			globalGuard = New()
		}
	})
	return globalGuard
}

// Init sets the global Guard. It must be called before Default is used
// (e.g. at startup); later calls log a warning and do nothing.
func Init(g *Guard) {
	if g == nil {
		return
	}
	if globalGuard != nil {
		log.Printf("aegis: Init called after global guard already initialized; ignoring.")
		return
	}
	globalOnce.Do(func() {
		globalGuard = g
	})
}

// Execute runs op through the global Guard.
func Execute(ctx context.Context, opCtx OperationContext, op retry.Operation, opts ...retry.CallOption) error {
	return Default().Execute(ctx, opCtx, op, opts...)
}

// Subscribe attaches h to events named name on the global Guard.
func Subscribe(name string, h events.Handler) events.Subscription {
	return Default().Subscribe(name, h)
}

// Unsubscribe detaches a handler from the global Guard.
func Unsubscribe(sub events.Subscription) {
	Default().Unsubscribe(sub)
}

// Statistics aggregates the global Guard's error history.
func Statistics(window time.Duration) history.Stats {
	return Default().Statistics(window)
}

// Status snapshots the global Guard's breakers.
func Status() map[string]circuit.Snapshot {
	return Default().Status()
}

// Reset forces the global Guard's breaker for key back to closed.
func Reset(key string) bool {
	return Default().Reset(key)
}

// Cleanup shuts the global Guard down.
func Cleanup() {
	Default().Cleanup()
}
