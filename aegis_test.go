package aegis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aponysus/aegis"
	"github.com/aponysus/aegis/backoff"
	"github.com/aponysus/aegis/circuit"
	"github.com/aponysus/aegis/events"
	"github.com/aponysus/aegis/retry"
)

func newGuard(t *testing.T, opts ...aegis.Option) *aegis.Guard {
	t.Helper()
	g := aegis.New(append([]aegis.Option{aegis.WithoutSweeps()}, opts...)...)
	t.Cleanup(g.Cleanup)
	return g
}

func TestGuard_ExecuteSuccess(t *testing.T) {
	g := newGuard(t)

	val, err := aegis.ExecuteValue(context.Background(), g, aegis.OperationContext{Service: "svc", Operation: "op"},
		func(context.Context) (string, error) { return "ok", nil })
	if err != nil || val != "ok" {
		t.Fatalf("val=%q err=%v", val, err)
	}
}

func TestGuard_EndToEnd(t *testing.T) {
	g := newGuard(t, aegis.WithDefaultPolicy(backoff.Policy{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Factor:       2,
	}))

	var errEvents, retryEvents int
	subErr := g.Subscribe(events.EventError, func(events.Event) { errEvents++ })
	g.Subscribe(events.EventRetry, func(events.Event) { retryEvents++ })

	opCtx := aegis.OperationContext{Service: "svc", Operation: "op"}
	calls := 0
	err := g.Execute(context.Background(), opCtx, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if calls != 3 || errEvents != 2 || retryEvents != 2 {
		t.Fatalf("calls=%d errEvents=%d retryEvents=%d", calls, errEvents, retryEvents)
	}

	stats := g.Statistics(0)
	if stats.Total != 2 {
		t.Fatalf("total=%d, want 2", stats.Total)
	}

	g.Unsubscribe(subErr)
	g.Execute(context.Background(), opCtx, func(context.Context) error { return errors.New("connection refused") })
	if errEvents != 2 {
		t.Fatalf("unsubscribed handler still invoked")
	}
}

func TestGuard_StatusAndReset(t *testing.T) {
	g := newGuard(t, aegis.WithBreakerConfig(circuit.Config{FailureThreshold: 2, RecoveryTimeout: time.Hour}))

	opCtx := aegis.OperationContext{Service: "svc", Operation: "op", MaxAttempts: 1}
	fail := func(context.Context) error { return errors.New("connection refused") }

	g.Execute(context.Background(), opCtx, fail)
	g.Execute(context.Background(), opCtx, fail)

	status := g.Status()
	if status["svc:op"].Phase != circuit.PhaseOpen {
		t.Fatalf("phase=%v, want open", status["svc:op"].Phase)
	}

	if err := g.Execute(context.Background(), opCtx, fail); !errors.Is(err, retry.ErrCircuitOpen) {
		t.Fatalf("err=%v, want ErrCircuitOpen", err)
	}

	if !g.Reset("svc:op") {
		t.Fatalf("reset failed for known key")
	}
	if g.Reset("unknown:op") {
		t.Fatalf("reset must return false for unknown key")
	}

	called := false
	if err := g.Execute(context.Background(), opCtx, func(context.Context) error {
		called = true
		return nil
	}); err != nil || !called {
		t.Fatalf("call after reset: err=%v called=%v", err, called)
	}
}

func TestGuard_CleanupDetachesAndClears(t *testing.T) {
	g := aegis.New(aegis.WithoutSweeps())

	var seen int
	g.Subscribe(events.EventError, func(events.Event) { seen++ })

	opCtx := aegis.OperationContext{Service: "svc", Operation: "op", MaxAttempts: 1}
	g.Execute(context.Background(), opCtx, func(context.Context) error { return errors.New("connection refused") })
	if seen != 1 {
		t.Fatalf("seen=%d, want 1", seen)
	}

	g.Cleanup()

	if total := g.Statistics(0).Total; total != 0 {
		t.Fatalf("history not cleared: total=%d", total)
	}
	if len(g.Status()) != 0 {
		t.Fatalf("registry not cleared")
	}
}
