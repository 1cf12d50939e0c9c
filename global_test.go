package aegis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aponysus/aegis/backoff"
)

func resetGlobalGuard() {
	globalGuard = nil
	globalOnce = sync.Once{}
}

func TestDefault_LazyInit(t *testing.T) {
	resetGlobalGuard()
	t.Cleanup(func() {
		Cleanup()
		resetGlobalGuard()
	})

	g1 := Default()
	if g1 == nil {
		t.Fatal("expected guard")
	}
	g2 := Default()
	if g1 != g2 {
		t.Fatal("expected Default to return the same instance")
	}
}

func TestInit_BeforeDefault(t *testing.T) {
	resetGlobalGuard()
	t.Cleanup(resetGlobalGuard)

	custom := New(WithoutSweeps())
	t.Cleanup(custom.Cleanup)
	Init(custom)

	if got := Default(); got != custom {
		t.Fatalf("got %p, want %p", got, custom)
	}
}

func TestInit_AfterDefaultIgnored(t *testing.T) {
	resetGlobalGuard()
	t.Cleanup(func() {
		Cleanup()
		resetGlobalGuard()
	})

	orig := Default()
	custom := New(WithoutSweeps())
	t.Cleanup(custom.Cleanup)
	Init(custom)

	if got := Default(); got != orig {
		t.Fatalf("got %p, want %p", got, orig)
	}
}

func TestInit_IgnoresNil(t *testing.T) {
	resetGlobalGuard()
	t.Cleanup(func() {
		Cleanup()
		resetGlobalGuard()
	})

	Init(nil)
	if Default() == nil {
		t.Fatal("expected global guard to initialize")
	}
}

func TestGlobal_ExecuteRoutesThroughInitGuard(t *testing.T) {
	resetGlobalGuard()
	t.Cleanup(resetGlobalGuard)

	custom := New(
		WithoutSweeps(),
		WithDefaultPolicy(backoff.Policy{
			MaxAttempts:  2,
			InitialDelay: time.Millisecond,
			MaxDelay:     time.Second,
			Factor:       2,
		}),
	)
	t.Cleanup(custom.Cleanup)
	Init(custom)

	calls := 0
	err := Execute(context.Background(), OperationContext{Service: "svc", Operation: "op"}, func(context.Context) error {
		calls++
		return errors.New("connection refused")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Fatalf("calls=%d, want 2 from the installed guard's policy", calls)
	}
	if got := Statistics(0).Total; got != 2 {
		t.Fatalf("global statistics total=%d, want 2", got)
	}
}
