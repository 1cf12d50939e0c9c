package backoff

import (
	"testing"
	"time"
)

func TestDelay_NoJitter(t *testing.T) {
	pol := Policy{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
		Factor:       2,
	}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: 1 * time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 4 * time.Second},
		{attempt: 4, want: 8 * time.Second},
		{attempt: 5, want: 10 * time.Second}, // capped
		{attempt: 6, want: 10 * time.Second},
	}

	for _, tc := range cases {
		if got := Delay(tc.attempt, pol); got != tc.want {
			t.Fatalf("attempt=%d: delay=%v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestDelay_JitterWithinBounds(t *testing.T) {
	pol := Policy{
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
		Factor:       2,
		Jitter:       true,
	}

	for attempt := 1; attempt <= 5; attempt++ {
		base := Delay(attempt, Policy{InitialDelay: pol.InitialDelay, MaxDelay: pol.MaxDelay, Factor: pol.Factor})
		lo := time.Duration(float64(base) * 0.75)
		hi := time.Duration(float64(base) * 1.25)

		for i := 0; i < 200; i++ {
			d := Delay(attempt, pol)
			if d < lo || d > hi {
				t.Fatalf("attempt=%d: delay=%v outside [%v, %v]", attempt, d, lo, hi)
			}
			if d < MinDelay {
				t.Fatalf("attempt=%d: delay=%v below floor %v", attempt, d, MinDelay)
			}
		}
	}
}

func TestDelay_JitterFloor(t *testing.T) {
	pol := Policy{
		InitialDelay: 1 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Factor:       2,
		Jitter:       true,
	}

	for i := 0; i < 100; i++ {
		if d := Delay(1, pol); d < MinDelay {
			t.Fatalf("delay=%v, want >= %v", d, MinDelay)
		}
	}
}

func TestDelay_AttemptFloor(t *testing.T) {
	pol := Policy{InitialDelay: 1 * time.Second, MaxDelay: 10 * time.Second, Factor: 2}
	if got := Delay(0, pol); got != 1*time.Second {
		t.Fatalf("delay=%v, want 1s", got)
	}
	if got := Delay(-3, pol); got != 1*time.Second {
		t.Fatalf("delay=%v, want 1s", got)
	}
}

func TestNormalize_FillsDefaults(t *testing.T) {
	got := Policy{}.Normalize()
	want := Default()
	want.Jitter = false // explicit zero value is kept
	if got != want {
		t.Fatalf("normalized=%+v, want %+v", got, want)
	}
}

func TestNormalize_KeepsExplicitValues(t *testing.T) {
	p := Policy{MaxAttempts: 7, InitialDelay: 50 * time.Millisecond, MaxDelay: time.Second, Factor: 3, Jitter: true}
	if got := p.Normalize(); got != p {
		t.Fatalf("normalized=%+v, want %+v", got, p)
	}
}
