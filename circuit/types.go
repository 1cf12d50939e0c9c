package circuit

import "time"

// Phase is the state of a circuit breaker.
type Phase int

const (
	PhaseClosed   Phase = iota // Normal operation, attempts allowed.
	PhaseOpen                  // Attempts fast-failed until the probe time.
	PhaseHalfOpen              // Probing mode.
)

func (p Phase) String() string {
	switch p {
	case PhaseClosed:
		return "closed"
	case PhaseOpen:
		return "open"
	case PhaseHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds the registry-wide breaker settings. They apply to every key;
// there is no per-key configuration.
type Config struct {
	// FailureThreshold is the consecutive-failure count that opens a breaker.
	FailureThreshold int

	// RecoveryTimeout is how long an open breaker waits before probing.
	RecoveryTimeout time.Duration

	// MonitoringPeriod is the interval of the background phase sweep.
	MonitoringPeriod time.Duration
}

// DefaultConfig returns the registry defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		MonitoringPeriod: 60 * time.Second,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = def.RecoveryTimeout
	}
	if c.MonitoringPeriod <= 0 {
		c.MonitoringPeriod = def.MonitoringPeriod
	}
	return c
}

// Snapshot is a point-in-time copy of one breaker's state.
type Snapshot struct {
	Phase               Phase
	ConsecutiveFailures int
	LastFailureAt       time.Time // zero if no failure recorded
	NextProbeAt         time.Time // meaningful only while open
	HalfOpenSuccesses   int       // meaningful only while half-open
}

// TransitionFunc receives breaker transitions worth announcing: entering
// open, and closing out of half-open. Resets and probe promotions are
// silent.
type TransitionFunc func(key string, from, to Phase)
