package retry

import (
	"log"
	"sync"
)

var (
	sharedExec *Executor
	sharedOnce sync.Once
)

// DefaultExecutor returns the process-wide executor, building one on first
// use when SetGlobal was never called. DoValue falls back to it for a nil
// executor, so library callers without explicit wiring share this instance.
func DefaultExecutor() *Executor {
	sharedOnce.Do(func() {
		if sharedExec == nil {
			sharedExec = NewExecutor()
		}
	})
	return sharedExec
}

// SetGlobal installs exec as the process-wide executor. It belongs in
// startup wiring, before anything reaches DefaultExecutor; afterwards the
// call logs a warning and changes nothing. A nil exec is ignored.
func SetGlobal(exec *Executor) {
	if exec == nil {
		return
	}

	// The unsynchronized read only exists to surface misordered startup
	// wiring; initialization itself is serialized by sharedOnce.
	if sharedExec != nil {
		log.Printf("retry: SetGlobal after the shared executor was already built; ignoring")
		return
	}

	sharedOnce.Do(func() {
		sharedExec = exec
	})
}
