package classify

import "time"

// Kind buckets a failure into the taxonomy used for retry decisions.
type Kind string

const (
	KindConnection Kind = "connection"
	KindTimeout    Kind = "timeout"
	KindValidation Kind = "validation"
	KindAPI        Kind = "api"
	KindParsing    Kind = "parsing"
	KindUnknown    Kind = "unknown"
)

// Kinds returns every kind in a stable order, for exhaustive aggregation maps.
func Kinds() []Kind {
	return []Kind{KindConnection, KindTimeout, KindValidation, KindAPI, KindParsing, KindUnknown}
}

// Severity ranks how serious a classified failure is.
//
// SeverityCritical is reserved for the host application; Classify never
// produces it.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities returns every severity in ascending order.
func Severities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// OperationContext describes one logical call site being protected.
// It is immutable per call.
type OperationContext struct {
	Service       string
	Operation     string
	CorrelationID string

	// MaxAttempts, when > 0, overrides the policy attempt ceiling for this call.
	MaxAttempts int

	Metadata map[string]string
}

// Key returns the service key identifying one circuit breaker's scope.
func (c OperationContext) Key() string {
	return c.Service + ":" + c.Operation
}

// ErrorContext is the operation context plus the attempt that failed.
type ErrorContext struct {
	OperationContext

	Attempt        int // 1-based
	AttemptCeiling int
}

// ClassifiedError is the taxonomy-tagged description of a single failed
// attempt. Created exactly once per occurrence and immutable thereafter.
type ClassifiedError struct {
	ID            string
	Kind          Kind
	Severity      Severity
	Message       string
	Context       ErrorContext
	Retryable     bool
	RecoveryHints []string
	OccurredAt    time.Time
}
