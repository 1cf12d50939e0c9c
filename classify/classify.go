package classify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Classify maps err to its taxonomy description. It is deterministic for
// the same error text and type; the only clock use is stamping OccurredAt.
func Classify(err error, ectx ErrorContext) *ClassifiedError {
	return ClassifyAt(err, ectx, time.Now())
}

// ClassifyAt is Classify with an explicit occurrence timestamp, for callers
// that inject their own clock.
func ClassifyAt(err error, ectx ErrorContext, at time.Time) *ClassifiedError {
	msg := err.Error()
	kind := kindOf(err, msg)

	return &ClassifiedError{
		ID:            uuid.NewString(),
		Kind:          kind,
		Severity:      severityOf(kind, msg),
		Message:       msg,
		Context:       ectx,
		Retryable:     retryable(kind, msg),
		RecoveryHints: Hints(kind),
		OccurredAt:    at,
	}
}

// New builds a synthetic classified error that did not originate from a raw
// failure (open-breaker short circuits, recovery notices).
func New(kind Kind, severity Severity, message string, ectx ErrorContext, retryable bool, at time.Time) *ClassifiedError {
	return &ClassifiedError{
		ID:            uuid.NewString(),
		Kind:          kind,
		Severity:      severity,
		Message:       message,
		Context:       ectx,
		Retryable:     retryable,
		RecoveryHints: Hints(kind),
		OccurredAt:    at,
	}
}

// kindOf applies the categorization policy: first match wins, matching
// case-insensitively over the message and the concrete error type name.
func kindOf(err error, msg string) Kind {
	text := strings.ToLower(msg)
	typeName := strings.ToLower(fmt.Sprintf("%T", err))

	switch {
	case containsAny(text, "network", "connection", "econnrefused", "enotfound"):
		return KindConnection
	case strings.Contains(text, "timeout") || strings.Contains(typeName, "timeout") || isTimeout(err):
		return KindTimeout
	case containsAny(text, "validation", "invalid", "required", "schema"):
		return KindValidation
	case containsAny(text, "api", "http", "status", "response"):
		return KindAPI
	case containsAny(text, "parse", "json", "syntax"):
		return KindParsing
	default:
		return KindUnknown
	}
}

func severityOf(kind Kind, msg string) Severity {
	text := strings.ToLower(msg)

	switch kind {
	case KindConnection:
		if strings.Contains(text, "server") {
			return SeverityHigh
		}
		return SeverityMedium
	case KindTimeout:
		return SeverityMedium
	case KindValidation:
		return SeverityLow
	case KindAPI:
		if strings.Contains(text, "5") {
			return SeverityHigh
		}
		return SeverityMedium
	case KindParsing:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

func retryable(kind Kind, msg string) bool {
	switch kind {
	case KindConnection, KindTimeout:
		return true
	case KindAPI:
		// 5xx-class failures are worth retrying; 4xx-class are not.
		text := strings.ToLower(msg)
		return containsAny(text, "5", "502", "503", "504")
	case KindValidation, KindParsing:
		// Retrying a malformed request will not change the outcome.
		return false
	default:
		// Optimistic for unrecognized failures.
		return true
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
