package engine

import (
	"errors"
	"fmt"
)

// ScoringErrorKind classifies scoring failures. Each kind carries a
// documented default-value policy applied by the component that recovers it.
type ScoringErrorKind int

const (
	// KindDataUnavailable means the persistence layer was unreachable.
	// Fatal for the request; the orchestrator surfaces it to the caller.
	KindDataUnavailable ScoringErrorKind = iota

	// KindMalformedInput means a stored field could not be interpreted.
	// Recovered locally as a neutral/zero default and logged.
	KindMalformedInput

	// KindModelUntrained means the collaborative model has no trained state.
	// The collaborative score defaults to 0.5.
	KindModelUntrained

	// KindPartialScoringFailure means a single candidate's scoring failed.
	// The candidate receives a floor score and an explanatory reason code
	// rather than being dropped.
	KindPartialScoringFailure
)

// String returns the kind's stable label.
func (k ScoringErrorKind) String() string {
	switch k {
	case KindDataUnavailable:
		return "data_unavailable"
	case KindMalformedInput:
		return "malformed_input"
	case KindModelUntrained:
		return "model_untrained"
	case KindPartialScoringFailure:
		return "partial_scoring_failure"
	default:
		return "unknown"
	}
}

// ScoringError wraps a failure in one sub-signal or pipeline stage.
type ScoringError struct {
	Kind ScoringErrorKind
	Op   string // component and operation, e.g. "context.reciprocity"
	Err  error
}

// Error implements the error interface.
func (e *ScoringError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *ScoringError) Unwrap() error { return e.Err }

// newScoringError builds a ScoringError for the given operation.
func newScoringError(kind ScoringErrorKind, op string, err error) *ScoringError {
	return &ScoringError{Kind: kind, Op: op, Err: err}
}

// IsKind reports whether err is a ScoringError of the given kind.
func IsKind(err error, kind ScoringErrorKind) bool {
	var se *ScoringError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}
