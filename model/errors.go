package model

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when the target entity vanished server-side between
// check and mutation. Remove-style operations treat it as a successful no-op,
// mutate-style operations (edit/delete) propagate it.
var ErrNotFound = errors.New("entity not found")

// ValidationError marks bad input shape: empty id, non-positive numeric id,
// self-target, over-long text. Always detected locally before any I/O and
// never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// NetworkError wraps timeout/connectivity failures of a backend call.
// Retryable at the caller's discretion, the underlying cause is preserved.
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string {
	return "network failure: " + e.Cause.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

func NewNetworkError(cause error) error {
	if cause == nil {
		return nil
	}
	return &NetworkError{Cause: cause}
}

func IsNetworkError(err error) bool {
	var n *NetworkError
	return errors.As(err, &n)
}

// ModerationBlockedError is not a system fault, it is a normal control-flow
// outcome of the publish path carrying the offending term(s).
type ModerationBlockedError struct {
	MatchedTerms []string
	Suggestion   string
}

func (e *ModerationBlockedError) Error() string {
	if len(e.MatchedTerms) == 0 {
		return "post blocked by moderation"
	}
	return fmt.Sprintf("post blocked by moderation, matched term %q", e.MatchedTerms[0])
}

func IsModerationBlocked(err error) bool {
	var m *ModerationBlockedError
	return errors.As(err, &m)
}
