package shared

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Domain errors used across the scheduling engine.
var (
	// ErrNotFound indicates that a task or user lookup missed.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates that input validation failed
	// (schedule contradiction, past start time, malformed request).
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized indicates that the request lacks a valid API token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict indicates a stale-state write: the task changed between
	// read and conditional update. The caller should retry the operation.
	ErrConflict = errors.New("conflict")

	// ErrOrphanedEvent indicates a firing callback that references a task
	// which is no longer eligible to fire. Self-heals by deleting the job.
	ErrOrphanedEvent = errors.New("orphaned event")

	// ErrInternal indicates an internal error.
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvariantViolated indicates that a scheduling invariant was broken.
	ErrInvariantViolated = errors.New("invariant violated")

	// ErrDependencyFailure indicates that the job queue, database or an
	// outbound channel failed.
	ErrDependencyFailure = errors.New("dependency failure")
)

// Kind represents a category of error for classification and handling.
type Kind int

const (
	// KindUnknown represents an unclassified error
	KindUnknown Kind = iota
	// KindNotFound represents lookup misses
	KindNotFound
	// KindValidation represents input validation errors
	KindValidation
	// KindUnauthorized represents authentication errors
	KindUnauthorized
	// KindConflict represents stale-state (optimistic concurrency) errors
	KindConflict
	// KindOrphanedEvent represents callbacks for no-longer-active tasks
	KindOrphanedEvent
	// KindInternal represents internal errors
	KindInternal
	// KindTimeout represents timeout errors
	KindTimeout
	// KindInvariantViolated represents scheduling rule violations
	KindInvariantViolated
	// KindDependencyFailure represents external collaborator failures
	KindDependencyFailure
	// KindCanceled represents context cancellation
	KindCanceled
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindValidation:
		return "Validation"
	case KindUnauthorized:
		return "Unauthorized"
	case KindConflict:
		return "Conflict"
	case KindOrphanedEvent:
		return "OrphanedEvent"
	case KindInternal:
		return "Internal"
	case KindTimeout:
		return "Timeout"
	case KindInvariantViolated:
		return "InvariantViolated"
	case KindDependencyFailure:
		return "DependencyFailure"
	case KindCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// kindToSentinel maps error kinds to their corresponding sentinel errors.
var kindToSentinel = map[Kind]error{
	KindNotFound:          ErrNotFound,
	KindValidation:        ErrValidation,
	KindUnauthorized:      ErrUnauthorized,
	KindConflict:          ErrConflict,
	KindOrphanedEvent:     ErrOrphanedEvent,
	KindInternal:          ErrInternal,
	KindTimeout:           ErrTimeout,
	KindInvariantViolated: ErrInvariantViolated,
	KindDependencyFailure: ErrDependencyFailure,
}

// kindPriorities defines the deterministic order for error classification.
// Higher priority (lower index) kinds are checked first in KindOf.
var kindPriorities = []struct {
	kind Kind
	err  error
}{
	{KindCanceled, nil},       // context.Canceled (special case)
	{KindTimeout, ErrTimeout}, // timeout errors have high priority
	{KindOrphanedEvent, ErrOrphanedEvent},
	{KindNotFound, ErrNotFound},
	{KindValidation, ErrValidation},
	{KindUnauthorized, ErrUnauthorized},
	{KindConflict, ErrConflict},
	{KindDependencyFailure, ErrDependencyFailure},
	{KindInternal, ErrInternal},
	{KindInvariantViolated, ErrInvariantViolated},
}

// KindOf returns the Kind of the given error by checking against known
// sentinel errors. It traverses the error chain using a deterministic
// priority order; for errors created with errors.Join, the first matching
// kind in priority order wins. Returns KindUnknown for unrecognized errors.
//
// Example:
//
//	switch shared.KindOf(err) {
//	case shared.KindNotFound:
//	    return http.StatusNotFound
//	case shared.KindValidation:
//	    return http.StatusBadRequest
//	case shared.KindConflict:
//	    return http.StatusConflict
//	default:
//	    return http.StatusInternalServerError
//	}
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	for _, priority := range kindPriorities {
		switch priority.kind {
		case KindCanceled:
			if IsCanceled(err) {
				return KindCanceled
			}
		case KindTimeout:
			if IsTimeout(err) {
				return KindTimeout
			}
		default:
			if priority.err != nil && errors.Is(err, priority.err) {
				return priority.kind
			}
		}
	}

	return KindUnknown
}

// HasKind reports whether the given error has the specified kind.
// Equivalent to KindOf(err) == kind but reads better at call sites,
// especially for KindCanceled and KindTimeout which have detection logic
// beyond a plain errors.Is check.
func HasKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// SentinelOf returns the sentinel error for the given Kind.
// For KindUnknown and KindCanceled, it returns nil.
func SentinelOf(kind Kind) error {
	if sentinel, exists := kindToSentinel[kind]; exists {
		return sentinel
	}
	return nil
}

// MarkKind wraps an error with the appropriate sentinel error for the given
// kind, preserving the original error through error wrapping. Both
// KindOf(MarkKind(err, kind)) == kind and errors.Is(MarkKind(err, kind), err)
// hold afterwards. If err is nil, returns the sentinel error for the kind.
// Idempotent: marking an error with a kind it already has returns it
// unchanged.
//
// Typical use is adapting collaborator errors to domain errors:
//
//	if err := repo.GetByID(ctx, id); err != nil {
//	    if errors.Is(err, pgx.ErrNoRows) {
//	        return shared.MarkKind(err, shared.KindNotFound)
//	    }
//	    return shared.MarkKind(err, shared.KindDependencyFailure)
//	}
func MarkKind(err error, kind Kind) error {
	if err == nil {
		return SentinelOf(kind)
	}

	switch kind {
	case KindUnknown, KindCanceled:
		return err // no sentinel to mark with
	}

	sentinel := SentinelOf(kind)
	if sentinel == nil {
		return err
	}

	if KindOf(err) == kind {
		return err
	}

	return fmt.Errorf("%w: %w", sentinel, err)
}

// Wrap wraps an error with additional context.
// It returns a new error that formats as "context: err".
// If err is nil, Wrap returns nil.
// If context is empty, returns the original error.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	if context == "" {
		return err
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	context := fmt.Sprintf(format, args...)
	if context == "" {
		return err
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Invariant checks a condition and returns an error if it's false.
func Invariant(condition bool, message string) error {
	if condition {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvariantViolated, message)
}

// InvariantF checks a condition and returns a formatted error if it's false.
func InvariantF(condition bool, format string, args ...interface{}) error {
	if condition {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%w: %s", ErrInvariantViolated, message)
}

// IsCanceled reports whether the error indicates a canceled context.
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled)
}

// IsTimeout reports whether the error indicates a timeout.
// It checks context.DeadlineExceeded, net.Error timeouts, and ErrTimeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

// IsNotFound reports whether the error indicates a lookup miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether the error indicates input validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsUnauthorized reports whether the error indicates a missing or bad token.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsConflict reports whether the error indicates a stale-state write.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsOrphanedEvent reports whether the error indicates a firing callback for
// a task no longer eligible to fire.
func IsOrphanedEvent(err error) bool {
	return errors.Is(err, ErrOrphanedEvent)
}

// IsInternal reports whether the error indicates an internal error.
func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}

// IsInvariantViolated reports whether the error indicates a broken
// scheduling rule.
func IsInvariantViolated(err error) bool {
	return errors.Is(err, ErrInvariantViolated)
}

// IsDependencyFailure reports whether the error indicates an external
// collaborator failure.
func IsDependencyFailure(err error) bool {
	return errors.Is(err, ErrDependencyFailure)
}

// Cause returns the underlying cause of the error by repeatedly unwrapping
// it. For errors.Join, returns the first root cause found in breadth-first
// order. If the error doesn't wrap anything, it returns the error itself.
func Cause(err error) error {
	if err == nil {
		return nil
	}

	all := UnwrapAll(err)
	if len(all) == 0 {
		return err
	}

	for i := len(all) - 1; i >= 0; i-- {
		candidate := all[i]

		hasNested := false
		if unwrapper, ok := candidate.(interface{ Unwrap() []error }); ok {
			hasNested = len(unwrapper.Unwrap()) > 0
		} else {
			hasNested = errors.Unwrap(candidate) != nil
		}

		if !hasNested {
			return candidate
		}
	}

	return err
}

// UnwrapAll returns all errors in the error chain, from outermost to
// innermost. For errors created with errors.Join, this flattens the whole
// error graph. If err is nil, returns a nil slice.
func UnwrapAll(err error) []error {
	if err == nil {
		return nil
	}

	var result []error
	seen := make(map[error]bool) // cycle protection
	queue := []error{err}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if seen[current] {
			continue
		}
		seen[current] = true
		result = append(result, current)

		if unwrapper, ok := current.(interface{ Unwrap() []error }); ok {
			queue = append(queue, unwrapper.Unwrap()...)
		} else if nested := errors.Unwrap(current); nested != nil {
			queue = append(queue, nested)
		}
	}

	return result
}
