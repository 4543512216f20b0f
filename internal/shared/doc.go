// Package shared contains common error types and utilities for error
// handling across the application without domain-specific logic.
//
// # Error Types and Classification
//
// This package provides a set of sentinel errors representing the failure
// conditions the scheduling engine distinguishes:
//
//   - ErrNotFound: task or user lookup missed
//   - ErrValidation: input validation failed
//   - ErrUnauthorized: authentication required
//   - ErrConflict: stale-state write, retry the operation
//   - ErrOrphanedEvent: firing callback for a no-longer-eligible task
//   - ErrInternal: internal error
//   - ErrTimeout: operation timed out
//   - ErrInvariantViolated: scheduling rule violation
//   - ErrDependencyFailure: job queue, database or outbound channel failed
//
// # Error Classification
//
// Use KindOf() to classify errors into categories:
//
//	switch shared.KindOf(err) {
//	case shared.KindNotFound:
//	    // handle lookup miss
//	case shared.KindConflict:
//	    // re-read and retry
//	default:
//	    // handle other errors
//	}
//
// Or use predicate functions for cleaner code:
//
//	if shared.IsConflict(err) {
//	    // re-read and retry
//	}
//
// # Kind Priority Table
//
// When multiple error kinds are present (e.g. with errors.Join), KindOf
// returns the highest priority kind:
//
//	Priority | Kind                  | Description
//	---------|-----------------------|--------------------
//	1        | KindCanceled          | Context cancellation (highest)
//	2        | KindTimeout           | Timeout/deadline errors
//	3        | KindOrphanedEvent     | Stray scheduled callbacks
//	4        | KindNotFound          | Lookup misses
//	5        | KindValidation        | Input validation failures
//	6        | KindUnauthorized      | Authentication required
//	7        | KindConflict          | Stale-state writes
//	8        | KindDependencyFailure | External collaborator failures
//	9        | KindInternal          | Internal errors
//	10       | KindInvariantViolated | Scheduling rule violations (lowest)
//
// # Error Wrapping and Marking
//
// Add context while preserving the original error:
//
//	if err := repo.GetByID(ctx, id); err != nil {
//	    return shared.Wrapf(err, "load task %s", id)
//	}
//
// Classify third-party errors into the taxonomy:
//
//	if errors.Is(err, pgx.ErrNoRows) {
//	    return shared.MarkKind(err, shared.KindNotFound)
//	}
//
// Both shared.IsNotFound(marked) and errors.Is(marked, pgx.ErrNoRows)
// hold afterwards.
//
// # Invariants
//
// Use the Invariant helpers for scheduling rule checks:
//
//	if err := shared.Invariant(t.TriggerCount <= t.Occurrences, "trigger count within plan"); err != nil {
//	    return err
//	}
//
// # Adapter Integration
//
// Map kinds to transport codes in adapter layers, not here. The HTTP
// layer, for example, maps KindNotFound to 404, KindValidation to 422,
// KindConflict to 409 and KindDependencyFailure to 502.
//
// Keep error messages lowercase, without punctuation, composable under
// wrapping.
package shared
