// Package apperr defines the error taxonomy shared by every component:
// authorization, validation, transient-upstream, permanent-upstream, and
// integrity-conflict failures, each handled differently by callers.
package apperr

import "errors"

// Sentinel kinds. Wrap with fmt.Errorf("...: %w", ErrX) to attach detail
// while keeping errors.Is/errors.As working.
var (
	// ErrNotFound means the requested entity does not belong to the
	// caller's tenant, or does not exist. Treated identically to
	// ErrAccessDenied to avoid an existence oracle.
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied means a cross-tenant or cross-folder access attempt.
	ErrAccessDenied = errors.New("access denied")

	// ErrValidation means malformed input rejected before any external call.
	ErrValidation = errors.New("validation failed")

	// ErrConflict means a unique-key violation (duplicate folder, duplicate job).
	ErrConflict = errors.New("conflict")

	// ErrTransient means a retryable upstream failure (rate limit, timeout, 5xx).
	ErrTransient = errors.New("transient upstream failure")

	// ErrPermanent means a terminal upstream failure (unsupported MIME, 404, revoked auth).
	ErrPermanent = errors.New("permanent upstream failure")
)

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsPermanent reports whether err should terminate the job without retry.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
