// Package apperrors is the typed error taxonomy shared by collectors, the
// normalizer, gates and the snapshot writer (§7). Sentinel values classify
// failures so callers can branch with errors.Is/errors.As instead of
// string-matching; go-faster/errors supplies stack-aware wrapping on top of
// the standard %w chain.
package apperrors

import "github.com/go-faster/errors"

// Sentinel causes. Wrap with errors.Wrap(Sentinel, "detail") at the point of
// failure so errors.Is(err, ErrTransientSource) still matches upstream.
var (
	// ErrTransientSource is a retryable external-source failure: network,
	// 5xx, rate-limit. The collector framework retries it on the next tick.
	ErrTransientSource = errors.New("transient source error")

	// ErrAuthSource means the credential for a source is missing or
	// rejected. The runner records it in sync_state and runs the collector
	// again on its next interval, like any other collector failure.
	ErrAuthSource = errors.New("source authentication error")

	// ErrParse means a single artifact failed to decode; the collector
	// skips it and continues the page.
	ErrParse = errors.New("artifact parse error")

	// ErrInvariant means a gate or normalizer step observed store state
	// that violates a documented invariant.
	ErrInvariant = errors.New("invariant violation")

	// ErrDerivation means a normalizer derivation could not be computed
	// (missing prerequisite data, not a data-quality issue).
	ErrDerivation = errors.New("derivation error")

	// ErrSnapshotWrite means the atomic snapshot write failed.
	ErrSnapshotWrite = errors.New("snapshot write error")
)

// Wrap is a thin re-export so callers doing collector/normalizer/gate work
// depend on one error package.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }
