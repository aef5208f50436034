package domain

import "errors"

// Failure classes for external collaborator calls. Components wrap the
// underlying error with one of these sentinels so callers can branch on
// class with errors.Is without knowing the transport.
var (
	// ErrTransient marks a retryable network-level failure.
	ErrTransient = errors.New("transient network error")

	// ErrVenueRejected marks a terminal refusal by the execution venue
	// (invalid asset, insufficient balance, slippage bound). Retrying the
	// same request will not succeed.
	ErrVenueRejected = errors.New("venue rejected")

	// ErrAmbiguousOutcome marks a submission whose outcome is neither
	// confirmed filled nor confirmed failed. The attempt must be
	// reconciled on chain before any retry.
	ErrAmbiguousOutcome = errors.New("ambiguous outcome")

	// ErrUnavailable marks missing upstream data (score or price).
	// Risk gating fails closed on it; monitoring pauses and waits.
	ErrUnavailable = errors.New("upstream data unavailable")

	// ErrInvalidOrder marks a swap order violating its invariants.
	ErrInvalidOrder = errors.New("invalid swap order")

	// ErrConfig marks a fatal configuration problem. It is the only
	// class allowed to abort startup.
	ErrConfig = errors.New("configuration error")
)

// Retryable reports whether the error class permits a blind retry.
// Ambiguous outcomes are deliberately excluded: they require
// reconciliation first.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
