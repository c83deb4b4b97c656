package core

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job id has no entry in the queue.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotCancellable is returned when cancellation is requested for a
	// job that is processing or already terminal.
	ErrJobNotCancellable = errors.New("job is not cancellable")

	// ErrInvalidPayload marks submission-time validation failures. Jobs are
	// never created for invalid payloads, so no retry applies.
	ErrInvalidPayload = errors.New("invalid webhook payload")

	// ErrIgnoredEvent marks webhook events that simply do not trigger an
	// analysis, such as uninteresting PR actions. Not an error condition.
	ErrIgnoredEvent = errors.New("event does not trigger analysis")

	// ErrNotEligible marks a PR that does not qualify for analysis under the
	// business rules. This is not a failure: the workflow surfaces it as a
	// successful "skipped" outcome.
	ErrNotEligible = errors.New("PR not eligible")
)

// IneligibleError wraps ErrNotEligible with the concrete reason, so callers
// can report why a PR was skipped.
type IneligibleError struct {
	Reason string
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("PR not eligible: %s", e.Reason)
}

func (e *IneligibleError) Unwrap() error {
	return ErrNotEligible
}
