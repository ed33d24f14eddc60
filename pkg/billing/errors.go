package billing

import "errors"

var (
	// ErrInvalidTransition marks an event kind that is not valid for the
	// subscription's current state. It is a business rejection: the event is
	// recorded as processed and must not be redelivered.
	ErrInvalidTransition = errors.New("invalid subscription transition")

	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrEventNotFound        = errors.New("processed event record not found")

	// ErrEventAlreadyProcessed surfaces from the store when a commit races a
	// concurrent delivery of the same event ID.
	ErrEventAlreadyProcessed = errors.New("event already processed")

	// ErrMalformedEvent marks a payload that verified but cannot be parsed
	// into a transition request. Fatal; never retried.
	ErrMalformedEvent = errors.New("malformed provider event")

	// ErrStoreTimeout and ErrStoreConflict are transient: the commit is
	// all-or-nothing, so the whole event handling is safe to retry.
	ErrStoreTimeout  = errors.New("billing store timeout")
	ErrStoreConflict = errors.New("billing store conflict")
)

// IsTransient reports whether err is safe to retry wholesale.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStoreTimeout) || errors.Is(err, ErrStoreConflict)
}
