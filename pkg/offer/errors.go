package offer

import "errors"

var (
	// ErrCurrencyMismatch marks a fixed-amount offer denominated in a
	// currency other than the plan's. The offer is dropped from the
	// candidate set; resolution continues with the rest.
	ErrCurrencyMismatch = errors.New("offer currency does not match plan currency")

	ErrOfferNotFound = errors.New("offer not found")

	// ErrUsageExceeded marks an atomic usage increment that found no
	// remaining capacity, typically because a concurrent commit took the
	// last slot between resolution and commit.
	ErrUsageExceeded = errors.New("offer usage limit exceeded")
)
