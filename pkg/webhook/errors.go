package webhook

import "errors"

var (
	// ErrInvalidSignature marks a payload whose signature does not verify.
	// The delivery must be rejected without any state change.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	ErrInvalidConfiguration = errors.New("invalid webhook configuration")
	ErrInvalidPayload       = errors.New("invalid webhook payload")
)
