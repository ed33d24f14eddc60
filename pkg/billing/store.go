package billing

import (
	"context"
	"time"
)

// Store defines persistence for subscriptions and processed-event records.
//
// ApplyTransition is the engine's single commit point: the subscription
// mutation, the event record, and the offer usage increment land atomically
// or not at all. A nil subscription commits a record-only outcome (ignored
// or rejected events). A non-empty offerID increments that offer's usage
// inside the same commit, so a failed transition never consumes coupon
// usage and a committed one consumes it exactly once.
//
// Implementations return ErrEventAlreadyProcessed when a record for the
// event ID already exists, and classify transient failures as
// ErrStoreTimeout / ErrStoreConflict so the service can retry the whole
// commit.
type Store interface {
	// GetByProviderID retrieves a subscription by the provider's identity.
	// Returns ErrSubscriptionNotFound if absent.
	GetByProviderID(ctx context.Context, providerSubID string) (*Subscription, error)

	// GetEvent retrieves a processed-event record.
	// Returns ErrEventNotFound if absent.
	GetEvent(ctx context.Context, eventID string) (*EventRecord, error)

	// ApplyTransition atomically commits the subscription mutation (nil for
	// record-only outcomes), the event record, and an optional offer usage
	// increment.
	ApplyTransition(ctx context.Context, sub *Subscription, record *EventRecord, offerID string) error

	// PruneEvents deletes records processed before the cutoff and reports
	// how many were removed. Pruning is a storage concern only; correctness
	// does not depend on retained records.
	PruneEvents(ctx context.Context, olderThan time.Time) (int64, error)
}

// OfferUsageCommitter is the offer-side hook a Store uses to commit usage
// increments inside its transaction boundary.
type OfferUsageCommitter interface {
	IncrementUsage(ctx context.Context, offerID string) error
}
