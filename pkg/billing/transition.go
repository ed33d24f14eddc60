package billing

import "time"

// TransitionKind is the provider-agnostic classification of a webhook event.
type TransitionKind string

const (
	KindCreated       TransitionKind = "created"
	KindRenewed       TransitionKind = "renewed"
	KindPaymentFailed TransitionKind = "payment_failed"
	KindCanceled      TransitionKind = "canceled"
	KindPlanChanged   TransitionKind = "plan_changed"

	// KindIgnored marks provider event types this engine does not act on.
	// They are recorded as processed so redelivery stays a no-op.
	KindIgnored TransitionKind = "ignored"
)

// TransitionRequest is the closed, provider-agnostic form of a webhook
// event. Providers parse their loose payloads into this at the boundary;
// nothing downstream sees provider-specific data.
type TransitionRequest struct {
	Kind             TransitionKind
	ProviderSubID    string
	ApplicationID    string
	CustomerID       string
	PlanID           string
	CouponCode       string
	PeriodStart      time.Time
	PeriodEnd        time.Time
	PaymentConfirmed bool // Created events that confirm the initial payment
	CancelReason     string
}

// Event is one verified, parsed provider delivery.
type Event struct {
	ID           string // provider-assigned event ID, dedup key
	ProviderType string // original provider event name, for diagnostics
	OccurredAt   time.Time
	Request      TransitionRequest
}

// OutcomeStatus classifies what processing an event did.
type OutcomeStatus string

const (
	OutcomeApplied  OutcomeStatus = "applied"  // subscription state mutated
	OutcomeIgnored  OutcomeStatus = "ignored"  // recognized but intentionally without effect
	OutcomeRejected OutcomeStatus = "rejected" // business rejection, recorded, not retried
)

// Outcome is the durable result of processing one event. Replays of the
// same event ID return the stored Outcome unchanged.
type Outcome struct {
	Status         OutcomeStatus  `bson:"status"`
	Kind           TransitionKind `bson:"kind"`
	ProviderSubID  string         `bson:"provider_sub_id,omitempty"`
	SubscriptionID string         `bson:"subscription_id,omitempty"`
	State          Status         `bson:"state,omitempty"` // subscription state after processing
	Reason         string         `bson:"reason,omitempty"` // taxonomy kind for rejections
}

// EventRecord marks one provider event as processed. Its existence makes
// redelivery of the same event ID a no-op. Records are immutable and may be
// pruned after a retention window.
type EventRecord struct {
	EventID     string    `bson:"_id"`
	ProcessedAt time.Time `bson:"processed_at"`
	Outcome     Outcome   `bson:"outcome"`
}
