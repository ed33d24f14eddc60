package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/meayach/saasify-sub002/pkg/catalog"
)

// Status represents the lifecycle state of a subscription.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// Subscription is the billing relationship between a customer and a plan.
// It is created on the first successful "subscription created" event and
// never deleted; terminal states are retained for audit.
type Subscription struct {
	ID             uuid.UUID     `bson:"_id"`
	ProviderSubID  string        `bson:"provider_sub_id"` // provider's subscription identity, unique
	ApplicationID  string        `bson:"application_id"`
	CustomerID     string        `bson:"customer_id"`
	PlanID         string        `bson:"plan_id"`
	Price          catalog.Money `bson:"price"` // resolved per-period price, offer applied
	Status         Status        `bson:"status"`
	AppliedOfferID string        `bson:"applied_offer_id,omitempty"`
	CouponCode     string        `bson:"coupon_code,omitempty"` // coupon attached at creation, re-evaluated each resolution
	LastEventID    string        `bson:"last_event_id"`         // second dedup layer behind the event records
	PeriodStart    time.Time     `bson:"period_start"`
	PeriodEnd      time.Time     `bson:"period_end"`
	SkipPeriods    int           `bson:"skip_periods"` // free-months credit still to consume
	CancelReason   string        `bson:"cancel_reason,omitempty"`
	CanceledAt     *time.Time    `bson:"canceled_at,omitempty"`
	CreatedAt      time.Time     `bson:"created_at"`
	UpdatedAt      time.Time     `bson:"updated_at"`
}

// IsTerminal reports whether no further automatic transition can leave the
// current state.
func (s *Subscription) IsTerminal() bool {
	return s.Status == StatusCanceled
}

// IsActive reports whether the subscription is in good standing.
func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

// IsPastDue reports whether the last payment attempt failed.
func (s *Subscription) IsPastDue() bool {
	return s.Status == StatusPastDue
}
