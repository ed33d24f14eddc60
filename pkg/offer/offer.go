// Package offer evaluates promotional offers against plan prices. The engine
// selects at most one offer per resolution and reports the discounted price;
// committing the offer's usage increment is the caller's responsibility so a
// failed transition never consumes coupon usage.
package offer

import (
	"slices"
	"time"
)

// Kind classifies an offer.
type Kind string

const (
	KindDiscount       Kind = "discount"
	KindTrialExtension Kind = "trial_extension"
	KindUpgrade        Kind = "upgrade"
	KindSeasonal       Kind = "seasonal"
	KindPromotional    Kind = "promotional"
)

// DiscountType defines how an offer modifies the plan price.
type DiscountType string

const (
	DiscountPercentage  DiscountType = "percentage"
	DiscountFixedAmount DiscountType = "fixed_amount"
	DiscountFreeMonths  DiscountType = "free_months"
)

// Offer is a time-bounded, usage-capped promotional modifier applied to a
// plan's price.
//
// Value is interpreted per DiscountType: whole percent for percentage,
// minor currency units for fixed_amount, number of periods for free_months.
// Currency is required for fixed_amount offers and must match the plan's
// currency at resolution time. A zero MaxUsage means unlimited use.
type Offer struct {
	ID            string            `bson:"_id" json:"id" yaml:"id"`
	Kind          Kind              `bson:"kind" json:"kind" yaml:"kind"`
	Discount      DiscountType      `bson:"discount" json:"discount" yaml:"discount"`
	Value         int64             `bson:"value" json:"value" yaml:"value"`
	Currency      string            `bson:"currency,omitempty" json:"currency,omitempty" yaml:"currency"`
	ValidFrom     time.Time         `bson:"valid_from" json:"valid_from" yaml:"valid_from"`
	ValidUntil    time.Time         `bson:"valid_until" json:"valid_until" yaml:"valid_until"`
	PlanIDs       []string          `bson:"plan_ids,omitempty" json:"plan_ids,omitempty" yaml:"plan_ids"`
	Active        bool              `bson:"active" json:"active" yaml:"active"`
	CouponCode    string            `bson:"coupon_code,omitempty" json:"coupon_code,omitempty" yaml:"coupon_code"`
	MaxUsage      int64             `bson:"max_usage,omitempty" json:"max_usage,omitempty" yaml:"max_usage"`
	CurrentUsage  int64             `bson:"current_usage" json:"current_usage" yaml:"current_usage"`
	ApplicationID string            `bson:"application_id" json:"application_id" yaml:"application_id"`
	Conditions    map[string]string `bson:"conditions,omitempty" json:"conditions,omitempty" yaml:"conditions"`
}

// IsLiveAt reports whether t falls inside the validity window [from, until).
func (o *Offer) IsLiveAt(t time.Time) bool {
	return !t.Before(o.ValidFrom) && t.Before(o.ValidUntil)
}

// AppliesToPlan reports whether the offer covers the plan. An empty plan set
// covers every plan of the owning application.
func (o *Offer) AppliesToPlan(planID string) bool {
	return len(o.PlanIDs) == 0 || slices.Contains(o.PlanIDs, planID)
}

// UsageExhausted reports whether a usage-capped offer has no uses left.
func (o *Offer) UsageExhausted() bool {
	return o.MaxUsage > 0 && o.CurrentUsage >= o.MaxUsage
}
