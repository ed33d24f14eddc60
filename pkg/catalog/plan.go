package catalog

// BillingCycle represents the billing frequency for a plan.
type BillingCycle string

const (
	CycleNone    BillingCycle = "none" // free plans with no recurring charge
	CycleWeekly  BillingCycle = "weekly"
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// PlanKind classifies a plan tier.
type PlanKind string

const (
	KindFree       PlanKind = "free"
	KindStandard   PlanKind = "standard"
	KindPremium    PlanKind = "premium"
	KindEnterprise PlanKind = "enterprise"
)

// Plan describes a priced product tier an application offers.
//
// A plan referenced by an active subscription is treated as immutable: price
// changes are published as a new version with a new ID so existing
// subscribers keep their agreed price. The store API deliberately offers no
// in-place price update.
type Plan struct {
	ID      string       `bson:"_id" json:"id" yaml:"id"`
	Name    string       `bson:"name" json:"name" yaml:"name"`
	Price   Money        `bson:"price" json:"price" yaml:"price"`
	Cycle   BillingCycle `bson:"cycle" json:"cycle" yaml:"cycle"`
	Kind    PlanKind     `bson:"kind" json:"kind" yaml:"kind"`
	Active  bool         `bson:"active" json:"active" yaml:"active"`
	Version int          `bson:"version" json:"version" yaml:"version"`
}

// NextVersion returns a copy of the plan carrying a new price under a new
// identity. The receiving plan is left untouched.
func (p Plan) NextVersion(id string, price Money) Plan {
	next := p
	next.ID = id
	next.Price = price
	next.Version = p.Version + 1
	return next
}

// IsBillable reports whether the plan carries a recurring charge.
func (p Plan) IsBillable() bool {
	return p.Cycle != CycleNone && p.Price.Amount > 0
}
