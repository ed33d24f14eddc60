package catalog

import "slices"

// Application is a tenant-facing product that offers a set of plans.
// DefaultPlanID, when set, must be a member of PlanIDs; the Reconciler
// enforces that invariant across the whole store.
type Application struct {
	ID            string   `bson:"_id" json:"id" yaml:"id"`
	Name          string   `bson:"name" json:"name" yaml:"name"`
	PlanIDs       []string `bson:"plan_ids" json:"plan_ids" yaml:"plan_ids"`
	DefaultPlanID string   `bson:"default_plan_id" json:"default_plan_id" yaml:"default_plan_id"`
}

// HasPlan reports whether the plan is a member of the application's plan set.
func (a *Application) HasPlan(planID string) bool {
	return slices.Contains(a.PlanIDs, planID)
}

// AddPlan adds the plan to the set if absent and reports whether the set
// changed. The set only ever grows.
func (a *Application) AddPlan(planID string) bool {
	if a.HasPlan(planID) {
		return false
	}
	a.PlanIDs = append(a.PlanIDs, planID)
	return true
}

// HasValidDefault reports whether DefaultPlanID is set and a member of the
// plan set.
func (a *Application) HasValidDefault() bool {
	return a.DefaultPlanID != "" && a.HasPlan(a.DefaultPlanID)
}
