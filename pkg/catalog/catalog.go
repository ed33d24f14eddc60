// Package catalog holds the read-mostly plan and application surface of the
// settlement engine: plan lookups, per-application plan eligibility, and the
// reconciler that keeps every application supplied with a default plan.
package catalog

import (
	"context"
	"errors"
	"fmt"
)

// Catalog resolves plans and plan eligibility for applications.
type Catalog struct {
	store Store
}

// New creates a Catalog. Panics on a nil store to fail fast at wiring time.
func New(store Store) *Catalog {
	if store == nil {
		panic("catalog: Store is required")
	}
	return &Catalog{store: store}
}

// GetPlan resolves a plan by ID. An inactive plan fails with ErrPlanInactive;
// callers must not substitute another plan on this error.
func (c *Catalog) GetPlan(ctx context.Context, id string) (*Plan, error) {
	plan, err := c.store.GetPlan(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPlanNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
		}
		return nil, err
	}
	if !plan.Active {
		return nil, fmt.Errorf("%w: %s", ErrPlanInactive, id)
	}
	return plan, nil
}

// GetApplication resolves an application by ID.
func (c *Catalog) GetApplication(ctx context.Context, id string) (*Application, error) {
	return c.store.GetApplication(ctx, id)
}

// DefaultPlan resolves the plan an application assigns when a subscriber
// names none: the application's default plan, or the first eligible plan
// when no default is set. Fails with ErrPlanNotFound when the application
// offers nothing; callers must not substitute a plan of their own.
func (c *Catalog) DefaultPlan(ctx context.Context, applicationID string) (*Plan, error) {
	app, err := c.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	if app.DefaultPlanID != "" {
		return c.GetPlan(ctx, app.DefaultPlanID)
	}

	plans, err := c.ListEligiblePlans(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, fmt.Errorf("%w: application %s offers no plans", ErrPlanNotFound, applicationID)
	}
	return &plans[0], nil
}

// ListEligiblePlans returns the active plans an application offers, in the
// application's stable plan-set order.
func (c *Catalog) ListEligiblePlans(ctx context.Context, applicationID string) ([]Plan, error) {
	plans, err := c.store.ListPlans(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	eligible := make([]Plan, 0, len(plans))
	for _, p := range plans {
		if p.Active {
			eligible = append(eligible, p)
		}
	}
	return eligible, nil
}
