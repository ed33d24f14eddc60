package catalog

import "context"

// Store defines persistence for plans and applications.
//
// AddApplicationPlan must be a set-membership operation: adding a plan that
// is already a member is a no-op, and two concurrent adds of the same plan
// must not produce a duplicate entry.
type Store interface {
	// GetPlan retrieves a plan by ID. Returns ErrPlanNotFound if absent.
	GetPlan(ctx context.Context, id string) (*Plan, error)

	// ListPlans returns the plans referenced by an application's plan set,
	// in the set's stable order. Unknown IDs are skipped.
	ListPlans(ctx context.Context, applicationID string) ([]Plan, error)

	// GetApplication retrieves an application by ID.
	// Returns ErrApplicationNotFound if absent.
	GetApplication(ctx context.Context, id string) (*Application, error)

	// ListApplications returns all applications.
	ListApplications(ctx context.Context) ([]Application, error)

	// AddApplicationPlan adds a plan to the application's plan set (no-op
	// when already a member).
	AddApplicationPlan(ctx context.Context, applicationID, planID string) error

	// SetDefaultPlan sets the application's default plan.
	SetDefaultPlan(ctx context.Context, applicationID, planID string) error
}
