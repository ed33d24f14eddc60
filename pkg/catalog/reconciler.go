package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/meayach/saasify-sub002/pkg/logger"
)

// ReconcilerConfig holds settings for the default-plan reconciler.
//
// FallbackPlanID is a single system-wide value shared by every application;
// it is surfaced as explicit configuration rather than a constant so
// operators can see and change it per deployment.
type ReconcilerConfig struct {
	FallbackPlanID string        `env:"BILLING_FALLBACK_PLAN_ID,required"`            // FallbackPlanID is assigned to applications with an empty plan set.
	Schedule       string        `env:"BILLING_RECONCILE_SCHEDULE" envDefault:"@hourly"` // Schedule is the cron expression for periodic runs.
	StoreTimeout   time.Duration `env:"BILLING_RECONCILE_STORE_TIMEOUT" envDefault:"10s"` // StoreTimeout bounds each store call.
}

// Change records one repaired application.
type Change struct {
	ApplicationID string
	AddedPlanID   string // set when the fallback plan was added to the plan set
	NewDefaultID  string // set when the default plan was (re)assigned
}

// Failure records an application that could not be repaired.
type Failure struct {
	ApplicationID string
	Err           error
}

// Report summarizes one reconciler run.
type Report struct {
	Scanned  int
	Changes  []Change
	Failures []Failure
}

// Changed reports how many applications were modified.
func (r Report) Changed() int {
	return len(r.Changes)
}

// Reconciler keeps the "every application has a default plan" invariant
// intact. For each application: a non-empty plan set gets its default
// repaired to a member when missing or invalid; an empty plan set is grown
// with the configured fallback plan, which also becomes the default.
//
// A run is idempotent: reconciling an already-consistent store makes zero
// writes. Applications are treated independently; one failure never aborts
// the rest.
type Reconciler struct {
	store Store
	cfg   ReconcilerConfig
	log   *slog.Logger
}

// NewReconciler creates a Reconciler. Panics on missing dependencies so
// wiring mistakes surface at startup.
func NewReconciler(store Store, cfg ReconcilerConfig, log *slog.Logger) *Reconciler {
	if store == nil {
		panic("catalog: Store is required")
	}
	if cfg.FallbackPlanID == "" {
		panic("catalog: FallbackPlanID is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 10 * time.Second
	}
	return &Reconciler{store: store, cfg: cfg, log: log}
}

// Run reconciles all applications and reports what changed.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	listCtx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
	apps, err := r.store.ListApplications(listCtx)
	cancel()
	if err != nil {
		return Report{}, err
	}

	report := Report{Scanned: len(apps)}
	for i := range apps {
		change, err := r.reconcileOne(ctx, &apps[i])
		if err != nil {
			report.Failures = append(report.Failures, Failure{ApplicationID: apps[i].ID, Err: err})
			r.log.ErrorContext(ctx, "application reconcile failed",
				logger.ApplicationID(apps[i].ID), logger.Error(err))
			continue
		}
		if change != nil {
			report.Changes = append(report.Changes, *change)
			r.log.InfoContext(ctx, "application repaired",
				logger.ApplicationID(apps[i].ID),
				slog.String("added_plan", change.AddedPlanID),
				slog.String("new_default", change.NewDefaultID))
		}
	}
	return report, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, app *Application) (*Change, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
	defer cancel()

	if len(app.PlanIDs) > 0 {
		if app.HasValidDefault() {
			return nil, nil
		}
		// First member in stable existing order becomes the default.
		defaultID := app.PlanIDs[0]
		if err := r.store.SetDefaultPlan(ctx, app.ID, defaultID); err != nil {
			return nil, err
		}
		return &Change{ApplicationID: app.ID, NewDefaultID: defaultID}, nil
	}

	// Empty plan set: grow it with the fallback plan, never shrink it.
	if err := r.store.AddApplicationPlan(ctx, app.ID, r.cfg.FallbackPlanID); err != nil {
		return nil, err
	}
	if err := r.store.SetDefaultPlan(ctx, app.ID, r.cfg.FallbackPlanID); err != nil {
		return nil, err
	}
	return &Change{
		ApplicationID: app.ID,
		AddedPlanID:   r.cfg.FallbackPlanID,
		NewDefaultID:  r.cfg.FallbackPlanID,
	}, nil
}
