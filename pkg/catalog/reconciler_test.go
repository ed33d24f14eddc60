package catalog_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meayach/saasify-sub002/pkg/catalog"
)

func testReconciler(store catalog.Store) *catalog.Reconciler {
	return catalog.NewReconciler(store, catalog.ReconcilerConfig{
		FallbackPlanID: "plan-fallback",
		StoreTimeout:   time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestReconcilerRun(t *testing.T) {
	t.Parallel()

	plans := []catalog.Plan{
		{ID: "plan-fallback", Name: "Fallback", Cycle: catalog.CycleNone, Kind: catalog.KindFree, Active: true},
		{ID: "plan-a", Name: "A", Price: catalog.Money{Amount: 500, Currency: "USD"}, Cycle: catalog.CycleMonthly, Active: true},
	}

	t.Run("empty plan set gains the fallback plan", func(t *testing.T) {
		t.Parallel()
		store := catalog.NewMemoryStore(plans, []catalog.Application{{ID: "app-empty"}})

		report, err := testReconciler(store).Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, report.Changed())
		assert.Equal(t, "plan-fallback", report.Changes[0].AddedPlanID)
		assert.Equal(t, "plan-fallback", report.Changes[0].NewDefaultID)

		app, err := store.GetApplication(context.Background(), "app-empty")
		require.NoError(t, err)
		assert.Equal(t, []string{"plan-fallback"}, app.PlanIDs)
		assert.Equal(t, "plan-fallback", app.DefaultPlanID)
	})

	t.Run("invalid default is repaired to a set member", func(t *testing.T) {
		t.Parallel()
		store := catalog.NewMemoryStore(plans, []catalog.Application{
			{ID: "app-bad-default", PlanIDs: []string{"plan-a"}, DefaultPlanID: "plan-gone"},
		})

		report, err := testReconciler(store).Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, report.Changed())
		assert.Empty(t, report.Changes[0].AddedPlanID, "plan set must not grow")

		app, err := store.GetApplication(context.Background(), "app-bad-default")
		require.NoError(t, err)
		assert.Equal(t, "plan-a", app.DefaultPlanID)
		assert.Equal(t, []string{"plan-a"}, app.PlanIDs)
	})

	t.Run("missing default is assigned the first member", func(t *testing.T) {
		t.Parallel()
		store := catalog.NewMemoryStore(plans, []catalog.Application{
			{ID: "app-no-default", PlanIDs: []string{"plan-a", "plan-fallback"}},
		})

		report, err := testReconciler(store).Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, report.Changed())
		assert.Equal(t, "plan-a", report.Changes[0].NewDefaultID)
	})

	t.Run("consistent store makes zero writes", func(t *testing.T) {
		t.Parallel()
		store := catalog.NewMemoryStore(plans, []catalog.Application{
			{ID: "app-ok", PlanIDs: []string{"plan-a"}, DefaultPlanID: "plan-a"},
		})

		report, err := testReconciler(store).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Scanned)
		assert.Zero(t, report.Changed())
		assert.Empty(t, report.Failures)
	})

	t.Run("idempotent across runs", func(t *testing.T) {
		t.Parallel()
		store := catalog.NewMemoryStore(plans, []catalog.Application{
			{ID: "app-empty"},
			{ID: "app-bad", PlanIDs: []string{"plan-a"}, DefaultPlanID: "plan-gone"},
		})
		r := testReconciler(store)

		first, err := r.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, first.Changed())

		second, err := r.Run(context.Background())
		require.NoError(t, err)
		assert.Zero(t, second.Changed())
	})
}

// failingStore wraps a Store and fails writes for one application.
type failingStore struct {
	catalog.Store
	failFor string
}

var errStoreDown = errors.New("store down")

func (f *failingStore) SetDefaultPlan(ctx context.Context, applicationID, planID string) error {
	if applicationID == f.failFor {
		return errStoreDown
	}
	return f.Store.SetDefaultPlan(ctx, applicationID, planID)
}

func TestReconcilerFailureIsolation(t *testing.T) {
	t.Parallel()

	plans := []catalog.Plan{{ID: "plan-fallback", Cycle: catalog.CycleNone, Kind: catalog.KindFree, Active: true}}
	store := catalog.NewMemoryStore(plans, []catalog.Application{
		{ID: "app-broken"},
		{ID: "app-fine"},
	})

	report, err := testReconciler(&failingStore{Store: store, failFor: "app-broken"}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, "app-broken", report.Failures[0].ApplicationID)
	assert.ErrorIs(t, report.Failures[0].Err, errStoreDown)

	// The broken application does not stop the healthy one from repair.
	require.Equal(t, 1, report.Changed())
	assert.Equal(t, "app-fine", report.Changes[0].ApplicationID)
}
