package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meayach/saasify-sub002/pkg/catalog"
)

func seededCatalog() *catalog.Catalog {
	plans := []catalog.Plan{
		{ID: "plan-free", Name: "Free", Cycle: catalog.CycleNone, Kind: catalog.KindFree, Active: true},
		{ID: "plan-pro", Name: "Pro", Price: catalog.Money{Amount: 1999, Currency: "USD"}, Cycle: catalog.CycleMonthly, Kind: catalog.KindPremium, Active: true},
		{ID: "plan-legacy", Name: "Legacy", Price: catalog.Money{Amount: 999, Currency: "USD"}, Cycle: catalog.CycleMonthly, Kind: catalog.KindStandard},
	}
	apps := []catalog.Application{
		{ID: "app-default", PlanIDs: []string{"plan-free", "plan-pro"}, DefaultPlanID: "plan-pro"},
		{ID: "app-no-default", PlanIDs: []string{"plan-legacy", "plan-free"}},
		{ID: "app-empty"},
	}
	return catalog.New(catalog.NewMemoryStore(plans, apps))
}

func TestCatalogGetPlan(t *testing.T) {
	t.Parallel()

	c := seededCatalog()
	ctx := context.Background()

	plan, err := c.GetPlan(ctx, "plan-pro")
	require.NoError(t, err)
	assert.Equal(t, int64(1999), plan.Price.Amount)

	_, err = c.GetPlan(ctx, "plan-legacy")
	assert.ErrorIs(t, err, catalog.ErrPlanInactive)

	_, err = c.GetPlan(ctx, "plan-missing")
	assert.ErrorIs(t, err, catalog.ErrPlanNotFound)
}

func TestCatalogDefaultPlan(t *testing.T) {
	t.Parallel()

	c := seededCatalog()
	ctx := context.Background()

	t.Run("uses the configured default", func(t *testing.T) {
		t.Parallel()
		plan, err := c.DefaultPlan(ctx, "app-default")
		require.NoError(t, err)
		assert.Equal(t, "plan-pro", plan.ID)
	})

	t.Run("falls back to the first eligible plan", func(t *testing.T) {
		t.Parallel()
		// plan-legacy heads the set but is inactive, so plan-free is first eligible.
		plan, err := c.DefaultPlan(ctx, "app-no-default")
		require.NoError(t, err)
		assert.Equal(t, "plan-free", plan.ID)
	})

	t.Run("empty plan set resolves nothing", func(t *testing.T) {
		t.Parallel()
		_, err := c.DefaultPlan(ctx, "app-empty")
		assert.ErrorIs(t, err, catalog.ErrPlanNotFound)
	})

	t.Run("unknown application", func(t *testing.T) {
		t.Parallel()
		_, err := c.DefaultPlan(ctx, "app-missing")
		assert.ErrorIs(t, err, catalog.ErrApplicationNotFound)
	})
}

func TestCatalogListEligiblePlans(t *testing.T) {
	t.Parallel()

	c := seededCatalog()

	plans, err := c.ListEligiblePlans(context.Background(), "app-no-default")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "plan-free", plans[0].ID)
}

func TestPlanNextVersion(t *testing.T) {
	t.Parallel()

	original := catalog.Plan{
		ID:      "plan-pro-v1",
		Name:    "Pro",
		Price:   catalog.Money{Amount: 1999, Currency: "USD"},
		Cycle:   catalog.CycleMonthly,
		Kind:    catalog.KindPremium,
		Active:  true,
		Version: 1,
	}

	next := original.NextVersion("plan-pro-v2", catalog.Money{Amount: 2499, Currency: "USD"})
	assert.Equal(t, "plan-pro-v2", next.ID)
	assert.Equal(t, int64(2499), next.Price.Amount)
	assert.Equal(t, 2, next.Version)
	// Existing subscribers keep the old version untouched.
	assert.Equal(t, int64(1999), original.Price.Amount)
	assert.Equal(t, 1, original.Version)
}

func TestMoneyValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, catalog.Money{Amount: 999, Currency: "USD"}.Validate())
	assert.Error(t, catalog.Money{Amount: 999, Currency: "DOLLARS"}.Validate())
	assert.Error(t, catalog.Money{Amount: -1, Currency: "USD"}.Validate())
}

func TestApplicationAddPlan(t *testing.T) {
	t.Parallel()

	app := catalog.Application{ID: "app-1", PlanIDs: []string{"plan-a"}}

	assert.True(t, app.AddPlan("plan-b"))
	assert.False(t, app.AddPlan("plan-b"), "set membership, not append")
	assert.Equal(t, []string{"plan-a", "plan-b"}, app.PlanIDs)
}
