package offer_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meayach/saasify-sub002/pkg/catalog"
	"github.com/meayach/saasify-sub002/pkg/offer"
)

var resolveAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testPlan() *catalog.Plan {
	return &catalog.Plan{
		ID:     "plan-premium",
		Name:   "Premium",
		Price:  catalog.Money{Amount: 999, Currency: "USD"},
		Cycle:  catalog.CycleMonthly,
		Kind:   catalog.KindPremium,
		Active: true,
	}
}

func liveOffer(id string, discount offer.DiscountType, value int64) offer.Offer {
	return offer.Offer{
		ID:            id,
		Kind:          offer.KindDiscount,
		Discount:      discount,
		Value:         value,
		ValidFrom:     resolveAt.AddDate(0, -1, 0),
		ValidUntil:    resolveAt.AddDate(0, 1, 0),
		Active:        true,
		ApplicationID: "app-1",
	}
}

func newEngine(offers ...offer.Offer) *offer.Engine {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return offer.NewEngine(offer.NewMemoryStore(offers...), log)
}

func TestResolvePricePercentage(t *testing.T) {
	t.Parallel()

	t.Run("floors the final price", func(t *testing.T) {
		t.Parallel()
		engine := newEngine(liveOffer("off-1", offer.DiscountPercentage, 20))

		res, err := engine.ResolvePrice(context.Background(), testPlan(), "app-1", resolveAt, "")
		require.NoError(t, err)
		assert.Equal(t, int64(799), res.Price.Amount)
		assert.Equal(t, "off-1", res.OfferID)
	})

	t.Run("caps percentage at 100", func(t *testing.T) {
		t.Parallel()
		engine := newEngine(liveOffer("off-1", offer.DiscountPercentage, 150))

		res, err := engine.ResolvePrice(context.Background(), testPlan(), "app-1", resolveAt, "")
		require.NoError(t, err)
		assert.Zero(t, res.Price.Amount)
	})
}

func TestResolvePriceFixedAmount(t *testing.T) {
	t.Parallel()

	t.Run("subtracts in plan currency", func(t *testing.T) {
		t.Parallel()
		o := liveOffer("off-1", offer.DiscountFixedAmount, 300)
		o.Currency = "USD"
		engine := newEngine(o)

		res, err := engine.ResolvePrice(context.Background(), testPlan(), "app-1", resolveAt, "")
		require.NoError(t, err)
		assert.Equal(t, int64(699), res.Price.Amount)
	})

	t.Run("never drops below zero", func(t *testing.T) {
		t.Parallel()
		o := liveOffer("off-1", offer.DiscountFixedAmount, 5000)
		o.Currency = "USD"
		engine := newEngine(o)

		res, err := engine.ResolvePrice(context.Background(), testPlan(), "app-1", resolveAt, "")
		require.NoError(t, err)
		assert.Zero(t, res.Price.Amount)
	})

	t.Run("currency mismatch excludes the offer without aborting", func(t *testing.T) {
		t.Parallel()
		mismatched := liveOffer("off-1", offer.DiscountFixedAmount, 300)
		mismatched.Currency = "EUR"
		fallback := liveOffer("off-2", offer.DiscountPercentage, 10)
		engine := newEngine(mismatched, fallback)

		res, err := engine.ResolvePrice(context.Background(), testPlan(), "app-1", resolveAt, "")
		require.NoError(t, err)
		assert.Equal(t, "off-2", res.OfferID)
		assert.Equal(t, int64(899), res.Price.Amount)
	})
}

func TestResolvePriceFreeMonths(t *testing.T) {
	t.Parallel()

	engine := newEngine(liveOffer("off-1", offer.DiscountFreeMonths, 2))

	res, err := engine.ResolvePrice(context.Background(), testPlan(), "app-1", resolveAt, "")
	require.NoError(t, err)
	assert.Equal(t, int64(999), res.Price.Amount, "per-period price is unchanged")
	assert.Equal(t, 2, res.FreeMonths)
	assert.Equal(t, "off-1", res.OfferID)
}

func TestResolvePriceSelection(t *testing.T) {
	t.Parallel()

	t.Run("greatest absolute discount wins", func(t *testing.T) {
		t.Parallel()
		engine := newEngine(
			liveOffer("off-small", offer.DiscountPercentage, 10),
			liveOffer("off-big", offer.DiscountPercentage, 30),
		)

		res, err := engine.ResolvePrice(context.Background(), testPlan(), "app-1", resolveAt, "")
		require.NoError(t, err)
		assert.Equal(t, "off-big", res.OfferID)
	})

	t.Run("ties break on lowest offer id", func(t *testing.T) {
		t.Parallel()
		engine := newEngine(
			liveOffer("off-b", offer.DiscountPercentage, 20),
			liveOffer("off-a", offer.DiscountPercentage, 20),
		)

		res, err := engine.ResolvePrice(context.Background(), testPlan(), "app-1", resolveAt, "")
		require.NoError(t, err)
		assert.Equal(t, "off-a", res.OfferID)
	})

	t.Run("coupon match beats a larger automatic discount", func(t *testing.T) {
		t.Parallel()
		coupon := liveOffer("off-coupon", offer.DiscountPercentage, 5)
		coupon.CouponCode = "WELCOME"
		engine := newEngine(coupon, liveOffer("off-auto", offer.DiscountPercentage, 40))

		res, err := engine.ResolvePrice(context.Background(), testPlan(), "app-1", resolveAt, "WELCOME")
		require.NoError(t, err)
		assert.Equal(t, "off-coupon", res.OfferID)
	})

	t.Run("unmatched coupon offers are excluded", func(t *testing.T) {
		t.Parallel()
		coupon := liveOffer("off-coupon", offer.DiscountPercentage, 50)
		coupon.CouponCode = "WELCOME"
		engine := newEngine(coupon)

		res, err := engine.ResolvePrice(context.Background(), testPlan(), "app-1", resolveAt, "OTHER")
		require.NoError(t, err)
		assert.Empty(t, res.OfferID)
		assert.Equal(t, int64(999), res.Price.Amount)
	})
}

func TestResolvePriceEligibility(t *testing.T) {
	t.Parallel()

	t.Run("outside validity window", func(t *testing.T) {
		t.Parallel()
		expired := liveOffer("off-1", offer.DiscountPercentage, 20)
		expired.ValidUntil = resolveAt.Add(-time.Hour)
		engine := newEngine(expired)

		res, err := engine.ResolvePrice(context.Background(), testPlan(), "app-1", resolveAt, "")
		require.NoError(t, err)
		assert.Empty(t, res.OfferID)
	})

	t.Run("inactive", func(t *testing.T) {
		t.Parallel()
		inactive := liveOffer("off-1", offer.DiscountPercentage, 20)
		inactive.Active = false
		engine := newEngine(inactive)

		res, err := engine.ResolvePrice(context.Background(), testPlan(), "app-1", resolveAt, "")
		require.NoError(t, err)
		assert.Empty(t, res.OfferID)
	})

	t.Run("usage exhausted", func(t *testing.T) {
		t.Parallel()
		spent := liveOffer("off-1", offer.DiscountPercentage, 20)
		spent.MaxUsage = 5
		spent.CurrentUsage = 5
		engine := newEngine(spent)

		res, err := engine.ResolvePrice(context.Background(), testPlan(), "app-1", resolveAt, "")
		require.NoError(t, err)
		assert.Empty(t, res.OfferID)
	})

	t.Run("plan scope", func(t *testing.T) {
		t.Parallel()
		scoped := liveOffer("off-1", offer.DiscountPercentage, 20)
		scoped.PlanIDs = []string{"plan-other"}
		engine := newEngine(scoped)

		res, err := engine.ResolvePrice(context.Background(), testPlan(), "app-1", resolveAt, "")
		require.NoError(t, err)
		assert.Empty(t, res.OfferID)
	})
}

func TestMemoryStoreIncrementUsage(t *testing.T) {
	t.Parallel()

	capped := liveOffer("off-1", offer.DiscountPercentage, 20)
	capped.MaxUsage = 1
	store := offer.NewMemoryStore(capped)
	ctx := context.Background()

	require.NoError(t, store.IncrementUsage(ctx, "off-1"))
	assert.ErrorIs(t, store.IncrementUsage(ctx, "off-1"), offer.ErrUsageExceeded)
	assert.ErrorIs(t, store.IncrementUsage(ctx, "off-missing"), offer.ErrOfferNotFound)
}
