package offer

import (
	"context"
	"log/slog"
	"time"

	"github.com/meayach/saasify-sub002/pkg/catalog"
	"github.com/meayach/saasify-sub002/pkg/logger"
)

// Store defines offer persistence as seen by the engine.
type Store interface {
	// ListByApplication returns every offer owned by the application.
	ListByApplication(ctx context.Context, applicationID string) ([]Offer, error)
}

// Resolution is the outcome of a price resolution.
type Resolution struct {
	Price      catalog.Money
	OfferID    string // empty when no offer applied
	FreeMonths int    // upcoming periods the caller should skip billing for
}

// Engine computes the effective price of a plan under the offers live for an
// application at a point in time.
type Engine struct {
	store Store
	log   *slog.Logger
}

// NewEngine creates an Engine. Panics on a nil store to fail fast at wiring time.
func NewEngine(store Store, log *slog.Logger) *Engine {
	if store == nil {
		panic("offer: Store is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: store, log: log}
}

// ResolvePrice returns the plan price with the best eligible offer applied.
//
// Candidates must be active, owned by the application, live at the given
// time, cover the plan, and have usage capacity left. When couponCode is
// supplied, offers carrying that exact code compete alongside automatic
// (code-less) offers and win over them; offers carrying a different code are
// excluded. Among equally preferred candidates the greatest absolute
// discount wins, then the lowest offer ID, so resolution is deterministic.
//
// The returned Resolution's usage increment is NOT committed here; the
// caller commits it together with its own state mutation.
func (e *Engine) ResolvePrice(ctx context.Context, plan *catalog.Plan, applicationID string, at time.Time, couponCode string) (Resolution, error) {
	offers, err := e.store.ListByApplication(ctx, applicationID)
	if err != nil {
		return Resolution{}, err
	}

	base := Resolution{Price: plan.Price}

	var best *candidate
	for i := range offers {
		o := &offers[i]
		if !o.Active || !o.IsLiveAt(at) || !o.AppliesToPlan(plan.ID) {
			continue
		}
		if o.UsageExhausted() {
			continue
		}

		couponMatched := false
		switch {
		case o.CouponCode == "":
			// Automatic offer, coupon-independent.
		case couponCode != "" && o.CouponCode == couponCode:
			couponMatched = true
		default:
			// Carries a code the caller did not supply.
			continue
		}

		amount, ok := discountAmount(o, plan.Price)
		if !ok {
			// Currency mismatch drops this offer, not the resolution.
			e.log.WarnContext(ctx, "offer excluded from resolution",
				slog.String("offer_id", o.ID),
				logger.ApplicationID(applicationID),
				logger.Error(ErrCurrencyMismatch))
			continue
		}

		c := &candidate{offer: o, couponMatched: couponMatched, amount: amount}
		if best == nil || c.beats(best) {
			best = c
		}
	}

	if best == nil {
		return base, nil
	}

	res := Resolution{
		Price:   applyDiscount(best.offer, plan.Price),
		OfferID: best.offer.ID,
	}
	if best.offer.Discount == DiscountFreeMonths {
		res.FreeMonths = int(best.offer.Value)
	}
	return res, nil
}

type candidate struct {
	offer         *Offer
	couponMatched bool
	amount        int64 // absolute discount in plan currency, for comparison
}

// beats implements the selection order: coupon match, then greatest
// discount, then lowest offer ID.
func (c *candidate) beats(other *candidate) bool {
	if c.couponMatched != other.couponMatched {
		return c.couponMatched
	}
	if c.amount != other.amount {
		return c.amount > other.amount
	}
	return c.offer.ID < other.offer.ID
}

// discountAmount converts an offer to an absolute amount in the plan's
// currency. The second return is false when a fixed-amount offer is
// denominated in another currency.
func discountAmount(o *Offer, price catalog.Money) (int64, bool) {
	switch o.Discount {
	case DiscountPercentage:
		// The final price floors, so the discount amount rounds up.
		pct := o.Value
		if pct > 100 {
			pct = 100
		}
		return price.Amount - price.Amount*(100-pct)/100, true
	case DiscountFixedAmount:
		if o.Currency != price.Currency {
			return 0, false
		}
		return min(o.Value, price.Amount), true
	case DiscountFreeMonths:
		// Does not alter the per-period price.
		return 0, true
	default:
		return 0, true
	}
}

// applyDiscount computes the final per-period price, floored at zero.
func applyDiscount(o *Offer, price catalog.Money) catalog.Money {
	amount, _ := discountAmount(o, price)
	final := price.Amount - amount
	if final < 0 {
		final = 0
	}
	return catalog.Money{Amount: final, Currency: price.Currency}
}
