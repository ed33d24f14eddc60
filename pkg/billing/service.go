// Package billing drives subscription state from payment-provider webhook
// events: verification, deduplication, state transitions, price resolution,
// and the atomic commit that ties them together.
package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meayach/saasify-sub002/pkg/catalog"
	"github.com/meayach/saasify-sub002/pkg/logger"
	"github.com/meayach/saasify-sub002/pkg/offer"
	"github.com/meayach/saasify-sub002/pkg/statemachine"
	"github.com/meayach/saasify-sub002/pkg/webhook"
)

// Config holds settlement service settings.
type Config struct {
	StoreTimeout   time.Duration `env:"BILLING_STORE_TIMEOUT" envDefault:"5s"`      // StoreTimeout bounds each store call.
	CommitRetries  int           `env:"BILLING_COMMIT_RETRIES" envDefault:"3"`      // CommitRetries bounds retries of transient commit failures.
	EventRetention time.Duration `env:"BILLING_EVENT_RETENTION" envDefault:"720h"`  // EventRetention is how long processed-event records are kept.
}

// Service processes provider webhook events into subscription state.
type Service struct {
	provider  EventProvider
	store     Store
	catalog   *catalog.Catalog
	offers    *offer.Engine
	lifecycle statemachine.StateMachine
	locks     *keyedLocks
	backoff   webhook.BackoffStrategy
	cfg       Config
	log       *slog.Logger
	now       func() time.Time
}

// ServiceOption configures optional Service settings.
type ServiceOption func(*Service)

// WithClock overrides the service clock; fixed clocks keep tests deterministic.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBackoff overrides the retry backoff strategy.
func WithBackoff(b webhook.BackoffStrategy) ServiceOption {
	return func(s *Service) {
		if b != nil {
			s.backoff = b
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService creates the settlement service. Panics on missing required
// dependencies so wiring mistakes stop the process at startup.
func NewService(provider EventProvider, store Store, cat *catalog.Catalog, offers *offer.Engine, cfg Config, opts ...ServiceOption) *Service {
	if provider == nil {
		panic("billing: EventProvider is required")
	}
	if store == nil {
		panic("billing: Store is required")
	}
	if cat == nil {
		panic("billing: catalog is required")
	}
	if offers == nil {
		panic("billing: offer engine is required")
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	if cfg.CommitRetries < 0 {
		cfg.CommitRetries = 0
	}

	s := &Service{
		provider:  provider,
		store:     store,
		catalog:   cat,
		offers:    offers,
		lifecycle: newLifecycle(),
		locks:     newKeyedLocks(),
		backoff:   webhook.DefaultBackoffStrategy(),
		cfg:       cfg,
		log:       slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleWebhook processes one raw provider delivery.
//
// A nil error means the event was durably settled (applied, ignored,
// rejected, or already deduplicated) and the delivery layer should respond
// 2xx. A non-nil error means nothing was committed; signature and parse
// failures are fatal, transient store errors surface after bounded retries
// so the provider redelivers.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (*Outcome, error) {
	event, err := s.provider.ParseEvent(ctx, payload, signature)
	if err != nil {
		return nil, err
	}

	log := s.log.With(logger.EventID(event.ID))

	// First dedup layer: a processed-event record ends handling here.
	if rec, err := s.getEvent(ctx, event.ID); err == nil {
		log.InfoContext(ctx, "duplicate event delivery", slog.String("outcome", string(rec.Outcome.Status)))
		return &rec.Outcome, nil
	} else if !errors.Is(err, ErrEventNotFound) {
		return nil, err
	}

	if event.Request.Kind == KindIgnored {
		outcome := Outcome{
			Status:        OutcomeIgnored,
			Kind:          KindIgnored,
			ProviderSubID: event.Request.ProviderSubID,
			Reason:        event.ProviderType,
		}
		return s.commitRecordOnly(ctx, event, outcome)
	}

	if event.Request.ProviderSubID == "" {
		return nil, ErrMalformedEvent
	}

	// Same-identity events apply one at a time; distinct identities proceed
	// concurrently.
	unlock := s.locks.Lock(event.Request.ProviderSubID)
	defer unlock()

	var outcome *Outcome
	for attempt := 0; ; attempt++ {
		outcome, err = s.processOnce(ctx, event)
		if err == nil || !IsTransient(err) || attempt >= s.cfg.CommitRetries {
			break
		}
		log.WarnContext(ctx, "transient commit failure, retrying",
			slog.Int("attempt", attempt+1), logger.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.backoff.NextInterval(attempt + 1)):
		}
	}
	if err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "event settled",
		slog.String("kind", string(event.Request.Kind)),
		slog.String("outcome", string(outcome.Status)),
		logger.SubscriptionID(outcome.ProviderSubID))
	return outcome, nil
}

// PruneEvents removes processed-event records older than the configured
// retention window.
func (s *Service) PruneEvents(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.store.PruneEvents(ctx, s.now().Add(-s.cfg.EventRetention))
}

// processOnce runs one full evaluate-and-commit attempt for an event.
func (s *Service) processOnce(ctx context.Context, event *Event) (*Outcome, error) {
	sub, err := s.getByProviderID(ctx, event.Request.ProviderSubID)
	if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, err
	}

	// Second dedup layer: after a crash between commit and response the
	// subscription's own event pointer still identifies a replay.
	if sub != nil && sub.LastEventID == event.ID {
		return &Outcome{
			Status:         OutcomeApplied,
			Kind:           event.Request.Kind,
			ProviderSubID:  sub.ProviderSubID,
			SubscriptionID: sub.ID.String(),
			State:          sub.Status,
		}, nil
	}

	outcome, mutated, offerID, err := s.evaluate(ctx, sub, event)
	if err != nil {
		if rejection := rejectionReason(err); rejection != "" {
			// Business rejection: record as processed so redelivery stays a
			// no-op, leave subscription state untouched.
			outcome = &Outcome{
				Status:        OutcomeRejected,
				Kind:          event.Request.Kind,
				ProviderSubID: event.Request.ProviderSubID,
				Reason:        rejection,
			}
			if sub != nil {
				outcome.SubscriptionID = sub.ID.String()
				outcome.State = sub.Status
			}
			mutated, offerID = nil, ""
		} else {
			return nil, err
		}
	}

	record := &EventRecord{EventID: event.ID, ProcessedAt: s.now(), Outcome: *outcome}
	if err := s.commit(ctx, mutated, record, offerID); err != nil {
		if errors.Is(err, ErrEventAlreadyProcessed) {
			// Lost a race with a concurrent delivery of the same event.
			if rec, err := s.getEvent(ctx, event.ID); err == nil {
				return &rec.Outcome, nil
			}
		}
		return nil, err
	}
	return outcome, nil
}

// evaluate maps an event onto a subscription mutation. It performs no
// writes; the returned subscription, record, and offer usage are committed
// by the caller as one unit.
func (s *Service) evaluate(ctx context.Context, sub *Subscription, event *Event) (*Outcome, *Subscription, string, error) {
	req := &event.Request
	at := event.OccurredAt
	if at.IsZero() {
		at = s.now()
	}

	if req.Kind == KindCreated {
		if sub != nil {
			// Replayed creation under a fresh event ID: idempotent no-op.
			return &Outcome{
				Status:         OutcomeIgnored,
				Kind:           KindCreated,
				ProviderSubID:  sub.ProviderSubID,
				SubscriptionID: sub.ID.String(),
				State:          sub.Status,
				Reason:         "subscription already exists",
			}, nil, "", nil
		}
		return s.evaluateCreated(ctx, event, at)
	}

	if sub == nil {
		return nil, nil, "", ErrInvalidTransition
	}

	next, err := s.lifecycle.FireFrom(ctx, stateOf(sub.Status), eventOf(req.Kind), nil)
	if err != nil {
		return nil, nil, "", ErrInvalidTransition
	}
	nextStatus := Status(next.Name())

	// Dunning is already in progress; a repeated failure must not re-trigger it.
	if req.Kind == KindPaymentFailed && sub.IsPastDue() {
		return &Outcome{
			Status:         OutcomeIgnored,
			Kind:           KindPaymentFailed,
			ProviderSubID:  sub.ProviderSubID,
			SubscriptionID: sub.ID.String(),
			State:          sub.Status,
			Reason:         "already past due",
		}, nil, "", nil
	}

	updated := *sub
	updated.Status = nextStatus
	updated.LastEventID = event.ID
	updated.UpdatedAt = s.now()

	var offerID string
	switch req.Kind {
	case KindRenewed:
		offerID, err = s.resolveOnto(ctx, &updated, updated.PlanID, at)
		if err != nil {
			return nil, nil, "", err
		}
		start := req.PeriodStart
		if start.IsZero() {
			start = sub.PeriodEnd
		}
		end := req.PeriodEnd
		if end.IsZero() {
			plan, perr := s.getPlan(ctx, updated.PlanID)
			if perr != nil {
				return nil, nil, "", perr
			}
			end = nextPeriod(plan, start)
		}
		updated.PeriodStart, updated.PeriodEnd = start, end
		if sub.SkipPeriods > 0 {
			// Consume one free-months credit for this period. Decrement in
			// place so a grant freshly added by resolution is kept.
			updated.SkipPeriods--
		}

	case KindPaymentFailed:
		// State change only.

	case KindCanceled:
		now := s.now()
		updated.CancelReason = req.CancelReason
		updated.CanceledAt = &now
		// Historical period data stays as it was.

	case KindPlanChanged:
		if req.PlanID == "" {
			return nil, nil, "", ErrMalformedEvent
		}
		// Offers scoped to the old plan stop applying; eligibility is
		// re-evaluated against the new plan before committing it.
		offerID, err = s.resolveOnto(ctx, &updated, req.PlanID, at)
		if err != nil {
			return nil, nil, "", err
		}
		updated.PlanID = req.PlanID
	}

	return &Outcome{
		Status:         OutcomeApplied,
		Kind:           req.Kind,
		ProviderSubID:  updated.ProviderSubID,
		SubscriptionID: updated.ID.String(),
		State:          updated.Status,
	}, &updated, offerID, nil
}

func (s *Service) evaluateCreated(ctx context.Context, event *Event, at time.Time) (*Outcome, *Subscription, string, error) {
	req := &event.Request

	var plan *catalog.Plan
	var err error
	if req.PlanID != "" {
		plan, err = s.getPlan(ctx, req.PlanID)
	} else {
		plan, err = s.defaultPlan(ctx, req.ApplicationID)
	}
	if err != nil {
		return nil, nil, "", err
	}

	res, err := s.resolvePrice(ctx, plan, req.ApplicationID, at, req.CouponCode)
	if err != nil {
		return nil, nil, "", err
	}

	now := s.now()
	status := StatusPending
	if req.PaymentConfirmed {
		status = StatusActive
	}

	start := req.PeriodStart
	if start.IsZero() {
		start = at
	}
	end := req.PeriodEnd
	if end.IsZero() {
		end = nextPeriod(plan, start)
	}

	sub := &Subscription{
		ID:             uuid.New(),
		ProviderSubID:  req.ProviderSubID,
		ApplicationID:  req.ApplicationID,
		CustomerID:     req.CustomerID,
		PlanID:         plan.ID,
		Price:          res.Price,
		Status:         status,
		AppliedOfferID: res.OfferID,
		CouponCode:     req.CouponCode,
		LastEventID:    event.ID,
		PeriodStart:    start,
		PeriodEnd:      end,
		SkipPeriods:    res.FreeMonths,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	return &Outcome{
		Status:         OutcomeApplied,
		Kind:           KindCreated,
		ProviderSubID:  sub.ProviderSubID,
		SubscriptionID: sub.ID.String(),
		State:          sub.Status,
	}, sub, res.OfferID, nil
}

// resolveOnto re-resolves plan price and offer eligibility onto sub and
// returns the offer whose usage the commit should consume. Stale discounts
// are never reused: the engine is consulted fresh every resolution.
func (s *Service) resolveOnto(ctx context.Context, sub *Subscription, planID string, at time.Time) (string, error) {
	plan, err := s.getPlan(ctx, planID)
	if err != nil {
		return "", err
	}

	res, err := s.resolvePrice(ctx, plan, sub.ApplicationID, at, sub.CouponCode)
	if err != nil {
		return "", err
	}

	// A newly applied free-months offer grants its credit once.
	if res.FreeMonths > 0 && res.OfferID != sub.AppliedOfferID {
		sub.SkipPeriods += res.FreeMonths
	}
	sub.Price = res.Price
	sub.AppliedOfferID = res.OfferID
	return res.OfferID, nil
}

func (s *Service) commit(ctx context.Context, sub *Subscription, record *EventRecord, offerID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.store.ApplyTransition(ctx, sub, record, offerID)
}

func (s *Service) commitRecordOnly(ctx context.Context, event *Event, outcome Outcome) (*Outcome, error) {
	record := &EventRecord{EventID: event.ID, ProcessedAt: s.now(), Outcome: outcome}
	if err := s.commit(ctx, nil, record, ""); err != nil {
		if errors.Is(err, ErrEventAlreadyProcessed) {
			if rec, err := s.getEvent(ctx, event.ID); err == nil {
				return &rec.Outcome, nil
			}
		}
		return nil, err
	}
	return &outcome, nil
}

func (s *Service) getEvent(ctx context.Context, eventID string) (*EventRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.store.GetEvent(ctx, eventID)
}

func (s *Service) getByProviderID(ctx context.Context, providerSubID string) (*Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.store.GetByProviderID(ctx, providerSubID)
}

func (s *Service) getPlan(ctx context.Context, planID string) (*catalog.Plan, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.catalog.GetPlan(ctx, planID)
}

func (s *Service) defaultPlan(ctx context.Context, applicationID string) (*catalog.Plan, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.catalog.DefaultPlan(ctx, applicationID)
}

func (s *Service) resolvePrice(ctx context.Context, plan *catalog.Plan, applicationID string, at time.Time, coupon string) (offer.Resolution, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.offers.ResolvePrice(ctx, plan, applicationID, at, coupon)
}

// rejectionReason maps business-rejection errors onto taxonomy kinds.
// Transient and unexpected errors return "".
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrMalformedEvent):
		return "malformed_event"
	case errors.Is(err, catalog.ErrPlanNotFound):
		return "plan_not_found"
	case errors.Is(err, catalog.ErrPlanInactive):
		return "plan_inactive"
	case errors.Is(err, catalog.ErrApplicationNotFound):
		return "application_not_found"
	default:
		return ""
	}
}
