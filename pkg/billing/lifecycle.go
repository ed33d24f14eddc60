package billing

import (
	"time"

	"github.com/meayach/saasify-sub002/pkg/catalog"
	"github.com/meayach/saasify-sub002/pkg/statemachine"
)

var (
	statePending  = statemachine.StringState(string(StatusPending))
	stateActive   = statemachine.StringState(string(StatusActive))
	statePastDue  = statemachine.StringState(string(StatusPastDue))
	stateCanceled = statemachine.StringState(string(StatusCanceled))
)

var (
	eventRenewed       = statemachine.StringEvent(string(KindRenewed))
	eventPaymentFailed = statemachine.StringEvent(string(KindPaymentFailed))
	eventCanceled      = statemachine.StringEvent(string(KindCanceled))
	eventPlanChanged   = statemachine.StringEvent(string(KindPlanChanged))
)

// newLifecycle builds the subscription transition table. The machine is
// consulted statelessly via FireFrom; subscription state lives in the store.
// Creation is not in the table: a created event either makes a new
// subscription (pending or active per payment confirmation) or is an
// idempotent no-op, both decided before the machine is consulted.
//
//	active   -> active    (renewed, plan_changed)
//	active   -> past_due  (payment_failed)
//	past_due -> active    (renewed)
//	past_due -> past_due  (payment_failed, dunning already in progress)
//	any non-terminal -> canceled
//
// canceled is terminal: no event leaves it.
func newLifecycle() statemachine.StateMachine {
	return statemachine.MustNew(statePending,
		statemachine.WithTransition(stateActive, stateActive, eventRenewed),
		statemachine.WithTransition(statePastDue, stateActive, eventRenewed),
		statemachine.WithTransition(stateActive, statePastDue, eventPaymentFailed),
		statemachine.WithTransition(statePastDue, statePastDue, eventPaymentFailed),
		statemachine.WithTransition(statePending, stateCanceled, eventCanceled),
		statemachine.WithTransition(stateActive, stateCanceled, eventCanceled),
		statemachine.WithTransition(statePastDue, stateCanceled, eventCanceled),
		statemachine.WithTransition(stateActive, stateActive, eventPlanChanged),
	)
}

func stateOf(s Status) statemachine.State {
	return statemachine.StringState(string(s))
}

func eventOf(k TransitionKind) statemachine.Event {
	return statemachine.StringEvent(string(k))
}

// nextPeriod extends a billing period by one plan cycle.
func nextPeriod(plan *catalog.Plan, from time.Time) time.Time {
	switch plan.Cycle {
	case catalog.CycleWeekly:
		return from.AddDate(0, 0, 7)
	case catalog.CycleYearly:
		return from.AddDate(1, 0, 0)
	case catalog.CycleMonthly:
		return from.AddDate(0, 1, 0)
	default:
		return from
	}
}
