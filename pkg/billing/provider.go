package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/meayach/saasify-sub002/pkg/webhook"
)

// EventProvider verifies and decodes a raw provider delivery into a
// normalized Event. Implementations are provider-specific; everything past
// ParseEvent is provider-agnostic.
type EventProvider interface {
	ParseEvent(ctx context.Context, payload []byte, signature string) (*Event, error)
}

// Generic webhook event types.
const (
	eventTypeCreated       = "subscription.created"
	eventTypeRenewed       = "subscription.renewed"
	eventTypePaymentFailed = "subscription.payment_failed"
	eventTypeCanceled      = "subscription.canceled"
	eventTypePlanChanged   = "subscription.plan_changed"
)

// GenericProvider decodes the engine's native JSON webhook envelope,
// authenticated with an HMAC-SHA256 signature header.
type GenericProvider struct {
	secret string
	maxAge time.Duration
}

// NewGenericProvider creates a provider for the native webhook format.
// maxAge bounds signature timestamp freshness; zero disables the check.
func NewGenericProvider(secret string, maxAge time.Duration) (*GenericProvider, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: webhook secret is required", webhook.ErrInvalidConfiguration)
	}
	return &GenericProvider{secret: secret, maxAge: maxAge}, nil
}

type genericEnvelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       genericSubEvent `json:"data"`
}

type genericSubEvent struct {
	SubscriptionID   string `json:"subscription_id"`
	ApplicationID    string `json:"application_id"`
	CustomerID       string `json:"customer_id"`
	PlanID           string `json:"plan_id"`
	CouponCode       string `json:"coupon_code"`
	PeriodStart      string `json:"period_start"`
	PeriodEnd        string `json:"period_end"`
	PaymentConfirmed bool   `json:"payment_confirmed"`
	CancelReason     string `json:"cancel_reason"`
}

// ParseEvent verifies the signature header and decodes the envelope. Unknown
// event types yield KindIgnored rather than an error so new provider event
// types never bounce deliveries.
func (p *GenericProvider) ParseEvent(_ context.Context, payload []byte, signature string) (*Event, error) {
	headers, err := webhook.ParseSignatureHeader(signature)
	if err != nil {
		return nil, err
	}
	if err := webhook.VerifySignature(p.secret, payload, headers, p.maxAge); err != nil {
		return nil, err
	}

	var env genericEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}
	if env.EventID == "" {
		return nil, fmt.Errorf("%w: missing event_id", ErrMalformedEvent)
	}

	kind := kindForEventType(env.EventType)
	if kind != KindIgnored && env.Data.SubscriptionID == "" {
		return nil, fmt.Errorf("%w: missing subscription_id", ErrMalformedEvent)
	}

	req := TransitionRequest{
		Kind:             kind,
		ProviderSubID:    env.Data.SubscriptionID,
		ApplicationID:    env.Data.ApplicationID,
		CustomerID:       env.Data.CustomerID,
		PlanID:           env.Data.PlanID,
		CouponCode:       env.Data.CouponCode,
		PaymentConfirmed: env.Data.PaymentConfirmed,
		CancelReason:     env.Data.CancelReason,
	}
	if req.PeriodStart, err = parsePeriod(env.Data.PeriodStart); err != nil {
		return nil, err
	}
	if req.PeriodEnd, err = parsePeriod(env.Data.PeriodEnd); err != nil {
		return nil, err
	}
	if kind == KindCreated && req.ApplicationID == "" {
		return nil, fmt.Errorf("%w: missing application_id", ErrMalformedEvent)
	}

	return &Event{
		ID:           env.EventID,
		ProviderType: env.EventType,
		OccurredAt:   env.OccurredAt,
		Request:      req,
	}, nil
}

func kindForEventType(eventType string) TransitionKind {
	switch eventType {
	case eventTypeCreated:
		return KindCreated
	case eventTypeRenewed:
		return KindRenewed
	case eventTypePaymentFailed:
		return KindPaymentFailed
	case eventTypeCanceled:
		return KindCanceled
	case eventTypePlanChanged:
		return KindPlanChanged
	default:
		return KindIgnored
	}
}

func parsePeriod(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad period timestamp %q", ErrMalformedEvent, value)
	}
	return ts, nil
}
