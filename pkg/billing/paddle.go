package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/meayach/saasify-sub002/pkg/webhook"
)

// PaddleConfig holds Paddle webhook settings.
type PaddleConfig struct {
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
}

// PaddleProvider adapts Paddle webhook deliveries to the engine's event
// model.
type PaddleProvider struct {
	verifier *paddle.WebhookVerifier
}

// NewPaddleProvider creates a Paddle event provider.
func NewPaddleProvider(config PaddleConfig) (*PaddleProvider, error) {
	if config.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: paddle webhook secret is required", webhook.ErrInvalidConfiguration)
	}
	return &PaddleProvider{verifier: paddle.NewWebhookVerifier(config.WebhookSecret)}, nil
}

type paddleEnvelope struct {
	EventID    string         `json:"event_id"`
	EventType  string         `json:"event_type"`
	OccurredAt string         `json:"occurred_at"`
	Data       map[string]any `json:"data"`
}

// ParseEvent verifies the Paddle-Signature header and maps the event onto a
// transition request. Event types the engine does not settle come back as
// KindIgnored.
func (p *PaddleProvider) ParseEvent(ctx context.Context, payload []byte, signature string) (*Event, error) {
	// The SDK verifier only accepts *http.Request, so the raw delivery is
	// wrapped back into one.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for verification: %w", err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(webhook.ErrInvalidSignature, err)
	}
	if !valid {
		return nil, webhook.ErrInvalidSignature
	}

	var env paddleEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}
	if env.EventID == "" {
		return nil, fmt.Errorf("%w: missing event_id", ErrMalformedEvent)
	}

	event := &Event{
		ID:           env.EventID,
		ProviderType: env.EventType,
		Request:      mapPaddleEvent(env.EventType, env.Data),
	}
	if env.OccurredAt != "" {
		if ts, err := time.Parse(time.RFC3339, env.OccurredAt); err == nil {
			event.OccurredAt = ts
		}
	}
	if event.Request.Kind != KindIgnored && event.Request.ProviderSubID == "" {
		return nil, fmt.Errorf("%w: missing subscription id", ErrMalformedEvent)
	}
	return event, nil
}

// mapPaddleEvent translates one Paddle event into a transition request.
// Subscription events carry the subscription ID as the object ID;
// transaction events reference it through subscription_id.
func mapPaddleEvent(eventType string, data map[string]any) TransitionRequest {
	req := TransitionRequest{Kind: paddleKind(eventType)}
	if req.Kind == KindIgnored {
		return req
	}

	if strings.HasPrefix(eventType, "subscription.") {
		if id, ok := data["id"].(string); ok {
			req.ProviderSubID = id
		}
	} else {
		if id, ok := data["subscription_id"].(string); ok {
			req.ProviderSubID = id
		}
	}

	if customData, ok := data["custom_data"].(map[string]any); ok {
		if customerID, ok := customData["customer_id"].(string); ok {
			req.CustomerID = customerID
		}
		if appID, ok := customData["application_id"].(string); ok {
			req.ApplicationID = appID
		}
		if coupon, ok := customData["coupon_code"].(string); ok {
			req.CouponCode = coupon
		}
	}

	if items, ok := data["items"].([]any); ok && len(items) > 0 {
		if item, ok := items[0].(map[string]any); ok {
			if price, ok := item["price"].(map[string]any); ok {
				if priceID, ok := price["id"].(string); ok {
					req.PlanID = priceID
				}
			} else if priceID, ok := item["price_id"].(string); ok {
				req.PlanID = priceID
			}
		}
	}

	if period, ok := data["current_billing_period"].(map[string]any); ok {
		if start, ok := period["starts_at"].(string); ok {
			if ts, err := time.Parse(time.RFC3339, start); err == nil {
				req.PeriodStart = ts
			}
		}
		if end, ok := period["ends_at"].(string); ok {
			if ts, err := time.Parse(time.RFC3339, end); err == nil {
				req.PeriodEnd = ts
			}
		}
	}

	switch req.Kind {
	case KindCreated:
		// Paddle fires subscription.created only after the first payment
		// settles.
		req.PaymentConfirmed = true
	case KindCanceled:
		if reason, ok := data["scheduled_change"].(map[string]any); ok {
			if action, ok := reason["action"].(string); ok {
				req.CancelReason = action
			}
		}
		if req.CancelReason == "" {
			req.CancelReason = "provider_canceled"
		}
	}

	return req
}

func paddleKind(eventType string) TransitionKind {
	switch eventType {
	case "subscription.created":
		return KindCreated
	case "subscription.updated":
		return KindPlanChanged
	case "subscription.canceled":
		return KindCanceled
	case "transaction.completed":
		return KindRenewed
	case "transaction.payment_failed":
		return KindPaymentFailed
	default:
		return KindIgnored
	}
}
