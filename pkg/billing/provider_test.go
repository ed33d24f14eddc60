package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meayach/saasify-sub002/pkg/webhook"
)

func signGeneric(t *testing.T, secret string, body map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	headers, err := webhook.SignPayload(secret, payload)
	require.NoError(t, err)
	return payload, fmt.Sprintf("t=%d,v1=%s", headers.Timestamp, headers.Signature)
}

func TestGenericProviderParseEvent(t *testing.T) {
	t.Parallel()

	const secret = "provider-secret"
	provider, err := NewGenericProvider(secret, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("parses full created envelope", func(t *testing.T) {
		t.Parallel()
		payload, signature := signGeneric(t, secret, map[string]any{
			"event_id":    "evt-1",
			"event_type":  "subscription.created",
			"occurred_at": "2026-03-01T12:00:00Z",
			"data": map[string]any{
				"subscription_id":   "psub-1",
				"application_id":    "app-1",
				"customer_id":       "cus-1",
				"plan_id":           "plan-1",
				"coupon_code":       "SPRING",
				"period_start":      "2026-03-01T12:00:00Z",
				"period_end":        "2026-04-01T12:00:00Z",
				"payment_confirmed": true,
			},
		})

		event, err := provider.ParseEvent(ctx, payload, signature)
		require.NoError(t, err)
		assert.Equal(t, "evt-1", event.ID)
		assert.Equal(t, KindCreated, event.Request.Kind)
		assert.Equal(t, "psub-1", event.Request.ProviderSubID)
		assert.Equal(t, "SPRING", event.Request.CouponCode)
		assert.True(t, event.Request.PaymentConfirmed)
		assert.Equal(t, time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC), event.Request.PeriodEnd)
	})

	t.Run("unknown event type maps to ignored", func(t *testing.T) {
		t.Parallel()
		payload, signature := signGeneric(t, secret, map[string]any{
			"event_id":   "evt-2",
			"event_type": "customer.updated",
			"data":       map[string]any{},
		})

		event, err := provider.ParseEvent(ctx, payload, signature)
		require.NoError(t, err)
		assert.Equal(t, KindIgnored, event.Request.Kind)
	})

	t.Run("rejects wrong secret", func(t *testing.T) {
		t.Parallel()
		payload, signature := signGeneric(t, "other-secret", map[string]any{
			"event_id":   "evt-3",
			"event_type": "subscription.renewed",
			"data":       map[string]any{"subscription_id": "psub-1"},
		})

		_, err := provider.ParseEvent(ctx, payload, signature)
		assert.ErrorIs(t, err, webhook.ErrInvalidSignature)
	})

	t.Run("rejects missing subscription id on actionable event", func(t *testing.T) {
		t.Parallel()
		payload, signature := signGeneric(t, secret, map[string]any{
			"event_id":   "evt-4",
			"event_type": "subscription.renewed",
			"data":       map[string]any{},
		})

		_, err := provider.ParseEvent(ctx, payload, signature)
		assert.ErrorIs(t, err, ErrMalformedEvent)
	})

	t.Run("rejects bad period timestamp", func(t *testing.T) {
		t.Parallel()
		payload, signature := signGeneric(t, secret, map[string]any{
			"event_id":   "evt-5",
			"event_type": "subscription.renewed",
			"data": map[string]any{
				"subscription_id": "psub-1",
				"period_start":    "yesterday",
			},
		})

		_, err := provider.ParseEvent(ctx, payload, signature)
		assert.ErrorIs(t, err, ErrMalformedEvent)
	})
}

func TestPaddleEventMapping(t *testing.T) {
	t.Parallel()

	t.Run("subscription created", func(t *testing.T) {
		t.Parallel()
		req := mapPaddleEvent("subscription.created", map[string]any{
			"id": "sub_123",
			"custom_data": map[string]any{
				"customer_id":    "cus-1",
				"application_id": "app-1",
				"coupon_code":    "SPRING",
			},
			"items": []any{
				map[string]any{"price": map[string]any{"id": "pri_456"}},
			},
			"current_billing_period": map[string]any{
				"starts_at": "2026-03-01T00:00:00Z",
				"ends_at":   "2026-04-01T00:00:00Z",
			},
		})

		assert.Equal(t, KindCreated, req.Kind)
		assert.Equal(t, "sub_123", req.ProviderSubID)
		assert.Equal(t, "cus-1", req.CustomerID)
		assert.Equal(t, "app-1", req.ApplicationID)
		assert.Equal(t, "SPRING", req.CouponCode)
		assert.Equal(t, "pri_456", req.PlanID)
		assert.True(t, req.PaymentConfirmed)
		assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), req.PeriodStart)
	})

	t.Run("transaction references subscription", func(t *testing.T) {
		t.Parallel()
		req := mapPaddleEvent("transaction.payment_failed", map[string]any{
			"id":              "txn_789",
			"subscription_id": "sub_123",
		})

		assert.Equal(t, KindPaymentFailed, req.Kind)
		assert.Equal(t, "sub_123", req.ProviderSubID)
	})

	t.Run("canceled carries a reason", func(t *testing.T) {
		t.Parallel()
		req := mapPaddleEvent("subscription.canceled", map[string]any{"id": "sub_123"})

		assert.Equal(t, KindCanceled, req.Kind)
		assert.Equal(t, "provider_canceled", req.CancelReason)
	})

	t.Run("unmapped types are ignored", func(t *testing.T) {
		t.Parallel()
		for _, eventType := range []string{"address.created", "customer.updated", "adjustment.created"} {
			req := mapPaddleEvent(eventType, map[string]any{"id": "obj_1"})
			assert.Equal(t, KindIgnored, req.Kind, eventType)
		}
	})
}

func TestPaddleKind(t *testing.T) {
	t.Parallel()

	cases := map[string]TransitionKind{
		"subscription.created":       KindCreated,
		"subscription.updated":       KindPlanChanged,
		"subscription.canceled":      KindCanceled,
		"transaction.completed":      KindRenewed,
		"transaction.payment_failed": KindPaymentFailed,
		"subscription.paused":        KindIgnored,
	}
	for eventType, want := range cases {
		assert.Equal(t, want, paddleKind(eventType), eventType)
	}
}
