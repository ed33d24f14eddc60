package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meayach/saasify-sub002/pkg/logger"
)

type ctxKey string

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json output with static attrs", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithFormat(logger.FormatJSON),
			logger.WithAttr(slog.String("service", "billingd")),
		)

		log.Info("event processed", logger.EventID("evt_1"))

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "event processed", record["msg"])
		assert.Equal(t, "billingd", record["service"])
		assert.Equal(t, "evt_1", record["event_id"])
	})

	t.Run("context extractor injects attribute", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		key := ctxKey("sub")
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithContextValue("subscription_id", key),
		)

		ctx := context.WithValue(context.Background(), key, "sub_42")
		log.InfoContext(ctx, "transition applied")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "sub_42", record["subscription_id"])
	})

	t.Run("level filtering", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelWarn))

		log.Info("dropped")
		assert.Zero(t, buf.Len())

		log.Warn("kept")
		assert.NotZero(t, buf.Len())
	})

	t.Run("invalid format panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			logger.New(logger.WithFormat(logger.Format("xml")))
		})
	})

	t.Run("error attr", func(t *testing.T) {
		t.Parallel()
		attr := logger.Error(errors.New("boom"))
		assert.Equal(t, "error", attr.Key)
		assert.Equal(t, "boom", attr.Value.String())
	})
}
