package httpserver_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meayach/saasify-sub002/pkg/httpserver"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHealthCheckHandler(t *testing.T) {
	t.Parallel()

	t.Run("liveness", func(t *testing.T) {
		t.Parallel()
		h := httpserver.HealthCheckHandler(context.Background(), nil)
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		body, _ := io.ReadAll(rec.Body)
		assert.Equal(t, "ALIVE", string(body))
	})

	t.Run("readiness all healthy", func(t *testing.T) {
		t.Parallel()
		ok := func(context.Context) error { return nil }
		h := httpserver.HealthCheckHandler(context.Background(), discardLogger(), ok, ok)
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("readiness dependency failing", func(t *testing.T) {
		t.Parallel()
		bad := func(context.Context) error { return errors.New("store unreachable") }
		h := httpserver.HealthCheckHandler(context.Background(), discardLogger(), bad)
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestServerRun(t *testing.T) {
	t.Parallel()

	t.Run("shutdown on context cancel", func(t *testing.T) {
		t.Parallel()
		srv := httpserver.New(httpserver.Config{Addr: "127.0.0.1:0"}, discardLogger())
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- srv.Run(ctx, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
		}()

		cancel()
		require.NoError(t, <-done)
	})
}
