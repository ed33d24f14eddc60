package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/meayach/saasify-sub002/pkg/logger"
)

// HealthCheckHandler returns an HTTP handler usable for liveness and
// readiness probes. With no dependency functions it reports ALIVE; with
// dependency functions it runs each and reports READY or NOT_READY.
func HealthCheckHandler(ctx context.Context, log *slog.Logger, funcs ...func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(funcs) == 0 {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ALIVE"))
			return
		}

		for _, f := range funcs {
			if err := f(ctx); err != nil {
				log.ErrorContext(ctx, "readiness check failed", logger.Error(err))
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("NOT_READY"))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("READY"))
	}
}
