// Command billingd runs the settlement engine: it receives provider webhook
// deliveries, settles them into subscription state, and keeps the plan
// catalog consistent on a schedule.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"

	"github.com/meayach/saasify-sub002/pkg/billing"
	"github.com/meayach/saasify-sub002/pkg/catalog"
	"github.com/meayach/saasify-sub002/pkg/config"
	"github.com/meayach/saasify-sub002/pkg/httpserver"
	"github.com/meayach/saasify-sub002/pkg/logger"
	mongodb "github.com/meayach/saasify-sub002/pkg/mongo"
	"github.com/meayach/saasify-sub002/pkg/offer"
	"github.com/meayach/saasify-sub002/pkg/webhook"
)

type appConfig struct {
	LogLevel        slog.Level    `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	Provider        string        `env:"BILLING_PROVIDER" envDefault:"generic"` // generic or paddle
	WebhookSecret   string        `env:"BILLING_WEBHOOK_SECRET"`
	SignatureMaxAge time.Duration `env:"BILLING_SIGNATURE_MAX_AGE" envDefault:"5m"`
	PruneSchedule   string        `env:"BILLING_PRUNE_SCHEDULE" envDefault:"@daily"`
}

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "billingd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var (
		appCfg        appConfig
		mongoCfg      mongodb.Config
		httpCfg       httpserver.Config
		billingCfg    billing.Config
		reconcilerCfg catalog.ReconcilerConfig
	)
	config.MustLoad(&appCfg)
	config.MustLoad(&mongoCfg)
	config.MustLoad(&httpCfg)
	config.MustLoad(&billingCfg)
	config.MustLoad(&reconcilerCfg)

	log := logger.New(
		logger.WithLevel(appCfg.LogLevel),
		logger.WithFormat(logger.Format(appCfg.LogFormat)),
		logger.WithAttr(slog.String("service", "billingd")),
	)
	logger.SetAsDefault(log)

	client, err := mongodb.New(ctx, mongoCfg)
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}()
	db := client.Database(mongoCfg.Database)

	offerStore := offer.NewMongoStore(db)
	catalogStore := catalog.NewMongoStore(db)
	subStore := billing.NewMongoStore(client, db, offerStore)
	if err := subStore.EnsureIndexes(ctx); err != nil {
		return err
	}

	provider, err := newProvider(appCfg)
	if err != nil {
		return err
	}

	svc := billing.NewService(
		provider,
		subStore,
		catalog.New(catalogStore),
		offer.NewEngine(offerStore, log),
		billingCfg,
		billing.WithLogger(log),
	)

	reconciler := catalog.NewReconciler(catalogStore, reconcilerCfg, log)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(reconcilerCfg.Schedule, func() {
		report, err := reconciler.Run(ctx)
		if err != nil {
			log.ErrorContext(ctx, "catalog reconcile run failed", logger.Error(err))
			return
		}
		log.InfoContext(ctx, "catalog reconcile run finished",
			slog.Int("scanned", report.Scanned),
			slog.Int("changed", report.Changed()),
			slog.Int("failures", len(report.Failures)))
	}); err != nil {
		return fmt.Errorf("failed to schedule reconciler: %w", err)
	}
	if _, err := scheduler.AddFunc(appCfg.PruneSchedule, func() {
		pruned, err := svc.PruneEvents(ctx)
		if err != nil {
			log.ErrorContext(ctx, "event prune failed", logger.Error(err))
			return
		}
		if pruned > 0 {
			log.InfoContext(ctx, "pruned processed events", slog.Int64("count", pruned))
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule event pruning: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Get("/health", httpserver.HealthCheckHandler(ctx, log, mongodb.Healthcheck(client)))
	router.Post("/webhooks/billing", webhookHandler(svc, appCfg.Provider, log))

	return httpserver.New(httpCfg, log).Run(ctx, router)
}

func newProvider(cfg appConfig) (billing.EventProvider, error) {
	switch cfg.Provider {
	case "paddle":
		var paddleCfg billing.PaddleConfig
		config.MustLoad(&paddleCfg)
		return billing.NewPaddleProvider(paddleCfg)
	case "generic":
		return billing.NewGenericProvider(cfg.WebhookSecret, cfg.SignatureMaxAge)
	default:
		return nil, fmt.Errorf("unknown billing provider %q", cfg.Provider)
	}
}

// maxWebhookBody caps delivery payloads; provider events are small.
const maxWebhookBody = 1 << 20

func webhookHandler(svc *billing.Service, providerName string, log *slog.Logger) http.HandlerFunc {
	signatureHeader := "X-Webhook-Signature"
	if providerName == "paddle" {
		signatureHeader = "Paddle-Signature"
	}

	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		outcome, err := svc.HandleWebhook(r.Context(), payload, r.Header.Get(signatureHeader))
		if err != nil {
			switch {
			case errors.Is(err, webhook.ErrInvalidSignature):
				http.Error(w, "invalid signature", http.StatusUnauthorized)
			case errors.Is(err, billing.ErrMalformedEvent), errors.Is(err, webhook.ErrInvalidPayload):
				http.Error(w, "malformed event", http.StatusBadRequest)
			case billing.IsTransient(err), errors.Is(err, context.DeadlineExceeded):
				// Non-2xx asks the provider to redeliver once the store recovers.
				log.ErrorContext(r.Context(), "webhook settlement unavailable", logger.Error(err))
				http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			default:
				log.ErrorContext(r.Context(), "webhook settlement failed", logger.Error(err))
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": string(outcome.Status),
			"kind":   string(outcome.Kind),
		})
	}
}
