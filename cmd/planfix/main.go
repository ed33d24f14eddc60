// Command planfix runs one catalog reconcile pass and exits. It repairs
// applications whose default plan is missing or invalid, and assigns the
// configured fallback plan to applications offering no plans at all.
//
// With -seed it operates on a YAML catalog file in memory, which is useful
// for validating seed data before loading it anywhere; without it the live
// MongoDB catalog is reconciled.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/meayach/saasify-sub002/pkg/catalog"
	"github.com/meayach/saasify-sub002/pkg/config"
	"github.com/meayach/saasify-sub002/pkg/logger"
	mongodb "github.com/meayach/saasify-sub002/pkg/mongo"
)

func main() {
	seedPath := flag.String("seed", "", "reconcile a YAML catalog seed file instead of the live database")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if err := run(context.Background(), *seedPath, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "planfix: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, seedPath string, verbose bool) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := logger.New(
		logger.WithLevel(level),
		logger.WithFormat(logger.FormatText),
		logger.WithAttr(slog.String("service", "planfix")),
	)

	var reconcilerCfg catalog.ReconcilerConfig
	config.MustLoad(&reconcilerCfg)

	var store catalog.Store
	if seedPath != "" {
		seeded, err := catalog.LoadSeedFile(seedPath)
		if err != nil {
			return err
		}
		store = seeded
	} else {
		var mongoCfg mongodb.Config
		config.MustLoad(&mongoCfg)

		client, err := mongodb.New(ctx, mongoCfg)
		if err != nil {
			return err
		}
		defer func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}()
		store = catalog.NewMongoStore(client.Database(mongoCfg.Database))
	}

	report, err := catalog.NewReconciler(store, reconcilerCfg, log).Run(ctx)
	if err != nil {
		return err
	}

	for _, change := range report.Changes {
		log.Info("application repaired",
			logger.ApplicationID(change.ApplicationID),
			slog.String("added_plan", change.AddedPlanID),
			slog.String("new_default", change.NewDefaultID))
	}
	for _, failure := range report.Failures {
		log.Error("application reconcile failed",
			logger.ApplicationID(failure.ApplicationID),
			logger.Error(failure.Err))
	}

	log.Info("reconcile finished",
		slog.Int("scanned", report.Scanned),
		slog.Int("changed", report.Changed()),
		slog.Int("failures", len(report.Failures)))

	if len(report.Failures) > 0 {
		return fmt.Errorf("%d application(s) could not be repaired", len(report.Failures))
	}
	return nil
}
