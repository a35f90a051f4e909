package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"ytstats/catalog"
	"ytstats/config"
	"ytstats/export"
	"ytstats/internal/retry"
	"ytstats/storage"
	"ytstats/syncer"
	"ytstats/verify"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run sync, export, and verify on the configured cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateSync(); err != nil {
				return err
			}
			return runDaemon(cmd.Context(), cfg)
		},
	}
}

func runDaemon(ctx context.Context, cfg *config.Config) error {
	log := newLogger()

	store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer store.Close()

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.MaxRetries
	retryCfg.InitialBackoff = cfg.InitialBackoff
	retryCfg.MaxBackoff = cfg.MaxBackoff

	cat, err := catalog.NewAPICatalog(ctx, cfg.APIKey, catalog.Options{
		RequestsPerSecond:  cfg.RequestsPerSecond,
		MinDurationSeconds: cfg.MinDuration,
		Retry:              &retryCfg,
	}, log)
	if err != nil {
		return err
	}

	job := func() {
		syncer.New(cat, store, cfg.MaxVideos, log).Run(ctx, cfg.Channels)

		if _, err := export.NewWriter(cfg.ExportDir, log).Export(ctx, store); err != nil {
			log.Error().Err(err).Msg("export failed")
			return
		}

		report, err := verify.NewChecker(store, cfg.ExportDir, log).Run(ctx)
		if err != nil {
			log.Error().Err(err).Msg("verification failed to run")
			return
		}
		if err := verify.WriteReport(cfg.ExportDir, report); err != nil {
			log.Error().Err(err).Msg("writing verification report failed")
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Schedule, job); err != nil {
		return err
	}

	log.Info().Str("schedule", cfg.Schedule).Msg("scheduler started, running initial pass")
	job()
	c.Start()
	defer c.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info().Msg("shutting down")
	case <-ctx.Done():
	}
	return nil
}
