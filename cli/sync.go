package cli

import (
	"github.com/spf13/cobra"

	"ytstats/catalog"
	"ytstats/config"
	"ytstats/internal/retry"
	"ytstats/storage"
	"ytstats/syncer"
)

func newSyncCmd() *cobra.Command {
	var maxVideos int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch channel uploads and statistics into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateSync(); err != nil {
				return err
			}
			if cmd.Flags().Changed("max") {
				cfg.MaxVideos = maxVideos
			}
			return runSync(cmd, cfg)
		},
	}
	cmd.Flags().IntVar(&maxVideos, "max", 0, "maximum videos fetched per channel (0 = all)")
	return cmd
}

func runSync(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()
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

	// Partial channel failures are logged, not fatal: the run still exits 0.
	syncer.New(cat, store, cfg.MaxVideos, log).Run(ctx, cfg.Channels)
	return nil
}
