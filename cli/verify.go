package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ytstats/storage"
	"ytstats/verify"
)

func newVerifyCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Reconcile the store against the exported artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dir != "" {
				cfg.ExportDir = dir
			}

			log := newLogger()
			store, err := storage.NewPostgresStore(cmd.Context(), cfg.DatabaseURL, log)
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := verify.NewChecker(store, cfg.ExportDir, log).Run(cmd.Context())
			if err != nil {
				return err
			}
			if err := verify.WriteReport(cfg.ExportDir, report); err != nil {
				return err
			}
			if !report.AllPassed {
				return fmt.Errorf("verification failed: see %s", verify.ReportFile)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "export directory (default from config)")
	return cmd
}
