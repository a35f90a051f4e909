package cli

import (
	"github.com/spf13/cobra"

	"ytstats/export"
	"ytstats/storage"
)

func newExportCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored rows to CSV files and a JSON summary",
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

			_, err = export.NewWriter(cfg.ExportDir, log).Export(cmd.Context(), store)
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "export directory (default from config)")
	return cmd
}
