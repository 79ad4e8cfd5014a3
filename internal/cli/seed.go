package cli

import (
	"assessment-service/internal/config"
	"assessment-service/internal/infra/bunstore"
	"assessment-service/internal/seed"
	"github.com/spf13/cobra"
)

// NewSeedCmd loads the sample assessments into the configured database.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load sample assessments into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			db, err := openDatabase(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := seed.Load(cmd.Context(), bunstore.New(db))
			if err != nil {
				return err
			}
			logger.Info("sample assessments loaded", "count", n)
			return nil
		},
	}
}
