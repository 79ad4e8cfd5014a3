package cli

import (
	"context"
	"fmt"
	"log/slog"

	"assessment-service/internal/config"
	"assessment-service/internal/infra/bunstore"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			db, err := openDatabase(cmd.Context(), cfg, newLogger(cfg))
			if err != nil {
				return err
			}
			return db.Close()
		},
	}
}

// openDatabase connects to the configured SQL database and brings its schema up to date.
func openDatabase(ctx context.Context, cfg config.Config, logger *slog.Logger) (*bun.DB, error) {
	if cfg.Database.Driver == "" {
		return nil, fmt.Errorf("database driver not configured")
	}
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url not configured")
	}
	db, err := bunstore.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	group, err := bunstore.Migrate(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if group.IsZero() {
		logger.Info("database schema up to date", "driver", cfg.Database.Driver)
	} else {
		logger.Info("migrations applied", "driver", cfg.Database.Driver, "group", group.String())
	}
	return db, nil
}
