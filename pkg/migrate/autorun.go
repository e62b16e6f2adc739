package migrate

import (
	"context"
	"fmt"

	"github.com/counterline/poscore/pkg/config"
	"github.com/counterline/poscore/pkg/db"
	"github.com/counterline/poscore/pkg/logger"
)

// MaybeRun upgrades the local store schema on boot when auto-migrate is
// enabled. Terminals maintain their own sqlite file, so this is the default;
// back-office postgres deployments typically migrate via the CLI instead.
func MaybeRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.DB.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"driver": cfg.DB.Driver, "dir": Dir(cfg.DB.Driver)})
	logg.Info(ctx, "running goose migrations")

	if err := Run(ctx, sqlDB, cfg.DB.Driver, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}
