package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"civicdesk/internal/bootstrap/config"
	"civicdesk/internal/bootstrap/database"
	"civicdesk/internal/bootstrap/logging"
	"civicdesk/internal/errs"
	"civicdesk/internal/infrastructure/events"
	"civicdesk/internal/infrastructure/zones"
)

// App is what commands need beyond the grievance service itself.
type App struct {
	Config config.Config
	DB     *gorm.DB
	Logger *slog.Logger
	Zones  *zones.Catalog
	Hub    *events.Hub
}

func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration")

	if err := database.Migrate(logCtx, a.DB); err != nil {
		return err
	}

	logging.Info(logCtx, "schema migration completed")
	return nil
}
