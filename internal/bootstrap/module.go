package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"civicdesk/internal/bootstrap/config"
	"civicdesk/internal/bootstrap/database"
	"civicdesk/internal/bootstrap/logging"
	domain "civicdesk/internal/domain/grievance"
	"civicdesk/internal/errs"
	cacheinfra "civicdesk/internal/infrastructure/cache"
	"civicdesk/internal/infrastructure/classifier"
	"civicdesk/internal/infrastructure/events"
	"civicdesk/internal/infrastructure/media"
	sqliterepo "civicdesk/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "civicdesk/internal/infrastructure/persistence/sqlite/uow"
	"civicdesk/internal/infrastructure/zones"
	"civicdesk/internal/ports"
	grievanceuc "civicdesk/internal/usecase/grievance"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideLogger),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewGrievanceRepository,
			fx.As(new(ports.GrievanceRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(provideMediaStore),
	fx.Provide(provideClassifier),
	fx.Provide(provideZones),
	fx.Provide(provideHub),
	fx.Provide(providePublisher),
	fx.Provide(provideService),
	fx.Invoke(registerErrorKinds),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

type loggerParams struct {
	fx.In

	Cfg    config.Config
	Output io.Writer `name:"logOutput" optional:"true"`
}

func provideLogger(p loggerParams) *slog.Logger {
	out := p.Output
	if out == nil {
		out = os.Stderr
	}
	return logging.New(out, p.Cfg.Logging.Level, p.Cfg.Logging.Format).
		With(slog.String("app", p.Cfg.App.Name))
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB, logger *slog.Logger, catalog *zones.Catalog, hub *events.Hub) *App {
	return &App{
		Config: cfg,
		DB:     db,
		Logger: logger,
		Zones:  catalog,
		Hub:    hub,
	}
}

func provideMediaStore(cfg config.Config) (ports.MediaStore, error) {
	return media.NewFileStore(cfg.Media.Dir, cfg.HTTP.PublicBaseURL)
}

func provideClassifier(cfg config.Config) (ports.Classifier, error) {
	return classifier.New(cfg.Classifier.BaseURL, cfg.Classifier.Timeout)
}

// provideZones loads the catalog and, when enabled, keeps it in sync with its file.
func provideZones(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*zones.Catalog, error) {
	catalog, err := zones.Load(cfg.Zones.File)
	if err != nil {
		return nil, err
	}
	if !cfg.Zones.Watch || catalog.Path() == "" {
		return catalog, nil
	}

	watchCtx, cancel := context.WithCancel(logging.WithAttrs(context.WithoutCancel(ctx), slog.String("component", "zones")))
	var wg sync.WaitGroup
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := catalog.Watch(watchCtx, zones.DefaultDebounce); err != nil {
					logging.Warn(watchCtx, "zones watcher stopped", slog.Any("err", errs.Loggable(err)))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			wg.Wait()
			return nil
		},
	})
	return catalog, nil
}

func provideHub(lc fx.Lifecycle) *events.Hub {
	hub := events.NewHub()
	lc.Append(fx.StopHook(func(context.Context) error {
		hub.Close()
		return nil
	}))
	return hub
}

// providePublisher always feeds the websocket hub and adds NATS when a url is configured.
func providePublisher(lc fx.Lifecycle, ctx context.Context, cfg config.Config, hub *events.Hub) (ports.EventPublisher, error) {
	if cfg.Events.NATSURL == "" {
		return hub, nil
	}

	conn, err := events.ConnectNATS(cfg.Events.NATSURL, cfg.App.Name)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(func(context.Context) error {
		if err := conn.Drain(); err != nil && err != nats.ErrConnectionClosed {
			return errs.Wrap(err, "drain nats connection")
		}
		return nil
	}))
	logging.Info(ctx, "publishing grievance events to nats",
		slog.String("url", cfg.Events.NATSURL),
		slog.String("subject_prefix", cfg.Events.SubjectPrefix),
	)
	return events.Fanout{hub, events.NewNATSPublisher(conn, cfg.Events.SubjectPrefix)}, nil
}

type serviceParams struct {
	fx.In

	Cfg        config.Config
	Repo       ports.GrievanceRepository
	UoW        ports.UnitOfWork
	Cache      ports.Cache
	Media      ports.MediaStore
	Classifier ports.Classifier
	Events     ports.EventPublisher
	Zones      *zones.Catalog
}

func provideService(p serviceParams) *grievanceuc.Service {
	return grievanceuc.NewService(p.Repo, p.UoW, grievanceuc.Options{
		Media:          p.Media,
		Classifier:     p.Classifier,
		Events:         p.Events,
		Cache:          p.Cache,
		Zones:          p.Zones,
		StrictAreas:    p.Cfg.Intake.StrictAreas,
		IdempotencyTTL: p.Cfg.Intake.IdempotencyTTL,
	})
}

func registerErrorKinds() {
	errs.RegisterKind(domain.ErrorKind)
}
