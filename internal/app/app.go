package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/surveytrends-backend/internal/data/db"
	"github.com/yungbote/surveytrends-backend/internal/data/partition"
	"github.com/yungbote/surveytrends-backend/internal/data/warehouse"
	"github.com/yungbote/surveytrends-backend/internal/http"
	"github.com/yungbote/surveytrends-backend/internal/observability"
	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
)

type App struct {
	Log        *logger.Logger
	Cfg        Config
	Partitions *partition.Router
	Warehouse  *warehouse.Store
	Redis      *goredis.Client
	Repos      Repos
	Services   Services
	Server     *http.Server

	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &App{Log: log, Cfg: cfg}
	a.otelShutdown = observability.InitOTel(ctx, log, cfg.Otel)

	a.Partitions, err = partition.Open(cfg.Partitions, log, db.Open)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open partitions: %w", err)
	}
	if cfg.AutoMigrate {
		if err := a.migrate(); err != nil {
			a.Close()
			return nil, err
		}
	}

	if cfg.Warehouse.DSN != "" {
		a.Warehouse, err = warehouse.Open(ctx, log, cfg.Warehouse)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open warehouse: %w", err)
		}
	}

	caches, rdb, err := wireCaches(ctx, log, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Redis = rdb

	a.Repos = wireRepos(a.Partitions.Catalog().DB, log)
	a.Services, err = wireServices(log, cfg, a.Partitions, a.Repos, caches, a.Warehouse)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Server = wireServer(log, cfg, wireHandlers(log, a.Services, a.Partitions))
	return a, nil
}

func (a *App) migrate() error {
	for _, p := range a.Partitions.All() {
		if err := db.AutoMigrateAll(p.DB); err != nil {
			return fmt.Errorf("automigrate partition %q: %w", p.Name, err)
		}
	}
	return nil
}

// Run serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	addr := ":" + a.Cfg.Port
	a.Log.Info("Serving", "addr", addr)
	return a.Server.Run(ctx, addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.Warehouse != nil {
		a.Warehouse.Close()
	}
	if a.Partitions != nil {
		errs = append(errs, a.Partitions.Close())
	}
	if a.otelShutdown != nil {
		errs = append(errs, a.otelShutdown(context.Background()))
	}
	if err := errors.Join(errs...); err != nil && a.Log != nil {
		a.Log.Warn("shutdown finished with errors", "error", err)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
