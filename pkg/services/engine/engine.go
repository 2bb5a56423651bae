package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gitsby/yarg/pkg/config"
	"github.com/gitsby/yarg/pkg/extraction"
	"github.com/gitsby/yarg/pkg/loaders"
	"github.com/gitsby/yarg/pkg/loaders/document"
	"github.com/gitsby/yarg/pkg/loaders/script"
	sqlloader "github.com/gitsby/yarg/pkg/loaders/sql"
	"github.com/gitsby/yarg/pkg/services/report"
	"github.com/gitsby/yarg/pkg/store/datasource"
	"github.com/gitsby/yarg/pkg/store/reports"
	"github.com/gitsby/yarg/pkg/store/runs"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// DefaultDatasource is the profile also served under the plain "sql" kind.
// A single configured profile is the default regardless of its name.
const DefaultDatasource = "default"

// Engine owns the loaders, datasource connections and stores built from a
// configuration.
type Engine struct {
	Config    *config.Config
	Loaders   loaders.Registry
	Extractor *extraction.Extractor
	Runs      runs.Store // nil without history_db

	dbs []*sqlx.DB
}

func New(ctx context.Context, cfg *config.Config) (*Engine, error) {
	logger := zerolog.Ctx(ctx)

	registry, err := loaders.NewRegistry(map[string]loaders.Loader{
		loaders.KindScript:   script.NewLoader(cfg.Script.AllowedImports...),
		loaders.KindDocument: document.NewLoader(),
	})
	if err != nil {
		return nil, err
	}
	e := &Engine{Config: cfg, Loaders: registry}

	if cfg.Datasources != "" {
		if err := e.openDatasources(ctx, cfg.Datasources); err != nil {
			_ = e.Close()
			return nil, err
		}
	}

	if cfg.HistoryDB != "" {
		db, err := datasource.NewDB(ctx, &config.Profile{
			Name:         "history",
			Driver:       "sqlite",
			DSN:          cfg.HistoryDB,
			MaxOpenConns: 1,
		}, "")
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		e.dbs = append(e.dbs, db)
		if e.Runs, err = runs.NewStore(ctx, db); err != nil {
			_ = e.Close()
			return nil, err
		}
	}

	settings, err := cfg.Settings()
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.Extractor = extraction.NewExtractor(registry, settings)

	logger.Debug().
		Strs("backends", registry.Kinds()).
		Int("parallelism", settings.Parallelism).
		Msg("engine ready")
	return e, nil
}

func (e *Engine) openDatasources(ctx context.Context, path string) error {
	profiles, err := config.NewRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load datasources: %w", err)
	}
	names, err := profiles.GetProfiles(ctx)
	if err != nil {
		return err
	}

	for _, name := range names {
		profile, err := profiles.GetProfile(ctx, name)
		if err != nil {
			return err
		}
		db, err := datasource.NewDB(ctx, profile, filepath.Dir(path))
		if err != nil {
			return err
		}
		e.dbs = append(e.dbs, db)

		loader, err := sqlloader.NewLoader(db)
		if err != nil {
			return err
		}
		if err := e.Loaders.Register(name, loader); err != nil {
			return err
		}
		if name != loaders.KindSQL && (name == DefaultDatasource || len(names) == 1) {
			if err := e.Loaders.Register(loaders.KindSQL, loader); err != nil {
				return err
			}
		}
	}
	return nil
}

// Reports opens the configured reports directory.
func (e *Engine) Reports() (reports.Store, error) {
	return reports.NewStore(e.Config.ReportsDir)
}

// Controller serves the stored reports with run history when configured.
func (e *Engine) Controller() (*report.DefaultController, error) {
	store, err := e.Reports()
	if err != nil {
		return nil, err
	}
	return report.NewController(store, e.Runs, e.Extractor), nil
}

func (e *Engine) Close() error {
	var errs []error
	for _, db := range e.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.dbs = nil
	return errors.Join(errs...)
}
