// Package app wires the stores, services and runner from a Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"report-assembler/internal/artifacts"
	"report-assembler/internal/config"
	"report-assembler/internal/fixtures"
	"report-assembler/internal/ledger"
	"report-assembler/internal/logging"
	"report-assembler/internal/observability"
	"report-assembler/internal/params"
	"report-assembler/internal/readiness"
	"report-assembler/internal/reporting"
	"report-assembler/internal/runlock"
	"report-assembler/internal/runner"
	"report-assembler/internal/sections"
	"report-assembler/internal/snapshot"
	"report-assembler/internal/storage"
	chstore "report-assembler/internal/storage/clickhouse"
	"report-assembler/internal/storage/memory"
	"report-assembler/internal/storage/migrations"
	pgstore "report-assembler/internal/storage/postgres"
	"report-assembler/internal/storage/sqlite"
)

// Stores holds one implementation of every storage interface.
type Stores struct {
	Uploads     storage.UploadLedgerStore
	Freshness   storage.AliasFreshnessStore
	Definitions storage.ReportDefinitionStore
	Variables   storage.VariableStore
	Params      storage.ReportParamStore
	Datasets    storage.DatasetStore
}

// Fixtures returns the subset of stores the demo fixtures write to.
func (s Stores) Fixtures() fixtures.Stores {
	return fixtures.Stores{
		Uploads:     s.Uploads,
		Freshness:   s.Freshness,
		Definitions: s.Definitions,
		Params:      s.Params,
		Datasets:    s.Datasets,
	}
}

// App is the fully wired application.
type App struct {
	Config   config.Config
	Logger   logrus.FieldLogger
	Registry *prometheus.Registry // nil when metrics are disabled
	Metrics  *observability.Metrics

	Stores    Stores
	Ledger    *ledger.Ledger
	Snapshots *snapshot.Selector
	Readiness *readiness.Validator
	Artifacts *artifacts.Store
	Params    *params.Params
	Modules   *runner.Registry
	Runner    *runner.Runner
	Reports   *reporting.Generator

	closers []func() error
}

// Build creates an App. The caller must Close it.
func Build(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (*App, error) {
	a := &App{Config: cfg, Logger: logging.OrDiscard(logger)}

	if cfg.Metrics.Enabled {
		a.Registry = prometheus.NewRegistry()
		a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		a.Metrics = observability.NewMetrics(cfg.Metrics.Namespace, a.Registry)
	}

	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	pool, err := a.openStores(ctx)
	if err != nil {
		return err
	}

	if cfg.ClickHouse.Enabled {
		conn, err := a.openClickHouse(ctx)
		if err != nil {
			return err
		}
		a.Stores.Datasets = chstore.NewDatasetStore(conn)
	}

	locker, err := a.openLocker(ctx, pool)
	if err != nil {
		return err
	}

	images, err := a.openImages(ctx)
	if err != nil {
		return err
	}

	a.Ledger = ledger.New(a.Stores.Uploads, a.Stores.Freshness,
		ledger.WithMetrics(a.Metrics), ledger.WithLogger(a.Logger))
	a.Snapshots = snapshot.New(a.Stores.Uploads, a.Stores.Datasets, a.Metrics, a.Logger)
	a.Readiness = readiness.New(a.Stores.Definitions, a.Stores.Uploads, a.Metrics, a.Logger)
	a.Artifacts = artifacts.New(a.Stores.Variables,
		artifacts.WithImages(images), artifacts.WithMetrics(a.Metrics), artifacts.WithLogger(a.Logger))
	a.Params = params.New(a.Stores.Params)

	a.Modules = runner.NewRegistry()
	if err := sections.Register(a.Modules); err != nil {
		return fmt.Errorf("register sections: %w", err)
	}

	a.Runner, err = runner.New(runner.Options{
		Definitions:          a.Stores.Definitions,
		Readiness:            a.Readiness,
		Snapshots:            a.Snapshots,
		Artifacts:            a.Artifacts,
		Registry:             a.Modules,
		Params:               a.Params,
		Locker:               locker,
		Metrics:              a.Metrics,
		Logger:               a.Logger,
		DefaultToleranceDays: cfg.Runner.ToleranceDays,
	})
	if err != nil {
		return err
	}

	a.Reports = reporting.NewGenerator(a.Artifacts)
	return nil
}

// openStores opens the configured backend. The Postgres pool is returned
// for the advisory locker; it is nil for other backends.
func (a *App) openStores(ctx context.Context) (*pgstore.Pool, error) {
	cfg := a.Config

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		a.Stores = Stores{
			Uploads:     memory.NewUploadLedgerStore(),
			Freshness:   memory.NewAliasFreshnessStore(),
			Definitions: memory.NewReportDefinitionStore(),
			Variables:   memory.NewVariableStore(),
			Params:      memory.NewReportParamStore(),
			Datasets:    memory.NewDatasetStore(),
		}
		return nil, nil

	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLite.Path, migrations.RunSQLiteMigrations)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.Stores = Stores{
			Uploads:     sqlite.NewUploadLedgerStore(db),
			Freshness:   sqlite.NewAliasFreshnessStore(db),
			Definitions: sqlite.NewReportDefinitionStore(db),
			Variables:   sqlite.NewVariableStore(db),
			Params:      sqlite.NewReportParamStore(db),
			Datasets:    sqlite.NewDatasetStore(db),
		}
		a.Logger.WithField("path", cfg.SQLite.Path).Info("using sqlite storage")
		return nil, nil

	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		if cfg.Database.RunMigrations {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
		}
		a.Stores = Stores{
			Uploads:     pgstore.NewUploadLedgerStore(pool),
			Freshness:   pgstore.NewAliasFreshnessStore(pool),
			Definitions: pgstore.NewReportDefinitionStore(pool),
			Variables:   pgstore.NewVariableStore(pool),
			Params:      pgstore.NewReportParamStore(pool),
			Datasets:    pgstore.NewDatasetStore(pool),
		}
		a.Logger.Info("using postgres storage")
		return pool, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func (a *App) openClickHouse(ctx context.Context) (*chstore.Conn, error) {
	cfg := a.Config.ClickHouse

	var (
		conn *chstore.Conn
		err  error
	)
	if cfg.RunMigrations {
		conn, err = migrations.RunClickhouseMigrations(ctx, cfg.DSN)
	} else {
		conn, err = chstore.NewConn(ctx, cfg.DSN)
	}
	if err != nil {
		return nil, fmt.Errorf("clickhouse: %w", err)
	}
	a.closers = append(a.closers, conn.Close)
	a.Logger.Info("datasets stored in clickhouse")
	return conn, nil
}

func (a *App) openLocker(ctx context.Context, pool *pgstore.Pool) (runlock.Locker, error) {
	cfg := a.Config

	switch cfg.Runner.Lock {
	case config.LockLocal, "":
		return runlock.NewLocalLocker(), nil

	case config.LockRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
		}
		return runlock.NewRedisLocker(client, cfg.Runner.LockTTL()).WithLogger(a.Logger), nil

	case config.LockPostgres:
		if pool == nil {
			// Storage lives elsewhere; the lock still needs a database to coordinate on.
			if cfg.Database.DSN == "" {
				return nil, errors.New("postgres run lock requires database.dsn")
			}
			var err error
			pool, err = pgstore.NewPool(ctx, cfg.Database.DSN)
			if err != nil {
				return nil, fmt.Errorf("run lock: %w", err)
			}
			lockPool := pool
			a.closers = append(a.closers, func() error { lockPool.Close(); return nil })
		}
		return runlock.NewPGAdvisoryLocker(pool.Pool), nil

	default:
		return nil, fmt.Errorf("unknown run lock %q", cfg.Runner.Lock)
	}
}

func (a *App) openImages(ctx context.Context) (artifacts.ImageStore, error) {
	cfg := a.Config.Artifacts

	switch cfg.Images {
	case config.ImagesFile, "":
		return artifacts.NewFileImageStore(cfg.Dir)
	case config.ImagesS3:
		return artifacts.NewS3ImageStore(ctx, artifacts.S3ImageConfig{
			Bucket:   cfg.S3.Bucket,
			Region:   cfg.S3.Region,
			Endpoint: cfg.S3.Endpoint,
			Prefix:   cfg.S3.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown image store %q", cfg.Images)
	}
}

// LoadFixtures seeds the demo report around cutoff.
func (a *App) LoadFixtures(ctx context.Context, cutoff time.Time) error {
	return fixtures.Load(ctx, a.Stores.Fixtures(), cutoff)
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
