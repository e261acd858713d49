// Package app assembles the services shared by the API server and the CLI
// from configuration.
package app

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"leadbot/internal/audit"
	"leadbot/internal/config"
	"leadbot/internal/contacts"
	"leadbot/internal/eventlog"
	"leadbot/internal/reporting"
	"leadbot/internal/syncer"
	"leadbot/internal/telephony"
	"leadbot/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type App struct {
	Config config.Config
	Log    *zap.Logger

	DB    *sql.DB
	Redis *redis.Client

	Events   *eventlog.SQLRepo
	Audit    *audit.Service
	Contacts *contacts.Service
	Reports  *reporting.Service

	auditRepo *audit.SQLRepo
	tokens    *telephony.SQLTokenStore
}

// Open connects the store (and redis when enabled) and builds the
// storage-backed services. The phone-system client is created on demand by
// Telephony since commands such as import never need it.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	db, err := utils.OpenDB(ctx, cfg.DriverName(), cfg.DSN(), cfg.PoolConfig())
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Log: log, DB: db}

	if cfg.Redis.Enabled {
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		a.Redis = rdb
	}

	dialect := eventlog.DialectSQLite
	if cfg.Store.Driver == "postgres" {
		dialect = eventlog.DialectPostgres
	}
	a.Events = eventlog.NewSQLRepo(db, dialect)
	a.auditRepo = audit.NewSQLRepo(db, dialect)
	a.Audit = audit.NewService(a.auditRepo)
	a.tokens = telephony.NewSQLTokenStore(db, dialect)

	var cache contacts.Cache = contacts.NewMemoryCache()
	if a.Redis != nil {
		cache = contacts.NewRedisCache(a.Redis, "")
	}
	a.Contacts = contacts.NewService(a.Events, cache, cfg.Build(), cfg.Enrich.IndexCacheTTL)
	a.Reports = reporting.NewService(a.Events, cfg.Build())

	log.Info("store ready",
		zap.String("driver", cfg.Store.Driver),
		zap.Bool("redis", a.Redis != nil),
		zap.String("timezone", cfg.App.Timezone),
	)
	return a, nil
}

// Migrate creates every table the services write to.
func (a *App) Migrate(ctx context.Context) error {
	if err := a.Events.Migrate(ctx); err != nil {
		return eris.Wrap(err, "migrate event log")
	}
	if err := a.auditRepo.Migrate(ctx); err != nil {
		return eris.Wrap(err, "migrate audit")
	}
	if err := a.tokens.Migrate(ctx); err != nil {
		return eris.Wrap(err, "migrate token store")
	}
	return nil
}

func (a *App) Telephony(ctx context.Context) (*telephony.Client, error) {
	cfg := a.Config.Telephony()
	cfg.Tokens = a.tokens
	return telephony.NewClient(ctx, cfg)
}

// Engine builds a sync engine over src. The lock lives in redis when it is
// enabled so that API replicas and cron-driven CLI runs exclude each other.
func (a *App) Engine(src syncer.Source) *syncer.Engine {
	var locker syncer.Locker = syncer.NewMemoryLocker()
	if a.Redis != nil {
		locker = syncer.NewRedisLocker(a.Redis)
	}
	return syncer.NewEngine(src, a.Events, a.Config.Syncer(),
		syncer.WithLocker(locker),
		syncer.WithAudit(a.Audit),
		syncer.WithIndex(a.Contacts),
	)
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.Warn("redis close", zap.Error(err))
		}
	}
	if err := a.DB.Close(); err != nil {
		a.Log.Warn("db close", zap.Error(err))
	}
}
