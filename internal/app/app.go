// Package app wires configuration into the concrete stores, services and
// background worker shared by the API server and the operator CLI.
package app

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/comitanigiacomo/kanso-care-engine/internal/adapters/cache"
	"github.com/comitanigiacomo/kanso-care-engine/internal/adapters/notifier"
	"github.com/comitanigiacomo/kanso-care-engine/internal/adapters/repository"
	"github.com/comitanigiacomo/kanso-care-engine/internal/config"
	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
	"github.com/comitanigiacomo/kanso-care-engine/internal/core/services"
	"github.com/comitanigiacomo/kanso-care-engine/internal/core/workers"
	"github.com/comitanigiacomo/kanso-care-engine/internal/metrics"
)

type App struct {
	Config  config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	DB      *sqlx.DB
	Redis   *redis.Client
	Clock   domain.Clock
	Policy  domain.CarePolicy

	Users     domain.UserRepository
	Reminders domain.ReminderRepository
	History   domain.TaskHistoryRepository

	ReminderService *services.ReminderService
	TaskService     *services.TaskService
	CalendarService *services.CalendarService
	StatsService    *services.StatsService
	Worker          *workers.MaterializeWorker
}

// New connects to Postgres (and Redis when configured) and builds every service.
// Redis is optional: without it there is no list cache, no rate limiting and no
// cross-instance lock for the daily run.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	policy, err := config.LoadCarePolicy(cfg.CarePolicyFile)
	if err != nil {
		return nil, err
	}

	logger.Info("connecting_database", zap.String("host", cfg.Database.Host), zap.String("name", cfg.Database.Name))

	db, err := sqlx.ConnectContext(ctx, "pgx", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxOpenConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if cfg.AutoMigrate {
		if err := repository.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("schema_migrated")
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
		DB:      db,
		Clock:   domain.NewReferenceClock(cfg.Location),
		Policy:  policy,
		Users:   repository.NewPostgresUserRepository(db),
		History: repository.NewPostgresTaskHistoryRepository(db),
	}

	var reminders domain.ReminderRepository = repository.NewPostgresReminderRepository(db)
	var locker workers.Locker

	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedisClient(cache.Options{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn("redis_unavailable", zap.Error(err))
		} else {
			a.Redis = rdb
			reminders = repository.NewCachedReminderRepository(reminders, rdb, logger)
			locker = cache.NewLocker(rdb)
		}
	}
	a.Reminders = reminders

	a.ReminderService = services.NewReminderService(a.Reminders, a.Clock, policy, logger)
	a.TaskService = services.NewTaskService(a.Reminders, a.History, a.Clock, a.Metrics, logger)
	a.CalendarService = services.NewCalendarService(a.Reminders, a.History, a.Clock)
	a.StatsService = services.NewStatsService(a.History)
	a.Worker = workers.NewMaterializeWorker(
		a.TaskService,
		notifier.NewLogNotifier(logger),
		a.Clock,
		locker,
		logger,
		workers.MaterializeWorkerConfig{
			Schedule: cfg.Scheduler.Schedule,
			Timeout:  cfg.Scheduler.Timeout,
		},
	)

	return a, nil
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("redis_close_failed", zap.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn("database_close_failed", zap.Error(err))
		}
	}
}
