// Package app wires the application components and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/hibiken/asynq"

	"remindbot/internal/adapter/external/messagebird"
	"remindbot/internal/adapter/queue"
	"remindbot/internal/adapter/scheduler"
	"remindbot/internal/adapter/telegram"
	"remindbot/internal/adapter/telegram/handlers"
	"remindbot/internal/adapter/telegram/middleware"
	"remindbot/internal/api"
	"remindbot/internal/config"
	"remindbot/internal/platform/logger"
	pgplatform "remindbot/internal/platform/pg"
	sqliteplatform "remindbot/internal/platform/sqlite"
	"remindbot/internal/platform/work"
	"remindbot/internal/schedule"
	pgstore "remindbot/internal/storage/pg"
	sqlitestore "remindbot/internal/storage/sqlite"
	"remindbot/internal/task"
)

// App wires application components.
type App struct {
	cfg      config.Config
	log      *slog.Logger
	logClose func() error
}

// New creates an App instance and loads configuration.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, logClose := logger.New(logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		File:         cfg.Log.File,
		App:          "remindbot",
	})
	return &App{cfg: cfg, log: log, logClose: logClose}, nil
}

// Run starts the application and blocks until a termination signal.
func (a *App) Run() error {
	defer func() { _ = a.logClose() }()
	a.log.Info("starting", "storage", a.cfg.Storage.Driver, "notifier", a.cfg.Notifier.Channel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, users, closeStore, err := a.buildStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	redisOpt := asynq.RedisClientOpt{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	}
	jobQueue := queue.New(redisOpt, queue.Options{
		Queue:    a.cfg.Queue.Name,
		MaxRetry: a.cfg.Queue.MaxRetry,
	}, a.log)
	defer func() { _ = jobQueue.Close() }()

	manager := schedule.NewManager(jobQueue, a.log)
	pool := work.NewPool(a.cfg.Workers.PoolSize, a.cfg.Workers.SendTimeout, a.log)

	notifier, tgBot, err := a.buildNotifier()
	if err != nil {
		return err
	}

	svc := task.NewService(task.Config{
		Repo:     repo,
		Users:    users,
		Sched:    manager,
		Notifier: notifier,
		Jobs:     pool,
		Cal:      task.Calculator{UnboundedCap: a.cfg.Task.UnboundedCap},
		Logger:   a.log,
	})
	manager.SetHandler(svc)

	worker := queue.NewWorker(redisOpt, jobQueue, manager, a.cfg.Queue.Concurrency, a.log)
	if err := worker.Start(); err != nil {
		return fmt.Errorf("start queue worker: %w", err)
	}
	defer worker.Shutdown()

	maint := scheduler.New(ctx, a.log)
	if _, err := maint.AddJob(a.cfg.Resync.Schedule, svc.Resync, scheduler.JobOptions{
		Name:          "resync",
		Timeout:       a.cfg.Resync.Timeout,
		SkipIfRunning: true,
	}); err != nil {
		return err
	}
	maint.Start()

	srv := api.NewServer(svc, api.Options{
		Addr:         a.cfg.HTTP.Addr,
		Token:        a.cfg.HTTP.Token,
		ReleaseMode:  a.cfg.Env == "prod",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}, a.log)
	go func() {
		if err := srv.Start(); err != nil {
			a.log.Error("http server failed", "error", err)
			stop()
		}
	}()

	if tgBot != nil {
		a.startBot(ctx, tgBot, svc, users)
	}

	<-ctx.Done()
	a.log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("http shutdown incomplete", "error", err)
	}
	if err := maint.Stop(shutdownCtx); err != nil {
		a.log.Warn("maintenance shutdown incomplete", "error", err)
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("worker pool shutdown incomplete", "error", err)
	}
	return nil
}

// buildStorage opens the configured store, applies migrations and returns
// the repositories with a close function.
func (a *App) buildStorage(ctx context.Context) (task.Repository, task.UserRepository, func(), error) {
	switch a.cfg.Storage.Driver {
	case "pg":
		waitOpts := pgplatform.DefaultHealthCheckOptions()
		waitOpts.OnRetry = func(attempt int, err error, nextDelay time.Duration) {
			a.log.Warn("database not ready", "attempt", attempt, "retry_in", nextDelay, "error", err)
		}
		if err := pgplatform.WaitForDB(ctx, a.cfg.Storage.DSN, waitOpts); err != nil {
			return nil, nil, nil, err
		}
		if err := pgplatform.ApplyMigrations(a.cfg.Storage.DSN, a.cfg.Storage.Migrations); err != nil {
			return nil, nil, nil, err
		}
		pgPool, err := pgplatform.NewPool(ctx, a.cfg.Storage.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		runner := pgplatform.NewTxRunner(pgPool)
		return pgstore.NewTaskRepo(runner), pgstore.NewUserRepo(runner), pgPool.Close, nil

	case "sqlite":
		db, err := sqliteplatform.NewDB(ctx, a.cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := sqliteplatform.ApplyMigrations(a.cfg.Storage.SQLitePath, a.cfg.Storage.Migrations); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		runner := sqliteplatform.NewTxRunner(db)
		return sqlitestore.NewTaskRepo(runner), sqlitestore.NewUserRepo(runner), func() { _ = db.Close() }, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown storage driver %q", a.cfg.Storage.Driver)
	}
}

// buildNotifier creates the outbound channel. The Telegram bot instance is
// returned too when that channel is selected, so Run can start its update
// loop.
func (a *App) buildNotifier() (task.Notifier, *bot.Bot, error) {
	switch a.cfg.Notifier.Channel {
	case "messagebird":
		return messagebird.New(messagebird.Options{
			AccessKey:  a.cfg.MessageBird.AccessKey,
			Originator: a.cfg.MessageBird.Originator,
		}, a.log), nil, nil

	case "telegram":
		b, err := bot.New(a.cfg.Telegram.Token,
			bot.WithAllowedUpdates([]string{"message", "callback_query"}),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("create telegram bot: %w", err)
		}
		return telegram.NewNotifier(b, a.log), b, nil

	default:
		return nil, nil, fmt.Errorf("unknown notifier channel %q", a.cfg.Notifier.Channel)
	}
}

// startBot wires the command pipeline and starts long polling.
func (a *App) startBot(ctx context.Context, b *bot.Bot, svc *task.Service, users task.UserRepository) {
	router := handlers.NewRouter(svc, users, a.log)
	rate := middleware.NewRateLimiter(time.Second)
	acl := middleware.NewACL(middleware.ParseAllowedIDs(a.cfg.Telegram.AllowedIDs))
	handler := middleware.Chain(router.Handle, rate.Middleware, acl.Middleware)

	disp := telegram.NewDispatcher(b, a.cfg.Telegram.Workers, handler)
	b.RegisterHandlerMatchFunc(
		func(upd *models.Update) bool { return true },
		func(ctx context.Context, b *bot.Bot, upd *models.Update) { disp.Dispatch(ctx, upd) },
	)
	go b.Start(ctx)
}
