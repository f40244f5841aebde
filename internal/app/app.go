package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sourcegraph/conc"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"

	"github.com/ttleague/livesync/internal/config"
	"github.com/ttleague/livesync/internal/infrastructure/locks"
	"github.com/ttleague/livesync/internal/infrastructure/notify"
	"github.com/ttleague/livesync/internal/infrastructure/results"
	"github.com/ttleague/livesync/internal/interfaces/httpapi"
	"github.com/ttleague/livesync/internal/interfaces/stream"
	"github.com/ttleague/livesync/internal/platform/logging"
	"github.com/ttleague/livesync/internal/platform/resilience"
	"github.com/ttleague/livesync/internal/usecase"
)

// App owns the wired service graph and its background loops.
type App struct {
	cfg    config.Config
	logger *logging.Logger

	server    *http.Server
	scheduler *stream.Scheduler
	reaper    *usecase.Reaper
	locks     *locks.Store
	db        *sqlx.DB
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	lockStore, err := locks.Open(cfg.LockDBPath, cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("open submission lock store: %w", err)
	}

	var db *sqlx.DB
	var reportStore usecase.ReportWriter
	if cfg.DBEnabled {
		db, err = otelsqlx.Open("postgres", cfg.DBURL,
			otelsql.WithDBSystem("postgresql"),
			otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
			otelsql.WithQueryFormatter(collapseQuery),
		)
		if err != nil {
			lockStore.Close()
			return nil, fmt.Errorf("open report database: %w", err)
		}
		reportStore = results.NewPostgresStore(db)
		logger.Info("report store ready", "kind", "postgres", "db", dbNameFromURL(cfg.DBURL))
	} else {
		reportStore = results.NewMemoryStore()
		logger.Info("report store ready", "kind", "memory")
	}

	live := usecase.NewLiveMatchService(logger)
	submissions := usecase.NewSubmissionService(live, lockStore, reportStore, logger)

	if cfg.WebhookEnabled {
		notifier, err := notify.NewWebhookNotifier(notify.WebhookConfig{
			URL:     cfg.WebhookURL,
			Token:   cfg.WebhookToken,
			Timeout: cfg.WebhookTimeout,
			Breaker: resilience.BreakerConfig{
				Enabled:          cfg.WebhookCircuitEnabled,
				FailureThreshold: cfg.WebhookCircuitFailureCount,
				OpenTimeout:      cfg.WebhookCircuitOpenTimeout,
				ProbeBudget:      cfg.WebhookCircuitProbeBudget,
			},
		}, logger)
		if err != nil {
			closeAll(lockStore, db)
			return nil, fmt.Errorf("build finalize webhook: %w", err)
		}
		submissions.SetNotifier(notifier)
	}

	hub := stream.NewHub(logger)
	scheduler, err := stream.NewScheduler(stream.SchedulerConfig{
		Interval:          cfg.BroadcastInterval,
		HeartbeatInterval: cfg.HeartbeatInterval,
		FanoutWorkers:     cfg.FanoutWorkers,
	}, live, hub, logger)
	if err != nil {
		closeAll(lockStore, db)
		return nil, fmt.Errorf("build broadcast scheduler: %w", err)
	}
	live.SetWake(scheduler.Wake)

	reaper := usecase.NewReaper(usecase.ReaperConfig{
		MatchInterval: cfg.MatchReapInterval,
		ConnInterval:  cfg.ConnReapInterval,
		MatchMaxIdle:  cfg.MatchMaxIdle,
		MatchMaxAge:   cfg.MatchMaxAge,
		ConnMaxIdle:   cfg.ConnMaxIdle,
	}, live, hub, logger)

	handler := httpapi.NewHandler(live, submissions, hub, cfg.ConnBuffer, logger)
	router := httpapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins, cfg.InternalToken)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		server:    server,
		scheduler: scheduler,
		reaper:    reaper,
		locks:     lockStore,
		db:        db,
	}, nil
}

// Run serves HTTP and the background loops until ctx is cancelled, then
// shuts everything down.
func (a *App) Run(ctx context.Context) error {
	loopCtx, cancelLoops := context.WithCancel(ctx)
	defer cancelLoops()

	var wg conc.WaitGroup
	wg.Go(func() { a.scheduler.Run(loopCtx) })
	wg.Go(func() { a.reaper.Run(loopCtx) })

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server starting", "addr", a.cfg.HTTPAddr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
		a.logger.Error("http server failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}

	cancelLoops()
	wg.Wait()

	if err := a.Close(); err != nil && runErr == nil {
		runErr = err
	}

	return runErr
}

func (a *App) Close() error {
	var errs []error
	if err := a.locks.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close lock store: %w", err))
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close report database: %w", err))
		}
	}

	return errors.Join(errs...)
}

func closeAll(lockStore *locks.Store, db *sqlx.DB) {
	if lockStore != nil {
		lockStore.Close()
	}
	if db != nil {
		db.Close()
	}
}
