package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kidlearn/stars-hub/internal/application/command"
	"github.com/kidlearn/stars-hub/internal/application/eventhandler"
	"github.com/kidlearn/stars-hub/internal/application/query"
	"github.com/kidlearn/stars-hub/internal/domain/child"
	"github.com/kidlearn/stars-hub/internal/infrastructure/messaging"
	"github.com/kidlearn/stars-hub/internal/infrastructure/persistence/postgres"
	"github.com/kidlearn/stars-hub/internal/infrastructure/scheduler"
	"github.com/kidlearn/stars-hub/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/kidlearn/stars-hub/internal/interface/http"
	"github.com/kidlearn/stars-hub/internal/interface/http/handlers"
	"github.com/kidlearn/stars-hub/pkg/logger"
	"github.com/kidlearn/stars-hub/pkg/timeutil"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		migrate, _ := cmd.Flags().GetBool("migrate")
		return runServe(cmd, migrate)
	},
}

func init() {
	serveCmd.Flags().Bool("migrate", false, "Apply pending migrations before serving")
}

func runServe(cmd *cobra.Command, migrate bool) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := setupLogger(cfg)
	log.Info("starting Stars Hub",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("store", string(cfg.App.Store)),
		logger.String("timezone", cfg.Gamification.Location.String()),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. STORES
	// ─────────────────────────────────────────────────────────────────────────
	a, err := openApp(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if migrate && a.db != nil {
		n, err := postgres.NewMigrator(a.db).Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date", logger.Int("applied", n))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.AsyncMode = cfg.Features.AsyncEvents
	busCfg.Logger = log
	bus := messaging.NewInMemoryEventBus(busCfg)
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()

	var (
		starsHandler  *eventhandler.OnStarsCreditedHandler
		eventsHandler *eventhandler.OnProgressEventHandler
	)
	if a.leaderboard != nil {
		starsHandler = eventhandler.NewOnStarsCreditedHandler(a.leaderboard, a.cacheBreaker, log)
	}
	if cfg.Features.EventLog {
		eventsHandler = eventhandler.NewOnProgressEventHandler(log)
	}
	if err := eventhandler.Register(bus, starsHandler, eventsHandler); err != nil {
		return fmt.Errorf("failed to register event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. BACKGROUND JOBS
	// ─────────────────────────────────────────────────────────────────────────
	if a.leaderboard != nil && cfg.Gamification.LeaderboardRefresh > 0 {
		sched := scheduler.New(scheduler.Config{Logger: log})
		job := jobs.NewRefreshLeaderboardJob(a.progress, a.leaderboard, a.cacheBreaker, log)
		if err := sched.Register(job, scheduler.Every(cfg.Gamification.LeaderboardRefresh)); err != nil {
			return fmt.Errorf("failed to register %s: %w", job.Name(), err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() { _ = sched.Stop() }()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. COMMAND & QUERY HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	clock := timeutil.SystemClock{}
	deps := a.queryDeps()

	var deleteOpts []command.DeleteChildOption
	if a.leaderboard != nil {
		deleteOpts = append(deleteOpts, command.WithCacheInvalidator(a.leaderboard))
	}

	health := handlers.NewHealthChecker(cfg.App.Version)
	if a.db != nil {
		health.AddCheck("database", handlers.PingCheck(a.db))
	}
	if a.cache != nil {
		health.AddOptionalCheck("redis", handlers.PingCheck(a.cache))
	}

	serverCfg := httpapi.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.AllowedOrigins = cfg.HTTP.CORSOrigins
	serverCfg.APIKeyHashes = cfg.HTTP.APIKeyHashes
	serverCfg.DefaultLeaderboardLimit = cfg.Gamification.LeaderboardLimit
	serverCfg.Version = cfg.App.Version

	if len(serverCfg.APIKeyHashes) == 0 {
		log.Warn("no API keys configured; write endpoints are open")
	}

	server := httpapi.NewServer(serverCfg, httpapi.Dependencies{
		RecordAttempt: command.NewRecordAttemptHandler(a.attempts, bus, log, command.RecordAttemptHandlerConfig{
			Levels: child.DefaultLevels,
			Clock:  clock,
		}),
		CreateChild:      command.NewCreateChildHandler(a.children, clock, log),
		DeleteChild:      command.NewDeleteChildHandler(a.children, log, deleteOpts...),
		ProgressSummary:  query.NewGetProgressSummaryHandler(deps),
		ListProgress:     query.NewListProgressHandler(deps),
		ProfileSummary:   query.NewGetProfileSummaryHandler(deps),
		ActivityCalendar: query.NewGetActivityCalendarHandler(deps),
		MonthlyStreak:    query.NewGetMonthlyStreakHandler(deps),
		Leaderboard:      query.NewGetLeaderboardHandler(deps),
		Health:           health,
		Logger:           log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 6. RUN & GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	errCh := server.StartAsync()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))
	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}
