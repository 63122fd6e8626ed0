package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/strikemap-systems/strikemap/internal/broadcast"
	"github.com/strikemap-systems/strikemap/internal/feeds"
	"github.com/strikemap-systems/strikemap/internal/geo"
	"github.com/strikemap-systems/strikemap/internal/handlers"
	"github.com/strikemap-systems/strikemap/internal/ingest"
	"github.com/strikemap-systems/strikemap/internal/logging"
	"github.com/strikemap-systems/strikemap/internal/normalizer"
	"github.com/strikemap-systems/strikemap/internal/repository"
	"github.com/strikemap-systems/strikemap/internal/scheduler"
	"github.com/strikemap-systems/strikemap/internal/server"
	"github.com/strikemap-systems/strikemap/internal/store"
)

var serveAutoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingestion pipeline and API server",
	Long: `Starts the full service: scheduled feed ingestion, the Redis-backed
live surface, the WebSocket broadcast fan-out and the REST API.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveAutoMigrate, "auto-migrate", false,
		"apply pending database migrations before starting")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(logger)

	st, err := store.NewRedis(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("redis unavailable: %w", err)
	}
	defer st.Close()

	var repo repository.Repository
	if cfg.Database.URL != "" {
		if serveAutoMigrate {
			if err := repository.Migrate(cfg.Database.URL); err != nil {
				return err
			}
			logger.Info("database migrations applied")
		}
		pg, err := repository.NewPostgresRepository(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("database unavailable: %w", err)
		}
		defer pg.Close()
		repo = pg
	} else {
		logger.Warn("no database configured, running Redis-only")
	}

	regions, err := geo.LoadTable()
	if err != nil {
		return fmt.Errorf("region table: %w", err)
	}
	resolver := geo.OpenResolver(cfg.Geo.MMDBPath)
	defer resolver.Close()

	registry := broadcast.NewRegistry()
	listener := broadcast.NewListener(st, registry, logger.With("component", "broadcast").Logger)
	listenerDone := make(chan struct{})
	go func() {
		defer close(listenerDone)
		listener.Run(ctx)
	}()

	svc := ingest.NewService(st, repo, normalizer.New(), regions, resolver,
		ingest.NoopClassifier{}, logger.With("component", "ingest").Logger)

	abuse := feeds.NewAbuseIPDBFetcher(cfg.Feeds.AbuseIPDB.APIKey,
		cfg.Feeds.AbuseIPDB.Limit, cfg.Feeds.AbuseIPDB.MinConfidence,
		cfg.Feeds.AbuseIPDB.Timeout)
	radar := feeds.NewRadarFetcher(cfg.Feeds.Radar.APIKey, cfg.Feeds.Radar.Timeout)

	sched := scheduler.New(logger.With("component", "scheduler").Logger, cfg.Scheduler.DrainTimeout)
	sched.Add("ingest_abuseipdb",
		scheduler.EveryJitter{Interval: cfg.Scheduler.IngestInterval, Jitter: cfg.Scheduler.IngestJitter},
		func(ctx context.Context) error { return svc.RunFeed(ctx, abuse) })
	sched.Add("ingest_cloudflare",
		scheduler.EveryJitter{Interval: cfg.Scheduler.IngestInterval, Jitter: cfg.Scheduler.IngestJitter},
		func(ctx context.Context) error { return svc.RunSummary(ctx, radar) })
	sched.Add("rotate_day",
		scheduler.DailyAt{Hour: 0, Minute: 0},
		func(ctx context.Context) error { return st.RotateDay(ctx) })
	sched.Add("purge_raw",
		scheduler.DailyAt{Hour: 0, Minute: 10},
		func(ctx context.Context) error { return svc.PurgeRaw(ctx, cfg.Scheduler.RawRetention) })
	if cfg.Feeds.Demo.Enabled {
		demo := feeds.NewDemoFetcher(cfg.Feeds.Demo.Batch)
		sched.Add("ingest_demo",
			scheduler.Every(15*time.Second),
			func(ctx context.Context) error { return svc.RunFeed(ctx, demo) })
		logger.Warn("demo feed enabled, synthetic events will be generated")
	}
	sched.Start(ctx)

	h := handlers.NewHandler(st, repo, regions, registry, handlers.FeedStatus{
		AbuseIPDB:  cfg.Feeds.AbuseIPDB.APIKey != "",
		Cloudflare: cfg.Feeds.Radar.APIKey != "",
		Demo:       cfg.Feeds.Demo.Enabled,
	}, logger)
	wsHandler := handlers.NewWSHandler(st, registry, h)

	srv := server.New(cfg.Server, server.NewRouter(h, wsHandler, cfg.Server.AllowedOrigins))
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("http server failed", "error", err.Error())
		stop()
	}

	// Triggers stop and in-flight jobs drain first, then the listener,
	// then open HTTP/WebSocket connections, then the stores.
	sched.Stop()
	<-listenerDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err.Error())
	}

	logger.Info("shutdown complete")
	return nil
}
