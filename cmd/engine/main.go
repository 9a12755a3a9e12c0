package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agri-compath/internal/config"
	"agri-compath/internal/database"
	"agri-compath/internal/engine"
	"agri-compath/internal/feed"
	"agri-compath/internal/handlers"
	"agri-compath/internal/middleware"
	"agri-compath/internal/utils"
	"agri-compath/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := utils.NewMetricsCollector(prometheus.DefaultRegisterer)

	db, source, closeStore, err := openStore(ctx, cfg.Database, metrics, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Initialize actor system
	system := actor.NewActorSystem()

	fetcher := feed.NewFetcher(db, metrics, logger)
	poster := feed.NewPoster(db, metrics, logger)
	compathEngine := engine.NewEngine(system, fetcher, source, metrics, logger)

	hub := websocket.NewHub(compathEngine, logger)
	go hub.Run(ctx)

	auth, err := middleware.NewAuthenticator(cfg.JWTSecret, logger)
	if err != nil {
		return err
	}

	server := handlers.NewServer(
		compathEngine,
		hub,
		fetcher,
		poster,
		db,
		auth,
		middleware.DefaultCORSConfig(cfg.AllowedOrigins),
		metrics,
		logger,
	)
	server.RequestTimeout = cfg.Server.RequestTimeout

	var metricsHandler http.Handler
	if cfg.Server.MetricsEnabled {
		metricsHandler = promhttp.Handler()
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           server.Routes(metricsHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", httpServer.Addr, "db", cfg.Database.Type, "metrics", cfg.Server.MetricsEnabled)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// openStore connects the configured storage. The returned InsertSource
// announces inserts to live views.
func openStore(
	ctx context.Context,
	cfg *config.DatabaseConfig,
	metrics *utils.MetricsCollector,
	logger *slog.Logger,
) (database.DBAdapter, database.InsertSource, func(), error) {
	if cfg.Type == config.DatabaseMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		db := database.NewMemoryDB()
		return db, db, func() {}, nil
	}

	pg, err := database.NewPostgresDB(cfg.URI, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pg.Migrate(); err != nil {
		pg.Close(context.Background())
		return nil, nil, nil, fmt.Errorf("failed to migrate: %w", err)
	}

	notifier, err := database.NewNotifier(cfg.URI, metrics, logger)
	if err != nil {
		pg.Close(context.Background())
		return nil, nil, nil, fmt.Errorf("failed to listen for inserts: %w", err)
	}
	go notifier.Run(ctx)

	closeStore := func() {
		if err := notifier.Close(); err != nil {
			logger.Warn("failed to close notifier", "error", err)
		}
		if err := pg.Close(context.Background()); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}
	return pg, notifier, closeStore, nil
}

func newLogger(cfg *config.LogConfig, w io.Writer) *slog.Logger {
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Level}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      cfg.Level,
		TimeFormat: time.Kitchen,
	}))
}
