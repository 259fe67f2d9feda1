package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/okian/triagebooth/internal/adapters/http/api"
	"github.com/okian/triagebooth/internal/adapters/http/site"
	"github.com/okian/triagebooth/internal/adapters/http/swagger"
	"github.com/okian/triagebooth/internal/adapters/mq/topic"
	"github.com/okian/triagebooth/internal/adapters/ws"
	app "github.com/okian/triagebooth/internal/app"
	"github.com/okian/triagebooth/internal/config"
	"github.com/okian/triagebooth/internal/domain/catalog"
	"github.com/okian/triagebooth/internal/domain/dedupe"
	"github.com/okian/triagebooth/internal/domain/scoring"
	"github.com/okian/triagebooth/pkg/logger"
	"github.com/okian/triagebooth/pkg/metrics"
	"github.com/rs/cors"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		os.Stderr.WriteString("failed to read .env: " + err.Error() + "\n")
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> PORT -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	b, err := newBooth(ctx, cfg, loggerInstance)
	if err != nil {
		loggerInstance.Error(ctx, "failed to build booth", logger.Error(err))
		os.Exit(1)
	}

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           b.handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	b.close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// booth is the wired application.
type booth struct {
	engine  *app.Service
	hub     *ws.Hub
	handler http.Handler
}

// newBooth wires catalog, engine, relay and routes from cfg.
func newBooth(ctx context.Context, cfg *config.Config, log logger.Logger) (*booth, error) {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	events := topic.New(topic.WithBufferSize(cfg.WSSendBuffer))

	svc := app.New(cat,
		app.WithLogger(log.Named("engine")),
		app.WithPublisher(events),
		app.WithLeaderboardSize(cfg.LeaderboardSize),
		app.WithTimerSeconds(cfg.DecisionTimerSeconds),
		app.WithScoring(
			scoring.WithTestsPoints(cfg.TestsPoints),
			scoring.WithFasterThanAIPoints(cfg.FasterThanAIPoints),
			scoring.WithUnderBudget(cfg.UnderBudgetPoints, cfg.UnderBudget()),
		),
	)
	if err := svc.Start(ctx); err != nil {
		return nil, err
	}

	hub := ws.NewHub(svc, events,
		ws.WithLogger(log.Named("relay")),
		ws.WithDeduper(dedupe.New(dedupe.WithMaxSize(cfg.DedupeSize))),
		ws.WithConfig(ws.Config{
			WriteTimeout:   cfg.WriteTimeout(),
			ReadTimeout:    cfg.ReadTimeout(),
			PingInterval:   cfg.PingInterval(),
			MaxMessageSize: cfg.WSMaxMessageBytes,
			CheckOrigin:    ws.AllowOrigins(cfg.Origins()),
		}),
	)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)

	stats := map[string]api.StatsProvider{
		"engine": svc,
		"relay":  api.StatsFunc(hub.Stats),
	}
	api.NewServer(svc, cat, stats, cfg.LeaderboardSize).Register(ctx, mux)
	mux.Handle("/ws", hub)

	if err := site.Register(ctx, mux, cfg.StaticDir); err != nil {
		_ = hub.Close()
		svc.Stop()
		return nil, err
	}

	handler := cors.New(cors.Options{
		AllowedOrigins: cfg.Origins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(mux)

	log.Info(ctx, "booth ready",
		logger.Int("scenarios", len(cat.List())),
		logger.Int("tags", len(cat.Tags())),
		logger.String("catalog", catalogSource(cfg.CatalogPath)),
	)

	return &booth{engine: svc, hub: hub, handler: handler}, nil
}

func (b *booth) close() {
	_ = b.hub.Close()
	b.engine.Stop()
}

func catalogSource(path string) string {
	if path == "" {
		return "built-in"
	}
	return path
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	updateSystemMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
