package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"mediastore/internal/config"
	"mediastore/internal/handlers"
	"mediastore/internal/media"
	"mediastore/internal/middleware"
	"mediastore/internal/router"
	"mediastore/internal/storage"
	"mediastore/internal/storage/sqlite"
	"mediastore/internal/telemetry"

	"github.com/joho/godotenv"
)

const serviceVersion = "1.0.0"

type App struct {
	Server *http.Server
	Logger *slog.Logger
	Config *config.Config
}

func NewApp(cfg *config.Config, logger *slog.Logger, handler http.Handler) *App {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.Timeouts.Read,
		WriteTimeout: cfg.HTTP.Timeouts.Write,
		IdleTimeout:  cfg.HTTP.Timeouts.Idle,
	}

	return &App{
		Server: server,
		Logger: logger,
		Config: cfg,
	}
}

func (a *App) Run(ctx context.Context) error {
	srvErrChan := make(chan error, 1)

	go func() {
		a.Logger.Info("server starting", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErrChan <- err
		}
	}()

	select {
	case err := <-srvErrChan:
		return fmt.Errorf("server startup failed: %w", err)
	case <-ctx.Done():
		a.Logger.Info("shutdown signal received")
	}

	// attempt clean shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.Timeouts.Shutdown)
	defer cancel()

	a.Logger.Info("draining connections...")
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		// graceful shutdown timed out
		if closeErr := a.Server.Close(); closeErr != nil {
			// both failed. Return combined error.
			return fmt.Errorf("graceful shutdown failed: %w", errors.Join(err, closeErr))
		}
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	a.Logger.Info("server stopped")
	return nil
}

func main() {
	// a missing .env is fine, env vars and defaults still apply
	_ = godotenv.Load()

	cfg := config.LoadWithDefaults()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid configuration: %v", err))
	}

	logHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Logger.Level})
	logger := slog.New(logHandler).With("app", cfg.App.Name)

	logger.Info("application starting", "pid", os.Getpid())
	logger.Info("configuration loaded",
		"name", cfg.App.Name,
		"env", cfg.App.Environment,
		"port", cfg.HTTP.Port,
		"storage_mode", cfg.Media.StorageMode,
		"store_url", cfg.App.StoreURL,
		"rate_limit_rps", cfg.Limiter.RPS,
		"trusted_proxy", cfg.Proxy.Trusted,
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Init(rootCtx, cfg.App.Name, serviceVersion, cfg.App.Environment,
		cfg.Metrics.OtelEndpoint, cfg.Metrics.EnableTelemetry, logger)
	if err != nil {
		logger.Error("could not initialise telemetry", "err", err)
		os.Exit(1)
	}
	defer tel.Shutdown(context.Background())

	metrics, err := telemetry.NewMetrics(tel.Meter)
	if err != nil {
		logger.Error("could not create metrics", "err", err)
		os.Exit(1)
	}

	store, err := sqlite.NewStore(cfg.DB.Path)
	if err != nil {
		logger.Error("could not open database", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Migrate(cfg.DB.MigrationsPath); err != nil {
		logger.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	blobs, err := newBlobProvider(cfg)
	if err != nil {
		logger.Error("could not create blob store", "err", err)
		os.Exit(1)
	}

	pictures, err := media.NewService(store, blobs, cfg.Media, cfg.App.StoreURL, logger)
	if err != nil {
		logger.Error("could not create picture service", "err", err)
		os.Exit(1)
	}

	processor := media.NewProcessor(rootCtx, blobs, pictures,
		cfg.Media.VariantWorkers, cfg.Media.VariantQueueLen, logger)

	limiter := middleware.NewIPRateLimiter(rootCtx, cfg.Limiter.RPS, cfg.Limiter.Burst, cfg.Proxy.Trusted, metrics)

	pictureHandler := handlers.NewPictureHandler(pictures, cfg.Media.ThumbnailSizes, cfg.Media.MaxUploadBytes, logger, metrics)
	mediaHandler := &handlers.MediaHandler{
		Pictures: pictures,
		Blobs:    blobs,
		Variants: processor,
		Sizes:    cfg.Media.ThumbnailSizes,
		Tracer:   tel.Tracer,
		Metrics:  metrics,
		Logger:   logger,
	}

	handler := router.NewRouter(router.RouterDependencies{
		Cfg:            cfg,
		Logger:         logger,
		PictureHandler: pictureHandler,
		MediaHandler:   mediaHandler,
		Limiter:        limiter,
		Tracer:         tel.Tracer,
		Metrics:        metrics,
		Telemetry:      tel,
	})

	app := NewApp(cfg, logger, handler)

	if err := app.Run(rootCtx); err != nil {
		logger.Error("server crashed", "err", err)
		os.Exit(1)
	}

	logger.Info("application exited successfully")
}

// newBlobProvider picks the blob backend. The local store also backs
// thumbnails when picture binaries live in the database.
func newBlobProvider(cfg *config.Config) (storage.Provider, error) {
	if cfg.Media.StorageMode == config.StorageModeS3 {
		return storage.NewS3Store(cfg.S3)
	}
	return storage.NewLocalStore(cfg.Media.MediaRoot)
}
