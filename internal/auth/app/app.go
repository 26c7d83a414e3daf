package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sethvargo/go-retry"

	"github.com/aussiebroadwan/accounts/internal/auth/blob"
	httpapi "github.com/aussiebroadwan/accounts/internal/auth/http"
	"github.com/aussiebroadwan/accounts/internal/auth/notify"
	"github.com/aussiebroadwan/accounts/internal/auth/service"
	"github.com/aussiebroadwan/accounts/internal/auth/store"
	"github.com/aussiebroadwan/accounts/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/accounts/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags "-X ...".
var BuildVersion = "v0.1.0"

// Application encapsulates the accounts service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	keyManager *jwtx.KeyManager
	blobs      blob.Store
	notifier   notify.Notifier
	registry   *prometheus.Registry

	// Services
	accountService      *service.AccountService
	sessionGate         *service.SessionGate
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "accounts",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

// New creates a new Application instance with all dependencies initialized
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{
		cfg:      cfg,
		logger:   NewLogger(cfg),
		registry: prometheus.NewRegistry(),
	}

	// The key is checked first so a misconfigured deployment fails before
	// touching the database.
	keyManager, err := InitAuthKeys(cfg, app.logger)
	if err != nil {
		return nil, err
	}
	app.keyManager = keyManager

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}

	if err := app.initServices(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("accounts service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		_ = app.db.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down accounts service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("accounts service stopped")
	return nil
}

// Handler exposes the router, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// initDatabase opens the store, waits for it and applies migrations
func (app *Application) initDatabase(ctx context.Context) error {
	db, err := OpenStore(ctx, app.cfg, app.logger)
	if err != nil {
		return err
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

// OpenStore opens the configured store and pings it with exponential
// backoff; a database container may still be starting.
func OpenStore(ctx context.Context, cfg Config, logger *slog.Logger) (store.Store, error) {
	var (
		db  store.Store
		err error
	)
	switch cfg.DatabaseDriver {
	case "postgres":
		db, err = postgres.NewStore(ctx, cfg.DatabaseURL)
	default:
		db, err = sqlite.NewStore("file:" + cfg.DatabaseFile)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	backoff := retry.WithMaxRetries(cfg.DBPingRetries, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			logger.Warn("database not ready, retrying", "driver", cfg.DatabaseDriver, "err", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	return db, nil
}

// initServices initializes all business logic services
func (app *Application) initServices(ctx context.Context) error {
	pepper, err := cryptox.LoadPepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}

	blobs, err := app.initBlobs(ctx)
	if err != nil {
		return err
	}
	app.blobs = blobs

	notifier, err := app.initNotifier()
	if err != nil {
		return err
	}
	app.notifier = notifier

	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := service.NewMetrics(app.registry)

	tokens := &service.Tokens{
		Keys:       app.keyManager,
		Issuer:     app.cfg.Issuer,
		SessionTTL: app.cfg.SessionTTL,
		ResetTTL:   app.cfg.ResetTTL,
	}

	app.accountService = &service.AccountService{
		Store:                    app.db,
		Hasher:                   cryptox.NewArgon2Hasher(pepper),
		Tokens:                   tokens,
		OTP:                      service.NewOTPGenerator(app.cfg.RegistrationOTPWindow, app.cfg.TransactionalOTPWindow),
		Notifier:                 app.notifier,
		Blobs:                    app.blobs,
		Metrics:                  metrics,
		ExposeSecrets:            !app.cfg.IsProduction(),
		ResetBaseURL:             app.cfg.ResetBaseURL,
		RequireOTPForDirectReset: app.cfg.DirectResetRequiresOTP,
	}
	if !app.cfg.DirectResetRequiresOTP {
		app.logger.Warn("direct password reset accepts email alone (AUTH_DIRECT_RESET_REQUIRES_OTP=false)")
	}
	if !app.cfg.IsProduction() {
		app.logger.Warn("one-time codes and reset tokens are included in responses", "env", app.cfg.Env)
	}

	app.sessionGate = &service.SessionGate{Store: app.db, Tokens: tokens}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	app.housekeepingService.Metrics = metrics

	return nil
}

func (app *Application) initBlobs(ctx context.Context) (blob.Store, error) {
	switch app.cfg.BlobDriver {
	case "s3":
		s, err := blob.NewS3Store(ctx, blob.S3Config{
			Region:    app.cfg.S3Region,
			Endpoint:  app.cfg.S3Endpoint,
			AccessKey: app.cfg.S3AccessKey,
			SecretKey: app.cfg.S3SecretKey,
			Bucket:    app.cfg.S3Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 blob store: %w", err)
		}
		app.logger.Info("profile images stored in s3", "bucket", app.cfg.S3Bucket, "endpoint", app.cfg.S3Endpoint)
		return s, nil
	default:
		s, err := blob.NewFSStore(app.cfg.BlobDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize blob directory: %w", err)
		}
		app.logger.Info("profile images stored on disk", "dir", app.cfg.BlobDir)
		return s, nil
	}
}

func (app *Application) initNotifier() (notify.Notifier, error) {
	if app.cfg.Notifier != "smtp" {
		app.logger.Warn("mail delivery disabled, codes and links are logged")
		return notify.LogNotifier{Logger: app.logger}, nil
	}

	n, err := notify.NewSMTPNotifier(notify.SMTPConfig{
		Addr:     app.cfg.SMTPAddr,
		Username: app.cfg.SMTPUsername,
		Password: app.cfg.SMTPPassword,
		From:     app.cfg.SMTPFrom,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize smtp notifier: %w", err)
	}
	return n, nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.Accounts = app.accountService
	router.Gate = app.sessionGate
	router.Blobs = app.blobs
	router.Metrics = promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
	router.CORS = httpx.CORSConfig{
		AllowedOrigins:   app.cfg.FrontendOrigins,
		AllowCredentials: true,
	}
	router.SecureCookie = app.cfg.IsProduction()
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
