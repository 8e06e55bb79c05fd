package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/tabernacle-io/congregate/internal/auth/cache"
	httpapi "github.com/tabernacle-io/congregate/internal/auth/http"
	"github.com/tabernacle-io/congregate/internal/auth/service"
	"github.com/tabernacle-io/congregate/internal/auth/social"
	"github.com/tabernacle-io/congregate/internal/auth/store"
	"github.com/tabernacle-io/congregate/internal/auth/store/drivers/sqlite"
	"github.com/tabernacle-io/congregate/pkg/cryptox"
	"github.com/tabernacle-io/congregate/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application wires the auth service together: store, cache, services and
// the HTTP server.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db    store.Store
	cache cache.Cache
	redis *redis.Client

	authService  *service.AuthService
	tokenService *service.TokenService
	userService  *service.UserService
	auditService *service.AuditService
	verifier     *service.VerificationService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "congregate",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	app.initCache()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
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

// Shutdown gracefully stops the HTTP server, the redis client and the
// database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initCache() {
	if app.cfg.RedisAddr == "" {
		app.logger.Info("no redis configured, using in-process cache")
		app.cache = cache.NewMemory()
		return
	}

	app.redis = redis.NewClient(&redis.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
	})
	app.cache = cache.NewRedis(app.redis, "congregate")
	app.logger.Info("redis cache configured", "addr", app.cfg.RedisAddr)
}

func (app *Application) initServices() {
	audit := &service.StoreAuditSink{Store: app.db}
	notifier := service.LogNotifier{}

	app.tokenService = &service.TokenService{Store: app.db, Audit: audit}
	app.userService = &service.UserService{
		Store:  app.db,
		Tokens: app.tokenService,
		Audit:  audit,
	}
	app.auditService = &service.AuditService{Store: app.db}

	app.verifier = service.NewVerificationService(
		app.db,
		app.tokenService,
		audit,
		notifier,
		app.tokenSecret(),
	)

	app.authService = &service.AuthService{
		Store:    app.db,
		Identity: &service.IdentityService{Store: app.db},
		Tokens:   app.tokenService,
		Limiter: &service.LoginLimiter{
			Cache:       app.cache,
			MaxAttempts: app.cfg.LoginMaxAttempts,
			Window:      app.cfg.LoginWindow,
		},
		Detector: &service.DeviceDetector{
			Cache:    app.cache,
			Audit:    audit,
			Notifier: notifier,
			TTL:      app.cfg.KnownDeviceTTL,
		},
		Audit:    audit,
		Notifier: notifier,
		Verifier: app.verifier,
	}
}

// tokenSecret returns the HMAC key for verification and reset links. In
// dev an ephemeral key is generated so the service still boots; links die
// with the process.
func (app *Application) tokenSecret() []byte {
	if app.cfg.TokenSecret != "" {
		return []byte(app.cfg.TokenSecret)
	}
	app.logger.Warn("AUTH_TOKEN_SECRET not set, generating an ephemeral signing key")
	return []byte(cryptox.MustGenerateToken(cryptox.TokenSize256))
}

func (app *Application) initHTTP() {
	providers := []social.Provider{social.NewGoogle()}
	if app.cfg.AppleClientID != "" {
		providers = append(providers, social.NewApple(app.cfg.AppleClientID))
	} else {
		app.logger.Info("APPLE_CLIENT_ID not set, apple login disabled")
	}

	router := httpapi.NewRouter(
		BuildVersion,
		app.db,
		social.NewRegistry(providers...),
		app.logger,
	)
	router.AuthService = app.authService
	router.TokenService = app.tokenService
	router.UserService = app.userService
	router.AuditService = app.auditService
	router.Verifier = app.verifier
	router.Detector = app.authService.Detector
	router.ApplyRoutes()

	app.router = router
	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Port),
		Handler: router,
	}
}
