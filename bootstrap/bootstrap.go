// Package bootstrap wires configuration, storage, cache, controller, and
// the HTTP server into a runnable application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/schemagate/schemagate/adapters/clock"
	"github.com/schemagate/schemagate/adapters/hasher"
	"github.com/schemagate/schemagate/adapters/idgen"
	"github.com/schemagate/schemagate/adapters/memory"
	"github.com/schemagate/schemagate/adapters/metrics"
	"github.com/schemagate/schemagate/adapters/sqlite"
	"github.com/schemagate/schemagate/app"
	"github.com/schemagate/schemagate/config"
	"github.com/schemagate/schemagate/ports"
	"github.com/schemagate/schemagate/web"
)

// App is the assembled application.
type App struct {
	Logger     zerolog.Logger
	Controller *app.SchemaController
	HTTPServer *http.Server

	holder *config.Holder
	db     *sqlite.DB
	cache  ports.SchemaCache
}

// New builds the application from a loaded configuration.
func New(cfg *config.Config) (*App, error) {
	return build(cfg, nil)
}

// NewWithHotReload builds the application and watches the config file,
// applying the log level and cache TTL on change.
func NewWithHotReload(configPath string) (*App, error) {
	logger := setupLogger(config.Default().Logging)
	holder, err := config.NewHolder(configPath, logger)
	if err != nil {
		return nil, err
	}
	a, err := build(holder.Get(), holder)
	if err != nil {
		return nil, err
	}
	holder.OnChange(func(cfg *config.Config) {
		applyLogLevel(cfg.Logging.Level)
		if c, ok := a.cache.(*memory.SchemaCache); ok {
			c.SetTTL(cfg.Cache.TTL)
		}
	})
	if err := holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config watch unavailable")
	}
	holder.WatchSignals()
	return a, nil
}

func build(cfg *config.Config, holder *config.Holder) (*App, error) {
	logger := setupLogger(cfg.Logging)

	var (
		storage ports.StorageAdapter
		db      *sqlite.DB
	)
	switch cfg.Database.Driver {
	case "sqlite":
		opened, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := opened.Migrate(); err != nil {
			opened.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		storage = sqlite.NewSchemaStore(opened)
		db = opened
	case "memory":
		storage = memory.NewStorage()
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	var cache ports.SchemaCache
	if cfg.Cache.Enabled {
		cache = memory.NewSchemaCache(clock.Real{}, cfg.Cache.TTL)
	} else {
		cache = memory.DisabledCache{}
	}

	collector := metrics.New(prometheus.DefaultRegisterer)
	controller := app.NewSchemaController(storage, cache, logger, collector)
	if err := controller.Reload(context.Background(), false); err != nil {
		return nil, fmt.Errorf("initial schema load: %w", err)
	}

	handler := web.New(web.Deps{
		Controller: controller,
		Hasher:     hasher.NewBcrypt(cfg.Auth.BcryptCost),
		IDGen:      idgen.Random{},
		Clock:      clock.Real{},
		MasterKey:  cfg.Auth.MasterKey,
		Logger:     logger,
	})

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Router(metricsPath),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &App{
		Logger:     logger,
		Controller: controller,
		HTTPServer: server,
		holder:     holder,
		db:         db,
		cache:      cache,
	}, nil
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.holder != nil {
		a.holder.Stop()
	}
	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}
	return nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	applyLogLevel(cfg.Level)
	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func applyLogLevel(levelStr string) {
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
