package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/najoast/snakepit/config"
)

// DefaultApplication implements the Application interface
type DefaultApplication struct {
	config *config.Config

	// lifecycleManager manages service lifecycles
	lifecycleManager *DefaultLifecycleManager

	logger *log.Logger

	// mutex protects concurrent access
	mutex sync.RWMutex

	// running indicates if the application is running
	running bool

	// signals end Run; tests leave it empty
	signals []os.Signal
}

// NewApplication creates an application around cfg. A nil cfg uses
// config.DefaultConfig.
func NewApplication(cfg *config.Config, logger *log.Logger) *DefaultApplication {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	lm := NewLifecycleManager(logger)
	lm.SetTimeout(cfg.Server.ShutdownTimeout)

	return &DefaultApplication{
		config:           cfg,
		lifecycleManager: lm,
		logger:           logger,
		signals:          []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
}

// Config returns the application configuration
func (app *DefaultApplication) Config() *config.Config {
	return app.config
}

// Run starts all services and blocks until ctx is cancelled or SIGINT or
// SIGTERM arrives, then shuts down.
func (app *DefaultApplication) Run(ctx context.Context) error {
	app.mutex.Lock()
	if app.running {
		app.mutex.Unlock()
		return fmt.Errorf("application is already running")
	}
	app.running = true
	app.mutex.Unlock()

	if len(app.signals) > 0 {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, app.signals...)
		defer stop()
	}

	if err := app.lifecycleManager.Start(ctx); err != nil {
		app.mutex.Lock()
		app.running = false
		app.mutex.Unlock()
		return fmt.Errorf("failed to start services: %w", err)
	}
	app.logger.Printf("%s %s running (%s)", app.config.App.Name, app.config.App.Version, app.config.App.Environment)

	<-ctx.Done()
	app.logger.Printf("shutting down: %v", context.Cause(ctx))

	return app.Shutdown(context.WithoutCancel(ctx))
}

// Shutdown stops every service, giving them server.shutdown_timeout in total.
func (app *DefaultApplication) Shutdown(ctx context.Context) error {
	app.mutex.Lock()
	if !app.running {
		app.mutex.Unlock()
		return nil
	}
	app.running = false
	app.mutex.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, app.config.Server.ShutdownTimeout)
	defer cancel()

	if err := app.lifecycleManager.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop services: %w", err)
	}
	return nil
}

// LifecycleManager returns the lifecycle manager
func (app *DefaultApplication) LifecycleManager() LifecycleManager {
	return app.lifecycleManager
}

// ApplicationBuilder helps build and configure applications
type ApplicationBuilder struct {
	config   *config.Config
	logger   *log.Logger
	services []registration
}

type registration struct {
	name    string
	service Service
	deps    []string
}

// NewApplicationBuilder creates a new application builder
func NewApplicationBuilder() *ApplicationBuilder {
	return &ApplicationBuilder{}
}

// WithConfig sets the configuration
func (b *ApplicationBuilder) WithConfig(cfg *config.Config) *ApplicationBuilder {
	b.config = cfg
	return b
}

// WithLogger sets the lifecycle logger
func (b *ApplicationBuilder) WithLogger(logger *log.Logger) *ApplicationBuilder {
	b.logger = logger
	return b
}

// WithService registers a service
func (b *ApplicationBuilder) WithService(name string, service Service, deps ...string) *ApplicationBuilder {
	b.services = append(b.services, registration{name: name, service: service, deps: deps})
	return b
}

// Build builds the configured application
func (b *ApplicationBuilder) Build() (*DefaultApplication, error) {
	if b.config != nil {
		if err := b.config.Validate(); err != nil {
			return nil, &ApplicationError{Operation: "configure", Err: err}
		}
	}

	app := NewApplication(b.config, b.logger)
	for _, r := range b.services {
		if err := app.lifecycleManager.Register(r.name, r.service, r.deps...); err != nil {
			return nil, &ApplicationError{Operation: "register", Service: r.name, Err: err}
		}
	}
	return app, nil
}
