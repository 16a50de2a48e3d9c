package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/streamkit/component"
	"github.com/kbukum/streamkit/logger"
)

// App drives a daemon through its lifecycle: start components, wait for a
// signal or a stop request, stop components in reverse order.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(pipeline.NewComponent(p))
//	app.StopOn("pipeline", p.StopRequested)
//	err = app.Run(ctx)
type App[C Config] struct {
	Name       string
	Version    string
	Cfg        C
	Components *component.Registry
	Logger     *logger.Logger

	gracefulTimeout time.Duration
	onConfigure     []func(ctx context.Context, app *App[C]) error
	stopOn          []stopSource

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

type stopSource struct {
	name string
	fn   func() <-chan struct{}
}

// NewApp applies defaults to cfg, validates it and initialises the global
// logger from its logging section.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	base := cfg.GetServiceConfig()

	app := &App[C]{
		Name:            base.Name,
		Version:         base.Version,
		Cfg:             cfg,
		Components:      component.NewRegistry(),
		gracefulTimeout: 15 * time.Second,
	}

	o := resolveOptions(opts)
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}
	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(base.Logging)
		app.Logger = logger.GetGlobalLogger()
	}
	return app, nil
}

// RegisterComponent adds c to the registry. Components start in
// registration order.
func (a *App[C]) RegisterComponent(c component.Component) error {
	return a.Components.Register(c)
}

// OnConfigure registers a callback run after the components started.
func (a *App[C]) OnConfigure(fn func(ctx context.Context, app *App[C]) error) {
	a.onConfigure = append(a.onConfigure, fn)
}

// StopOn makes Run return when the channel produced by fn is closed. fn is
// called after startup, so it may return a channel that only exists while
// a component runs.
func (a *App[C]) StopOn(name string, fn func() <-chan struct{}) {
	a.stopOn = append(a.stopOn, stopSource{name: name, fn: fn})
}

// ReadyCheck fails listing every component that is not healthy.
func (a *App[C]) ReadyCheck(ctx context.Context) error {
	var unhealthy []string
	for _, h := range a.Components.HealthAll(ctx) {
		if h.Status != component.StatusHealthy {
			detail := h.Name + "=" + string(h.Status)
			if h.Message != "" {
				detail += "(" + h.Message + ")"
			}
			unhealthy = append(unhealthy, detail)
		}
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy components: %v", unhealthy)
	}
	return nil
}

// Run starts everything, blocks until a signal, a stop request or ctx ends,
// then shuts down gracefully.
func (a *App[C]) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		return err
	}
	a.Logger.Info("application ready, waiting for shutdown")
	a.Wait(ctx)
	return a.Shutdown(context.Background())
}

func (a *App[C]) startup(ctx context.Context) error {
	start := time.Now()
	a.Logger.Info("starting application", logger.Fields("name", a.Name, "version", a.Version))

	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	if err := runHooks(ctx, a.onStart); err != nil {
		a.abort()
		return fmt.Errorf("onStart hook failed: %w", err)
	}
	for _, fn := range a.onConfigure {
		if err := fn(ctx, a); err != nil {
			a.abort()
			return fmt.Errorf("configuration failed: %w", err)
		}
	}
	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("ready check reported issues", logger.Fields(logger.FieldError, err.Error()))
	}
	if err := runHooks(ctx, a.onReady); err != nil {
		a.abort()
		return fmt.Errorf("onReady hook failed: %w", err)
	}

	a.logSummary(ctx, time.Since(start))
	return nil
}

// abort stops what startup already started.
func (a *App[C]) abort() {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()
	if err := a.Components.StopAll(ctx); err != nil {
		a.Logger.Error("stopping after failed startup", logger.Fields(logger.FieldError, err.Error()))
	}
}

// Wait blocks until SIGINT or SIGTERM, a StopOn channel closes, or ctx
// ends. It returns what woke it up.
func (a *App[C]) Wait(ctx context.Context) string {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	defer close(done)
	requested := make(chan string, len(a.stopOn))
	for _, src := range a.stopOn {
		ch := src.fn()
		go func(name string) {
			select {
			case <-ch:
				requested <- name
			case <-done:
			}
		}(src.name)
	}

	select {
	case sig := <-sigCh:
		a.Logger.Info("received shutdown signal", logger.Fields("signal", sig.String()))
		return sig.String()
	case name := <-requested:
		a.Logger.Info("stop requested", logger.Fields(logger.FieldComponent, name))
		return name
	case <-ctx.Done():
		a.Logger.Info("context canceled, shutting down")
		return "context"
	}
}

// Shutdown runs the OnStop hooks and stops every component in reverse
// order, all within the graceful timeout.
func (a *App[C]) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application", logger.Fields("timeout", a.gracefulTimeout.String()))
	ctx, cancel := context.WithTimeout(ctx, a.gracefulTimeout)
	defer cancel()

	var shutdownErr error
	if err := runHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("OnStop hook error", logger.Fields(logger.FieldError, err.Error()))
		shutdownErr = err
	}
	if err := a.Components.StopAll(ctx); err != nil {
		a.Logger.Error("shutdown completed with errors", logger.Fields(logger.FieldError, err.Error()))
		if shutdownErr == nil {
			shutdownErr = err
		}
	}
	a.Logger.Info("application shutdown complete")
	return shutdownErr
}
