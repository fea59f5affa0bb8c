package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"homebids/internal/config"
	"homebids/internal/controller"
	"homebids/internal/feed"
	"homebids/internal/repository"
	"homebids/internal/router"
	"homebids/internal/service"

	"golang.org/x/sync/errgroup"
)

type App struct {
	repo       *repository.Repository
	service    *service.Service
	controller *controller.Controller
	refresher  *feed.Refresher
	stopSig    chan os.Signal
	cfg        *config.Config
	log        *slog.Logger

	Done chan struct{}
}

type option func(*App)

func WithConfig(cfg *config.Config) option {
	return func(app *App) {
		app.cfg = cfg
	}
}

func NewApp(opts ...option) (*App, error) {
	var err error

	app := &App{
		stopSig: make(chan os.Signal, 2),
		Done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(app)
	}

	if app.cfg == nil {
		cfg, err := config.NewConfig()
		if err != nil {
			return nil, err
		}
		app.cfg = cfg
	}

	app.log, err = NewLogger(app.cfg.LogLevel, app.cfg.LogFormat, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("app.NewApp: %w", err)
	}
	slog.SetDefault(app.log)

	app.repo, err = repository.NewRepository(nil, &app.cfg.PostgresConfig)
	if err != nil {
		return nil, err
	}

	app.service, err = service.NewService(app.repo, app.cfg.PolicyConfig)
	if err != nil {
		app.repo.Close()
		return nil, err
	}
	app.controller = controller.NewController(app.service)

	if app.cfg.FeedConfig.Path != "" {
		app.refresher = feed.NewRefresher(app.cfg.FeedConfig.Path, app.cfg.FeedConfig.Interval, app.service, app.log)
	}

	return app, nil
}

// NewLogger builds a slog logger writing json or text records at the given
// level.
func NewLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

func (app *App) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		signal.Notify(app.stopSig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-app.stopSig:
			app.log.Info("received signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	server := &http.Server{
		Addr:         app.cfg.ServerAddress,
		Handler:      router.NewRouter(app.controller),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.log.Info("server started, listening for connections", "addr", app.cfg.ServerAddress)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if app.refresher != nil {
		g.Go(func() error {
			return app.refresher.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		timeout, tcancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer tcancel()
		app.log.Info("shutting down http server")
		return server.Shutdown(timeout)
	})

	if err := g.Wait(); err != nil {
		app.log.Error("app stopped with error", "err", err)
	}

	app.log.Info("closing repository")
	if err := app.repo.Close(); err != nil {
		app.log.Error("repository closing error", "err", err)
	}

	signal.Stop(app.stopSig)
	close(app.Done)
	app.log.Info("exiting app")
}
