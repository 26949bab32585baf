package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/oto-macenauer/school-summary/internal/app/scheduler"
	"github.com/oto-macenauer/school-summary/internal/app/students"
	"github.com/oto-macenauer/school-summary/internal/platform/config"
	"github.com/oto-macenauer/school-summary/internal/platform/errors"
	"github.com/oto-macenauer/school-summary/internal/platform/logging"
	"github.com/oto-macenauer/school-summary/internal/platform/storage"
	httptransport "github.com/oto-macenauer/school-summary/internal/transport/http"
)

const shutdownTimeout = 15 * time.Second

// Options tweak how Run builds the application.
type Options struct {
	ConfigPath string
}

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      errors.Kind
	Execute   stepFn
}

type appState struct {
	opts        Options
	config      *config.Config
	configPath  string
	logProvider *logging.Logger
	logger      *slog.Logger
	db          *gorm.DB
	manager     *students.Manager
}

// Run starts the whole service lifecycle: configuration, logging, storage,
// student login, the scheduler and the HTTP server, then blocks until a
// termination signal arrives and everything has shut down.
func Run(ctx context.Context, opts Options) error {
	state := &appState{opts: opts}

	if err := executeInitSteps(ctx, InitGraph(), state); err != nil {
		return err
	}

	cfg := state.config
	logger := state.logger
	if cfg == nil || logger == nil {
		return errors.New(errors.KindBootstrap,
			"bootstrap state validation", "config/logger not initialised")
	}
	defer state.logProvider.Close()

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// All students must log in before any job runs. A failure here is a
	// configuration problem, not a transient one.
	if err := state.manager.Init(signalCtx); err != nil {
		return err
	}

	sched := scheduler.New(state.manager, cfg, logger)
	sched.Start(signalCtx)
	defer sched.Stop()

	group, groupCtx := errgroup.WithContext(signalCtx)

	if err := startHTTPServer(state, sched, group, groupCtx); err != nil {
		return err
	}

	return waitForShutdown(signalCtx, logger, group)
}

func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    errors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      errors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "storage:open",
			Title:     "Open message archive",
			DependsOn: []string{"config:load", "logging:init-provider"},
			Kind:      errors.KindStorage,
			Execute:   openStorageStep,
		},
		{
			ID:        "students:init-manager",
			Title:     "Initialise student manager",
			DependsOn: []string{"storage:open"},
			Kind:      errors.KindBootstrap,
			Execute:   initManagerStep,
		},
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return errors.New(errors.KindBootstrap, "execute init steps", "nil bootstrap state")
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return errors.New(errors.KindBootstrap, step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep))
			}
		}
		if step.Execute == nil {
			return errors.New(errors.KindBootstrap, step.ID, "missing execute function")
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *errors.Error
			if stderrors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = errors.KindBootstrap
			}
			return errors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := config.NewLoader().WithPath(state.opts.ConfigPath).Load()
	if err != nil {
		return err
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return errors.New(errors.KindBootstrap, "logging:init-provider", "config not loaded")
	}

	provider, err := logging.New(logging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return errors.Wrap(errors.KindBootstrap, "logging:init-provider",
			"failed to initialise logging provider", err)
	}

	state.logProvider = provider
	state.logger = provider.Slog()

	state.logger.Info("logging ready",
		slog.String("level", state.config.Log.Level),
		slog.String("config", state.configPath))
	return nil
}

func openStorageStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return errors.New(errors.KindStorage, "storage:open", "config not loaded")
	}

	db, err := storage.Open(state.config.Storage)
	if err != nil {
		return err
	}
	state.db = db

	state.logger.Info("storage ready",
		logging.Category(logging.CategoryStorage),
		slog.String("path", state.config.Storage.Path))
	return nil
}

func initManagerStep(_ context.Context, state *appState) error {
	if state.config == nil || state.logger == nil {
		return errors.New(errors.KindBootstrap, "students:init-manager", "missing config/logger")
	}

	manager, err := students.NewManager(state.config, state.db, state.logger)
	if err != nil {
		return err
	}
	state.manager = manager
	return nil
}

func startHTTPServer(state *appState, sched *scheduler.Scheduler, g *errgroup.Group, groupCtx context.Context) error {
	cfg := state.config
	logger := state.logger

	staticRoot := ""
	if cfg.Web.Enabled {
		staticRoot = cfg.Web.StaticDir
	}

	router, err := httptransport.Build(httptransport.Options{
		Config:     cfg,
		Logger:     logger,
		StaticRoot: staticRoot,
	})
	if err != nil {
		return err
	}

	service, err := httptransport.NewService(cfg, state.manager, sched, state.logProvider.Ring(), logger)
	if err != nil {
		return err
	}
	service.Register(router.API)

	router.Engine.NoRoute(func(c *gin.Context) {
		httptransport.RespondError(c, http.StatusNotFound, "not found", nil)
	})

	addr := net.JoinHostPort(cfg.Server.IP, strconv.Itoa(cfg.Server.Port))
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router.Engine,
	}

	g.Go(func() error {
		logger.Info("http server listening",
			logging.Category(logging.CategoryHTTP),
			slog.String("addr", addr))

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("http shutdown failed",
					logging.Category(logging.CategoryHTTP),
					slog.Any("error", err))
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(errors.KindTransport, "http:serve", "http server failed", err)
		}
		return nil
	})

	return nil
}

func waitForShutdown(ctx context.Context, logger *slog.Logger, g *errgroup.Group) error {
	<-ctx.Done()
	logger.Info("shutdown requested", slog.Any("cause", context.Cause(ctx)))

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil && !stderrors.Is(err, context.Canceled) {
			logger.Error("shutdown finished with error", slog.Any("error", err))
			return err
		}
		logger.Info("all services stopped")
		return nil
	case <-time.After(shutdownTimeout):
		logger.Error("shutdown timed out")
		return errors.New(errors.KindBootstrap, "shutdown", "timed out waiting for services to stop")
	}
}
