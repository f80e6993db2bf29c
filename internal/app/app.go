package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/lumen-backend/internal/http"
	"github.com/yungbote/lumen-backend/internal/observability"
	"github.com/yungbote/lumen-backend/internal/platform/envutil"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
	"github.com/yungbote/lumen-backend/internal/realtime"
	"github.com/yungbote/lumen-backend/internal/temporalx/temporalworker"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services
	Hub      *realtime.Hub
	Server   *http.Server

	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	loadDotEnv(log)
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})
	metrics := observability.Init(log)

	clients, err := wireClients(log, cfg)
	if err != nil {
		_ = otelShutdown(context.Background())
		log.Sync()
		return nil, err
	}

	hub := realtime.NewHub(log, realtime.HubOptions{
		BufferSize: envutil.Int("REALTIME_SUBSCRIBER_BUFFER", 64),
		Heartbeat:  envutil.Seconds("REALTIME_HEARTBEAT_SECONDS", 15),
	})

	reposet := wireRepos(clients.DB, log)
	serviceset, err := wireServices(clients.DB, log, clients, reposet)
	if err != nil {
		clients.Close()
		_ = otelShutdown(context.Background())
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, serviceset, hub)
	middleware := wireMiddleware(log, cfg)
	server := wireServer(log, cfg, metrics, handlerset, middleware)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Hub:          hub,
		Server:       server,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves HTTP alongside the bus forwarder, job recovery and the
// optional Temporal worker. It returns when ctx is canceled or any of them
// fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)

	runner := a.Services.Runner
	if err := a.Clients.Bus.StartForwarder(gctx, func(m realtime.Message) {
		a.Hub.Broadcast(m)
		runner.HandleMessage(gctx, m)
	}); err != nil {
		return fmt.Errorf("start bus forwarder: %w", err)
	}

	if a.Clients.Temporal != nil {
		worker, err := temporalworker.NewRunner(a.Log, a.Clients.Temporal, runner)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return worker.Start(gctx)
		})
	}

	g.Go(func() error {
		runner.RunRecovery(gctx, envutil.Seconds("JOB_RECOVERY_INTERVAL_SECONDS", 60))
		return nil
	})

	g.Go(func() error {
		a.Log.Info("HTTP server listening", "address", a.Cfg.Address())
		return a.Server.Run(gctx, a.Cfg.Address())
	})

	return g.Wait()
}

// Close waits for in-process generation runs before tearing down clients.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Services.Runner != nil {
		done := make(chan struct{})
		go func() {
			a.Services.Runner.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(a.Cfg.ShutdownGrace):
			a.Log.Warn("Generation runs still in flight at shutdown", "grace", a.Cfg.ShutdownGrace)
		}
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
