package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angeloszaimis/campus-gateway/config"
	"github.com/angeloszaimis/campus-gateway/internal/candidate"
	"github.com/angeloszaimis/campus-gateway/internal/discovery"
	"github.com/angeloszaimis/campus-gateway/internal/health"
	"github.com/angeloszaimis/campus-gateway/internal/httpserver"
	"github.com/angeloszaimis/campus-gateway/internal/metrics"
	"github.com/angeloszaimis/campus-gateway/internal/probe"
	"github.com/angeloszaimis/campus-gateway/internal/strategy"
	"github.com/angeloszaimis/campus-gateway/pkg/apiclient"
	"github.com/angeloszaimis/campus-gateway/pkg/logger"
	"github.com/angeloszaimis/campus-gateway/pkg/tokenstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	gw, err := newGateway(cfg, log)
	if err != nil {
		log.Error("Failed to initialize gateway", slog.Any("err", err))
		os.Exit(1)
	}

	gw.start(ctx)

	srv, err := httpserver.New(cfg.Gateway.Address, setupRouter(gw),
		httpserver.WithWriteTimeout(writeTimeout(cfg)))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		log.Info("Gateway listening", slog.String("address", cfg.Gateway.Address))
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting gateway", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

type gateway struct {
	cfg         *config.Config
	log         *slog.Logger
	collector   *metrics.Collector
	prober      *probe.Prober
	coordinator *discovery.Coordinator
	tracker     *health.Tracker
	client      *apiclient.Client
}

func newGateway(cfg *config.Config, log *slog.Logger) (*gateway, error) {
	registry, err := candidate.NewRegistry(cfg.API.Candidates, cfg.API.FallbackURL)
	if err != nil {
		return nil, err
	}

	strat, err := strategy.New(cfg.API.ProbeStrategy)
	if err != nil {
		return nil, err
	}

	tokens, err := newTokenStore(cfg.Tokens.Path)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector(cfg.Metrics.BufferSize, logger.Component(log, "metrics"))

	prober := probe.NewProber(logger.Component(log, "prober"),
		probe.WithPath(cfg.API.ProbePath),
		probe.WithTimeout(cfg.ProbeTimeout()),
		probe.WithStrategy(strat),
		probe.WithCollector(collector))

	coordinator := discovery.NewCoordinator(registry, prober, logger.Component(log, "coordinator"), collector)
	tracker := health.NewTracker(cfg.Health.FailureThreshold, cfg.Cooldown())

	client, err := apiclient.New(coordinator, tracker,
		apiclient.Timeout(cfg.RequestTimeout()),
		apiclient.Tokens(tokens),
		apiclient.Logger(logger.Component(log, "client")),
		apiclient.Collector(collector),
		apiclient.NotFoundIsStale(cfg.API.NotFoundIsStale))
	if err != nil {
		return nil, err
	}

	return &gateway{
		cfg:         cfg,
		log:         log,
		collector:   collector,
		prober:      prober,
		coordinator: coordinator,
		tracker:     tracker,
		client:      client,
	}, nil
}

func newTokenStore(path string) (tokenstore.Store, error) {
	if path == "" {
		return tokenstore.NewMemoryStore(), nil
	}
	return tokenstore.NewFileStore(path)
}

// start runs the collector, resolves the endpoint once so the first request
// does not pay for discovery, and starts the monitor when enabled.
func (g *gateway) start(ctx context.Context) {
	g.collector.Start(ctx)

	endpoint, err := g.coordinator.Resolve(ctx)
	if err != nil {
		g.log.Error("Initial endpoint discovery failed", slog.Any("err", err))
	} else {
		g.log.Info("Initial endpoint resolved",
			slog.String("endpoint", endpoint),
			slog.Bool("degraded", g.coordinator.Degraded()))
	}

	if interval := g.cfg.MonitorInterval(); interval > 0 {
		go probe.Monitor(ctx, g.prober, g.coordinator, g.tracker,
			interval, g.cfg.Cooldown(), logger.Component(g.log, "monitor"))
	}
}

// writeTimeout leaves room for a full attempt, a redetection round over every
// candidate and the retry.
func writeTimeout(cfg *config.Config) time.Duration {
	probes := time.Duration(len(cfg.API.Candidates)+1) * cfg.ProbeTimeout()
	return 2*cfg.RequestTimeout() + probes + 5*time.Second
}
