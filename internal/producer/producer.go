// Package producer assembles the producer process: a native server source,
// the directory registry and the boundary server in front of it.
package producer

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"syphon-bridge/internal/config"
	"syphon-bridge/internal/directory"
	"syphon-bridge/internal/server"
	"syphon-bridge/pkg/discovery"
	"syphon-bridge/pkg/screen"
	"syphon-bridge/pkg/syphon"
)

// NewSource builds the native directory named by cfg.Source.
func NewSource(cfg *config.Config, logger *zap.Logger) (syphon.Directory, error) {
	switch cfg.Source {
	case config.SourceDiscovery:
		return discovery.New(
			discovery.WithAddr(fmt.Sprintf(":%d", cfg.Discovery.Port)),
			discovery.WithTTL(cfg.Discovery.TTL),
			discovery.WithLogger(logger),
		), nil
	case config.SourceScreen:
		return screen.New(
			screen.WithInterval(cfg.Screen.PollInterval),
			screen.WithLogger(logger),
		), nil
	case config.SourceMemory:
		return syphon.NewMemoryDirectory(), nil
	}
	return nil, fmt.Errorf("unknown source %q", cfg.Source)
}

// Producer is a running directory with its boundary server.
type Producer struct {
	Registry *directory.Registry
	Server   *server.Server
	// Addr is the address the HTTP server actually listens on.
	Addr string

	logger *zap.Logger
	stop   func()
}

// Start listens on native, then serves the boundary on cfg.Listen.
func Start(cfg *config.Config, native syphon.Directory, logger *zap.Logger) (*Producer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		metrics  *server.Metrics
		gatherer prometheus.Gatherer
	)
	if cfg.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = server.NewMetrics(reg)
		gatherer = reg
	}

	registry := directory.New(native, directory.WithLogger(logger))
	srv := server.NewServer(registry, server.WithLogger(logger), server.WithMetrics(metrics))
	registry.SetPusher(srv)

	if err := registry.Listen(); err != nil {
		_ = registry.Dispose()
		return nil, err
	}

	addr, stop, err := server.StartHTTPServer(cfg.Listen, server.NewRouter(srv, gatherer), logger)
	if err != nil {
		_ = registry.Dispose()
		return nil, fmt.Errorf("start directory server: %w", err)
	}
	logger.Info("directory server started", zap.String("addr", addr), zap.String("source", cfg.Source))

	return &Producer{Registry: registry, Server: srv, Addr: addr, logger: logger, stop: stop}, nil
}

// URL returns the websocket URL of the boundary channel.
func (p *Producer) URL() string {
	host := p.Addr
	if strings.HasPrefix(host, "[::]:") || strings.HasPrefix(host, "0.0.0.0:") {
		host = "127.0.0.1" + host[strings.LastIndex(host, ":"):]
	}
	return "ws://" + host + "/ws"
}

// Close stops serving, disconnects consumers and disposes the registry.
func (p *Producer) Close() error {
	p.stop()
	p.Server.Close()
	return p.Registry.Dispose()
}

// Run serves until ctx is done, together with the optional side tasks, and
// then closes p. The first task error cancels the rest.
func (p *Producer) Run(ctx context.Context, tasks ...func(context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error { return task(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		p.logger.Info("shutting down directory server")
		return p.Close()
	})
	return g.Wait()
}
