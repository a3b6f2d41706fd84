// Command meshd runs one LoRa mesh node core: it ticks a mesh.Node against
// a radio transport and exposes status, neighbor table, and message
// submission over an admin HTTP surface, plus Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/loramesh/meshcore/internal/admin"
	"github.com/loramesh/meshcore/internal/config"
	"github.com/loramesh/meshcore/internal/identity"
	meshmetrics "github.com/loramesh/meshcore/internal/metrics"
	"github.com/loramesh/meshcore/internal/mesh"
	"github.com/loramesh/meshcore/internal/radio"
	appversion "github.com/loramesh/meshcore/internal/version"
)

// shutdownTimeout is the maximum time to wait for HTTP servers to drain
// active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

// tickInterval is the period of the cooperative Tick loop driving the
// mesh node's radio poll, LBT state machine, and retry/expiry sweeps.
const tickInterval = 20 * time.Millisecond

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	nodeID, err := resolveIdentity(cfg)
	if err != nil {
		logger.Error("failed to resolve node identity", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("meshd starting",
		slog.String("version", appversion.Version),
		slog.Uint64("node_id", uint64(nodeID)),
		slog.Uint64("mesh_id", uint64(cfg.Node.MeshID)),
		slog.String("admin_addr", cfg.Admin.Addr),
		slog.String("metrics_addr", cfg.Metrics.Addr),
	)

	reg := prometheus.NewRegistry()
	collector := meshmetrics.NewCollector(reg)

	driver, err := newDriver(cfg, logger)
	if err != nil {
		logger.Error("failed to construct radio driver", slog.String("error", err.Error()))
		return 1
	}
	defer driver.Close()

	node, err := mesh.NewNode(mesh.NodeConfig{
		MeshID:      cfg.Node.MeshID,
		NodeID:      nodeID,
		AllowList:   cfg.Node.AllowedNeighbors,
		Driver:      driver,
		Logger:      logger,
		HelloPeriod: cfg.Timers.HelloInterval,
		Metrics:     collector,
	})
	if err != nil {
		logger.Error("failed to construct mesh node", slog.String("error", err.Error()))
		return 1
	}

	if err := runServers(cfg, node, collector, reg, logger); err != nil {
		logger.Error("meshd exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("meshd stopped")
	return 0
}

// runServers ticks the node and runs the admin and metrics HTTP servers
// under an errgroup, shutting all three down together on SIGINT/SIGTERM.
func runServers(
	cfg *config.Config,
	node *mesh.Node,
	collector *meshmetrics.Collector,
	reg *prometheus.Registry,
	logger *slog.Logger,
) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	adminSrv := newAdminServer(cfg.Admin, node, logger)
	metricsSrv := newMetricsServer(cfg.Metrics, reg)

	g, gCtx := errgroup.WithContext(ctx)
	lc := net.ListenConfig{}

	g.Go(func() error {
		logger.Info("admin server listening", slog.String("addr", cfg.Admin.Addr))
		return listenAndServe(gCtx, &lc, adminSrv, cfg.Admin.Addr)
	})

	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr),
			slog.String("path", cfg.Metrics.Path),
		)
		return listenAndServe(gCtx, &lc, metricsSrv, cfg.Metrics.Addr)
	})

	g.Go(func() error {
		runTickLoop(gCtx, node, collector, logger)
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(ctx, logger, adminSrv, metricsSrv)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runTickLoop drives the node's cooperative scheduler on a fixed period
// until ctx is cancelled, reporting table occupancy to the collector each
// tick so gauges stay current between scrapes.
func runTickLoop(ctx context.Context, node *mesh.Node, collector *meshmetrics.Collector, logger *slog.Logger) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	nodeID := node.NodeID()
	logger.Info("tick loop starting", slog.Duration("interval", tickInterval))

	for {
		select {
		case <-ctx.Done():
			logger.Info("tick loop stopping")
			return
		case now := <-ticker.C:
			node.Tick(now)
			collector.SetNeighbors(nodeID, len(node.Neighbors()))
			collector.SetPendingAcks(nodeID, node.PendingCount())
			collector.SetQueueDepth(nodeID, node.QueueLen())
		}
	}
}

func gracefulShutdown(ctx context.Context, logger *slog.Logger, servers ...*http.Server) error {
	logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
		}
	}
	return shutdownErr
}

func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

func newAdminServer(cfg config.AdminConfig, node *mesh.Node, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           admin.New(node, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// newDriver constructs the configured radio transport. "bus" is an
// in-process loopback useful only for a single-process demo of multiple
// nodes sharing main(); real deployments use "udp" multicast.
func newDriver(cfg *config.Config, logger *slog.Logger) (radio.Driver, error) {
	switch cfg.Radio.Transport {
	case "udp":
		group := net.ParseIP(cfg.Radio.MulticastGroup)
		if group == nil {
			return nil, fmt.Errorf("radio: invalid multicast_group %q", cfg.Radio.MulticastGroup)
		}
		var iface *net.Interface
		if cfg.Radio.Interface != "" {
			found, err := net.InterfaceByName(cfg.Radio.Interface)
			if err != nil {
				return nil, fmt.Errorf("radio: resolving interface %q: %w", cfg.Radio.Interface, err)
			}
			iface = found
		}
		return radio.NewUDPBusDriver(radio.UDPBusConfig{
			Group:  group,
			Port:   cfg.Radio.MulticastPort,
			Iface:  iface,
			Logger: logger,
		})
	case "bus":
		return radio.NewBus().NewDriver(), nil
	default:
		return nil, fmt.Errorf("radio: unknown transport %q", cfg.Radio.Transport)
	}
}

// resolveIdentity picks this process's node ID per cfg.Node.IDSource.
// "static" uses the configured Node.ID directly; "env" reads MESH_NODE_ID.
func resolveIdentity(cfg *config.Config) (uint16, error) {
	var src identity.Source
	switch cfg.Node.IDSource {
	case "static":
		src = identity.Static(cfg.Node.ID)
	case "env":
		src = identity.FromEnv{}
	default:
		return 0, fmt.Errorf("identity: unknown id_source %q", cfg.Node.IDSource)
	}
	return src.NodeID()
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

// newLoggerWithLevel creates a structured logger using a shared LevelVar,
// so a future reload path can adjust verbosity without restarting.
func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
