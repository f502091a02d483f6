package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/haukened/callfwd/internal/callfwd/common/clock"
	"github.com/haukened/callfwd/internal/callfwd/common/log"
	"github.com/haukened/callfwd/internal/callfwd/config"
	"github.com/haukened/callfwd/internal/callfwd/domain"
	ctlgw "github.com/haukened/callfwd/internal/callfwd/gateways/control"
	"github.com/haukened/callfwd/internal/callfwd/infra/metrics"
	"github.com/haukened/callfwd/internal/callfwd/repos/history"
	"github.com/haukened/callfwd/internal/callfwd/repos/history/bolt"
	"github.com/haukened/callfwd/internal/callfwd/repos/mapping/bloom"
	"github.com/haukened/callfwd/internal/callfwd/repos/rangecache"
	"github.com/haukened/callfwd/internal/callfwd/repos/registry"
	"github.com/haukened/callfwd/internal/callfwd/services/control"
	"github.com/haukened/callfwd/internal/callfwd/services/lookup"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "callfwdd"

	defaultShutdownTimeout = 10 * time.Second
	historyEntries         = 1000
)

// Application holds all the components of the lookup daemon.
type Application struct {
	config *config.AppConfig
	// reader is the query surface mounted by the request-serving layer.
	reader  *lookup.Service
	control *control.Service
	server  *ctlgw.Server
	journal history.Journal

	promReg *prometheus.Registry
	// socketPath is removed on shutdown when the daemon bound it itself.
	socketPath string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	err = log.Configure(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"version":        version,
		"env":            cfg.Env,
		"log_level":      cfg.LogLevel,
		"control_socket": cfg.ControlSocket,
		"metrics_addr":   cfg.MetricsAddr,
		"history_db":     cfg.HistoryDB,
	}, "Starting "+appName)

	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err.Error()}, "Failed to build application")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err.Error()}, "Daemon failed")
	}
	log.Info(nil, appName+" stopped gracefully")
}

// buildApplication constructs all components and wires them together.
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	logger := log.GetLogger()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	reg := registry.New(registry.Options{
		Filter:            bloom.NewFactory(),
		FalsePositiveRate: cfg.BloomFPRate,
		OnReclaim: func(id domain.DomainID, generation uint64) {
			m.IncrementReclaimed(id.String())
			logger.Debug(map[string]any{"domain": id.String(), "generation": generation}, "Snapshot reclaimed")
		},
	})

	reverse, err := rangecache.New[lookup.Pair](cfg.RangeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create reverse cache: %w", err)
	}
	keys, err := rangecache.New[uint64](cfg.RangeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create range cache: %w", err)
	}
	log.Info(map[string]any{"type": "LRU", "size": cfg.RangeCacheSize}, "Range cache configured")

	reader := lookup.New(lookup.Options{
		Registry:     reg,
		ReverseCache: reverse,
		KeyCache:     keys,
		Metrics:      m,
		Logger:       logger,
	})

	journal, err := buildJournal(cfg)
	if err != nil {
		return nil, err
	}

	svc := control.New(control.Options{
		Registry:      reg,
		Journal:       journal,
		Metrics:       m,
		Logger:        logger,
		Clock:         clock.RealClock{},
		ReportPeriod:  time.Duration(cfg.ReportPeriod) * time.Second,
		OpTimeout:     time.Duration(cfg.OpTimeout) * time.Second,
		RowChunk:      cfg.RowChunk,
		VerifyMaxDiff: cfg.VerifyMaxDiff,
	})

	conn, socketPath, err := controlSocket(cfg)
	if err != nil {
		_ = journal.Close()
		return nil, err
	}

	return &Application{
		config:     cfg,
		reader:     reader,
		control:    svc,
		server:     ctlgw.NewServer(conn, ctlgw.NewCodec(), logger),
		journal:    journal,
		promReg:    promReg,
		socketPath: socketPath,
	}, nil
}

func buildJournal(cfg *config.AppConfig) (history.Journal, error) {
	if cfg.HistoryDB == "" {
		log.Info(map[string]any{"disabled": true}, "Operation history disabled")
		return history.Nop{}, nil
	}
	j, err := bolt.New(cfg.HistoryDB, historyEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", cfg.HistoryDB, err)
	}
	log.Info(map[string]any{"path": cfg.HistoryDB, "entries": historyEntries}, "Operation history opened")
	return j, nil
}

// controlSocket prefers a socket handed over by the service manager and
// otherwise binds the configured path.
func controlSocket(cfg *config.AppConfig) (*net.UnixConn, string, error) {
	conn, err := ctlgw.Activated()
	if err != nil {
		return nil, "", fmt.Errorf("failed to use activated socket: %w", err)
	}
	if conn != nil {
		log.Info(nil, "Using socket-activated control socket")
		return conn, "", nil
	}
	conn, err = ctlgw.Listen(cfg.ControlSocket)
	if err != nil {
		return nil, "", err
	}
	return conn, cfg.ControlSocket, nil
}

// Run serves the control socket and the metrics endpoint until ctx is cancelled.
func (app *Application) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if err := app.server.Start(gctx, app.control); err != nil {
		return fmt.Errorf("failed to start control socket: %w", err)
	}
	g.Go(func() error {
		<-gctx.Done()
		return app.server.Stop()
	})

	if app.config.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              app.config.MetricsAddr,
			Handler:           app.metricsHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info(map[string]any{"address": srv.Addr}, "Metrics endpoint started")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics endpoint: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := ctlgw.Notify("READY=1"); err != nil {
		log.Warn(map[string]any{"error": err.Error()}, "Failed to notify service manager")
	}
	log.Info(map[string]any{"address": app.server.Address()}, "Daemon ready")

	err := g.Wait()
	log.Info(nil, "Shutdown initiated")
	_ = ctlgw.Notify("STOPPING=1")
	app.shutdown()
	return err
}

// Reader returns the query surface over the daemon's registry.
func (app *Application) Reader() lookup.Reader { return app.reader }

func (app *Application) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(app.promReg, promhttp.HandlerOpts{Registry: app.promReg}))
	return mux
}

func (app *Application) shutdown() {
	if err := app.journal.Close(); err != nil {
		log.Warn(map[string]any{"error": err.Error()}, "Error closing history")
	}
	if app.socketPath != "" {
		if err := os.Remove(app.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn(map[string]any{"error": err.Error()}, "Error removing control socket")
		}
	}
}
