package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/vyrodovalexey/restroommap/internal/api"
	"github.com/vyrodovalexey/restroommap/internal/config"
	"github.com/vyrodovalexey/restroommap/internal/observability"
)

// shutdownTimeout bounds flushing traces and stopping the metrics server.
const shutdownTimeout = 5 * time.Second

// globalFlags holds the persistent command line flags.
type globalFlags struct {
	configPath  string
	baseURL     string
	logLevel    string
	logFormat   string
	metricsAddr string
}

// app is the state shared by all commands of one invocation.
type app struct {
	flags  globalFlags
	out    io.Writer
	errOut io.Writer

	cfg     *config.Config
	logger  observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
	client  *api.Client

	metricsServer *http.Server

	mu       sync.Mutex
	failures []error

	shutdownOnce sync.Once
}

// setup loads configuration and builds the client.
func (a *app) setup(changed func(name string) bool) error {
	cfg, source, err := loadConfig(a.flags.configPath, changed("config") || os.Getenv(envConfigPath) != "")
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg, &a.flags, changed)
	if err := config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	logger, err := observability.NewLoggerWithWriter(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}, logWriter(cfg.Logging.Output, a.errOut))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = logger.With(observability.String("version", version))

	a.logger.Debug("configuration loaded",
		observability.String("source", source),
		observability.String("baseURL", cfg.API.BaseURL))

	if cfg.Metrics.Enabled || cfg.Metrics.Address != "" {
		a.metrics = observability.NewMetrics(cfg.Metrics.Namespace)
		a.metrics.SetBuildInfo(version, gitCommit, buildTime)
		if err := a.startMetricsServer(cfg.Metrics.Address); err != nil {
			return err
		}
	}

	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		Enabled:      cfg.Tracing.Enabled,
	})
	if err != nil {
		return fmt.Errorf("failed to create tracer: %w", err)
	}
	a.tracer = tracer

	client, err := api.New(cfg,
		api.WithLogger(a.logger),
		api.WithMetrics(a.metrics),
		api.WithTracer(a.tracer),
		api.WithErrorHandler(a.recordFailure),
	)
	if err != nil {
		return err
	}
	a.client = client

	return nil
}

// logWriter maps the configured output to a writer.
func logWriter(output string, errOut io.Writer) io.Writer {
	if output == "stdout" {
		return os.Stdout
	}
	return errOut
}

// startMetricsServer serves /metrics on addr when addr is set.
func (a *app) startMetricsServer(addr string) error {
	if addr == "" {
		return nil
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on metrics address %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	a.metricsServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := a.metricsServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", observability.Error(err))
		}
	}()

	a.logger.Info("metrics server started", observability.String("address", listener.Addr().String()))
	return nil
}

// shutdown releases everything setup created.
func (a *app) shutdown() {
	a.shutdownOnce.Do(a.release)
}

func (a *app) release() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.client != nil {
		a.client.Close()
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Warn("failed to stop metrics server", observability.Error(err))
		}
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Warn("failed to shut down tracer", observability.Error(err))
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// run adapts a command body to cobra. The client is set up before fn runs
// and released after it returns.
func (a *app) run(fn func(ctx context.Context, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer a.shutdown()

		err := a.setup(func(name string) bool {
			return cmd.Flags().Changed(name)
		})
		if err != nil {
			return err
		}
		return fn(cmd.Context(), args)
	}
}

// recordFailure is the client's error handler.
func (a *app) recordFailure(operation string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures = append(a.failures, fmt.Errorf("%s: %w", operation, err))
}

// failure returns the reported failures joined, or nil.
func (a *app) failure() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return errors.Join(a.failures...)
}

// emit prints v as indented JSON unless the client reported a failure.
func (a *app) emit(v any) error {
	if err := a.failure(); err != nil {
		return err
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
