package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/a5c-ai/mcpml/internal/agent"
	"github.com/a5c-ai/mcpml/internal/audit"
	"github.com/a5c-ai/mcpml/internal/config"
	"github.com/a5c-ai/mcpml/internal/funcs"
	"github.com/a5c-ai/mcpml/internal/invoke"
	"github.com/a5c-ai/mcpml/internal/schema"
	"github.com/a5c-ai/mcpml/internal/server"
	"github.com/a5c-ai/mcpml/internal/telemetry"
)

const (
	BindPortEnvVar         = "PORT"
	TelemetryEnabledEnvVar = "OTEL_ENABLED"
)

const (
	transportStdio = "stdio"
	transportHTTP  = "http"
)

var (
	startCmdConfigPath string
	startCmdTransport  string
	startCmdBindPort   int
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the mcpml server",
	Long: "Starts the mcpml server on the selected transport.\n\n" +
		"The stdio transport serves MCP over the process's standard streams and exits\n" +
		"when the input stream closes. The http transport runs a long-lived listener\n" +
		"exposing the MCP streaming endpoints and the mcpml HTTP API.\n\n" +
		"The configuration file (mcpml.yaml by default) declares the tools, the\n" +
		"upstream MCP servers available to agent tools, and the server settings.\n" +
		"Set the OTEL_ENABLED environment variable to 'true' to expose prometheus\n" +
		"metrics on /metrics (http transport only).",
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVarP(
		&startCmdConfigPath, "config", "c", config.DefaultPath, "path to the configuration file",
	)
	startCmd.Flags().StringVarP(
		&startCmdTransport, "transport", "t", transportStdio,
		fmt.Sprintf("transport to serve on ('%s' | '%s')", transportStdio, transportHTTP),
	)
	startCmd.Flags().IntVar(
		&startCmdBindPort, "port", 0,
		fmt.Sprintf("port to bind the HTTP server to (overrides config and env var %s)", BindPortEnvVar),
	)
	rootCmd.AddCommand(startCmd)
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	// logs go to stderr so they never interfere with the stdio transport
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func resolveBindPort(cfg *config.Config) (int, error) {
	if startCmdBindPort != 0 {
		return startCmdBindPort, nil
	}
	if raw := os.Getenv(BindPortEnvVar); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid value %q for env var %s", raw, BindPortEnvVar)
		}
		return port, nil
	}
	return cfg.Settings.Server.Port, nil
}

func runStart(cmd *cobra.Command, args []string) error {
	if startCmdTransport != transportStdio && startCmdTransport != transportHTTP {
		return fmt.Errorf("unknown transport: %s", startCmdTransport)
	}

	// a missing configuration file is the one fatal startup error
	cfg, err := config.Load(afero.NewOsFs(), startCmdConfigPath)
	if err != nil {
		return err
	}

	port, err := resolveBindPort(cfg)
	if err != nil {
		return err
	}
	cfg.Settings.Server.Port = port

	logger, err := newLogger(cfg.Settings.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reg, err := cfg.BuildRegistry()
	if err != nil {
		return fmt.Errorf("failed to build tool registry: %w", err)
	}

	telemetryEnabled := strings.EqualFold(os.Getenv(TelemetryEnabledEnvVar), "true")
	otelProviders, err := telemetry.NewProviders(cfg.Name, telemetryEnabled)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	// By default, a no-op metrics implementation is used, so the rest of
	// the code records metrics without checking whether they are enabled.
	metrics := telemetry.NewNoopCustomMetrics()
	if otelProviders.IsEnabled() {
		metrics, err = telemetry.NewOtelCustomMetrics(otelProviders.Meter)
		if err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}
	}

	resolver := funcs.NewResolver(funcs.ResolverOptions{
		PluginDir: cfg.Settings.PluginDir,
		Logger:    logger,
	})

	factory := agent.NewFactory(agent.FactoryOptions{
		PluginDir:           cfg.Settings.PluginDir,
		UpstreamInitTimeout: time.Duration(cfg.Settings.UpstreamInitTimeoutSec) * time.Second,
		Logger:              logger,
	})

	// the audit store is best-effort: a failure to open it degrades to
	// running without an invocation log
	var recorder invoke.Recorder
	auditStore, err := audit.NewStore(cfg.Settings.DatabaseURL, logger)
	if err != nil {
		logger.Warn("invocation audit log disabled", zap.Error(err))
		auditStore = nil
	} else {
		recorder = auditStore
	}

	engine, err := invoke.NewEngine(invoke.EngineOptions{
		Registry:                 reg,
		Resolver:                 resolver,
		Factory:                  factory,
		OutputSchemas:            schema.NewOutputRegistry(afero.NewOsFs()),
		Metrics:                  metrics,
		Recorder:                 recorder,
		Logger:                   logger,
		MaxConcurrentInvocations: cfg.Settings.MaxConcurrentInvocations,
	})
	if err != nil {
		return fmt.Errorf("failed to create invocation engine: %w", err)
	}

	srv, err := server.New(&server.Options{
		Config:        cfg,
		Registry:      reg,
		Resolver:      resolver,
		Engine:        engine,
		Audit:         auditStore,
		OtelProviders: otelProviders,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if startCmdTransport == transportStdio {
		return srv.ServeStdio()
	}
	return srv.ServeHTTP()
}
