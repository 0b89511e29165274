package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/fieldguard/pkg/cli"
	"mercator-hq/fieldguard/pkg/config"
	"mercator-hq/fieldguard/pkg/reports"
	"mercator-hq/fieldguard/pkg/reports/recorder"
	"mercator-hq/fieldguard/pkg/reports/retention"
	"mercator-hq/fieldguard/pkg/server"
	"mercator-hq/fieldguard/pkg/server/auth"
	"mercator-hq/fieldguard/pkg/server/ratelimit"
	servertls "mercator-hq/fieldguard/pkg/server/tls"
	"mercator-hq/fieldguard/pkg/telemetry"
	"mercator-hq/fieldguard/pkg/telemetry/health"
	"mercator-hq/fieldguard/pkg/validation/engine"
)

const healthCheckTimeout = 2 * time.Second

var serveFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the validation API server",
	Long: `Start the fieldguard HTTP API with the specified configuration.

The server loads rules from the configured source (a file, a directory or a
Git repository), reloads them when they change, and validates field
documents posted to /api/v1/validate. When the report archive is enabled
every pass is stored and can be queried at /api/v1/reports.

Examples:
  # Start with default config
  fieldguard serve

  # Start with custom config
  fieldguard serve --config /etc/fieldguard/config.yaml

  # Override listen address
  fieldguard serve --listen 0.0.0.0:8080

  # Validate config and rules without starting the server
  fieldguard serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config and rules without starting server")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}

	out := commandOutput(cmd)
	ctx, stop := cli.SetupSignalHandler(commandContext(cmd))
	defer stop()

	svc, err := newService(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := svc.Close(shutdownCtx); err != nil {
			svc.logger.Error("shutdown failed", "error", err)
		}
	}()

	printBanner(out, cfg, svc)

	if serveFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	scheme := "http"
	if cfg.Server.TLS.Enabled {
		scheme = "https"
	}
	fmt.Fprintf(out, "✓ Server listening on %s://%s\n", scheme, cfg.Server.ListenAddress)
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	if err := svc.server.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}

	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

// service is a long-lived engine with its server and supporting components.
type service struct {
	cfg       *config.Config
	logger    *slog.Logger
	telemetry *telemetry.Telemetry
	source    *ruleSource
	engine    *engine.Engine
	store     reports.Storage
	recorder  *recorder.Recorder
	pruner    *retention.Pruner
	health    *health.Checker
	server    *server.Server
}

// newService wires every component from cfg. Logs go to logOut, or stderr
// when it is nil. The rule source is loaded before newService returns.
func newService(ctx context.Context, cfg *config.Config, logOut io.Writer) (svc *service, err error) {
	tel, err := telemetry.Setup(&cfg.Telemetry, Version, logOut)
	if err != nil {
		return nil, cli.NewConfigError("telemetry", err.Error())
	}
	logger := tel.Logger.With("component", "serve")

	svc = &service{cfg: cfg, logger: logger, telemetry: tel}
	defer func() {
		if err != nil {
			svc.Close(context.Background())
		}
	}()

	parser := newParser(&cfg.Rules)
	compiler, err := newCompiler(&cfg.Engine, tel.Logger)
	if err != nil {
		return svc, err
	}

	opts := []engine.Option{
		engine.WithExpressionCompiler(compiler),
		engine.WithMetrics(tel.Metrics),
		engine.WithTracer(tel.Tracer),
	}

	svc.source, err = newRuleSource(&cfg.Rules, parser, tel.Logger)
	if err != nil {
		return svc, err
	}
	if svc.source != nil {
		opts = append(opts, engine.WithRuleSource(svc.source))
	}

	svc.health = health.New(healthCheckTimeout)

	serverOpts := []server.Option{
		server.WithParser(parser),
		server.WithCompiler(compiler),
		server.WithHealth(svc.health),
		server.WithTracer(tel.Tracer),
		server.WithVersion(Version, GitCommit, BuildDate),
	}
	if cfg.Server.Auth.Enabled {
		validator, sources := auth.FromConfig(&cfg.Server.Auth)
		serverOpts = append(serverOpts, server.WithAuth(auth.NewMiddleware(validator, sources, tel.Logger)))
	}
	if cfg.Server.RateLimit.Enabled {
		serverOpts = append(serverOpts, server.WithRateLimit(ratelimit.FromConfig(&cfg.Server.RateLimit, tel.Logger)))
	}
	if cfg.Server.TLS.Enabled {
		tlsCfg := &cfg.Server.TLS
		reloader := servertls.NewReloader(tlsCfg.CertFile, tlsCfg.KeyFile, tlsCfg.ReloadInterval, tel.Logger)
		if err := reloader.Start(ctx); err != nil {
			return svc, cli.NewConfigError("server.tls", err.Error())
		}
		tlsConfig, err := servertls.NewConfig(tlsCfg, reloader)
		if err != nil {
			return svc, cli.NewConfigError("server.tls", err.Error())
		}
		serverOpts = append(serverOpts, server.WithTLS(tlsConfig))
	}
	if cfg.Telemetry.Metrics.Enabled {
		serverOpts = append(serverOpts, server.WithMetrics(tel.Metrics, cfg.Telemetry.Metrics.Path))
	}

	if cfg.Reports.Enabled {
		svc.store, err = openStorage(&cfg.Reports, tel.Logger)
		if err != nil {
			return svc, err
		}
		svc.recorder = newRecorder(svc.store, &cfg.Reports.Recorder, tel.Logger,
			recorder.WithObserver(tel.Metrics),
			recorder.WithVersion(svc.ruleVersion),
		)
		opts = append(opts, engine.WithNotifier(svc.recorder))

		svc.pruner = newPruner(svc.store, &cfg.Reports.Retention, tel.Metrics, tel.Logger)
		if err := svc.pruner.Start(ctx); err != nil {
			return svc, fmt.Errorf("failed to start retention scheduler: %w", err)
		}
		if next := svc.pruner.NextPruning(); next != nil {
			logger.Debug("report retention scheduler started", "next_pruning", next)
		}

		svc.health.RegisterCheck("reports", health.PingCheck(svc.store))
		serverOpts = append(serverOpts, server.WithReports(svc.store, queryLimits(&cfg.Reports.Query)))
	}

	svc.engine, err = engine.NewEngine(engineConfig(&cfg.Engine), engine.NewRegistry(), tel.Logger, opts...)
	if err != nil {
		return svc, fmt.Errorf("failed to create engine: %w", err)
	}
	if svc.source != nil {
		svc.health.RegisterCheck("rules", health.RulesLoadedCheck(func() int { return len(svc.engine.Rules()) }))
	}

	svc.server = server.NewServer(&cfg.Server, svc.engine, tel.Logger, serverOpts...)
	return svc, nil
}

// ruleVersion stamps archived records with the rule source and revision.
func (s *service) ruleVersion() (string, string) {
	if s.source == nil {
		return "none", ""
	}
	return s.source.kind, s.source.version()
}

// Close stops components in reverse dependency order: the engine stops
// emitting, the recorder drains, then storage and telemetry close.
func (s *service) Close(ctx context.Context) error {
	var errs []error
	if s.engine != nil {
		errs = append(errs, s.engine.Close())
	}
	if s.pruner != nil {
		s.pruner.Stop()
	}
	if s.recorder != nil {
		errs = append(errs, s.recorder.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.telemetry != nil {
		errs = append(errs, s.telemetry.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func printBanner(w io.Writer, cfg *config.Config, svc *service) {
	fmt.Fprintf(w, "fieldguard v%s\n", Version)
	if cfgFile != "" {
		fmt.Fprintf(w, "Loading configuration from: %s\n", cfgFile)
	}
	fmt.Fprintln(w, "✓ Configuration loaded")

	switch cfg.Rules.Source {
	case "file":
		fmt.Fprintf(w, "✓ Rules loaded from %s (%d rules)\n", cfg.Rules.Path, len(svc.engine.Rules()))
	case "git":
		fmt.Fprintf(w, "✓ Rules loaded from %s@%s (%d rules)\n", cfg.Rules.Git.Repository, svc.source.version(), len(svc.engine.Rules()))
	default:
		fmt.Fprintln(w, "✓ No rule source configured; rules must be supplied per request")
	}

	if cfg.Server.TLS.Enabled {
		fmt.Fprintf(w, "✓ TLS enabled (minimum version %s)\n", cfg.Server.TLS.MinVersion)
	}
	if cfg.Server.Auth.Enabled {
		fmt.Fprintf(w, "✓ API key authentication enabled (%d keys)\n", len(cfg.Server.Auth.Keys))
	}
	if cfg.Server.RateLimit.Enabled {
		fmt.Fprintf(w, "✓ Rate limit: %g req/s per client (burst %d)\n", cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst)
	}
	if cfg.Reports.Enabled {
		fmt.Fprintf(w, "✓ Report archive initialized (%s)\n", cfg.Reports.Backend)
	}
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(w, "✓ Metrics endpoint: %s\n", cfg.Telemetry.Metrics.Path)
	}
}
