package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"mercator-hq/fieldguard/pkg/cli"
	"mercator-hq/fieldguard/pkg/config"
	"mercator-hq/fieldguard/pkg/reports"
	"mercator-hq/fieldguard/pkg/reports/query"
	"mercator-hq/fieldguard/pkg/reports/recorder"
	"mercator-hq/fieldguard/pkg/reports/retention"
	"mercator-hq/fieldguard/pkg/reports/storage"
	"mercator-hq/fieldguard/pkg/secrets"
	"mercator-hq/fieldguard/pkg/telemetry/logging"
	"mercator-hq/fieldguard/pkg/validation/engine"
	"mercator-hq/fieldguard/pkg/validation/engine/source"
	"mercator-hq/fieldguard/pkg/validation/expr"
	"mercator-hq/fieldguard/pkg/validation/ruleset"
)

// loadConfig reads the --config file, applies FIELDGUARD_* overrides and
// publishes the result as the global configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	resolver, err := secrets.FromConfig(&cfg.Secrets, nil)
	if err != nil {
		return nil, cli.NewConfigError("secrets.dir", err.Error())
	}
	if err := resolver.ResolveConfig(context.Background(), cfg); err != nil {
		return nil, cli.NewConfigError("secrets", err.Error())
	}

	config.Publish(cfg)
	return cfg, nil
}

// commandLogger builds the logger for one-shot commands. Records go to
// stderr so they never mix with command output.
func commandLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	logCfg := logging.FromConfig(cfg.Telemetry.Logging)
	if !verbose && cfg.Telemetry.Logging.Level == "info" {
		logCfg.Level = "warn"
	}
	if w == nil {
		w = os.Stderr
	}
	logCfg.Writer = w
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	return logger, nil
}

func engineConfig(cfg *config.EngineConfig) *engine.EngineConfig {
	return engine.DefaultEngineConfig().
		WithSortByPriority(cfg.SortByPriority).
		WithDeduplicate(cfg.Deduplicate).
		WithMaxDependencyDepth(cfg.MaxDependencyDepth).
		WithCustomTimeout(cfg.CustomTimeout).
		WithMaxRules(cfg.MaxRules).
		WithMaxConditionsPerRule(cfg.MaxConditionsPerRule)
}

func newCompiler(cfg *config.EngineConfig, logger *slog.Logger) (*expr.Compiler, error) {
	compiler, err := expr.NewCompiler(
		expr.WithCostLimit(cfg.ExpressionCostLimit),
		expr.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create expression compiler: %w", err)
	}
	return compiler, nil
}

func newParser(cfg *config.RulesConfig) *ruleset.Parser {
	return ruleset.NewParser().WithMaxFileSize(cfg.MaxFileSize)
}

// ruleSource is a configured rule source and the version reported with
// each archived pass.
type ruleSource struct {
	engine.RuleSource
	kind    string
	version func() string
}

func newRuleSource(cfg *config.RulesConfig, parser *ruleset.Parser, logger *slog.Logger) (*ruleSource, error) {
	switch cfg.Source {
	case "file":
		src := source.NewFileSource(cfg.Path, parser, logger).WithDebounce(cfg.Debounce)
		return &ruleSource{
			RuleSource: src,
			kind:       "file",
			version:    func() string { return cfg.Path },
		}, nil

	case "git":
		src, err := source.NewGitSource(&source.GitConfig{
			Repository:   cfg.Git.Repository,
			Branch:       cfg.Git.Branch,
			Path:         cfg.Git.Path,
			LocalPath:    cfg.Git.LocalPath,
			Depth:        cfg.Git.Depth,
			PollInterval: cfg.Git.PollInterval,
			Timeout:      cfg.Git.Timeout,
			Auth: source.GitAuthConfig{
				Type:             cfg.Git.Auth.Type,
				Token:            cfg.Git.Auth.Token,
				SSHKeyPath:       cfg.Git.Auth.SSHKeyPath,
				SSHKeyPassphrase: cfg.Git.Auth.SSHKeyPassphrase,
			},
		}, parser, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create git rule source: %w", err)
		}
		return &ruleSource{
			RuleSource: src,
			kind:       "git",
			version: func() string {
				commit, err := src.CurrentCommit()
				if err != nil {
					return ""
				}
				return commit.SHA
			},
		}, nil

	case "none", "":
		return nil, nil

	default:
		return nil, cli.NewConfigError("rules.source", fmt.Sprintf("unsupported rule source %q", cfg.Source))
	}
}

func openStorage(cfg *config.ReportsConfig, logger *slog.Logger) (reports.Storage, error) {
	switch cfg.Backend {
	case "sqlite":
		store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
			Path:         cfg.SQLite.Path,
			Driver:       cfg.SQLite.Driver,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.SQLite.MaxIdleConns,
			WALMode:      cfg.SQLite.WALMode,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open report storage: %w", err)
		}
		return store, nil
	case "memory":
		return storage.NewMemoryStorage(), nil
	default:
		return nil, cli.NewConfigError("reports.backend", fmt.Sprintf("unsupported backend %q (supported: sqlite, memory)", cfg.Backend))
	}
}

func newRecorder(store reports.Storage, cfg *config.RecorderConfig, logger *slog.Logger, opts ...recorder.Option) *recorder.Recorder {
	return recorder.NewRecorder(store, &recorder.Config{
		AsyncBuffer:  cfg.AsyncBuffer,
		WriteTimeout: cfg.WriteTimeout,
		FailuresOnly: cfg.FailuresOnly,
	}, logger, opts...)
}

func newPruner(store reports.Storage, cfg *config.RetentionConfig, observer retention.Observer, logger *slog.Logger) *retention.Pruner {
	return retention.NewPruner(store, &retention.Config{
		RetentionDays: cfg.Days,
		MaxRecords:    cfg.MaxRecords,
		PruneSchedule: cfg.Schedule,
		ArchivePath:   cfg.ArchivePath,
	}, observer, logger)
}

func queryLimits(cfg *config.QueryConfig) query.Limits {
	return query.Limits{Default: cfg.DefaultLimit, Max: cfg.MaxLimit}
}
