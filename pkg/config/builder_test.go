package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts from DefaultConfig and allows selective overrides.
type ConfigBuilder struct {
	cfg Config
}

// NewTestConfig creates a builder whose configuration is valid as-is.
func NewTestConfig() *ConfigBuilder {
	return &ConfigBuilder{cfg: *DefaultConfig()}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return &b.cfg
}

// WithListenAddress sets the server listen address.
func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Server.ListenAddress = addr
	return b
}

// WithRulesPath selects the file source at path.
func (b *ConfigBuilder) WithRulesPath(path string) *ConfigBuilder {
	b.cfg.Rules.Source = "file"
	b.cfg.Rules.Path = path
	return b
}

// WithGitRules selects the git source for repo.
func (b *ConfigBuilder) WithGitRules(repo, path string) *ConfigBuilder {
	b.cfg.Rules.Source = "git"
	b.cfg.Rules.Git.Repository = repo
	b.cfg.Rules.Git.Path = path
	return b
}

// WithReportsSQLite enables the sqlite report archive at path.
func (b *ConfigBuilder) WithReportsSQLite(path string) *ConfigBuilder {
	b.cfg.Reports.Enabled = true
	b.cfg.Reports.Backend = "sqlite"
	b.cfg.Reports.SQLite.Path = path
	return b
}

// WithReportsMemory enables the in-memory report archive.
func (b *ConfigBuilder) WithReportsMemory() *ConfigBuilder {
	b.cfg.Reports.Enabled = true
	b.cfg.Reports.Backend = "memory"
	return b
}

// WithCustomTimeout sets the engine's CUSTOM validator timeout.
func (b *ConfigBuilder) WithCustomTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.Engine.CustomTimeout = d
	return b
}

// WithLogLevel sets the logging level.
func (b *ConfigBuilder) WithLogLevel(level string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Level = level
	return b
}

// WithTracing enables tracing against endpoint.
func (b *ConfigBuilder) WithTracing(endpoint string) *ConfigBuilder {
	b.cfg.Telemetry.Tracing.Enabled = true
	b.cfg.Telemetry.Tracing.Endpoint = endpoint
	return b
}
