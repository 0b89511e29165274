package config

import "time"

// Default values for configuration fields.
const (
	DefaultSortByPriority       = true
	DefaultDeduplicate          = true
	DefaultMaxDependencyDepth   = 32
	DefaultCustomTimeout        = 5 * time.Second
	DefaultMaxRules             = 1000
	DefaultMaxConditionsPerRule = 100
	DefaultExpressionCostLimit  = uint64(1_000_000)

	DefaultRulesSource      = "file"
	DefaultRulesPath        = "./rules"
	DefaultRulesWatch       = true
	DefaultRulesDebounce    = 100 * time.Millisecond
	DefaultRulesMaxFileSize = int64(10 * 1024 * 1024)
	DefaultGitBranch        = "main"
	DefaultGitLocalPath     = "data/rules-repo"
	DefaultGitPollInterval  = 30 * time.Second
	DefaultGitTimeout       = 30 * time.Second
	DefaultGitAuthType      = "none"

	DefaultReportsEnabled       = false
	DefaultReportsBackend       = "sqlite"
	DefaultSQLitePath           = "data/reports.db"
	DefaultSQLiteDriver         = "sqlite3"
	DefaultSQLiteMaxOpenConns   = 10
	DefaultSQLiteMaxIdleConns   = 5
	DefaultSQLiteWALMode        = true
	DefaultSQLiteBusyTimeout    = 5 * time.Second
	DefaultRecorderAsyncBuffer  = 1000
	DefaultRecorderWriteTimeout = 5 * time.Second
	DefaultRetentionDays        = 30
	DefaultRetentionSchedule    = "0 3 * * *"
	DefaultQueryDefaultLimit    = 50
	DefaultQueryMaxLimit        = 1000

	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRequestTimeout  = 30 * time.Second
	DefaultMaxBodyBytes    = int64(1 << 20)
	DefaultAuthHeader      = "Authorization"
	DefaultAuthScheme      = "Bearer"
	DefaultTLSMinVersion   = "1.2"
	DefaultTLSReload       = 5 * time.Minute
	DefaultTLSClientAuth   = "require"
	DefaultRateLimitRPS    = 50.0
	DefaultRateLimitBurst  = 100
	DefaultRateLimitIdle   = 10 * time.Minute

	DefaultLogLevel            = "info"
	DefaultLogFormat           = "json"
	DefaultLogRedactValues     = true
	DefaultMetricsEnabled      = true
	DefaultMetricsPath         = "/metrics"
	DefaultMetricsNamespace    = "fieldguard"
	DefaultMaxFieldCardinality = 500
	DefaultTracingSampler      = "ratio"
	DefaultTracingSampleRatio  = 0.1
	DefaultTracingEndpoint     = "localhost:4317"
	DefaultTracingInsecure     = true
	DefaultTracingTimeout      = 10 * time.Second
	DefaultServiceName         = "fieldguard"

	DefaultSecretsEnvPrefix = "FIELDGUARD_SECRET_"
)

// DefaultConfig returns a configuration with every default applied,
// including the boolean defaults that ApplyDefaults cannot tell apart from
// an explicit false.
func DefaultConfig() *Config {
	cfg := &Config{
		Engine: EngineConfig{
			SortByPriority: DefaultSortByPriority,
			Deduplicate:    DefaultDeduplicate,
		},
		Rules: RulesConfig{
			Watch: DefaultRulesWatch,
		},
		Reports: ReportsConfig{
			Enabled: DefaultReportsEnabled,
			SQLite: SQLiteConfig{
				WALMode: DefaultSQLiteWALMode,
			},
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{RedactValues: DefaultLogRedactValues},
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
			Tracing: TracingConfig{Insecure: DefaultTracingInsecure},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults. Booleans are
// left alone; LoadConfig decodes onto DefaultConfig so absent booleans keep
// their defaults.
func ApplyDefaults(cfg *Config) {
	e := &cfg.Engine
	if e.MaxDependencyDepth == 0 {
		e.MaxDependencyDepth = DefaultMaxDependencyDepth
	}
	if e.CustomTimeout == 0 {
		e.CustomTimeout = DefaultCustomTimeout
	}
	if e.MaxRules == 0 {
		e.MaxRules = DefaultMaxRules
	}
	if e.MaxConditionsPerRule == 0 {
		e.MaxConditionsPerRule = DefaultMaxConditionsPerRule
	}
	if e.ExpressionCostLimit == 0 {
		e.ExpressionCostLimit = DefaultExpressionCostLimit
	}

	r := &cfg.Rules
	if r.Source == "" {
		r.Source = DefaultRulesSource
	}
	if r.Path == "" {
		r.Path = DefaultRulesPath
	}
	if r.Debounce == 0 {
		r.Debounce = DefaultRulesDebounce
	}
	if r.MaxFileSize == 0 {
		r.MaxFileSize = DefaultRulesMaxFileSize
	}
	if r.Git.Branch == "" {
		r.Git.Branch = DefaultGitBranch
	}
	if r.Git.LocalPath == "" {
		r.Git.LocalPath = DefaultGitLocalPath
	}
	if r.Git.PollInterval == 0 {
		r.Git.PollInterval = DefaultGitPollInterval
	}
	if r.Git.Timeout == 0 {
		r.Git.Timeout = DefaultGitTimeout
	}
	if r.Git.Auth.Type == "" {
		r.Git.Auth.Type = DefaultGitAuthType
	}

	rep := &cfg.Reports
	if rep.Backend == "" {
		rep.Backend = DefaultReportsBackend
	}
	if rep.SQLite.Path == "" {
		rep.SQLite.Path = DefaultSQLitePath
	}
	if rep.SQLite.Driver == "" {
		rep.SQLite.Driver = DefaultSQLiteDriver
	}
	if rep.SQLite.MaxOpenConns == 0 {
		rep.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if rep.SQLite.MaxIdleConns == 0 {
		rep.SQLite.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if rep.SQLite.BusyTimeout == 0 {
		rep.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if rep.Recorder.AsyncBuffer == 0 {
		rep.Recorder.AsyncBuffer = DefaultRecorderAsyncBuffer
	}
	if rep.Recorder.WriteTimeout == 0 {
		rep.Recorder.WriteTimeout = DefaultRecorderWriteTimeout
	}
	if rep.Retention.Days == 0 {
		rep.Retention.Days = DefaultRetentionDays
	}
	if rep.Retention.Schedule == "" {
		rep.Retention.Schedule = DefaultRetentionSchedule
	}
	if rep.Query.DefaultLimit == 0 {
		rep.Query.DefaultLimit = DefaultQueryDefaultLimit
	}
	if rep.Query.MaxLimit == 0 {
		rep.Query.MaxLimit = DefaultQueryMaxLimit
	}

	s := &cfg.Server
	if s.ListenAddress == "" {
		s.ListenAddress = DefaultListenAddress
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = DefaultRequestTimeout
	}
	if s.MaxBodyBytes == 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if s.Auth.Header == "" {
		s.Auth.Header = DefaultAuthHeader
		if s.Auth.Scheme == "" {
			s.Auth.Scheme = DefaultAuthScheme
		}
	}
	if s.TLS.MinVersion == "" {
		s.TLS.MinVersion = DefaultTLSMinVersion
	}
	if s.TLS.ReloadInterval == 0 {
		s.TLS.ReloadInterval = DefaultTLSReload
	}
	if s.TLS.ClientAuth == "" {
		s.TLS.ClientAuth = DefaultTLSClientAuth
	}
	if s.RateLimit.RequestsPerSecond == 0 {
		s.RateLimit.RequestsPerSecond = DefaultRateLimitRPS
	}
	if s.RateLimit.Burst == 0 {
		s.RateLimit.Burst = DefaultRateLimitBurst
	}
	if s.RateLimit.IdleTimeout == 0 {
		s.RateLimit.IdleTimeout = DefaultRateLimitIdle
	}

	t := &cfg.Telemetry
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLogLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLogFormat
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if t.Metrics.MaxFieldCardinality == 0 {
		t.Metrics.MaxFieldCardinality = DefaultMaxFieldCardinality
	}
	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if t.Tracing.Endpoint == "" {
		t.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if t.Tracing.Timeout == 0 {
		t.Tracing.Timeout = DefaultTracingTimeout
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultServiceName
	}

	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = DefaultSecretsEnvPrefix
	}
}
