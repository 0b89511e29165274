package config

import "time"

// Config is the root configuration structure for fieldguard.
type Config struct {
	// Engine tunes the validation engine.
	Engine EngineConfig `yaml:"engine"`

	// Rules selects where a long-lived engine loads its rules from.
	Rules RulesConfig `yaml:"rules"`

	// Reports configures the archive of validation pass reports.
	Reports ReportsConfig `yaml:"reports"`

	// Server configures the HTTP API.
	Server ServerConfig `yaml:"server"`

	// Telemetry configures logging, metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Secrets configures where ${secret:name} references are resolved.
	Secrets SecretsConfig `yaml:"secrets"`
}

// SecretsConfig selects the secret providers. Environment variables are
// tried before files.
type SecretsConfig struct {
	// EnvPrefix is prepended to the upper-cased secret name: with the
	// default prefix, ${secret:git-token} reads FIELDGUARD_SECRET_GIT_TOKEN.
	// Default: "FIELDGUARD_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Dir holds one file per secret, as mounted by Kubernetes or Docker.
	// Empty disables the file provider.
	Dir string `yaml:"dir"`
}

// EngineConfig contains validation engine settings.
type EngineConfig struct {
	// SortByPriority orders rules by descending priority before a pass.
	// Default: true
	SortByPriority bool `yaml:"sort_by_priority"`

	// Deduplicate collapses identical (field, message) errors in a pass.
	// Default: true
	Deduplicate bool `yaml:"deduplicate"`

	// MaxDependencyDepth bounds dependency chains; deeper chains are
	// treated as inapplicable.
	// Default: 32
	MaxDependencyDepth int `yaml:"max_dependency_depth"`

	// CustomTimeout bounds a single CUSTOM validator call.
	// Default: 5s
	CustomTimeout time.Duration `yaml:"custom_timeout"`

	// MaxRules is the maximum number of rules in one pass or load.
	// Default: 1000
	MaxRules int `yaml:"max_rules"`

	// MaxConditionsPerRule is the maximum number of conditions per rule.
	// Default: 100
	MaxConditionsPerRule int `yaml:"max_conditions_per_rule"`

	// ExpressionCostLimit bounds the evaluation cost of one CEL expression.
	// Default: 1000000
	ExpressionCostLimit uint64 `yaml:"expression_cost_limit"`
}

// RulesConfig contains rule source settings.
type RulesConfig struct {
	// Source is where rules are loaded from.
	// Options: "file", "git", "none"
	// Default: "file"
	Source string `yaml:"source"`

	// Path is the rule document or directory for the file source.
	// Default: "./rules"
	Path string `yaml:"path"`

	// Watch reloads rules when the source changes.
	// Default: true
	Watch bool `yaml:"watch"`

	// Debounce is the quiet period after a file change before reloading.
	// Default: 100ms
	Debounce time.Duration `yaml:"debounce"`

	// MaxFileSize is the largest rule document accepted, in bytes.
	// Default: 10485760 (10MB)
	MaxFileSize int64 `yaml:"max_file_size"`

	// Git configures the git source.
	Git GitRulesConfig `yaml:"git"`
}

// GitRulesConfig configures loading rules from a Git repository.
type GitRulesConfig struct {
	// Repository URL (HTTPS, SSH or a local path).
	Repository string `yaml:"repository"`

	// Branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path within the repository to the rule document or directory.
	Path string `yaml:"path"`

	// LocalPath is where the repository is cloned.
	// Default: "data/rules-repo"
	LocalPath string `yaml:"local_path"`

	// Depth limits clone history; 0 clones everything.
	Depth int `yaml:"depth"`

	// PollInterval is how often the remote is checked for new commits.
	// Default: 30s
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds each clone or pull.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Auth configures repository authentication.
	Auth GitAuthConfig `yaml:"auth"`
}

// GitAuthConfig configures Git authentication.
type GitAuthConfig struct {
	// Type is "token", "ssh" or "none".
	// Default: "none"
	Type string `yaml:"type"`

	// Token is an HTTPS access token. Prefer FIELDGUARD_RULES_GIT_TOKEN.
	Token string `yaml:"token"`

	// SSHKeyPath is the private key for SSH auth.
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKeyPassphrase unlocks an encrypted SSH key.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// ReportsConfig contains report archive settings.
type ReportsConfig struct {
	// Enabled turns on archiving of full pass reports.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Backend is the storage backend.
	// Options: "sqlite", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Recorder configures how reports are written.
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention configures pruning of old reports.
	Retention RetentionConfig `yaml:"retention"`

	// Query configures listing limits.
	Query QueryConfig `yaml:"query"`
}

// SQLiteConfig contains sqlite backend settings.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: "data/reports.db"
	Path string `yaml:"path"`

	// Driver is the database/sql driver name.
	// Options: "sqlite3" (cgo, mattn/go-sqlite3), "sqlite" (pure Go, modernc.org/sqlite)
	// Default: "sqlite3"
	Driver string `yaml:"driver"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long a writer waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RecorderConfig contains report recorder settings.
type RecorderConfig struct {
	// AsyncBuffer is the number of reports queued for writing.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds one storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// FailuresOnly archives only passes that reported errors.
	// Default: false
	FailuresOnly bool `yaml:"failures_only"`
}

// RetentionConfig contains report retention settings.
type RetentionConfig struct {
	// Days is how long reports are kept; 0 keeps them forever.
	// Default: 30
	Days int `yaml:"days"`

	// MaxRecords caps the number of stored reports; 0 means no cap.
	// Default: 0
	MaxRecords int64 `yaml:"max_records"`

	// Schedule is the cron expression for pruning.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`

	// ArchivePath, when set, receives a JSON export of every batch before
	// it is deleted.
	ArchivePath string `yaml:"archive_path"`
}

// QueryConfig contains report listing settings.
type QueryConfig struct {
	// DefaultLimit is the page size when none is requested.
	// Default: 50
	DefaultLimit int `yaml:"default_limit"`

	// MaxLimit is the largest page size accepted.
	// Default: 1000
	MaxLimit int `yaml:"max_limit"`
}

// ServerConfig contains HTTP API settings.
type ServerConfig struct {
	// ListenAddress is the host:port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is how long in-flight requests get on shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds handler execution.
	// Default: 30s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxBodyBytes is the largest request body accepted.
	// Default: 1048576 (1MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// Auth configures API key authentication of the /api/v1 routes.
	// Probes, /version and the metrics endpoint are never authenticated.
	Auth AuthConfig `yaml:"auth"`

	// TLS serves the API over HTTPS.
	TLS TLSConfig `yaml:"tls"`

	// RateLimit throttles /api/v1 requests per client.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig contains per-client request throttling settings. Clients
// are identified by API key name when auth is enabled, otherwise by IP.
type RateLimitConfig struct {
	// Enabled turns on rate limiting.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// RequestsPerSecond is the sustained rate per client.
	// Default: 50
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the number of requests a client may make at once.
	// Default: 100
	Burst int `yaml:"burst"`

	// IdleTimeout is how long an unused client is tracked.
	// Default: 10m
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// TLSConfig contains HTTPS settings.
type TLSConfig struct {
	// Enabled turns on TLS.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile is the PEM-encoded certificate chain.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the PEM-encoded private key.
	KeyFile string `yaml:"key_file"`

	// MinVersion is the lowest accepted protocol version: "1.2" or "1.3".
	// Default: "1.2"
	MinVersion string `yaml:"min_version"`

	// ReloadInterval is how often the certificate files are checked for
	// changes. Renewed certificates are served without a restart.
	// Default: 5m
	ReloadInterval time.Duration `yaml:"reload_interval"`

	// ClientCAFile enables client certificate verification against this CA.
	ClientCAFile string `yaml:"client_ca_file"`

	// ClientAuth is one of "require", "request" or "verify_if_given".
	// Only used with ClientCAFile.
	// Default: "require"
	ClientAuth string `yaml:"client_auth"`
}

// AuthConfig contains API key authentication settings.
type AuthConfig struct {
	// Enabled turns on API key authentication.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Header carries the key.
	// Default: "Authorization"
	Header string `yaml:"header"`

	// Scheme is the prefix expected before the key in the header value.
	// Set it to "" for headers such as X-API-Key that hold the bare key.
	// Default: "Bearer"
	Scheme string `yaml:"scheme"`

	// QueryParam, when set, is also checked for the key.
	QueryParam string `yaml:"query_param"`

	// Keys are the accepted API keys.
	Keys []APIKeyConfig `yaml:"keys"`
}

// APIKeyConfig is one accepted API key.
type APIKeyConfig struct {
	// Name identifies the key in logs. It is never the key itself.
	Name string `yaml:"name"`

	// Key is the secret value.
	Key string `yaml:"key"`

	// Disabled rejects the key without removing it.
	Disabled bool `yaml:"disabled"`
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactValues hides field values and secrets in logs.
	// Default: true
	RedactValues bool `yaml:"redact_values"`

	// RedactPatterns adds custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern is a custom log redaction pattern.
type RedactPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled turns on metrics collection and the scrape endpoint.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the scrape endpoint path.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes metric names.
	// Default: "fieldguard"
	Namespace string `yaml:"namespace"`

	// Subsystem is an optional second prefix.
	Subsystem string `yaml:"subsystem"`

	// PassDurationBuckets are histogram buckets for pass duration, in seconds.
	PassDurationBuckets []float64 `yaml:"pass_duration_buckets"`

	// MaxFieldCardinality caps distinct field_id label values.
	// Default: 500
	MaxFieldCardinality int `yaml:"max_field_cardinality"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Enabled turns on tracing.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler is "always", "never" or "ratio".
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the sampled fraction for the ratio sampler.
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout bounds one export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// ServiceName is reported on every span.
	// Default: "fieldguard"
	ServiceName string `yaml:"service_name"`
}
