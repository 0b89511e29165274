package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every FieldError found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration. All problems are collected
// and returned together as a ValidationError; nil means the configuration
// is valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateRules(&cfg.Rules)...)
	errs = append(errs, validateReports(&cfg.Reports)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxDependencyDepth <= 0 {
		errs = append(errs, FieldError{
			Field:   "engine.max_dependency_depth",
			Message: "max dependency depth must be positive",
		})
	}
	if cfg.CustomTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "engine.custom_timeout",
			Message: "custom timeout must be positive",
		})
	}
	if cfg.MaxRules <= 0 {
		errs = append(errs, FieldError{
			Field:   "engine.max_rules",
			Message: "max rules must be positive",
		})
	}
	if cfg.MaxConditionsPerRule <= 0 {
		errs = append(errs, FieldError{
			Field:   "engine.max_conditions_per_rule",
			Message: "max conditions per rule must be positive",
		})
	}

	return errs
}

func validateRules(cfg *RulesConfig) []FieldError {
	var errs []FieldError

	switch cfg.Source {
	case "file":
		if cfg.Path == "" {
			errs = append(errs, FieldError{
				Field:   "rules.path",
				Message: "path is required for file source",
			})
		}
	case "git":
		errs = append(errs, validateGit(&cfg.Git)...)
	case "none":
	default:
		errs = append(errs, FieldError{
			Field:   "rules.source",
			Message: fmt.Sprintf("invalid source %q (must be one of: file, git, none)", cfg.Source),
		})
	}

	if cfg.Debounce < 0 {
		errs = append(errs, FieldError{
			Field:   "rules.debounce",
			Message: "debounce must be non-negative",
		})
	}
	if cfg.MaxFileSize <= 0 {
		errs = append(errs, FieldError{
			Field:   "rules.max_file_size",
			Message: "max file size must be positive",
		})
	}

	return errs
}

func validateGit(cfg *GitRulesConfig) []FieldError {
	var errs []FieldError

	if cfg.Repository == "" {
		errs = append(errs, FieldError{
			Field:   "rules.git.repository",
			Message: "repository is required for git source",
		})
	}
	if cfg.Branch == "" {
		errs = append(errs, FieldError{
			Field:   "rules.git.branch",
			Message: "branch is required for git source",
		})
	}
	if cfg.Depth < 0 {
		errs = append(errs, FieldError{
			Field:   "rules.git.depth",
			Message: "depth must be non-negative",
		})
	}
	if cfg.PollInterval <= 0 {
		errs = append(errs, FieldError{
			Field:   "rules.git.poll_interval",
			Message: "poll interval must be positive",
		})
	}

	switch cfg.Auth.Type {
	case "", "none":
	case "token":
		if cfg.Auth.Token == "" {
			errs = append(errs, FieldError{
				Field:   "rules.git.auth.token",
				Message: "token is required for token auth",
			})
		}
	case "ssh":
		if cfg.Auth.SSHKeyPath == "" {
			errs = append(errs, FieldError{
				Field:   "rules.git.auth.ssh_key_path",
				Message: "ssh key path is required for ssh auth",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "rules.git.auth.type",
			Message: fmt.Sprintf("invalid auth type %q (must be one of: token, ssh, none)", cfg.Auth.Type),
		})
	}

	return errs
}

func validateReports(cfg *ReportsConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "reports.sqlite.path",
				Message: "path is required for sqlite backend",
			})
		}
		if cfg.SQLite.Driver != "sqlite3" && cfg.SQLite.Driver != "sqlite" {
			errs = append(errs, FieldError{
				Field:   "reports.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q (must be one of: sqlite3, sqlite)", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.MaxOpenConns <= 0 {
			errs = append(errs, FieldError{
				Field:   "reports.sqlite.max_open_conns",
				Message: "max open connections must be positive",
			})
		}
		if cfg.SQLite.MaxIdleConns < 0 || cfg.SQLite.MaxIdleConns > cfg.SQLite.MaxOpenConns {
			errs = append(errs, FieldError{
				Field:   "reports.sqlite.max_idle_conns",
				Message: "max idle connections must be between 0 and max_open_conns",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "reports.backend",
			Message: fmt.Sprintf("invalid backend %q (must be one of: sqlite, memory)", cfg.Backend),
		})
	}

	if cfg.Recorder.AsyncBuffer < 0 {
		errs = append(errs, FieldError{
			Field:   "reports.recorder.async_buffer",
			Message: "async buffer must be non-negative",
		})
	}
	if cfg.Recorder.WriteTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "reports.recorder.write_timeout",
			Message: "write timeout must be positive",
		})
	}

	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{
			Field:   "reports.retention.days",
			Message: "retention days must be non-negative",
		})
	}
	if cfg.Retention.MaxRecords < 0 {
		errs = append(errs, FieldError{
			Field:   "reports.retention.max_records",
			Message: "max records must be non-negative",
		})
	}
	if _, err := cron.ParseStandard(cfg.Retention.Schedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "reports.retention.schedule",
			Message: fmt.Sprintf("invalid cron expression: %v", err),
		})
	}

	if cfg.Query.DefaultLimit <= 0 || cfg.Query.DefaultLimit > cfg.Query.MaxLimit {
		errs = append(errs, FieldError{
			Field:   "reports.query.default_limit",
			Message: "default limit must be between 1 and max_limit",
		})
	}

	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address: %v", err),
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown timeout must be positive",
		})
	}
	if cfg.MaxBodyBytes <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_body_bytes",
			Message: "max body bytes must be positive",
		})
	}

	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateTLS(&cfg.TLS)...)
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RequestsPerSecond <= 0 {
			errs = append(errs, FieldError{Field: "server.rate_limit.requests_per_second", Message: "requests per second must be positive"})
		}
		if cfg.RateLimit.Burst <= 0 {
			errs = append(errs, FieldError{Field: "server.rate_limit.burst", Message: "burst must be positive"})
		}
	}

	return errs
}

func validateTLS(cfg *TLSConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError
	if cfg.CertFile == "" {
		errs = append(errs, FieldError{Field: "server.tls.cert_file", Message: "cert_file is required when TLS is enabled"})
	}
	if cfg.KeyFile == "" {
		errs = append(errs, FieldError{Field: "server.tls.key_file", Message: "key_file is required when TLS is enabled"})
	}
	if cfg.MinVersion != "1.2" && cfg.MinVersion != "1.3" {
		errs = append(errs, FieldError{
			Field:   "server.tls.min_version",
			Message: fmt.Sprintf("unsupported TLS version %q (must be 1.2 or 1.3)", cfg.MinVersion),
		})
	}
	if cfg.ReloadInterval < 0 {
		errs = append(errs, FieldError{Field: "server.tls.reload_interval", Message: "reload interval must be positive"})
	}
	switch cfg.ClientAuth {
	case "require", "request", "verify_if_given":
	default:
		errs = append(errs, FieldError{
			Field:   "server.tls.client_auth",
			Message: fmt.Sprintf("invalid client auth %q (must be require, request or verify_if_given)", cfg.ClientAuth),
		})
	}
	return errs
}

func validateAuth(cfg *AuthConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError
	if len(cfg.Keys) == 0 {
		errs = append(errs, FieldError{
			Field:   "server.auth.keys",
			Message: "at least one API key is required when auth is enabled",
		})
	}
	if cfg.Header == "" && cfg.QueryParam == "" {
		errs = append(errs, FieldError{
			Field:   "server.auth.header",
			Message: "a header or query_param is required when auth is enabled",
		})
	}

	seen := make(map[string]bool, len(cfg.Keys))
	for i, k := range cfg.Keys {
		field := fmt.Sprintf("server.auth.keys[%d]", i)
		if k.Key == "" {
			errs = append(errs, FieldError{Field: field + ".key", Message: "key is required"})
		} else if seen[k.Key] {
			errs = append(errs, FieldError{Field: field + ".key", Message: "duplicate key"})
		}
		seen[k.Key] = true
		if k.Name == "" {
			errs = append(errs, FieldError{Field: field + ".name", Message: "name is required"})
		}
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be one of: debug, info, warn, error)", cfg.Logging.Level),
		})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be one of: json, text, console)", cfg.Logging.Format),
		})
	}
	for i, p := range cfg.Logging.RedactPatterns {
		if p.Pattern == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i),
				Message: "pattern is required",
			})
		}
	}

	if cfg.Metrics.Enabled {
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "metrics path must start with /",
			})
		}
		if cfg.Metrics.MaxFieldCardinality <= 0 {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.max_field_cardinality",
				Message: "max field cardinality must be positive",
			})
		}
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never":
		case "ratio":
			if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
				errs = append(errs, FieldError{
					Field:   "telemetry.tracing.sample_ratio",
					Message: "sample ratio must be between 0 and 1",
				})
			}
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q (must be one of: always, never, ratio)", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "endpoint is required when tracing is enabled",
			})
		}
	}

	return errs
}
