package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// Environment variables are not consulted; use LoadConfigWithEnvOverrides
// for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML onto DefaultConfig, so keys absent from data keep their
// defaults, and fills any zero values left behind. It does not validate.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention FIELDGUARD_SECTION_FIELD (e.g., FIELDGUARD_SERVER_LISTEN_ADDRESS)
// and always take precedence over the file.
//
// An empty path skips the file and starts from DefaultConfig.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		cfg, err = Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies FIELDGUARD_* environment variables to cfg.
// Values that fail to parse are ignored.
func applyEnvOverrides(cfg *Config) {
	// Engine overrides
	envBool("FIELDGUARD_ENGINE_SORT_BY_PRIORITY", &cfg.Engine.SortByPriority)
	envBool("FIELDGUARD_ENGINE_DEDUPLICATE", &cfg.Engine.Deduplicate)
	envInt("FIELDGUARD_ENGINE_MAX_DEPENDENCY_DEPTH", &cfg.Engine.MaxDependencyDepth)
	envDuration("FIELDGUARD_ENGINE_CUSTOM_TIMEOUT", &cfg.Engine.CustomTimeout)
	envInt("FIELDGUARD_ENGINE_MAX_RULES", &cfg.Engine.MaxRules)
	envInt("FIELDGUARD_ENGINE_MAX_CONDITIONS_PER_RULE", &cfg.Engine.MaxConditionsPerRule)
	if val := os.Getenv("FIELDGUARD_ENGINE_EXPRESSION_COST_LIMIT"); val != "" {
		if u, err := strconv.ParseUint(val, 10, 64); err == nil {
			cfg.Engine.ExpressionCostLimit = u
		}
	}

	// Rules overrides
	envString("FIELDGUARD_RULES_SOURCE", &cfg.Rules.Source)
	envString("FIELDGUARD_RULES_PATH", &cfg.Rules.Path)
	envBool("FIELDGUARD_RULES_WATCH", &cfg.Rules.Watch)
	envDuration("FIELDGUARD_RULES_DEBOUNCE", &cfg.Rules.Debounce)
	envString("FIELDGUARD_RULES_GIT_REPOSITORY", &cfg.Rules.Git.Repository)
	envString("FIELDGUARD_RULES_GIT_BRANCH", &cfg.Rules.Git.Branch)
	envString("FIELDGUARD_RULES_GIT_PATH", &cfg.Rules.Git.Path)
	envString("FIELDGUARD_RULES_GIT_LOCAL_PATH", &cfg.Rules.Git.LocalPath)
	envDuration("FIELDGUARD_RULES_GIT_POLL_INTERVAL", &cfg.Rules.Git.PollInterval)
	envString("FIELDGUARD_RULES_GIT_AUTH_TYPE", &cfg.Rules.Git.Auth.Type)
	envString("FIELDGUARD_RULES_GIT_TOKEN", &cfg.Rules.Git.Auth.Token)
	envString("FIELDGUARD_RULES_GIT_SSH_KEY_PATH", &cfg.Rules.Git.Auth.SSHKeyPath)
	envString("FIELDGUARD_RULES_GIT_SSH_KEY_PASSPHRASE", &cfg.Rules.Git.Auth.SSHKeyPassphrase)

	// Reports overrides
	envBool("FIELDGUARD_REPORTS_ENABLED", &cfg.Reports.Enabled)
	envString("FIELDGUARD_REPORTS_BACKEND", &cfg.Reports.Backend)
	envString("FIELDGUARD_REPORTS_SQLITE_PATH", &cfg.Reports.SQLite.Path)
	envString("FIELDGUARD_REPORTS_SQLITE_DRIVER", &cfg.Reports.SQLite.Driver)
	envBool("FIELDGUARD_REPORTS_FAILURES_ONLY", &cfg.Reports.Recorder.FailuresOnly)
	envInt("FIELDGUARD_REPORTS_RETENTION_DAYS", &cfg.Reports.Retention.Days)
	envString("FIELDGUARD_REPORTS_RETENTION_SCHEDULE", &cfg.Reports.Retention.Schedule)

	// Server overrides
	envString("FIELDGUARD_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("FIELDGUARD_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("FIELDGUARD_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("FIELDGUARD_SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	envDuration("FIELDGUARD_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	envDuration("FIELDGUARD_SERVER_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	if val := os.Getenv("FIELDGUARD_SERVER_MAX_BODY_BYTES"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Server.MaxBodyBytes = i
		}
	}
	envBool("FIELDGUARD_SERVER_AUTH_ENABLED", &cfg.Server.Auth.Enabled)
	envBool("FIELDGUARD_SERVER_TLS_ENABLED", &cfg.Server.TLS.Enabled)
	envBool("FIELDGUARD_SERVER_RATE_LIMIT_ENABLED", &cfg.Server.RateLimit.Enabled)
	envString("FIELDGUARD_SERVER_TLS_CERT_FILE", &cfg.Server.TLS.CertFile)
	envString("FIELDGUARD_SERVER_TLS_KEY_FILE", &cfg.Server.TLS.KeyFile)
	if val := os.Getenv("FIELDGUARD_SERVER_API_KEY"); val != "" {
		cfg.Server.Auth.Keys = append(cfg.Server.Auth.Keys, APIKeyConfig{Name: "env", Key: val})
	}

	// Telemetry overrides
	envString("FIELDGUARD_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("FIELDGUARD_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("FIELDGUARD_TELEMETRY_LOGGING_REDACT_VALUES", &cfg.Telemetry.Logging.RedactValues)
	envBool("FIELDGUARD_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("FIELDGUARD_TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("FIELDGUARD_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("FIELDGUARD_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envString("FIELDGUARD_TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	if val := os.Getenv("FIELDGUARD_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
