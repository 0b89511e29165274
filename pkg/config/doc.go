// Package config provides configuration management for fieldguard.
//
// Configuration is read from a YAML file, merged over the defaults in
// defaults.go, and optionally overridden by environment variables:
//
//	cfg, err := config.LoadConfig("fieldguard.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("fieldguard.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention FIELDGUARD_SECTION_FIELD:
//
//   - FIELDGUARD_RULES_PATH overrides rules.path
//   - FIELDGUARD_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - FIELDGUARD_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Published configuration
//
// The fieldguard commands Publish the configuration they load; Current
// returns it to code without a *Config in hand. Library code takes an
// explicit *Config instead.
//
// Validation collects every problem into a ValidationError whose Errors
// name the offending field by its dotted YAML path.
package config
