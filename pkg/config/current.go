package config

import "sync/atomic"

var current atomic.Pointer[Config]

// Publish makes cfg the configuration returned by Current. The fieldguard
// commands publish the loaded file once secrets are resolved.
func Publish(cfg *Config) {
	current.Store(cfg)
}

// Current returns the published configuration, or nil before Publish.
func Current() *Config {
	return current.Load()
}

// MustCurrent is Current for code that runs after a command has loaded its
// configuration.
func MustCurrent() *Config {
	cfg := current.Load()
	if cfg == nil {
		panic("config: no configuration published; the command must load --config first")
	}
	return cfg
}
