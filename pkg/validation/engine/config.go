package engine

import (
	"fmt"
	"time"
)

// EngineConfig contains configuration for the validation engine.
type EngineConfig struct {
	// SortByPriority orders rules by descending priority weight before a pass.
	// Ties keep their original relative order.
	// Default: true.
	SortByPriority bool

	// Deduplicate collapses identical (fieldId, message) errors within a pass.
	// Default: true.
	Deduplicate bool

	// MaxDependencyDepth bounds the length of a resolved dependency chain,
	// counting the dependent field. Longer chains make the dependency inapplicable.
	// Default: 32.
	MaxDependencyDepth int

	// CustomTimeout is the maximum time a single CUSTOM validator may run.
	// Default: 5s.
	CustomTimeout time.Duration

	// MaxRules is the maximum number of rules accepted for one pass or load.
	// Default: 1000.
	MaxRules int

	// MaxConditionsPerRule is the maximum number of conditions per rule.
	// Default: 100.
	MaxConditionsPerRule int
}

// DefaultEngineConfig returns the default engine configuration.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		SortByPriority:       true,
		Deduplicate:          true,
		MaxDependencyDepth:   32,
		CustomTimeout:        5 * time.Second,
		MaxRules:             1000,
		MaxConditionsPerRule: 100,
	}
}

// Validate validates the engine configuration.
func (c *EngineConfig) Validate() error {
	if c.MaxDependencyDepth <= 0 {
		return fmt.Errorf("%w: max dependency depth must be positive", ErrInvalidConfig)
	}
	if c.CustomTimeout <= 0 {
		return fmt.Errorf("%w: custom timeout must be positive", ErrInvalidConfig)
	}
	if c.MaxRules <= 0 {
		return fmt.Errorf("%w: max rules must be positive", ErrInvalidConfig)
	}
	if c.MaxConditionsPerRule <= 0 {
		return fmt.Errorf("%w: max conditions per rule must be positive", ErrInvalidConfig)
	}
	return nil
}

// WithSortByPriority enables or disables priority ordering.
func (c *EngineConfig) WithSortByPriority(enabled bool) *EngineConfig {
	c.SortByPriority = enabled
	return c
}

// WithDeduplicate enables or disables error deduplication.
func (c *EngineConfig) WithDeduplicate(enabled bool) *EngineConfig {
	c.Deduplicate = enabled
	return c
}

// WithMaxDependencyDepth sets the dependency depth limit.
func (c *EngineConfig) WithMaxDependencyDepth(depth int) *EngineConfig {
	c.MaxDependencyDepth = depth
	return c
}

// WithCustomTimeout sets the CUSTOM validator timeout.
func (c *EngineConfig) WithCustomTimeout(timeout time.Duration) *EngineConfig {
	c.CustomTimeout = timeout
	return c
}

// WithMaxRules sets the maximum number of rules.
func (c *EngineConfig) WithMaxRules(max int) *EngineConfig {
	c.MaxRules = max
	return c
}

// WithMaxConditionsPerRule sets the maximum number of conditions per rule.
func (c *EngineConfig) WithMaxConditionsPerRule(max int) *EngineConfig {
	c.MaxConditionsPerRule = max
	return c
}
