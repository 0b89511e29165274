package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"mercator-hq/fieldguard/pkg/config"
)

var refPattern = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Resolver replaces secret references using its providers in order.
type Resolver struct {
	providers []Provider
	logger    *slog.Logger

	mu    sync.Mutex
	cache map[string]string
}

// NewResolver creates a resolver over providers.
func NewResolver(logger *slog.Logger, providers ...Provider) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		providers: providers,
		logger:    logger.With("component", "secrets"),
		cache:     make(map[string]string),
	}
}

// FromConfig creates a resolver with the environment provider and, when a
// directory is configured, the file provider.
func FromConfig(cfg *config.SecretsConfig, logger *slog.Logger) (*Resolver, error) {
	providers := []Provider{NewEnvProvider(cfg.EnvPrefix)}
	if cfg.Dir != "" {
		fp, err := NewFileProvider(cfg.Dir)
		if err != nil {
			return nil, err
		}
		providers = append(providers, fp)
	}
	return NewResolver(logger, providers...), nil
}

// Get returns the named secret from the first provider holding it.
func (r *Resolver) Get(ctx context.Context, name string) (string, error) {
	r.mu.Lock()
	value, ok := r.cache[name]
	r.mu.Unlock()
	if ok {
		return value, nil
	}

	var errs []error
	for _, p := range r.providers {
		value, err := p.Get(ctx, name)
		if err == nil {
			r.logger.Debug("secret resolved", "name", name, "provider", p.Name())
			r.mu.Lock()
			r.cache[name] = value
			r.mu.Unlock()
			return value, nil
		}
		if !errors.Is(err, ErrNotFound) {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	if len(errs) > 0 {
		return "", fmt.Errorf("failed to resolve secret %q: %w", name, errors.Join(errs...))
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Resolve replaces every ${secret:name} in s. Strings without references
// are returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, s string) (string, error) {
	var errs []error
	out := refPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := refPattern.FindStringSubmatch(match)[1]
		value, err := r.Get(ctx, name)
		if err != nil {
			errs = append(errs, err)
			return match
		}
		return value
	})
	return out, errors.Join(errs...)
}

// ResolveConfig resolves the references in the sensitive fields of cfg in
// place: API keys and Git credentials.
func (r *Resolver) ResolveConfig(ctx context.Context, cfg *config.Config) error {
	fields := map[string]*string{
		"rules.git.auth.token":              &cfg.Rules.Git.Auth.Token,
		"rules.git.auth.ssh_key_passphrase": &cfg.Rules.Git.Auth.SSHKeyPassphrase,
	}
	for i := range cfg.Server.Auth.Keys {
		fields[fmt.Sprintf("server.auth.keys[%d].key", i)] = &cfg.Server.Auth.Keys[i].Key
	}

	var errs []error
	for field, ptr := range fields {
		if !refPattern.MatchString(*ptr) {
			continue
		}
		value, err := r.Resolve(ctx, *ptr)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
			continue
		}
		*ptr = value
	}
	return errors.Join(errs...)
}
