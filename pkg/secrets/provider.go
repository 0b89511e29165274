package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by providers that do not hold a secret.
var ErrNotFound = errors.New("secret not found")

// Provider retrieves secrets from a backend.
type Provider interface {
	// Get returns the value of the named secret, or ErrNotFound.
	Get(ctx context.Context, name string) (string, error)

	// Name identifies the provider in logs.
	Name() string
}

// EnvProvider reads secrets from environment variables.
type EnvProvider struct {
	Prefix string
}

// NewEnvProvider creates an environment provider with prefix.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{Prefix: prefix}
}

// Get reads the variable for name: "ci-api-key" becomes PREFIX + "CI_API_KEY".
func (p *EnvProvider) Get(_ context.Context, name string) (string, error) {
	value, ok := os.LookupEnv(p.envVar(name))
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s (env var: %s)", ErrNotFound, name, p.envVar(name))
	}
	return value, nil
}

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) envVar(name string) string {
	return p.Prefix + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}

// FileProvider reads one secret per file from a directory.
type FileProvider struct {
	dir string
}

// NewFileProvider creates a file provider rooted at dir.
func NewFileProvider(dir string) (*FileProvider, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat secrets directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets path is not a directory: %s", dir)
	}
	return &FileProvider{dir: dir}, nil
}

// Get reads dir/name. Trailing newlines are stripped.
func (p *FileProvider) Get(_ context.Context, name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid secret name %q", name)
	}

	path := filepath.Join(p.dir, name)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat secret %s: %w", name, err)
	}
	if info.Mode().Perm()&0o002 != 0 {
		return "", fmt.Errorf("secret file %s is world-writable", path)
	}

	// #nosec G304 - name is a single path element inside the secrets directory
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret %s: %w", name, err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func (p *FileProvider) Name() string { return "file" }
