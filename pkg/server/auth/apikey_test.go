package auth

import (
	"errors"
	"testing"

	"mercator-hq/fieldguard/pkg/config"
)

func TestValidator_Validate(t *testing.T) {
	validator := NewValidator(
		Key{Name: "ci", Key: "fg-ci-key"},
		Key{Name: "legacy", Key: "fg-legacy-key", Disabled: true},
	)

	tests := []struct {
		name     string
		key      string
		wantErr  error
		wantName string
	}{
		{name: "valid key", key: "fg-ci-key", wantName: "ci"},
		{name: "disabled key", key: "fg-legacy-key", wantErr: ErrKeyDisabled},
		{name: "unknown key", key: "fg-other-key", wantErr: ErrInvalidKey},
		{name: "empty key", key: "", wantErr: ErrMissingKey},
		{name: "prefix of valid key", key: "fg-ci", wantErr: ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := validator.Validate(tt.key)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error: %v", err)
			}
			if info.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", info.Name, tt.wantName)
			}
		})
	}
}

func TestValidator_AddRemove(t *testing.T) {
	validator := NewValidator()
	if validator.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", validator.Len())
	}

	validator.Add(Key{Name: "first", Key: "k1"})
	validator.Add(Key{Name: "renamed", Key: "k1"})
	if validator.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after re-adding the same key", validator.Len())
	}
	info, err := validator.Validate("k1")
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if info.Name != "renamed" {
		t.Errorf("Name = %q, want renamed", info.Name)
	}

	validator.Remove("k1")
	if _, err := validator.Validate("k1"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Validate() after Remove error = %v, want ErrInvalidKey", err)
	}
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.AuthConfig
		wantSources []Source
	}{
		{
			name: "bearer header",
			cfg: config.AuthConfig{
				Header: "Authorization",
				Scheme: "Bearer",
				Keys:   []config.APIKeyConfig{{Name: "ci", Key: "k1"}},
			},
			wantSources: []Source{
				{Type: SourceHeader, Name: "Authorization", Scheme: "Bearer"},
			},
		},
		{
			name: "bare header and query parameter",
			cfg: config.AuthConfig{
				Header:     "X-API-Key",
				QueryParam: "api_key",
				Keys:       []config.APIKeyConfig{{Name: "ci", Key: "k1"}},
			},
			wantSources: []Source{
				{Type: SourceHeader, Name: "X-API-Key"},
				{Type: SourceQuery, Name: "api_key"},
			},
		},
		{
			name: "query parameter only",
			cfg: config.AuthConfig{
				QueryParam: "token",
				Keys:       []config.APIKeyConfig{{Name: "ci", Key: "k1"}},
			},
			wantSources: []Source{
				{Type: SourceQuery, Name: "token"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator, sources := FromConfig(&tt.cfg)
			if validator.Len() != len(tt.cfg.Keys) {
				t.Errorf("Len() = %d, want %d", validator.Len(), len(tt.cfg.Keys))
			}
			if len(sources) != len(tt.wantSources) {
				t.Fatalf("got %d sources, want %d", len(sources), len(tt.wantSources))
			}
			for i, want := range tt.wantSources {
				if sources[i] != want {
					t.Errorf("sources[%d] = %+v, want %+v", i, sources[i], want)
				}
			}
		})
	}
}
