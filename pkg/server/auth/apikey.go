package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"sync"

	"mercator-hq/fieldguard/pkg/config"
)

type entry struct {
	digest   [sha256.Size]byte
	name     string
	disabled bool
}

// Validator validates API keys against a configured set of keys.
type Validator struct {
	mu   sync.RWMutex
	keys map[[sha256.Size]byte]*entry
}

// NewValidator creates a validator holding keys.
func NewValidator(keys ...Key) *Validator {
	v := &Validator{keys: make(map[[sha256.Size]byte]*entry, len(keys))}
	for _, k := range keys {
		v.Add(k)
	}
	return v
}

// FromConfig builds a validator and its sources from the server auth section.
func FromConfig(cfg *config.AuthConfig) (*Validator, []Source) {
	keys := make([]Key, 0, len(cfg.Keys))
	for _, k := range cfg.Keys {
		keys = append(keys, Key{Name: k.Name, Key: k.Key, Disabled: k.Disabled})
	}

	var sources []Source
	if cfg.Header != "" {
		sources = append(sources, Source{Type: SourceHeader, Name: cfg.Header, Scheme: cfg.Scheme})
	}
	if cfg.QueryParam != "" {
		sources = append(sources, Source{Type: SourceQuery, Name: cfg.QueryParam})
	}
	return NewValidator(keys...), sources
}

// Validate checks key and returns the info of the matching configured key.
func (v *Validator) Validate(key string) (*KeyInfo, error) {
	if key == "" {
		return nil, ErrMissingKey
	}
	digest := sha256.Sum256([]byte(key))

	v.mu.RLock()
	e, ok := v.keys[digest]
	v.mu.RUnlock()

	if !ok || subtle.ConstantTimeCompare(e.digest[:], digest[:]) != 1 {
		return nil, ErrInvalidKey
	}
	if e.disabled {
		return nil, ErrKeyDisabled
	}
	return &KeyInfo{Name: e.name}, nil
}

// Add registers k, replacing any key with the same value.
func (v *Validator) Add(k Key) {
	digest := sha256.Sum256([]byte(k.Key))
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys[digest] = &entry{digest: digest, name: k.Name, disabled: k.Disabled}
}

// Remove deletes the key with value key.
func (v *Validator) Remove(key string) {
	digest := sha256.Sum256([]byte(key))
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.keys, digest)
}

// Len returns the number of configured keys.
func (v *Validator) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.keys)
}
