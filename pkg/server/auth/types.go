package auth

import "errors"

var (
	// ErrMissingKey is returned when no source carries a key.
	ErrMissingKey = errors.New("no API key found")

	// ErrInvalidKey is returned for keys that are not configured.
	ErrInvalidKey = errors.New("invalid API key")

	// ErrKeyDisabled is returned for configured keys marked disabled.
	ErrKeyDisabled = errors.New("API key disabled")
)

// Source types.
const (
	SourceHeader = "header"
	SourceQuery  = "query"
)

// Key is a configured API key.
type Key struct {
	Name     string
	Key      string
	Disabled bool
}

// KeyInfo identifies the key that authenticated a request. It never holds
// the key itself.
type KeyInfo struct {
	Name string
}

// Source defines where to extract API keys from.
type Source struct {
	Type   string // header, query
	Name   string // header name or query parameter
	Scheme string // optional prefix such as "Bearer"
}

// KeyStore validates presented API keys.
type KeyStore interface {
	Validate(key string) (*KeyInfo, error)
}
