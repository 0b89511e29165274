package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
)

// Middleware is HTTP middleware for API key authentication.
type Middleware struct {
	store   KeyStore
	sources []Source
	logger  *slog.Logger
}

// NewMiddleware creates an authentication middleware. Sources are tried in
// order; the first one carrying a key wins.
func NewMiddleware(store KeyStore, sources []Source, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		store:   store,
		sources: sources,
		logger:  logger.With("component", "auth"),
	}
}

// Handle wraps next with API key authentication.
func (m *Middleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := m.extractKey(r)
		if err != nil {
			m.logger.Warn("missing API key",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			unauthorized(w, "missing or invalid API key")
			return
		}

		info, err := m.store.Validate(key)
		if err != nil {
			m.logger.Warn("API key rejected",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			msg := "invalid API key"
			if errors.Is(err, ErrKeyDisabled) {
				msg = "API key disabled"
			}
			unauthorized(w, msg)
			return
		}

		m.logger.Debug("API key authenticated", "key_name", info.Name, "path", r.URL.Path)

		ctx := context.WithValue(r.Context(), keyInfoKey, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) extractKey(r *http.Request) (string, error) {
	for _, source := range m.sources {
		switch source.Type {
		case SourceHeader:
			value := r.Header.Get(source.Name)
			if value == "" {
				continue
			}
			if source.Scheme == "" {
				return value, nil
			}
			if key, ok := strings.CutPrefix(value, source.Scheme+" "); ok && key != "" {
				return key, nil
			}

		case SourceQuery:
			if value := r.URL.Query().Get(source.Name); value != "" {
				return value, nil
			}
		}
	}
	return "", ErrMissingKey
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

type contextKey string

// #nosec G101 - context key, not a credential
const keyInfoKey contextKey = "api_key_info"

// KeyFromContext returns the info of the key that authenticated the request.
func KeyFromContext(ctx context.Context) (*KeyInfo, bool) {
	info, ok := ctx.Value(keyInfoKey).(*KeyInfo)
	return info, ok
}
