package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"mercator-hq/fieldguard/pkg/config"
)

// NewConfig builds the server TLS configuration. Certificates are served
// from reloader, which must be started before the first handshake.
func NewConfig(cfg *config.TLSConfig, reloader *Reloader) (*tls.Config, error) {
	// #nosec G402 - MinVersion is validated to TLS 1.2 or later
	tlsConfig := &tls.Config{
		MinVersion:     parseVersion(cfg.MinVersion),
		GetCertificate: reloader.GetCertificate,
	}

	if cfg.ClientCAFile != "" {
		pem, err := os.ReadFile(cfg.ClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read client CA: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to parse client CA certificate")
		}
		tlsConfig.ClientCAs = pool
		tlsConfig.ClientAuth = parseClientAuth(cfg.ClientAuth)
	}
	return tlsConfig, nil
}

func parseVersion(v string) uint16 {
	if v == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}

func parseClientAuth(v string) tls.ClientAuthType {
	switch v {
	case "request":
		return tls.RequestClientCert
	case "verify_if_given":
		return tls.VerifyClientCertIfGiven
	default:
		return tls.RequireAndVerifyClientCert
	}
}
