// Package tls serves the fieldguard API over HTTPS.
//
// A Reloader loads the configured certificate and polls the files for
// changes, so renewed certificates are picked up without a restart.
// NewConfig builds the crypto/tls configuration around it, with optional
// client certificate verification.
package tls
