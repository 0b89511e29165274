// Package health provides liveness and readiness probes for the fieldguard
// HTTP server.
//
// /health always answers 200 while the process runs. /ready runs the
// registered checks concurrently, each bounded by a timeout, and answers
// 503 when any of them fails. The server registers a "rules" check that
// fails while no rules are loaded and, when the report archive is enabled,
// a "reports" check that pings the store.
package health
