// Package server exposes a long-lived validation engine over HTTP.
//
// Routes are served by a chi router:
//
//	POST /api/v1/validate            full pass; {"fields": ..., "rules": ...}
//	POST /api/v1/validate/{fieldId}  partial pass; {"fields": ..., "value": ..., "rules": ...}
//	POST /api/v1/lint                lint a rule document sent as the body
//	GET  /api/v1/rules               loaded rules
//	POST /api/v1/rules/reload        reload rules from the source
//	GET  /api/v1/reports             query the report archive
//	GET  /api/v1/reports/{id}        one archived report
//	GET  /health, /ready, /version   probes and build information
//
// When a validate request omits "rules" the engine's loaded rules are used.
// Fields may be a list of {fieldId, value} records or an object keyed by field ID.
// Errors are returned as {"error": ..., "details": ...}.
//
// # Lifecycle
//
// Start blocks until its context is cancelled, SIGINT or SIGTERM arrives, or
// Stop is called, and then drains in-flight requests within the configured
// shutdown timeout:
//
//	srv := server.NewServer(&cfg.Server, eng, logger,
//	    server.WithReports(storage, query.DefaultLimits()),
//	    server.WithHealth(checker),
//	    server.WithMetrics(collector, cfg.Telemetry.Metrics.Path),
//	)
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//
// Handler returns the router without starting a listener, which is what the
// tests and embedding applications use.
package server
