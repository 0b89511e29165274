/*
Package auth provides API key authentication for the fieldguard HTTP API.

Keys come from the server.auth section of the configuration. A request is
authenticated when one of the configured sources carries a known, enabled key:

	validator := auth.NewValidator(
		auth.Key{Name: "ci", Key: "fg-ci-0123456789"},
		auth.Key{Name: "legacy", Key: "fg-old-key", Disabled: true},
	)

	sources := []auth.Source{
		{Type: auth.SourceHeader, Name: "Authorization", Scheme: "Bearer"},
		{Type: auth.SourceQuery, Name: "api_key"},
	}

	mw := auth.NewMiddleware(validator, sources, logger)
	router.Use(mw.Handle)

Handlers behind the middleware can read the name of the key that
authenticated the request:

	if info, ok := auth.KeyFromContext(r.Context()); ok {
		logger.Info("request", "key", info.Name)
	}

Keys are stored as SHA-256 digests and never logged. Rejected requests get a
401 with a JSON error body.
*/
package auth
