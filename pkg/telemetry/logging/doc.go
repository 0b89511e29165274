// Package logging builds the process slog logger.
//
// Loggers are plain *slog.Logger values, so every package accepts one in its
// constructor and defaults to slog.Default(). Two handlers wrap the output
// handler:
//
//   - a context handler that adds request_id, pass_id and rule_source from
//     the context when a *Context logging method is used
//   - a redacting handler, enabled by redact_values, that replaces values of
//     sensitive keys (value, expected, token, ...) and masks emails, card
//     numbers and bearer tokens inside strings
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:        "info",
//	    Format:       "json",
//	    RedactValues: true,
//	})
//	ctx = logging.WithPassID(ctx, passID)
//	logger.InfoContext(ctx, "validation pass complete", "error_count", 2)
package logging
