// Package log provides the slog setup used by irreview.
//
// SecureHandler wraps any slog.Handler and masks attribute values that look
// like credentials before they are written. Enhanced mode talks to a hosted
// model with an API key, and the key can end up in request options or error
// attributes. Masked values include:
//   - keys such as api_key, authorization and token
//   - OpenAI-style secret keys (sk-...)
//   - bearer tokens and JWTs
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//	logger.Debug("provider ready", "api_key", key) // api_key=***REDACTED***
//
// Without verbose only warnings and errors are printed, which keeps the
// terminal quiet for ordinary conversions.
package log
