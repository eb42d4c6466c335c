package enrich

import "errors"

var (
	// ErrMissingAPIKey is returned when the openai provider has no API key.
	ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set")

	// ErrEmptyCompletion is returned when a provider answers without text.
	ErrEmptyCompletion = errors.New("provider returned an empty completion")

	// ErrUnknownProvider is returned for a provider name other than
	// "mock" or "openai".
	ErrUnknownProvider = errors.New("unknown enrichment provider")
)
