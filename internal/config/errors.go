package config

import "errors"

// Configuration errors returned by Config.Validate and the loader.
var (
	// ErrNoInput is returned when no source PDF is given.
	ErrNoInput = errors.New("no input specified: provide the path of a PDF file")

	// ErrNoOutputDir is returned when no output directory is given.
	ErrNoOutputDir = errors.New("no output directory specified: use --output")

	// ErrInvalidDPI is returned when the rendering resolution is out of range.
	ErrInvalidDPI = errors.New("invalid dpi: must be between 1 and 1200")

	// ErrInvalidTopN is returned when the heading cutoff is not positive.
	ErrInvalidTopN = errors.New("invalid top-n: must be positive")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrUnknownProvider is returned for an enrichment provider other than
	// mock or openai.
	ErrUnknownProvider = errors.New("unknown provider: must be mock or openai")

	// ErrInvalidAttempts is returned when the enrichment retry count is not
	// positive.
	ErrInvalidAttempts = errors.New("invalid attempts: must be positive")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are given to a listing command.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
