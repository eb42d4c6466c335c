package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "irreview"

	// DefaultDPI is the page rendering resolution. 200 dpi keeps figures in
	// financial tables legible without producing very large images.
	DefaultDPI = 200

	// MaxDPI bounds rendering resolution.
	MaxDPI = 1200

	// DefaultHeadingTopN is how many distinct headings the heading
	// frequency module reports.
	DefaultHeadingTopN = 10

	// DefaultOCRLanguage is the tesseract language set used when the text
	// layer of a page is empty.
	DefaultOCRLanguage = "jpn+eng"

	// DefaultProvider is the enrichment provider used when none is given.
	DefaultProvider = ProviderMock

	// DefaultModel is the chat model used by the openai provider when
	// OPENAI_MODEL is not set.
	DefaultModel = "gpt-4o"

	// DefaultEnrichTimeout bounds a single enrichment request.
	DefaultEnrichTimeout = 2 * time.Minute

	// DefaultEnrichAttempts is the number of tries per enrichment request.
	DefaultEnrichAttempts = 3
)

// Enrichment providers.
const (
	ProviderMock   = "mock"
	ProviderOpenAI = "openai"
)

// Environment variables read by NewConfig.
const (
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvOpenAIModel   = "OPENAI_MODEL"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
)

// Config holds all options for one conversion run.
// It is built from defaults, the optional .irreview file and CLI flags, in
// that order, and passed down explicitly.
type Config struct {
	// InputPath is the source PDF.
	InputPath string

	// OutputDir is the root of the output layout.
	OutputDir string

	// DPI is the rendering resolution for page images.
	DPI int

	// HeadingTopN is the number of headings reported by the heading
	// frequency module.
	HeadingTopN int

	// Workers bounds concurrent page rendering.
	Workers int

	// EnableOCR turns on the tesseract fallback for pages with an empty
	// text layer.
	EnableOCR bool

	// OCRLanguage is passed to tesseract with -l.
	OCRLanguage string

	// ExtraRiskTerms extend the built-in risk lexicon.
	ExtraRiskTerms []string

	// ExtraKPILabels extend the label set of the KPI summarizer.
	ExtraKPILabels []string

	// ExportXLSX also writes outputs/review.xlsx.
	ExportXLSX bool

	// Chart adds a mermaid pie chart of findings per module to the review.
	Chart bool

	// Enhanced enables the generative enrichment step.
	Enhanced bool

	// Provider selects the enrichment backend: "mock" or "openai".
	Provider string

	// Model is the chat model name for the openai provider.
	Model string

	// APIKey is the OpenAI API key. It is read from OPENAI_API_KEY and is
	// never written to logs unmasked.
	APIKey string

	// BaseURL overrides the OpenAI endpoint, for compatible gateways.
	BaseURL string

	// EnrichTimeout bounds each enrichment request.
	EnrichTimeout time.Duration

	// EnrichAttempts is the number of tries per enrichment request.
	EnrichAttempts int

	// SaveHistory records the run in the history database.
	SaveHistory bool

	// DBDir holds the history database.
	DBDir string

	// ConfigFilePath is the path given with --config, if any.
	ConfigFilePath string

	// Verbose enables debug logging.
	Verbose bool
}

// NewConfig returns a Config with default values. OpenAI settings are read
// from the environment.
func NewConfig() *Config {
	model := os.Getenv(EnvOpenAIModel)
	if model == "" {
		model = DefaultModel
	}
	return &Config{
		DPI:            DefaultDPI,
		HeadingTopN:    DefaultHeadingTopN,
		Workers:        runtime.NumCPU(),
		OCRLanguage:    DefaultOCRLanguage,
		Provider:       DefaultProvider,
		Model:          model,
		APIKey:         os.Getenv(EnvOpenAIKey),
		BaseURL:        os.Getenv(EnvOpenAIBaseURL),
		EnrichTimeout:  DefaultEnrichTimeout,
		EnrichAttempts: DefaultEnrichAttempts,
		SaveHistory:    true,
		DBDir:          XDGDataDir(),
	}
}

// XDGDataDir returns the data directory for irreview, which holds the run
// history database.
// On Linux: ~/.local/share/irreview
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory for irreview.
// On Linux: ~/.config/irreview
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.InputPath == "" {
		return ErrNoInput
	}
	if c.OutputDir == "" {
		return ErrNoOutputDir
	}
	if c.DPI <= 0 || c.DPI > MaxDPI {
		return ErrInvalidDPI
	}
	if c.HeadingTopN <= 0 {
		return ErrInvalidTopN
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.Enhanced {
		switch c.Provider {
		case ProviderMock, ProviderOpenAI:
		default:
			return ErrUnknownProvider
		}
		if c.EnrichAttempts <= 0 {
			return ErrInvalidAttempts
		}
	}
	return nil
}
