package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name looked up in the current
// and home directories.
const DefaultConfigFile = ".irreview"

// xdgConfigFile is the file name looked up in the XDG config directory.
const xdgConfigFile = "config.yaml"

// File is the structure of the .irreview configuration file.
// Every setting is optional; unset settings keep the Config value.
type File struct {
	DPI      int   `yaml:"dpi,omitempty"`
	Workers  int   `yaml:"workers,omitempty"`
	OCR      *bool `yaml:"ocr,omitempty"`
	XLSX     *bool `yaml:"xlsx,omitempty"`
	Chart    *bool `yaml:"chart,omitempty"`
	History  *bool `yaml:"history,omitempty"`
	Headings struct {
		TopN int `yaml:"top_n,omitempty"`
	} `yaml:"headings,omitempty"`
	Risk struct {
		ExtraTerms []string `yaml:"extra_terms,omitempty"`
	} `yaml:"risk,omitempty"`
	KPI struct {
		ExtraLabels []string `yaml:"extra_labels,omitempty"`
	} `yaml:"kpi,omitempty"`
	Enhanced EnhancedFile `yaml:"enhanced,omitempty"`
}

// EnhancedFile holds the enrichment settings of the configuration file.
// The API key is only read from the environment.
type EnhancedFile struct {
	Provider string        `yaml:"provider,omitempty"`
	Model    string        `yaml:"model,omitempty"`
	BaseURL  string        `yaml:"base_url,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	Attempts int           `yaml:"attempts,omitempty"`
}

// Apply copies every setting present in the file onto cfg.
func (f *File) Apply(cfg *Config) {
	if f == nil {
		return
	}
	if f.DPI != 0 {
		cfg.DPI = f.DPI
	}
	if f.Workers != 0 {
		cfg.Workers = f.Workers
	}
	if f.OCR != nil {
		cfg.EnableOCR = *f.OCR
	}
	if f.XLSX != nil {
		cfg.ExportXLSX = *f.XLSX
	}
	if f.Chart != nil {
		cfg.Chart = *f.Chart
	}
	if f.History != nil {
		cfg.SaveHistory = *f.History
	}
	if f.Headings.TopN != 0 {
		cfg.HeadingTopN = f.Headings.TopN
	}
	cfg.ExtraRiskTerms = append(cfg.ExtraRiskTerms, f.Risk.ExtraTerms...)
	cfg.ExtraKPILabels = append(cfg.ExtraKPILabels, f.KPI.ExtraLabels...)

	if f.Enhanced.Provider != "" {
		cfg.Provider = f.Enhanced.Provider
	}
	if f.Enhanced.Model != "" {
		cfg.Model = f.Enhanced.Model
	}
	if f.Enhanced.BaseURL != "" {
		cfg.BaseURL = f.Enhanced.BaseURL
	}
	if f.Enhanced.Timeout != 0 {
		cfg.EnrichTimeout = f.Enhanced.Timeout
	}
	if f.Enhanced.Attempts != 0 {
		cfg.EnrichAttempts = f.Enhanced.Attempts
	}
}

// LoadConfigFile reads a configuration file.
// A missing file yields ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path is intentional
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// FindConfigFile returns the configuration file to use, or "" if none exists.
// Search order:
//  1. configPath, if given
//  2. .irreview in the current directory
//  3. .irreview in the home directory
//  4. config.yaml in the XDG config directory
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), xdgConfigFile))

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}
