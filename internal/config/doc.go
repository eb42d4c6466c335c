// Package config provides the run configuration for irreview: rendering
// and analysis settings, enrichment provider selection, and the location of
// the run history database.
//
// Values are layered. NewConfig supplies defaults (reading OPENAI_* from the
// environment), a .irreview YAML file found by FindConfigFile overrides them
// through File.Apply, and command-line flags override both.
package config
