package config

import "github.com/mattjoyce/partwalk/internal/handler"

// Config represents the complete partwalk configuration.
type Config struct {
	Service    ServiceConfig  `yaml:"service"`
	HandlerDir string         `yaml:"handler_dir"`
	ModuleExt  string         `yaml:"module_ext"`
	Frequency  string         `yaml:"frequency"`
	Journal    JournalConfig  `yaml:"journal"`
	Data       map[string]any `yaml:"data,omitempty"`

	// SourcePath is the absolute path the config was loaded from.
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// JournalConfig defines the dispatch journal database.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// RequestedFrequency returns the parsed pass frequency. Load has already
// validated it, so an error here means the Config was built by hand.
func (c *Config) RequestedFrequency() (handler.Frequency, error) {
	return handler.ParseFrequency(c.Frequency)
}

// Defaults returns a Config with the values used when a key is absent.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "partwalk",
			LogLevel:  "info",
			LogFormat: "json",
		},
		HandlerDir: "./data/handlers",
		ModuleExt:  handler.DefaultModuleExt,
		Frequency:  string(handler.FrequencyOncePerInstance),
		Journal: JournalConfig{
			Enabled: false,
			Path:    "./data/journal.db",
		},
		Data: make(map[string]any),
	}
}
