package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/partwalk/internal/handler"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file.
// A directory path is accepted if it contains config.yaml. Relative paths in
// the file are resolved against the directory holding it.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	cfg, err := loadConfigFile(absPath)
	if err != nil {
		return nil, err
	}
	cfg.SourcePath = absPath

	cfg = applyConfigDefaults(cfg)
	resolvePaths(cfg, filepath.Dir(absPath))

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}
	if cfg.HandlerDir == "" {
		cfg.HandlerDir = defaults.HandlerDir
	}
	if cfg.ModuleExt == "" {
		cfg.ModuleExt = defaults.ModuleExt
	}
	if cfg.Frequency == "" {
		cfg.Frequency = defaults.Frequency
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = defaults.Journal.Path
	}
	if cfg.Data == nil {
		cfg.Data = defaults.Data
	}

	return cfg
}

func resolvePaths(cfg *Config, baseDir string) {
	if !filepath.IsAbs(cfg.HandlerDir) {
		cfg.HandlerDir = filepath.Join(baseDir, cfg.HandlerDir)
	}
	if !filepath.IsAbs(cfg.Journal.Path) {
		cfg.Journal.Path = filepath.Join(baseDir, cfg.Journal.Path)
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Left in place so validation can name the variable.
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	switch cfg.Service.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("service.log_format must be one of: json, text (got %q)", cfg.Service.LogFormat)
	}

	freq, err := handler.ParseFrequency(cfg.Frequency)
	if err != nil {
		return fmt.Errorf("frequency: %w", err)
	}
	cfg.Frequency = string(freq)

	if !strings.HasPrefix(cfg.ModuleExt, ".") || strings.ContainsRune(cfg.ModuleExt, filepath.Separator) {
		return fmt.Errorf("module_ext must start with '.' and contain no path separator (got %q)", cfg.ModuleExt)
	}

	if err := unresolvedEnvVar("handler_dir", cfg.HandlerDir); err != nil {
		return err
	}
	info, err := os.Stat(cfg.HandlerDir)
	if err != nil {
		return fmt.Errorf("handler_dir %s: %w", cfg.HandlerDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("handler_dir %s is not a directory", cfg.HandlerDir)
	}

	if cfg.Journal.Enabled {
		if err := unresolvedEnvVar("journal.path", cfg.Journal.Path); err != nil {
			return err
		}
	}

	return checkUnresolvedEnvVars(cfg.Data, "data")
}

func unresolvedEnvVar(field, value string) error {
	matches := envVarPattern.FindStringSubmatch(value)
	if len(matches) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
	}
	return nil
}

// checkUnresolvedEnvVars recursively checks for ${VAR} placeholders in data values.
func checkUnresolvedEnvVars(data map[string]any, prefix string) error {
	for key, value := range data {
		field := prefix + "." + key
		switch v := value.(type) {
		case string:
			if err := unresolvedEnvVar(field, v); err != nil {
				return err
			}
		case map[string]any:
			if err := checkUnresolvedEnvVars(v, field); err != nil {
				return err
			}
		}
	}
	return nil
}
