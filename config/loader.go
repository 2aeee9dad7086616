package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader reads a BuildConfig from a file.
type Loader struct {
	filePath string
}

func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads the file and performs structural validation.
// Defaulting and value checks are separate steps.
func (l *Loader) Load() (*BuildConfig, error) {
	if l.filePath == "" {
		return nil, fmt.Errorf("configuration file path is empty")
	}
	content, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", l.filePath, err)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("configuration file '%s' is empty", l.filePath)
	}
	return Parse(content, l.filePath)
}

// Parse decodes a BuildConfig document. source is only used in error messages.
func Parse(content []byte, source string) (*BuildConfig, error) {
	var cfg BuildConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML from '%s': %w", source, err)
	}

	if cfg.APIVersion == "" {
		return nil, fmt.Errorf("config validation failed: apiVersion is a required field in '%s'", source)
	}
	if cfg.APIVersion != APIVersion {
		return nil, fmt.Errorf("config validation failed: unsupported apiVersion '%s' in '%s'", cfg.APIVersion, source)
	}
	if cfg.Kind != Kind {
		return nil, fmt.Errorf("config validation failed: kind must be '%s' in '%s', got '%s'", Kind, source, cfg.Kind)
	}
	if cfg.Metadata.Name == "" {
		return nil, fmt.Errorf("config validation failed: metadata.name is a required field in '%s'", source)
	}
	return &cfg, nil
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*BuildConfig, error) {
	cfg, err := NewLoader(path).Load()
	if err != nil {
		return nil, err
	}
	SetDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config '%s': %w", path, err)
	}
	return cfg, nil
}
