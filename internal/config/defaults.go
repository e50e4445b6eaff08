package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Dir returns the watchengine config directory
func Dir() string {
	return filepath.Join(getConfigDir(), "watchengine")
}

// DefaultPath returns the default config file location
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// MarshalSettings renders the settings of v as YAML, durations in Go syntax
func MarshalSettings(v *viper.Viper) ([]byte, error) {
	data, err := yaml.Marshal(humanizeDurations(v.AllSettings()))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	v := viper.New()
	SetDefaults(v)
	data, err := MarshalSettings(v)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func humanizeDurations(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	for key, value := range settings {
		switch v := value.(type) {
		case time.Duration:
			out[key] = v.String()
		case map[string]any:
			out[key] = humanizeDurations(v)
		default:
			out[key] = v
		}
	}
	return out
}
