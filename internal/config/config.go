// Package config loads the store configuration from an optional YAML or TOML
// file layered over the environment preset, then applies SCROLLGUARD_*
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"scrollguard/internal/database"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load builds the configuration for env. Values from the file at path, when
// path is not empty, replace the preset values they name.
func Load(path, env string) (*database.Config, error) {
	cfg := database.ConfigForEnvironment(env)

	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.LoadFromEnvironment(); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func decodeFile(path string, cfg *database.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q (expected .yaml, .yml or .toml)", ext)
	}
	return nil
}

// expandEnvVars replaces ${VAR} with the value of VAR, empty when unset
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(name)
	})
}
