package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadServerConfig reads and parses the Server process's YAML configuration
// file.
func LoadServerConfig(path string) (ServerConfig, error) {
	var cfg ServerConfig
	if err := load(path, &cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// LoadAgentConfig reads and parses the Agent process's YAML configuration file.
func LoadAgentConfig(path string) (AgentConfig, error) {
	var cfg AgentConfig
	if err := load(path, &cfg); err != nil {
		return AgentConfig{}, err
	}
	return cfg, nil
}

// load cleans path, then reads and unmarshals the YAML document into out.
func load(path string, out interface{}) error {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath) // #nosec G304 - config file path is operator-supplied, not user input
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}
