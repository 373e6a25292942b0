package cli

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the optional YAML configuration file.
//
//	db: ./strata.db
//	policies: ./policies
//	authority: council
//	listen: :8080
type Config struct {
	DB        string `yaml:"db"`
	Policies  string `yaml:"policies"`
	Authority string `yaml:"authority"`
	Listen    string `yaml:"listen"`
}

// LoadConfig reads a config file, rejecting unknown keys.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
