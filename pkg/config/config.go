package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Node      NodeConfig      `yaml:"node"`
	Transport TransportConfig `yaml:"transport"`
	Cache     CacheConfig     `yaml:"cache"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

type NodeConfig struct {
	ID string `yaml:"id"`
}

// TransportConfig configures the in-memory network used by the demo.
type TransportConfig struct {
	Codec    string `yaml:"codec"` // json | none
	Replicas int    `yaml:"replicas"`
	Copies   int    `yaml:"copies"`
}

type CacheConfig struct {
	Shards         int `yaml:"shards"`
	ScaleThreshold int `yaml:"scale_threshold"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Load reads path, fills in defaults and validates the result. An empty path
// yields the default configuration.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = Read(path); err != nil {
			return nil, err
		}
	}
	cfg.PopulateDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
