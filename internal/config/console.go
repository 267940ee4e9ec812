package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v3"
)

const (
	// DefaultConsoleConfigPath is read when CONSOLE_CONFIG_PATH is unset.
	DefaultConsoleConfigPath = "configs/console.yaml"
	// DefaultStore is the record store backend used when none is configured.
	DefaultStore = "recordapi"
	// DefaultBaseURL is the record API base URL used by the default store.
	DefaultBaseURL = "http://api.dns.home:8080/api"
)

// ConsoleConfig holds the record store backend, its connection settings, and
// console behaviour options.
type ConsoleConfig struct {
	Store               string            `yaml:"store"`
	API                 map[string]string `yaml:"api"`
	AllowStaleResponses bool              `yaml:"allow_stale_responses"`
}

// DefaultConsoleConfig returns the configuration used when no file exists.
func DefaultConsoleConfig() *ConsoleConfig {
	cfg := &ConsoleConfig{}
	cfg.applyDefaults()
	return cfg
}

func (c *ConsoleConfig) applyDefaults() {
	if c.Store == "" {
		c.Store = DefaultStore
	}
	if c.API == nil {
		c.API = make(map[string]string)
	}
	if c.Store == DefaultStore && c.API["base_url"] == "" {
		c.API["base_url"] = DefaultBaseURL
	}
}

// LoadConsoleConfig reads the console configuration from the path specified
// by the CONSOLE_CONFIG_PATH environment variable, defaulting to
// "configs/console.yaml". A missing file at the default path yields the
// default configuration; a missing file at an explicit path is an error.
func LoadConsoleConfig() (*ConsoleConfig, error) {
	path := os.Getenv("CONSOLE_CONFIG_PATH")
	if path != "" {
		return LoadConsoleConfigFromPath(path)
	}

	cfg, err := LoadConsoleConfigFromPath(DefaultConsoleConfigPath)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConsoleConfig(), nil
	}
	return cfg, err
}

// LoadConsoleConfigFromPath reads the console configuration from the given
// file path.
func LoadConsoleConfigFromPath(path string) (*ConsoleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading console config file: %w", err)
	}

	var cfg ConsoleConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing console config file: %w", err)
	}

	// Expand ${ENV_VAR} references in API settings.
	for k, v := range cfg.API {
		cfg.API[k] = os.ExpandEnv(v)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// LoadDotEnv loads variables from an env file without overriding variables
// already set in the environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading env file: %w", err)
}
