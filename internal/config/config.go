// Package config loads the service configuration: defaults, then an optional
// YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Assistant providers.
const (
	ProviderAzure     = "azure"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Transports the serve command understands.
const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DataDir   string          `yaml:"data_dir"`
	Snapshots SnapshotConfig  `yaml:"snapshots"`
	Assistant AssistantConfig `yaml:"assistant"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	Transport string `yaml:"transport"`
}

type SnapshotConfig struct {
	Interval  time.Duration `yaml:"interval"`
	At        string        `yaml:"at"`
	QueueSize int           `yaml:"queue_size"`
}

type AssistantConfig struct {
	Provider    string          `yaml:"provider"`
	Timeout     time.Duration   `yaml:"timeout"`
	Temperature float64         `yaml:"temperature"`
	MaxTokens   int             `yaml:"max_tokens"`
	Azure       AzureConfig     `yaml:"azure"`
	Anthropic   AnthropicConfig `yaml:"anthropic"`
	Gemini      GeminiConfig    `yaml:"gemini"`
}

type AzureConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	Deployment string `yaml:"deployment"`
	APIVersion string `yaml:"api_version"`
}

// Configured reports whether both endpoint and key are present.
func (c AzureConfig) Configured() bool {
	return c.Endpoint != "" && c.APIKey != ""
}

type AnthropicConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type GeminiConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      ":8000",
			Transport: TransportHTTP,
		},
		DataDir: "./data",
		Snapshots: SnapshotConfig{
			Interval:  14 * 24 * time.Hour,
			At:        "00:00",
			QueueSize: 16,
		},
		Assistant: AssistantConfig{
			Provider:    ProviderAzure,
			Timeout:     30 * time.Second,
			Temperature: 0.7,
			MaxTokens:   800,
			Azure: AzureConfig{
				Deployment: "gpt-4",
				APIVersion: "2023-05-15",
			},
			Anthropic: AnthropicConfig{
				Model: "claude-sonnet-4-20250514",
			},
			Gemini: GeminiConfig{
				Model: "gemini-2.5-flash",
			},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration. path may be empty, in which case PMO_CONFIG
// is consulted; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("PMO_CONFIG")
	}
	if path != "" {
		if err := loadYAMLFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	applyEnvironment(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvironment(cfg *Config) {
	if v := os.Getenv("PMO_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("PMO_TRANSPORT"); v != "" {
		cfg.Server.Transport = v
	}
	if v := os.Getenv("PMO_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("PMO_SNAPSHOT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Snapshots.Interval = d
		}
	}
	if v := os.Getenv("PMO_SNAPSHOT_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Snapshots.QueueSize = n
		}
	}
	if v := os.Getenv("PMO_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PMO_LOG_DEVELOPMENT"); v != "" {
		cfg.Log.Development = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("PMO_ASSISTANT_PROVIDER"); v != "" {
		cfg.Assistant.Provider = v
	}
	if v := os.Getenv("PMO_ASSISTANT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Assistant.Timeout = d
		}
	}

	// Azure names match the ones existing deployments already export.
	if v := os.Getenv("AZURE_OPENAI_ENDPOINT"); v != "" {
		cfg.Assistant.Azure.Endpoint = v
	}
	if v := os.Getenv("AZURE_OPENAI_KEY"); v != "" {
		cfg.Assistant.Azure.APIKey = v
	}
	if v := os.Getenv("AZURE_OPENAI_DEPLOYMENT"); v != "" {
		cfg.Assistant.Azure.Deployment = v
	}
	if v := os.Getenv("AZURE_OPENAI_API_VERSION"); v != "" {
		cfg.Assistant.Azure.APIVersion = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Assistant.Anthropic.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Assistant.Gemini.APIKey = v
	}
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" && c.Server.Transport == TransportHTTP {
		errs = append(errs, errors.New("server.addr is required for the http transport"))
	}
	switch c.Server.Transport {
	case TransportHTTP, TransportStdio:
	default:
		errs = append(errs, fmt.Errorf("server.transport: unknown transport %q", c.Server.Transport))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.Snapshots.Interval <= 0 {
		errs = append(errs, fmt.Errorf("snapshots.interval must be positive, got %s", c.Snapshots.Interval))
	}
	if c.Snapshots.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("snapshots.queue_size must be positive, got %d", c.Snapshots.QueueSize))
	}
	switch c.Assistant.Provider {
	case ProviderAzure, ProviderAnthropic, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("assistant.provider: unknown provider %q", c.Assistant.Provider))
	}
	if c.Assistant.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("assistant.timeout must be positive, got %s", c.Assistant.Timeout))
	}
	if c.Assistant.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("assistant.max_tokens must be positive, got %d", c.Assistant.MaxTokens))
	}
	return errors.Join(errs...)
}
