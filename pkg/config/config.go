package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is prepended to every environment override, e.g. TOOLCHAT_SERVER_PORT.
	EnvPrefix = "TOOLCHAT"

	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-1.5-pro"
	DefaultAPIKeyEnv     = "GEMINI_API_KEY"
	DefaultTemperature   = 0.2
)

// Config represents the toolchat service configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Gemini   GeminiConfig   `mapstructure:"gemini" yaml:"gemini"`
	Tools    ToolsConfig    `mapstructure:"tools" yaml:"tools"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host" yaml:"host"`
	Port         int           `mapstructure:"port" yaml:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// DatabaseConfig selects the conversation store backend
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// GeminiConfig represents Google Gemini model configuration
type GeminiConfig struct {
	Model       string        `mapstructure:"model" yaml:"model"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	APIKeyEnv   string        `mapstructure:"api_key_env" yaml:"api_key_env,omitempty"`
	Temperature *float64      `mapstructure:"temperature" yaml:"temperature,omitempty"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ToolsConfig controls the tool registry
type ToolsConfig struct {
	// Catalog is an optional YAML file declaring command-backed tools.
	Catalog          string        `mapstructure:"catalog" yaml:"catalog,omitempty"`
	ExecutionTimeout time.Duration `mapstructure:"execution_timeout" yaml:"execution_timeout"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// MetricsConfig controls the prometheus endpoint
type MetricsConfig struct {
	Disabled bool   `mapstructure:"disabled" yaml:"disabled"`
	Path     string `mapstructure:"path" yaml:"path"`
}

// envKeys are bound explicitly so env-only values survive Unmarshal.
var envKeys = []string{
	"server.host",
	"server.port",
	"server.read_timeout",
	"server.write_timeout",
	"database.driver",
	"database.dsn",
	"gemini.model",
	"gemini.base_url",
	"gemini.api_key",
	"gemini.api_key_env",
	"gemini.temperature",
	"gemini.timeout",
	"tools.catalog",
	"tools.execution_timeout",
	"log.level",
	"log.development",
	"metrics.disabled",
	"metrics.path",
}

// Load reads configuration from path (or toolchat.yaml in the working
// directory when path is empty), applies TOOLCHAT_* environment overrides and
// fills anything left unset from DefaultConfig.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("toolchat")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.SetDefaults(); err != nil {
		return nil, err
	}
	cfg.resolveAPIKey()

	return &cfg, nil
}

// SetDefaults fills zero-valued fields from DefaultConfig. An explicit
// temperature of 0 is preserved.
func (c *Config) SetDefaults() error {
	defaults := DefaultConfig()
	temperature := defaults.Gemini.Temperature
	defaults.Gemini.Temperature = nil

	if err := mergo.Merge(c, defaults); err != nil {
		return fmt.Errorf("failed to apply defaults: %w", err)
	}
	if c.Gemini.Temperature == nil {
		c.Gemini.Temperature = temperature
	}
	return nil
}

func (c *Config) resolveAPIKey() {
	if c.Gemini.APIKey == "" && c.Gemini.APIKeyEnv != "" {
		c.Gemini.APIKey = os.Getenv(c.Gemini.APIKeyEnv)
	}
}

// RequestBudget is the longest a chat request can take: two model calls and
// one tool execution.
func (c *Config) RequestBudget() time.Duration {
	return 2*c.Gemini.Timeout + c.Tools.ExecutionTimeout
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	temperature := DefaultTemperature
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "toolchat.db",
		},
		Gemini: GeminiConfig{
			Model:       DefaultGeminiModel,
			BaseURL:     DefaultGeminiBaseURL,
			APIKeyEnv:   DefaultAPIKeyEnv,
			Temperature: &temperature,
			Timeout:     60 * time.Second,
		},
		Tools: ToolsConfig{
			ExecutionTimeout: 2 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}
}

// SaveConfig saves configuration to a YAML file. The resolved API key is
// never written.
func SaveConfig(config *Config, filePath string) error {
	out := *config
	out.Gemini.APIKey = ""

	data, err := Marshal(&out)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Marshal renders config as YAML.
func Marshal(config *Config) ([]byte, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
