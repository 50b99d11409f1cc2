// ABOUTME: Configuration loading and parsing for portfolio-chat
// ABOUTME: Reads YAML or TOML files with ${VAR} expansion, then applies environment overrides

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/portfolio-chat/internal/chat"
	"github.com/2389/portfolio-chat/internal/provider"
)

// Config represents the complete portfolio-chat configuration
type Config struct {
	Provider ProviderConfig `yaml:"provider" toml:"provider"`
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Widget   WidgetConfig   `yaml:"widget" toml:"widget"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// ProviderConfig selects the response provider and configures the backend call
type ProviderConfig struct {
	APIBaseURL   string `yaml:"api_base_url" toml:"api_base_url"`
	ChatEndpoint string `yaml:"chat_endpoint" toml:"chat_endpoint"`
	MaxRetries   int    `yaml:"max_retries" toml:"max_retries"`
	UseMock      bool   `yaml:"use_mock" toml:"use_mock"`

	Timeout time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// ServerConfig holds the web widget listen address
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// WidgetConfig holds the texts shown by the widget
type WidgetConfig struct {
	Greeting     string   `yaml:"greeting" toml:"greeting"`
	QuickPrompts []string `yaml:"quick_prompts" toml:"quick_prompts"`
	ErrorMessage string   `yaml:"error_message" toml:"error_message"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			APIBaseURL:   provider.DefaultBaseURL,
			ChatEndpoint: provider.DefaultChatEndpoint,
			MaxRetries:   provider.DefaultMaxRetries,
			Timeout:      provider.DefaultTimeout,
			TimeoutRaw:   provider.DefaultTimeout.String(),
		},
		Server: ServerConfig{
			HTTPAddr: "127.0.0.1:8080",
		},
		Widget: WidgetConfig{
			Greeting:     chat.DefaultGreeting,
			QuickPrompts: chat.DefaultQuickPrompts(),
			ErrorMessage: chat.DefaultErrorMessage,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the file at path (skipped
// when path is empty), and the environment, in that order of precedence
// from lowest to highest. Files ending in .toml are parsed as TOML;
// anything else as YAML. lookup serves both ${VAR} expansion in the file and
// the environment overrides; a nil lookup means an empty environment.
func Load(path string, lookup LookupFunc) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := decodeFile(path, cfg, lookup); err != nil {
			return nil, err
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if lookup != nil {
		if err := cfg.ApplyEnv(lookup); err != nil {
			return nil, fmt.Errorf("applying environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func decodeFile(path string, cfg *Config, lookup LookupFunc) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data), lookup)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the values lookup returns.
// Unset variables are replaced with an empty string.
func expandEnvVars(s string, lookup LookupFunc) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if lookup == nil {
			return ""
		}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		v, _ := lookup(varName)
		return v
	})
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Provider.TimeoutRaw == "" {
		return nil
	}
	d, err := time.ParseDuration(cfg.Provider.TimeoutRaw)
	if err != nil {
		return fmt.Errorf("parsing provider.timeout %q: %w", cfg.Provider.TimeoutRaw, err)
	}
	cfg.Provider.Timeout = d
	return nil
}

// ApplyEnv overrides provider settings from API_BASE_URL, CHAT_ENDPOINT,
// MAX_RETRIES, TIMEOUT_MS, and USE_MOCK. Unset variables leave the current
// value alone; malformed ones are an error.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if v, ok := lookup("API_BASE_URL"); ok {
		c.Provider.APIBaseURL = v
	}
	if v, ok := lookup("CHAT_ENDPOINT"); ok {
		c.Provider.ChatEndpoint = v
	}
	if v, ok := lookup("MAX_RETRIES"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("MAX_RETRIES %q: %w", v, err)
		}
		c.Provider.MaxRetries = n
	}
	if v, ok := lookup("TIMEOUT_MS"); ok {
		ms, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("TIMEOUT_MS %q: %w", v, err)
		}
		c.Provider.Timeout = time.Duration(ms) * time.Millisecond
		c.Provider.TimeoutRaw = c.Provider.Timeout.String()
	}
	if v, ok := lookup("USE_MOCK"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("USE_MOCK %q: %w", v, err)
		}
		c.Provider.UseMock = b
	}
	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if err := c.ProviderOptions().Validate(); err != nil {
		return fmt.Errorf("provider: %w", err)
	}

	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if strings.TrimSpace(c.Widget.ErrorMessage) == "" {
		return fmt.Errorf("widget.error_message must not be empty")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// ProviderOptions converts the provider section into provider.Options.
func (c *Config) ProviderOptions() provider.Options {
	return provider.Options{
		BaseURL:      c.Provider.APIBaseURL,
		ChatEndpoint: c.Provider.ChatEndpoint,
		MaxRetries:   c.Provider.MaxRetries,
		Timeout:      c.Provider.Timeout,
		UseMock:      c.Provider.UseMock,
	}
}

// ChatOptions converts the widget section into controller options.
func (c *Config) ChatOptions() []chat.Option {
	opts := []chat.Option{
		chat.WithQuickPrompts(c.Widget.QuickPrompts),
		chat.WithErrorMessage(c.Widget.ErrorMessage),
	}
	if c.Widget.Greeting != "" {
		opts = append(opts, chat.WithGreeting(c.Widget.Greeting))
	}
	return opts
}
