// Package config loads labassist settings from .env files, an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/nstogner/labassist/pkg/domain"
)

// DefaultInstructions is the tutor prompt given to a new assistant.
const DefaultInstructions = "You are a helpful tutor.\n\n" +
	"Use the knowledge in the attached files to answer questions.\n\n" +
	"Cite sources where possible.\n"

// Config is the resolved configuration.
type Config struct {
	OpenAI    OpenAI                 `mapstructure:"openai"`
	Gemini    Gemini                 `mapstructure:"gemini"`
	Assistant domain.AssistantConfig `mapstructure:"assistant"`
	Notes     Notes                  `mapstructure:"notes"`
	Cleanup   Cleanup                `mapstructure:"cleanup"`

	// StateDir holds the identity files (.assistant, .last_thread).
	StateDir string `mapstructure:"state_dir"`
	// DataDir holds reference documents.
	DataDir string `mapstructure:"data_dir"`
	// Journal is the SQLite journal path, relative to StateDir unless absolute.
	Journal  string `mapstructure:"journal"`
	LogLevel string `mapstructure:"log_level"`
	// LogFile receives logs while the chat UI owns the terminal.
	LogFile string `mapstructure:"log_file"`
}

type OpenAI struct {
	APIKey       string `mapstructure:"api_key"`
	Organization string `mapstructure:"organization"`
	BaseURL      string `mapstructure:"base_url"`
}

type Gemini struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type Notes struct {
	// Provider is "openai" or "gemini".
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	Output   string `mapstructure:"output"`
}

type Cleanup struct {
	MaxAgeHours float64 `mapstructure:"max_age_hours"`
}

// Options locates the configuration sources. Empty fields use defaults.
type Options struct {
	// ConfigFile is a YAML file. When empty, labassist.yaml is looked up in
	// the working directory and is optional.
	ConfigFile string
	// EnvFile is loaded before the environment is read. When empty, .env in
	// the working directory is loaded if present.
	EnvFile string
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"openai.api_key":      "OPENAI_API_KEY",
	"openai.organization": "OPENAI_ORG",
	"openai.base_url":     "OPENAI_BASE_URL",
	"gemini.api_key":      "GEMINI_API_KEY",
	"log_level":           "LOG_LEVEL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("assistant.name", "Practice Lab Assistant")
	v.SetDefault("assistant.model", "gpt-4o-mini")
	v.SetDefault("assistant.instructions", DefaultInstructions)
	v.SetDefault("assistant.tools", []string{domain.ToolFileSearch})
	v.SetDefault("assistant.temperature", 0.7)
	v.SetDefault("assistant.top_p", 1.0)
	v.SetDefault("notes.provider", "openai")
	v.SetDefault("notes.model", "gpt-4o-mini")
	v.SetDefault("notes.output", "exam_notes.json")
	v.SetDefault("cleanup.max_age_hours", 24)
	v.SetDefault("state_dir", ".")
	v.SetDefault("data_dir", "data")
	v.SetDefault("journal", "labassist.db")
	v.SetDefault("log_level", "info")
}

// Load resolves the configuration and validates it. A missing API key or an
// out-of-range value is a *domain.ConfigError.
func Load(opts Options) (*Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("LABASSIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName("labassist")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Assistant.Instructions = expandEscapes(cfg.Assistant.Instructions)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return &domain.ConfigError{Key: "env-file", Reason: err.Error()}
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return &domain.ConfigError{Key: ".env", Reason: err.Error()}
		}
	}
	return nil
}

// expandEscapes turns literal "\n" sequences, common in env values, into
// newlines.
func expandEscapes(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}

// Validate checks required values and ranges.
func (c *Config) Validate() error {
	switch {
	case c.OpenAI.APIKey == "":
		return &domain.ConfigError{Key: "OPENAI_API_KEY", Reason: "not set"}
	case c.Assistant.Name == "":
		return &domain.ConfigError{Key: "assistant.name", Reason: "must not be empty"}
	case c.Assistant.Model == "":
		return &domain.ConfigError{Key: "assistant.model", Reason: "must not be empty"}
	case c.Assistant.Temperature < 0 || c.Assistant.Temperature > 2:
		return &domain.ConfigError{Key: "assistant.temperature", Reason: fmt.Sprintf("%v is outside [0, 2]", c.Assistant.Temperature)}
	case c.Assistant.TopP < 0 || c.Assistant.TopP > 1:
		return &domain.ConfigError{Key: "assistant.top_p", Reason: fmt.Sprintf("%v is outside [0, 1]", c.Assistant.TopP)}
	case c.Cleanup.MaxAgeHours < 0:
		return &domain.ConfigError{Key: "cleanup.max_age_hours", Reason: "must not be negative"}
	}

	switch c.Notes.Provider {
	case "openai":
	case "gemini":
		if c.Gemini.APIKey == "" {
			return &domain.ConfigError{Key: "GEMINI_API_KEY", Reason: "required when notes.provider is gemini"}
		}
	default:
		return &domain.ConfigError{Key: "notes.provider", Reason: fmt.Sprintf("unknown provider %q", c.Notes.Provider)}
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return &domain.ConfigError{Key: "log_level", Reason: err.Error()}
	}
	for _, t := range c.Assistant.Tools {
		if t != domain.ToolFileSearch && t != domain.ToolCodeInterpreter {
			return &domain.ConfigError{Key: "assistant.tools", Reason: fmt.Sprintf("unknown tool %q", t)}
		}
	}
	return nil
}
