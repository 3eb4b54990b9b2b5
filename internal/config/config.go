// Package config loads the service configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr     = ":8080"
	DefaultDir      = "workflows"
	DefaultWorkflow = "workflow.json"
	DefaultModel    = "gpt-4o"
	DefaultBaseURL  = "https://api.openai.com"
	DefaultTimeout  = 60 * time.Second
	DefaultMaxInput = 4096
)

// Config is the root of parley.yaml.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Workflows  WorkflowsConfig  `yaml:"workflows"`
	Completion CompletionConfig `yaml:"completion"`
	Events     EventsConfig     `yaml:"events"`
	Log        LogConfig        `yaml:"log"`
	Input      InputConfig      `yaml:"input"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

type WorkflowsConfig struct {
	Dir     string `yaml:"dir" validate:"required"`
	Default string `yaml:"default" validate:"required"`
}

type CompletionConfig struct {
	BaseURL      string        `yaml:"base_url" validate:"required,url"`
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model" validate:"required"`
	Timeout      time.Duration `yaml:"timeout" validate:"gt=0"`
	SystemPrompt string        `yaml:"system_prompt"`
}

// EventsConfig selects the event bus. An empty RedisAddr keeps events in process.
type EventsConfig struct {
	RedisAddr     string `yaml:"redis_addr" validate:"omitempty,hostname_port"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db" validate:"gte=0"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
}

type InputConfig struct {
	MaxSize int `yaml:"max_size" validate:"gt=0"`
}

// Default returns the configuration used when no file is given,
// with the completion key and model taken from the environment.
func Default() *Config {
	model := os.Getenv("MODEL_ID")
	if model == "" {
		model = DefaultModel
	}
	return &Config{
		Server:    ServerConfig{Addr: DefaultAddr},
		Workflows: WorkflowsConfig{Dir: DefaultDir, Default: DefaultWorkflow},
		Completion: CompletionConfig{
			BaseURL: DefaultBaseURL,
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   model,
			Timeout: DefaultTimeout,
		},
		Log:   LogConfig{Level: "info"},
		Input: InputConfig{MaxSize: DefaultMaxInput},
	}
}

// Load reads a YAML file over the defaults. ${VAR} references are expanded from the
// environment before parsing. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := Parse(cfg, data); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data into cfg, keeping the values of keys absent from data.
func Parse(cfg *Config, data []byte) error {
	expanded := os.ExpandEnv(string(data))
	return yaml.Unmarshal([]byte(expanded), cfg)
}

// Validate checks required fields and ranges.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
