package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const FileName = "goalline.yml"

// Config models goalline.yml.
type Config struct {
	Editor struct {
		Command  string `yaml:"command" mapstructure:"command"`
		Timezone string `yaml:"timezone" mapstructure:"timezone"`
	} `yaml:"editor" mapstructure:"editor"`
	Database struct {
		Path string `yaml:"path,omitempty" mapstructure:"path"`
	} `yaml:"database" mapstructure:"database"`
	Outline struct {
		IncludeArchived bool `yaml:"include_archived" mapstructure:"include_archived"`
	} `yaml:"outline" mapstructure:"outline"`
	Log struct {
		Level  string `yaml:"level" mapstructure:"level"`
		Format string `yaml:"format" mapstructure:"format"`
	} `yaml:"log" mapstructure:"log"`
	Server struct {
		Addr      string `yaml:"addr" mapstructure:"addr"`
		BasePath  string `yaml:"base_path" mapstructure:"base_path"`
		JWTSecret string `yaml:"jwt_secret,omitempty" mapstructure:"jwt_secret"`
	} `yaml:"server" mapstructure:"server"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty" mapstructure:"webhooks"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url" mapstructure:"url"`
	Events         []string `yaml:"events,omitempty" mapstructure:"events"`
	Secret         string   `yaml:"secret,omitempty" mapstructure:"secret"`
	Enabled        *bool    `yaml:"enabled,omitempty" mapstructure:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty" mapstructure:"timeout_seconds"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Editor.Command) == "" {
		return fmt.Errorf("config.editor.command is required")
	}
	if c.Editor.Timezone != "" && c.Editor.Timezone != "Local" {
		if _, err := time.LoadLocation(c.Editor.Timezone); err != nil {
			return fmt.Errorf("config.editor.timezone: %w", err)
		}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level must be one of debug, info, warn, error")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("config.log.format must be console or json")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must be positive", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return fmt.Sprintf(defaultTemplate, defaultEditor())
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault())).Decode(&cfg)
	return &cfg
}

func defaultEditor() string {
	if v := strings.TrimSpace(os.Getenv("EDITOR")); v != "" {
		return v
	}
	return "vim"
}

// FromYAML parses and validates config from raw YAML bytes, on top of the defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToYAML renders cfg as goalline.yml content.
func ToYAML(cfg *Config) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Load reads goalline.yml from the workspace when present, layering GOALLINE_* env
// variables (GOALLINE_EDITOR_COMMAND, GOALLINE_LOG_LEVEL, ...) over file and defaults.
func Load(workspace string) (*Config, error) {
	cfg := Default()
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("GOALLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	path := Path(workspace)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("editor.command", cfg.Editor.Command)
	v.SetDefault("editor.timezone", cfg.Editor.Timezone)
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("outline.include_archived", cfg.Outline.IncludeArchived)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.base_path", cfg.Server.BasePath)
	v.SetDefault("server.jwt_secret", cfg.Server.JWTSecret)
}

const defaultTemplate = `editor:
  command: %s
  timezone: Local

outline:
  include_archived: false

log:
  level: info
  format: console

server:
  addr: 127.0.0.1:8080
  base_path: /v0

# webhooks:
#   - url: https://example.test/hooks/goalline
#     events: [goal.*]
#     secret: change-me
#     timeout_seconds: 5
`
