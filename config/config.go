// Package config loads mcpchat settings from a TOML file, a .env file and
// environment variables, and manages locally stored credentials.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// SupportedProviders lists the [llm] provider names accepted by Validate.
var SupportedProviders = []string{"ollama", "openai", "openrouter", "anthropic"}

type LLMConfig struct {
	Provider     string   `toml:"provider"`
	Model        string   `toml:"model"`
	BaseURL      string   `toml:"base_url"`
	APIKey       string   `toml:"api_key"`
	Temperature  *float64 `toml:"temperature,omitempty"`
	MaxTokens    int      `toml:"max_tokens"`
	SystemPrompt string   `toml:"system_prompt"`
}

type OrchestratorConfig struct {
	MaxIterations      int  `toml:"max_iterations"`
	ToolTimeoutSeconds int  `toml:"tool_timeout_seconds"`
	ValidateArguments  bool `toml:"validate_arguments"`
}

// ToolTimeout returns the per-call tool timeout.
func (o OrchestratorConfig) ToolTimeout() time.Duration {
	return time.Duration(o.ToolTimeoutSeconds) * time.Second
}

type ServerConfig struct {
	Address string `toml:"address"`
}

type StorageConfig struct {
	// Path is the sqlite database file holding MCP server definitions.
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type SecurityConfig struct {
	CredentialMode SecurityMethod `toml:"credential_mode"`
	SSHKeyPath     string         `toml:"ssh_key_path"`
}

type Config struct {
	LLM          LLMConfig          `toml:"llm"`
	Orchestrator OrchestratorConfig `toml:"orchestrator"`
	Server       ServerConfig       `toml:"server"`
	Storage      StorageConfig      `toml:"storage"`
	Logging      LoggingConfig      `toml:"logging"`
	Security     SecurityConfig     `toml:"security"`

	path string
}

// Path returns the file the configuration was loaded from. The file may not
// exist when only defaults and environment overrides are in use.
func (c *Config) Path() string {
	return c.path
}

// DataDir returns the directory holding the database and credential files.
func (c *Config) DataDir() string {
	if c.Storage.Path == "" {
		return GetDefaultDataDir()
	}
	return filepath.Dir(ExpandPath(c.Storage.Path))
}

// ResolvePath picks the config file location: the explicit path, then
// $MCPCHAT_CONFIG, then the platform default.
func ResolvePath(path string) string {
	if path != "" {
		return ExpandPath(path)
	}
	if env := os.Getenv("MCPCHAT_CONFIG"); env != "" {
		return ExpandPath(env)
	}
	return GetConfigFilePath()
}

// Load reads .env (if present), the TOML config file (if present) and
// environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	cfg.path = ResolvePath(path)

	if FileExists(cfg.path) {
		if _, err := toml.DecodeFile(cfg.path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", cfg.path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.Storage.Path = ExpandPath(cfg.Storage.Path)
	cfg.Logging.File = ExpandPath(cfg.Logging.File)
	cfg.Security.SSHKeyPath = ExpandPath(cfg.Security.SSHKeyPath)
	if cfg.Security.CredentialMode == SecuritySSHKey && cfg.Security.SSHKeyPath == "" {
		if keys := FindSSHKeys(); len(keys) > 0 {
			cfg.Security.SSHKeyPath = keys[0]
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MCPCHAT_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("MCPCHAT_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("MCPCHAT_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("MCPCHAT_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("MCPCHAT_ADDR"); v != "" {
		c.Server.Address = v
	}

	if c.LLM.APIKey == "" {
		if env := providerKeyEnv(c.LLM.Provider); env != "" {
			c.LLM.APIKey = os.Getenv(env)
		}
	}
	if c.LLM.BaseURL == "" && c.LLM.Provider == "ollama" {
		c.LLM.BaseURL = os.Getenv("OLLAMA_HOST")
	}
}

// providerKeyEnv returns the conventional API key variable for a provider.
func providerKeyEnv(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openrouter":
		return "OPENROUTER_API_KEY"
	default:
		return ""
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if !slices.Contains(SupportedProviders, c.LLM.Provider) {
		return fmt.Errorf("unknown llm provider %q (supported: %s)", c.LLM.Provider, strings.Join(SupportedProviders, ", "))
	}
	if c.Orchestrator.MaxIterations <= 0 {
		return fmt.Errorf("orchestrator.max_iterations must be positive, got %d", c.Orchestrator.MaxIterations)
	}
	if c.Orchestrator.ToolTimeoutSeconds <= 0 {
		return fmt.Errorf("orchestrator.tool_timeout_seconds must be positive, got %d", c.Orchestrator.ToolTimeoutSeconds)
	}
	if t := c.LLM.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %v", *t)
	}
	switch c.Security.CredentialMode {
	case SecurityPlainText:
	case SecuritySSHKey:
		if c.Security.SSHKeyPath == "" {
			return fmt.Errorf("security.ssh_key_path is required when credential_mode is %q", SecuritySSHKey)
		}
	default:
		return fmt.Errorf("unknown security.credential_mode %q", c.Security.CredentialMode)
	}
	return nil
}

// Save writes the configuration as TOML with 0600 permissions.
func (c *Config) Save(path string) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Redacted returns a copy safe to print, with the API key masked.
func (c *Config) Redacted() Config {
	out := *c
	if out.LLM.APIKey != "" {
		out.LLM.APIKey = "********"
	}
	return out
}
