package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "ollama",
			Model:    "llama3.1:latest",
		},
		Orchestrator: OrchestratorConfig{
			MaxIterations:      10,
			ToolTimeoutSeconds: 30,
		},
		Server: ServerConfig{
			Address: "127.0.0.1:8080",
		},
		Storage: StorageConfig{
			Path: filepath.Join(GetDefaultDataDir(), "mcpchat.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Security: SecurityConfig{
			CredentialMode: SecurityPlainText,
		},
	}
}

func GenerateConfigTemplate() string {
	return `# mcpchat configuration
# Location: ~/.config/mcpchat/config.toml (override with $MCPCHAT_CONFIG)
# This file uses TOML format: https://toml.io

[llm]
# One of: ollama, openai, openrouter, anthropic
provider = "ollama"
model = "llama3.1:latest"

# Leave empty for the provider default
base_url = ""

# Prefer MCPCHAT_API_KEY or the provider's usual variable
# (OPENAI_API_KEY, ANTHROPIC_API_KEY, OPENROUTER_API_KEY).
# Values prefixed with "enc:" are decrypted with the SSH key below.
api_key = ""

max_tokens = 0
system_prompt = ""

[orchestrator]
# Model turns allowed per user message before giving up
max_iterations = 10
tool_timeout_seconds = 30
# Validate tool arguments against each tool's JSON schema before calling it
validate_arguments = false

[server]
address = "127.0.0.1:8080"

[storage]
path = "~/.local/share/mcpchat/mcpchat.db"

[logging]
# debug, info, warn or error
level = "info"
# Optional log file (written with 0600 permissions)
file = ""

[security]
# plaintext or ssh_key
credential_mode = "plaintext"
ssh_key_path = ""
`
}

// WriteDefault writes the template to path unless a file already exists.
func WriteDefault(path string) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if FileExists(path) {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := os.WriteFile(path, []byte(GenerateConfigTemplate()), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
