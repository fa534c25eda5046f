package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
)

// isolateEnv points HOME at a temp dir and clears every variable Load reads.
func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, name := range []string{
		"MCPCHAT_CONFIG", "MCPCHAT_PROVIDER", "MCPCHAT_MODEL", "MCPCHAT_BASE_URL",
		"MCPCHAT_API_KEY", "MCPCHAT_ADDR", "OPENAI_API_KEY", "ANTHROPIC_API_KEY",
		"OPENROUTER_API_KEY", "OLLAMA_HOST",
	} {
		t.Setenv(name, "")
	}
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	home := isolateEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LLM.Provider != "ollama" {
		t.Errorf("provider = %q, want ollama", cfg.LLM.Provider)
	}
	if cfg.Orchestrator.MaxIterations != 10 {
		t.Errorf("max_iterations = %d, want 10", cfg.Orchestrator.MaxIterations)
	}
	if cfg.Orchestrator.ToolTimeout().Seconds() != 30 {
		t.Errorf("tool timeout = %v, want 30s", cfg.Orchestrator.ToolTimeout())
	}
	if want := filepath.Join(home, ".config", "mcpchat", "config.toml"); cfg.Path() != want {
		t.Errorf("Path() = %q, want %q", cfg.Path(), want)
	}
	if !strings.HasPrefix(cfg.Storage.Path, home) {
		t.Errorf("storage path %q not under home %q", cfg.Storage.Path, home)
	}
}

func TestLoadFile(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
[llm]
provider = "openai"
model = "gpt-4o"
api_key = "sk-file"
temperature = 0.2
system_prompt = "Be brief."

[orchestrator]
max_iterations = 4
tool_timeout_seconds = 5
validate_arguments = true

[server]
address = ":9000"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4o" || cfg.LLM.APIKey != "sk-file" {
		t.Errorf("llm section = %+v", cfg.LLM)
	}
	if cfg.LLM.Temperature == nil || *cfg.LLM.Temperature != 0.2 {
		t.Errorf("temperature = %v, want 0.2", cfg.LLM.Temperature)
	}
	if cfg.Orchestrator.MaxIterations != 4 || !cfg.Orchestrator.ValidateArguments {
		t.Errorf("orchestrator section = %+v", cfg.Orchestrator)
	}
	if cfg.Server.Address != ":9000" {
		t.Errorf("address = %q", cfg.Server.Address)
	}
	// Unset sections keep their defaults.
	if cfg.Logging.Level != "info" {
		t.Errorf("logging level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "explicit mcpchat variables",
			env: map[string]string{
				"MCPCHAT_PROVIDER": "anthropic",
				"MCPCHAT_MODEL":    "claude-sonnet-4-5-20250929",
				"MCPCHAT_API_KEY":  "sk-ant",
				"MCPCHAT_ADDR":     ":7000",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.LLM.Provider != "anthropic" || cfg.LLM.APIKey != "sk-ant" || cfg.Server.Address != ":7000" {
					t.Errorf("overrides not applied: %+v %+v", cfg.LLM, cfg.Server)
				}
			},
		},
		{
			name: "provider specific key fallback",
			env: map[string]string{
				"MCPCHAT_PROVIDER":   "openrouter",
				"OPENROUTER_API_KEY": "sk-or",
				"OPENAI_API_KEY":     "sk-openai",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.LLM.APIKey != "sk-or" {
					t.Errorf("api key = %q, want sk-or", cfg.LLM.APIKey)
				}
			},
		},
		{
			name: "explicit key wins over fallback",
			env: map[string]string{
				"MCPCHAT_PROVIDER": "openai",
				"MCPCHAT_API_KEY":  "sk-explicit",
				"OPENAI_API_KEY":   "sk-openai",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.LLM.APIKey != "sk-explicit" {
					t.Errorf("api key = %q, want sk-explicit", cfg.LLM.APIKey)
				}
			},
		},
		{
			name: "ollama host",
			env:  map[string]string{"OLLAMA_HOST": "http://gpu-box:11434"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.LLM.BaseURL != "http://gpu-box:11434" {
					t.Errorf("base url = %q", cfg.LLM.BaseURL)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[llm\nprovider = ")

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	hot := 3.0
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "unknown provider", mutate: func(c *Config) { c.LLM.Provider = "bard" }, wantErr: "unknown llm provider"},
		{name: "zero iterations", mutate: func(c *Config) { c.Orchestrator.MaxIterations = 0 }, wantErr: "max_iterations"},
		{name: "negative timeout", mutate: func(c *Config) { c.Orchestrator.ToolTimeoutSeconds = -1 }, wantErr: "tool_timeout_seconds"},
		{name: "temperature out of range", mutate: func(c *Config) { c.LLM.Temperature = &hot }, wantErr: "temperature"},
		{name: "ssh mode without key", mutate: func(c *Config) { c.Security.CredentialMode = SecuritySSHKey }, wantErr: "ssh_key_path"},
		{name: "unknown credential mode", mutate: func(c *Config) { c.Security.CredentialMode = "vault" }, wantErr: "credential_mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndWriteDefault(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "nested", "config.toml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if err := WriteDefault(path); err == nil {
		t.Error("WriteDefault() should refuse to overwrite")
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("template does not load: %v", err)
	}

	cfg := Default()
	cfg.LLM.Model = "qwen2.5"
	saved := filepath.Join(dir, "saved.toml")
	if err := cfg.Save(saved); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(saved)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("permissions = %v, want 0600", info.Mode().Perm())
	}
	loaded, err := Load(saved)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.LLM.Model != "qwen2.5" {
		t.Errorf("model = %q, want qwen2.5", loaded.LLM.Model)
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.LLM.APIKey = "sk-secret"
	if got := cfg.Redacted().LLM.APIKey; got == "sk-secret" {
		t.Error("API key not masked")
	}
	if cfg.LLM.APIKey != "sk-secret" {
		t.Error("Redacted modified the original")
	}
}

func testSigner(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	return signer
}

func TestEncryptStringRoundTrip(t *testing.T) {
	signer := testSigner(t)
	enc := NewEncryptionManager(EncryptionSSHKey, "")
	if err := enc.initializeWithSigner(signer); err != nil {
		t.Fatal(err)
	}

	sealed, err := enc.EncryptString("Bearer abc123")
	if err != nil {
		t.Fatal(err)
	}
	if !IsEncrypted(sealed) {
		t.Fatalf("sealed value %q lacks prefix", sealed)
	}

	opened, err := enc.DecryptString(sealed)
	if err != nil {
		t.Fatal(err)
	}
	if opened != "Bearer abc123" {
		t.Errorf("round trip = %q", opened)
	}

	// Same key derives the same AES key.
	again := NewEncryptionManager(EncryptionSSHKey, "")
	if err := again.initializeWithSigner(signer); err != nil {
		t.Fatal(err)
	}
	if opened, err := again.DecryptString(sealed); err != nil || opened != "Bearer abc123" {
		t.Errorf("second manager = %q, %v", opened, err)
	}

	// A different key must not decrypt.
	other := NewEncryptionManager(EncryptionSSHKey, "")
	if err := other.initializeWithSigner(testSigner(t)); err != nil {
		t.Fatal(err)
	}
	if _, err := other.DecryptString(sealed); err == nil {
		t.Error("expected decryption failure with a different key")
	}

	if plain, _ := enc.DecryptString("not-encrypted"); plain != "not-encrypted" {
		t.Errorf("plain passthrough = %q", plain)
	}
}

func TestCredentialStorePlainText(t *testing.T) {
	dir := t.TempDir()

	store := NewCredentialStore(SecurityPlainText, "")
	store.Set("openai", "sk-1")
	store.Set("anthropic", "sk-2")
	if err := store.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded := NewCredentialStore(SecurityPlainText, "")
	if err := loaded.Load(dir); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Get("openai") != "sk-1" || loaded.Get("anthropic") != "sk-2" {
		t.Errorf("loaded credentials = %v", loaded.credentials)
	}

	key, err := loaded.ResolveAPIKey("openai", "")
	if err != nil || key != "sk-1" {
		t.Errorf("ResolveAPIKey fallback = %q, %v", key, err)
	}
	key, err = loaded.ResolveAPIKey("openai", "sk-config")
	if err != nil || key != "sk-config" {
		t.Errorf("ResolveAPIKey configured = %q, %v", key, err)
	}

	if _, err := loaded.Open("enc:AAAA"); err == nil {
		t.Error("plaintext store should refuse encrypted values")
	}
	if sealed, _ := loaded.Seal("value"); sealed != "value" {
		t.Errorf("plaintext Seal = %q", sealed)
	}
}

func TestCredentialStoreSSHKey(t *testing.T) {
	dir := t.TempDir()
	store := NewCredentialStore(SecuritySSHKey, "")
	store.encManager = NewEncryptionManager(EncryptionSSHKey, "")
	if err := store.encManager.initializeWithSigner(testSigner(t)); err != nil {
		t.Fatal(err)
	}

	store.Set("openrouter", "sk-or")
	if err := store.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "sk-or") {
		t.Error("credentials file contains plaintext key")
	}

	store.credentials = map[string]string{}
	if err := store.Load(dir); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if store.Get("openrouter") != "sk-or" {
		t.Errorf("Get() = %q", store.Get("openrouter"))
	}

	sealed, err := store.Seal("token")
	if err != nil {
		t.Fatal(err)
	}
	if opened, err := store.Open(sealed); err != nil || opened != "token" {
		t.Errorf("Open(Seal()) = %q, %v", opened, err)
	}
}

func TestNewLogger(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "mcpchat.log")
	logger, err := NewLogger(LoggingConfig{Level: "debug", File: logFile}, false)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file missing entry: %s", data)
	}
	info, _ := os.Stat(logFile)
	if info.Mode().Perm() != 0600 {
		t.Errorf("log file permissions = %v, want 0600", info.Mode().Perm())
	}

	if _, err := NewLogger(LoggingConfig{Level: "loud"}, false); err == nil {
		t.Error("expected error for invalid level")
	}
}

func writeSSHKey(t *testing.T, path, passphrase string) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "test")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "test", []byte(passphrase))
	}
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, string(pem.EncodeToMemory(block)))
}

func TestLoadSSHSigner(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain")
	locked := filepath.Join(dir, "locked")
	writeSSHKey(t, plain, "")
	writeSSHKey(t, locked, "hunter2")
	writeFile(t, filepath.Join(dir, "garbage"), "not a key")

	if _, err := LoadSSHSigner(plain, ""); err != nil {
		t.Errorf("plain key: %v", err)
	}
	if _, err := LoadSSHSigner(locked, ""); !errors.Is(err, ErrPassphraseRequired) {
		t.Errorf("locked key without passphrase: %v", err)
	}
	if _, err := LoadSSHSigner(locked, "wrong"); err == nil {
		t.Error("expected error for wrong passphrase")
	}
	if _, err := LoadSSHSigner(locked, "hunter2"); err != nil {
		t.Errorf("locked key with passphrase: %v", err)
	}
	if _, err := LoadSSHSigner(filepath.Join(dir, "garbage"), ""); err == nil || errors.Is(err, ErrPassphraseRequired) {
		t.Errorf("garbage key: %v", err)
	}
	if _, err := LoadSSHSigner(filepath.Join(dir, "missing"), ""); err == nil {
		t.Error("expected error for missing key")
	}
}

func TestLoadFindsSSHKey(t *testing.T) {
	home := isolateEnv(t)
	writeSSHKey(t, filepath.Join(home, ".ssh", "id_rsa"), "")
	writeSSHKey(t, filepath.Join(home, ".ssh", "id_ed25519"), "")
	writeFile(t, filepath.Join(home, ".ssh", "mcpchat_ed25519"), "ssh-ed25519 AAAA public only")

	if got := FindSSHKeys(); len(got) != 2 || filepath.Base(got[0]) != "id_ed25519" {
		t.Fatalf("FindSSHKeys = %v", got)
	}

	path := filepath.Join(home, "config.toml")
	writeFile(t, path, "[security]\ncredential_mode = \"ssh_key\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if filepath.Base(cfg.Security.SSHKeyPath) != "id_ed25519" {
		t.Errorf("SSHKeyPath = %q", cfg.Security.SSHKeyPath)
	}
}
