package storage

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"mcpchat/mcp"
)

type yamlServer struct {
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	Transport  string            `yaml:"transport"`
	Command    string            `yaml:"command"`
	Args       []string          `yaml:"args"`
	Env        map[string]string `yaml:"env"`
	URL        string            `yaml:"url"`
	Headers    map[string]string `yaml:"headers"`
	WorkingDir string            `yaml:"working_dir"`
	Enabled    *bool             `yaml:"enabled"`
}

type yamlFile struct {
	Servers []yamlServer `yaml:"servers"`
}

// ImportYAML reads server definitions from a YAML file of the form
//
//	servers:
//	  - name: filesystem
//	    command: npx -y @modelcontextprotocol/server-filesystem /tmp
//	  - name: search
//	    transport: streamable-http
//	    url: https://example.com/mcp
//
// Transport defaults to stdio when a command is given and to
// streamable-http when only a url is given. A command without args is split
// shell-style. Missing ids get a generated uuid and servers are enabled
// unless enabled: false is set.
func ImportYAML(path string) ([]mcp.ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	servers, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return servers, nil
}

// ParseYAML is ImportYAML on in-memory data.
func ParseYAML(data []byte) ([]mcp.ServerConfig, error) {
	var file yamlFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	if len(file.Servers) == 0 {
		return nil, fmt.Errorf("no servers defined")
	}

	seen := make(map[string]bool, len(file.Servers))
	configs := make([]mcp.ServerConfig, 0, len(file.Servers))
	for i, s := range file.Servers {
		cfg, err := s.toConfig()
		if err != nil {
			return nil, fmt.Errorf("servers[%d]: %w", i, err)
		}
		if seen[cfg.ID] {
			return nil, fmt.Errorf("servers[%d]: duplicate id %q", i, cfg.ID)
		}
		seen[cfg.ID] = true
		configs = append(configs, cfg)
	}
	return configs, nil
}

func (s yamlServer) toConfig() (mcp.ServerConfig, error) {
	cfg := mcp.ServerConfig{
		ID:         s.ID,
		Name:       s.Name,
		Transport:  s.Transport,
		Command:    s.Command,
		Args:       s.Args,
		Env:        s.Env,
		URL:        s.URL,
		Headers:    s.Headers,
		WorkingDir: s.WorkingDir,
		Enabled:    s.Enabled == nil || *s.Enabled,
	}

	if cfg.Transport == "" {
		switch {
		case cfg.Command != "":
			cfg.Transport = mcp.TransportStdio
		case cfg.URL != "":
			cfg.Transport = mcp.TransportStreamableHTTP
		}
	}

	if cfg.Transport == mcp.TransportStdio && len(cfg.Args) == 0 && cfg.Command != "" {
		parts, err := mcp.SplitArgs(cfg.Command)
		if err != nil {
			return cfg, fmt.Errorf("command: %w", err)
		}
		if len(parts) > 0 {
			cfg.Command, cfg.Args = parts[0], parts[1:]
		}
	}

	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Name == "" {
		cfg.Name = cfg.ID
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Import validates and saves every server, stopping at the first failure.
// It returns the number of servers saved.
func (s *ServerStore) Import(configs []mcp.ServerConfig) (int, error) {
	for i, cfg := range configs {
		if err := s.Save(cfg); err != nil {
			return i, err
		}
	}
	return len(configs), nil
}
