// Package mcp starts and supervises MCP servers and exposes their tools as
// model.ToolDescriptor values with a model.ToolCaller for dispatch.
package mcp

import (
	"fmt"
	"os/exec"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Transport names accepted in a ServerConfig.
const (
	TransportStdio          = "stdio"
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamable-http"
)

// ServerConfig describes one MCP server. Stdio servers use Command, Args,
// Env and WorkingDir; remote servers use URL and Headers.
type ServerConfig struct {
	ID         string            `json:"id" yaml:"id"`
	Name       string            `json:"name" yaml:"name"`
	Transport  string            `json:"transport" yaml:"transport"`
	Command    string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args       []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env        map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	URL        string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers    map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	WorkingDir string            `json:"working_dir,omitempty" yaml:"working_dir,omitempty"`
	Enabled    bool              `json:"enabled" yaml:"enabled"`
}

// Validate checks that the fields required by the transport are present.
func (c ServerConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("server id is required")
	}
	switch c.Transport {
	case TransportStdio:
		if c.Command == "" {
			return fmt.Errorf("server %s: command is required for stdio transport", c.ID)
		}
	case TransportSSE, TransportStreamableHTTP:
		if c.URL == "" {
			return fmt.Errorf("server %s: url is required for %s transport", c.ID, c.Transport)
		}
	default:
		return fmt.Errorf("server %s: unknown transport %q (want stdio, sse or streamable-http)", c.ID, c.Transport)
	}
	return nil
}

// IsRemote reports whether the server is reached over HTTP.
func (c ServerConfig) IsRemote() bool {
	return c.Transport == TransportSSE || c.Transport == TransportStreamableHTTP
}

type serverProcess struct {
	ID      string
	Name    string
	Process *exec.Cmd // nil for remote servers
	Client  *client.Client
	Tools   []mcptypes.Tool
	Remote  bool
	URL     string
}
