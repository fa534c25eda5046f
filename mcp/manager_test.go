package mcp

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/tidwall/gjson"
)

func newTestServer(t *testing.T, name string, tools ...string) *httptest.Server {
	t.Helper()
	s := server.NewMCPServer(name, "1.0.0", server.WithToolCapabilities(true))
	for _, toolName := range tools {
		s.AddTool(
			mcptypes.NewTool(toolName,
				mcptypes.WithDescription(name+" "+toolName),
				mcptypes.WithNumber("days", mcptypes.Required()),
			),
			func(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
				if toolName == "broken" {
					return mcptypes.NewToolResultError("upstream API down"), nil
				}
				days := req.GetInt("days", 0)
				return mcptypes.NewToolResultText(name + ":" + toolName + ":" + strings.Repeat("x", days)), nil
			},
		)
	}
	ts := server.NewTestStreamableHTTPServer(s)
	t.Cleanup(ts.Close)
	return ts
}

func remote(id, url string) ServerConfig {
	return ServerConfig{ID: id, Name: id, Transport: TransportStreamableHTTP, URL: url + "/mcp", Enabled: true}
}

func TestManagerStartListAndCall(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	garmin := newTestServer(t, "garmin", "get_steps", "broken")
	weather := newTestServer(t, "weather", "get_forecast", "get_steps")

	m := NewManager(nil)
	defer m.Shutdown(context.Background())

	err := m.Start(ctx, []ServerConfig{
		remote("garmin", garmin.URL),
		remote("weather", weather.URL),
		{ID: "disabled", Transport: TransportStdio, Command: "does-not-matter", Enabled: false},
		{ID: "bad", Transport: TransportStreamableHTTP, URL: "http://127.0.0.1:1/mcp", Enabled: true},
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if got := m.Running(); len(got) != 2 || got[0] != "garmin" || got[1] != "weather" {
		t.Errorf("Running() = %v", got)
	}
	failed := m.Failed()
	if _, ok := failed["bad"]; !ok || len(failed) != 1 {
		t.Errorf("Failed() = %v, want only bad", failed)
	}

	tools := m.ListTools()
	var names []string
	for _, tool := range tools {
		names = append(names, tool.Name+"@"+tool.ProviderID)
	}
	want := []string{"broken@garmin", "get_forecast@weather", "get_steps@garmin"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("ListTools() = %v, want %v", names, want)
	}
	if !gjson.GetBytes(tools[2].InputSchema, "properties.days").Exists() {
		t.Errorf("schema = %s", tools[2].InputSchema)
	}

	raw, err := m.CallTool(ctx, "garmin", "get_steps", map[string]any{"days": 3})
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if got := gjson.GetBytes(raw, "content.0.text").String(); got != "garmin:get_steps:xxx" {
		t.Errorf("result text = %q (raw %s)", got, raw)
	}

	// Unqualified calls resolve to the owning server.
	raw, err = m.CallTool(ctx, "", "get_forecast", map[string]any{"days": 1})
	if err != nil {
		t.Fatal(err)
	}
	if got := gjson.GetBytes(raw, "content.0.text").String(); got != "weather:get_forecast:x" {
		t.Errorf("resolved result = %q", got)
	}

	raw, err = m.CallTool(ctx, "garmin", "broken", map[string]any{"days": 1})
	if err != nil {
		t.Fatalf("tool-level error must not be a Go error: %v", err)
	}
	if !gjson.GetBytes(raw, "isError").Bool() {
		t.Errorf("isError not set: %s", raw)
	}

	if _, err := m.CallTool(ctx, "missing", "get_steps", nil); err == nil {
		t.Error("expected error for unknown server")
	}

	statuses := m.Statuses()
	if len(statuses) != 3 || statuses[0].ID != "bad" || statuses[0].Error == "" || statuses[1].Tools != 2 {
		t.Errorf("Statuses() = %+v", statuses)
	}
}

func TestManagerStopAndShutdown(t *testing.T) {
	ctx := context.Background()
	ts := newTestServer(t, "one", "ping")

	m := NewManager(nil)
	if err := m.StartServer(ctx, remote("one", ts.URL)); err != nil {
		t.Fatal(err)
	}
	if err := m.StartServer(ctx, remote("one", ts.URL)); err == nil {
		t.Error("starting a running server twice should fail")
	}

	if err := m.StopServer(ctx, "one"); err != nil {
		t.Fatalf("StopServer() error = %v", err)
	}
	if len(m.ListTools()) != 0 || len(m.Running()) != 0 {
		t.Error("stopped server still listed")
	}
	if err := m.StopServer(ctx, "one"); err == nil {
		t.Error("stopping an unknown server should fail")
	}

	if err := m.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() on empty manager = %v", err)
	}
}

func TestManagerStartCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewManager(nil)
	err := m.Start(ctx, []ServerConfig{{ID: "a", Transport: TransportStdio, Command: "x", Enabled: true}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Start() error = %v, want context.Canceled", err)
	}
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServerConfig
		wantErr string
	}{
		{"stdio ok", ServerConfig{ID: "fs", Transport: TransportStdio, Command: "npx"}, ""},
		{"sse ok", ServerConfig{ID: "s", Transport: TransportSSE, URL: "http://x/sse"}, ""},
		{"http ok", ServerConfig{ID: "h", Transport: TransportStreamableHTTP, URL: "http://x/mcp"}, ""},
		{"missing id", ServerConfig{Transport: TransportStdio, Command: "npx"}, "id is required"},
		{"stdio without command", ServerConfig{ID: "fs", Transport: TransportStdio}, "command is required"},
		{"remote without url", ServerConfig{ID: "s", Transport: TransportSSE}, "url is required"},
		{"unknown transport", ServerConfig{ID: "w", Transport: "websocket"}, "unknown transport"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConvertTool(t *testing.T) {
	tool := mcptypes.NewTool("read_file",
		mcptypes.WithDescription("Read a file"),
		mcptypes.WithString("path", mcptypes.Required()),
	)
	d := ConvertTool("fs", tool)

	if d.Name != "read_file" || d.Description != "Read a file" || d.ProviderID != "fs" {
		t.Errorf("descriptor = %+v", d)
	}
	if gjson.GetBytes(d.InputSchema, "type").String() != "object" ||
		gjson.GetBytes(d.InputSchema, "required.0").String() != "path" {
		t.Errorf("schema = %s", d.InputSchema)
	}

	raw := mcptypes.NewToolWithRawSchema("raw", "raw schema", []byte(`{"type":"object","properties":{"q":{"type":"string"}}}`))
	if got := string(ConvertTool("x", raw).InputSchema); !strings.Contains(got, `"q"`) {
		t.Errorf("raw schema = %s", got)
	}
}
