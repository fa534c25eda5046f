package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"mcpchat/model"
)

// Manager starts configured servers, aggregates their tools and routes tool
// calls. It implements model.ToolCaller and is safe for concurrent use.
type Manager struct {
	mu         sync.RWMutex
	processes  *ProcessManager
	aggregator *ToolAggregator
	logger     *zap.Logger
	order      []string         // start order of running servers
	failed     map[string]error // servers that failed to start
}

var _ model.ToolCaller = (*Manager)(nil)

func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("mcp")
	pm := NewProcessManager(logger)
	return &Manager{
		processes:  pm,
		aggregator: NewToolAggregator(pm, logger),
		logger:     logger,
		failed:     make(map[string]error),
	}
}

// Start starts every enabled server. A server that fails is recorded in
// Failed and logged; the others keep working. Only context cancellation is
// returned as an error.
func (m *Manager) Start(ctx context.Context, servers []ServerConfig) error {
	for _, cfg := range servers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !cfg.Enabled {
			continue
		}
		if err := m.StartServer(ctx, cfg); err != nil {
			m.logger.Warn("failed to start mcp server", zap.String("server", cfg.ID), zap.Error(err))
		}
	}
	return nil
}

// StartServer starts a single server.
func (m *Manager) StartServer(ctx context.Context, cfg ServerConfig) error {
	if err := m.processes.StartServer(ctx, cfg); err != nil {
		m.mu.Lock()
		m.failed[cfg.ID] = err
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	delete(m.failed, cfg.ID)
	if !slices.Contains(m.order, cfg.ID) {
		m.order = append(m.order, cfg.ID)
	}
	m.mu.Unlock()
	return nil
}

// StopServer stops a running server and forgets any recorded failure.
func (m *Manager) StopServer(ctx context.Context, serverID string) error {
	m.mu.Lock()
	delete(m.failed, serverID)
	m.order = slices.DeleteFunc(m.order, func(id string) bool { return id == serverID })
	m.mu.Unlock()

	return m.processes.StopServer(ctx, serverID)
}

// ListTools returns the tools of all running servers sorted by name.
// Duplicate names keep the server started first.
func (m *Manager) ListTools() []model.ToolDescriptor {
	m.mu.RLock()
	order := slices.Clone(m.order)
	m.mu.RUnlock()

	return m.aggregator.Tools(order)
}

// CallTool implements model.ToolCaller. It returns the MCP CallToolResult as
// JSON. An empty serverID is resolved by tool name.
func (m *Manager) CallTool(ctx context.Context, serverID, toolName string, args map[string]any) (json.RawMessage, error) {
	if serverID == "" {
		tool, ok := model.FindTool(m.ListTools(), toolName)
		if !ok {
			return nil, fmt.Errorf("no running server provides tool %s", toolName)
		}
		serverID = tool.ProviderID
	}

	mcpClient, err := m.processes.GetClient(serverID)
	if err != nil {
		return nil, err
	}

	if args == nil {
		args = map[string]any{}
	}
	m.logger.Debug("calling tool", zap.String("server", serverID), zap.String("tool", toolName))

	result, err := mcpClient.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", toolName, serverID, err)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result of %s: %w", toolName, err)
	}
	return raw, nil
}

// RefreshTools re-fetches the tool list of every running server.
func (m *Manager) RefreshTools(ctx context.Context) error {
	for _, id := range m.Running() {
		if err := m.processes.RefreshTools(ctx, id); err != nil {
			return fmt.Errorf("refresh %s: %w", id, err)
		}
	}
	return nil
}

// Running returns running server IDs in start order.
func (m *Manager) Running() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}

// Failed returns a copy of the start failures keyed by server ID.
func (m *Manager) Failed() map[string]error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]error, len(m.failed))
	for id, err := range m.failed {
		out[id] = err
	}
	return out
}

// Status summarizes a configured server for listings.
type Status struct {
	ID      string `json:"id"`
	Running bool   `json:"running"`
	Tools   int    `json:"tools"`
	Error   string `json:"error,omitempty"`
}

// Statuses reports running and failed servers sorted by ID.
func (m *Manager) Statuses() []Status {
	var out []Status
	for _, id := range m.Running() {
		tools, _ := m.processes.GetTools(id)
		out = append(out, Status{ID: id, Running: true, Tools: len(tools)})
	}
	for id, err := range m.Failed() {
		out = append(out, Status{ID: id, Error: err.Error()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Shutdown stops all servers in parallel.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.order = nil
	m.mu.Unlock()
	return m.processes.Shutdown(ctx)
}
