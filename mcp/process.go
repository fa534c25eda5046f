package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

const (
	// closeTimeout bounds a graceful client close before the process is killed.
	closeTimeout = 1 * time.Second
	// initTimeout bounds the initialize and tools/list handshake.
	initTimeout = 30 * time.Second
)

// ClientVersion is reported to servers during initialize.
var ClientVersion = "dev"

// ProcessManager owns the MCP client connections, one per server ID.
type ProcessManager struct {
	processes map[string]*serverProcess
	logger    *zap.Logger
	mu        sync.RWMutex
}

func NewProcessManager(logger *zap.Logger) *ProcessManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessManager{
		processes: make(map[string]*serverProcess),
		logger:    logger,
	}
}

// StartServer connects to (or spawns) the server, performs the MCP
// handshake and caches its tool list.
func (pm *ProcessManager) StartServer(ctx context.Context, cfg ServerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	pm.mu.RLock()
	_, running := pm.processes[cfg.ID]
	pm.mu.RUnlock()
	if running {
		return fmt.Errorf("server %s already running", cfg.ID)
	}

	var (
		mcpClient *client.Client
		cmd       *exec.Cmd
		err       error
	)
	switch cfg.Transport {
	case TransportStdio:
		mcpClient, cmd, err = pm.createStdioClient(cfg)
	case TransportSSE:
		mcpClient, err = pm.createSSEClient(ctx, cfg)
	case TransportStreamableHTTP:
		mcpClient, err = pm.createStreamableHTTPClient(ctx, cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to start server %s: %w", cfg.ID, err)
	}

	proc := &serverProcess{
		ID:      cfg.ID,
		Name:    cfg.Name,
		Process: cmd,
		Client:  mcpClient,
		Remote:  cfg.IsRemote(),
		URL:     cfg.URL,
	}

	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: mcptypes.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    "mcpchat",
				Version: ClientVersion,
			},
		},
	}
	if _, err := mcpClient.Initialize(initCtx, initReq); err != nil {
		pm.closeProcess(ctx, proc)
		return fmt.Errorf("failed to initialize server %s: %w", cfg.ID, err)
	}

	toolsResult, err := mcpClient.ListTools(initCtx, mcptypes.ListToolsRequest{})
	if err != nil {
		pm.closeProcess(ctx, proc)
		return fmt.Errorf("failed to list tools for %s: %w", cfg.ID, err)
	}
	proc.Tools = toolsResult.Tools

	pm.mu.Lock()
	pm.processes[cfg.ID] = proc
	pm.mu.Unlock()

	pm.logger.Info("mcp server started",
		zap.String("server", cfg.ID),
		zap.String("transport", cfg.Transport),
		zap.Int("tools", len(proc.Tools)))
	return nil
}

// StopServer removes the server from the map, then closes its client and
// kills a local process that does not exit in time.
func (pm *ProcessManager) StopServer(ctx context.Context, serverID string) error {
	pm.mu.Lock()
	proc, exists := pm.processes[serverID]
	if !exists {
		pm.mu.Unlock()
		return fmt.Errorf("server %s not found", serverID)
	}
	delete(pm.processes, serverID)
	pm.mu.Unlock()

	pm.closeProcess(ctx, proc)
	pm.logger.Debug("mcp server stopped", zap.String("server", serverID))
	return nil
}

func (pm *ProcessManager) closeProcess(ctx context.Context, proc *serverProcess) {
	clientClosed := false
	if proc.Client != nil {
		closeCtx, cancel := context.WithTimeout(ctx, closeTimeout)
		defer cancel()

		closeDone := make(chan error, 1)
		go func() {
			closeDone <- proc.Client.Close()
		}()

		select {
		case err := <-closeDone:
			if err != nil {
				pm.logger.Debug("error closing mcp client", zap.String("server", proc.ID), zap.Error(err))
			} else {
				clientClosed = true
			}
		case <-closeCtx.Done():
			pm.logger.Warn("mcp client close timed out", zap.String("server", proc.ID))
		}
	}

	if !clientClosed && !proc.Remote && proc.Process != nil && proc.Process.Process != nil {
		pm.logger.Warn("killing mcp server process",
			zap.String("server", proc.ID),
			zap.Int("pid", proc.Process.Process.Pid))
		if err := proc.Process.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			pm.logger.Debug("error killing process", zap.String("server", proc.ID), zap.Error(err))
		}
	}
}

func (pm *ProcessManager) GetClient(serverID string) (*client.Client, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	proc, exists := pm.processes[serverID]
	if !exists {
		return nil, fmt.Errorf("server %s not running", serverID)
	}
	return proc.Client, nil
}

func (pm *ProcessManager) GetTools(serverID string) ([]mcptypes.Tool, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	proc, exists := pm.processes[serverID]
	if !exists {
		return nil, fmt.Errorf("server %s not running", serverID)
	}
	return proc.Tools, nil
}

// RefreshTools re-fetches the tool list of a running server.
func (pm *ProcessManager) RefreshTools(ctx context.Context, serverID string) error {
	mcpClient, err := pm.GetClient(serverID)
	if err != nil {
		return err
	}

	toolsResult, err := mcpClient.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("failed to refresh tools: %w", err)
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	if proc, ok := pm.processes[serverID]; ok {
		proc.Tools = toolsResult.Tools
	}
	return nil
}

// Running returns the IDs of started servers.
func (pm *ProcessManager) Running() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	ids := make([]string, 0, len(pm.processes))
	for id := range pm.processes {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown stops all servers in parallel.
func (pm *ProcessManager) Shutdown(ctx context.Context) error {
	ids := pm.Running()
	pm.logger.Debug("shutting down mcp servers", zap.Int("count", len(ids)))

	var wg sync.WaitGroup
	errChan := make(chan error, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := pm.StopServer(ctx, id); err != nil {
				errChan <- err
			}
		}(id)
	}
	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (pm *ProcessManager) createSSEClient(ctx context.Context, cfg ServerConfig) (*client.Client, error) {
	var opts []transport.ClientOption
	if len(cfg.Headers) > 0 {
		opts = append(opts, transport.WithHeaders(ExpandHeaders(cfg.Headers, nil)))
	}

	mcpClient, err := client.NewSSEMCPClient(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}

	// SSE transport must be started before Initialize/ListTools
	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start SSE transport: %w", err)
	}
	return mcpClient, nil
}

func (pm *ProcessManager) createStreamableHTTPClient(ctx context.Context, cfg ServerConfig) (*client.Client, error) {
	var opts []transport.StreamableHTTPCOption
	if len(cfg.Headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(ExpandHeaders(cfg.Headers, nil)))
	}

	mcpClient, err := client.NewStreamableHttpClient(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}

	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start HTTP transport: %w", err)
	}
	return mcpClient, nil
}

// createStdioClient spawns the server process. The returned command is
// captured so the process can be killed if a graceful close hangs.
func (pm *ProcessManager) createStdioClient(cfg ServerConfig) (*client.Client, *exec.Cmd, error) {
	env := BuildEnv(cfg.Env, nil)
	args := SubstituteArgs(cfg.Args, nil)
	var capturedCmd *exec.Cmd

	cmdFunc := func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Env = env
		cmd.Dir = cfg.WorkingDir
		capturedCmd = cmd
		return cmd, nil
	}

	mcpClient, err := client.NewStdioMCPClientWithOptions(
		cfg.Command,
		env,
		args,
		transport.WithCommandFunc(cmdFunc),
	)
	if err != nil {
		return nil, nil, err
	}

	if capturedCmd != nil && capturedCmd.Process != nil {
		pm.logger.Debug("spawned mcp server",
			zap.String("server", cfg.ID),
			zap.String("command", cfg.Command),
			zap.Int("pid", capturedCmd.Process.Pid))
	}
	return mcpClient, capturedCmd, nil
}
