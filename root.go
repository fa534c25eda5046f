package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mcpchat/chat"
	"mcpchat/config"
	"mcpchat/mcp"
	"mcpchat/model"
	"mcpchat/provider"
	"mcpchat/storage"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "mcpchat",
	Short: "Chat with an LLM that can call MCP server tools",
	Long: `mcpchat streams a conversation with an LLM, runs the tools it asks for
on connected MCP servers and turns tabular tool output into charts.

Usage:
  mcpchat config init
  mcpchat servers import servers.yaml
  mcpchat chat "How many steps did I walk this week?"
  mcpchat serve`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default $MCPCHAT_CONFIG or ~/.config/mcpchat/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(serversCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// app holds what the commands share once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	creds  *config.CredentialStore
	store  *storage.ServerStore
	mcp    *mcp.Manager
}

// loadApp loads configuration, the logger, credentials and the server store.
func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := config.NewLogger(cfg.Logging, verbose)
	if err != nil {
		return nil, err
	}

	dataDir := cfg.DataDir()
	if err := config.EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to prepare data dir %s: %w", dataDir, err)
	}

	creds := config.NewCredentialStoreFromConfig(cfg.Security)
	if err := creds.Load(dataDir); err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	store, err := storage.NewServerStore(cfg.Storage.Path, creds)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		creds:  creds,
		store:  store,
		mcp:    mcp.NewManager(logger),
	}, nil
}

// startServers starts every enabled stored server. Servers that fail are
// reported and skipped.
func (a *app) startServers(ctx context.Context) error {
	servers, err := a.store.Configs()
	if err != nil {
		return fmt.Errorf("failed to load servers: %w", err)
	}
	if err := a.mcp.Start(ctx, servers); err != nil {
		return err
	}
	for id, err := range a.mcp.Failed() {
		printWarning(fmt.Sprintf("server %s failed to start: %v", id, err))
	}
	return nil
}

// orchestrator builds the configured provider and wires it to the MCP manager.
func (a *app) orchestrator() (*chat.Orchestrator, model.Provider, error) {
	p, err := provider.FromConfig(a.cfg.LLM, a.creds, a.logger.Named("provider"))
	if err != nil {
		return nil, nil, err
	}
	orch := chat.NewOrchestrator(p, a.mcp, chat.Options{
		MaxIterations:     a.cfg.Orchestrator.MaxIterations,
		ToolTimeout:       a.cfg.Orchestrator.ToolTimeout(),
		ValidateArguments: a.cfg.Orchestrator.ValidateArguments,
		SystemPrompt:      a.cfg.LLM.SystemPrompt,
		Logger:            a.logger.Named("chat"),
	})
	return orch, p, nil
}

// Close stops MCP servers and releases the store.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.mcp.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("mcp shutdown", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
)

func printError(err error) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
}

func printWarning(msg string) {
	fmt.Fprintln(os.Stderr, warningStyle.Render("Warning: "+msg))
}
