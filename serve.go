package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mcpchat/provider"
	"mcpchat/server"
	"mcpchat/ui"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP chat API",
	Long: `Start every enabled MCP server and serve the chat API:

  GET    /health
  GET    /api/tools
  POST   /api/chat           (text/event-stream)
  GET    /api/servers
  POST   /api/servers
  DELETE /api/servers/{id}`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides [server] address)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch, p, err := a.orchestrator()
	if err != nil {
		return err
	}
	if res := provider.Check(ctx, p); !res.Valid {
		printWarning(fmt.Sprintf("%s: %v", res.Provider, res.Err))
	}

	if err := a.startServers(ctx); err != nil {
		return err
	}

	addr := a.cfg.Server.Address
	if serveAddr != "" {
		addr = serveAddr
	}
	h := server.NewHandlers(orch, a.mcp, a.store, a.logger.Named("http"))
	srv := server.New(server.DefaultConfig(addr), h)

	fmt.Println(ui.FormatPairs("listening", addr, "provider", p.Name(), "tools", fmt.Sprint(len(a.mcp.ListTools()))))

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", zap.Error(err))
	}
	return nil
}
