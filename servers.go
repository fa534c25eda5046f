package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mcpchat/mcp"
	"mcpchat/storage"
	"mcpchat/ui"
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "Manage stored MCP server definitions",
}

var serversListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored servers",
	Args:  cobra.NoArgs,
	RunE:  runServersList,
}

var (
	addName      string
	addTransport string
	addCommand   string
	addURL       string
	addEnv       []string
	addHeaders   []string
	addDir       string
	addDisabled  bool
)

var serversAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Add or replace a server",
	Long: `Add or replace a server definition.

Examples:
  mcpchat servers add fs --command "npx -y @modelcontextprotocol/server-filesystem /tmp"
  mcpchat servers add search --url https://example.com/mcp --header "Authorization=Bearer xyz"
  mcpchat servers add legacy --transport sse --url http://localhost:9000/sse`,
	Args: cobra.ExactArgs(1),
	RunE: runServersAdd,
}

var serversRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Remove a server",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *storage.ServerStore) error {
			if err := s.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		})
	},
}

var serversEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Start a server with serve, chat and tools",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(cmd, args[0], true) },
}

var serversDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Keep a server stored but do not start it",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(cmd, args[0], false) },
}

var serversImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import servers from a YAML file",
	Long: `Import server definitions from YAML:

  servers:
    - id: fs
      command: npx -y @modelcontextprotocol/server-filesystem /tmp
    - id: search
      url: https://example.com/mcp
      headers:
        Authorization: Bearer xyz`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configs, err := storage.ImportYAML(args[0])
		if err != nil {
			return err
		}
		return withStore(func(s *storage.ServerStore) error {
			n, err := s.Import(configs)
			if err != nil {
				return fmt.Errorf("imported %d of %d servers: %w", n, len(configs), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d servers\n", n)
			return nil
		})
	},
}

func init() {
	serversAddCmd.Flags().StringVar(&addName, "name", "", "Display name (defaults to the id)")
	serversAddCmd.Flags().StringVar(&addTransport, "transport", "", "stdio, sse or streamable-http (inferred from --command/--url)")
	serversAddCmd.Flags().StringVar(&addCommand, "command", "", "Command line for a stdio server")
	serversAddCmd.Flags().StringVar(&addURL, "url", "", "URL of a remote server")
	serversAddCmd.Flags().StringArrayVar(&addEnv, "env", nil, "Environment variable KEY=VALUE (repeatable)")
	serversAddCmd.Flags().StringArrayVar(&addHeaders, "header", nil, "HTTP header Name=Value (repeatable)")
	serversAddCmd.Flags().StringVar(&addDir, "cwd", "", "Working directory for a stdio server")
	serversAddCmd.Flags().BoolVar(&addDisabled, "disabled", false, "Store the server without enabling it")

	serversCmd.AddCommand(serversListCmd, serversAddCmd, serversRemoveCmd,
		serversEnableCmd, serversDisableCmd, serversImportCmd)
}

// withStore opens only the server store; no MCP server is started.
func withStore(fn func(*storage.ServerStore) error) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a.store)
}

func runServersList(cmd *cobra.Command, args []string) error {
	return withStore(func(s *storage.ServerStore) error {
		records, err := s.List()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintln(out, ui.DimStyle.Render("No servers stored."))
			return nil
		}
		for _, r := range records {
			state := ui.SuccessStyle.Render("enabled ")
			if !r.Enabled {
				state = ui.DimStyle.Render("disabled")
			}
			target := r.URL
			if r.Transport == mcp.TransportStdio {
				target = strings.TrimSpace(r.Command + " " + strings.Join(r.Args, " "))
			}
			fmt.Fprintf(out, "%s  %s  %s  %s\n",
				state,
				ui.ToolStyle.Render(ui.PadRight(ui.Truncate(r.ID, 20), 20)),
				ui.DimStyle.Render(ui.PadRight(r.Transport, 15)),
				ui.Truncate(target, 60))
		}
		return nil
	})
}

func runServersAdd(cmd *cobra.Command, args []string) error {
	cfg, err := buildServerConfig(args[0])
	if err != nil {
		return err
	}
	return withStore(func(s *storage.ServerStore) error {
		if err := s.Save(cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", cfg.ID, cfg.Transport)
		return nil
	})
}

func buildServerConfig(id string) (mcp.ServerConfig, error) {
	cfg := mcp.ServerConfig{
		ID:         id,
		Name:       addName,
		Transport:  addTransport,
		URL:        addURL,
		WorkingDir: addDir,
		Enabled:    !addDisabled,
	}
	if cfg.Name == "" {
		cfg.Name = id
	}
	if addCommand != "" {
		parts, err := mcp.SplitArgs(addCommand)
		if err != nil {
			return cfg, fmt.Errorf("--command: %w", err)
		}
		if len(parts) > 0 {
			cfg.Command, cfg.Args = parts[0], parts[1:]
		}
	}
	if cfg.Transport == "" {
		switch {
		case cfg.Command != "":
			cfg.Transport = mcp.TransportStdio
		case cfg.URL != "":
			cfg.Transport = mcp.TransportStreamableHTTP
		}
	}

	var err error
	if cfg.Env, err = parsePairs("--env", addEnv); err != nil {
		return cfg, err
	}
	if cfg.Headers, err = parsePairs("--header", addHeaders); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func parsePairs(flag string, values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("%s %q: want KEY=VALUE", flag, v)
		}
		out[strings.TrimSpace(key)] = value
	}
	return out, nil
}

func setEnabled(cmd *cobra.Command, id string, enabled bool) error {
	return withStore(func(s *storage.ServerStore) error {
		if err := s.SetEnabled(id, enabled); err != nil {
			return err
		}
		state := "Enabled"
		if !enabled {
			state = "Disabled"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", state, id)
		return nil
	})
}
