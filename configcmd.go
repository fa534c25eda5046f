package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"mcpchat/config"
	"mcpchat/provider"
	"mcpchat/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create, inspect and check the configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ResolvePath(configPath)
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (file, .env and environment merged)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		source := cfg.Path()
		if !config.FileExists(source) {
			source += " (not found, defaults in use)"
		}
		fmt.Fprintln(out, ui.DimStyle.Render("# "+source))
		redacted := cfg.Redacted()
		return toml.NewEncoder(out).Encode(&redacted)
	},
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key <provider> [key]",
	Short: "Store an API key in the credential store",
	Long: `Store an API key for a provider. With credential_mode = "ssh_key" the key is
encrypted with a key derived from your SSH private key. When the key is not
given as an argument it is read from stdin.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSetKey,
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the configured provider is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		_, p, err := a.orchestrator()
		if err != nil {
			return err
		}
		res := provider.Check(context.Background(), p)
		out := cmd.OutOrStdout()
		if !res.Valid {
			fmt.Fprintf(out, "%s %s: %v\n", ui.ErrorStyle.Render("✗"), res.Provider, res.Err)
			return errors.New("provider check failed")
		}
		fmt.Fprintf(out, "%s %s %s\n", ui.SuccessStyle.Render("✓"), res.Provider,
			ui.DimStyle.Render(res.Latency.Round(1e6).String()))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd, configSetKeyCmd, configCheckCmd)
}

func runSetKey(cmd *cobra.Command, args []string) error {
	providerID := args[0]
	if !isKnownProvider(providerID) {
		return fmt.Errorf("unknown provider %q (want one of %s)", providerID, strings.Join(provider.KnownProviders(), ", "))
	}

	key := ""
	if len(args) == 2 {
		key = args[1]
	} else {
		fmt.Fprint(cmd.ErrOrStderr(), "API key: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read key: %w", err)
		}
		key = strings.TrimSpace(line)
	}
	if key == "" {
		return errors.New("key is empty")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	creds := config.NewCredentialStoreFromConfig(cfg.Security)
	dataDir := cfg.DataDir()
	if err := creds.Load(dataDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	creds.Set(providerID, key)
	if err := creds.Save(dataDir); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stored key for %s (%s)\n", providerID, creds.GetMethod())
	return nil
}

func isKnownProvider(id string) bool {
	for _, p := range provider.KnownProviders() {
		if p == id {
			return true
		}
	}
	return false
}
