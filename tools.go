package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"mcpchat/ui"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List tools offered by the enabled MCP servers",
	Long: `Start every enabled MCP server and list the tools the model will see.

Examples:
  mcpchat tools           # List all tools
  mcpchat tools --verbose # Include parameters`,
	RunE: runTools,
}

func runTools(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.startServers(cmd.Context()); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tools := a.mcp.ListTools()
	if len(tools) == 0 {
		fmt.Fprintln(out, ui.DimStyle.Render("No tools available. Add a server with `mcpchat servers add`."))
		return nil
	}

	fmt.Fprintln(out, ui.TitleStyle.Render(fmt.Sprintf("Available Tools (%d)", len(tools))))
	fmt.Fprintln(out)

	nameWidth := 0
	for _, t := range tools {
		nameWidth = max(nameWidth, len(t.Name))
	}
	nameWidth = min(nameWidth, 32)

	for _, t := range tools {
		fmt.Fprintf(out, "  %s  %s  %s\n",
			ui.ToolStyle.Render(ui.PadRight(ui.Truncate(t.Name, nameWidth), nameWidth)),
			ui.DimStyle.Render("["+t.ProviderID+"]"),
			ui.Truncate(t.Description, 80))

		if !verbose {
			continue
		}
		schema := gjson.ParseBytes(t.InputSchema)
		required := map[string]bool{}
		for _, r := range schema.Get("required").Array() {
			required[r.String()] = true
		}
		schema.Get("properties").ForEach(func(key, value gjson.Result) bool {
			req := ""
			if required[key.String()] {
				req = " (required)"
			}
			fmt.Fprintf(out, "      %s %s%s %s\n",
				ui.AssistantStyle.Render(key.String()),
				ui.DimStyle.Render(value.Get("type").String()),
				ui.DimStyle.Render(req),
				ui.Truncate(value.Get("description").String(), 60))
			return true
		})
	}
	return nil
}
