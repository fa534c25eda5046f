package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"mcpchat/mcp"
	"mcpchat/ui"
)

var (
	Version   = "v0.1.0"
	GitCommit = "dev"
	BuildDate = "unknown"
)

const License = "Apache-2.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.TitleStyle.Render("mcpchat"))
		fmt.Fprintln(out)
		fmt.Fprintln(out, ui.FormatPairs("Version", Version, "Git Commit", GitCommit, "Build Date", BuildDate))
		fmt.Fprintln(out, ui.FormatPairs("Go Version", runtime.Version(), "Platform", runtime.GOOS+"/"+runtime.GOARCH))
		fmt.Fprintln(out, ui.FormatPairs("License", License))
	},
}

func init() {
	mcp.ClientVersion = Version
}
