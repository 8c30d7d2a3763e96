package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the entry point when cheshire is called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "cheshire",
	Short: "Expose backend data sources as protocol-agnostic actions",
	Long: `cheshire serves a set of configured capabilities, each a group of
actions backed by a pipeline over pluggable data sources, reachable over
HTTP/JSON, JSON-RPC, stdio, or SSE streaming transports.`,
	SilenceUsage: true,
}

// SetVersion injects the build version from the main package.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "cheshire version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
