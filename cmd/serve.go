package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"cheshire/internal/app"
	"cheshire/pkg/logging"

	"github.com/spf13/cobra"
)

var (
	serveConfigPath string
	serveCapability string
	serveDebug      bool
	serveSilent     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the server",
	Long: `Loads the configuration root, opens the configured sources and
engines, builds the capability pipelines, and serves every capability on
its configured transport until interrupted.

The configuration root must contain cheshire.yaml (override the document
name with the CHESHIRE_CONFIG environment variable) plus the per-capability
actions and pipelines documents it references.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	initLogging()

	core, err := app.NewCore(app.Options{
		ConfigPath: serveConfigPath,
		Capability: serveCapability,
		Debug:      serveDebug,
	})
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return core.Run(ctx)
}

func initLogging() {
	level := logging.LevelInfo
	if serveDebug {
		level = logging.LevelDebug
	}
	var out io.Writer = os.Stdout
	if serveSilent {
		out = io.Discard
	}
	logging.Init(level, out)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveConfigPath, "config-path", ".", "Configuration root directory")
	serveCmd.Flags().StringVar(&serveCapability, "capability", "", "Serve only the named capability")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging and request tracing")
	serveCmd.Flags().BoolVar(&serveSilent, "silent", false, "Suppress log output")
}
