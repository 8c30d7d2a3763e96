package cmd

import (
	"errors"
	"fmt"

	"cheshire/internal/config"

	"github.com/spf13/cobra"
)

var checkConfigPath string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration without starting anything",
	Long: `Loads the configuration root and runs the full validation pass,
printing every accumulated error. Exits non-zero when the configuration
would not start.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	src := config.NewDirSource(checkConfigPath)

	spec, err := config.Load(src)
	if err != nil {
		var collection *config.ErrorCollection
		if errors.As(err, &collection) {
			for _, ce := range collection.Errors {
				fmt.Fprintln(cmd.ErrOrStderr(), " -", ce.Error())
			}
			return fmt.Errorf("%d configuration error(s)", len(collection.Errors))
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "configuration %s is valid: %d source(s), %d engine(s), %d capability(ies)\n",
		src.Describe(), len(spec.Sources), len(spec.Engines), len(spec.Capabilities))
	return nil
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkConfigPath, "config-path", ".", "Configuration root directory")
}
