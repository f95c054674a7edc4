package internal

import (
	"github.com/spf13/cobra"

	"github.com/forgebuild/forge/internal/engine"
)

var configureCmd = &cobra.Command{
	Use:   "configure [root]",
	Short: "Compile project manifests into a build graph",
	Long: `Configure discovers every forge.toml below the given root (default "."),
creates their build nodes, runs interface code generation, exports the
package descriptors and writes build.ninja under the output root.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	return engine.New(cfg, logger).Configure(cmd.Context(), root)
}
