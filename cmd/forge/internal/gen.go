package internal

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forgebuild/forge/internal/engine"
)

var genCmd = &cobra.Command{
	Use:   "gen [root]",
	Short: "Run interface code generation incrementally",
	Long: `Gen runs only the interface code generation pipeline for the projects
below the given root. Up-to-date artifacts are skipped; the front-end is
re-invoked only for headers whose inputs changed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGen,
}

func init() {
	rootCmd.AddCommand(genCmd)
}

func runGen(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	set, err := engine.New(cfg, logger).Generate(cmd.Context(), root)
	if err != nil {
		return err
	}
	logger.Info("generation complete", zap.Int("artifacts", set.Len()))
	return nil
}
