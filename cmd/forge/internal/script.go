package internal

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forgebuild/forge/internal/scriptbuild"
)

var scriptProfile string

var scriptCmd = &cobra.Command{
	Use:   "script <manifest>...",
	Short: "Build script projects into portable bytecode modules",
	Long: `Script compiles each given script manifest (Cargo.toml, *.csproj or
forge-script.toml) with its own toolchain and collects the resulting modules
into the unified script output folder. A failing script does not stop its
siblings.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScript,
}

func init() {
	scriptCmd.Flags().StringVar(&scriptProfile, "profile", "debug", "build profile (debug or release)")
	rootCmd.AddCommand(scriptCmd)
}

func runScript(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	outDir := cfg.ScriptOutDir
	if outDir == "" {
		outDir = filepath.Join(cfg.OutputRoot, "scripts")
	}
	scriptsRoot, err := filepath.Abs(".")
	if err != nil {
		return err
	}
	builder := scriptbuild.NewBuilder(scriptsRoot, outDir)
	builder.Log = logger

	var errs []error
	for _, manifest := range args {
		abs, err := filepath.Abs(manifest)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		module, err := builder.Build(cmd.Context(), abs, scriptProfile)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", manifest, err))
			continue
		}
		logger.Info("built script", zap.String("manifest", manifest), zap.String("module", module))
	}
	return errors.Join(errs...)
}
