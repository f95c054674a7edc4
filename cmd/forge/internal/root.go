package internal

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/forgebuild/forge/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "forge compiles declarative project descriptions into build graphs",
	Long: `forge takes declarative project manifests (forge.toml) and produces a
ninja build file, generated cross-language interface artifacts, and exported
package descriptors consumable by downstream forge invocations.`,
	SilenceUsage: true,
}

var vp = viper.New()

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("host-preset", "", "host platform preset identifier (required)")
	pf.String("build-type", "", "build type identifier, e.g. Debug or Release (required)")
	pf.String("output-root", "", "root install/output folder (required)")
	pf.String("root-namespace", "", "root C++ namespace for interface extraction (required)")
	pf.String("package-name", "", "logical package name, e.g. arieo:sample (required)")
	pf.String("package-version", "", "exported package version (semver, e.g. 1.2.3 or v1.2.3)")
	pf.String("template-dir", "", "folder holding the code generation templates")
	pf.String("clang", "", "front-end compiler used for AST extraction")
	pf.StringSlice("install-root", nil, "additional install roots for package resolution")
	pf.StringSlice("include-dir", nil, "extra include directories for AST extraction")
	pf.String("script-out-dir", "", "unified output folder for script modules")
	pf.Bool("abort-on-error", false, "abort on the first failing interface header")
	pf.BoolP("verbose", "v", false, "enable verbose output")

	vp.BindPFlags(pf)
	config.Bind(vp)
}

// loadConfig materializes the configuration and a matching logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(vp)
	if err != nil {
		return nil, nil, err
	}
	zcfg := zap.NewDevelopmentConfig()
	if !cfg.Verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
