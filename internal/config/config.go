// Package config loads the invocation-wide inputs. None of the required
// inputs has a default: their absence is a fatal error before any graph
// description happens.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// MissingInputError names the required configuration key that was not
// supplied.
type MissingInputError struct {
	Key string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("required configuration input %q not set (flag --%s or %s%s)",
		e.Key, e.Key, envPrefix+"_", strings.ToUpper(strings.ReplaceAll(e.Key, "-", "_")))
}

const envPrefix = "FORGE"

// Config is everything the configure pass needs up front.
type Config struct {
	HostPreset    string
	BuildType     string
	OutputRoot    string
	RootNamespace string
	PackageName   string

	PackageVersion string
	TemplateDir    string
	Clang          string
	InstallRoots   []string
	ExtraIncludes  []string
	ScriptOutDir   string
	AbortOnError   bool
	Verbose        bool
}

// Bind registers the env binding; call once on the viper instance backing
// the command flags.
func Bind(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// Load validates and materializes the configuration. Required keys are
// checked in a fixed order so the first missing one is reported stably.
func Load(v *viper.Viper) (*Config, error) {
	for _, key := range []string{"host-preset", "build-type", "output-root", "root-namespace", "package-name"} {
		if v.GetString(key) == "" {
			return nil, &MissingInputError{Key: key}
		}
	}
	c := &Config{
		HostPreset:     v.GetString("host-preset"),
		BuildType:      v.GetString("build-type"),
		OutputRoot:     v.GetString("output-root"),
		RootNamespace:  v.GetString("root-namespace"),
		PackageName:    v.GetString("package-name"),
		PackageVersion: v.GetString("package-version"),
		TemplateDir:    v.GetString("template-dir"),
		Clang:          v.GetString("clang"),
		InstallRoots:   v.GetStringSlice("install-root"),
		ExtraIncludes:  v.GetStringSlice("include-dir"),
		ScriptOutDir:   v.GetString("script-out-dir"),
		AbortOnError:   v.GetBool("abort-on-error"),
		Verbose:        v.GetBool("verbose"),
	}
	if c.PackageVersion == "" {
		c.PackageVersion = "v0.0.0"
	} else if !strings.HasPrefix(c.PackageVersion, "v") {
		// Semver validation downstream requires the v prefix; accept the
		// bare form too.
		c.PackageVersion = "v" + c.PackageVersion
	}
	if c.Clang == "" {
		c.Clang = "clang++"
	}
	return c, nil
}
