package scriptbuild

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const cargoTarget = "wasm32-wasip2"

// cargoManifest covers the two fields the strategy needs; Cargo.toml is
// real TOML so it gets a real TOML parser rather than point extraction.
type cargoManifest struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
}

// buildCargo compiles a Rust script crate to a component-model module.
// Cargo's own output convention is
// target/<triple>/<profile>/<crate_name_with_underscores>.wasm.
func (b *Builder) buildCargo(ctx context.Context, manifestPath, profile string) (string, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return "", err
	}
	var m cargoManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return "", &MissingFieldError{Manifest: manifestPath, Field: "package.name"}
	}
	if m.Package.Name == "" {
		return "", &MissingFieldError{Manifest: manifestPath, Field: "package.name"}
	}

	args := []string{"build", "--target", cargoTarget}
	if profile == "release" {
		args = append(args, "--release")
	}
	dir := filepath.Dir(manifestPath)
	if err := b.run(ctx, dir, b.Cargo, args...); err != nil {
		return "", err
	}

	module := strings.ReplaceAll(m.Package.Name, "-", "_") + ".wasm"
	return filepath.Join(dir, "target", cargoTarget, profile, module), nil
}
