package scriptbuild

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// componentManifest is the native-build script manifest (forge-script.toml):
// a prebuilt core module to be re-linked as a component.
type componentManifest struct {
	Script struct {
		Name   string `toml:"name"`
		Module string `toml:"module"` // core wasm, relative to the manifest
	} `toml:"script"`
}

// buildComponent wraps an already-compiled core module with the
// component-model linker.
func (b *Builder) buildComponent(ctx context.Context, manifestPath string) (string, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return "", err
	}
	var m componentManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return "", &MissingFieldError{Manifest: manifestPath, Field: "script.name"}
	}
	if m.Script.Name == "" {
		return "", &MissingFieldError{Manifest: manifestPath, Field: "script.name"}
	}
	if m.Script.Module == "" {
		return "", &MissingFieldError{Manifest: manifestPath, Field: "script.module"}
	}

	dir := filepath.Dir(manifestPath)
	out := filepath.Join(dir, m.Script.Name+".wasm")
	core := m.Script.Module
	if !filepath.IsAbs(core) {
		core = filepath.Join(dir, core)
	}
	if err := b.run(ctx, dir, b.WasmTools, "component", "new", core, "-o", out); err != nil {
		return "", err
	}
	return out, nil
}
