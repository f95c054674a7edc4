// Package scriptbuild drives the out-of-band toolchains that turn
// user-authored script projects into portable bytecode modules. Each
// strategy is keyed off the script's own manifest file and derives the
// toolchain's deterministic output location from two or three well-known
// manifest fields.
package scriptbuild

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"
)

// ToolchainError carries a failed toolchain's own stderr, which is the only
// diagnostic worth surfacing.
type ToolchainError struct {
	Tool   string
	Stderr string
	Err    error
}

func (e *ToolchainError) Error() string {
	msg := fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
	if e.Stderr != "" {
		msg += "\n" + strings.TrimSpace(e.Stderr)
	}
	return msg
}

func (e *ToolchainError) Unwrap() error { return e.Err }

// MissingFieldError reports a manifest without a field a strategy requires.
// Fatal for that script only.
type MissingFieldError struct {
	Manifest string
	Field    string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: missing required field %s", e.Manifest, e.Field)
}

// Builder compiles script projects and gathers their modules into one
// output directory, preserving each script's directory structure relative to
// ScriptsRoot.
type Builder struct {
	Cargo     string
	Dotnet    string
	WasmTools string

	ScriptsRoot string
	OutDir      string
	Log         *zap.Logger
}

func NewBuilder(scriptsRoot, outDir string) *Builder {
	return &Builder{
		Cargo:       "cargo",
		Dotnet:      "dotnet",
		WasmTools:   "wasm-tools",
		ScriptsRoot: scriptsRoot,
		OutDir:      outDir,
	}
}

// Build compiles the script project described by manifestPath under the
// given build profile ("debug" or "release") and returns the path of the
// collected module in the unified output directory.
func (b *Builder) Build(ctx context.Context, manifestPath, profile string) (string, error) {
	var modulePath string
	var err error
	switch {
	case filepath.Base(manifestPath) == "Cargo.toml":
		modulePath, err = b.buildCargo(ctx, manifestPath, profile)
	case strings.HasSuffix(manifestPath, ".csproj"):
		modulePath, err = b.buildDotnet(ctx, manifestPath, profile)
	case filepath.Base(manifestPath) == "forge-script.toml":
		modulePath, err = b.buildComponent(ctx, manifestPath)
	default:
		return "", fmt.Errorf("unrecognized script manifest %s", manifestPath)
	}
	if err != nil {
		return "", err
	}
	return b.collect(manifestPath, modulePath)
}

// collect copies the produced module into the output directory, mirroring
// the script's location under the scripts root.
func (b *Builder) collect(manifestPath, modulePath string) (string, error) {
	rel, err := filepath.Rel(b.ScriptsRoot, filepath.Dir(manifestPath))
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = "."
	}
	dest := filepath.Join(b.OutDir, rel, filepath.Base(modulePath))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}
	src, err := os.Open(modulePath)
	if err != nil {
		return "", fmt.Errorf("open produced module: %w", err)
	}
	defer src.Close()
	if err := atomic.WriteFile(dest, src); err != nil {
		return "", err
	}
	if b.Log != nil {
		b.Log.Info("collected script module", zap.String("module", dest))
	}
	return dest, nil
}

func (b *Builder) run(ctx context.Context, dir, tool string, args ...string) error {
	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stdout = os.Stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &ToolchainError{Tool: tool, Stderr: stderr.String(), Err: err}
	}
	return nil
}
