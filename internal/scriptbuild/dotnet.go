package scriptbuild

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// csproj is XML, but the strategy only needs two elements; point extraction
// is deliberately kept over a full parser (a future one can replace these
// without touching callers).
var (
	assemblyNameRe    = regexp.MustCompile(`<AssemblyName>\s*([^<]+?)\s*</AssemblyName>`)
	targetFrameworkRe = regexp.MustCompile(`<TargetFramework>\s*([^<]+?)\s*</TargetFramework>`)
)

// buildDotnet publishes a managed script project as a WASI bundle. The SDK's
// output convention is bin/<Config>/<tfm>/wasi-wasm/AppBundle/<assembly>.wasm.
func (b *Builder) buildDotnet(ctx context.Context, manifestPath, profile string) (string, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return "", err
	}
	content := string(data)

	tfm := ""
	if m := targetFrameworkRe.FindStringSubmatch(content); m != nil {
		tfm = m[1]
	}
	if tfm == "" {
		return "", &MissingFieldError{Manifest: manifestPath, Field: "TargetFramework"}
	}

	// AssemblyName defaults to the project file stem when not declared.
	assembly := strings.TrimSuffix(filepath.Base(manifestPath), ".csproj")
	if m := assemblyNameRe.FindStringSubmatch(content); m != nil {
		assembly = m[1]
	}

	config := titleCase(profile)
	dir := filepath.Dir(manifestPath)
	if err := b.run(ctx, dir, b.Dotnet, "publish", "-c", config); err != nil {
		return "", err
	}
	return filepath.Join(dir, "bin", config, tfm, "wasi-wasm", "AppBundle", assembly+".wasm"), nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
