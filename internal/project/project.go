// Package project declares build projects and dispatches them onto build
// node primitives according to their kind.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mattn/go-zglob"
	"github.com/pelletier/go-toml/v2"
)

// Kind is the closed set of project archetypes.
type Kind int

const (
	KindBase Kind = iota
	KindStaticLibrary
	KindSharedLibrary
	KindHeaderOnly
	KindInterface
	KindInterfaceLinker
	KindModule
	KindPlugin
	KindTool
	KindTest
	KindBootstrap
)

var kindNames = map[Kind]string{
	KindBase:            "base",
	KindStaticLibrary:   "static_library",
	KindSharedLibrary:   "shared_library",
	KindHeaderOnly:      "header_only",
	KindInterface:       "interface",
	KindInterfaceLinker: "interface_linker",
	KindModule:          "module",
	KindPlugin:          "plugin",
	KindTool:            "tool",
	KindTest:            "test",
	KindBootstrap:       "bootstrap",
}

func (k Kind) String() string { return kindNames[k] }

// ParseKind maps a manifest kind string to its Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	valid := make([]string, 0, len(kindNames))
	for _, name := range kindNames {
		valid = append(valid, name)
	}
	sort.Strings(valid)
	return 0, fmt.Errorf("unknown project kind %q (valid kinds: %s)", s, strings.Join(valid, ", "))
}

// Descriptor is one declared project. Immutable after loading; dependency
// accumulation happens in the registry, not here.
type Descriptor struct {
	Name string
	Kind Kind
	Dir  string // manifest directory, base for relative paths

	PublicIncludeDirs  []string
	PrivateIncludeDirs []string
	Sources            []string

	PublicDeps    []string
	PrivateDeps   []string
	InterfaceDeps []string

	ExternalPackages []string
	InterfaceHeaders []string
}

// manifest mirrors the forge.toml schema.
type manifest struct {
	Project struct {
		Name               string   `toml:"name"`
		Kind               string   `toml:"kind"`
		Sources            []string `toml:"sources"`
		PublicIncludeDirs  []string `toml:"public_include_dirs"`
		PrivateIncludeDirs []string `toml:"private_include_dirs"`
		InterfaceHeaders   []string `toml:"interface_headers"`
	} `toml:"project"`
	Dependencies struct {
		Public    []string `toml:"public"`
		Private   []string `toml:"private"`
		Interface []string `toml:"interface"`
	} `toml:"dependencies"`
	External struct {
		Packages []string `toml:"packages"`
	} `toml:"external"`
}

// LoadManifest reads a forge.toml and expands its source and interface
// header globs relative to the manifest directory.
func LoadManifest(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if m.Project.Name == "" {
		return nil, fmt.Errorf("%s: project name is required", path)
	}
	kind, err := ParseKind(m.Project.Kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dir := filepath.Dir(path)

	sources, err := expandGlobs(dir, m.Project.Sources)
	if err != nil {
		return nil, fmt.Errorf("%s: sources: %w", path, err)
	}
	headers, err := expandGlobs(dir, m.Project.InterfaceHeaders)
	if err != nil {
		return nil, fmt.Errorf("%s: interface_headers: %w", path, err)
	}

	return &Descriptor{
		Name:               m.Project.Name,
		Kind:               kind,
		Dir:                dir,
		PublicIncludeDirs:  absolutize(dir, m.Project.PublicIncludeDirs),
		PrivateIncludeDirs: absolutize(dir, m.Project.PrivateIncludeDirs),
		Sources:            sources,
		PublicDeps:         m.Dependencies.Public,
		PrivateDeps:        m.Dependencies.Private,
		InterfaceDeps:      m.Dependencies.Interface,
		ExternalPackages:   m.External.Packages,
		InterfaceHeaders:   headers,
	}, nil
}

// expandGlobs resolves patterns against dir. Plain paths pass through so a
// manifest can name a file that does not exist yet (a generated source).
func expandGlobs(dir string, patterns []string) ([]string, error) {
	var out []string
	for _, pat := range patterns {
		full := pat
		if !filepath.IsAbs(full) {
			full = filepath.Join(dir, pat)
		}
		if !strings.ContainsAny(pat, "*?[{") {
			out = append(out, full)
			continue
		}
		matches, err := zglob.Glob(full)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pat, err)
		}
		sort.Strings(matches)
		out = append(out, matches...)
	}
	return out, nil
}

func absolutize(dir string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		// Generator expressions are kept verbatim; they are resolved by
		// the path normalizer at the point of use.
		if strings.HasPrefix(p, "$<") || filepath.IsAbs(p) {
			out = append(out, p)
			continue
		}
		out = append(out, filepath.Join(dir, p))
	}
	return out
}
