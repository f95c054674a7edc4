package project

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/forgebuild/forge/internal/pathspec"
	"github.com/forgebuild/forge/internal/target"
)

// Builder is the build-node primitive capability this package drives. The
// ninja backend implements it; tests substitute a recorder.
type Builder interface {
	StaticLibrary(name string) (*target.Node, error)
	SharedLibrary(name string) (*target.Node, error)
	HeaderOnly(name string) (*target.Node, error)
	Executable(name string) (*target.Node, error)
	LoadableModule(name string) (*target.Node, error)

	AttachSources(n *target.Node, sources []string)
	AttachIncludeDirs(n *target.Node, dirs []string, vis target.Visibility, phase pathspec.Phase)
	Link(n *target.Node, depName string, vis target.Visibility)
}

// LinkageError reports a dependency keyword disallowed for the project's
// kind, naming the keyword to use instead.
type LinkageError struct {
	Project string
	Kind    Kind
	Keyword target.Visibility
	Allowed []target.Visibility
}

func (e *LinkageError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, v := range e.Allowed {
		allowed[i] = v.String()
	}
	return fmt.Sprintf("project %q (kind %s) may not declare %s dependencies; use %s instead",
		e.Project, e.Kind, e.Keyword, strings.Join(allowed, " or "))
}

// strategy is resolved once per kind and carries the kind-specific node
// creation call plus its linkage constraints.
type strategy struct {
	create     func(b Builder, name string) (*target.Node, error)
	allowed    []target.Visibility
	headerOnly bool
}

var strategies = map[Kind]strategy{
	KindBase:            {create: Builder.StaticLibrary, allowed: []target.Visibility{target.Public, target.Private}},
	KindStaticLibrary:   {create: Builder.StaticLibrary, allowed: []target.Visibility{target.Public, target.Private}},
	KindSharedLibrary:   {create: Builder.SharedLibrary, allowed: []target.Visibility{target.Public, target.Private}},
	KindInterfaceLinker: {create: Builder.SharedLibrary, allowed: []target.Visibility{target.Public, target.Private}},
	KindPlugin:          {create: Builder.SharedLibrary, allowed: []target.Visibility{target.Public, target.Private}},
	KindHeaderOnly:      {create: Builder.HeaderOnly, allowed: []target.Visibility{target.Interface}, headerOnly: true},
	KindInterface:       {create: Builder.HeaderOnly, allowed: []target.Visibility{target.Interface}, headerOnly: true},
	KindModule:          {create: Builder.LoadableModule, allowed: []target.Visibility{target.Private}},
	KindTool:            {create: Builder.Executable, allowed: []target.Visibility{target.Private}},
	KindTest:            {create: Builder.Executable, allowed: []target.Visibility{target.Private}},
	KindBootstrap:       {create: Builder.Executable, allowed: []target.Visibility{target.Private}},
}

// Create materializes the build node for a descriptor: node creation, linkage
// validation, source and include attachment, dependency edges. The caller
// registers the returned node with the package registry.
func Create(d *Descriptor, b Builder) (*target.Node, error) {
	s, ok := strategies[d.Kind]
	if !ok {
		return nil, fmt.Errorf("project %q: unknown kind %d", d.Name, d.Kind)
	}

	if err := s.checkLinkage(d); err != nil {
		return nil, err
	}
	if s.headerOnly {
		for _, src := range d.Sources {
			if !isHeader(src) {
				return nil, fmt.Errorf("project %q (kind %s) may not carry compiled source %q", d.Name, d.Kind, src)
			}
		}
	}

	n, err := s.create(b, d.Name)
	if err != nil {
		return nil, err
	}
	n.PublicIncludeDirs = append(n.PublicIncludeDirs, d.PublicIncludeDirs...)
	// Interface-visibility deps propagate to consumers the same way public
	// ones do, so both feed the metadata collector.
	n.PublicDeps = append(n.PublicDeps, d.PublicDeps...)
	n.PublicDeps = append(n.PublicDeps, d.InterfaceDeps...)

	b.AttachSources(n, d.Sources)
	// Build/install distinction is preserved for install staging downstream.
	b.AttachIncludeDirs(n, d.PublicIncludeDirs, target.Public, pathspec.PhaseBuild)
	b.AttachIncludeDirs(n, d.PrivateIncludeDirs, target.Private, pathspec.PhaseBuild)

	for _, dep := range d.PublicDeps {
		b.Link(n, dep, target.Public)
	}
	for _, dep := range d.PrivateDeps {
		b.Link(n, dep, target.Private)
	}
	for _, dep := range d.InterfaceDeps {
		b.Link(n, dep, target.Interface)
	}
	for _, pkg := range d.ExternalPackages {
		b.Link(n, pkg, target.Private)
	}
	return n, nil
}

func (s strategy) checkLinkage(d *Descriptor) error {
	declared := []struct {
		vis  target.Visibility
		deps []string
	}{
		{target.Public, d.PublicDeps},
		{target.Private, d.PrivateDeps},
		{target.Interface, d.InterfaceDeps},
	}
	for _, decl := range declared {
		if len(decl.deps) == 0 {
			continue
		}
		if !s.allows(decl.vis) {
			return &LinkageError{Project: d.Name, Kind: d.Kind, Keyword: decl.vis, Allowed: s.allowed}
		}
	}
	return nil
}

func (s strategy) allows(v target.Visibility) bool {
	for _, a := range s.allowed {
		if a == v {
			return true
		}
	}
	return false
}

func isHeader(path string) bool {
	switch filepath.Ext(path) {
	case ".h", ".hpp", ".hh", ".hxx", ".inl", ".ipp":
		return true
	}
	return false
}
