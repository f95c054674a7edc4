// Package target models materialized build nodes and resolves metadata
// across the dependency graph, including nodes provided by an external
// package oracle.
package target

import (
	"errors"
	"fmt"
)

// Visibility controls how a dependency or include directory propagates.
type Visibility int

const (
	Public Visibility = iota
	Private
	Interface
)

func (v Visibility) String() string {
	switch v {
	case Private:
		return "private"
	case Interface:
		return "interface"
	default:
		return "public"
	}
}

// NodeKind is the build-node archetype a project kind maps onto.
type NodeKind int

const (
	StaticArchive NodeKind = iota
	DynamicLibrary
	HeaderOnly
	Executable
	LoadableModule
	Prebuilt // materialized from the package oracle
)

func (k NodeKind) String() string {
	switch k {
	case StaticArchive:
		return "static_archive"
	case DynamicLibrary:
		return "dynamic_library"
	case HeaderOnly:
		return "header_only"
	case Executable:
		return "executable"
	case LoadableModule:
		return "loadable_module"
	default:
		return "prebuilt"
	}
}

// Node is one materialized build node. Nodes are referenced, never owned, by
// the project descriptors that link against them.
type Node struct {
	Name string
	Kind NodeKind

	// PublicIncludeDirs may still carry generator expressions; consumers
	// normalize them as needed.
	PublicIncludeDirs []string

	// PublicDeps are dependency names, resolved lazily: first against the
	// current invocation's index, then against the package oracle.
	PublicDeps []string

	// Prebuilt metadata, populated when the node comes from the oracle.
	LibDirs   []string
	LinkNames []string
}

// Index holds every node materialized during one configure pass.
type Index struct {
	nodes map[string]*Node
	order []string
}

func NewIndex() *Index {
	return &Index{nodes: make(map[string]*Node)}
}

// Add registers a node. Re-adding the same name is an error: output names
// are unique per invocation.
func (x *Index) Add(n *Node) error {
	if _, ok := x.nodes[n.Name]; ok {
		return fmt.Errorf("target %q declared twice", n.Name)
	}
	x.nodes[n.Name] = n
	x.order = append(x.order, n.Name)
	return nil
}

// Lookup returns the node for name, if materialized.
func (x *Index) Lookup(name string) (*Node, bool) {
	n, ok := x.nodes[name]
	return n, ok
}

// Names returns all node names in registration order.
func (x *Index) Names() []string {
	out := make([]string, len(x.order))
	copy(out, x.order)
	return out
}

// ErrNotFound reports that the oracle has no package under the asked name.
var ErrNotFound = errors.New("package not found")

// Resolution is what the package oracle knows about a prebuilt package.
type Resolution struct {
	IncludeDirs []string
	LibDirs     []string
	LinkNames   []string
}

// Oracle resolves named packages that are not materialized in this
// invocation. Backed externally by the package manager.
type Oracle interface {
	Resolve(name, hostPreset, buildType string) (*Resolution, error)
}

// ResolveError reports an unresolvable dependency. It is fatal for the
// project being configured but distinct from missing-input configuration
// errors.
type ResolveError struct {
	Dependency string
	RequiredBy string
	Err        error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("cannot resolve dependency %q required by %q: %v", e.Dependency, e.RequiredBy, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }
