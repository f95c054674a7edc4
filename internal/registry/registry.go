// Package registry accumulates build targets under their logical package
// names during one configure pass and exports package descriptors that later
// invocations resolve through their package oracle.
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"golang.org/x/mod/semver"

	"github.com/forgebuild/forge/internal/target"
)

// Package export layout under the output root:
//
//	packages/<name>/
//	  targets.json    # export manifest: namespace + member target list
//	  version.json    # version/compatibility descriptor
//	  include/        # staged headers (install step, outside this core)
//	  lib/            # staged archives/libraries

// Registry is owned by the configure orchestrator and passed explicitly to
// every registration. The configure pass is single-threaded by contract, so
// no locking is needed here.
type Registry struct {
	HostPreset string
	BuildType  string
	Version    string
	Category   string

	packages  map[string]*pkg
	order     []string
	finalized map[string]bool
}

type pkg struct {
	members []*target.Node
	seen    map[string]bool
}

func New(hostPreset, buildType, version string) *Registry {
	return &Registry{
		HostPreset: hostPreset,
		BuildType:  buildType,
		Version:    version,
		packages:   make(map[string]*pkg),
		finalized:  make(map[string]bool),
	}
}

// Register appends a target under packageName, keeping first-registration
// order. Re-registering the same target is a no-op.
func (r *Registry) Register(packageName string, n *target.Node) {
	p, ok := r.packages[packageName]
	if !ok {
		p = &pkg{seen: make(map[string]bool)}
		r.packages[packageName] = p
		r.order = append(r.order, packageName)
	}
	if p.seen[n.Name] {
		return
	}
	p.seen[n.Name] = true
	p.members = append(p.members, n)
}

// Members returns the accumulated targets for a package in registration
// order.
func (r *Registry) Members(packageName string) []*target.Node {
	p, ok := r.packages[packageName]
	if !ok {
		return nil
	}
	out := make([]*target.Node, len(p.members))
	copy(out, p.members)
	return out
}

// PackageNames returns every registered package name in first-registration
// order.
func (r *Registry) PackageNames() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// exportManifest is the target-export descriptor other invocations consume.
type exportManifest struct {
	Name      string         `json:"name"`
	Namespace string         `json:"namespace"`
	Targets   []exportTarget `json:"targets"`
}

type exportTarget struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// versionDescriptor carries version and build-flavor compatibility data.
type versionDescriptor struct {
	Version    string `json:"version"`
	Compat     string `json:"compat"`
	HostPreset string `json:"host_preset"`
	BuildType  string `json:"build_type"`
	Category   string `json:"category,omitempty"`
}

// Finalize writes the package's descriptor files under
// <outputRoot>/packages/<name>. It must run exactly once per package, after
// every project has registered; the on-disk member list is only complete at
// that point, and making the ordering explicit here is the whole reason this
// registry exists.
func (r *Registry) Finalize(packageName, outputRoot string) error {
	if r.finalized[packageName] {
		return fmt.Errorf("package %q finalized twice", packageName)
	}
	p, ok := r.packages[packageName]
	if !ok {
		return fmt.Errorf("package %q has no registered targets", packageName)
	}
	version := r.Version
	if !semver.IsValid(version) {
		return fmt.Errorf("package %q version %q is not valid semver", packageName, version)
	}
	r.finalized[packageName] = true

	dir := filepath.Join(outputRoot, "packages", packageName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	manifest := exportManifest{
		Name:      packageName,
		Namespace: packageName + "::",
	}
	for _, n := range p.members {
		manifest.Targets = append(manifest.Targets, exportTarget{Name: n.Name, Kind: n.Kind.String()})
	}
	if err := writeJSON(filepath.Join(dir, "targets.json"), manifest); err != nil {
		return err
	}

	desc := versionDescriptor{
		Version:    version,
		Compat:     semver.Major(version),
		HostPreset: r.HostPreset,
		BuildType:  r.BuildType,
		Category:   r.Category,
	}
	return writeJSON(filepath.Join(dir, "version.json"), desc)
}

// FinalizeAll finalizes every registered package.
func (r *Registry) FinalizeAll(outputRoot string) error {
	for _, name := range r.PackageNames() {
		if err := r.Finalize(name, outputRoot); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}
