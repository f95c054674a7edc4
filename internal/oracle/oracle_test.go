package oracle

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/forgebuild/forge/internal/registry"
	"github.com/forgebuild/forge/internal/target"
)

func exportPackage(t *testing.T, root, name, hostPreset, buildType string, members ...*target.Node) {
	t.Helper()
	r := registry.New(hostPreset, buildType, "v1.0.0")
	for _, n := range members {
		r.Register(name, n)
	}
	if err := r.Finalize(name, root); err != nil {
		t.Fatal(err)
	}
}

func TestResolveRoundTrip(t *testing.T) {
	root := t.TempDir()
	exportPackage(t, root, "engine", "linux-x64", "Debug",
		&target.Node{Name: "world", Kind: target.StaticArchive},
		&target.Node{Name: "world_api", Kind: target.HeaderOnly},
	)

	o := &DirOracle{Roots: []string{root}}
	res, err := o.Resolve("engine", "linux-x64", "Debug")
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(root, "packages", "engine")
	want := &target.Resolution{
		IncludeDirs: []string{filepath.Join(dir, "include")},
		LibDirs:     []string{filepath.Join(dir, "lib")},
		// Header-only members contribute no link names.
		LinkNames: []string{"world"},
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("resolution mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveFlavorMismatch(t *testing.T) {
	root := t.TempDir()
	exportPackage(t, root, "engine", "linux-x64", "Debug", &target.Node{Name: "world"})

	o := &DirOracle{Roots: []string{root}}
	if _, err := o.Resolve("engine", "linux-x64", "Release"); !errors.Is(err, target.ErrNotFound) {
		t.Errorf("build-type mismatch: err = %v, want ErrNotFound", err)
	}
	if _, err := o.Resolve("engine", "win-x64", "Debug"); !errors.Is(err, target.ErrNotFound) {
		t.Errorf("host-preset mismatch: err = %v, want ErrNotFound", err)
	}
}

func TestResolveSearchesLaterRoots(t *testing.T) {
	empty := t.TempDir()
	populated := t.TempDir()
	exportPackage(t, populated, "engine", "linux-x64", "Debug", &target.Node{Name: "world"})

	o := &DirOracle{Roots: []string{empty, populated}}
	res, err := o.Resolve("engine", "linux-x64", "Debug")
	if err != nil {
		t.Fatal(err)
	}
	wantInclude := filepath.Join(populated, "packages", "engine", "include")
	if len(res.IncludeDirs) != 1 || res.IncludeDirs[0] != wantInclude {
		t.Errorf("include dirs = %v, want %q", res.IncludeDirs, wantInclude)
	}
}

func TestResolveUnknownPackage(t *testing.T) {
	o := &DirOracle{Roots: []string{t.TempDir()}}
	if _, err := o.Resolve("ghost", "linux-x64", "Debug"); !errors.Is(err, target.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
