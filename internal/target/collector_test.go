package target

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fakeOracle struct {
	packages map[string]*Resolution
	calls    []string
}

func (f *fakeOracle) Resolve(name, hostPreset, buildType string) (*Resolution, error) {
	f.calls = append(f.calls, name)
	if res, ok := f.packages[name]; ok {
		return res, nil
	}
	return nil, ErrNotFound
}

func mustAdd(t *testing.T, x *Index, n *Node) {
	t.Helper()
	if err := x.Add(n); err != nil {
		t.Fatal(err)
	}
}

func TestCollectIncludeDirsOrderAndDedup(t *testing.T) {
	x := NewIndex()
	mustAdd(t, x, &Node{
		Name:              "app",
		Kind:              Executable,
		PublicIncludeDirs: []string{"/app/include", "/shared"},
		PublicDeps:        []string{"core", "math"},
	})
	mustAdd(t, x, &Node{
		Name:              "core",
		Kind:              StaticArchive,
		PublicIncludeDirs: []string{"/core/include", "/shared"},
		PublicDeps:        []string{"math"},
	})
	mustAdd(t, x, &Node{
		Name:              "math",
		Kind:              HeaderOnly,
		PublicIncludeDirs: []string{"/math/include"},
	})

	c := &Collector{Index: x}
	n, _ := x.Lookup("app")
	got, err := c.CollectIncludeDirs(n, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/app/include", "/shared", "/core/include", "/math/include"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("include dirs mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectIncludeDirsCycle(t *testing.T) {
	x := NewIndex()
	mustAdd(t, x, &Node{Name: "a", PublicIncludeDirs: []string{"/a"}, PublicDeps: []string{"b"}})
	mustAdd(t, x, &Node{Name: "b", PublicIncludeDirs: []string{"/b"}, PublicDeps: []string{"a"}})

	c := &Collector{Index: x}
	n, _ := x.Lookup("a")
	got, err := c.CollectIncludeDirs(n, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/a", "/b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("include dirs mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectIncludeDirsMaterializesFromOracle(t *testing.T) {
	x := NewIndex()
	mustAdd(t, x, &Node{
		Name:       "game",
		Kind:       DynamicLibrary,
		PublicDeps: []string{"physics"},
	})
	oracle := &fakeOracle{packages: map[string]*Resolution{
		"physics": {
			IncludeDirs: []string{"/pkgs/physics/include"},
			LibDirs:     []string{"/pkgs/physics/lib"},
			LinkNames:   []string{"physics"},
		},
	}}

	c := &Collector{Index: x, Oracle: oracle, HostPreset: "linux-x64", BuildType: "Debug"}
	n, _ := x.Lookup("game")
	got, err := c.CollectIncludeDirs(n, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/pkgs/physics/include"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("include dirs mismatch (-want +got):\n%s", diff)
	}

	// The resolved package is materialized into the index so a second walk
	// answers from there.
	dep, ok := x.Lookup("physics")
	if !ok {
		t.Fatal("resolved package not materialized into index")
	}
	if dep.Kind != Prebuilt {
		t.Errorf("materialized kind = %v, want %v", dep.Kind, Prebuilt)
	}
	if _, err := c.CollectIncludeDirs(n, nil); err != nil {
		t.Fatal(err)
	}
	if len(oracle.calls) != 1 {
		t.Errorf("oracle resolved %d times, want 1: %v", len(oracle.calls), oracle.calls)
	}
}

func TestCollectIncludeDirsUnresolvable(t *testing.T) {
	x := NewIndex()
	mustAdd(t, x, &Node{Name: "game", PublicDeps: []string{"ghost"}})

	c := &Collector{Index: x, Oracle: &fakeOracle{}}
	n, _ := x.Lookup("game")
	_, err := c.CollectIncludeDirs(n, nil)
	if err == nil {
		t.Fatal("expected resolve error")
	}
	var rerr *ResolveError
	if !errors.As(err, &rerr) {
		t.Fatalf("error type = %T, want *ResolveError", err)
	}
	if rerr.Dependency != "ghost" || rerr.RequiredBy != "game" {
		t.Errorf("ResolveError = %+v", rerr)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error does not unwrap to ErrNotFound: %v", err)
	}
}

func TestIndexAddDuplicate(t *testing.T) {
	x := NewIndex()
	mustAdd(t, x, &Node{Name: "core"})
	err := x.Add(&Node{Name: "core"})
	if err == nil {
		t.Fatal("expected duplicate error")
	}
	want := fmt.Sprintf("target %q declared twice", "core")
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err, want)
	}
}

func TestIndexNamesOrder(t *testing.T) {
	x := NewIndex()
	for _, name := range []string{"c", "a", "b"} {
		mustAdd(t, x, &Node{Name: name})
	}
	if diff := cmp.Diff([]string{"c", "a", "b"}, x.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}
