package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/forgebuild/forge/internal/target"
)

func TestRegisterKeepsOrderAndDedups(t *testing.T) {
	r := New("linux-x64", "Debug", "v1.2.3")
	world := &target.Node{Name: "world", Kind: target.StaticArchive}
	api := &target.Node{Name: "world_api", Kind: target.HeaderOnly}

	r.Register("engine", world)
	r.Register("engine", api)
	r.Register("engine", world) // re-registration is a no-op
	r.Register("tools", &target.Node{Name: "forge_cli", Kind: target.Executable})

	if diff := cmp.Diff([]string{"engine", "tools"}, r.PackageNames()); diff != "" {
		t.Errorf("package names mismatch (-want +got):\n%s", diff)
	}
	members := r.Members("engine")
	if len(members) != 2 || members[0] != world || members[1] != api {
		t.Errorf("members = %v", members)
	}
	if got := r.Members("unknown"); got != nil {
		t.Errorf("Members(unknown) = %v, want nil", got)
	}
}

func TestFinalizeWritesDescriptors(t *testing.T) {
	root := t.TempDir()
	r := New("linux-x64", "Debug", "v1.2.3")
	r.Category = "engine"
	r.Register("engine", &target.Node{Name: "world", Kind: target.StaticArchive})
	r.Register("engine", &target.Node{Name: "world_api", Kind: target.HeaderOnly})

	if err := r.Finalize("engine", root); err != nil {
		t.Fatal(err)
	}

	var manifest struct {
		Name      string `json:"name"`
		Namespace string `json:"namespace"`
		Targets   []struct {
			Name string `json:"name"`
			Kind string `json:"kind"`
		} `json:"targets"`
	}
	readJSONFile(t, filepath.Join(root, "packages", "engine", "targets.json"), &manifest)
	if manifest.Name != "engine" || manifest.Namespace != "engine::" {
		t.Errorf("manifest header = %q/%q", manifest.Name, manifest.Namespace)
	}
	if len(manifest.Targets) != 2 {
		t.Fatalf("manifest has %d targets, want 2", len(manifest.Targets))
	}
	if manifest.Targets[0].Name != "world" || manifest.Targets[0].Kind != "static_archive" {
		t.Errorf("first target = %+v", manifest.Targets[0])
	}
	if manifest.Targets[1].Kind != "header_only" {
		t.Errorf("second target = %+v", manifest.Targets[1])
	}

	var desc struct {
		Version    string `json:"version"`
		Compat     string `json:"compat"`
		HostPreset string `json:"host_preset"`
		BuildType  string `json:"build_type"`
		Category   string `json:"category"`
	}
	readJSONFile(t, filepath.Join(root, "packages", "engine", "version.json"), &desc)
	want := desc
	want.Version = "v1.2.3"
	want.Compat = "v1"
	want.HostPreset = "linux-x64"
	want.BuildType = "Debug"
	want.Category = "engine"
	if desc != want {
		t.Errorf("version descriptor = %+v, want %+v", desc, want)
	}
}

func TestFinalizeTwice(t *testing.T) {
	root := t.TempDir()
	r := New("linux-x64", "Debug", "v1.0.0")
	r.Register("engine", &target.Node{Name: "world"})
	if err := r.Finalize("engine", root); err != nil {
		t.Fatal(err)
	}
	err := r.Finalize("engine", root)
	if err == nil || !strings.Contains(err.Error(), "finalized twice") {
		t.Errorf("err = %v, want finalized-twice error", err)
	}
}

func TestFinalizeUnknownPackage(t *testing.T) {
	r := New("linux-x64", "Debug", "v1.0.0")
	if err := r.Finalize("ghost", t.TempDir()); err == nil {
		t.Error("expected error for unknown package")
	}
}

func TestFinalizeInvalidVersion(t *testing.T) {
	r := New("linux-x64", "Debug", "1.0") // no leading v, not semver
	r.Register("engine", &target.Node{Name: "world"})
	err := r.Finalize("engine", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "not valid semver") {
		t.Errorf("err = %v, want semver error", err)
	}
}

func TestFinalizeAll(t *testing.T) {
	root := t.TempDir()
	r := New("linux-x64", "Release", "v2.0.0")
	r.Register("engine", &target.Node{Name: "world"})
	r.Register("tools", &target.Node{Name: "forge_cli", Kind: target.Executable})
	if err := r.FinalizeAll(root); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"engine", "tools"} {
		if _, err := os.Stat(filepath.Join(root, "packages", name, "targets.json")); err != nil {
			t.Errorf("package %s not exported: %v", name, err)
		}
	}
}

func readJSONFile(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatal(err)
	}
}
