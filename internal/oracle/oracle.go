// Package oracle resolves named packages against install roots populated by
// earlier forge invocations, closing the loop between one build's exported
// descriptors and the next build's dependency lookups.
package oracle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forgebuild/forge/internal/target"
)

// DirOracle implements target.Oracle over one or more install roots laid out
// the way registry.Finalize writes them.
type DirOracle struct {
	Roots []string
}

type exportManifest struct {
	Name    string `json:"name"`
	Targets []struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	} `json:"targets"`
}

type versionDescriptor struct {
	Version    string `json:"version"`
	HostPreset string `json:"host_preset"`
	BuildType  string `json:"build_type"`
}

// Resolve finds a package by name. A descriptor built for a different host
// preset or build type does not satisfy the request; the search continues in
// later roots.
func (o *DirOracle) Resolve(name, hostPreset, buildType string) (*target.Resolution, error) {
	for _, root := range o.Roots {
		dir := filepath.Join(root, "packages", name)
		res, err := o.resolveIn(dir, hostPreset, buildType)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("resolve %q in %s: %w", name, root, err)
		}
		if res != nil {
			return res, nil
		}
	}
	return nil, target.ErrNotFound
}

func (o *DirOracle) resolveIn(dir, hostPreset, buildType string) (*target.Resolution, error) {
	var manifest exportManifest
	if err := readJSON(filepath.Join(dir, "targets.json"), &manifest); err != nil {
		return nil, err
	}
	var desc versionDescriptor
	if err := readJSON(filepath.Join(dir, "version.json"), &desc); err != nil {
		return nil, err
	}
	if desc.HostPreset != hostPreset || desc.BuildType != buildType {
		return nil, nil
	}

	res := &target.Resolution{
		IncludeDirs: []string{filepath.Join(dir, "include")},
		LibDirs:     []string{filepath.Join(dir, "lib")},
	}
	for _, t := range manifest.Targets {
		// Header-only members contribute includes but nothing to link.
		if t.Kind == "header_only" {
			continue
		}
		res.LinkNames = append(res.LinkNames, t.Name)
	}
	return res, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
