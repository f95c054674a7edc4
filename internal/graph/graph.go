// Package graph describes generated-file DAGs with explicit input edges and
// executes them incrementally based on modification-time staleness.
package graph

import (
	"context"
	"fmt"
	"os"
)

// Stage identifies where an artifact sits in a header's generation chain.
type Stage int

const (
	StageAST Stage = iota
	StageInterfaceJSON
	StageNativeHeader
	StageWireSchema
	StageForeignWrapper
)

func (s Stage) String() string {
	switch s {
	case StageAST:
		return "ast_extraction"
	case StageInterfaceJSON:
		return "interface_json"
	case StageNativeHeader:
		return "native_header"
	case StageWireSchema:
		return "wire_schema"
	default:
		return "foreign_wrapper"
	}
}

// Artifact is one generated-file node. Inputs are the files whose change
// invalidates the artifact: its source, its template, and any upstream
// artifact in the same chain. Produce returns the full artifact content; the
// runner writes it atomically so a failed or interrupted production never
// leaves a fresh-looking partial file.
type Artifact struct {
	OutputPath string
	Stage      Stage
	Inputs     []string
	Produce    func(ctx context.Context) ([]byte, error)
}

// Stale reports whether the artifact must be regenerated: it is missing, or
// any input is newer than it. A missing input counts as stale so the error
// surfaces in Produce with proper context rather than silently here.
func (a *Artifact) Stale() bool {
	out, err := os.Stat(a.OutputPath)
	if err != nil {
		return true
	}
	for _, in := range a.Inputs {
		st, err := os.Stat(in)
		if err != nil || st.ModTime().After(out.ModTime()) {
			return true
		}
	}
	return false
}

// Set is a collection of artifacts with repository-wide unique output paths.
type Set struct {
	byOutput map[string]*Artifact
	order    []*Artifact
}

func NewSet() *Set {
	return &Set{byOutput: make(map[string]*Artifact)}
}

// Add registers an artifact. Two artifacts may not claim the same output
// path: the executor would otherwise race on that file.
func (s *Set) Add(a *Artifact) error {
	if prev, ok := s.byOutput[a.OutputPath]; ok {
		return fmt.Errorf("generated artifact %q declared by two producers (stages %s and %s)",
			a.OutputPath, prev.Stage, a.Stage)
	}
	s.byOutput[a.OutputPath] = a
	s.order = append(s.order, a)
	return nil
}

// Lookup returns the artifact producing the given output path.
func (s *Set) Lookup(output string) (*Artifact, bool) {
	a, ok := s.byOutput[output]
	return a, ok
}

// Artifacts returns all artifacts in registration order.
func (s *Set) Artifacts() []*Artifact {
	out := make([]*Artifact, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Set) Len() int { return len(s.order) }
