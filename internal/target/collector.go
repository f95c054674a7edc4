package target

import (
	"github.com/forgebuild/forge/internal/pathspec"
)

// Collector walks a node's public dependency closure and gathers include
// directories for tools that need a flat search path.
type Collector struct {
	Index      *Index
	Oracle     Oracle
	HostPreset string
	BuildType  string
	Norm       pathspec.Normalizer
}

// CollectIncludeDirs returns the node's own public include directories
// followed by those of every public dependency, depth-first. Duplicates keep
// their first occurrence: the resulting order is the search-path order handed
// to the metadata extractor, where earlier entries shadow later ones.
//
// visited guards against dependency cycles; pass nil at the top level.
func (c *Collector) CollectIncludeDirs(n *Node, visited map[string]bool) ([]string, error) {
	if visited == nil {
		visited = make(map[string]bool)
	}
	seen := make(map[string]bool)
	var out []string
	if err := c.collect(n, visited, seen, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Collector) collect(n *Node, visited, seen map[string]bool, out *[]string) error {
	if visited[n.Name] {
		return nil
	}
	visited[n.Name] = true

	for _, dir := range c.Norm.Normalize(n.PublicIncludeDirs) {
		if !seen[dir] {
			seen[dir] = true
			*out = append(*out, dir)
		}
	}
	for _, depName := range n.PublicDeps {
		dep, err := c.materialize(depName, n.Name)
		if err != nil {
			return err
		}
		if err := c.collect(dep, visited, seen, out); err != nil {
			return err
		}
	}
	return nil
}

// materialize finds the named dependency in this invocation's index or asks
// the oracle for it. The interface generation pipeline cannot proceed without
// knowing where a dependency's headers live, so failure here is fatal for the
// requesting project.
func (c *Collector) materialize(name, requiredBy string) (*Node, error) {
	if n, ok := c.Index.Lookup(name); ok {
		return n, nil
	}
	if c.Oracle == nil {
		return nil, &ResolveError{Dependency: name, RequiredBy: requiredBy, Err: ErrNotFound}
	}
	res, err := c.Oracle.Resolve(name, c.HostPreset, c.BuildType)
	if err != nil {
		return nil, &ResolveError{Dependency: name, RequiredBy: requiredBy, Err: err}
	}
	n := &Node{
		Name:              name,
		Kind:              Prebuilt,
		PublicIncludeDirs: res.IncludeDirs,
		LibDirs:           res.LibDirs,
		LinkNames:         res.LinkNames,
	}
	if err := c.Index.Add(n); err != nil {
		return nil, err
	}
	return n, nil
}
