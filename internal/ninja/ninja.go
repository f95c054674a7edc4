// Package ninja implements the build-node primitives by describing the
// configured projects as a ninja file. forge only describes the graph; the
// ninja executor runs it, in parallel where the edges allow.
package ninja

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/forgebuild/forge/internal/pathspec"
	"github.com/forgebuild/forge/internal/target"
)

const header = `# This file is generated by forge configure. Do not edit.
ninja_required_version = 1.7

rule cxx
    command = $cxx -MMD -MF $out.d $cflags $includes -c $in -o $out
    depfile = $out.d
    deps = gcc
    description = CXX $out

rule ar
    command = rm -f $out && $ar crs $out $in
    description = AR $out

rule link
    command = $cxx $in -o $out $ldflags $libs
    description = LINK $out

rule solink
    command = $cxx -shared $in -o $out $ldflags $libs
    description = SOLINK $out

rule custom
    command = $argv
    description = GEN $out
`

type edge struct {
	rule    string
	outputs []string
	inputs  []string
	vars    [][2]string
}

type nodeState struct {
	node *target.Node

	sources     []string
	includeVars []string // normalized -I flags visible when compiling this node
	deps        []string
	installDirs []string // install-phase include dirs, kept for staging
}

// File accumulates build nodes and writes them out as build.ninja.
// It implements project.Builder.
type File struct {
	Index *target.Index
	Norm  pathspec.Normalizer

	OutDir string // object/library output root

	states  map[string]*nodeState
	order   []string
	customs []edge
}

func NewFile(index *target.Index, norm pathspec.Normalizer, outDir string) *File {
	return &File{
		Index:  index,
		Norm:   norm,
		OutDir: outDir,
		states: make(map[string]*nodeState),
	}
}

func (f *File) create(name string, kind target.NodeKind) (*target.Node, error) {
	n := &target.Node{Name: name, Kind: kind}
	if err := f.Index.Add(n); err != nil {
		return nil, err
	}
	f.states[name] = &nodeState{node: n}
	f.order = append(f.order, name)
	return n, nil
}

func (f *File) StaticLibrary(name string) (*target.Node, error) {
	return f.create(name, target.StaticArchive)
}

func (f *File) SharedLibrary(name string) (*target.Node, error) {
	return f.create(name, target.DynamicLibrary)
}

func (f *File) HeaderOnly(name string) (*target.Node, error) {
	return f.create(name, target.HeaderOnly)
}

func (f *File) Executable(name string) (*target.Node, error) {
	return f.create(name, target.Executable)
}

func (f *File) LoadableModule(name string) (*target.Node, error) {
	return f.create(name, target.LoadableModule)
}

func (f *File) AttachSources(n *target.Node, sources []string) {
	st := f.states[n.Name]
	st.sources = append(st.sources, sources...)
}

func (f *File) AttachIncludeDirs(n *target.Node, dirs []string, vis target.Visibility, phase pathspec.Phase) {
	st := f.states[n.Name]
	if phase == pathspec.PhaseInstall {
		// Not compiled against here; preserved for install staging.
		st.installDirs = append(st.installDirs, dirs...)
		return
	}
	for _, dir := range f.Norm.Normalize(dirs) {
		st.includeVars = append(st.includeVars, "-I"+dir)
	}
}

func (f *File) Link(n *target.Node, depName string, vis target.Visibility) {
	st := f.states[n.Name]
	st.deps = append(st.deps, depName)
}

// Custom declares a custom graph node with explicit outputs, inputs and an
// invocation command.
func (f *File) Custom(name string, outputs, inputs []string, argv []string) {
	f.customs = append(f.customs, edge{
		rule:    "custom",
		outputs: outputs,
		inputs:  inputs,
		vars:    [][2]string{{"argv", strings.Join(argv, " ")}},
	})
}

// WriteTo renders the accumulated graph and writes it atomically.
func (f *File) WriteTo(path string) error {
	var buf bytes.Buffer
	buf.WriteString(header)
	for _, name := range f.order {
		if err := f.writeNode(&buf, f.states[name]); err != nil {
			return err
		}
	}
	for _, e := range f.customs {
		writeEdge(&buf, e)
	}
	return atomic.WriteFile(path, &buf)
}

func (f *File) writeNode(buf *bytes.Buffer, st *nodeState) error {
	n := st.node
	if n.Kind == target.HeaderOnly {
		// Virtual: nothing to build, participates via includes only.
		fmt.Fprintf(buf, "\n# %s (header only)\n", n.Name)
		return nil
	}

	includes := strings.Join(st.includeVars, " ")
	var objs []string
	for _, src := range st.sources {
		obj := filepath.Join(f.OutDir, "obj", n.Name, replaceExt(filepath.Base(src), ".o"))
		objs = append(objs, obj)
		writeEdge(buf, edge{
			rule:    "cxx",
			outputs: []string{obj},
			inputs:  []string{src},
			vars:    [][2]string{{"includes", includes}},
		})
	}

	out, rule := f.finalOutput(n)
	libs := f.depLibFlags(st)
	writeEdge(buf, edge{
		rule:    rule,
		outputs: []string{out},
		inputs:  objs,
		vars:    [][2]string{{"libs", strings.Join(libs, " ")}},
	})
	fmt.Fprintf(buf, "build %s: phony %s\n", escapePath(n.Name), escapePath(out))
	return nil
}

func (f *File) finalOutput(n *target.Node) (path, rule string) {
	switch n.Kind {
	case target.StaticArchive:
		return filepath.Join(f.OutDir, "lib", "lib"+n.Name+".a"), "ar"
	case target.DynamicLibrary, target.LoadableModule:
		return filepath.Join(f.OutDir, "lib", "lib"+n.Name+".so"), "solink"
	default:
		return filepath.Join(f.OutDir, "bin", n.Name), "link"
	}
}

func (f *File) depLibFlags(st *nodeState) []string {
	var flags []string
	for _, dep := range st.deps {
		n, ok := f.Index.Lookup(dep)
		if !ok {
			// Unmaterialized names are resolved against the oracle during
			// configure; by emit time everything known ends up in the index.
			flags = append(flags, "-l"+dep)
			continue
		}
		switch n.Kind {
		case target.HeaderOnly:
		case target.Prebuilt:
			for _, dir := range n.LibDirs {
				flags = append(flags, "-L"+dir)
			}
			for _, lib := range n.LinkNames {
				flags = append(flags, "-l"+lib)
			}
		default:
			out, _ := f.finalOutput(n)
			flags = append(flags, out)
		}
	}
	return flags
}

func writeEdge(buf *bytes.Buffer, e edge) {
	buf.WriteString("build")
	for _, out := range e.outputs {
		buf.WriteString(" " + escapePath(out))
	}
	buf.WriteString(": " + e.rule)
	for _, in := range e.inputs {
		buf.WriteString(" " + escapePath(in))
	}
	buf.WriteString("\n")
	for _, v := range e.vars {
		if v[1] != "" {
			fmt.Fprintf(buf, "    %s = %s\n", v[0], v[1])
		}
	}
}

func replaceExt(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}

var pathEscaper = strings.NewReplacer(
	"$", "$$",
	" ", "$ ",
	":", "$:")

// escapePath escapes a path for use as a ninja input or output.
func escapePath(p string) string {
	if strings.ContainsRune(p, '\n') {
		panic(fmt.Sprintf("path %q contains a newline; ninja cannot represent it", p))
	}
	return pathEscaper.Replace(p)
}
