// Package codegen builds and runs the interface code generation DAG: AST
// extraction per header, simplification into a stable interface description,
// and the per-target fan-out renders.
package codegen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/forgebuild/forge/internal/graph"
	"github.com/forgebuild/forge/internal/target"
)

// MissingParameterError reports a required pipeline input absent before any
// work begins.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("interface generation requires %s", e.Name)
}

// OutputDirs configures where each artifact kind lands. Generated is
// mandatory (the AST documents). Every other directory is optional; leaving
// one empty drops that artifact from each header's chain.
type OutputDirs struct {
	Generated     string
	InterfaceJSON string
	NativeHeader  string
	WireSchema    string
	WasmCxx       string
	WasmCS        string
	WasmRust      string
}

// Options are the per-invocation pipeline inputs.
type Options struct {
	PackageName   string
	RootNamespace string
	TemplateDir   string

	// ExtraIncludeDirs extend the search path beyond the owning target's
	// transitive collection.
	ExtraIncludeDirs []string
	IncludeFiles     []string

	Outputs OutputDirs

	// AbortOnError stops at the first failing header instead of collecting
	// failures across headers and reporting them in aggregate.
	AbortOnError bool
}

// fanOut maps one optional output directory to its artifact shape.
type fanOut struct {
	dir      func(OutputDirs) string
	suffix   string
	template string
	stage    graph.Stage
}

var fanOuts = []fanOut{
	{func(o OutputDirs) string { return o.NativeHeader }, ".interface_info.h", "interface_info.h.tmpl", graph.StageNativeHeader},
	{func(o OutputDirs) string { return o.WireSchema }, ".interface.wit", "interface.wit.tmpl", graph.StageWireSchema},
	{func(o OutputDirs) string { return o.WasmCxx }, ".wasm.h", "wasm.h.tmpl", graph.StageForeignWrapper},
	{func(o OutputDirs) string { return o.WasmCS }, ".wasm.cs", "wasm.cs.tmpl", graph.StageForeignWrapper},
	{func(o OutputDirs) string { return o.WasmRust }, ".wasm.rs", "wasm.rs.tmpl", graph.StageForeignWrapper},
}

// HeaderExtractor is the front-end seam. Check validates the environment
// once per run; Extract processes one header.
type HeaderExtractor interface {
	Check() error
	Extract(ctx context.Context, header, rootNamespace, packageName string, includeDirs, includeFiles []string) ([]byte, error)
}

// Pipeline wires the extractor, renderer and metadata collector together.
type Pipeline struct {
	Extractor HeaderExtractor
	Renderer  Renderer
	Collector *target.Collector
	Log       *zap.Logger
}

// Describe builds the generated-artifact DAG for the owner's interface
// headers. Each header's chain is independent; stage edges within a chain
// are explicit inputs, so an executor may parallelize across headers and
// across fan-out branches.
func (p *Pipeline) Describe(owner *target.Node, headers []string, opts Options) (*graph.Set, error) {
	if err := p.checkEnvironment(opts); err != nil {
		return nil, err
	}

	searchPath, err := p.includeSearchPath(owner, opts)
	if err != nil {
		return nil, err
	}

	set := graph.NewSet()
	for _, header := range headers {
		if err := p.describeHeader(set, header, searchPath, opts); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// Run produces every stale artifact in the set, creating the configured
// output directories first. The set may span several owners' chains; output
// uniqueness was already enforced when it was assembled.
func (p *Pipeline) Run(ctx context.Context, set *graph.Set, opts Options) error {
	for _, dir := range outputDirList(opts.Outputs) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	runner := &graph.Runner{Log: p.Log, AbortOnError: opts.AbortOnError}
	return runner.Run(ctx, set)
}

// Generate describes the DAG and produces every stale artifact.
func (p *Pipeline) Generate(ctx context.Context, owner *target.Node, headers []string, opts Options) (*graph.Set, error) {
	set, err := p.Describe(owner, headers, opts)
	if err != nil {
		return nil, err
	}
	if err := p.Run(ctx, set, opts); err != nil {
		return set, err
	}
	return set, nil
}

// checkEnvironment validates invocation-wide prerequisites once, before any
// header is touched.
func (p *Pipeline) checkEnvironment(opts Options) error {
	if opts.PackageName == "" {
		return &MissingParameterError{Name: "a package name"}
	}
	if opts.RootNamespace == "" {
		return &MissingParameterError{Name: "a root namespace"}
	}
	if opts.Outputs.Generated == "" {
		return &MissingParameterError{Name: "a generated-output folder"}
	}
	if err := p.Extractor.Check(); err != nil {
		return err
	}
	if st, err := os.Stat(opts.TemplateDir); err != nil || !st.IsDir() {
		return fmt.Errorf("template folder %q not usable: %v", opts.TemplateDir, err)
	}
	if opts.Outputs.InterfaceJSON == "" {
		for _, f := range fanOuts {
			if f.dir(opts.Outputs) != "" {
				return fmt.Errorf("output folder for %s configured but no interface-description folder to feed it", f.suffix)
			}
		}
	}
	return nil
}

// includeSearchPath is the owner's transitive public include closure plus
// the explicitly passed extras, first occurrence winning.
func (p *Pipeline) includeSearchPath(owner *target.Node, opts Options) ([]string, error) {
	dirs, err := p.Collector.CollectIncludeDirs(owner, nil)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		seen[d] = true
	}
	for _, d := range opts.ExtraIncludeDirs {
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	return dirs, nil
}

func (p *Pipeline) describeHeader(set *graph.Set, header string, searchPath []string, opts Options) error {
	base := strings.TrimSuffix(filepath.Base(header), filepath.Ext(header))

	astPath := filepath.Join(opts.Outputs.Generated, base+".ast.json")
	err := set.Add(&graph.Artifact{
		OutputPath: astPath,
		Stage:      graph.StageAST,
		Inputs:     []string{header},
		Produce: func(ctx context.Context) ([]byte, error) {
			return p.Extractor.Extract(ctx, header, opts.RootNamespace, opts.PackageName, searchPath, opts.IncludeFiles)
		},
	})
	if err != nil {
		return err
	}

	if opts.Outputs.InterfaceJSON == "" {
		return nil
	}
	ifacePath := filepath.Join(opts.Outputs.InterfaceJSON, base+".interface.json")
	ifaceTmpl := filepath.Join(opts.TemplateDir, "interface.json.tmpl")
	err = set.Add(&graph.Artifact{
		OutputPath: ifacePath,
		Stage:      graph.StageInterfaceJSON,
		Inputs:     []string{astPath, ifaceTmpl},
		Produce: func(ctx context.Context) ([]byte, error) {
			return p.Renderer.Render(astPath, ifaceTmpl)
		},
	})
	if err != nil {
		return err
	}

	for _, f := range fanOuts {
		dir := f.dir(opts.Outputs)
		if dir == "" {
			continue
		}
		tmpl := filepath.Join(opts.TemplateDir, f.template)
		err := set.Add(&graph.Artifact{
			OutputPath: filepath.Join(dir, base+f.suffix),
			Stage:      f.stage,
			Inputs:     []string{ifacePath, tmpl},
			Produce: func(ctx context.Context) ([]byte, error) {
				return p.Renderer.Render(ifacePath, tmpl)
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func outputDirList(o OutputDirs) []string {
	var dirs []string
	for _, d := range []string{o.Generated, o.InterfaceJSON, o.NativeHeader, o.WireSchema, o.WasmCxx, o.WasmCS, o.WasmRust} {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}
