package codegen

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/forgebuild/forge/internal/target"
)

type fakeExtractor struct {
	checkErr error
	extracts []string
}

func (f *fakeExtractor) Check() error { return f.checkErr }

func (f *fakeExtractor) Extract(ctx context.Context, header, rootNamespace, packageName string, includeDirs, includeFiles []string) ([]byte, error) {
	f.extracts = append(f.extracts, header)
	return []byte(`{"kind":"NamespaceDecl"}`), nil
}

type fakeRenderer struct {
	renders []string
}

func (f *fakeRenderer) Render(docPath, templatePath string) ([]byte, error) {
	f.renders = append(f.renders, filepath.Base(templatePath))
	return []byte("rendered"), nil
}

var templateNames = []string{
	"interface.json.tmpl",
	"interface_info.h.tmpl",
	"interface.wit.tmpl",
	"wasm.h.tmpl",
	"wasm.cs.tmpl",
	"wasm.rs.tmpl",
}

type pipelineFixture struct {
	pipeline  *Pipeline
	extractor *fakeExtractor
	renderer  *fakeRenderer
	opts      Options
	headers   []string
	owner     *target.Node
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	root := t.TempDir()

	tmplDir := filepath.Join(root, "templates")
	if err := os.MkdirAll(tmplDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range templateNames {
		if err := os.WriteFile(filepath.Join(tmplDir, name), []byte("{{.kind}}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	srcDir := filepath.Join(root, "include")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatal(err)
	}
	headers := []string{filepath.Join(srcDir, "foo.h"), filepath.Join(srcDir, "bar.h")}
	for _, h := range headers {
		if err := os.WriteFile(h, []byte("// header"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	index := target.NewIndex()
	owner := &target.Node{Name: "sample", Kind: target.StaticArchive, PublicIncludeDirs: []string{srcDir}}
	if err := index.Add(owner); err != nil {
		t.Fatal(err)
	}

	extractor := &fakeExtractor{}
	renderer := &fakeRenderer{}
	return &pipelineFixture{
		pipeline: &Pipeline{
			Extractor: extractor,
			Renderer:  renderer,
			Collector: &target.Collector{Index: index},
		},
		extractor: extractor,
		renderer:  renderer,
		opts: Options{
			PackageName:   "arieo:sample",
			RootNamespace: "Arieo::Interface::Sample",
			TemplateDir:   tmplDir,
			Outputs: OutputDirs{
				Generated:     filepath.Join(root, "out", "generated"),
				InterfaceJSON: filepath.Join(root, "out", "generated"),
				NativeHeader:  filepath.Join(root, "out", "generated"),
				WireSchema:    filepath.Join(root, "out", "wit"),
				WasmCxx:       filepath.Join(root, "out", "wasm", "cxx"),
				WasmCS:        filepath.Join(root, "out", "wasm", "csharp"),
				WasmRust:      filepath.Join(root, "out", "wasm", "rust"),
			},
		},
		headers: headers,
		owner:   owner,
	}
}

func TestDescribeFullChain(t *testing.T) {
	f := newPipelineFixture(t)
	set, err := f.pipeline.Describe(f.owner, f.headers[:1], f.opts)
	if err != nil {
		t.Fatal(err)
	}
	// One header with every output configured yields the full seven-artifact
	// chain.
	if set.Len() != 7 {
		t.Fatalf("set has %d artifacts, want 7", set.Len())
	}
	var names []string
	for _, a := range set.Artifacts() {
		names = append(names, filepath.Base(a.OutputPath))
	}
	sort.Strings(names)
	want := []string{
		"foo.ast.json",
		"foo.interface.json",
		"foo.interface.wit",
		"foo.interface_info.h",
		"foo.wasm.cs",
		"foo.wasm.h",
		"foo.wasm.rs",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("artifact names mismatch (-want +got):\n%s", diff)
	}
}

func TestDescribeOmittedOutputs(t *testing.T) {
	f := newPipelineFixture(t)

	f.opts.Outputs.WasmRust = ""
	set, err := f.pipeline.Describe(f.owner, f.headers[:1], f.opts)
	if err != nil {
		t.Fatal(err)
	}
	if set.Len() != 6 {
		t.Errorf("set has %d artifacts, want 6 without the rust wrapper", set.Len())
	}

	f.opts.Outputs = OutputDirs{Generated: f.opts.Outputs.Generated}
	set, err = f.pipeline.Describe(f.owner, f.headers[:1], f.opts)
	if err != nil {
		t.Fatal(err)
	}
	if set.Len() != 1 {
		t.Errorf("set has %d artifacts, want the AST document only", set.Len())
	}
}

func TestDescribeMissingParameters(t *testing.T) {
	f := newPipelineFixture(t)
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"package name", func(o *Options) { o.PackageName = "" }},
		{"root namespace", func(o *Options) { o.RootNamespace = "" }},
		{"generated folder", func(o *Options) { o.Outputs.Generated = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := f.opts
			tt.mutate(&opts)
			_, err := f.pipeline.Describe(f.owner, f.headers, opts)
			var merr *MissingParameterError
			if !errors.As(err, &merr) {
				t.Fatalf("error = %v, want *MissingParameterError", err)
			}
		})
	}
}

func TestDescribeFanOutWithoutInterfaceJSON(t *testing.T) {
	f := newPipelineFixture(t)
	f.opts.Outputs.InterfaceJSON = ""
	_, err := f.pipeline.Describe(f.owner, f.headers, f.opts)
	if err == nil {
		t.Fatal("expected configuration error")
	}
}

func TestDescribeFrontEndCheckFailure(t *testing.T) {
	f := newPipelineFixture(t)
	boom := errors.New("no front-end")
	f.extractor.checkErr = boom
	_, err := f.pipeline.Describe(f.owner, f.headers, f.opts)
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
}

func TestGenerateIsIncremental(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	if _, err := f.pipeline.Generate(ctx, f.owner, f.headers, f.opts); err != nil {
		t.Fatal(err)
	}
	if len(f.extractor.extracts) != 2 {
		t.Fatalf("first run extracted %d headers, want 2", len(f.extractor.extracts))
	}
	// 2 headers x (interface.json + 5 fan-outs)
	if len(f.renderer.renders) != 12 {
		t.Fatalf("first run rendered %d artifacts, want 12", len(f.renderer.renders))
	}

	f.extractor.extracts = nil
	f.renderer.renders = nil
	if _, err := f.pipeline.Generate(ctx, f.owner, f.headers, f.opts); err != nil {
		t.Fatal(err)
	}
	if len(f.extractor.extracts) != 0 || len(f.renderer.renders) != 0 {
		t.Errorf("second run did work: extracts=%v renders=%v", f.extractor.extracts, f.renderer.renders)
	}

	// Touching one header regenerates that header's chain only.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(f.headers[0], future, future); err != nil {
		t.Fatal(err)
	}
	if _, err := f.pipeline.Generate(ctx, f.owner, f.headers, f.opts); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{f.headers[0]}, f.extractor.extracts); diff != "" {
		t.Errorf("re-extracted headers mismatch (-want +got):\n%s", diff)
	}
}
