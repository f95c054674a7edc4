// Package engine orchestrates one configure pass: manifest discovery, kind
// dispatch, interface code generation, package export, and ninja emission.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/mattn/go-zglob"
	"go.uber.org/zap"

	"github.com/forgebuild/forge/internal/codegen"
	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/graph"
	"github.com/forgebuild/forge/internal/ninja"
	"github.com/forgebuild/forge/internal/oracle"
	"github.com/forgebuild/forge/internal/pathspec"
	"github.com/forgebuild/forge/internal/project"
	"github.com/forgebuild/forge/internal/registry"
	"github.com/forgebuild/forge/internal/target"
)

// Engine owns the per-invocation state. The configure pass is sequential:
// one project registers at a time, so the registry needs no locking; only
// the described graphs execute in parallel, downstream.
type Engine struct {
	Cfg *config.Config
	Log *zap.Logger

	index     *target.Index
	collector *target.Collector
	builder   *ninja.File
	registry  *registry.Registry
	pipeline  *codegen.Pipeline
}

func New(cfg *config.Config, log *zap.Logger) *Engine {
	norm := pathspec.Normalizer{Config: cfg.BuildType, Log: log}
	index := target.NewIndex()
	roots := append([]string{cfg.OutputRoot}, cfg.InstallRoots...)
	collector := &target.Collector{
		Index:      index,
		Oracle:     &oracle.DirOracle{Roots: roots},
		HostPreset: cfg.HostPreset,
		BuildType:  cfg.BuildType,
		Norm:       norm,
	}
	return &Engine{
		Cfg:       cfg,
		Log:       log,
		index:     index,
		collector: collector,
		builder:   ninja.NewFile(index, norm, cfg.OutputRoot),
		registry:  registry.New(cfg.HostPreset, cfg.BuildType, cfg.PackageVersion),
		pipeline: &codegen.Pipeline{
			Extractor: &codegen.Extractor{Clang: cfg.Clang, Log: log},
			Renderer:  codegen.TemplateRenderer{},
			Collector: collector,
			Log:       log,
		},
	}
}

// Configure discovers every forge.toml below rootDir and compiles the
// declarations into a ninja file, generated interface artifacts, and an
// exported package descriptor.
func (e *Engine) Configure(ctx context.Context, rootDir string) error {
	descriptors, err := e.discover(rootDir)
	if err != nil {
		return err
	}
	if len(descriptors) == 0 {
		return fmt.Errorf("no forge.toml manifests found under %s", rootDir)
	}

	// First pass: materialize every build node, so dependency lookups during
	// codegen never depend on manifest path order.
	var withHeaders []configured
	for _, d := range descriptors {
		node, err := project.Create(d, e.builder)
		if err != nil {
			return err
		}
		e.registry.Register(e.Cfg.PackageName, node)
		e.Log.Info("configured project",
			zap.String("project", d.Name),
			zap.String("kind", d.Kind.String()))
		if len(d.InterfaceHeaders) > 0 {
			withHeaders = append(withHeaders, configured{desc: d, node: node})
		}
	}

	// Second pass: describe every project's artifact chains into one set and
	// produce it once.
	set, err := e.describeAll(withHeaders)
	if err != nil {
		return err
	}
	if set.Len() > 0 {
		if err := e.pipeline.Run(ctx, set, e.codegenOptions()); err != nil {
			return err
		}
	}

	// All projects are known; the export descriptors are complete now and
	// only now.
	if err := e.registry.FinalizeAll(e.Cfg.OutputRoot); err != nil {
		return err
	}
	return e.builder.WriteTo(filepath.Join(e.Cfg.OutputRoot, "build.ninja"))
}

// configured pairs a loaded descriptor with its materialized build node.
type configured struct {
	desc *project.Descriptor
	node *target.Node
}

// describeAll assembles the artifact chains of every interface-header
// project into one set. Output paths are unique per invocation, not per
// project: two projects claiming the same generated file is an error caught
// here, before anything is produced.
func (e *Engine) describeAll(projects []configured) (*graph.Set, error) {
	all := graph.NewSet()
	opts := e.codegenOptions()
	for _, p := range projects {
		set, err := e.pipeline.Describe(p.node, p.desc.InterfaceHeaders, opts)
		if err != nil {
			return nil, fmt.Errorf("interface generation for %q: %w", p.desc.Name, err)
		}
		for _, a := range set.Artifacts() {
			if err := all.Add(a); err != nil {
				return nil, fmt.Errorf("interface generation for %q: %w", p.desc.Name, err)
			}
		}
	}
	return all, nil
}

// Generate runs only the interface code generation DAG for the projects
// below rootDir, incrementally.
func (e *Engine) Generate(ctx context.Context, rootDir string) (*graph.Set, error) {
	descriptors, err := e.discover(rootDir)
	if err != nil {
		return nil, err
	}
	// Every node is created up front, headers or not: a later-sorted project
	// may be the dependency of an earlier one.
	var withHeaders []configured
	for _, d := range descriptors {
		node, err := project.Create(d, e.builder)
		if err != nil {
			return nil, err
		}
		if len(d.InterfaceHeaders) > 0 {
			withHeaders = append(withHeaders, configured{desc: d, node: node})
		}
	}
	set, err := e.describeAll(withHeaders)
	if err != nil {
		return nil, err
	}
	if set.Len() > 0 {
		if err := e.pipeline.Run(ctx, set, e.codegenOptions()); err != nil {
			return set, err
		}
	}
	return set, nil
}

func (e *Engine) codegenOptions() codegen.Options {
	out := e.Cfg.OutputRoot
	return codegen.Options{
		PackageName:      e.Cfg.PackageName,
		RootNamespace:    e.Cfg.RootNamespace,
		TemplateDir:      e.Cfg.TemplateDir,
		ExtraIncludeDirs: e.Cfg.ExtraIncludes,
		AbortOnError:     e.Cfg.AbortOnError,
		Outputs: codegen.OutputDirs{
			Generated:     filepath.Join(out, "generated"),
			InterfaceJSON: filepath.Join(out, "generated"),
			NativeHeader:  filepath.Join(out, "generated"),
			WireSchema:    filepath.Join(out, "wit"),
			WasmCxx:       filepath.Join(out, "wasm", "cxx"),
			WasmCS:        filepath.Join(out, "wasm", "csharp"),
			WasmRust:      filepath.Join(out, "wasm", "rust"),
		},
	}
}

// discover loads every project manifest below root in a stable path order.
func (e *Engine) discover(root string) ([]*project.Descriptor, error) {
	matches, err := zglob.Glob(filepath.Join(root, "**", "forge.toml"))
	if err != nil {
		return nil, fmt.Errorf("discover manifests: %w", err)
	}
	sort.Strings(matches)
	descriptors := make([]*project.Descriptor, 0, len(matches))
	for _, path := range matches {
		d, err := project.LoadManifest(path)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}
