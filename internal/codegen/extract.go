package codegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// ExtractionError reports a front-end failure for one header. It is fatal
// for that header's artifact chain only; sibling headers keep processing.
type ExtractionError struct {
	Header string
	Stderr string
	Err    error
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("extract %s: %v", e.Header, e.Err)
	if e.Stderr != "" {
		msg += "\n" + strings.TrimSpace(e.Stderr)
	}
	return msg
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor runs the external C++ front-end in analysis-only mode and
// post-processes its AST dump into the structured metadata document the
// template stages consume.
type Extractor struct {
	Clang string
	Std   string // defaults to c++20
	Log   *zap.Logger
}

// Check validates the front-end environment: the binary must exist and must
// be a regular clang++, not clang-cl (whose driver takes MSVC-style flags).
func (e *Extractor) Check() error {
	if strings.Contains(strings.ToLower(filepath.Base(e.Clang)), "clang-cl") {
		return fmt.Errorf("clang-cl is not supported, point the front-end at a regular clang++")
	}
	if _, err := exec.LookPath(e.Clang); err != nil {
		return fmt.Errorf("front-end compiler %q not found: %w", e.Clang, err)
	}
	return nil
}

// Extract parses header and returns the metadata document. Declarations are
// filtered to rootNamespace; packageName seeds the WIT name derivations.
func (e *Extractor) Extract(ctx context.Context, header, rootNamespace, packageName string, includeDirs, includeFiles []string) ([]byte, error) {
	std := e.Std
	if std == "" {
		std = "c++20"
	}

	args := []string{
		"-x", "c++-header",
		"-std=" + std,
		"-w", "-Wno-error",
		"-fsyntax-only",
		"-Xclang", "-ast-dump=json",
		"-Xclang", "-detailed-preprocessing-record",
		"-Xclang", "-ast-dump-filter=" + rootNamespace,
	}
	for _, dir := range includeDirs {
		args = append(args, "-I", dir)
	}
	for _, file := range includeFiles {
		args = append(args, "-include", file)
	}
	args = append(args, header)

	if e.Log != nil {
		e.Log.Debug("running front-end",
			zap.String("clang", e.Clang),
			zap.String("header", header),
			zap.Int("include_dirs", len(includeDirs)))
	}

	cmd := exec.CommandContext(ctx, e.Clang, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &ExtractionError{Header: header, Stderr: stderr.String(), Err: err}
	}

	doc, err := e.postProcess(stdout.Bytes(), header, rootNamespace, packageName)
	if err != nil {
		return nil, &ExtractionError{Header: header, Err: err}
	}
	return doc, nil
}

// postProcess merges the dump's JSON objects and enriches the tree with
// annotations, cross-language names, signature details, checksums and the
// first/last flags the templates need for separator handling.
func (e *Extractor) postProcess(dump []byte, header, rootNamespace, packageName string) ([]byte, error) {
	objects, err := decodeObjects(dump)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("front-end produced no AST output")
	}
	ast := mergeObjects(objects)

	source, err := os.ReadFile(header)
	if err != nil {
		return nil, fmt.Errorf("read source for annotations: %w", err)
	}
	p := &postProcessor{
		header:      header,
		sourceLines: strings.Split(string(source), "\n"),
	}
	p.addAnnotations(ast)
	p.addNames(ast, packageName, rootNamespace, witParent{})
	p.extractSignatures(ast)
	addFirstLast(ast)
	addInterfaceChecksums(ast)

	doc := map[string]any{}
	if rootNamespace != "" {
		last := lastSegment(rootNamespace, "::")
		doc["root_namespace"] = rootNamespace
		doc["root_namespace_dotnet"] = strings.ReplaceAll(rootNamespace, "::", ".")
		doc["root_namespace_rust"] = strings.ToLower(strings.ReplaceAll(rootNamespace, "::", "."))
		doc["root_namespace_last"] = last
		doc["root_namespace_dotnet_last"] = last
		doc["root_namespace_rust_last"] = strings.ToLower(last)
	}
	if packageName != "" {
		doc["package_name"] = packageName
		doc["wit_package_name"] = packageName
		doc["witgen_cxx_namespace_fullname"] = packageToCxxNamespace(packageName)
		doc["witgen_dotnet_namespace_fullname"] = packageToCsharpNamespace(packageName)
		doc["witgen_rust_namespace_fullname"] = packageToRustNamespace(packageName)
	}
	for k, v := range ast {
		doc[k] = v
	}
	return json.MarshalIndent(doc, "", "  ")
}

// decodeObjects reads the concatenated JSON objects a filtered dump emits
// (one per file the namespace appears in).
func decodeObjects(dump []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(dump))
	var out []map[string]any
	for dec.More() {
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			// Trailing garbage after at least one object is tolerated, the
			// way the original extractor stopped at the first bad decode.
			if len(out) > 0 {
				break
			}
			return nil, fmt.Errorf("decode AST dump: %w", err)
		}
		out = append(out, obj)
	}
	return out, nil
}

func mergeObjects(objects []map[string]any) map[string]any {
	ast := objects[0]
	if len(objects) == 1 {
		return ast
	}
	inner, _ := ast["inner"].([]any)
	for _, obj := range objects[1:] {
		if more, ok := obj["inner"].([]any); ok {
			inner = append(inner, more...)
		}
	}
	ast["inner"] = inner
	return ast
}

type postProcessor struct {
	header      string
	sourceLines []string
}

var metadataRe = regexp.MustCompile(`METADATA\s*\(\s*([A-Za-z0-9_]+)\s*\)`)

// addAnnotations recovers the METADATA() macro text at each AnnotateAttr's
// expansion location.
func (p *postProcessor) addAnnotations(v any) {
	switch node := v.(type) {
	case map[string]any:
		if node["kind"] == "AnnotateAttr" {
			if line, file, ok := attrLocation(node); ok && sameFile(file, p.header) {
				if text := p.annotationAt(line); text != "" {
					node["annotation"] = text
				}
			}
		}
		for _, child := range node {
			p.addAnnotations(child)
		}
	case []any:
		for _, item := range node {
			p.addAnnotations(item)
		}
	}
}

func (p *postProcessor) annotationAt(line int) string {
	if line < 1 || line > len(p.sourceLines) {
		return ""
	}
	m := metadataRe.FindStringSubmatch(p.sourceLines[line-1])
	if m == nil {
		return ""
	}
	return m[1]
}

// attrLocation returns the expansion location of an attribute node, falling
// back to its direct location when it is not macro-expanded.
func attrLocation(node map[string]any) (line int, file string, ok bool) {
	rng, _ := node["range"].(map[string]any)
	begin, _ := rng["begin"].(map[string]any)
	if begin == nil {
		return 0, "", false
	}
	loc := begin
	if exp, found := begin["expansionLoc"].(map[string]any); found {
		loc = exp
	}
	l, lok := loc["line"].(float64)
	f, fok := loc["file"].(string)
	if !lok || !fok {
		return 0, "", false
	}
	return int(l), f, true
}

func sameFile(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

// witParent carries the enclosing interface's derived names down to its
// methods.
type witParent struct {
	qualifiedName      string
	witFullName        string
	witgenCxxFullName  string
	witgenCsFullName   string
	witgenRustFullName string
	wasmCxxFullName    string
	wasmCsName         string
	wasmRustFullName   string
}

// addNames attaches WIT and per-language names, ids and checksums to
// interface records and their methods.
func (p *postProcessor) addNames(v any, packageName, rootNamespace string, parent witParent) {
	switch node := v.(type) {
	case map[string]any:
		switch node["kind"] {
		case "CXXRecordDecl":
			if name, _ := node["name"].(string); name != "" && packageName != "" {
				parent = p.nameRecord(node, name, packageName, rootNamespace)
			}
		case "CXXMethodDecl":
			if name, _ := node["name"].(string); name != "" {
				p.nameMethod(node, name, parent)
			}
		}
		for _, child := range node {
			p.addNames(child, packageName, rootNamespace, parent)
		}
	case []any:
		for _, item := range node {
			p.addNames(item, packageName, rootNamespace, parent)
		}
	}
}

func (p *postProcessor) nameRecord(node map[string]any, name, packageName, rootNamespace string) witParent {
	witFull := witInterfaceFullName(packageName, name)
	node["wit_interface_fullname"] = witFull
	node["wit_interface_name"] = lastSegment(witFull, "/")

	witgenCxx := witToCxxScriptInterfaceName(witFull)
	node["witgen_cxx_interface_fullname"] = witgenCxx

	// Script-facing names keep the real C++ spelling when the namespace is
	// known; the WIT-derived spelling is the fallback.
	wasmCxx := witgenCxx
	if rootNamespace != "" {
		wasmCxx = rootNamespace + "::" + name
	}
	node["wasm_cxx_interface_fullname"] = wasmCxx
	node["wasm_cxx_interface_name"] = lastSegment(wasmCxx, "::")

	witgenCs := witToCsharpInterfaceName(witFull)
	node["witgen_csharp_interface_fullname"] = witgenCs
	node["wasm_csharp_interface_name"] = name

	witgenRust := witToRustInterfaceName(witFull)
	node["witgen_rust_interface_fullname"] = witgenRust
	wasmRust := witgenRust
	if rootNamespace != "" {
		wasmRust = "crate::" + strings.ToLower(rootNamespace) + "::" + name
	}
	node["wasm_rust_interface_fullname"] = wasmRust
	node["wasm_rust_interface_name"] = name

	if rootNamespace != "" {
		node["wasm_cxx_namespace_fullname"] = rootNamespace
		node["wasm_dotnet_script_namespace_fullname"] = strings.ReplaceAll(rootNamespace, "::", ".")
		node["wasm_rust_namespace_fullname"] = strings.ToLower(strings.ReplaceAll(rootNamespace, "::", "."))
	}

	parent := witParent{
		witFullName:        witFull,
		witgenCxxFullName:  witgenCxx,
		witgenCsFullName:   witgenCs,
		witgenRustFullName: witgenRust,
		wasmCxxFullName:    wasmCxx,
		wasmCsName:         name,
		wasmRustFullName:   wasmRust,
	}
	if rootNamespace != "" {
		qualified := "::" + rootNamespace + "::" + name
		node["full_qualified_name"] = qualified
		h := nameHash(qualified)
		node["interface_name_hash"] = h
		node["interface_id"] = h
		parent.qualifiedName = qualified
	}
	return parent
}

func (p *postProcessor) nameMethod(node map[string]any, name string, parent witParent) {
	witFunc := witName(name)
	node["wit_function_name"] = witFunc

	witgenCxx := witToCxxFunctionName(witFunc)
	node["witgen_cxx_function_name"] = witgenCxx
	if parent.witgenCxxFullName != "" {
		node["witgen_cxx_function_fullname"] = parent.witgenCxxFullName + "::" + witgenCxx
	}
	node["witgen_csharp_function_name"] = witgenCxx
	if parent.witgenCsFullName != "" {
		node["witgen_csharp_function_fullname"] = parent.witgenCsFullName + "." + witgenCxx
	}
	witgenRust := witToRustFunctionName(witFunc)
	node["witgen_rust_function_name"] = witgenRust
	if parent.witgenRustFullName != "" {
		node["witgen_rust_function_fullname"] = parent.witgenRustFullName + "::" + witgenRust
	}

	node["wasm_cxx_function_name"] = name
	if parent.wasmCxxFullName != "" {
		node["wasm_cxx_function_fullname"] = parent.wasmCxxFullName + "::" + name
	}
	node["wasm_csharp_function_name"] = name
	if parent.wasmCsName != "" {
		node["wasm_csharp_function_fullname"] = parent.wasmCsName + "." + name
	}
	rustName := rustMethodName(name)
	node["rust_wrapper_method_name"] = rustName
	node["wasm_rust_function_name"] = rustName
	if parent.wasmRustFullName != "" {
		node["wasm_rust_function_fullname"] = parent.wasmRustFullName + "::" + rustName
	}

	if parent.witFullName != "" {
		node["wit_interface_fullname"] = parent.witFullName
		node["cxx_namespace"] = witToCxxNamespace(parent.witFullName)
		cxxFunc := strings.ReplaceAll(witFunc, "-", "_")
		if cxxFunc != "" {
			cxxFunc = strings.ToUpper(cxxFunc[:1]) + cxxFunc[1:]
		}
		node["cxx_function_name"] = cxxFunc
	}
	if parent.qualifiedName != "" {
		h := nameHash(parent.qualifiedName + "::" + name)
		node["function_name_hash"] = h
		node["function_id"] = h
	}
	node["function_checksum"] = functionChecksum(name, methodParams(node))
}

// extractSignatures parses the function type string and parameter children
// into proper return-type and parameter fields with per-language types.
func (p *postProcessor) extractSignatures(v any) {
	switch node := v.(type) {
	case map[string]any:
		if node["kind"] == "CXXMethodDecl" {
			if ret := returnType(node); ret != "" {
				node["native_return_type"] = ret
				node["csharp_return_type"] = csharpType(ret)
				node["rust_return_type"] = rustType(ret)
				node["returnType"] = ret
			}
			params := make([]any, 0)
			for _, child := range innerNodes(node) {
				if child["kind"] != "ParmVarDecl" {
					continue
				}
				name, _ := child["name"].(string)
				native := qualType(child)
				params = append(params, map[string]any{
					"name":          name,
					"native_type":   native,
					"csharp_type":   csharpType(native),
					"rust_type":     rustType(native),
					"desugaredType": desugaredType(child),
				})
			}
			node["parameters"] = params
		}
		for _, child := range node {
			p.extractSignatures(child)
		}
	case []any:
		for _, item := range node {
			p.extractSignatures(item)
		}
	}
}

// addFirstLast marks the first and last node of each kind group inside every
// array, which is how the templates decide where separators go. Implicit and
// explicit methods group separately.
func addFirstLast(v any) {
	switch data := v.(type) {
	case map[string]any:
		for _, value := range data {
			arr, ok := value.([]any)
			if !ok || len(arr) == 0 {
				addFirstLast(value)
				continue
			}
			groups := make(map[string][]int)
			var groupOrder []string
			for i, item := range arr {
				node, ok := item.(map[string]any)
				if !ok {
					continue
				}
				kind, _ := node["kind"].(string)
				if kind == "" {
					kind = "_no_kind"
				}
				key := kind
				if kind == "CXXMethodDecl" {
					implicit, _ := node["isImplicit"].(bool)
					key = fmt.Sprintf("%s+isImplicit=%t", kind, implicit)
				}
				if _, seen := groups[key]; !seen {
					groupOrder = append(groupOrder, key)
				}
				groups[key] = append(groups[key], i)
			}
			for _, key := range groupOrder {
				indices := groups[key]
				if node, ok := arr[indices[0]].(map[string]any); ok {
					node["first"] = true
				}
				if node, ok := arr[indices[len(indices)-1]].(map[string]any); ok {
					node["last"] = true
				}
			}
			for _, item := range arr {
				if node, ok := item.(map[string]any); ok {
					if _, set := node["first"]; !set {
						node["first"] = false
					}
					if _, set := node["last"]; !set {
						node["last"] = false
					}
				}
				addFirstLast(item)
			}
		}
	case []any:
		for _, item := range data {
			addFirstLast(item)
		}
	}
}

// addInterfaceChecksums rolls the method checksums of each record up into an
// interface checksum. Runs after the method checksums exist.
func addInterfaceChecksums(v any) {
	switch node := v.(type) {
	case map[string]any:
		if node["kind"] == "CXXRecordDecl" {
			if name, _ := node["name"].(string); name != "" {
				var sums []uint64
				for _, child := range innerNodes(node) {
					if child["kind"] != "CXXMethodDecl" {
						continue
					}
					if sum, ok := child["function_checksum"].(uint64); ok {
						sums = append(sums, sum)
					}
				}
				node["interface_checksum"] = interfaceChecksum(name, sums)
			}
		}
		for _, child := range node {
			addInterfaceChecksums(child)
		}
	case []any:
		for _, item := range node {
			addInterfaceChecksums(item)
		}
	}
}

func methodParams(node map[string]any) []param {
	var params []param
	for _, child := range innerNodes(node) {
		if child["kind"] != "ParmVarDecl" {
			continue
		}
		name, _ := child["name"].(string)
		params = append(params, param{Name: name, NativeType: qualType(child)})
	}
	return params
}

func innerNodes(node map[string]any) []map[string]any {
	inner, _ := node["inner"].([]any)
	out := make([]map[string]any, 0, len(inner))
	for _, item := range inner {
		if child, ok := item.(map[string]any); ok {
			out = append(out, child)
		}
	}
	return out
}

func qualType(node map[string]any) string {
	t, _ := node["type"].(map[string]any)
	s, _ := t["qualType"].(string)
	return s
}

func desugaredType(node map[string]any) string {
	t, _ := node["type"].(map[string]any)
	s, _ := t["desugaredQualType"].(string)
	return s
}

// returnType is everything before the parameter list in the method's
// "ret (args)" type string.
func returnType(node map[string]any) string {
	qt := qualType(node)
	if idx := strings.Index(qt, "("); idx > 0 {
		return strings.TrimSpace(qt[:idx])
	}
	return ""
}

func lastSegment(s, sep string) string {
	parts := strings.Split(s, sep)
	return parts[len(parts)-1]
}
