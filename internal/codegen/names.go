package codegen

import (
	"strings"
	"unicode"

	"github.com/iancoleman/strcase"
)

// Name mangling between the C++ surface, the WIT wire schema, and the
// per-language wrapper sources. The WIT forms drop underscores outright
// instead of treating them as word breaks, so the kebab conversion is done
// by hand; the Pascal/snake conversions match strcase and use it.

// witName lowercases a C++ identifier into WIT form: underscores dropped,
// dash before every interior uppercase letter. "DoSomething1" → "do-something1".
func witName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == '_' {
			continue
		}
		if unicode.IsUpper(r) && b.Len() > 0 {
			b.WriteByte('-')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// witInterfaceFullName builds "pkg/iface" WIT paths, e.g.
// ("arieo:sample", "ISample") → "arieo:sample/i-sample".
func witInterfaceFullName(packageName, interfaceName string) string {
	return packageName + "/" + witName(interfaceName)
}

// witToCxxNamespace maps "arieo:sample/i-sample" → "arieo::sample::i_sample".
func witToCxxNamespace(witFullName string) string {
	r := strings.NewReplacer(":", "::", "/", "::", "-", "_")
	return r.Replace(witFullName)
}

// witToCxxScriptInterfaceName is witToCxxNamespace with a leading "::".
func witToCxxScriptInterfaceName(witFullName string) string {
	s := witToCxxNamespace(witFullName)
	if !strings.HasPrefix(s, "::") {
		s = "::" + s
	}
	return s
}

// witToCxxFunctionName maps "do-something1" → "DoSomething1".
func witToCxxFunctionName(witFuncName string) string {
	return strcase.ToCamel(witFuncName)
}

// witToCsharpInterfaceName maps "arieo:sample/i-sample" →
// "ApplicationWorld.wit.imports.arieo.sample.ISampleInterop".
func witToCsharpInterfaceName(witFullName string) string {
	pkg, iface, ok := strings.Cut(witFullName, "/")
	if !ok {
		return witFullName
	}
	return "ApplicationWorld.wit.imports." + strings.ReplaceAll(pkg, ":", ".") + "." + strcase.ToCamel(iface) + "Interop"
}

// witToRustInterfaceName maps "arieo:sample/i-sample" →
// "crate::arieo::sample::i_sample".
func witToRustInterfaceName(witFullName string) string {
	s := witToCxxNamespace(witFullName)
	if !strings.HasPrefix(s, "crate::") {
		s = "crate::" + s
	}
	return s
}

// witToRustFunctionName maps "do-something1" → "do_something1".
func witToRustFunctionName(witFuncName string) string {
	return strings.ToLower(strings.ReplaceAll(witFuncName, "-", "_"))
}

// rustMethodName converts a C++ method name to snake_case the way the
// original wrappers expect: an underscore between a lower/upper boundary,
// then lowercased. "doSomething_1" → "do_something_1". Existing underscores
// and digits are left alone, which is why strcase.ToSnake is not used here.
func rustMethodName(name string) string {
	var b strings.Builder
	var prev rune
	for _, r := range name {
		if unicode.IsUpper(r) && unicode.IsLower(prev) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
		prev = r
	}
	return b.String()
}

// packageToCxxNamespace maps "arieo:sample" → "::arieo::sample".
func packageToCxxNamespace(packageName string) string {
	s := strings.ReplaceAll(packageName, ":", "::")
	if !strings.HasPrefix(s, "::") {
		s = "::" + s
	}
	return s
}

// packageToCsharpNamespace maps "arieo:sample" →
// "ApplicationWorld.wit.imports.arieo.sample".
func packageToCsharpNamespace(packageName string) string {
	return "ApplicationWorld.wit.imports." + strings.ReplaceAll(packageName, ":", ".")
}

// packageToRustNamespace maps "arieo:sample" → "crate::arieo::sample".
func packageToRustNamespace(packageName string) string {
	s := strings.ReplaceAll(packageName, ":", "::")
	if !strings.HasPrefix(s, "crate::") {
		s = "crate::" + s
	}
	return s
}

// typeMapping converts C++ native types to wrapper-language types. Types
// outside the table pass through unchanged.
type typeMapping struct {
	CSharp string
	Rust   string
}

var typeTable = map[string]typeMapping{
	"std::int8_t":        {"sbyte", "i8"},
	"std::uint8_t":       {"byte", "u8"},
	"std::int16_t":       {"Int16", "i16"},
	"std::uint16_t":      {"UInt16", "u16"},
	"std::int32_t":       {"Int32", "i32"},
	"std::uint32_t":      {"UInt32", "u32"},
	"std::int64_t":       {"Int64", "i64"},
	"std::uint64_t":      {"UInt64", "u64"},
	"int":                {"int", "i32"},
	"unsigned int":       {"uint", "u32"},
	"long":               {"long", "i64"},
	"unsigned long":      {"ulong", "u64"},
	"long long":          {"long", "i64"},
	"unsigned long long": {"ulong", "u64"},
	"short":              {"short", "i16"},
	"unsigned short":     {"ushort", "u16"},
	"char":               {"sbyte", "i8"},
	"unsigned char":      {"byte", "u8"},
	"float":              {"float", "f32"},
	"double":             {"double", "f64"},
	"bool":               {"bool", "bool"},
	"size_t":             {"ulong", "usize"},
	"std::size_t":        {"ulong", "usize"},
	"void":               {"void", "()"},
}

func csharpType(native string) string {
	if m, ok := typeTable[native]; ok {
		return m.CSharp
	}
	return native
}

func rustType(native string) string {
	if m, ok := typeTable[native]; ok {
		return m.Rust
	}
	return native
}
