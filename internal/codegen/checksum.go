package codegen

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
	"strconv"
	"strings"
)

// Interface and function identifiers are stable 64-bit values derived from
// signatures, so that independently generated wrappers agree on them across
// languages and across runs.

// nameHash hashes a fully qualified name, e.g.
// "::Arieo::Interface::Sample::ISample".
func nameHash(name string) uint64 {
	sum := sha256.Sum256([]byte(name))
	return binary.LittleEndian.Uint64(sum[:8])
}

// functionChecksum hashes "name(type:name, type:name, ...)".
func functionChecksum(name string, params []param) uint64 {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.NativeType)
		b.WriteByte(':')
		b.WriteString(p.Name)
	}
	b.WriteByte(')')
	return nameHash(b.String())
}

// interfaceChecksum hashes "name{c1,c2,...}" over sorted function checksums,
// so declaration order does not change the interface identity.
func interfaceChecksum(name string, functionChecksums []uint64) uint64 {
	sorted := append([]uint64(nil), functionChecksums...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, c := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(c, 10))
	}
	b.WriteByte('}')
	return nameHash(b.String())
}

// param is one function parameter as extracted from the AST.
type param struct {
	Name       string
	NativeType string
}
