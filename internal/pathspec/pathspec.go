// Package pathspec normalizes generator-expression-wrapped include paths
// into plain filesystem paths that out-of-band tools can consume.
package pathspec

import (
	"strings"

	"go.uber.org/zap"
)

// Phase distinguishes where an include directory applies.
type Phase int

const (
	PhaseBuild Phase = iota
	PhaseInstall
)

func (p Phase) String() string {
	if p == PhaseInstall {
		return "install"
	}
	return "build"
}

// Normalizer strips phase and configuration wrappers from paths.
//
// Config is the active build configuration. When it is known,
// configuration-conditional wrappers are evaluated against it; when it is
// empty the wrapper is flattened to its inner path, which is lossy but the
// only option available at normalization time.
type Normalizer struct {
	Config string
	Log    *zap.Logger
}

// Normalize returns the plain paths for the given wrapped entries, in input
// order. Install-phase entries are dropped; entries with malformed wrapper
// syntax are warned about and dropped rather than failing the whole list.
func (n Normalizer) Normalize(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		plain, keep := n.normalizeOne(p)
		if keep && plain != "" {
			out = append(out, plain)
		}
	}
	return out
}

func (n Normalizer) normalizeOne(p string) (string, bool) {
	if !strings.HasPrefix(p, "$<") {
		return p, true
	}
	inner, rest, ok := unwrap(p)
	if !ok || rest != "" {
		n.warn("malformed generator expression", p)
		return "", false
	}
	head, value, ok := splitHead(inner)
	if !ok {
		n.warn("generator expression without value", p)
		return "", false
	}
	switch {
	case head == "BUILD_INTERFACE":
		return n.normalizeOne(value)
	case head == "INSTALL_INTERFACE":
		// Only build-phase artifacts are ever consumed here.
		return "", false
	case strings.HasPrefix(head, "$<CONFIG:"):
		cfg, _, ok := unwrap(head)
		if !ok {
			n.warn("malformed configuration condition", p)
			return "", false
		}
		cfg = strings.TrimPrefix(cfg, "CONFIG:")
		if n.Config == "" {
			// Active configuration unknown: flatten.
			return n.normalizeOne(value)
		}
		if strings.EqualFold(cfg, n.Config) {
			return n.normalizeOne(value)
		}
		return "", false
	default:
		n.warn("unsupported generator expression", p)
		return "", false
	}
}

// unwrap removes one "$<...>" layer, returning the content between the
// brackets and any trailing text after the matching ">".
func unwrap(s string) (inner, rest string, ok bool) {
	if !strings.HasPrefix(s, "$<") {
		return "", "", false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch {
		case strings.HasPrefix(s[i:], "$<"):
			depth++
			i++
		case s[i] == '>':
			depth--
			if depth == 0 {
				return s[2:i], s[i+1:], true
			}
		}
	}
	return "", "", false
}

// splitHead splits "HEAD:value" at the first colon outside nested
// expressions.
func splitHead(s string) (head, value string, ok bool) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch {
		case strings.HasPrefix(s[i:], "$<"):
			depth++
			i++
		case s[i] == '>':
			depth--
		case s[i] == ':' && depth == 0:
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

func (n Normalizer) warn(msg, expr string) {
	if n.Log != nil {
		n.Log.Warn(msg, zap.String("expr", expr))
	}
}
