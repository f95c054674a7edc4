package pathspec

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		config string
		in     []string
		want   []string
	}{
		{
			name: "plain paths pass through",
			in:   []string{"/usr/include", "include"},
			want: []string{"/usr/include", "include"},
		},
		{
			name: "build interface unwrapped",
			in:   []string{"$<BUILD_INTERFACE:/src/engine/include>"},
			want: []string{"/src/engine/include"},
		},
		{
			name: "install interface dropped",
			in:   []string{"$<INSTALL_INTERFACE:include>", "/kept"},
			want: []string{"/kept"},
		},
		{
			name:   "config condition matching keeps inner path",
			config: "Debug",
			in:     []string{"$<$<CONFIG:Debug>:/dbg/include>"},
			want:   []string{"/dbg/include"},
		},
		{
			name:   "config condition match is case insensitive",
			config: "debug",
			in:     []string{"$<$<CONFIG:Debug>:/dbg/include>"},
			want:   []string{"/dbg/include"},
		},
		{
			name:   "config condition not matching drops path",
			config: "Release",
			in:     []string{"$<$<CONFIG:Debug>:/dbg/include>", "/always"},
			want:   []string{"/always"},
		},
		{
			name: "unknown config flattens lossily",
			in:   []string{"$<$<CONFIG:Debug>:/dbg/include>"},
			want: []string{"/dbg/include"},
		},
		{
			name: "nested build interface inside config",
			in:   []string{"$<$<CONFIG:Debug>:$<BUILD_INTERFACE:/nested>>"},
			want: []string{"/nested"},
		},
		{
			name: "malformed wrapper dropped, rest kept",
			in:   []string{"$<BUILD_INTERFACE:/broken", "/ok"},
			want: []string{"/ok"},
		},
		{
			name: "unsupported expression dropped",
			in:   []string{"$<TARGET_PROPERTY:foo,INCLUDE_DIRECTORIES>", "/ok"},
			want: []string{"/ok"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Normalizer{Config: tt.config}
			got := n.Normalize(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeEmpty(t *testing.T) {
	var n Normalizer
	if got := n.Normalize(nil); len(got) != 0 {
		t.Errorf("Normalize(nil) = %v, want empty", got)
	}
}
