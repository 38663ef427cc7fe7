package nolint

import (
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirective(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text  string
		names []string
		ok    bool
	}{
		{text: "//nolint", ok: true},
		{text: "//nolint:symex", names: []string{"symex"}, ok: true},
		{text: "//nolint: a , b,", names: []string{"a", "b"}, ok: true},
		{text: "//nolint:", ok: false},
		{text: "//nolintx", ok: false},
		{text: "// nolint", ok: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			names, ok := parseDirective(tt.text)
			assert.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			var got []string
			for n := range names {
				got = append(got, n)
			}
			assert.ElementsMatch(t, tt.names, got)
		})
	}
}

func TestIsNolint(t *testing.T) {
	t.Parallel()
	source := `package main

//nolint:symex
func deref(p *T) int {
	return p.x
}

func main() {
	//nolint
	println("Line 10")
	println("Line 11")
	println("Line 12") //nolint:symex
	//nolint:other
	println("Line 14")
}
`
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "test.go", source, parser.ParseComments)
	require.NoError(t, err)
	m := ParseComments(f, fset)

	tests := []struct {
		name string
		line int
		want bool
	}{
		{"symex", 5, true},
		{"other", 5, false},
		{"symex", 10, true},
		{"symex", 11, false},
		{"symex", 12, true},
		{"other", 12, false},
		{"other", 14, true},
		{"symex", 14, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.IsNolint(tt.line, tt.name), "%s at line %d", tt.name, tt.line)
	}
}

func TestFileWideDirective(t *testing.T) {
	t.Parallel()
	source := "//nolint:symex\n\npackage main\n\nfunc f() {\n\tprintln()\n}\n"
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "test.go", source, parser.ParseComments)
	require.NoError(t, err)
	m := ParseComments(f, fset)
	assert.True(t, m.IsNolint(6, "symex"))
	assert.False(t, m.IsNolint(6, "other"))
}
