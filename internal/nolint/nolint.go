// Package nolint finds //nolint directives that silence diagnostics.
//
// A directive before the package clause covers the file. A directive at
// the end of a statement covers that statement. A directive on its own
// line covers the statement or function declaration starting on the next
// line, or only its own line otherwise. "//nolint" silences every
// analyzer; "//nolint:a,b" only the named ones.
package nolint

import (
	"go/ast"
	"go/token"
	"strings"
)

const prefix = "//nolint"

// Manager answers whether a position is covered by a directive.
type Manager struct {
	scopes []scope
}

type scope struct {
	names      map[string]bool // empty means every analyzer
	start, end int             // lines, inclusive
}

func (s scope) covers(line int, name string) bool {
	if line < s.start || line > s.end {
		return false
	}
	return len(s.names) == 0 || s.names[name]
}

// ParseComments collects the directives of f. Malformed directives are
// ignored.
func ParseComments(f *ast.File, fset *token.FileSet) *Manager {
	starts := nodesByLine(f, fset)
	packageLine := fset.Position(f.Package).Line

	m := &Manager{}
	for _, cg := range f.Comments {
		for _, c := range cg.List {
			names, ok := parseDirective(c.Text)
			if !ok {
				continue
			}
			line := fset.Position(c.Slash).Line
			sc := scope{names: names, start: line, end: line}
			switch node, found := starts[line]; {
			case line < packageLine:
				sc.start, sc.end = 1, fset.Position(f.End()).Line
			case found && node.Pos() < c.Slash:
				sc.start, sc.end = lines(fset, node)
			default:
				if next, ok := starts[line+1]; ok {
					_, sc.end = lines(fset, next)
				}
			}
			m.scopes = append(m.scopes, sc)
		}
	}
	return m
}

// IsNolint reports whether name is silenced at line.
func (m *Manager) IsNolint(line int, name string) bool {
	for _, s := range m.scopes {
		if s.covers(line, name) {
			return true
		}
	}
	return false
}

// parseDirective returns the analyzer names of a directive. The colon form
// must name at least one analyzer.
func parseDirective(text string) (map[string]bool, bool) {
	rest, ok := strings.CutPrefix(text, prefix)
	if !ok {
		return nil, false
	}
	names := make(map[string]bool)
	if rest == "" {
		return names, true
	}
	list, ok := strings.CutPrefix(rest, ":")
	if !ok {
		return nil, false
	}
	for _, n := range strings.Split(list, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names[n] = true
		}
	}
	return names, len(names) > 0
}

// nodesByLine maps a line to the first statement or function declaration
// starting on it.
func nodesByLine(f *ast.File, fset *token.FileSet) map[int]ast.Node {
	starts := make(map[int]ast.Node)
	ast.Inspect(f, func(n ast.Node) bool {
		switch n.(type) {
		case ast.Stmt, *ast.FuncDecl, *ast.GenDecl:
			line := fset.Position(n.Pos()).Line
			if _, seen := starts[line]; !seen {
				starts[line] = n
			}
		}
		return n != nil
	})
	return starts
}

func lines(fset *token.FileSet, n ast.Node) (int, int) {
	return fset.Position(n.Pos()).Line, fset.Position(n.End()).Line
}
