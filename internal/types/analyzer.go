package types

import (
	"go/ast"
	"go/parser"
	"go/token"

	"golang.org/x/tools/go/analysis"
)

// RunAnalyzer runs the analyzer over one source file and returns the
// diagnostics it reports. The pass carries no type information.
func RunAnalyzer(filename, code string, analyzer *analysis.Analyzer) ([]Issue, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, code, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	var issues []Issue
	pass := &analysis.Pass{
		Analyzer: analyzer,
		Fset:     fset,
		Files:    []*ast.File{file},
		ResultOf: map[*analysis.Analyzer]any{},
		Report: func(d analysis.Diagnostic) {
			pos := fset.Position(d.Pos)
			end := fset.Position(d.End)

			issues = append(issues, Issue{
				Rule:     analyzer.Name,
				Message:  d.Message,
				Category: d.Category,
				Filename: pos.Filename,
				Start:    pos,
				End:      end,
			})
		},
	}

	_, err = analyzer.Run(pass)
	if err != nil {
		return nil, err
	}

	return issues, nil
}
