package symex

import (
	"fmt"

	"golang.org/x/tools/go/analysis"

	"github.com/gnoswap-labs/symex/internal/analysis/cfg"
	"github.com/gnoswap-labs/symex/internal/nolint"
)

// Analyzer reports operations that may make a function leave with an
// exception on some explored path. "//nolint:symex" silences it.
var Analyzer = &analysis.Analyzer{
	Name: "symex",
	Doc:  "reports operations that may raise an exception escaping the function",
	Run:  run,
}

// CategoryThrow is the category of every diagnostic of Analyzer.
const CategoryThrow = "exception"

func run(pass *analysis.Pass) (any, error) {
	for _, f := range pass.Files {
		var graphs []*cfg.Graph
		if pass.TypesInfo != nil {
			graphs = cfg.FromFuncs(f, pass.TypesInfo)
		} else {
			graphs = cfg.FromFile(pass.Fset, f)
		}
		ignored := nolint.ParseComments(f, pass.Fset)
		for _, g := range graphs {
			report(pass, g, Explore(g), ignored)
		}
	}
	return nil, nil
}

// report emits one diagnostic per raising operation and exception.
func report(pass *analysis.Pass, g *cfg.Graph, res *Result, ignored *nolint.Manager) {
	type key struct {
		op        *cfg.Operation
		exception string
	}
	seen := make(map[key]bool)
	for _, x := range res.Threw() {
		if x.Origin == nil || !x.Origin.Pos.IsValid() {
			continue
		}
		if ignored.IsNolint(pass.Fset.Position(x.Origin.Pos).Line, pass.Analyzer.Name) {
			continue
		}
		k := key{x.Origin, x.Exception.String()}
		if seen[k] {
			continue
		}
		seen[k] = true
		pass.Report(analysis.Diagnostic{
			Pos:      x.Origin.Pos,
			Category: CategoryThrow,
			Message:  fmt.Sprintf("%s may throw %s", g.Name, k.exception),
		})
	}
}
