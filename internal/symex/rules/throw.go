package rules

import (
	"github.com/gnoswap-labs/symex/internal/analysis/cfg"
	"github.com/gnoswap-labs/symex/internal/analysis/lattice"
	"github.com/gnoswap-labs/symex/internal/symex/state"
)

// throw always leaves exceptionally. Throwing a null value raises a null
// reference exception; a bare throw inside a handler rethrows.
func throw(_ *Catalogue, ctx *Context) []Result {
	op, s := ctx.Operation, ctx.State
	x := op.Operand(0)
	if op.Kind == cfg.OpRethrow || x == nil {
		return []Result{{State: s.Rethrow(), Continuation: Exceptional}}
	}
	if s.ValueOf(x).Has(lattice.Null) {
		return []Result{throws(s, cfg.NullReferenceExceptionType)}
	}
	e := state.UnknownException
	if x.Type.DerivesFrom(cfg.ExceptionType) {
		e = state.KnownException(x.Type)
	}
	return []Result{exceptional(s, e)}
}
