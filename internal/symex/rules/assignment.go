package rules

import (
	"github.com/gnoswap-labs/symex/internal/analysis/cfg"
	"github.com/gnoswap-labs/symex/internal/analysis/lattice"
	"github.com/gnoswap-labs/symex/internal/symex/state"
)

func assignment(_ *Catalogue, ctx *Context) []Result {
	op, s := ctx.Operation, ctx.State
	target, value := op.Operand(0), op.Operand(1)
	v := typeFacts(s.ValueOf(value), target.Type)
	return []Result{normal(ctx.set(assign(s, target, v), v))}
}

// assign stores v into the symbol behind target. Facts about the fields
// of the old value no longer hold.
func assign(s *state.ProgramState, target *cfg.Operation, v *lattice.Value) *state.ProgramState {
	sym := s.TrackedSymbol(target)
	if sym == nil {
		return s
	}
	if v == nil {
		v = lattice.Unknown
	}
	return s.ClearFields(sym).WithSymbolValue(sym, v)
}

func compoundAssignment(c *Catalogue, ctx *Context) []Result {
	op, s := ctx.Operation, ctx.State
	target, value := op.Operand(0), op.Operand(1)
	v, out, ok := ctx.arithmetic(op.Operator, target, value, target.Type)
	if !ok {
		return out
	}
	v = widen(ctx, s.ValueOf(target), v)
	return append([]Result{normal(ctx.set(assign(s, target, v), v))}, out...)
}

func increment(_ *Catalogue, ctx *Context) []Result {
	op, s := ctx.Operation, ctx.State
	target := op.Operand(0)
	old := s.ValueOf(target)
	v := typeFacts(nil, target.Type)
	if n, ok := old.Number(); ok {
		if op.Kind == cfg.OpDecrement {
			n = n.Sub(lattice.NumberOf(1))
		} else {
			n = n.Add(lattice.NumberOf(1))
		}
		v = widen(ctx, old, v.With(lattice.NotNull).With(n))
	}
	return []Result{normal(ctx.set(assign(s, target, v), v))}
}

// widen drops the bounds of a number that moved since old when the
// update happens inside a loop, so that repeated iterations converge.
func widen(ctx *Context, old, next *lattice.Value) *lattice.Value {
	if !ctx.InLoop {
		return next
	}
	n, ok := next.Number()
	if !ok {
		return next
	}
	prev, ok := old.Number()
	if !ok {
		return next
	}
	w := n.Widen(prev)
	if w.IsUnbounded() {
		return next.Without(lattice.NumberLattice)
	}
	return next.With(w)
}
