package rules

import (
	"github.com/gnoswap-labs/symex/internal/analysis/cfg"
	"github.com/gnoswap-labs/symex/internal/analysis/lattice"
	"github.com/gnoswap-labs/symex/internal/symex/state"
)

func literal(_ *Catalogue, ctx *Context) []Result {
	op := ctx.Operation
	k := op.Constant
	switch k.Kind {
	case cfg.ConstNull:
		return ctx.result(lattice.NewValue(lattice.Null))
	case cfg.ConstInt:
		n, _ := lattice.NewNumber(k.Int, k.Int)
		return ctx.result(lattice.NewValue(lattice.NotNull, n))
	case cfg.ConstBool:
		return ctx.result(lattice.NewValue(lattice.NotNull, lattice.BoolOf(k.Bool)))
	case cfg.ConstFloat, cfg.ConstString:
		return ctx.result(lattice.NewValue(lattice.NotNull))
	}
	return ctx.result(typeFacts(nil, op.Type))
}

// reference reads a local, parameter or field. Reading a field through an
// instance dereferences it.
func reference(_ *Catalogue, ctx *Context) []Result {
	op, s := ctx.Operation, ctx.State
	var out []Result
	if op.Kind == cfg.OpFieldReference && op.Instance != nil {
		var next *state.ProgramState
		next, out = dereference(ctx, s, op.Instance)
		if next == nil {
			return out
		}
		s = next
	}
	v := typeFacts(s.SymbolValue(cfg.TrackedSymbol(op)), op.Type)
	return append([]Result{normal(ctx.set(s, v))}, out...)
}

func instanceReference(_ *Catalogue, ctx *Context) []Result {
	return ctx.result(lattice.NewValue(lattice.NotNull))
}

// flowCapture snapshots the captured value so that later writes to the
// underlying symbol do not change it.
func flowCapture(_ *Catalogue, ctx *Context) []Result {
	op, s := ctx.Operation, ctx.State
	value := op.Operand(0)
	v := s.ValueOf(value)
	s = s.WithCapture(op.CaptureID, value)
	if !v.IsUnknown() {
		s = s.WithOperationValue(value, v)
	}
	return []Result{normal(ctx.set(s, v))}
}

func flowCaptureReference(_ *Catalogue, ctx *Context) []Result {
	op := ctx.Operation
	return ctx.result(typeFacts(ctx.State.ValueOf(op), op.Type))
}

func caughtException(_ *Catalogue, ctx *Context) []Result {
	return ctx.result(lattice.NewValue(lattice.NotNull))
}

func defaultValue(_ *Catalogue, ctx *Context) []Result {
	t := ctx.Operation.Type
	switch {
	case t.IsInteger():
		return ctx.result(lattice.NewValue(lattice.NotNull, lattice.NumberOf(0)))
	case t.IsBool():
		return ctx.result(lattice.NewValue(lattice.NotNull, lattice.False))
	case t.IsValueType():
		return ctx.result(lattice.NewValue(lattice.NotNull))
	case t.IsNullable():
		return ctx.result(lattice.NewValue(lattice.Null))
	}
	return ctx.result(nil)
}

func opaque(_ *Catalogue, ctx *Context) []Result {
	return ctx.result(typeFacts(nil, ctx.Operation.Type))
}

func objectCreation(_ *Catalogue, ctx *Context) []Result {
	op := ctx.Operation
	v := lattice.NewValue(lattice.NotNull)
	if op.Type != nil && op.Type.Kind == cfg.TypeCollection && len(op.Operands) == 0 {
		v = v.With(lattice.Empty)
	}
	out := ctx.result(v)
	if ctx.inTry() {
		out = append(out, exceptional(ctx.State, state.UnknownException))
	}
	return out
}

func collectionCreation(_ *Catalogue, ctx *Context) []Result {
	c := lattice.Empty
	if len(ctx.Operation.Operands) > 0 {
		c = lattice.NotEmpty
	}
	return ctx.result(lattice.NewValue(lattice.NotNull, c))
}

// elementReference reads collection[index]. Success implies the
// collection exists, is not empty and the index is not negative.
func elementReference(c *Catalogue, ctx *Context) []Result {
	op, s := ctx.Operation, ctx.State
	coll, idx := op.Operand(0), op.Operand(1)

	cv := s.ValueOf(coll)
	if cv.Has(lattice.Empty) {
		return []Result{throws(s, cfg.IndexOutOfRangeExceptionType)}
	}
	next, out := dereference(ctx, s, coll)
	if next == nil {
		return out
	}
	if ctx.inTry() {
		out = append(out, throws(s, cfg.IndexOutOfRangeExceptionType))
	}
	var ok bool
	if next, ok = next.Learn(coll, lattice.NotEmpty); !ok {
		return out
	}
	if n, isNum := numberOf(next.ValueOf(idx), idx.Type); isNum {
		inRange, ok := n.Intersect(lattice.NumberFrom(0))
		if !ok {
			return []Result{throws(s, cfg.IndexOutOfRangeExceptionType)}
		}
		if next, ok = c.learnNumber(next, idx, inRange); !ok {
			return out
		}
	}
	return append([]Result{normal(ctx.set(next, typeFacts(nil, op.Type)))}, out...)
}

// numberOf returns the range of v. Integers without a known range are
// unbounded; other values have none.
func numberOf(v *lattice.Value, t *cfg.Type) (lattice.NumberConstraint, bool) {
	if n, ok := v.Number(); ok {
		return n, true
	}
	if t.IsInteger() {
		return lattice.AnyNumber, true
	}
	return lattice.NumberConstraint{}, false
}

// learnNumber narrows op to n. Narrowing the result of a count method
// also tells whether the counted collection is empty.
func (c *Catalogue) learnNumber(s *state.ProgramState, op *cfg.Operation, n lattice.NumberConstraint) (*state.ProgramState, bool) {
	if n.IsUnbounded() {
		return s, true
	}
	s, ok := s.Learn(op, n)
	if !ok {
		return nil, false
	}
	recv := c.countedCollection(s.ResolveCapture(op))
	if recv == nil {
		return s, true
	}
	switch {
	case n.Min() != nil && n.Min().Sign() > 0:
		if s, ok = s.Learn(recv, lattice.NotNull); !ok {
			return nil, false
		}
		return s.Learn(recv, lattice.NotEmpty)
	case n.Max() != nil && n.Max().Sign() <= 0:
		return s.Learn(recv, lattice.Empty)
	}
	return s, true
}

func (c *Catalogue) countedCollection(op *cfg.Operation) *cfg.Operation {
	if op == nil || op.Kind != cfg.OpInvocation || c.settings.effect(op.Method) != effectCount {
		return nil
	}
	return receiver(op)
}

// receiver is the collection or string a known method acts on: the
// instance, or the first argument of a static helper.
func receiver(op *cfg.Operation) *cfg.Operation {
	if op.Instance != nil {
		return op.Instance
	}
	return op.Operand(0)
}
