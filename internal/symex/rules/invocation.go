package rules

import (
	"github.com/gnoswap-labs/symex/internal/analysis/cfg"
	"github.com/gnoswap-labs/symex/internal/analysis/lattice"
	"github.com/gnoswap-labs/symex/internal/symex/state"
)

// invocation applies the known effect of the called method, or the
// default effect of an arbitrary call.
func invocation(c *Catalogue, ctx *Context) []Result {
	op, s := ctx.Operation, ctx.State
	var thrown []Result
	if op.Instance != nil {
		next, out := dereference(ctx, s, op.Instance)
		if next == nil {
			return out
		}
		s, thrown = next, out
	}

	var res []Result
	switch c.settings.effect(op.Method) {
	case effectNullCheck:
		res = nullCheck(ctx, s)
	case effectStringNullOrEmpty:
		res = stringNullOrEmpty(ctx, s)
	case effectAdd:
		res = collectionAdd(ctx, s)
	case effectClear:
		res = []Result{normal(ctx.set(overwrite(s, receiver(op), lattice.Empty), typeFacts(nil, op.Type)))}
	case effectAny:
		res = collectionAny(ctx, s)
	case effectCount:
		res = collectionCount(ctx, s)
	default:
		res = call(ctx, s)
	}
	return append(res, thrown...)
}

func dynamicInvocation(_ *Catalogue, ctx *Context) []Result {
	op, s := ctx.Operation, ctx.State
	var thrown []Result
	if op.Instance != nil {
		next, out := dereference(ctx, s, op.Instance)
		if next == nil {
			return out
		}
		s, thrown = next, out
	}
	return append(call(ctx, s), thrown...)
}

// call is the effect of a method the rules know nothing about. The
// callee may change the receiver's fields, and inside a try region it
// may throw anything.
func call(ctx *Context, s *state.ProgramState) []Result {
	op := ctx.Operation
	if op.Instance != nil {
		s = s.ClearFields(s.TrackedSymbol(op.Instance))
	}
	out := []Result{normal(ctx.set(s, typeFacts(nil, op.Type)))}
	if ctx.inTry() {
		out = append(out, exceptional(s, state.UnknownException))
	}
	return out
}

// nullCheck throws ArgumentNullException when the checked value is null
// and otherwise proves it is not.
func nullCheck(ctx *Context, s *state.ProgramState) []Result {
	op := ctx.Operation
	arg := op.Operand(0)
	if arg == nil {
		arg = op.Instance
	}
	isNull, notNull := splitNull(ctx, s, arg)
	var out []Result
	if notNull != nil {
		out = append(out, normal(ctx.set(notNull, typeFacts(nil, op.Type))))
	}
	if isNull != nil {
		out = append(out, throws(isNull, cfg.ArgumentNullExceptionType))
	}
	return out
}

// stringNullOrEmpty returns false only for a non-null argument.
func stringNullOrEmpty(ctx *Context, s *state.ProgramState) []Result {
	arg := receiver(ctx.Operation)
	v := s.ValueOf(arg)
	if v.Has(lattice.Null) {
		return []Result{withBool(ctx, s, true)}
	}
	out := []Result{withBool(ctx, s, true)}
	if next, ok := s.Learn(arg, lattice.NotNull); ok {
		out = append(out, withBool(ctx, next, false))
	}
	return out
}

// collectionAdd marks the receiver as not empty. The static form returns
// the grown collection instead.
func collectionAdd(ctx *Context, s *state.ProgramState) []Result {
	op := ctx.Operation
	if op.Instance != nil {
		s = overwrite(s, op.Instance, lattice.NotEmpty)
		return []Result{normal(ctx.set(s, typeFacts(nil, op.Type)))}
	}
	if len(op.Operands) > 1 {
		return ctx.resultIn(s, lattice.NewValue(lattice.NotNull, lattice.NotEmpty))
	}
	return ctx.resultIn(s, s.ValueOf(op.Operand(0)))
}

func collectionAny(ctx *Context, s *state.ProgramState) []Result {
	recv := receiver(ctx.Operation)
	if coll, ok := s.ValueOf(recv).Collection(); ok {
		return []Result{withBool(ctx, s, coll == lattice.NotEmpty)}
	}
	var out []Result
	if next, ok := s.Learn(recv, lattice.NotEmpty); ok {
		out = append(out, withBool(ctx, next, true))
	}
	if next, ok := s.Learn(recv, lattice.Empty); ok {
		out = append(out, withBool(ctx, next, false))
	}
	return out
}

// collectionCount returns the range implied by the receiver's emptiness.
// A null collection counts as empty.
func collectionCount(ctx *Context, s *state.ProgramState) []Result {
	v := s.ValueOf(receiver(ctx.Operation))
	n := lattice.NumberFrom(0)
	switch coll, _ := v.Collection(); {
	case coll == lattice.Empty || v.Has(lattice.Null):
		n = lattice.NumberOf(0)
	case coll == lattice.NotEmpty:
		n = lattice.NumberFrom(1)
	}
	return ctx.resultIn(s, lattice.NewValue(lattice.NotNull, n))
}

func (ctx *Context) resultIn(s *state.ProgramState, v *lattice.Value) []Result {
	return []Result{normal(ctx.set(s, v))}
}
