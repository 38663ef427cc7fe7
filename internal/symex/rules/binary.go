package rules

import (
	"math/big"

	"github.com/gnoswap-labs/symex/internal/analysis/cfg"
	"github.com/gnoswap-labs/symex/internal/analysis/lattice"
)

func binary(c *Catalogue, ctx *Context) []Result {
	op := ctx.Operation
	if op.Operator.IsRelational() {
		return c.relational(ctx)
	}
	v, out, ok := ctx.arithmetic(op.Operator, op.Operand(0), op.Operand(1), op.Type)
	if !ok {
		return out
	}
	return append([]Result{normal(ctx.set(ctx.State, v))}, out...)
}

func isBoolOperator(o cfg.Operator) bool {
	switch o {
	case cfg.And, cfg.Or, cfg.ExclusiveOr, cfg.ConditionalAnd, cfg.ConditionalOr:
		return true
	}
	return false
}

// arithmetic computes l o r of type t. Integer division by a divisor that
// may be zero adds an exceptional result; ok is false when the operation
// can only fail.
func (ctx *Context) arithmetic(o cfg.Operator, l, r *cfg.Operation, t *cfg.Type) (*lattice.Value, []Result, bool) {
	s := ctx.State
	lv, rv := s.ValueOf(l), s.ValueOf(r)
	ln, lok := lv.Number()
	rn, rok := rv.Number()

	var out []Result
	if (o == cfg.Divide || o == cfg.Remainder) && !t.IsFloat() {
		switch {
		case rok && rn.IsSingle() && rn.Min().Sign() == 0:
			return nil, []Result{throws(s, cfg.DivideByZeroExceptionType)}, false
		case ctx.inTry() && (t.IsInteger() || rok) && (!rok || rn.ContainsZero()):
			out = append(out, throws(s, cfg.DivideByZeroExceptionType))
		}
	}

	v := typeFacts(nil, t)
	_, lb := lv.Bool()
	_, rb := rv.Bool()
	switch {
	case isBoolOperator(o) && (t.IsBool() || (lb && rb)):
		if b, ok := boolOperation(o, lv, rv); ok {
			v = v.With(lattice.NotNull).With(b)
		}
	case lok && rok && !t.IsFloat():
		if n, ok := numberOperation(o, ln, rn); ok && !n.IsUnbounded() {
			v = v.With(lattice.NotNull).With(n)
		}
	case o == cfg.Add && t != nil && t.Kind == cfg.TypeString:
		v = v.With(lattice.NotNull)
	}
	return v, out, true
}

func boolOperation(o cfg.Operator, lv, rv *lattice.Value) (lattice.BoolConstraint, bool) {
	l, lok := lv.Bool()
	r, rok := rv.Bool()
	switch o {
	case cfg.And, cfg.ConditionalAnd:
		if (lok && l == lattice.False) || (rok && r == lattice.False) {
			return lattice.False, true
		}
		if lok && rok {
			return lattice.True, true
		}
	case cfg.Or, cfg.ConditionalOr:
		if (lok && l == lattice.True) || (rok && r == lattice.True) {
			return lattice.True, true
		}
		if lok && rok {
			return lattice.False, true
		}
	case cfg.ExclusiveOr:
		if lok && rok {
			return lattice.BoolOf(l != r), true
		}
	}
	return 0, false
}

func numberOperation(o cfg.Operator, l, r lattice.NumberConstraint) (lattice.NumberConstraint, bool) {
	switch o {
	case cfg.Add:
		return l.Add(r), true
	case cfg.Subtract:
		return l.Sub(r), true
	case cfg.Multiply:
		return l.Mul(r), true
	case cfg.Divide:
		return l.Div(r)
	case cfg.Remainder:
		return l.Rem(r)
	case cfg.And:
		return l.And(r)
	case cfg.Or:
		return l.Or(r)
	case cfg.ExclusiveOr:
		return l.Xor(r)
	case cfg.LeftShift, cfg.RightShift:
		return shift(o, l, r)
	}
	return lattice.NumberConstraint{}, false
}

// shift only folds single values with a small non-negative count.
func shift(o cfg.Operator, l, r lattice.NumberConstraint) (lattice.NumberConstraint, bool) {
	if !l.IsSingle() || !r.IsSingle() || !r.Min().IsInt64() {
		return lattice.NumberConstraint{}, false
	}
	k := r.Min().Int64()
	if k < 0 || k > 64 {
		return lattice.NumberConstraint{}, false
	}
	res := new(big.Int)
	if o == cfg.LeftShift {
		res.Lsh(l.Min(), uint(k))
	} else {
		res.Rsh(l.Min(), uint(k))
	}
	return lattice.NewNumber(res, res)
}

// relational evaluates a comparison, splitting the state when both
// outcomes are possible and narrowing the operands on each side.
func (c *Catalogue) relational(ctx *Context) []Result {
	op, s := ctx.Operation, ctx.State
	l, r := op.Operand(0), op.Operand(1)
	lv, rv := s.ValueOf(l), s.ValueOf(r)
	o := op.Operator

	if o == cfg.Equals || o == cfg.NotEquals {
		if lv.Has(lattice.Null) || rv.Has(lattice.Null) {
			return nullComparison(ctx, l, r)
		}
		if out, ok := boolComparison(ctx, l, r); ok {
			return out
		}
	}

	ln, lok := numberOf(lv, l.Type)
	rn, rok := numberOf(rv, r.Type)
	if !lok || !rok || l.Type.IsFloat() || r.Type.IsFloat() {
		return ctx.result(lattice.NewValue(lattice.NotNull))
	}

	var out []Result
	for _, outcome := range []bool{true, false} {
		cmp := o
		if !outcome {
			cmp = o.Negated()
		}
		nl, nr, feasible := narrow(cmp, ln, rn)
		if !feasible {
			continue
		}
		next, ok := s, true
		if outcome || !ctx.IsLoopCondition {
			if next, ok = c.learnNumber(next, l, nl); !ok {
				continue
			}
			if next, ok = c.learnNumber(next, r, nr); !ok {
				continue
			}
		}
		out = append(out, withBool(ctx, next, outcome))
	}
	return out
}

// narrow restricts l and r to the values satisfying l o r. It reports
// false when no pair does.
func narrow(o cfg.Operator, l, r lattice.NumberConstraint) (lattice.NumberConstraint, lattice.NumberConstraint, bool) {
	switch o {
	case cfg.LessThan:
		return lattice.NarrowLess(l, r, false)
	case cfg.LessThanOrEqual:
		return lattice.NarrowLess(l, r, true)
	case cfg.GreaterThan:
		nr, nl, ok := lattice.NarrowLess(r, l, false)
		return nl, nr, ok
	case cfg.GreaterThanOrEqual:
		nr, nl, ok := lattice.NarrowLess(r, l, true)
		return nl, nr, ok
	case cfg.Equals:
		n, ok := l.Intersect(r)
		return n, n, ok
	case cfg.NotEquals:
		if l.IsSingle() && r.IsSingle() && l.Equal(r) {
			return l, r, false
		}
		nl, nr := l, r
		if r.IsSingle() {
			nl, _ = l.Exclude(r.Min())
		}
		if l.IsSingle() {
			nr, _ = r.Exclude(l.Min())
		}
		return nl, nr, true
	}
	return l, r, true
}

// nullComparison evaluates x == y or x != y where one side is known to
// be null.
func nullComparison(ctx *Context, l, r *cfg.Operation) []Result {
	s := ctx.State
	eq := ctx.Operation.Operator == cfg.Equals
	other := l
	if s.ValueOf(l).Has(lattice.Null) {
		other = r
	}
	isNull, notNull := splitNull(ctx, s, other)
	var out []Result
	if isNull != nil {
		out = append(out, withBool(ctx, isNull, eq))
	}
	if notNull != nil {
		out = append(out, withBool(ctx, notNull, !eq))
	}
	return out
}

// boolComparison handles equality against a known boolean. It reports
// false when neither side is a known boolean.
func boolComparison(ctx *Context, l, r *cfg.Operation) ([]Result, bool) {
	s := ctx.State
	lb, lok := s.ValueOf(l).Bool()
	rb, rok := s.ValueOf(r).Bool()
	eq := ctx.Operation.Operator == cfg.Equals
	switch {
	case lok && rok:
		return []Result{withBool(ctx, s, (lb == rb) == eq)}, true
	case lok:
		return learnBool(ctx, r, lb, eq), true
	case rok:
		return learnBool(ctx, l, rb, eq), true
	}
	return nil, false
}

func learnBool(ctx *Context, other *cfg.Operation, known lattice.BoolConstraint, eq bool) []Result {
	if t := other.Type; t != nil && !t.IsBool() && t.Kind != cfg.TypeUnknown {
		return ctx.result(lattice.NewValue(lattice.NotNull))
	}
	var out []Result
	for _, outcome := range []bool{true, false} {
		want := known
		if outcome != eq {
			want = known.ApplyOpposite(false).(lattice.BoolConstraint)
		}
		if next, ok := ctx.State.Learn(other, want); ok {
			out = append(out, withBool(ctx, next, outcome))
		}
	}
	return out
}

func unary(_ *Catalogue, ctx *Context) []Result {
	op, s := ctx.Operation, ctx.State
	xv := s.ValueOf(op.Operand(0))
	v := typeFacts(nil, op.Type)
	switch op.Operator {
	case cfg.Not:
		if b, ok := xv.Bool(); ok {
			v = v.With(lattice.NotNull).With(lattice.BoolOf(b == lattice.False))
		}
	case cfg.Negate:
		if n, ok := xv.Number(); ok {
			v = v.With(lattice.NotNull).With(n.Negate())
		}
	case cfg.BitwiseNot:
		if n, ok := xv.Number(); ok {
			v = v.With(lattice.NotNull).With(n.Not())
		}
	case cfg.Plus:
		v = typeFacts(xv, op.Type)
	}
	return ctx.result(v)
}

// conversion passes the value through. A conversion that declares an
// exception may raise it inside a try region; converting null to a value
// type always fails.
func conversion(_ *Catalogue, ctx *Context) []Result {
	op, s := ctx.Operation, ctx.State
	xv := s.ValueOf(op.Operand(0))
	if xv.Has(lattice.Null) && op.Type.IsValueType() {
		return []Result{throws(s, cfg.NullReferenceExceptionType)}
	}
	v := xv
	if !op.Type.IsInteger() {
		v = v.Without(lattice.NumberLattice)
	}
	v = typeFacts(v, op.Type)
	out := []Result{normal(ctx.set(s, v))}
	if op.Exception != nil && ctx.inTry() && !xv.Has(lattice.Null) {
		out = append(out, throws(s, op.Exception))
	}
	return out
}
