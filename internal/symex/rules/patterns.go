package rules

import (
	"github.com/gnoswap-labs/symex/internal/analysis/cfg"
	"github.com/gnoswap-labs/symex/internal/analysis/lattice"
	"github.com/gnoswap-labs/symex/internal/symex/state"
)

func isNull(_ *Catalogue, ctx *Context) []Result {
	isNull, notNull := splitNull(ctx, ctx.State, ctx.Operation.Operand(0))
	var out []Result
	if isNull != nil {
		out = append(out, withBool(ctx, isNull, true))
	}
	if notNull != nil {
		out = append(out, withBool(ctx, notNull, false))
	}
	return out
}

func isPattern(c *Catalogue, ctx *Context) []Result {
	op := ctx.Operation
	x := op.Operand(0)
	var out []Result
	for _, m := range c.match(ctx, ctx.State, subject{op: x, typ: x.Type}, op.Pattern) {
		if m.state != nil {
			out = append(out, withBool(ctx, m.state, m.matched))
		}
	}
	return out
}

// subject is the value a pattern is tested against: an operation, or a
// member of one reached through a property pattern.
type subject struct {
	op  *cfg.Operation
	sym *cfg.Symbol
	typ *cfg.Type
}

func (sub subject) value(s *state.ProgramState) *lattice.Value {
	if sub.op != nil {
		return s.ValueOf(sub.op)
	}
	return s.SymbolValue(sub.sym)
}

func (sub subject) learn(s *state.ProgramState, c lattice.Constraint) (*state.ProgramState, bool) {
	switch {
	case c == nil:
		return s, true
	case sub.op != nil:
		return s.Learn(sub.op, c)
	case sub.sym != nil:
		return s.LearnSymbol(sub.sym, c)
	}
	if _, ok := sub.value(s).Learn(c); !ok {
		return nil, false
	}
	return s, true
}

func (sub subject) mayBeNull(s *state.ProgramState) bool {
	return !sub.value(s).Has(lattice.NotNull) && !sub.typ.IsValueType()
}

type match struct {
	state   *state.ProgramState
	matched bool
}

func (c *Catalogue) match(ctx *Context, s *state.ProgramState, sub subject, p *cfg.Pattern) []match {
	if p == nil {
		return []match{{s, true}}
	}
	switch p.Kind {
	case cfg.PatternDiscard:
		return []match{{s, true}}
	case cfg.PatternType, cfg.PatternDeclaration:
		return matchType(s, sub, p)
	case cfg.PatternConstant:
		return c.matchConstant(ctx, s, sub, p.Constant)
	case cfg.PatternRelational:
		return c.matchRelational(s, sub, p.Operator, p.Constant)
	case cfg.PatternNot:
		ms := c.match(ctx, s, sub, p.Left)
		for i := range ms {
			ms[i].matched = !ms[i].matched
		}
		return ms
	case cfg.PatternAnd, cfg.PatternOr:
		var out []match
		for _, m := range c.match(ctx, s, sub, p.Left) {
			if m.matched == (p.Kind == cfg.PatternOr) {
				out = append(out, m)
				continue
			}
			out = append(out, c.match(ctx, m.state, sub, p.Right)...)
		}
		return out
	case cfg.PatternRecursive:
		return c.matchRecursive(ctx, s, sub, p)
	}
	return []match{{s, true}, {s, false}}
}

// bind assigns the tested value to the pattern's designation.
func bind(s *state.ProgramState, sub subject, p *cfg.Pattern) *state.ProgramState {
	if p.Designation == nil {
		return s
	}
	v := sub.value(s)
	if v == nil {
		v = lattice.Unknown
	}
	return s.WithSymbolValue(p.Designation, v)
}

// matchType tests the runtime type. Null never matches a type; a value
// whose static type already derives from the tested one matches exactly
// when it is not null.
func matchType(s *state.ProgramState, sub subject, p *cfg.Pattern) []match {
	if p.Type == nil {
		return []match{{bind(s, sub, p), true}}
	}
	v := sub.value(s)
	if v.Has(lattice.Null) {
		return []match{{s, false}}
	}
	static := sub.typ.DerivesFrom(p.Type)
	if static && !sub.mayBeNull(s) {
		next, _ := sub.learn(s, lattice.NotNull)
		return []match{{bind(next, sub, p), true}}
	}
	var out []match
	if next, ok := sub.learn(s, lattice.NotNull); ok {
		out = append(out, match{bind(next, sub, p), true})
	}
	if !static {
		return append(out, match{s, false})
	}
	if next, ok := sub.learn(s, lattice.Null); ok {
		out = append(out, match{next, false})
	}
	return out
}

func (c *Catalogue) matchConstant(ctx *Context, s *state.ProgramState, sub subject, k cfg.Constant) []match {
	switch k.Kind {
	case cfg.ConstNull:
		var out []match
		v := sub.value(s)
		if v.Has(lattice.NotNull) || sub.typ.IsValueType() {
			return []match{{s, false}}
		}
		if next, ok := sub.learn(s, lattice.Null); ok {
			out = append(out, match{next, true})
		}
		if !v.Has(lattice.Null) {
			if next, ok := sub.learn(s, lattice.Null.ApplyOpposite(ctx.IsLoopCondition)); ok {
				out = append(out, match{next, false})
			}
		}
		return out
	case cfg.ConstInt:
		return c.matchRelational(s, sub, cfg.Equals, k)
	case cfg.ConstBool:
		return matchBool(s, sub, k.Bool)
	}
	// Strings and floats are not tracked: a match proves non-null only.
	if sub.value(s).Has(lattice.Null) {
		return []match{{s, false}}
	}
	var out []match
	if next, ok := sub.learn(s, lattice.NotNull); ok {
		out = append(out, match{next, true})
	}
	return append(out, match{s, false})
}

func matchBool(s *state.ProgramState, sub subject, b bool) []match {
	if sub.value(s).Has(lattice.Null) {
		return []match{{s, false}}
	}
	var out []match
	for _, matched := range []bool{true, false} {
		next, ok := sub.learn(s, lattice.NotNull)
		if ok {
			next, ok = sub.learn(next, lattice.BoolOf(b == matched))
		}
		if ok {
			out = append(out, match{next, matched})
		}
	}
	if sub.mayBeNull(s) {
		if next, ok := sub.learn(s, lattice.Null); ok {
			out = append(out, match{next, false})
		}
	}
	return out
}

// matchRelational tests x o k for an integer constant k. A null subject
// never matches; a subject that may be null adds a null non-match.
func (c *Catalogue) matchRelational(s *state.ProgramState, sub subject, o cfg.Operator, k cfg.Constant) []match {
	v := sub.value(s)
	if v.Has(lattice.Null) {
		return []match{{s, false}}
	}
	n, isNum := numberOf(v, sub.typ)
	if k.Kind != cfg.ConstInt || !isNum && sub.typ.IsFloat() {
		var out []match
		if next, ok := sub.learn(s, lattice.NotNull); ok {
			out = append(out, match{next, true})
		}
		return append(out, match{s, false})
	}
	if !isNum {
		n = lattice.AnyNumber
	}
	kn, _ := lattice.NewNumber(k.Int, k.Int)

	var out []match
	for _, matched := range []bool{true, false} {
		cmp := o
		if !matched {
			cmp = o.Negated()
		}
		nn, _, feasible := narrow(cmp, n, kn)
		if !feasible {
			continue
		}
		next, ok := sub.learn(s, lattice.NotNull)
		if ok && !nn.IsUnbounded() {
			next, ok = c.learnSubjectNumber(next, sub, nn)
		}
		if ok {
			out = append(out, match{next, matched})
		}
	}
	if sub.mayBeNull(s) {
		if next, ok := sub.learn(s, lattice.Null); ok {
			out = append(out, match{next, false})
		}
	}
	return out
}

func (c *Catalogue) learnSubjectNumber(s *state.ProgramState, sub subject, n lattice.NumberConstraint) (*state.ProgramState, bool) {
	if sub.op != nil {
		return c.learnNumber(s, sub.op, n)
	}
	return sub.learn(s, n)
}

// matchRecursive checks the type, then every property pattern against the
// member it names. Members of tracked subjects are tracked as fields.
func (c *Catalogue) matchRecursive(ctx *Context, s *state.ProgramState, sub subject, p *cfg.Pattern) []match {
	var base []match
	if p.Type != nil {
		base = matchType(s, sub, &cfg.Pattern{Kind: cfg.PatternType, Type: p.Type})
	} else {
		base = c.matchConstant(ctx, s, sub, cfg.NullConst())
		for i := range base {
			base[i].matched = !base[i].matched
		}
	}

	var out []match
	for _, m := range base {
		if !m.matched {
			out = append(out, m)
			continue
		}
		current := []match{m}
		for _, prop := range p.Properties {
			var next []match
			for _, cm := range current {
				if !cm.matched {
					next = append(next, cm)
					continue
				}
				next = append(next, c.match(ctx, cm.state, c.member(ctx, cm.state, sub, prop), prop.Pattern)...)
			}
			current = next
		}
		for _, cm := range current {
			if cm.matched {
				cm.state = bind(cm.state, sub, p)
			}
			out = append(out, cm)
		}
	}
	return out
}

func (c *Catalogue) member(ctx *Context, s *state.ProgramState, sub subject, prop cfg.PropertyPattern) subject {
	container := sub.sym
	if sub.op != nil {
		container = s.TrackedSymbol(sub.op)
	}
	if container == nil || ctx.Graph == nil || ctx.Graph.Symbols == nil {
		return subject{typ: prop.Type}
	}
	return subject{sym: ctx.Graph.Symbols.Field(container, prop.Name, prop.Type), typ: prop.Type}
}
