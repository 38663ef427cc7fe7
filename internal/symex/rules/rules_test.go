package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnoswap-labs/symex/internal/analysis/cfg"
	"github.com/gnoswap-labs/symex/internal/analysis/lattice"
	"github.com/gnoswap-labs/symex/internal/symex/state"
)

type harness struct {
	b *cfg.Builder
	c *Catalogue
}

func newHarness() *harness {
	return &harness{b: cfg.NewBuilder("f"), c: New(DefaultSettings())}
}

// tryEnv returns an environment whose block sits in a try region.
func (h *harness) tryEnv() Env {
	try := h.b.Block()
	handler := h.b.Block()
	h.b.TryCatch(cfg.Blocks(try, try), cfg.Catch(nil, cfg.Blocks(handler, handler)))
	g := h.b.Build()
	return Env{Graph: g, Block: g.Blocks[1]}
}

// run evaluates roots one after the other, following every split.
func (h *harness) run(s *state.ProgramState, env Env, roots ...*cfg.Operation) (normal, exceptional []*state.ProgramState) {
	current := []*state.ProgramState{s}
	for _, root := range roots {
		var next []*state.ProgramState
		for _, st := range current {
			n, e := h.c.Evaluate(st, root, env)
			next = append(next, n...)
			exceptional = append(exceptional, e...)
		}
		current = next
	}
	return current, exceptional
}

func number(t *testing.T, v *lattice.Value) lattice.NumberConstraint {
	t.Helper()
	n, ok := v.Number()
	require.True(t, ok, "no number in %s", v)
	return n
}

func boolOf(t *testing.T, v *lattice.Value) bool {
	t.Helper()
	b, ok := v.Bool()
	require.True(t, ok, "no bool in %s", v)
	return b == lattice.True
}

func TestCatalogueCoversEveryKind(t *testing.T) {
	t.Parallel()
	for k := 0; k < cfg.NumOpKinds; k++ {
		assert.NotNil(t, table[k], cfg.OpKind(k).String())
	}
}

func TestNewContextPanics(t *testing.T) {
	t.Parallel()
	h := newHarness()
	assert.Panics(t, func() { NewContext(nil, h.b.Int(1), Env{}) })
	assert.Panics(t, func() { NewContext(state.Empty(), nil, Env{}) })
	assert.NotPanics(t, func() { NewContext(state.Empty(), h.b.Int(1), Env{}) })
}

func TestLiterals(t *testing.T) {
	t.Parallel()
	h := newHarness()
	tests := []struct {
		name string
		op   *cfg.Operation
		want *lattice.Value
	}{
		{"int", h.b.Int(42), lattice.NewValue(lattice.NotNull, lattice.NumberOf(42))},
		{"null", h.b.Null(), lattice.NewValue(lattice.Null)},
		{"bool", h.b.Bool(true), lattice.NewValue(lattice.NotNull, lattice.True)},
		{"string", h.b.Str("a"), lattice.NewValue(lattice.NotNull)},
		{"default int", h.b.Default(cfg.IntType), lattice.NewValue(lattice.NotNull, lattice.NumberOf(0))},
		{"default object", h.b.Default(cfg.ObjectType), lattice.NewValue(lattice.Null)},
		{"default bool", h.b.Default(cfg.BoolType), lattice.NewValue(lattice.NotNull, lattice.False)},
	}
	for _, tt := range tests {
		normal, exceptional := h.run(state.Empty(), Env{}, tt.op)
		require.Len(t, normal, 1, tt.name)
		assert.Empty(t, exceptional, tt.name)
		got := normal[0].OperationValue(tt.op)
		assert.True(t, tt.want.Equal(got), "%s: got %s, want %s", tt.name, got, tt.want)
	}
}

func TestAddition(t *testing.T) {
	t.Parallel()
	h := newHarness()
	i := h.b.Local("i", cfg.IntType)
	j := h.b.Local("j", cfg.IntType)
	value := h.b.Local("value", cfg.IntType)

	normal, _ := h.run(state.Empty(), Env{},
		h.b.Assign(h.b.Ref(i), h.b.Int(42)),
		h.b.Assign(h.b.Ref(j), h.b.Int(5)),
		h.b.Assign(h.b.Ref(value), h.b.Binary(cfg.Add, h.b.Ref(i), h.b.Ref(j))),
	)
	require.Len(t, normal, 1)
	want := lattice.NewValue(lattice.NotNull, lattice.NumberOf(47))
	assert.True(t, want.Equal(normal[0].SymbolValue(value)), "got %s", normal[0].SymbolValue(value))
}

func TestNullComparison(t *testing.T) {
	t.Parallel()

	t.Run("unknown splits", func(t *testing.T) {
		t.Parallel()
		h := newHarness()
		arg := h.b.Param("arg", cfg.ObjectType)
		x := h.b.Local("x", cfg.BoolType)
		normal, _ := h.run(state.Empty(), Env{},
			h.b.Assign(h.b.Ref(x), h.b.Binary(cfg.Equals, h.b.Ref(arg), h.b.Null())))
		require.Len(t, normal, 2)
		for _, s := range normal {
			if boolOf(t, s.SymbolValue(x)) {
				assert.True(t, s.SymbolValue(arg).Has(lattice.Null))
			} else {
				assert.True(t, s.SymbolValue(arg).Has(lattice.NotNull))
			}
		}
	})

	t.Run("known not null", func(t *testing.T) {
		t.Parallel()
		h := newHarness()
		arg := h.b.Local("arg", cfg.ObjectType)
		x := h.b.Local("x", cfg.BoolType)
		normal, _ := h.run(state.Empty(), Env{},
			h.b.Assign(h.b.Ref(arg), h.b.New(cfg.ObjectType)),
			h.b.Assign(h.b.Ref(x), h.b.Binary(cfg.NotEquals, h.b.Null(), h.b.Ref(arg))))
		require.Len(t, normal, 1)
		assert.True(t, boolOf(t, normal[0].SymbolValue(x)))
	})

	t.Run("is null operation", func(t *testing.T) {
		t.Parallel()
		h := newHarness()
		arg := h.b.Local("arg", cfg.ObjectType)
		cond := h.b.IsNull(h.b.Ref(arg))
		normal, _ := h.run(state.Empty().WithSymbolValue(arg, lattice.NewValue(lattice.Null)), Env{}, cond)
		require.Len(t, normal, 1)
		assert.True(t, boolOf(t, normal[0].OperationValue(cond)))
	})
}

func TestRelationalSplit(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		x         lattice.NumberConstraint
		op        cfg.Operator
		k         int64
		whenTrue  *lattice.NumberConstraint
		whenFalse *lattice.NumberConstraint
	}{
		{"less splits", lattice.NumberBetween(0, 10), cfg.LessThan, 5, ptr(lattice.NumberBetween(0, 4)), ptr(lattice.NumberBetween(5, 10))},
		{"always less", lattice.NumberOf(0), cfg.LessThan, 10, ptr(lattice.NumberOf(0)), nil},
		{"never greater", lattice.NumberBetween(0, 10), cfg.GreaterThanOrEqual, 11, nil, ptr(lattice.NumberBetween(0, 10))},
		{"equals interior", lattice.NumberBetween(0, 10), cfg.Equals, 3, ptr(lattice.NumberOf(3)), ptr(lattice.NumberBetween(0, 10))},
		{"not equals edge", lattice.NumberBetween(0, 10), cfg.NotEquals, 0, ptr(lattice.NumberBetween(1, 10)), ptr(lattice.NumberOf(0))},
		{"greater unbounded", lattice.NumberFrom(0), cfg.GreaterThan, 3, ptr(lattice.NumberFrom(4)), ptr(lattice.NumberBetween(0, 3))},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness()
			x := h.b.Local("x", cfg.IntType)
			cond := h.b.Binary(tt.op, h.b.Ref(x), h.b.Int(tt.k))
			s := state.Empty().WithSymbolValue(x, lattice.NewValue(lattice.NotNull, tt.x))
			normal, _ := h.run(s, Env{}, cond)

			var union *lattice.NumberConstraint
			seen := map[bool]bool{}
			for _, st := range normal {
				outcome := boolOf(t, st.OperationValue(cond))
				seen[outcome] = true
				got := number(t, st.SymbolValue(x))
				want := tt.whenTrue
				if !outcome {
					want = tt.whenFalse
				}
				require.NotNil(t, want, "unexpected outcome %v", outcome)
				assert.True(t, want.Equal(got), "outcome %v: got %s, want %s", outcome, got, want)
				if union == nil {
					union = &got
				} else {
					u := union.Union(got)
					union = &u
				}
			}
			assert.Equal(t, tt.whenTrue != nil, seen[true])
			assert.Equal(t, tt.whenFalse != nil, seen[false])
			require.NotNil(t, union)
			assert.True(t, union.Equal(tt.x), "outcomes must cover the original range, got %s", union)
		})
	}
}

func ptr(n lattice.NumberConstraint) *lattice.NumberConstraint { return &n }

func TestLoopConditionKeepsFalseRange(t *testing.T) {
	t.Parallel()
	h := newHarness()
	x := h.b.Local("x", cfg.IntType)
	cond := h.b.Binary(cfg.LessThan, h.b.Ref(x), h.b.Int(5))
	s := state.Empty().WithSymbolValue(x, lattice.NewValue(lattice.NotNull, lattice.NumberBetween(0, 10)))
	normal, _ := h.run(s, Env{IsLoopCondition: true}, cond)
	require.Len(t, normal, 2)
	for _, st := range normal {
		got := number(t, st.SymbolValue(x))
		if boolOf(t, st.OperationValue(cond)) {
			assert.True(t, got.Equal(lattice.NumberBetween(0, 4)))
		} else {
			assert.True(t, got.Equal(lattice.NumberBetween(0, 10)))
		}
	}
}

func TestDivision(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		divisor     *lattice.Value
		inTry       bool
		normal      int
		exceptional int
	}{
		{"known zero", lattice.NewValue(lattice.NotNull, lattice.NumberOf(0)), false, 0, 1},
		{"unknown outside try", nil, false, 1, 0},
		{"unknown inside try", nil, true, 1, 1},
		{"non zero inside try", lattice.NewValue(lattice.NotNull, lattice.NumberBetween(1, 5)), true, 1, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness()
			d := h.b.Param("d", cfg.IntType)
			var env Env
			if tt.inTry {
				env = h.tryEnv()
			}
			s := state.Empty().WithSymbolValue(d, tt.divisor)
			normal, exceptional := h.run(s, env, h.b.Binary(cfg.Divide, h.b.Int(10), h.b.Ref(d)))
			assert.Len(t, normal, tt.normal)
			require.Len(t, exceptional, tt.exceptional)
			for _, e := range exceptional {
				assert.Equal(t, cfg.DivideByZeroExceptionType, e.Exception().Type)
			}
		})
	}
}

func TestFieldDereference(t *testing.T) {
	t.Parallel()

	t.Run("known null always throws", func(t *testing.T) {
		t.Parallel()
		h := newHarness()
		p := h.b.Param("p", cfg.ObjectType)
		s := state.Empty().WithSymbolValue(p, lattice.NewValue(lattice.Null))
		normal, exceptional := h.run(s, Env{}, h.b.Field(h.b.Ref(p), "f", cfg.IntType))
		assert.Empty(t, normal)
		require.Len(t, exceptional, 1)
		assert.Equal(t, cfg.NullReferenceExceptionType, exceptional[0].Exception().Type)
	})

	t.Run("success proves not null", func(t *testing.T) {
		t.Parallel()
		h := newHarness()
		p := h.b.Param("p", cfg.ObjectType)
		normal, exceptional := h.run(state.Empty(), Env{}, h.b.Field(h.b.Ref(p), "f", cfg.IntType))
		require.Len(t, normal, 1)
		assert.Empty(t, exceptional, "implicit exceptions are only modelled inside try regions")
		assert.True(t, normal[0].SymbolValue(p).Has(lattice.NotNull))
	})

	t.Run("inside try", func(t *testing.T) {
		t.Parallel()
		h := newHarness()
		p := h.b.Param("p", cfg.ObjectType)
		env := h.tryEnv()
		normal, exceptional := h.run(state.Empty(), env, h.b.Field(h.b.Ref(p), "f", cfg.IntType))
		assert.Len(t, normal, 1)
		require.Len(t, exceptional, 1)
		assert.Equal(t, cfg.NullReferenceExceptionType, exceptional[0].Exception().Type)
	})
}

func TestInvocationClearsReceiverFields(t *testing.T) {
	t.Parallel()
	h := newHarness()
	p := h.b.Param("p", cfg.ObjectType)
	q := h.b.Param("q", cfg.ObjectType)
	pf := h.b.Field(h.b.Ref(p), "f", cfg.IntType).Symbol
	qf := h.b.Field(h.b.Ref(q), "f", cfg.IntType).Symbol
	one := lattice.NewValue(lattice.NotNull, lattice.NumberOf(1))
	s := state.Empty().WithSymbolValue(pf, one).WithSymbolValue(qf, one)

	normal, _ := h.run(s, Env{}, h.b.Invoke(h.b.Ref(p), "Mutate", cfg.UnknownType))
	require.Len(t, normal, 1)
	assert.False(t, normal[0].HasSymbol(pf))
	assert.True(t, normal[0].HasSymbol(qf))
	assert.True(t, normal[0].SymbolValue(p).Has(lattice.NotNull))
}

func TestKnownMethods(t *testing.T) {
	t.Parallel()

	t.Run("null check", func(t *testing.T) {
		t.Parallel()
		h := newHarness()
		arg := h.b.Param("arg", cfg.ObjectType)
		normal, exceptional := h.run(state.Empty(), Env{},
			h.b.Invoke(nil, "ArgumentNullException.ThrowIfNull", nil, h.b.Ref(arg)))
		require.Len(t, normal, 1)
		require.Len(t, exceptional, 1)
		assert.True(t, normal[0].SymbolValue(arg).Has(lattice.NotNull))
		assert.True(t, exceptional[0].SymbolValue(arg).Has(lattice.Null))
		assert.Equal(t, cfg.ArgumentNullExceptionType, exceptional[0].Exception().Type)
	})

	t.Run("count narrows emptiness", func(t *testing.T) {
		t.Parallel()
		h := newHarness()
		xs := h.b.Param("xs", cfg.CollectionType)
		cond := h.b.Binary(cfg.GreaterThan, h.b.Invoke(nil, "len", cfg.IntType, h.b.Ref(xs)), h.b.Int(0))
		normal, _ := h.run(state.Empty(), Env{}, cond)
		require.Len(t, normal, 2)
		for _, s := range normal {
			if boolOf(t, s.OperationValue(cond)) {
				assert.True(t, s.SymbolValue(xs).Has(lattice.NotEmpty))
			} else {
				assert.True(t, s.SymbolValue(xs).Has(lattice.Empty))
			}
		}
	})

	t.Run("add then any", func(t *testing.T) {
		t.Parallel()
		h := newHarness()
		list := h.b.Local("list", cfg.CollectionType)
		anyCall := h.b.Invoke(h.b.Ref(list), "Any", cfg.BoolType)
		normal, _ := h.run(state.Empty(), Env{},
			h.b.Assign(h.b.Ref(list), h.b.New(cfg.CollectionType)),
			h.b.Invoke(h.b.Ref(list), "List.Add", nil, h.b.Int(1)),
			anyCall)
		require.Len(t, normal, 1)
		assert.True(t, boolOf(t, normal[0].OperationValue(anyCall)))
	})

	t.Run("clear", func(t *testing.T) {
		t.Parallel()
		h := newHarness()
		list := h.b.Param("list", cfg.CollectionType)
		s := state.Empty().WithSymbolValue(list, lattice.NewValue(lattice.NotNull, lattice.NotEmpty))
		normal, _ := h.run(s, Env{}, h.b.Invoke(h.b.Ref(list), "Clear", nil))
		require.Len(t, normal, 1)
		assert.True(t, normal[0].SymbolValue(list).Has(lattice.Empty))
	})

	t.Run("string null or empty", func(t *testing.T) {
		t.Parallel()
		h := newHarness()
		str := h.b.Param("s", cfg.StringType)
		call := h.b.Invoke(nil, "string.IsNullOrEmpty", cfg.BoolType, h.b.Ref(str))
		normal, _ := h.run(state.Empty(), Env{}, call)
		require.Len(t, normal, 2)
		for _, s := range normal {
			if !boolOf(t, s.OperationValue(call)) {
				assert.True(t, s.SymbolValue(str).Has(lattice.NotNull))
			}
		}
	})
}

func TestPatterns(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		typ     *cfg.Type
		initial *lattice.Value
		pattern *cfg.Pattern
		// outcomes lists the expected match results in any order.
		outcomes []bool
	}{
		{"null constant", cfg.ObjectType, nil, cfg.ConstantPattern(cfg.NullConst()), []bool{true, false}},
		{"null constant on value", cfg.ObjectType, lattice.NewValue(lattice.NotNull), cfg.ConstantPattern(cfg.NullConst()), []bool{false}},
		{"type", cfg.ObjectType, nil, cfg.TypePattern(cfg.StringType), []bool{true, false}},
		{"type on null", cfg.ObjectType, lattice.NewValue(lattice.Null), cfg.TypePattern(cfg.StringType), []bool{false}},
		{"static type", cfg.StringType, lattice.NewValue(lattice.NotNull), cfg.TypePattern(cfg.StringType), []bool{true}},
		{"relational", cfg.IntType, lattice.NewValue(lattice.NotNull, lattice.NumberBetween(0, 10)),
			cfg.RelationalPattern(cfg.GreaterThan, cfg.IntConst(5)), []bool{true, false}},
		{"not constant", cfg.IntType, lattice.NewValue(lattice.NotNull, lattice.NumberOf(3)),
			cfg.NotPattern(cfg.ConstantPattern(cfg.IntConst(3))), []bool{false}},
		{"and range", cfg.IntType, lattice.NewValue(lattice.NotNull, lattice.NumberBetween(0, 10)),
			cfg.AndPattern(
				cfg.RelationalPattern(cfg.GreaterThanOrEqual, cfg.IntConst(0)),
				cfg.RelationalPattern(cfg.LessThanOrEqual, cfg.IntConst(10))), []bool{true}},
		{"or constants", cfg.IntType, lattice.NewValue(lattice.NotNull, lattice.NumberOf(2)),
			cfg.OrPattern(cfg.ConstantPattern(cfg.IntConst(1)), cfg.ConstantPattern(cfg.IntConst(2))), []bool{true}},
		{"bool constant", cfg.BoolType, nil, cfg.ConstantPattern(cfg.BoolConst(true)), []bool{true, false}},
		{"discard", cfg.ObjectType, nil, cfg.DiscardPattern(), []bool{true}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness()
			x := h.b.Param("x", tt.typ)
			op := h.b.IsPattern(h.b.Ref(x), tt.pattern)
			normal, _ := h.run(state.Empty().WithSymbolValue(x, tt.initial), Env{}, op)
			var got []bool
			for _, s := range normal {
				got = append(got, boolOf(t, s.OperationValue(op)))
			}
			assert.ElementsMatch(t, tt.outcomes, got)
		})
	}
}

func TestRelationalPatternNarrows(t *testing.T) {
	t.Parallel()
	h := newHarness()
	x := h.b.Param("x", cfg.IntType)
	op := h.b.IsPattern(h.b.Ref(x), cfg.RelationalPattern(cfg.GreaterThan, cfg.IntConst(5)))
	s := state.Empty().WithSymbolValue(x, lattice.NewValue(lattice.NotNull, lattice.NumberBetween(0, 10)))
	normal, _ := h.run(s, Env{}, op)
	require.Len(t, normal, 2)
	for _, st := range normal {
		got := number(t, st.SymbolValue(x))
		if boolOf(t, st.OperationValue(op)) {
			assert.True(t, got.Equal(lattice.NumberBetween(6, 10)), "got %s", got)
		} else {
			assert.True(t, got.Equal(lattice.NumberBetween(0, 5)), "got %s", got)
		}
	}
}

func TestDeclarationPatternBinds(t *testing.T) {
	t.Parallel()
	h := newHarness()
	x := h.b.Param("x", cfg.ObjectType)
	s := h.b.Local("s", cfg.StringType)
	op := h.b.IsPattern(h.b.Ref(x), cfg.DeclarationPattern(cfg.StringType, s))
	normal, _ := h.run(state.Empty(), Env{}, op)
	require.Len(t, normal, 2)
	for _, st := range normal {
		if boolOf(t, st.OperationValue(op)) {
			assert.True(t, st.SymbolValue(s).Has(lattice.NotNull))
		} else {
			assert.False(t, st.HasSymbol(s))
		}
	}
}

func TestRecursivePattern(t *testing.T) {
	t.Parallel()
	h := newHarness()
	x := h.b.Param("x", cfg.ObjectType)
	h.b.Block()
	g := h.b.Build()
	p := cfg.RecursivePattern(nil, nil, cfg.Property("f", cfg.ObjectType, cfg.ConstantPattern(cfg.NullConst())))
	op := h.b.IsPattern(h.b.Ref(x), p)
	normal, _ := h.run(state.Empty(), Env{Graph: g}, op)

	f := g.Symbols.Field(x, "f", cfg.ObjectType)
	var matched int
	for _, st := range normal {
		if boolOf(t, st.OperationValue(op)) {
			matched++
			assert.True(t, st.SymbolValue(x).Has(lattice.NotNull))
			assert.True(t, st.SymbolValue(f).Has(lattice.Null))
		}
	}
	assert.Equal(t, 1, matched)
	assert.Len(t, normal, 3, "x null, x.f null, x.f not null")
}

func TestThrow(t *testing.T) {
	t.Parallel()
	h := newHarness()

	_, exceptional := h.run(state.Empty(), Env{}, h.b.Throw(h.b.New(cfg.InvalidOperationExceptionType)))
	require.Len(t, exceptional, 1)
	assert.Equal(t, state.KnownException(cfg.InvalidOperationExceptionType), exceptional[0].Exception())

	_, exceptional = h.run(state.Empty(), Env{}, h.b.Throw(h.b.Str("boom")))
	require.Len(t, exceptional, 1)
	assert.Equal(t, state.UnknownException, exceptional[0].Exception())

	_, exceptional = h.run(state.Empty(), Env{}, h.b.Throw(h.b.Null()))
	require.Len(t, exceptional, 1)
	assert.Equal(t, cfg.NullReferenceExceptionType, exceptional[0].Exception().Type)

	caught := state.Empty().PushException(state.KnownException(cfg.ArgumentExceptionType)).Catch(nil)
	_, exceptional = h.run(caught, Env{}, h.b.Rethrow())
	require.Len(t, exceptional, 1)
	assert.Equal(t, cfg.ArgumentExceptionType, exceptional[0].Exception().Type)
}

func TestIncrementWidensInLoops(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		inLoop bool
		want   lattice.NumberConstraint
	}{
		{"straight line", false, lattice.NumberOf(1)},
		{"loop", true, lattice.NumberFrom(1)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness()
			i := h.b.Local("i", cfg.IntType)
			s := state.Empty().WithSymbolValue(i, lattice.NewValue(lattice.NotNull, lattice.NumberOf(0)))
			normal, _ := h.run(s, Env{InLoop: tt.inLoop}, h.b.Increment(h.b.Ref(i)))
			require.Len(t, normal, 1)
			got := number(t, normal[0].SymbolValue(i))
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestFlowCaptureSnapshots(t *testing.T) {
	t.Parallel()
	h := newHarness()
	x := h.b.Local("x", cfg.IntType)
	id := h.b.NewCapture()
	ref := h.b.CaptureRef(id, cfg.IntType)
	normal, _ := h.run(state.Empty(), Env{},
		h.b.Assign(h.b.Ref(x), h.b.Int(1)),
		h.b.Capture(id, h.b.Ref(x)),
		h.b.Assign(h.b.Ref(x), h.b.Int(2)),
		ref)
	require.Len(t, normal, 1)
	assert.True(t, number(t, normal[0].OperationValue(ref)).Equal(lattice.NumberOf(1)))
	assert.True(t, number(t, normal[0].SymbolValue(x)).Equal(lattice.NumberOf(2)))
}

func TestElementReference(t *testing.T) {
	t.Parallel()
	h := newHarness()
	xs := h.b.Param("xs", cfg.CollectionType)
	i := h.b.Param("i", cfg.IntType)

	normal, _ := h.run(state.Empty(), Env{}, h.b.Element(h.b.Ref(xs), h.b.Ref(i), cfg.IntType))
	require.Len(t, normal, 1)
	assert.True(t, normal[0].SymbolValue(xs).Has(lattice.NotEmpty))
	assert.True(t, number(t, normal[0].SymbolValue(i)).Equal(lattice.NumberFrom(0)))

	empty := state.Empty().WithSymbolValue(xs, lattice.NewValue(lattice.NotNull, lattice.Empty))
	normal, exceptional := h.run(empty, Env{}, h.b.Element(h.b.Ref(xs), h.b.Int(0), cfg.IntType))
	assert.Empty(t, normal)
	require.Len(t, exceptional, 1)
	assert.Equal(t, cfg.IndexOutOfRangeExceptionType, exceptional[0].Exception().Type)
}
