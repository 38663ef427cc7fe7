package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnoswap-labs/symex/internal/analysis/cfg"
	"github.com/gnoswap-labs/symex/internal/analysis/lattice"
)

type fixture struct {
	b    *cfg.Builder
	x, y *cfg.Symbol
}

func newFixture() *fixture {
	b := cfg.NewBuilder("f")
	return &fixture{b: b, x: b.Param("x", cfg.ObjectType), y: b.Local("y", cfg.IntType)}
}

func TestEmpty(t *testing.T) {
	t.Parallel()
	s := Empty()
	f := newFixture()
	assert.Nil(t, s.SymbolValue(f.x))
	assert.False(t, s.HasSymbol(f.x))
	assert.Equal(t, NoException, s.Exception())
	assert.True(t, s.Equal(Empty()))
}

func TestSymbolValuesAreImmutable(t *testing.T) {
	t.Parallel()
	f := newFixture()
	s0 := Empty()
	s1 := s0.WithSymbolValue(f.x, lattice.NewValue(lattice.NotNull))
	s2 := s1.WithSymbolValue(f.y, lattice.NewValue(lattice.NumberOf(1)))

	assert.Nil(t, s0.SymbolValue(f.x))
	assert.True(t, s1.SymbolValue(f.x).Has(lattice.NotNull))
	assert.Nil(t, s1.SymbolValue(f.y))
	assert.True(t, s2.SymbolValue(f.x).Has(lattice.NotNull), "other entries are undisturbed")

	s3 := s2.WithoutSymbol(f.x)
	assert.Nil(t, s3.SymbolValue(f.x))
	assert.True(t, s2.HasSymbol(f.x))

	// Known unknown is distinct from absent.
	s4 := s0.WithSymbolValue(f.x, lattice.Unknown)
	assert.True(t, s4.HasSymbol(f.x))
	assert.False(t, s4.Equal(s0))
}

func TestEqualAndHash(t *testing.T) {
	t.Parallel()
	f := newFixture()
	a := Empty().
		WithSymbolValue(f.x, lattice.NewValue(lattice.NotNull)).
		WithSymbolValue(f.y, lattice.NewValue(lattice.NumberOf(3)))
	// Different insertion order, same content.
	b := Empty().
		WithSymbolValue(f.y, lattice.NewValue(lattice.NumberOf(3))).
		WithSymbolValue(f.x, lattice.NewValue(lattice.NotNull))

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(), b.Hash())

	c := b.WithSymbolValue(f.y, lattice.NewValue(lattice.NumberOf(4)))
	assert.False(t, a.Equal(c))

	blk := &cfg.Block{Ordinal: 2}
	assert.False(t, a.Equal(a.AddVisit(blk)))
	assert.False(t, a.Equal(a.PushException(UnknownException)))
}

func TestLearn(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ref := f.b.Ref(f.x)

	s, ok := Empty().Learn(ref, lattice.Null)
	require.True(t, ok)
	assert.True(t, s.SymbolValue(f.x).Has(lattice.Null))
	assert.True(t, s.OperationValue(ref).Has(lattice.Null))

	_, ok = s.Learn(ref, lattice.NotNull)
	assert.False(t, ok, "contradiction marks the path infeasible")

	s, ok = Empty().LearnSymbol(f.y, lattice.NumberFrom(0))
	require.True(t, ok)
	s, ok = s.LearnSymbol(f.y, lattice.NumberUpTo(5))
	require.True(t, ok)
	n, _ := s.SymbolValue(f.y).Number()
	assert.True(t, n.Equal(lattice.NumberBetween(0, 5)))
}

func TestCaptures(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ref := f.b.Ref(f.x)
	id := f.b.NewCapture()
	capRef := f.b.CaptureRef(id, cfg.ObjectType)

	s := Empty().WithCapture(id, ref)
	assert.Same(t, ref, s.ResolveCapture(capRef))
	assert.Equal(t, f.x, s.TrackedSymbol(capRef))

	s, ok := s.Learn(capRef, lattice.NotNull)
	require.True(t, ok)
	assert.True(t, s.SymbolValue(f.x).Has(lattice.NotNull), "learning through a capture reaches the symbol")
	assert.True(t, s.ValueOf(ref).Has(lattice.NotNull))
}

func TestResetOperations(t *testing.T) {
	t.Parallel()
	f := newFixture()
	captured := f.b.Int(1)
	transient := f.b.Int(2)
	s := Empty().
		WithCapture(1, captured).
		WithOperationValue(captured, lattice.NewValue(lattice.NumberOf(1))).
		WithOperationValue(transient, lattice.NewValue(lattice.NumberOf(2)))

	r := s.ResetOperations()
	assert.NotNil(t, r.OperationValue(captured))
	assert.Nil(t, r.OperationValue(transient))
	assert.NotNil(t, s.OperationValue(transient))
}

func TestClearFields(t *testing.T) {
	t.Parallel()
	f := newFixture()
	other := f.b.Param("other", cfg.ObjectType)
	xf := f.b.Field(f.b.Ref(f.x), "f", cfg.IntType).Symbol
	xfg := f.b.Field(f.b.Field(f.b.Ref(f.x), "f", cfg.ObjectType), "g", cfg.IntType).Symbol
	of := f.b.Field(f.b.Ref(other), "f", cfg.IntType).Symbol

	v := lattice.NewValue(lattice.NumberOf(1))
	s := Empty().
		WithSymbolValue(f.x, lattice.NewValue(lattice.NotNull)).
		WithSymbolValue(xf, v).
		WithSymbolValue(xfg, v).
		WithSymbolValue(of, v)

	c := s.ClearFields(f.x)
	assert.False(t, c.HasSymbol(xf))
	assert.False(t, c.HasSymbol(xfg))
	assert.True(t, c.HasSymbol(of), "fields of other instances survive")
	assert.True(t, c.HasSymbol(f.x))
}

func TestVisits(t *testing.T) {
	t.Parallel()
	b := &cfg.Block{Ordinal: 3}
	s := Empty().AddVisit(b).AddVisit(b)
	assert.Equal(t, 2, s.VisitCount(b))
	assert.Equal(t, 0, Empty().VisitCount(b))
}

func TestExceptionStack(t *testing.T) {
	t.Parallel()
	s := Empty().PushException(KnownException(cfg.NullReferenceExceptionType))
	assert.True(t, s.InException())
	assert.Equal(t, cfg.NullReferenceExceptionType, s.Exception().Type)

	// A second throw replaces the one in flight.
	s = s.PushException(UnknownException)
	assert.Equal(t, UnknownException, s.Exception())
	assert.Len(t, s.exceptions, 1)

	caught := s.Catch(cfg.ArgumentExceptionType)
	assert.False(t, caught.InException())
	assert.Equal(t, cfg.ArgumentExceptionType, caught.CaughtException().Type, "unknown exceptions are refined by the handler")

	rethrown := caught.Rethrow()
	assert.True(t, rethrown.InException())
	assert.Equal(t, cfg.ArgumentExceptionType, rethrown.Exception().Type)

	// Throwing inside a handler stacks over the caught exception.
	nested := caught.PushException(KnownException(cfg.InvalidOperationExceptionType))
	assert.Len(t, nested.exceptions, 2)
	nested = nested.Catch(nil).DropCaught()
	assert.Equal(t, NoException, nested.Exception())
	assert.Equal(t, cfg.ArgumentExceptionType, nested.CaughtException().Type)

	left := caught.DropCaught()
	assert.Equal(t, NoException, left.Exception())
	assert.Equal(t, NoException, left.CaughtException())
	assert.True(t, left.Equal(Empty()))
}
