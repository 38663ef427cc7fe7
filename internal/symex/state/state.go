// Package state holds the immutable program state threaded through
// symbolic execution. Every With method returns a new state sharing
// structure with the receiver; a state is never mutated after creation.
package state

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/benbjohnson/immutable"

	"github.com/gnoswap-labs/symex/internal/analysis/cfg"
	"github.com/gnoswap-labs/symex/internal/analysis/lattice"
)

type intComparer struct{}

func (intComparer) Compare(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

type symbolEntry struct {
	sym   *cfg.Symbol
	value *lattice.Value
}

type operationEntry struct {
	op    *cfg.Operation
	value *lattice.Value
}

// ProgramState is one point of the explored state space.
type ProgramState struct {
	symbols    *immutable.SortedMap[int, symbolEntry]
	operations *immutable.SortedMap[int, operationEntry]
	captures   *immutable.SortedMap[int, *cfg.Operation]
	visits     *immutable.SortedMap[int, int]
	exceptions []Exception
}

var empty = &ProgramState{
	symbols:    immutable.NewSortedMap[int, symbolEntry](intComparer{}),
	operations: immutable.NewSortedMap[int, operationEntry](intComparer{}),
	captures:   immutable.NewSortedMap[int, *cfg.Operation](intComparer{}),
	visits:     immutable.NewSortedMap[int, int](intComparer{}),
}

// Empty is the state at procedure entry.
func Empty() *ProgramState { return empty }

func (s *ProgramState) clone() *ProgramState {
	c := *s
	return &c
}

// SymbolValue returns the value of sym, or nil when nothing is recorded.
func (s *ProgramState) SymbolValue(sym *cfg.Symbol) *lattice.Value {
	if sym == nil {
		return nil
	}
	e, ok := s.symbols.Get(sym.ID)
	if !ok {
		return nil
	}
	return e.value
}

// HasSymbol reports whether sym has a recorded value, which may be the
// unknown value.
func (s *ProgramState) HasSymbol(sym *cfg.Symbol) bool {
	if sym == nil {
		return false
	}
	_, ok := s.symbols.Get(sym.ID)
	return ok
}

// WithSymbolValue records v for sym. A nil v removes the entry.
func (s *ProgramState) WithSymbolValue(sym *cfg.Symbol, v *lattice.Value) *ProgramState {
	if sym == nil {
		return s
	}
	if v == nil {
		return s.WithoutSymbol(sym)
	}
	c := s.clone()
	c.symbols = s.symbols.Set(sym.ID, symbolEntry{sym: sym, value: v})
	return c
}

func (s *ProgramState) WithoutSymbol(sym *cfg.Symbol) *ProgramState {
	if !s.HasSymbol(sym) {
		return s
	}
	c := s.clone()
	c.symbols = s.symbols.Delete(sym.ID)
	return c
}

// ClearFields forgets every field reached through instance, directly or
// through other fields.
func (s *ProgramState) ClearFields(instance *cfg.Symbol) *ProgramState {
	if instance == nil {
		return s
	}
	out := s.symbols
	itr := s.symbols.Iterator()
	for !itr.Done() {
		id, e, _ := itr.Next()
		for c := e.sym.Container; c != nil; c = c.Container {
			if c == instance {
				out = out.Delete(id)
				break
			}
		}
	}
	if out == s.symbols {
		return s
	}
	c := s.clone()
	c.symbols = out
	return c
}

// OperationValue returns the value op evaluated to in this state.
func (s *ProgramState) OperationValue(op *cfg.Operation) *lattice.Value {
	if op == nil {
		return nil
	}
	e, ok := s.operations.Get(op.ID)
	if !ok {
		return nil
	}
	return e.value
}

// WithOperationValue records v for op. A nil v removes the entry.
func (s *ProgramState) WithOperationValue(op *cfg.Operation, v *lattice.Value) *ProgramState {
	if op == nil {
		return s
	}
	c := s.clone()
	if v == nil {
		c.operations = s.operations.Delete(op.ID)
	} else {
		c.operations = s.operations.Set(op.ID, operationEntry{op: op, value: v})
	}
	return c
}

// WithCapture binds a flow capture id to the operation it shadows.
func (s *ProgramState) WithCapture(id int, op *cfg.Operation) *ProgramState {
	c := s.clone()
	c.captures = s.captures.Set(id, op)
	return c
}

// ResolveCapture follows flow capture references to the captured
// operation. Other operations resolve to themselves.
func (s *ProgramState) ResolveCapture(op *cfg.Operation) *cfg.Operation {
	for i := 0; op != nil && op.Kind == cfg.OpFlowCaptureReference && i < 64; i++ {
		target, ok := s.captures.Get(op.CaptureID)
		if !ok {
			return op
		}
		op = target
	}
	return op
}

// TrackedSymbol returns the symbol op reads or writes after resolving
// flow captures.
func (s *ProgramState) TrackedSymbol(op *cfg.Operation) *cfg.Symbol {
	return cfg.TrackedSymbol(s.ResolveCapture(op))
}

// ValueOf returns the best known value of op: its own value, else the
// value of the captured operation, else the value of its symbol.
func (s *ProgramState) ValueOf(op *cfg.Operation) *lattice.Value {
	if v := s.OperationValue(op); v != nil {
		return v
	}
	resolved := s.ResolveCapture(op)
	if resolved != op {
		if v := s.OperationValue(resolved); v != nil {
			return v
		}
	}
	if sym := cfg.TrackedSymbol(resolved); sym != nil {
		return s.SymbolValue(sym)
	}
	return nil
}

// Learn attaches c to op and to the symbol behind it. It reports false
// when c contradicts what the state already knows.
func (s *ProgramState) Learn(op *cfg.Operation, c lattice.Constraint) (*ProgramState, bool) {
	if op == nil || c == nil {
		return s, true
	}
	v, ok := s.ValueOf(op).Learn(c)
	if !ok {
		return nil, false
	}
	out := s.WithOperationValue(op, v)
	resolved := s.ResolveCapture(op)
	if resolved != op {
		rv, ok := s.ValueOf(resolved).Learn(c)
		if !ok {
			return nil, false
		}
		out = out.WithOperationValue(resolved, rv)
	}
	if sym := cfg.TrackedSymbol(resolved); sym != nil {
		sv, ok := s.SymbolValue(sym).Learn(c)
		if !ok {
			return nil, false
		}
		out = out.WithSymbolValue(sym, sv)
	}
	return out, true
}

// LearnSymbol attaches c to sym only.
func (s *ProgramState) LearnSymbol(sym *cfg.Symbol, c lattice.Constraint) (*ProgramState, bool) {
	if sym == nil || c == nil {
		return s, true
	}
	v, ok := s.SymbolValue(sym).Learn(c)
	if !ok {
		return nil, false
	}
	return s.WithSymbolValue(sym, v), true
}

// ResetOperations drops operation values when control leaves a block,
// keeping those that flow captures still refer to.
func (s *ProgramState) ResetOperations() *ProgramState {
	if s.operations.Len() == 0 {
		return s
	}
	keep := make(map[int]bool, s.captures.Len())
	itr := s.captures.Iterator()
	for !itr.Done() {
		_, op, _ := itr.Next()
		keep[op.ID] = true
	}
	out := s.operations
	oitr := s.operations.Iterator()
	for !oitr.Done() {
		id, _, _ := oitr.Next()
		if !keep[id] {
			out = out.Delete(id)
		}
	}
	if out == s.operations {
		return s
	}
	c := s.clone()
	c.operations = out
	return c
}

// VisitCount returns how often this path passed through b.
func (s *ProgramState) VisitCount(b *cfg.Block) int {
	n, _ := s.visits.Get(b.Ordinal)
	return n
}

func (s *ProgramState) AddVisit(b *cfg.Block) *ProgramState {
	c := s.clone()
	c.visits = s.visits.Set(b.Ordinal, s.VisitCount(b)+1)
	return c
}

// Symbols calls fn for every recorded symbol in id order.
func (s *ProgramState) Symbols(fn func(*cfg.Symbol, *lattice.Value)) {
	itr := s.symbols.Iterator()
	for !itr.Done() {
		_, e, _ := itr.Next()
		fn(e.sym, e.value)
	}
}

// Operations calls fn for every recorded operation value in id order.
func (s *ProgramState) Operations(fn func(*cfg.Operation, *lattice.Value)) {
	itr := s.operations.Iterator()
	for !itr.Done() {
		_, e, _ := itr.Next()
		fn(e.op, e.value)
	}
}

// Equal compares all tracked data structurally.
func (s *ProgramState) Equal(o *ProgramState) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil {
		return false
	}
	if len(s.exceptions) != len(o.exceptions) {
		return false
	}
	for i := range s.exceptions {
		if !s.exceptions[i].Equal(o.exceptions[i]) {
			return false
		}
	}
	return equalMaps(s.symbols, o.symbols, func(a, b symbolEntry) bool { return a.value.Equal(b.value) }) &&
		equalMaps(s.operations, o.operations, func(a, b operationEntry) bool { return a.value.Equal(b.value) }) &&
		equalMaps(s.captures, o.captures, func(a, b *cfg.Operation) bool { return a == b }) &&
		equalMaps(s.visits, o.visits, func(a, b int) bool { return a == b })
}

func equalMaps[V any](a, b *immutable.SortedMap[int, V], eq func(V, V) bool) bool {
	if a == b {
		return true
	}
	if a.Len() != b.Len() {
		return false
	}
	ai, bi := a.Iterator(), b.Iterator()
	for !ai.Done() {
		ak, av, _ := ai.Next()
		bk, bv, _ := bi.Next()
		if ak != bk || !eq(av, bv) {
			return false
		}
	}
	return true
}

// Hash is consistent with Equal.
func (s *ProgramState) Hash() uint64 {
	h := fnv.New64a()
	writeInt := func(n int) {
		var buf [8]byte
		for i := range buf {
			buf[i] = byte(uint64(n) >> (8 * i))
		}
		h.Write(buf[:])
	}
	writeValue := func(v *lattice.Value) {
		writeInt(int(v.Hash()))
	}
	s.Symbols(func(sym *cfg.Symbol, v *lattice.Value) {
		writeInt(sym.ID)
		writeValue(v)
	})
	h.Write([]byte{0})
	s.Operations(func(op *cfg.Operation, v *lattice.Value) {
		writeInt(op.ID)
		writeValue(v)
	})
	h.Write([]byte{0})
	citr := s.captures.Iterator()
	for !citr.Done() {
		id, op, _ := citr.Next()
		writeInt(id)
		writeInt(op.ID)
	}
	h.Write([]byte{0})
	vitr := s.visits.Iterator()
	for !vitr.Done() {
		b, n, _ := vitr.Next()
		writeInt(b)
		writeInt(n)
	}
	for _, e := range s.exceptions {
		h.Write([]byte(e.String()))
	}
	return h.Sum64()
}

func (s *ProgramState) String() string {
	var sb strings.Builder
	sb.WriteString("Exception: ")
	sb.WriteString(s.Exception().String())
	sb.WriteString("\nSymbols:\n")
	s.Symbols(func(sym *cfg.Symbol, v *lattice.Value) {
		fmt.Fprintf(&sb, "  %s: %s\n", sym, v)
	})
	if s.operations.Len() > 0 {
		sb.WriteString("Operations:\n")
		s.Operations(func(op *cfg.Operation, v *lattice.Value) {
			fmt.Fprintf(&sb, "  #%d %s: %s\n", op.ID, op, v)
		})
	}
	if s.captures.Len() > 0 {
		sb.WriteString("Captures:\n")
		itr := s.captures.Iterator()
		for !itr.Done() {
			id, op, _ := itr.Next()
			fmt.Fprintf(&sb, "  #%d: %s\n", id, op)
		}
	}
	return sb.String()
}
