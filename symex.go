// Package symex explores every path of a function symbolically and tells
// what each operation and variable may hold on each path, and whether the
// function may leave with an exception.
//
// Graphs come from Go source through ParseFile, or are built directly with
// a cfg.Builder. Explore runs one exploration; an Observer attached with
// WithObserver answers per-operation and per-symbol queries afterwards.
package symex

import (
	"go/token"

	"github.com/gnoswap-labs/symex/internal/analysis/cfg"
	"github.com/gnoswap-labs/symex/internal/analysis/lattice"
	"github.com/gnoswap-labs/symex/internal/symex/engine"
	"github.com/gnoswap-labs/symex/internal/symex/state"
)

type (
	Graph     = cfg.Graph
	Block     = cfg.Block
	Operation = cfg.Operation
	Symbol    = cfg.Symbol
	Value     = lattice.Value
	State     = state.ProgramState
	Result    = engine.Result
	ExitState = engine.ExitState
	Option    = engine.Option
	Hook      = engine.Hook
	Point     = engine.Point
	Status    = engine.Status
)

const (
	PointBlock     = engine.PointBlock
	PointOperation = engine.PointOperation
	PointBranch    = engine.PointBranch

	StatusCompleted = engine.StatusCompleted
	StatusAborted   = engine.StatusAborted
)

var (
	WithLogger    = engine.WithLogger
	WithMaxSteps  = engine.WithMaxSteps
	WithMaxVisits = engine.WithMaxVisits
	WithSettings  = engine.WithSettings
	WithHook      = engine.WithHook
)

// ParseFile lowers every function of a Go source file.
func ParseFile(fset *token.FileSet, path string, src any) ([]*Graph, error) {
	return cfg.ParseFile(fset, path, src)
}

// Explore runs one exploration of g.
func Explore(g *Graph, opts ...Option) *Result {
	return engine.New(g, opts...).Run()
}

// Observer records the distinct values operations and symbols take while
// a graph is explored. It is not safe for concurrent explorations.
type Observer struct {
	operations map[*Operation][]*Value
	symbols    map[*Symbol][]*Value
}

func NewObserver() *Observer {
	return &Observer{
		operations: make(map[*Operation][]*Value),
		symbols:    make(map[*Symbol][]*Value),
	}
}

// Hook records the state at the end of every block. It never changes or
// prunes the state.
func (o *Observer) Hook(p Point, b *Block, _ *Operation, s *State) *State {
	if p != PointBranch {
		return s
	}
	record := func(op *Operation) {
		if v := s.OperationValue(op); v != nil {
			o.operations[op] = appendDistinct(o.operations[op], v)
		}
	}
	for _, root := range b.Operations {
		root.Walk(record)
	}
	if b.BranchValue != nil {
		b.BranchValue.Walk(record)
	}
	s.Symbols(func(sym *Symbol, v *Value) {
		o.symbols[sym] = appendDistinct(o.symbols[sym], v)
	})
	return s
}

// OperationValues returns the values op evaluated to on the explored
// paths, in discovery order.
func (o *Observer) OperationValues(op *Operation) []*Value {
	return o.operations[op]
}

// SymbolValues returns the values sym held at the end of explored blocks.
func (o *Observer) SymbolValues(sym *Symbol) []*Value {
	return o.symbols[sym]
}

// WithObserver attaches o after any hook set by earlier options.
func WithObserver(o *Observer) Option {
	return engine.WithHook(o.Hook)
}

func appendDistinct(vs []*Value, v *Value) []*Value {
	for _, x := range vs {
		if x.Equal(v) {
			return vs
		}
	}
	return append(vs, v)
}
