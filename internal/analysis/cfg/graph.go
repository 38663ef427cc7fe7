package cfg

import (
	"errors"
	"fmt"
	"go/token"
)

var ErrFunctionNotFound = errors.New("function not found")

// BlockKind distinguishes the procedure entry and exit from basic blocks.
type BlockKind int

const (
	BlockBasic BlockKind = iota
	BlockEntry
	BlockExit
)

// ConditionKind tells which outcome of the branch value takes the
// conditional successor.
type ConditionKind int

const (
	ConditionNone ConditionKind = iota
	ConditionWhenTrue
	ConditionWhenFalse
)

// BranchSemantics describes how control leaves a block.
type BranchSemantics int

const (
	BranchRegular BranchSemantics = iota
	BranchReturn
	BranchFinallyExit
	BranchThrow
)

func (s BranchSemantics) String() string {
	switch s {
	case BranchRegular:
		return "regular"
	case BranchReturn:
		return "return"
	case BranchFinallyExit:
		return "finally-exit"
	case BranchThrow:
		return "throw"
	}
	return fmt.Sprintf("BranchSemantics(%d)", int(s))
}

// Branch is a directed edge. A nil Destination is only valid for
// finally-exit and throw branches.
type Branch struct {
	Source        *Block
	Destination   *Block
	Semantics     BranchSemantics
	IsConditional bool
	// FinallyRegions lists, innermost first, the finally regions control
	// runs through before reaching Destination.
	FinallyRegions []*Region
}

// Block is a basic block.
type Block struct {
	Ordinal    int
	Kind       BlockKind
	Operations []*Operation
	// BranchValue is the condition of a conditional block, or the returned
	// value of a block that branches to the exit.
	BranchValue          *Operation
	ConditionKind        ConditionKind
	ConditionalSuccessor *Branch
	FallThroughSuccessor *Branch
	Predecessors         []*Branch
	EnclosingRegion      *Region
}

func (b *Block) String() string {
	switch b.Kind {
	case BlockEntry:
		return fmt.Sprintf("B%d(entry)", b.Ordinal)
	case BlockExit:
		return fmt.Sprintf("B%d(exit)", b.Ordinal)
	}
	return fmt.Sprintf("B%d", b.Ordinal)
}

// IsConditional reports whether b ends with a two-way branch.
func (b *Block) IsConditional() bool {
	return b.ConditionalSuccessor != nil && b.ConditionKind != ConditionNone
}

// Region returns the innermost region of kind k enclosing b, or nil.
func (b *Block) Region(k RegionKind) *Region {
	for r := b.EnclosingRegion; r != nil; r = r.Enclosing {
		if r.Kind == k {
			return r
		}
	}
	return nil
}

// InRegion reports whether b is inside any region of kind k.
func (b *Block) InRegion(k RegionKind) bool {
	return b.Region(k) != nil
}

// RegionKind tags a region.
type RegionKind int

const (
	RegionRoot RegionKind = iota
	RegionLocalLifetime
	RegionTry
	RegionTryAndCatch
	RegionTryAndFinally
	RegionCatch
	RegionFilterAndHandler
	RegionFinally
)

func (k RegionKind) String() string {
	switch k {
	case RegionRoot:
		return "Root"
	case RegionLocalLifetime:
		return "LocalLifetime"
	case RegionTry:
		return "Try"
	case RegionTryAndCatch:
		return "TryAndCatch"
	case RegionTryAndFinally:
		return "TryAndFinally"
	case RegionCatch:
		return "Catch"
	case RegionFilterAndHandler:
		return "FilterAndHandler"
	case RegionFinally:
		return "Finally"
	}
	return fmt.Sprintf("RegionKind(%d)", int(k))
}

// Region is a contiguous range of block ordinals. Catch and
// FilterAndHandler regions carry the declared exception type (nil catches
// everything) and an optional filter evaluated against the exception.
type Region struct {
	Kind          RegionKind
	First, Last   int
	Enclosing     *Region
	Nested        []*Region
	ExceptionType *Type
	Filter        *Operation
	Locals        []*Symbol

	rank int
}

// Contains reports whether ordinal lies inside r.
func (r *Region) Contains(ordinal int) bool {
	return r.First <= ordinal && ordinal <= r.Last
}

// Handlers returns the catch regions of a TryAndCatch region in
// declaration order.
func (r *Region) Handlers() []*Region {
	var out []*Region
	for _, n := range r.Nested {
		if n.Kind == RegionCatch || n.Kind == RegionFilterAndHandler {
			out = append(out, n)
		}
	}
	return out
}

// NestedOf returns the first nested region of kind k.
func (r *Region) NestedOf(k RegionKind) *Region {
	for _, n := range r.Nested {
		if n.Kind == k {
			return n
		}
	}
	return nil
}

func (r *Region) String() string {
	return fmt.Sprintf("%s[B%d..B%d]", r.Kind, r.First, r.Last)
}

// Graph is the control-flow graph of one procedure. Blocks are indexed by
// ordinal; the first is the entry and the last is the exit.
type Graph struct {
	Name       string
	Blocks     []*Block
	Root       *Region
	Symbols    *SymbolTable
	Parameters []*Symbol
	// Pos and End delimit the source of the procedure, when known.
	Pos, End token.Pos

	succs [][]*Block
}

func (g *Graph) Entry() *Block { return g.Blocks[0] }
func (g *Graph) Exit() *Block  { return g.Blocks[len(g.Blocks)-1] }

// Successors returns every block control may reach directly from b,
// including finally entries on the way out of try regions and the
// handler and finally entries reachable by an exception raised in b.
func (g *Graph) Successors(b *Block) []*Block {
	return g.succs[b.Ordinal]
}

// Predecessors returns the sources of the regular edges into b.
func (g *Graph) Predecessors(b *Block) []*Block {
	out := make([]*Block, 0, len(b.Predecessors))
	for _, br := range b.Predecessors {
		out = append(out, br.Source)
	}
	return out
}

// Target returns the block a branch actually transfers to: the first
// finally block it must run through, or its destination.
func (br *Branch) Target(g *Graph) *Block {
	if len(br.FinallyRegions) > 0 {
		return g.Blocks[br.FinallyRegions[0].First]
	}
	return br.Destination
}

func (g *Graph) link() {
	g.succs = make([][]*Block, len(g.Blocks))
	add := func(from int, to *Block) {
		if to == nil {
			return
		}
		for _, b := range g.succs[from] {
			if b == to {
				return
			}
		}
		g.succs[from] = append(g.succs[from], to)
	}

	// Blocks a finally region may continue to once it completes.
	finallyNext := make(map[*Region][]*Block)
	for _, b := range g.Blocks {
		for _, br := range []*Branch{b.ConditionalSuccessor, b.FallThroughSuccessor} {
			if br == nil {
				continue
			}
			for i, f := range br.FinallyRegions {
				next := br.Destination
				if i+1 < len(br.FinallyRegions) {
					next = g.Blocks[br.FinallyRegions[i+1].First]
				}
				finallyNext[f] = append(finallyNext[f], next)
			}
		}
	}

	for _, b := range g.Blocks {
		for _, br := range []*Branch{b.ConditionalSuccessor, b.FallThroughSuccessor} {
			if br == nil {
				continue
			}
			if br.Semantics == BranchFinallyExit {
				if f := b.Region(RegionFinally); f != nil {
					for _, n := range finallyNext[f] {
						add(b.Ordinal, n)
					}
					for _, n := range g.exceptionTargets(f) {
						add(b.Ordinal, n)
					}
				}
				continue
			}
			add(b.Ordinal, br.Target(g))
		}
		for _, n := range g.exceptionTargets(b.EnclosingRegion) {
			add(b.Ordinal, n)
		}
	}
}

// exceptionTargets returns the first handler block and finally block an
// exception escaping r may reach, walking outward until one of them is a
// finally (which always runs) or the exit.
func (g *Graph) exceptionTargets(r *Region) []*Block {
	var out []*Block
	for ; r != nil; r = r.Enclosing {
		if r.Kind != RegionTry || r.Enclosing == nil {
			continue
		}
		p := r.Enclosing
		switch p.Kind {
		case RegionTryAndCatch:
			for _, h := range p.Handlers() {
				out = append(out, g.Blocks[h.First])
			}
		case RegionTryAndFinally:
			if f := p.NestedOf(RegionFinally); f != nil {
				return append(out, g.Blocks[f.First])
			}
		}
	}
	return out
}

// Validate reports structural defects a builder could have introduced.
func (g *Graph) Validate() error {
	if len(g.Blocks) < 2 {
		return fmt.Errorf("graph %s: need at least entry and exit blocks", g.Name)
	}
	if g.Entry().Kind != BlockEntry || g.Exit().Kind != BlockExit {
		return fmt.Errorf("graph %s: first and last blocks must be entry and exit", g.Name)
	}
	for i, b := range g.Blocks {
		if b.Ordinal != i {
			return fmt.Errorf("graph %s: block %d has ordinal %d", g.Name, i, b.Ordinal)
		}
		if b.IsConditional() && b.BranchValue == nil {
			return fmt.Errorf("graph %s: %s is conditional without a branch value", g.Name, b)
		}
	}
	return nil
}
