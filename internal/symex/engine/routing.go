package engine

import (
	"hash/fnv"
	"strconv"

	"github.com/gnoswap-labs/symex/internal/analysis/cfg"
	"github.com/gnoswap-labs/symex/internal/analysis/lattice"
	"github.com/gnoswap-labs/symex/internal/symex/state"
)

type item struct {
	block   *cfg.Block
	state   *state.ProgramState
	pending *pending
	// ret is the value being returned while a return runs through finally
	// regions or waits at the exit.
	ret *lattice.Value
	// origin raised the exception in flight.
	origin *cfg.Operation
}

func (it item) equal(o item) bool {
	return it.block == o.block &&
		it.origin == o.origin &&
		it.pending.equal(o.pending) &&
		it.ret.Equal(o.ret) &&
		it.state.Equal(o.state)
}

// pending records where control resumes once a finally region entered by
// a branch completes. Finally regions entered while another one runs
// chain to the outer continuation.
type pending struct {
	region *cfg.Region
	branch *cfg.Branch
	passed int
	outer  *pending
	ret    *lattice.Value
}

func (p *pending) equal(o *pending) bool {
	for ; p != nil && o != nil; p, o = p.outer, o.outer {
		if p.region != o.region || p.branch != o.branch || p.passed != o.passed || !p.ret.Equal(o.ret) {
			return false
		}
	}
	return p == nil && o == nil
}

func (p *pending) hash() uint64 {
	h := fnv.New64a()
	for ; p != nil; p = p.outer {
		h.Write([]byte(strconv.Itoa(p.region.First)))
		h.Write([]byte{'/'})
		h.Write([]byte(strconv.Itoa(p.passed)))
		h.Write([]byte{'/'})
		h.Write([]byte(strconv.FormatUint(p.ret.Hash(), 16)))
		h.Write([]byte{';'})
	}
	return h.Sum64()
}

type seenKey struct {
	block int
	hash  uint64
}

// enqueue schedules s at b unless the same pair was scheduled before.
func (e *Engine) enqueue(b *cfg.Block, s *state.ProgramState, p *pending, ret *lattice.Value) {
	e.push(item{block: b, state: s, pending: p, ret: ret})
}

func (e *Engine) push(it item) {
	b, s, p, ret := it.block, it.state, it.pending, it.ret
	key := seenKey{block: b.Ordinal, hash: s.Hash() ^ p.hash() ^ ret.Hash()}
	for _, prev := range e.seen[key] {
		if prev.equal(it) {
			return
		}
	}
	e.seen[key] = append(e.seen[key], it)
	e.queue = append(e.queue, it)
}

// route sends an exceptional state to the first handler that catches it,
// to the closest finally region on the way, or to the exit. from is the
// innermost region the exception escapes from; origin raised it.
func (e *Engine) route(from *cfg.Region, s *state.ProgramState, p *pending, origin *cfg.Operation) {
	s = s.ResetOperations()
	for r := from; r != nil; r = r.Enclosing {
		switch r.Kind {
		case cfg.RegionCatch, cfg.RegionFilterAndHandler:
			s = escapeHandler(s)
		case cfg.RegionFinally:
			if p != nil && p.region == r {
				p = p.outer
			}
		case cfg.RegionTry:
			parent := r.Enclosing
			if parent == nil {
				continue
			}
			switch parent.Kind {
			case cfg.RegionTryAndCatch:
				if e.catch(parent, s, p) {
					return
				}
			case cfg.RegionTryAndFinally:
				if f := parent.NestedOf(cfg.RegionFinally); f != nil {
					e.push(item{block: e.graph.Blocks[f.First], state: s, pending: p, origin: origin})
					return
				}
			}
		}
	}
	e.push(item{block: e.graph.Exit(), state: s, origin: origin})
}

// escapeHandler discards the exception a handler was processing when a
// new one leaves the handler.
func escapeHandler(s *state.ProgramState) *state.ProgramState {
	x := s.Exception()
	if x.IsNone() {
		return s
	}
	return s.PopException().DropCaught().PushException(x)
}

// catch offers the exception in flight to the handlers of tac in order.
// It reports whether some handler certainly takes it, in which case the
// exception goes no further.
func (e *Engine) catch(tac *cfg.Region, s *state.ProgramState, p *pending) bool {
	x := s.Exception()
	for _, h := range tac.Handlers() {
		certain, possible := handles(x, h.ExceptionType)
		if !possible {
			continue
		}
		hs := s.Catch(h.ExceptionType)
		first := e.graph.Blocks[h.First]
		if h.Filter == nil {
			e.enqueue(first, hs, p, nil)
			if certain {
				return true
			}
			continue
		}

		passed, failed := e.filter(first, h.Filter, hs)
		for _, ps := range passed {
			e.enqueue(first, ps, p, nil)
		}
		if certain && !failed {
			return true
		}
	}
	return false
}

// handles tells whether a handler declared for t certainly or possibly
// catches x. A known exception type is the exact runtime type.
func handles(x state.Exception, t *cfg.Type) (certain, possible bool) {
	switch {
	case t == nil || cfg.ExceptionType.DerivesFrom(t):
		return true, true
	case x.Kind == state.ExceptionUnknown:
		return false, true
	case x.Type.DerivesFrom(t):
		return true, true
	}
	return false, false
}

// filter evaluates a handler filter. It returns the states in which the
// filter holds and whether it may fail. An exception thrown by the filter
// counts as failing.
func (e *Engine) filter(b *cfg.Block, f *cfg.Operation, s *state.ProgramState) (passed []*state.ProgramState, failed bool) {
	if !e.tick() {
		return nil, false
	}
	env := e.env(b, e.loops.IsInLoop(b))
	normal, thrown := e.catalogue.Evaluate(s, f, env)
	failed = len(thrown) > 0
	for _, ns := range normal {
		v, known := ns.ValueOf(f).Bool()
		switch {
		case known && v == lattice.True:
			passed = append(passed, ns.ResetOperations())
		case known:
			failed = true
		default:
			failed = true
			if ls, ok := ns.Learn(f, lattice.True); ok {
				passed = append(passed, ls.ResetOperations())
			}
		}
	}
	return passed, failed
}
