// Package engine drives symbolic execution over one control-flow graph.
//
// The engine walks the graph breadth first. Every queue item pairs a block
// with a program state; the operations of the block are replayed through
// the rule catalogue and the resulting states are routed to the successors
// of the block, to exception handlers, or through finally regions. States
// already seen at a block are dropped, and blocks inside loops are entered
// at most MaxVisits times per path, so exploration always ends.
package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gnoswap-labs/symex/internal/analysis/cfg"
	"github.com/gnoswap-labs/symex/internal/analysis/lattice"
	"github.com/gnoswap-labs/symex/internal/symex/rules"
	"github.com/gnoswap-labs/symex/internal/symex/state"
)

const (
	DefaultMaxSteps  = 2000
	DefaultMaxVisits = 3
)

type Status int

const (
	StatusReady Status = iota
	StatusRunning
	StatusCompleted
	// StatusAborted means the step budget ran out. States found so far
	// are still reported.
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusAborted:
		return "aborted"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Point says where a hook is invoked.
type Point int

const (
	// PointBlock fires when a path enters a block. The operation is nil.
	PointBlock Point = iota
	// PointOperation fires before each operation, operands included.
	PointOperation
	// PointBranch fires once a block has been fully evaluated, before
	// control leaves it. The operation is the branch value, if any, and
	// the state still holds the values of the block's operations.
	PointBranch
)

func (p Point) String() string {
	switch p {
	case PointBlock:
		return "block"
	case PointOperation:
		return "operation"
	case PointBranch:
		return "branch"
	}
	return fmt.Sprintf("Point(%d)", int(p))
}

// Hook observes the exploration. It returns the state to continue with,
// possibly modified, or nil to prune the path.
type Hook func(p Point, b *cfg.Block, op *cfg.Operation, s *state.ProgramState) *state.ProgramState

// ExitState is a state that reached the procedure exit.
type ExitState struct {
	State *state.ProgramState
	// Return is the value returned on this path, nil when none.
	Return    *lattice.Value
	Exception state.Exception
	// Origin is the operation that raised Exception, when known.
	Origin *cfg.Operation
}

// Threw reports whether the procedure left with an exception.
func (e ExitState) Threw() bool { return !e.Exception.IsNone() }

type Result struct {
	Graph          *cfg.Graph
	Status         Status
	ExitStates     []ExitState
	ExitReachCount int
	Steps          int
}

// Completed reports whether every path was explored.
func (r *Result) Completed() bool { return r.Status == StatusCompleted }

// Threw returns the exit states that leave with an exception.
func (r *Result) Threw() []ExitState {
	var out []ExitState
	for _, e := range r.ExitStates {
		if e.Threw() {
			out = append(out, e)
		}
	}
	return out
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

func WithMaxVisits(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxVisits = n
		}
	}
}

func WithSettings(s rules.Settings) Option {
	return func(e *Engine) { e.catalogue = rules.New(s) }
}

// WithHook adds h after any hook already set. A nil state returned by one
// hook prunes the path without running the rest.
func WithHook(h Hook) Option {
	return func(e *Engine) {
		if h == nil {
			return
		}
		prev := e.hook
		if prev == nil {
			e.hook = h
			return
		}
		e.hook = func(p Point, b *cfg.Block, op *cfg.Operation, s *state.ProgramState) *state.ProgramState {
			if s = prev(p, b, op, s); s == nil {
				return nil
			}
			return h(p, b, op, s)
		}
	}
}

// Engine explores one graph. It is not safe for concurrent use; analyze
// independent graphs with independent engines.
type Engine struct {
	graph     *cfg.Graph
	loops     *cfg.LoopDetector
	catalogue *rules.Catalogue
	logger    *zap.Logger
	hook      Hook
	maxSteps  int
	maxVisits int

	status Status
	steps  int
	queue  []item
	seen   map[seenKey][]item
	result *Result
}

// New panics on a nil graph.
func New(g *cfg.Graph, opts ...Option) *Engine {
	if g == nil {
		panic("engine: nil graph")
	}
	e := &Engine{
		graph:     g,
		loops:     cfg.NewLoopDetector(g),
		catalogue: rules.New(rules.DefaultSettings()),
		logger:    zap.NewNop(),
		maxSteps:  DefaultMaxSteps,
		maxVisits: DefaultMaxVisits,
		seen:      make(map[seenKey][]item),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("func", g.Name))
	return e
}

func (e *Engine) Status() Status { return e.status }

// Run explores the graph. Later calls return the first result.
func (e *Engine) Run() *Result {
	if e.result != nil {
		return e.result
	}
	e.result = &Result{Graph: e.graph}
	e.status = StatusRunning
	e.enqueue(e.graph.Entry(), state.Empty(), nil, nil)

	for len(e.queue) > 0 && e.status == StatusRunning {
		it := e.queue[0]
		e.queue = e.queue[1:]
		e.process(it)
	}
	if e.status == StatusRunning {
		e.status = StatusCompleted
	}

	e.result.Status = e.status
	e.result.Steps = e.steps
	e.logger.Debug("exploration finished",
		zap.Stringer("status", e.status),
		zap.Int("steps", e.steps),
		zap.Int("exits", e.result.ExitReachCount),
	)
	return e.result
}

// tick counts one replayed operation. It reports false once the budget
// is exhausted.
func (e *Engine) tick() bool {
	if e.status != StatusRunning {
		return false
	}
	e.steps++
	if e.steps > e.maxSteps {
		e.status = StatusAborted
		e.logger.Debug("step budget exhausted", zap.Int("max_steps", e.maxSteps))
		return false
	}
	return true
}

func (e *Engine) process(it item) {
	b, s := it.block, it.state
	if b.Kind == cfg.BlockExit {
		e.exit(it)
		return
	}

	inLoop := e.loops.IsInLoop(b)
	if inLoop {
		if s.VisitCount(b) >= e.maxVisits {
			e.logger.Debug("visit bound reached", zap.Stringer("block", b))
			return
		}
		s = s.AddVisit(b)
	}
	if e.hook != nil {
		if s = e.hook(PointBlock, b, nil, s); s == nil {
			return
		}
	}

	env := e.env(b, inLoop)
	states := []*state.ProgramState{s}
	for _, op := range b.Operations {
		var next []*state.ProgramState
		for _, st := range states {
			if !e.tick() {
				return
			}
			normal, thrown := e.catalogue.Evaluate(st, op, env)
			next = append(next, normal...)
			for _, x := range thrown {
				e.route(b.EnclosingRegion, x, it.pending, op)
			}
		}
		states = next
	}
	e.leave(it, env, states)
}

func (e *Engine) env(b *cfg.Block, inLoop bool) rules.Env {
	env := rules.Env{Graph: e.graph, Block: b, InLoop: inLoop}
	if e.hook != nil {
		env.Before = func(op *cfg.Operation, s *state.ProgramState) *state.ProgramState {
			return e.hook(PointOperation, b, op, s)
		}
	}
	return env
}

// leave evaluates the branch value and sends every state on.
func (e *Engine) leave(it item, env rules.Env, states []*state.ProgramState) {
	b := it.block
	for _, s := range states {
		ends := []*state.ProgramState{s}
		if b.BranchValue != nil {
			if !e.tick() {
				return
			}
			env.IsLoopCondition = env.InLoop && b.IsConditional()
			var thrown []*state.ProgramState
			ends, thrown = e.catalogue.Evaluate(s, b.BranchValue, env)
			for _, x := range thrown {
				e.route(b.EnclosingRegion, x, it.pending, b.BranchValue)
			}
		}
		for _, st := range ends {
			if e.hook != nil {
				if st = e.hook(PointBranch, b, b.BranchValue, st); st == nil {
					continue
				}
			}
			if b.IsConditional() {
				e.branch(it, st)
				continue
			}
			var ret *lattice.Value
			if b.BranchValue != nil {
				ret = st.ValueOf(b.BranchValue)
			}
			e.follow(it, b.FallThroughSuccessor, st, ret)
		}
	}
}

// branch picks the successors of a conditional block. A branch value
// without a boolean constraint takes both edges and learns the outcome
// on each.
func (e *Engine) branch(it item, s *state.ProgramState) {
	b := it.block
	whenTrue, whenFalse := b.ConditionalSuccessor, b.FallThroughSuccessor
	if b.ConditionKind == cfg.ConditionWhenFalse {
		whenTrue, whenFalse = whenFalse, whenTrue
	}
	known, isKnown := s.ValueOf(b.BranchValue).Bool()
	for _, outcome := range []bool{true, false} {
		next := s
		if isKnown {
			if (known == lattice.True) != outcome {
				continue
			}
		} else {
			var ok bool
			if next, ok = s.Learn(b.BranchValue, lattice.BoolOf(outcome)); !ok {
				continue
			}
		}
		br := whenFalse
		if outcome {
			br = whenTrue
		}
		e.follow(it, br, next, nil)
	}
}

// follow sends s along br, through any finally regions on the way.
func (e *Engine) follow(it item, br *cfg.Branch, s *state.ProgramState, ret *lattice.Value) {
	if br == nil {
		return
	}
	src := it.block
	switch br.Semantics {
	case cfg.BranchThrow:
		// The throwing operation already produced the exceptional states.
		return
	case cfg.BranchFinallyExit:
		e.finallyExit(it, s)
		return
	}

	s = s.ResetOperations()
	var origin *cfg.Operation
	if s.InException() {
		// Still inside a finally region entered by an exception.
		origin = it.origin
	}
	if len(br.FinallyRegions) > 0 {
		f := br.FinallyRegions[0]
		first := e.graph.Blocks[f.First]
		e.push(item{
			block:   first,
			state:   leaveHandlers(s, src, first.Ordinal),
			pending: &pending{region: f, branch: br, outer: it.pending, ret: ret},
			origin:  origin,
		})
		return
	}
	if br.Destination == nil {
		return
	}
	e.push(item{
		block:   br.Destination,
		state:   leaveHandlers(s, src, br.Destination.Ordinal),
		pending: it.pending,
		ret:     ret,
		origin:  origin,
	})
}

// finallyExit resumes whatever entered the finally region src belongs
// to: the exception in flight, or the branch that ran through it.
func (e *Engine) finallyExit(it item, s *state.ProgramState) {
	f := it.block.Region(cfg.RegionFinally)
	if f == nil {
		e.logger.Debug("finally exit outside a finally region", zap.Stringer("block", it.block))
		return
	}
	p := it.pending
	if s.InException() {
		if p != nil && p.region == f {
			p = p.outer
		}
		e.route(f.Enclosing, s, p, it.origin)
		return
	}
	if p == nil || p.region != f {
		e.logger.Debug("finally exit without continuation", zap.Stringer("block", it.block))
		return
	}

	s = s.ResetOperations()
	next := p.passed + 1
	if next < len(p.branch.FinallyRegions) {
		nf := p.branch.FinallyRegions[next]
		e.enqueue(e.graph.Blocks[nf.First], s, &pending{region: nf, branch: p.branch, passed: next, outer: p.outer, ret: p.ret}, nil)
		return
	}
	if p.branch.Destination == nil {
		return
	}
	e.enqueue(p.branch.Destination, s, p.outer, p.ret)
}

func (e *Engine) exit(it item) {
	s := it.state
	if e.hook != nil {
		if s = e.hook(PointBlock, it.block, nil, s); s == nil {
			return
		}
	}
	x := ExitState{State: s, Return: it.ret, Exception: s.Exception()}
	if !x.Exception.IsNone() {
		x.Origin = it.origin
	}
	e.result.ExitReachCount++
	e.result.ExitStates = append(e.result.ExitStates, x)
}

// leaveHandlers drops the handled exception of every catch region that
// control leaves on the way to dst.
func leaveHandlers(s *state.ProgramState, src *cfg.Block, dst int) *state.ProgramState {
	for r := src.EnclosingRegion; r != nil; r = r.Enclosing {
		if (r.Kind == cfg.RegionCatch || r.Kind == cfg.RegionFilterAndHandler) && !r.Contains(dst) {
			s = s.DropCaught()
		}
	}
	return s
}
