// Package rules holds the transfer functions of the symbolic execution
// engine. The catalogue has exactly one rule per operation kind; a rule
// maps the state before an operation to the states after it.
package rules

import (
	"fmt"

	"github.com/gnoswap-labs/symex/internal/analysis/cfg"
	"github.com/gnoswap-labs/symex/internal/analysis/lattice"
	"github.com/gnoswap-labs/symex/internal/symex/state"
)

// Continuation says how control leaves an operation.
type Continuation int

const (
	Normal Continuation = iota
	Exceptional
)

func (c Continuation) String() string {
	if c == Exceptional {
		return "exceptional"
	}
	return "normal"
}

// Result is one successor state of an operation.
type Result struct {
	State        *state.ProgramState
	Continuation Continuation
}

// Env is the part of a rule context shared by all operations of a block.
type Env struct {
	Graph *cfg.Graph
	Block *cfg.Block
	// InLoop is set when Block belongs to a cycle of the graph.
	InLoop bool
	// IsLoopCondition is set while evaluating the branch value of a loop
	// block. The false outcome of a loop condition never learns a range.
	IsLoopCondition bool
	// Before, if set, runs ahead of every operation and may replace the
	// state. Returning nil drops the path.
	Before func(op *cfg.Operation, s *state.ProgramState) *state.ProgramState
}

// Context is the input of a rule.
type Context struct {
	Env
	State     *state.ProgramState
	Operation *cfg.Operation
}

// NewContext panics on a nil state or operation: both are programming
// errors of the caller.
func NewContext(s *state.ProgramState, op *cfg.Operation, env Env) *Context {
	if s == nil {
		panic("rules: nil program state")
	}
	if op == nil {
		panic("rules: nil operation")
	}
	return &Context{Env: env, State: s, Operation: op}
}

// inTry reports whether implicit exceptions of the current operation can
// be observed. Outside a try region they are not modelled.
func (ctx *Context) inTry() bool {
	return ctx.Block != nil && ctx.Block.InRegion(cfg.RegionTry)
}

// Rule is a transfer function.
type Rule func(c *Catalogue, ctx *Context) []Result

var table [cfg.NumOpKinds]Rule

func init() {
	table[cfg.OpLiteral] = literal
	table[cfg.OpLocalReference] = reference
	table[cfg.OpParameterReference] = reference
	table[cfg.OpFieldReference] = reference
	table[cfg.OpInstanceReference] = instanceReference
	table[cfg.OpFlowCapture] = flowCapture
	table[cfg.OpFlowCaptureReference] = flowCaptureReference
	table[cfg.OpSimpleAssignment] = assignment
	table[cfg.OpCompoundAssignment] = compoundAssignment
	table[cfg.OpIncrement] = increment
	table[cfg.OpDecrement] = increment
	table[cfg.OpBinary] = binary
	table[cfg.OpUnary] = unary
	table[cfg.OpConversion] = conversion
	table[cfg.OpInvocation] = invocation
	table[cfg.OpDynamicInvocation] = dynamicInvocation
	table[cfg.OpObjectCreation] = objectCreation
	table[cfg.OpCollectionCreation] = collectionCreation
	table[cfg.OpElementReference] = elementReference
	table[cfg.OpIsNull] = isNull
	table[cfg.OpIsType] = isPattern
	table[cfg.OpIsPattern] = isPattern
	table[cfg.OpThrow] = throw
	table[cfg.OpRethrow] = throw
	table[cfg.OpCaughtException] = caughtException
	table[cfg.OpDefaultValue] = defaultValue
	table[cfg.OpOpaque] = opaque

	for k, r := range table {
		if r == nil {
			panic(fmt.Sprintf("rules: no rule for %s", cfg.OpKind(k)))
		}
	}
}

// Catalogue dispatches operations to their rules.
type Catalogue struct {
	settings Settings
}

func New(settings Settings) *Catalogue {
	return &Catalogue{settings: settings}
}

// Apply runs the rule of ctx.Operation. Operands must already have been
// evaluated into ctx.State.
func (c *Catalogue) Apply(ctx *Context) []Result {
	k := ctx.Operation.Kind
	if int(k) < 0 || int(k) >= cfg.NumOpKinds {
		panic(fmt.Sprintf("rules: unknown operation kind %d", int(k)))
	}
	return table[k](c, ctx)
}

// Evaluate applies the rules to root and its operands in evaluation order,
// starting from s. It returns the states that complete root normally and
// the states that leave it with an exception.
func (c *Catalogue) Evaluate(s *state.ProgramState, root *cfg.Operation, env Env) (normal, exceptional []*state.ProgramState) {
	var order []*cfg.Operation
	root.Walk(func(op *cfg.Operation) { order = append(order, op) })

	current := []*state.ProgramState{s}
	for _, op := range order {
		var next []*state.ProgramState
		for _, st := range current {
			if env.Before != nil {
				if st = env.Before(op, st); st == nil {
					continue
				}
			}
			for _, r := range c.Apply(NewContext(st, op, env)) {
				if r.State == nil {
					continue
				}
				if r.Continuation == Exceptional {
					exceptional = append(exceptional, r.State)
				} else {
					next = appendUnique(next, r.State)
				}
			}
		}
		current = next
		if len(current) == 0 {
			break
		}
	}
	return current, exceptional
}

func appendUnique(states []*state.ProgramState, s *state.ProgramState) []*state.ProgramState {
	for _, o := range states {
		if o.Equal(s) {
			return states
		}
	}
	return append(states, s)
}

func normal(s *state.ProgramState) Result { return Result{State: s} }

func exceptional(s *state.ProgramState, e state.Exception) Result {
	return Result{State: s.PushException(e), Continuation: Exceptional}
}

func throws(s *state.ProgramState, t *cfg.Type) Result {
	return exceptional(s, state.KnownException(t))
}

// set records v as the value of the current operation. An unknown value
// clears any stale entry left by an earlier visit.
func (ctx *Context) set(s *state.ProgramState, v *lattice.Value) *state.ProgramState {
	if v.IsUnknown() {
		return s.WithOperationValue(ctx.Operation, nil)
	}
	return s.WithOperationValue(ctx.Operation, v)
}

func (ctx *Context) result(v *lattice.Value) []Result {
	return []Result{normal(ctx.set(ctx.State, v))}
}

func withBool(ctx *Context, s *state.ProgramState, b bool) Result {
	return normal(ctx.set(s, lattice.NewValue(lattice.NotNull, lattice.BoolOf(b))))
}

// typeFacts adds what the static type guarantees: values of value types
// are never null.
func typeFacts(v *lattice.Value, t *cfg.Type) *lattice.Value {
	if t.IsValueType() && !v.Has(lattice.Null) {
		return v.With(lattice.NotNull)
	}
	return v
}

// overwrite replaces the constraint of c's lattice on op and its symbol,
// where Learn would only narrow it.
func overwrite(s *state.ProgramState, op *cfg.Operation, c lattice.Constraint) *state.ProgramState {
	s = s.WithOperationValue(op, s.ValueOf(op).With(c))
	if sym := s.TrackedSymbol(op); sym != nil {
		s = s.WithSymbolValue(sym, s.SymbolValue(sym).With(c))
	}
	return s
}

// dereference models an access through instance. A known null always
// throws; an unproven one may throw inside a try region. The returned
// state knows instance is not null and is nil when access cannot succeed.
func dereference(ctx *Context, s *state.ProgramState, instance *cfg.Operation) (*state.ProgramState, []Result) {
	if instance == nil {
		return s, nil
	}
	v := s.ValueOf(instance)
	if v.Has(lattice.Null) {
		return nil, []Result{throws(s, cfg.NullReferenceExceptionType)}
	}
	var out []Result
	if ctx.inTry() && !v.Has(lattice.NotNull) && !instance.Type.IsValueType() {
		out = append(out, throws(s, cfg.NullReferenceExceptionType))
	}
	next, ok := s.Learn(instance, lattice.NotNull)
	if !ok {
		return nil, out
	}
	return next, out
}

// splitNull returns the state in which x is null and the one in which it
// is not. Either is nil when infeasible.
func splitNull(ctx *Context, s *state.ProgramState, x *cfg.Operation) (isNull, notNull *state.ProgramState) {
	v := s.ValueOf(x)
	switch {
	case v.Has(lattice.Null):
		return s, nil
	case v.Has(lattice.NotNull) || x.Type.IsValueType():
		return nil, s
	}
	isNull, _ = s.Learn(x, lattice.Null)
	notNull, _ = s.Learn(x, lattice.Null.ApplyOpposite(ctx.IsLoopCondition))
	return isNull, notNull
}
