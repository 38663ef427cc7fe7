package cfg

import (
	"fmt"
	"go/token"
	"sort"
)

// Builder assembles a Graph block by block. Blocks receive ordinals in
// creation order; a block without an explicit successor falls through to
// the next created block, and the last one to the exit.
type Builder struct {
	name    string
	syms    *SymbolTable
	params  []*Symbol
	blocks  []*BlockBuilder
	exit    *BlockBuilder
	groups  []*regionGroup
	nextOp  int
	nextCap int
	this    *Symbol
	pos     token.Pos
	span    [2]token.Pos
}

// BlockBuilder collects the operations and successors of one block.
type BlockBuilder struct {
	parent    *Builder
	block     *Block
	cond      *Operation
	whenTrue  *BlockBuilder
	whenFalse *BlockBuilder
	next      *BlockBuilder
	semantics BranchSemantics
	value     *Operation
	explicit  bool
}

// Span is an inclusive range of blocks.
type Span struct {
	First, Last *BlockBuilder
}

// Blocks returns the span from first to last.
func Blocks(first, last *BlockBuilder) Span { return Span{First: first, Last: last} }

// Handler describes one catch clause.
type Handler struct {
	Type   *Type
	Filter *Operation
	Span   Span
}

// Catch is a handler for exceptions deriving from t; nil catches all.
func Catch(t *Type, span Span) Handler { return Handler{Type: t, Span: span} }

// CatchWhen is a handler guarded by a filter.
func CatchWhen(t *Type, filter *Operation, span Span) Handler {
	return Handler{Type: t, Filter: filter, Span: span}
}

type regionSpec struct {
	region *Region
	span   Span
}

type regionGroup struct {
	specs []regionSpec
}

func NewBuilder(name string) *Builder {
	b := &Builder{name: name, syms: NewSymbolTable()}
	b.exit = &BlockBuilder{parent: b, block: &Block{Kind: BlockExit}}
	return b
}

// Symbols exposes the table so callers can intern field symbols.
func (b *Builder) Symbols() *SymbolTable { return b.syms }

// Source records the source range of the procedure.
func (b *Builder) Source(pos, end token.Pos) *Builder {
	b.span = [2]token.Pos{pos, end}
	return b
}

// At sets the source position stamped on subsequently created operations.
func (b *Builder) At(pos token.Pos) *Builder {
	b.pos = pos
	return b
}

func (b *Builder) Param(name string, t *Type) *Symbol {
	s := b.syms.New(name, SymbolParameter, t)
	b.params = append(b.params, s)
	return s
}

func (b *Builder) Local(name string, t *Type) *Symbol {
	return b.syms.New(name, SymbolLocal, t)
}

// Block starts a new basic block.
func (b *Builder) Block() *BlockBuilder {
	bb := &BlockBuilder{parent: b, block: &Block{Kind: BlockBasic}}
	b.blocks = append(b.blocks, bb)
	return bb
}

// Exit is the procedure exit, usable as a branch target.
func (b *Builder) Exit() *BlockBuilder { return b.exit }

func (b *Builder) op(kind OpKind, t *Type, operands ...*Operation) *Operation {
	op := &Operation{ID: b.nextOp, Kind: kind, Type: t, Operands: operands, Pos: b.pos}
	b.nextOp++
	for _, o := range operands {
		if o != nil {
			o.Parent = op
		}
	}
	return op
}

func (b *Builder) Literal(c Constant, t *Type) *Operation {
	op := b.op(OpLiteral, t)
	op.Constant = c
	return op
}

func (b *Builder) Int(n int64) *Operation     { return b.Literal(IntConst(n), IntType) }
func (b *Builder) Bool(v bool) *Operation     { return b.Literal(BoolConst(v), BoolType) }
func (b *Builder) Str(s string) *Operation    { return b.Literal(StringConst(s), StringType) }
func (b *Builder) Float(f float64) *Operation { return b.Literal(FloatConst(f), FloatType) }
func (b *Builder) Null() *Operation           { return b.Literal(NullConst(), ObjectType) }

// Ref references a local, parameter or static field.
func (b *Builder) Ref(s *Symbol) *Operation {
	kind := OpLocalReference
	switch s.Kind {
	case SymbolParameter:
		kind = OpParameterReference
	case SymbolField:
		kind = OpFieldReference
	}
	op := b.op(kind, s.Type)
	op.Symbol = s
	return op
}

// This references the receiver of the procedure.
func (b *Builder) This() *Operation {
	if b.this == nil {
		b.this = b.syms.New("this", SymbolParameter, ObjectType)
	}
	op := b.op(OpInstanceReference, ObjectType)
	op.Symbol = b.this
	return op
}

// Field references instance.name. The field symbol is interned per
// tracked instance so that facts about a.f never leak to b.f.
func (b *Builder) Field(instance *Operation, name string, t *Type) *Operation {
	var container *Symbol
	if instance != nil {
		container = TrackedSymbol(instance)
	}
	op := b.op(OpFieldReference, t)
	op.Instance = instance
	if instance != nil {
		instance.Parent = op
	}
	op.Symbol = b.syms.Field(container, name, t)
	return op
}

func (b *Builder) Binary(o Operator, left, right *Operation) *Operation {
	t := left.Type
	if o.IsRelational() || o == ConditionalAnd || o == ConditionalOr {
		t = BoolType
	}
	op := b.op(OpBinary, t, left, right)
	op.Operator = o
	return op
}

func (b *Builder) Unary(o Operator, x *Operation) *Operation {
	t := x.Type
	if o == Not {
		t = BoolType
	}
	op := b.op(OpUnary, t, x)
	op.Operator = o
	return op
}

func (b *Builder) Assign(target, value *Operation) *Operation {
	return b.op(OpSimpleAssignment, target.Type, target, value)
}

func (b *Builder) CompoundAssign(o Operator, target, value *Operation) *Operation {
	op := b.op(OpCompoundAssignment, target.Type, target, value)
	op.Operator = o
	return op
}

func (b *Builder) Increment(target *Operation) *Operation {
	return b.op(OpIncrement, target.Type, target)
}

func (b *Builder) Decrement(target *Operation) *Operation {
	return b.op(OpDecrement, target.Type, target)
}

// Invoke calls method on instance, which is nil for static calls.
func (b *Builder) Invoke(instance *Operation, method string, ret *Type, args ...*Operation) *Operation {
	op := b.op(OpInvocation, ret, args...)
	op.Instance = instance
	if instance != nil {
		instance.Parent = op
	}
	op.Method = method
	return op
}

// Dynamic is a call whose target is resolved at run time.
func (b *Builder) Dynamic(instance *Operation, method string, args ...*Operation) *Operation {
	op := b.Invoke(instance, method, UnknownType, args...)
	op.Kind = OpDynamicInvocation
	return op
}

func (b *Builder) New(t *Type, args ...*Operation) *Operation {
	return b.op(OpObjectCreation, t, args...)
}

func (b *Builder) Collection(t *Type, elems ...*Operation) *Operation {
	return b.op(OpCollectionCreation, t, elems...)
}

func (b *Builder) Element(collection, index *Operation, t *Type) *Operation {
	return b.op(OpElementReference, t, collection, index)
}

// Convert converts x to t. A non-nil exception is the only exception the
// conversion can raise; checked integer conversions may overflow.
func (b *Builder) Convert(x *Operation, t *Type, exception *Type) *Operation {
	op := b.op(OpConversion, t, x)
	op.Exception = exception
	op.Checked = exception != nil
	return op
}

func (b *Builder) IsNull(x *Operation) *Operation {
	return b.op(OpIsNull, BoolType, x)
}

func (b *Builder) IsType(x *Operation, t *Type) *Operation {
	op := b.op(OpIsType, BoolType, x)
	op.Pattern = TypePattern(t)
	return op
}

func (b *Builder) IsPattern(x *Operation, p *Pattern) *Operation {
	op := b.op(OpIsPattern, BoolType, x)
	op.Pattern = p
	return op
}

// Throw raises x, or rethrows when x is nil inside a handler.
func (b *Builder) Throw(x *Operation) *Operation {
	if x == nil {
		return b.op(OpThrow, nil)
	}
	return b.op(OpThrow, x.Type, x)
}

func (b *Builder) Rethrow() *Operation {
	return b.op(OpRethrow, nil)
}

// Caught is the exception value inside a handler or filter.
func (b *Builder) Caught(t *Type) *Operation {
	if t == nil {
		t = ExceptionType
	}
	return b.op(OpCaughtException, t)
}

func (b *Builder) Default(t *Type) *Operation {
	return b.op(OpDefaultValue, t)
}

// Opaque is an operation whose semantics are unknown.
func (b *Builder) Opaque(t *Type, children ...*Operation) *Operation {
	return b.op(OpOpaque, t, children...)
}

// NewCapture allocates a flow capture id.
func (b *Builder) NewCapture() int {
	b.nextCap++
	return b.nextCap
}

// Capture stores value into the flow capture id.
func (b *Builder) Capture(id int, value *Operation) *Operation {
	op := b.op(OpFlowCapture, value.Type, value)
	op.CaptureID = id
	return op
}

// CaptureRef reads the flow capture id.
func (b *Builder) CaptureRef(id int, t *Type) *Operation {
	op := b.op(OpFlowCaptureReference, t)
	op.CaptureID = id
	return op
}

func (bb *BlockBuilder) Add(ops ...*Operation) *BlockBuilder {
	bb.block.Operations = append(bb.block.Operations, ops...)
	return bb
}

// Branch ends the block with a two-way branch on cond.
func (bb *BlockBuilder) Branch(cond *Operation, whenTrue, whenFalse *BlockBuilder) {
	bb.cond, bb.whenTrue, bb.whenFalse = cond, whenTrue, whenFalse
	bb.explicit = true
}

func (bb *BlockBuilder) Goto(target *BlockBuilder) {
	bb.next = target
	bb.semantics = BranchRegular
	bb.explicit = true
}

// Return ends the block by returning value, which may be nil.
func (bb *BlockBuilder) Return(value *Operation) {
	bb.next = bb.parent.exit
	bb.semantics = BranchReturn
	bb.value = value
	bb.explicit = true
}

// Throw ends the block by raising x.
func (bb *BlockBuilder) Throw(x *Operation) {
	bb.Add(bb.parent.Throw(x))
	bb.next = nil
	bb.semantics = BranchThrow
	bb.explicit = true
}

// Rethrow ends a handler block by rethrowing the caught exception.
func (bb *BlockBuilder) Rethrow() {
	bb.Add(bb.parent.Rethrow())
	bb.next = nil
	bb.semantics = BranchThrow
	bb.explicit = true
}

// EndFinally marks the last block of a finally region.
func (bb *BlockBuilder) EndFinally() {
	bb.next = nil
	bb.semantics = BranchFinallyExit
	bb.explicit = true
}

// TryCatch declares a try region guarded by handlers in declaration order.
func (b *Builder) TryCatch(try Span, handlers ...Handler) *Region {
	if len(handlers) == 0 {
		panic("cfg: TryCatch without handlers")
	}
	g := &regionGroup{}
	outer := &Region{Kind: RegionTryAndCatch, rank: 2}
	g.specs = append(g.specs,
		regionSpec{outer, Span{try.First, handlers[len(handlers)-1].Span.Last}},
		regionSpec{&Region{Kind: RegionTry, rank: 3}, try},
	)
	for _, h := range handlers {
		kind := RegionCatch
		if h.Filter != nil {
			kind = RegionFilterAndHandler
		}
		g.specs = append(g.specs, regionSpec{
			&Region{Kind: kind, ExceptionType: h.Type, Filter: h.Filter, rank: 4},
			h.Span,
		})
	}
	b.groups = append(b.groups, g)
	return outer
}

// TryFinally declares a try region whose finally always runs.
func (b *Builder) TryFinally(try, finally Span) *Region {
	outer := &Region{Kind: RegionTryAndFinally, rank: 0}
	b.groups = append(b.groups, &regionGroup{specs: []regionSpec{
		{outer, Span{try.First, finally.Last}},
		{&Region{Kind: RegionTry, rank: 1}, try},
		{&Region{Kind: RegionFinally, rank: 4}, finally},
	}})
	return outer
}

// LocalLifetime scopes locals to span.
func (b *Builder) LocalLifetime(span Span, locals ...*Symbol) *Region {
	r := &Region{Kind: RegionLocalLifetime, Locals: locals, rank: 5}
	b.groups = append(b.groups, &regionGroup{specs: []regionSpec{{r, span}}})
	return r
}

// Build assigns ordinals, nests regions, resolves successors and links
// the graph. It panics on a malformed description.
func (b *Builder) Build() *Graph {
	g, err := b.build()
	if err != nil {
		panic(err)
	}
	return g
}

func (b *Builder) build() (*Graph, error) {
	entry := &Block{Kind: BlockEntry}
	all := make([]*Block, 0, len(b.blocks)+2)
	all = append(all, entry)
	for _, bb := range b.blocks {
		all = append(all, bb.block)
	}
	all = append(all, b.exit.block)
	for i, blk := range all {
		blk.Ordinal = i
		blk.Predecessors = nil
		blk.ConditionalSuccessor = nil
		blk.FallThroughSuccessor = nil
	}

	g := &Graph{Name: b.name, Blocks: all, Symbols: b.syms, Parameters: b.params, Pos: b.span[0], End: b.span[1]}
	if err := b.nestRegions(g); err != nil {
		return nil, err
	}

	first := b.exit.block
	if len(b.blocks) > 0 {
		first = b.blocks[0].block
	}
	entry.FallThroughSuccessor = &Branch{Source: entry, Destination: first}

	for i, bb := range b.blocks {
		blk := bb.block
		switch {
		case bb.cond != nil:
			blk.BranchValue = bb.cond
			blk.ConditionKind = ConditionWhenTrue
			blk.ConditionalSuccessor = b.branch(blk, bb.whenTrue.block, BranchRegular)
			blk.ConditionalSuccessor.IsConditional = true
			blk.FallThroughSuccessor = b.branch(blk, bb.whenFalse.block, BranchRegular)
		case bb.explicit && bb.semantics == BranchFinallyExit, bb.explicit && bb.semantics == BranchThrow:
			blk.FallThroughSuccessor = &Branch{Source: blk, Semantics: bb.semantics}
		case bb.explicit:
			blk.BranchValue = bb.value
			blk.FallThroughSuccessor = b.branch(blk, bb.next.block, bb.semantics)
		default:
			if f := blk.Region(RegionFinally); f != nil && f.Last == blk.Ordinal {
				blk.FallThroughSuccessor = &Branch{Source: blk, Semantics: BranchFinallyExit}
				continue
			}
			next, sem := b.exit.block, BranchReturn
			if i+1 < len(b.blocks) {
				next, sem = b.blocks[i+1].block, BranchRegular
			}
			blk.FallThroughSuccessor = b.branch(blk, next, sem)
		}
	}

	for _, blk := range all {
		for _, br := range []*Branch{blk.ConditionalSuccessor, blk.FallThroughSuccessor} {
			if br == nil {
				continue
			}
			if t := br.Target(g); t != nil {
				t.Predecessors = append(t.Predecessors, br)
			}
		}
	}
	g.link()
	return g, g.Validate()
}

func (b *Builder) branch(src, dst *Block, sem BranchSemantics) *Branch {
	br := &Branch{Source: src, Destination: dst, Semantics: sem}
	for r := src.EnclosingRegion; r != nil; r = r.Enclosing {
		if r.Kind != RegionTry || r.Enclosing == nil || r.Enclosing.Kind != RegionTryAndFinally {
			continue
		}
		if r.Contains(dst.Ordinal) {
			continue
		}
		if f := r.Enclosing.NestedOf(RegionFinally); f != nil {
			br.FinallyRegions = append(br.FinallyRegions, f)
		}
	}
	return br
}

func (b *Builder) nestRegions(g *Graph) error {
	type item struct {
		r          *Region
		groupWidth int
	}
	root := &Region{Kind: RegionRoot, First: 0, Last: len(g.Blocks) - 1, rank: -1}
	items := []item{{root, len(g.Blocks) + 1}}
	for _, grp := range b.groups {
		lo, hi := -1, -1
		for _, s := range grp.specs {
			if s.span.First == nil || s.span.Last == nil {
				return fmt.Errorf("cfg: %s region with an open span", s.region.Kind)
			}
			s.region.First = s.span.First.block.Ordinal
			s.region.Last = s.span.Last.block.Ordinal
			if s.region.First > s.region.Last {
				return fmt.Errorf("cfg: %s region spans B%d..B%d", s.region.Kind, s.region.First, s.region.Last)
			}
			if lo < 0 || s.region.First < lo {
				lo = s.region.First
			}
			if s.region.Last > hi {
				hi = s.region.Last
			}
		}
		for _, s := range grp.specs {
			s.region.Enclosing, s.region.Nested = nil, nil
			items = append(items, item{s.region, hi - lo})
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, c := items[i], items[j]
		if a.r.First != c.r.First {
			return a.r.First < c.r.First
		}
		if a.r.Last != c.r.Last {
			return a.r.Last > c.r.Last
		}
		if a.groupWidth != c.groupWidth {
			return a.groupWidth > c.groupWidth
		}
		return a.r.rank < c.r.rank
	})

	var stack []*Region
	for _, it := range items {
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.Contains(it.r.First) && top.Contains(it.r.Last) {
				break
			}
			if top.Contains(it.r.First) {
				return fmt.Errorf("cfg: %s overlaps %s", it.r, top)
			}
			stack = stack[:len(stack)-1]
		}
		if len(stack) > 0 {
			top := stack[len(stack)-1]
			it.r.Enclosing = top
			top.Nested = append(top.Nested, it.r)
		} else if it.r != root {
			return fmt.Errorf("cfg: %s outside the root region", it.r)
		}
		stack = append(stack, it.r)
	}

	g.Root = root
	for _, blk := range g.Blocks {
		blk.EnclosingRegion = innermost(root, blk.Ordinal)
	}
	return nil
}

func innermost(r *Region, ordinal int) *Region {
	for _, n := range r.Nested {
		if n.Contains(ordinal) {
			return innermost(n, ordinal)
		}
	}
	return r
}

// TrackedSymbol returns the symbol whose value op reads or writes, or nil
// when op does not denote trackable storage. Fields are tracked when
// static or reached through a tracked receiver.
func TrackedSymbol(op *Operation) *Symbol {
	if op == nil {
		return nil
	}
	switch op.Kind {
	case OpLocalReference, OpParameterReference, OpInstanceReference:
		return op.Symbol
	case OpFieldReference:
		if op.Instance == nil || TrackedSymbol(op.Instance) != nil {
			return op.Symbol
		}
	}
	return nil
}

// TypePattern matches non-null values of t.
func TypePattern(t *Type) *Pattern { return &Pattern{Kind: PatternType, Type: t} }

// DeclarationPattern matches like TypePattern and binds the value to s.
// A nil t is "var s", which matches anything.
func DeclarationPattern(t *Type, s *Symbol) *Pattern {
	return &Pattern{Kind: PatternDeclaration, Type: t, Designation: s}
}

func ConstantPattern(c Constant) *Pattern { return &Pattern{Kind: PatternConstant, Constant: c} }

func RelationalPattern(o Operator, c Constant) *Pattern {
	return &Pattern{Kind: PatternRelational, Operator: o, Constant: c}
}

func NotPattern(p *Pattern) *Pattern    { return &Pattern{Kind: PatternNot, Left: p} }
func AndPattern(l, r *Pattern) *Pattern { return &Pattern{Kind: PatternAnd, Left: l, Right: r} }
func OrPattern(l, r *Pattern) *Pattern  { return &Pattern{Kind: PatternOr, Left: l, Right: r} }
func DiscardPattern() *Pattern          { return &Pattern{Kind: PatternDiscard} }

// RecursivePattern matches non-null values of t (any type when nil)
// whose properties match.
func RecursivePattern(t *Type, s *Symbol, props ...PropertyPattern) *Pattern {
	return &Pattern{Kind: PatternRecursive, Type: t, Designation: s, Properties: props}
}

func Property(name string, t *Type, p *Pattern) PropertyPattern {
	return PropertyPattern{Name: name, Type: t, Pattern: p}
}
