package cfg

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"math/big"

	"golang.org/x/tools/go/ast/astutil"
	xcfg "golang.org/x/tools/go/cfg"
)

// GoStringType is a Go string: a value type, never nil.
var GoStringType = &Type{Name: "string", Kind: TypeValue}

// ParseFile parses and type-checks one Go file and lowers every function
// with a body. Type errors are tolerated; untyped expressions lower to
// unknown types.
func ParseFile(fset *token.FileSet, path string, src any) ([]*Graph, error) {
	f, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return FromFile(fset, f), nil
}

// FromFile type-checks f on its own and lowers its functions.
func FromFile(fset *token.FileSet, f *ast.File) []*Graph {
	info := NewTypesInfo()
	conf := types.Config{
		Importer: importer.Default(),
		Error:    func(error) {},
	}
	_, _ = conf.Check(f.Name.Name, fset, []*ast.File{f}, info)
	return FromFuncs(f, info)
}

// FromFuncs lowers every function of f that has a body, in declaration
// order.
func FromFuncs(f *ast.File, info *types.Info) []*Graph {
	var graphs []*Graph
	for _, decl := range f.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil {
			continue
		}
		graphs = append(graphs, FromFunc(fn, info))
	}
	return graphs
}

// NewTypesInfo allocates the maps FromFunc reads.
func NewTypesInfo() *types.Info {
	return &types.Info{
		Types:      make(map[ast.Expr]types.TypeAndValue),
		Defs:       make(map[*ast.Ident]types.Object),
		Uses:       make(map[*ast.Ident]types.Object),
		Selections: make(map[*ast.SelectorExpr]*types.Selection),
	}
}

// FindFunc returns the graph named name.
func FindFunc(graphs []*Graph, name string) (*Graph, error) {
	for _, g := range graphs {
		if g.Name == name {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", name, ErrFunctionNotFound)
}

// FromFunc lowers a Go function onto the graph model. Basic blocks come
// from golang.org/x/tools/go/cfg; info may be nil, in which case symbols
// are resolved by name and every type is unknown.
func FromFunc(fn *ast.FuncDecl, info *types.Info) *Graph {
	name := fn.Name.Name
	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		name = recvName(fn.Recv.List[0].Type) + "." + name
	}
	l := &lowerer{
		b:         NewBuilder(name),
		info:      info,
		syms:      make(map[any]*Symbol),
		typeCache: make(map[string]*Type),
		caseTags:  make(map[ast.Expr]ast.Expr),
		rangeVars: make(map[ast.Expr]bool),
	}
	l.b.Source(fn.Pos(), fn.End())
	if fn.Recv != nil {
		l.declareFields(fn.Recv)
	}
	l.declareFields(fn.Type.Params)
	if fn.Body == nil {
		return l.b.Build()
	}
	l.collect(fn.Body)

	graph := xcfg.New(fn.Body, l.mayReturn)
	var live []*xcfg.Block
	for _, blk := range graph.Blocks {
		if blk.Live {
			live = append(live, blk)
		}
	}
	l.blocks = make(map[*xcfg.Block]*BlockBuilder, len(live))
	for _, blk := range live {
		l.blocks[blk] = l.b.Block()
	}
	for _, blk := range live {
		l.lowerBlock(blk)
	}
	return l.b.Build()
}

func recvName(e ast.Expr) string {
	switch t := e.(type) {
	case *ast.StarExpr:
		return recvName(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return recvName(t.X)
	case *ast.IndexListExpr:
		return recvName(t.X)
	}
	return "?"
}

type lowerer struct {
	b         *Builder
	info      *types.Info
	syms      map[any]*Symbol
	typeCache map[string]*Type
	caseTags  map[ast.Expr]ast.Expr
	rangeVars map[ast.Expr]bool
	blocks    map[*xcfg.Block]*BlockBuilder
}

func (l *lowerer) declareFields(fields *ast.FieldList) {
	if fields == nil {
		return
	}
	for _, f := range fields.List {
		t := l.typeOfExpr(f.Type)
		for _, id := range f.Names {
			if id.Name == "_" {
				continue
			}
			s := l.b.Param(id.Name, t)
			l.syms[l.key(id)] = s
		}
	}
}

// collect remembers the tag of every expression switch so that a case
// expression lowers to tag == expr, and the key and value of every range
// statement.
func (l *lowerer) collect(body *ast.BlockStmt) {
	ast.Inspect(body, func(n ast.Node) bool {
		if rs, ok := n.(*ast.RangeStmt); ok {
			for _, e := range []ast.Expr{rs.Key, rs.Value} {
				if e != nil {
					l.rangeVars[e] = true
				}
			}
			return true
		}
		sw, ok := n.(*ast.SwitchStmt)
		if !ok || sw.Tag == nil {
			return true
		}
		for _, s := range sw.Body.List {
			cc, ok := s.(*ast.CaseClause)
			if !ok {
				continue
			}
			for _, e := range cc.List {
				l.caseTags[e] = sw.Tag
			}
		}
		return true
	})
}

func (l *lowerer) mayReturn(call *ast.CallExpr) bool {
	if l.isBuiltin(call.Fun, "panic") {
		return false
	}
	if sel, ok := call.Fun.(*ast.SelectorExpr); ok {
		if pkg, ok := sel.X.(*ast.Ident); ok {
			switch pkg.Name + "." + sel.Sel.Name {
			case "os.Exit", "log.Fatal", "log.Fatalf", "log.Fatalln", "log.Panic", "log.Panicf":
				return false
			}
		}
	}
	return true
}

func (l *lowerer) lowerBlock(blk *xcfg.Block) {
	bb := l.blocks[blk]
	nodes := blk.Nodes

	var cond ast.Expr
	if len(blk.Succs) == 2 && len(nodes) > 0 {
		if e, ok := nodes[len(nodes)-1].(ast.Expr); ok {
			cond = e
			nodes = nodes[:len(nodes)-1]
		}
	}

	for i, n := range nodes {
		last := i == len(nodes)-1
		switch s := n.(type) {
		case *ast.ReturnStmt:
			bb.Return(l.lowerReturn(bb, s))
			return
		case *ast.ExprStmt:
			if call, ok := s.X.(*ast.CallExpr); ok && l.isBuiltin(call.Fun, "panic") {
				var arg *Operation
				if len(call.Args) > 0 {
					arg = l.expr(call.Args[0])
				}
				bb.Throw(arg)
				return
			}
			l.stmt(bb, n)
			if last && len(blk.Succs) == 0 {
				if call, ok := s.X.(*ast.CallExpr); ok && !l.mayReturn(call) {
					bb.Throw(nil)
					return
				}
			}
		default:
			l.stmt(bb, n)
		}
	}

	switch len(blk.Succs) {
	case 0:
		bb.Return(nil)
	case 1:
		bb.Goto(l.blocks[blk.Succs[0]])
	default:
		var c *Operation
		if cond != nil {
			c = l.condition(cond)
		} else {
			c = l.b.Opaque(BoolType)
		}
		bb.Branch(c, l.blocks[blk.Succs[0]], l.blocks[blk.Succs[1]])
	}
}

func (l *lowerer) condition(e ast.Expr) *Operation {
	if tag, ok := l.caseTags[e]; ok {
		return l.b.Binary(Equals, l.expr(tag), l.expr(e))
	}
	return l.expr(e)
}

func (l *lowerer) lowerReturn(bb *BlockBuilder, s *ast.ReturnStmt) *Operation {
	if len(s.Results) == 0 {
		return nil
	}
	for _, r := range s.Results[1:] {
		bb.Add(l.expr(r))
	}
	return l.expr(s.Results[0])
}

func (l *lowerer) stmt(bb *BlockBuilder, n ast.Node) {
	b := l.b.At(n.Pos())
	switch s := n.(type) {
	case *ast.AssignStmt:
		l.assign(bb, s)
	case *ast.IncDecStmt:
		target := l.target(s.X)
		if s.Tok == token.INC {
			bb.Add(b.Increment(target))
		} else {
			bb.Add(b.Decrement(target))
		}
	case *ast.ExprStmt:
		bb.Add(l.expr(s.X))
	case *ast.ValueSpec:
		for i, id := range s.Names {
			if id.Name == "_" {
				if i < len(s.Values) {
					bb.Add(l.expr(s.Values[i]))
				}
				continue
			}
			target := l.target(id)
			var value *Operation
			switch {
			case len(s.Values) == len(s.Names):
				value = l.expr(s.Values[i])
			case len(s.Values) == 0:
				value = b.Default(target.Type)
			default:
				value = b.Opaque(target.Type)
			}
			bb.Add(b.Assign(target, value))
		}
		if len(s.Values) == 1 && len(s.Names) > 1 {
			bb.Add(l.expr(s.Values[0]))
		}
	case *ast.SendStmt:
		bb.Add(b.Opaque(nil, l.expr(s.Chan), l.expr(s.Value)))
	case *ast.GoStmt:
		bb.Add(b.Opaque(nil, l.args(s.Call.Args)...))
	case *ast.DeferStmt:
		bb.Add(b.Opaque(nil, l.args(s.Call.Args)...))
	case ast.Expr:
		// Range keys and values are rebound on every iteration.
		if l.rangeVars[s] {
			if !isBlank(s) {
				target := l.target(s)
				bb.Add(b.Assign(target, b.Opaque(target.Type)))
			}
			return
		}
		bb.Add(l.expr(s))
	}
}

func (l *lowerer) assign(bb *BlockBuilder, s *ast.AssignStmt) {
	b := l.b
	if s.Tok != token.ASSIGN && s.Tok != token.DEFINE {
		if o, ok := compoundOperators[s.Tok]; ok && len(s.Lhs) == 1 && len(s.Rhs) == 1 {
			bb.Add(b.CompoundAssign(o, l.target(s.Lhs[0]), l.expr(s.Rhs[0])))
		}
		return
	}
	if len(s.Lhs) == len(s.Rhs) {
		values := make([]*Operation, len(s.Rhs))
		for i, r := range s.Rhs {
			values[i] = l.expr(r)
		}
		for i, lhs := range s.Lhs {
			if isBlank(lhs) {
				bb.Add(values[i])
				continue
			}
			bb.Add(b.Assign(l.target(lhs), values[i]))
		}
		return
	}
	// v, ok := m[k] and friends: the tuple parts are unknown, and a
	// comma-ok type assertion never panics.
	rhs := s.Rhs[0]
	if ta, ok := astutil.Unparen(rhs).(*ast.TypeAssertExpr); ok && ta.Type != nil {
		bb.Add(b.Convert(l.expr(ta.X), l.typeOfExpr(ta.Type), nil))
	} else {
		bb.Add(l.expr(rhs))
	}
	for _, lhs := range s.Lhs {
		if isBlank(lhs) {
			continue
		}
		target := l.target(lhs)
		bb.Add(b.Assign(target, b.Opaque(target.Type)))
	}
}

var compoundOperators = map[token.Token]Operator{
	token.ADD_ASSIGN:     Add,
	token.SUB_ASSIGN:     Subtract,
	token.MUL_ASSIGN:     Multiply,
	token.QUO_ASSIGN:     Divide,
	token.REM_ASSIGN:     Remainder,
	token.AND_ASSIGN:     And,
	token.OR_ASSIGN:      Or,
	token.XOR_ASSIGN:     ExclusiveOr,
	token.SHL_ASSIGN:     LeftShift,
	token.SHR_ASSIGN:     RightShift,
	token.AND_NOT_ASSIGN: And,
}

var binaryOperators = map[token.Token]Operator{
	token.ADD:  Add,
	token.SUB:  Subtract,
	token.MUL:  Multiply,
	token.QUO:  Divide,
	token.REM:  Remainder,
	token.AND:  And,
	token.OR:   Or,
	token.XOR:  ExclusiveOr,
	token.SHL:  LeftShift,
	token.SHR:  RightShift,
	token.EQL:  Equals,
	token.NEQ:  NotEquals,
	token.LSS:  LessThan,
	token.LEQ:  LessThanOrEqual,
	token.GTR:  GreaterThan,
	token.GEQ:  GreaterThanOrEqual,
	token.LAND: ConditionalAnd,
	token.LOR:  ConditionalOr,
}

func isBlank(e ast.Expr) bool {
	id, ok := e.(*ast.Ident)
	return ok && id.Name == "_"
}

// target lowers an assignable expression.
func (l *lowerer) target(e ast.Expr) *Operation {
	switch x := astutil.Unparen(e).(type) {
	case *ast.Ident:
		return l.b.At(x.Pos()).Ref(l.symbol(x))
	}
	return l.expr(e)
}

func (l *lowerer) key(id *ast.Ident) any {
	if l.info != nil {
		if obj := l.info.ObjectOf(id); obj != nil {
			return obj
		}
	}
	return id.Name
}

func (l *lowerer) symbol(id *ast.Ident) *Symbol {
	k := l.key(id)
	if s, ok := l.syms[k]; ok {
		return s
	}
	t := l.typeOf(id)
	var s *Symbol
	if v, ok := k.(*types.Var); ok && v.Pkg() != nil && v.Parent() == v.Pkg().Scope() {
		s = l.b.Symbols().Field(nil, id.Name, t)
	} else {
		s = l.b.Local(id.Name, t)
	}
	l.syms[k] = s
	return s
}

func (l *lowerer) isBuiltin(fun ast.Expr, name string) bool {
	id, ok := astutil.Unparen(fun).(*ast.Ident)
	if !ok || id.Name != name {
		return false
	}
	if l.info == nil {
		return true
	}
	obj := l.info.ObjectOf(id)
	if obj == nil {
		return true
	}
	_, ok = obj.(*types.Builtin)
	return ok
}

func (l *lowerer) args(args []ast.Expr) []*Operation {
	out := make([]*Operation, 0, len(args))
	for _, a := range args {
		out = append(out, l.expr(a))
	}
	return out
}

func (l *lowerer) expr(e ast.Expr) *Operation {
	b := l.b.At(e.Pos())
	if lit := l.constant(e); lit != nil {
		return lit
	}
	switch x := e.(type) {
	case *ast.ParenExpr:
		return l.expr(x.X)
	case *ast.Ident:
		if x.Name == "nil" && l.isBuiltinNil(x) {
			return b.Null()
		}
		if x.Name == "_" {
			return b.Opaque(UnknownType)
		}
		if l.info != nil {
			switch l.info.ObjectOf(x).(type) {
			case *types.Func, *types.TypeName, *types.PkgName:
				return b.Opaque(l.typeOf(x))
			}
		}
		return b.Ref(l.symbol(x))
	case *ast.BinaryExpr:
		if x.Op == token.AND_NOT {
			return b.Binary(And, l.expr(x.X), b.Unary(BitwiseNot, l.expr(x.Y)))
		}
		o, ok := binaryOperators[x.Op]
		if !ok {
			return b.Opaque(l.typeOf(x), l.expr(x.X), l.expr(x.Y))
		}
		op := b.Binary(o, l.expr(x.X), l.expr(x.Y))
		if t := l.typeOf(x); t != UnknownType {
			op.Type = t
		}
		return op
	case *ast.UnaryExpr:
		switch x.Op {
		case token.NOT:
			return b.Unary(Not, l.expr(x.X))
		case token.SUB:
			return b.Unary(Negate, l.expr(x.X))
		case token.ADD:
			return b.Unary(Plus, l.expr(x.X))
		case token.XOR:
			return b.Unary(BitwiseNot, l.expr(x.X))
		case token.AND:
			// &x and &T{} are never nil.
			if cl, ok := astutil.Unparen(x.X).(*ast.CompositeLit); ok {
				return b.New(l.typeOf(x), l.compositeElems(cl)...)
			}
			return b.New(l.typeOf(x))
		}
		return b.Opaque(l.typeOf(x), l.expr(x.X))
	case *ast.StarExpr:
		return b.Field(l.expr(x.X), "*", l.typeOf(x))
	case *ast.SelectorExpr:
		return l.selector(x)
	case *ast.CallExpr:
		return l.call(x)
	case *ast.IndexExpr:
		switch l.underlying(x.X).(type) {
		case *types.Slice, *types.Array, *types.Pointer:
			return b.Element(l.expr(x.X), l.expr(x.Index), l.typeOf(x))
		case *types.Basic:
			return b.Element(l.expr(x.X), l.expr(x.Index), l.typeOf(x))
		}
		return b.Opaque(l.typeOf(x), l.expr(x.X), l.expr(x.Index))
	case *ast.SliceExpr:
		children := []*Operation{l.expr(x.X)}
		for _, i := range []ast.Expr{x.Low, x.High, x.Max} {
			if i != nil {
				children = append(children, l.expr(i))
			}
		}
		return b.Opaque(l.typeOf(x), children...)
	case *ast.CompositeLit:
		t := l.typeOf(x)
		if t.Kind == TypeCollection {
			return b.Collection(t, l.compositeElems(x)...)
		}
		return b.Opaque(t, l.compositeElems(x)...)
	case *ast.KeyValueExpr:
		return l.expr(x.Value)
	case *ast.TypeAssertExpr:
		if x.Type == nil {
			return b.Opaque(UnknownType, l.expr(x.X))
		}
		return b.Convert(l.expr(x.X), l.typeOfExpr(x.Type), InvalidCastExceptionType)
	case *ast.FuncLit:
		return b.New(l.typeOf(x))
	}
	return b.Opaque(l.typeOf(e))
}

func (l *lowerer) compositeElems(cl *ast.CompositeLit) []*Operation {
	return l.args(cl.Elts)
}

func (l *lowerer) isBuiltinNil(id *ast.Ident) bool {
	if l.info == nil {
		return true
	}
	obj := l.info.ObjectOf(id)
	if obj == nil {
		return true
	}
	_, ok := obj.(*types.Nil)
	return ok
}

func (l *lowerer) selector(x *ast.SelectorExpr) *Operation {
	b := l.b.At(x.Pos())
	if l.info != nil {
		if sel, ok := l.info.Selections[x]; ok {
			if sel.Kind() == types.FieldVal {
				return b.Field(l.expr(x.X), x.Sel.Name, l.typeOf(x))
			}
			return b.New(l.typeOf(x), l.expr(x.X))
		}
		if _, ok := l.info.ObjectOf(x.Sel).(*types.Var); ok {
			return b.Ref(l.qualified(x))
		}
		return b.Opaque(l.typeOf(x))
	}
	if id, ok := x.X.(*ast.Ident); ok && l.syms[id.Name] == nil {
		return b.Ref(l.qualified(x))
	}
	return b.Field(l.expr(x.X), x.Sel.Name, UnknownType)
}

// qualified interns a package-level variable of another package.
func (l *lowerer) qualified(x *ast.SelectorExpr) *Symbol {
	name := x.Sel.Name
	if id, ok := x.X.(*ast.Ident); ok {
		name = id.Name + "." + name
	}
	return l.b.Symbols().Field(nil, name, l.typeOf(x))
}

func (l *lowerer) call(x *ast.CallExpr) *Operation {
	b := l.b.At(x.Pos())
	if l.info != nil {
		if tv, ok := l.info.Types[x.Fun]; ok && tv.IsType() && len(x.Args) == 1 {
			return b.Convert(l.expr(x.Args[0]), l.typeOf(x), nil)
		}
	}
	if id, ok := astutil.Unparen(x.Fun).(*ast.Ident); ok && l.isBuiltin(id, id.Name) && builtins[id.Name] {
		switch id.Name {
		case "new":
			return b.New(l.typeOf(x))
		case "make":
			return b.New(l.typeOf(x), l.args(x.Args[1:])...)
		case "panic":
			return b.Throw(l.expr(x.Args[0]))
		}
		return b.Invoke(nil, id.Name, l.typeOf(x), l.args(x.Args)...)
	}

	ret := l.typeOf(x)
	if sel, ok := astutil.Unparen(x.Fun).(*ast.SelectorExpr); ok {
		if l.info == nil {
			if id, ok := sel.X.(*ast.Ident); ok && l.syms[id.Name] == nil {
				return b.Invoke(nil, id.Name+"."+sel.Sel.Name, ret, l.args(x.Args)...)
			}
			return b.Invoke(l.expr(sel.X), sel.Sel.Name, ret, l.args(x.Args)...)
		}
		if s, ok := l.info.Selections[sel]; ok && s.Kind() == types.MethodVal {
			recv := l.expr(sel.X)
			if types.IsInterface(s.Recv()) {
				return b.Dynamic(recv, sel.Sel.Name, l.args(x.Args)...)
			}
			return b.Invoke(recv, sel.Sel.Name, ret, l.args(x.Args)...)
		}
		if id, ok := sel.X.(*ast.Ident); ok {
			if _, ok := l.info.ObjectOf(id).(*types.PkgName); ok {
				return b.Invoke(nil, id.Name+"."+sel.Sel.Name, ret, l.args(x.Args)...)
			}
		}
	}
	if id, ok := astutil.Unparen(x.Fun).(*ast.Ident); ok {
		if l.info == nil {
			return b.Invoke(nil, id.Name, ret, l.args(x.Args)...)
		}
		if _, ok := l.info.ObjectOf(id).(*types.Func); ok {
			return b.Invoke(nil, id.Name, ret, l.args(x.Args)...)
		}
	}
	// Calls through function values.
	return b.Dynamic(nil, "call", append([]*Operation{l.expr(x.Fun)}, l.args(x.Args)...)...)
}

var builtins = map[string]bool{
	"append": true, "cap": true, "clear": true, "close": true, "copy": true,
	"delete": true, "len": true, "make": true, "max": true, "min": true,
	"new": true, "panic": true, "print": true, "println": true, "recover": true,
}

// constant lowers expressions the type checker folded to a constant.
func (l *lowerer) constant(e ast.Expr) *Operation {
	b := l.b.At(e.Pos())
	var v constant.Value
	if l.info != nil {
		if tv, ok := l.info.Types[e]; ok && tv.Value != nil {
			v = tv.Value
		}
	} else if lit, ok := e.(*ast.BasicLit); ok {
		v = constant.MakeFromLiteral(lit.Value, lit.Kind, 0)
	} else if id, ok := e.(*ast.Ident); ok && (id.Name == "true" || id.Name == "false") {
		v = constant.MakeBool(id.Name == "true")
	}
	if v == nil {
		return nil
	}
	switch v.Kind() {
	case constant.Bool:
		return b.Bool(constant.BoolVal(v))
	case constant.String:
		return b.Literal(StringConst(constant.StringVal(v)), GoStringType)
	case constant.Int:
		if t := l.typeOf(e); t.IsFloat() {
			f, _ := constant.Float64Val(v)
			return b.Float(f)
		}
		n, ok := new(big.Int).SetString(v.ExactString(), 10)
		if !ok {
			return nil
		}
		return b.Literal(Constant{Kind: ConstInt, Int: n}, IntType)
	case constant.Float:
		f, _ := constant.Float64Val(v)
		return b.Float(f)
	}
	return nil
}

func (l *lowerer) underlying(e ast.Expr) types.Type {
	if l.info == nil {
		return nil
	}
	t := l.info.TypeOf(e)
	if t == nil {
		return nil
	}
	return t.Underlying()
}

func (l *lowerer) typeOf(e ast.Expr) *Type {
	if l.info == nil {
		return UnknownType
	}
	return l.convertType(l.info.TypeOf(e))
}

func (l *lowerer) typeOfExpr(e ast.Expr) *Type {
	if l.info == nil {
		return UnknownType
	}
	if tv, ok := l.info.Types[e]; ok && tv.Type != nil {
		return l.convertType(tv.Type)
	}
	return UnknownType
}

func (l *lowerer) convertType(t types.Type) *Type {
	if t == nil {
		return UnknownType
	}
	key := t.String()
	if c, ok := l.typeCache[key]; ok {
		return c
	}
	var out *Type
	switch u := t.Underlying().(type) {
	case *types.Basic:
		switch {
		case u.Info()&types.IsInteger != 0:
			out = IntType
		case u.Info()&types.IsFloat != 0:
			out = FloatType
		case u.Info()&types.IsBoolean != 0:
			out = BoolType
		case u.Info()&types.IsString != 0:
			out = GoStringType
		case u.Kind() == types.UntypedNil:
			out = ObjectType
		default:
			out = &Type{Name: key, Kind: TypeValue}
		}
		if _, named := t.(*types.Named); named {
			out = &Type{Name: key, Kind: out.Kind}
		}
	case *types.Slice, *types.Map:
		out = &Type{Name: key, Kind: TypeCollection, Base: CollectionType}
	case *types.Pointer, *types.Chan, *types.Signature:
		out = &Type{Name: key, Kind: TypeReference, Base: ObjectType}
	case *types.Interface:
		out = &Type{Name: key, Kind: TypeReference, Base: ObjectType}
		if key == "error" {
			out.Base = ExceptionType
		}
	default:
		out = &Type{Name: key, Kind: TypeValue}
	}
	l.typeCache[key] = out
	return out
}
