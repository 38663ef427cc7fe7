package cfg

import (
	"fmt"
	"math/big"
	"strconv"
)

// TypeKind classifies a type for the purposes of constraint tracking.
type TypeKind int

const (
	TypeUnknown TypeKind = iota
	TypeInteger
	TypeFloat
	TypeBool
	TypeString
	TypeValue      // any other non-nullable value type
	TypeReference  // nullable object
	TypeCollection // nullable collection
)

// Type is a static type. Only the name, kind and base chain matter.
type Type struct {
	Name string
	Kind TypeKind
	Base *Type
}

var (
	UnknownType    = &Type{Name: "?", Kind: TypeUnknown}
	IntType        = &Type{Name: "int", Kind: TypeInteger}
	FloatType      = &Type{Name: "float", Kind: TypeFloat}
	BoolType       = &Type{Name: "bool", Kind: TypeBool}
	StringType     = &Type{Name: "string", Kind: TypeString}
	ObjectType     = &Type{Name: "object", Kind: TypeReference}
	CollectionType = &Type{Name: "collection", Kind: TypeCollection, Base: ObjectType}

	ExceptionType                 = &Type{Name: "Exception", Kind: TypeReference, Base: ObjectType}
	NullReferenceExceptionType    = &Type{Name: "NullReferenceException", Kind: TypeReference, Base: ExceptionType}
	ArithmeticExceptionType       = &Type{Name: "ArithmeticException", Kind: TypeReference, Base: ExceptionType}
	DivideByZeroExceptionType     = &Type{Name: "DivideByZeroException", Kind: TypeReference, Base: ArithmeticExceptionType}
	IndexOutOfRangeExceptionType  = &Type{Name: "IndexOutOfRangeException", Kind: TypeReference, Base: ExceptionType}
	InvalidCastExceptionType      = &Type{Name: "InvalidCastException", Kind: TypeReference, Base: ExceptionType}
	ArgumentExceptionType         = &Type{Name: "ArgumentException", Kind: TypeReference, Base: ExceptionType}
	ArgumentNullExceptionType     = &Type{Name: "ArgumentNullException", Kind: TypeReference, Base: ArgumentExceptionType}
	InvalidOperationExceptionType = &Type{Name: "InvalidOperationException", Kind: TypeReference, Base: ExceptionType}
)

// NewClass declares a reference type deriving from base.
func NewClass(name string, base *Type) *Type {
	if base == nil {
		base = ObjectType
	}
	return &Type{Name: name, Kind: TypeReference, Base: base}
}

func (t *Type) IsInteger() bool { return t != nil && t.Kind == TypeInteger }
func (t *Type) IsFloat() bool   { return t != nil && t.Kind == TypeFloat }
func (t *Type) IsBool() bool    { return t != nil && t.Kind == TypeBool }

// IsNullable reports whether values of the type may be null.
func (t *Type) IsNullable() bool {
	return t != nil && (t.Kind == TypeReference || t.Kind == TypeCollection || t.Kind == TypeString)
}

// IsValueType reports whether values of the type can never be null.
func (t *Type) IsValueType() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case TypeInteger, TypeFloat, TypeBool, TypeValue:
		return true
	}
	return false
}

// DerivesFrom reports whether t is base or inherits from it.
func (t *Type) DerivesFrom(base *Type) bool {
	if base == nil {
		return false
	}
	for cur := t; cur != nil; cur = cur.Base {
		if cur == base || cur.Name == base.Name {
			return true
		}
	}
	return false
}

func (t *Type) String() string {
	if t == nil {
		return "?"
	}
	return t.Name
}

// SymbolKind distinguishes the storage a symbol names.
type SymbolKind int

const (
	SymbolLocal SymbolKind = iota
	SymbolParameter
	SymbolField
)

// Symbol is a trackable variable identity. Field symbols are interned
// per container so that instance-specific state can be invalidated.
type Symbol struct {
	ID        int
	Name      string
	Kind      SymbolKind
	Type      *Type
	Container *Symbol
}

func (s *Symbol) String() string {
	if s == nil {
		return "<nil>"
	}
	if s.Container != nil {
		return s.Container.String() + "." + s.Name
	}
	return s.Name
}

type fieldKey struct {
	container int
	name      string
}

// SymbolTable owns symbol identities for one graph.
type SymbolTable struct {
	nextID int
	all    []*Symbol
	fields map[fieldKey]*Symbol
	byName map[string]*Symbol
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		nextID: 1,
		fields: make(map[fieldKey]*Symbol),
		byName: make(map[string]*Symbol),
	}
}

// New declares a fresh local or parameter.
func (t *SymbolTable) New(name string, kind SymbolKind, typ *Type) *Symbol {
	s := &Symbol{ID: t.nextID, Name: name, Kind: kind, Type: typ}
	t.nextID++
	t.all = append(t.all, s)
	if _, ok := t.byName[name]; !ok {
		t.byName[name] = s
	}
	return s
}

// Field returns the interned symbol for container.name. A nil container
// denotes a static field or one reached through an untracked receiver.
func (t *SymbolTable) Field(container *Symbol, name string, typ *Type) *Symbol {
	key := fieldKey{name: name}
	if container != nil {
		key.container = container.ID
	}
	if s, ok := t.fields[key]; ok {
		return s
	}
	s := &Symbol{ID: t.nextID, Name: name, Kind: SymbolField, Type: typ, Container: container}
	t.nextID++
	t.all = append(t.all, s)
	t.fields[key] = s
	return s
}

// Lookup returns the first symbol declared with name.
func (t *SymbolTable) Lookup(name string) *Symbol {
	return t.byName[name]
}

// All returns every symbol in declaration order.
func (t *SymbolTable) All() []*Symbol {
	return t.all
}

// ConstKind is the kind of a literal.
type ConstKind int

const (
	ConstNone ConstKind = iota
	ConstNull
	ConstInt
	ConstFloat
	ConstBool
	ConstString
)

// Constant is a literal value.
type Constant struct {
	Kind  ConstKind
	Int   *big.Int
	Float float64
	Bool  bool
	Str   string
}

func IntConst(n int64) Constant     { return Constant{Kind: ConstInt, Int: big.NewInt(n)} }
func BoolConst(b bool) Constant     { return Constant{Kind: ConstBool, Bool: b} }
func StringConst(s string) Constant { return Constant{Kind: ConstString, Str: s} }
func FloatConst(f float64) Constant { return Constant{Kind: ConstFloat, Float: f} }
func NullConst() Constant           { return Constant{Kind: ConstNull} }
func (c Constant) IsNull() bool     { return c.Kind == ConstNull }
func (c Constant) IsSome() bool     { return c.Kind != ConstNone }

func (c Constant) String() string {
	switch c.Kind {
	case ConstNull:
		return "null"
	case ConstInt:
		return c.Int.String()
	case ConstFloat:
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	case ConstBool:
		return strconv.FormatBool(c.Bool)
	case ConstString:
		return strconv.Quote(c.Str)
	default:
		return fmt.Sprintf("const(%d)", c.Kind)
	}
}
