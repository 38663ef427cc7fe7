package cfg

import (
	"fmt"
	"go/token"
	"strings"
)

// OpKind tags an operation. The vocabulary is closed; the rule catalogue
// holds exactly one transfer function per kind.
type OpKind int

const (
	OpLiteral OpKind = iota
	OpLocalReference
	OpParameterReference
	OpFieldReference
	OpInstanceReference
	OpFlowCapture
	OpFlowCaptureReference
	OpSimpleAssignment
	OpCompoundAssignment
	OpIncrement
	OpDecrement
	OpBinary
	OpUnary
	OpConversion
	OpInvocation
	OpDynamicInvocation
	OpObjectCreation
	OpCollectionCreation
	OpElementReference
	OpIsNull
	OpIsType
	OpIsPattern
	OpThrow
	OpRethrow
	OpCaughtException
	OpDefaultValue
	OpOpaque

	NumOpKinds int = iota
)

var opKindNames = [...]string{
	OpLiteral:              "Literal",
	OpLocalReference:       "LocalReference",
	OpParameterReference:   "ParameterReference",
	OpFieldReference:       "FieldReference",
	OpInstanceReference:    "InstanceReference",
	OpFlowCapture:          "FlowCapture",
	OpFlowCaptureReference: "FlowCaptureReference",
	OpSimpleAssignment:     "SimpleAssignment",
	OpCompoundAssignment:   "CompoundAssignment",
	OpIncrement:            "Increment",
	OpDecrement:            "Decrement",
	OpBinary:               "Binary",
	OpUnary:                "Unary",
	OpConversion:           "Conversion",
	OpInvocation:           "Invocation",
	OpDynamicInvocation:    "DynamicInvocation",
	OpObjectCreation:       "ObjectCreation",
	OpCollectionCreation:   "CollectionCreation",
	OpElementReference:     "ElementReference",
	OpIsNull:               "IsNull",
	OpIsType:               "IsType",
	OpIsPattern:            "IsPattern",
	OpThrow:                "Throw",
	OpRethrow:              "Rethrow",
	OpCaughtException:      "CaughtException",
	OpDefaultValue:         "DefaultValue",
	OpOpaque:               "Opaque",
}

func (k OpKind) String() string {
	if int(k) >= 0 && int(k) < len(opKindNames) {
		return opKindNames[k]
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// Operator is the operator of a binary, unary or compound operation.
type Operator int

const (
	NoOperator Operator = iota
	Add
	Subtract
	Multiply
	Divide
	Remainder
	And
	Or
	ExclusiveOr
	LeftShift
	RightShift
	Equals
	NotEquals
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
	ConditionalAnd
	ConditionalOr
	Not
	Negate
	Plus
	BitwiseNot
)

var operatorNames = [...]string{
	NoOperator:         "",
	Add:                "+",
	Subtract:           "-",
	Multiply:           "*",
	Divide:             "/",
	Remainder:          "%",
	And:                "&",
	Or:                 "|",
	ExclusiveOr:        "^",
	LeftShift:          "<<",
	RightShift:         ">>",
	Equals:             "==",
	NotEquals:          "!=",
	LessThan:           "<",
	LessThanOrEqual:    "<=",
	GreaterThan:        ">",
	GreaterThanOrEqual: ">=",
	ConditionalAnd:     "&&",
	ConditionalOr:      "||",
	Not:                "!",
	Negate:             "-",
	Plus:               "+",
	BitwiseNot:         "^",
}

func (o Operator) String() string {
	if int(o) >= 0 && int(o) < len(operatorNames) {
		return operatorNames[o]
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// IsRelational reports whether o compares two values.
func (o Operator) IsRelational() bool {
	return o >= Equals && o <= GreaterThanOrEqual
}

// Mirror returns the operator with swapped operands: a < b == b > a.
func (o Operator) Mirror() Operator {
	switch o {
	case LessThan:
		return GreaterThan
	case LessThanOrEqual:
		return GreaterThanOrEqual
	case GreaterThan:
		return LessThan
	case GreaterThanOrEqual:
		return LessThanOrEqual
	}
	return o
}

// Negated returns the operator whose result is the logical negation.
func (o Operator) Negated() Operator {
	switch o {
	case Equals:
		return NotEquals
	case NotEquals:
		return Equals
	case LessThan:
		return GreaterThanOrEqual
	case LessThanOrEqual:
		return GreaterThan
	case GreaterThan:
		return LessThanOrEqual
	case GreaterThanOrEqual:
		return LessThan
	}
	return o
}

// Operation is a node of the IR operation tree.
//
// Operand layout by kind:
//
//	FieldReference        Instance (optional), Symbol
//	FlowCapture           Operands[0] value, CaptureID
//	FlowCaptureReference  CaptureID
//	SimpleAssignment      Operands[0] target, Operands[1] value
//	CompoundAssignment    Operands[0] target, Operands[1] value, Operator
//	Increment, Decrement  Operands[0] target
//	Binary                Operands[0], Operands[1], Operator
//	Unary                 Operands[0], Operator
//	Conversion            Operands[0], Type, Exception, Checked
//	Invocation            Instance (optional), Method, Operands arguments
//	ObjectCreation        Type, Operands arguments
//	CollectionCreation    Type, Operands elements
//	ElementReference      Operands[0] collection, Operands[1] index
//	IsNull                Operands[0]
//	IsType                Operands[0], Pattern (a type pattern)
//	IsPattern             Operands[0], Pattern
//	Throw                 Operands[0] (optional)
type Operation struct {
	ID        int
	Kind      OpKind
	Operator  Operator
	Operands  []*Operation
	Instance  *Operation
	Symbol    *Symbol
	Type      *Type
	Constant  Constant
	Method    string
	CaptureID int
	Pattern   *Pattern
	Exception *Type
	Checked   bool
	Pos       token.Pos

	Parent *Operation
}

// Operand returns the i-th operand or nil.
func (op *Operation) Operand(i int) *Operation {
	if op == nil || i >= len(op.Operands) {
		return nil
	}
	return op.Operands[i]
}

// Children returns the direct child operations in evaluation order.
func (op *Operation) Children() []*Operation {
	if op == nil {
		return nil
	}
	var out []*Operation
	if op.Instance != nil {
		out = append(out, op.Instance)
	}
	for _, o := range op.Operands {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

// Walk visits op's children in evaluation order, then op itself.
func (op *Operation) Walk(fn func(*Operation)) {
	if op == nil {
		return
	}
	for _, c := range op.Children() {
		c.Walk(fn)
	}
	fn(op)
}

// IsReference reports whether op denotes a storage location.
func (op *Operation) IsReference() bool {
	switch op.Kind {
	case OpLocalReference, OpParameterReference, OpFieldReference:
		return true
	}
	return false
}

func (op *Operation) String() string {
	if op == nil {
		return "<nil>"
	}
	var sb strings.Builder
	op.format(&sb)
	return sb.String()
}

func (op *Operation) format(sb *strings.Builder) {
	switch op.Kind {
	case OpLiteral:
		sb.WriteString(op.Constant.String())
	case OpLocalReference, OpParameterReference:
		sb.WriteString(op.Symbol.Name)
	case OpFieldReference:
		if op.Instance != nil {
			op.Instance.format(sb)
			sb.WriteByte('.')
		}
		sb.WriteString(op.Symbol.Name)
	case OpInstanceReference:
		sb.WriteString("this")
	case OpFlowCapture:
		fmt.Fprintf(sb, "#%d = ", op.CaptureID)
		op.Operand(0).format(sb)
	case OpFlowCaptureReference:
		fmt.Fprintf(sb, "#%d", op.CaptureID)
	case OpSimpleAssignment:
		op.Operand(0).format(sb)
		sb.WriteString(" = ")
		op.Operand(1).format(sb)
	case OpCompoundAssignment:
		op.Operand(0).format(sb)
		fmt.Fprintf(sb, " %s= ", op.Operator)
		op.Operand(1).format(sb)
	case OpIncrement:
		op.Operand(0).format(sb)
		sb.WriteString("++")
	case OpDecrement:
		op.Operand(0).format(sb)
		sb.WriteString("--")
	case OpBinary:
		sb.WriteByte('(')
		op.Operand(0).format(sb)
		fmt.Fprintf(sb, " %s ", op.Operator)
		op.Operand(1).format(sb)
		sb.WriteByte(')')
	case OpUnary:
		sb.WriteString(op.Operator.String())
		op.Operand(0).format(sb)
	case OpConversion:
		fmt.Fprintf(sb, "%s(", op.Type)
		op.Operand(0).format(sb)
		sb.WriteByte(')')
	case OpInvocation, OpDynamicInvocation:
		if op.Instance != nil {
			op.Instance.format(sb)
			sb.WriteByte('.')
		}
		sb.WriteString(op.Method)
		formatArgs(sb, op.Operands)
	case OpObjectCreation:
		fmt.Fprintf(sb, "new %s", op.Type)
		formatArgs(sb, op.Operands)
	case OpCollectionCreation:
		fmt.Fprintf(sb, "%s{", op.Type)
		for i, o := range op.Operands {
			if i > 0 {
				sb.WriteString(", ")
			}
			o.format(sb)
		}
		sb.WriteByte('}')
	case OpElementReference:
		op.Operand(0).format(sb)
		sb.WriteByte('[')
		op.Operand(1).format(sb)
		sb.WriteByte(']')
	case OpIsNull:
		op.Operand(0).format(sb)
		sb.WriteString(" is null")
	case OpIsType:
		op.Operand(0).format(sb)
		fmt.Fprintf(sb, " is %s", op.Type)
	case OpIsPattern:
		op.Operand(0).format(sb)
		fmt.Fprintf(sb, " is %s", op.Pattern)
	case OpThrow:
		sb.WriteString("throw")
		if v := op.Operand(0); v != nil {
			sb.WriteByte(' ')
			v.format(sb)
		}
	case OpRethrow:
		sb.WriteString("rethrow")
	case OpCaughtException:
		sb.WriteString("caught")
	case OpDefaultValue:
		fmt.Fprintf(sb, "default(%s)", op.Type)
	default:
		fmt.Fprintf(sb, "%s", op.Kind)
		if len(op.Operands) > 0 {
			formatArgs(sb, op.Operands)
		}
	}
}

func formatArgs(sb *strings.Builder, args []*Operation) {
	sb.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		a.format(sb)
	}
	sb.WriteByte(')')
}

// PatternKind tags a pattern.
type PatternKind int

const (
	PatternDiscard PatternKind = iota
	PatternType
	PatternDeclaration
	PatternConstant
	PatternRelational
	PatternNot
	PatternAnd
	PatternOr
	PatternRecursive
)

// Pattern is the right-hand side of an is-pattern operation.
type Pattern struct {
	Kind        PatternKind
	Type        *Type
	Designation *Symbol
	Constant    Constant
	Operator    Operator
	Left, Right *Pattern
	Properties  []PropertyPattern
}

// PropertyPattern matches one member of a recursive pattern.
type PropertyPattern struct {
	Name    string
	Type    *Type
	Pattern *Pattern
}

func (p *Pattern) String() string {
	if p == nil {
		return "_"
	}
	switch p.Kind {
	case PatternDiscard:
		return "_"
	case PatternType:
		return p.Type.String()
	case PatternDeclaration:
		if p.Type == nil {
			return "var " + p.Designation.Name
		}
		return p.Type.String() + " " + p.Designation.Name
	case PatternConstant:
		return p.Constant.String()
	case PatternRelational:
		return p.Operator.String() + " " + p.Constant.String()
	case PatternNot:
		return "not " + p.Left.String()
	case PatternAnd:
		return "(" + p.Left.String() + " and " + p.Right.String() + ")"
	case PatternOr:
		return "(" + p.Left.String() + " or " + p.Right.String() + ")"
	case PatternRecursive:
		var parts []string
		for _, prop := range p.Properties {
			parts = append(parts, prop.Name+": "+prop.Pattern.String())
		}
		s := "{ " + strings.Join(parts, ", ") + " }"
		if p.Type != nil {
			s = p.Type.String() + " " + s
		}
		if p.Designation != nil {
			s += " " + p.Designation.Name
		}
		return s
	}
	return "?"
}
