package lattice

import (
	"hash/fnv"
	"sort"
	"strings"
)

// Value is an immutable set of constraints, at most one per lattice.
// The nil *Value and a Value without constraints both mean "unknown".
type Value struct {
	constraints []Constraint // sorted by lattice
}

// Unknown is the value with no constraints.
var Unknown = &Value{}

// NewValue builds a value from constraints. Later constraints replace
// earlier ones from the same lattice.
func NewValue(cs ...Constraint) *Value {
	v := Unknown
	for _, c := range cs {
		v = v.With(c)
	}
	return v
}

func (v *Value) find(l Lattice) int {
	if v == nil {
		return 0
	}
	return sort.Search(len(v.constraints), func(i int) bool {
		return v.constraints[i].Lattice() >= l
	})
}

// With returns a copy of v whose slot for c's lattice holds c.
func (v *Value) With(c Constraint) *Value {
	if c == nil {
		return v
	}
	var cs []Constraint
	if v != nil {
		cs = v.constraints
	}
	i := v.find(c.Lattice())
	out := make([]Constraint, 0, len(cs)+1)
	out = append(out, cs[:i]...)
	out = append(out, c)
	if i < len(cs) && cs[i].Lattice() == c.Lattice() {
		out = append(out, cs[i+1:]...)
	} else {
		out = append(out, cs[i:]...)
	}
	return &Value{constraints: out}
}

// Without returns a copy of v with the slot for l cleared.
func (v *Value) Without(l Lattice) *Value {
	if v.Constraint(l) == nil {
		return v
	}
	i := v.find(l)
	out := make([]Constraint, 0, len(v.constraints)-1)
	out = append(out, v.constraints[:i]...)
	out = append(out, v.constraints[i+1:]...)
	if len(out) == 0 {
		return Unknown
	}
	return &Value{constraints: out}
}

// Learn attaches c using Meet with the constraint already present. It
// reports false when c contradicts what is known.
func (v *Value) Learn(c Constraint) (*Value, bool) {
	if c == nil {
		return v, true
	}
	met, ok := Meet(v.Constraint(c.Lattice()), c)
	if !ok {
		return nil, false
	}
	return v.With(met), true
}

// Constraint returns the constraint stored for l, or nil.
func (v *Value) Constraint(l Lattice) Constraint {
	if v == nil {
		return nil
	}
	i := v.find(l)
	if i < len(v.constraints) && v.constraints[i].Lattice() == l {
		return v.constraints[i]
	}
	return nil
}

// Has reports whether v carries exactly c.
func (v *Value) Has(c Constraint) bool {
	got := v.Constraint(c.Lattice())
	return got != nil && got.Equal(c)
}

func (v *Value) Object() (ObjectConstraint, bool) {
	c, ok := v.Constraint(ObjectLattice).(ObjectConstraint)
	return c, ok
}

func (v *Value) Bool() (BoolConstraint, bool) {
	c, ok := v.Constraint(BoolLattice).(BoolConstraint)
	return c, ok
}

func (v *Value) Number() (NumberConstraint, bool) {
	c, ok := v.Constraint(NumberLattice).(NumberConstraint)
	return c, ok
}

func (v *Value) Collection() (CollectionConstraint, bool) {
	c, ok := v.Constraint(CollectionLattice).(CollectionConstraint)
	return c, ok
}

// Constraints returns the constraints in lattice order.
func (v *Value) Constraints() []Constraint {
	if v == nil {
		return nil
	}
	return append([]Constraint(nil), v.constraints...)
}

// IsUnknown reports whether v carries no constraint.
func (v *Value) IsUnknown() bool {
	return v == nil || len(v.constraints) == 0
}

// Equal compares constraint sets structurally.
func (v *Value) Equal(o *Value) bool {
	if v.IsUnknown() || o.IsUnknown() {
		return v.IsUnknown() && o.IsUnknown()
	}
	if len(v.constraints) != len(o.constraints) {
		return false
	}
	for i, c := range v.constraints {
		if !c.Equal(o.constraints[i]) {
			return false
		}
	}
	return true
}

// Hash is consistent with Equal.
func (v *Value) Hash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(v.String()))
	return h.Sum64()
}

func (v *Value) String() string {
	if v.IsUnknown() {
		return "{}"
	}
	parts := make([]string, len(v.constraints))
	for i, c := range v.constraints {
		parts[i] = c.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
