package lattice

// Lattice names an independent family of constraints. A value carries at
// most one constraint per lattice.
type Lattice string

const (
	ObjectLattice     Lattice = "object"
	BoolLattice       Lattice = "bool"
	NumberLattice     Lattice = "number"
	CollectionLattice Lattice = "collection"
)

// Constraint is a fact about an abstract value. The set of implementations
// is closed: ObjectConstraint, BoolConstraint, NumberConstraint,
// CollectionConstraint and CustomConstraint.
type Constraint interface {
	isConstraint()
	Lattice() Lattice
	// ApplyOpposite returns the constraint implied by negating a condition
	// that produced this constraint, or nil when there is no single one.
	ApplyOpposite(isLoopCondition bool) Constraint
	Equal(other Constraint) bool
	String() string
}

// ObjectConstraint models nullability.
type ObjectConstraint int

const (
	Null ObjectConstraint = iota + 1
	NotNull
)

func (ObjectConstraint) isConstraint()    {}
func (ObjectConstraint) Lattice() Lattice { return ObjectLattice }

// ApplyOpposite maps Null to NotNull. NotNull has no single opposite.
func (c ObjectConstraint) ApplyOpposite(bool) Constraint {
	if c == Null {
		return NotNull
	}
	return nil
}

func (c ObjectConstraint) Equal(o Constraint) bool {
	other, ok := o.(ObjectConstraint)
	return ok && other == c
}

func (c ObjectConstraint) String() string {
	switch c {
	case Null:
		return "Null"
	case NotNull:
		return "NotNull"
	default:
		return "Object?"
	}
}

// BoolConstraint models boolean values.
type BoolConstraint int

const (
	True BoolConstraint = iota + 1
	False
)

// BoolOf converts a Go bool.
func BoolOf(b bool) BoolConstraint {
	if b {
		return True
	}
	return False
}

func (BoolConstraint) isConstraint()    {}
func (BoolConstraint) Lattice() Lattice { return BoolLattice }

func (c BoolConstraint) ApplyOpposite(bool) Constraint {
	if c == True {
		return False
	}
	return True
}

func (c BoolConstraint) Equal(o Constraint) bool {
	other, ok := o.(BoolConstraint)
	return ok && other == c
}

func (c BoolConstraint) String() string {
	switch c {
	case True:
		return "True"
	case False:
		return "False"
	default:
		return "Bool?"
	}
}

// CollectionConstraint models coarse collection emptiness.
type CollectionConstraint int

const (
	Empty CollectionConstraint = iota + 1
	NotEmpty
)

func (CollectionConstraint) isConstraint()    {}
func (CollectionConstraint) Lattice() Lattice { return CollectionLattice }

func (c CollectionConstraint) ApplyOpposite(bool) Constraint {
	if c == Empty {
		return NotEmpty
	}
	return Empty
}

func (c CollectionConstraint) Equal(o Constraint) bool {
	other, ok := o.(CollectionConstraint)
	return ok && other == c
}

func (c CollectionConstraint) String() string {
	switch c {
	case Empty:
		return "CollectionEmpty"
	case NotEmpty:
		return "CollectionNotEmpty"
	default:
		return "Collection?"
	}
}

// CustomConstraint is the extension point for constraints outside the
// built-in lattices. Two custom constraints conflict when they share a
// Family but differ in Name.
type CustomConstraint struct {
	Family   string
	Name     string
	Opposite string
}

func (CustomConstraint) isConstraint() {}

func (c CustomConstraint) Lattice() Lattice { return Lattice("custom:" + c.Family) }

func (c CustomConstraint) ApplyOpposite(bool) Constraint {
	if c.Opposite == "" {
		return nil
	}
	return CustomConstraint{Family: c.Family, Name: c.Opposite, Opposite: c.Name}
}

func (c CustomConstraint) Equal(o Constraint) bool {
	other, ok := o.(CustomConstraint)
	return ok && other.Family == c.Family && other.Name == c.Name
}

func (c CustomConstraint) String() string { return c.Name }

// Meet combines two facts from the same lattice. It reports false when
// they contradict each other, which marks the path as infeasible.
func Meet(a, b Constraint) (Constraint, bool) {
	if a == nil {
		return b, true
	}
	if b == nil {
		return a, true
	}
	if a.Lattice() != b.Lattice() {
		panic("lattice: meet across lattices " + string(a.Lattice()) + " and " + string(b.Lattice()))
	}
	if an, ok := a.(NumberConstraint); ok {
		r, ok := an.Intersect(b.(NumberConstraint))
		if !ok {
			return nil, false
		}
		return r, true
	}
	if a.Equal(b) {
		return a, true
	}
	return nil, false
}
