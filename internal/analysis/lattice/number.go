package lattice

import (
	"fmt"
	"math/big"
)

// NumberConstraint is an inclusive integer range. A nil end is unbounded.
// Floating point values never carry a NumberConstraint.
type NumberConstraint struct {
	min, max *big.Int
}

// NewNumber returns the range [min, max]. It reports false when the
// range is empty.
func NewNumber(min, max *big.Int) (NumberConstraint, bool) {
	if min != nil && max != nil && min.Cmp(max) > 0 {
		return NumberConstraint{}, false
	}
	return NumberConstraint{min: min, max: max}, true
}

// NumberOf returns the single value range [n, n].
func NumberOf(n int64) NumberConstraint {
	v := big.NewInt(n)
	return NumberConstraint{min: v, max: v}
}

// NumberBetween is a convenience for bounded ranges.
func NumberBetween(min, max int64) NumberConstraint {
	n, ok := NewNumber(big.NewInt(min), big.NewInt(max))
	if !ok {
		panic(fmt.Sprintf("empty range [%d, %d]", min, max))
	}
	return n
}

// NumberFrom returns [min, ∞).
func NumberFrom(min int64) NumberConstraint {
	return NumberConstraint{min: big.NewInt(min)}
}

// NumberUpTo returns (-∞, max].
func NumberUpTo(max int64) NumberConstraint {
	return NumberConstraint{max: big.NewInt(max)}
}

// AnyNumber is the unbounded range.
var AnyNumber = NumberConstraint{}

func numberFromBounds(lo, hi bound) (NumberConstraint, bool) {
	if lo.cmp(hi) > 0 {
		return NumberConstraint{}, false
	}
	return NumberConstraint{min: lo.toInt(), max: hi.toInt()}, true
}

func (NumberConstraint) isConstraint()    {}
func (NumberConstraint) Lattice() Lattice { return NumberLattice }

func (n NumberConstraint) Min() *big.Int { return n.min }
func (n NumberConstraint) Max() *big.Int { return n.max }

func (n NumberConstraint) lo() bound { return lowerBound(n.min) }
func (n NumberConstraint) hi() bound { return upperBound(n.max) }

// IsSingle reports whether the range holds exactly one value.
func (n NumberConstraint) IsSingle() bool {
	return n.min != nil && n.max != nil && n.min.Cmp(n.max) == 0
}

// IsUnbounded reports whether neither end is bounded.
func (n NumberConstraint) IsUnbounded() bool {
	return n.min == nil && n.max == nil
}

// Contains reports whether v lies inside the range.
func (n NumberConstraint) Contains(v *big.Int) bool {
	x := finite(v)
	return n.lo().cmp(x) <= 0 && x.cmp(n.hi()) <= 0
}

// ContainsZero is a shortcut used by the division rules.
func (n NumberConstraint) ContainsZero() bool {
	return n.Contains(new(big.Int))
}

func (n NumberConstraint) NonNegative() bool { return n.min != nil && n.min.Sign() >= 0 }
func (n NumberConstraint) Negative() bool    { return n.max != nil && n.max.Sign() < 0 }

func (n NumberConstraint) Equal(o Constraint) bool {
	other, ok := o.(NumberConstraint)
	if !ok {
		return false
	}
	return bigEqual(n.min, other.min) && bigEqual(n.max, other.max)
}

func bigEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Cmp(b) == 0
}

// ApplyOpposite returns the complement of a half-open range. A bounded
// range has no single-range complement, and loop conditions never learn
// an opposite range so that loops keep making progress.
func (n NumberConstraint) ApplyOpposite(isLoopCondition bool) Constraint {
	if isLoopCondition {
		return nil
	}
	switch {
	case n.min != nil && n.max == nil:
		return NumberConstraint{max: new(big.Int).Sub(n.min, one.n)}
	case n.min == nil && n.max != nil:
		return NumberConstraint{min: new(big.Int).Add(n.max, one.n)}
	}
	return nil
}

func (n NumberConstraint) String() string {
	if n.IsSingle() {
		return fmt.Sprintf("Number %s", n.min)
	}
	return fmt.Sprintf("Number [%s, %s]", n.lo(), n.hi())
}

// Intersect returns the overlap of two ranges. It reports false when
// they are disjoint.
func (n NumberConstraint) Intersect(o NumberConstraint) (NumberConstraint, bool) {
	return numberFromBounds(maxBound(n.lo(), o.lo()), minBound(n.hi(), o.hi()))
}

// Union returns the smallest range covering both.
func (n NumberConstraint) Union(o NumberConstraint) NumberConstraint {
	r, _ := numberFromBounds(minBound(n.lo(), o.lo()), maxBound(n.hi(), o.hi()))
	return r
}

// Widen keeps the bounds of next that did not grow relative to prev and
// drops the ones that did.
func (n NumberConstraint) Widen(prev NumberConstraint) NumberConstraint {
	lo, hi := n.lo(), n.hi()
	if lo.cmp(prev.lo()) < 0 {
		lo = negInf
	}
	if hi.cmp(prev.hi()) > 0 {
		hi = posInf
	}
	r, _ := numberFromBounds(lo, hi)
	return r
}

func (n NumberConstraint) Add(o NumberConstraint) NumberConstraint {
	r, _ := numberFromBounds(n.lo().add(o.lo()), n.hi().add(o.hi()))
	return r
}

func (n NumberConstraint) Sub(o NumberConstraint) NumberConstraint {
	r, _ := numberFromBounds(n.lo().sub(o.hi()), n.hi().sub(o.lo()))
	return r
}

func (n NumberConstraint) Mul(o NumberConstraint) NumberConstraint {
	a, b, c, d := n.lo().mul(o.lo()), n.lo().mul(o.hi()), n.hi().mul(o.lo()), n.hi().mul(o.hi())
	r, _ := numberFromBounds(minBound(a, b, c, d), maxBound(a, b, c, d))
	return r
}

func (n NumberConstraint) Negate() NumberConstraint {
	r, _ := numberFromBounds(n.hi().negate(), n.lo().negate())
	return r
}

// Not is the bitwise complement, ^x == -x-1.
func (n NumberConstraint) Not() NumberConstraint {
	r, _ := numberFromBounds(n.hi().negate().sub(one), n.lo().negate().sub(one))
	return r
}

// Div is truncated integer division. It reports false when the divisor
// is exactly zero, in which case nothing is known about the result.
func (n NumberConstraint) Div(o NumberConstraint) (NumberConstraint, bool) {
	var parts []NumberConstraint
	if neg, ok := o.Intersect(NumberUpTo(-1)); ok {
		parts = append(parts, n.divBy(neg))
	}
	if pos, ok := o.Intersect(NumberFrom(1)); ok {
		parts = append(parts, n.divBy(pos))
	}
	if len(parts) == 0 {
		return NumberConstraint{}, false
	}
	r := parts[0]
	for _, p := range parts[1:] {
		r = r.Union(p)
	}
	return r, true
}

// divBy divides by a range that does not contain zero.
func (n NumberConstraint) divBy(o NumberConstraint) NumberConstraint {
	a, b, c, d := n.lo().quo(o.lo()), n.lo().quo(o.hi()), n.hi().quo(o.lo()), n.hi().quo(o.hi())
	lo, hi := minBound(a, b, c, d), maxBound(a, b, c, d)
	// Dividing by an unbounded divisor can approach zero from either side.
	if o.lo().infinite() || o.hi().infinite() {
		lo, hi = minBound(lo, zero), maxBound(hi, zero)
	}
	r, _ := numberFromBounds(lo, hi)
	return r
}

// Rem is the truncated remainder; its sign follows the dividend and its
// magnitude is bounded by both operands.
func (n NumberConstraint) Rem(o NumberConstraint) (NumberConstraint, bool) {
	if o.IsSingle() && o.min.Sign() == 0 {
		return NumberConstraint{}, false
	}
	if n.IsSingle() && o.IsSingle() {
		v := new(big.Int).Rem(n.min, o.min)
		return NumberConstraint{min: v, max: v}, true
	}
	magnitude := maxBound(n.lo().abs(), n.hi().abs())
	divisor := maxBound(o.lo().abs(), o.hi().abs())
	if !divisor.infinite() {
		divisor = divisor.sub(one)
	}
	magnitude = minBound(magnitude, divisor)
	lo, hi := magnitude.negate(), magnitude
	if n.NonNegative() {
		lo = zero
	}
	if n.max != nil && n.max.Sign() <= 0 {
		hi = zero
	}
	return numberFromBounds(lo, hi)
}

// And is the bitwise conjunction. Only ranges with a known sign are
// modeled.
func (n NumberConstraint) And(o NumberConstraint) (NumberConstraint, bool) {
	switch {
	case n.IsSingle() && o.IsSingle():
		v := new(big.Int).And(n.min, o.min)
		return NumberConstraint{min: v, max: v}, true
	case n.NonNegative() && o.NonNegative():
		return numberFromBounds(zero, minBound(n.hi(), o.hi()))
	case n.NonNegative():
		return numberFromBounds(zero, n.hi())
	case o.NonNegative():
		return numberFromBounds(zero, o.hi())
	case n.Negative() && o.Negative():
		return numberFromBounds(negInf, minBound(n.hi(), o.hi()))
	}
	return NumberConstraint{}, false
}

// Or is the bitwise disjunction. The upper bound of two non-negative
// ranges is rounded up to the next all-ones value.
func (n NumberConstraint) Or(o NumberConstraint) (NumberConstraint, bool) {
	switch {
	case n.IsSingle() && o.IsSingle():
		v := new(big.Int).Or(n.min, o.min)
		return NumberConstraint{min: v, max: v}, true
	case n.NonNegative() && o.NonNegative():
		return numberFromBounds(maxBound(n.lo(), o.lo()), allOnes(maxBound(n.hi(), o.hi())))
	case n.Negative() && o.Negative():
		return numberFromBounds(maxBound(n.lo(), o.lo()), one.negate())
	}
	return NumberConstraint{}, false
}

// Xor is the bitwise exclusive or.
func (n NumberConstraint) Xor(o NumberConstraint) (NumberConstraint, bool) {
	switch {
	case n.IsSingle() && o.IsSingle():
		v := new(big.Int).Xor(n.min, o.min)
		return NumberConstraint{min: v, max: v}, true
	case n.NonNegative() && o.NonNegative():
		return numberFromBounds(zero, allOnes(maxBound(n.hi(), o.hi())))
	}
	return NumberConstraint{}, false
}

// NarrowLess restricts l and r to the values for which l < r holds, or
// l <= r when orEqual is set. It reports false when no pair satisfies the
// comparison.
func NarrowLess(l, r NumberConstraint, orEqual bool) (NumberConstraint, NumberConstraint, bool) {
	rhi, llo := r.hi(), l.lo()
	if !orEqual {
		if !rhi.infinite() {
			rhi = rhi.sub(one)
		}
		if !llo.infinite() {
			llo = llo.add(one)
		}
	}
	nl, ok := numberFromBounds(l.lo(), minBound(l.hi(), rhi))
	if !ok {
		return NumberConstraint{}, NumberConstraint{}, false
	}
	nr, ok := numberFromBounds(maxBound(r.lo(), llo), r.hi())
	if !ok {
		return NumberConstraint{}, NumberConstraint{}, false
	}
	return nl, nr, true
}

// Exclude removes v from n when v is one of its ends; an interior value
// cannot be removed from a single range. It reports false when n holds
// only v.
func (n NumberConstraint) Exclude(v *big.Int) (NumberConstraint, bool) {
	if !n.Contains(v) {
		return n, true
	}
	if n.IsSingle() {
		return NumberConstraint{}, false
	}
	switch {
	case n.min != nil && n.min.Cmp(v) == 0:
		return NumberConstraint{min: new(big.Int).Add(v, one.n), max: n.max}, true
	case n.max != nil && n.max.Cmp(v) == 0:
		return NumberConstraint{min: n.min, max: new(big.Int).Sub(v, one.n)}, true
	}
	return n, true
}
