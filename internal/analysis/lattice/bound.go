package lattice

import (
	"fmt"
	"math/big"
)

// bound is an integer extended with positive and negative infinity.
// It is only used while computing interval arithmetic; ranges store
// nil for an unbounded end.
type bound struct {
	inf int8
	n   *big.Int
}

var (
	negInf = bound{inf: -1}
	posInf = bound{inf: 1}
	zero   = finite(new(big.Int))
	one    = finite(big.NewInt(1))
)

func finite(n *big.Int) bound { return bound{n: n} }

func lowerBound(n *big.Int) bound {
	if n == nil {
		return negInf
	}
	return finite(n)
}

func upperBound(n *big.Int) bound {
	if n == nil {
		return posInf
	}
	return finite(n)
}

// toInt converts back to the range representation.
func (b bound) toInt() *big.Int {
	if b.inf != 0 {
		return nil
	}
	return b.n
}

func (b bound) infinite() bool { return b.inf != 0 }

func (b bound) sign() int {
	if b.inf != 0 {
		return int(b.inf)
	}
	return b.n.Sign()
}

func (b bound) cmp(o bound) int {
	if b.inf != 0 || o.inf != 0 {
		switch {
		case b.inf == o.inf:
			return 0
		case b.inf < o.inf:
			return -1
		default:
			return 1
		}
	}
	return b.n.Cmp(o.n)
}

func (b bound) negate() bound {
	if b.inf != 0 {
		return bound{inf: -b.inf}
	}
	return finite(new(big.Int).Neg(b.n))
}

func (b bound) abs() bound {
	if b.sign() < 0 {
		return b.negate()
	}
	return b
}

func (b bound) add(o bound) bound {
	switch {
	case b.inf != 0 && o.inf != 0 && b.inf != o.inf:
		panic(fmt.Sprintf("%s + %s is not defined", b, o))
	case b.inf != 0:
		return b
	case o.inf != 0:
		return o
	}
	return finite(new(big.Int).Add(b.n, o.n))
}

func (b bound) sub(o bound) bound {
	return b.add(o.negate())
}

func (b bound) mul(o bound) bound {
	if (b.inf == 0 && b.n.Sign() == 0) || (o.inf == 0 && o.n.Sign() == 0) {
		return zero
	}
	if b.inf != 0 || o.inf != 0 {
		return bound{inf: int8(b.sign() * o.sign())}
	}
	return finite(new(big.Int).Mul(b.n, o.n))
}

// quo is truncated division. The divisor is never zero.
func (b bound) quo(o bound) bound {
	switch {
	case b.inf != 0 && o.inf != 0:
		return bound{inf: int8(b.sign() * o.sign())}
	case b.inf != 0:
		return bound{inf: int8(b.sign() * o.sign())}
	case o.inf != 0:
		return zero
	}
	return finite(new(big.Int).Quo(b.n, o.n))
}

func (b bound) String() string {
	switch {
	case b.inf < 0:
		return "-∞"
	case b.inf > 0:
		return "∞"
	}
	return b.n.String()
}

func minBound(bs ...bound) bound {
	ret := bs[0]
	for _, b := range bs[1:] {
		if b.cmp(ret) < 0 {
			ret = b
		}
	}
	return ret
}

func maxBound(bs ...bound) bound {
	ret := bs[0]
	for _, b := range bs[1:] {
		if b.cmp(ret) > 0 {
			ret = b
		}
	}
	return ret
}

// allOnes returns the smallest 2^k-1 that is >= b, for non-negative b.
func allOnes(b bound) bound {
	if b.infinite() {
		return posInf
	}
	n := new(big.Int).Lsh(big.NewInt(1), uint(b.n.BitLen()))
	return finite(n.Sub(n, big.NewInt(1)))
}
