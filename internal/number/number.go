// Package number provides the arbitrary-precision integer kernel and the
// bounded machine-integer abstraction that every numerical domain in this
// module is built on top of.
package number

import (
	"math/big"
)

// Number is an arbitrary-precision signed integer. It is total (any two
// Numbers compare) and hashable (Key returns a stable map key).
type Number struct {
	v *big.Int
}

// Zero is the additive identity.
var Zero = FromInt64(0)

// One is the multiplicative identity.
var One = FromInt64(1)

// FromInt64 builds a Number from a machine int64.
func FromInt64(n int64) Number {
	return Number{v: big.NewInt(n)}
}

// FromBigInt builds a Number from a big.Int, copying it so the Number stays
// immutable from the caller's perspective.
func FromBigInt(n *big.Int) Number {
	return Number{v: new(big.Int).Set(n)}
}

// BigInt returns a copy of the underlying big.Int.
func (n Number) BigInt() *big.Int {
	if n.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(n.v)
}

func (n Number) big() *big.Int {
	if n.v == nil {
		return new(big.Int)
	}
	return n.v
}

// Add returns n + m.
func (n Number) Add(m Number) Number { return Number{v: new(big.Int).Add(n.big(), m.big())} }

// Sub returns n - m.
func (n Number) Sub(m Number) Number { return Number{v: new(big.Int).Sub(n.big(), m.big())} }

// Mul returns n * m.
func (n Number) Mul(m Number) Number { return Number{v: new(big.Int).Mul(n.big(), m.big())} }

// Neg returns -n.
func (n Number) Neg() Number { return Number{v: new(big.Int).Neg(n.big())} }

// Abs returns |n|.
func (n Number) Abs() Number { return Number{v: new(big.Int).Abs(n.big())} }

// QuoRem performs truncated division (matching C / LLVM sdiv/srem semantics).
func (n Number) QuoRem(m Number) (q, r Number) {
	qi, ri := new(big.Int), new(big.Int)
	qi.QuoRem(n.big(), m.big(), ri)
	return Number{v: qi}, Number{v: ri}
}

// Cmp returns -1, 0, +1 as n is <, ==, > m.
func (n Number) Cmp(m Number) int { return n.big().Cmp(m.big()) }

// Equal reports whether n == m.
func (n Number) Equal(m Number) bool { return n.Cmp(m) == 0 }

// LessThan reports whether n < m.
func (n Number) LessThan(m Number) bool { return n.Cmp(m) < 0 }

// IsZero reports whether n == 0.
func (n Number) IsZero() bool { return n.big().Sign() == 0 }

// Sign returns -1, 0, or +1.
func (n Number) Sign() int { return n.big().Sign() }

// Min returns the smaller of n, m.
func Min(n, m Number) Number {
	if n.LessThan(m) {
		return n
	}
	return m
}

// Max returns the larger of n, m.
func Max(n, m Number) Number {
	if n.LessThan(m) {
		return m
	}
	return n
}

// String renders the decimal representation.
func (n Number) String() string { return n.big().String() }

// Key returns a value suitable for use as a Go map key, for hashing Number
// into Patricia-tree indices and scalar-variable factories.
func (n Number) Key() string { return n.big().String() }

// Int64 returns the value truncated to int64; callers must only use this on
// Numbers already known to fit (e.g. after a bit-width check).
func (n Number) Int64() int64 { return n.big().Int64() }

// FitsInt64 reports whether n is representable as an int64.
func (n Number) FitsInt64() bool { return n.big().IsInt64() }
