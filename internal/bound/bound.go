// Package bound implements Bound (Number extended with +/-infinity), the
// closed Interval lattice, the Congruence lattice, and their reduced
// product, per spec.md DATA MODEL and section 4.3.
package bound

import "absint/internal/number"

// kind discriminates a Bound's three representations.
type kind uint8

const (
	finite kind = iota
	negInf
	posInf
)

// Bound is a Number extended with -infinity/+infinity, following IEEE-style
// infinity arithmetic with the convention 0 * inf == 0.
type Bound struct {
	k kind
	n number.Number
}

// NegInf is -infinity.
var NegInf = Bound{k: negInf}

// PosInf is +infinity.
var PosInf = Bound{k: posInf}

// Finite wraps a finite Number.
func Finite(n number.Number) Bound { return Bound{k: finite, n: n} }

// FromInt64 is a convenience constructor for a finite bound.
func FromInt64(v int64) Bound { return Finite(number.FromInt64(v)) }

func (b Bound) IsFinite() bool { return b.k == finite }
func (b Bound) IsNegInf() bool { return b.k == negInf }
func (b Bound) IsPosInf() bool { return b.k == posInf }

// Number returns the finite value; callers must check IsFinite first.
func (b Bound) Number() number.Number { return b.n }

// Cmp orders -inf < finite < +inf, finite values by Number.Cmp.
func (b Bound) Cmp(o Bound) int {
	if b.k == o.k {
		if b.k == finite {
			return b.n.Cmp(o.n)
		}
		return 0
	}
	rank := func(k kind) int {
		switch k {
		case negInf:
			return 0
		case finite:
			return 1
		default:
			return 2
		}
	}
	rb, ro := rank(b.k), rank(o.k)
	if rb < ro {
		return -1
	}
	return 1
}

func (b Bound) LessThan(o Bound) bool    { return b.Cmp(o) < 0 }
func (b Bound) LessEqual(o Bound) bool   { return b.Cmp(o) <= 0 }
func (b Bound) Equal(o Bound) bool       { return b.Cmp(o) == 0 }

// Min/Max.
func Min(a, b Bound) Bound {
	if a.LessEqual(b) {
		return a
	}
	return b
}

func Max(a, b Bound) Bound {
	if a.LessEqual(b) {
		return b
	}
	return a
}

// Add follows the IEEE-style rule inf + (-inf) is a programming error in
// this domain (it never arises from sound interval arithmetic over a single
// chain of bound operations); inf + finite == inf.
func Add(a, b Bound) Bound {
	if a.k == finite && b.k == finite {
		return Finite(a.n.Add(b.n))
	}
	if a.k == negInf || b.k == negInf {
		if a.k == posInf || b.k == posInf {
			panic("bound: -inf + +inf is undefined")
		}
		return NegInf
	}
	return PosInf
}

// Neg negates a bound, swapping the two infinities.
func Neg(a Bound) Bound {
	switch a.k {
	case negInf:
		return PosInf
	case posInf:
		return NegInf
	default:
		return Finite(a.n.Neg())
	}
}

// Sub is Add(a, Neg(b)).
func Sub(a, b Bound) Bound { return Add(a, Neg(b)) }

// Mul implements 0 * inf == 0, otherwise standard sign rules with infinity
// absorbing.
func Mul(a, b Bound) Bound {
	if a.k == finite && a.n.IsZero() {
		return Finite(number.Zero)
	}
	if b.k == finite && b.n.IsZero() {
		return Finite(number.Zero)
	}
	if a.k == finite && b.k == finite {
		return Finite(a.n.Mul(b.n))
	}
	sign := func(x Bound) int {
		if x.k == negInf {
			return -1
		}
		if x.k == posInf {
			return 1
		}
		return x.n.Sign()
	}
	s := sign(a) * sign(b)
	if s < 0 {
		return NegInf
	}
	return PosInf
}

func (b Bound) String() string {
	switch b.k {
	case negInf:
		return "-inf"
	case posInf:
		return "+inf"
	default:
		return b.n.String()
	}
}
