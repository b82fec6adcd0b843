package bound

import (
	"math/big"

	"absint/internal/number"
)

// extGCD returns (g, x, y) such that a*x + b*y == g == gcd(a, b).
func extGCD(a, b *big.Int) (*big.Int, *big.Int, *big.Int) {
	g, x, y := new(big.Int), new(big.Int), new(big.Int)
	g.GCD(x, y, a, b)
	return g, x, y
}

// Congruence is either Bottom, or the set a*Z + b with a >= 0 (a == 0
// denotes the singleton {b}). Values are kept in normal form: 0 <= b < a
// when a > 0.
type Congruence struct {
	isBottom bool
	a, b     number.Number
}

func BottomCongruence() Congruence { return Congruence{isBottom: true} }

// TopCongruence is 1*Z + 0, i.e. all integers.
func TopCongruence() Congruence { return Congruence{a: number.One, b: number.Zero} }

// SingletonCongruence builds {n}.
func SingletonCongruence(n number.Number) Congruence {
	return Congruence{a: number.Zero, b: n}
}

// New builds a*Z + b in normal form.
func NewCongruence(a, b number.Number) Congruence {
	a = a.Abs()
	if a.IsZero() {
		return Congruence{a: number.Zero, b: b}
	}
	_, r := b.QuoRem(a)
	if r.Sign() < 0 {
		r = r.Add(a)
	}
	return Congruence{a: a, b: r}
}

func (c Congruence) IsBottom() bool { return c.isBottom }
func (c Congruence) IsTop() bool    { return !c.isBottom && c.a.Equal(number.One) }
func (c Congruence) A() number.Number { return c.a }
func (c Congruence) B() number.Number { return c.b }

// IsSingleton reports whether c denotes exactly one integer.
func (c Congruence) IsSingleton() (number.Number, bool) {
	if c.isBottom {
		return number.Number{}, false
	}
	if c.a.IsZero() {
		return c.b, true
	}
	return number.Number{}, false
}

// Contains reports whether n is a member of a*Z + b.
func (c Congruence) Contains(n number.Number) bool {
	if c.isBottom {
		return false
	}
	if c.a.IsZero() {
		return n.Equal(c.b)
	}
	_, r := n.Sub(c.b).QuoRem(c.a)
	return r.IsZero()
}

func gcd(a, b number.Number) number.Number {
	return Gcd(a, b)
}

// Gcd returns the non-negative greatest common divisor of a and b.
func Gcd(a, b number.Number) number.Number {
	a, b = a.Abs(), b.Abs()
	for !b.IsZero() {
		_, r := a.QuoRem(b)
		a, b = b, r.Abs()
	}
	return a
}

// Leq: c1 <= c2 iff c1's set is a subset of c2's set, i.e. a2 divides a1 and
// b1 === b2 (mod a2).
func (c Congruence) Leq(o Congruence) bool {
	if c.isBottom {
		return true
	}
	if o.isBottom {
		return false
	}
	if o.a.IsZero() {
		return c.a.IsZero() && c.b.Equal(o.b)
	}
	if !c.a.IsZero() {
		_, r := c.a.QuoRem(o.a)
		if !r.IsZero() {
			return false
		}
	}
	_, r := c.b.Sub(o.b).QuoRem(o.a)
	return r.IsZero()
}

// Join computes the smallest congruence containing both sets: new modulus is
// gcd(a1, a2, b1-b2).
func (c Congruence) Join(o Congruence) Congruence {
	if c.isBottom {
		return o
	}
	if o.isBottom {
		return c
	}
	g := gcd(gcd(c.a, o.a), c.b.Sub(o.b))
	return NewCongruence(g, c.b)
}

// Meet intersects two congruence classes using the extended-Euclid based
// congruence-system solution; returns Bottom if the systems are
// inconsistent.
func (c Congruence) Meet(o Congruence) Congruence {
	if c.isBottom || o.isBottom {
		return BottomCongruence()
	}
	if c.a.IsZero() {
		if o.Contains(c.b) {
			return c
		}
		return BottomCongruence()
	}
	if o.a.IsZero() {
		if c.Contains(o.b) {
			return o
		}
		return BottomCongruence()
	}
	// Solve x = b1 (mod a1), x = b2 (mod a2) via extended gcd.
	g, u, _ := extGCD(c.a.BigInt(), o.a.BigInt())
	gNum := number.FromBigInt(g)
	diff := o.b.Sub(c.b)
	_, r := diff.QuoRem(gNum)
	if !r.IsZero() {
		return BottomCongruence()
	}
	// x = b1 + a1 * (u * diff/g)
	quotient, _ := diff.QuoRem(gNum)
	t := number.FromBigInt(u).Mul(quotient)
	x := c.b.Add(c.a.Mul(t))
	modulus, _ := c.a.Mul(o.a).QuoRem(gNum)
	return NewCongruence(modulus, x)
}

// Widening: only the stable modulus/offset survives; any change collapses to
// Top. Congruence lattices have finite height once a is bounded, so this is
// conservative but always terminates.
func (c Congruence) Widening(o Congruence) Congruence {
	if c.isBottom {
		return o
	}
	if o.isBottom {
		return c
	}
	if c.a.Equal(o.a) && c.b.Equal(o.b) {
		return c
	}
	return TopCongruence()
}

func (c Congruence) WideningThreshold(o Congruence, _ []number.Number) Congruence {
	return c.Widening(o)
}

// Narrowing: Bottom/Top absorb; otherwise keep the already-stable value.
func (c Congruence) Narrowing(o Congruence) Congruence {
	if c.isBottom || o.isBottom {
		return BottomCongruence()
	}
	if c.IsTop() {
		return o
	}
	return c
}

func (c Congruence) NarrowingThreshold(o Congruence, _ []number.Number) Congruence {
	return c.Narrowing(o)
}

func (c Congruence) String() string {
	if c.isBottom {
		return "bottom"
	}
	if c.a.IsZero() {
		return "{" + c.b.String() + "}"
	}
	return c.a.String() + "Z+" + c.b.String()
}
