package number

import "math/big"

// Sign distinguishes the interpretation of a MachineInt's bit pattern.
type Sign uint8

const (
	Unsigned Sign = iota
	Signed
)

// MachineInt is the normalized representative of Z/2^width Z described in
// DATA MODEL: width >= 1, the stored value lies in [0, 2^width), and the
// signed/unsigned semantic value is computed on demand.
type MachineInt struct {
	width uint
	sign  Sign
	// bits holds the unsigned representative in [0, 2^width).
	bits *big.Int
}

// mod2w returns 2^width as a big.Int.
func mod2w(width uint) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), width)
}

// normalize reduces v modulo 2^width into [0, 2^width).
func normalize(v *big.Int, width uint) *big.Int {
	m := mod2w(width)
	r := new(big.Int).Mod(v, m)
	if r.Sign() < 0 {
		r.Add(r, m)
	}
	return r
}

// New builds a MachineInt of the given width/sign from an arbitrary-precision
// Number, wrapping it into range. width must be >= 1; a width of 0 is a
// contract violation at the API boundary (checked by callers in numdomain).
func New(width uint, sign Sign, v Number) MachineInt {
	return MachineInt{width: width, sign: sign, bits: normalize(v.big(), width)}
}

// Width returns the bit width.
func (m MachineInt) Width() uint { return m.width }

// IntSign returns whether m is interpreted as signed or unsigned.
func (m MachineInt) IntSign() Sign { return m.sign }

// Unsigned returns the semantic value in [0, 2^width).
func (m MachineInt) Unsigned() Number { return FromBigInt(m.bits) }

// Signed returns the semantic value in [-2^(width-1), 2^(width-1)).
func (m MachineInt) Signed() Number {
	half := new(big.Int).Lsh(big.NewInt(1), m.width-1)
	if m.bits.Cmp(half) >= 0 {
		return FromBigInt(new(big.Int).Sub(m.bits, mod2w(m.width)))
	}
	return FromBigInt(m.bits)
}

// Value returns the semantic value under m's own sign interpretation.
func (m MachineInt) Value() Number {
	if m.sign == Signed {
		return m.Signed()
	}
	return m.Unsigned()
}

// sameWidth panics with a ContractViolation-shaped message if widths differ;
// the actual typed panic lives in aerrors, but this package has no
// dependency on it to avoid a cycle (aerrors imports nothing from number).
// No caller recovers it, so a width mismatch surfaces as a plain panic
// carrying widthMismatch.
func sameWidth(a, b MachineInt) {
	if a.width != b.width {
		panic(widthMismatch{a.width, b.width})
	}
}

// widthMismatch is the typed panic payload sameWidth raises; nothing in this
// module rewraps it into aerrors.ContractViolation.
type widthMismatch struct{ A, B uint }

func (w widthMismatch) Error() string { return "machine-int width mismatch" }

// WrapResult is the outcome of a wrap-aware arithmetic operation.
type WrapResult struct {
	Value    MachineInt
	Overflow bool
}

// overflowed reports whether the unbounded result differs from its reduction
// mod 2^width under the operand sign's natural range.
func overflowed(raw *big.Int, width uint, sign Sign) bool {
	if sign == Unsigned {
		lo := big.NewInt(0)
		hi := mod2w(width)
		return raw.Cmp(lo) < 0 || raw.Cmp(hi) >= 0
	}
	half := new(big.Int).Lsh(big.NewInt(1), width-1)
	lo := new(big.Int).Neg(half)
	hi := half
	return raw.Cmp(lo) < 0 || raw.Cmp(hi) >= 0
}

func (m MachineInt) raw() *big.Int {
	if m.sign == Signed {
		return m.Signed().big()
	}
	return m.Unsigned().big()
}

// Add performs wrap-aware addition.
func Add(a, b MachineInt) WrapResult {
	sameWidth(a, b)
	raw := new(big.Int).Add(a.raw(), b.raw())
	return WrapResult{Value: New(a.width, a.sign, FromBigInt(raw)), Overflow: overflowed(raw, a.width, a.sign)}
}

// Sub performs wrap-aware subtraction.
func Sub(a, b MachineInt) WrapResult {
	sameWidth(a, b)
	raw := new(big.Int).Sub(a.raw(), b.raw())
	return WrapResult{Value: New(a.width, a.sign, FromBigInt(raw)), Overflow: overflowed(raw, a.width, a.sign)}
}

// Mul performs wrap-aware multiplication.
func Mul(a, b MachineInt) WrapResult {
	sameWidth(a, b)
	raw := new(big.Int).Mul(a.raw(), b.raw())
	return WrapResult{Value: New(a.width, a.sign, FromBigInt(raw)), Overflow: overflowed(raw, a.width, a.sign)}
}

// UDiv, SDiv, URem, SRem: division/remainder. The numerical-domain layer is
// responsible for detecting the zero divisor and transitioning to bottom;
// these helpers only compute the bit pattern.

func UDiv(a, b MachineInt) MachineInt {
	q := new(big.Int).Quo(a.Unsigned().big(), b.Unsigned().big())
	return New(a.width, Unsigned, FromBigInt(q))
}

func SDiv(a, b MachineInt) MachineInt {
	q := new(big.Int).Quo(a.Signed().big(), b.Signed().big())
	return New(a.width, Signed, FromBigInt(q))
}

func URem(a, b MachineInt) MachineInt {
	r := new(big.Int).Rem(a.Unsigned().big(), b.Unsigned().big())
	return New(a.width, Unsigned, FromBigInt(r))
}

func SRem(a, b MachineInt) MachineInt {
	r := new(big.Int).Rem(a.Signed().big(), b.Signed().big())
	return New(a.width, Signed, FromBigInt(r))
}

// Shl, Lshr, Ashr: shift amount must be in [0, width); callers are
// responsible for the contract check (shift amount out of range aborts).

func Shl(a MachineInt, amount uint) MachineInt {
	r := new(big.Int).Lsh(a.Unsigned().big(), amount)
	return New(a.width, a.sign, FromBigInt(r))
}

func Lshr(a MachineInt, amount uint) MachineInt {
	r := new(big.Int).Rsh(a.Unsigned().big(), amount)
	return New(a.width, a.sign, FromBigInt(r))
}

func Ashr(a MachineInt, amount uint) MachineInt {
	r := new(big.Int).Rsh(a.Signed().big(), amount)
	return New(a.width, a.sign, FromBigInt(r))
}

func And(a, b MachineInt) MachineInt {
	sameWidth(a, b)
	return New(a.width, a.sign, FromBigInt(new(big.Int).And(a.bits, b.bits)))
}

func Or(a, b MachineInt) MachineInt {
	sameWidth(a, b)
	return New(a.width, a.sign, FromBigInt(new(big.Int).Or(a.bits, b.bits)))
}

func Xor(a, b MachineInt) MachineInt {
	sameWidth(a, b)
	return New(a.width, a.sign, FromBigInt(new(big.Int).Xor(a.bits, b.bits)))
}

// SignCast reinterprets m's bit pattern under a different sign.
func SignCast(m MachineInt, sign Sign) MachineInt {
	return New(m.width, sign, FromBigInt(m.bits))
}

// Trunc narrows m to a smaller width, discarding high bits.
func Trunc(m MachineInt, width uint) MachineInt {
	return New(width, m.sign, FromBigInt(m.bits))
}

// Ext widens m to a larger width; sign-extends if m.sign == Signed, otherwise
// zero-extends.
func Ext(m MachineInt, width uint) MachineInt {
	return New(width, m.sign, m.Value())
}

// Equal reports bit-pattern and width/sign equality.
func (m MachineInt) Equal(o MachineInt) bool {
	return m.width == o.width && m.sign == o.sign && m.bits.Cmp(o.bits) == 0
}

func (m MachineInt) String() string { return m.Value().String() }
