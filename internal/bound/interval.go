package bound

import "absint/internal/number"

// Interval is either Bottom or the closed range [Lo, Hi] with Lo <= Hi.
// Bottom is the unique empty interval.
type Interval struct {
	isBottom bool
	lo, hi   Bound
}

// BottomInterval is the unique empty interval.
func BottomInterval() Interval { return Interval{isBottom: true} }

// TopInterval is [-inf, +inf].
func TopInterval() Interval { return Interval{lo: NegInf, hi: PosInf} }

// Closed builds [lo, hi]; if lo > hi the result is Bottom.
func Closed(lo, hi Bound) Interval {
	if lo.LessThan(hi) || lo.Equal(hi) {
		return Interval{lo: lo, hi: hi}
	}
	return BottomInterval()
}

// Singleton builds [n, n].
func Singleton(n number.Number) Interval { return Closed(Finite(n), Finite(n)) }

// SingletonInt64 is a convenience wrapper.
func SingletonInt64(v int64) Interval { return Singleton(number.FromInt64(v)) }

func (i Interval) IsBottom() bool { return i.isBottom }
func (i Interval) IsTop() bool    { return !i.isBottom && i.lo.IsNegInf() && i.hi.IsPosInf() }
func (i Interval) Lo() Bound      { return i.lo }
func (i Interval) Hi() Bound      { return i.hi }

// IsSingleton reports whether the interval contains exactly one value and
// returns it.
func (i Interval) IsSingleton() (number.Number, bool) {
	if i.isBottom || !i.lo.IsFinite() || !i.hi.IsFinite() {
		return number.Number{}, false
	}
	if i.lo.Equal(i.hi) {
		return i.lo.Number(), true
	}
	return number.Number{}, false
}

// Contains reports whether n lies within the interval.
func (i Interval) Contains(n number.Number) bool {
	if i.isBottom {
		return false
	}
	return i.lo.LessEqual(Finite(n)) && Finite(n).LessEqual(i.hi)
}

// Leq is the interval subset order: i <= j iff j.lo <= i.lo and i.hi <= j.hi.
func (i Interval) Leq(j Interval) bool {
	if i.isBottom {
		return true
	}
	if j.isBottom {
		return false
	}
	return j.lo.LessEqual(i.lo) && i.hi.LessEqual(j.hi)
}

// Join is the convex hull.
func (i Interval) Join(j Interval) Interval {
	if i.isBottom {
		return j
	}
	if j.isBottom {
		return i
	}
	return Interval{lo: Min(i.lo, j.lo), hi: Max(i.hi, j.hi)}
}

// Meet is the intersection.
func (i Interval) Meet(j Interval) Interval {
	if i.isBottom || j.isBottom {
		return BottomInterval()
	}
	return Closed(Max(i.lo, j.lo), Min(i.hi, j.hi))
}

// Widening: unstable bounds jump straight to infinity (the standard interval
// widening, since there is no threshold set here).
func (i Interval) Widening(j Interval) Interval {
	if i.isBottom {
		return j
	}
	if j.isBottom {
		return i
	}
	lo := i.lo
	if j.lo.LessThan(i.lo) {
		lo = NegInf
	}
	hi := i.hi
	if i.hi.LessThan(j.hi) {
		hi = PosInf
	}
	return Interval{lo: lo, hi: hi}
}

// WideningThreshold prefers the smallest/largest landmark that still bounds
// the new value over jumping straight to infinity.
func (i Interval) WideningThreshold(j Interval, thresholds []number.Number) Interval {
	if i.isBottom {
		return j
	}
	if j.isBottom {
		return i
	}
	lo := i.lo
	if j.lo.LessThan(i.lo) {
		lo = bestLowerLandmark(j.lo, thresholds)
	}
	hi := i.hi
	if i.hi.LessThan(j.hi) {
		hi = bestUpperLandmark(j.hi, thresholds)
	}
	return Interval{lo: lo, hi: hi}
}

func bestLowerLandmark(v Bound, thresholds []number.Number) Bound {
	best := NegInf
	for _, t := range thresholds {
		tb := Finite(t)
		if tb.LessEqual(v) && best.LessThan(tb) {
			best = tb
		}
	}
	return best
}

func bestUpperLandmark(v Bound, thresholds []number.Number) Bound {
	best := PosInf
	for _, t := range thresholds {
		tb := Finite(t)
		if v.LessEqual(tb) && tb.LessThan(best) {
			best = tb
		}
	}
	return best
}

// Narrowing tightens infinite bounds toward j's, keeping finite bounds.
func (i Interval) Narrowing(j Interval) Interval {
	if i.isBottom || j.isBottom {
		return BottomInterval()
	}
	lo := i.lo
	if i.lo.IsNegInf() {
		lo = j.lo
	}
	hi := i.hi
	if i.hi.IsPosInf() {
		hi = j.hi
	}
	return Interval{lo: lo, hi: hi}
}

// NarrowingThreshold behaves like Narrowing; thresholds give no extra
// precision for intervals (the threshold set only helps widening jump to a
// landmark instead of infinity).
func (i Interval) NarrowingThreshold(j Interval, _ []number.Number) Interval {
	return i.Narrowing(j)
}

// Add, Sub, Mul: standard interval arithmetic built on the Bound-level
// Add/Neg/Mul in bound.go. Overflow wrap is applied by the caller
// (numdomain) when the variable has a finite machine width; these
// operations are unbounded-precision.

func boundAddSat(a, b Bound) Bound {
	// The lo side only ever combines a lo-bound with a lo-bound (both
	// tend toward -inf or finite) and likewise for hi, so a well-formed
	// interval pair never actually produces -inf + +inf here.
	if a.IsNegInf() || b.IsNegInf() {
		if a.IsPosInf() || b.IsPosInf() {
			return a
		}
		return NegInf
	}
	if a.IsPosInf() || b.IsPosInf() {
		return PosInf
	}
	return Finite(a.Number().Add(b.Number()))
}

// Add returns i + j.
func (i Interval) Add(j Interval) Interval {
	if i.isBottom || j.isBottom {
		return BottomInterval()
	}
	return Interval{lo: boundAddSat(i.lo, j.lo), hi: boundAddSat(i.hi, j.hi)}
}

// Negate returns -i.
func (i Interval) Negate() Interval {
	if i.isBottom {
		return i
	}
	return Interval{lo: Neg(i.hi), hi: Neg(i.lo)}
}

// Sub returns i - j.
func (i Interval) Sub(j Interval) Interval { return i.Add(j.Negate()) }

// Mul returns i * j via the four-corner rule.
func (i Interval) Mul(j Interval) Interval {
	if i.isBottom || j.isBottom {
		return BottomInterval()
	}
	candidates := []Bound{
		Mul(i.lo, j.lo), Mul(i.lo, j.hi), Mul(i.hi, j.lo), Mul(i.hi, j.hi),
	}
	lo, hi := candidates[0], candidates[0]
	for _, c := range candidates[1:] {
		lo = Min(lo, c)
		hi = Max(hi, c)
	}
	return Interval{lo: lo, hi: hi}
}

func (i Interval) String() string {
	if i.isBottom {
		return "bottom"
	}
	return "[" + i.lo.String() + ", " + i.hi.String() + "]"
}
