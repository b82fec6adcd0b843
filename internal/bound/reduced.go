package bound

import "absint/internal/number"

// ReduceIntervalCongruence performs the mutual-refinement fixpoint between
// an interval and a congruence class representing the same variable: each
// is tightened using the other until neither changes. This is the "reduced
// product" promised by DATA MODEL's Congruence entry and section 4 "their
// reduced product", spelled out operationally (SPEC_FULL.md's numdomain
// supplement) since spec.md only names it.
//
// If the reduction discovers the two abstractions are inconsistent (no
// concrete value satisfies both), it returns (Bottom, Bottom).
func ReduceIntervalCongruence(i Interval, c Congruence) (Interval, Congruence) {
	if i.IsBottom() || c.IsBottom() {
		return BottomInterval(), BottomCongruence()
	}
	if c.a.IsZero() {
		// Singleton congruence: either it lies in the interval (tighten the
		// interval to that point) or the pair is inconsistent.
		if i.Contains(c.b) {
			return Singleton(c.b), c
		}
		return BottomInterval(), BottomCongruence()
	}
	newLo := i.lo
	if i.lo.IsFinite() {
		newLo = Finite(smallestCongruentAtLeast(c, i.lo.Number()))
	}
	newHi := i.hi
	if i.hi.IsFinite() {
		newHi = Finite(largestCongruentAtMost(c, i.hi.Number()))
	}
	tightened := Closed(newLo, newHi)
	if tightened.IsBottom() {
		return BottomInterval(), BottomCongruence()
	}
	if n, ok := tightened.IsSingleton(); ok {
		return tightened, SingletonCongruence(n)
	}
	return tightened, c
}

// smallestCongruentAtLeast returns the smallest member of c.a*Z+c.b that is
// >= lo.
func smallestCongruentAtLeast(c Congruence, lo number.Number) number.Number {
	diff := lo.Sub(c.b)
	q, r := diff.QuoRem(c.a)
	if r.IsZero() {
		return lo
	}
	if diff.Sign() >= 0 {
		q = q.Add(number.One)
	}
	return c.b.Add(c.a.Mul(q))
}

// largestCongruentAtMost returns the largest member of c.a*Z+c.b that is <=
// hi.
func largestCongruentAtMost(c Congruence, hi number.Number) number.Number {
	diff := hi.Sub(c.b)
	q, r := diff.QuoRem(c.a)
	if r.IsZero() {
		return hi
	}
	if diff.Sign() < 0 {
		q = q.Sub(number.One)
	}
	return c.b.Add(c.a.Mul(q))
}
