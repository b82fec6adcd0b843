// Package lattice defines the common operations every abstract domain in
// this module exports (spec.md section 4.1), independent of what the
// domain's concrete elements look like.
package lattice

// Domain is the interface every abstract-value type in this module
// implements. T is the concrete type itself (so Join/Meet/etc. return the
// same concrete type rather than the interface).
//
// Contract: Join and Widening must never shrink (x.Leq(x.Join(y))); Meet and
// Narrowing must never grow (x.Meet(y).Leq(x)). Normalize may perform
// closure or reduction; every other observer must be correct whether or not
// Normalize has been called yet.
type Domain[T any] interface {
	IsBottom() bool
	IsTop() bool
	Leq(other T) bool
	Join(other T) T
	Meet(other T) T
	Widening(other T) T
	Narrowing(other T) T
	Normalize() T
}

// ThresholdDomain is implemented by domains whose widening/narrowing accept
// a set of landmark values (spec.md 4.1's "widening_threshold").
type ThresholdDomain[T any, L any] interface {
	WideningThreshold(other T, thresholds []L) T
	NarrowingThreshold(other T, thresholds []L) T
}
