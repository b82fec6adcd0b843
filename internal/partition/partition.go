// Package partition implements the partitioning combinator of spec.md
// section 4.12: it lifts any memory domain D into a finite disjunction of
// D-values ("partitions"), each guarded by a non-overlapping interval of
// one distinguished pivot integer variable.
//
// Grounded directly on section 4.12's algorithm prose. The combinator is
// generic over D (internal/memdomain.State is the instantiation the rest
// of this module uses, but internal/summary.State satisfies the same
// constraint per DESIGN.md), matching DESIGN NOTES' explicit direction to
// express "layer composition ... as generic parametrization over a domain
// that implements the inner trait" instead of templated inheritance.
package partition

import (
	"fmt"
	"sort"

	"absint/internal/aerrors"
	"absint/internal/bound"
	"absint/internal/number"
	"absint/internal/variable"
)

// Memory is the constraint internal/partition needs from the domain it
// lifts: the common lattice interface (section 4.1) plus the one query
// accessor (int_to_interval) needed to read a candidate pivot's value out
// of an inner state.
type Memory[T any] interface {
	IsBottom() bool
	IsTop() bool
	Leq(T) bool
	Join(T) T
	Meet(T) T
	Widening(T) T
	Narrowing(T) T
	Normalize() T
	IntToInterval(variable.Variable) bound.Interval
}

// part is one disjunct: a pivot-interval guard and the inner state it
// guards.
type part[T Memory[T]] struct {
	interval bound.Interval
	inner    T
}

// Domain is Partition[D] from spec.md section 4.12. pivot is nil when no
// variable has been chosen yet, in which case there is exactly one
// partition with pivot-interval top (DATA MODEL's Partition invariant).
type Domain[T Memory[T]] struct {
	pivot *variable.Variable
	parts []part[T]
}

// Single builds the unpartitioned Domain wrapping one inner state, with no
// pivot selected — the base case every partitioning domain starts from.
func Single[T Memory[T]](inner T) *Domain[T] {
	return &Domain[T]{parts: []part[T]{{interval: bound.TopInterval(), inner: inner}}}
}

func (d *Domain[T]) IsBottom() bool {
	for _, p := range d.parts {
		if !p.inner.IsBottom() {
			return false
		}
	}
	return true
}

func (d *Domain[T]) IsTop() bool {
	return d.pivot == nil && len(d.parts) == 1 && d.parts[0].interval.IsTop() && d.parts[0].inner.IsTop()
}

func (d *Domain[T]) samePivot(o *Domain[T]) bool {
	if d.pivot == nil && o.pivot == nil {
		return true
	}
	if d.pivot == nil || o.pivot == nil {
		return false
	}
	return d.pivot.Equal(*o.pivot)
}

func (d *Domain[T]) sameIntervals(o *Domain[T]) bool {
	if len(d.parts) != len(o.parts) {
		return false
	}
	for i := range d.parts {
		if !intervalEqual(d.parts[i].interval, o.parts[i].interval) {
			return false
		}
	}
	return true
}

func intervalEqual(a, b bound.Interval) bool { return a.Leq(b) && b.Leq(a) }

// collapse joins every partition into one, discarding the pivot split:
// partitioning_join of section 4.12.
func (d *Domain[T]) collapse() T {
	acc := d.parts[0].inner
	for _, p := range d.parts[1:] {
		acc = acc.Join(p.inner)
	}
	return acc
}

// Join collapses both sides to a single partition before combining when the
// pivots differ; when pivots match and interval lists match exactly,
// Join is pointwise on inner states; when pivots match but interval lists
// differ, the looser side's matching partitions are joined together
// before the pointwise combine, per section 4.12's "Lattice ops across
// partitionings".
func (d *Domain[T]) Join(o *Domain[T]) *Domain[T] {
	return d.combine(o, func(a, b T) T { return a.Join(b) })
}

func (d *Domain[T]) Meet(o *Domain[T]) *Domain[T] {
	return d.combine(o, func(a, b T) T { return a.Meet(b) })
}

func (d *Domain[T]) Widening(o *Domain[T]) *Domain[T] {
	return d.combine(o, func(a, b T) T { return a.Widening(b) })
}

func (d *Domain[T]) Narrowing(o *Domain[T]) *Domain[T] {
	return d.combine(o, func(a, b T) T { return a.Narrowing(b) })
}

func (d *Domain[T]) combine(o *Domain[T], op func(a, b T) T) *Domain[T] {
	if !d.samePivot(o) {
		joined := Single(d.collapse())
		ojoined := Single(o.collapse())
		return joined.combine(ojoined, op)
	}
	if d.sameIntervals(o) {
		parts := make([]part[T], len(d.parts))
		for i := range d.parts {
			parts[i] = part[T]{interval: d.parts[i].interval, inner: op(d.parts[i].inner, o.parts[i].inner)}
		}
		r := &Domain[T]{pivot: d.pivot, parts: parts}
		return r.pruneBottom()
	}
	// Same pivot, different interval partitioning: over-approximate each
	// side against the other by joining every partition of the opposite
	// side whose interval overlaps, then combine pointwise over the union
	// of interval boundaries.
	merged := mergeIntervals(d.parts, o.parts, op)
	r := &Domain[T]{pivot: d.pivot, parts: merged}
	return r.pruneBottom()
}

// mergeIntervals re-partitions both sides against the union of their
// interval boundaries so every resulting slice corresponds to exactly one
// partition on each side (joining together whichever original partitions
// overlap it), then applies op pointwise. A partition with no counterpart on
// the other side at all (e.g. two branches whose pivot ranges are entirely
// disjoint, as two unmerged if/else paths produce) is kept as-is rather than
// dropped: the other side has no fact there to combine with, so op's
// identity is "this side's fact alone", not "nothing".
func mergeIntervals[T Memory[T]](a, b []part[T], op func(x, y T) T) []part[T] {
	var out []part[T]
	for _, pa := range a {
		var acc T
		first := true
		for _, pb := range b {
			if !intervalsOverlap(pa.interval, pb.interval) {
				continue
			}
			if first {
				acc = pb.inner
				first = false
			} else {
				acc = acc.Join(pb.inner)
			}
		}
		if first {
			out = append(out, part[T]{interval: pa.interval, inner: pa.inner})
			continue
		}
		out = append(out, part[T]{interval: pa.interval, inner: op(pa.inner, acc)})
	}
	for _, pb := range b {
		covered := false
		for _, pa := range a {
			if intervalsOverlap(pa.interval, pb.interval) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, part[T]{interval: pb.interval, inner: pb.inner})
		}
	}
	sort.Slice(out, func(i, j int) bool { return lowerOf(out[i].interval).LessThan(lowerOf(out[j].interval)) })
	return out
}

func intervalsOverlap(a, b bound.Interval) bool {
	return !a.IsBottom() && !b.IsBottom() && !a.Hi().LessThan(b.Lo()) && !b.Hi().LessThan(a.Lo())
}

func lowerOf(i bound.Interval) bound.Bound { return i.Lo() }

// pruneBottom keeps at most one bottom partition (kept only if it is the
// only one), per DATA MODEL's Partition invariant.
func (d *Domain[T]) pruneBottom() *Domain[T] {
	var kept []part[T]
	for _, p := range d.parts {
		if !p.inner.IsBottom() {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return &Domain[T]{pivot: d.pivot, parts: []part[T]{d.parts[0]}}
	}
	return &Domain[T]{pivot: d.pivot, parts: kept}
}

func (d *Domain[T]) Leq(o *Domain[T]) bool {
	if !d.samePivot(o) {
		return Single(d.collapse()).Leq(Single(o.collapse()))
	}
	if d.sameIntervals(o) {
		for i := range d.parts {
			if !d.parts[i].inner.Leq(o.parts[i].inner) {
				return false
			}
		}
		return true
	}
	for _, pa := range d.parts {
		var acc T
		first := true
		for _, pb := range o.parts {
			if !intervalsOverlap(pa.interval, pb.interval) {
				continue
			}
			if first {
				acc = pb.inner
				first = false
			} else {
				acc = acc.Join(pb.inner)
			}
		}
		if first || !pa.inner.Leq(acc) {
			return false
		}
	}
	return true
}

func (d *Domain[T]) Normalize() *Domain[T] {
	parts := make([]part[T], len(d.parts))
	for i, p := range d.parts {
		parts[i] = part[T]{interval: p.interval, inner: p.inner.Normalize()}
	}
	return &Domain[T]{pivot: d.pivot, parts: parts}
}

// SetVariable implements partitioning_set_variable(x): if x is already the
// pivot this is a no-op; otherwise the pivot becomes x and update_partitions
// re-sorts, merges, and prunes against x's value in every inner state.
func (d *Domain[T]) SetVariable(x variable.Variable) *Domain[T] {
	if d.pivot != nil && d.pivot.Equal(x) {
		return d
	}
	r := &Domain[T]{pivot: &x, parts: append([]part[T](nil), d.parts...)}
	return r.updatePartitions()
}

// updatePartitions recomputes each partition's guard interval from its
// inner state's current value of the pivot, drops any partition whose
// inner state is bottom (unless it is the only one), sorts by interval,
// and merges adjacent/overlapping partitions — section 4.12's
// update_partitions.
func (d *Domain[T]) updatePartitions() *Domain[T] {
	if d.pivot == nil {
		aerrors.Violate("partitioning: update_partitions called with no pivot set")
	}
	var live []part[T]
	for _, p := range d.parts {
		if p.inner.IsBottom() {
			continue
		}
		live = append(live, part[T]{interval: p.inner.IntToInterval(*d.pivot), inner: p.inner})
	}
	if len(live) == 0 {
		live = []part[T]{{interval: bound.BottomInterval(), inner: d.parts[0].inner}}
	}
	sort.Slice(live, func(i, j int) bool { return lowerOf(live[i].interval).LessThan(lowerOf(live[j].interval)) })

	var merged []part[T]
	for _, p := range live {
		if len(merged) > 0 && touches(merged[len(merged)-1].interval, p.interval) {
			last := merged[len(merged)-1]
			merged[len(merged)-1] = part[T]{interval: last.interval.Join(p.interval), inner: last.inner.Join(p.inner)}
			continue
		}
		merged = append(merged, p)
	}
	return &Domain[T]{pivot: d.pivot, parts: merged}
}

// touches reports whether a and b's intervals overlap or are adjacent
// (touch at a shared boundary, e.g. [0,3] and [4,9]), the condition
// update_partitions merges on.
func touches(a, b bound.Interval) bool {
	if intervalsOverlap(a, b) {
		return true
	}
	if adjacent(a.Hi(), b.Lo()) || adjacent(b.Hi(), a.Lo()) {
		return true
	}
	return false
}

// adjacent reports whether hi and lo are both finite and hi+1 == lo.
func adjacent(hi, lo bound.Bound) bool {
	if !hi.IsFinite() || !lo.IsFinite() {
		return false
	}
	return hi.Number().Add(number.One).Equal(lo.Number())
}

// Disable implements partitioning_disable: join to a single partition,
// then forget the pivot and widen its guard to top.
func (d *Domain[T]) Disable() *Domain[T] {
	return &Domain[T]{parts: []part[T]{{interval: bound.TopInterval(), inner: d.collapse()}}}
}

// Apply dispatches an arbitrary statement-level operation to every
// partition's inner state (section 4.12: "All memory-domain operations are
// dispatched to every partition"), then re-runs update_partitions if the
// pivot is set (since op may have changed its value).
func (d *Domain[T]) Apply(op func(T) T) *Domain[T] {
	parts := make([]part[T], len(d.parts))
	for i, p := range d.parts {
		parts[i] = part[T]{interval: p.interval, inner: op(p.inner)}
	}
	r := &Domain[T]{pivot: d.pivot, parts: parts}
	if r.pivot == nil {
		return r
	}
	return r.updatePartitions()
}

// At returns the join of every partition whose pivot interval intersects
// query, used by a checker asking "what does x look like when v is in
// [lo,hi]". If the pivot has not been set, query is meaningless and the
// single partition's inner state is returned.
func (d *Domain[T]) At(query bound.Interval) (T, bool) {
	var acc T
	first := true
	for _, p := range d.parts {
		if !intervalsOverlap(p.interval, query) {
			continue
		}
		if first {
			acc = p.inner
			first = false
		} else {
			acc = acc.Join(p.inner)
		}
	}
	return acc, !first
}

// Collapsed returns the join of every partition's inner state, discarding
// pivot structure — the state a non-partition-aware query sees.
func (d *Domain[T]) Collapsed() T { return d.collapse() }

func (d *Domain[T]) String() string {
	s := "partition{"
	for i, p := range d.parts {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%v=>%v", p.interval, p.inner)
	}
	return s + "}"
}

