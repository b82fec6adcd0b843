// Package summary implements the function-summary domain of spec.md
// section 4.11: the relational abstract value describing one function
// body's effect on memory, usable at call sites via Compose.
//
// Grounded directly on section 4.11's algorithm prose and built on the
// same pieces internal/memdomain already assembles (internal/location's
// Cell/CellSet — whose Input/Output CellKind split exists for exactly this
// package — internal/scalar for the byte values each cell carries, and
// internal/patricia for the outer MemoryLocation -> CellSet map). There is
// no teacher or pack library for a relational summary domain; like
// internal/memdomain, this is DESIGN NOTES' "needs a fresh design" case.
package summary

import (
	"encoding/binary"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"

	"absint/internal/bound"
	"absint/internal/location"
	"absint/internal/number"
	"absint/internal/numdomain"
	"absint/internal/patricia"
	"absint/internal/scalar"
	"absint/internal/variable"
)

// State is the SummaryState of DATA MODEL. top means "anything could have
// changed"; an empty, non-top cell map means "memory unchanged", the
// distinction DATA MODEL calls out explicitly ("Empty cell map means
// memory unchanged (!= top)").
type State struct {
	bottom bool
	top    bool
	cells  *patricia.Map[location.MemoryLocation, location.CellSet]
	Scalar *scalar.Domain
}

func emptyCells() *patricia.Map[location.MemoryLocation, location.CellSet] {
	return patricia.Empty[location.MemoryLocation, location.CellSet]()
}

// Top is the summary that claims nothing about the function's effect: any
// byte anywhere may have changed to anything.
func Top(numTop numdomain.Numerical) *State {
	return &State{top: true, cells: emptyCells(), Scalar: scalar.Top(numTop)}
}

// Bottom is the unreachable summary (a function body whose analysis hit an
// infeasible path everywhere).
func Bottom(numTop numdomain.Numerical) *State {
	return &State{bottom: true, cells: emptyCells(), Scalar: scalar.Bottom(numTop)}
}

// Unchanged is the summary of a function body known to touch no memory at
// all: empty cell map, unconstrained scalar state, but deliberately not
// Top (DATA MODEL's distinction).
func Unchanged(numTop numdomain.Numerical) *State {
	return &State{cells: emptyCells(), Scalar: scalar.Top(numTop)}
}

func (s *State) IsBottom() bool { return s.bottom || s.Scalar.IsBottom() }
func (s *State) IsTop() bool    { return !s.IsBottom() && s.top }

func (s *State) numTop() numdomain.Numerical { return s.Scalar.Num }

// IntToInterval mirrors memdomain.State's query accessor, letting
// internal/partition lift a summary domain exactly as it lifts the plain
// memory domain.
func (s *State) IntToInterval(v variable.Variable) bound.Interval {
	if s.bottom {
		return bound.BottomInterval()
	}
	return s.Scalar.Num.ToInterval(v)
}

func (s *State) cellsOf(base location.MemoryLocation) location.CellSet {
	if s.top {
		return location.EmptyCellSet()
	}
	cs, ok := s.cells.Lookup(base)
	if !ok {
		return location.EmptyCellSet()
	}
	return cs
}

// allBases collects every MemoryLocation tracked by either a or b. A
// MemoryLocation's fields (a UUID array, a small kind byte, and a string)
// are all comparable, so it is usable directly as a Go map key — no extra
// index wrapper needed.
func allBases(a, b *State) []location.MemoryLocation {
	seen := map[location.MemoryLocation]struct{}{}
	var out []location.MemoryLocation
	add := func(m location.MemoryLocation, _ location.CellSet) {
		if _, ok := seen[m]; !ok {
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	a.cells.ForEach(add)
	b.cells.ForEach(add)
	return out
}

func cellHi(c location.Cell) number.Number {
	return c.Offset.Add(number.FromInt64(int64(c.Size) - 1))
}

func inputOf(c location.Cell) location.Cell {
	return location.Cell{Base: c.Base, Offset: c.Offset, Size: c.Size, Kind: location.Input}
}

// --- Join (spec.md section 4.11) ---

// sided pairs an Output cell with which side of a join/compose it came
// from, used while sweeping the two sides' cells in offset order.
type sided struct {
	cell   location.Cell
	fromA  bool
}

// Join implements spec.md section 4.11's join: per memory object, walk
// Output cells in offset order and, for each maximal run of mutually
// overlapping cells from either side, apply the rule the run's shape
// calls for (identical cell: keep; present on one side only: witness the
// other side as implicitly unchanged; genuinely overlapping-but-different:
// merge to one enclosing cell). Input cells are simply unioned.
func Join(a, b *State) *State {
	if a.IsBottom() {
		return b
	}
	if b.IsBottom() {
		return a
	}
	if a.top || b.top {
		return Top(a.numTop())
	}
	sa, sb := a.Scalar, b.Scalar
	cells := emptyCells()
	for _, base := range allBases(a, b) {
		csA, csB := a.cellsOf(base), b.cellsOf(base)
		var mergedOut location.CellSet
		mergedOut, sa, sb = joinBaseOutputs(base, csA, csB, sa, sb)
		mergedIn := csA.Union(csB).OfKind(location.Input)
		merged := mergedOut
		for _, c := range mergedIn {
			merged = merged.Insert(c)
		}
		if merged.Size() > 0 {
			cells = cells.Insert(base, merged)
		}
	}
	return &State{cells: cells, Scalar: sa.Join(sb)}
}

// joinBaseOutputs resolves one memory object's Output cells per the three
// cases above, returning the merged CellSet plus each side's scalar state
// after any witness constraints the resolution required (Join's final step
// still does the pointwise sa.Join(sb) over these adjusted states).
func joinBaseOutputs(base location.MemoryLocation, csA, csB location.CellSet, sa, sb *scalar.Domain) (location.CellSet, *scalar.Domain, *scalar.Domain) {
	var all []sided
	for _, c := range csA.OfKind(location.Output) {
		all = append(all, sided{c, true})
	}
	for _, c := range csB.OfKind(location.Output) {
		all = append(all, sided{c, false})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].cell.Offset.LessThan(all[j].cell.Offset) })

	merged := location.EmptyCellSet()
	i := 0
	for i < len(all) {
		j := i + 1
		curHi := cellHi(all[i].cell)
		for j < len(all) && !curHi.LessThan(all[j].cell.Offset) {
			if h := cellHi(all[j].cell); curHi.LessThan(h) {
				curHi = h
			}
			j++
		}
		merged, sa, sb = resolveRun(base, all[i:j], merged, sa, sb)
		i = j
	}
	return merged, sa, sb
}

// resolveRun handles one maximal run of overlapping Output cells.
func resolveRun(base location.MemoryLocation, run []sided, merged location.CellSet, sa, sb *scalar.Domain) (location.CellSet, *scalar.Domain, *scalar.Domain) {
	if len(run) == 1 {
		// Present on exactly one side: the other side is implicitly
		// "unchanged" over this range. Witness that by setting the
		// missing side's value for this cell's scalar var to whatever it
		// already believes about the matching Input cell (top if it was
		// never observed, which is the sound default).
		c := run[0].cell
		in := inputOf(c)
		svOut := location.ScalarVar(c)
		svIn := location.ScalarVar(in)
		if run[0].fromA {
			sb = sb.WithNum(sb.Num.Set(svOut, sb.Num.ToInterval(svIn)))
		} else {
			sa = sa.WithNum(sa.Num.Set(svOut, sa.Num.ToInterval(svIn)))
		}
		merged = merged.Insert(c).Insert(in)
		return merged, sa, sb
	}
	if len(run) == 2 && run[0].cell.Equal(run[1].cell) {
		// Identical (base, offset, size) cell present on both sides: the
		// single shared scalar variable already carries each side's value,
		// and Join's final sa.Join(sb) combines them pointwise.
		merged = merged.Insert(run[0].cell)
		return merged, sa, sb
	}

	// Genuinely overlapping but not identical. Build the smallest enclosing
	// cell. Per section 9 OQ1 (preserved here per the reference choice
	// recorded in DESIGN.md) the scalar value is top, UNLESS the run's
	// cells exactly and contiguously partition the enclosing range with no
	// gaps or overlaps among themselves, in which case it is the join of
	// their values.
	lo := run[0].cell.Offset
	hi := cellHi(run[0].cell)
	for _, s := range run[1:] {
		if s.cell.Offset.LessThan(lo) {
			lo = s.cell.Offset
		}
		if h := cellHi(s.cell); hi.LessThan(h) {
			hi = h
		}
	}
	size := hi.Sub(lo).Int64() + 1
	enclosing := location.Cell{Base: base, Offset: lo, Size: uint64(size), Kind: location.Output}
	svEnc := location.ScalarVar(enclosing)

	val := partitionJoinValue(run, lo, hi, sa, sb)
	sa = sa.WithNum(sa.Num.Set(svEnc, val))
	sb = sb.WithNum(sb.Num.Set(svEnc, val))
	merged = merged.Insert(enclosing)
	return merged, sa, sb
}

// partitionJoinValue reports whether run's cells, sorted by offset,
// exactly and contiguously cover [lo, hi] with no internal gap or overlap
// — the "all lie exactly inside" case of section 4.11 — and if so returns
// the join of their values; otherwise it returns top.
func partitionJoinValue(run []sided, lo, hi number.Number, sa, sb *scalar.Domain) bound.Interval {
	sorted := append([]sided(nil), run...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].cell.Offset.LessThan(sorted[j].cell.Offset) })
	if !sorted[0].cell.Offset.Equal(lo) {
		return bound.TopInterval()
	}
	cursor := lo
	for _, s := range sorted {
		if !s.cell.Offset.Equal(cursor) {
			return bound.TopInterval()
		}
		cursor = cellHi(s.cell).Add(number.One)
	}
	if !cursor.Sub(number.One).Equal(hi) {
		return bound.TopInterval()
	}
	acc := bound.BottomInterval()
	for _, s := range sorted {
		sv := location.ScalarVar(s.cell)
		if s.fromA {
			acc = acc.Join(sa.Num.ToInterval(sv))
		} else {
			acc = acc.Join(sb.Num.ToInterval(sv))
		}
	}
	return acc
}

// --- Leq (spec.md section 4.11) ---

// Leq mirrors Join's structural walk: every right-side Output cell must
// either be matched by an identical left cell, or the left side must be
// provably unchanged over that range (witnessed, exactly as Join does, by
// installing the Input=Output equality before comparing scalar states).
// Any left Output cell the right side does not account for must itself be
// provably unchanged, or the left claims a more specific change than the
// right's "unchanged" default permits.
func Leq(a, b *State) bool {
	if a.IsBottom() {
		return true
	}
	if b.IsBottom() {
		return false
	}
	if b.top {
		return true
	}
	if a.top {
		return false
	}
	sa, sb := a.Scalar, b.Scalar
	for _, base := range allBases(a, b) {
		csA, csB := a.cellsOf(base), b.cellsOf(base)
		var ok bool
		sa, sb, ok = leqBaseOutputs(base, csA, csB, sa, sb)
		if !ok {
			return false
		}
		// Input cells record pre-call observations only; the scalar-state
		// Leq below is what gives them soundness content, so no further
		// structural comparison is needed for them here.
	}
	return sa.Leq(sb)
}

// leqBaseOutputs applies the cell-level half of Leq for one memory object,
// returning the (possibly witness-adjusted) scalar states and whether the
// structural comparison held.
func leqBaseOutputs(base location.MemoryLocation, csA, csB location.CellSet, sa, sb *scalar.Domain) (*scalar.Domain, *scalar.Domain, bool) {
	outA := csA.OfKind(location.Output)
	outB := csB.OfKind(location.Output)

	for _, cb := range outB {
		overlap := csA.Overlapping(cb)
		switch {
		case len(overlap) == 1 && overlap[0].Equal(cb):
			// Matched exactly; scalar comparison handled by the final
			// sa.Leq(sb) over the shared scalar variable.
		case len(overlap) == 0:
			// Left has no claim here: sound only if left is implicitly
			// unchanged over this range, witnessed the same way Join
			// witnesses it.
			in := inputOf(cb)
			svOut, svIn := location.ScalarVar(cb), location.ScalarVar(in)
			sa = sa.WithNum(sa.Num.Set(svOut, sa.Num.ToInterval(svIn)))
		default:
			// Left has differently-shaped Output cells overlapping this
			// region: the structural shapes disagree and no sound
			// cell-level correspondence exists.
			return sa, sb, false
		}
	}
	for _, ca := range outA {
		if _, ok := csB.Lookup(ca); ok {
			continue
		}
		if len(csB.Overlapping(ca)) > 0 {
			return sa, sb, false
		}
		// Right has no Output cell here at all, meaning "unchanged"; left
		// claiming a cell here is sound only if left's value there is
		// itself provably unchanged from its own Input.
		in := inputOf(ca)
		svOut, svIn := location.ScalarVar(ca), location.ScalarVar(in)
		if !sa.Num.ToInterval(svOut).Leq(sa.Num.ToInterval(svIn)) {
			return sa, sb, false
		}
	}
	return sa, sb, true
}

// --- Compose (spec.md section 4.11) ---

// freshTemp derives a deterministic temporary scalar variable bridging a
// caller Output cell and a callee Input cell at the same (base, offset,
// size) during Compose, using the same blake2b-of-the-tuple determinism
// location.ScalarVar relies on (so repeated composition of the same pair
// of summaries produces the same temporary, which matters only for
// debugging reproducibility — the variable is projected back out before
// Compose returns).
func freshTemp(callerOut, calleeIn variable.Variable) variable.Variable {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], callerOut.Index())
	binary.BigEndian.PutUint64(buf[8:16], calleeIn.Index())
	sum := blake2b.Sum256(buf[:])
	id := binary.BigEndian.Uint64(sum[:8])
	return variable.NewSynthetic(id, callerOut.Width(), callerOut.IntSign())
}

// Compose implements spec.md section 4.11's compose(caller, callee): the
// summary of "execute caller, then callee".
func Compose(caller, callee *State) *State {
	if caller.IsBottom() || callee.IsBottom() {
		return Bottom(caller.numTop())
	}
	if caller.top || callee.top {
		return Top(caller.numTop())
	}
	callerScalar, calleeScalar := caller.Scalar, callee.Scalar
	cells := emptyCells()
	var temps []variable.Variable

	for _, base := range allBases(caller, callee) {
		callerIn := caller.cellsOf(base).OfKind(location.Input)
		callerOut := caller.cellsOf(base).OfKind(location.Output)
		calleeIn := callee.cellsOf(base).OfKind(location.Input)
		calleeOut := callee.cellsOf(base).OfKind(location.Output)

		result := location.EmptyCellSet()
		// Step 1: keep caller's Input cells.
		for _, c := range callerIn {
			result = result.Insert(c)
		}

		// Step 2: resolve each callee Input cell against caller's Output
		// cells.
		for _, cIn := range calleeIn {
			matchProbe := location.Cell{Base: base, Offset: cIn.Offset, Size: cIn.Size, Kind: location.Output}
			var exact *location.Cell
			overlapping := 0
			for _, co := range callerOut {
				if co.Equal(matchProbe) {
					e := co
					exact = &e
				}
				if co.Overlaps(cIn) {
					overlapping++
				}
			}
			switch {
			case exact != nil:
				temp := freshTemp(location.ScalarVar(*exact), location.ScalarVar(cIn))
				callerScalar = callerScalar.WithNum(callerScalar.Num.Assign(temp, numdomain.VarExpr{V: location.ScalarVar(*exact)}))
				calleeScalar = calleeScalar.WithNum(calleeScalar.Num.Assign(temp, numdomain.VarExpr{V: location.ScalarVar(cIn)}))
				calleeScalar = calleeScalar.WithNum(calleeScalar.Num.Forget(location.ScalarVar(cIn)))
				temps = append(temps, temp)
			case overlapping > 0:
				// Overlaps a caller write without matching it exactly:
				// unknown, drop the callee's own constraint on this cell.
				calleeScalar = calleeScalar.WithNum(calleeScalar.Num.Forget(location.ScalarVar(cIn)))
				result = result.Insert(cIn)
			default:
				// No caller Output cell overlaps: the composed summary
				// still needs this pre-state observation.
				result = result.Insert(cIn)
			}
		}

		// Step 4 (applied before step 3 is inserted): shrink/drop caller
		// Output cells the callee overwrites. Cells are fixed (offset,
		// size) tuples with no general sub-range split, so a caller cell
		// overlapping any callee Output cell is dropped outright rather
		// than split into a non-overlapping remainder — a conservative
		// reading in the same direction section 4.10's realize_write
		// already takes for a write that cannot be proven to leave a cell
		// intact.
		for _, co := range callerOut {
			overwritten := false
			for _, cc := range calleeOut {
				if co.Overlaps(cc) {
					overwritten = true
					break
				}
			}
			if !overwritten {
				result = result.Insert(co)
			}
		}
		// Step 3: keep callee Output cells verbatim.
		for _, cc := range calleeOut {
			result = result.Insert(cc)
		}

		if result.Size() > 0 {
			cells = cells.Insert(base, result)
		}
	}

	// Step 5: composed scalar state is the meet of the two, with the
	// bridging temporaries projected back out.
	composed := callerScalar.Meet(calleeScalar)
	for _, t := range temps {
		composed = composed.WithNum(composed.Num.Forget(t))
	}
	return &State{cells: cells, Scalar: composed}
}

// --- Lattice interface (spec.md section 4.1) ---
//
// These method wrappers exist so *State also satisfies
// internal/partition's generic Memory constraint ("lifts any memory
// domain", section 4.12), the same way internal/memdomain.State does;
// Join/Leq/Compose stay free functions above because Compose has no
// counterpart in the lattice interface and reads awkwardly as a method on
// one of its two distinct operands ("caller" vs "callee" are not
// naturally "receiver" and "argument").

func (s *State) Leq(o *State) bool  { return Leq(s, o) }
func (s *State) Join(o *State) *State { return Join(s, o) }

// Meet has no direct description in section 4.11 (only join/leq/compose
// are specified); it is defined the same way internal/memdomain.Meet is,
// by intersecting known cell identities and meeting the embedded scalar
// state, which is sound for the same reason: a cell absent from one side
// already carries no soundness content on its own, the scalar state does.
func (s *State) Meet(o *State) *State {
	if s.bottom || o.bottom {
		return Bottom(s.numTop())
	}
	if s.top {
		return o
	}
	if o.top {
		return s
	}
	cells := emptyCells()
	for _, base := range allBases(s, o) {
		a, b := s.cellsOf(base), o.cellsOf(base)
		m := a.Intersect(b)
		if m.Size() > 0 {
			cells = cells.Insert(base, m)
		}
	}
	return &State{cells: cells, Scalar: s.Scalar.Meet(o.Scalar)}
}

// Widening/Narrowing fall back to Join/Meet: a summary is computed once
// per function body from a single already-widened fixpoint and then reused
// at call sites, so it never itself participates in an unbounded ascending
// or descending chain the way a CFG-merge-point memory state does.
func (s *State) Widening(o *State) *State  { return s.Join(o) }
func (s *State) Narrowing(o *State) *State { return s.Meet(o) }

func (s *State) Normalize() *State {
	if s.bottom || s.top {
		return s
	}
	return &State{cells: s.cells, Scalar: s.Scalar.Normalize()}
}

func (s *State) String() string {
	if s.bottom {
		return "bottom"
	}
	if s.top {
		return "top"
	}
	str := "summary{"
	first := true
	s.cells.ForEach(func(base location.MemoryLocation, cs location.CellSet) {
		if !first {
			str += ", "
		}
		first = false
		str += fmt.Sprintf("%s: %v", base, cs.All())
	})
	return str + "} " + s.Scalar.String()
}
