package memdomain

import (
	"absint/internal/bound"
	"absint/internal/location"
	"absint/internal/number"
	"absint/internal/variable"
)

// nonNegative is the offset domain's universe per spec.md section 4.10:
// "Let I = offset_var's interval in the scalar state ∩ [0, +∞)".
var nonNegative = bound.Closed(bound.FromInt64(0), bound.PosInf)

// offsetInterval reads offsetVar's current interval and clips it to
// non-negative, the shared first step of both realize_write and
// realize_read.
func (s *State) offsetInterval(offsetVar variable.Variable) bound.Interval {
	return s.Scalar.Num.ToInterval(offsetVar).Meet(nonNegative)
}

// realizeWrite implements spec.md section 4.10's realize_write(base,
// offset_var, size): returns the list of cells the caller should now
// update (strong update target for the singleton case, weak-update
// candidates for the range case) and the memory state after any cells
// that had to be dropped (overlap with the write that could not be proven
// to leave them intact) have been removed.
//
// If I is empty the buffer offset cannot be non-negative under the current
// state: spec.md calls this out explicitly as a buffer-underflow definite
// error, signaled by returning a bottom state.
func (s *State) realizeWrite(base location.MemoryLocation, offsetVar variable.Variable, size uint64) ([]location.Cell, *State) {
	i := s.offsetInterval(offsetVar)
	if i.IsBottom() {
		return nil, Bottom(s.numTop())
	}
	cs := s.cellsOf(base)

	if o, ok := i.IsSingleton(); ok {
		c := location.Cell{Base: base, Offset: o, Size: size, Kind: location.Output}
		ns := s
		for _, e := range cs.Overlapping(c) {
			if !e.Equal(c) {
				ns = ns.dropCell(base, e)
			}
		}
		ns = ns.withCells(base, ns.cellsOf(base).Insert(c))
		return []location.Cell{c}, ns
	}

	// Range case: I is not a singleton. "Determine how many distinct write
	// offsets land exactly on c'" reduces, for a fixed access size, to
	// testing whether c'.Offset lies in I and c'.Size == size — an interval
	// contains at most one integer equal to any given value, so that
	// membership test *is* the "exactly one" count spec.md describes.
	lo, hi := i.Lo(), i.Hi()
	if !lo.IsFinite() || !hi.IsFinite() {
		// An unbounded write offset could land anywhere in this base;
		// nothing can be soundly kept for a weak update.
		return nil, s.dropAllCells(base)
	}
	rangeHi := hi.Number().Add(number.FromInt64(int64(size) - 1))
	probe := location.Cell{Base: base, Offset: lo.Number(), Size: uint64(rangeHi.Sub(lo.Number()).Int64()) + 1, Kind: location.Output}

	var kept []location.Cell
	ns := s
	for _, e := range cs.Overlapping(probe) {
		if e.Size == size && i.Contains(e.Offset) {
			kept = append(kept, e)
		} else {
			ns = ns.dropCell(base, e)
		}
	}
	return kept, ns
}

// realizeRead implements spec.md section 4.10's realize_read(base, offset,
// size): attempts to construct an Input (or reuse a matching Output) cell
// for a single concrete read. Like realize_write, a non-singleton offset
// interval is handled conservatively (give up) — the reference algorithm
// only describes the single-cell construction; a range read has no
// single cell to hand back, so the caller always loses precision there.
func (s *State) realizeRead(base location.MemoryLocation, offsetVar variable.Variable, size uint64) (location.Cell, *State, bool) {
	i := s.offsetInterval(offsetVar)
	if i.IsBottom() {
		return location.Cell{}, Bottom(s.numTop()), false
	}
	o, ok := i.IsSingleton()
	if !ok {
		return location.Cell{}, s, false
	}

	cs := s.cellsOf(base)
	outProbe := location.Cell{Base: base, Offset: o, Size: size, Kind: location.Output}
	if exact, ok := cs.Lookup(outProbe); ok {
		return exact, s, true
	}
	overlapping := cs.Overlapping(outProbe)
	if len(overlapping) == 0 {
		inProbe := location.Cell{Base: base, Offset: o, Size: size, Kind: location.Input}
		if exact, ok := cs.Lookup(inProbe); ok {
			return exact, s, true
		}
		ns := s.withCells(base, cs.Insert(inProbe))
		return inProbe, ns, true
	}
	// One or more Output cells overlap without matching exactly: per
	// spec.md, give up (the caller forgets its read target).
	return location.Cell{}, s, false
}
