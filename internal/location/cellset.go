package location

import "sort"

// CellSet is a finite ordered set of cells sharing one base memory
// location (DATA MODEL's CellSet(base)): for each CellKind, no two cells
// in the set overlap. Cell counts per object are small in practice (a
// handful of fields/array slots), so a sorted slice with linear-scan
// mutation is the simplest faithful representation; there is no need for
// the Patricia-tree machinery here since Cell has no single natural index
// field to branch on (offset alone is not unique across kinds).
type CellSet struct {
	cells []Cell
}

// EmptyCellSet is the cell set with no cells observed yet.
func EmptyCellSet() CellSet { return CellSet{} }

func (cs CellSet) Size() int { return len(cs.cells) }

// Lookup returns the stored cell equal to c, if any.
func (cs CellSet) Lookup(c Cell) (Cell, bool) {
	for _, e := range cs.cells {
		if e.Equal(c) {
			return e, true
		}
	}
	return Cell{}, false
}

// Overlapping returns every cell of the same Kind as probe that overlaps
// probe's byte range.
func (cs CellSet) Overlapping(probe Cell) []Cell {
	var out []Cell
	for _, e := range cs.cells {
		if e.Kind == probe.Kind && e.Overlaps(probe) {
			out = append(out, e)
		}
	}
	return out
}

// OfKind returns every cell of the given kind, in offset order.
func (cs CellSet) OfKind(k CellKind) []Cell {
	var out []Cell
	for _, e := range cs.cells {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// All returns every cell in the set, in (Kind, Offset) order.
func (cs CellSet) All() []Cell { return append([]Cell(nil), cs.cells...) }

// Insert returns a new set with c inserted, replacing any existing cell
// equal to c.
func (cs CellSet) Insert(c Cell) CellSet {
	out := cs.Remove(c).cells
	out = append(append([]Cell(nil), out...), c)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Offset.LessThan(out[j].Offset)
	})
	return CellSet{cells: out}
}

// Remove returns a new set with c removed (a no-op if c is absent).
func (cs CellSet) Remove(c Cell) CellSet {
	out := make([]Cell, 0, len(cs.cells))
	for _, e := range cs.cells {
		if !e.Equal(c) {
			out = append(out, e)
		}
	}
	return CellSet{cells: out}
}

// Union returns the set union of cs and o (used by the memory domain's
// Join, since an absent cell on one side already means "no information
// about this region", not "region is empty" — the scalar state's own
// pointwise join of the underlying cell variables is what actually
// enforces soundness when a cell is only tracked on one side).
func (cs CellSet) Union(o CellSet) CellSet {
	out := cs
	for _, c := range o.cells {
		out = out.Insert(c)
	}
	return out
}

// Intersect returns the set intersection of cs and o (used by Meet).
func (cs CellSet) Intersect(o CellSet) CellSet {
	var out CellSet
	for _, c := range cs.cells {
		if _, ok := o.Lookup(c); ok {
			out = out.Insert(c)
		}
	}
	return out
}
