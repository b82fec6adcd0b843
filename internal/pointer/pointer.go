// Package pointer implements the points-to and pointer value domain of
// spec.md section 4.8: for each pointer variable, a PointsToSet, a Nullity,
// an Initialization, and the identity of the numerical "shadow" variable
// that carries offset(p) in whichever embedded numerical domain
// internal/scalar currently has selected.
//
// This package deliberately does not perform numerical arithmetic itself:
// offset(p) is just another variable.Variable key in the embedded
// numdomain.Numerical environment, so pointer.Domain only tracks which
// shadow variable belongs to which pointer and returns small descriptors
// (Realize, Constraint) telling the caller which Apply/AddConstraint to run
// against that embedded domain to keep offsets consistent. This mirrors how
// internal/numdomain's relational domains (dbm, octagon) stay ignorant of
// the scalar/pointer layers above them — each layer only knows the layer
// directly below it.
package pointer

import (
	"fmt"

	"absint/internal/location"
	"absint/internal/number"
	"absint/internal/numdomain"
	"absint/internal/patricia"
	"absint/internal/uninit"
	"absint/internal/variable"
)

// PointsToSet is a finite set of memory locations, or top ("could point
// anywhere", which spec.md section 4.8 says disables offset reasoning).
// There is no explicit bottom constructor: the empty set (no location
// reachable here yet) already serves as bottom, same as every other
// Patricia-tree-backed set in this module.
type PointsToSet struct {
	top bool
	set *patricia.Set[location.MemoryLocation]
}

func EmptyPTS() *PointsToSet { return &PointsToSet{set: patricia.EmptySet[location.MemoryLocation]()} }
func TopPTS() *PointsToSet   { return &PointsToSet{top: true} }

func SingletonPTS(m location.MemoryLocation) *PointsToSet {
	return &PointsToSet{set: patricia.EmptySet[location.MemoryLocation]().Insert(m)}
}

func (s *PointsToSet) IsTop() bool    { return s.top }
func (s *PointsToSet) IsBottom() bool { return !s.top && s.set.Size() == 0 }

// Singleton returns the one location in s, if s holds exactly one.
func (s *PointsToSet) Singleton() (location.MemoryLocation, bool) {
	if s.top || s.set.Size() != 1 {
		return location.MemoryLocation{}, false
	}
	var only location.MemoryLocation
	s.set.ForEach(func(m location.MemoryLocation) { only = m })
	return only, true
}

func (s *PointsToSet) Join(o *PointsToSet) *PointsToSet {
	if s.top || o.top {
		return TopPTS()
	}
	return &PointsToSet{set: s.set.Union(o.set)}
}

func (s *PointsToSet) Meet(o *PointsToSet) *PointsToSet {
	if s.top {
		return o
	}
	if o.top {
		return s
	}
	return &PointsToSet{set: s.set.Intersect(o.set)}
}

func (s *PointsToSet) Leq(o *PointsToSet) bool {
	if o.top {
		return true
	}
	if s.top {
		return false
	}
	return s.set.Subset(o.set)
}

// ForEachAddr calls f once per location in s, in ascending index order. It
// must not be called on a top set (callers check IsTop first, same as
// every other Patricia-tree-backed set in this module).
func (s *PointsToSet) ForEachAddr(f func(location.MemoryLocation)) {
	s.set.ForEach(f)
}

func (s *PointsToSet) String() string {
	if s.top {
		return "top"
	}
	str := "{"
	first := true
	s.set.ForEach(func(m location.MemoryLocation) {
		if !first {
			str += ", "
		}
		first = false
		str += m.String()
	})
	return str + "}"
}

// State is the per-pointer-variable tuple spec.md section 4.8 describes.
// HasOffset is false until the pointer has been assigned at least once;
// until then offset(p) has no shadow variable yet and offset reasoning is
// unavailable regardless of Addr.
type State struct {
	Addr      *PointsToSet
	Offset    variable.Variable
	HasOffset bool
	Null      uninit.Nullity
	Init      uninit.Initialization
}

func topState() State {
	return State{Addr: TopPTS(), Null: uninit.NullityTop(), Init: uninit.InitTop()}
}

func (s State) isBottom() bool {
	return s.Addr.IsBottom() || s.Null.IsBottom() || s.Init.IsBottom()
}

func (s State) isTop() bool {
	return s.Addr.IsTop() && !s.HasOffset && s.Null.IsTop() && s.Init.IsTop()
}

func (s State) join(o State) State {
	r := State{Addr: s.Addr.Join(o.Addr), Null: s.Null.Join(o.Null), Init: s.Init.Join(o.Init)}
	if s.HasOffset && o.HasOffset && s.Offset == o.Offset {
		r.Offset, r.HasOffset = s.Offset, true
	}
	return r
}

func (s State) meet(o State) State {
	r := State{Addr: s.Addr.Meet(o.Addr), Null: s.Null.Meet(o.Null), Init: s.Init.Meet(o.Init)}
	switch {
	case s.HasOffset:
		r.Offset, r.HasOffset = s.Offset, true
	case o.HasOffset:
		r.Offset, r.HasOffset = o.Offset, true
	}
	return r
}

func (s State) leq(o State) bool {
	if o.HasOffset && (!s.HasOffset || s.Offset != o.Offset) {
		return false
	}
	return s.Addr.Leq(o.Addr) && s.Null.Leq(o.Null) && s.Init.Leq(o.Init)
}

func (s State) String() string {
	off := "none"
	if s.HasOffset {
		off = fmt.Sprintf("%v", s.Offset)
	}
	return fmt.Sprintf("{addr=%s off=%s null=%s init=%s}", s.Addr, off, s.Null, s.Init)
}

// Domain is the pointwise-over-pointer-variables lift of State.
type Domain struct {
	bottom bool
	env    *patricia.Map[variable.Variable, State]
}

func Top() *Domain {
	return &Domain{env: patricia.Empty[variable.Variable, State]()}
}

func Bottom() *Domain {
	return &Domain{bottom: true, env: patricia.Empty[variable.Variable, State]()}
}

func (d *Domain) IsBottom() bool { return d.bottom }
func (d *Domain) IsTop() bool    { return !d.bottom && d.env.Size() == 0 }

// Get returns p's current state, top if p has never been constrained.
func (d *Domain) Get(p variable.Variable) State {
	if d.bottom {
		return topState()
	}
	v, ok := d.env.Lookup(p)
	if !ok {
		return topState()
	}
	return v
}

func (d *Domain) set(p variable.Variable, s State) *Domain {
	if d.bottom {
		return d
	}
	if s.isBottom() {
		return Bottom()
	}
	if s.isTop() {
		return &Domain{env: d.env.Erase(p)}
	}
	return &Domain{env: d.env.Insert(p, s)}
}

// Forget drops all pointer information about p.
func (d *Domain) Forget(p variable.Variable) *Domain {
	if d.bottom {
		return d
	}
	return &Domain{env: d.env.Erase(p)}
}

// AssignAddr implements pointer_assign(p, &m, nullity): points-to becomes
// {m}, offset(p) is bound to the given (already-zeroed by the caller)
// shadow variable, nullity is set as given.
func (d *Domain) AssignAddr(p variable.Variable, m location.MemoryLocation, offsetVar variable.Variable, null uninit.Nullity) *Domain {
	return d.set(p, State{Addr: SingletonPTS(m), Offset: offsetVar, HasOffset: true, Null: null, Init: uninit.Initialized()})
}

// AssignNull implements pointer_assign_null(p): nullity becomes Null, and
// offset(p) is bound to the given (already-zeroed) shadow variable.
// Address set is left at top rather than the empty set: PointsToSet's
// empty set already means bottom (section 4.8's "no explicit bottom
// constructor"), and a null pointer is a valid, reachable state, not an
// unreachable one — it is Nullity, not the address set, that a dereference
// must consult to detect the null-dereference error (section 4.10).
func (d *Domain) AssignNull(p variable.Variable, offsetVar variable.Variable) *Domain {
	return d.set(p, State{Addr: TopPTS(), Offset: offsetVar, HasOffset: true, Null: uninit.Null(), Init: uninit.Initialized()})
}

// Realize describes x := y + n (or x := n if HasSrc is false, meaning the
// source pointer carries no offset shadow variable yet) that the caller
// must apply to the embedded numerical domain to keep offset(p) in sync
// with an AssignCopy.
type Realize struct {
	Dst    variable.Variable
	Src    variable.Variable
	HasSrc bool
	Const  number.Number
}

// AssignCopy implements pointer_assign(p, q, off): copies q's address set
// and nullity to p, binds offset(p) to offsetVarP (p's existing or
// newly-allocated shadow variable, supplied by the caller since shadow
// variable allocation belongs to internal/actx), and returns the Realize
// descriptor for offset(p) = offset(q) + off.
func (d *Domain) AssignCopy(p, q variable.Variable, offsetVarP variable.Variable, off number.Number) (*Domain, Realize) {
	qs := d.Get(q)
	nd := d.set(p, State{Addr: qs.Addr, Offset: offsetVarP, HasOffset: true, Null: qs.Null, Init: uninit.Initialized()})
	return nd, Realize{Dst: offsetVarP, Src: qs.Offset, HasSrc: qs.HasOffset, Const: off}
}

// Constraint is an offset relation the caller should additionally install
// in the embedded numerical domain via AddConstraint.
type Constraint struct {
	Pred numdomain.CompareOp
	X, Y variable.Variable
}

// Compare implements pointer_add(pred, p, q) for pred in {CmpEq, CmpNe}:
// equality meets address sets (and nullity/initialization) and reports that
// offset(p) and offset(q) should be unified; disequality with singleton,
// equal address sets reports that the offsets must differ. A top address
// set on either side disables offset reasoning, per spec.md section 4.8.
func (d *Domain) Compare(pred numdomain.CompareOp, p, q variable.Variable) (*Domain, *Constraint) {
	ps, qs := d.Get(p), d.Get(q)
	switch pred {
	case numdomain.CmpEq:
		addr := ps.Addr.Meet(qs.Addr)
		if addr.IsBottom() {
			return Bottom(), nil
		}
		null := ps.Null.Meet(qs.Null)
		init := ps.Init.Meet(qs.Init)
		nd := d.set(p, State{Addr: addr, Offset: ps.Offset, HasOffset: ps.HasOffset, Null: null, Init: init})
		nd = nd.set(q, State{Addr: addr, Offset: qs.Offset, HasOffset: qs.HasOffset, Null: null, Init: init})
		if ps.HasOffset && qs.HasOffset && !ps.Addr.IsTop() && !qs.Addr.IsTop() {
			return nd, &Constraint{Pred: numdomain.CmpEq, X: ps.Offset, Y: qs.Offset}
		}
		return nd, nil
	case numdomain.CmpNe:
		pm, pmOk := ps.Addr.Singleton()
		qm, qmOk := qs.Addr.Singleton()
		if pmOk && qmOk && pm.Equal(qm) && ps.HasOffset && qs.HasOffset {
			return d, &Constraint{Pred: numdomain.CmpNe, X: ps.Offset, Y: qs.Offset}
		}
		return d, nil
	default:
		return d, nil
	}
}

func (d *Domain) Leq(o *Domain) bool {
	if d.bottom {
		return true
	}
	if o.bottom {
		return false
	}
	ok := true
	d.env.ForEach(func(p variable.Variable, s State) {
		if !s.leq(o.Get(p)) {
			ok = false
		}
	})
	return ok
}

func (d *Domain) Join(o *Domain) *Domain {
	if d.bottom {
		return o
	}
	if o.bottom {
		return d
	}
	r := Top()
	d.env.ForEach(func(p variable.Variable, s State) {
		j := s.join(o.Get(p))
		if !j.isTop() {
			r.env = r.env.Insert(p, j)
		}
	})
	o.env.ForEach(func(p variable.Variable, s State) {
		if _, ok := d.env.Lookup(p); ok {
			return
		}
		j := topState().join(s)
		if !j.isTop() {
			r.env = r.env.Insert(p, j)
		}
	})
	return r
}

func (d *Domain) Meet(o *Domain) *Domain {
	if d.bottom || o.bottom {
		return Bottom()
	}
	r := Top()
	bottom := false
	d.env.ForEach(func(p variable.Variable, s State) {
		m := s.meet(o.Get(p))
		if m.isBottom() {
			bottom = true
		}
		if !m.isTop() {
			r.env = r.env.Insert(p, m)
		}
	})
	o.env.ForEach(func(p variable.Variable, s State) {
		if _, ok := d.env.Lookup(p); ok {
			return
		}
		if !s.isTop() {
			r.env = r.env.Insert(p, s)
		}
	})
	if bottom {
		return Bottom()
	}
	return r
}

// Widening/Narrowing: address sets and nullity/initialization all have
// finite height, so join/meet already terminate; defined for interface
// parity with the numerical domains.
func (d *Domain) Widening(o *Domain) *Domain  { return d.Join(o) }
func (d *Domain) Narrowing(o *Domain) *Domain { return d.Meet(o) }

func (d *Domain) String() string {
	if d.bottom {
		return "bottom"
	}
	s := "{"
	first := true
	d.env.ForEach(func(p variable.Variable, st State) {
		if !first {
			s += ", "
		}
		first = false
		s += fmt.Sprintf("%v: %s", p, st)
	})
	return s + "}"
}
