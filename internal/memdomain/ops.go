package memdomain

import (
	"absint/internal/aerrors"
	"absint/internal/bound"
	"absint/internal/location"
	"absint/internal/number"
	"absint/internal/numdomain"
	"absint/internal/pointer"
	"absint/internal/uninit"
	"absint/internal/variable"
)

// nullOrUninitCheck implements the "if p may be null or uninitialized ->
// bottom" guard spec.md section 4.10 opens mem_write/mem_read with. Only a
// *definite* Null/Uninitialized fact collapses the state: a pointer whose
// nullity is still top is a *possible* error, which this domain does not
// itself flag (internal/scalar.Domain.PointerRead's doc comment makes the
// same distinction) — a checker client compares the invariant against its
// own safety precondition for that case.
func nullOrUninitCheck(ps pointer.State) *aerrors.AnalysisError {
	if ps.Null.IsNull() {
		return aerrors.New(aerrors.NullDereference, "pointer is definitely null", aerrors.Location{})
	}
	if ps.Init.IsUninitialized() {
		return aerrors.New(aerrors.UninitializedRead, "pointer is definitely uninitialized", aerrors.Location{})
	}
	return nil
}

// reachableBases collects ps's finite points-to set into a slice; callers
// must check !ps.Addr.IsTop() first.
func reachableBases(ps pointer.State) []location.MemoryLocation {
	var bases []location.MemoryLocation
	ps.Addr.ForEachAddr(func(m location.MemoryLocation) { bases = append(bases, m) })
	return bases
}

// scalarView is the narrow read-only slice of the scalar state writeLiteral
// needs.
type scalarView struct {
	num numdomain.Numerical
	ptr *pointer.Domain
}

// writeLiteral computes the value to install into a cell's synthetic
// scalar variable sv, applying the int<->pointer reduction section 4.10
// requires: a null pointer literal, or a definitely-null pointer-valued
// source variable, both read as the integer 0; any other pointer-typed
// source is soundly forgotten, since a cell's scalar variable is always
// integer-kinded (internal/location.ScalarVar) and cannot itself carry a
// points-to set back out of memory.
func writeLiteral(d *scalarView, sv variable.Variable, lit variable.Literal) numdomain.Numerical {
	switch lit.Kind() {
	case variable.LitIntConst:
		n, _, _ := lit.IntValue()
		return d.num.Set(sv, bound.Singleton(n))
	case variable.LitNullPointer:
		return d.num.Set(sv, bound.SingletonInt64(0))
	case variable.LitUndef, variable.LitFloatConst:
		return d.num.Forget(sv)
	case variable.LitVarRef:
		v := lit.Variable()
		if v.Kind() == variable.Pointer {
			if d.ptr.Get(v).Null.IsNull() {
				return d.num.Set(sv, bound.SingletonInt64(0))
			}
			return d.num.Forget(sv)
		}
		return d.num.Set(sv, d.num.ToInterval(v))
	default:
		return d.num.Forget(sv)
	}
}

// MemWrite implements spec.md section 4.10's mem_write(p, literal, size).
func (s *State) MemWrite(p variable.Variable, lit variable.Literal, size uint64) (*State, *aerrors.AnalysisError) {
	if s.bottom {
		return s, nil
	}
	ps := s.Scalar.Ptr.Get(p)
	if err := nullOrUninitCheck(ps); err != nil {
		return Bottom(s.numTop()), err
	}
	if ps.Addr.IsTop() {
		return s.dropEverything(), nil
	}
	bases := reachableBases(ps)
	if !ps.HasOffset {
		result := s
		for _, base := range bases {
			result = result.dropAllCells(base)
		}
		return result, nil
	}

	_, exact := s.offsetInterval(ps.Offset).IsSingleton()
	strong := len(bases) == 1 && exact
	result := s
	for _, base := range bases {
		cells, ns := result.realizeWrite(base, ps.Offset, size)
		if ns.IsBottom() {
			return Bottom(s.numTop()), nil
		}
		result = ns
		thisStrong := strong && len(cells) == 1
		for _, c := range cells {
			sv := location.ScalarVar(c)
			view := &scalarView{num: result.Scalar.Num, ptr: result.Scalar.Ptr}
			newVal := writeLiteral(view, sv, lit)
			if thisStrong {
				result.Scalar = result.Scalar.WithNum(newVal)
			} else {
				old := result.Scalar.Num.ToInterval(sv)
				joined := old.Join(newVal.ToInterval(sv))
				result.Scalar = result.Scalar.WithNum(result.Scalar.Num.Set(sv, joined))
			}
		}
	}
	return result.collapseIfBottom(), nil
}

// forgetVar builds a new State with lhs forgotten from the scalar domain,
// everything else held fixed — the shared "give up on this read" exit used
// throughout MemRead.
func (s *State) forgetVar(lhs variable.Variable) *State {
	return &State{cells: s.cells, Scalar: s.Scalar.Forget(lhs), Life: s.Life}
}

// MemRead implements spec.md section 4.10's mem_read(lhs, p, size): reads
// through p's points-to set, strong-updating lhs from the first realized
// cell and weak-updating (joining) from the rest.
func (s *State) MemRead(lhs variable.Variable, p variable.Variable, size uint64) (*State, *aerrors.AnalysisError) {
	if s.bottom {
		return s, nil
	}
	ps := s.Scalar.Ptr.Get(p)
	if err := nullOrUninitCheck(ps); err != nil {
		return Bottom(s.numTop()), err
	}
	if ps.Addr.IsTop() || !ps.HasOffset {
		return s.forgetVar(lhs), nil
	}
	bases := reachableBases(ps)

	result := s
	var acc bound.Interval
	first := true
	for _, base := range bases {
		c, ns, ok := result.realizeRead(base, ps.Offset, size)
		result = ns
		if result.IsBottom() {
			return Bottom(s.numTop()), nil
		}
		if !ok {
			return result.forgetVar(lhs), nil
		}
		v := result.Scalar.Num.ToInterval(location.ScalarVar(c))
		if first {
			acc = v
			first = false
		} else {
			acc = acc.Join(v)
		}
	}
	result.Scalar = result.Scalar.WithNum(result.Scalar.Num.Set(lhs, acc))
	return result.collapseIfBottom(), nil
}

// lowerBound extracts a concrete, finite lower bound (in bytes, >= 1) from
// a size expression's interval, if one exists.
func lowerBound(i bound.Interval) (int64, bool) {
	if i.IsBottom() {
		return 0, false
	}
	lo := i.Lo()
	if !lo.IsFinite() {
		return 0, false
	}
	n := lo.Number()
	if !n.FitsInt64() || n.Int64() < 1 {
		return 0, false
	}
	return n.Int64(), true
}

// forgetRange drops every cell of base whose byte range could overlap a
// write landing anywhere in [offI.Lo, offI.Hi + lb - 1] — the sound
// "forget whatever the write might have touched" fallback mem_copy/mem_set
// use when an exact byte-for-byte plan is unavailable.
func (s *State) forgetRange(base location.MemoryLocation, offI bound.Interval, lb int64) *State {
	lo, hi := offI.Lo(), offI.Hi()
	if !lo.IsFinite() || !hi.IsFinite() {
		return s.dropAllCells(base)
	}
	loN := lo.Number()
	hiN := hi.Number().Add(number.FromInt64(lb - 1))
	probe := location.Cell{Base: base, Offset: loN, Size: uint64(hiN.Sub(loN).Int64()) + 1, Kind: location.Output}
	result := s
	for _, c := range s.cellsOf(base).Overlapping(probe) {
		result = result.dropCell(base, c)
	}
	return result
}

// fullyInside reports whether [cLo, cHi] lies entirely within [lo, hi].
func fullyInside(cLo, cHi, lo, hi number.Number) bool {
	return !cLo.LessThan(lo) && !hi.LessThan(cHi)
}

// zeroRange strong/weak-updates every cell of base fully enclosed in
// [offI.Lo, offI.Lo+lb-1] to 0, dropping cells that only partially overlap
// it (spec.md section 4.10's mem_set rule). The update is strong only when
// offI is itself a singleton, i.e. the destination offset is exact.
func (s *State) zeroRange(base location.MemoryLocation, offI bound.Interval, lb int64) *State {
	lo := offI.Lo()
	if !lo.IsFinite() {
		return s.dropAllCells(base)
	}
	loN := lo.Number()
	hiN := loN.Add(number.FromInt64(lb - 1))
	probe := location.Cell{Base: base, Offset: loN, Size: uint64(lb), Kind: location.Output}
	_, strong := offI.IsSingleton()

	result := s
	for _, c := range s.cellsOf(base).Overlapping(probe) {
		cLo := c.Offset
		cHi := c.Offset.Add(number.FromInt64(int64(c.Size) - 1))
		if !fullyInside(cLo, cHi, loN, hiN) {
			result = result.dropCell(base, c)
			continue
		}
		sv := location.ScalarVar(c)
		if strong {
			result.Scalar = result.Scalar.WithNum(result.Scalar.Num.Set(sv, bound.SingletonInt64(0)))
		} else {
			old := result.Scalar.Num.ToInterval(sv)
			result.Scalar = result.Scalar.WithNum(result.Scalar.Num.Set(sv, old.Join(bound.SingletonInt64(0))))
		}
	}
	return result
}

// MemCopy implements spec.md section 4.10's mem_copy(dest, src, size): the
// whole destination range covered by size's lower bound is first soundly
// forgotten (or dropped entirely if the bound or destination is unknown);
// when both pointers are additionally exact (singleton address, singleton
// offset) every src Output cell lying entirely within the definitely-read
// range is then copied verbatim to the matching dest offset.
func (s *State) MemCopy(dest, src variable.Variable, size numdomain.Expr) (*State, *aerrors.AnalysisError) {
	if s.bottom {
		return s, nil
	}
	dp := s.Scalar.Ptr.Get(dest)
	sp := s.Scalar.Ptr.Get(src)
	if err := nullOrUninitCheck(dp); err != nil {
		return Bottom(s.numTop()), err
	}
	if err := nullOrUninitCheck(sp); err != nil {
		return Bottom(s.numTop()), err
	}
	if dp.Addr.IsTop() {
		return s.dropEverything(), nil
	}

	sizeI := size.Eval(s.Scalar.Num)
	sizeLb, lbOk := lowerBound(sizeI)
	destBases := reachableBases(dp)
	dOffI := s.Scalar.Num.ToInterval(dp.Offset)

	result := s
	for _, base := range destBases {
		if !dp.HasOffset || !lbOk {
			result = result.dropAllCells(base)
			continue
		}
		result = result.forgetRange(base, dOffI, sizeLb)
	}
	if result.IsBottom() {
		return Bottom(s.numTop()), nil
	}

	dm, dmOk := dp.Addr.Singleton()
	sm, smOk := sp.Addr.Singleton()
	dOff, dExact := dOffI.IsSingleton()
	sOffI := s.Scalar.Num.ToInterval(sp.Offset)
	sOff, sExact := sOffI.IsSingleton()

	if dmOk && smOk && dp.HasOffset && sp.HasOffset && dExact && sExact && lbOk {
		srcLo := sOff
		srcHi := sOff.Add(number.FromInt64(sizeLb - 1))
		for _, c := range result.cellsOf(sm).OfKind(location.Output) {
			cLo := c.Offset
			cHi := c.Offset.Add(number.FromInt64(int64(c.Size) - 1))
			if !fullyInside(cLo, cHi, srcLo, srcHi) {
				continue
			}
			destOff := c.Offset.Sub(sOff).Add(dOff)
			destCell := location.Cell{Base: dm, Offset: destOff, Size: c.Size, Kind: location.Output}
			sv := location.ScalarVar(c)
			dv := location.ScalarVar(destCell)
			val := result.Scalar.Num.ToInterval(sv)
			result = result.withCells(dm, result.cellsOf(dm).Insert(destCell))
			result.Scalar = result.Scalar.WithNum(result.Scalar.Num.Set(dv, val))
		}
	}
	return result.collapseIfBottom(), nil
}

// MemSet implements spec.md section 4.10's mem_set(dest, value, size). A
// zero value with a known size lower bound zeroes every fully-enclosed
// cell in the definitely-overwritten sub-range; any other value, or an
// unknown size, soundly forgets the whole reachable range instead.
func (s *State) MemSet(dest variable.Variable, value variable.Literal, size numdomain.Expr) (*State, *aerrors.AnalysisError) {
	if s.bottom {
		return s, nil
	}
	dp := s.Scalar.Ptr.Get(dest)
	if err := nullOrUninitCheck(dp); err != nil {
		return Bottom(s.numTop()), err
	}
	if dp.Addr.IsTop() {
		return s.dropEverything(), nil
	}

	sizeI := size.Eval(s.Scalar.Num)
	sizeLb, lbOk := lowerBound(sizeI)
	isZero := value.Kind() == variable.LitIntConst
	if isZero {
		n, _, _ := value.IntValue()
		isZero = n.IsZero()
	}

	bases := reachableBases(dp)
	dOffI := s.Scalar.Num.ToInterval(dp.Offset)

	result := s
	for _, base := range bases {
		switch {
		case !dp.HasOffset || !lbOk:
			result = result.dropAllCells(base)
		case !isZero:
			result = result.forgetRange(base, dOffI, sizeLb)
		default:
			result = result.zeroRange(base, dOffI, sizeLb)
		}
	}
	return result.collapseIfBottom(), nil
}

// MemForget drops all cells of base (mem_forget(addr) in the forget
// taxonomy).
func (s *State) MemForget(base location.MemoryLocation) *State {
	if s.bottom {
		return s
	}
	return s.dropAllCells(base)
}

// MemForgetRange drops every cell of base that could overlap a region of
// at least size bytes starting somewhere in offset.
func (s *State) MemForgetRange(base location.MemoryLocation, offset bound.Interval, size int64) *State {
	if s.bottom {
		return s
	}
	return s.forgetRange(base, offset, size)
}

// MemForgetReachable implements mem_forget(addr) iterated over p's
// points-to set, dropping everything if the set is top.
func (s *State) MemForgetReachable(p variable.Variable) *State {
	if s.bottom {
		return s
	}
	ps := s.Scalar.Ptr.Get(p)
	if ps.Addr.IsTop() {
		return s.dropEverything()
	}
	result := s
	for _, base := range reachableBases(ps) {
		result = result.dropAllCells(base)
	}
	return result
}

// maxCellWidth is the byte width given to the single abstracted cell
// MemAbstractReachable installs; its scalar value is left at top (no
// Num.Set call), so the width only matters for overlap detection against
// subsequent accesses, and a generous width is conservative there.
const maxCellWidth = 1 << 32

// MemAbstractReachable implements mem_abstract_reachable(p): like
// MemForgetReachable, but installs a single maximally-wide Output cell in
// place of the dropped cells for each reachable base, representing
// "definitely touched, contents unknown" — used by the summary domain's
// composition step for a callee's writes through an escaped pointer
// parameter.
func (s *State) MemAbstractReachable(p variable.Variable) *State {
	if s.bottom {
		return s
	}
	ps := s.Scalar.Ptr.Get(p)
	if ps.Addr.IsTop() {
		return s.dropEverything()
	}
	result := s
	for _, base := range reachableBases(ps) {
		result = result.dropAllCells(base)
		wide := location.Cell{Base: base, Offset: number.Zero, Size: maxCellWidth, Kind: location.Output}
		result = result.withCells(base, result.cellsOf(base).Insert(wide))
	}
	return result
}

// AssertAllocated/AssertDeallocated implement the Lifetime half of spec.md
// section 4.10: asserting deallocated on an already-deallocated object (or
// allocated on one) collapses the state to bottom (double-free /
// use-after-free).
func (s *State) AssertAllocated(m location.MemoryLocation) (*State, *aerrors.AnalysisError) {
	if s.bottom {
		return s, nil
	}
	if s.Life.Get(m).IsFreed() {
		return Bottom(s.numTop()), aerrors.New(aerrors.UseAfterFree, "object already deallocated", aerrors.Location{})
	}
	return &State{cells: s.cells, Scalar: s.Scalar, Life: s.Life.Set(m, uninit.Live())}, nil
}

func (s *State) AssertDeallocated(m location.MemoryLocation) (*State, *aerrors.AnalysisError) {
	if s.bottom {
		return s, nil
	}
	if s.Life.Get(m).IsFreed() {
		return Bottom(s.numTop()), aerrors.New(aerrors.DoubleFree, "object already deallocated", aerrors.Location{})
	}
	ns := s.dropAllCells(m)
	return &State{cells: ns.cells, Scalar: ns.Scalar, Life: ns.Life.Set(m, uninit.Freed())}, nil
}
