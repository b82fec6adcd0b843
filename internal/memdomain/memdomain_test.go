package memdomain

import (
	"testing"

	"absint/internal/aerrors"
	"absint/internal/location"
	"absint/internal/number"
	"absint/internal/numdomain"
	"absint/internal/uninit"
	"absint/internal/variable"
)

func freshVar(id uint64, kind variable.Kind) variable.Variable {
	return variable.New(id, "v", kind, 32, 0)
}

func newTop() *State { return Top(numdomain.TopInterval()) }

// assignPointer points p at m with a zeroed offset shadow variable, the
// shared setup every scenario below needs before calling MemWrite/MemRead.
func assignPointer(s *State, p variable.Variable, m location.MemoryLocation, offsetVar variable.Variable) *State {
	s2 := &State{cells: s.cells, Scalar: s.Scalar.PointerAssignAddr(p, m, offsetVar, uninit.NonNull()), Life: s.Life}
	return s2
}

func TestMemWriteReadRoundTrip(t *testing.T) {
	s := newTop()
	base := location.NewStackSlot("f", "x")
	p := freshVar(1, variable.Pointer)
	off := freshVar(2, variable.Int)
	lhs := freshVar(3, variable.Int)

	s = assignPointer(s, p, base, off)
	s, err := s.MemWrite(p, variable.IntConst(number.FromInt64(42), 32, 0), 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.IsBottom() {
		t.Fatal("state collapsed to bottom on a sound write")
	}

	s, err = s.MemRead(lhs, p, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := s.Scalar.Num.ToInterval(lhs)
	if n, ok := got.IsSingleton(); !ok || !n.Equal(number.FromInt64(42)) {
		t.Fatalf("expected singleton 42, got %v", got)
	}
}

func TestMemWriteNullDereferenceIsDefiniteError(t *testing.T) {
	s := newTop()
	p := freshVar(1, variable.Pointer)
	off := freshVar(2, variable.Int)
	s.Scalar = s.Scalar.PointerAssignNull(p, off)

	_, err := s.MemWrite(p, variable.IntConst(number.FromInt64(1), 32, 0), 4)
	if err == nil {
		t.Fatal("expected a definite null-dereference error")
	}
}

func TestMemReadTopPointerIsNotDefiniteError(t *testing.T) {
	s := newTop()
	p := freshVar(1, variable.Pointer)
	lhs := freshVar(2, variable.Int)
	// p has never been assigned, so its pointer state and scalar.Domain.Init
	// entry are both top: reading through it is only a possible error.
	_, err := s.MemRead(lhs, p, 4)
	if err != nil {
		t.Fatalf("a merely top pointer is a possible, not definite, error: %v", err)
	}
}

func TestMemReadJoinsAcrossMultipleBases(t *testing.T) {
	a := location.NewStackSlot("f", "a")
	b := location.NewStackSlot("f", "b")
	p := freshVar(1, variable.Pointer)
	off := freshVar(2, variable.Int)
	qa := freshVar(3, variable.Pointer)
	qaOff := freshVar(4, variable.Int)
	qb := freshVar(5, variable.Pointer)
	qbOff := freshVar(6, variable.Int)
	lhs := freshVar(7, variable.Int)

	// A multi-location PointsToSet for p can only arise by joining two
	// singleton-pointer states, one per branch. For the join to keep both
	// cells' values rather than dropping whichever one is missing on the
	// other side, both branches are built from a common prestate that
	// already knows both cells (written through qa/qb, each unambiguous)
	// before p itself is pointed at a or b.
	common := newTop()
	common = assignPointer(common, qa, a, qaOff)
	common, err := common.MemWrite(qa, variable.IntConst(number.FromInt64(7), 32, 0), 4)
	if err != nil {
		t.Fatal(err)
	}
	common = assignPointer(common, qb, b, qbOff)
	common, err = common.MemWrite(qb, variable.IntConst(number.FromInt64(9), 32, 0), 4)
	if err != nil {
		t.Fatal(err)
	}

	sa := assignPointer(common, p, a, off)
	sb := assignPointer(common, p, b, off)
	joined := sa.Join(sb)

	joined, err = joined.MemRead(lhs, p, 4)
	if err != nil {
		t.Fatal(err)
	}
	got := joined.Scalar.Num.ToInterval(lhs)
	if got.IsBottom() {
		t.Fatal("joined read collapsed to bottom")
	}
	lo := got.Lo()
	hi := got.Hi()
	if !lo.IsFinite() || !hi.IsFinite() {
		t.Fatalf("expected a finite joined interval, got %v", got)
	}
}

func TestMemForgetDropsCell(t *testing.T) {
	s := newTop()
	base := location.NewStackSlot("f", "x")
	p := freshVar(1, variable.Pointer)
	off := freshVar(2, variable.Int)

	s = assignPointer(s, p, base, off)
	s, err := s.MemWrite(p, variable.IntConst(number.FromInt64(5), 32, 0), 4)
	if err != nil {
		t.Fatal(err)
	}
	if s.cellsOf(base).Size() == 0 {
		t.Fatal("expected a cell to have been synthesized")
	}
	s = s.MemForget(base)
	if s.cellsOf(base).Size() != 0 {
		t.Fatal("expected MemForget to drop all cells of base")
	}
}

func TestAssertDeallocatedTwiceIsDoubleFree(t *testing.T) {
	s := newTop()
	base := location.NewHeapAllocation("malloc@f:1")

	s2, err := s.AssertAllocated(base)
	if err != nil {
		t.Fatalf("first allocation assertion should not fail: %v", err)
	}
	s3, err := s2.AssertDeallocated(base)
	if err != nil {
		t.Fatalf("first deallocation should not fail: %v", err)
	}
	_, err = s3.AssertDeallocated(base)
	if err == nil || err.Kind != aerrors.DoubleFree {
		t.Fatalf("expected a double-free error, got %v", err)
	}
}

func TestAssertAllocatedAfterFreeIsUseAfterFree(t *testing.T) {
	s := newTop()
	base := location.NewHeapAllocation("malloc@f:2")

	s2, err := s.AssertAllocated(base)
	if err != nil {
		t.Fatal(err)
	}
	s3, err := s2.AssertDeallocated(base)
	if err != nil {
		t.Fatal(err)
	}
	_, err = s3.AssertAllocated(base)
	if err == nil {
		t.Fatal("expected a use-after-free error on re-allocating a freed object")
	}
}

func TestMemCopyExactRange(t *testing.T) {
	s := newTop()
	srcBase := location.NewStackSlot("f", "src")
	dstBase := location.NewStackSlot("f", "dst")
	sp := freshVar(1, variable.Pointer)
	dp := freshVar(2, variable.Pointer)
	srcOff := freshVar(3, variable.Int)
	dstOff := freshVar(4, variable.Int)
	lhs := freshVar(5, variable.Int)

	s = assignPointer(s, sp, srcBase, srcOff)
	s = assignPointer(s, dp, dstBase, dstOff)
	s, err := s.MemWrite(sp, variable.IntConst(number.FromInt64(99), 32, 0), 4)
	if err != nil {
		t.Fatal(err)
	}
	s, err = s.MemCopy(dp, sp, numdomain.ConstExpr{N: number.FromInt64(4)})
	if err != nil {
		t.Fatal(err)
	}
	s, err = s.MemRead(lhs, dp, 4)
	if err != nil {
		t.Fatal(err)
	}
	got := s.Scalar.Num.ToInterval(lhs)
	if n, ok := got.IsSingleton(); !ok || !n.Equal(number.FromInt64(99)) {
		t.Fatalf("expected the copied value 99, got %v", got)
	}
}
