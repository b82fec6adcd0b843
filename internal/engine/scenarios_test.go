package engine

import (
	"testing"

	"absint/internal/actx"
	"absint/internal/number"
	"absint/internal/numdomain"
	"absint/internal/uninit"
	"absint/internal/variable"
)

func newTop(ctx *actx.Context) *State { return Top(ctx, numdomain.TopInterval()) }

// S1 (interval assign-then-read).
func TestScenarioIntervalAssignThenRead(t *testing.T) {
	ctx := actx.New()
	s := newTop(ctx)
	x := ctx.FreshVariable("x", variable.Int, 32, number.Signed)
	y := ctx.FreshVariable("y", variable.Int, 32, number.Signed)
	z := ctx.FreshVariable("z", variable.Int, 32, number.Signed)

	s = s.Assign(x, numdomain.ConstExpr{N: number.FromInt64(5)})
	s = s.Assign(y, numdomain.ConstExpr{N: number.FromInt64(7)})
	s = s.Apply(numdomain.OpAdd, z, x, numdomain.VarOperand(y))

	got := s.IntToInterval(z)
	n, ok := got.IsSingleton()
	if !ok || !n.Equal(number.FromInt64(12)) {
		t.Fatalf("expected singleton 12, got %v", got)
	}
}

// S2 (join precision).
func TestScenarioJoinPrecision(t *testing.T) {
	ctx := actx.New()
	x := ctx.FreshVariable("x", variable.Int, 32, number.Signed)

	a := newTop(ctx).Assign(x, numdomain.ConstExpr{N: number.FromInt64(0)})
	b := newTop(ctx).Assign(x, numdomain.ConstExpr{N: number.FromInt64(10)})
	joined := a.Join(b)

	got := joined.IntToInterval(x)
	lo, hi := got.Lo(), got.Hi()
	if !lo.IsFinite() || !hi.IsFinite() || !lo.Number().Equal(number.FromInt64(0)) || !hi.Number().Equal(number.FromInt64(10)) {
		t.Fatalf("expected [0,10], got %v", got)
	}
}

// S3 (cell strong update).
func TestScenarioCellStrongUpdate(t *testing.T) {
	ctx := actx.New()
	s := newTop(ctx)
	m := ctx.StackSlot("f", "m")
	p := ctx.FreshVariable("p", variable.Pointer, 64, number.Unsigned)
	x := ctx.FreshVariable("x", variable.Int, 32, number.Signed)

	s = s.AssignAddr(p, m, uninit.NonNull())
	s, err := s.Store(p, variable.IntConst(number.FromInt64(42), 32, 0), 4)
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	s, err = s.Load(x, p, 4)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	got := s.IntToInterval(x)
	n, ok := got.IsSingleton()
	if !ok || !n.Equal(number.FromInt64(42)) {
		t.Fatalf("expected singleton 42, got %v", got)
	}
}

// S4 (cell weak update via two points-to).
//
// p's two-location points-to set ({m,n}) can only arise from joining two
// branches that each bind p to one singleton location (AssignAddr never
// builds a multi-location PointsToSet directly), so both branches are built
// from a common prestate that already knows both cells' values through two
// dedicated, never-ambiguous pointers (qm, qn) before p is bound. That way
// the two branches being joined agree on every cell, and the join only
// disagrees on which single location p itself points to — exactly the
// precondition internal/pointer.PointsToSet.Join needs to produce the
// genuine weak alias {m,n} instead of losing either cell to an
// absent-on-one-side drop.
func TestScenarioCellWeakUpdate(t *testing.T) {
	ctx := actx.New()
	m := ctx.StackSlot("f", "m")
	n := ctx.StackSlot("f", "n")
	p := ctx.FreshVariable("p", variable.Pointer, 64, number.Unsigned)
	qm := ctx.FreshVariable("qm", variable.Pointer, 64, number.Unsigned)
	qn := ctx.FreshVariable("qn", variable.Pointer, 64, number.Unsigned)
	x := ctx.FreshVariable("x", variable.Int, 32, number.Signed)

	common := newTop(ctx).AssignAddr(qm, m, uninit.NonNull())
	common, err := common.Store(qm, variable.IntConst(number.FromInt64(1), 32, 0), 4)
	if err != nil {
		t.Fatal(err)
	}
	common = common.AssignAddr(qn, n, uninit.NonNull())
	common, err = common.Store(qn, variable.IntConst(number.FromInt64(2), 32, 0), 4)
	if err != nil {
		t.Fatal(err)
	}

	sm := common.AssignAddr(p, m, uninit.NonNull())
	sn := common.AssignAddr(p, n, uninit.NonNull())
	joined := sm.Join(sn)

	joined, err = joined.Store(p, variable.IntConst(number.FromInt64(3), 32, 0), 4)
	if err != nil {
		t.Fatal(err)
	}
	joined, err = joined.Load(x, p, 4)
	if err != nil {
		t.Fatal(err)
	}
	got := joined.IntToInterval(x)
	lo, hi := got.Lo(), got.Hi()
	if !lo.IsFinite() || !hi.IsFinite() || !lo.Number().Equal(number.FromInt64(1)) || !hi.Number().Equal(number.FromInt64(3)) {
		t.Fatalf("expected [1,3], got %v", got)
	}
}

// S5 (null dereference).
func TestScenarioNullDereference(t *testing.T) {
	ctx := actx.New()
	s := newTop(ctx)
	p := ctx.FreshVariable("p", variable.Pointer, 64, number.Unsigned)
	x := ctx.FreshVariable("x", variable.Int, 32, number.Signed)

	s = s.AssignNull(p)
	s, err := s.Load(x, p, 4)
	if err == nil {
		t.Fatal("expected a definite null-dereference error")
	}
	if !s.IsBottom() {
		t.Fatal("expected the post-state to collapse to bottom")
	}
}

func TestUnreachableIsBottom(t *testing.T) {
	ctx := actx.New()
	s := newTop(ctx).Unreachable()
	if !s.IsBottom() {
		t.Fatal("unreachable must collapse to bottom")
	}
}

func TestAllocateThenDoubleFreeIsDefiniteError(t *testing.T) {
	ctx := actx.New()
	s := newTop(ctx)
	m, s, err := s.Allocate("malloc@f:1")
	if err != nil {
		t.Fatalf("unexpected allocation error: %v", err)
	}
	s, err = s.Deallocate(m)
	if err != nil {
		t.Fatalf("unexpected first free: %v", err)
	}
	_, err = s.Deallocate(m)
	if err == nil {
		t.Fatal("expected a double-free error on the second deallocation")
	}
}
