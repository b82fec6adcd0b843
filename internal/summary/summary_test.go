package summary

import (
	"testing"

	"absint/internal/bound"
	"absint/internal/dbm"
	"absint/internal/location"
	"absint/internal/number"
	"absint/internal/numdomain"
)

func outCell(base location.MemoryLocation, offset int64, size uint64) location.Cell {
	return location.Cell{Base: base, Offset: number.FromInt64(offset), Size: size, Kind: location.Output}
}

func inCell(base location.MemoryLocation, offset int64, size uint64) location.Cell {
	return location.Cell{Base: base, Offset: number.FromInt64(offset), Size: size, Kind: location.Input}
}

func withCellValue(s *State, c location.Cell, v int64) *State {
	sv := location.ScalarVar(c)
	cs := s.cellsOf(c.Base).Insert(c)
	cells := s.cells.Insert(c.Base, cs)
	sc := s.Scalar.WithNum(s.Scalar.Num.Set(sv, bound.Singleton(number.FromInt64(v))))
	return &State{cells: cells, Scalar: sc}
}

// Property 8: join is idempotent (a.Join(a) == a, up to the Leq-antisymmetry
// this package's lattice methods define equality by).
func TestJoinIdempotent(t *testing.T) {
	base := location.NewStackSlot("f", "buf")
	s := Unchanged(numdomain.TopInterval())
	s = withCellValue(s, outCell(base, 0, 4), 7)

	joined := Join(s, s)
	if !Leq(s, joined) || !Leq(joined, s) {
		t.Fatalf("expected Join(s, s) to equal s")
	}
}

func TestJoinWithTopIsTop(t *testing.T) {
	top := Top(numdomain.TopInterval())
	base := location.NewStackSlot("f", "buf")
	s := withCellValue(Unchanged(numdomain.TopInterval()), outCell(base, 0, 4), 1)

	joined := Join(s, top)
	if !joined.IsTop() {
		t.Fatal("expected join with top to be top")
	}
}

func TestJoinWithBottomIsIdentity(t *testing.T) {
	bot := Bottom(numdomain.TopInterval())
	base := location.NewStackSlot("f", "buf")
	s := withCellValue(Unchanged(numdomain.TopInterval()), outCell(base, 0, 4), 1)

	joined := Join(s, bot)
	if !Leq(s, joined) || !Leq(joined, s) {
		t.Fatal("expected join with bottom to be the identity")
	}
}

func TestJoinOnOneSideOnlyWitnessesUnchanged(t *testing.T) {
	base := location.NewStackSlot("f", "buf")
	a := withCellValue(Unchanged(numdomain.TopInterval()), outCell(base, 0, 4), 5)
	b := Unchanged(numdomain.TopInterval())

	joined := Join(a, b)
	cs := joined.cellsOf(base)
	if len(cs.OfKind(location.Output)) == 0 {
		t.Fatal("expected the one-sided output cell to survive the join")
	}
}

func TestLeqReflexive(t *testing.T) {
	base := location.NewStackSlot("f", "buf")
	s := withCellValue(Unchanged(numdomain.TopInterval()), outCell(base, 0, 4), 3)
	if !Leq(s, s) {
		t.Fatal("expected a summary to be Leq itself")
	}
}

func TestBottomLeqEverything(t *testing.T) {
	bot := Bottom(numdomain.TopInterval())
	top := Top(numdomain.TopInterval())
	if !Leq(bot, top) {
		t.Fatal("bottom must be Leq top")
	}
}

func TestEverythingLeqTop(t *testing.T) {
	base := location.NewStackSlot("f", "buf")
	s := withCellValue(Unchanged(numdomain.TopInterval()), outCell(base, 0, 4), 9)
	top := Top(numdomain.TopInterval())
	if !Leq(s, top) {
		t.Fatal("expected every summary to be Leq top")
	}
}

// Property 9: composing a summary with the identity (Unchanged) summary is
// the identity operation.
func TestComposeWithUnchangedIsIdentity(t *testing.T) {
	base := location.NewStackSlot("f", "buf")
	caller := withCellValue(Unchanged(numdomain.TopInterval()), outCell(base, 0, 4), 11)
	identity := Unchanged(numdomain.TopInterval())

	composed := Compose(caller, identity)
	if !Leq(caller, composed) || !Leq(composed, caller) {
		t.Fatalf("expected Compose(caller, unchanged) to equal caller")
	}
}

// Compose bridges a caller's Output cell into a callee's matching Input
// cell: the caller wrote 42 to [buf, 0, 4); the callee reads that same
// range as input and writes it straight through to [buf, 8, 4). The
// composed summary must show the caller's write surviving as the first
// output and the callee's second output equal to what the caller wrote.
// The numerical domain is the relational DBM: the callee's out2 = in
// relation cannot be carried by a non-relational interval environment.
func TestComposeBridgesMatchingInputOutput(t *testing.T) {
	numTop := dbm.Top()
	base := location.NewStackSlot("f", "buf")

	caller := withCellValue(Unchanged(numTop), outCell(base, 0, 4), 42)

	callee := Unchanged(numTop)
	in := inCell(base, 0, 4)
	out2 := outCell(base, 8, 4)
	cs := callee.cellsOf(base).Insert(in).Insert(out2)
	callee = &State{cells: callee.cells.Insert(base, cs), Scalar: callee.Scalar}
	sv := location.ScalarVar(out2)
	callee = &State{cells: callee.cells, Scalar: callee.Scalar.WithNum(
		callee.Scalar.Num.Assign(sv, numdomain.VarExpr{V: location.ScalarVar(in)}))}

	composed := Compose(caller, callee)

	gotFirst := composed.IntToInterval(location.ScalarVar(outCell(base, 0, 4)))
	if n, ok := gotFirst.IsSingleton(); !ok || !n.Equal(number.FromInt64(42)) {
		t.Fatalf("expected the caller's first write to survive as 42, got %v", gotFirst)
	}
	gotSecond := composed.IntToInterval(location.ScalarVar(out2))
	if n, ok := gotSecond.IsSingleton(); !ok || !n.Equal(number.FromInt64(42)) {
		t.Fatalf("expected the bridged second output to equal 42, got %v", gotSecond)
	}
}

func TestComposeWithBottomIsBottom(t *testing.T) {
	caller := Unchanged(numdomain.TopInterval())
	bot := Bottom(numdomain.TopInterval())
	composed := Compose(caller, bot)
	if !composed.IsBottom() {
		t.Fatal("expected Compose with a bottom callee to be bottom")
	}
}

func TestComposeWithTopIsTop(t *testing.T) {
	caller := Unchanged(numdomain.TopInterval())
	top := Top(numdomain.TopInterval())
	composed := Compose(caller, top)
	if !composed.IsTop() {
		t.Fatal("expected Compose with a top callee to be top")
	}
}
