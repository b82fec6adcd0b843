package partition

import (
	"testing"

	"absint/internal/bound"
	"absint/internal/memdomain"
	"absint/internal/number"
	"absint/internal/numdomain"
	"absint/internal/variable"
)

func freshVar(id uint64) variable.Variable {
	return variable.New(id, "v", variable.Int, 32, number.Signed)
}

// Scenario S6 (partitioning): two partitions guarded by a pivot v, each
// assigning a different constant to x; the pivot split keeps the two values
// apart while SetVariable is active, and collapsing recovers the join.
//
// The pivot must be set on each branch before the two are joined: Join on
// two pivot-less (pivot == nil) Domains takes combine's sameIntervals
// pointwise branch and joins the two inner states directly, which loses the
// v<->x correlation before a pivot ever exists to keep it apart. Setting the
// pivot per-branch first gives each side its own disjoint pivot interval
// ([0,0] and [1,1]), so the later Join takes combine's mergeIntervals path
// instead and keeps them as two separate partitions.
func TestPartitioningScenario(t *testing.T) {
	v := freshVar(1)
	x := freshVar(2)

	left := memdomain.Top(numdomain.TopInterval()).Assign(v, numdomain.ConstExpr{N: number.FromInt64(0)})
	left = left.Assign(x, numdomain.ConstExpr{N: number.FromInt64(10)})

	right := memdomain.Top(numdomain.TopInterval()).Assign(v, numdomain.ConstExpr{N: number.FromInt64(1)})
	right = right.Assign(x, numdomain.ConstExpr{N: number.FromInt64(20)})

	d := Single[*memdomain.State](left).SetVariable(v).Join(Single[*memdomain.State](right).SetVariable(v))

	if len(d.parts) != 2 {
		t.Fatalf("expected two partitions after SetVariable, got %d", len(d.parts))
	}

	lowPart, ok := d.At(bound.Singleton(number.FromInt64(0)))
	if !ok {
		t.Fatal("expected a partition covering v=0")
	}
	gotLow := lowPart.IntToInterval(x)
	if n, ok := gotLow.IsSingleton(); !ok || !n.Equal(number.FromInt64(10)) {
		t.Fatalf("expected x=10 in the v=0 partition, got %v", gotLow)
	}

	highPart, ok := d.At(bound.Singleton(number.FromInt64(1)))
	if !ok {
		t.Fatal("expected a partition covering v=1")
	}
	gotHigh := highPart.IntToInterval(x)
	if n, ok := gotHigh.IsSingleton(); !ok || !n.Equal(number.FromInt64(20)) {
		t.Fatalf("expected x=20 in the v=1 partition, got %v", gotHigh)
	}

	collapsed := d.Collapsed()
	gotCollapsed := collapsed.IntToInterval(x)
	lo, hi := gotCollapsed.Lo(), gotCollapsed.Hi()
	if !lo.IsFinite() || !hi.IsFinite() || !lo.Number().Equal(number.FromInt64(10)) || !hi.Number().Equal(number.FromInt64(20)) {
		t.Fatalf("expected collapsed interval [10,20], got %v", gotCollapsed)
	}
}

func TestDisableJoinsAndForgetsPivot(t *testing.T) {
	v := freshVar(1)
	x := freshVar(2)

	left := memdomain.Top(numdomain.TopInterval()).Assign(v, numdomain.ConstExpr{N: number.FromInt64(0)})
	left = left.Assign(x, numdomain.ConstExpr{N: number.FromInt64(10)})
	right := memdomain.Top(numdomain.TopInterval()).Assign(v, numdomain.ConstExpr{N: number.FromInt64(1)})
	right = right.Assign(x, numdomain.ConstExpr{N: number.FromInt64(20)})

	d := Single[*memdomain.State](left).Join(Single[*memdomain.State](right)).SetVariable(v)
	d = d.Disable()

	if len(d.parts) != 1 {
		t.Fatalf("expected Disable to collapse to one partition, got %d", len(d.parts))
	}
	if d.pivot != nil {
		t.Fatal("expected Disable to forget the pivot")
	}
}

func TestSingleIsTop(t *testing.T) {
	d := Single[*memdomain.State](memdomain.Top(numdomain.TopInterval()))
	if !d.IsTop() {
		t.Fatal("expected an unpartitioned top inner state to be top")
	}
}
