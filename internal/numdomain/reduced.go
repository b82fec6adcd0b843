package numdomain

import (
	"strings"

	"absint/internal/bound"
	"absint/internal/patricia"
	"absint/internal/variable"
)

// ReducedDomain is the IntCong reduced product of spec.md section 4.3: each
// tracked variable carries both an Interval and a Congruence, mutually
// refined via bound.ReduceIntervalCongruence after every operation so that,
// e.g., "x in [0,10]" combined with "x === 1 mod 2" narrows the interval to
// [1,9] and vice versa.
type ReducedDomain struct {
	bottom bool
	env    *patricia.Map[variable.Variable, pair]
}

type pair struct {
	i bound.Interval
	c bound.Congruence
}

func reduce(p pair) pair {
	i, c := bound.ReduceIntervalCongruence(p.i, p.c)
	return pair{i: i, c: c}
}

func (p pair) isBottom() bool { return p.i.IsBottom() || p.c.IsBottom() }
func (p pair) isTop() bool    { return p.i.IsTop() && p.c.IsTop() }

func BottomReduced() *ReducedDomain {
	return &ReducedDomain{bottom: true, env: patricia.Empty[variable.Variable, pair]()}
}

func TopReduced() *ReducedDomain {
	return &ReducedDomain{env: patricia.Empty[variable.Variable, pair]()}
}

func (d *ReducedDomain) IsBottom() bool { return d.bottom }
func (d *ReducedDomain) IsTop() bool    { return !d.bottom && d.env.Size() == 0 }

func (d *ReducedDomain) with(env *patricia.Map[variable.Variable, pair]) *ReducedDomain {
	return &ReducedDomain{env: env}
}

func canonPair(p pair) (pair, bool) {
	p = reduce(p)
	if p.isBottom() || p.isTop() {
		return p, false
	}
	return p, true
}

type pairJoinOp struct{}

func (pairJoinOp) Apply(a, b pair) (pair, bool) {
	return canonPair(pair{i: a.i.Join(b.i), c: a.c.Join(b.c)})
}
func (pairJoinOp) ApplyLeft(pair) (pair, bool)  { return pair{}, false }
func (pairJoinOp) ApplyRight(pair) (pair, bool) { return pair{}, false }
func (pairJoinOp) DefaultIsAbsorbing() bool     { return false }

type pairMeetOp struct{}

func (pairMeetOp) Apply(a, b pair) (pair, bool) {
	return canonPair(pair{i: a.i.Meet(b.i), c: a.c.Meet(b.c)})
}
func (pairMeetOp) ApplyLeft(a pair) (pair, bool)  { return a, true }
func (pairMeetOp) ApplyRight(b pair) (pair, bool) { return b, true }
func (pairMeetOp) DefaultIsAbsorbing() bool       { return true }

type pairWidenOp struct{}

func (pairWidenOp) Apply(a, b pair) (pair, bool) {
	return canonPair(pair{i: a.i.Widening(b.i), c: a.c.Widening(b.c)})
}
func (pairWidenOp) ApplyLeft(pair) (pair, bool)  { return pair{}, false }
func (pairWidenOp) ApplyRight(pair) (pair, bool) { return pair{}, false }
func (pairWidenOp) DefaultIsAbsorbing() bool     { return false }

type pairNarrowOp struct{}

func (pairNarrowOp) Apply(a, b pair) (pair, bool) {
	return canonPair(pair{i: a.i.Narrowing(b.i), c: a.c.Narrowing(b.c)})
}
func (pairNarrowOp) ApplyLeft(a pair) (pair, bool)  { return a, true }
func (pairNarrowOp) ApplyRight(b pair) (pair, bool) { return b, true }
func (pairNarrowOp) DefaultIsAbsorbing() bool       { return true }

type pairLeqOp struct{}

func (pairLeqOp) Leq(a, b pair) bool    { return a.i.Leq(b.i) && a.c.Leq(b.c) }
func (pairLeqOp) AbsentRight(pair) bool { return true }
func (pairLeqOp) AbsentLeft(pair) bool  { return false }

func hasBottomPair(env *patricia.Map[variable.Variable, pair]) bool {
	found := false
	env.ForEach(func(_ variable.Variable, p pair) {
		if p.isBottom() {
			found = true
		}
	})
	return found
}

func (d *ReducedDomain) Leq(other Numerical) bool {
	o := mustSameKind[*ReducedDomain](other)
	if d.bottom {
		return true
	}
	if o.bottom {
		return false
	}
	return patricia.Leq(d.env, o.env, pairLeqOp{})
}

func (d *ReducedDomain) Join(other Numerical) Numerical {
	o := mustSameKind[*ReducedDomain](other)
	if d.bottom {
		return o
	}
	if o.bottom {
		return d
	}
	return d.with(patricia.Merge(d.env, o.env, pairJoinOp{}))
}

func (d *ReducedDomain) Meet(other Numerical) Numerical {
	o := mustSameKind[*ReducedDomain](other)
	if d.bottom || o.bottom {
		return BottomReduced()
	}
	merged := patricia.Merge(d.env, o.env, pairMeetOp{})
	if hasBottomPair(merged) {
		return BottomReduced()
	}
	return d.with(merged)
}

func (d *ReducedDomain) Widening(other Numerical) Numerical {
	o := mustSameKind[*ReducedDomain](other)
	if d.bottom {
		return o
	}
	if o.bottom {
		return d
	}
	return d.with(patricia.Merge(d.env, o.env, pairWidenOp{}))
}

func (d *ReducedDomain) Narrowing(other Numerical) Numerical {
	o := mustSameKind[*ReducedDomain](other)
	if d.bottom || o.bottom {
		return BottomReduced()
	}
	return d.with(patricia.Merge(d.env, o.env, pairNarrowOp{}))
}

func (d *ReducedDomain) Normalize() Numerical {
	if d.bottom {
		return d
	}
	merged := patricia.Merge(d.env, d.env, pairMeetOp{})
	if hasBottomPair(merged) {
		return BottomReduced()
	}
	return d.with(merged)
}

func (d *ReducedDomain) pairAt(x variable.Variable) pair {
	if d.bottom {
		return pair{i: bound.BottomInterval(), c: bound.BottomCongruence()}
	}
	p, ok := d.env.Lookup(x)
	if !ok {
		return pair{i: bound.TopInterval(), c: bound.TopCongruence()}
	}
	return p
}

func (d *ReducedDomain) ToInterval(x variable.Variable) bound.Interval {
	return d.pairAt(x).i
}

func (d *ReducedDomain) ToCongruence(x variable.Variable) bound.Congruence {
	return d.pairAt(x).c
}

func (d *ReducedDomain) setPair(x variable.Variable, p pair) Numerical {
	p, ok := canonPair(p)
	if p.isBottom() {
		return BottomReduced()
	}
	if !ok {
		return d.with(d.env.Erase(x))
	}
	return d.with(d.env.Insert(x, p))
}

func (d *ReducedDomain) Set(x variable.Variable, i bound.Interval) Numerical {
	if d.bottom {
		return d
	}
	c := bound.TopCongruence()
	if n, ok := i.IsSingleton(); ok {
		c = bound.SingletonCongruence(n)
	}
	return d.setPair(x, pair{i: i, c: c})
}

func (d *ReducedDomain) Forget(x variable.Variable) Numerical {
	if d.bottom {
		return d
	}
	return d.with(d.env.Erase(x))
}

func (d *ReducedDomain) Assign(x variable.Variable, e Expr) Numerical {
	if d.bottom {
		return d
	}
	return d.Set(x, e.Eval(d))
}

func (d *ReducedDomain) Apply(op BinOp, x, y variable.Variable, z Operand) Numerical {
	if d.bottom {
		return d
	}
	yp := d.pairAt(y)
	var zp pair
	if z.IsVar() {
		zp = d.pairAt(z.Var())
	} else {
		zp = pair{i: bound.Singleton(z.Const()), c: bound.SingletonCongruence(z.Const())}
	}
	ni := applyIntervalOp(op, yp.i, zp.i)
	nc := applyCongruenceOp(op, yp.c, zp.c)
	return d.setPair(x, pair{i: ni, c: nc})
}

func (d *ReducedDomain) AddConstraint(pred CompareOp, e1, e2 Expr) Numerical {
	if d.bottom {
		return d
	}
	i1, i2 := e1.Eval(d), e2.Eval(d)
	switch pred {
	case CmpEq:
		m := i1.Meet(i2)
		if m.IsBottom() {
			return BottomReduced()
		}
		if ve, ok := e1.(VarExpr); ok {
			return d.Set(ve.V, m)
		}
		if ve, ok := e2.(VarExpr); ok {
			return d.Set(ve.V, m)
		}
		return d
	default:
		// Order and disequality constraints refine through the interval
		// component only; the congruence component is unaffected and is
		// re-reduced on the next Normalize/Set.
		var asInterval Numerical = &IntervalDomain{env: projectIntervals(d)}
		refined := asInterval.AddConstraint(pred, e1, e2).(*IntervalDomain)
		return d.mergeFromInterval(refined)
	}
}

func projectIntervals(d *ReducedDomain) *patricia.Map[variable.Variable, bound.Interval] {
	env := patricia.Empty[variable.Variable, bound.Interval]()
	d.env.ForEach(func(v variable.Variable, p pair) {
		if !p.i.IsTop() {
			env = env.Insert(v, p.i)
		}
	})
	return env
}

func (d *ReducedDomain) mergeFromInterval(src *IntervalDomain) Numerical {
	if src.IsBottom() {
		return BottomReduced()
	}
	result := d
	src.env.ForEach(func(v variable.Variable, i bound.Interval) {
		p := result.pairAt(v)
		p.i = i
		if r, ok := result.setPair(v, p).(*ReducedDomain); ok {
			result = r
		}
	})
	return result
}

func (d *ReducedDomain) String() string {
	if d.bottom {
		return "bottom"
	}
	var sb strings.Builder
	sb.WriteString("{")
	first := true
	d.env.ForEach(func(v variable.Variable, p pair) {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(v.String())
		sb.WriteString(": ")
		sb.WriteString(p.i.String())
		sb.WriteString(" & ")
		sb.WriteString(p.c.String())
	})
	sb.WriteString("}")
	return sb.String()
}

var _ Numerical = (*ReducedDomain)(nil)
