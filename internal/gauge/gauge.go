// Package gauge implements the gauge domain of spec.md section 4.6:
// l <= x <= u where l, u are affine expressions over a declared set of
// "loop counter" variables, each known to be non-negative with a known
// increment. Gauges are how this module expresses loop-invariants like
// "x == 2*i + 3" precisely instead of collapsing to an interval the moment
// a loop body runs more than once.
//
// Grounded on spec.md section 4.6's literal description and built on
// internal/linear's sparse affine Expression (itself grounded on the
// teacher's register-file style sparse representations), the same way
// internal/dbm and internal/octagon reuse internal/bound for arithmetic.
package gauge

import (
	"strings"

	"absint/internal/bound"
	"absint/internal/linear"
	"absint/internal/number"
	"absint/internal/numdomain"
	"absint/internal/patricia"
	"absint/internal/variable"
)

// Bound is either "unbounded in this direction" or a concrete affine
// expression over the declared counters.
type Bound struct {
	inf  bool
	expr linear.Expression
}

func infBound() Bound { return Bound{inf: true} }
func exprBound(e linear.Expression) Bound { return Bound{expr: e} }

func (b Bound) equalExpr(o Bound) bool {
	if b.inf != o.inf {
		return false
	}
	if b.inf {
		return true
	}
	return b.expr.String() == o.expr.String()
}

type pair struct {
	lo, hi Bound
}

// Domain tracks, for each non-counter variable, a gauge pair, plus the set
// of variables declared as loop counters via counter_mark/counter_init.
type Domain struct {
	bottom   bool
	counters *patricia.Set[variable.Variable]
	env      *patricia.Map[variable.Variable, pair]
}

func Top() *Domain {
	return &Domain{counters: patricia.EmptySet[variable.Variable](), env: patricia.Empty[variable.Variable, pair]()}
}

func Bottom() *Domain {
	return &Domain{bottom: true, counters: patricia.EmptySet[variable.Variable](), env: patricia.Empty[variable.Variable, pair]()}
}

func (d *Domain) IsBottom() bool { return d.bottom }
func (d *Domain) IsTop() bool    { return !d.bottom && d.env.Size() == 0 }

func (d *Domain) with(env *patricia.Map[variable.Variable, pair]) *Domain {
	return &Domain{counters: d.counters, env: env}
}

// CounterMark declares v a loop counter: non-negative by construction, with
// no gauge bound of its own (its value is the free symbolic parameter other
// bounds are expressed in terms of).
func (d *Domain) CounterMark(v variable.Variable) *Domain {
	if d.bottom {
		return d
	}
	r := d.clone()
	r.counters = r.counters.Insert(v)
	r.env = r.env.Erase(v)
	return r
}

// CounterInit marks v a counter starting from the constant c; since gauge
// bounds reason about counters symbolically rather than tracking a concrete
// runtime value, this is recorded the same way CounterMark is.
func (d *Domain) CounterInit(v variable.Variable, c number.Number) *Domain {
	return d.CounterMark(v)
}

// CounterIncr shifts every affine bound mentioning v by k: a bound computed
// against v's pre-increment value old_v is re-expressed in terms of the
// post-increment new_v = old_v + k by substituting old_v = new_v - k, which
// leaves each coefficient of v unchanged and subtracts coeff_v * k from the
// bound's constant term.
func (d *Domain) CounterIncr(v variable.Variable, k number.Number) *Domain {
	if d.bottom {
		return d
	}
	r := d.clone()
	r.env = r.env.Transform(func(_ variable.Variable, p pair) (pair, bool) {
		return pair{lo: shift(p.lo, v, k), hi: shift(p.hi, v, k)}, true
	}, nil)
	return r
}

func shift(b Bound, v variable.Variable, k number.Number) Bound {
	if b.inf {
		return b
	}
	coeff := b.expr.Coeff(v)
	if coeff.IsZero() {
		return b
	}
	return exprBound(b.expr.Add(linear.Constant(coeff.Mul(k).Neg())))
}

// CounterForget drops v from the counter set, eliminating it from every
// stored bound via the same worst-case projection ToInterval uses: a term
// whose sign could push the bound away from concrete collapses that side to
// infinity, otherwise the term (whose worst case is attained at v == 0)
// simply drops out.
func (d *Domain) CounterForget(v variable.Variable) *Domain {
	if d.bottom {
		return d
	}
	r := d.clone()
	r.counters = r.counters.Erase(v)
	r.env = r.env.Transform(func(_ variable.Variable, p pair) (pair, bool) {
		return pair{lo: eliminate(p.lo, v, true), hi: eliminate(p.hi, v, false)}, true
	}, nil)
	return r
}

func eliminate(b Bound, v variable.Variable, isLo bool) Bound {
	if b.inf {
		return b
	}
	coeff := b.expr.Coeff(v)
	if coeff.IsZero() {
		return b
	}
	goesInfinite := (isLo && coeff.Sign() < 0) || (!isLo && coeff.Sign() > 0)
	if goesInfinite {
		return infBound()
	}
	return exprBound(b.expr.WithCoeff(coeff.Neg(), v))
}

func (d *Domain) clone() *Domain {
	return &Domain{counters: d.counters, env: d.env}
}

func (d *Domain) Leq(other numdomain.Numerical) bool {
	o := other.(*Domain)
	if d.bottom {
		return true
	}
	if o.bottom {
		return false
	}
	ok := true
	d.env.ForEach(func(v variable.Variable, p pair) {
		op, present := o.env.Lookup(v)
		if !present {
			return
		}
		if !p.lo.equalExpr(op.lo) && !op.lo.inf {
			ok = false
		}
		if !p.hi.equalExpr(op.hi) && !op.hi.inf {
			ok = false
		}
	})
	return ok
}

func (d *Domain) Join(other numdomain.Numerical) numdomain.Numerical {
	o := other.(*Domain)
	if d.bottom {
		return o
	}
	if o.bottom {
		return d
	}
	merged := patricia.Empty[variable.Variable, pair]()
	d.env.ForEach(func(v variable.Variable, p pair) {
		op, present := o.env.Lookup(v)
		if !present {
			return
		}
		lo := p.lo
		if !p.lo.equalExpr(op.lo) {
			lo = infBound()
		}
		hi := p.hi
		if !p.hi.equalExpr(op.hi) {
			hi = infBound()
		}
		if lo.inf && hi.inf {
			return
		}
		merged = merged.Insert(v, pair{lo: lo, hi: hi})
	})
	return d.with(merged)
}

func (d *Domain) Meet(other numdomain.Numerical) numdomain.Numerical {
	o := other.(*Domain)
	if d.bottom || o.bottom {
		return Bottom()
	}
	merged := d.env
	o.env.ForEach(func(v variable.Variable, p pair) {
		existing, present := merged.Lookup(v)
		if !present {
			merged = merged.Insert(v, p)
			return
		}
		lo := existing.lo
		if existing.lo.inf {
			lo = p.lo
		}
		hi := existing.hi
		if existing.hi.inf {
			hi = p.hi
		}
		merged = merged.Insert(v, pair{lo: lo, hi: hi})
	})
	return d.with(merged)
}

// Widening extrapolates any bound that changed to infinity in its own
// direction, per spec.md section 4.6.
func (d *Domain) Widening(other numdomain.Numerical) numdomain.Numerical {
	o := other.(*Domain)
	if d.bottom {
		return o
	}
	if o.bottom {
		return d
	}
	merged := patricia.Empty[variable.Variable, pair]()
	o.env.ForEach(func(v variable.Variable, op pair) {
		p, present := d.env.Lookup(v)
		if !present {
			return
		}
		lo := op.lo
		if !p.lo.equalExpr(op.lo) {
			lo = infBound()
		}
		hi := op.hi
		if !p.hi.equalExpr(op.hi) {
			hi = infBound()
		}
		if lo.inf && hi.inf {
			return
		}
		merged = merged.Insert(v, pair{lo: lo, hi: hi})
	})
	return d.with(merged)
}

// Narrowing falls back to the non-threshold variant (spec.md section 9
// OQ2): unbounded sides stay unbounded rather than being tightened toward a
// per-constraint landmark.
func (d *Domain) Narrowing(other numdomain.Numerical) numdomain.Numerical {
	o := other.(*Domain)
	if d.bottom || o.bottom {
		return Bottom()
	}
	merged := d.env
	o.env.ForEach(func(v variable.Variable, op pair) {
		p, present := merged.Lookup(v)
		if !present {
			merged = merged.Insert(v, op)
			return
		}
		lo := p.lo
		if p.lo.inf {
			lo = op.lo
		}
		hi := p.hi
		if p.hi.inf {
			hi = op.hi
		}
		merged = merged.Insert(v, pair{lo: lo, hi: hi})
	})
	return d.with(merged)
}

func (d *Domain) Normalize() numdomain.Numerical { return d }

// evalWorstCase projects an affine bound over counters (known only to be
// non-negative) down to a concrete Bound value: a term whose sign could
// drive the bound away from the constant (positive coefficient for a hi
// bound, negative for a lo bound) contributes infinity; otherwise its worst
// case is attained at counter == 0 and contributes nothing.
func evalWorstCase(b Bound, isLo bool) bound.Bound {
	if b.inf {
		if isLo {
			return bound.NegInf
		}
		return bound.PosInf
	}
	result := b.expr.ConstantTerm()
	inf := false
	b.expr.ForEachTerm(func(_ variable.Variable, coeff number.Number) {
		if (isLo && coeff.Sign() < 0) || (!isLo && coeff.Sign() > 0) {
			inf = true
		}
	})
	if inf {
		if isLo {
			return bound.NegInf
		}
		return bound.PosInf
	}
	return bound.Finite(result)
}

func (d *Domain) ToInterval(x variable.Variable) bound.Interval {
	if d.bottom {
		return bound.BottomInterval()
	}
	p, ok := d.env.Lookup(x)
	if !ok {
		return bound.TopInterval()
	}
	return bound.Closed(evalWorstCase(p.lo, true), evalWorstCase(p.hi, false))
}

func (d *Domain) ToCongruence(x variable.Variable) bound.Congruence {
	i := d.ToInterval(x)
	if n, ok := i.IsSingleton(); ok {
		return bound.SingletonCongruence(n)
	}
	if i.IsBottom() {
		return bound.BottomCongruence()
	}
	return bound.TopCongruence()
}

func (d *Domain) onlyCounters(e linear.Expression) bool {
	ok := true
	e.ForEachTerm(func(v variable.Variable, _ number.Number) {
		if !d.counters.Contains(v) {
			ok = false
		}
	})
	return ok
}

func (d *Domain) Set(x variable.Variable, i bound.Interval) numdomain.Numerical {
	if d.bottom {
		return d
	}
	if i.IsBottom() {
		return Bottom()
	}
	lo, hi := infBound(), infBound()
	if i.Lo().IsFinite() {
		lo = exprBound(linear.Constant(i.Lo().Number()))
	}
	if i.Hi().IsFinite() {
		hi = exprBound(linear.Constant(i.Hi().Number()))
	}
	if lo.inf && hi.inf {
		return d.Forget(x)
	}
	return d.with(d.env.Insert(x, pair{lo: lo, hi: hi}))
}

func (d *Domain) Forget(x variable.Variable) numdomain.Numerical {
	if d.bottom {
		return d
	}
	return d.with(d.env.Erase(x))
}

func (d *Domain) Assign(x variable.Variable, e numdomain.Expr) numdomain.Numerical {
	if d.bottom {
		return d
	}
	if le, ok := e.(numdomain.LinearExpr); ok && d.onlyCounters(le.E) {
		return d.with(d.env.Insert(x, pair{lo: exprBound(le.E), hi: exprBound(le.E)}))
	}
	if ce, ok := e.(numdomain.ConstExpr); ok {
		c := linear.Constant(ce.N)
		return d.with(d.env.Insert(x, pair{lo: exprBound(c), hi: exprBound(c)}))
	}
	return d.Set(x, e.Eval(d))
}

func (d *Domain) Apply(op numdomain.BinOp, x, y variable.Variable, z numdomain.Operand) numdomain.Numerical {
	if d.bottom {
		return d
	}
	if !z.IsVar() && d.counters.Contains(y) && (op == numdomain.OpAdd || op == numdomain.OpSub) {
		c := z.Const()
		if op == numdomain.OpSub {
			c = c.Neg()
		}
		e := linear.Var(y).Add(linear.Constant(c))
		return d.with(d.env.Insert(x, pair{lo: exprBound(e), hi: exprBound(e)}))
	}
	yi := d.ToInterval(y)
	var zi bound.Interval
	if z.IsVar() {
		zi = d.ToInterval(z.Var())
	} else {
		zi = bound.Singleton(z.Const())
	}
	var result bound.Interval
	switch op {
	case numdomain.OpAdd:
		result = yi.Add(zi)
	case numdomain.OpSub:
		result = yi.Sub(zi)
	case numdomain.OpMul:
		result = yi.Mul(zi)
	default:
		if yi.IsBottom() || zi.IsBottom() {
			result = bound.BottomInterval()
		} else {
			result = bound.TopInterval()
		}
	}
	return d.Set(x, result)
}

func (d *Domain) AddConstraint(pred numdomain.CompareOp, e1, e2 numdomain.Expr) numdomain.Numerical {
	if d.bottom {
		return d
	}
	i1, i2 := e1.Eval(d), e2.Eval(d)
	if pred != numdomain.CmpEq {
		return d
	}
	m := i1.Meet(i2)
	if m.IsBottom() {
		return Bottom()
	}
	if ve, ok := e1.(numdomain.VarExpr); ok {
		return d.Set(ve.V, m)
	}
	if ve, ok := e2.(numdomain.VarExpr); ok {
		return d.Set(ve.V, m)
	}
	return d
}

func (d *Domain) String() string {
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
		sb.WriteString(boundString(p.lo))
		sb.WriteString(" <= ")
		sb.WriteString(v.String())
		sb.WriteString(" <= ")
		sb.WriteString(boundString(p.hi))
	})
	sb.WriteString("}")
	return sb.String()
}

func boundString(b Bound) string {
	if b.inf {
		return "inf"
	}
	return b.expr.String()
}

var _ numdomain.Numerical = (*Domain)(nil)
