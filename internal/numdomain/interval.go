package numdomain

import (
	"strings"

	"absint/internal/aerrors"
	"absint/internal/bound"
	"absint/internal/number"
	"absint/internal/patricia"
	"absint/internal/variable"
)

// IntervalDomain is the non-relational interval environment of spec.md
// section 4.3: variable -> Interval, with absent keys meaning
// unconstrained (top) — entries whose value would be exactly top are
// dropped on write so the map canonically never stores one, which lets
// Leq/Join/Meet reason about "absent" unambiguously.
type IntervalDomain struct {
	bottom bool
	env    *patricia.Map[variable.Variable, bound.Interval]
}

func BottomInterval() *IntervalDomain {
	return &IntervalDomain{bottom: true, env: patricia.Empty[variable.Variable, bound.Interval]()}
}

func TopInterval() *IntervalDomain {
	return &IntervalDomain{env: patricia.Empty[variable.Variable, bound.Interval]()}
}

func (d *IntervalDomain) IsBottom() bool { return d.bottom }
func (d *IntervalDomain) IsTop() bool    { return !d.bottom && d.env.Size() == 0 }

func (d *IntervalDomain) with(env *patricia.Map[variable.Variable, bound.Interval]) *IntervalDomain {
	return &IntervalDomain{bottom: false, env: env}
}

func canon(i bound.Interval) (bound.Interval, bool) {
	if i.IsBottom() {
		return i, false
	}
	if i.IsTop() {
		return i, false
	}
	return i, true
}

type intervalJoinOp struct{}

func (intervalJoinOp) Apply(a, b bound.Interval) (bound.Interval, bool) { return canon(a.Join(b)) }
func (intervalJoinOp) ApplyLeft(bound.Interval) (bound.Interval, bool)  { var z bound.Interval; return z, false }
func (intervalJoinOp) ApplyRight(bound.Interval) (bound.Interval, bool) { var z bound.Interval; return z, false }
func (intervalJoinOp) DefaultIsAbsorbing() bool                        { return false }

type intervalMeetOp struct{}

func (intervalMeetOp) Apply(a, b bound.Interval) (bound.Interval, bool) { return canon(a.Meet(b)) }
func (intervalMeetOp) ApplyLeft(a bound.Interval) (bound.Interval, bool)  { return a, true }
func (intervalMeetOp) ApplyRight(b bound.Interval) (bound.Interval, bool) { return b, true }
func (intervalMeetOp) DefaultIsAbsorbing() bool                          { return true }

type intervalWidenOp struct{}

func (intervalWidenOp) Apply(a, b bound.Interval) (bound.Interval, bool) { return canon(a.Widening(b)) }
func (intervalWidenOp) ApplyLeft(bound.Interval) (bound.Interval, bool)  { var z bound.Interval; return z, false }
func (intervalWidenOp) ApplyRight(bound.Interval) (bound.Interval, bool) { var z bound.Interval; return z, false }
func (intervalWidenOp) DefaultIsAbsorbing() bool                        { return false }

type intervalNarrowOp struct{}

func (intervalNarrowOp) Apply(a, b bound.Interval) (bound.Interval, bool) { return canon(a.Narrowing(b)) }
func (intervalNarrowOp) ApplyLeft(a bound.Interval) (bound.Interval, bool)  { return a, true }
func (intervalNarrowOp) ApplyRight(b bound.Interval) (bound.Interval, bool) { return b, true }
func (intervalNarrowOp) DefaultIsAbsorbing() bool                          { return true }

type intervalLeqOp struct{}

func (intervalLeqOp) Leq(a, b bound.Interval) bool  { return a.Leq(b) }
func (intervalLeqOp) AbsentRight(bound.Interval) bool { return true }  // right implicitly top
func (intervalLeqOp) AbsentLeft(bound.Interval) bool  { return false } // left implicitly top, right is finite

// hasBottomEntry reports whether any tracked interval is bottom (meaning
// the overall environment must collapse to Bottom).
func hasBottomEntry(env *patricia.Map[variable.Variable, bound.Interval]) bool {
	found := false
	env.ForEach(func(_ variable.Variable, i bound.Interval) {
		if i.IsBottom() {
			found = true
		}
	})
	return found
}

func (d *IntervalDomain) Leq(other Numerical) bool {
	o := mustSameKind[*IntervalDomain](other)
	if d.bottom {
		return true
	}
	if o.bottom {
		return false
	}
	return patricia.Leq(d.env, o.env, intervalLeqOp{})
}

func (d *IntervalDomain) Join(other Numerical) Numerical {
	o := mustSameKind[*IntervalDomain](other)
	if d.bottom {
		return o
	}
	if o.bottom {
		return d
	}
	return d.with(patricia.Merge(d.env, o.env, intervalJoinOp{}))
}

func (d *IntervalDomain) Meet(other Numerical) Numerical {
	o := mustSameKind[*IntervalDomain](other)
	if d.bottom || o.bottom {
		return BottomInterval()
	}
	merged := patricia.Merge(d.env, o.env, intervalMeetOp{})
	if hasBottomEntry(merged) {
		return BottomInterval()
	}
	return d.with(merged)
}

func (d *IntervalDomain) Widening(other Numerical) Numerical {
	o := mustSameKind[*IntervalDomain](other)
	if d.bottom {
		return o
	}
	if o.bottom {
		return d
	}
	return d.with(patricia.Merge(d.env, o.env, intervalWidenOp{}))
}

func (d *IntervalDomain) Narrowing(other Numerical) Numerical {
	o := mustSameKind[*IntervalDomain](other)
	if d.bottom || o.bottom {
		return BottomInterval()
	}
	return d.with(patricia.Merge(d.env, o.env, intervalNarrowOp{}))
}

func (d *IntervalDomain) Normalize() Numerical { return d }

func (d *IntervalDomain) ToInterval(x variable.Variable) bound.Interval {
	if d.bottom {
		return bound.BottomInterval()
	}
	v, ok := d.env.Lookup(x)
	if !ok {
		return bound.TopInterval()
	}
	return v
}

func (d *IntervalDomain) ToCongruence(x variable.Variable) bound.Congruence {
	i := d.ToInterval(x)
	if n, ok := i.IsSingleton(); ok {
		return bound.SingletonCongruence(n)
	}
	if i.IsBottom() {
		return bound.BottomCongruence()
	}
	return bound.TopCongruence()
}

func (d *IntervalDomain) Set(x variable.Variable, i bound.Interval) Numerical {
	if d.bottom {
		return d
	}
	if i.IsBottom() {
		return BottomInterval()
	}
	if i.IsTop() {
		return d.with(d.env.Erase(x))
	}
	return d.with(d.env.Insert(x, i))
}

func (d *IntervalDomain) Forget(x variable.Variable) Numerical {
	if d.bottom {
		return d
	}
	return d.with(d.env.Erase(x))
}

func (d *IntervalDomain) Assign(x variable.Variable, e Expr) Numerical {
	if d.bottom {
		return d
	}
	return d.Set(x, e.Eval(d))
}

func (d *IntervalDomain) Apply(op BinOp, x, y variable.Variable, z Operand) Numerical {
	if d.bottom {
		return d
	}
	yi := d.ToInterval(y)
	var zi bound.Interval
	if z.IsVar() {
		zi = d.ToInterval(z.Var())
	} else {
		zi = bound.Singleton(z.Const())
	}
	return d.Set(x, applyIntervalOp(op, yi, zi))
}

func applyIntervalOp(op BinOp, y, z bound.Interval) bound.Interval {
	switch op {
	case OpAdd:
		return y.Add(z)
	case OpSub:
		return y.Sub(z)
	case OpMul:
		return y.Mul(z)
	case OpSignCast, OpTrunc, OpExt:
		// Width/sign-aware reinterpretation is handled by the scalar layer,
		// which knows the variable's declared width; the pure interval
		// domain has no width of its own to reinterpret against, so it
		// passes the value through unchanged and lets the caller re-derive
		// precision via machine-integer wrap if needed.
		return y
	default:
		// udiv/sdiv/urem/srem/shl/lshr/ashr/and/or/xor: the interval domain
		// does not attempt precise bitwise or shift reasoning; degrading to
		// top is sound (precision loss, spec.md section 7).
		if y.IsBottom() || z.IsBottom() {
			return bound.BottomInterval()
		}
		return bound.TopInterval()
	}
}

func (d *IntervalDomain) AddConstraint(pred CompareOp, e1, e2 Expr) Numerical {
	if d.bottom {
		return d
	}
	i1, i2 := e1.Eval(d), e2.Eval(d)
	switch pred {
	case CmpEq:
		m := i1.Meet(i2)
		if m.IsBottom() {
			return BottomInterval()
		}
		// Both expressions are refined to the intersection when either is a
		// bare variable; a full constraint-propagation pass over arbitrary
		// expressions is out of scope for a non-relational domain.
		var r Numerical = d
		if ve, ok := e1.(VarExpr); ok {
			r = r.Set(ve.V, m)
		}
		if ve, ok := e2.(VarExpr); ok {
			r = r.Set(ve.V, m)
		}
		return r
	case CmpNe:
		if n1, ok := i1.IsSingleton(); ok {
			if n2, ok2 := i2.IsSingleton(); ok2 && n1.Equal(n2) {
				return BottomInterval()
			}
		}
		return d
	case CmpSlt, CmpSle, CmpUlt, CmpUle:
		return d.addOrderConstraint(pred, e1, e2, i1, i2)
	default:
		return d
	}
}

func (d *IntervalDomain) addOrderConstraint(pred CompareOp, e1, e2 Expr, i1, i2 bound.Interval) Numerical {
	strict := pred == CmpSlt || pred == CmpUlt
	// x < y (or <=): tighten x's upper bound to y.hi (-1 if strict) and
	// y's lower bound to x.lo (+1 if strict).
	hi := i2.Hi()
	if strict && hi.IsFinite() {
		hi = bound.Finite(hi.Number().Sub(number.One))
	}
	lo := i1.Lo()
	if strict && lo.IsFinite() {
		lo = bound.Finite(lo.Number().Add(number.One))
	}
	result := d
	if ve, ok := e1.(VarExpr); ok {
		ni := i1.Meet(bound.Closed(bound.NegInf, hi))
		if ni.IsBottom() {
			return BottomInterval()
		}
		result = result.with(result.env.Insert(ve.V, ni))
		if ni.IsTop() {
			result = result.with(result.env.Erase(ve.V))
		}
	}
	if ve, ok := e2.(VarExpr); ok {
		ni := i2.Meet(bound.Closed(lo, bound.PosInf))
		if ni.IsBottom() {
			return BottomInterval()
		}
		result = result.with(result.env.Insert(ve.V, ni))
		if ni.IsTop() {
			result = result.with(result.env.Erase(ve.V))
		}
	}
	return result
}

func (d *IntervalDomain) String() string {
	if d.bottom {
		return "bottom"
	}
	var sb strings.Builder
	sb.WriteString("{")
	first := true
	d.env.ForEach(func(v variable.Variable, i bound.Interval) {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(v.String())
		sb.WriteString(": ")
		sb.WriteString(i.String())
	})
	sb.WriteString("}")
	return sb.String()
}

var _ Numerical = (*IntervalDomain)(nil)

// contractCheck runs f and turns any panic it raises (such as
// number.MachineInt's width mismatch) into aerrors.Violate. It is
// unexported and nothing in this package calls it.
func contractCheck(f func()) {
	defer func() {
		if r := recover(); r != nil {
			aerrors.Violate("%v", r)
		}
	}()
	f()
}
