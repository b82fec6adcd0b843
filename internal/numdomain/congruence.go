package numdomain

import (
	"absint/internal/bound"
	"absint/internal/patricia"
	"absint/internal/variable"
)

// CongruenceDomain is the non-relational congruence environment of
// spec.md section 4.3: variable -> Congruence, absent meaning top (1*Z+0),
// canonicalized the same way IntervalDomain is.
type CongruenceDomain struct {
	bottom bool
	env    *patricia.Map[variable.Variable, bound.Congruence]
}

func BottomCongruenceDomain() *CongruenceDomain {
	return &CongruenceDomain{bottom: true, env: patricia.Empty[variable.Variable, bound.Congruence]()}
}

func TopCongruenceDomain() *CongruenceDomain {
	return &CongruenceDomain{env: patricia.Empty[variable.Variable, bound.Congruence]()}
}

func (d *CongruenceDomain) IsBottom() bool { return d.bottom }
func (d *CongruenceDomain) IsTop() bool    { return !d.bottom && d.env.Size() == 0 }

func (d *CongruenceDomain) with(env *patricia.Map[variable.Variable, bound.Congruence]) *CongruenceDomain {
	return &CongruenceDomain{env: env}
}

func canonC(c bound.Congruence) (bound.Congruence, bool) {
	if c.IsBottom() || c.IsTop() {
		return c, false
	}
	return c, true
}

type cJoinOp struct{}

func (cJoinOp) Apply(a, b bound.Congruence) (bound.Congruence, bool) { return canonC(a.Join(b)) }
func (cJoinOp) ApplyLeft(bound.Congruence) (bound.Congruence, bool)  { var z bound.Congruence; return z, false }
func (cJoinOp) ApplyRight(bound.Congruence) (bound.Congruence, bool) { var z bound.Congruence; return z, false }
func (cJoinOp) DefaultIsAbsorbing() bool                            { return false }

type cMeetOp struct{}

func (cMeetOp) Apply(a, b bound.Congruence) (bound.Congruence, bool) { return canonC(a.Meet(b)) }
func (cMeetOp) ApplyLeft(a bound.Congruence) (bound.Congruence, bool)  { return a, true }
func (cMeetOp) ApplyRight(b bound.Congruence) (bound.Congruence, bool) { return b, true }
func (cMeetOp) DefaultIsAbsorbing() bool                              { return true }

type cWidenOp struct{}

func (cWidenOp) Apply(a, b bound.Congruence) (bound.Congruence, bool) { return canonC(a.Widening(b)) }
func (cWidenOp) ApplyLeft(bound.Congruence) (bound.Congruence, bool)  { var z bound.Congruence; return z, false }
func (cWidenOp) ApplyRight(bound.Congruence) (bound.Congruence, bool) { var z bound.Congruence; return z, false }
func (cWidenOp) DefaultIsAbsorbing() bool                            { return false }

type cNarrowOp struct{}

func (cNarrowOp) Apply(a, b bound.Congruence) (bound.Congruence, bool) { return canonC(a.Narrowing(b)) }
func (cNarrowOp) ApplyLeft(a bound.Congruence) (bound.Congruence, bool)  { return a, true }
func (cNarrowOp) ApplyRight(b bound.Congruence) (bound.Congruence, bool) { return b, true }
func (cNarrowOp) DefaultIsAbsorbing() bool                              { return true }

type cLeqOp struct{}

func (cLeqOp) Leq(a, b bound.Congruence) bool  { return a.Leq(b) }
func (cLeqOp) AbsentRight(bound.Congruence) bool { return true }
func (cLeqOp) AbsentLeft(bound.Congruence) bool  { return false }

func hasBottomEntryC(env *patricia.Map[variable.Variable, bound.Congruence]) bool {
	found := false
	env.ForEach(func(_ variable.Variable, c bound.Congruence) {
		if c.IsBottom() {
			found = true
		}
	})
	return found
}

func (d *CongruenceDomain) Leq(other Numerical) bool {
	o := mustSameKind[*CongruenceDomain](other)
	if d.bottom {
		return true
	}
	if o.bottom {
		return false
	}
	return patricia.Leq(d.env, o.env, cLeqOp{})
}

func (d *CongruenceDomain) Join(other Numerical) Numerical {
	o := mustSameKind[*CongruenceDomain](other)
	if d.bottom {
		return o
	}
	if o.bottom {
		return d
	}
	return d.with(patricia.Merge(d.env, o.env, cJoinOp{}))
}

func (d *CongruenceDomain) Meet(other Numerical) Numerical {
	o := mustSameKind[*CongruenceDomain](other)
	if d.bottom || o.bottom {
		return BottomCongruenceDomain()
	}
	merged := patricia.Merge(d.env, o.env, cMeetOp{})
	if hasBottomEntryC(merged) {
		return BottomCongruenceDomain()
	}
	return d.with(merged)
}

func (d *CongruenceDomain) Widening(other Numerical) Numerical {
	o := mustSameKind[*CongruenceDomain](other)
	if d.bottom {
		return o
	}
	if o.bottom {
		return d
	}
	return d.with(patricia.Merge(d.env, o.env, cWidenOp{}))
}

func (d *CongruenceDomain) Narrowing(other Numerical) Numerical {
	o := mustSameKind[*CongruenceDomain](other)
	if d.bottom || o.bottom {
		return BottomCongruenceDomain()
	}
	return d.with(patricia.Merge(d.env, o.env, cNarrowOp{}))
}

func (d *CongruenceDomain) Normalize() Numerical { return d }

func (d *CongruenceDomain) ToCongruence(x variable.Variable) bound.Congruence {
	if d.bottom {
		return bound.BottomCongruence()
	}
	v, ok := d.env.Lookup(x)
	if !ok {
		return bound.TopCongruence()
	}
	return v
}

func (d *CongruenceDomain) ToInterval(x variable.Variable) bound.Interval {
	c := d.ToCongruence(x)
	if n, ok := c.IsSingleton(); ok {
		return bound.Singleton(n)
	}
	if c.IsBottom() {
		return bound.BottomInterval()
	}
	return bound.TopInterval()
}

func (d *CongruenceDomain) Set(x variable.Variable, i bound.Interval) Numerical {
	if d.bottom {
		return d
	}
	if i.IsBottom() {
		return BottomCongruenceDomain()
	}
	if n, ok := i.IsSingleton(); ok {
		return d.with(d.env.Insert(x, bound.SingletonCongruence(n)))
	}
	return d.with(d.env.Erase(x))
}

func (d *CongruenceDomain) Forget(x variable.Variable) Numerical {
	if d.bottom {
		return d
	}
	return d.with(d.env.Erase(x))
}

func (d *CongruenceDomain) Assign(x variable.Variable, e Expr) Numerical {
	if d.bottom {
		return d
	}
	return d.Set(x, e.Eval(d))
}

func (d *CongruenceDomain) Apply(op BinOp, x, y variable.Variable, z Operand) Numerical {
	if d.bottom {
		return d
	}
	yc := d.ToCongruence(y)
	var zc bound.Congruence
	if z.IsVar() {
		zc = d.ToCongruence(z.Var())
	} else {
		zc = bound.SingletonCongruence(z.Const())
	}
	return d.setCongruence(x, applyCongruenceOp(op, yc, zc))
}

func (d *CongruenceDomain) setCongruence(x variable.Variable, c bound.Congruence) Numerical {
	if c.IsBottom() {
		return BottomCongruenceDomain()
	}
	if c.IsTop() {
		return d.with(d.env.Erase(x))
	}
	return d.with(d.env.Insert(x, c))
}

func applyCongruenceOp(op BinOp, y, z bound.Congruence) bound.Congruence {
	switch op {
	case OpAdd:
		if y.IsBottom() || z.IsBottom() {
			return bound.BottomCongruence()
		}
		return bound.NewCongruence(bound.Gcd(y.A(), z.A()), y.B().Add(z.B()))
	case OpSub:
		if y.IsBottom() || z.IsBottom() {
			return bound.BottomCongruence()
		}
		return bound.NewCongruence(bound.Gcd(y.A(), z.A()), y.B().Sub(z.B()))
	case OpMul:
		if yn, ok := y.IsSingleton(); ok {
			if zn, ok2 := z.IsSingleton(); ok2 {
				return bound.SingletonCongruence(yn.Mul(zn))
			}
			return bound.NewCongruence(z.A().Mul(yn.Abs()), yn.Mul(z.B()))
		}
		if zn, ok := z.IsSingleton(); ok {
			return bound.NewCongruence(y.A().Mul(zn.Abs()), y.B().Mul(zn))
		}
		return bound.TopCongruence()
	default:
		if y.IsBottom() || z.IsBottom() {
			return bound.BottomCongruence()
		}
		return bound.TopCongruence()
	}
}

func (d *CongruenceDomain) AddConstraint(pred CompareOp, e1, e2 Expr) Numerical {
	if d.bottom {
		return d
	}
	if pred != CmpEq {
		return d
	}
	i1, i2 := e1.Eval(d), e2.Eval(d)
	if n, ok := i1.IsSingleton(); ok {
		if ve, ok2 := e2.(VarExpr); ok2 {
			return d.setCongruence(ve.V, bound.SingletonCongruence(n))
		}
	}
	if n, ok := i2.IsSingleton(); ok {
		if ve, ok2 := e1.(VarExpr); ok2 {
			return d.setCongruence(ve.V, bound.SingletonCongruence(n))
		}
	}
	return d
}

var _ Numerical = (*CongruenceDomain)(nil)
