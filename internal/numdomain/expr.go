package numdomain

import (
	"absint/internal/bound"
	"absint/internal/linear"
	"absint/internal/number"
	"absint/internal/variable"
)

// ConstExpr wraps a constant Number as an Expr.
type ConstExpr struct{ N number.Number }

func (c ConstExpr) Eval(Numerical) bound.Interval { return bound.Singleton(c.N) }

// VarExpr wraps a single variable reference as an Expr.
type VarExpr struct{ V variable.Variable }

func (v VarExpr) Eval(dom Numerical) bound.Interval { return dom.ToInterval(v.V) }

// LinearExpr wraps a full linear.Expression, evaluating it by interval
// arithmetic term-by-term over dom's current environment (sound but
// non-relational: relational domains like DBM/octagon override this by
// also type-asserting dom to read the tighter relational bound when
// possible; the generic fallback here is always available).
type LinearExpr struct{ E linear.Expression }

func (l LinearExpr) Eval(dom Numerical) bound.Interval {
	acc := bound.Singleton(l.E.ConstantTerm())
	l.E.ForEachTerm(func(v variable.Variable, coeff number.Number) {
		term := dom.ToInterval(v).Mul(bound.Singleton(coeff))
		acc = acc.Add(term)
	})
	return acc
}
