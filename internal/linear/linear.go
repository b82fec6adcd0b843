// Package linear implements LinearExpression and LinearConstraint (spec.md
// DATA MODEL): sigma a_i * x_i + c, and the three constraint kinds built on
// top of it.
package linear

import (
	"fmt"
	"strings"

	"absint/internal/number"
	"absint/internal/patricia"
	"absint/internal/variable"
)

type coeffOp struct{}

func (coeffOp) Apply(a, b number.Number) (number.Number, bool) {
	s := a.Add(b)
	return s, !s.IsZero()
}
func (coeffOp) ApplyLeft(a number.Number) (number.Number, bool)  { return a, !a.IsZero() }
func (coeffOp) ApplyRight(b number.Number) (number.Number, bool) { return b, !b.IsZero() }
func (coeffOp) DefaultIsAbsorbing() bool                        { return false }

// Expression is c + sigma coeff_i * var_i, with non-zero coefficients only
// (DATA MODEL invariant).
type Expression struct {
	constant number.Number
	coeffs   *patricia.Map[variable.Variable, number.Number]
}

// Constant builds the expression equal to the constant c.
func Constant(c number.Number) Expression {
	return Expression{constant: c, coeffs: patricia.Empty[variable.Variable, number.Number]()}
}

// Var builds the expression equal to 1*v.
func Var(v variable.Variable) Expression {
	return Expression{constant: number.Zero, coeffs: patricia.Empty[variable.Variable, number.Number]().Insert(v, number.One)}
}

// WithCoeff adds coeff*v to e (coeff may be negative); a resulting zero
// coefficient removes the variable, preserving the "non-zero coefficient"
// invariant.
func (e Expression) WithCoeff(coeff number.Number, v variable.Variable) Expression {
	existing, _ := e.coeffs.Lookup(v)
	newCoeff := existing.Add(coeff)
	var coeffs *patricia.Map[variable.Variable, number.Number]
	if newCoeff.IsZero() {
		coeffs = e.coeffs.Erase(v)
	} else {
		coeffs = e.coeffs.Insert(v, newCoeff)
	}
	return Expression{constant: e.constant, coeffs: coeffs}
}

// Add returns e + o.
func (e Expression) Add(o Expression) Expression {
	return Expression{constant: e.constant.Add(o.constant), coeffs: patricia.Merge(e.coeffs, o.coeffs, coeffOp{})}
}

// Scale returns k*e.
func (e Expression) Scale(k number.Number) Expression {
	scaled := e.coeffs.Transform(func(_ variable.Variable, c number.Number) (number.Number, bool) {
		r := c.Mul(k)
		return r, !r.IsZero()
	}, nil)
	return Expression{constant: e.constant.Mul(k), coeffs: scaled}
}

// ConstantTerm returns the expression's constant term.
func (e Expression) ConstantTerm() number.Number { return e.constant }

// ForEachTerm calls f for every (variable, non-zero coefficient) pair.
func (e Expression) ForEachTerm(f func(variable.Variable, number.Number)) {
	e.coeffs.ForEach(f)
}

// Coeff returns the coefficient of v (zero if absent).
func (e Expression) Coeff(v variable.Variable) number.Number {
	c, _ := e.coeffs.Lookup(v)
	return c
}

func (e Expression) String() string {
	var sb strings.Builder
	first := true
	e.coeffs.ForEach(func(v variable.Variable, c number.Number) {
		if !first {
			sb.WriteString(" + ")
		}
		first = false
		fmt.Fprintf(&sb, "%s*%s", c, v)
	})
	if first || !e.constant.IsZero() {
		if !first {
			sb.WriteString(" + ")
		}
		sb.WriteString(e.constant.String())
	}
	return sb.String()
}

// ConstraintKind is the three relations a LinearConstraint expresses.
type ConstraintKind uint8

const (
	EqualZero ConstraintKind = iota
	LessEqualZero
	NotEqualZero
)

// Constraint is a LinearExpression related to zero.
type Constraint struct {
	Expr Expression
	Kind ConstraintKind
}

func Equal(e Expression) Constraint       { return Constraint{Expr: e, Kind: EqualZero} }
func LessEqual(e Expression) Constraint   { return Constraint{Expr: e, Kind: LessEqualZero} }
func NotEqual(e Expression) Constraint    { return Constraint{Expr: e, Kind: NotEqualZero} }

func (c Constraint) String() string {
	op := map[ConstraintKind]string{EqualZero: " = 0", LessEqualZero: " <= 0", NotEqualZero: " != 0"}[c.Kind]
	return c.Expr.String() + op
}
