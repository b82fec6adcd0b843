// Package numdomain defines the numerical-domain interface (spec.md section
// 4.2) and the non-relational Interval/Congruence/IntCong environments
// (section 4.3). Relational domains (DBM, octagon, gauge) live in their own
// packages and implement the same Numerical interface, following the
// "trait per layer, sum type per concrete domain" layering DESIGN NOTES
// calls for instead of the reference implementation's templated
// inheritance: Numerical is the trait, and the registered concrete kinds
// (*IntervalDomain, *CongruenceDomain, *ReducedDomain, *dbm.Domain,
// *octagon.Domain, *gauge.Domain) are the sum type's cases.
package numdomain

import (
	"absint/internal/aerrors"
	"absint/internal/bound"
	"absint/internal/number"
	"absint/internal/variable"
)

// BinOp enumerates the binary operators spec.md section 4.2 lists.
type BinOp uint8

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpUDiv
	OpSDiv
	OpURem
	OpSRem
	OpShl
	OpLshr
	OpAshr
	OpAnd
	OpOr
	OpXor
	OpSignCast
	OpTrunc
	OpExt
)

// CompareOp enumerates the predicates add(pred, ...) accepts.
type CompareOp uint8

const (
	CmpEq CompareOp = iota
	CmpNe
	CmpSlt
	CmpSle
	CmpUlt
	CmpUle
)

// Numerical is the common numerical-domain trait. Every method that
// combines two values requires both to be the same concrete kind; mixing
// kinds (e.g. joining an *IntervalDomain with a *dbm.Domain) is a
// programming error at the API boundary and aerrors.Violate()s, exactly
// like a bit-width mismatch.
type Numerical interface {
	IsBottom() bool
	IsTop() bool
	Leq(other Numerical) bool
	Join(other Numerical) Numerical
	Meet(other Numerical) Numerical
	Widening(other Numerical) Numerical
	Narrowing(other Numerical) Numerical
	Normalize() Numerical

	// Assign sets x to the value of the linear expression e (evaluated
	// abstractly over the current environment).
	Assign(x variable.Variable, e Expr) Numerical
	// Apply performs x := y op z (or y op n for a constant z).
	Apply(op BinOp, x, y variable.Variable, z Operand) Numerical
	// AddConstraint refines the state with pred(e1, e2).
	AddConstraint(pred CompareOp, e1, e2 Expr) Numerical
	// Set installs a concrete interval for x, replacing whatever was there.
	Set(x variable.Variable, i bound.Interval) Numerical
	// Forget removes all information about x (x becomes unconstrained/top).
	Forget(x variable.Variable) Numerical

	// ToInterval and ToCongruence are query accessors (section 6).
	ToInterval(x variable.Variable) bound.Interval
	ToCongruence(x variable.Variable) bound.Congruence
}

// Expr is either a constant, a single variable, or a full linear
// expression; kept as an interface so Assign/Apply can accept any of the
// three without the caller building a degenerate Expression every time.
type Expr interface {
	// Eval abstractly evaluates the expression over dom, yielding the
	// tightest interval dom can represent for it.
	Eval(dom Numerical) bound.Interval
}

// Operand is either a constant Number or a variable reference, used by
// Apply's z parameter (spec.md 4.2: "apply(op, x, y, z|n)").
type Operand struct {
	isVar bool
	v     variable.Variable
	n     number.Number
}

func VarOperand(v variable.Variable) Operand  { return Operand{isVar: true, v: v} }
func ConstOperand(n number.Number) Operand    { return Operand{n: n} }

func (o Operand) IsVar() bool           { return o.isVar }
func (o Operand) Var() variable.Variable { return o.v }
func (o Operand) Const() number.Number  { return o.n }

// mustSameKind aborts with a ContractViolation if other is not of the same
// concrete type as want's zero value; used by every binary combinator.
func mustSameKind[T any](other Numerical) T {
	t, ok := other.(T)
	if !ok {
		aerrors.Violate("numerical domain kind mismatch: expected %T, got %T", *new(T), other)
	}
	return t
}
