// Package dbm implements the difference-bound-matrix domain of spec.md
// section 4.4: constraints of the form xi - xj <= cij and xi <= ci, stored
// as a square matrix of Bounds with an extra "zero" row/column standing for
// the constant 0, plus a bijection between tracked variables and matrix
// indices.
//
// Grounded on the teacher's internal/vmregister register-file representation
// for the index-bijection idea (a dense slice addressed by a small integer
// handle) and on spec.md section 4.4's literal Floyd-Warshall description.
package dbm

import (
	"strings"

	"absint/internal/bound"
	"absint/internal/number"
	"absint/internal/numdomain"
	"absint/internal/variable"
)

// Domain is a closed (or not-yet-closed) difference-bound matrix. Index 0 is
// the synthetic zero variable; indices 1..n correspond to vars[0..n-1].
type Domain struct {
	bottom     bool
	vars       []variable.Variable
	idx        map[uint64]int
	m          [][]bound.Bound
	normalized bool
}

// Top is the domain with no tracked variables (the vacuously true state).
func Top() *Domain {
	return &Domain{vars: nil, idx: map[uint64]int{}, m: zeroMatrix(0), normalized: true}
}

// Bottom is the unsatisfiable state.
func Bottom() *Domain {
	return &Domain{bottom: true, idx: map[uint64]int{}}
}

func zeroMatrix(n int) [][]bound.Bound {
	m := make([][]bound.Bound, n+1)
	for i := range m {
		m[i] = make([]bound.Bound, n+1)
		for j := range m[i] {
			if i == j {
				m[i][j] = bound.Finite(number.Zero)
			} else {
				m[i][j] = bound.PosInf
			}
		}
	}
	return m
}

func (d *Domain) IsBottom() bool { return d.bottom }
func (d *Domain) IsTop() bool    { return !d.bottom && len(d.vars) == 0 }

func (d *Domain) clone() *Domain {
	m := make([][]bound.Bound, len(d.m))
	for i := range d.m {
		m[i] = append([]bound.Bound(nil), d.m[i]...)
	}
	idx := make(map[uint64]int, len(d.idx))
	for k, v := range d.idx {
		idx[k] = v
	}
	return &Domain{vars: append([]variable.Variable(nil), d.vars...), idx: idx, m: m, normalized: d.normalized}
}

// ensureVar returns the matrix slot for v, growing the matrix if v is new.
func (d *Domain) ensureVar(v variable.Variable) int {
	if i, ok := d.idx[v.Index()]; ok {
		return i
	}
	n := len(d.vars)
	newM := make([][]bound.Bound, n+2)
	for i := 0; i <= n; i++ {
		newM[i] = append(d.m[i], bound.PosInf)
	}
	newM[n+1] = make([]bound.Bound, n+2)
	for j := 0; j <= n; j++ {
		newM[n+1][j] = bound.PosInf
	}
	newM[n+1][n+1] = bound.Finite(number.Zero)
	d.m = newM
	d.vars = append(d.vars, v)
	d.idx[v.Index()] = n + 1
	d.normalized = false
	return n + 1
}

func (d *Domain) slot(v variable.Variable) (int, bool) {
	i, ok := d.idx[v.Index()]
	return i, ok
}

// closure performs Floyd-Warshall shortest paths over the difference graph
// (spec.md section 4.4); a negative diagonal after closure means bottom.
func (d *Domain) closure() *Domain {
	if d.bottom {
		return d
	}
	r := d.clone()
	n := len(r.m)
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			if r.m[i][k].IsPosInf() {
				continue
			}
			for j := 0; j < n; j++ {
				via := bound.Add(r.m[i][k], r.m[k][j])
				if via.LessThan(r.m[i][j]) {
					r.m[i][j] = via
				}
			}
		}
	}
	for i := 0; i < n; i++ {
		if r.m[i][i].IsFinite() && r.m[i][i].Number().Sign() < 0 {
			return Bottom()
		}
	}
	r.normalized = true
	return r
}

// Normalize closes the matrix, as the Numerical interface's generic
// "expensive closure" hook (spec.md section 3's lifecycle note on
// closure-based domains).
func (d *Domain) Normalize() numdomain.Numerical {
	if d.bottom {
		return d
	}
	if d.normalized {
		return d
	}
	return d.closure()
}

// unify extends d1 and d2 onto the same variable universe (d1's order first,
// then d2's new variables appended), without closing either.
func unify(d1, d2 *Domain) (*Domain, *Domain) {
	u1 := d1.clone()
	for _, v := range d2.vars {
		if _, ok := u1.idx[v.Index()]; !ok {
			u1.ensureVar(v)
		}
	}
	u2 := d2.clone()
	for _, v := range u1.vars {
		if _, ok := u2.idx[v.Index()]; !ok {
			u2.ensureVar(v)
		}
	}
	// u1 and u2 now both list u1.vars in the same relative order because
	// ensureVar only appends; reorder u2 to exactly match u1's order.
	return u1, reorder(u2, u1.vars)
}

func reorder(d *Domain, order []variable.Variable) *Domain {
	n := len(order)
	m := zeroMatrix(n)
	idx := make(map[uint64]int, n)
	for i, v := range order {
		idx[v.Index()] = i + 1
	}
	for i := 0; i <= n; i++ {
		for j := 0; j <= n; j++ {
			oi := srcIndex(d, order, i)
			oj := srcIndex(d, order, j)
			m[i][j] = d.m[oi][oj]
		}
	}
	return &Domain{vars: append([]variable.Variable(nil), order...), idx: idx, m: m, normalized: d.normalized}
}

func srcIndex(d *Domain, order []variable.Variable, i int) int {
	if i == 0 {
		return 0
	}
	v := order[i-1]
	return d.idx[v.Index()]
}

func (d *Domain) Leq(other numdomain.Numerical) bool {
	o := other.(*Domain)
	if d.bottom {
		return true
	}
	if o.bottom {
		return false
	}
	c1 := d.closure()
	if c1.bottom {
		return true
	}
	c2 := o.closure()
	if c2.bottom {
		return false
	}
	u1, u2 := unify(c1, c2)
	n := len(u1.m)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if !u1.m[i][j].LessEqual(u2.m[i][j]) {
				return false
			}
		}
	}
	return true
}

func (d *Domain) Join(other numdomain.Numerical) numdomain.Numerical {
	o := other.(*Domain)
	if d.bottom {
		return o
	}
	if o.bottom {
		return d
	}
	c1, c2 := d.closure(), o.closure()
	if c1.bottom {
		return c2
	}
	if c2.bottom {
		return c1
	}
	u1, u2 := unify(c1, c2)
	n := len(u1.m)
	m := zeroMatrix(len(u1.vars))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			m[i][j] = bound.Max(u1.m[i][j], u2.m[i][j])
		}
	}
	return &Domain{vars: u1.vars, idx: u1.idx, m: m, normalized: true}
}

func (d *Domain) Meet(other numdomain.Numerical) numdomain.Numerical {
	o := other.(*Domain)
	if d.bottom || o.bottom {
		return Bottom()
	}
	u1, u2 := unify(d, o)
	n := len(u1.m)
	m := zeroMatrix(len(u1.vars))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			m[i][j] = bound.Min(u1.m[i][j], u2.m[i][j])
		}
	}
	res := &Domain{vars: u1.vars, idx: u1.idx, m: m}
	return res.closure()
}

// Widening keeps entries that did not grow and sends every entry that grew
// (or appeared new) to +inf, per spec.md section 4.4.
func (d *Domain) Widening(other numdomain.Numerical) numdomain.Numerical {
	o := other.(*Domain)
	if d.bottom {
		return o
	}
	if o.bottom {
		return d
	}
	u1, u2 := unify(d, o)
	n := len(u1.m)
	m := zeroMatrix(len(u1.vars))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				m[i][j] = u2.m[i][j]
				continue
			}
			if u2.m[i][j].LessEqual(u1.m[i][j]) {
				m[i][j] = u2.m[i][j]
			} else {
				m[i][j] = bound.PosInf
			}
		}
	}
	return &Domain{vars: u1.vars, idx: u1.idx, m: m}
}

// Narrowing is not threshold-aware; see DESIGN.md's Open Question note (the
// octagon/gauge domains share this limitation).
func (d *Domain) Narrowing(other numdomain.Numerical) numdomain.Numerical {
	o := other.(*Domain)
	if d.bottom || o.bottom {
		return Bottom()
	}
	u1, u2 := unify(d, o)
	n := len(u1.m)
	m := zeroMatrix(len(u1.vars))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if u1.m[i][j].IsPosInf() {
				m[i][j] = u2.m[i][j]
			} else {
				m[i][j] = u1.m[i][j]
			}
		}
	}
	res := &Domain{vars: u1.vars, idx: u1.idx, m: m}
	return res.closure()
}

func (d *Domain) ToInterval(x variable.Variable) bound.Interval {
	if d.bottom {
		return bound.BottomInterval()
	}
	i, ok := d.slot(x)
	if !ok {
		return bound.TopInterval()
	}
	cd := d
	if !d.normalized {
		cd = d.closure()
		if cd.bottom {
			return bound.BottomInterval()
		}
	}
	hi := cd.m[i][0]
	lo := bound.Neg(cd.m[0][i])
	return bound.Closed(lo, hi)
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

// Set installs an absolute bound for x (the two constraints x <= hi and
// -x <= -lo), leaving existing difference constraints with other variables
// intact, then recloses.
func (d *Domain) Set(x variable.Variable, i bound.Interval) numdomain.Numerical {
	if d.bottom {
		return d
	}
	if i.IsBottom() {
		return Bottom()
	}
	r := d.clone()
	xi := r.ensureVar(x)
	if i.Hi().IsFinite() {
		if i.Hi().LessThan(r.m[xi][0]) {
			r.m[xi][0] = i.Hi()
		}
	}
	if i.Lo().IsFinite() {
		negLo := bound.Neg(i.Lo())
		if negLo.LessThan(r.m[0][xi]) {
			r.m[0][xi] = negLo
		}
	}
	r.normalized = false
	return r.closure()
}

func (d *Domain) Forget(x variable.Variable) numdomain.Numerical {
	if d.bottom {
		return d
	}
	i, ok := d.slot(x)
	if !ok {
		return d
	}
	r := d.clone()
	n := len(r.m)
	for j := 0; j < n; j++ {
		if j != i {
			r.m[i][j] = bound.PosInf
			r.m[j][i] = bound.PosInf
		}
	}
	r.normalized = false
	return r
}

func (d *Domain) Assign(x variable.Variable, e numdomain.Expr) numdomain.Numerical {
	if d.bottom {
		return d
	}
	if ve, ok := e.(numdomain.VarExpr); ok && !ve.V.Equal(x) {
		return d.assignExactDiff(x, ve.V, bound.Finite(number.Zero))
	}
	// General expressions (linear combinations, constants) lose the
	// relational link between x and the rest of the matrix; fall back to
	// tracking only x's absolute interval, which is always sound.
	return d.Set(x, e.Eval(d))
}

// assignExactDiff installs x := y + c as the two tight constraints
// x - y <= c and y - x <= -c, after first forgetting x's old relations.
func (d *Domain) assignExactDiff(x, y variable.Variable, c bound.Bound) numdomain.Numerical {
	r := d.Forget(x).(*Domain)
	xi := r.ensureVar(x)
	yi := r.ensureVar(y)
	r.m[xi][yi] = c
	r.m[yi][xi] = bound.Neg(c)
	r.normalized = false
	return r.closure()
}

func (d *Domain) Apply(op numdomain.BinOp, x, y variable.Variable, z numdomain.Operand) numdomain.Numerical {
	if d.bottom {
		return d
	}
	if !z.IsVar() {
		switch op {
		case numdomain.OpAdd:
			return d.assignExactDiff(x, y, bound.Finite(z.Const()))
		case numdomain.OpSub:
			return d.assignExactDiff(x, y, bound.Finite(z.Const().Neg()))
		}
	}
	// Three-variable or non-additive operators are not difference
	// constraints; degrade to tracking x's absolute interval only, which is
	// sound precision loss (spec.md section 7).
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
	v1, ok1 := e1.(numdomain.VarExpr)
	v2, ok2 := e2.(numdomain.VarExpr)
	if ok1 && ok2 {
		return d.addVarVarConstraint(pred, v1.V, v2.V)
	}
	// Fall back to the non-relational refinement any Numerical domain can
	// perform: project both sides to intervals, meet, and reinstall via Set.
	i1, i2 := e1.Eval(d), e2.Eval(d)
	switch pred {
	case numdomain.CmpEq:
		m := i1.Meet(i2)
		if m.IsBottom() {
			return Bottom()
		}
		if ok1 {
			return d.Set(v1.V, m)
		}
		if ok2 {
			return d.Set(v2.V, m)
		}
		return d
	default:
		return d
	}
}

// addVarVarConstraint installs a difference constraint for x op y where op
// is one of the four ordering predicates or equality; any other predicate
// (such as disequality) leaves d unchanged.
func (d *Domain) addVarVarConstraint(pred numdomain.CompareOp, x, y variable.Variable) numdomain.Numerical {
	r := d.clone()
	xi := r.ensureVar(x)
	yi := r.ensureVar(y)
	switch pred {
	case numdomain.CmpEq:
		r.m[xi][yi] = bound.Min(r.m[xi][yi], bound.Finite(number.Zero))
		r.m[yi][xi] = bound.Min(r.m[yi][xi], bound.Finite(number.Zero))
	case numdomain.CmpSle, numdomain.CmpUle:
		r.m[xi][yi] = bound.Min(r.m[xi][yi], bound.Finite(number.Zero))
	case numdomain.CmpSlt, numdomain.CmpUlt:
		r.m[xi][yi] = bound.Min(r.m[xi][yi], bound.Finite(number.Zero.Sub(number.One)))
	default:
		return d
	}
	r.normalized = false
	return r.closure()
}

func (d *Domain) String() string {
	if d.bottom {
		return "bottom"
	}
	var sb strings.Builder
	sb.WriteString("{")
	for i, v := range d.vars {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(v.String())
		sb.WriteString(": ")
		sb.WriteString(d.ToInterval(v).String())
	}
	sb.WriteString("}")
	return sb.String()
}

var _ numdomain.Numerical = (*Domain)(nil)
