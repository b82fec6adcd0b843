// Package octagon implements the octagon domain of spec.md section 4.5:
// constraints of the form ±xi ± xj <= c, represented as a 2n x 2n
// difference-bound matrix over the doubled variable set {+x0,-x0,+x1,-x1,...}
// (Miné's encoding, V2i = +xi, V2i+1 = -xi here using 0-based indices).
//
// Grounded on internal/dbm's matrix-and-bijection shape (itself grounded on
// the teacher's internal/vmregister dense index handles) and spec.md section
// 4.5's literal description of Miné's strong closure.
package octagon

import (
	"strings"

	"absint/internal/bound"
	"absint/internal/number"
	"absint/internal/numdomain"
	"absint/internal/variable"
)

// Domain is an octagon over some set of tracked variables. Logical variable
// i occupies matrix rows/columns pos(i)=2i (+xi) and neg(i)=2i+1 (-xi).
type Domain struct {
	bottom     bool
	vars       []variable.Variable
	idx        map[uint64]int
	m          [][]bound.Bound
	normalized bool
}

func Top() *Domain {
	return &Domain{idx: map[uint64]int{}, m: zeroMatrix(0), normalized: true}
}

func Bottom() *Domain {
	return &Domain{bottom: true, idx: map[uint64]int{}}
}

func pos(i int) int  { return 2 * i }
func neg(i int) int  { return 2*i + 1 }
func conj(k int) int { return k ^ 1 }

func zeroMatrix(n int) [][]bound.Bound {
	dim := 2 * n
	m := make([][]bound.Bound, dim)
	for i := range m {
		m[i] = make([]bound.Bound, dim)
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

func (d *Domain) ensureVar(v variable.Variable) int {
	if i, ok := d.idx[v.Index()]; ok {
		return i
	}
	oldN := len(d.vars)
	newDim := 2 * (oldN + 1)
	m := make([][]bound.Bound, newDim)
	for i := 0; i < newDim; i++ {
		m[i] = make([]bound.Bound, newDim)
		for j := 0; j < newDim; j++ {
			switch {
			case i == j:
				m[i][j] = bound.Finite(number.Zero)
			case i < 2*oldN && j < 2*oldN:
				m[i][j] = d.m[i][j]
			default:
				m[i][j] = bound.PosInf
			}
		}
	}
	d.m = m
	d.vars = append(d.vars, v)
	d.idx[v.Index()] = oldN
	d.normalized = false
	return oldN
}

func (d *Domain) slot(v variable.Variable) (int, bool) {
	i, ok := d.idx[v.Index()]
	return i, ok
}

func floorDiv2(n number.Number) number.Number {
	two := number.FromInt64(2)
	q, r := n.QuoRem(two)
	if r.IsZero() || n.Sign() >= 0 {
		return q
	}
	return q.Sub(number.One)
}

func ceilDiv2(n number.Number) number.Number {
	two := number.FromInt64(2)
	q, r := n.QuoRem(two)
	if r.IsZero() || n.Sign() < 0 {
		return q
	}
	return q.Add(number.One)
}

func halfFloor(b bound.Bound) bound.Bound {
	if !b.IsFinite() {
		return b
	}
	return bound.Finite(floorDiv2(b.Number()))
}

func halfCeil(b bound.Bound) bound.Bound {
	if !b.IsFinite() {
		return b
	}
	return bound.Finite(ceilDiv2(b.Number()))
}

// closure performs Miné's strong closure (spec.md section 4.5): a full
// Floyd-Warshall pass over the doubled matrix, a coherence pass enforcing
// m[i][j] == m[conj(j)][conj(i)], and the sqrt tightening pass, in that
// order. A negative entry on the real diagonal after the first pass means
// bottom (two complementary single-variable bounds that cross).
func (d *Domain) closure() *Domain {
	if d.bottom {
		return d
	}
	r := d.clone()
	dim := len(r.m)
	for k := 0; k < dim; k++ {
		for i := 0; i < dim; i++ {
			if r.m[i][k].IsPosInf() {
				continue
			}
			for j := 0; j < dim; j++ {
				via := bound.Add(r.m[i][k], r.m[k][j])
				if via.LessThan(r.m[i][j]) {
					r.m[i][j] = via
				}
			}
		}
	}
	for i := 0; i < dim; i++ {
		if r.m[i][i].IsFinite() && r.m[i][i].Number().Sign() < 0 {
			return Bottom()
		}
	}
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			cand := r.m[conj(j)][conj(i)]
			if cand.LessThan(r.m[i][j]) {
				r.m[i][j] = cand
			}
		}
	}
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			cand := halfCeil(bound.Add(r.m[i][conj(i)], r.m[conj(j)][j]))
			if cand.LessThan(r.m[i][j]) {
				r.m[i][j] = cand
			}
		}
	}
	for i := 0; i < dim; i++ {
		if r.m[i][i].IsFinite() && r.m[i][i].Number().Sign() < 0 {
			return Bottom()
		}
	}
	r.normalized = true
	return r
}

func (d *Domain) Normalize() numdomain.Numerical {
	if d.bottom || d.normalized {
		return d
	}
	return d.closure()
}

func unify(d1, d2 *Domain) (*Domain, *Domain) {
	u1 := d1.clone()
	for _, v := range d2.vars {
		if _, ok := u1.idx[v.Index()]; !ok {
			u1.ensureVar(v)
		}
	}
	return u1, reorder(d2, u1.vars)
}

func reorder(d *Domain, order []variable.Variable) *Domain {
	n := len(order)
	m := zeroMatrix(n)
	idx := make(map[uint64]int, n)
	for i, v := range order {
		idx[v.Index()] = i
	}
	for i := range m {
		for j := range m[i] {
			si := srcDoubled(d, order, i)
			sj := srcDoubled(d, order, j)
			if si < 0 || sj < 0 {
				if i == j {
					m[i][j] = bound.Finite(number.Zero)
				} else {
					m[i][j] = bound.PosInf
				}
				continue
			}
			m[i][j] = d.m[si][sj]
		}
	}
	return &Domain{vars: append([]variable.Variable(nil), order...), idx: idx, m: m, normalized: d.normalized}
}

// srcDoubled maps doubled index k (in the new ordering) back to d's doubled
// index for the same logical variable and parity, or -1 if d doesn't track it.
func srcDoubled(d *Domain, order []variable.Variable, k int) int {
	logical := k / 2
	parity := k % 2
	v := order[logical]
	oldLogical, ok := d.idx[v.Index()]
	if !ok {
		return -1
	}
	return 2*oldLogical + parity
}

func (d *Domain) Leq(other numdomain.Numerical) bool {
	o := other.(*Domain)
	if d.bottom {
		return true
	}
	if o.bottom {
		return false
	}
	c1, c2 := d.closure(), o.closure()
	if c1.bottom {
		return true
	}
	if c2.bottom {
		return false
	}
	u1, u2 := unify(c1, c2)
	for i := range u1.m {
		for j := range u1.m[i] {
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
	m := zeroMatrix(len(u1.vars))
	for i := range m {
		for j := range m[i] {
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
	m := zeroMatrix(len(u1.vars))
	for i := range m {
		for j := range m[i] {
			m[i][j] = bound.Min(u1.m[i][j], u2.m[i][j])
		}
	}
	return (&Domain{vars: u1.vars, idx: u1.idx, m: m}).closure()
}

func (d *Domain) Widening(other numdomain.Numerical) numdomain.Numerical {
	o := other.(*Domain)
	if d.bottom {
		return o
	}
	if o.bottom {
		return d
	}
	u1, u2 := unify(d, o)
	m := zeroMatrix(len(u1.vars))
	for i := range m {
		for j := range m[i] {
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

// Narrowing falls back to the non-threshold variant; see DESIGN.md's Open
// Question note (spec.md section 9 OQ2).
func (d *Domain) Narrowing(other numdomain.Numerical) numdomain.Numerical {
	o := other.(*Domain)
	if d.bottom || o.bottom {
		return Bottom()
	}
	u1, u2 := unify(d, o)
	m := zeroMatrix(len(u1.vars))
	for i := range m {
		for j := range m[i] {
			if u1.m[i][j].IsPosInf() {
				m[i][j] = u2.m[i][j]
			} else {
				m[i][j] = u1.m[i][j]
			}
		}
	}
	return (&Domain{vars: u1.vars, idx: u1.idx, m: m}).closure()
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
	hi := halfFloor(cd.m[pos(i)][neg(i)])
	lo := bound.Neg(halfFloor(cd.m[neg(i)][pos(i)]))
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
		c := bound.Finite(i.Hi().Number().Mul(number.FromInt64(2)))
		if c.LessThan(r.m[pos(xi)][neg(xi)]) {
			r.m[pos(xi)][neg(xi)] = c
		}
	}
	if i.Lo().IsFinite() {
		c := bound.Finite(i.Lo().Number().Neg().Mul(number.FromInt64(2)))
		if c.LessThan(r.m[neg(xi)][pos(xi)]) {
			r.m[neg(xi)][pos(xi)] = c
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
	dim := len(r.m)
	for _, k := range []int{pos(i), neg(i)} {
		for j := 0; j < dim; j++ {
			if j != k {
				r.m[k][j] = bound.PosInf
				r.m[j][k] = bound.PosInf
			}
		}
	}
	r.normalized = false
	return r
}

func (d *Domain) assignExactDiff(x, y variable.Variable, c bound.Bound) numdomain.Numerical {
	r := d.Forget(x).(*Domain)
	xi := r.ensureVar(x)
	yi := r.ensureVar(y)
	r.m[pos(xi)][pos(yi)] = c
	r.m[pos(yi)][pos(xi)] = bound.Neg(c)
	r.normalized = false
	return r.closure()
}

func (d *Domain) Assign(x variable.Variable, e numdomain.Expr) numdomain.Numerical {
	if d.bottom {
		return d
	}
	if ve, ok := e.(numdomain.VarExpr); ok && !ve.V.Equal(x) {
		return d.assignExactDiff(x, ve.V, bound.Finite(number.Zero))
	}
	return d.Set(x, e.Eval(d))
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

type signedVar struct {
	v   variable.Variable
	neg bool
}

// extractTerms decomposes e into a sum of at most two unit-coefficient
// (+-1) variable terms plus a constant, which is exactly the shape an
// octagon constraint can represent; anything richer (larger coefficients,
// more than two variables) returns ok == false.
func extractTerms(e numdomain.Expr) (terms []signedVar, constant number.Number, ok bool) {
	switch t := e.(type) {
	case numdomain.ConstExpr:
		return nil, t.N, true
	case numdomain.VarExpr:
		return []signedVar{{v: t.V}}, number.Zero, true
	case numdomain.LinearExpr:
		ok = true
		constant = t.E.ConstantTerm()
		t.E.ForEachTerm(func(v variable.Variable, coeff number.Number) {
			switch {
			case coeff.Equal(number.One):
				terms = append(terms, signedVar{v: v})
			case coeff.Equal(number.One.Neg()):
				terms = append(terms, signedVar{v: v, neg: true})
			default:
				ok = false
			}
		})
		if len(terms) > 2 {
			ok = false
		}
		return
	default:
		return nil, number.Number{}, false
	}
}

// addOctTerm installs sum(terms) <= c directly into r's raw matrix (caller
// is responsible for cloning and re-closing).
func addOctTerm(r *Domain, terms []signedVar, c number.Number) {
	switch len(terms) {
	case 0:
		// 0 <= c: nothing to store; an inconsistent case (c < 0) is caught
		// by the caller's closure pass once combined with existing facts.
	case 1:
		t := terms[0]
		i := r.ensureVar(t.v)
		two := number.FromInt64(2)
		if !t.neg {
			cb := bound.Finite(c.Mul(two))
			if cb.LessThan(r.m[pos(i)][neg(i)]) {
				r.m[pos(i)][neg(i)] = cb
			}
		} else {
			cb := bound.Finite(c.Mul(two))
			if cb.LessThan(r.m[neg(i)][pos(i)]) {
				r.m[neg(i)][pos(i)] = cb
			}
		}
	case 2:
		t1, t2 := terms[0], terms[1]
		i1, i2 := r.ensureVar(t1.v), r.ensureVar(t2.v)
		a := pos(i1)
		if t1.neg {
			a = neg(i1)
		}
		b := neg(i2)
		if t2.neg {
			b = pos(i2)
		}
		cb := bound.Finite(c)
		if cb.LessThan(r.m[a][b]) {
			r.m[a][b] = cb
		}
	}
}

func (d *Domain) AddConstraint(pred numdomain.CompareOp, e1, e2 numdomain.Expr) numdomain.Numerical {
	if d.bottom {
		return d
	}
	terms1, c1, ok1 := extractTerms(e1)
	terms2, c2, ok2 := extractTerms(e2)
	if ok1 && ok2 && (len(terms1)+len(terms2)) <= 2 {
		combined := append(append([]signedVar(nil), terms1...), negateAll(terms2)...)
		combined = mergeTerms(combined)
		rhs := c2.Sub(c1)
		if len(combined) <= 2 {
			switch pred {
			case numdomain.CmpEq:
				r := d.clone()
				addOctTerm(r, combined, rhs)
				addOctTerm(r, negateAll(combined), rhs.Neg())
				r.normalized = false
				return r.closure()
			case numdomain.CmpSle, numdomain.CmpUle:
				r := d.clone()
				addOctTerm(r, combined, rhs)
				r.normalized = false
				return r.closure()
			case numdomain.CmpSlt, numdomain.CmpUlt:
				r := d.clone()
				addOctTerm(r, combined, rhs.Sub(number.One))
				r.normalized = false
				return r.closure()
			}
		}
	}
	// General expressions fall back to the non-relational refinement every
	// Numerical domain supports.
	i1, i2 := e1.Eval(d), e2.Eval(d)
	if pred == numdomain.CmpEq {
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
	}
	return d
}

func negateAll(terms []signedVar) []signedVar {
	out := make([]signedVar, len(terms))
	for i, t := range terms {
		out[i] = signedVar{v: t.v, neg: !t.neg}
	}
	return out
}

// mergeTerms cancels opposite-sign entries referring to the same variable
// (e.g. x - x collapses to nothing); a same-sign repeat (x + x) is kept as
// two entries, each still with a coefficient in {+1,-1}.
func mergeTerms(terms []signedVar) []signedVar {
	var out []signedVar
	for _, t := range terms {
		merged := false
		for i, o := range out {
			if o.v.Equal(t.v) && o.neg != t.neg {
				out = append(out[:i], out[i+1:]...)
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, t)
		}
	}
	return out
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
