// Package scalar implements the scalar composite domain of spec.md section
// 4.9: it assembles uninitialized/nullity tracking, a pluggable numerical
// domain, and the points-to/pointer domain into one abstract value, and
// dispatches each operation to the correct subset of that state based on a
// variable's static Kind (int, float, pointer, dynamic).
//
// Grounded on spec.md section 4.9's table directly, composed from the three
// packages below it in the stack (internal/numdomain, internal/pointer,
// internal/uninit) the same "trait per layer, no deep inheritance" way
// internal/pointer composes internal/uninit and internal/patricia.
package scalar

import (
	"fmt"

	"absint/internal/bound"
	"absint/internal/linear"
	"absint/internal/location"
	"absint/internal/number"
	"absint/internal/numdomain"
	"absint/internal/pointer"
	"absint/internal/uninit"
	"absint/internal/variable"
)

// Domain is the scalar composite abstract value. Num carries both plain
// integer values and every pointer's offset shadow variable in one shared
// embedded numerical domain, exactly as section 4.8 specifies ("offset(p)
// is just another numerical variable").
type Domain struct {
	bottom bool
	Num    numdomain.Numerical
	Init   *uninit.InitEnv
	Ptr    *pointer.Domain
}

// Top builds the unconstrained scalar state over the given numerical
// domain kind (a zero/top value of whichever concrete Numerical the caller
// has chosen, e.g. numdomain.TopInterval()).
func Top(numTop numdomain.Numerical) *Domain {
	return &Domain{Num: numTop, Init: uninit.TopInitEnv(), Ptr: pointer.Top()}
}

func Bottom(numTop numdomain.Numerical) *Domain {
	return &Domain{bottom: true, Num: numTop, Init: uninit.BottomInitEnv(), Ptr: pointer.Bottom()}
}

func (d *Domain) IsBottom() bool {
	return d.bottom || d.Num.IsBottom() || d.Init.IsBottom() || d.Ptr.IsBottom()
}

func (d *Domain) IsTop() bool {
	return !d.IsBottom() && d.Num.IsTop() && d.Init.IsTop() && d.Ptr.IsTop()
}

func (d *Domain) collapseIfBottom() *Domain {
	if d.IsBottom() && !d.bottom {
		return &Domain{bottom: true, Num: d.Num, Init: d.Init, Ptr: d.Ptr}
	}
	return d
}

// assertRead asserts v is initialized before a read; a value-producing
// statement's *other* operand is exempt when op is a bitwise and/or
// against a constant (spec.md section 4.9's bitfield-idiom exception),
// which callers signal via skip.
func (d *Domain) assertRead(v variable.Variable, skip bool) *Domain {
	if d.bottom || skip {
		return d
	}
	return &Domain{Num: d.Num, Init: uninit.AssertInitialized(d.Init, v), Ptr: d.Ptr}
}

// IntAssign implements x := e for an int/dynamic variable: evaluates e in
// Num and marks x initialized.
func (d *Domain) IntAssign(x variable.Variable, e numdomain.Expr) *Domain {
	if d.bottom {
		return d
	}
	r := &Domain{Num: d.Num.Assign(x, e), Init: d.Init.Set(x, uninit.Initialized()), Ptr: d.Ptr}
	return r.collapseIfBottom()
}

// isBitfieldIdiom reports whether op is And/Or against a constant operand,
// the one shape spec.md section 4.9 exempts from the initialization
// assertion on the other operand.
func isBitfieldIdiom(op numdomain.BinOp, z numdomain.Operand) bool {
	return (op == numdomain.OpAnd || op == numdomain.OpOr) && !z.IsVar()
}

// IntApply implements x := y op z for int/dynamic variables, with the
// read-assertion exception for bitwise and/or against a constant.
func (d *Domain) IntApply(op numdomain.BinOp, x, y variable.Variable, z numdomain.Operand) *Domain {
	if d.bottom {
		return d
	}
	skipY := isBitfieldIdiom(op, z)
	r := d.assertRead(y, skipY)
	if z.IsVar() {
		r = r.assertRead(z.Var(), skipY)
	}
	if r.bottom {
		return r
	}
	r = &Domain{Num: r.Num.Apply(op, x, y, z), Init: r.Init.Set(x, uninit.Initialized()), Ptr: r.Ptr}
	return r.collapseIfBottom()
}

// IntAddConstraint implements add(pred, ...) for int/dynamic comparisons.
func (d *Domain) IntAddConstraint(pred numdomain.CompareOp, e1, e2 numdomain.Expr) *Domain {
	if d.bottom {
		return d
	}
	r := &Domain{Num: d.Num.AddConstraint(pred, e1, e2), Init: d.Init, Ptr: d.Ptr}
	return r.collapseIfBottom()
}

// ToInterval is the query accessor of spec.md section 6.
func (d *Domain) ToInterval(x variable.Variable) bound.Interval {
	if d.bottom {
		return bound.BottomInterval()
	}
	return d.Num.ToInterval(x)
}

// FloatInit marks a float variable initialized (section 4.9: float tracks
// initialization only, value abstracted to top).
func (d *Domain) FloatInit(x variable.Variable) *Domain {
	if d.bottom {
		return d
	}
	return &Domain{Num: d.Num, Init: d.Init.Set(x, uninit.Initialized()), Ptr: d.Ptr}
}

// FloatRead asserts a float variable is initialized before use.
func (d *Domain) FloatRead(x variable.Variable) *Domain {
	return d.assertRead(x, false).collapseIfBottom()
}

// PointerAssignAddr implements pointer_assign(p, &m, nullity): points-to
// becomes {m}, offset(p) is bound to a fresh shadow variable zeroed in Num,
// and p is marked initialized.
func (d *Domain) PointerAssignAddr(p variable.Variable, m location.MemoryLocation, offsetVar variable.Variable, null uninit.Nullity) *Domain {
	if d.bottom {
		return d
	}
	num := d.Num.Set(offsetVar, zeroInterval())
	r := &Domain{Num: num, Init: d.Init.Set(p, uninit.Initialized()), Ptr: d.Ptr.AssignAddr(p, m, offsetVar, null)}
	return r.collapseIfBottom()
}

// PointerAssignNull implements pointer_assign_null(p): offset(p) is zeroed
// and nullity becomes Null (see pointer.Domain.AssignNull for why the
// address set itself is left at top rather than made empty).
func (d *Domain) PointerAssignNull(p variable.Variable, offsetVar variable.Variable) *Domain {
	if d.bottom {
		return d
	}
	num := d.Num.Set(offsetVar, zeroInterval())
	r := &Domain{Num: num, Init: d.Init.Set(p, uninit.Initialized()), Ptr: d.Ptr.AssignNull(p, offsetVar)}
	return r.collapseIfBottom()
}

// PointerAssignCopy implements pointer_assign(p, q, off): requires q be
// read-initialized first, then delegates to pointer.Domain.AssignCopy and
// applies the resulting Realize descriptor to Num so offset(p) tracks
// offset(q) + off.
func (d *Domain) PointerAssignCopy(p, q variable.Variable, offsetVarP variable.Variable, off number.Number) *Domain {
	if d.bottom {
		return d
	}
	r := d.assertRead(q, false)
	if r.bottom {
		return r
	}
	ptr, realize := r.Ptr.AssignCopy(p, q, offsetVarP, off)
	num := r.Num
	if realize.HasSrc {
		num = num.Assign(realize.Dst, numdomain.LinearExpr{E: addConstExpr(realize.Src, realize.Const)})
	} else {
		num = num.Set(realize.Dst, zeroInterval())
	}
	r2 := &Domain{Num: num, Init: r.Init.Set(p, uninit.Initialized()), Ptr: ptr}
	return r2.collapseIfBottom()
}

// PointerCompare implements pointer_add(pred, p, q): delegates to
// pointer.Domain.Compare and, when it returns an offset Constraint,
// additionally installs it in Num.
func (d *Domain) PointerCompare(pred numdomain.CompareOp, p, q variable.Variable) *Domain {
	if d.bottom {
		return d
	}
	r := d.assertRead(p, false).assertRead(q, false)
	if r.bottom {
		return r
	}
	ptr, c := r.Ptr.Compare(pred, p, q)
	num := r.Num
	if c != nil {
		num = num.AddConstraint(c.Pred, numdomain.VarExpr{V: c.X}, numdomain.VarExpr{V: c.Y})
	}
	r2 := &Domain{Num: num, Init: r.Init, Ptr: ptr}
	return r2.collapseIfBottom()
}

// PointerRead asserts p is initialized and non-null-unchecked before a
// dereference; it does NOT itself check nullity (mem_read/mem_write in
// internal/memdomain perform the null/uninitialized check per spec.md
// section 4.10, since only they know whether a null dereference is
// definite or possible).
func (d *Domain) PointerRead(p variable.Variable) *Domain {
	return d.assertRead(p, false).collapseIfBottom()
}

// Forget drops all scalar state about x across every sub-domain.
func (d *Domain) Forget(x variable.Variable) *Domain {
	if d.bottom {
		return d
	}
	return &Domain{Num: d.Num.Forget(x), Init: d.Init.Forget(x), Ptr: d.Ptr.Forget(x)}
}

// Reduce performs the dynamic-kind cross-domain reduction spec.md section
// 4.9 calls for on read: a dynamic variable whose nullity in Ptr is known
// (Null or NonNull) is marked Initialized in Init. The reduction runs in
// that one direction only; Init never tightens Ptr.
// This is intentionally narrow (the reference reduction described by
// spec.md is between int/ptr/nullity/uninit on one *dynamic* variable, not
// a general reduced-product solver).
func (d *Domain) Reduce(x variable.Variable) *Domain {
	if d.bottom {
		return d
	}
	st := d.Ptr.Get(x)
	init := d.Init
	if st.Null.IsNonNull() || st.Null.IsNull() {
		init = init.Set(x, uninit.Initialized())
	}
	r := &Domain{Num: d.Num, Init: init, Ptr: d.Ptr}
	return r.collapseIfBottom()
}

// WithNum replaces d's numerical component, used by internal/memdomain to
// install a cell's written value directly without the Init bookkeeping
// IntAssign/IntApply perform for surface variables (a cell's scalar_var
// has its own Lifetime/CellSet bookkeeping instead).
func (d *Domain) WithNum(num numdomain.Numerical) *Domain {
	if d.bottom {
		return d
	}
	r := &Domain{Num: num, Init: d.Init, Ptr: d.Ptr}
	return r.collapseIfBottom()
}

func (d *Domain) Leq(o *Domain) bool {
	if d.bottom {
		return true
	}
	if o.bottom {
		return false
	}
	return d.Num.Leq(o.Num) && d.Init.Leq(o.Init) && d.Ptr.Leq(o.Ptr)
}

func (d *Domain) Join(o *Domain) *Domain {
	if d.bottom {
		return o
	}
	if o.bottom {
		return d
	}
	return &Domain{Num: d.Num.Join(o.Num), Init: d.Init.Join(o.Init), Ptr: d.Ptr.Join(o.Ptr)}
}

func (d *Domain) Meet(o *Domain) *Domain {
	if d.bottom || o.bottom {
		return Bottom(d.Num)
	}
	r := &Domain{Num: d.Num.Meet(o.Num), Init: d.Init.Meet(o.Init), Ptr: d.Ptr.Meet(o.Ptr)}
	return r.collapseIfBottom()
}

func (d *Domain) Widening(o *Domain) *Domain {
	if d.bottom {
		return o
	}
	if o.bottom {
		return d
	}
	return &Domain{Num: d.Num.Widening(o.Num), Init: d.Init.Widening(o.Init), Ptr: d.Ptr.Widening(o.Ptr)}
}

func (d *Domain) Narrowing(o *Domain) *Domain {
	if d.bottom || o.bottom {
		return Bottom(d.Num)
	}
	r := &Domain{Num: d.Num.Narrowing(o.Num), Init: d.Init.Narrowing(o.Init), Ptr: d.Ptr.Narrowing(o.Ptr)}
	return r.collapseIfBottom()
}

func (d *Domain) Normalize() *Domain {
	if d.bottom {
		return d
	}
	return &Domain{Num: d.Num.Normalize(), Init: d.Init, Ptr: d.Ptr}
}

func (d *Domain) String() string {
	if d.bottom {
		return "bottom"
	}
	return fmt.Sprintf("{num=%v init=%v ptr=%v}", d.Num, d.Init, d.Ptr)
}

func zeroInterval() bound.Interval { return bound.SingletonInt64(0) }

// addConstExpr builds the linear expression src + c, used by
// PointerAssignCopy to realize offset(p) = offset(q) + off.
func addConstExpr(src variable.Variable, c number.Number) linear.Expression {
	return linear.Var(src).Add(linear.Constant(c))
}
