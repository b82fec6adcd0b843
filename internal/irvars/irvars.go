// Package irvars implements the "Literal / variable traits" component
// spec.md's component table reserves 3% of the core for: a bridge from a
// real front-end's IR values into this engine's Variable/Literal model
// (internal/variable), without implementing any part of a front-end
// itself. The front-end this bridges is github.com/llir/llvm, the one
// domain-appropriate IR binding in the retrieval pack (carried as an
// indirect dependency of the teacher's own go.mod).
//
// Grounded on spec.md section 6's literal enum ("integer constant (value +
// width + sign), float constant (opaque), undef, null pointer, variable
// reference") and on the teacher's internal/vmregister, whose value.go
// performs the analogous bridge from its own bytecode operand encoding
// into internal register values.
package irvars

import (
	"fmt"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"absint/internal/actx"
	"absint/internal/number"
	"absint/internal/variable"
)

// KindOf maps an LLVM IR type to this engine's static variable Kind
// (spec.md section 4.9's {int, float, pointer, dynamic} dispatch). Vectors,
// aggregates, and anything else with no single scalar representation are
// Dynamic: the scalar composite domain already knows how to fall back to
// "track everything, reduce on read" for a kind it cannot specialize,
// which is the sound default for an IR shape this engine does not model
// precisely.
func KindOf(t types.Type) variable.Kind {
	switch t.(type) {
	case *types.IntType:
		return variable.Int
	case *types.FloatType:
		return variable.Float
	case *types.PointerType:
		return variable.Pointer
	default:
		return variable.Dynamic
	}
}

// widthOf returns the bit width this engine should track for t: the exact
// integer width for an IntType, a fixed 64 for every pointer (this engine
// does not model distinct address-space widths), and 0 (meaningless,
// ignored by the scalar domain) for anything else.
func widthOf(t types.Type) uint {
	switch tt := t.(type) {
	case *types.IntType:
		return uint(tt.BitSize)
	case *types.PointerType:
		return 64
	default:
		return 0
	}
}

// Registry binds llir/llvm value.Value identities to the Variable this
// engine tracks for them, so repeated references to the same IR value
// (every use of one SSA name) resolve to the same Variable identity. This
// is a pre-pass, single-owner structure exactly like internal/actx.Context
// itself: a driver builds one Registry per function body before running
// the fixpoint, then only reads from it.
type Registry struct {
	ctx   *actx.Context
	fn    string
	vars  map[value.Value]variable.Variable
}

// NewRegistry builds an empty registry for one function body named fn,
// allocating fresh Variables through ctx.
func NewRegistry(ctx *actx.Context, fn string) *Registry {
	return &Registry{ctx: ctx, fn: fn, vars: make(map[value.Value]variable.Variable)}
}

// Bind registers an LLVM IR named value (an *ir.Param, an instruction
// result, a global) as a tracked Variable, returning the same Variable on
// every later call for the same v.
func (r *Registry) Bind(v value.Named) variable.Variable {
	if existing, ok := r.vars[v]; ok {
		return existing
	}
	name := fmt.Sprintf("%s::%s", r.fn, v.Name())
	vv := r.ctx.FreshVariable(name, KindOf(v.Type()), widthOf(v.Type()), number.Signed)
	r.vars[v] = vv
	return vv
}

// Lookup returns the Variable already bound to v, if any; unlike Bind it
// never allocates, so a driver walking instruction operands can tell
// "already-seen SSA value" apart from "needs literal translation" (constant
// operands are never bound, only translated via Literal below).
func (r *Registry) Lookup(v value.Value) (variable.Variable, bool) {
	vv, ok := r.vars[v]
	return vv, ok
}

// Literal translates an LLVM IR operand into the literal enum crossing the
// statement-level API boundary (spec.md section 6): a constant becomes the
// matching IntConst/FloatConst/Undef/NullPointer, and anything else (a
// use of another instruction's result, a parameter) is resolved through
// reg as a VarRef. A named value reg has not seen yet is bound through
// reg.Bind on the spot rather than rejected; any other operand kind becomes
// Undef.
func Literal(reg *Registry, v value.Value) variable.Literal {
	switch c := v.(type) {
	case *constant.Int:
		it, ok := c.Typ.(*types.IntType)
		if !ok {
			return variable.Undef()
		}
		return variable.IntConst(number.FromBigInt(c.X), uint(it.BitSize), number.Signed)
	case *constant.Float:
		return variable.FloatConst()
	case *constant.Null:
		return variable.NullPointer()
	case *constant.Undef:
		return variable.Undef()
	case *constant.ZeroInitializer:
		if _, ok := c.Typ.(*types.PointerType); ok {
			return variable.NullPointer()
		}
		return variable.IntConst(number.FromInt64(0), widthOf(c.Typ), number.Signed)
	case value.Named:
		vv, ok := reg.Lookup(c)
		if !ok {
			vv = reg.Bind(c)
		}
		return variable.VarRef(vv)
	default:
		return variable.Undef()
	}
}
