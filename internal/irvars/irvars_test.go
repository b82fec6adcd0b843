package irvars

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"

	"absint/internal/actx"
	"absint/internal/variable"
)

func TestKindOfMapsScalarLLVMTypes(t *testing.T) {
	cases := []struct {
		name string
		typ  types.Type
		want variable.Kind
	}{
		{"int", types.I32, variable.Int},
		{"float", types.Double, variable.Float},
		{"pointer", types.NewPointer(types.I8), variable.Pointer},
		{"aggregate falls back to dynamic", types.NewArray(4, types.I32), variable.Dynamic},
	}
	for _, c := range cases {
		if got := KindOf(c.typ); got != c.want {
			t.Errorf("%s: KindOf() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestRegistryBindIsStablePerValue(t *testing.T) {
	ctx := actx.New()
	reg := NewRegistry(ctx, "main")
	p := ir.NewParam("x", types.I32)

	first := reg.Bind(p)
	second := reg.Bind(p)
	if first != second {
		t.Errorf("Bind: want the same Variable across repeated binds of the same value, got %v and %v", first, second)
	}

	if got, ok := reg.Lookup(p); !ok || got != first {
		t.Errorf("Lookup: want %v, ok=true; got %v, ok=%v", first, got, ok)
	}
}

func TestLiteralTranslatesIntConstant(t *testing.T) {
	ctx := actx.New()
	reg := NewRegistry(ctx, "main")
	c := constant.NewInt(types.I32, 42)

	lit := Literal(reg, c)
	if lit.Kind() != variable.LitIntConst {
		t.Fatalf("Literal: want an int constant, got kind %v", lit.Kind())
	}
}

func TestLiteralTranslatesNullPointer(t *testing.T) {
	ctx := actx.New()
	reg := NewRegistry(ctx, "main")
	n := constant.NewNull(types.NewPointer(types.I8))

	lit := Literal(reg, n)
	if lit.Kind() != variable.LitNullPointer {
		t.Fatalf("Literal: want a null pointer, got kind %v", lit.Kind())
	}
}

func TestLiteralResolvesAlreadyBoundValueAsVarRef(t *testing.T) {
	ctx := actx.New()
	reg := NewRegistry(ctx, "main")
	p := ir.NewParam("y", types.I32)
	bound := reg.Bind(p)

	lit := Literal(reg, p)
	if lit.Kind() != variable.LitVarRef || lit.Variable() != bound {
		t.Fatalf("Literal: want a VarRef to %v, got kind=%v var=%v", bound, lit.Kind(), lit.Variable())
	}
}
