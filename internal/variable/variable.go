// Package variable defines the Variable and Literal types every domain
// layer operates on (spec.md section 4, "Literal / variable traits"), and
// the four static variable kinds the scalar composite domain (section 4.9)
// dispatches on.
package variable

import (
	"fmt"

	"absint/internal/number"
)

// Kind is a variable's static kind, deciding which sub-domains of the
// scalar composite domain (section 4.9) track state for it.
type Kind uint8

const (
	Int Kind = iota
	Float
	Pointer
	Dynamic
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case Pointer:
		return "pointer"
	default:
		return "dynamic"
	}
}

// Variable is a key into every Patricia-tree-backed environment in this
// module: it implements patricia.Key via Index.
type Variable struct {
	id    uint64
	name  string
	kind  Kind
	width uint          // meaningful for Int/Dynamic/Pointer (offset width)
	sign  number.Sign
}

// New builds a surface (front-end-visible) variable. id must be unique per
// variable for the lifetime of one Context; see internal/actx.
func New(id uint64, name string, kind Kind, width uint, sign number.Sign) Variable {
	return Variable{id: id, name: name, kind: kind, width: width, sign: sign}
}

// NewSynthetic builds a variable with no surface name, used for cell scalar
// variables (location.ScalarVar) and for summary-composition temporaries.
func NewSynthetic(id uint64, width uint, sign number.Sign) Variable {
	return Variable{id: id, name: fmt.Sprintf("$s%x", id), kind: Int, width: width, sign: sign}
}

// Index implements patricia.Key.
func (v Variable) Index() uint64 { return v.id }

func (v Variable) Name() string       { return v.name }
func (v Variable) Kind() Kind         { return v.kind }
func (v Variable) Width() uint        { return v.width }
func (v Variable) IntSign() number.Sign { return v.sign }

func (v Variable) Equal(o Variable) bool { return v.id == o.id }

func (v Variable) String() string { return v.name }

// LiteralKind discriminates the literal enum crossing the statement-level
// API boundary (spec.md section 6).
type LiteralKind uint8

const (
	LitIntConst LiteralKind = iota
	LitFloatConst
	LitUndef
	LitNullPointer
	LitVarRef
)

// Literal is the tagged union of possible statement operands.
type Literal struct {
	kind   LiteralKind
	intVal number.Number
	width  uint
	sign   number.Sign
	varRef Variable
}

func IntConst(v number.Number, width uint, sign number.Sign) Literal {
	return Literal{kind: LitIntConst, intVal: v, width: width, sign: sign}
}

func FloatConst() Literal   { return Literal{kind: LitFloatConst} }
func Undef() Literal        { return Literal{kind: LitUndef} }
func NullPointer() Literal  { return Literal{kind: LitNullPointer} }
func VarRef(v Variable) Literal { return Literal{kind: LitVarRef, varRef: v} }

func (l Literal) Kind() LiteralKind { return l.kind }
func (l Literal) IntValue() (number.Number, uint, number.Sign) {
	return l.intVal, l.width, l.sign
}
func (l Literal) Variable() Variable { return l.varRef }

func (l Literal) String() string {
	switch l.kind {
	case LitIntConst:
		return l.intVal.String()
	case LitFloatConst:
		return "<float>"
	case LitUndef:
		return "undef"
	case LitNullPointer:
		return "null"
	default:
		return l.varRef.String()
	}
}
