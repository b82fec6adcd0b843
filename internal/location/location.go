// Package location implements MemoryLocation (the symbolic handle for a
// memory object), Cell/CellSet (the cell-based memory model's addressing
// unit, spec.md DATA MODEL), and the deterministic scalar-variable factory
// cells are synthesized through.
package location

import (
	"fmt"

	"github.com/google/uuid"

	"absint/internal/number"
)

// Kind distinguishes the three origins of a memory object a real front-end
// always knows about (SPEC_FULL.md's supplement to spec.md's bare
// "symbolic identifier").
type Kind uint8

const (
	Stack Kind = iota
	Global
	Heap
)

func (k Kind) String() string {
	switch k {
	case Stack:
		return "stack"
	case Global:
		return "global"
	default:
		return "heap"
	}
}

// stackNamespace and globalNamespace seed the UUIDv5 derivation so that two
// locations built from the same (kind, name) pair anywhere in one analysis
// run always compare equal — required by the memory domain's "same base
// always yields the same cells" invariant.
var (
	stackNamespace  = uuid.MustParse("7b1f6f1a-1a21-4e8b-9c2e-000000000001")
	globalNamespace = uuid.MustParse("7b1f6f1a-1a21-4e8b-9c2e-000000000002")
)

// MemoryLocation is an abstract handle to a memory region: a stack slot, a
// global, or one heap-allocation site. Per spec.md section 6 the domain
// requires only equality, a hashable/ordered index, and a debug printer;
// here that index is the UUID's first 8 bytes read big-endian (its high
// 64 bits).
type MemoryLocation struct {
	id   uuid.UUID
	kind Kind
	name string
}

// NewStackSlot derives a deterministic location for a named stack slot
// inside one function activation. fn+slot together must be unique per
// activation record the front-end hands the engine.
func NewStackSlot(fn, slot string) MemoryLocation {
	id := uuid.NewSHA1(stackNamespace, []byte(fn+"\x00"+slot))
	return MemoryLocation{id: id, kind: Stack, name: fn + "::" + slot}
}

// NewGlobal derives a deterministic location for a named global.
func NewGlobal(name string) MemoryLocation {
	id := uuid.NewSHA1(globalNamespace, []byte(name))
	return MemoryLocation{id: id, kind: Global, name: name}
}

// NewHeapAllocation derives a fresh location for one allocation site. Unlike
// stack/global locations, call sites are not deterministically keyed: a
// calling context distinguishes allocations structurally instead (the
// allocation-site label is carried in name for debugging only).
func NewHeapAllocation(siteLabel string) MemoryLocation {
	return MemoryLocation{id: uuid.New(), kind: Heap, name: siteLabel}
}

// Index implements patricia.Key.
func (l MemoryLocation) Index() uint64 {
	b := l.id
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func (l MemoryLocation) Kind() Kind   { return l.kind }
func (l MemoryLocation) Name() string { return l.name }

// Equal reports whether two locations are the same memory object.
func (l MemoryLocation) Equal(o MemoryLocation) bool { return l.id == o.id }

// String is the debug printer spec.md section 6 requires.
func (l MemoryLocation) String() string {
	return fmt.Sprintf("%s(%s)#%s", l.kind, l.name, l.id.String()[:8])
}

// CellKind distinguishes a plain memory-domain cell (there is only one
// kind, "observed") from the two summary-domain cell kinds (Input/Output).
// The memory domain only ever synthesizes Output cells on write and Input
// cells on read-of-unknown, using the same CellKind enumeration the summary
// domain uses for its before/after pair, per DATA MODEL's Cell definition.
type CellKind uint8

const (
	Input CellKind = iota
	Output
)

func (k CellKind) String() string {
	if k == Input {
		return "in"
	}
	return "out"
}

// Cell is the quadruple (base, offset, size, kind) from DATA MODEL. Two
// cells are equal iff all four fields are equal.
type Cell struct {
	Base   MemoryLocation
	Offset number.Number
	Size   uint64 // bytes; DATA MODEL's "Bound >= 1" is always finite and >=1 by construction here
	Kind   CellKind
}

// Overlaps reports whether c and o address overlapping byte ranges of the
// same base (kind is not considered: Input/Output overlap tests are range
// tests only, callers decide what overlap means for their kind).
func (c Cell) Overlaps(o Cell) bool {
	if !c.Base.Equal(o.Base) {
		return false
	}
	cLo, cHi := c.Offset, c.Offset.Add(number.FromInt64(int64(c.Size)-1))
	oLo, oHi := o.Offset, o.Offset.Add(number.FromInt64(int64(o.Size)-1))
	return !cHi.LessThan(oLo) && !oHi.LessThan(cLo)
}

// Equal reports whether c and o are the identical quadruple.
func (c Cell) Equal(o Cell) bool {
	return c.Base.Equal(o.Base) && c.Offset.Equal(o.Offset) && c.Size == o.Size && c.Kind == o.Kind
}

func (c Cell) String() string {
	return fmt.Sprintf("%s[%s+%d:%d]%s", c.Base, c.Offset, c.Offset.Int64(), c.Size, c.Kind)
}
