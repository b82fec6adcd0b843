// Package engine implements the statement-level and state-level API of
// spec.md section 6: the one surface a CFG driver actually calls. It wires
// internal/actx (identity factories) and internal/memdomain (the state
// proper, which already embeds internal/scalar for the per-variable-kind
// dispatch) into a single State type, so a driver never has to know which
// concrete Numerical kind or which sub-domain a given statement touches.
//
// Grounded on the teacher's internal/vm.VM.step (a big statement-kind
// switch dispatching to per-opcode handlers that all take/return the same
// VM-state receiver): State's methods follow that same one-method-per-
// statement-kind, same-receiver/return-shape dispatch, generalized from
// bytecode opcodes to spec.md's external-interface statement list.
package engine

import (
	"fmt"

	"absint/internal/actx"
	"absint/internal/aerrors"
	"absint/internal/bound"
	"absint/internal/location"
	"absint/internal/memdomain"
	"absint/internal/number"
	"absint/internal/numdomain"
	"absint/internal/uninit"
	"absint/internal/variable"
)

// State is the abstract value a CFG driver threads through one function's
// fixpoint: the memory domain plus the context it was built from (never
// owned, only borrowed — internal/actx.Context outlives every State built
// from it, per spec.md section 5's destruction-order contract).
type State struct {
	Ctx *actx.Context
	Mem *memdomain.State
}

// Top builds the initial (no information gathered yet) state over the
// given numerical domain kind, e.g. numdomain.TopInterval().
func Top(ctx *actx.Context, numTop numdomain.Numerical) *State {
	return &State{Ctx: ctx, Mem: memdomain.Top(numTop)}
}

func Bottom(ctx *actx.Context, numTop numdomain.Numerical) *State {
	return &State{Ctx: ctx, Mem: memdomain.Bottom(numTop)}
}

func (s *State) with(m *memdomain.State) *State { return &State{Ctx: s.Ctx, Mem: m} }

// --- state-level API (section 6) ---

func (s *State) IsBottom() bool            { return s.Mem.IsBottom() }
func (s *State) IsTop() bool               { return s.Mem.IsTop() }
func (s *State) Leq(o *State) bool         { return s.Mem.Leq(o.Mem) }
func (s *State) Join(o *State) *State      { return s.with(s.Mem.Join(o.Mem)) }
func (s *State) Meet(o *State) *State      { return s.with(s.Mem.Meet(o.Mem)) }
func (s *State) Widening(o *State) *State  { return s.with(s.Mem.Widening(o.Mem)) }
func (s *State) Narrowing(o *State) *State { return s.with(s.Mem.Narrowing(o.Mem)) }
func (s *State) Normalize() *State         { return s.with(s.Mem.Normalize()) }
func (s *State) Equals(o *State) bool      { return s.Leq(o) && o.Leq(s) }

// Dump implements dump(stream) in its plain-text form; internal/dump wraps
// this with pretty-printing/colorization/a live websocket variant.
func (s *State) Dump() string { return s.Mem.String() }

// --- query accessors (section 6) ---

func (s *State) IntToInterval(v variable.Variable) bound.Interval { return s.Mem.IntToInterval(v) }

// PointerToPointsTo and Nullity read the per-pointer facts
// pointer_to_points_to/nullity(v) expose from the per-variable
// pointer.State internal/pointer maintains; Uninitialized reads
// uninitialized(v) from the scalar domain's Init environment.
func (s *State) PointerToPointsTo(p variable.Variable) string { return s.Mem.Scalar.Ptr.Get(p).Addr.String() }
func (s *State) Nullity(p variable.Variable) uninit.Nullity    { return s.Mem.Scalar.Ptr.Get(p).Null }
func (s *State) Uninitialized(v variable.Variable) uninit.Initialization {
	return s.Mem.Scalar.Init.Get(v)
}

// Lifetime implements lifetime(m): whether the object at m is known live,
// freed, or neither (top).
func (s *State) Lifetime(m location.MemoryLocation) uninit.Lifetime { return s.Mem.Life.Get(m) }

// --- statement-level API: assign / apply / compare ---

// Assign implements x := e, dispatching on x's static kind: int/dynamic
// variables go through the numerical domain; float variables only record
// initialization (section 4.9: float value is always abstracted to top).
func (s *State) Assign(x variable.Variable, e numdomain.Expr) *State {
	if x.Kind() == variable.Float {
		return s.with(s.Mem.FloatInit(x))
	}
	return s.with(s.Mem.Assign(x, e))
}

// Apply implements x := y op z for int/dynamic variables.
func (s *State) Apply(op numdomain.BinOp, x, y variable.Variable, z numdomain.Operand) *State {
	return s.with(s.Mem.Apply(op, x, y, z))
}

// AddConstraint implements add(pred, e1, e2): a numerical comparison
// between two int/dynamic expressions.
func (s *State) AddConstraint(pred numdomain.CompareOp, e1, e2 numdomain.Expr) *State {
	return s.with(s.Mem.AddConstraint(pred, e1, e2))
}

// ComparePointers implements pointer_add(pred, p, q): a pointer-valued
// comparison, which may additionally refine the two pointers' offsets.
func (s *State) ComparePointers(pred numdomain.CompareOp, p, q variable.Variable) *State {
	return s.with(s.Mem.PointerCompare(pred, p, q))
}

// --- allocation / lifetime ---

// Allocate implements the allocate statement: a fresh heap site is minted
// from siteLabel (a debug label only, e.g. "malloc@foo.c:42"), marked
// live, and returned alongside the updated state so the driver can bind it
// to a pointer variable with AssignAddr.
func (s *State) Allocate(siteLabel string) (location.MemoryLocation, *State, *aerrors.AnalysisError) {
	m := s.Ctx.FreshHeapSite(siteLabel)
	mem, err := s.Mem.AssertAllocated(m)
	return m, s.with(mem), err
}

// Deallocate implements the deallocate half of the lifetime contract (not
// separately named in section 6's statement list, but required to drive
// the use-after-free/double-free checks section 4.10 documents; a real
// front-end reaches it through whatever statement it lowers free()/delete
// to).
func (s *State) Deallocate(m location.MemoryLocation) (*State, *aerrors.AnalysisError) {
	mem, err := s.Mem.AssertDeallocated(m)
	return s.with(mem), err
}

// --- pointer assignment / shift ---

// AssignAddr implements pointer_assign(p, &m, nullity): p now points
// exactly at m, with its offset shadow variable (interned per-p by
// internal/actx so two branches assigning the same p stay joinable) zeroed
// in the numerical domain.
func (s *State) AssignAddr(p variable.Variable, m location.MemoryLocation, null uninit.Nullity) *State {
	off := s.Ctx.OffsetShadow(p)
	return s.with(s.Mem.PointerAssignAddr(p, m, off, null))
}

// AssignNull implements pointer_assign_null(p).
func (s *State) AssignNull(p variable.Variable) *State {
	off := s.Ctx.OffsetShadow(p)
	return s.with(s.Mem.PointerAssignNull(p, off))
}

// PointerShift implements the pointer-shift statement (getelementptr in an
// LLVM front-end): p := q + off, a constant byte displacement.
func (s *State) PointerShift(p, q variable.Variable, off number.Number) *State {
	shadow := s.Ctx.OffsetShadow(p)
	return s.with(s.Mem.PointerAssignCopy(p, q, shadow, off))
}

// --- load / store / bulk memory operations ---

func (s *State) Load(lhs, p variable.Variable, size uint64) (*State, *aerrors.AnalysisError) {
	mem, err := s.Mem.MemRead(lhs, p, size)
	return s.with(mem), err
}

func (s *State) Store(p variable.Variable, v variable.Literal, size uint64) (*State, *aerrors.AnalysisError) {
	mem, err := s.Mem.MemWrite(p, v, size)
	return s.with(mem), err
}

func (s *State) Memcpy(dest, src variable.Variable, size numdomain.Expr) (*State, *aerrors.AnalysisError) {
	mem, err := s.Mem.MemCopy(dest, src, size)
	return s.with(mem), err
}

// Memmove is memcpy at this abstraction level: the domain never observes
// whether source and destination ranges overlap (it only tracks synthetic
// cells, never raw byte contents), so a sound mem_copy already covers the
// overlapping case exactly as well as a dedicated mem_move would.
func (s *State) Memmove(dest, src variable.Variable, size numdomain.Expr) (*State, *aerrors.AnalysisError) {
	return s.Memcpy(dest, src, size)
}

func (s *State) Memset(dest variable.Variable, v variable.Literal, size numdomain.Expr) (*State, *aerrors.AnalysisError) {
	mem, err := s.Mem.MemSet(dest, v, size)
	return s.with(mem), err
}

// --- varargs / stack save-restore ---
//
// None of these is modeled precisely: a va_list is just another pointer
// variable as far as this engine is concerned, and the stack pointer is not
// tracked at all (it is not a source-level variable, and every memory
// access already goes through a location.MemoryLocation rather than a raw
// address). The sound, and only honest, implementation is to forget
// whatever the statement produces.

func (s *State) VaStart(list variable.Variable) *State { return s.with(s.Mem.ForgetVar(list)) }
func (s *State) VaArg(lhs, list variable.Variable) *State {
	return s.with(s.Mem.ForgetVar(lhs))
}
func (s *State) VaEnd(list variable.Variable) *State  { return s.with(s.Mem.ForgetVar(list)) }
func (s *State) VaCopy(dst, src variable.Variable) *State {
	return s.with(s.Mem.ForgetVar(dst))
}

// StackSave/StackRestore are no-ops: this engine has no stack-pointer
// variable to save or roll back (every local lives at a
// location.MemoryLocation allocated once per activation record, not at a
// movable stack-pointer offset), so the statements pass the state through
// unchanged. A front-end that needs precise alloca-in-a-loop reasoning
// would need to extend location.MemoryLocation with an activation-record
// generation, which is out of scope here.
func (s *State) StackSave(lhs variable.Variable) *State    { return s }
func (s *State) StackRestore(saved variable.Variable) *State { return s }

// --- calls / control-flow terminators ---

// Call implements the call statement's documented pre/post-callback shape:
// every pointer argument is soundly abstracted (MemAbstractReachable: the
// callee may have written anything reachable through it) before post runs,
// giving a driver that has a internal/summary.State for the callee
// somewhere to fold its Output-cell facts back in without this package
// needing to know how summaries are looked up, cached, or matched to call
// sites (that policy lives in internal/summarystore and the CFG driver).
func (s *State) Call(pointerArgs []variable.Variable, post func(*State) *State) *State {
	mem := s.Mem
	for _, a := range pointerArgs {
		mem = mem.MemAbstractReachable(a)
	}
	pre := s.with(mem)
	if post == nil {
		return pre
	}
	return post(pre)
}

// Return is a statement marker only: the value being returned is whatever
// the driver already evaluated into a variable before calling Return, so
// there is nothing left for the engine itself to transform.
func (s *State) Return() *State { return s }

// Unreachable implements the unreachable statement: no concrete execution
// ever reaches this point, so the post-state is bottom regardless of what
// came before.
func (s *State) Unreachable() *State { return s.with(memdomain.Bottom(s.numTop())) }

// Landingpad binds the caught-exception object to x; its contents are not
// modeled (this engine has no exception-value domain), so x is soundly
// forgotten.
func (s *State) Landingpad(x variable.Variable) *State { return s.with(s.Mem.ForgetVar(x)) }

// Resume re-raises the in-flight exception; like Return, it is a control
// marker with no abstract-value effect of its own.
func (s *State) Resume() *State { return s }

func (s *State) numTop() numdomain.Numerical { return s.Mem.Scalar.Num }

func (s *State) String() string { return fmt.Sprintf("engine.State{%s}", s.Mem) }
