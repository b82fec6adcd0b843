package memdomain

import (
	"absint/internal/location"
	"absint/internal/number"
	"absint/internal/numdomain"
	"absint/internal/uninit"
	"absint/internal/variable"
)

// The methods in this file are thin forwarders onto the embedded
// scalar.Domain for statement kinds that are pure scalar operations (no
// cell/Lifetime bookkeeping of their own): assign, apply, compare, and
// pointer (re)binding. internal/engine dispatches every statement through
// *State rather than reaching into Scalar directly, since cells/Life are
// unexported here and must be held fixed across every such call.

// Assign implements x := e for int/dynamic variables (spec.md section 6).
func (s *State) Assign(x variable.Variable, e numdomain.Expr) *State {
	if s.bottom {
		return s
	}
	r := &State{cells: s.cells, Scalar: s.Scalar.IntAssign(x, e), Life: s.Life}
	return r.collapseIfBottom()
}

// Apply implements x := y op z.
func (s *State) Apply(op numdomain.BinOp, x, y variable.Variable, z numdomain.Operand) *State {
	if s.bottom {
		return s
	}
	r := &State{cells: s.cells, Scalar: s.Scalar.IntApply(op, x, y, z), Life: s.Life}
	return r.collapseIfBottom()
}

// AddConstraint implements add(pred, e1, e2) for numerical comparisons.
func (s *State) AddConstraint(pred numdomain.CompareOp, e1, e2 numdomain.Expr) *State {
	if s.bottom {
		return s
	}
	r := &State{cells: s.cells, Scalar: s.Scalar.IntAddConstraint(pred, e1, e2), Life: s.Life}
	return r.collapseIfBottom()
}

// FloatInit implements a float assignment (value abstracted to top, only
// initialization is tracked, section 4.9).
func (s *State) FloatInit(x variable.Variable) *State {
	if s.bottom {
		return s
	}
	return &State{cells: s.cells, Scalar: s.Scalar.FloatInit(x), Life: s.Life}
}

// FloatRead asserts x initialized before a float-producing use.
func (s *State) FloatRead(x variable.Variable) *State {
	if s.bottom {
		return s
	}
	r := &State{cells: s.cells, Scalar: s.Scalar.FloatRead(x), Life: s.Life}
	return r.collapseIfBottom()
}

// PointerAssignAddr implements pointer_assign(p, &m, nullity).
func (s *State) PointerAssignAddr(p variable.Variable, m location.MemoryLocation, offsetVar variable.Variable, null uninit.Nullity) *State {
	if s.bottom {
		return s
	}
	r := &State{cells: s.cells, Scalar: s.Scalar.PointerAssignAddr(p, m, offsetVar, null), Life: s.Life}
	return r.collapseIfBottom()
}

// PointerAssignNull implements pointer_assign_null(p).
func (s *State) PointerAssignNull(p variable.Variable, offsetVar variable.Variable) *State {
	if s.bottom {
		return s
	}
	r := &State{cells: s.cells, Scalar: s.Scalar.PointerAssignNull(p, offsetVar), Life: s.Life}
	return r.collapseIfBottom()
}

// PointerAssignCopy implements pointer_assign(p, q, off) — the
// pointer-shift statement (getelementptr in an LLVM front-end).
func (s *State) PointerAssignCopy(p, q variable.Variable, offsetVarP variable.Variable, off number.Number) *State {
	if s.bottom {
		return s
	}
	r := &State{cells: s.cells, Scalar: s.Scalar.PointerAssignCopy(p, q, offsetVarP, off), Life: s.Life}
	return r.collapseIfBottom()
}

// PointerCompare implements pointer_add(pred, p, q) — a pointer-valued
// comparison or add/sub constraint.
func (s *State) PointerCompare(pred numdomain.CompareOp, p, q variable.Variable) *State {
	if s.bottom {
		return s
	}
	r := &State{cells: s.cells, Scalar: s.Scalar.PointerCompare(pred, p, q), Life: s.Life}
	return r.collapseIfBottom()
}

// ForgetVar drops all scalar information about x (distinct from Forget,
// which drops every cell of a memory location).
func (s *State) ForgetVar(x variable.Variable) *State {
	if s.bottom {
		return s
	}
	return &State{cells: s.cells, Scalar: s.Scalar.Forget(x), Life: s.Life}
}
