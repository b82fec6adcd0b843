// Package uninit implements the three four-point lattices of spec.md
// section 4.7 (Initialization, Nullity, Lifetime — each written in spec.md
// as "{bottom, A, B, top}"), lifted pointwise over variables or memory
// locations via the same Patricia-tree environment every non-relational
// domain in this module uses.
//
// Grounded on spec.md section 4.7's literal description and on
// internal/numdomain's canonicalize-absent-to-top environment pattern,
// reused here via a generic Env[K,V] since the lifting mechanics are
// identical across all three lattices; only the named mid-points differ.
package uninit

import (
	"fmt"

	"absint/internal/patricia"
	"absint/internal/variable"
)

// flatKind is the shared shape behind Initialization/Nullity/Lifetime:
// bottom below two incomparable named points, top above both.
type flatKind uint8

const (
	flatBottom flatKind = iota
	flatA
	flatB
	flatTop
)

func flatLeq(a, b flatKind) bool {
	if a == flatBottom || b == flatTop {
		return true
	}
	return a == b
}

func flatJoin(a, b flatKind) flatKind {
	if a == flatBottom {
		return b
	}
	if b == flatBottom {
		return a
	}
	if a == b {
		return a
	}
	return flatTop
}

func flatMeet(a, b flatKind) flatKind {
	if a == flatTop {
		return b
	}
	if b == flatTop {
		return a
	}
	if a == b {
		return a
	}
	return flatBottom
}

// elem is the self-referential constraint every concrete four-point lattice
// (Initialization, Nullity, Lifetime) satisfies, mirroring numdomain's
// Numerical trait.
type elem[V any] interface {
	IsBottom() bool
	IsTop() bool
	Leq(V) bool
	Join(V) V
	Meet(V) V
}

// Initialization is {bottom, Initialized, Uninitialized, top}.
type Initialization struct{ k flatKind }

func InitBottom() Initialization    { return Initialization{k: flatBottom} }
func InitTop() Initialization       { return Initialization{k: flatTop} }
func Initialized() Initialization   { return Initialization{k: flatA} }
func Uninitialized() Initialization { return Initialization{k: flatB} }

func (i Initialization) IsBottom() bool        { return i.k == flatBottom }
func (i Initialization) IsTop() bool           { return i.k == flatTop }
func (i Initialization) IsInitialized() bool   { return i.k == flatA }
func (i Initialization) IsUninitialized() bool { return i.k == flatB }
func (i Initialization) Leq(o Initialization) bool              { return flatLeq(i.k, o.k) }
func (i Initialization) Join(o Initialization) Initialization    { return Initialization{k: flatJoin(i.k, o.k)} }
func (i Initialization) Meet(o Initialization) Initialization    { return Initialization{k: flatMeet(i.k, o.k)} }
func (i Initialization) String() string { return flatString(i.k, "initialized", "uninitialized") }

var _ elem[Initialization] = Initialization{}

// Nullity is {bottom, Null, NonNull, top}.
type Nullity struct{ k flatKind }

func NullityBottom() Nullity { return Nullity{k: flatBottom} }
func NullityTop() Nullity    { return Nullity{k: flatTop} }
func Null() Nullity          { return Nullity{k: flatA} }
func NonNull() Nullity       { return Nullity{k: flatB} }

func (n Nullity) IsBottom() bool           { return n.k == flatBottom }
func (n Nullity) IsTop() bool              { return n.k == flatTop }
func (n Nullity) IsNull() bool             { return n.k == flatA }
func (n Nullity) IsNonNull() bool          { return n.k == flatB }
func (n Nullity) Leq(o Nullity) bool       { return flatLeq(n.k, o.k) }
func (n Nullity) Join(o Nullity) Nullity   { return Nullity{k: flatJoin(n.k, o.k)} }
func (n Nullity) Meet(o Nullity) Nullity   { return Nullity{k: flatMeet(n.k, o.k)} }
func (n Nullity) String() string           { return flatString(n.k, "null", "nonnull") }

var _ elem[Nullity] = Nullity{}

// Lifetime is {bottom, Live, Freed, top}, tracked per heap memory location
// by the cell-based memory domain.
type Lifetime struct{ k flatKind }

func LifetimeBottom() Lifetime { return Lifetime{k: flatBottom} }
func LifetimeTop() Lifetime    { return Lifetime{k: flatTop} }
func Live() Lifetime           { return Lifetime{k: flatA} }
func Freed() Lifetime          { return Lifetime{k: flatB} }

func (l Lifetime) IsBottom() bool          { return l.k == flatBottom }
func (l Lifetime) IsTop() bool             { return l.k == flatTop }
func (l Lifetime) IsLive() bool            { return l.k == flatA }
func (l Lifetime) IsFreed() bool           { return l.k == flatB }
func (l Lifetime) Leq(o Lifetime) bool     { return flatLeq(l.k, o.k) }
func (l Lifetime) Join(o Lifetime) Lifetime { return Lifetime{k: flatJoin(l.k, o.k)} }
func (l Lifetime) Meet(o Lifetime) Lifetime { return Lifetime{k: flatMeet(l.k, o.k)} }
func (l Lifetime) String() string          { return flatString(l.k, "live", "freed") }

var _ elem[Lifetime] = Lifetime{}

func flatString(k flatKind, a, b string) string {
	switch k {
	case flatBottom:
		return "bottom"
	case flatA:
		return a
	case flatB:
		return b
	default:
		return "top"
	}
}

// Env lifts any four-point lattice V pointwise over keys K; absent means
// top, the same canonicalization internal/numdomain's environments use.
type Env[K patricia.Key, V elem[V]] struct {
	bottom bool
	env    *patricia.Map[K, V]
	top    V // the zero-value constructor for V's top element
}

// TopEnv returns the environment mapping every key to top.
func TopEnv[K patricia.Key, V elem[V]](top V) *Env[K, V] {
	return &Env[K, V]{env: patricia.Empty[K, V](), top: top}
}

// BottomEnv returns the unreachable environment.
func BottomEnv[K patricia.Key, V elem[V]](top V) *Env[K, V] {
	return &Env[K, V]{bottom: true, env: patricia.Empty[K, V](), top: top}
}

func (e *Env[K, V]) IsBottom() bool { return e.bottom }
func (e *Env[K, V]) IsTop() bool    { return !e.bottom && e.env.Size() == 0 }

// Get returns the value bound to k, or top if absent.
func (e *Env[K, V]) Get(k K) V {
	if e.bottom {
		var zero V
		return zero
	}
	val, ok := e.env.Lookup(k)
	if !ok {
		return e.top
	}
	return val
}

// Set binds k to val, collapsing the whole environment to bottom if val is
// bottom and erasing k if val is top (an absent key reads as top).
func (e *Env[K, V]) Set(k K, val V) *Env[K, V] {
	if e.bottom {
		return e
	}
	if val.IsBottom() {
		return BottomEnv[K, V](e.top)
	}
	if val.IsTop() {
		return &Env[K, V]{env: e.env.Erase(k), top: e.top}
	}
	return &Env[K, V]{env: e.env.Insert(k, val), top: e.top}
}

// Forget removes any tracked fact about k (k becomes top).
func (e *Env[K, V]) Forget(k K) *Env[K, V] {
	if e.bottom {
		return e
	}
	return &Env[K, V]{env: e.env.Erase(k), top: e.top}
}

func (e *Env[K, V]) Leq(o *Env[K, V]) bool {
	if e.bottom {
		return true
	}
	if o.bottom {
		return false
	}
	ok := true
	e.env.ForEach(func(k K, val V) {
		if !val.Leq(o.Get(k)) {
			ok = false
		}
	})
	return ok
}

func (e *Env[K, V]) Join(o *Env[K, V]) *Env[K, V] {
	if e.bottom {
		return o
	}
	if o.bottom {
		return e
	}
	result := TopEnv[K, V](e.top)
	e.env.ForEach(func(k K, val V) {
		j := val.Join(o.Get(k))
		if !j.IsTop() {
			result.env = result.env.Insert(k, j)
		}
	})
	o.env.ForEach(func(k K, val V) {
		if _, ok := e.env.Lookup(k); ok {
			return
		}
		j := e.top.Join(val)
		if !j.IsTop() {
			result.env = result.env.Insert(k, j)
		}
	})
	return result
}

func (e *Env[K, V]) Meet(o *Env[K, V]) *Env[K, V] {
	if e.bottom || o.bottom {
		return BottomEnv[K, V](e.top)
	}
	result := TopEnv[K, V](e.top)
	bottom := false
	e.env.ForEach(func(k K, val V) {
		m := val.Meet(o.Get(k))
		if m.IsBottom() {
			bottom = true
		}
		if !m.IsTop() {
			result.env = result.env.Insert(k, m)
		}
	})
	o.env.ForEach(func(k K, val V) {
		if _, ok := e.env.Lookup(k); ok {
			return
		}
		if !val.IsTop() {
			result.env = result.env.Insert(k, val)
		}
	})
	if bottom {
		return BottomEnv[K, V](e.top)
	}
	return result
}

// Widening/Narrowing: every one of these lattices has height 2, so join
// already stabilizes in a single step; widening and narrowing are defined
// as join/meet for interface parity with lattice.Domain.
func (e *Env[K, V]) Widening(o *Env[K, V]) *Env[K, V]  { return e.Join(o) }
func (e *Env[K, V]) Narrowing(o *Env[K, V]) *Env[K, V] { return e.Meet(o) }
func (e *Env[K, V]) Normalize() *Env[K, V]             { return e }

func (e *Env[K, V]) String() string {
	if e.bottom {
		return "bottom"
	}
	s := "{"
	first := true
	e.env.ForEach(func(k K, val V) {
		if !first {
			s += ", "
		}
		first = false
		s += fmt.Sprintf("%v: %v", k, val)
	})
	return s + "}"
}

// InitEnv and NullityEnv track per-variable facts for the scalar composite
// domain (spec.md section 4.9). LifetimeEnv is not instantiated here: the
// cell-based memory domain tracks it per memory object instead of per
// variable, and instantiates Env[location.MemoryLocation, Lifetime]
// directly in internal/memdomain.
type InitEnv = Env[variable.Variable, Initialization]
type NullityEnv = Env[variable.Variable, Nullity]

func TopInitEnv() *InitEnv    { return TopEnv[variable.Variable, Initialization](InitTop()) }
func BottomInitEnv() *InitEnv { return BottomEnv[variable.Variable, Initialization](InitTop()) }

func TopNullityEnv() *NullityEnv    { return TopEnv[variable.Variable, Nullity](NullityTop()) }
func BottomNullityEnv() *NullityEnv { return BottomEnv[variable.Variable, Nullity](NullityTop()) }

// AssertInitialized refines v to Initialized; if v is definitely
// Uninitialized the whole environment collapses to bottom (spec.md section
// 4.7).
func AssertInitialized(e *InitEnv, v variable.Variable) *InitEnv {
	if e.IsBottom() {
		return e
	}
	if e.Get(v).IsUninitialized() {
		return BottomInitEnv()
	}
	return e.Set(v, Initialized())
}

// AssertNonNull refines v to NonNull; if v is definitely Null the whole
// environment collapses to bottom.
func AssertNonNull(e *NullityEnv, v variable.Variable) *NullityEnv {
	if e.IsBottom() {
		return e
	}
	if e.Get(v).IsNull() {
		return BottomNullityEnv()
	}
	return e.Set(v, NonNull())
}

// AssertNull refines v to Null; if v is definitely NonNull the whole
// environment collapses to bottom.
func AssertNull(e *NullityEnv, v variable.Variable) *NullityEnv {
	if e.IsBottom() {
		return e
	}
	if e.Get(v).IsNonNull() {
		return BottomNullityEnv()
	}
	return e.Set(v, Null())
}
