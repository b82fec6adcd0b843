// Package actx implements the "context object" of spec.md section 5: the
// single piece of global state in this module. It owns interned integer
// types, interned offset-shadow variables, and the Variable/MemoryLocation
// factories that hand out fresh identities for the lifetime of one analysis
// run.
//
// Grounded on the teacher's internal/concurrency.ConcurrencyModule
// (map-of-resources guarded by one sync.RWMutex, read-mostly after setup):
// the interning accessors (IntType, OffsetShadow) look up under the shared
// lock and take the exclusive lock only to insert; NextCallSite takes the
// exclusive lock; FreshVariable and FreshHeapSite use atomic counters and
// no lock. This matches spec.md section 5's "concurrent readers safe if no
// interning happens during the read phase" contract.
package actx

import (
	"sync"
	"sync/atomic"

	"absint/internal/location"
	"absint/internal/number"
	"absint/internal/variable"
)

// IntegerType is an interned (width, sign) pair. Within one Context, two
// IntegerTypes compare equal iff they name the same (width, sign): spec.md
// section 5's "interned objects have pointer-identity semantics" is
// realized here by always handing back the same *IntegerType pointer for a
// given (width, sign).
type IntegerType struct {
	Width uint
	Sign  number.Sign
}

// Context is read-mostly after its initial build phase; its lifetime must
// strictly outlive any Variable/MemoryLocation/Numerical value built
// through it (spec.md section 5: "destruction order is context-last").
type Context struct {
	mu            sync.RWMutex
	intTypes      map[[2]uint64]*IntegerType
	offsetShadows map[uint64]variable.Variable
	nextVarID     uint64
	nextHeap      uint64
	fnCounter     map[string]uint64
}

// New creates an empty context.
func New() *Context {
	return &Context{
		intTypes:      make(map[[2]uint64]*IntegerType),
		offsetShadows: make(map[uint64]variable.Variable),
		fnCounter:     make(map[string]uint64),
	}
}

// IntType interns (width, sign), returning the same pointer for repeated
// calls with the same arguments.
func (c *Context) IntType(width uint, sign number.Sign) *IntegerType {
	key := [2]uint64{uint64(width), uint64(sign)}

	c.mu.RLock()
	if t, ok := c.intTypes[key]; ok {
		c.mu.RUnlock()
		return t
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.intTypes[key]; ok {
		return t
	}
	t := &IntegerType{Width: width, Sign: sign}
	c.intTypes[key] = t
	return t
}

// FreshVariable allocates a surface variable with a fresh id, e.g. for a
// new local or a parameter; name is for debug printing only.
func (c *Context) FreshVariable(name string, kind variable.Kind, width uint, sign number.Sign) variable.Variable {
	id := atomic.AddUint64(&c.nextVarID, 1)
	return variable.New(id, name, kind, width, sign)
}

// OffsetShadow returns p's pointer-offset shadow variable (section 4.8),
// interning it the same way IntType interns (width, sign): the first caller
// for a given p mints it, every later caller for that same p gets the same
// pointer-identical Variable back. This matters because
// pointer.State.join/leq only keep Offset when both sides name the exact
// same shadow variable — if two branches each assigned p through a fresh,
// uninterned shadow, a later Join would always drop offset(p), even though
// both branches assigned p to the same concrete location.
func (c *Context) OffsetShadow(p variable.Variable) variable.Variable {
	key := p.Index()

	c.mu.RLock()
	if v, ok := c.offsetShadows[key]; ok {
		c.mu.RUnlock()
		return v
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.offsetShadows[key]; ok {
		return v
	}
	id := atomic.AddUint64(&c.nextVarID, 1)
	v := variable.NewSynthetic(id, 64, number.Unsigned)
	c.offsetShadows[key] = v
	return v
}

// FreshHeapSite allocates a location.MemoryLocation for one heap allocation
// site; siteLabel is a debug label only (e.g. "malloc@foo.c:42").
func (c *Context) FreshHeapSite(siteLabel string) location.MemoryLocation {
	atomic.AddUint64(&c.nextHeap, 1)
	return location.NewHeapAllocation(siteLabel)
}

// StackSlot returns the deterministic location for a named slot in fn's
// activation record (same (fn, slot) always yields the same location
// within one Context, matching location.NewStackSlot's determinism).
func (c *Context) StackSlot(fn, slot string) location.MemoryLocation {
	return location.NewStackSlot(fn, slot)
}

// Global returns the deterministic location for a named global.
func (c *Context) Global(name string) location.MemoryLocation {
	return location.NewGlobal(name)
}

// NextCallSite returns a monotonically increasing per-function call-site
// index. No package in this module calls it: internal/summary's Compose
// names its temporaries by hashing the bridged cell variables (freshTemp).
func (c *Context) NextCallSite(fn string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fnCounter[fn]++
	return c.fnCounter[fn]
}
