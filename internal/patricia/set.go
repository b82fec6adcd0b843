package patricia

// Set is a persistent ordered set, built directly on Map[K, struct{}].
type Set[K Key] struct {
	m *Map[K, struct{}]
}

func EmptySet[K Key]() *Set[K] { return &Set[K]{m: Empty[K, struct{}]()} }

func (s *Set[K]) Size() int { return s.m.Size() }

func (s *Set[K]) Contains(k K) bool {
	_, ok := s.m.Lookup(k)
	return ok
}

func (s *Set[K]) Insert(k K) *Set[K] { return &Set[K]{m: s.m.Insert(k, struct{}{})} }

func (s *Set[K]) Erase(k K) *Set[K] { return &Set[K]{m: s.m.Erase(k)} }

func (s *Set[K]) ForEach(f func(K)) {
	s.m.ForEach(func(k K, _ struct{}) { f(k) })
}

type setUnionOp[V any] struct{}

func (setUnionOp[V]) Apply(_, _ V) (V, bool)      { var z V; return z, true }
func (setUnionOp[V]) ApplyLeft(v V) (V, bool)     { return v, true }
func (setUnionOp[V]) ApplyRight(v V) (V, bool)    { return v, true }
func (setUnionOp[V]) DefaultIsAbsorbing() bool    { return false }

// Union returns the set union of s and o.
func (s *Set[K]) Union(o *Set[K]) *Set[K] {
	return &Set[K]{m: Merge(s.m, o.m, setUnionOp[struct{}]{})}
}

type setIntersectOp[V any] struct{}

func (setIntersectOp[V]) Apply(_, _ V) (V, bool)   { var z V; return z, true }
func (setIntersectOp[V]) ApplyLeft(_ V) (V, bool)  { var z V; return z, false }
func (setIntersectOp[V]) ApplyRight(_ V) (V, bool) { var z V; return z, false }
func (setIntersectOp[V]) DefaultIsAbsorbing() bool { return false }

// Intersect returns the set intersection of s and o.
func (s *Set[K]) Intersect(o *Set[K]) *Set[K] {
	return &Set[K]{m: Merge(s.m, o.m, setIntersectOp[struct{}]{})}
}

type setSubsetLeqOp[V any] struct{}

func (setSubsetLeqOp[V]) Leq(_, _ V) bool       { return true }
func (setSubsetLeqOp[V]) AbsentRight(_ V) bool  { return false }
func (setSubsetLeqOp[V]) AbsentLeft(_ V) bool   { return true }

// Subset reports whether s is a subset of o.
func (s *Set[K]) Subset(o *Set[K]) bool {
	return Leq(s.m, o.m, setSubsetLeqOp[struct{}]{})
}
