package patricia

// MergeOp is the operator object spec.md section 4.13 describes: a single
// binary-merge routine parametrized by one of these implements join, meet,
// widening, and the cell-merge / cell-compose operators of the memory and
// summary domains.
type MergeOp[V any] interface {
	// Apply combines a value present on both sides. Returning ok == false
	// drops the key from the result.
	Apply(left, right V) (result V, ok bool)
	// ApplyLeft handles a value present only on the left. Returning
	// ok == false drops the key.
	ApplyLeft(left V) (result V, ok bool)
	// ApplyRight handles a value present only on the right. Returning
	// ok == false drops the key.
	ApplyRight(right V) (result V, ok bool)
	// DefaultIsAbsorbing, when true, lets Merge skip walking a one-sided
	// subtree entirely and keep it by pointer, unchanged. The meet and
	// narrowing ops of the non-relational environments return true: there a
	// missing variable means top, which leaves the other side's binding as is.
	DefaultIsAbsorbing() bool
}

// Merge combines m1 and m2 through op, implementing the generic binary merge
// of spec.md section 4.13. Identical subtrees (by pointer) are detected and
// returned without recursing, which is what keeps this linear in the
// difference between the two trees.
func Merge[K Key, V any](m1, m2 *Map[K, V], op MergeOp[V]) *Map[K, V] {
	return &Map[K, V]{root: merge(m1.root, m2.root, op)}
}

func merge[K Key, V any](n1, n2 *node[K, V], op MergeOp[V]) *node[K, V] {
	if n1 == n2 {
		return n1
	}
	if n1 == nil {
		if op.DefaultIsAbsorbing() {
			return n2
		}
		return mapOneSided(n2, op.ApplyRight)
	}
	if n2 == nil {
		if op.DefaultIsAbsorbing() {
			return n1
		}
		return mapOneSided(n1, op.ApplyLeft)
	}
	if n1.isLeaf && n2.isLeaf {
		if n1.key.Index() == n2.key.Index() {
			v, ok := op.Apply(n1.value, n2.value)
			if !ok {
				return nil
			}
			return newLeaf(n1.key, v)
		}
		return join(n1.key.Index(), mapOneSided(n1, op.ApplyLeft), n2.key.Index(), mapOneSided(n2, op.ApplyRight))
	}
	if n1.isLeaf {
		return mergeLeafBranch(n1, n2, op, true)
	}
	if n2.isLeaf {
		return mergeLeafBranch(n2, n1, op, false)
	}
	// Both branches.
	switch {
	case n1.branchBit == n2.branchBit && n1.prefix == n2.prefix:
		l := merge(n1.left, n2.left, op)
		r := merge(n1.right, n2.right, op)
		return combine(n1.prefix, n1.branchBit, l, r)
	case n1.branchBit > n2.branchBit && matchPrefix(n2.prefix, n1.prefix, n1.branchBit):
		if zeroBit(n2.prefix, n1.branchBit) {
			return combine(n1.prefix, n1.branchBit, merge(n1.left, n2, op), mapOneSidedFull(n1.right, op, true))
		}
		return combine(n1.prefix, n1.branchBit, mapOneSidedFull(n1.left, op, true), merge(n1.right, n2, op))
	case n2.branchBit > n1.branchBit && matchPrefix(n1.prefix, n2.prefix, n2.branchBit):
		if zeroBit(n1.prefix, n2.branchBit) {
			return combine(n2.prefix, n2.branchBit, merge(n1, n2.left, op), mapOneSidedFull(n2.right, op, false))
		}
		return combine(n2.prefix, n2.branchBit, mapOneSidedFull(n2.left, op, false), merge(n1, n2.right, op))
	default:
		return join(n1.prefix, mapOneSidedFull(n1, op, true), n2.prefix, mapOneSidedFull(n2, op, false))
	}
}

// mergeLeafBranch merges a single leaf (from whichever side isLeft says)
// against a full branch on the other side.
func mergeLeafBranch[K Key, V any](leaf, branch *node[K, V], op MergeOp[V], leafIsLeft bool) *node[K, V] {
	idx := leaf.key.Index()
	if matchPrefix(idx, branch.prefix, branch.branchBit) {
		if zeroBit(idx, branch.branchBit) {
			if leafIsLeft {
				return combine(branch.prefix, branch.branchBit, merge(leaf, branch.left, op), mapOneSidedFull(branch.right, op, false))
			}
			return combine(branch.prefix, branch.branchBit, merge(branch.left, leaf, op), mapOneSidedFull(branch.right, op, true))
		}
		if leafIsLeft {
			return combine(branch.prefix, branch.branchBit, mapOneSidedFull(branch.left, op, false), merge(leaf, branch.right, op))
		}
		return combine(branch.prefix, branch.branchBit, mapOneSidedFull(branch.left, op, true), merge(branch.right, leaf, op))
	}
	if leafIsLeft {
		return join(idx, mapOneSidedFull(leaf, op, true), branch.prefix, mapOneSidedFull(branch, op, false))
	}
	return join(branch.prefix, mapOneSidedFull(branch, op, true), idx, mapOneSidedFull(leaf, op, false))
}

func combine[K Key, V any](prefix, branchBit uint64, l, r *node[K, V]) *node[K, V] {
	if l == nil {
		return r
	}
	if r == nil {
		return l
	}
	return newBranch(prefix, branchBit, l, r)
}

// mapOneSided applies a one-sided operator across an entire subtree,
// dropping keys the operator rejects.
func mapOneSided[K Key, V any](n *node[K, V], f func(V) (V, bool)) *node[K, V] {
	if n == nil {
		return nil
	}
	if n.isLeaf {
		v, ok := f(n.value)
		if !ok {
			return nil
		}
		return newLeaf(n.key, v)
	}
	l := mapOneSided(n.left, f)
	r := mapOneSided(n.right, f)
	return combine(n.prefix, n.branchBit, l, r)
}

// mapOneSidedFull applies op's ApplyLeft or ApplyRight across a whole
// subtree, honoring DefaultIsAbsorbing the same way merge's base cases do.
func mapOneSidedFull[K Key, V any](n *node[K, V], op MergeOp[V], isLeft bool) *node[K, V] {
	if op.DefaultIsAbsorbing() {
		return n
	}
	if isLeft {
		return mapOneSided(n, op.ApplyLeft)
	}
	return mapOneSided(n, op.ApplyRight)
}
