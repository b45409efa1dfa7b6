package segalloc

// coalesceReport is the inspection phase of spec.md's two-phase coalescer:
// it describes how far a block could grow by absorbing free physical
// neighbors, without mutating anything. current starts as the inspected
// block itself; if left is present, the eventual merged block's address
// moves to left.
type coalesceReport struct {
	current   Ptr
	left      Ptr
	right     Ptr
	available uint64
}

func (a *Allocator) coalesceReport(b Ptr) coalesceReport {
	size := sizeOf(a.seg, b)
	r := coalesceReport{current: b, left: Nil, right: Nil, available: size}

	right := rightNeighbor(b, size)
	if !isAllocated(a.seg, right) {
		r.right = right
		r.available += sizeOf(a.seg, right) + wordSize
	}
	if b != a.clientStart && !isLeftAllocated(a.seg, b) {
		left := leftNeighbor(a.seg, b)
		r.left = left
		r.available += sizeOf(a.seg, left) + wordSize
	}
	return r
}

// removeCoalesceNeighbors deletes the report's free neighbors from the
// free tree. Call exactly once per report before finishCoalesce.
func (a *Allocator) removeCoalesceNeighbors(r coalesceReport) {
	if r.right != Nil {
		a.tree.Remove(a, r.right)
	}
	if r.left != Nil {
		a.tree.Remove(a, r.left)
	}
}

// insertCoalesceNeighbors undoes removeCoalesceNeighbors. Used only when
// a probing allocation between report and apply fails and the report's
// neighbors must be restored to the tree untouched.
func (a *Allocator) insertCoalesceNeighbors(r coalesceReport) {
	if r.left != Nil {
		a.tree.Insert(a, r.left)
	}
	if r.right != Nil {
		a.tree.Insert(a, r.right)
	}
}

// finishCoalesce rewrites the merged block's header. It assumes the
// report's neighbors have already been removed from the tree (by
// removeCoalesceNeighbors or by a prior BestFit) and performs no tree
// mutation itself.
func (a *Allocator) finishCoalesce(r coalesceReport, allocated bool) Ptr {
	current := r.current
	if r.left != Nil {
		current = r.left
	}
	leftAlloc := isLeftAllocated(a.seg, current)
	writeHeader(a.seg, current, makeHeader(r.available, leftAlloc, allocated, false))
	return current
}

// applyCoalesce is the apply phase for call sites where no other tree
// mutation can run between report and apply: free() and realloc's
// in-place growth path.
func (a *Allocator) applyCoalesce(r coalesceReport, allocated bool) Ptr {
	a.removeCoalesceNeighbors(r)
	return a.finishCoalesce(r, allocated)
}
