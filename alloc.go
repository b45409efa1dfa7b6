// Package segalloc implements a dynamic storage allocator over a single
// fixed-size byte segment, using boundary tags for O(1) physical-neighbor
// navigation and a pluggable size-keyed red-black tree (package freetree)
// for free-block selection.
//
// The segment is supplied by the caller at Init time and is never resized;
// growing it, returning memory to the operating system, and allocations
// beyond the provided bytes are all out of scope (see freetree's own
// package doc for the tree back-end options).
package segalloc

import "github.com/example/segalloc/freetree"

// Ptr is a byte offset into the segment passed to Init. It is the
// allocator's analogue of a raw pointer: stable across calls (the
// segment's backing array never moves or grows), but never an actual Go
// pointer, so nothing here defeats the garbage collector's ability to
// reason about the slice the caller owns.
type Ptr = freetree.Ptr

// Nil is the sentinel Ptr value: no client or internal pointer is ever
// equal to it.
const Nil = freetree.Nil

// Allocator manages one fixed-size segment on behalf of a client. The
// zero value is not usable; construct with New and call Init before any
// other method.
type Allocator struct {
	seg         []byte
	tree        freetree.Tree
	clientStart Ptr
	sentinel    Ptr
}

// New constructs an allocator that will use the given free-tree
// implementation as its back-end once Init is called. Pass a pointer to
// a zero-valued freetree.Classic, freetree.Unified, freetree.Listed, or
// freetree.Stacked.
func New(tree freetree.Tree) *Allocator {
	return &Allocator{tree: tree}
}

// Bytes and SizeOf satisfy freetree.Memory, letting the Allocator itself
// stand in as the Memory argument every Tree method requires.
func (a *Allocator) Bytes() []byte      { return a.seg }
func (a *Allocator) SizeOf(p Ptr) uint64 { return sizeOf(a.seg, p) }

// Init rounds size down to the alignment and lays out a single free
// block spanning the whole segment plus a trailing sentinel. It returns
// false (without mutating the allocator) if the rounded size is smaller
// than minBlockSize, per spec.md §4.5.
func (a *Allocator) Init(seg []byte) bool {
	aligned := uint64(len(seg)) &^ (wordSize - 1)
	if aligned < minBlockSize {
		return false
	}
	a.seg = seg[:aligned]
	a.clientStart = 0
	a.sentinel = Ptr(aligned) - wordSize

	// I5: the sentinel has size=0 and allocated=1, terminating
	// right-neighbor walks; its left-allocated bit is corrected below
	// once the single free block's right neighbor (this sentinel) is
	// known to be adjacent to free space.
	writeHeader(a.seg, a.sentinel, makeHeader(0, true, true, false))

	payload := uint64(a.sentinel) - wordSize
	initFreeNode(a.seg, a.clientStart, payload, true)
	a.tree.Insert(a, a.clientStart)
	return true
}

// Malloc returns a client pointer to n usable bytes, or (Nil, false) if
// n is zero, exceeds MaxRequestSize, or no free block is large enough.
func (a *Allocator) Malloc(n uint64) (Ptr, bool) {
	if n == 0 || n > maxRequestSize {
		return Nil, false
	}
	req := roundup(n, wordSize)
	b := a.tree.BestFit(a, req)
	if b == Nil {
		return Nil, false
	}
	blockSpace := sizeOf(a.seg, b)
	return a.splitAlloc(b, req, blockSpace), true
}

// Free releases the block backing p, coalescing with free physical
// neighbors. A Nil p is a no-op. Freeing an invalid or already-free
// pointer is undefined behavior by contract (spec.md §7) and is not
// defended against here.
func (a *Allocator) Free(p Ptr) {
	if p == Nil {
		return
	}
	block := blockOf(p)
	report := a.coalesceReport(block)
	current := a.applyCoalesce(report, false)
	leftAlloc := isLeftAllocated(a.seg, current)
	initFreeNode(a.seg, current, report.available, leftAlloc)
	a.tree.Insert(a, current)
}

// Realloc resizes the allocation at old to n bytes, per spec.md §4.5's
// four-way branch (new allocation, free-and-null, in-place grow,
// relocate). old is left valid and untouched whenever Realloc reports
// failure.
func (a *Allocator) Realloc(old Ptr, n uint64) (Ptr, bool) {
	if old == Nil {
		return a.Malloc(n)
	}
	if n == 0 {
		a.Free(old)
		return Nil, true
	}
	if n > maxRequestSize {
		return Nil, false
	}

	req := roundup(n, wordSize)
	block := blockOf(old)
	oldPayload := sizeOf(a.seg, block)
	report := a.coalesceReport(block)

	if report.available >= req {
		current := a.applyCoalesce(report, true)
		if current != block {
			copy(a.seg[clientSpace(current):clientSpace(current)+Ptr(oldPayload)],
				a.seg[old:old+Ptr(oldPayload)])
		}
		return a.splitAlloc(current, req, report.available), true
	}

	// available < req: the in-place path cannot satisfy the request.
	// Remove the coalescable neighbors up front so the probing Malloc
	// below cannot hand one of them back out as the new allocation out
	// from under this report; restore them untouched if the probe fails.
	a.removeCoalesceNeighbors(report)
	newClient, ok := a.Malloc(n)
	if !ok {
		a.insertCoalesceNeighbors(report)
		return Nil, false
	}
	copy(a.seg[newClient:newClient+Ptr(oldPayload)], a.seg[old:old+Ptr(oldPayload)])
	current := a.finishCoalesce(report, false)
	leftAlloc := isLeftAllocated(a.seg, current)
	initFreeNode(a.seg, current, report.available, leftAlloc)
	a.tree.Insert(a, current)
	return newClient, true
}

// HeapAlign exposes the rounding Malloc applies to a requested size.
func (a *Allocator) HeapAlign(n uint64) uint64 { return roundup(n, wordSize) }

// HeapCapacity sums the payload bytes of every free block via a linear
// segment walk.
func (a *Allocator) HeapCapacity() uint64 {
	var total uint64
	a.walkBlocks(func(b Ptr, size uint64, allocated bool) {
		if !allocated {
			total += size
		}
	})
	return total
}

// GetFreeTotal returns the free tree's cached entry count in O(1).
func (a *Allocator) GetFreeTotal() int { return a.tree.Total() }

// walkBlocks visits every physical block from clientStart up to (but not
// including) the sentinel, left to right.
func (a *Allocator) walkBlocks(visit func(b Ptr, size uint64, allocated bool)) {
	b := a.clientStart
	for b < a.sentinel {
		size := sizeOf(a.seg, b)
		visit(b, size, isAllocated(a.seg, b))
		b = rightNeighbor(b, size)
	}
}
