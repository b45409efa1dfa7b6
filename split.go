package segalloc

// splitAlloc carves request bytes out of block (whose current payload is
// blockSpace), per spec.md §4.4. If the remainder would be too small to
// host a free-block record, the whole block is handed to the client
// instead of leaving an unusable sliver.
func (a *Allocator) splitAlloc(block Ptr, request, blockSpace uint64) Ptr {
	leftAlloc := isLeftAllocated(a.seg, block)
	if blockSpace >= request+minBlockSize {
		remainder := rightNeighbor(block, request)
		remainderPayload := blockSpace - request - wordSize
		initFreeNode(a.seg, remainder, remainderPayload, true)
		a.tree.Insert(a, remainder)
		writeHeader(a.seg, block, makeHeader(request, leftAlloc, true, false))
	} else {
		setLeftAllocated(a.seg, rightNeighbor(block, blockSpace), true)
		writeHeader(a.seg, block, makeHeader(blockSpace, leftAlloc, true, false))
	}
	return clientSpace(block)
}
