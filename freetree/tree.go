// Package freetree implements size-keyed red-black trees of free memory
// blocks. A free block's tree-record fields live inside the block's own
// bytes (starting right after its header word), the same way the
// allocator's boundary tags live inside the block: no node is ever
// allocated by this package.
//
// Four variants share one Tree interface so callers (and tests) can swap
// the back-end without touching allocation logic:
//
//   - Classic: CLRS red-black tree, parent pointers, duplicate sizes kept
//     as separate tree nodes.
//   - Unified: same semantics as Classic, with left/right collapsed into
//     an indexed links[2] array so insert/delete fixups share one
//     direction-parameterized code path instead of mirrored branches.
//   - Listed: unified tree keyed by distinct size, with same-size blocks
//     threaded onto a per-node duplicate list.
//   - Stacked: same data layout as Listed, but every mutating call
//     carries an explicit ancestor stack instead of following parent
//     pointers.
package freetree

import "unsafe"

// Ptr is a byte offset from the owning segment's base address. It plays
// the role a raw pointer would in a language with a single address space;
// a segment-relative offset is used instead so the allocator never keeps
// an interior pointer into a Go slice alive across calls.
type Ptr uint64

// Nil is the sentinel offset: no real block ever lives there because the
// smallest representable segment is far below 2^64-1 bytes.
const Nil Ptr = ^Ptr(0)

// Memory is the view a tree variant needs onto the segment that owns its
// nodes: raw bytes to overlay node structs onto, and the free-block
// payload size encoded in a block's header (owned by the allocator's
// block-layout code, not duplicated here).
type Memory interface {
	Bytes() []byte
	SizeOf(p Ptr) uint64
}

// Tree is the contract every free-tree variant satisfies.
type Tree interface {
	// Insert adds a free block whose header size is already set. b must
	// not currently be a member of the tree.
	Insert(mem Memory, b Ptr)

	// Remove deletes b from the tree. b must currently be a member.
	Remove(mem Memory, b Ptr)

	// BestFit returns and removes the smallest free block with size >=
	// key, or Nil if none exists. Ties are resolved in favor of the
	// node encountered first during the descent.
	BestFit(mem Memory, key uint64) Ptr

	// Total is the number of free blocks the tree currently accounts
	// for (one per node for Classic/Unified, sum of duplicate-list
	// lengths for Listed/Stacked).
	Total() int

	// Walk calls visit once per free block the tree accounts for, in
	// unspecified order, for use by the invariant checker.
	Walk(mem Memory, visit func(b Ptr, size uint64))

	// CheckInvariants runs the variant's own structural audit (P4-P7)
	// and returns a non-nil error describing the first violation found.
	CheckInvariants(mem Memory) error
}

func wordAt(mem Memory, p Ptr) *uint64 {
	return (*uint64)(unsafe.Pointer(&mem.Bytes()[p]))
}

func readWord(mem Memory, p Ptr, fieldOffset uint64) Ptr {
	return Ptr(*(*uint64)(unsafe.Pointer(&mem.Bytes()[p+fieldOffset])))
}

func writeWord(mem Memory, p Ptr, fieldOffset uint64, v Ptr) {
	*(*uint64)(unsafe.Pointer(&mem.Bytes()[p+fieldOffset])) = uint64(v)
}

const (
	headerSize = 8
	// field offsets, relative to the start of a block, for the shared
	// parent/child/link slots. Every variant's node struct starts with
	// the 8-byte header word, so fields begin at offset 8.
	fParent = headerSize + 0*8
	fLeft   = headerSize + 1*8
	fRight  = headerSize + 2*8

	fLinks0 = headerSize + 1*8
	fLinks1 = headerSize + 2*8

	fListHead = headerSize + 2*8 // Listed/Stacked: links[2] then list_head
)

// color bit packed into bit 2 of the header word, mirroring the
// allocator's own block header layout so a node's color survives being
// read back as a plain block header.
func getColor(mem Memory, p Ptr) bool {
	return (*wordAt(mem, p))&0x4 != 0
}

func setColor(mem Memory, p Ptr, red bool) {
	w := wordAt(mem, p)
	if red {
		*w |= 0x4
	} else {
		*w &^= 0x4
	}
}
