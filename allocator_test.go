package segalloc

import (
	"testing"

	"github.com/example/segalloc/freetree"
)

func newVariantAllocators() map[string]*Allocator {
	return map[string]*Allocator{
		"classic": New(&freetree.Classic{}),
		"unified": New(&freetree.Unified{}),
		"listed":  New(&freetree.Listed{}),
		"stacked": New(&freetree.Stacked{}),
	}
}

const heapSize = 1024

// S1: init then allocate 16.
func TestScenarioInitAndAllocate(t *testing.T) {
	for name, a := range newVariantAllocators() {
		t.Run(name, func(t *testing.T) {
			seg := make([]byte, heapSize)
			if !a.Init(seg) {
				t.Fatalf("Init failed")
			}
			if a.GetFreeTotal() != 1 {
				t.Fatalf("GetFreeTotal() = %d, want 1", a.GetFreeTotal())
			}
			// HeapAlign(16) rounds up to minBlockSize's 32-byte payload
			// floor, the smallest block that can host every tree variant's
			// free-record layout (see DESIGN.md's Open Question decisions).
			if got := a.HeapAlign(16); got != 32 {
				t.Fatalf("HeapAlign(16) = %d, want 32", got)
			}
			p, ok := a.Malloc(16)
			if !ok {
				t.Fatalf("Malloc(16) failed")
			}
			if a.GetFreeTotal() != 1 {
				t.Fatalf("GetFreeTotal() after malloc = %d, want 1", a.GetFreeTotal())
			}
			block := blockOf(p)
			if sizeOf(a.seg, block) != 32 {
				t.Fatalf("allocated block size = %d, want 32", sizeOf(a.seg, block))
			}
			if err := a.ValidateHeap(); err != nil {
				t.Fatalf("ValidateHeap: %v", err)
			}
			a.Free(p)
			if a.GetFreeTotal() != 1 {
				t.Fatalf("GetFreeTotal() after free = %d, want 1", a.GetFreeTotal())
			}
			if err := a.ValidateHeap(); err != nil {
				t.Fatalf("ValidateHeap after free: %v", err)
			}
		})
	}
}

// S2/S3: bidirectional coalescing.
func TestScenarioCoalesceBothDirections(t *testing.T) {
	for name, a := range newVariantAllocators() {
		t.Run(name, func(t *testing.T) {
			seg := make([]byte, heapSize)
			a.Init(seg)

			pa, _ := a.Malloc(16)
			pb, _ := a.Malloc(16)
			pc, _ := a.Malloc(16)

			// S3: free the middle block, then its left neighbor; the
			// left free() must right-coalesce into the middle hole. One
			// free block remains to the right of c (the untouched tail),
			// so the total is 2, not 1.
			a.Free(pb)
			a.Free(pa)
			if a.GetFreeTotal() != 2 {
				t.Fatalf("after freeing a,b: GetFreeTotal() = %d, want 2", a.GetFreeTotal())
			}
			if err := a.ValidateHeap(); err != nil {
				t.Fatalf("ValidateHeap: %v", err)
			}
			// c must still be allocated and readable.
			a.seg[pc] = 0x42
			if a.seg[pc] != 0x42 {
				t.Fatalf("c's storage corrupted by neighbor coalescing")
			}

			a.Free(pc)
			if a.GetFreeTotal() != 1 {
				t.Fatalf("after freeing all: GetFreeTotal() = %d, want 1", a.GetFreeTotal())
			}
			if err := a.ValidateHeap(); err != nil {
				t.Fatalf("ValidateHeap after full free: %v", err)
			}
		})
	}
}

// S4: best-fit among equal-sized free blocks.
func TestScenarioBestFitTieBreak(t *testing.T) {
	for name, a := range newVariantAllocators() {
		t.Run(name, func(t *testing.T) {
			seg := make([]byte, heapSize)
			a.Init(seg)

			pa, _ := a.Malloc(16)
			_, _ = a.Malloc(32)
			pc, _ := a.Malloc(16)
			_, _ = a.Malloc(16) // pd: keeps c from right-coalescing with the tail
			a.Free(pa)
			a.Free(pc)

			before := a.GetFreeTotal()
			p, ok := a.Malloc(16)
			if !ok {
				t.Fatalf("Malloc(16) failed with two free blocks available")
			}
			if a.GetFreeTotal() != before-1 {
				t.Fatalf("GetFreeTotal() = %d, want %d", a.GetFreeTotal(), before-1)
			}
			// Both pa and pc round up to the same 32-byte floored block
			// size, so this only confirms best-fit picked one of them.
			if sizeOf(a.seg, blockOf(p)) != 32 {
				t.Fatalf("allocated size = %d, want 32", sizeOf(a.seg, blockOf(p)))
			}
			if err := a.ValidateHeap(); err != nil {
				t.Fatalf("ValidateHeap: %v", err)
			}
		})
	}
}

// S5: realloc grows in place without moving data.
func TestScenarioReallocGrowInPlace(t *testing.T) {
	for name, a := range newVariantAllocators() {
		t.Run(name, func(t *testing.T) {
			seg := make([]byte, heapSize)
			a.Init(seg)

			pa, _ := a.Malloc(16)
			pb, _ := a.Malloc(16)
			a.seg[pa] = 0xAB
			a.Free(pb)

			grown, ok := a.Realloc(pa, 24)
			if !ok {
				t.Fatalf("Realloc(a, 24) failed")
			}
			if grown != pa {
				t.Fatalf("Realloc relocated when it should have grown in place: got %v, want %v", grown, pa)
			}
			if a.seg[grown] != 0xAB {
				t.Fatalf("watermark lost across in-place realloc")
			}
			if err := a.ValidateHeap(); err != nil {
				t.Fatalf("ValidateHeap: %v", err)
			}
		})
	}
}

// S6: realloc relocates when there is no room to grow in place.
func TestScenarioReallocRelocate(t *testing.T) {
	for name, a := range newVariantAllocators() {
		t.Run(name, func(t *testing.T) {
			seg := make([]byte, heapSize)
			a.Init(seg)

			pa, _ := a.Malloc(16)
			_, _ = a.Malloc(16)
			a.seg[pa] = 0xCD

			moved, ok := a.Realloc(pa, 100)
			if !ok {
				t.Fatalf("Realloc(a, 100) failed")
			}
			if moved == pa {
				t.Fatalf("Realloc did not relocate despite no free neighbor")
			}
			if a.seg[moved] != 0xCD {
				t.Fatalf("watermark lost across relocating realloc")
			}
			if err := a.ValidateHeap(); err != nil {
				t.Fatalf("ValidateHeap: %v", err)
			}
		})
	}
}

// S7: a request over MAX_REQUEST_SIZE is rejected without side effects.
func TestScenarioRejectOverCap(t *testing.T) {
	for name, a := range newVariantAllocators() {
		t.Run(name, func(t *testing.T) {
			seg := make([]byte, heapSize)
			a.Init(seg)
			before := a.GetFreeTotal()

			if _, ok := a.Malloc(maxRequestSize + 1); ok {
				t.Fatalf("Malloc(over cap) succeeded, want failure")
			}
			if a.GetFreeTotal() != before {
				t.Fatalf("GetFreeTotal() changed after rejected malloc: got %d, want %d", a.GetFreeTotal(), before)
			}
			if err := a.ValidateHeap(); err != nil {
				t.Fatalf("ValidateHeap: %v", err)
			}
		})
	}
}

// L4: freeing every outstanding allocation leaves exactly one free block
// covering the whole usable segment.
func TestLawCoalesceIdempotence(t *testing.T) {
	for name, a := range newVariantAllocators() {
		t.Run(name, func(t *testing.T) {
			seg := make([]byte, heapSize)
			a.Init(seg)

			var ptrs []Ptr
			for i := 0; i < 6; i++ {
				p, ok := a.Malloc(16)
				if !ok {
					t.Fatalf("Malloc(16) #%d failed", i)
				}
				ptrs = append(ptrs, p)
			}
			for _, p := range ptrs {
				a.Free(p)
			}
			if a.GetFreeTotal() != 1 {
				t.Fatalf("GetFreeTotal() = %d, want 1 after freeing everything", a.GetFreeTotal())
			}
			if got := a.HeapCapacity(); got != heapSize-2*wordSize {
				t.Fatalf("HeapCapacity() = %d, want %d", got, heapSize-2*wordSize)
			}
			if err := a.ValidateHeap(); err != nil {
				t.Fatalf("ValidateHeap: %v", err)
			}
		})
	}
}

func TestMallocZeroAndNilFreeAreNoops(t *testing.T) {
	a := New(&freetree.Classic{})
	seg := make([]byte, heapSize)
	a.Init(seg)

	if _, ok := a.Malloc(0); ok {
		t.Fatalf("Malloc(0) succeeded, want failure")
	}
	a.Free(Nil) // must not panic
	if err := a.ValidateHeap(); err != nil {
		t.Fatalf("ValidateHeap: %v", err)
	}
}
