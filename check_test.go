package segalloc

import (
	"testing"

	"github.com/example/segalloc/freetree"
)

func TestHeapDiffMatchesAndFlagsMismatch(t *testing.T) {
	a := New(&freetree.Classic{})
	seg := make([]byte, heapSize)
	a.Init(seg)

	p, _ := a.Malloc(16)

	expected := []HeapDiffEntry{
		{Address: clientSpace(blockOf(p)), PayloadBytes: 32},
		{Address: Nil, PayloadBytes: NA},
	}
	actual := a.HeapDiff(expected)
	if len(actual) != 2 {
		t.Fatalf("len(actual) = %d, want 2", len(actual))
	}
	if actual[0].Status != StatusOK {
		t.Fatalf("actual[0].Status = %v, want OK", actual[0].Status)
	}
	if actual[1].Status != StatusOK {
		t.Fatalf("actual[1].Status = %v, want OK (NA entry always matches)", actual[1].Status)
	}

	// Now claim the allocated block is free (expected.Address == Nil):
	// must be flagged ER. Keep the same entry count as the real block
	// count (2) so this isn't also flagged HEAP_CONTINUES.
	bad := []HeapDiffEntry{
		{Address: Nil, PayloadBytes: 32},
		{PayloadBytes: NA},
	}
	actualBad := a.HeapDiff(bad)
	if actualBad[0].Status != StatusError {
		t.Fatalf("expected mismatch not flagged: got %v", actualBad[0].Status)
	}
}

func TestHeapDiffOutOfBoundsAndContinues(t *testing.T) {
	a := New(&freetree.Classic{})
	seg := make([]byte, heapSize)
	a.Init(seg)
	a.Malloc(16)

	// Segment has 2 physical blocks (allocated 16 + remaining free tail).
	// Asking for 5 expected entries must flag the tail ones OUT_OF_BOUNDS.
	expected := make([]HeapDiffEntry, 5)
	for i := range expected {
		expected[i] = HeapDiffEntry{PayloadBytes: NA}
	}
	actual := a.HeapDiff(expected)
	var sawOOB bool
	for _, e := range actual {
		if e.Status == StatusOutOfBounds {
			sawOOB = true
		}
	}
	if !sawOOB {
		t.Fatalf("expected at least one OUT_OF_BOUNDS entry")
	}

	// Asking for fewer entries than physical blocks exist must flag the
	// last produced entry HEAP_CONTINUES.
	short := []HeapDiffEntry{{PayloadBytes: NA}}
	actualShort := a.HeapDiff(short)
	if actualShort[len(actualShort)-1].Status != StatusHeapContinues {
		t.Fatalf("last entry = %v, want HEAP_CONTINUES", actualShort[len(actualShort)-1].Status)
	}
}

func TestStatsReflectsFreeAndAllocatedBlocks(t *testing.T) {
	a := New(&freetree.Classic{})
	seg := make([]byte, heapSize)
	a.Init(seg)

	p, _ := a.Malloc(16)
	s := a.Stats()
	if s.BlockCount != 2 {
		t.Fatalf("BlockCount = %d, want 2", s.BlockCount)
	}
	if s.FreeBlockCount != 1 {
		t.Fatalf("FreeBlockCount = %d, want 1", s.FreeBlockCount)
	}
	if s.FragmentationRatio != 1.0 {
		t.Fatalf("FragmentationRatio = %f, want 1.0 (single free block)", s.FragmentationRatio)
	}

	a.Free(p)
	s = a.Stats()
	if s.BlockCount != 1 {
		t.Fatalf("BlockCount after free = %d, want 1", s.BlockCount)
	}
	if s.TotalFree != heapSize-2*wordSize {
		t.Fatalf("TotalFree = %d, want %d", s.TotalFree, heapSize-2*wordSize)
	}
}
