package freetree

import "testing"

func TestClassicDuplicateSizesAreSeparateNodes(t *testing.T) {
	mem := newFakeMem(8)
	tree := &Classic{}
	a := mem.alloc(64)
	b := mem.alloc(64)
	tree.Insert(mem, a)
	tree.Insert(mem, b)

	// Classic has no duplicate list: two same-size blocks are two tree
	// nodes, each with its own parent/child fields.
	if classicParent(mem, a) == Nil && classicParent(mem, b) == Nil {
		t.Fatalf("one of two same-size nodes must be the other's child")
	}
	if err := tree.CheckInvariants(mem); err != nil {
		t.Fatalf("CheckInvariants: %v", err)
	}
}

func TestClassicRotationsPreserveOrder(t *testing.T) {
	mem := newFakeMem(32)
	tree := &Classic{}
	sizes := []uint64{50, 40, 30, 20, 10, 60, 70, 80, 90}
	for _, s := range sizes {
		tree.Insert(mem, mem.alloc(s))
		if err := tree.CheckInvariants(mem); err != nil {
			t.Fatalf("after inserting %d: %v", s, err)
		}
	}
	var walked []uint64
	tree.Walk(mem, func(_ Ptr, sz uint64) { walked = append(walked, sz) })
	for i := 1; i < len(walked); i++ {
		if walked[i-1] > walked[i] {
			t.Fatalf("in-order walk not sorted: %v", walked)
		}
	}
}
