package freetree

import "testing"

func TestUnifiedMirrorsClassicShape(t *testing.T) {
	sizes := []uint64{100, 50, 150, 25, 75, 125, 175, 10, 40}
	classicMem := newFakeMem(32)
	unifiedMem := newFakeMem(32)
	classic := &Classic{}
	unified := &Unified{}

	for _, s := range sizes {
		classic.Insert(classicMem, classicMem.alloc(s))
		unified.Insert(unifiedMem, unifiedMem.alloc(s))
	}
	if err := classic.CheckInvariants(classicMem); err != nil {
		t.Fatalf("classic: %v", err)
	}
	if err := unified.CheckInvariants(unifiedMem); err != nil {
		t.Fatalf("unified: %v", err)
	}

	var classicOrder, unifiedOrder []uint64
	classic.Walk(classicMem, func(_ Ptr, sz uint64) { classicOrder = append(classicOrder, sz) })
	unified.Walk(unifiedMem, func(_ Ptr, sz uint64) { unifiedOrder = append(unifiedOrder, sz) })

	if len(classicOrder) != len(unifiedOrder) {
		t.Fatalf("length mismatch: classic %d, unified %d", len(classicOrder), len(unifiedOrder))
	}
	for i := range classicOrder {
		if classicOrder[i] != unifiedOrder[i] {
			t.Fatalf("order diverges at %d: classic %d, unified %d", i, classicOrder[i], unifiedOrder[i])
		}
	}
}

func TestDirectionOther(t *testing.T) {
	if left.other() != right {
		t.Fatalf("left.other() = %v, want right", left.other())
	}
	if right.other() != left {
		t.Fatalf("right.other() = %v, want left", right.other())
	}
}
