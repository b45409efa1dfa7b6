package freetree

// Listed is variant C: a red-black tree keyed by *distinct* free-block
// size, with additional free blocks of an already-present size threaded
// onto a per-size duplicate list instead of becoming their own tree
// nodes. The list's first member caches the tree node's parent (see
// DESIGN.md), so promoting a duplicate into a removed tree node's place
// never needs a tree descent.
//
// Duplicate-list node fields reuse the same three word slots as the tree
// node (fLinks0/fLinks1/fListHead), reinterpreted as (prev, next,
// parentOrNull); see addDuplicate/removeDuplicate.
type Listed struct {
	root  Ptr
	total int
}

var _ Tree = (*Listed)(nil)

func (t *Listed) Total() int { return t.total }

func (t *Listed) Insert(mem Memory, b Ptr) {
	size := mem.SizeOf(b)
	anc, found := linkedDescendFind(mem, t.root, size)
	if found {
		head := anc.top()
		headParent := anc.at(anc.n - 2)
		addDuplicate(mem, head, headParent, b)
	} else {
		linkedInsertNew(mem, &t.root, anc, b, listedReparent)
	}
	t.total++
}

// listedReparent keeps a node's duplicate-list cache in sync with its
// real tree parent whenever a rotation or transplant moves the node,
// per spec.md §4.2.3.
func listedReparent(mem Memory, node, newParent Ptr) {
	if node == Nil {
		return
	}
	firstDup := readWord(mem, node, fListHead)
	if firstDup != Nil {
		writeWord(mem, firstDup, fListHead, newParent)
	}
}

// addDuplicate prepends b to head's duplicate list as its new first
// element, per spec.md §4.2.3.
func addDuplicate(mem Memory, head, headParent, b Ptr) {
	cur := readWord(mem, head, fListHead)
	writeWord(mem, b, fLinks0, Nil) // b.prev = Nil: b is the new first element
	writeWord(mem, b, fLinks1, cur) // b.next = old first (or Nil)
	if cur == Nil {
		writeWord(mem, b, fListHead, headParent) // b caches head's parent
	} else {
		oldCache := readWord(mem, cur, fListHead)
		writeWord(mem, b, fListHead, oldCache)
		writeWord(mem, cur, fListHead, Nil) // cur is no longer first; drop its cache
		writeWord(mem, cur, fLinks0, b)     // cur.prev = b
	}
	writeWord(mem, head, fListHead, b)
}

// removeDuplicate splices b, a known non-head duplicate of head's size,
// out of its list in O(1).
func removeDuplicate(mem Memory, head, b Ptr) {
	prev := readWord(mem, b, fLinks0)
	next := readWord(mem, b, fLinks1)
	if prev == Nil {
		writeWord(mem, head, fListHead, next)
		if next != Nil {
			cache := readWord(mem, b, fListHead)
			writeWord(mem, next, fLinks0, Nil)
			writeWord(mem, next, fListHead, cache)
		}
	} else {
		writeWord(mem, prev, fLinks1, next)
		if next != Nil {
			writeWord(mem, next, fLinks0, prev)
		}
	}
}

// promoteHead removes head itself (which owns a non-empty duplicate
// list) from the tree and replaces it with the list's first member,
// inheriting head's color, children, and tree position in O(1) via the
// parent cache - no descent required.
func promoteHead(mem Memory, root *Ptr, head Ptr) {
	firstDup := readWord(mem, head, fListHead)
	headParent := readWord(mem, firstDup, fListHead)
	newListHead := readWord(mem, firstDup, fLinks1)

	l := linkedChild(mem, head, left)
	r := linkedChild(mem, head, right)
	red := linkedIsRed(mem, head)

	// firstDup is mid-transition from duplicate to tree node here, so it
	// must not run through the general listedReparent hook (its fListHead
	// field still holds stale duplicate-list state, not yet a real
	// tree-node list pointer); pass nil and finish the swap by hand below.
	linkedTransplant(mem, root, headParent, head, firstDup, nil)
	linkedSetChild(mem, firstDup, left, l)
	linkedSetChild(mem, firstDup, right, r)
	linkedSetRed(mem, firstDup, red)
	writeWord(mem, firstDup, fListHead, newListHead)
	if newListHead != Nil {
		writeWord(mem, newListHead, fLinks0, Nil)
		writeWord(mem, newListHead, fListHead, headParent)
	}

	// spec.md §4.2.3: propagate the new tree node address into the
	// parent cache of the left and right children's own duplicate lists
	// - head is no longer their parent, firstDup is.
	listedReparent(mem, l, firstDup)
	listedReparent(mem, r, firstDup)
}

func (t *Listed) Remove(mem Memory, b Ptr) {
	size := mem.SizeOf(b)
	anc, found := linkedDescendFind(mem, t.root, size)
	if !found {
		return
	}
	head := anc.top()
	if head != b {
		removeDuplicate(mem, head, b)
		t.total--
		return
	}
	firstDup := readWord(mem, head, fListHead)
	if firstDup != Nil {
		promoteHead(mem, &t.root, head)
	} else {
		linkedRemoveAt(mem, &t.root, &anc, listedReparent)
	}
	t.total--
}

func (t *Listed) BestFit(mem Memory, key uint64) Ptr {
	anc, winner := linkedDescendBestFit(mem, t.root, key)
	if winner == Nil {
		return Nil
	}
	firstDup := readWord(mem, winner, fListHead)
	if firstDup != Nil {
		newListHead := readWord(mem, firstDup, fLinks1)
		writeWord(mem, winner, fListHead, newListHead)
		if newListHead != Nil {
			// newListHead becomes the list's first member; it must carry
			// on caching winner's parent, the same as addDuplicate and
			// promoteHead maintain, so a later promoteHead still finds it
			// without a descent.
			headParent := anc.at(anc.n - 2)
			writeWord(mem, newListHead, fLinks0, Nil)
			writeWord(mem, newListHead, fListHead, headParent)
		}
		t.total--
		return firstDup
	}
	linkedRemoveAt(mem, &t.root, &anc, listedReparent)
	t.total--
	return winner
}

func (t *Listed) Walk(mem Memory, visit func(Ptr, uint64)) {
	linkedWalk(mem, t.root, func(head Ptr) {
		size := mem.SizeOf(head)
		visit(head, size)
		for d := readWord(mem, head, fListHead); d != Nil; d = readWord(mem, d, fLinks1) {
			visit(d, size)
		}
	})
}

func (t *Listed) CheckInvariants(mem Memory) error {
	count := 0
	var walkErr error
	// Parent-tracking walk (rather than linkedWalk) so P6 - the first
	// duplicate's cache must equal the head's actual parent - can be
	// checked alongside P7's interior-null rule.
	var rec func(x, parent Ptr)
	rec = func(x, parent Ptr) {
		if x == Nil || walkErr != nil {
			return
		}
		rec(linkedChild(mem, x, left), x)
		count++
		firstDup := readWord(mem, x, fListHead)
		if firstDup != Nil {
			if readWord(mem, firstDup, fListHead) != parent {
				walkErr = errInvariant("first duplicate's cached parent does not match actual parent")
				return
			}
			firstSeen := true
			for d := firstDup; d != Nil; d = readWord(mem, d, fLinks1) {
				count++
				cache := readWord(mem, d, fListHead)
				if firstSeen {
					firstSeen = false
				} else if cache != Nil {
					walkErr = errInvariant("interior duplicate carries non-null parent cache")
					return
				}
				if mem.SizeOf(d) != mem.SizeOf(x) {
					walkErr = errInvariant("duplicate list member has wrong size")
					return
				}
			}
		}
		rec(linkedChild(mem, x, right), x)
	}
	rec(t.root, Nil)
	if walkErr != nil {
		return walkErr
	}
	if _, err := linkedCheckShape(mem, t.root); err != nil {
		return err
	}
	if count != t.total {
		return errInvariant("tree total mismatch")
	}
	return nil
}
