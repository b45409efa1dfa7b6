package freetree

// linkedcore implements the red-black mechanics shared by Listed (variant
// C) and Stacked (variant D): a tree keyed by *distinct* free-block size,
// where every node's tree fields are links[2] at fLinks0/fLinks1 (no
// parent field - see DESIGN.md's resolution of the variant-C/D parent
// question). Both variants layer duplicate-size handling on top of these
// functions; the two differ only in whether removing a node that owns a
// non-empty duplicate list can short-circuit via a cached parent pointer
// (Listed) or must re-derive that parent by descent (Stacked).
//
// maxTreeHeight bounds the ancestor path used by every mutating call, per
// spec.md's MAX_TREE_HEIGHT = 64 (ample for a red-black tree up to 2^32
// nodes).
const maxTreeHeight = 64

type ancestry struct {
	node [maxTreeHeight]Ptr
	n    int
}

func (a *ancestry) push(p Ptr) { a.node[a.n] = p; a.n++ }

func (a *ancestry) top() Ptr { return a.at(a.n - 1) }

func (a *ancestry) at(i int) Ptr {
	if i < 0 || i >= a.n {
		return Nil
	}
	return a.node[i]
}

// reparentHook is invoked every time linkedRotate or linkedTransplant
// gives a node a new real tree parent. Listed passes a hook that keeps a
// duplicate-list's cached parent in sync with the node that owns the
// list (spec.md §4.2.3: "rotations and transplants must update the
// parent cache of the moved subtrees' list heads"); Stacked passes nil
// since it never caches a parent anywhere.
type reparentHook func(mem Memory, node, newParent Ptr)

func fireReparent(mem Memory, hook reparentHook, node, newParent Ptr) {
	if hook != nil && node != Nil {
		hook(mem, node, newParent)
	}
}

func linkedChild(mem Memory, p Ptr, d direction) Ptr {
	if p == Nil {
		return Nil
	}
	if d == left {
		return readWord(mem, p, fLinks0)
	}
	return readWord(mem, p, fLinks1)
}

func linkedSetChild(mem Memory, p Ptr, d direction, v Ptr) {
	if p == Nil {
		return
	}
	if d == left {
		writeWord(mem, p, fLinks0, v)
	} else {
		writeWord(mem, p, fLinks1, v)
	}
}

func linkedIsRed(mem Memory, p Ptr) bool { return p != Nil && getColor(mem, p) }

func linkedSetRed(mem Memory, p Ptr, red bool) {
	if p != Nil {
		setColor(mem, p, red)
	}
}

// linkedDescendFind walks from root comparing against size, returning the
// full ancestor path. found is true iff the last pushed node has exactly
// that size; otherwise the path ends at the would-be parent of an
// insertion at that size.
func linkedDescendFind(mem Memory, root Ptr, size uint64) (anc ancestry, found bool) {
	x := root
	for x != Nil {
		anc.push(x)
		s := mem.SizeOf(x)
		switch {
		case size == s:
			return anc, true
		case size < s:
			x = linkedChild(mem, x, left)
		default:
			x = linkedChild(mem, x, right)
		}
	}
	return anc, false
}

// linkedDescendBestFit performs the best-fit descent (spec.md §4.2):
// record the smallest node seen so far whose size is >= key and descend
// left, otherwise descend right; stop early on an exact match. Returns
// the ancestor path to the winner (not the full path walked) so the
// caller can delete the winner without a second descent.
func linkedDescendBestFit(mem Memory, root Ptr, key uint64) (anc ancestry, winner Ptr) {
	x := root
	var cur ancestry
	winner = Nil
	for x != Nil {
		cur.push(x)
		sz := mem.SizeOf(x)
		switch {
		case sz == key:
			return cur, x
		case sz > key:
			winner = x
			anc = cur
			x = linkedChild(mem, x, left)
		default:
			x = linkedChild(mem, x, right)
		}
	}
	return anc, winner
}

// linkedRotate brings x's bringUp-side child (y) up to x's position. It
// reparents three nodes: y's bringUp.other() child (which becomes x's
// child), x (which becomes y's child), and y (which takes x's old
// parent slot) - each reported to hook so a cached duplicate-list parent
// can follow.
func linkedRotate(mem Memory, root *Ptr, x, xParent Ptr, bringUp direction, hook reparentHook) Ptr {
	y := linkedChild(mem, x, bringUp)
	beta := linkedChild(mem, y, bringUp.other())
	linkedSetChild(mem, x, bringUp, beta)
	linkedSetChild(mem, y, bringUp.other(), x)
	switch {
	case xParent == Nil:
		*root = y
	case linkedChild(mem, xParent, left) == x:
		linkedSetChild(mem, xParent, left, y)
	default:
		linkedSetChild(mem, xParent, right, y)
	}
	fireReparent(mem, hook, beta, x)
	fireReparent(mem, hook, x, y)
	fireReparent(mem, hook, y, xParent)
	return y
}

func linkedTransplant(mem Memory, root *Ptr, zParent, z, v Ptr, hook reparentHook) {
	switch {
	case zParent == Nil:
		*root = v
	case linkedChild(mem, zParent, left) == z:
		linkedSetChild(mem, zParent, left, v)
	default:
		linkedSetChild(mem, zParent, right, v)
	}
	fireReparent(mem, hook, v, zParent)
}

// linkedInsertNew attaches a brand-new distinct-size node b at the
// position described by anc (the not-found path from linkedDescendFind)
// and restores red-black balance.
func linkedInsertNew(mem Memory, root *Ptr, anc ancestry, b Ptr, hook reparentHook) {
	size := mem.SizeOf(b)
	writeWord(mem, b, fLinks0, Nil)
	writeWord(mem, b, fLinks1, Nil)
	writeWord(mem, b, fListHead, Nil)
	linkedSetRed(mem, b, true)
	if anc.n == 0 {
		*root = b
	} else {
		parent := anc.top()
		if size < mem.SizeOf(parent) {
			linkedSetChild(mem, parent, left, b)
		} else {
			linkedSetChild(mem, parent, right, b)
		}
	}
	anc.push(b)
	linkedFixInsert(mem, root, &anc, hook)
}

func linkedFixInsert(mem Memory, root *Ptr, anc *ancestry, hook reparentHook) {
	i := anc.n - 1
	for i > 0 {
		pi := i - 1
		p := anc.at(pi)
		if !linkedIsRed(mem, p) {
			break
		}
		if pi == 0 {
			break
		}
		gi := pi - 1
		g := anc.at(gi)
		pIsLeft := linkedChild(mem, g, left) == p
		uncleDir := right
		if !pIsLeft {
			uncleDir = left
		}
		uncle := linkedChild(mem, g, uncleDir)
		if linkedIsRed(mem, uncle) {
			linkedSetRed(mem, p, false)
			linkedSetRed(mem, uncle, false)
			linkedSetRed(mem, g, true)
			i = gi
			continue
		}
		z := anc.at(i)
		gp := anc.at(gi - 1)
		if pIsLeft {
			if z == linkedChild(mem, p, right) {
				linkedRotate(mem, root, p, g, right, hook)
				p, z = z, p
			}
			linkedSetRed(mem, p, false)
			linkedSetRed(mem, g, true)
			linkedRotate(mem, root, g, gp, left, hook)
		} else {
			if z == linkedChild(mem, p, left) {
				linkedRotate(mem, root, p, g, left, hook)
				p, z = z, p
			}
			linkedSetRed(mem, p, false)
			linkedSetRed(mem, g, true)
			linkedRotate(mem, root, g, gp, right, hook)
		}
		break
	}
	linkedSetRed(mem, *root, false)
}

// linkedRemoveAt deletes the node at the tip of anc (anc.top()) from the
// distinct-size tree, given its full ancestor path.
func linkedRemoveAt(mem Memory, root *Ptr, anc *ancestry, hook reparentHook) {
	idxZ := anc.n - 1
	z := anc.at(idxZ)
	zParent := anc.at(idxZ - 1)
	l := linkedChild(mem, z, left)
	r := linkedChild(mem, z, right)

	var x, xParent Ptr
	var removedRed bool

	switch {
	case l == Nil:
		x, xParent = r, zParent
		removedRed = linkedIsRed(mem, z)
		linkedTransplant(mem, root, zParent, z, r, hook)
	case r == Nil:
		x, xParent = l, zParent
		removedRed = linkedIsRed(mem, z)
		linkedTransplant(mem, root, zParent, z, l, hook)
	default:
		y := r
		yParent := z
		for linkedChild(mem, y, left) != Nil {
			yParent = y
			y = linkedChild(mem, y, left)
		}
		removedRed = linkedIsRed(mem, y)
		x = linkedChild(mem, y, right)
		if yParent == z {
			xParent = y
		} else {
			xParent = yParent
			linkedTransplant(mem, root, yParent, y, x, hook)
			linkedSetChild(mem, y, right, r)
			fireReparent(mem, hook, r, y)
		}
		linkedTransplant(mem, root, zParent, z, y, hook)
		linkedSetChild(mem, y, left, l)
		fireReparent(mem, hook, l, y)
		linkedSetRed(mem, y, linkedIsRed(mem, z))
	}

	if !removedRed {
		if xParent == Nil {
			linkedSetRed(mem, x, false)
			return
		}
		pAnc, _ := linkedDescendFind(mem, *root, mem.SizeOf(xParent))
		linkedFixDelete(mem, root, x, xParent, &pAnc, hook)
	}
}

func linkedFixDelete(mem Memory, root *Ptr, x, xParent Ptr, anc *ancestry, hook reparentHook) {
	idx := anc.n - 1 // anc.at(idx) == xParent
	for x != *root && !linkedIsRed(mem, x) {
		isLeft := linkedChild(mem, xParent, left) == x
		sibDir := right
		if !isLeft {
			sibDir = left
		}
		w := linkedChild(mem, xParent, sibDir)
		if linkedIsRed(mem, w) {
			linkedSetRed(mem, w, false)
			linkedSetRed(mem, xParent, true)
			gp := anc.at(idx - 1)
			linkedRotate(mem, root, xParent, gp, sibDir, hook)
			anc.node[idx-1] = w
			w = linkedChild(mem, xParent, sibDir)
		}
		var near, far Ptr
		if isLeft {
			near, far = linkedChild(mem, w, left), linkedChild(mem, w, right)
		} else {
			near, far = linkedChild(mem, w, right), linkedChild(mem, w, left)
		}
		if !linkedIsRed(mem, near) && !linkedIsRed(mem, far) {
			linkedSetRed(mem, w, true)
			next := anc.at(idx - 1)
			x = xParent
			xParent = next
			idx--
			continue
		}
		if !linkedIsRed(mem, far) {
			linkedSetRed(mem, near, false)
			linkedSetRed(mem, w, true)
			innerDir := left
			if !isLeft {
				innerDir = right
			}
			linkedRotate(mem, root, w, xParent, innerDir, hook)
			w = linkedChild(mem, xParent, sibDir)
			if isLeft {
				far = linkedChild(mem, w, right)
			} else {
				far = linkedChild(mem, w, left)
			}
		}
		linkedSetRed(mem, w, linkedIsRed(mem, xParent))
		linkedSetRed(mem, xParent, false)
		linkedSetRed(mem, far, false)
		outerDir := right
		if !isLeft {
			outerDir = left
		}
		gp := anc.at(idx - 1)
		linkedRotate(mem, root, xParent, gp, outerDir, hook)
		x = *root
		break
	}
	linkedSetRed(mem, x, false)
}

func linkedWalk(mem Memory, root Ptr, visit func(Ptr)) {
	var rec func(Ptr)
	rec = func(x Ptr) {
		if x == Nil {
			return
		}
		rec(linkedChild(mem, x, left))
		visit(x)
		rec(linkedChild(mem, x, right))
	}
	rec(root)
}

func linkedCheckShape(mem Memory, root Ptr) (count int, err error) {
	var blackHeight func(Ptr) (int, error)
	blackHeight = func(x Ptr) (int, error) {
		if x == Nil {
			return 1, nil
		}
		count++
		if linkedIsRed(mem, x) {
			if linkedIsRed(mem, linkedChild(mem, x, left)) || linkedIsRed(mem, linkedChild(mem, x, right)) {
				return 0, errInvariant("red node with red child")
			}
		}
		l := linkedChild(mem, x, left)
		r := linkedChild(mem, x, right)
		if l != Nil && mem.SizeOf(l) >= mem.SizeOf(x) {
			return 0, errInvariant("left subtree not strictly smaller")
		}
		if r != Nil && mem.SizeOf(r) <= mem.SizeOf(x) {
			return 0, errInvariant("right subtree not strictly greater")
		}
		lh, err := blackHeight(l)
		if err != nil {
			return 0, err
		}
		rh, err := blackHeight(r)
		if err != nil {
			return 0, err
		}
		if lh != rh {
			return 0, errInvariant("unequal black height")
		}
		add := 1
		if linkedIsRed(mem, x) {
			add = 0
		}
		return lh + add, nil
	}
	if linkedIsRed(mem, root) {
		return 0, errInvariant("root is red")
	}
	if _, err := blackHeight(root); err != nil {
		return 0, err
	}
	return count, nil
}
