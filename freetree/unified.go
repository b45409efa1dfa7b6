package freetree

// direction indexes a node's two children: left=0, right=1. Unified
// collapses the left/right mirror of Classic's fixups into one loop body
// parameterized by direction, per spec.md's §4.2.2 ("symmetric_case").
type direction int

const (
	left  direction = 0
	right direction = 1
)

func (d direction) other() direction { return 1 - d }

// Unified is variant B: same contract and node layout as Classic (parent
// pointer, duplicates as separate tree nodes), but insert/delete fixups
// are written once and mirrored by flipping direction rather than as two
// near-duplicate branches.
type Unified struct {
	root  Ptr
	total int
}

var _ Tree = (*Unified)(nil)

func (t *Unified) Total() int { return t.total }

func unifiedParent(mem Memory, p Ptr) Ptr {
	if p == Nil {
		return Nil
	}
	return readWord(mem, p, fParent)
}

func unifiedSetParent(mem Memory, p, v Ptr) {
	if p == Nil {
		return
	}
	writeWord(mem, p, fParent, v)
}

func unifiedChild(mem Memory, p Ptr, d direction) Ptr {
	if p == Nil {
		return Nil
	}
	if d == left {
		return readWord(mem, p, fLinks0)
	}
	return readWord(mem, p, fLinks1)
}

func unifiedSetChild(mem Memory, p Ptr, d direction, v Ptr) {
	if p == Nil {
		return
	}
	if d == left {
		writeWord(mem, p, fLinks0, v)
	} else {
		writeWord(mem, p, fLinks1, v)
	}
}

func unifiedIsRed(mem Memory, p Ptr) bool { return p != Nil && getColor(mem, p) }

func unifiedSetRed(mem Memory, p Ptr, red bool) {
	if p != Nil {
		setColor(mem, p, red)
	}
}

// rotate brings x's d-side child up to x's position; d=left is a
// classical left-rotation, d=right is its mirror.
func unifiedRotate(mem Memory, t *Unified, x Ptr, d direction) {
	y := unifiedChild(mem, x, d.other())
	unifiedSetChild(mem, x, d.other(), unifiedChild(mem, y, d))
	if unifiedChild(mem, y, d) != Nil {
		unifiedSetParent(mem, unifiedChild(mem, y, d), x)
	}
	unifiedSetParent(mem, y, unifiedParent(mem, x))
	p := unifiedParent(mem, x)
	switch {
	case p == Nil:
		t.root = y
	case x == unifiedChild(mem, p, left):
		unifiedSetChild(mem, p, left, y)
	default:
		unifiedSetChild(mem, p, right, y)
	}
	unifiedSetChild(mem, y, d, x)
	unifiedSetParent(mem, x, y)
}

func (t *Unified) Insert(mem Memory, b Ptr) {
	size := mem.SizeOf(b)
	writeWord(mem, b, fParent, Nil)
	writeWord(mem, b, fLinks0, Nil)
	writeWord(mem, b, fLinks1, Nil)
	unifiedSetRed(mem, b, true)

	y := Ptr(Nil)
	x := t.root
	d := left
	for x != Nil {
		y = x
		if size < mem.SizeOf(x) {
			d = left
		} else {
			d = right
		}
		x = unifiedChild(mem, x, d)
	}
	unifiedSetParent(mem, b, y)
	if y == Nil {
		t.root = b
	} else {
		unifiedSetChild(mem, y, d, b)
	}
	t.total++
	unifiedFixInsert(mem, t, b)
}

func unifiedFixInsert(mem Memory, t *Unified, z Ptr) {
	for unifiedIsRed(mem, unifiedParent(mem, z)) {
		p := unifiedParent(mem, z)
		g := unifiedParent(mem, p)
		pd := left
		if p == unifiedChild(mem, g, right) {
			pd = right
		}
		uncle := unifiedChild(mem, g, pd.other())
		if unifiedIsRed(mem, uncle) {
			unifiedSetRed(mem, p, false)
			unifiedSetRed(mem, uncle, false)
			unifiedSetRed(mem, g, true)
			z = g
			continue
		}
		if z == unifiedChild(mem, p, pd.other()) {
			z = p
			unifiedRotate(mem, t, z, pd)
			p = unifiedParent(mem, z)
			g = unifiedParent(mem, p)
		}
		unifiedSetRed(mem, p, false)
		unifiedSetRed(mem, g, true)
		unifiedRotate(mem, t, g, pd.other())
	}
	unifiedSetRed(mem, t.root, false)
}

func unifiedMinimum(mem Memory, x Ptr) Ptr {
	for unifiedChild(mem, x, left) != Nil {
		x = unifiedChild(mem, x, left)
	}
	return x
}

func unifiedTransplant(mem Memory, t *Unified, u, v Ptr) {
	p := unifiedParent(mem, u)
	switch {
	case p == Nil:
		t.root = v
	case u == unifiedChild(mem, p, left):
		unifiedSetChild(mem, p, left, v)
	default:
		unifiedSetChild(mem, p, right, v)
	}
	unifiedSetParent(mem, v, p)
}

func (t *Unified) Remove(mem Memory, z Ptr) {
	y := z
	yOrigRed := unifiedIsRed(mem, y)
	var x, xParent Ptr

	l, r := unifiedChild(mem, z, left), unifiedChild(mem, z, right)
	switch {
	case l == Nil:
		x, xParent = r, unifiedParent(mem, z)
		unifiedTransplant(mem, t, z, r)
	case r == Nil:
		x, xParent = l, unifiedParent(mem, z)
		unifiedTransplant(mem, t, z, l)
	default:
		y = unifiedMinimum(mem, r)
		yOrigRed = unifiedIsRed(mem, y)
		x = unifiedChild(mem, y, right)
		if unifiedParent(mem, y) == z {
			xParent = y
		} else {
			xParent = unifiedParent(mem, y)
			unifiedTransplant(mem, t, y, x)
			unifiedSetChild(mem, y, right, r)
			unifiedSetParent(mem, r, y)
		}
		unifiedTransplant(mem, t, z, y)
		unifiedSetChild(mem, y, left, l)
		unifiedSetParent(mem, l, y)
		unifiedSetRed(mem, y, unifiedIsRed(mem, z))
	}
	t.total--
	if !yOrigRed {
		unifiedFixDelete(mem, t, x, xParent)
	}
}

func unifiedFixDelete(mem Memory, t *Unified, x, xParent Ptr) {
	for x != t.root && !unifiedIsRed(mem, x) {
		d := left
		if x == unifiedChild(mem, xParent, right) {
			d = right
		}
		w := unifiedChild(mem, xParent, d.other())
		if unifiedIsRed(mem, w) {
			unifiedSetRed(mem, w, false)
			unifiedSetRed(mem, xParent, true)
			unifiedRotate(mem, t, xParent, d)
			w = unifiedChild(mem, xParent, d.other())
		}
		near := unifiedChild(mem, w, d)
		far := unifiedChild(mem, w, d.other())
		if !unifiedIsRed(mem, near) && !unifiedIsRed(mem, far) {
			unifiedSetRed(mem, w, true)
			x = xParent
			xParent = unifiedParent(mem, x)
			continue
		}
		if !unifiedIsRed(mem, far) {
			unifiedSetRed(mem, near, false)
			unifiedSetRed(mem, w, true)
			unifiedRotate(mem, t, w, d.other())
			w = unifiedChild(mem, xParent, d.other())
			far = unifiedChild(mem, w, d.other())
		}
		unifiedSetRed(mem, w, unifiedIsRed(mem, xParent))
		unifiedSetRed(mem, xParent, false)
		unifiedSetRed(mem, far, false)
		unifiedRotate(mem, t, xParent, d)
		x = t.root
		xParent = Nil
	}
	unifiedSetRed(mem, x, false)
}

func (t *Unified) BestFit(mem Memory, key uint64) Ptr {
	x := t.root
	best := Ptr(Nil)
	for x != Nil {
		sz := mem.SizeOf(x)
		switch {
		case sz == key:
			best = x
			x = Nil
		case sz > key:
			best = x
			x = unifiedChild(mem, x, left)
		default:
			x = unifiedChild(mem, x, right)
		}
	}
	if best == Nil {
		return Nil
	}
	t.Remove(mem, best)
	return best
}

func (t *Unified) Walk(mem Memory, visit func(Ptr, uint64)) {
	var rec func(Ptr)
	rec = func(x Ptr) {
		if x == Nil {
			return
		}
		rec(unifiedChild(mem, x, left))
		visit(x, mem.SizeOf(x))
		rec(unifiedChild(mem, x, right))
	}
	rec(t.root)
}

func (t *Unified) CheckInvariants(mem Memory) error {
	count := 0
	var blackHeight func(Ptr) (int, error)
	blackHeight = func(x Ptr) (int, error) {
		if x == Nil {
			return 1, nil
		}
		count++
		for _, d := range [2]direction{left, right} {
			if unifiedIsRed(mem, x) && unifiedIsRed(mem, unifiedChild(mem, x, d)) {
				return 0, errInvariant("red node with red child")
			}
		}
		l := unifiedChild(mem, x, left)
		r := unifiedChild(mem, x, right)
		if l != Nil && mem.SizeOf(l) >= mem.SizeOf(x) {
			return 0, errInvariant("left subtree not strictly smaller")
		}
		if r != Nil && mem.SizeOf(r) < mem.SizeOf(x) {
			return 0, errInvariant("right subtree smaller than node")
		}
		if l != Nil && unifiedParent(mem, l) != x {
			return 0, errInvariant("left child parent mismatch")
		}
		if r != Nil && unifiedParent(mem, r) != x {
			return 0, errInvariant("right child parent mismatch")
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
		if unifiedIsRed(mem, x) {
			add = 0
		}
		return lh + add, nil
	}
	if unifiedIsRed(mem, t.root) {
		return errInvariant("root is red")
	}
	if _, err := blackHeight(t.root); err != nil {
		return err
	}
	if count != t.total {
		return errInvariant("tree total mismatch")
	}
	return nil
}
