package freetree

// Classic is variant A: a CLRS red-black tree keyed by free-block size,
// parent pointers, no duplicate lists. Two free blocks of the same size
// both become ordinary tree nodes; strict "<" on descent pushes ties to
// the right, so the tree admits duplicate keys (spec.md's Open Question
// on duplicate policy is resolved this way for Classic/Unified, and by
// hoisting duplicates into a list for Listed/Stacked; see DESIGN.md).
type Classic struct {
	root  Ptr
	total int
}

var _ Tree = (*Classic)(nil)

func (t *Classic) Total() int { return t.total }

func classicParent(mem Memory, p Ptr) Ptr {
	if p == Nil {
		return Nil
	}
	return readWord(mem, p, fParent)
}

func classicSetParent(mem Memory, p, v Ptr) {
	if p == Nil {
		return
	}
	writeWord(mem, p, fParent, v)
}

func classicChild(mem Memory, p Ptr, right bool) Ptr {
	if p == Nil {
		return Nil
	}
	if right {
		return readWord(mem, p, fRight)
	}
	return readWord(mem, p, fLeft)
}

func classicSetChild(mem Memory, p Ptr, right bool, v Ptr) {
	if p == Nil {
		return
	}
	if right {
		writeWord(mem, p, fRight, v)
	} else {
		writeWord(mem, p, fLeft, v)
	}
}

func classicIsRed(mem Memory, p Ptr) bool {
	return p != Nil && getColor(mem, p)
}

func classicSetRed(mem Memory, p Ptr, red bool) {
	if p != Nil {
		setColor(mem, p, red)
	}
}

// rotateLeft / rotateRight mutate only pointer fields; sizes and colors
// are untouched.
func classicRotate(mem Memory, t *Classic, x Ptr, left bool) {
	y := classicChild(mem, x, left)
	classicSetChild(mem, x, left, classicChild(mem, y, !left))
	if classicChild(mem, y, !left) != Nil {
		classicSetParent(mem, classicChild(mem, y, !left), x)
	}
	classicSetParent(mem, y, classicParent(mem, x))
	p := classicParent(mem, x)
	switch {
	case p == Nil:
		t.root = y
	case x == classicChild(mem, p, false):
		classicSetChild(mem, p, false, y)
	default:
		classicSetChild(mem, p, true, y)
	}
	classicSetChild(mem, y, !left, x)
	classicSetParent(mem, x, y)
}

func (t *Classic) Insert(mem Memory, b Ptr) {
	size := mem.SizeOf(b)
	writeWord(mem, b, fParent, Nil)
	writeWord(mem, b, fLeft, Nil)
	writeWord(mem, b, fRight, Nil)
	classicSetRed(mem, b, true)

	y := Ptr(Nil)
	x := t.root
	goRight := false
	for x != Nil {
		y = x
		if size < mem.SizeOf(x) {
			goRight = false
			x = classicChild(mem, x, false)
		} else {
			goRight = true
			x = classicChild(mem, x, true)
		}
	}
	classicSetParent(mem, b, y)
	switch {
	case y == Nil:
		t.root = b
	case !goRight:
		classicSetChild(mem, y, false, b)
	default:
		classicSetChild(mem, y, true, b)
	}
	t.total++
	classicFixInsert(mem, t, b)
}

func classicFixInsert(mem Memory, t *Classic, z Ptr) {
	for classicIsRed(mem, classicParent(mem, z)) {
		p := classicParent(mem, z)
		g := classicParent(mem, p)
		pIsLeft := p == classicChild(mem, g, false)
		var uncle Ptr
		if pIsLeft {
			uncle = classicChild(mem, g, true)
		} else {
			uncle = classicChild(mem, g, false)
		}
		if classicIsRed(mem, uncle) {
			classicSetRed(mem, p, false)
			classicSetRed(mem, uncle, false)
			classicSetRed(mem, g, true)
			z = g
			continue
		}
		if pIsLeft {
			if z == classicChild(mem, p, true) {
				z = p
				classicRotate(mem, t, z, true)
				p = classicParent(mem, z)
				g = classicParent(mem, p)
			}
			classicSetRed(mem, p, false)
			classicSetRed(mem, g, true)
			classicRotate(mem, t, g, false)
		} else {
			if z == classicChild(mem, p, false) {
				z = p
				classicRotate(mem, t, z, false)
				p = classicParent(mem, z)
				g = classicParent(mem, p)
			}
			classicSetRed(mem, p, false)
			classicSetRed(mem, g, true)
			classicRotate(mem, t, g, true)
		}
	}
	classicSetRed(mem, t.root, false)
}

func classicMinimum(mem Memory, x Ptr) Ptr {
	for classicChild(mem, x, false) != Nil {
		x = classicChild(mem, x, false)
	}
	return x
}

func classicTransplant(mem Memory, t *Classic, u, v Ptr) {
	p := classicParent(mem, u)
	switch {
	case p == Nil:
		t.root = v
	case u == classicChild(mem, p, false):
		classicSetChild(mem, p, false, v)
	default:
		classicSetChild(mem, p, true, v)
	}
	classicSetParent(mem, v, p)
}

func (t *Classic) Remove(mem Memory, z Ptr) {
	classicRemove(mem, t, z)
}

func classicRemove(mem Memory, t *Classic, z Ptr) {
	y := z
	yOrigRed := classicIsRed(mem, y)
	var x, xParent Ptr

	left, right := classicChild(mem, z, false), classicChild(mem, z, true)
	switch {
	case left == Nil:
		x = right
		xParent = classicParent(mem, z)
		classicTransplant(mem, t, z, right)
	case right == Nil:
		x = left
		xParent = classicParent(mem, z)
		classicTransplant(mem, t, z, left)
	default:
		y = classicMinimum(mem, right)
		yOrigRed = classicIsRed(mem, y)
		x = classicChild(mem, y, true)
		if classicParent(mem, y) == z {
			xParent = y
		} else {
			xParent = classicParent(mem, y)
			classicTransplant(mem, t, y, x)
			classicSetChild(mem, y, true, right)
			classicSetParent(mem, right, y)
		}
		classicTransplant(mem, t, z, y)
		classicSetChild(mem, y, false, left)
		classicSetParent(mem, left, y)
		classicSetRed(mem, y, classicIsRed(mem, z))
	}
	t.total--
	if !yOrigRed {
		classicFixDelete(mem, t, x, xParent)
	}
}

func classicFixDelete(mem Memory, t *Classic, x, xParent Ptr) {
	for x != t.root && !classicIsRed(mem, x) {
		isLeft := x == classicChild(mem, xParent, false)
		var w Ptr
		if isLeft {
			w = classicChild(mem, xParent, true)
		} else {
			w = classicChild(mem, xParent, false)
		}
		if classicIsRed(mem, w) {
			classicSetRed(mem, w, false)
			classicSetRed(mem, xParent, true)
			classicRotate(mem, t, xParent, isLeft)
			if isLeft {
				w = classicChild(mem, xParent, true)
			} else {
				w = classicChild(mem, xParent, false)
			}
		}
		wLeft := classicChild(mem, w, false)
		wRight := classicChild(mem, w, true)
		near, far := wLeft, wRight
		if !isLeft {
			near, far = wRight, wLeft
		}
		if !classicIsRed(mem, near) && !classicIsRed(mem, far) {
			classicSetRed(mem, w, true)
			x = xParent
			xParent = classicParent(mem, x)
			continue
		}
		if !classicIsRed(mem, far) {
			classicSetRed(mem, near, false)
			classicSetRed(mem, w, true)
			classicRotate(mem, t, w, !isLeft)
			if isLeft {
				w = classicChild(mem, xParent, true)
			} else {
				w = classicChild(mem, xParent, false)
			}
			wLeft = classicChild(mem, w, false)
			wRight = classicChild(mem, w, true)
			if isLeft {
				far = wRight
			} else {
				far = wLeft
			}
		}
		classicSetRed(mem, w, classicIsRed(mem, xParent))
		classicSetRed(mem, xParent, false)
		classicSetRed(mem, far, false)
		classicRotate(mem, t, xParent, isLeft)
		x = t.root
		xParent = Nil
	}
	classicSetRed(mem, x, false)
}

func (t *Classic) BestFit(mem Memory, key uint64) Ptr {
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
			x = classicChild(mem, x, false)
		default:
			x = classicChild(mem, x, true)
		}
	}
	if best == Nil {
		return Nil
	}
	t.Remove(mem, best)
	return best
}

func (t *Classic) Walk(mem Memory, visit func(Ptr, uint64)) {
	var rec func(Ptr)
	rec = func(x Ptr) {
		if x == Nil {
			return
		}
		rec(classicChild(mem, x, false))
		visit(x, mem.SizeOf(x))
		rec(classicChild(mem, x, true))
	}
	rec(t.root)
}

func (t *Classic) CheckInvariants(mem Memory) error {
	count := 0
	var blackHeight func(Ptr) (int, error)
	blackHeight = func(x Ptr) (int, error) {
		if x == Nil {
			return 1, nil
		}
		count++
		if classicIsRed(mem, x) && classicIsRed(mem, classicChild(mem, x, false)) {
			return 0, errInvariant("red node with red left child")
		}
		if classicIsRed(mem, x) && classicIsRed(mem, classicChild(mem, x, true)) {
			return 0, errInvariant("red node with red right child")
		}
		left := classicChild(mem, x, false)
		right := classicChild(mem, x, true)
		if left != Nil && mem.SizeOf(left) >= mem.SizeOf(x) {
			return 0, errInvariant("left subtree not strictly smaller")
		}
		if right != Nil && mem.SizeOf(right) < mem.SizeOf(x) {
			return 0, errInvariant("right subtree smaller than node")
		}
		if left != Nil && classicParent(mem, left) != x {
			return 0, errInvariant("left child parent mismatch")
		}
		if right != Nil && classicParent(mem, right) != x {
			return 0, errInvariant("right child parent mismatch")
		}
		lh, err := blackHeight(left)
		if err != nil {
			return 0, err
		}
		rh, err := blackHeight(right)
		if err != nil {
			return 0, err
		}
		if lh != rh {
			return 0, errInvariant("unequal black height")
		}
		add := 1
		if classicIsRed(mem, x) {
			add = 0
		}
		return lh + add, nil
	}
	if classicIsRed(mem, t.root) {
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
