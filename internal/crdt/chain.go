package crdt

import "iter"

const (
	// headHandle адрес служебного головного узла цепочки
	headHandle = 0
	// noHandle отсутствующая ссылка
	noHandle = -1
)

// node ячейка двусвязного списка. Ссылки left/right являются индексами арены.
type node[T comparable] struct {
	value   T
	id      ID
	left    int
	right   int
	deleted bool // tombstone
	live    bool // ячейка занята (false после unlink)
}

// chain арена узлов документа. Документ владеет ареной целиком,
// узлы адресуются по идентификатору через byID.
type chain[T comparable] struct {
	byID  map[ID]int
	nodes []node[T]
	free  []int
}

func newChain[T comparable]() *chain[T] {
	c := &chain[T]{byID: make(map[ID]int)}
	c.nodes = append(c.nodes, node[T]{left: noHandle, right: noHandle, deleted: true, live: true})
	return c
}

// alloc создает отдельный (ни с чем не связанный) узел.
func (c *chain[T]) alloc(id ID, value T) int {
	n := node[T]{id: id, value: value, left: noHandle, right: noHandle, live: true}

	var h int
	if last := len(c.free) - 1; last >= 0 {
		h = c.free[last]
		c.free = c.free[:last]
		c.nodes[h] = n
	} else {
		h = len(c.nodes)
		c.nodes = append(c.nodes, n)
	}

	c.byID[id] = h
	return h
}

func (c *chain[T]) node(h int) *node[T] {
	return &c.nodes[h]
}

// lookup возвращает адрес узла по идентификатору.
func (c *chain[T]) lookup(id ID) (int, bool) {
	if id.IsZero() {
		return headHandle, true
	}
	h, ok := c.byID[id]
	return h, ok
}

// tail последний узел правой цепочки, начинающейся в h.
func (c *chain[T]) tail(h int) int {
	for c.nodes[h].right != noHandle {
		h = c.nodes[h].right
	}
	return h
}

// append вставляет h (вместе со всем, что уже связано справа от него) сразу после at.
func (c *chain[T]) append(at, h int) {
	if right := c.nodes[at].right; right != noHandle {
		tail := c.tail(h)
		c.nodes[tail].right = right
		c.nodes[right].left = tail
	}
	c.nodes[h].left = at
	c.nodes[at].right = h
}

// prepend вставляет h (вместе с его правой цепочкой) сразу перед at.
// Зеркало append для полноты операций цепочки; движок вставляет только через append.
func (c *chain[T]) prepend(at, h int) {
	if left := c.nodes[at].left; left != noHandle {
		c.nodes[h].left = left
		c.nodes[left].right = h
	}
	tail := c.tail(h)
	c.nodes[tail].right = at
	c.nodes[at].left = tail
}

// find ищет узел, удовлетворяющий pred, начиная с from: сначала вправо, затем влево.
func (c *chain[T]) find(from int, pred func(h int, n *node[T]) bool) (int, bool) {
	for h := from; h != noHandle; h = c.nodes[h].right {
		if pred(h, &c.nodes[h]) {
			return h, true
		}
	}
	for h := c.nodes[from].left; h != noHandle; h = c.nodes[h].left {
		if pred(h, &c.nodes[h]) {
			return h, true
		}
	}
	return noHandle, false
}

// softDelete помечает узел удаленным. Идемпотентна.
func (c *chain[T]) softDelete(h int) {
	c.nodes[h].deleted = true
}

// restore снимает tombstone (отмена еще не опубликованного удаления).
func (c *chain[T]) restore(h int) {
	c.nodes[h].deleted = false
}

// unlink физически удаляет узел из цепочки и освобождает ячейку.
// Головной узел не удаляется никогда.
func (c *chain[T]) unlink(h int) bool {
	if h == headHandle || !c.nodes[h].live {
		return false
	}

	n := c.nodes[h]
	if n.left != noHandle {
		c.nodes[n.left].right = n.right
	}
	if n.right != noHandle {
		c.nodes[n.right].left = n.left
	}

	delete(c.byID, n.id)
	c.nodes[h] = node[T]{left: noHandle, right: noHandle}
	c.free = append(c.free, h)
	return true
}

// all обходит цепочку от головы к хвосту, пропуская служебный узел.
func (c *chain[T]) all() iter.Seq2[int, *node[T]] {
	return func(yield func(int, *node[T]) bool) {
		for h := c.nodes[headHandle].right; h != noHandle; h = c.nodes[h].right {
			if !yield(h, &c.nodes[h]) {
				return
			}
		}
	}
}
