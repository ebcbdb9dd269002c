package crdt

import "slices"

// insertRecord интегрированная вставка и вставки, привязанные к ней,
// в порядке возрастания идентификаторов.
type insertRecord[T comparable] struct {
	op       Operation[T]
	children []ID
}

// index оракул зависимостей: что уже интегрировано в документ.
// Детей хранит под исходным (не разрешенным) родителем.
type index[T comparable] struct {
	inserts map[ID]*insertRecord[T]
	// deleted: true означает, что удаление пришло (или подтвердилось) от другого пира
	deleted map[ID]bool
}

func newIndex[T comparable]() *index[T] {
	return &index[T]{
		// нулевой ID корень документа
		inserts: map[ID]*insertRecord[T]{{}: {}},
		deleted: make(map[ID]bool),
	}
}

// hasAnchor сообщает, можно ли привязать вставку к id (корень всегда доступен).
func (x *index[T]) hasAnchor(id ID) bool {
	_, ok := x.inserts[id]
	return ok
}

// hasInsert сообщает, интегрирована ли вставка с данным идентификатором.
func (x *index[T]) hasInsert(id ID) bool {
	return !id.IsZero() && x.hasAnchor(id)
}

func (x *index[T]) insertOf(id ID) (Operation[T], bool) {
	if id.IsZero() {
		return Operation[T]{}, false
	}
	rec, ok := x.inserts[id]
	if !ok {
		return Operation[T]{}, false
	}
	return rec.op, true
}

func (x *index[T]) isDeleted(id ID) bool {
	_, ok := x.deleted[id]
	return ok
}

func (x *index[T]) children(id ID) []ID {
	if rec, ok := x.inserts[id]; ok {
		return rec.children
	}
	return nil
}

// recordInsert добавляет вставку и регистрирует ее у исходного родителя.
func (x *index[T]) recordInsert(op Operation[T]) {
	x.inserts[op.ID] = &insertRecord[T]{op: op}

	parent := x.inserts[op.Parent]
	pos, _ := slices.BinarySearchFunc(parent.children, op.ID, compareIDs)
	parent.children = slices.Insert(parent.children, pos, op.ID)
}

// forgetInsert удаляет вставку, которая так и не была опубликована.
func (x *index[T]) forgetInsert(op Operation[T]) {
	delete(x.inserts, op.ID)
	delete(x.deleted, op.ID)

	if parent, ok := x.inserts[op.Parent]; ok {
		if pos, found := slices.BinarySearchFunc(parent.children, op.ID, compareIDs); found {
			parent.children = slices.Delete(parent.children, pos, pos+1)
		}
	}
}

func (x *index[T]) markDeleted(id ID, remote bool) {
	x.deleted[id] = x.deleted[id] || remote
}

func (x *index[T]) unmarkDeleted(id ID) {
	delete(x.deleted, id)
}

// deletedRemotely сообщает, что удаление элемента видели другие пиры.
func (x *index[T]) deletedRemotely(id ID) bool {
	return x.deleted[id]
}

// size количество интегрированных вставок (без корня).
func (x *index[T]) size() int {
	return len(x.inserts) - 1
}
