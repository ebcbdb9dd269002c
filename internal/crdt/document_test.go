package crdt

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDoc(t *testing.T, peer string) *Document[string] {
	t.Helper()

	doc, err := NewDocument[string](peer)
	require.NoError(t, err)
	return doc
}

func TestNewDocument_InvalidPeer(t *testing.T) {
	_, err := NewDocument[string]("")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = NewDocument[string]("a::b")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestDocument_InsertAndMaterialize(t *testing.T) {
	doc := newTestDoc(t, "client")

	a, err := doc.Insert("A", ID{})
	require.NoError(t, err)
	_, err = doc.Insert("B", a.ID)
	require.NoError(t, err)
	assert.Equal(t, "AB", Join(doc))

	_, err = doc.Insert("-", ID{})
	require.NoError(t, err)
	assert.Equal(t, "-AB", Join(doc))
	assert.Equal(t, 3, doc.Len())
}

func TestDocument_InsertReturnsOperation(t *testing.T) {
	doc := newTestDoc(t, "p1")

	a, err := doc.Insert("a", ID{})
	require.NoError(t, err)
	assert.Equal(t, NewInsert(ID{"p1", 1}, ID{}, "a"), a)

	b, err := doc.Insert("b", a.ID)
	require.NoError(t, err)
	assert.Equal(t, NewInsert(ID{"p1", 2}, a.ID, "b"), b)
	assert.Equal(t, uint64(2), doc.Clock())
}

func TestDocument_Delete(t *testing.T) {
	doc := newTestDoc(t, "client")

	a, err := doc.Insert("A", ID{})
	require.NoError(t, err)
	_, err = doc.Insert("B", a.ID)
	require.NoError(t, err)

	op, err := doc.Delete(a.ID)
	require.NoError(t, err)
	assert.Equal(t, NewDelete[string](a.ID), op)
	assert.Equal(t, "B", Join(doc))

	// повторное удаление ничего не добавляет в stage
	_, err = doc.Delete(a.ID)
	require.NoError(t, err)
	assert.Len(t, doc.Pending(), 3)
}

func TestDocument_LocalEditGuards(t *testing.T) {
	doc := newTestDoc(t, "p1")
	_, err := doc.Insert("a", ID{})
	require.NoError(t, err)

	before := doc.Pending()
	clock := doc.Clock()

	_, err = doc.Insert("x", ID{"ghost", 7})
	assert.ErrorIs(t, err, ErrAnchorNotFound)

	_, err = doc.Delete(ID{"ghost", 7})
	assert.ErrorIs(t, err, ErrTargetNotFound)

	_, err = doc.Delete(ID{})
	assert.ErrorIs(t, err, ErrTargetNotFound)

	assert.Equal(t, before, doc.Pending(), "stage must be unchanged")
	assert.Equal(t, clock, doc.Clock(), "clock must not tick on failed edits")
	assert.Equal(t, "a", Join(doc))
}

func TestDocument_CommitDrainsStage(t *testing.T) {
	doc := newTestDoc(t, "client")

	a, err := doc.Insert("A", ID{})
	require.NoError(t, err)
	b, err := doc.Insert("B", a.ID)
	require.NoError(t, err)

	ops := doc.Commit()
	assert.Equal(t, []Operation[string]{a, b}, ops)
	assert.Empty(t, doc.Pending())
	assert.Empty(t, doc.Commit(), "second commit is empty")
}

func TestDocument_CommitOrdersInsertsBeforeDeletes(t *testing.T) {
	doc := newTestDoc(t, "p1")

	a, err := doc.Insert("a", ID{})
	require.NoError(t, err)
	doc.Commit()

	del, err := doc.Delete(a.ID)
	require.NoError(t, err)
	b, err := doc.Insert("b", a.ID)
	require.NoError(t, err)

	assert.Equal(t, []Operation[string]{b, del}, doc.Commit())
}

func TestDocument_CommitMinimization(t *testing.T) {
	doc := newTestDoc(t, "p1")

	a, err := doc.Insert("a", ID{})
	require.NoError(t, err)
	_, err = doc.Delete(a.ID)
	require.NoError(t, err)

	assert.Empty(t, doc.Commit())
	assert.Equal(t, "", Join(doc))
	assert.Equal(t, 0, doc.Integrated(), "collapsed element leaves no trace in the index")
	assert.Empty(t, doc.chain.byID)
}

func TestDocument_CommitMinimization_KeepsAnchors(t *testing.T) {
	doc := newTestDoc(t, "p1")

	// a удален, но b привязан к a: оба должны быть опубликованы
	a, err := doc.Insert("a", ID{})
	require.NoError(t, err)
	b, err := doc.Insert("b", a.ID)
	require.NoError(t, err)
	delA, err := doc.Delete(a.ID)
	require.NoError(t, err)

	// c и d создаются и удаляются целиком
	c, err := doc.Insert("c", b.ID)
	require.NoError(t, err)
	d, err := doc.Insert("d", c.ID)
	require.NoError(t, err)
	_, err = doc.Delete(d.ID)
	require.NoError(t, err)
	_, err = doc.Delete(c.ID)
	require.NoError(t, err)

	ops := doc.Commit()
	assert.Equal(t, []Operation[string]{a, b, delA}, ops)
	assert.Equal(t, "b", Join(doc))

	// другой пир получает ту же картину
	other := newTestDoc(t, "p2")
	stats, err := other.Merge(ops)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Applied)
	assert.Equal(t, "b", Join(other))
	assert.Empty(t, other.Buffered())
}

func TestDocument_CommitFunc(t *testing.T) {
	doc := newTestDoc(t, "p1")

	a, err := doc.Insert("a", ID{})
	require.NoError(t, err)

	var sent []Operation[string]
	err = doc.CommitFunc(func(ops []Operation[string]) error {
		sent = ops
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []Operation[string]{a}, sent)
	assert.Empty(t, doc.Pending())
}

func TestDocument_CommitFunc_Rollback(t *testing.T) {
	doc := newTestDoc(t, "p1")

	a, err := doc.Insert("a", ID{})
	require.NoError(t, err)
	b, err := doc.Insert("b", a.ID)
	require.NoError(t, err)

	err = doc.CommitFunc(func(ops []Operation[string]) error {
		assert.Empty(t, doc.Pending(), "stage is drained while the transport runs")
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	assert.Equal(t, []Operation[string]{a, b}, doc.Pending())
	assert.Equal(t, []Operation[string]{a, b}, doc.Commit())
}

func TestDocument_CommitFunc_Empty(t *testing.T) {
	doc := newTestDoc(t, "p1")

	called := false
	err := doc.CommitFunc(func([]Operation[string]) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called, "empty batches are not sent")
}

func TestDocument_Undo(t *testing.T) {
	doc := newTestDoc(t, "p1")

	_, err := doc.Undo()
	assert.ErrorIs(t, err, ErrNothingToUndo)

	a, err := doc.Insert("a", ID{})
	require.NoError(t, err)
	b, err := doc.Insert("b", a.ID)
	require.NoError(t, err)
	_, err = doc.Delete(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", Join(doc))

	// отмена удаления снимает tombstone
	op, err := doc.Undo()
	require.NoError(t, err)
	assert.True(t, op.IsDelete())
	assert.Equal(t, "ab", Join(doc))

	// отмена вставки физически удаляет узел
	op, err = doc.Undo()
	require.NoError(t, err)
	assert.Equal(t, b, op)
	assert.Equal(t, "a", Join(doc))

	_, err = doc.Insert("x", b.ID)
	assert.ErrorIs(t, err, ErrAnchorNotFound, "undone element is gone from the index")

	assert.Equal(t, []Operation[string]{a}, doc.Commit())
	_, err = doc.Undo()
	assert.ErrorIs(t, err, ErrNothingToUndo, "committed operations cannot be undone")
}

func TestDocument_Undo_KeepsRemoteDelete(t *testing.T) {
	p1 := newTestDoc(t, "p1")
	p2 := newTestDoc(t, "p2")

	a, err := p1.Insert("a", ID{})
	require.NoError(t, err)
	_, err = p2.Merge(p1.Commit())
	require.NoError(t, err)

	// оба пира удаляют a; p1 еще не опубликовал свое удаление
	_, err = p1.Delete(a.ID)
	require.NoError(t, err)
	_, err = p2.Delete(a.ID)
	require.NoError(t, err)
	_, err = p1.Merge(p2.Commit())
	require.NoError(t, err)

	_, err = p1.Undo()
	require.NoError(t, err)
	assert.Equal(t, "", Join(p1), "delete observed from a peer survives local undo")
}

func TestDocument_Values_Restartable(t *testing.T) {
	doc := newTestDoc(t, "p1")

	a, err := doc.Insert("a", ID{})
	require.NoError(t, err)
	_, err = doc.Insert("b", a.ID)
	require.NoError(t, err)

	seq := doc.Values()
	assert.Equal(t, []string{"a", "b"}, slices.Collect(seq))
	assert.Equal(t, []string{"a", "b"}, slices.Collect(seq))

	// ранняя остановка освобождает документ
	for v := range seq {
		assert.Equal(t, "a", v)
		break
	}
	_, err = doc.Insert("c", ID{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, slices.Collect(seq))

	// обход видит только видимые элементы
	_, err = doc.Delete(a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, slices.Collect(seq))
}

func TestDocument_Elements(t *testing.T) {
	doc := newTestDoc(t, "p1")

	a, err := doc.Insert("a", ID{})
	require.NoError(t, err)
	b, err := doc.Insert("b", a.ID)
	require.NoError(t, err)
	_, err = doc.Delete(a.ID)
	require.NoError(t, err)

	assert.Equal(t, []Element[string]{{ID: b.ID, Value: "b"}}, doc.Elements())
}

func TestDocument_PositionHelpers(t *testing.T) {
	doc := newTestDoc(t, "p1")

	for i, ch := range []string{"h", "e", "l", "o"} {
		_, err := doc.InsertAt(i, ch)
		require.NoError(t, err)
	}
	assert.Equal(t, "helo", Join(doc))

	_, err := doc.InsertAt(3, "l")
	require.NoError(t, err)
	assert.Equal(t, "hello", Join(doc))

	_, err = doc.DeleteAt(0)
	require.NoError(t, err)
	assert.Equal(t, "ello", Join(doc))

	// позиции считают только видимые элементы
	_, err = doc.InsertAt(0, "j")
	require.NoError(t, err)
	assert.Equal(t, "jello", Join(doc))

	id, ok := doc.IDAt(4)
	require.True(t, ok)
	_, err = doc.Insert("!", id)
	require.NoError(t, err)
	assert.Equal(t, "jello!", Join(doc))

	_, err = doc.InsertAt(10, "x")
	assert.ErrorIs(t, err, ErrPositionOutOfRange)
	_, err = doc.DeleteAt(6)
	assert.ErrorIs(t, err, ErrPositionOutOfRange)
	_, ok = doc.IDAt(-1)
	assert.False(t, ok)
}
