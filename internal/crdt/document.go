package crdt

import (
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
)

// Outcome результат интеграции одной операции.
type Outcome uint8

const (
	// Applied операция применена к цепочке и записана в индекс
	Applied Outcome = iota + 1
	// Buffered зависимость еще не пришла, операция отложена
	Buffered
	// Skipped операция уже интегрирована
	Skipped
)

// String returns a human readable outcome name.
func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Buffered:
		return "buffered"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// MergeStats счетчики одного вызова Merge.
type MergeStats struct {
	Applied  int // применено к документу
	Buffered int // отложено до прихода зависимостей (включая повторно отложенные)
	Skipped  int // дубликаты
}

// Element видимый элемент документа.
type Element[T comparable] struct {
	Value T
	ID    ID
}

// Option настройка документа.
type Option func(*options)

type options struct {
	logger *slog.Logger
	clock  *LamportClock
}

// WithLogger задает логгер документа.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock задает часы (например, восстановленные после перезапуска).
func WithClock(clock *LamportClock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// Document реплицируемая последовательность (RGA).
//
// Локальные правки применяются сразу и попадают в stage до Commit.
// Удаленные пакеты принимаются через Merge в любом порядке и с повторами.
// Все публичные методы выполняются под одним мьютексом.
type Document[T comparable] struct {
	logger *slog.Logger
	gen    *Generator
	chain  *chain[T]
	index  *index[T]
	stage  []Operation[T]
	buffer []Operation[T]
	mu     sync.Mutex
}

// NewDocument создает пустой документ пира peer.
func NewDocument[T comparable](peer string, opts ...Option) (*Document[T], error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	gen, err := NewGenerator(peer, o.clock)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	return &Document[T]{
		logger: o.logger.With("peer", peer),
		gen:    gen,
		chain:  newChain[T](),
		index:  newIndex[T](),
	}, nil
}

// Peer возвращает имя пира документа.
func (d *Document[T]) Peer() string {
	return d.gen.Peer()
}

// Clock возвращает текущее значение часов документа.
func (d *Document[T]) Clock() uint64 {
	return d.gen.Clock()
}

// Insert вставляет value сразу после элемента parent (нулевой parent означает начало документа).
// Якорь должен быть уже известен этой реплике, иначе ErrAnchorNotFound.
func (d *Document[T]) Insert(value T, parent ID) (Operation[T], error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.insert(value, parent)
}

func (d *Document[T]) insert(value T, parent ID) (Operation[T], error) {
	if !d.index.hasAnchor(parent) {
		return Operation[T]{}, fmt.Errorf("%w: %s", ErrAnchorNotFound, parent)
	}

	op := NewInsert(d.gen.Next(), parent, value)
	d.integrate(op, false)
	d.stage = append(d.stage, op)

	return op, nil
}

// Delete помечает элемент id удаленным.
// Элемент должен быть известен этой реплике, иначе ErrTargetNotFound.
// Повторное удаление уже удаленного элемента ничего не меняет и не попадает в stage.
func (d *Document[T]) Delete(id ID) (Operation[T], error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.delete(id)
}

func (d *Document[T]) delete(id ID) (Operation[T], error) {
	if !d.index.hasInsert(id) {
		return Operation[T]{}, fmt.Errorf("%w: %s", ErrTargetNotFound, id)
	}

	op := NewDelete[T](id)
	if d.index.isDeleted(id) {
		return op, nil
	}

	d.integrate(op, false)
	d.stage = append(d.stage, op)

	return op, nil
}

// Merge принимает пакет операций от других пиров.
//
// Пакет проверяется целиком до каких-либо изменений: некорректные операции
// или разные операции с одним идентификатором отклоняют весь пакет.
// Операции с неудовлетворенными зависимостями откладываются в буфер,
// который повторно разбирается при каждом вызове.
func (d *Document[T]) Merge(batch []Operation[T]) (MergeStats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var stats MergeStats

	for i, op := range batch {
		if err := op.Validate(); err != nil {
			return stats, fmt.Errorf("operation %d: %w", i, err)
		}
	}

	pending := make([]Operation[T], 0, len(batch)+len(d.buffer))
	pending = append(pending, batch...)
	pending = append(pending, d.buffer...)
	SortOperations(pending)

	pending, err := d.dedupe(pending)
	if err != nil {
		return stats, err
	}

	d.gen.Observe(MaxClock(batch))

	d.buffer = d.buffer[:0]
	for _, op := range pending {
		switch d.integrate(op, true) {
		case Applied:
			stats.Applied++
		case Buffered:
			stats.Buffered++
			d.buffer = append(d.buffer, op)
		case Skipped:
			stats.Skipped++
		}
	}

	if stats.Buffered > 0 {
		d.logger.Debug("operations buffered until dependencies arrive", "buffered", stats.Buffered)
	}

	return stats, nil
}

// dedupe убирает повторы из отсортированного списка и проверяет,
// что один идентификатор не несет разного содержимого (в том числе
// по сравнению с уже интегрированными вставками).
func (d *Document[T]) dedupe(sorted []Operation[T]) ([]Operation[T], error) {
	out := sorted[:0]
	for i, op := range sorted {
		if i > 0 && compareOperations(sorted[i-1], op) == 0 {
			if sorted[i-1] != op {
				return nil, fmt.Errorf("%w: conflicting operations for %s", ErrDuplicateIdentifier, op.ID)
			}
			continue
		}
		if op.IsInsert() {
			if known, ok := d.index.insertOf(op.ID); ok && known != op {
				return nil, fmt.Errorf("%w: %s already integrated with different content", ErrDuplicateIdentifier, op.ID)
			}
		}
		out = append(out, op)
	}
	return out, nil
}

// integrate применяет одну операцию. Никогда не возвращает ошибку:
// ожидаемые исходы выражены через Outcome.
func (d *Document[T]) integrate(op Operation[T], remote bool) Outcome {
	switch op.Kind {
	case KindInsert:
		if d.index.hasInsert(op.ID) {
			return Skipped
		}
		if !d.index.hasAnchor(op.Parent) {
			return Buffered
		}

		anchor, _ := d.chain.lookup(d.resolve(op).Parent)
		d.chain.append(anchor, d.chain.alloc(op.ID, op.Value))
		d.index.recordInsert(op)

	case KindDelete:
		if !d.index.hasInsert(op.ID) {
			return Buffered
		}
		if d.index.isDeleted(op.ID) {
			d.index.markDeleted(op.ID, remote)
			return Skipped
		}

		h, _ := d.chain.lookup(op.ID)
		d.chain.softDelete(h)
		d.index.markDeleted(op.ID, remote)
	}

	return Applied
}

// resolve разрешает конфликт одновременных вставок у одного якоря:
// пока среди уже записанных детей якоря есть идентификатор больше нашего,
// вставка переносится к наименьшему из таких детей.
// Результат зависит только от состояния индекса и порядка идентификаторов.
func (d *Document[T]) resolve(op Operation[T]) Operation[T] {
	for {
		children := d.index.children(op.Parent)
		pos := sortSearchGreater(children, op.ID)
		if pos == len(children) {
			return op
		}
		op.Parent = children[pos]
	}
}

// sortSearchGreater позиция первого идентификатора больше id.
func sortSearchGreater(ids []ID, id ID) int {
	lo, hi := 0, len(ids)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if compareIDs(ids[mid], id) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Commit забирает все локальные операции из stage.
//
// Пара вставка+удаление одного элемента внутри stage взаимно уничтожается:
// узел физически удаляется, и ни одна из операций не публикуется.
// Возвращает сначала вставки (в порядке stage), затем удаления.
func (d *Document[T]) Commit() []Operation[T] {
	d.mu.Lock()
	defer d.mu.Unlock()

	published, _ := d.drainStage()
	return published
}

// CommitFunc как Commit, но передает пакет транспорту fn.
// Если fn возвращает ошибку, операции возвращаются в stage.
func (d *Document[T]) CommitFunc(fn func([]Operation[T]) error) error {
	d.mu.Lock()
	published, restore := d.drainStage()
	d.mu.Unlock()

	if len(published) == 0 {
		return nil
	}

	if err := fn(published); err != nil {
		d.mu.Lock()
		d.stage = append(restore, d.stage...)
		d.mu.Unlock()

		return fmt.Errorf("commit rolled back: %w", err)
	}

	return nil
}

// drainStage очищает stage и минимизирует его.
// published порядок публикации, restore те же операции в исходном порядке stage.
func (d *Document[T]) drainStage() (published, restore []Operation[T]) {
	stage := d.stage
	d.stage = nil

	deletedInStage := make(map[ID]bool)
	for _, op := range stage {
		if op.IsDelete() {
			deletedInStage[op.ID] = true
		}
	}

	// Обход с конца: дети в stage всегда позже родителя, поэтому к моменту
	// решения о родителе уже известно, остался ли кто-то привязан к нему.
	anchored := make(map[ID]int)
	collapsed := make(map[ID]bool)
	for i := len(stage) - 1; i >= 0; i-- {
		op := stage[i]
		if !op.IsInsert() {
			continue
		}
		if deletedInStage[op.ID] && anchored[op.ID] == 0 {
			collapsed[op.ID] = true
			continue
		}
		anchored[op.Parent]++
	}

	var inserts, deletes []Operation[T]
	for _, op := range stage {
		if collapsed[op.ID] {
			if op.IsInsert() {
				if h, ok := d.chain.lookup(op.ID); ok {
					d.chain.unlink(h)
				}
				d.index.forgetInsert(op)
			}
			continue
		}

		restore = append(restore, op)
		if op.IsInsert() {
			inserts = append(inserts, op)
		} else {
			deletes = append(deletes, op)
		}
	}

	if len(collapsed) > 0 {
		d.logger.Debug("collapsed local insert/delete pairs", "count", len(collapsed))
	}

	return append(inserts, deletes...), restore
}

// Undo отменяет последнюю неопубликованную локальную операцию.
func (d *Document[T]) Undo() (Operation[T], error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	last := len(d.stage) - 1
	if last < 0 {
		return Operation[T]{}, ErrNothingToUndo
	}

	op := d.stage[last]
	d.stage = d.stage[:last]

	h, ok := d.chain.lookup(op.ID)
	switch op.Kind {
	case KindInsert:
		if ok {
			d.chain.unlink(h)
		}
		d.index.forgetInsert(op)
	case KindDelete:
		// удаление, уже пришедшее от другого пира, не откатывается
		if d.index.deletedRemotely(op.ID) {
			break
		}
		if ok {
			d.chain.restore(h)
		}
		d.index.unmarkDeleted(op.ID)
	}

	return op, nil
}

// Values лениво обходит видимые значения от начала к концу.
// Каждый обход начинается заново и не меняет документ.
// Документ заблокирован на время обхода: тело цикла не должно его менять.
func (d *Document[T]) Values() iter.Seq[T] {
	return func(yield func(T) bool) {
		d.mu.Lock()
		defer d.mu.Unlock()

		for _, n := range d.chain.all() {
			if n.deleted {
				continue
			}
			if !yield(n.value) {
				return
			}
		}
	}
}

// Elements возвращает видимые элементы с их идентификаторами.
func (d *Document[T]) Elements() []Element[T] {
	d.mu.Lock()
	defer d.mu.Unlock()

	var elements []Element[T]
	for _, n := range d.chain.all() {
		if !n.deleted {
			elements = append(elements, Element[T]{ID: n.id, Value: n.value})
		}
	}
	return elements
}

// Len количество видимых элементов.
func (d *Document[T]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	count := 0
	for _, n := range d.chain.all() {
		if !n.deleted {
			count++
		}
	}
	return count
}

// IDAt возвращает идентификатор видимого элемента в позиции pos.
func (d *Document[T]) IDAt(pos int) (ID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.idAt(pos)
}

func (d *Document[T]) idAt(pos int) (ID, bool) {
	if pos < 0 {
		return ID{}, false
	}

	seen := -1
	h, ok := d.chain.find(headHandle, func(_ int, n *node[T]) bool {
		if !n.deleted {
			seen++
		}
		return seen == pos
	})
	if !ok {
		return ID{}, false
	}
	return d.chain.node(h).id, true
}

// InsertAt вставляет value так, чтобы он стал видимым элементом с индексом pos.
func (d *Document[T]) InsertAt(pos int, value T) (Operation[T], error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var parent ID
	if pos != 0 {
		id, ok := d.idAt(pos - 1)
		if !ok {
			return Operation[T]{}, fmt.Errorf("%w: %d", ErrPositionOutOfRange, pos)
		}
		parent = id
	}

	return d.insert(value, parent)
}

// DeleteAt удаляет видимый элемент с индексом pos.
func (d *Document[T]) DeleteAt(pos int) (Operation[T], error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, ok := d.idAt(pos)
	if !ok {
		return Operation[T]{}, fmt.Errorf("%w: %d", ErrPositionOutOfRange, pos)
	}

	return d.delete(id)
}

// Pending возвращает копию stage.
func (d *Document[T]) Pending() []Operation[T] {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]Operation[T](nil), d.stage...)
}

// Buffered возвращает копию буфера отложенных операций.
func (d *Document[T]) Buffered() []Operation[T] {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]Operation[T](nil), d.buffer...)
}

// Integrated количество интегрированных вставок, включая удаленные.
func (d *Document[T]) Integrated() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.index.size()
}

// Join склеивает текстовый документ в строку.
func Join(d *Document[string]) string {
	var sb strings.Builder
	for v := range d.Values() {
		sb.WriteString(v)
	}
	return sb.String()
}
