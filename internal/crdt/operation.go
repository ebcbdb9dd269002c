package crdt

import (
	"fmt"
	"slices"
)

// Kind тип операции.
type Kind uint8

const (
	KindInsert Kind = iota + 1
	KindDelete
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindDelete:
		return "delete"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind разбирает имя типа операции.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "insert":
		return KindInsert, nil
	case "delete":
		return KindDelete, nil
	default:
		return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidOperation, s)
	}
}

// Operation неизменяемое описание одной правки.
// Insert: ID новой позиции, Parent элемент слева (нулевой ID означает начало документа), Value.
// Delete: ID удаляемого элемента.
type Operation[T comparable] struct {
	Value  T
	ID     ID
	Parent ID
	Kind   Kind
}

// NewInsert создает операцию вставки.
func NewInsert[T comparable](id, parent ID, value T) Operation[T] {
	return Operation[T]{Kind: KindInsert, ID: id, Parent: parent, Value: value}
}

// NewDelete создает операцию удаления.
func NewDelete[T comparable](id ID) Operation[T] {
	return Operation[T]{Kind: KindDelete, ID: id}
}

// IsInsert reports whether the operation is an insertion.
func (op Operation[T]) IsInsert() bool { return op.Kind == KindInsert }

// IsDelete reports whether the operation is a deletion.
func (op Operation[T]) IsDelete() bool { return op.Kind == KindDelete }

// HasParent сообщает, привязана ли вставка к элементу, а не к началу документа.
func (op Operation[T]) HasParent() bool { return !op.Parent.IsZero() }

// Validate проверяет структуру операции.
func (op Operation[T]) Validate() error {
	switch op.Kind {
	case KindInsert:
		if err := op.ID.Validate(); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		if op.HasParent() {
			if err := op.Parent.Validate(); err != nil {
				return fmt.Errorf("insert %s parent: %w", op.ID, err)
			}
			if op.Parent == op.ID {
				return fmt.Errorf("%w: insert %s anchored on itself", ErrInvalidOperation, op.ID)
			}
		}
	case KindDelete:
		if err := op.ID.Validate(); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		var zero T
		if op.HasParent() || op.Value != zero {
			return fmt.Errorf("%w: delete %s carries insert fields", ErrInvalidOperation, op.ID)
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidOperation, op.Kind)
	}
	return nil
}

// Equal structural equality.
func (op Operation[T]) Equal(other Operation[T]) bool {
	return op == other
}

// String is a debug representation.
func (op Operation[T]) String() string {
	if op.Kind == KindDelete {
		return fmt.Sprintf("delete(%s)", op.ID)
	}
	return fmt.Sprintf("insert(%s after %q: %v)", op.ID, op.Parent.String(), op.Value)
}

// compareOperations порядок применения при слиянии: по идентификатору,
// вставка раньше удаления того же элемента. 0 только для одинаковых ключей.
func compareOperations[T comparable](a, b Operation[T]) int {
	if c := compareIDs(a.ID, b.ID); c != 0 {
		return c
	}
	switch {
	case a.Kind == b.Kind:
		return 0
	case a.Kind == KindInsert:
		return -1
	default:
		return 1
	}
}

// SortOperations сортирует операции в порядке применения.
func SortOperations[T comparable](ops []Operation[T]) {
	slices.SortStableFunc(ops, compareOperations[T])
}

// MaxClock возвращает наибольшее значение часов среди операций.
func MaxClock[T comparable](ops []Operation[T]) uint64 {
	var maxClock uint64
	for _, op := range ops {
		maxClock = max(maxClock, op.ID.Clock, op.Parent.Clock)
	}
	return maxClock
}
