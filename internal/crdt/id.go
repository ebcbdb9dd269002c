package crdt

import (
	"fmt"
	"strconv"
	"strings"
)

// Separator разделяет имя пира и значение часов в текстовой форме идентификатора.
const Separator = "::"

// ID глобально уникальный идентификатор операции: имя пира и значение его часов.
// Нулевое значение означает "нет идентификатора" (виртуальный корень документа).
type ID struct {
	Peer  string
	Clock uint64
}

// ParseID разбирает токен вида "peer::clock".
func ParseID(token string) (ID, error) {
	idx := strings.LastIndex(token, Separator)
	if idx <= 0 {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, token)
	}

	digits := token[idx+len(Separator):]
	// часы без ведущих нулей: у идентификатора ровно один токен
	if len(digits) > 1 && digits[0] == '0' {
		return ID{}, fmt.Errorf("%w: %q: leading zero in clock", ErrInvalidIdentifier, token)
	}

	clock, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q: %v", ErrInvalidIdentifier, token, err)
	}

	id := ID{Peer: token[:idx], Clock: clock}
	if err := id.Validate(); err != nil {
		return ID{}, err
	}

	return id, nil
}

// MustParseID как ParseID, но паникует на ошибке. Только для тестов и констант.
func MustParseID(token string) ID {
	id, err := ParseID(token)
	if err != nil {
		panic(err)
	}
	return id
}

// String возвращает токен, который ParseID разбирает обратно без потерь.
func (id ID) String() string {
	if id.IsZero() {
		return ""
	}
	return id.Peer + Separator + strconv.FormatUint(id.Clock, 10)
}

// IsZero сообщает, что идентификатор не задан.
func (id ID) IsZero() bool {
	return id.Peer == "" && id.Clock == 0
}

// Validate проверяет, что идентификатор мог быть выдан генератором.
func (id ID) Validate() error {
	if err := ValidatePeer(id.Peer); err != nil {
		return err
	}
	if id.Clock == 0 {
		return fmt.Errorf("%w: %q has zero clock", ErrInvalidIdentifier, id.Peer)
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty token yields the zero ID.
func (id *ID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*id = ID{}
		return nil
	}
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ValidatePeer проверяет имя пира: непустое и без разделителя.
func ValidatePeer(peer string) error {
	if peer == "" {
		return fmt.Errorf("%w: empty peer", ErrInvalidIdentifier)
	}
	if strings.Contains(peer, Separator) {
		return fmt.Errorf("%w: peer %q contains %q", ErrInvalidIdentifier, peer, Separator)
	}
	return nil
}

// Compare задает полный порядок идентификаторов:
// сначала по часам, при равных часах по имени пира.
// Равные идентификаторы означают нарушение инварианта и возвращают ErrDuplicateIdentifier.
func Compare(a, b ID) (int, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}

	if c := compareIDs(a, b); c != 0 {
		return c, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrDuplicateIdentifier, a)
}

// compareIDs сравнивает уже проверенные идентификаторы; 0 только для равных.
func compareIDs(a, b ID) int {
	switch {
	case a.Clock < b.Clock:
		return -1
	case a.Clock > b.Clock:
		return 1
	}
	return strings.Compare(a.Peer, b.Peer)
}

// Generator выдает идентификаторы одного пира.
type Generator struct {
	clock *LamportClock
	peer  string
}

// NewGenerator создает генератор для пира поверх заданных часов.
func NewGenerator(peer string, clock *LamportClock) (*Generator, error) {
	if err := ValidatePeer(peer); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = NewLamportClock()
	}
	return &Generator{peer: peer, clock: clock}, nil
}

// Next возвращает новый идентификатор, больший всех ранее увиденных.
func (g *Generator) Next() ID {
	return ID{Peer: g.peer, Clock: g.clock.Tick()}
}

// Observe учитывает значение часов, увиденное у другого пира.
func (g *Generator) Observe(clock uint64) {
	g.clock.Advance(clock)
}

// Peer возвращает имя пира.
func (g *Generator) Peer() string {
	return g.peer
}

// Clock возвращает текущее значение часов.
func (g *Generator) Clock() uint64 {
	return g.clock.Timestamp()
}
