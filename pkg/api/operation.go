package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Типы операций на проводе
const (
	OpInsert = "insert"
	OpDelete = "delete"
)

// ErrMalformedOperation operation tuple has the wrong shape
var ErrMalformedOperation = errors.New("malformed operation")

// Operation одна операция документа.
//
// На проводе кодируется упорядоченным JSON-массивом строк:
//
//	["insert", "p1::3", "p1::2", "x"]
//	["delete", "p1::3"]
//
// Вставка в начало документа несет пустую строку в качестве parent.
type Operation struct {
	Type   string
	ID     string
	Parent string
	Value  string
}

// MarshalJSON implements json.Marshaler.
func (o Operation) MarshalJSON() ([]byte, error) {
	if o.Type == OpDelete {
		return json.Marshal([2]string{o.Type, o.ID})
	}
	return json.Marshal([4]string{o.Type, o.ID, o.Parent, o.Value})
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Operation) UnmarshalJSON(data []byte) error {
	var fields []string
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedOperation, err)
	}

	switch {
	case len(fields) == 4 && fields[0] == OpInsert:
		*o = Operation{Type: OpInsert, ID: fields[1], Parent: fields[2], Value: fields[3]}
	case len(fields) == 2 && fields[0] == OpDelete:
		*o = Operation{Type: OpDelete, ID: fields[1]}
	default:
		return fmt.Errorf("%w: %q", ErrMalformedOperation, fields)
	}

	return nil
}
