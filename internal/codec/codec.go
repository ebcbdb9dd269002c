// Package codec переводит операции документа в проводной формат pkg/api и обратно.
package codec

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/iudanet/gophdoc/internal/crdt"
	"github.com/iudanet/gophdoc/pkg/api"
)

// EncodeOperation конвертирует операцию текстового документа в проводной формат.
func EncodeOperation(op crdt.Operation[string]) api.Operation {
	if op.IsDelete() {
		return api.Operation{Type: api.OpDelete, ID: op.ID.String()}
	}
	return api.Operation{
		Type:   api.OpInsert,
		ID:     op.ID.String(),
		Parent: op.Parent.String(),
		Value:  op.Value,
	}
}

// Encode конвертирует пакет операций, сохраняя порядок.
func Encode(ops []crdt.Operation[string]) []api.Operation {
	out := make([]api.Operation, 0, len(ops))
	for _, op := range ops {
		out = append(out, EncodeOperation(op))
	}
	return out
}

// DecodeOperation разбирает и проверяет одну операцию.
// Ошибки оборачивают crdt.ErrInvalidIdentifier или crdt.ErrInvalidOperation.
func DecodeOperation(in api.Operation) (crdt.Operation[string], error) {
	kind, err := crdt.ParseKind(in.Type)
	if err != nil {
		return crdt.Operation[string]{}, err
	}

	id, err := crdt.ParseID(in.ID)
	if err != nil {
		return crdt.Operation[string]{}, err
	}

	var op crdt.Operation[string]
	switch kind {
	case crdt.KindInsert:
		var parent crdt.ID
		if in.Parent != "" {
			if parent, err = crdt.ParseID(in.Parent); err != nil {
				return crdt.Operation[string]{}, fmt.Errorf("parent: %w", err)
			}
		}
		op = crdt.NewInsert(id, parent, in.Value)
	case crdt.KindDelete:
		if in.Parent != "" || in.Value != "" {
			return crdt.Operation[string]{}, fmt.Errorf("%w: delete %s carries payload", crdt.ErrInvalidOperation, id)
		}
		op = crdt.NewDelete[string](id)
	}

	if err := op.Validate(); err != nil {
		return crdt.Operation[string]{}, err
	}
	return op, nil
}

// Decode разбирает пакет целиком: первая некорректная операция отклоняет весь пакет.
func Decode(in []api.Operation) ([]crdt.Operation[string], error) {
	out := make([]crdt.Operation[string], 0, len(in))
	for i, op := range in {
		decoded, err := DecodeOperation(op)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		out = append(out, decoded)
	}
	return out, nil
}

// Digest BLAKE2b-256 (hex) канонической JSON-кодировки пакета.
// Одинаковые пакеты дают одинаковый digest независимо от автора и версии.
func Digest(ops []api.Operation) (string, error) {
	data, err := json.Marshal(ops)
	if err != nil {
		return "", fmt.Errorf("failed to encode operations: %w", err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
