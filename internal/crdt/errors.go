package crdt

import "errors"

// Ошибки CRDT документа
var (
	// ErrInvalidIdentifier indicates a malformed identifier token or peer name
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrDuplicateIdentifier indicates two distinct operations sharing one identifier
	ErrDuplicateIdentifier = errors.New("duplicate identifier")

	// ErrInvalidOperation indicates an operation with an unknown kind or missing fields
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrAnchorNotFound indicates a local insert anchored on an unknown element
	ErrAnchorNotFound = errors.New("anchor not found")

	// ErrTargetNotFound indicates a local delete of an unknown element
	ErrTargetNotFound = errors.New("target not found")

	// ErrNothingToUndo indicates that the local stage is empty
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrPositionOutOfRange indicates a position outside of the visible sequence
	ErrPositionOutOfRange = errors.New("position out of range")
)
