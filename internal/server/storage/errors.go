package storage

import "errors"

// Common storage errors
var (
	// ErrVersionConflict indicates that a commit version was reused for different operations
	ErrVersionConflict = errors.New("commit version already used for different operations")

	// ErrEmptyCommit indicates an attempt to store a commit without operations
	ErrEmptyCommit = errors.New("commit has no operations")
)
