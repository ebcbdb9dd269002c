package storage

import "errors"

// Common client storage errors
var (
	// ErrReplicaNotFound indicates that the peer has no saved state for the document
	ErrReplicaNotFound = errors.New("replica not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
