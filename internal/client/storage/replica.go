package storage

import (
	"context"

	"github.com/iudanet/gophdoc/internal/models"
)

//go:generate moq -out replica_mock.go . ReplicaStorage

// ReplicaStorage хранит идентичность пира и верхнюю границу его часов по документам
type ReplicaStorage interface {
	// GetReplica возвращает состояние пира для документа или ErrReplicaNotFound
	GetReplica(ctx context.Context, document string) (*models.Replica, error)

	// SaveReplica сохраняет состояние пира. Сохраненные часы никогда не уменьшаются.
	SaveReplica(ctx context.Context, replica *models.Replica) error
}
