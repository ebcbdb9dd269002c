package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gophdoc/internal/client/storage"
	"github.com/iudanet/gophdoc/internal/models"
)

var _ storage.ReplicaStorage = (*Storage)(nil)

var errBucketNotFound = errors.New("replicas bucket not found")

// SaveReplica сохраняет состояние пира для документа.
// Если сохраненные часы больше новых, остаются сохраненные.
func (s *Storage) SaveReplica(ctx context.Context, replica *models.Replica) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketReplicas)
		if bucket == nil {
			return errBucketNotFound
		}

		toSave := *replica
		if existing := bucket.Get([]byte(replica.Document)); existing != nil {
			var prev models.Replica
			if err := json.Unmarshal(existing, &prev); err != nil {
				return fmt.Errorf("failed to unmarshal replica: %w", err)
			}
			toSave.Clock = max(toSave.Clock, prev.Clock)
		}
		toSave.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(toSave)
		if err != nil {
			return fmt.Errorf("failed to marshal replica: %w", err)
		}

		return bucket.Put([]byte(replica.Document), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save replica: %w", err)
	}

	return nil
}

// GetReplica возвращает состояние пира для документа
func (s *Storage) GetReplica(ctx context.Context, document string) (*models.Replica, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var replica *models.Replica

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketReplicas)
		if bucket == nil {
			return errBucketNotFound
		}

		data := bucket.Get([]byte(document))
		if data == nil {
			return storage.ErrReplicaNotFound
		}

		replica = &models.Replica{}
		if err := json.Unmarshal(data, replica); err != nil {
			return fmt.Errorf("failed to unmarshal replica: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrReplicaNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get replica: %w", err)
	}

	return replica, nil
}
