package storage

import (
	"context"

	"github.com/iudanet/gophdoc/internal/models"
)

// CommitStorage журнал опубликованных пакетов, только добавление.
type CommitStorage interface {
	// AppendCommit добавляет пакет в журнал документа и назначает ему Seq.
	// Повторная отправка того же пакета (совпадает версия или digest) не создает
	// новой записи: возвращается Seq исходной записи и duplicate = true.
	// Returns ErrVersionConflict if the version is already bound to other operations.
	AppendCommit(ctx context.Context, commit *models.Commit) (seq int64, duplicate bool, err error)

	// CommitsSince возвращает пакеты документа с Seq > since по возрастанию Seq.
	// limit <= 0 означает без ограничения. Returns empty slice if nothing found.
	CommitsSince(ctx context.Context, document string, since int64, limit int) ([]*models.Commit, error)

	// Ping проверяет доступность хранилища
	Ping(ctx context.Context) error
}
