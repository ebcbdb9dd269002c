package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/gophdoc/internal/models"
	"github.com/iudanet/gophdoc/internal/server/storage"
)

// AppendCommit добавляет пакет в журнал документа.
// Дубликат определяется по (document, version) или (document, digest).
func (s *Storage) AppendCommit(ctx context.Context, commit *models.Commit) (seq int64, duplicate bool, err error) {
	if commit.OpCount == 0 || len(commit.Operations) == 0 {
		return 0, false, storage.ErrEmptyCommit
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	existing, err := s.findBatch(ctx, tx, commit)
	if err != nil {
		return 0, false, err
	}
	if existing != nil {
		if existing.Digest != commit.Digest {
			return 0, false, fmt.Errorf("%w: %s", storage.ErrVersionConflict, commit.Version)
		}
		if err = tx.Commit(); err != nil {
			return 0, false, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return existing.Seq, true, nil
	}

	createdAt := commit.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO commits (
			document, author, version, digest,
			operations, op_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		commit.Document,
		commit.Author,
		commit.Version,
		commit.Digest,
		commit.Operations,
		commit.OpCount,
		createdAt.UnixMilli(),
	)
	if err != nil {
		return 0, false, fmt.Errorf("failed to insert commit: %w", err)
	}

	seq, err = result.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get commit seq: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return seq, false, nil
}

// findBatch ищет ранее принятый пакет с той же версией или тем же digest
func (s *Storage) findBatch(ctx context.Context, tx *sql.Tx, commit *models.Commit) (*models.Commit, error) {
	query := `
		SELECT seq, document, author, version, digest,
		       operations, op_count, created_at
		FROM commits
		WHERE document = ? AND (version = ? OR digest = ?)
		ORDER BY seq ASC
		LIMIT 1
	`

	existing, err := scanCommit(tx.QueryRowContext(ctx, query, commit.Document, commit.Version, commit.Digest))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up commit: %w", err)
	}

	return existing, nil
}

// CommitsSince возвращает пакеты документа после позиции since
func (s *Storage) CommitsSince(ctx context.Context, document string, since int64, limit int) (commits []*models.Commit, err error) {
	query := `
		SELECT seq, document, author, version, digest,
		       operations, op_count, created_at
		FROM commits
		WHERE document = ? AND seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`

	// в SQLite LIMIT -1 означает без ограничения
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, query, document, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query commits: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	commits = make([]*models.Commit, 0)
	for rows.Next() {
		commit, err := scanCommit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commit: %w", err)
		}
		commits = append(commits, commit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return commits, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommit(row rowScanner) (*models.Commit, error) {
	commit := &models.Commit{}
	var createdAt int64

	err := row.Scan(
		&commit.Seq,
		&commit.Document,
		&commit.Author,
		&commit.Version,
		&commit.Digest,
		&commit.Operations,
		&commit.OpCount,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	commit.CreatedAt = time.UnixMilli(createdAt)
	return commit, nil
}
