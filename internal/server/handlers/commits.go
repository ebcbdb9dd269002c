package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iudanet/gophdoc/internal/codec"
	"github.com/iudanet/gophdoc/internal/crdt"
	"github.com/iudanet/gophdoc/internal/models"
	"github.com/iudanet/gophdoc/internal/server/storage"
	"github.com/iudanet/gophdoc/internal/validation"
	"github.com/iudanet/gophdoc/pkg/api"
)

const (
	// DefaultPullLimit максимальное число пакетов в одном ответе pull
	DefaultPullLimit = 500

	// MaxPushBytes ограничение размера тела push
	MaxPushBytes = 4 << 20
)

// CommitStorage определяет интерфейс журнала пакетов
type CommitStorage interface {
	AppendCommit(ctx context.Context, commit *models.Commit) (int64, bool, error)
	CommitsSince(ctx context.Context, document string, since int64, limit int) ([]*models.Commit, error)
}

// Publisher рассылает принятые пакеты подписчикам
type Publisher interface {
	Publish(ctx context.Context, document string, commit api.Commit) error
}

// CommitHandler принимает и раздает пакеты операций.
// Relay не сливает операции: он только проверяет формат, хранит и пересылает.
type CommitHandler struct {
	logger    *slog.Logger
	storage   CommitStorage
	publisher Publisher
	pullLimit int
}

// NewCommitHandler creates a new commit handler
func NewCommitHandler(logger *slog.Logger, storage CommitStorage, publisher Publisher, pullLimit int) *CommitHandler {
	if pullLimit <= 0 {
		pullLimit = DefaultPullLimit
	}
	return &CommitHandler{
		logger:    logger,
		storage:   storage,
		publisher: publisher,
		pullLimit: pullLimit,
	}
}

// documentFromRequest извлекает и проверяет имя документа из пути
func documentFromRequest(r *http.Request) (string, error) {
	document := mux.Vars(r)["doc"]
	if err := validation.ValidateDocument(document); err != nil {
		return "", err
	}
	return document, nil
}

// Push обрабатывает POST /api/v1/docs/{doc}/commits
func (h *CommitHandler) Push(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	document, err := documentFromRequest(r)
	if err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	var req api.PushRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxPushBytes)).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode push request", "document", document, "error", err)
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := crdt.ValidatePeer(req.Author); err != nil {
		sendError(h.logger, w, "invalid author", http.StatusBadRequest)
		return
	}

	if req.Version == "" {
		req.Version = uuid.NewString()
	} else if _, err := uuid.Parse(req.Version); err != nil {
		sendError(h.logger, w, "version must be a UUID", http.StatusBadRequest)
		return
	}

	if len(req.Operations) == 0 {
		sendError(h.logger, w, "commit has no operations", http.StatusBadRequest)
		return
	}

	// проверяем формат, не интерпретируя операции
	if _, err := codec.Decode(req.Operations); err != nil {
		h.logger.Warn("Rejected malformed commit",
			"document", document,
			"author", req.Author,
			"error", err)
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	commit, err := newCommit(document, req)
	if err != nil {
		h.logger.Error("Failed to prepare commit", "error", err)
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	seq, duplicate, err := h.storage.AppendCommit(ctx, commit)
	if err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			sendError(h.logger, w, err.Error(), http.StatusConflict)
			return
		}
		h.logger.Error("Failed to append commit", "document", document, "error", err)
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.PushResponse{Seq: seq, Duplicate: duplicate, Digest: commit.Digest}

	if duplicate {
		h.logger.Info("Duplicate commit ignored", "document", document, "author", req.Author, "seq", seq)
		sendJSON(h.logger, w, resp, http.StatusOK)
		return
	}

	commit.Seq = seq
	out, err := toAPICommit(commit)
	if err == nil {
		err = h.publisher.Publish(ctx, document, out)
	}
	if err != nil {
		// пакет уже в журнале: подписчики догонят его через pull
		h.logger.Warn("Failed to publish commit", "document", document, "seq", seq, "error", err)
	}

	h.logger.Info("Commit accepted",
		"document", document,
		"author", req.Author,
		"seq", seq,
		"operations", commit.OpCount)

	sendJSON(h.logger, w, resp, http.StatusCreated)
}

// Pull обрабатывает GET /api/v1/docs/{doc}/commits?since=N&limit=M
func (h *CommitHandler) Pull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	document, err := documentFromRequest(r)
	if err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	since, err := parseSince(r)
	if err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	limit := h.pullLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			sendError(h.logger, w, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = min(n, h.pullLimit)
	}

	commits, err := h.storage.CommitsSince(ctx, document, since, limit)
	if err != nil {
		h.logger.Error("Failed to load commits", "document", document, "error", err)
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.PullResponse{
		Commits: make([]api.Commit, 0, len(commits)),
		LastSeq: since,
	}
	for _, c := range commits {
		out, err := toAPICommit(c)
		if err != nil {
			h.logger.Error("Corrupted commit in log", "document", document, "seq", c.Seq, "error", err)
			sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
			return
		}
		resp.Commits = append(resp.Commits, out)
		resp.LastSeq = c.Seq
	}

	h.logger.Debug("Pull completed", "document", document, "since", since, "commits", len(resp.Commits))

	sendJSON(h.logger, w, resp, http.StatusOK)
}

func parseSince(r *http.Request) (int64, error) {
	s := r.URL.Query().Get("since")
	if s == "" {
		return 0, nil
	}
	since, err := strconv.ParseInt(s, 10, 64)
	if err != nil || since < 0 {
		return 0, fmt.Errorf("invalid since parameter")
	}
	return since, nil
}

// newCommit собирает запись журнала из запроса
func newCommit(document string, req api.PushRequest) (*models.Commit, error) {
	digest, err := codec.Digest(req.Operations)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req.Operations)
	if err != nil {
		return nil, fmt.Errorf("failed to encode operations: %w", err)
	}

	return &models.Commit{
		CreatedAt:  time.Now().UTC(),
		Document:   document,
		Author:     req.Author,
		Version:    req.Version,
		Digest:     digest,
		Operations: payload,
		OpCount:    len(req.Operations),
	}, nil
}

// toAPICommit конвертирует запись журнала в проводной формат
func toAPICommit(c *models.Commit) (api.Commit, error) {
	var ops []api.Operation
	if err := json.Unmarshal(c.Operations, &ops); err != nil {
		return api.Commit{}, fmt.Errorf("failed to decode operations of commit %d: %w", c.Seq, err)
	}

	return api.Commit{
		CreatedAt:  c.CreatedAt,
		Document:   c.Document,
		Author:     c.Author,
		Version:    c.Version,
		Digest:     c.Digest,
		Operations: ops,
		Seq:        c.Seq,
	}, nil
}
