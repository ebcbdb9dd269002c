package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophdoc/internal/models"
	"github.com/iudanet/gophdoc/internal/server/storage"
	"github.com/iudanet/gophdoc/pkg/api"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors in tests
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

// memStorage журнал в памяти для тестов
type memStorage struct {
	appendErr error
	pullErr   error
	commits   []*models.Commit
	mu        sync.Mutex
}

func (m *memStorage) AppendCommit(_ context.Context, commit *models.Commit) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.appendErr != nil {
		return 0, false, m.appendErr
	}
	for _, c := range m.commits {
		if c.SameBatch(commit) {
			if c.Digest != commit.Digest {
				return 0, false, storage.ErrVersionConflict
			}
			return c.Seq, true, nil
		}
	}

	stored := commit.Clone()
	stored.Seq = int64(len(m.commits) + 1)
	m.commits = append(m.commits, stored)
	return stored.Seq, false, nil
}

func (m *memStorage) CommitsSince(_ context.Context, document string, since int64, limit int) ([]*models.Commit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pullErr != nil {
		return nil, m.pullErr
	}
	out := make([]*models.Commit, 0)
	for _, c := range m.commits {
		if c.Document == document && c.Seq > since {
			out = append(out, c.Clone())
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// recordingPublisher запоминает опубликованные пакеты
type recordingPublisher struct {
	err       error
	published []api.Commit
	mu        sync.Mutex
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, commit api.Commit) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.published = append(p.published, commit)
	return p.err
}

func pushRequest(t *testing.T, document string, body any) *http.Request {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/docs/"+document+"/commits", bytes.NewReader(data))
	return mux.SetURLVars(req, map[string]string{"doc": document})
}

func pullRequest(document, query string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/docs/"+document+"/commits"+query, nil)
	return mux.SetURLVars(req, map[string]string{"doc": document})
}

func validPush(author string, clock int) api.PushRequest {
	return api.PushRequest{
		Author:  author,
		Version: uuid.NewString(),
		Operations: []api.Operation{
			{Type: api.OpInsert, ID: fmt.Sprintf("%s::%d", author, clock), Value: "x"},
		},
	}
}

func TestCommitHandler_Push_Success(t *testing.T) {
	store := &memStorage{}
	pub := &recordingPublisher{}
	handler := NewCommitHandler(setupTestLogger(), store, pub, 0)

	push := validPush("p1", 1)
	w := httptest.NewRecorder()
	handler.Push(w, pushRequest(t, "notes", push))

	require.Equal(t, http.StatusCreated, w.Code)

	var resp api.PushResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, int64(1), resp.Seq)
	assert.False(t, resp.Duplicate)
	assert.Len(t, resp.Digest, 64)

	require.Len(t, pub.published, 1)
	assert.Equal(t, int64(1), pub.published[0].Seq)
	assert.Equal(t, "notes", pub.published[0].Document)
	assert.Equal(t, push.Operations, pub.published[0].Operations)

	require.Len(t, store.commits, 1)
	assert.Equal(t, push.Version, store.commits[0].Version)
	assert.Equal(t, 1, store.commits[0].OpCount)
}

func TestCommitHandler_Push_Duplicate(t *testing.T) {
	store := &memStorage{}
	pub := &recordingPublisher{}
	handler := NewCommitHandler(setupTestLogger(), store, pub, 0)

	push := validPush("p1", 1)
	handler.Push(httptest.NewRecorder(), pushRequest(t, "notes", push))

	// повтор после сетевой ошибки
	w := httptest.NewRecorder()
	handler.Push(w, pushRequest(t, "notes", push))

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.PushResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Duplicate)
	assert.Equal(t, int64(1), resp.Seq)
	assert.Len(t, pub.published, 1, "duplicates are not re-broadcast")
}

func TestCommitHandler_Push_Rejected(t *testing.T) {
	tests := []struct {
		body     any
		name     string
		document string
		wantCode int
	}{
		{name: "invalid json", document: "notes", body: "not an object", wantCode: http.StatusBadRequest},
		{name: "invalid document", document: "bad*doc", body: validPush("p1", 1), wantCode: http.StatusBadRequest},
		{
			name:     "missing author",
			document: "notes",
			body:     api.PushRequest{Operations: validPush("p1", 1).Operations},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "version not uuid",
			document: "notes",
			body:     api.PushRequest{Author: "p1", Version: "v1", Operations: validPush("p1", 1).Operations},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "no operations",
			document: "notes",
			body:     api.PushRequest{Author: "p1", Version: uuid.NewString()},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "malformed identifier",
			document: "notes",
			body: api.PushRequest{Author: "p1", Version: uuid.NewString(), Operations: []api.Operation{
				{Type: api.OpInsert, ID: "p1::0", Value: "x"},
			}},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "identifier with leading zero",
			document: "notes",
			body: api.PushRequest{Author: "p1", Version: uuid.NewString(), Operations: []api.Operation{
				{Type: api.OpInsert, ID: "p1::01", Value: "x"},
			}},
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStorage{}
			pub := &recordingPublisher{}
			handler := NewCommitHandler(setupTestLogger(), store, pub, 0)

			w := httptest.NewRecorder()
			handler.Push(w, pushRequest(t, tt.document, tt.body))

			assert.Equal(t, tt.wantCode, w.Code)
			var resp api.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.NotEmpty(t, resp.Message)

			assert.Empty(t, store.commits)
			assert.Empty(t, pub.published)
		})
	}
}

func TestCommitHandler_Push_VersionConflict(t *testing.T) {
	store := &memStorage{}
	handler := NewCommitHandler(setupTestLogger(), store, &recordingPublisher{}, 0)

	first := validPush("p1", 1)
	handler.Push(httptest.NewRecorder(), pushRequest(t, "notes", first))

	second := validPush("p1", 2)
	second.Version = first.Version

	w := httptest.NewRecorder()
	handler.Push(w, pushRequest(t, "notes", second))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCommitHandler_Push_StorageError(t *testing.T) {
	store := &memStorage{appendErr: assert.AnError}
	pub := &recordingPublisher{}
	handler := NewCommitHandler(setupTestLogger(), store, pub, 0)

	w := httptest.NewRecorder()
	handler.Push(w, pushRequest(t, "notes", validPush("p1", 1)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, pub.published)
}

func TestCommitHandler_Push_PublishErrorStillAccepted(t *testing.T) {
	store := &memStorage{}
	handler := NewCommitHandler(setupTestLogger(), store, &recordingPublisher{err: assert.AnError}, 0)

	w := httptest.NewRecorder()
	handler.Push(w, pushRequest(t, "notes", validPush("p1", 1)))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, store.commits, 1)
}

func TestCommitHandler_Pull(t *testing.T) {
	store := &memStorage{}
	handler := NewCommitHandler(setupTestLogger(), store, &recordingPublisher{}, 3)

	for i := 1; i <= 5; i++ {
		handler.Push(httptest.NewRecorder(), pushRequest(t, "notes", validPush("p1", i)))
	}
	handler.Push(httptest.NewRecorder(), pushRequest(t, "todo", validPush("p2", 1)))

	tests := []struct {
		name        string
		query       string
		wantSeqs    []int64
		wantLastSeq int64
	}{
		{name: "server limit applies", query: "", wantSeqs: []int64{1, 2, 3}, wantLastSeq: 3},
		{name: "since", query: "?since=3", wantSeqs: []int64{4, 5}, wantLastSeq: 5},
		{name: "client limit", query: "?since=1&limit=2", wantSeqs: []int64{2, 3}, wantLastSeq: 3},
		{name: "client limit above server limit", query: "?limit=100", wantSeqs: []int64{1, 2, 3}, wantLastSeq: 3},
		{name: "up to date", query: "?since=5", wantSeqs: []int64{}, wantLastSeq: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.Pull(w, pullRequest("notes", tt.query))

			require.Equal(t, http.StatusOK, w.Code)

			var resp api.PullResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

			seqs := make([]int64, 0, len(resp.Commits))
			for _, c := range resp.Commits {
				assert.Equal(t, "notes", c.Document)
				require.Len(t, c.Operations, 1)
				seqs = append(seqs, c.Seq)
			}
			assert.Equal(t, tt.wantSeqs, seqs)
			assert.Equal(t, tt.wantLastSeq, resp.LastSeq)
		})
	}
}

func TestCommitHandler_Pull_InvalidParams(t *testing.T) {
	handler := NewCommitHandler(setupTestLogger(), &memStorage{}, &recordingPublisher{}, 0)

	for _, query := range []string{"?since=abc", "?since=-1", "?limit=0", "?limit=x"} {
		w := httptest.NewRecorder()
		handler.Pull(w, pullRequest("notes", query))
		assert.Equal(t, http.StatusBadRequest, w.Code, "query %s", query)
	}
}

func TestCommitHandler_Pull_StorageError(t *testing.T) {
	handler := NewCommitHandler(setupTestLogger(), &memStorage{pullErr: assert.AnError}, &recordingPublisher{}, 0)

	w := httptest.NewRecorder()
	handler.Pull(w, pullRequest("notes", ""))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
