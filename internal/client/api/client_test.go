package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophdoc/pkg/api"
)

// TestNewClient проверяет создание нового клиента
func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080", 5*time.Second)

	assert.Equal(t, "http://localhost:8080", client.baseURL)
	assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
	assert.Equal(t, 5*time.Second, client.dialer.HandshakeTimeout)
}

func TestClient_Push(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/docs/notes/commits", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req api.PushRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "p1", req.Author)
		require.Len(t, req.Operations, 1)
		assert.Equal(t, "p1::1", req.Operations[0].ID)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(api.PushResponse{Seq: 7, Digest: "abc"})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	resp, err := client.Push(context.Background(), "notes", api.PushRequest{
		Author:     "p1",
		Version:    "v",
		Operations: []api.Operation{{Type: api.OpInsert, ID: "p1::1", Value: "a"}},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(7), resp.Seq)
	assert.Equal(t, "abc", resp.Digest)
}

func TestClient_Pull(t *testing.T) {
	tests := []struct {
		name      string
		wantQuery string
		since     int64
		limit     int
	}{
		{name: "server limit", since: 0, limit: 0, wantQuery: "since=0"},
		{name: "client limit", since: 12, limit: 50, wantQuery: "limit=50&since=12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/api/v1/docs/notes/commits", r.URL.Path)
				assert.Equal(t, tt.wantQuery, r.URL.RawQuery)

				_ = json.NewEncoder(w).Encode(api.PullResponse{
					Commits: []api.Commit{{Seq: tt.since + 1, Document: "notes"}},
					LastSeq: tt.since + 1,
				})
			}))
			defer server.Close()

			resp, err := NewClient(server.URL, time.Second).Pull(context.Background(), "notes", tt.since, tt.limit)
			require.NoError(t, err)
			require.Len(t, resp.Commits, 1)
			assert.Equal(t, tt.since+1, resp.LastSeq)
		})
	}
}

func TestClient_Health(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/health", r.URL.Path)
		_ = json.NewEncoder(w).Encode(api.HealthResponse{Status: "ok", Storage: "ok", Version: "1.0"})
	}))
	defer server.Close()

	resp, err := NewClient(server.URL, time.Second).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.0", resp.Version)
}

// TestClient_Errors проверяет разбор ошибок сервера
func TestClient_Errors(t *testing.T) {
	tests := []struct {
		responseBody   any
		name           string
		expectedErrMsg string
		statusCode     int
		retryable      bool
	}{
		{
			name:           "Version conflict",
			statusCode:     http.StatusConflict,
			responseBody:   api.ErrorResponse{Error: "Conflict", Message: "version already used"},
			expectedErrMsg: "server error (409): version already used",
		},
		{
			name:           "Malformed batch",
			statusCode:     http.StatusBadRequest,
			responseBody:   api.ErrorResponse{Message: "operation 0: invalid identifier"},
			expectedErrMsg: "server error (400): operation 0: invalid identifier",
		},
		{
			name:           "Rate limited",
			statusCode:     http.StatusTooManyRequests,
			responseBody:   api.ErrorResponse{Message: "rate limit exceeded"},
			expectedErrMsg: "server error (429): rate limit exceeded",
			retryable:      true,
		},
		{
			name:           "Plain text internal error",
			statusCode:     http.StatusInternalServerError,
			responseBody:   "Internal Server Error",
			expectedErrMsg: "server error (500): Internal Server Error",
			retryable:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				if errResp, ok := tt.responseBody.(api.ErrorResponse); ok {
					_ = json.NewEncoder(w).Encode(errResp)
				} else {
					_, _ = w.Write([]byte(tt.responseBody.(string)))
				}
			}))
			defer server.Close()

			_, err := NewClient(server.URL, time.Second).Push(context.Background(), "notes", api.PushRequest{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErrMsg)

			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.statusCode, statusErr.StatusCode)
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(errors.New("connection refused")))
	assert.False(t, IsRetryable(fmt.Errorf("push: %w", context.Canceled)))
	assert.False(t, IsRetryable(&StatusError{StatusCode: http.StatusBadRequest}))
	assert.True(t, IsRetryable(&StatusError{StatusCode: http.StatusBadGateway}))
}

func TestClient_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(url, time.Second).Health(context.Background())
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

// streamServer отдает по websocket заданные сообщения и держит соединение открытым
func streamServer(t *testing.T, messages []api.StreamMessage) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/docs/notes/stream", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("since"))

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, msg := range messages {
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
		// ждем закрытия со стороны клиента
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_Stream(t *testing.T) {
	server := streamServer(t, []api.StreamMessage{
		{Type: "keepalive"},
		{Type: api.StreamMessageCommit, Commit: &api.Commit{Seq: 4, Document: "notes"}},
		{Type: api.StreamMessageCommit, Commit: &api.Commit{Seq: 5, Document: "notes"}},
	})

	stream, err := NewClient(server.URL, time.Second).Stream(context.Background(), "notes", 3)
	require.NoError(t, err)
	defer stream.Close()

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, int64(4), first.Seq, "unknown message types are skipped")

	second, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, int64(5), second.Seq)

	require.NoError(t, stream.Close())
	assert.NoError(t, stream.Close(), "second close is a no-op")

	_, err = stream.Recv()
	assert.Error(t, err)
}

func TestClient_Stream_ContextCancelUnblocksRecv(t *testing.T) {
	server := streamServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := NewClient(server.URL, time.Second).Stream(ctx, "notes", 3)
	require.NoError(t, err)

	errC := make(chan error, 1)
	go func() {
		_, err := stream.Recv()
		errC <- err
	}()

	cancel()

	select {
	case err := <-errC:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Recv did not return after cancel")
	}
}

func TestClient_Stream_RejectedHandshake(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Message: "invalid document name"})
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second).Stream(context.Background(), "notes", 0)
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, "invalid document name", statusErr.Message)
}
