package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/gophdoc/pkg/api"
)

//go:generate moq -out client_mock.go . ClientAPI CommitStream

// ClientAPI операции relay, нужные клиенту
type ClientAPI interface {
	// Push публикует пакет операций документа
	Push(ctx context.Context, document string, req api.PushRequest) (*api.PushResponse, error)

	// Pull возвращает пакеты документа после since (не более limit, 0 - лимит сервера)
	Pull(ctx context.Context, document string, since int64, limit int) (*api.PullResponse, error)

	// Health проверяет доступность relay
	Health(ctx context.Context) (*api.HealthResponse, error)

	// Stream подписывается на пакеты документа после since
	Stream(ctx context.Context, document string, since int64) (CommitStream, error)
}

// CommitStream поток пакетов документа
type CommitStream interface {
	// Recv блокируется до следующего пакета; ошибка означает конец потока
	Recv() (api.Commit, error)
	Close() error
}

// StatusError ответ relay с неуспешным HTTP статусом
type StatusError struct {
	Message    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// Retryable повтор запроса имеет смысл: ошибка сервера или превышен лимит запросов
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// IsRetryable сообщает, стоит ли повторить запрос после err.
// Сетевые ошибки повторяются, ответы 4xx кроме 429 нет.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}

var _ ClientAPI = (*Client)(nil)

// Client представляет HTTP клиент для взаимодействия с relay
type Client struct {
	httpClient *http.Client
	dialer     *websocket.Dialer
	baseURL    string
}

// NewClient создает новый API клиент
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: timeout,
		},
	}
}

// Push публикует пакет
func (c *Client) Push(ctx context.Context, document string, req api.PushRequest) (*api.PushResponse, error) {
	var resp api.PushResponse
	if err := c.doRequest(ctx, http.MethodPost, documentPath(document, "commits"), req, &resp); err != nil {
		return nil, fmt.Errorf("push request failed: %w", err)
	}
	return &resp, nil
}

// Pull получает пакеты после since
func (c *Client) Pull(ctx context.Context, document string, since int64, limit int) (*api.PullResponse, error) {
	query := url.Values{}
	query.Set("since", strconv.FormatInt(since, 10))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp api.PullResponse
	path := documentPath(document, "commits") + "?" + query.Encode()
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("pull request failed: %w", err)
	}
	return &resp, nil
}

// Health проверяет relay
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", nil, &resp); err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	return &resp, nil
}

// Stream открывает websocket поток документа.
// Поток закрывается при Close или отмене ctx.
func (c *Client) Stream(ctx context.Context, document string, since int64) (CommitStream, error) {
	u, err := url.Parse(c.baseURL + documentPath(document, "stream"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"since": {strconv.FormatInt(since, 10)}}.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("stream dial failed: %w", readStatusError(resp))
		}
		return nil, fmt.Errorf("stream dial failed: %w", err)
	}

	s := &wsStream{conn: conn, done: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()

	return s, nil
}

func documentPath(document, tail string) string {
	return "/api/v1/docs/" + url.PathEscape(document) + "/" + tail
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readStatusError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func readStatusError(resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var errResp api.ErrorResponse
	if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Message != "" {
		return &StatusError{StatusCode: resp.StatusCode, Message: errResp.Message}
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(respBody))}
}

// wsStream CommitStream поверх websocket соединения
type wsStream struct {
	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
}

func (s *wsStream) Recv() (api.Commit, error) {
	for {
		var msg api.StreamMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return api.Commit{}, fmt.Errorf("stream closed: %w", err)
		}
		if msg.Type == api.StreamMessageCommit && msg.Commit != nil {
			return *msg.Commit, nil
		}
	}
}

func (s *wsStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}
