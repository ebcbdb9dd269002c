package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/gophdoc/internal/relay"
	"github.com/iudanet/gophdoc/pkg/api"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
)

// Subscriber выдает подписки на пакеты документа
type Subscriber interface {
	Subscribe(ctx context.Context, document string, buffer int) (*relay.Subscription, error)
}

// StreamHandler отдает пакеты документа по websocket:
// сначала журнал после since, затем новые пакеты по мере поступления.
type StreamHandler struct {
	logger   *slog.Logger
	storage  CommitStorage
	hub      Subscriber
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(logger *slog.Logger, storage CommitStorage, hub Subscriber) *StreamHandler {
	return &StreamHandler{
		logger:  logger,
		storage: storage,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// пиры не аутентифицируются, origin не проверяется
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Stream обрабатывает GET /api/v1/docs/{doc}/stream?since=N
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
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

	// подписываемся до чтения журнала, чтобы не потерять пакеты между ними
	sub, err := h.hub.Subscribe(r.Context(), document, relay.DefaultBuffer)
	if err != nil {
		h.logger.Error("Failed to subscribe", "document", document, "error", err)
		sendError(h.logger, w, "stream unavailable", http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.logger.Warn("Websocket upgrade failed", "document", document, "error", err)
		return
	}
	defer conn.Close()

	logger := h.logger.With("document", document, "remote_addr", r.RemoteAddr)
	logger.Info("Stream opened", "since", since)

	closed := make(chan struct{})
	go h.readPump(conn, closed)

	last := since
	backlog, err := h.storage.CommitsSince(r.Context(), document, since, 0)
	if err != nil {
		logger.Error("Failed to load backlog", "error", err)
		h.closeWith(conn, websocket.CloseInternalServerErr, "backlog unavailable")
		return
	}
	for _, c := range backlog {
		out, err := toAPICommit(c)
		if err != nil {
			logger.Error("Corrupted commit in log", "seq", c.Seq, "error", err)
			h.closeWith(conn, websocket.CloseInternalServerErr, "corrupted log")
			return
		}
		if err := h.send(conn, out); err != nil {
			logger.Debug("Stream write failed", "error", err)
			return
		}
		last = c.Seq
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case commit, ok := <-sub.C:
			if !ok {
				logger.Info("Stream subscription closed")
				h.closeWith(conn, websocket.CloseGoingAway, "subscription closed")
				return
			}
			// уже отправлен из журнала
			if commit.Seq != 0 && commit.Seq <= last {
				continue
			}
			if err := h.send(conn, commit); err != nil {
				logger.Debug("Stream write failed", "error", err)
				return
			}
			last = max(last, commit.Seq)
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			logger.Info("Stream closed by peer")
			return
		}
	}
}

// readPump читает входящие сообщения (только control frames) до закрытия соединения
func (h *StreamHandler) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHandler) send(conn *websocket.Conn, commit api.Commit) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(api.StreamMessage{Type: api.StreamMessageCommit, Commit: &commit})
}

func (h *StreamHandler) closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
