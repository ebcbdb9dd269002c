// Package relay раздает опубликованные пакеты подписчикам документа.
package relay

import (
	"context"
	"errors"
	"log/slog"

	"github.com/iudanet/gophdoc/pkg/api"
)

// ErrHubStopped hub is no longer running
var ErrHubStopped = errors.New("relay hub stopped")

// DefaultBuffer размер очереди подписчика по умолчанию
const DefaultBuffer = 64

// Publisher принимает пакеты для рассылки.
type Publisher interface {
	Publish(ctx context.Context, document string, commit api.Commit) error
}

type envelope struct {
	document string
	commit   api.Commit
}

// Hub рассылает пакеты подписчикам по документам.
// Все изменения множества подписчиков выполняет одна горутина Run.
type Hub struct {
	logger     *slog.Logger
	subs       map[string]map[*Subscription]struct{}
	register   chan *Subscription
	unregister chan *Subscription
	broadcast  chan envelope
	done       chan struct{}
}

// NewHub создает hub. Run должен быть запущен до первой подписки.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:     logger,
		subs:       make(map[string]map[*Subscription]struct{}),
		register:   make(chan *Subscription),
		unregister: make(chan *Subscription),
		broadcast:  make(chan envelope),
		done:       make(chan struct{}),
	}
}

// Run обслуживает подписки до отмены ctx, затем закрывает все каналы подписчиков.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for document, set := range h.subs {
			for s := range set {
				close(s.ch)
			}
			delete(h.subs, document)
		}
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-h.register:
			set, ok := h.subs[s.document]
			if !ok {
				set = make(map[*Subscription]struct{})
				h.subs[s.document] = set
			}
			set[s] = struct{}{}
		case s := <-h.unregister:
			h.remove(s)
		case e := <-h.broadcast:
			for s := range h.subs[e.document] {
				select {
				case s.ch <- e.commit:
				default:
					// медленный подписчик отключается, а не блокирует рассылку
					h.logger.Warn("dropping slow subscriber",
						"document", e.document,
						"seq", e.commit.Seq)
					h.remove(s)
				}
			}
		}
	}
}

func (h *Hub) remove(s *Subscription) {
	set, ok := h.subs[s.document]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	close(s.ch)
	if len(set) == 0 {
		delete(h.subs, s.document)
	}
}

// Subscribe подписывается на пакеты документа.
// Канал C закрывается при Close, при остановке hub или если подписчик не успевает читать.
func (h *Hub) Subscribe(ctx context.Context, document string, buffer int) (*Subscription, error) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	ch := make(chan api.Commit, buffer)
	s := &Subscription{C: ch, ch: ch, document: document, hub: h}

	select {
	case h.register <- s:
		return s, nil
	case <-h.done:
		return nil, ErrHubStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Publish рассылает пакет всем подписчикам документа.
func (h *Hub) Publish(ctx context.Context, document string, commit api.Commit) error {
	select {
	case h.broadcast <- envelope{document: document, commit: commit}:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscription подписка на один документ
type Subscription struct {
	C        <-chan api.Commit
	ch       chan api.Commit
	hub      *Hub
	document string
}

// Close отменяет подписку. Повторный вызов безопасен.
func (s *Subscription) Close() {
	select {
	case s.hub.unregister <- s:
	case <-s.hub.done:
	}
}
