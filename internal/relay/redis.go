package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iudanet/gophdoc/pkg/api"
)

// ChannelPrefix префикс каналов Redis: gophdoc:<document>
const ChannelPrefix = "gophdoc:"

type bridgeMessage struct {
	Origin string     `json:"origin"`
	Commit api.Commit `json:"commit"`
}

// RedisBridge связывает hub нескольких экземпляров relay через Redis pub/sub.
// Локальные пакеты рассылаются в свой hub и публикуются в Redis;
// пакеты других экземпляров из Redis попадают в локальный hub с Seq = 0.
type RedisBridge struct {
	client   *redis.Client
	local    Publisher
	logger   *slog.Logger
	ready    chan struct{}
	instance string
}

// NewRedisBridge создает мост поверх локального hub.
func NewRedisBridge(client *redis.Client, local Publisher, logger *slog.Logger) *RedisBridge {
	instance := uuid.NewString()
	return &RedisBridge{
		client:   client,
		local:    local,
		logger:   logger.With("instance", instance),
		ready:    make(chan struct{}),
		instance: instance,
	}
}

// Channel имя канала Redis для документа
func Channel(document string) string {
	return ChannelPrefix + document
}

// Publish рассылает пакет локально и публикует его для остальных экземпляров.
func (b *RedisBridge) Publish(ctx context.Context, document string, commit api.Commit) error {
	if err := b.local.Publish(ctx, document, commit); err != nil {
		return err
	}

	payload, err := json.Marshal(bridgeMessage{Origin: b.instance, Commit: commit})
	if err != nil {
		return fmt.Errorf("failed to encode bridge message: %w", err)
	}

	if err := b.client.Publish(ctx, Channel(document), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	return nil
}

// Ready закрывается, когда подписка на Redis подтверждена.
func (b *RedisBridge) Ready() <-chan struct{} {
	return b.ready
}

// Run получает пакеты других экземпляров до отмены ctx.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, ChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to redis: %w", err)
	}
	close(b.ready)
	b.logger.Info("redis bridge subscribed", "pattern", ChannelPrefix+"*")

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			b.forward(ctx, msg)
		}
	}
}

func (b *RedisBridge) forward(ctx context.Context, msg *redis.Message) {
	var m bridgeMessage
	if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
		b.logger.Warn("skipping malformed bridge message", "channel", msg.Channel, "error", err)
		return
	}
	if m.Origin == b.instance {
		return
	}

	// seq другого экземпляра не относится к локальному журналу
	m.Commit.Seq = 0

	document := strings.TrimPrefix(msg.Channel, ChannelPrefix)
	if err := b.local.Publish(ctx, document, m.Commit); err != nil {
		b.logger.Warn("failed to forward commit", "document", document, "error", err)
	}
}
