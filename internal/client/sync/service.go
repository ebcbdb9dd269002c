// Package sync связывает локальную реплику документа с relay-сервером:
// публикует локальные правки, забирает и сливает чужие пакеты, следит за потоком.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	httpClient "github.com/iudanet/gophdoc/internal/client/api"
	"github.com/iudanet/gophdoc/internal/client/storage"
	"github.com/iudanet/gophdoc/internal/codec"
	"github.com/iudanet/gophdoc/internal/crdt"
	"github.com/iudanet/gophdoc/internal/models"
	"github.com/iudanet/gophdoc/internal/validation"
	"github.com/iudanet/gophdoc/pkg/api"
)

// DefaultPageSize размер страницы pull
const DefaultPageSize = 200

// SyncResult contains sync operation results
type SyncResult struct {
	Pushed   int // количество опубликованных операций
	Pulled   int // количество полученных пакетов
	Applied  int // операций применено к документу
	Buffered int // операций ждут своих зависимостей
	Skipped  int // операций уже известны или отброшены как некорректные
}

func (r *SyncResult) add(stats crdt.MergeStats) {
	r.Applied += stats.Applied
	r.Buffered += stats.Buffered
	r.Skipped += stats.Skipped
}

// RetryConfig параметры экспоненциальных повторов
type RetryConfig struct {
	MaxRetries      int // 0 - без ограничения числа попыток
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration // 0 - без ограничения по времени
}

// DefaultRetryConfig повторы запросов push/pull
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      5,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  30 * time.Second,
	}
}

// DefaultReconnectConfig переподключение потока: бесконечно, не чаще раза в 30 секунд
func DefaultReconnectConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}
}

func (c RetryConfig) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialInterval
	b.MaxInterval = c.MaxInterval
	b.Multiplier = c.Multiplier
	b.MaxElapsedTime = c.MaxElapsedTime
	b.Reset()

	if c.MaxRetries > 0 {
		return backoff.WithMaxRetries(b, uint64(c.MaxRetries))
	}
	return b
}

// Option настройка Service
type Option func(*Service)

// WithRetry задает повторы push/pull
func WithRetry(cfg RetryConfig) Option {
	return func(s *Service) { s.retry = cfg }
}

// WithReconnect задает переподключение Watch
func WithReconnect(cfg RetryConfig) Option {
	return func(s *Service) { s.reconnect = cfg }
}

// WithPageSize задает размер страницы pull
func WithPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// Service сессия одного документа: реплика в памяти плюс обмен с relay.
// Состояние документа не сохраняется локально и восстанавливается через Pull;
// хранится только имя пира и верхняя граница его часов.
type Service struct {
	apiClient httpClient.ClientAPI
	store     storage.ReplicaStorage
	logger    *slog.Logger
	doc       *crdt.Document[string]
	document  string
	retry     RetryConfig
	reconnect RetryConfig
	pageSize  int
	lastSeq   int64
	mu        sync.Mutex // lastSeq
}

// Open открывает сессию документа. Если пир для документа еще не сохранен,
// используется peer (или генерируется новое имя) и сохраняется.
func Open(ctx context.Context, apiClient httpClient.ClientAPI, store storage.ReplicaStorage, document, peer string, logger *slog.Logger, opts ...Option) (*Service, error) {
	if err := validation.ValidateDocument(document); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}

	replica, err := store.GetReplica(ctx, document)
	switch {
	case errors.Is(err, storage.ErrReplicaNotFound):
		if peer == "" {
			peer = NewPeerName()
		}
		replica = &models.Replica{Document: document, Peer: peer}
	case err != nil:
		return nil, fmt.Errorf("failed to load replica: %w", err)
	case peer != "" && peer != replica.Peer:
		logger.Warn("switching peer name for document",
			"document", document, "old_peer", replica.Peer, "new_peer", peer)
		replica.Peer = peer
	}

	if err := validation.ValidatePeer(replica.Peer); err != nil {
		return nil, fmt.Errorf("invalid peer: %w", err)
	}
	if err := store.SaveReplica(ctx, replica); err != nil {
		return nil, fmt.Errorf("failed to save replica: %w", err)
	}

	// часы продолжают с сохраненной верхней границы: идентификаторы не повторяются
	clock := crdt.NewLamportClock()
	clock.SetTimestamp(replica.Clock)

	doc, err := crdt.NewDocument[string](replica.Peer,
		crdt.WithLogger(logger.With("document", document)),
		crdt.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	s := &Service{
		apiClient: apiClient,
		store:     store,
		logger:    logger.With("document", document, "peer", replica.Peer),
		doc:       doc,
		document:  document,
		retry:     DefaultRetryConfig(),
		reconnect: DefaultReconnectConfig(),
		pageSize:  DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// NewPeerName генерирует имя пира
func NewPeerName() string {
	return "peer-" + uuid.NewString()[:8]
}

// Document реплика документа
func (s *Service) Document() *crdt.Document[string] {
	return s.doc
}

// Peer имя пира
func (s *Service) Peer() string {
	return s.doc.Peer()
}

// LastSeq позиция последнего полученного пакета в журнале relay
func (s *Service) LastSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq
}

func (s *Service) observeSeq(seq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeq = max(s.lastSeq, seq)
}

// Checkpoint сохраняет текущие часы документа
func (s *Service) Checkpoint(ctx context.Context) error {
	err := s.store.SaveReplica(ctx, &models.Replica{
		Document: s.document,
		Peer:     s.doc.Peer(),
		Clock:    s.doc.Clock(),
	})
	if err != nil {
		return fmt.Errorf("failed to checkpoint clock: %w", err)
	}
	return nil
}

// Pull забирает все новые пакеты документа и сливает их в реплику
func (s *Service) Pull(ctx context.Context) (*SyncResult, error) {
	result := &SyncResult{}

	for {
		since := s.LastSeq()
		resp, err := withRetry(ctx, s.retry, func() (*api.PullResponse, error) {
			return s.apiClient.Pull(ctx, s.document, since, s.pageSize)
		})
		if err != nil {
			return result, fmt.Errorf("pull failed: %w", err)
		}
		if len(resp.Commits) == 0 {
			break
		}

		for _, commit := range resp.Commits {
			result.Pulled++
			s.mergeCommit(commit, result)
		}
		s.observeSeq(resp.LastSeq)

		if s.LastSeq() <= since {
			return result, fmt.Errorf("pull failed: relay did not advance past seq %d", since)
		}
	}

	if err := s.Checkpoint(ctx); err != nil {
		s.logger.Warn("Failed to save clock after pull", "error", err)
	}

	s.logger.Debug("Pull completed",
		"pulled", result.Pulled,
		"applied", result.Applied,
		"buffered", result.Buffered,
		"skipped", result.Skipped,
		"last_seq", s.LastSeq())

	return result, nil
}

// mergeCommit сливает пакет; некорректный пакет пропускается целиком
func (s *Service) mergeCommit(commit api.Commit, result *SyncResult) crdt.MergeStats {
	defer s.observeSeq(commit.Seq)

	ops, err := codec.Decode(commit.Operations)
	if err == nil {
		var stats crdt.MergeStats
		stats, err = s.doc.Merge(ops)
		if err == nil {
			result.add(stats)
			return stats
		}
	}

	s.logger.Warn("Skipping malformed commit",
		"seq", commit.Seq,
		"author", commit.Author,
		"error", err)
	result.Skipped += len(commit.Operations)
	return crdt.MergeStats{Skipped: len(commit.Operations)}
}

// Push публикует локальные правки одним пакетом.
// При неудаче после всех повторов правки возвращаются в stage документа.
func (s *Service) Push(ctx context.Context) (*SyncResult, error) {
	result := &SyncResult{}

	err := s.doc.CommitFunc(func(ops []crdt.Operation[string]) error {
		// одна версия на все повторы: relay распознает дубликат
		req := api.PushRequest{
			Author:     s.doc.Peer(),
			Version:    uuid.NewString(),
			Operations: codec.Encode(ops),
		}

		resp, err := withRetry(ctx, s.retry, func() (*api.PushResponse, error) {
			return s.apiClient.Push(ctx, s.document, req)
		})
		if err != nil {
			return err
		}

		result.Pushed = len(ops)
		s.logger.Info("Pushed local changes",
			"operations", len(ops),
			"seq", resp.Seq,
			"duplicate", resp.Duplicate)
		return nil
	})

	if cpErr := s.Checkpoint(ctx); cpErr != nil {
		s.logger.Warn("Failed to save clock after push", "error", cpErr)
	}

	if err != nil {
		return result, fmt.Errorf("push failed: %w", err)
	}
	return result, nil
}

// Sync публикует локальные правки, затем забирает чужие
func (s *Service) Sync(ctx context.Context) (*SyncResult, error) {
	s.logger.Info("Starting synchronization")

	pushed, err := s.Push(ctx)
	if err != nil {
		return pushed, err
	}

	pulled, err := s.Pull(ctx)
	if err != nil {
		return pulled, err
	}
	pulled.Pushed = pushed.Pushed

	s.logger.Info("Synchronization completed",
		"pushed", pulled.Pushed,
		"pulled", pulled.Pulled,
		"applied", pulled.Applied,
		"buffered", pulled.Buffered,
		"skipped", pulled.Skipped)

	return pulled, nil
}

// CommitHandler вызывается Watch после слияния каждого пакета
type CommitHandler func(commit api.Commit, stats crdt.MergeStats)

// Watch следит за потоком пакетов документа до отмены ctx.
// Обрыв соединения приводит к переподключению с экспоненциальной паузой;
// поток продолжается с последней полученной позиции.
func (s *Service) Watch(ctx context.Context, onCommit CommitHandler) error {
	b := s.reconnect.backOff()

	for {
		received, err := s.watchOnce(ctx, onCommit)
		if ctx.Err() != nil {
			return nil
		}
		if !received && !httpClient.IsRetryable(err) {
			return fmt.Errorf("watch failed: %w", err)
		}
		if received {
			b.Reset()
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return fmt.Errorf("watch gave up reconnecting: %w", err)
		}

		s.logger.Warn("Stream disconnected, reconnecting",
			"error", err,
			"retry_in", wait,
			"last_seq", s.LastSeq())

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// watchOnce обслуживает одно подключение; received - пришел ли хотя бы один пакет
func (s *Service) watchOnce(ctx context.Context, onCommit CommitHandler) (received bool, err error) {
	stream, err := s.apiClient.Stream(ctx, s.document, s.LastSeq())
	if err != nil {
		return false, err
	}
	defer func() {
		_ = stream.Close()
	}()

	for {
		commit, err := stream.Recv()
		if err != nil {
			return received, err
		}
		received = true

		// пакеты, уже полученные через Pull, не сливаются повторно.
		// Seq = 0 у пакетов других экземпляров relay: они сливаются без сдвига позиции
		if commit.Seq != 0 && commit.Seq <= s.LastSeq() {
			continue
		}

		stats := s.mergeCommit(commit, &SyncResult{})
		if err := s.Checkpoint(ctx); err != nil {
			s.logger.Warn("Failed to save clock after stream commit", "error", err)
		}
		if onCommit != nil {
			onCommit(commit, stats)
		}
	}
}

// History возвращает журнал пакетов документа с начала
func (s *Service) History(ctx context.Context) ([]api.Commit, error) {
	var (
		commits []api.Commit
		since   int64
	)

	for {
		resp, err := withRetry(ctx, s.retry, func() (*api.PullResponse, error) {
			return s.apiClient.Pull(ctx, s.document, since, s.pageSize)
		})
		if err != nil {
			return nil, fmt.Errorf("history failed: %w", err)
		}
		if len(resp.Commits) == 0 {
			return commits, nil
		}
		if resp.LastSeq <= since {
			return nil, fmt.Errorf("history failed: relay did not advance past seq %d", since)
		}
		commits = append(commits, resp.Commits...)
		since = resp.LastSeq
	}
}

// withRetry повторяет op, пока ошибка временная
func withRetry[T any](ctx context.Context, cfg RetryConfig, op func() (T, error)) (T, error) {
	var result T

	err := backoff.Retry(func() error {
		var err error
		result, err = op()
		if err != nil && !httpClient.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(cfg.backOff(), ctx))

	return result, err
}
