// Package cli команды клиента gophdoc.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	httpClient "github.com/iudanet/gophdoc/internal/client/api"
	"github.com/iudanet/gophdoc/internal/client/iocli"
	"github.com/iudanet/gophdoc/internal/client/storage"
	"github.com/iudanet/gophdoc/internal/client/storage/boltdb"
	"github.com/iudanet/gophdoc/internal/client/sync"
	"github.com/iudanet/gophdoc/internal/config"
	"github.com/iudanet/gophdoc/internal/crdt"
)

// BuildInfo информация о сборке, задается через ldflags
type BuildInfo struct {
	Version   string
	BuildDate string
	GitCommit string
}

// Backend соединение с relay и локальное хранилище реплик
type Backend struct {
	API   httpClient.ClientAPI
	Store storage.ReplicaStorage
	Close func() error
}

// ConnectFunc открывает Backend по настройкам клиента
type ConnectFunc func(ctx context.Context, cfg *config.ClientConfig) (*Backend, error)

// Connect открывает BoltDB и создает HTTP клиент relay
func Connect(ctx context.Context, cfg *config.ClientConfig) (*Backend, error) {
	store, err := boltdb.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Backend{
		API:   httpClient.NewClient(cfg.ServerURL, cfg.Timeout),
		Store: store,
		Close: store.Close,
	}, nil
}

type Cli struct {
	io      iocli.IO
	backend *Backend
	cfg     *config.ClientConfig
	logger  *slog.Logger
	opts    []sync.Option
}

func New(io iocli.IO, cfg *config.ClientConfig, backend *Backend, logger *slog.Logger, opts ...sync.Option) *Cli {
	return &Cli{
		io:      io,
		backend: backend,
		cfg:     cfg,
		logger:  logger,
		opts:    opts,
	}
}

// open открывает сессию документа без обращения к relay
func (c *Cli) open(ctx context.Context) (*sync.Service, error) {
	s, err := sync.Open(ctx, c.backend.API, c.backend.Store, c.cfg.Document, c.cfg.Peer, c.logger, c.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	return s, nil
}

// openPulled открывает сессию и догоняет журнал relay
func (c *Cli) openPulled(ctx context.Context) (*sync.Service, error) {
	s, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.Pull(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Cli) printDocument(doc *crdt.Document[string]) {
	c.io.Println(crdt.Join(doc))
}

// runFunc подключает Backend, выполняет fn и закрывает Backend
type runFunc func(cmd *cobra.Command, fn func(c *Cli) error) error

// NewRootCommand собирает дерево команд клиента.
// Флаги переопределяют значения cfg, прочитанные из окружения.
func NewRootCommand(cfg *config.ClientConfig, info BuildInfo, io iocli.IO, connect ConnectFunc) *cobra.Command {
	var logger *slog.Logger

	root := &cobra.Command{
		Use:           "gophdoc",
		Short:         "Collaborative plain-text documents replicated through a relay",
		Version:       info.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			level, err := config.ParseLogLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			return nil
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("gophdoc client\nVersion:    %s\nBuild Date: %s\nGit Commit: %s\n",
		info.Version, info.BuildDate, info.GitCommit))

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Relay server URL")
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to local database")
	flags.StringVarP(&cfg.Document, "document", "D", cfg.Document, "Document name")
	flags.StringVar(&cfg.Peer, "peer", cfg.Peer, "Peer name (generated on first use when empty)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Request timeout")

	run := func(cmd *cobra.Command, fn func(c *Cli) error) (err error) {
		backend, err := connect(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if backend.Close != nil {
			defer func() {
				if closeErr := backend.Close(); closeErr != nil && err == nil {
					err = fmt.Errorf("failed to close database: %w", closeErr)
				}
			}()
		}
		return fn(New(io, cfg, backend, logger))
	}

	root.AddCommand(
		newShowCommand(run),
		newInsertCommand(run),
		newDeleteCommand(run),
		newEditCommand(run),
		newWatchCommand(run),
		newHistoryCommand(run),
		newStatusCommand(run),
	)

	root.SetOut(io)
	root.SetErr(os.Stderr)

	return root
}
