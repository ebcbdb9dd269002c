package cli

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophdoc/internal/client/storage"
	"github.com/iudanet/gophdoc/internal/crdt"
	"github.com/iudanet/gophdoc/pkg/api"
)

func newShowCommand(run runFunc) *cobra.Command {
	var withIDs bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current document text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(c *Cli) error {
				return c.runShow(cmd.Context(), withIDs)
			})
		},
	}
	cmd.Flags().BoolVar(&withIDs, "ids", false, "Print one element per line with its identifier")
	return cmd
}

func newInsertCommand(run runFunc) *cobra.Command {
	var at int

	cmd := &cobra.Command{
		Use:   "insert TEXT",
		Short: "Insert text and publish it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(c *Cli) error {
				return c.runInsert(cmd.Context(), at, args[0])
			})
		},
	}
	cmd.Flags().IntVar(&at, "at", -1, "Position to insert at (default: end of document)")
	return cmd
}

func newDeleteCommand(run runFunc) *cobra.Command {
	var at, count int

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete characters and publish the deletion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(c *Cli) error {
				return c.runDelete(cmd.Context(), at, count)
			})
		},
	}
	cmd.Flags().IntVar(&at, "at", 0, "Position of the first character to delete")
	cmd.Flags().IntVar(&count, "count", 1, "Number of characters to delete")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func newWatchCommand(run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the document and print it after every remote commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(c *Cli) error {
				return c.runWatch(cmd.Context())
			})
		},
	}
}

func newHistoryCommand(run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List commits published for the document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(c *Cli) error {
				return c.runHistory(cmd.Context())
			})
		},
	}
}

func newStatusCommand(run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show relay availability and the local peer identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(c *Cli) error {
				return c.runStatus(cmd.Context())
			})
		},
	}
}

func (c *Cli) runShow(ctx context.Context, withIDs bool) error {
	s, err := c.openPulled(ctx)
	if err != nil {
		return err
	}

	if !withIDs {
		c.printDocument(s.Document())
		return nil
	}

	for i, e := range s.Document().Elements() {
		c.io.Printf("%4d  %-20s %q\n", i, e.ID, e.Value)
	}
	return nil
}

func (c *Cli) runInsert(ctx context.Context, at int, text string) error {
	if text == "" {
		return errors.New("text cannot be empty")
	}

	s, err := c.openPulled(ctx)
	if err != nil {
		return err
	}

	doc := s.Document()
	if at < 0 {
		at = doc.Len()
	}
	if err := insertText(doc, at, text); err != nil {
		return err
	}

	result, err := s.Push(ctx)
	if err != nil {
		return err
	}

	c.io.Printf("Inserted %d character(s) at %d, published %d operation(s)\n",
		utf8.RuneCountInString(text), at, result.Pushed)
	c.printDocument(doc)
	return nil
}

func (c *Cli) runDelete(ctx context.Context, at, count int) error {
	s, err := c.openPulled(ctx)
	if err != nil {
		return err
	}

	doc := s.Document()
	if err := deleteText(doc, at, count); err != nil {
		return err
	}

	result, err := s.Push(ctx)
	if err != nil {
		return err
	}

	c.io.Printf("Deleted %d character(s) at %d, published %d operation(s)\n", count, at, result.Pushed)
	c.printDocument(doc)
	return nil
}

func (c *Cli) runWatch(ctx context.Context) error {
	s, err := c.openPulled(ctx)
	if err != nil {
		return err
	}

	c.io.Printf("Watching %q as %s (Ctrl+C to stop)\n", c.cfg.Document, s.Peer())
	c.printDocument(s.Document())

	return s.Watch(ctx, func(commit api.Commit, stats crdt.MergeStats) {
		c.io.Printf("--- #%d by %s: %d applied, %d buffered\n",
			commit.Seq, commit.Author, stats.Applied, stats.Buffered)
		c.printDocument(s.Document())
	})
}

func (c *Cli) runHistory(ctx context.Context) error {
	s, err := c.open(ctx)
	if err != nil {
		return err
	}

	commits, err := s.History(ctx)
	if err != nil {
		return err
	}

	if len(commits) == 0 {
		c.io.Println("No commits yet.")
		return nil
	}

	c.io.Printf("%-6s %-20s %-20s %s\n", "SEQ", "CREATED", "AUTHOR", "OPERATIONS")
	for _, commit := range commits {
		var inserts, deletes int
		for _, op := range commit.Operations {
			if op.Type == api.OpDelete {
				deletes++
			} else {
				inserts++
			}
		}
		c.io.Printf("%-6d %-20s %-20s +%d -%d\n",
			commit.Seq, commit.CreatedAt.Format(time.DateTime), commit.Author, inserts, deletes)
	}
	c.io.Printf("\nTotal: %d commit(s)\n", len(commits))
	return nil
}

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Status ===")
	c.io.Printf("Server:   %s\n", c.cfg.ServerURL)

	health, err := c.backend.API.Health(ctx)
	if err != nil {
		c.io.Printf("Relay:    unavailable (%v)\n", err)
	} else {
		c.io.Printf("Relay:    %s (storage: %s, version: %s)\n", health.Status, health.Storage, health.Version)
	}

	c.io.Printf("Document: %s\n", c.cfg.Document)

	replica, err := c.backend.Store.GetReplica(ctx, c.cfg.Document)
	switch {
	case errors.Is(err, storage.ErrReplicaNotFound):
		c.io.Println("Peer:     not initialized (created on first use)")
	case err != nil:
		return fmt.Errorf("failed to load replica: %w", err)
	default:
		c.io.Printf("Peer:     %s\n", replica.Peer)
		c.io.Printf("Clock:    %d\n", replica.Clock)
	}

	return nil
}

// insertText вставляет text посимвольно начиная с позиции at
func insertText(doc *crdt.Document[string], at int, text string) error {
	if at < 0 || at > doc.Len() {
		return fmt.Errorf("%w: %d (document length %d)", crdt.ErrPositionOutOfRange, at, doc.Len())
	}

	pos := at
	for _, r := range text {
		if _, err := doc.InsertAt(pos, string(r)); err != nil {
			return err
		}
		pos++
	}
	return nil
}

// deleteText удаляет count символов начиная с позиции at
func deleteText(doc *crdt.Document[string], at, count int) error {
	if count < 1 {
		return fmt.Errorf("count must be positive, got %d", count)
	}
	if at < 0 || at+count > doc.Len() {
		return fmt.Errorf("%w: [%d, %d) (document length %d)", crdt.ErrPositionOutOfRange, at, at+count, doc.Len())
	}

	for range count {
		if _, err := doc.DeleteAt(at); err != nil {
			return err
		}
	}
	return nil
}
