package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophdoc/internal/client/sync"
	"github.com/iudanet/gophdoc/internal/codec"
)

const editHelp = `Commands:
  insert POS TEXT   insert TEXT before position POS (alias: i)
  append TEXT       append TEXT to the end (alias: a)
  delete POS [N]    delete N characters starting at POS (alias: d)
  undo              revert the last uncommitted edit (alias: u)
  commit            publish uncommitted edits (alias: c)
  pull              merge commits published by other peers
  print             print the document (alias: p)
  pending           list uncommitted operations
  help              show this help
  quit              publish pending edits and exit (alias: q)`

func newEditCommand(run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit the document interactively",
		Long: "Edit the document interactively. Edits are staged locally until 'commit';\n" +
			"pending edits are published on exit.\n\n" + editHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(c *Cli) error {
				return c.runEdit(cmd.Context())
			})
		},
	}
}

func (c *Cli) runEdit(ctx context.Context) error {
	s, err := c.openPulled(ctx)
	if err != nil {
		return err
	}

	if c.io.IsTerminal() {
		c.io.Printf("Editing %q as %s. Type 'help' for commands.\n", c.cfg.Document, s.Peer())
	}
	c.printDocument(s.Document())

	for {
		line, err := c.io.ReadInput(c.cfg.Document + "> ")
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		if line == "" {
			continue
		}

		quit, err := c.execEdit(ctx, s, line)
		if err != nil {
			c.io.Printf("Error: %v\n", err)
			continue
		}
		if quit {
			break
		}
	}

	if len(s.Document().Pending()) == 0 {
		return nil
	}
	result, err := s.Push(ctx)
	if err != nil {
		return fmt.Errorf("failed to publish pending edits: %w", err)
	}
	c.io.Printf("Published %d operation(s)\n", result.Pushed)
	return nil
}

// execEdit выполняет одну команду редактора
func (c *Cli) execEdit(ctx context.Context, s *sync.Service, line string) (quit bool, err error) {
	doc := s.Document()
	verb, rest, _ := strings.Cut(line, " ")

	switch verb {
	case "insert", "i":
		posArg, text, ok := strings.Cut(rest, " ")
		if !ok || text == "" {
			return false, errors.New("usage: insert POS TEXT")
		}
		pos, err := strconv.Atoi(posArg)
		if err != nil {
			return false, fmt.Errorf("invalid position %q", posArg)
		}
		if err := insertText(doc, pos, text); err != nil {
			return false, err
		}
		c.printDocument(doc)

	case "append", "a":
		if rest == "" {
			return false, errors.New("usage: append TEXT")
		}
		if err := insertText(doc, doc.Len(), rest); err != nil {
			return false, err
		}
		c.printDocument(doc)

	case "delete", "d":
		pos, count, err := parseDeleteArgs(rest)
		if err != nil {
			return false, err
		}
		if err := deleteText(doc, pos, count); err != nil {
			return false, err
		}
		c.printDocument(doc)

	case "undo", "u":
		op, err := doc.Undo()
		if err != nil {
			return false, err
		}
		c.io.Printf("Undone %s\n", op)
		c.printDocument(doc)

	case "commit", "c":
		result, err := s.Push(ctx)
		if err != nil {
			return false, err
		}
		c.io.Printf("Published %d operation(s)\n", result.Pushed)

	case "pull":
		result, err := s.Pull(ctx)
		if err != nil {
			return false, err
		}
		c.io.Printf("Pulled %d commit(s): %d applied, %d buffered\n", result.Pulled, result.Applied, result.Buffered)
		c.printDocument(doc)

	case "print", "p":
		c.printDocument(doc)

	case "pending":
		pending := doc.Pending()
		if len(pending) == 0 {
			c.io.Println("No uncommitted edits.")
			break
		}
		for _, op := range codec.Encode(pending) {
			c.io.Printf("  %s %s %q\n", op.Type, op.ID, op.Value)
		}

	case "help", "h", "?":
		c.io.Println(editHelp)

	case "quit", "q", "exit":
		return true, nil

	default:
		return false, fmt.Errorf("unknown command %q, type 'help' for commands", verb)
	}

	return false, nil
}

func parseDeleteArgs(rest string) (pos, count int, err error) {
	fields := strings.Fields(rest)
	if len(fields) == 0 || len(fields) > 2 {
		return 0, 0, errors.New("usage: delete POS [N]")
	}

	pos, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid position %q", fields[0])
	}

	count = 1
	if len(fields) == 2 {
		if count, err = strconv.Atoi(fields[1]); err != nil {
			return 0, 0, fmt.Errorf("invalid count %q", fields[1])
		}
	}
	return pos, count, nil
}
