package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// ReviewResult is the user's decision about a generated message.
type ReviewResult string

const (
	ReviewCommit ReviewResult = "commit"
	ReviewEdit   ReviewResult = "edit"
	ReviewAbort  ReviewResult = "abort"
)

// IsInteractive reports whether r is a terminal. Readers that are not files
// are treated as interactive so prompts can be scripted in tests.
func IsInteractive(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return true
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// readLine reads a single line from rd, giving up when ctx is done.
func readLine(ctx context.Context, rd *bufio.Reader) (string, error) {
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		line, err := rd.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		done <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return strings.TrimSpace(r.line), r.err
	}
}

// PromptReview asks whether to commit, edit or abort. An empty answer
// commits; unreadable input aborts.
func (p *Printer) PromptReview(ctx context.Context, in io.Reader) ReviewResult {
	rd := bufio.NewReader(in)

	for {
		p.Printf("%s ", bold("Commit with this message? [Y]es/[e]dit/[n]o:"))

		answer, err := readLine(ctx, rd)
		if err != nil {
			p.Println()
			return ReviewAbort
		}

		switch strings.ToLower(answer) {
		case "", "y", "yes":
			return ReviewCommit
		case "e", "edit":
			return ReviewEdit
		case "n", "no", "q", "quit":
			return ReviewAbort
		default:
			p.Printf("Please answer y, e or n.\n")
		}
	}
}
