package cli

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

const editorHint = `
# Edit the commit message above. Lines starting with '#' are ignored
# and an empty message aborts the commit.
`

// EditorCommand returns the user's editor: $VISUAL, then $EDITOR, then a
// platform default.
func EditorCommand() string {
	editor := cmp.Or(os.Getenv("VISUAL"), os.Getenv("EDITOR"))
	if editor != "" {
		return editor
	}
	if runtime.GOOS == "windows" {
		return "notepad"
	}
	return "vi"
}

// EditMessage opens message in editorCmd and returns the edited text with
// comment lines removed. editorCmd may include arguments, as in "code --wait".
func EditMessage(ctx context.Context, editorCmd, message string) (string, error) {
	parts := strings.Fields(editorCmd)
	if len(parts) == 0 {
		return "", errors.New("no editor configured")
	}

	tmpFile, err := os.CreateTemp("", "gencommit-*.txt")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.WriteString(message + "\n" + editorHint); err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("writing temp file: %w", err)
	}

	args := append(parts[1:], tmpPath)
	cmd := exec.CommandContext(ctx, parts[0], args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("running editor %s: %w", parts[0], err)
	}

	edited, err := os.ReadFile(tmpPath)
	if err != nil {
		return "", fmt.Errorf("reading edited file: %w", err)
	}

	return stripComments(string(edited)), nil
}

func stripComments(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(line, "#") {
			continue
		}
		kept = append(kept, strings.TrimRight(line, " \t"))
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
