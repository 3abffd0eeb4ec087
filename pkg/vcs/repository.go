// Package vcs reads the staged changes of a git repository and commits them.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/go-git/go-git/v5"
)

// DefaultMaxDiffBytes caps the diff sent to the model.
const DefaultMaxDiffBytes = 100 * 1024

// ErrNotRepository is returned when no git repository contains the directory.
var ErrNotRepository = errors.New("not a git repository")

// Repository is a git working tree.
type Repository struct {
	repo         *git.Repository
	root         string
	maxDiffBytes int
}

type Opt func(*Repository)

// WithMaxDiffBytes changes the diff size cap. Zero or less disables it.
func WithMaxDiffBytes(n int) Opt {
	return func(r *Repository) {
		r.maxDiffBytes = n
	}
}

// Open finds the repository containing dir, searching parent directories.
func Open(dir string, opts ...Opt) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, dir)
		}
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening worktree: %w", err)
	}

	r := &Repository{
		repo:         repo,
		root:         worktree.Filesystem.Root(),
		maxDiffBytes: DefaultMaxDiffBytes,
	}
	for _, opt := range opts {
		opt(r)
	}

	slog.Debug("Opened git repository", "root", r.root)
	return r, nil
}

// Root returns the top-level directory of the working tree.
func (r *Repository) Root() string {
	return r.root
}

// StagedFiles lists the paths with changes in the index, sorted.
func (r *Repository) StagedFiles() ([]string, error) {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening worktree: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("reading status: %w", err)
	}

	var files []string
	for path, fileStatus := range status {
		if fileStatus.Staging != git.Unmodified && fileStatus.Staging != git.Untracked {
			files = append(files, path)
		}
	}
	slices.Sort(files)
	return files, nil
}

// StagedDiff returns the textual diff of the index against HEAD, or ""
// when nothing is staged.
func (r *Repository) StagedDiff(ctx context.Context) (string, error) {
	files, err := r.StagedFiles()
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", nil
	}

	diff, err := r.git(ctx, nil, "diff", "--cached", "--no-color", "--no-ext-diff")
	if err != nil {
		return "", err
	}

	slog.Debug("Read staged diff", "files", len(files), "bytes", len(diff))
	return truncate(diff, r.maxDiffBytes), nil
}

// Commit records the staged changes with message. It goes through the git
// binary so that hooks and signing settings apply.
func (r *Repository) Commit(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", errors.New("commit message is empty")
	}

	out, err := r.git(ctx, strings.NewReader(message), "commit", "--file", "-")
	if err != nil {
		return "", err
	}

	slog.Debug("Committed staged changes", "root", r.root)
	return strings.TrimSpace(out), nil
}

func (r *Repository) git(ctx context.Context, stdin io.Reader, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.root
	cmd.Stdin = stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("Running git", "args", args)
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("git %s: %s", args[0], msg)
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return stdout.String(), nil
}

// truncate cuts diff at a line boundary so it fits in maxBytes. Without a
// line boundary it cuts before the rune that would be split.
func truncate(diff string, maxBytes int) string {
	if maxBytes <= 0 || len(diff) <= maxBytes {
		return diff
	}

	cut := diff[:maxBytes]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i+1]
	} else {
		n := maxBytes
		for n > 0 && !utf8.RuneStart(diff[n]) {
			n--
		}
		cut = diff[:n]
	}
	return fmt.Sprintf("%s... diff truncated, %d bytes omitted\n", cut, len(diff)-len(cut))
}
