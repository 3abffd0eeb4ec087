package usage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// fileLock is an advisory lock held by the existence of a file.
// It serializes read-modify-write cycles across gencommit processes.
type fileLock struct {
	path string
}

// acquireLock creates path with O_EXCL, polling until it succeeds or ctx is done.
// A lock file older than staleAfter is assumed to belong to a crashed process
// and is removed.
func acquireLock(ctx context.Context, path string, staleAfter, poll time.Duration) (*fileLock, error) {
	for {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
			if err := f.Close(); err != nil {
				slog.Warn("Failed to close lock file", "path", path, "error", err)
			}
			return &fileLock{path: path}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("creating lock file: %w", err)
		}

		if info, statErr := os.Stat(path); statErr == nil && time.Since(info.ModTime()) > staleAfter {
			slog.Warn("Removing stale usage lock", "path", path, "age", time.Since(info.ModTime()))
			if err := breakStaleLock(path, info); err != nil {
				return nil, err
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock %s: %w", path, ctx.Err())
		case <-time.After(poll):
		}
	}
}

// breakStaleLock moves the lock file observed as stale to a unique name and
// deletes it. Only one process wins the rename. If the file that got moved is
// not the one observed (another process replaced it in between), it is linked
// back into place.
func breakStaleLock(path string, observed fs.FileInfo) error {
	moved := fmt.Sprintf("%s.stale.%d.%d", path, os.Getpid(), time.Now().UnixNano())
	if err := os.Rename(path, moved); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing stale lock file: %w", err)
	}
	defer os.Remove(moved)

	if info, err := os.Stat(moved); err == nil && !os.SameFile(info, observed) {
		if err := os.Link(moved, path); err != nil && !errors.Is(err, fs.ErrExist) {
			slog.Warn("Failed to restore usage lock", "path", path, "error", err)
		}
	}
	return nil
}

func (l *fileLock) release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
