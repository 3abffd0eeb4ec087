package usage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
)

// DefaultFileName is the usage file created in the working directory.
const DefaultFileName = ".genai-usage.json"

// The lock timeout must exceed the stale threshold.
const (
	defaultLockTimeout    = 15 * time.Second
	defaultLockStaleAfter = 10 * time.Second
	defaultLockPoll       = 25 * time.Millisecond
)

// Tracker owns the usage file and is the single source of truth for
// whether a new AI request is permitted.
type Tracker struct {
	path   string
	limits Limits
	now    func() time.Time

	lockTimeout    time.Duration
	lockStaleAfter time.Duration
	lockPoll       time.Duration
}

type Opt func(*Tracker)

// WithLimits overrides the default limits.
func WithLimits(limits Limits) Opt {
	return func(t *Tracker) {
		t.limits = limits
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Opt {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithLockTimeout bounds how long RecordSuccess waits for another process.
func WithLockTimeout(d time.Duration) Opt {
	return func(t *Tracker) {
		t.lockTimeout = d
	}
}

// New returns a tracker backed by the file at path.
func New(path string, opts ...Opt) *Tracker {
	t := &Tracker{
		path:           path,
		limits:         DefaultLimits(),
		now:            time.Now,
		lockTimeout:    defaultLockTimeout,
		lockStaleAfter: defaultLockStaleAfter,
		lockPoll:       defaultLockPoll,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Path returns the usage file location.
func (t *Tracker) Path() string { return t.path }

// Limits returns the limits the tracker enforces.
func (t *Tracker) Limits() Limits { return t.limits }

func (t *Tracker) lockPath() string { return t.path + ".lock" }

// Load reads the persisted record. A missing file yields a fresh record
// starting now, which is not written until the next Save.
func (t *Tracker) Load(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	now := t.now()

	data, err := os.ReadFile(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("No usage file, starting a new window", "path", t.path)
			return NewRecord(now), nil
		}
		return Record{}, &StorageReadError{Path: t.path, Err: err}
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, &StorageReadError{Path: t.path, Err: err}
	}

	return record.normalize(now), nil
}

// Save overwrites the usage file with record. The write goes through a
// temporary file and a rename so readers never see a partial file.
func (t *Tracker) Save(ctx context.Context, record Record) error {
	if err := ctx.Err(); err != nil {
		return &StorageWriteError{Path: t.path, Err: err}
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return &StorageWriteError{Path: t.path, Err: err}
	}
	data = append(data, '\n')

	if dir := filepath.Dir(t.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &StorageWriteError{Path: t.path, Err: err}
		}
	}

	if err := atomic.WriteFile(t.path, bytes.NewReader(data)); err != nil {
		return &StorageWriteError{Path: t.path, Err: err}
	}

	slog.Debug("Saved usage", "path", t.path, "requests", record.Requests, "tokens", record.Tokens)
	return nil
}

// Admit loads the record, starts a new window if the old one expired and
// checks every enforced limit. It returns the current record when the
// request may proceed, a *QuotaExceededError when it may not, and a
// *StorageReadError when quota state is unknown.
func (t *Tracker) Admit(ctx context.Context) (Record, error) {
	record, err := t.Load(ctx)
	if err != nil {
		return Record{}, err
	}

	now := t.now()
	record = ResetIfWindowExpired(record, now)

	decision := CheckAdmission(record, t.limits, now)
	if !decision.Allowed {
		slog.Info("Request denied",
			"dimension", decision.Dimension,
			"reason", decision.Reason,
			"used", decision.Used,
			"limit", decision.Limit,
		)
		return record, decision.Err()
	}

	return record, nil
}

// RecordSuccess adds one request and tokensUsed tokens to the persisted
// counters. The read-modify-write cycle runs under a lock file so that
// concurrent invocations do not overwrite each other's increments.
// Lock and write failures are returned as *StorageWriteError.
func (t *Tracker) RecordSuccess(ctx context.Context, tokensUsed int64) (Record, error) {
	var updated Record
	err := t.update(ctx, func(record Record, now time.Time) Record {
		updated = RecordSuccess(ResetIfWindowExpired(record, now), tokensUsed, now)
		return updated
	})
	if err != nil {
		return Record{}, err
	}
	return updated, nil
}

// Status loads the record and summarizes it against the limits.
func (t *Tracker) Status(ctx context.Context) (Status, error) {
	record, err := t.Load(ctx)
	if err != nil {
		return Status{}, err
	}
	return Snapshot(record, t.limits, t.now()), nil
}

func (t *Tracker) update(ctx context.Context, fn func(Record, time.Time) Record) error {
	lockCtx, cancel := context.WithTimeout(ctx, t.lockTimeout)
	defer cancel()

	if dir := filepath.Dir(t.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &StorageWriteError{Path: t.path, Err: err}
		}
	}

	lock, err := acquireLock(lockCtx, t.lockPath(), t.lockStaleAfter, t.lockPoll)
	if err != nil {
		return &StorageWriteError{Path: t.path, Err: err}
	}
	defer func() {
		if err := lock.release(); err != nil {
			slog.Warn("Failed to release usage lock", "path", lock.path, "error", err)
		}
	}()

	record, err := t.Load(ctx)
	if err != nil {
		// Never overwrite a file we could not read.
		return fmt.Errorf("reloading usage before update: %w", err)
	}

	return t.Save(ctx, fn(record, t.now()))
}
