package usage

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageRead matches any *StorageReadError.
	ErrStorageRead = errors.New("usage storage read failed")
	// ErrStorageWrite matches any *StorageWriteError.
	ErrStorageWrite = errors.New("usage storage write failed")
	// ErrQuotaExceeded matches any *QuotaExceededError.
	ErrQuotaExceeded = errors.New("quota exceeded")
)

// StorageReadError means the usage file exists but could not be read or parsed.
// Quota state is unknown; callers must not proceed as if nothing was used.
type StorageReadError struct {
	Path string
	Err  error
}

func (e *StorageReadError) Error() string {
	return fmt.Sprintf("reading usage file %s: %v", e.Path, e.Err)
}

func (e *StorageReadError) Unwrap() error { return e.Err }

func (e *StorageReadError) Is(target error) bool { return target == ErrStorageRead }

// StorageWriteError means the usage file could not be written.
type StorageWriteError struct {
	Path string
	Err  error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("writing usage file %s: %v", e.Path, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

func (e *StorageWriteError) Is(target error) bool { return target == ErrStorageWrite }

// QuotaExceededError is returned when admission is denied.
type QuotaExceededError struct {
	Dimension Dimension
	Reason    string
	Used      int64
	Limit     int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s (%d/%d)", e.Reason, e.Used, e.Limit)
}

func (e *QuotaExceededError) Is(target error) bool { return target == ErrQuotaExceeded }
