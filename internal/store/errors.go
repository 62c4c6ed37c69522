package store

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidContent is returned for empty, oversized or malformed payloads.
	ErrInvalidContent = errors.New("invalid content")

	// ErrNotFound is returned when an id or blob reference does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrOpenFailure is returned when a session cannot be established.
	ErrOpenFailure = errors.New("open failure")

	// ErrStorageFailure wraps durable-store and filesystem errors.
	ErrStorageFailure = errors.New("storage failure")

	// ErrUseAfterClose is returned by every operation on a closed session.
	ErrUseAfterClose = errors.New("use after close")

	// ErrDuplicateKey is returned by Tx.Insert when the dedupe key is taken.
	// The dedup engine resolves it; it never reaches session callers.
	ErrDuplicateKey = errors.New("duplicate dedupe key")
)

// StorageError wraps err as a storage failure for operation op.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
}

// NotFoundError reports a missing item id.
func NotFoundError(id int64) error {
	return fmt.Errorf("item %d: %w", id, ErrNotFound)
}

// Code returns the taxonomy name of err, or "" for nil and "Unknown" for
// errors outside the taxonomy.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidContent):
		return "InvalidContent"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrOpenFailure):
		return "OpenFailure"
	case errors.Is(err, ErrUseAfterClose):
		return "UseAfterClose"
	case errors.Is(err, ErrStorageFailure):
		return "StorageFailure"
	default:
		return "Unknown"
	}
}
