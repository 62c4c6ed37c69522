// Package blobstore stores binary and large payloads as content-addressed
// files. A blob is named by the SHA-256 of its bytes, so identical payloads
// share one file and putting them again is a no-op.
//
// The store keeps no locks of its own. Several sessions, possibly in
// different processes, may share one directory, so Put and
// DeleteIfUnreferenced are meant to run inside a catalog write transaction:
// the catalog's write lock is what orders a put-then-insert against a
// count-then-remove of the same content.
package blobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yiblet/clipvault/internal/store"
)

// RefPrefix starts every blob reference.
const RefPrefix = "sha256:"

const tempPattern = ".tmp-*"

// staleTempAge is how old a temp file must be before New removes it. Younger
// files may belong to a write still running in another process.
const staleTempAge = time.Hour

// RefCounter reports how many live items reference a blob. Pass the write
// transaction the removal runs in, not the catalog itself.
type RefCounter interface {
	CountRefs(ref string) (int, error)
}

// BlobStore is a directory of content-addressed files. Files live at
// <root>/<first two hex digits>/<hex digest>.
type BlobStore struct {
	root string
}

// New opens the blob directory, creating it when missing, and removes
// temporary files left behind by interrupted writes.
func New(root string) (*BlobStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	b := &BlobStore{root: root}
	if err := b.sweepTemp(); err != nil {
		return nil, err
	}
	return b, nil
}

// Root returns the root directory path
func (b *BlobStore) Root() string {
	return b.root
}

// Ref returns the reference data would be stored under.
func Ref(data []byte) string {
	sum := sha256.Sum256(data)
	return RefPrefix + hex.EncodeToString(sum[:])
}

// IsRef reports whether s is syntactically a blob reference.
func IsRef(s string) bool {
	_, err := parseRef(s)
	return err == nil
}

// Put stores data and returns its reference. created is false when the blob
// already existed, in which case nothing is written.
func (b *BlobStore) Put(data []byte) (ref string, created bool, err error) {
	ref = Ref(data)
	path, _ := b.path(ref)

	if _, err := os.Stat(path); err == nil {
		return ref, false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", false, store.StorageError("stat blob", err)
	}

	if err := writeAtomic(path, data); err != nil {
		return "", false, store.StorageError("write blob", err)
	}
	return ref, true, nil
}

// Get reads the whole blob.
func (b *BlobStore) Get(ref string) ([]byte, error) {
	path, err := b.path(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("blob %s: %w", ref, store.ErrNotFound)
		}
		return nil, store.StorageError("read blob", err)
	}
	return data, nil
}

// Open returns a reader over the blob. Caller is responsible for closing it.
func (b *BlobStore) Open(ref string) (io.ReadSeekCloser, error) {
	path, err := b.path(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("blob %s: %w", ref, store.ErrNotFound)
		}
		return nil, store.StorageError("open blob", err)
	}
	return f, nil
}

// Exists reports whether the blob file is present.
func (b *BlobStore) Exists(ref string) bool {
	path, err := b.path(ref)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Remove deletes a blob file unconditionally. Missing files are not an error.
// Only blobs no committed item can reference may be removed this way, such
// as a file written by a transaction that never committed.
func (b *BlobStore) Remove(ref string) error {
	path, err := b.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return store.StorageError("remove blob", err)
	}
	return nil
}

// DeleteIfUnreferenced removes the blob when no live item references it.
// Called inside a catalog write transaction, an insert of the same content
// either committed before and is counted, or runs after and writes the file
// again.
func (b *BlobStore) DeleteIfUnreferenced(ref string, refs RefCounter) (bool, error) {
	if _, err := parseRef(ref); err != nil {
		return false, err
	}

	n, err := refs.CountRefs(ref)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if err := b.Remove(ref); err != nil {
		return false, err
	}
	return true, nil
}

// path maps a reference to its file, rejecting anything that is not a
// well-formed digest so references can never escape the root.
func (b *BlobStore) path(ref string) (string, error) {
	digest, err := parseRef(ref)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.root, digest[:2], digest), nil
}

// sweepTemp removes leftovers of writes interrupted before their rename.
// d.Info can fail when another process renamed the file meanwhile.
func (b *BlobStore) sweepTemp() error {
	return filepath.WalkDir(b.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(tempPattern, d.Name()); !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if time.Since(info.ModTime()) < staleTempAge {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	})
}

// writeAtomic writes data to a temp file beside path and renames it into
// place, so a crash never leaves a partial blob under its final name.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

func parseRef(ref string) (string, error) {
	digest, ok := strings.CutPrefix(ref, RefPrefix)
	if !ok || len(digest) != sha256.Size*2 {
		return "", fmt.Errorf("malformed blob reference %q: %w", ref, store.ErrNotFound)
	}
	if _, err := hex.DecodeString(digest); err != nil || strings.ToLower(digest) != digest {
		return "", fmt.Errorf("malformed blob reference %q: %w", ref, store.ErrNotFound)
	}
	return digest, nil
}
