// Package session bundles the catalog, blob store, dedup engine and search
// index behind one handle with an explicit open/close lifetime.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/yiblet/clipvault/internal/blobstore"
	"github.com/yiblet/clipvault/internal/dedup"
	"github.com/yiblet/clipvault/internal/logging"
	"github.com/yiblet/clipvault/internal/search"
	"github.com/yiblet/clipvault/internal/store"
	"github.com/yiblet/clipvault/internal/store/dbstore"
)

// Options configures a session. Zero values select the defaults.
type Options struct {
	MaxContentBytes int64
	InlineTextLimit int
	DedupeTouch     dedup.TouchPolicy
	Logger          *slog.Logger
}

// Session is an open store. It is safe for concurrent use; Close waits for
// in-flight operations to finish.
type Session struct {
	mu     sync.RWMutex
	closed bool

	id       string
	dbPath   string
	blobsDir string
	maxBytes int64

	catalog store.Catalog
	blobs   *blobstore.BlobStore
	engine  *dedup.Engine
	index   *search.Index
	log     *slog.Logger
}

// Stats summarizes an open session.
type Stats struct {
	SessionID string
	DBPath    string
	BlobsDir  string
	Items     int
}

// Open opens the catalog at dbPath and the blob directory at blobsDir,
// creating both when missing.
func Open(dbPath, blobsDir string, opts Options) (*Session, error) {
	if dbPath == "" || blobsDir == "" {
		return nil, fmt.Errorf("%w: database and blob paths are required", store.ErrOpenFailure)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("%w: create database directory: %w", store.ErrOpenFailure, err)
	}

	blobs, err := blobstore.New(blobsDir)
	if err != nil {
		return nil, fmt.Errorf("%w: open blob directory: %w", store.ErrOpenFailure, err)
	}

	catalog, err := dbstore.NewSQLiteCatalog(dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrOpenFailure, err)
	}

	s := New(catalog, blobs, opts)
	s.dbPath = dbPath
	s.blobsDir = blobsDir
	s.log.Info("session opened", "db", dbPath, "blobs", blobsDir)
	return s, nil
}

// New builds a session over an already open catalog and blob store.
func New(catalog store.Catalog, blobs *blobstore.BlobStore, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	id := uuid.NewString()
	logger = logger.With("session", id)

	maxBytes := opts.MaxContentBytes
	if maxBytes <= 0 {
		maxBytes = dedup.DefaultMaxContentBytes
	}

	return &Session{
		id:       id,
		blobsDir: blobs.Root(),
		maxBytes: maxBytes,
		catalog:  catalog,
		blobs:    blobs,
		engine: dedup.NewEngine(catalog, blobs, dedup.Options{
			MaxContentBytes: opts.MaxContentBytes,
			InlineTextLimit: opts.InlineTextLimit,
			Touch:           opts.DedupeTouch,
		}, logger),
		index: search.NewIndex(catalog),
		log:   logger,
	}
}

// ID returns the session's unique id, attached to every log line.
func (s *Session) ID() string {
	return s.id
}

// enter takes the read side of the lifetime lock. Callers must call the
// returned func when done.
func (s *Session) enter() (func(), error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, store.ErrUseAfterClose
	}
	return s.mu.RUnlock, nil
}

// report logs storage failures before handing err back.
func (s *Session) report(op string, err error) error {
	if errors.Is(err, store.ErrStorageFailure) {
		s.log.Error("storage failure", "op", op, "error", err)
	}
	return err
}

// AddItem stores a capture as a new item, even when identical content exists.
func (s *Session) AddItem(item *store.NewItem) (int64, error) {
	done, err := s.enter()
	if err != nil {
		return 0, err
	}
	defer done()

	id, err := s.engine.Add(item)
	return id, s.report("add item", err)
}

// DedupeInsert stores a capture or returns the id of the live item holding
// the same content.
func (s *Session) DedupeInsert(item *store.NewItem) (int64, error) {
	done, err := s.enter()
	if err != nil {
		return 0, err
	}
	defer done()

	id, err := s.engine.DedupeInsert(item)
	return id, s.report("dedupe insert", err)
}

// Search returns at most limit items matching query. A blank query lists the
// most recent items, pinned first.
func (s *Session) Search(query string, limit int) ([]*store.Item, error) {
	done, err := s.enter()
	if err != nil {
		return nil, err
	}
	defer done()

	items, err := s.index.Search(query, limit)
	return items, s.report("search", err)
}

// Get returns an item by id.
func (s *Session) Get(id int64) (*store.Item, error) {
	done, err := s.enter()
	if err != nil {
		return nil, err
	}
	defer done()

	item, err := s.catalog.Get(id)
	return item, s.report("get item", err)
}

// Content returns the full payload of an item.
func (s *Session) Content(id int64) ([]byte, error) {
	done, err := s.enter()
	if err != nil {
		return nil, err
	}
	defer done()

	item, err := s.catalog.Get(id)
	if err != nil {
		return nil, s.report("get content", err)
	}
	data, err := s.engine.Content(item)
	return data, s.report("get content", err)
}

// Delete removes an item. It reports false, without error, when the id is
// already absent.
func (s *Session) Delete(id int64) (bool, error) {
	done, err := s.enter()
	if err != nil {
		return false, err
	}
	defer done()

	ok, err := s.engine.Delete(id)
	return ok, s.report("delete item", err)
}

// Pin sets or clears the pin flag. A missing id is ErrNotFound.
func (s *Session) Pin(id int64, pinned bool) error {
	done, err := s.enter()
	if err != nil {
		return err
	}
	defer done()

	ok, err := s.catalog.SetPinned(id, pinned)
	if err != nil {
		return s.report("pin item", err)
	}
	if !ok {
		return store.NotFoundError(id)
	}
	return nil
}

// AddTag appends a tag to an item.
func (s *Session) AddTag(id int64, tag string) error {
	done, err := s.enter()
	if err != nil {
		return err
	}
	defer done()

	return s.report("add tag", s.engine.AddTag(id, tag))
}

// RemoveTag removes a tag from an item.
func (s *Session) RemoveTag(id int64, tag string) error {
	done, err := s.enter()
	if err != nil {
		return err
	}
	defer done()

	return s.report("remove tag", s.engine.RemoveTag(id, tag))
}

// Stats returns a summary of the session.
func (s *Session) Stats() (*Stats, error) {
	done, err := s.enter()
	if err != nil {
		return nil, err
	}
	defer done()

	n, err := s.catalog.Count()
	if err != nil {
		return nil, s.report("stats", err)
	}
	return &Stats{
		SessionID: s.id,
		DBPath:    s.dbPath,
		BlobsDir:  s.blobsDir,
		Items:     n,
	}, nil
}

// ResolveContent turns a boundary content reference into bytes. For Text
// and Rtf the reference is the content itself. For Image and File it is
// either a blob reference already in this store or a path to a file.
func (s *Session) ResolveContent(kind store.Kind, ref string) ([]byte, error) {
	done, err := s.enter()
	if err != nil {
		return nil, err
	}
	defer done()

	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %d", store.ErrInvalidContent, uint8(kind))
	}
	if ref == "" {
		return nil, fmt.Errorf("%w: empty content reference", store.ErrInvalidContent)
	}
	if kind.IsText() {
		return []byte(ref), nil
	}
	if blobstore.IsRef(ref) {
		return s.blobs.Get(ref)
	}

	info, err := os.Stat(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidContent, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", store.ErrInvalidContent, ref)
	}
	if info.Size() > s.maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", store.ErrInvalidContent, ref, info.Size(), s.maxBytes)
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidContent, err)
	}
	return data, nil
}

// Close flushes and releases the store. Closing twice returns ErrUseAfterClose.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrUseAfterClose
	}
	s.closed = true

	if err := s.catalog.Close(); err != nil {
		s.log.Error("close failed", "error", err)
		if errors.Is(err, store.ErrStorageFailure) {
			return err
		}
		return store.StorageError("close", err)
	}
	s.log.Info("session closed")
	return nil
}
