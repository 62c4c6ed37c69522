// Package memstore provides an in-memory implementation of store.Catalog.
// It mirrors the SQLite catalog's semantics and is used for fast unit tests
// and the demo. Data is not persisted.
package memstore

import (
	"errors"
	"sort"
	"sync"

	"github.com/yiblet/clipvault/internal/search"
	"github.com/yiblet/clipvault/internal/store"
)

var errClosed = errors.New("catalog closed")

// MemoryCatalog is an in-memory store.Catalog. It is thread-safe; write
// transactions are serialized by a single mutex.
type MemoryCatalog struct {
	mu     sync.RWMutex
	rows   map[int64]*row
	nextID int64
	closed bool
}

// row holds an item together with its catalog-private columns.
type row struct {
	item       *store.Item
	dedupeKey  string
	searchText string
}

func (r *row) clone() *row {
	c := *r
	c.item = r.item.Clone()
	return &c
}

// NewMemoryCatalog creates an empty catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		rows:   make(map[int64]*row),
		nextID: 1,
	}
}

// Update runs fn against a private copy of the rows and publishes the copy
// only if fn succeeds.
func (m *MemoryCatalog) Update(fn func(tx store.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return store.StorageError("update", errClosed)
	}

	tx := &memTx{
		rows:   make(map[int64]*row, len(m.rows)),
		nextID: m.nextID,
	}
	for id, r := range m.rows {
		tx.rows[id] = r
	}

	if err := fn(tx); err != nil {
		return err
	}

	m.rows = tx.rows
	m.nextID = tx.nextID
	return nil
}

// Get retrieves a single item by id.
func (m *MemoryCatalog) Get(id int64) (*store.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rows[id]
	if !ok {
		return nil, store.NotFoundError(id)
	}
	return r.item.Clone(), nil
}

// FindByFingerprint returns the lowest id carrying the fingerprint.
func (m *MemoryCatalog) FindByFingerprint(fingerprint string) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := findByFingerprint(m.rows, fingerprint)
	return id, ok, nil
}

// Delete removes an item by id. Absent ids report false.
func (m *MemoryCatalog) Delete(id int64) (*store.Item, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rows[id]
	if !ok {
		return nil, false, nil
	}
	delete(m.rows, id)
	return r.item.Clone(), true, nil
}

// SetPinned updates the pin flag of an item.
func (m *MemoryCatalog) SetPinned(id int64, pinned bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rows[id]
	if !ok {
		return false, nil
	}
	c := r.clone()
	c.item.Pinned = pinned
	m.rows[id] = c
	return true, nil
}

// CountRefs counts items stored under the blob ref.
func (m *MemoryCatalog) CountRefs(ref string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return countRefs(m.rows, ref), nil
}

// Search filters rows by their index document and sorts them by relevance.
func (m *MemoryCatalog) Search(query *store.SearchQuery) ([]*store.Item, error) {
	if query.Limit <= 0 {
		return []*store.Item{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]*store.Item, 0)
	for _, r := range m.rows {
		if search.Matches(r.searchText, query.Terms) {
			results = append(results, r.item.Clone())
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return search.Less(results[i], results[j])
	})

	if len(results) > query.Limit {
		results = results[:query.Limit]
	}
	return results, nil
}

// Count returns the number of items.
func (m *MemoryCatalog) Count() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows), nil
}

// Close marks the catalog closed; later transactions fail.
func (m *MemoryCatalog) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// memTx is the staged view used inside Update.
type memTx struct {
	rows   map[int64]*row
	nextID int64
}

func (t *memTx) FindByFingerprint(fingerprint string) (int64, bool, error) {
	id, ok := findByFingerprint(t.rows, fingerprint)
	return id, ok, nil
}

func (t *memTx) Get(id int64) (*store.Item, error) {
	r, ok := t.rows[id]
	if !ok {
		return nil, store.NotFoundError(id)
	}
	return r.item.Clone(), nil
}

func (t *memTx) Insert(rec *store.Record) (int64, error) {
	if rec.DedupeKey != "" {
		for _, r := range t.rows {
			if r.dedupeKey == rec.DedupeKey {
				return 0, store.ErrDuplicateKey
			}
		}
	}

	id := t.nextID
	t.nextID++

	item := &store.Item{
		ID:          id,
		Kind:        rec.Kind,
		ContentRef:  rec.ContentRef,
		InBlob:      rec.InBlob,
		SourceApp:   rec.SourceApp,
		CreatedAt:   rec.CreatedAt,
		Tags:        append([]string{}, rec.Tags...),
		Fingerprint: rec.Fingerprint,
	}
	t.rows[id] = &row{
		item:       item.Clone(),
		dedupeKey:  rec.DedupeKey,
		searchText: rec.SearchText,
	}
	return id, nil
}

func (t *memTx) Touch(id int64, seenAt int64) error {
	r, ok := t.rows[id]
	if !ok {
		return store.NotFoundError(id)
	}
	if r.item.LastSeenAt != nil && *r.item.LastSeenAt >= seenAt {
		return nil
	}
	c := r.clone()
	c.item.LastSeenAt = &seenAt
	t.rows[id] = c
	return nil
}

func (t *memTx) CountRefs(ref string) (int, error) {
	return countRefs(t.rows, ref), nil
}

func (t *memTx) SetTags(id int64, tags []string, searchText string) error {
	r, ok := t.rows[id]
	if !ok {
		return store.NotFoundError(id)
	}
	c := r.clone()
	c.item.Tags = append([]string{}, tags...)
	c.searchText = searchText
	t.rows[id] = c
	return nil
}

func countRefs(rows map[int64]*row, ref string) int {
	n := 0
	for _, r := range rows {
		if r.item.InBlob && r.item.ContentRef == ref {
			n++
		}
	}
	return n
}

func findByFingerprint(rows map[int64]*row, fingerprint string) (int64, bool) {
	var best int64
	found := false
	for id, r := range rows {
		if r.item.Fingerprint != fingerprint {
			continue
		}
		if !found || id < best {
			best = id
			found = true
		}
	}
	return best, found
}
