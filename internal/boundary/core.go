package boundary

import (
	"fmt"
	"sync"

	"github.com/yiblet/clipvault/internal/session"
	"github.com/yiblet/clipvault/internal/store"
)

// Core maps opaque integer handles to open sessions and runs boundary calls
// against them. Handles are never reused, so a freed handle keeps failing
// with StatusUseAfterClose instead of reaching another session.
type Core struct {
	mu      sync.Mutex
	next    uintptr
	entries map[uintptr]*entry
	opts    session.Options
}

type entry struct {
	sess    *session.Session
	mu      sync.Mutex
	lastErr string
}

// NewCore creates an empty handle table. opts applies to every session it opens.
func NewCore(opts session.Options) *Core {
	return &Core{
		entries: make(map[uintptr]*entry),
		opts:    opts,
	}
}

// Open opens a session and returns its handle.
func (c *Core) Open(dbPath, blobsDir string) (uintptr, error) {
	sess, err := session.Open(dbPath, blobsDir, c.opts)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	c.entries[c.next] = &entry{sess: sess}
	return c.next, nil
}

// Free closes the session behind h. It reports false for unknown or
// already freed handles.
func (c *Core) Free(h uintptr) bool {
	c.mu.Lock()
	e, ok := c.entries[h]
	delete(c.entries, h)
	c.mu.Unlock()

	if !ok {
		return false
	}
	e.sess.Close()
	return true
}

func (c *Core) lookup(h uintptr) (*entry, error) {
	if h == 0 {
		return nil, fmt.Errorf("%w: null handle", ErrInvalidArgument)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[h]
	if !ok {
		return nil, store.ErrUseAfterClose
	}
	return e, nil
}

// fail records err as the handle's last error and returns its status.
func (c *Core) fail(e *entry, err error) int32 {
	if e != nil {
		e.mu.Lock()
		e.lastErr = err.Error()
		e.mu.Unlock()
	}
	return Status(err)
}

// LastError returns the message of the most recent failure on h, or "".
func (c *Core) LastError(h uintptr) string {
	e, err := c.lookup(h)
	if err != nil {
		return err.Error()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Insert adds an item and returns its id, or a negative status. With dedupe
// set, content already held by a live item returns that item's id.
func (c *Core) Insert(h uintptr, kind int32, contentRef string, sourceApp *string, createdAt int64, dedupe bool) int64 {
	e, err := c.lookup(h)
	if err != nil {
		return int64(c.fail(e, err))
	}

	k, err := DecodeKind(kind)
	if err != nil {
		return int64(c.fail(e, err))
	}
	content, err := e.sess.ResolveContent(k, contentRef)
	if err != nil {
		return int64(c.fail(e, err))
	}

	item := &store.NewItem{
		Kind:      k,
		Content:   content,
		SourceApp: sourceApp,
		CreatedAt: createdAt,
	}

	var id int64
	if dedupe {
		id, err = e.sess.DedupeInsert(item)
	} else {
		id, err = e.sess.AddItem(item)
	}
	if err != nil {
		return int64(c.fail(e, err))
	}
	return id
}

// Search runs a query. The status is StatusOK on success.
func (c *Core) Search(h uintptr, query string, limit int32) ([]*Record, int32) {
	e, err := c.lookup(h)
	if err != nil {
		return nil, c.fail(e, err)
	}
	items, err := e.sess.Search(query, int(limit))
	if err != nil {
		return nil, c.fail(e, err)
	}
	records := make([]*Record, len(items))
	for i, item := range items {
		records[i] = EncodeItem(item)
	}
	return records, StatusOK
}

// GetItem fetches one item.
func (c *Core) GetItem(h uintptr, id int64) (*Record, int32) {
	e, err := c.lookup(h)
	if err != nil {
		return nil, c.fail(e, err)
	}
	item, err := e.sess.Get(id)
	if err != nil {
		return nil, c.fail(e, err)
	}
	return EncodeItem(item), StatusOK
}

// Content returns the item's bytes: the text itself for inline items, the
// blob contents otherwise.
func (c *Core) Content(h uintptr, id int64) ([]byte, int32) {
	e, err := c.lookup(h)
	if err != nil {
		return nil, c.fail(e, err)
	}
	data, err := e.sess.Content(id)
	if err != nil {
		return nil, c.fail(e, err)
	}
	return data, StatusOK
}

// DeleteItem returns 1 when a row was removed, 0 when the id was absent,
// and a negative status on failure.
func (c *Core) DeleteItem(h uintptr, id int64) int32 {
	e, err := c.lookup(h)
	if err != nil {
		return c.fail(e, err)
	}
	ok, err := e.sess.Delete(id)
	if err != nil {
		return c.fail(e, err)
	}
	if !ok {
		return 0
	}
	return 1
}

// PinItem sets the pin flag and returns 1, or a negative status.
func (c *Core) PinItem(h uintptr, id int64, pinned bool) int32 {
	e, err := c.lookup(h)
	if err != nil {
		return c.fail(e, err)
	}
	if err := e.sess.Pin(id, pinned); err != nil {
		return c.fail(e, err)
	}
	return 1
}

// Close frees every open handle.
func (c *Core) Close() {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[uintptr]*entry)
	c.mu.Unlock()

	for _, e := range entries {
		e.sess.Close()
	}
}
