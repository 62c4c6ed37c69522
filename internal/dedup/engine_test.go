package dedup

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yiblet/clipvault/internal/blobstore"
	"github.com/yiblet/clipvault/internal/search"
	"github.com/yiblet/clipvault/internal/store"
	"github.com/yiblet/clipvault/internal/store/memstore"
)

func newTestEngine(t *testing.T, opts Options) (*Engine, *memstore.MemoryCatalog, *blobstore.BlobStore) {
	t.Helper()
	catalog := memstore.NewMemoryCatalog()
	blobs, err := blobstore.New(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	return NewEngine(catalog, blobs, opts, nil), catalog, blobs
}

func text(s string, at int64) *store.NewItem {
	return &store.NewItem{Kind: store.KindText, Content: []byte(s), CreatedAt: at}
}

func TestDedupeInsertHello(t *testing.T) {
	e, catalog, _ := newTestEngine(t, Options{})

	id, err := e.DedupeInsert(text("hello", 100))
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	again, err := e.DedupeInsert(text("hello", 200))
	require.NoError(t, err)
	assert.Equal(t, int64(1), again)

	n, err := catalog.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	item, err := catalog.Get(1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), item.CreatedAt)
	require.NotNil(t, item.LastSeenAt)
	assert.Equal(t, int64(200), *item.LastSeenAt)

	results, err := search.NewIndex(catalog).Search("hell", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)
}

func TestDedupeInsertTouchNone(t *testing.T) {
	e, catalog, _ := newTestEngine(t, Options{Touch: TouchNone})

	_, err := e.DedupeInsert(text("hello", 100))
	require.NoError(t, err)
	_, err = e.DedupeInsert(text("hello", 200))
	require.NoError(t, err)

	item, err := catalog.Get(1)
	require.NoError(t, err)
	assert.Nil(t, item.LastSeenAt)
}

func TestLastSeenNeverMovesBack(t *testing.T) {
	e, catalog, _ := newTestEngine(t, Options{})

	for _, at := range []int64{100, 300, 200} {
		_, err := e.DedupeInsert(text("x", at))
		require.NoError(t, err)
	}
	item, err := catalog.Get(1)
	require.NoError(t, err)
	assert.Equal(t, int64(300), *item.LastSeenAt)
}

func TestAddNeverMerges(t *testing.T) {
	e, catalog, _ := newTestEngine(t, Options{})

	a, err := e.Add(text("same", 1))
	require.NoError(t, err)
	b, err := e.Add(text("same", 2))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	// A later dedupe insert resolves to the oldest copy.
	c, err := e.DedupeInsert(text("same", 3))
	require.NoError(t, err)
	assert.Equal(t, a, c)

	n, _ := catalog.Count()
	assert.Equal(t, 2, n)
}

func TestInvalidContent(t *testing.T) {
	e, catalog, _ := newTestEngine(t, Options{MaxContentBytes: 16})

	cases := map[string]*store.NewItem{
		"empty":        text("", 1),
		"blank":        text(" \n\t ", 1),
		"oversized":    text(strings.Repeat("a", 17), 1),
		"bad utf8":     {Kind: store.KindText, Content: []byte{0xff}},
		"unknown kind": {Kind: store.Kind(7), Content: []byte("x")},
		"empty tag":    {Kind: store.KindText, Content: []byte("x"), Tags: []string{" "}},
		"nil item":     nil,
	}
	for name, item := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.DedupeInsert(item)
			assert.ErrorIs(t, err, store.ErrInvalidContent)
		})
	}

	n, _ := catalog.Count()
	assert.Zero(t, n)
}

func TestLargeTextGoesToBlob(t *testing.T) {
	e, catalog, blobs := newTestEngine(t, Options{InlineTextLimit: 8})

	small, err := e.Add(text("short", 1))
	require.NoError(t, err)
	large, err := e.Add(text("a much longer body", 2))
	require.NoError(t, err)

	item, _ := catalog.Get(small)
	assert.False(t, item.InBlob)
	assert.Equal(t, "short", item.ContentRef)

	item, _ = catalog.Get(large)
	assert.True(t, item.InBlob)
	assert.True(t, blobs.Exists(item.ContentRef))

	content, err := e.Content(item)
	require.NoError(t, err)
	assert.Equal(t, "a much longer body", string(content))

	results, err := search.NewIndex(catalog).Search("LONGER", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, large, results[0].ID)
}

func TestDeleteReclaimsBlobs(t *testing.T) {
	e, catalog, blobs := newTestEngine(t, Options{})
	png := []byte("\x89PNG shared")

	a, err := e.Add(&store.NewItem{Kind: store.KindImage, Content: png, CreatedAt: 1})
	require.NoError(t, err)
	b, err := e.Add(&store.NewItem{Kind: store.KindImage, Content: png, CreatedAt: 2})
	require.NoError(t, err)

	item, _ := catalog.Get(a)
	ref := item.ContentRef

	ok, err := e.Delete(a)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = blobs.Get(ref)
	assert.NoError(t, err, "blob still referenced by the second item")

	ok, err = e.Delete(b)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = blobs.Get(ref)
	assert.ErrorIs(t, err, store.ErrNotFound)

	ok, err = e.Delete(b)
	require.NoError(t, err)
	assert.False(t, ok)
}

// failingInserts is a catalog whose transactions reject every insert.
type failingInserts struct {
	*memstore.MemoryCatalog
}

func (f failingInserts) Update(fn func(tx store.Tx) error) error {
	return f.MemoryCatalog.Update(func(tx store.Tx) error {
		return fn(rejectInsertTx{tx})
	})
}

type rejectInsertTx struct {
	store.Tx
}

func (rejectInsertTx) Insert(*store.Record) (int64, error) {
	return 0, store.StorageError("insert item", errors.New("disk full"))
}

func TestFailedInsertLeavesNoBlob(t *testing.T) {
	blobs, err := blobstore.New(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	e := NewEngine(failingInserts{memstore.NewMemoryCatalog()}, blobs, Options{}, nil)

	payload := []byte("file bytes")
	_, err = e.Add(&store.NewItem{Kind: store.KindFile, Content: payload, CreatedAt: 1})
	assert.ErrorIs(t, err, store.ErrStorageFailure)
	assert.False(t, blobs.Exists(blobstore.Ref(payload)))
}

func TestFailedInsertKeepsSharedBlob(t *testing.T) {
	catalog := memstore.NewMemoryCatalog()
	blobs, err := blobstore.New(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)

	payload := []byte("shared file bytes")
	good := NewEngine(catalog, blobs, Options{}, nil)
	_, err = good.Add(&store.NewItem{Kind: store.KindFile, Content: payload, CreatedAt: 1})
	require.NoError(t, err)

	bad := NewEngine(failingInserts{catalog}, blobs, Options{}, nil)
	_, err = bad.Add(&store.NewItem{Kind: store.KindFile, Content: payload, CreatedAt: 2})
	assert.ErrorIs(t, err, store.ErrStorageFailure)
	assert.True(t, blobs.Exists(blobstore.Ref(payload)), "blob still used by the first item")
}

func TestMergeWritesNoBlob(t *testing.T) {
	e, catalog, blobs := newTestEngine(t, Options{InlineTextLimit: 16})

	id, err := e.DedupeInsert(text("a b", 1))
	require.NoError(t, err)

	// Normalizes to the same text but is too long to keep inline.
	padded := "a" + strings.Repeat(" ", 64) + "b"
	again, err := e.DedupeInsert(text(padded, 2))
	require.NoError(t, err)
	assert.Equal(t, id, again)

	assert.False(t, blobs.Exists(blobstore.Ref([]byte(padded))))
	n, _ := catalog.Count()
	assert.Equal(t, 1, n)
}

func TestTags(t *testing.T) {
	e, catalog, _ := newTestEngine(t, Options{})
	app := "Preview"

	id, err := e.Add(&store.NewItem{
		Kind:      store.KindImage,
		Content:   []byte("img"),
		SourceApp: &app,
		CreatedAt: 1,
		Tags:      []string{"work", "work", " receipts "},
	})
	require.NoError(t, err)

	item, _ := catalog.Get(id)
	assert.Equal(t, []string{"work", "receipts"}, item.Tags)

	require.NoError(t, e.AddTag(id, "Travel"))
	require.NoError(t, e.AddTag(id, "Travel"))
	require.NoError(t, e.RemoveTag(id, "work"))
	require.NoError(t, e.RemoveTag(id, "missing"))

	item, _ = catalog.Get(id)
	assert.Equal(t, []string{"receipts", "Travel"}, item.Tags)

	ix := search.NewIndex(catalog)
	results, err := ix.Search("travel", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = ix.Search("work", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = ix.Search("preview", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	assert.ErrorIs(t, e.AddTag(99, "x"), store.ErrNotFound)
	assert.ErrorIs(t, e.AddTag(id, ""), store.ErrInvalidContent)
}

func TestConcurrentDedupeInsert(t *testing.T) {
	e, catalog, _ := newTestEngine(t, Options{})

	const workers = 16
	ids := make([]int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := e.DedupeInsert(&store.NewItem{
				Kind:      store.KindImage,
				Content:   []byte("racing bytes"),
				CreatedAt: int64(i),
			})
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Equal(t, ids[0], ids[i], fmt.Sprintf("worker %d", i))
	}
	n, _ := catalog.Count()
	assert.Equal(t, 1, n)
}

// raceDeleteAndInsert repeatedly deletes the only item holding a blob while
// another goroutine stores the same bytes, then checks that every surviving
// item can still read its content.
func raceDeleteAndInsert(t *testing.T, deleter, inserter *Engine, catalog store.Catalog, dedupe bool) {
	t.Helper()
	payload := []byte("\x89PNG contested pixels")

	for round := 0; round < 50; round++ {
		first, err := deleter.Add(&store.NewItem{Kind: store.KindImage, Content: payload, CreatedAt: int64(round)})
		require.NoError(t, err)

		var (
			wg     sync.WaitGroup
			second int64
			addErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := deleter.Delete(first)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			item := &store.NewItem{Kind: store.KindImage, Content: payload, CreatedAt: int64(round)}
			if dedupe {
				second, addErr = inserter.DedupeInsert(item)
			} else {
				second, addErr = inserter.Add(item)
			}
		}()
		wg.Wait()
		require.NoError(t, addErr)

		item, err := catalog.Get(second)
		if errors.Is(err, store.ErrNotFound) {
			// The dedupe insert merged into the row the deleter then removed.
			continue
		}
		require.NoError(t, err)
		content, err := inserter.Content(item)
		require.NoError(t, err, "round %d: item %d lost its blob", round, second)
		assert.Equal(t, payload, content)

		_, err = inserter.Delete(second)
		require.NoError(t, err)
	}
}

func TestDeleteRacesInsert(t *testing.T) {
	for _, dedupe := range []bool{false, true} {
		t.Run(fmt.Sprintf("dedupe=%v", dedupe), func(t *testing.T) {
			e, catalog, _ := newTestEngine(t, Options{})
			raceDeleteAndInsert(t, e, e, catalog, dedupe)
		})
	}
}

func TestDeleteRacesInsertAcrossBlobStores(t *testing.T) {
	// Two engines with their own BlobStore values on one directory, sharing
	// only the catalog, as two sessions on one store do.
	catalog := memstore.NewMemoryCatalog()
	root := filepath.Join(t.TempDir(), "blobs")
	b1, err := blobstore.New(root)
	require.NoError(t, err)
	b2, err := blobstore.New(root)
	require.NoError(t, err)

	e1 := NewEngine(catalog, b1, Options{}, nil)
	e2 := NewEngine(catalog, b2, Options{}, nil)
	raceDeleteAndInsert(t, e1, e2, catalog, false)
}
