package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yiblet/clipvault/internal/blobstore"
	"github.com/yiblet/clipvault/internal/store"
	"github.com/yiblet/clipvault/internal/store/dbstore"
)

func openTestSession(t *testing.T) *Session {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "clip.db"), filepath.Join(dir, "blobs"), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func textItem(s string, at int64) *store.NewItem {
	return &store.NewItem{Kind: store.KindText, Content: []byte(s), CreatedAt: at}
}

func ids(items []*store.Item) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestHelloScenario(t *testing.T) {
	s := openTestSession(t)

	id, err := s.DedupeInsert(textItem("hello", 100))
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	again, err := s.DedupeInsert(textItem("hello", 200))
	require.NoError(t, err)
	assert.Equal(t, int64(1), again)

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Items)

	item, err := s.Get(1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), item.CreatedAt)

	results, err := s.Search("hell", 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(results))
}

func TestAddItemTwiceDistinctIDs(t *testing.T) {
	s := openTestSession(t)

	a, err := s.AddItem(textItem("dup", 1))
	require.NoError(t, err)
	b, err := s.AddItem(textItem("dup", 2))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPinnedRankFirst(t *testing.T) {
	s := openTestSession(t)

	var all []int64
	for i := int64(1); i <= 5; i++ {
		id, err := s.AddItem(textItem(fmt.Sprintf("note %d", i), i*10))
		require.NoError(t, err)
		all = append(all, id)
	}
	require.NoError(t, s.Pin(all[0], true))
	require.NoError(t, s.Pin(all[2], true))

	results, err := s.Search("", 10)
	require.NoError(t, err)
	// pinned by created_at desc, then unpinned by created_at desc
	assert.Equal(t, []int64{all[2], all[0], all[4], all[3], all[1]}, ids(results))

	require.NoError(t, s.Pin(all[2], false))
	results, err = s.Search("  ", 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{all[0], all[4]}, ids(results))

	assert.ErrorIs(t, s.Pin(999, true), store.ErrNotFound)
}

func TestImagePinOrdering(t *testing.T) {
	s := openTestSession(t)

	// B is captured before A so only the pin can put it first.
	b, err := s.AddItem(&store.NewItem{Kind: store.KindImage, Content: []byte("image B"), CreatedAt: 100})
	require.NoError(t, err)
	a, err := s.AddItem(&store.NewItem{Kind: store.KindImage, Content: []byte("image A"), CreatedAt: 200})
	require.NoError(t, err)
	require.NoError(t, s.Pin(b, true))

	results, err := s.Search("", 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{b, a}, ids(results))
}

func TestSearchLimits(t *testing.T) {
	s := openTestSession(t)
	for i := int64(0); i < 3; i++ {
		_, err := s.AddItem(textItem(fmt.Sprintf("Alpha %d", i), i))
		require.NoError(t, err)
	}

	results, err := s.Search("ALPHA", 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = s.Search("alpha 1", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = s.Search("beta", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchLargeLimit(t *testing.T) {
	s := openTestSession(t)
	const n = 1005
	for i := int64(0); i < n; i++ {
		_, err := s.AddItem(textItem(fmt.Sprintf("clip %d", i), i))
		require.NoError(t, err)
	}

	results, err := s.Search("", 5000)
	require.NoError(t, err)
	assert.Len(t, results, n)

	results, err = s.Search("clip", n)
	require.NoError(t, err)
	assert.Len(t, results, n)
}

func TestSearchRtfAndTags(t *testing.T) {
	s := openTestSession(t)

	rtf := `{\rtf1\ansi{\fonttbl\f0\fswiss Helvetica;}\f0\pard Quarterly {\b report}\par}`
	id, err := s.AddItem(&store.NewItem{Kind: store.KindRtf, Content: []byte(rtf), CreatedAt: 1})
	require.NoError(t, err)

	results, err := s.Search("quarterly report", 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, ids(results))

	results, err = s.Search("helvetica", 10)
	require.NoError(t, err)
	assert.Empty(t, results, "font table is not visible text")

	require.NoError(t, s.AddTag(id, "finance"))
	results, err = s.Search("finance", 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, ids(results))

	item, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"finance"}, item.Tags)
}

func TestDeleteAndBlobReclamation(t *testing.T) {
	s := openTestSession(t)
	png := []byte("\x89PNG\r\n shared payload")

	a, err := s.AddItem(&store.NewItem{Kind: store.KindImage, Content: png, CreatedAt: 1})
	require.NoError(t, err)
	b, err := s.AddItem(&store.NewItem{Kind: store.KindImage, Content: png, CreatedAt: 2})
	require.NoError(t, err)

	item, err := s.Get(a)
	require.NoError(t, err)
	ref := item.ContentRef
	assert.Equal(t, blobstore.Ref(png), ref)

	ok, err := s.Delete(a)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := s.ResolveContent(store.KindImage, ref)
	require.NoError(t, err)
	assert.Equal(t, png, data)

	ok, err = s.Delete(b)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.ResolveContent(store.KindImage, ref)
	assert.ErrorIs(t, err, store.ErrNotFound)

	ok, err = s.Delete(b)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Get(b)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestResolveContentFromPath(t *testing.T) {
	s := openTestSession(t)
	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(path, []byte("png bytes"), 0644))

	data, err := s.ResolveContent(store.KindImage, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("png bytes"), data)

	data, err = s.ResolveContent(store.KindText, "literal text")
	require.NoError(t, err)
	assert.Equal(t, []byte("literal text"), data)

	_, err = s.ResolveContent(store.KindFile, filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, store.ErrInvalidContent)

	_, err = s.ResolveContent(store.KindFile, "")
	assert.ErrorIs(t, err, store.ErrInvalidContent)
}

func TestContent(t *testing.T) {
	s := openTestSession(t)

	id, err := s.AddItem(&store.NewItem{Kind: store.KindFile, Content: []byte("file body"), CreatedAt: 1})
	require.NoError(t, err)

	data, err := s.Content(id)
	require.NoError(t, err)
	assert.Equal(t, "file body", string(data))
}

func TestUseAfterClose(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "clip.db"), filepath.Join(dir, "blobs"), Options{})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Close(), store.ErrUseAfterClose)

	_, err = s.AddItem(textItem("x", 1))
	assert.ErrorIs(t, err, store.ErrUseAfterClose)
	_, err = s.Search("", 10)
	assert.ErrorIs(t, err, store.ErrUseAfterClose)
	_, err = s.Delete(1)
	assert.ErrorIs(t, err, store.ErrUseAfterClose)
	assert.ErrorIs(t, s.Pin(1, true), store.ErrUseAfterClose)
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	dbPath, blobsDir := filepath.Join(dir, "clip.db"), filepath.Join(dir, "blobs")

	s, err := Open(dbPath, blobsDir, Options{})
	require.NoError(t, err)
	id, err := s.DedupeInsert(textItem("persist me", 5))
	require.NoError(t, err)
	require.NoError(t, s.Pin(id, true))
	require.NoError(t, s.Close())

	s, err = Open(dbPath, blobsDir, Options{})
	require.NoError(t, err)
	defer s.Close()

	item, err := s.Get(id)
	require.NoError(t, err)
	assert.True(t, item.Pinned)

	again, err := s.DedupeInsert(textItem("persist me", 6))
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestOpenFailure(t *testing.T) {
	dir := t.TempDir()

	// blobs path occupied by a regular file
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	_, err := Open(filepath.Join(dir, "clip.db"), filepath.Join(blocker, "blobs"), Options{})
	assert.ErrorIs(t, err, store.ErrOpenFailure)

	_, err = Open("", filepath.Join(dir, "blobs"), Options{})
	assert.ErrorIs(t, err, store.ErrOpenFailure)

	// catalog written by a newer schema
	dbPath := filepath.Join(dir, "future.db")
	catalog, err := dbstore.NewSQLiteCatalog(dbPath)
	require.NoError(t, err)
	require.NoError(t, catalog.SetMeta("schema_version", fmt.Sprint(dbstore.SchemaVersion+1)))
	require.NoError(t, catalog.Close())

	_, err = Open(dbPath, filepath.Join(dir, "blobs"), Options{})
	assert.ErrorIs(t, err, store.ErrOpenFailure)
}

func TestConcurrentDedupeInsert(t *testing.T) {
	s := openTestSession(t)

	const workers = 8
	results := make([]int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.DedupeInsert(textItem("same clip", int64(i)))
			assert.NoError(t, err)
			results[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range results {
		assert.Equal(t, results[0], id)
	}
	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Items)
}

func TestDeleteRacesAddSameContent(t *testing.T) {
	s := openTestSession(t)
	raceDeleteAndAdd(t, s, s)
}

func TestTwoSessionsShareBlobs(t *testing.T) {
	dir := t.TempDir()
	dbPath, blobsDir := filepath.Join(dir, "clip.db"), filepath.Join(dir, "blobs")

	a, err := Open(dbPath, blobsDir, Options{})
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(dbPath, blobsDir, Options{})
	require.NoError(t, err)
	defer b.Close()

	raceDeleteAndAdd(t, a, b)
}

// raceDeleteAndAdd deletes the last item referencing a blob through one
// session while the other stores the same bytes, and checks the survivor
// can still read its content.
func raceDeleteAndAdd(t *testing.T, deleter, adder *Session) {
	t.Helper()
	payload := []byte("\x89PNG shared between sessions")

	for round := 0; round < 25; round++ {
		first, err := deleter.AddItem(&store.NewItem{Kind: store.KindImage, Content: payload, CreatedAt: int64(round)})
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
			second, addErr = adder.AddItem(&store.NewItem{Kind: store.KindImage, Content: payload, CreatedAt: int64(round)})
		}()
		wg.Wait()
		require.NoError(t, addErr)

		content, err := deleter.Content(second)
		require.NoError(t, err, "round %d: item %d lost its blob", round, second)
		assert.Equal(t, payload, content)

		ok, err := adder.Delete(second)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	// Nothing references the blob any more.
	_, err := deleter.blobs.Get(blobstore.Ref(payload))
	assert.ErrorIs(t, err, store.ErrNotFound)
}
