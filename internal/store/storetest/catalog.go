// Package storetest holds behaviour tests every store.Catalog must pass.
package storetest

import (
	"errors"
	"sync"
	"testing"

	"github.com/yiblet/clipvault/internal/store"
)

// NewCatalog returns a fresh, empty catalog. It is called once per subtest.
type NewCatalog func(t *testing.T) store.Catalog

// Record builds a minimal valid record.
func Record(kind store.Kind, content string, createdAt int64) *store.Record {
	return &store.Record{
		Kind:        kind,
		ContentRef:  content,
		CreatedAt:   createdAt,
		Tags:        []string{},
		Fingerprint: kind.String() + ":" + content,
		SearchText:  content,
	}
}

// Insert commits rec in its own transaction and returns the new id.
func Insert(t *testing.T, c store.Catalog, rec *store.Record) int64 {
	t.Helper()
	var id int64
	err := c.Update(func(tx store.Tx) error {
		var err error
		id, err = tx.Insert(rec)
		return err
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	return id
}

// Run exercises the catalog contract against implementations built by newCatalog.
func Run(t *testing.T, newCatalog NewCatalog) {
	tests := []struct {
		name string
		fn   func(t *testing.T, c store.Catalog)
	}{
		{"InsertAssignsIncreasingIDs", testInsertAssignsIDs},
		{"GetMissing", testGetMissing},
		{"GetRoundTripsFields", testGetFields},
		{"DeleteIsIdempotent", testDelete},
		{"SetPinned", testSetPinned},
		{"FindByFingerprintLowestID", testFindByFingerprint},
		{"DedupeKeyUnique", testDedupeKeyUnique},
		{"RollbackOnError", testRollback},
		{"TouchIsMonotonic", testTouch},
		{"TouchMissing", testTouchMissing},
		{"SetTags", testSetTags},
		{"CountRefs", testCountRefs},
		{"CountRefsInsideTx", testCountRefsInTx},
		{"SearchRanking", testSearchRanking},
		{"SearchTerms", testSearchTerms},
		{"ConcurrentInserts", testConcurrentInserts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCatalog(t)
			defer c.Close()
			tt.fn(t, c)
		})
	}
}

func testInsertAssignsIDs(t *testing.T, c store.Catalog) {
	a := Insert(t, c, Record(store.KindText, "a", 1))
	b := Insert(t, c, Record(store.KindText, "b", 2))
	if a <= 0 || b <= a {
		t.Errorf("ids not increasing: %d then %d", a, b)
	}
	if n, _ := c.Count(); n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}

func testGetMissing(t *testing.T, c store.Catalog) {
	_, err := c.Get(42)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get(42) error = %v, want ErrNotFound", err)
	}
}

func testGetFields(t *testing.T, c store.Catalog) {
	app := "Safari"
	rec := Record(store.KindImage, "sha256:00", 123)
	rec.InBlob = true
	rec.SourceApp = &app
	rec.Tags = []string{"x", "y"}

	id := Insert(t, c, rec)
	item, err := c.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if item.Kind != store.KindImage || item.ContentRef != "sha256:00" || !item.InBlob {
		t.Errorf("content fields mismatch: %+v", item)
	}
	if item.SourceApp == nil || *item.SourceApp != "Safari" {
		t.Errorf("SourceApp = %v, want Safari", item.SourceApp)
	}
	if item.CreatedAt != 123 || item.LastSeenAt != nil || item.Pinned {
		t.Errorf("lifecycle fields mismatch: %+v", item)
	}
	if len(item.Tags) != 2 || item.Tags[0] != "x" || item.Tags[1] != "y" {
		t.Errorf("Tags = %v, want [x y]", item.Tags)
	}
	if item.Fingerprint != rec.Fingerprint {
		t.Errorf("Fingerprint = %q, want %q", item.Fingerprint, rec.Fingerprint)
	}

	noApp := Insert(t, c, Record(store.KindText, "plain", 1))
	item, _ = c.Get(noApp)
	if item.SourceApp != nil {
		t.Errorf("absent SourceApp should stay nil, got %q", *item.SourceApp)
	}
}

func testDelete(t *testing.T, c store.Catalog) {
	id := Insert(t, c, Record(store.KindText, "gone", 1))

	item, ok, err := c.Delete(id)
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	if item.ID != id || item.ContentRef != "gone" {
		t.Errorf("Delete returned %+v", item)
	}

	_, ok, err = c.Delete(id)
	if err != nil || ok {
		t.Errorf("second Delete = %v, %v, want false, nil", ok, err)
	}
	if _, err := c.Get(id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get after delete error = %v", err)
	}
}

func testSetPinned(t *testing.T, c store.Catalog) {
	id := Insert(t, c, Record(store.KindText, "p", 1))

	ok, err := c.SetPinned(id, true)
	if err != nil || !ok {
		t.Fatalf("SetPinned = %v, %v", ok, err)
	}
	item, _ := c.Get(id)
	if !item.Pinned {
		t.Error("item should be pinned")
	}

	ok, err = c.SetPinned(id+100, true)
	if err != nil || ok {
		t.Errorf("SetPinned(missing) = %v, %v, want false, nil", ok, err)
	}
}

func testFindByFingerprint(t *testing.T, c store.Catalog) {
	first := Insert(t, c, Record(store.KindText, "same", 1))
	Insert(t, c, Record(store.KindText, "same", 2))

	id, ok, err := c.FindByFingerprint("text:same")
	if err != nil || !ok || id != first {
		t.Errorf("FindByFingerprint = %d, %v, %v, want %d", id, ok, err, first)
	}

	c.Delete(first)
	id, ok, _ = c.FindByFingerprint("text:same")
	if !ok || id == first {
		t.Errorf("FindByFingerprint after delete = %d, %v", id, ok)
	}

	if _, ok, _ := c.FindByFingerprint("text:none"); ok {
		t.Error("unknown fingerprint should not be found")
	}
}

func testDedupeKeyUnique(t *testing.T, c store.Catalog) {
	rec := Record(store.KindText, "k", 1)
	rec.DedupeKey = rec.Fingerprint
	Insert(t, c, rec)

	dup := Record(store.KindText, "k", 2)
	dup.DedupeKey = dup.Fingerprint
	err := c.Update(func(tx store.Tx) error {
		_, err := tx.Insert(dup)
		return err
	})
	if !errors.Is(err, store.ErrDuplicateKey) {
		t.Errorf("duplicate dedupe key error = %v, want ErrDuplicateKey", err)
	}

	// Rows without a dedupe key never conflict.
	Insert(t, c, Record(store.KindText, "k", 3))
	Insert(t, c, Record(store.KindText, "k", 4))
	if n, _ := c.Count(); n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
}

func testRollback(t *testing.T, c store.Catalog) {
	boom := errors.New("boom")
	err := c.Update(func(tx store.Tx) error {
		if _, err := tx.Insert(Record(store.KindText, "half", 1)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update error = %v, want boom", err)
	}
	if n, _ := c.Count(); n != 0 {
		t.Errorf("Count = %d after rollback, want 0", n)
	}
}

func testTouch(t *testing.T, c store.Catalog) {
	id := Insert(t, c, Record(store.KindText, "t", 100))

	for _, seen := range []int64{300, 200} {
		err := c.Update(func(tx store.Tx) error { return tx.Touch(id, seen) })
		if err != nil {
			t.Fatalf("Touch(%d) failed: %v", seen, err)
		}
	}

	item, _ := c.Get(id)
	if item.LastSeenAt == nil || *item.LastSeenAt != 300 {
		t.Errorf("LastSeenAt = %v, want 300", item.LastSeenAt)
	}
	if item.CreatedAt != 100 {
		t.Errorf("CreatedAt = %d, want 100", item.CreatedAt)
	}
}

func testTouchMissing(t *testing.T, c store.Catalog) {
	id := Insert(t, c, Record(store.KindText, "t", 100))

	err := c.Update(func(tx store.Tx) error { return tx.Touch(id+50, 200) })
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Touch(missing) error = %v, want ErrNotFound", err)
	}

	// An older capture time leaves the row alone but is not an error.
	if err := c.Update(func(tx store.Tx) error { return tx.Touch(id, 300) }); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	if err := c.Update(func(tx store.Tx) error { return tx.Touch(id, 300) }); err != nil {
		t.Errorf("repeated Touch error = %v, want nil", err)
	}
}

func testSetTags(t *testing.T, c store.Catalog) {
	id := Insert(t, c, Record(store.KindText, "tagged", 1))

	err := c.Update(func(tx store.Tx) error {
		return tx.SetTags(id, []string{"red", "blue"}, "tagged\nred\nblue")
	})
	if err != nil {
		t.Fatalf("SetTags failed: %v", err)
	}

	item, _ := c.Get(id)
	if len(item.Tags) != 2 || item.Tags[0] != "red" || item.Tags[1] != "blue" {
		t.Errorf("Tags = %v, want [red blue]", item.Tags)
	}

	results, _ := c.Search(&store.SearchQuery{Terms: []string{"blue"}, Limit: 10})
	if len(results) != 1 {
		t.Errorf("search by new tag returned %d items, want 1", len(results))
	}

	err = c.Update(func(tx store.Tx) error { return tx.SetTags(id+50, nil, "") })
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("SetTags(missing) error = %v, want ErrNotFound", err)
	}
}

func testCountRefs(t *testing.T, c store.Catalog) {
	blob := func(at int64) *store.Record {
		r := Record(store.KindImage, "sha256:ab", at)
		r.InBlob = true
		return r
	}
	a := Insert(t, c, blob(1))
	Insert(t, c, blob(2))
	// Inline text that happens to equal the ref is not a blob reference.
	Insert(t, c, Record(store.KindText, "sha256:ab", 3))

	if n, _ := c.CountRefs("sha256:ab"); n != 2 {
		t.Errorf("CountRefs = %d, want 2", n)
	}
	c.Delete(a)
	if n, _ := c.CountRefs("sha256:ab"); n != 1 {
		t.Errorf("CountRefs after delete = %d, want 1", n)
	}
}

func testCountRefsInTx(t *testing.T, c store.Catalog) {
	rec := Record(store.KindFile, "sha256:cd", 1)
	rec.InBlob = true
	Insert(t, c, rec)

	err := c.Update(func(tx store.Tx) error {
		n, err := tx.CountRefs("sha256:cd")
		if err != nil {
			return err
		}
		if n != 1 {
			t.Errorf("CountRefs before insert = %d, want 1", n)
		}

		second := Record(store.KindFile, "sha256:cd", 2)
		second.InBlob = true
		if _, err := tx.Insert(second); err != nil {
			return err
		}

		n, err = tx.CountRefs("sha256:cd")
		if err != nil {
			return err
		}
		if n != 2 {
			t.Errorf("CountRefs after insert in same tx = %d, want 2", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
}

func testSearchRanking(t *testing.T, c store.Catalog) {
	old := Insert(t, c, Record(store.KindText, "old", 100))
	newer := Insert(t, c, Record(store.KindText, "newer", 300))
	tieA := Insert(t, c, Record(store.KindText, "tie a", 200))
	tieB := Insert(t, c, Record(store.KindText, "tie b", 200))
	c.SetPinned(old, true)

	results, err := c.Search(&store.SearchQuery{Limit: 10})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	want := []int64{old, newer, tieA, tieB}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for i, id := range want {
		if results[i].ID != id {
			t.Errorf("results[%d] = %d, want %d", i, results[i].ID, id)
		}
	}

	results, _ = c.Search(&store.SearchQuery{Limit: 2})
	if len(results) != 2 {
		t.Errorf("limit 2 returned %d", len(results))
	}
	results, _ = c.Search(&store.SearchQuery{Limit: 0})
	if len(results) != 0 {
		t.Errorf("limit 0 returned %d", len(results))
	}
}

func testSearchTerms(t *testing.T, c store.Catalog) {
	a := Insert(t, c, Record(store.KindText, "hello world", 1))
	Insert(t, c, Record(store.KindText, "hello there", 2))

	results, _ := c.Search(&store.SearchQuery{Terms: []string{"hello", "wor"}, Limit: 10})
	if len(results) != 1 || results[0].ID != a {
		t.Errorf("AND search returned %d results", len(results))
	}

	results, _ = c.Search(&store.SearchQuery{Terms: []string{"ell"}, Limit: 10})
	if len(results) != 2 {
		t.Errorf("substring search returned %d results, want 2", len(results))
	}

	// Terms containing LIKE wildcards are matched literally.
	results, _ = c.Search(&store.SearchQuery{Terms: []string{"%"}, Limit: 10})
	if len(results) != 0 {
		t.Errorf("wildcard term matched %d results, want 0", len(results))
	}
}

func testConcurrentInserts(t *testing.T, c store.Catalog) {
	const n = 20
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := c.Update(func(tx store.Tx) error {
				id, err := tx.Insert(Record(store.KindText, "c", int64(i)))
				ids <- id
				return err
			})
			if err != nil {
				t.Errorf("concurrent insert failed: %v", err)
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("id %d assigned twice", id)
		}
		seen[id] = true
	}
}
