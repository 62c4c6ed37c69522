package dbstore

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/yiblet/clipvault/internal/store"
	"github.com/yiblet/clipvault/internal/store/storetest"
)

// setupTestDB creates a temporary catalog for testing
func setupTestDB(t *testing.T) (*SQLiteCatalog, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	c, err := NewSQLiteCatalog(dbPath)
	if err != nil {
		t.Fatalf("failed to create test catalog: %v", err)
	}
	return c, dbPath
}

func TestSQLiteCatalogContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Catalog {
		c, _ := setupTestDB(t)
		return c
	})
}

// TestNewSQLiteCatalog tests database initialization
func TestNewSQLiteCatalog(t *testing.T) {
	c, dbPath := setupTestDB(t)
	defer c.Close()

	if c.Path() != dbPath {
		t.Errorf("Path() = %s, want %s", c.Path(), dbPath)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}

	version, ok, err := c.Meta("schema_version")
	if err != nil || !ok {
		t.Fatalf("schema_version missing: %v", err)
	}
	if version != strconv.Itoa(SchemaVersion) {
		t.Errorf("schema_version = %s, want %d", version, SchemaVersion)
	}

	for _, table := range []string{"items", "meta"} {
		if !c.db.Migrator().HasTable(table) {
			t.Errorf("table %s not created", table)
		}
	}
	for _, index := range []string{"idx_items_rank", "idx_items_fingerprint", "idx_items_dedupe_key"} {
		if !c.db.Migrator().HasIndex(&ItemModel{}, index) {
			t.Errorf("index %s not created", index)
		}
	}
}

// TestSQLitePersistence verifies rows survive close and reopen
func TestSQLitePersistence(t *testing.T) {
	c, dbPath := setupTestDB(t)

	app := "Notes"
	rec := storetest.Record(store.KindText, "persist", 42)
	rec.SourceApp = &app
	rec.Tags = []string{"keep"}
	id := storetest.Insert(t, c, rec)
	if _, err := c.SetPinned(id, true); err != nil {
		t.Fatalf("SetPinned failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// WAL is checkpointed on close
	if info, err := os.Stat(dbPath + "-wal"); err == nil && info.Size() > 0 {
		t.Errorf("WAL not truncated on close: %d bytes", info.Size())
	}

	c, err := NewSQLiteCatalog(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer c.Close()

	item, err := c.Get(id)
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if !item.Pinned || item.CreatedAt != 42 || *item.SourceApp != "Notes" || item.Tags[0] != "keep" {
		t.Errorf("item changed across reopen: %+v", item)
	}

	next := storetest.Insert(t, c, storetest.Record(store.KindText, "after", 43))
	if next <= id {
		t.Errorf("id %d reused after reopen (previous %d)", next, id)
	}
}

// TestNewerSchemaRefused verifies a catalog from a newer release is not opened
func TestNewerSchemaRefused(t *testing.T) {
	c, dbPath := setupTestDB(t)
	if err := c.SetMeta("schema_version", strconv.Itoa(SchemaVersion+1)); err != nil {
		t.Fatalf("SetMeta failed: %v", err)
	}
	c.Close()

	if _, err := NewSQLiteCatalog(dbPath); err == nil {
		t.Fatal("expected newer schema to be refused")
	}
}

// TestCorruptFile verifies a non-database file fails to open
func TestCorruptFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "garbage.db")
	junk := make([]byte, 4096)
	for i := range junk {
		junk[i] = byte(i * 7)
	}
	if err := os.WriteFile(dbPath, junk, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewSQLiteCatalog(dbPath); err == nil {
		t.Fatal("expected corrupt file to fail")
	}
}

// TestSearchTextColumn verifies the index document drives matching, not content
func TestSearchTextColumn(t *testing.T) {
	c, _ := setupTestDB(t)
	defer c.Close()

	rec := storetest.Record(store.KindImage, "sha256:ff", 1)
	rec.InBlob = true
	rec.SearchText = "preview\nreceipt"
	id := storetest.Insert(t, c, rec)

	results, err := c.Search(&store.SearchQuery{Terms: []string{"receipt"}, Limit: 5})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != id {
		t.Errorf("Search returned %v", results)
	}

	results, _ = c.Search(&store.SearchQuery{Terms: []string{"sha256"}, Limit: 5})
	if len(results) != 0 {
		t.Error("blob reference should not be searchable")
	}
}

// TestUpdateAfterClose verifies closed catalogs report storage failures
func TestUpdateAfterClose(t *testing.T) {
	c, _ := setupTestDB(t)
	c.Close()

	_, err := c.Get(1)
	if err == nil || errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get on closed catalog error = %v", err)
	}
}
