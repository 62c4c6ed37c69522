package dbstore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yiblet/clipvault/internal/store"
)

// dsnParams configures every pooled connection: WAL journaling, a busy
// timeout so concurrent writers queue instead of failing, and BEGIN IMMEDIATE
// so a transaction holds the write lock from its first statement.
const dsnParams = "?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_txlock=immediate"

// SQLiteCatalog is a SQLite-backed implementation of store.Catalog
type SQLiteCatalog struct {
	db     *gorm.DB
	dbPath string
}

// NewSQLiteCatalog opens or creates the catalog at dbPath and migrates it.
// A file written by a newer schema version is refused.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	db, err := gorm.Open(sqlite.Open(dbPath+dsnParams), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	c := &SQLiteCatalog{db: db, dbPath: dbPath}

	if err := c.checkVersion(); err != nil {
		c.Close()
		return nil, err
	}

	// Run auto-migration for all models
	if err := db.AutoMigrate(&ItemModel{}, &MetaModel{}); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	if err := c.SetMeta("schema_version", strconv.Itoa(SchemaVersion)); err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

// checkVersion refuses files whose recorded schema is newer than ours.
// Fresh files have no meta table yet.
func (c *SQLiteCatalog) checkVersion() error {
	if !c.db.Migrator().HasTable(&MetaModel{}) {
		return nil
	}
	value, ok, err := c.Meta("schema_version")
	if err != nil || !ok {
		return err
	}
	version, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("corrupt schema_version %q", value)
	}
	if version > SchemaVersion {
		return fmt.Errorf("catalog schema version %d is newer than supported version %d", version, SchemaVersion)
	}
	return nil
}

// Path returns the database file path.
func (c *SQLiteCatalog) Path() string {
	return c.dbPath
}

// Meta returns a catalog metadata value.
func (c *SQLiteCatalog) Meta(key string) (string, bool, error) {
	var model MetaModel
	if err := c.db.First(&model, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, store.StorageError("get meta", err)
	}
	return model.Value, true, nil
}

// SetMeta stores a catalog metadata value (upsert).
func (c *SQLiteCatalog) SetMeta(key, value string) error {
	model := &MetaModel{Key: key}
	result := c.db.Where("key = ?", key).
		Assign(map[string]interface{}{"value": value}).
		FirstOrCreate(model)
	if result.Error != nil {
		return store.StorageError("set meta", result.Error)
	}
	return nil
}

// Update runs fn inside a write transaction.
func (c *SQLiteCatalog) Update(fn func(tx store.Tx) error) error {
	return c.db.Transaction(func(tx *gorm.DB) error {
		return fn(&sqliteTx{db: tx})
	})
}

// Get retrieves a single item by id.
func (c *SQLiteCatalog) Get(id int64) (*store.Item, error) {
	return getItem(c.db, id)
}

// FindByFingerprint returns the lowest id carrying the fingerprint.
func (c *SQLiteCatalog) FindByFingerprint(fingerprint string) (int64, bool, error) {
	return findByFingerprint(c.db, fingerprint)
}

// Delete removes an item by id and returns the removed row.
func (c *SQLiteCatalog) Delete(id int64) (*store.Item, bool, error) {
	var deleted *store.Item
	err := c.db.Transaction(func(tx *gorm.DB) error {
		var model ItemModel
		if err := tx.First(&model, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := tx.Delete(&ItemModel{}, id).Error; err != nil {
			return err
		}
		deleted = model.ToItem()
		return nil
	})
	if err != nil {
		return nil, false, store.StorageError("delete item", err)
	}
	return deleted, deleted != nil, nil
}

// SetPinned updates the pin flag; absent ids report false.
func (c *SQLiteCatalog) SetPinned(id int64, pinned bool) (bool, error) {
	result := c.db.Model(&ItemModel{}).Where("id = ?", id).Update("pinned", pinned)
	if result.Error != nil {
		return false, store.StorageError("set pinned", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// CountRefs counts live items stored under the blob ref.
func (c *SQLiteCatalog) CountRefs(ref string) (int, error) {
	return countRefs(c.db, ref)
}

// Search filters on the index document and ranks in SQL. Each term is a
// plain substring test on the case-folded document.
func (c *SQLiteCatalog) Search(query *store.SearchQuery) ([]*store.Item, error) {
	if query.Limit <= 0 {
		return []*store.Item{}, nil
	}

	q := c.db.Model(&ItemModel{})
	for _, term := range query.Terms {
		q = q.Where("instr(search_text, ?) > 0", term)
	}

	var models []*ItemModel
	err := q.Order("pinned DESC").
		Order("created_at DESC").
		Order("id ASC").
		Limit(query.Limit).
		Find(&models).Error
	if err != nil {
		return nil, store.StorageError("search", err)
	}

	items := make([]*store.Item, len(models))
	for i, model := range models {
		items[i] = model.ToItem()
	}
	return items, nil
}

// Count returns the total number of items
func (c *SQLiteCatalog) Count() (int, error) {
	var count int64
	if err := c.db.Model(&ItemModel{}).Count(&count).Error; err != nil {
		return 0, store.StorageError("count items", err)
	}
	return int(count), nil
}

// Close checkpoints the WAL into the main file and closes the connection.
func (c *SQLiteCatalog) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	checkpointErr := c.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error
	if err := sqlDB.Close(); err != nil {
		return store.StorageError("close catalog", err)
	}
	if checkpointErr != nil {
		return store.StorageError("checkpoint", checkpointErr)
	}
	return nil
}

// sqliteTx implements store.Tx on an open gorm transaction
type sqliteTx struct {
	db *gorm.DB
}

func (t *sqliteTx) FindByFingerprint(fingerprint string) (int64, bool, error) {
	return findByFingerprint(t.db, fingerprint)
}

func (t *sqliteTx) Get(id int64) (*store.Item, error) {
	return getItem(t.db, id)
}

func (t *sqliteTx) Insert(rec *store.Record) (int64, error) {
	model := newItemModel(rec)
	if err := t.db.Create(model).Error; err != nil {
		if isUniqueConstraintError(err) {
			return 0, store.ErrDuplicateKey
		}
		return 0, store.StorageError("insert item", err)
	}
	return model.ID, nil
}

func (t *sqliteTx) Touch(id int64, seenAt int64) error {
	result := t.db.Model(&ItemModel{}).
		Where("id = ? AND (last_seen_at IS NULL OR last_seen_at < ?)", id, seenAt).
		Update("last_seen_at", seenAt)
	if result.Error != nil {
		return store.StorageError("touch item", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// Nothing changed: either the row is missing or it was already seen later.
	var count int64
	if err := t.db.Model(&ItemModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return store.StorageError("touch item", err)
	}
	if count == 0 {
		return store.NotFoundError(id)
	}
	return nil
}

func (t *sqliteTx) CountRefs(ref string) (int, error) {
	return countRefs(t.db, ref)
}

func (t *sqliteTx) SetTags(id int64, tags []string, searchText string) error {
	if tags == nil {
		tags = []string{}
	}
	result := t.db.Model(&ItemModel{ID: id}).
		Select("tags", "search_text").
		Updates(&ItemModel{Tags: tags, SearchText: searchText})
	if result.Error != nil {
		return store.StorageError("set tags", result.Error)
	}
	if result.RowsAffected == 0 {
		return store.NotFoundError(id)
	}
	return nil
}

func getItem(db *gorm.DB, id int64) (*store.Item, error) {
	var model ItemModel
	if err := db.First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.NotFoundError(id)
		}
		return nil, store.StorageError("get item", err)
	}
	return model.ToItem(), nil
}

func countRefs(db *gorm.DB, ref string) (int, error) {
	var count int64
	err := db.Model(&ItemModel{}).
		Where("in_blob = ? AND content_ref = ?", true, ref).
		Count(&count).Error
	if err != nil {
		return 0, store.StorageError("count blob refs", err)
	}
	return int(count), nil
}

func findByFingerprint(db *gorm.DB, fingerprint string) (int64, bool, error) {
	var ids []int64
	err := db.Model(&ItemModel{}).
		Where("fingerprint = ?", fingerprint).
		Order("id ASC").
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, false, store.StorageError("find by fingerprint", err)
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

// isUniqueConstraintError checks for a UNIQUE violation. The driver's
// translated error is preferred; the message check covers untranslated paths.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
