package dbstore

import (
	"github.com/yiblet/clipvault/internal/store"
)

// SchemaVersion is the catalog layout this package reads and writes.
// Bump it when a migration changes the meaning of existing columns.
const SchemaVersion = 1

// ItemModel represents a catalog row.
type ItemModel struct {
	ID          int64    `gorm:"primaryKey;autoIncrement"`
	Kind        uint8    `gorm:"not null"`                 // 0=text 1=rtf 2=image 3=file
	ContentRef  string   `gorm:"type:text;not null;index"` // Inline text or blob reference
	InBlob      bool     `gorm:"not null;default:false"`   // ContentRef names a blob
	SourceApp   *string  `gorm:"size:255"`                 // NULL when absent
	CreatedAt   int64    `gorm:"autoCreateTime:false;not null;index:idx_items_rank,priority:2"`
	LastSeenAt  *int64   // Latest deduplicated capture (ms)
	Pinned      bool     `gorm:"not null;default:false;index:idx_items_rank,priority:1"`
	Tags        []string `gorm:"serializer:json;type:text;not null"` // JSON array of strings
	Fingerprint string   `gorm:"size:64;not null;index"`
	DedupeKey   *string  `gorm:"size:64;uniqueIndex"` // Set only by the dedup path
	SearchText  string   `gorm:"type:text;not null"`  // Case-folded index document
}

// TableName returns the table name for ItemModel
func (ItemModel) TableName() string {
	return "items"
}

// ToItem converts the GORM model to a store.Item
func (m *ItemModel) ToItem() *store.Item {
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	return &store.Item{
		ID:          m.ID,
		Kind:        store.Kind(m.Kind),
		ContentRef:  m.ContentRef,
		InBlob:      m.InBlob,
		SourceApp:   m.SourceApp,
		CreatedAt:   m.CreatedAt,
		LastSeenAt:  m.LastSeenAt,
		Pinned:      m.Pinned,
		Tags:        tags,
		Fingerprint: m.Fingerprint,
	}
}

// newItemModel builds the row for a prepared record.
func newItemModel(rec *store.Record) *ItemModel {
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	m := &ItemModel{
		Kind:        uint8(rec.Kind),
		ContentRef:  rec.ContentRef,
		InBlob:      rec.InBlob,
		SourceApp:   rec.SourceApp,
		CreatedAt:   rec.CreatedAt,
		Tags:        tags,
		Fingerprint: rec.Fingerprint,
		SearchText:  rec.SearchText,
	}
	if rec.DedupeKey != "" {
		key := rec.DedupeKey
		m.DedupeKey = &key
	}
	return m
}

// MetaModel is a key-value pair describing the catalog file itself.
type MetaModel struct {
	Key   string `gorm:"primaryKey;size:100"`
	Value string `gorm:"type:text;not null"`
}

// TableName returns the table name for MetaModel
func (MetaModel) TableName() string {
	return "meta"
}
