package search

import (
	"github.com/yiblet/clipvault/internal/store"
)

// Index answers search requests against a catalog. The catalog keeps each
// row's index document current on insert, delete, pin and tag changes, so a
// search issued after an operation returns sees its effect.
type Index struct {
	catalog store.Catalog
}

// NewIndex creates an index over the catalog.
func NewIndex(catalog store.Catalog) *Index {
	return &Index{catalog: catalog}
}

// Search returns at most limit items matching query, most relevant first.
// A blank query returns the most recent items under the same ranking.
func (ix *Index) Search(query string, limit int) ([]*store.Item, error) {
	q := ParseQuery(query, limit)
	if q.Limit <= 0 {
		return []*store.Item{}, nil
	}
	return ix.catalog.Search(q)
}
