// Package store defines the persistence interfaces of the clipvault engine:
// the item catalog and the transaction handle the dedup engine runs in.
package store

// Tx is a write transaction on the catalog. Everything done through a Tx
// becomes visible atomically when the enclosing Update returns nil.
type Tx interface {
	// FindByFingerprint returns the lowest live id carrying the fingerprint.
	FindByFingerprint(fingerprint string) (int64, bool, error)

	// Get returns a live item or ErrNotFound.
	Get(id int64) (*Item, error)

	// Insert persists a new row and returns its id. A DedupeKey that is
	// already taken fails with ErrDuplicateKey.
	Insert(rec *Record) (int64, error)

	// Touch records a repeated capture of an existing item. last_seen_at only
	// moves forward. A missing id is ErrNotFound.
	Touch(id int64, seenAt int64) error

	// CountRefs counts live items stored under the blob ref, including rows
	// written earlier in this transaction.
	CountRefs(ref string) (int, error)

	// SetTags replaces the tag set and the index document of an item.
	SetTags(id int64, tags []string, searchText string) error
}

// Catalog is the durable table of items.
type Catalog interface {
	// Update runs fn in a single write transaction. If fn returns an error
	// the transaction is rolled back and the error is returned unchanged.
	Update(fn func(tx Tx) error) error

	// Get retrieves a live item by id, or ErrNotFound.
	Get(id int64) (*Item, error)

	// FindByFingerprint returns the lowest live id carrying the fingerprint.
	FindByFingerprint(fingerprint string) (int64, bool, error)

	// Delete removes an item. It reports false, without error, when the id
	// was already absent. The deleted row is returned so the caller can
	// release its blob.
	Delete(id int64) (*Item, bool, error)

	// SetPinned updates the pin flag. It reports false when the id is absent.
	SetPinned(id int64, pinned bool) (bool, error)

	// CountRefs counts live items whose content is stored under the blob ref.
	CountRefs(ref string) (int, error)

	// Search returns items matching every query term, pinned first, then by
	// created_at descending, then by id ascending.
	Search(query *SearchQuery) ([]*Item, error)

	// Count returns the number of live items.
	Count() (int, error)

	// Close releases the underlying connection.
	Close() error
}
