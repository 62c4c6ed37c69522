package store

import (
	"fmt"
	"strings"
)

// Kind is the variant of a captured item.
type Kind uint8

const (
	KindText Kind = iota
	KindRtf
	KindImage
	KindFile
)

var kindNames = [...]string{"text", "rtf", "image", "file"}

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is one of the four known kinds.
func (k Kind) Valid() bool {
	return int(k) < len(kindNames)
}

// IsText reports whether items of this kind carry searchable text.
func (k Kind) IsText() bool {
	return k == KindText || k == KindRtf
}

// ParseKind parses a kind name as printed by Kind.String.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown item kind %q", ErrInvalidContent, s)
}

// Item is a stored clipboard item as returned by the catalog.
type Item struct {
	// ID is assigned by the catalog and never changes.
	ID int64

	// Kind is fixed at creation.
	Kind Kind

	// ContentRef is either the inline text of a Text/Rtf item or a blob
	// reference (see InBlob).
	ContentRef string

	// InBlob is true when ContentRef names a blob in the blob store.
	InBlob bool

	// SourceApp is the application that produced the capture, nil when absent.
	SourceApp *string

	// CreatedAt is the original capture time in epoch milliseconds.
	CreatedAt int64

	// LastSeenAt is the most recent capture time of this content, nil until
	// a deduplicated capture touches the item.
	LastSeenAt *int64

	Pinned bool

	// Tags is an ordered set.
	Tags []string

	// Fingerprint is the hex digest used as the dedup key.
	Fingerprint string
}

// Clone returns a deep copy of the item.
func (it *Item) Clone() *Item {
	if it == nil {
		return nil
	}
	c := *it
	if it.SourceApp != nil {
		s := *it.SourceApp
		c.SourceApp = &s
	}
	if it.LastSeenAt != nil {
		v := *it.LastSeenAt
		c.LastSeenAt = &v
	}
	c.Tags = append([]string(nil), it.Tags...)
	return &c
}

// NewItem is the input of the dedup engine: raw content as captured by the host.
type NewItem struct {
	Kind      Kind
	Content   []byte
	SourceApp *string
	CreatedAt int64
	Tags      []string
}

// Record is a fully prepared catalog row: content already stored and
// fingerprinted, search document already built.
type Record struct {
	Kind        Kind
	ContentRef  string
	InBlob      bool
	SourceApp   *string
	CreatedAt   int64
	Tags        []string
	Fingerprint string

	// DedupeKey is set only for rows created through the dedup path; the
	// catalog enforces its uniqueness.
	DedupeKey string

	// SearchText is the case-folded index document for the row.
	SearchText string
}

// SearchQuery is a parsed search request.
type SearchQuery struct {
	// Terms are case-folded substrings that must all occur in an item's
	// index document. No terms means every item matches.
	Terms []string

	// Limit is the maximum number of results. Zero or less yields no results.
	Limit int
}
