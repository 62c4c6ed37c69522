// Package boundary translates between the engine's Go types and the flat
// encodings used by the exported C library: integer kinds and statuses,
// nullable strings, JSON tag lists, and an ownership ledger for every value
// handed across.
package boundary

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yiblet/clipvault/internal/store"
)

// Status codes returned across the boundary. Non-negative values are results.
const (
	StatusOK              int32 = 0
	StatusInvalidArgument int32 = -1
	StatusInvalidContent  int32 = -2
	StatusNotFound        int32 = -3
	StatusOpenFailure     int32 = -4
	StatusStorageFailure  int32 = -5
	StatusUseAfterClose   int32 = -6
)

// ErrInvalidArgument marks malformed boundary input such as an unknown kind
// or a null handle.
var ErrInvalidArgument = errors.New("invalid argument")

// Status maps an error to its boundary status code.
func Status(err error) int32 {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrInvalidArgument):
		return StatusInvalidArgument
	case errors.Is(err, store.ErrInvalidContent):
		return StatusInvalidContent
	case errors.Is(err, store.ErrNotFound):
		return StatusNotFound
	case errors.Is(err, store.ErrOpenFailure):
		return StatusOpenFailure
	case errors.Is(err, store.ErrUseAfterClose):
		return StatusUseAfterClose
	default:
		return StatusStorageFailure
	}
}

// DecodeKind converts the integer kind used at the boundary.
func DecodeKind(v int32) (store.Kind, error) {
	if v < 0 || !store.Kind(v).Valid() {
		return 0, fmt.Errorf("%w: unknown kind %d", ErrInvalidArgument, v)
	}
	return store.Kind(v), nil
}

// Record is an item flattened for the boundary.
type Record struct {
	ID         int64
	Kind       int32
	ContentRef string
	SourceApp  *string // nil encodes as NULL
	CreatedAt  int64
	Pinned     int32
	TagsJSON   string
}

// EncodeItem flattens an item.
func EncodeItem(item *store.Item) *Record {
	var pinned int32
	if item.Pinned {
		pinned = 1
	}
	return &Record{
		ID:         item.ID,
		Kind:       int32(item.Kind),
		ContentRef: item.ContentRef,
		SourceApp:  item.SourceApp,
		CreatedAt:  item.CreatedAt,
		Pinned:     pinned,
		TagsJSON:   EncodeTags(item.Tags),
	}
}

// EncodeTags serializes tags as a JSON array. No tags encode as "[]".
func EncodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// DecodeTags parses a JSON array of strings. The empty string means no tags.
func DecodeTags(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil, fmt.Errorf("%w: tags must be a JSON array of strings: %w", ErrInvalidArgument, err)
	}
	return tags, nil
}
