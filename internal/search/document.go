// Package search maps free-text queries onto ranked, bounded item lists.
//
// Every item carries an index document: a case-folded string holding the
// searchable parts of the item. Text items contribute their content, Rtf items
// their visible text, Image and File items their source application; every
// kind contributes its tags. A query matches when each of its terms occurs in
// the document as a substring, in any order and any field: "world hello"
// matches "hello world". Multi-word queries are never matched as a phrase.
package search

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/yiblet/clipvault/internal/store"
)

// fieldSep separates document fields so a term never matches across them.
const fieldSep = "\n"

// Fold returns the canonical case-folded NFC form of s used on both sides
// of a match.
func Fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// Document builds the index document for an item. text is the item content
// for Text and Rtf kinds and is ignored for binary kinds.
func Document(kind store.Kind, text string, sourceApp *string, tags []string) string {
	var parts []string

	switch kind {
	case store.KindText:
		parts = append(parts, text)
	case store.KindRtf:
		parts = append(parts, StripRTF(text))
	default:
		if sourceApp != nil {
			parts = append(parts, *sourceApp)
		}
	}
	parts = append(parts, tags...)

	return Fold(strings.Join(parts, fieldSep))
}

// ParseQuery normalizes a raw query into terms. The limit passes through
// unchanged. A blank query produces no terms, which selects the
// recent-history listing.
func ParseQuery(raw string, limit int) *store.SearchQuery {
	terms := strings.Fields(Fold(raw))
	if len(terms) == 0 {
		terms = nil
	}
	return &store.SearchQuery{Terms: terms, Limit: limit}
}

// Matches reports whether every term occurs in doc.
func Matches(doc string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(doc, t) {
			return false
		}
	}
	return true
}

// Less orders items by relevance: pinned before unpinned, newer created_at
// first, lower id first.
func Less(a, b *store.Item) bool {
	if a.Pinned != b.Pinned {
		return a.Pinned
	}
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt > b.CreatedAt
	}
	return a.ID < b.ID
}
