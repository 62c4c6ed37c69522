// Package dedup decides, for every capture, whether it repeats an item the
// catalog already holds. Identity is a fingerprint over the item kind and its
// normalized content.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/yiblet/clipvault/internal/store"
)

// Normalize returns the bytes a fingerprint is computed over. Text and Rtf
// content must be valid UTF-8; it is brought to NFC, trimmed, and every run
// of whitespace becomes a single space. Binary kinds are returned unchanged.
func Normalize(kind store.Kind, content []byte) ([]byte, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %d", store.ErrInvalidContent, uint8(kind))
	}
	if !kind.IsText() {
		return content, nil
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: %s content is not valid UTF-8", store.ErrInvalidContent, kind)
	}
	text := strings.Join(strings.Fields(norm.NFC.String(string(content))), " ")
	return []byte(text), nil
}

// Fingerprint digests already normalized content. The kind name takes part in
// the digest, so the same bytes captured as text and as a file stay distinct.
func Fingerprint(kind store.Kind, normalized []byte) string {
	h := sha256.New()
	h.Write([]byte(kind.String()))
	h.Write([]byte{0})
	h.Write(normalized)
	return hex.EncodeToString(h.Sum(nil))
}

// FingerprintContent normalizes and digests raw content in one step.
func FingerprintContent(kind store.Kind, content []byte) (string, error) {
	normalized, err := Normalize(kind, content)
	if err != nil {
		return "", err
	}
	return Fingerprint(kind, normalized), nil
}
