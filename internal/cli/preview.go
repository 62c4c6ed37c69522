package cli

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/yiblet/clipvault/internal/search"
	"github.com/yiblet/clipvault/internal/store"
)

const previewLength = 72

// preview creates a one-line summary of an item's content for listings.
// Text shows its first non-empty line, binary kinds show their size.
func preview(item *store.Item, content []byte) string {
	switch item.Kind {
	case store.KindImage, store.KindFile:
		return fmt.Sprintf("[%s %s]", item.Kind, humanSize(len(content)))
	case store.KindRtf:
		return firstLine(search.StripRTF(string(content)))
	default:
		return firstLine(string(content))
	}
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if cleaned := sanitize(line); cleaned != "" {
			return truncate(cleaned, previewLength)
		}
	}
	return "[empty]"
}

// truncate ensures s is at most maxLen runes, marking the cut with "...".
func truncate(s string, maxLen int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= maxLen {
		return string(runes)
	}
	if maxLen < 3 {
		return strings.Repeat(".", maxLen)
	}
	return string(runes[:maxLen-3]) + "..."
}

// sanitize removes control characters and collapses whitespace so previews
// are safe to print in a terminal.
func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func humanSize(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := unit, 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}
