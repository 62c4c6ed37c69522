package search

import (
	"strconv"
	"strings"
)

// ignorableGroups are RTF destinations whose text is never displayed.
var ignorableGroups = map[string]bool{
	"fonttbl":    true,
	"colortbl":   true,
	"stylesheet": true,
	"info":       true,
	"pict":       true,
	"header":     true,
	"footer":     true,
	"listtable":  true,
}

// StripRTF extracts the visible text of an RTF document. It is a lexical
// pass, not a parser: unknown control words are dropped, destinations that
// never render are skipped, and \uN escapes are decoded.
func StripRTF(src string) string {
	if !strings.HasPrefix(strings.TrimSpace(src), "{\\rtf") {
		return src
	}

	var out strings.Builder
	depth := 0
	skipAt := -1 // depth of the group being skipped, -1 when not skipping
	skipChars := 0

	emit := func(s string) {
		if skipAt >= 0 {
			return
		}
		if skipChars > 0 {
			skipChars--
			return
		}
		out.WriteString(s)
	}

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch c {
		case '{':
			depth++
		case '}':
			if skipAt == depth {
				skipAt = -1
			}
			depth--
		case '\r', '\n':
		case '\\':
			if i+1 >= len(src) {
				break
			}
			next := src[i+1]
			switch {
			case next == '\\' || next == '{' || next == '}':
				emit(src[i+1 : i+2])
				i++
			case next == '*':
				if skipAt < 0 {
					skipAt = depth
				}
				i++
			case next == '\'':
				if i+3 < len(src) {
					if v, err := strconv.ParseUint(src[i+2:i+4], 16, 8); err == nil {
						emit(string(rune(v)))
					}
				}
				i += 3
			case isLetter(next):
				j := i + 1
				for j < len(src) && isLetter(src[j]) {
					j++
				}
				word := src[i+1 : j]
				k := j
				if k < len(src) && src[k] == '-' {
					k++
				}
				for k < len(src) && src[k] >= '0' && src[k] <= '9' {
					k++
				}
				param := src[j:k]
				if k < len(src) && src[k] == ' ' {
					k++
				}
				i = k - 1

				switch {
				case ignorableGroups[word]:
					if skipAt < 0 {
						skipAt = depth
					}
				case word == "par" || word == "line":
					emit("\n")
				case word == "tab":
					emit("\t")
				case word == "u":
					if n, err := strconv.Atoi(param); err == nil {
						if n < 0 {
							n += 65536
						}
						emit(string(rune(n)))
						skipChars = 1
					}
				}
			default:
				i++
			}
		default:
			emit(src[i : i+1])
		}
	}

	return strings.TrimSpace(out.String())
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
