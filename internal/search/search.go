// Package search locates occurrences of a query inside note content and
// supports stepping through and replacing them. Matches are derived state,
// recomputed whenever the query or content changes.
package search

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Match is one located occurrence: byte offsets into the content string
// plus the matched text as it appears there.
type Match struct {
	Start int
	End   int
	Text  string
}

// FindAllMatches scans left to right for non-overlapping occurrences of
// query. Matching is case-insensitive unless caseSensitive is set. A blank
// query yields no matches. Offsets are byte offsets into text; the scan
// folds rune by rune over the original string, so runes whose byte length
// changes under case conversion never shift a match span.
func FindAllMatches(text, query string, caseSensitive bool) []Match {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	var matches []Match
	for i := 0; i < len(text); {
		length, ok := matchLenAt(text, i, query, caseSensitive)
		if !ok {
			_, size := utf8.DecodeRuneInString(text[i:])
			i += size
			continue
		}
		matches = append(matches, Match{Start: i, End: i + length, Text: text[i : i+length]})
		i += length
	}
	return matches
}

// matchLenAt reports how many bytes of text starting at offset cover one
// occurrence of query.
func matchLenAt(text string, offset int, query string, caseSensitive bool) (int, bool) {
	i := offset
	for j := 0; j < len(query); {
		if i >= len(text) {
			return 0, false
		}
		textRune, textSize := utf8.DecodeRuneInString(text[i:])
		queryRune, querySize := utf8.DecodeRuneInString(query[j:])
		if !runesMatch(textRune, queryRune, caseSensitive) {
			return 0, false
		}
		i += textSize
		j += querySize
	}
	return i - offset, true
}

func runesMatch(a, b rune, caseSensitive bool) bool {
	if a == b {
		return true
	}
	if caseSensitive {
		return false
	}
	folded := unicode.SimpleFold(a)
	for folded != a {
		if folded == b {
			return true
		}
		folded = unicode.SimpleFold(folded)
	}
	return false
}

// NextMatchIndex steps forward from current with wraparound. Returns -1
// only when matches is empty.
func NextMatchIndex(current int, matches []Match) int {
	if len(matches) == 0 {
		return -1
	}
	next := current + 1
	if next >= len(matches) {
		return 0
	}
	return next
}

// PreviousMatchIndex steps backward from current with wraparound. Returns
// -1 only when matches is empty.
func PreviousMatchIndex(current int, matches []Match) int {
	if len(matches) == 0 {
		return -1
	}
	previous := current - 1
	if previous < 0 {
		return len(matches) - 1
	}
	return previous
}

// ReplaceMatch replaces the matchIndex-th occurrence of query with
// replacement. It returns the new text, the matches recomputed against the
// new text, and the index of the first remaining match at or after the end
// of the replacement (wrapping to 0 when none follows). The input is
// returned unchanged when matchIndex is out of range.
func ReplaceMatch(text, query, replacement string, matchIndex int) (string, []Match, int) {
	matches := FindAllMatches(text, query, false)
	if matchIndex < 0 || matchIndex >= len(matches) {
		return text, matches, -1
	}

	target := matches[matchIndex]
	updated := text[:target.Start] + replacement + text[target.End:]
	remaining := FindAllMatches(updated, query, false)
	if len(remaining) == 0 {
		return updated, remaining, -1
	}

	replacementEnd := target.Start + len(replacement)
	for i, match := range remaining {
		if match.Start >= replacementEnd {
			return updated, remaining, i
		}
	}
	return updated, remaining, 0
}

// ReplaceAllMatches substitutes every case-insensitive occurrence of query
// in a single pass.
func ReplaceAllMatches(text, query, replacement string) string {
	matches := FindAllMatches(text, query, false)
	if len(matches) == 0 {
		return text
	}

	var out strings.Builder
	out.Grow(len(text))
	last := 0
	for _, match := range matches {
		out.WriteString(text[last:match.Start])
		out.WriteString(replacement)
		last = match.End
	}
	out.WriteString(text[last:])
	return out.String()
}
