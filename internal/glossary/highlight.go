package glossary

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"unicode"
)

// Result carries the marked-up text and the metadata lookup for every
// entry that matched at least once.
type Result struct {
	Marked  string           `json:"marked"`
	Matched map[string]Entry `json:"matched"`
}

// span is a claimed region of the text in rune offsets, end exclusive.
type span struct {
	start int
	end   int
	id    string
}

// Highlight wraps whole-word, case-insensitive occurrences of entry
// display names in the translated text. Entries without a description
// are skipped. Longer names claim their spans before shorter ones, so a
// name that is a substring of another ("Seo-jun" inside "Kim Seo-jun")
// never splits the longer match. Matches are collected as spans over
// the original text and rendered in a single pass, so inserted markup
// is never re-scanned. All unmatched text passes through byte-for-byte.
func Highlight(text string, entries Mapping) Result {
	result := Result{Marked: text, Matched: map[string]Entry{}}
	if text == "" || len(entries) == 0 {
		return result
	}

	candidates := sortedCandidates(entries)
	if len(candidates) == 0 {
		return result
	}

	runes := []rune(text)
	lowered := make([]rune, len(runes))
	for i, r := range runes {
		lowered[i] = unicode.ToLower(r)
	}

	var claimed []span
	for _, entry := range candidates {
		name := []rune(strings.ToLower(entry.DisplayName))
		if len(name) == 0 {
			continue
		}
		for _, start := range findWholeWord(lowered, name) {
			end := start + len(name)
			if overlapsAny(claimed, start, end) {
				continue
			}
			claimed = append(claimed, span{start: start, end: end, id: entry.ID})
			result.Matched[entry.ID] = entry
		}
	}
	if len(claimed) == 0 {
		return result
	}

	sort.Slice(claimed, func(i, j int) bool { return claimed[i].start < claimed[j].start })

	var b strings.Builder
	prev := 0
	for _, sp := range claimed {
		b.WriteString(string(runes[prev:sp.start]))
		b.WriteString(fmt.Sprintf(`<span class="character-name" data-character-id="%s">%s</span>`,
			html.EscapeString(sp.id), string(runes[sp.start:sp.end])))
		prev = sp.end
	}
	b.WriteString(string(runes[prev:]))

	result.Marked = b.String()
	return result
}

// sortedCandidates filters to described entries and orders them by
// descending display-name length. Ties keep a deterministic order by
// name then id. With case-insensitive duplicate names, the first in
// this order wins overlapping spans.
func sortedCandidates(entries Mapping) []Entry {
	candidates := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.Description) == "" || entry.DisplayName == "" {
			continue
		}
		candidates = append(candidates, entry)
	}
	sort.Slice(candidates, func(i, j int) bool {
		li, lj := len([]rune(candidates[i].DisplayName)), len([]rune(candidates[j].DisplayName))
		if li != lj {
			return li > lj
		}
		if candidates[i].DisplayName != candidates[j].DisplayName {
			return candidates[i].DisplayName < candidates[j].DisplayName
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates
}

// findWholeWord returns every rune offset where needle occurs in
// haystack with word boundaries on both sides.
func findWholeWord(haystack, needle []rune) []int {
	var offsets []int
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if !runesEqual(haystack[i:i+len(needle)], needle) {
			continue
		}
		if i > 0 && isWordRune(haystack[i-1]) {
			continue
		}
		if end := i + len(needle); end < len(haystack) && isWordRune(haystack[end]) {
			continue
		}
		offsets = append(offsets, i)
	}
	return offsets
}

func runesEqual(a, b []rune) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func overlapsAny(claimed []span, start, end int) bool {
	for _, sp := range claimed {
		if start < sp.end && sp.start < end {
			return true
		}
	}
	return false
}
