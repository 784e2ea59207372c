package align

import "strings"

// Unit is one sentence- or line-granularity chunk of a text.
// Index is the position within its own sequence; units in the source
// and translated sequences correspond by position only.
type Unit struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Segment splits text into units on runs of sentence-terminal
// punctuation (. ! ?) or newlines. The punctuation run stays attached
// to the preceding unit; units that are empty after trimming are
// dropped.
func Segment(text string) []Unit {
	if text == "" {
		return []Unit{}
	}

	units := make([]Unit, 0)
	var b strings.Builder

	flush := func() {
		trimmed := strings.TrimSpace(b.String())
		b.Reset()
		if trimmed == "" {
			return
		}
		units = append(units, Unit{Index: len(units), Text: trimmed})
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' {
			flush()
			continue
		}
		b.WriteRune(r)
		if isTerminal(r) {
			// Consume the rest of the punctuation run.
			for i+1 < len(runes) && isTerminal(runes[i+1]) {
				i++
				b.WriteRune(runes[i])
			}
			flush()
		}
	}
	flush()

	return units
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
