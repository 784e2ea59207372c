package glossary

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHighlight_WrapsWholeWordOccurrencesOnce(t *testing.T) {
	entries := Mapping{
		"c1": {ID: "c1", DisplayName: "Mina", SourceName: "미나", Description: "The protagonist"},
	}

	result := Highlight("Mina smiled. Everyone liked Mina.", entries)

	assert.Equal(t, 2, strings.Count(result.Marked, `data-character-id="c1"`))
	assert.Equal(t,
		`<span class="character-name" data-character-id="c1">Mina</span> smiled. `+
			`Everyone liked <span class="character-name" data-character-id="c1">Mina</span>.`,
		result.Marked)
	assert.Contains(t, result.Matched, "c1")
}

func TestHighlight_CaseInsensitiveKeepsOriginalCasing(t *testing.T) {
	entries := Mapping{
		"c1": {ID: "c1", DisplayName: "Mina", Description: "lead"},
	}

	result := Highlight("MINA shouted.", entries)
	assert.Contains(t, result.Marked, ">MINA</span>")
}

func TestHighlight_WholeWordOnly(t *testing.T) {
	entries := Mapping{
		"c1": {ID: "c1", DisplayName: "Jun", Description: "a soldier"},
	}

	result := Highlight("The junction was crowded.", entries)
	assert.Equal(t, "The junction was crowded.", result.Marked)
	assert.Empty(t, result.Matched)
}

func TestHighlight_LongerNameClaimsSpanFirst(t *testing.T) {
	entries := Mapping{
		"long":  {ID: "long", DisplayName: "Kim Seo-jun", Description: "the duke"},
		"short": {ID: "short", DisplayName: "Seo-jun", Description: "the duke, informally"},
	}

	result := Highlight("Kim Seo-jun bowed. Seo-jun left.", entries)

	assert.Contains(t, result.Marked,
		`<span class="character-name" data-character-id="long">Kim Seo-jun</span> bowed.`)
	assert.Contains(t, result.Marked,
		`<span class="character-name" data-character-id="short">Seo-jun</span> left.`)
	// The longer span is never split by the shorter rule.
	assert.NotContains(t, result.Marked, `data-character-id="short">Seo-jun</span> bowed`)
}

func TestHighlight_SkipsEntriesWithoutDescription(t *testing.T) {
	entries := Mapping{
		"c1": {ID: "c1", DisplayName: "Mina", Description: ""},
		"c2": {ID: "c2", DisplayName: "Jiho", Description: "   "},
	}

	input := "Mina met Jiho."
	result := Highlight(input, entries)
	assert.Equal(t, input, result.Marked)
}

func TestHighlight_EmptyMappingShortCircuits(t *testing.T) {
	input := "Anything at all."
	assert.Equal(t, input, Highlight(input, nil).Marked)
	assert.Equal(t, input, Highlight(input, Mapping{}).Marked)
}

func TestHighlight_UnmatchedTextPassesThroughExactly(t *testing.T) {
	entries := Mapping{
		"c1": {ID: "c1", DisplayName: "Mina", Description: "lead"},
	}

	input := "  spacing\tand\nlines stay — Mina — intact  "
	result := Highlight(input, entries)

	stripped := strings.ReplaceAll(result.Marked,
		`<span class="character-name" data-character-id="c1">Mina</span>`, "Mina")
	assert.Equal(t, input, stripped)
}

func TestHighlight_MultiByteText(t *testing.T) {
	entries := Mapping{
		"c1": {ID: "c1", DisplayName: "Mina", Description: "lead"},
	}

	result := Highlight("그녀는 말했다: Mina!", entries)
	assert.Contains(t, result.Marked, `>Mina</span>!`)
	assert.True(t, strings.HasPrefix(result.Marked, "그녀는 말했다: "))
}

func TestHighlight_NoNestedSpans(t *testing.T) {
	entries := Mapping{
		"a": {ID: "a", DisplayName: "Mina Park", Description: "one"},
		"b": {ID: "b", DisplayName: "Mina", Description: "two"},
		"c": {ID: "c", DisplayName: "Park", Description: "three"},
	}

	result := Highlight("Mina Park arrived.", entries)
	require.Equal(t, 1, strings.Count(result.Marked, "<span"))
	assert.Contains(t, result.Marked, `data-character-id="a">Mina Park</span>`)
}
