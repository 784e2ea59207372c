package align

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitTexts(units []Unit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.Text
	}
	return out
}

func TestSegment_SentencePunctuation(t *testing.T) {
	units := Segment("A. B! C?")
	assert.Equal(t, []string{"A.", "B!", "C?"}, unitTexts(units))
}

func TestSegment_Newlines(t *testing.T) {
	units := Segment("line1\nline2")
	assert.Equal(t, []string{"line1", "line2"}, unitTexts(units))
}

func TestSegment_Empty(t *testing.T) {
	assert.Empty(t, Segment(""))
}

func TestSegment_PunctuationRunStaysWithUnit(t *testing.T) {
	units := Segment("Really?! No way... Done.")
	assert.Equal(t, []string{"Really?!", "No way...", "Done."}, unitTexts(units))
}

func TestSegment_DropsWhitespaceOnlyUnits(t *testing.T) {
	units := Segment("A.\n   \n\nB.")
	assert.Equal(t, []string{"A.", "B."}, unitTexts(units))
}

func TestSegment_TrailingTextWithoutTerminator(t *testing.T) {
	units := Segment("First. trailing words")
	assert.Equal(t, []string{"First.", "trailing words"}, unitTexts(units))
}

func TestSegment_IndexesAreSequential(t *testing.T) {
	units := Segment("A. B. C.")
	for i, u := range units {
		assert.Equal(t, i, u.Index)
	}
}

func TestCorrelate_PositionalPairs(t *testing.T) {
	src := Segment("하나. 둘. 셋.")
	dst := Segment("One. Two. Three.")

	a := Correlate(src, dst)
	require.Equal(t, 3, a.Len())
	assert.Equal(t, 0, a.Skew())

	p, ok := a.At(1)
	require.True(t, ok)
	assert.Equal(t, "둘.", p.Source.Text)
	assert.Equal(t, "Two.", p.Translated.Text)
}

func TestCorrelate_DivergingLengths(t *testing.T) {
	src := Segment("하나. 둘.")
	dst := Segment("One. Two. Three.")

	a := Correlate(src, dst)
	assert.Equal(t, 3, a.Len())
	assert.Equal(t, 1, a.Skew())

	p, ok := a.At(2)
	require.True(t, ok)
	assert.Nil(t, p.Source)
	require.NotNil(t, p.Translated)
	assert.Equal(t, "Three.", p.Translated.Text)

	_, ok = a.At(3)
	assert.False(t, ok)
}

func TestCorrelate_Pairs(t *testing.T) {
	a := Correlate(Segment("A."), Segment("B. C."))
	pairs := a.Pairs()
	require.Len(t, pairs, 2)
	assert.Equal(t, "A.", pairs[0].Source.Text)
	assert.Nil(t, pairs[1].Source)
}

func TestMapScrollOffset(t *testing.T) {
	assert.Equal(t, 50.0, MapScrollOffset(25, 100, 200))
	assert.Equal(t, 0.0, MapScrollOffset(10, 0, 200))
	assert.Equal(t, 200.0, MapScrollOffset(150, 100, 200))
	assert.Equal(t, 0.0, MapScrollOffset(-5, 100, 200))
}
