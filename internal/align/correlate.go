package align

// Pair is the source and translated unit sharing one index. A side is
// absent when its sequence is shorter than the other.
type Pair struct {
	Index      int   `json:"index"`
	Source     *Unit `json:"source,omitempty"`
	Translated *Unit `json:"translated,omitempty"`
}

// Alignment correlates two unit sequences by position. The pairing is
// positional only: nothing verifies that unit i of the translation
// renders unit i of the source, and the sequences may differ in length.
type Alignment struct {
	source     []Unit
	translated []Unit
}

// Correlate builds an Alignment over two independently segmented texts.
func Correlate(source, translated []Unit) Alignment {
	return Alignment{source: source, translated: translated}
}

// Len is the length of the longer sequence.
func (a Alignment) Len() int {
	if len(a.source) > len(a.translated) {
		return len(a.source)
	}
	return len(a.translated)
}

// Skew reports how far the sequence lengths diverge. A large skew means
// positional correlation is unreliable past the shorter sequence.
func (a Alignment) Skew() int {
	d := len(a.source) - len(a.translated)
	if d < 0 {
		return -d
	}
	return d
}

// At returns the pair at index i. Past the shorter sequence the missing
// side is nil; the sequences are never padded or truncated. False means
// i is out of range on both sides.
func (a Alignment) At(i int) (Pair, bool) {
	if i < 0 || i >= a.Len() {
		return Pair{}, false
	}
	p := Pair{Index: i}
	if i < len(a.source) {
		p.Source = &a.source[i]
	}
	if i < len(a.translated) {
		p.Translated = &a.translated[i]
	}
	return p, true
}

// Pairs materializes every index as a slice, for serialization.
func (a Alignment) Pairs() []Pair {
	pairs := make([]Pair, 0, a.Len())
	for i := 0; i < a.Len(); i++ {
		p, _ := a.At(i)
		pairs = append(pairs, p)
	}
	return pairs
}

// MapScrollOffset mirrors a scroll position proportionally from one
// panel onto the other. It is independent of segmentation and applies
// during passive scrolling regardless of alignment quality.
func MapScrollOffset(offset, srcExtent, dstExtent float64) float64 {
	if srcExtent <= 0 || dstExtent <= 0 {
		return 0
	}
	if offset < 0 {
		offset = 0
	}
	if offset > srcExtent {
		offset = srcExtent
	}
	return offset / srcExtent * dstExtent
}
