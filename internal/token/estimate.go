package token

import "unicode"

// Estimate holds token counts for one translation request.
// TotalTokens equals InputTokens+OutputTokens unless the provider
// reported its own total.
type Estimate struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// NewEstimate derives the total when the source did not supply one.
func NewEstimate(input, output, total int) Estimate {
	if input < 0 {
		input = 0
	}
	if output < 0 {
		output = 0
	}
	if total <= 0 {
		total = input + output
	}
	return Estimate{
		InputTokens:  input,
		OutputTokens: output,
		TotalTokens:  total,
	}
}

const (
	// Latin-ish prose averages roughly four characters per token.
	charsPerToken = 4
	// Fixed prompt scaffolding (system prompt, formatting rules) sent
	// with every translation request.
	promptOverheadTokens = 650
	// CJK source expands when rendered in the target language, so the
	// output guess is scaled up from the input text tokens.
	outputExpansionPct = 120
)

// Estimator produces pre-flight token estimates from raw chapter text.
// CJK runes tokenize close to one token per rune; everything else is
// counted by the chars-per-token heuristic.
type Estimator struct {
	PromptOverhead int
}

func NewEstimator() Estimator {
	return Estimator{PromptOverhead: promptOverheadTokens}
}

func (e Estimator) Estimate(text string) Estimate {
	textTokens := CountTextTokens(text)
	input := textTokens + e.PromptOverhead
	output := textTokens * outputExpansionPct / 100
	if len(text) > 0 && output == 0 {
		output = 1
	}
	return NewEstimate(input, output, 0)
}

// CountTextTokens approximates the token count of raw text.
func CountTextTokens(text string) int {
	cjk := 0
	other := 0
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			other++
		}
	}
	tokens := cjk + other/charsPerToken
	if tokens == 0 && (cjk > 0 || other > 0) {
		tokens = 1
	}
	return tokens
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hangul, unicode.Hiragana, unicode.Katakana)
}
