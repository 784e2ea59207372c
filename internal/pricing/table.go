package pricing

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/hseol/chapter-translator/internal/token"
)

// DefaultModelKey is the fallback table entry consulted when no entry
// matches the requested model.
const DefaultModelKey = "default"

// ErrUnavailable is returned when neither the model nor a default entry
// resolves in the price table.
var ErrUnavailable = errors.New("pricing unavailable")

// ModelPrice holds USD prices per thousand tokens.
type ModelPrice struct {
	InputPerThousand  float64 `json:"input_per_thousand"`
	OutputPerThousand float64 `json:"output_per_thousand"`
}

// Table maps model identifiers to prices. A "default" entry, when
// present, prices models the table does not otherwise know.
type Table map[string]ModelPrice

// Clone returns an independent copy.
func (t Table) Clone() Table {
	if t == nil {
		return nil
	}
	out := make(Table, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Merge overlays other on top of t, returning a new table.
func (t Table) Merge(other Table) Table {
	out := t.Clone()
	if out == nil {
		out = make(Table, len(other))
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Resolve finds the price entry for a model: exact id first, then the
// normalized id (version suffixes stripped), then the last path
// component, then the default entry.
func (t Table) Resolve(model string) (ModelPrice, bool) {
	if len(t) == 0 {
		return ModelPrice{}, false
	}
	if p, ok := t[model]; ok {
		return p, true
	}

	target := normalizeModelName(model)
	if target != "" {
		for id, p := range t {
			if id == DefaultModelKey {
				continue
			}
			if normalizeModelName(id) == target {
				return p, true
			}
		}
		targetLast := lastPathComponent(target)
		for id, p := range t {
			if id == DefaultModelKey {
				continue
			}
			if lastPathComponent(normalizeModelName(id)) == targetLast {
				return p, true
			}
		}
	}

	if p, ok := t[DefaultModelKey]; ok {
		return p, true
	}
	return ModelPrice{}, false
}

var versionSuffixRe = regexp.MustCompile(`[-_]v?\d+(?:\.\d+)*$`)

// normalizeModelName lowercases an id and strips trailing version-like
// suffixes so "gemini-2.0-flash-001" compares equal to the catalog's
// "gemini-2.0-flash".
func normalizeModelName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = versionSuffixRe.ReplaceAllString(n, "")
	return n
}

func lastPathComponent(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Cost is a resolved monetary estimate for one translation request.
type Cost struct {
	Model      string  `json:"model"`
	InputCost  float64 `json:"input_cost"`
	OutputCost float64 `json:"output_cost"`
	TotalCost  float64 `json:"total_cost"`
	Currency   string  `json:"currency"`
}

// ComputeCost converts a token estimate into dollars using the table.
// Returns ErrUnavailable when the model cannot be priced.
func ComputeCost(est token.Estimate, table Table, model string) (Cost, error) {
	price, ok := table.Resolve(model)
	if !ok {
		return Cost{}, fmt.Errorf("%w: model %q", ErrUnavailable, model)
	}

	inputCost := float64(est.InputTokens) / 1000 * price.InputPerThousand
	outputCost := float64(est.OutputTokens) / 1000 * price.OutputPerThousand
	return Cost{
		Model:      model,
		InputCost:  inputCost,
		OutputCost: outputCost,
		TotalCost:  inputCost + outputCost,
		Currency:   "USD",
	}, nil
}

// FormatCost renders a dollar amount for display. Sub-cent costs keep
// four decimal places so per-chapter spend never rounds to zero.
func FormatCost(v float64) string {
	switch {
	case v < 0.01:
		return fmt.Sprintf("$%.4f", v)
	case v < 1:
		return fmt.Sprintf("$%.3f", v)
	default:
		return fmt.Sprintf("$%.2f", v)
	}
}
