package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hseol/chapter-translator/internal/token"
)

func TestComputeCost(t *testing.T) {
	table := Table{
		"m": {InputPerThousand: 0.01, OutputPerThousand: 0.03},
	}
	est := token.NewEstimate(1000, 500, 0)

	cost, err := ComputeCost(est, table, "m")
	require.NoError(t, err)
	assert.InDelta(t, 0.01, cost.InputCost, 1e-9)
	assert.InDelta(t, 0.015, cost.OutputCost, 1e-9)
	assert.InDelta(t, 0.025, cost.TotalCost, 1e-9)
	assert.Equal(t, "USD", cost.Currency)
}

func TestComputeCost_UnknownModelNoDefault(t *testing.T) {
	table := Table{
		"m": {InputPerThousand: 0.01, OutputPerThousand: 0.03},
	}
	_, err := ComputeCost(token.NewEstimate(10, 10, 0), table, "other")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestComputeCost_DefaultFallback(t *testing.T) {
	table := Table{
		DefaultModelKey: {InputPerThousand: 0.002, OutputPerThousand: 0.004},
	}
	cost, err := ComputeCost(token.NewEstimate(500, 250, 0), table, "anything")
	require.NoError(t, err)
	assert.InDelta(t, 0.002, cost.TotalCost, 1e-9)
}

func TestResolve_NormalizedVersionSuffix(t *testing.T) {
	table := Table{
		"google/gemini-2.0-flash": {InputPerThousand: 0.0001, OutputPerThousand: 0.0004},
	}
	_, ok := table.Resolve("google/gemini-2.0-flash-001")
	assert.True(t, ok)
}

func TestResolve_LastPathComponent(t *testing.T) {
	table := Table{
		"google/gemini-2.0-flash": {InputPerThousand: 0.0001, OutputPerThousand: 0.0004},
	}
	_, ok := table.Resolve("gemini-2.0-flash")
	assert.True(t, ok)
}

func TestResolve_EmptyTable(t *testing.T) {
	var table Table
	_, ok := table.Resolve("m")
	assert.False(t, ok)
}

func TestFormatCost(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.005, "$0.0050"},
		{0.5, "$0.500"},
		{2, "$2.00"},
		{0.0001, "$0.0001"},
		{0.999, "$0.999"},
		{1, "$1.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCost(tt.in))
	}
}

func TestMerge_OverlaysWithoutMutating(t *testing.T) {
	base := Table{"a": {InputPerThousand: 1}}
	over := Table{"a": {InputPerThousand: 2}, "b": {InputPerThousand: 3}}

	merged := base.Merge(over)
	assert.Equal(t, 2.0, merged["a"].InputPerThousand)
	assert.Equal(t, 3.0, merged["b"].InputPerThousand)
	assert.Equal(t, 1.0, base["a"].InputPerThousand)
}
