package adjustment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratedeck/decision/comparison"
	rderrors "ratedeck/pkg/errors"
)

func ptr(f float64) *float64 { return &f }

func deck() []comparison.StandardizedRecord {
	return []comparison.StandardizedRecord{
		{DialCode: "44", DestName: "UK", Rate: 0.1},
		{DialCode: "33", DestName: "France", Rate: 0.2},
		{DialCode: "49", DestName: "Germany", Rate: 0.05},
	}
}

func TestAdjustRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rate float64
		rule Rule
		want float64
	}{
		{"percentage increase", 0.1, Rule{Direction: DirectionIncrease, Type: TypePercentage, Value: 10}, 0.11},
		{"percentage decrease", 0.2, Rule{Direction: DirectionDecrease, Type: TypePercentage, Value: 25}, 0.15},
		{"fixed increase", 0.1, Rule{Direction: DirectionIncrease, Type: TypeFixed, Value: 0.005}, 0.105},
		{"fixed decrease floors at zero", 0.01, Rule{Direction: DirectionDecrease, Type: TypeFixed, Value: 0.5}, 0},
		{"rounds to six places", 0.1234567, Rule{Direction: DirectionIncrease, Type: TypeFixed, Value: 0.0000001}, 0.123457},
		{"clamped to max", 0.1, Rule{Direction: DirectionIncrease, Type: TypePercentage, Value: 100, MaxRate: ptr(0.15)}, 0.15},
		{"clamped to min", 0.1, Rule{Direction: DirectionDecrease, Type: TypePercentage, Value: 90, MinRate: ptr(0.02)}, 0.02},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, AdjustRate(tt.rate, tt.rule), 1e-12)
		})
	}
}

func TestEngine_Apply_When_FirstMatchingRuleWins(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine([]Rule{
		{Name: "uk-up", Direction: DirectionIncrease, Type: TypePercentage, Value: 10, Destinations: []string{"uk"}},
		{Name: "all-down", Direction: DirectionDecrease, Type: TypeFixed, Value: 0.01},
	})
	require.NoError(t, err)

	result := engine.Apply(deck())
	require.Len(t, result.Records, 3)

	assert.InDelta(t, 0.11, result.Records[0].Rate, 1e-12)
	assert.Equal(t, "uk-up", result.Records[0].Rule)
	assert.InDelta(t, 0.19, result.Records[1].Rate, 1e-12)
	assert.Equal(t, "all-down", result.Records[1].Rule)
	assert.InDelta(t, 0.04, result.Records[2].Rate, 1e-12)
	assert.Equal(t, 0.05, result.Records[2].OldRate)

	assert.Equal(t, 3, result.Adjusted)
	assert.Equal(t, 0, result.Unchanged)
	assert.Equal(t, map[string]int{"uk-up": 1, "all-down": 2}, result.ByRule)
}

func TestEngine_Apply_When_NoRuleMatches(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine([]Rule{
		{Name: "spain", Direction: DirectionIncrease, Type: TypePercentage, Value: 10, Destinations: []string{"Spain"}},
		{Name: "off", Direction: DirectionIncrease, Type: TypePercentage, Value: 50, Disabled: true},
	})
	require.NoError(t, err)

	input := deck()
	result := engine.Apply(input)

	assert.Equal(t, 0, result.Adjusted)
	assert.Equal(t, 3, result.Unchanged)
	assert.Empty(t, result.ByRule)
	assert.Equal(t, input, result.Standardized())
}

func TestNewEngine_When_RuleInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule Rule
	}{
		{"missing name", Rule{Direction: DirectionIncrease, Type: TypeFixed, Value: 1}},
		{"bad direction", Rule{Name: "x", Direction: "sideways", Type: TypeFixed, Value: 1}},
		{"bad type", Rule{Name: "x", Direction: DirectionIncrease, Type: "ratio", Value: 1}},
		{"zero value", Rule{Name: "x", Direction: DirectionIncrease, Type: TypeFixed}},
		{"decrease over 100 percent", Rule{Name: "x", Direction: DirectionDecrease, Type: TypePercentage, Value: 120}},
		{"inverted bounds", Rule{Name: "x", Direction: DirectionIncrease, Type: TypeFixed, Value: 1, MinRate: ptr(2), MaxRate: ptr(1)}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewEngine([]Rule{tt.rule})
			require.Error(t, err)
			assert.ErrorIs(t, err, rderrors.ErrInvalidRule)
		})
	}
}

func TestLoadRules(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rules.yaml")
	body := `rules:
  - name: europe-markup
    direction: increase
    type: percentage
    value: 12.5
    destinations: [France, Germany]
    max_rate: 0.5
  - name: floor-cut
    direction: decrease
    type: fixed
    value: 0.001
    disabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "europe-markup", rules[0].Name)
	assert.Equal(t, DirectionIncrease, rules[0].Direction)
	assert.Equal(t, TypePercentage, rules[0].Type)
	assert.Equal(t, 12.5, rules[0].Value)
	assert.Equal(t, []string{"France", "Germany"}, rules[0].Destinations)
	require.NotNil(t, rules[0].MaxRate)
	assert.Equal(t, 0.5, *rules[0].MaxRate)
	assert.Nil(t, rules[0].MinRate)
	assert.True(t, rules[1].Disabled)
}

func TestParseRules_When_Malformed(t *testing.T) {
	t.Parallel()

	_, err := ParseRules([]byte("rules: [name: x"))
	assert.Error(t, err)

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
