package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize_DropsStopWordsAndNumerics(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "stop words and digits removed",
			input: "What is the revenue of A in 2023",
			want:  []string{"revenu"},
		},
		{
			name:  "question words removed",
			input: "why how when revenue",
			want:  []string{"revenu"},
		},
		{
			name:  "pure numerics removed but mixed kept",
			input: "100 q3 2023",
			want:  []string{"q3"},
		},
		{
			name:  "empty input",
			input: "",
			want:  []string{},
		},
		{
			name:  "only separators",
			input: "!!! --- ...",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.input))
		})
	}
}

func TestTokenize_Stems(t *testing.T) {
	assert.Equal(t, []string{"run", "price"}, Tokenize("Running pricES"))
}

func TestTokenize_NFKCNormalizes(t *testing.T) {
	// Fullwidth digits become ASCII digits and are then dropped as numeric.
	assert.Equal(t, []string{}, Tokenize("１２３"))

	// Ligature fi decomposes.
	got := Tokenize("ﬁn")
	assert.Equal(t, []string{"fin"}, got)
}

func TestTokenize_SplitsOnNonWordRuns(t *testing.T) {
	got := Tokenize("Revenue: 100; Product-Name=Widget")
	assert.Equal(t, []string{"revenu", "product", "name", "widget"}, got)
}

func TestTokenize_Deterministic(t *testing.T) {
	input := "Closing prices trending upward"
	first := Tokenize(input)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Tokenize(input))
	}
}

func TestTokenSet(t *testing.T) {
	set := TokenSet([]string{"a", "b", "a"})
	assert.Len(t, set, 2)
	_, ok := set["a"]
	assert.True(t, ok)
}
