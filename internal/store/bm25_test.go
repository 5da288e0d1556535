package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBM25_ScoreLengthMatchesCorpus(t *testing.T) {
	docs := []string{"apple banana", "cherry", "apple apple"}
	bm25 := NewBM25(docs)

	for _, q := range []string{"apple", "", "nothing matches here"} {
		assert.Len(t, bm25.Score(q), len(docs))
	}
}

func TestBM25_EmptyQueryYieldsZeros(t *testing.T) {
	bm25 := NewBM25([]string{"apple banana", "cherry"})

	scores := bm25.Score("")
	require.Len(t, scores, 2)
	assert.Equal(t, []float64{0, 0}, scores)
}

func TestBM25_EmptyCorpus(t *testing.T) {
	bm25 := NewBM25(nil)
	assert.Empty(t, bm25.Score("apple"))
	assert.Equal(t, 0, bm25.Len())
}

func TestBM25_EmptyDocumentScoresZero(t *testing.T) {
	// Second document tokenizes to nothing (stop words and digits only).
	bm25 := NewBM25([]string{"apple banana", "the of 100"})

	scores := bm25.Score("apple banana")
	assert.Greater(t, scores[0], 0.0)
	assert.Equal(t, 0.0, scores[1])
}

func TestBM25_IDFFormula(t *testing.T) {
	// Single document, single matching term: the per-doc score reduces to
	// idf * f*(k1+1)/(f+denom) with f=1, dl=avgdl, denom=k1.
	bm25 := NewBM25([]string{"apple banana"})

	wantIDF := math.Log(1 + (1-1+0.5)/(1+0.5))
	scores := bm25.Score("apple")
	require.Len(t, scores, 1)

	denom := DefaultK1 * (1 - DefaultB + DefaultB*2/(2+1e-9))
	want := wantIDF * (1 * (DefaultK1 + 1)) / (1 + denom)
	assert.InDelta(t, want, scores[0], 1e-9)
}

func TestBM25_RanksHigherTermFrequencyFirst(t *testing.T) {
	docs := []string{
		"apple apple apple stock",
		"apple banana cherry stock",
		"banana cherry melon stock",
	}
	bm25 := NewBM25(docs)

	scores := bm25.Score("apple")
	assert.Greater(t, scores[0], scores[1])
	assert.Greater(t, scores[1], scores[2])
	assert.Equal(t, 0.0, scores[2])
}

func TestBM25_QueryTermsDeduplicated(t *testing.T) {
	bm25 := NewBM25([]string{"apple banana"})

	// Repeating a query term must not change the score: each distinct term
	// contributes once.
	single := bm25.Score("apple")
	repeated := bm25.Score("apple apple apple")
	assert.InDelta(t, single[0], repeated[0], 1e-12)
}

func TestBM25_DocTokens(t *testing.T) {
	bm25 := NewBM25([]string{"Running prices"})
	assert.Equal(t, []string{"run", "price"}, bm25.DocTokens(0))
}
