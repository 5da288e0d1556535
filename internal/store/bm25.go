// Package store provides the lexical statistics (BM25) and the persistent
// flat vector index backing hybrid retrieval.
package store

import (
	"math"
)

// BM25 parameters.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75

	// avgdlEpsilon guards the length-normalization denominator when the
	// average document length is zero.
	avgdlEpsilon = 1e-9
)

// BM25 holds per-corpus inverted statistics. Build once per ingestion;
// safe for concurrent readers afterwards.
type BM25 struct {
	k1 float64
	b  float64

	docTokens [][]string
	docLen    []int
	n         int
	avgdl     float64
	idf       map[string]float64
}

// NewBM25 builds BM25 statistics over the corpus texts with default
// parameters.
func NewBM25(docs []string) *BM25 {
	return NewBM25WithParams(docs, DefaultK1, DefaultB)
}

// NewBM25WithParams builds BM25 statistics with explicit k1 and b.
func NewBM25WithParams(docs []string, k1, b float64) *BM25 {
	s := &BM25{
		k1:        k1,
		b:         b,
		docTokens: make([][]string, len(docs)),
		docLen:    make([]int, len(docs)),
		n:         len(docs),
		idf:       make(map[string]float64),
	}

	df := make(map[string]int)
	totalLen := 0
	for i, doc := range docs {
		toks := Tokenize(doc)
		s.docTokens[i] = toks
		s.docLen[i] = len(toks)
		totalLen += len(toks)

		// Document frequency counts each term once per document.
		for term := range TokenSet(toks) {
			df[term]++
		}
	}

	if s.n > 0 {
		s.avgdl = float64(totalLen) / float64(s.n)
	}

	for term, f := range df {
		s.idf[term] = math.Log(1 + (float64(s.n)-float64(f)+0.5)/(float64(f)+0.5))
	}

	return s
}

// Len returns the corpus size.
func (s *BM25) Len() int {
	return s.n
}

// DocTokens returns the tokenized form of document i.
func (s *BM25) DocTokens(i int) []string {
	return s.docTokens[i]
}

// Score returns the BM25 score of every document against the query, in
// corpus order. The result always has the same length as the corpus; an
// empty query or corpus yields a vector of zeros, and a document with no
// tokens scores zero regardless of query.
func (s *BM25) Score(query string) []float64 {
	scores := make([]float64, s.n)

	qToks := Tokenize(query)
	if len(qToks) == 0 || s.n == 0 {
		return scores
	}

	// Frequency counting deduplicates query terms: each distinct term
	// contributes once per document.
	qCounts := make(map[string]int, len(qToks))
	for _, t := range qToks {
		qCounts[t]++
	}

	for i, docToks := range s.docTokens {
		if len(docToks) == 0 {
			continue
		}

		freq := make(map[string]int, len(docToks))
		for _, t := range docToks {
			freq[t]++
		}

		dl := float64(s.docLen[i])
		denom := s.k1 * (1 - s.b + s.b*dl/(s.avgdl+avgdlEpsilon))

		sum := 0.0
		for t := range qCounts {
			f, ok := freq[t]
			if !ok {
				continue
			}
			sum += s.idf[t] * (float64(f) * (s.k1 + 1)) / (float64(f) + denom)
		}
		scores[i] = sum
	}

	return scores
}
