package search

import (
	"regexp"
	"strings"

	"github.com/claracenn/finlite/internal/store"
)

// The coverage gate uses a lighter tokenization than retrieval: no stemmer,
// just short-token and stop-word removal, suffix stripping, and a small
// synonym map tuned for financial sheet vocabulary.

// coverageStopWords extends the base stop list with question words.
var coverageStopWords = store.BuildStopWordMap([]string{
	"the", "a", "an", "is", "are", "to", "of", "and", "in", "on", "for",
	"by", "with", "at", "from", "as", "it", "this", "that", "be", "or",
	"what", "which", "who", "whom", "whose", "when", "where", "why", "how",
})

// coverageSuffixes are tested in order; ordering matters ("ing" before "s").
var coverageSuffixes = []string{"ing", "ed", "es", "s"}

// coverageSynonyms folds common inflection survivors onto one form.
var coverageSynonyms = map[string]string{
	"closing": "close",
	"closed":  "close",
	"prices":  "price",
}

var coverageSplitRegex = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// minPrefixLen is the minimum token length for the prefix-match relation.
const minPrefixLen = 4

// Gate holds the two answerability thresholds. Its methods apply only the
// coverage threshold; the fused-score gate is applied by Retriever.Retrieve
// through Options.AnswerThreshold.
type Gate struct {
	// AnswerThreshold is the fused-score gate. No Gate method reads it.
	AnswerThreshold float64

	// OverlapThreshold is the coverage gate.
	OverlapThreshold float64
}

// CoverageTokens tokenizes text with the coverage rules: lowercase split on
// non-word runs, drop tokens of length <= 2 and stop words, strip one
// trailing suffix when the remainder keeps at least 4 characters, then apply
// the synonym map.
func CoverageTokens(text string) []string {
	tokens := []string{}
	for _, raw := range coverageSplitRegex.Split(strings.ToLower(text), -1) {
		if len(raw) <= 2 {
			continue
		}
		if _, isStop := coverageStopWords[raw]; isStop {
			continue
		}
		tokens = append(tokens, normalizeCoverageToken(raw))
	}
	return tokens
}

// normalizeCoverageToken strips the first matching suffix and folds
// synonyms.
func normalizeCoverageToken(tok string) string {
	for _, suf := range coverageSuffixes {
		if strings.HasSuffix(tok, suf) && len(tok)-len(suf) >= minPrefixLen {
			tok = tok[:len(tok)-len(suf)]
			break
		}
	}
	if folded, ok := coverageSynonyms[tok]; ok {
		return folded
	}
	return tok
}

// Coverage returns the maximum query-term coverage across the selected
// snippets: per snippet, the fraction of distinct query tokens matched by
// exact equality or by a length->=4 prefix relation in either direction.
func (g *Gate) Coverage(query string, snippets []string) float64 {
	qset := store.TokenSet(CoverageTokens(query))
	if len(qset) == 0 {
		return 0
	}

	best := 0.0
	for _, snippet := range snippets {
		tset := store.TokenSet(CoverageTokens(snippet))
		if len(tset) == 0 {
			continue
		}

		matched := 0
		for qt := range qset {
			if _, ok := tset[qt]; ok {
				matched++
				continue
			}
			if len(qt) >= minPrefixLen && prefixMatch(qt, tset) {
				matched++
			}
		}

		if cov := float64(matched) / float64(len(qset)); cov > best {
			best = cov
		}
	}
	return best
}

// prefixMatch reports whether any snippet token of length >= 4 is a prefix
// of qt, or qt a prefix of it.
func prefixMatch(qt string, tset map[string]struct{}) bool {
	for tt := range tset {
		if len(tt) < minPrefixLen {
			continue
		}
		if strings.HasPrefix(qt, tt) || strings.HasPrefix(tt, qt) {
			return true
		}
	}
	return false
}

// PassesCoverage applies the coverage threshold to the selected snippets.
func (g *Gate) PassesCoverage(query string, snippets []string) bool {
	return g.Coverage(query, snippets) >= g.OverlapThreshold
}
