package store

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/blevesearch/snowballstem"
	"github.com/blevesearch/snowballstem/english"
	"golang.org/x/text/unicode/norm"
)

// tokenRegex matches runs of Unicode letters, digits, and underscores.
// Everything else is a separator.
var tokenRegex = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// stopWords are dropped during tokenization: common English function words
// plus question words.
var stopWords = BuildStopWordMap([]string{
	"the", "a", "an", "is", "are", "to", "of", "and", "in", "on", "for",
	"by", "with", "at", "from", "as", "it", "this", "that", "be", "or",
	"what", "which", "who", "whom", "whose", "when", "where", "why", "how",
})

// Tokenize normalizes text into search tokens: NFKC normalization,
// casefolding, splitting on non-letter/digit/underscore runs, stop-word and
// pure-numeric removal, then English Snowball stemming. Pure and
// deterministic; empty input yields an empty (non-nil) list.
func Tokenize(text string) []string {
	tokens := []string{}
	if text == "" {
		return tokens
	}

	normalized := strings.ToLower(norm.NFKC.String(text))
	for _, tok := range tokenRegex.FindAllString(normalized, -1) {
		if _, isStop := stopWords[tok]; isStop {
			continue
		}
		if isNumeric(tok) {
			continue
		}
		tokens = append(tokens, stem(tok))
	}

	return tokens
}

// isNumeric reports whether the token consists entirely of digits.
func isNumeric(tok string) bool {
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(tok) > 0
}

// stem applies the English Snowball stemmer to a single token.
func stem(tok string) string {
	env := snowballstem.NewEnv(tok)
	english.Stem(env)
	return env.Current()
}

// TokenSet converts a token list to a set.
func TokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// BuildStopWordMap converts a slice of stop words to a map for efficient lookup.
func BuildStopWordMap(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}
