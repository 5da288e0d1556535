// Package prompt routes queries to intent-specialized prompt templates for
// the generative model.
package prompt

import (
	"strings"
)

// Intent is the operation class a query is routed to.
type Intent string

const (
	IntentCompare     Intent = "compare"
	IntentTrend       Intent = "trend"
	IntentSuperlative Intent = "superlative"
	IntentCalc        Intent = "calc"
	IntentLookup      Intent = "lookup"
	IntentExplain     Intent = "explain"
	IntentSummary     Intent = "summary"
)

// intentRules is the first-match cascade over lowercase substrings of the
// query. Order matters: compare before trend before superlative before calc
// before lookup before explain; summary is the default.
var intentRules = []struct {
	intent   Intent
	triggers []string
}{
	{IntentCompare, []string{"compare", "versus", " vs ", "greater than", "less than", "higher than", "lower than"}},
	{IntentTrend, []string{"trend", "evolution", "growth", "decline", "increase", "decrease", "over time"}},
	{IntentSuperlative, []string{"highest", "lowest", "max", "min", "top", "least", "maximum", "minimum"}},
	{IntentCalc, []string{"sum", "average", "avg", "mean", "median", "total", "variance", "std", "standard deviation", "count"}},
	{IntentLookup, []string{"what is", "value of", "lookup", "find", "return", "show"}},
	{IntentExplain, []string{"why", "explain", "reason"}},
}

// DetectIntent classifies a query. Every string maps to exactly one intent;
// empty input maps to summary.
func DetectIntent(query string) Intent {
	q := strings.ToLower(query)
	for _, rule := range intentRules {
		for _, trigger := range rule.triggers {
			if strings.Contains(q, trigger) {
				return rule.intent
			}
		}
	}
	return IntentSummary
}
