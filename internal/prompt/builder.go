package prompt

import (
	"fmt"
	"strings"
)

// DefaultWordLimit is the answer word cap stated in detailed prompts.
const DefaultWordLimit = 200

// taxonomy is the operation taxonomy sentence included in detailed prompts.
const taxonomy = "Operation taxonomy: aggregation (sum/avg/count), comparison (between entities), " +
	"superlative (max/min/top), lookup (retrieve an exact value), trend (time-evolution), explain (reasons)."

// intentTails are the intent-specific prompt endings. Their bullet structure
// is load-bearing: downstream post-processing depends on these exact shapes.
var intentTails = map[Intent]string{
	IntentTrend: "Provide a detailed trend analysis focused on:\n" +
		"- Direction and magnitude of changes over time\n" +
		"- Notable inflection points or anomalies (with dates)\n" +
		"- Brief reasoning grounded in the data\n\nAnswer:",
	IntentCompare: "Provide a detailed comparison that includes:\n" +
		"- A short comparison of key metrics for each entity\n" +
		"- The winner/better option per metric with a one-line rationale\n" +
		"- Any caveats or missing data\n\nAnswer:",
	IntentSuperlative: "Provide a superlative-focused answer:\n" +
		"- Identify the candidate rows\n" +
		"- State the criterion and the max/min value with the entity/date\n" +
		"- Show a single supporting line with values\n\nAnswer:",
	IntentCalc: "Provide a calculation-oriented answer:\n" +
		"- State the formula and variables used\n" +
		"- Show minimal steps (1-3) with referenced values\n" +
		"- Give the final numeric result with units/format\n\nAnswer:",
	IntentLookup: "Provide a precise fact-based answer:\n" +
		"- Identify the exact row(s)/cell(s) used\n" +
		"- Return the value(s) clearly\n\nAnswer:",
	IntentExplain: "Provide a brief explanation grounded in data:\n" +
		"- List 2-3 possible reasons supported by the table\n" +
		"- Note uncertainties or missing fields if any\n\nAnswer:",
	IntentSummary: "Provide a detailed yet focused answer:\n" +
		"- Key insights (bullet points)\n" +
		"- Any anomalies or outliers\n" +
		"- Short conclusion\n\nAnswer:",
}

// Builder constructs generation prompts from selected evidence snippets.
type Builder struct {
	// WordLimit caps the answer length stated in detailed prompts.
	WordLimit int
}

// NewBuilder creates a prompt builder with the given word limit
// (<= 0 uses the default).
func NewBuilder(wordLimit int) *Builder {
	if wordLimit <= 0 {
		wordLimit = DefaultWordLimit
	}
	return &Builder{WordLimit: wordLimit}
}

// Concise builds the short-form prompt: role header, evidence block,
// question, answer cue.
func (b *Builder) Concise(snippets []string, question string) string {
	return "You are a helpful assistant. Use the following table snippets to answer the question concisely.\n\n" +
		strings.Join(snippets, "\n\n") +
		fmt.Sprintf("\n\nQuestion: %s\nAnswer:", question)
}

// Detailed builds the long-form prompt: fixed preamble, taxonomy, evidence
// block, question, and the intent-specific tail.
func (b *Builder) Detailed(snippets []string, question string) string {
	intent := DetectIntent(question)

	lines := []string{
		"You are a helpful financial table assistant.",
		"Use only the provided table snippets as evidence.",
		"If evidence is insufficient, reply with 'Insufficient evidence' and request a more specific query.",
		"Cite or reference the most relevant rows when helpful.",
		"Be accurate and avoid unsupported assumptions.",
		fmt.Sprintf("Keep the final answer under approximately %d words while remaining clear.", b.WordLimit),
		taxonomy,
		"",
		strings.Join(snippets, "\n\n"),
		"",
		fmt.Sprintf("Question: %s", question),
		"",
		"First, implicitly decide the operation type from the taxonomy (no need to print it). Then answer accordingly.",
		"",
	}

	return strings.Join(lines, "\n") + intentTails[intent]
}

// Build constructs the prompt for the requested mode.
func (b *Builder) Build(snippets []string, question string, detailed bool) string {
	if detailed {
		return b.Detailed(snippets, question)
	}
	return b.Concise(snippets, question)
}
