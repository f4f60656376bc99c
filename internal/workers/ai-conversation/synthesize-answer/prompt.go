// internal/workers/ai-conversation/synthesize-answer/prompt.go
package synthesizeanswer

import (
	"fmt"
	"strings"

	"finqa-agent/internal/models"
)

// buildContext renders non-empty results as labeled blocks. Labels run
// S1, S2, ... across the whole context in sub-query order.
func (s *Synthesizer) buildContext(results []models.RetrievalResult) (string, map[string]labeledPassage) {
	var parts []string
	labels := make(map[string]labeledPassage)

	for _, r := range results {
		if !r.HasPassages() {
			continue
		}
		parts = append(parts, fmt.Sprintf("Results for '%s':", r.SubQuery.Text))

		limit := len(r.Passages)
		if s.config.ContextPassages > 0 && limit > s.config.ContextPassages {
			limit = s.config.ContextPassages
		}
		for _, p := range r.Passages[:limit] {
			label := fmt.Sprintf("S%d", len(labels)+1)
			labels[label] = labeledPassage{Label: label, Passage: p, SubQuery: r.SubQuery}
			parts = append(parts, fmt.Sprintf("  [%s] %s %d %s: %s",
				label, p.Source.Company, p.Source.Year, p.Source.Section, truncate(p.Text, s.config.ExcerptChars)))
		}
		parts = append(parts, "")
	}

	if len(parts) == 0 {
		return "No relevant passages were found in the filings.", labels
	}
	return strings.Join(parts, "\n"), labels
}

func buildPrompt(question string, queryType models.QueryType, subQueries []models.SubQuery, context, hint string) string {
	var parts []string

	parts = append(parts, "You are a financial analyst answering questions from SEC 10-K filings.")
	parts = append(parts, "Answer ONLY from the context below. If the context does not contain the answer, say so.")
	parts = append(parts, "Cite every passage you use by its label, for example [S2].")
	parts = append(parts, fmt.Sprintf("\nQuery: %s", question))

	if len(subQueries) > 1 {
		texts := make([]string, len(subQueries))
		for i, sq := range subQueries {
			texts[i] = sq.Text
		}
		parts = append(parts, fmt.Sprintf("Sub-queries analyzed: %s", strings.Join(texts, ", ")))
	}

	parts = append(parts, "\nContext:")
	parts = append(parts, context)

	if hint != "" {
		parts = append(parts, fmt.Sprintf("\nCalculation hint: %s", hint))
	}

	parts = append(parts, "")
	parts = append(parts, instructions(queryType)...)

	parts = append(parts, "\nFormat your response as:")
	parts = append(parts, "ANSWER: [answer with specific numbers and [S#] citations]")
	parts = append(parts, "REASONING: [how the context supports the answer]")
	parts = append(parts, "CONFIDENCE: [high/medium/low]")

	return strings.Join(parts, "\n")
}

func instructions(queryType models.QueryType) []string {
	switch queryType {
	case models.QueryTypeSimpleDirect:
		return []string{
			"Provide a direct answer with specific numbers and sources.",
			"If you find the exact figure, state it clearly. If not, explain what information is available.",
		}
	case models.QueryTypeComparativeYoY:
		return []string{
			"Compare the metric across the time periods. Show:",
			"1. The specific value for each year",
			"2. The change, absolute and as a percentage where possible",
			"3. Any context the filings give for the change",
		}
	case models.QueryTypeCrossCompany:
		return []string{
			"Compare the metric across companies and determine:",
			"1. The specific value for each company",
			"2. Which company ranks highest and lowest",
			"3. Any notable differences",
		}
	case models.QueryTypeSegmentAnalysis:
		return []string{
			"Relate the segment to the company total. Show:",
			"1. The segment figure",
			"2. The total figure",
			"3. The segment's share of the total as a percentage",
		}
	default:
		return []string{
			"Address every aspect of the query. Include:",
			"1. Direct answers to each component",
			"2. Any calculations or comparisons needed",
			"3. Overall insights or patterns",
		}
	}
}

func truncate(text string, max int) string {
	runes := []rune(text)
	if max <= 0 || len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
