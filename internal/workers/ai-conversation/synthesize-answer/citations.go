// internal/workers/ai-conversation/synthesize-answer/citations.go
package synthesizeanswer

import (
	"fmt"
	"regexp"
	"strings"

	"finqa-agent/internal/models"
)

const excerptLimit = 200

var (
	citationGroup = regexp.MustCompile(`\[\s*(S\d+(?:\s*[,;]\s*S\d+)*)\s*\]`)
	labelToken    = regexp.MustCompile(`S\d+`)
	sentenceSplit = regexp.MustCompile(`[.!?]+`)
	wordToken     = regexp.MustCompile(`\w+`)
	extraSpace    = regexp.MustCompile(`[ \t]{2,}`)
)

// citationSet resolves [S#] labels against the passages that were in the
// prompt. Unknown labels are counted once and stripped from the text.
type citationSet struct {
	labels    map[string]labeledPassage
	max       int
	seen      map[string]bool
	citations []models.Citation
	dropped   int
}

func (s *Synthesizer) newCitationSet(labels map[string]labeledPassage) *citationSet {
	return &citationSet{labels: labels, max: s.config.MaxCitations, seen: make(map[string]bool)}
}

func (c *citationSet) resolve(text string) string {
	cleaned := citationGroup.ReplaceAllStringFunc(text, func(group string) string {
		var kept []string
		for _, label := range labelToken.FindAllString(group, -1) {
			lp, ok := c.labels[label]
			if !ok {
				if !c.seen[label] {
					c.dropped++
					c.seen[label] = true
				}
				continue
			}
			kept = append(kept, label)
			if !c.seen[label] {
				c.seen[label] = true
				if c.max <= 0 || len(c.citations) < c.max {
					c.citations = append(c.citations, newCitation(lp))
				}
			}
		}
		if len(kept) == 0 {
			return ""
		}
		return "[" + strings.Join(kept, ", ") + "]"
	})
	return strings.TrimSpace(extraSpace.ReplaceAllString(cleaned, " "))
}

// fallbackCitations takes the top passages of each non-empty result,
// skipping filing sections that are already cited.
func (s *Synthesizer) fallbackCitations(results []models.RetrievalResult, labels map[string]labeledPassage) []models.Citation {
	byID := make(map[string]string, len(labels))
	for label, lp := range labels {
		byID[lp.Passage.ID] = label
	}

	var citations []models.Citation
	seen := make(map[string]bool)
	for _, r := range results {
		if !r.HasPassages() {
			continue
		}
		limit := len(r.Passages)
		if s.config.CitationsPerResult > 0 && limit > s.config.CitationsPerResult {
			limit = s.config.CitationsPerResult
		}
		for _, p := range r.Passages[:limit] {
			key := p.Source.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			citations = append(citations, newCitation(labeledPassage{Label: byID[p.ID], Passage: p, SubQuery: r.SubQuery}))
			if s.config.MaxCitations > 0 && len(citations) == s.config.MaxCitations {
				return citations
			}
		}
	}
	return citations
}

func newCitation(lp labeledPassage) models.Citation {
	p := lp.Passage
	return models.Citation{
		Label:     lp.Label,
		PassageID: p.ID,
		Company:   p.Source.Company,
		Year:      p.Source.Year,
		Section:   p.Source.Section,
		Excerpt:   MeaningfulExcerpt(p.Text, lp.SubQuery.Text),
		Relevance: clamp01(p.Score),
	}
}

// MeaningfulExcerpt picks the sentence of text sharing the most words with
// query, falling back to the start of text.
func MeaningfulExcerpt(text, query string) string {
	terms := wordToken.FindAllString(strings.ToLower(query), -1)

	best, bestScore := "", 0
	for _, sentence := range sentenceSplit.Split(text, -1) {
		if len(sentence) <= 50 {
			continue
		}
		lower := strings.ToLower(sentence)
		score := 0
		for _, term := range terms {
			if strings.Contains(lower, term) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = strings.TrimSpace(sentence), score
		}
	}

	if best == "" {
		best = strings.TrimSpace(text)
	}
	return truncate(best, excerptLimit)
}

func citationLabel(c models.Citation) string {
	if c.Label != "" {
		return "[" + c.Label + "] "
	}
	return ""
}

func describeSource(c models.Citation) string {
	return fmt.Sprintf("%s%s %d %s", citationLabel(c), c.Company, c.Year, c.Section)
}
