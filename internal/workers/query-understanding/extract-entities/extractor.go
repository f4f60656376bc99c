// internal/workers/query-understanding/extract-entities/extractor.go
package extractentities

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"finqa-agent/internal/common/logger"
	"finqa-agent/internal/models"
	"finqa-agent/pkg/registry"
)

const Stage = "extract-entities"

var yearPattern = regexp.MustCompile(`\b(20\d{2})\b`)

// Extractor pulls companies, fiscal years and metric keywords out of question
// text. It is safe for concurrent use.
type Extractor struct {
	vocab   *registry.Vocabulary
	company []*compiledPhrase
	metric  []*compiledPhrase
	logger  logger.Logger
}

type compiledPhrase struct {
	phrasePattern
	re *regexp.Regexp
}

func NewExtractor(config *Config, log logger.Logger) *Extractor {
	vocab := config.Vocabulary
	if vocab == nil {
		vocab = registry.Default()
	}

	e := &Extractor{
		vocab:  vocab,
		logger: log.With(map[string]interface{}{"stage": Stage}),
	}

	for _, c := range vocab.Companies {
		phrases := append([]string{strings.ToLower(c.Ticker)}, c.Aliases...)
		for _, p := range phrases {
			e.company = append(e.company, compile(c.Ticker, p))
		}
	}
	for phrase, canonical := range vocab.MetricPhrases() {
		e.metric = append(e.metric, compile(canonical, phrase))
	}
	// map iteration order is random; keep pattern order stable
	sort.Slice(e.metric, func(i, j int) bool { return e.metric[i].phrase < e.metric[j].phrase })

	return e
}

func compile(canonical, phrase string) *compiledPhrase {
	return &compiledPhrase{
		phrasePattern: phrasePattern{canonical: canonical, phrase: phrase},
		re:            regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(phrase)) + `s?\b`),
	}
}

// Vocabulary exposes the vocabulary the extractor was built with.
func (e *Extractor) Vocabulary() *registry.Vocabulary {
	return e.vocab
}

// Extract never fails; a category with no hits is empty.
func (e *Extractor) Extract(question string) models.ExtractedEntities {
	lower := strings.ToLower(question)

	entities := models.ExtractedEntities{
		Companies: e.extractCompanies(lower),
		Years:     e.extractYears(lower),
		Metrics:   e.extractMetrics(lower),
	}

	e.logger.Debug("entities extracted", map[string]interface{}{
		"companies": entities.Companies,
		"years":     entities.Years,
		"metrics":   entities.Metrics,
	})
	return entities
}

// ExtractWithHints runs Extract and appends caller hints not found in the text.
func (e *Extractor) ExtractWithHints(question string, hints *models.Hints) models.ExtractedEntities {
	entities := e.Extract(question)
	if hints.Empty() {
		return entities
	}

	var fromHints models.ExtractedEntities
	for _, c := range hints.Companies {
		if ticker, ok := e.vocab.ResolveCompany(c); ok {
			fromHints.Companies = append(fromHints.Companies, ticker)
		} else if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			fromHints.Companies = append(fromHints.Companies, c)
		}
	}
	for _, y := range hints.Years {
		if y > 0 {
			fromHints.Years = append(fromHints.Years, y)
		}
	}
	phrases := e.vocab.MetricPhrases()
	for _, m := range hints.Metrics {
		m = strings.ToLower(strings.TrimSpace(m))
		if canonical, ok := phrases[m]; ok {
			m = canonical
		}
		if m != "" {
			fromHints.Metrics = append(fromHints.Metrics, m)
		}
	}

	return entities.Merge(fromHints)
}

func (e *Extractor) extractCompanies(lower string) []string {
	first := make(map[string]int)
	for _, p := range e.company {
		loc := p.re.FindStringIndex(lower)
		if loc == nil {
			continue
		}
		if pos, ok := first[p.canonical]; !ok || loc[0] < pos {
			first[p.canonical] = loc[0]
		}
	}

	companies := make([]string, 0, len(first))
	for ticker := range first {
		companies = append(companies, ticker)
	}
	sort.Slice(companies, func(i, j int) bool {
		if first[companies[i]] != first[companies[j]] {
			return first[companies[i]] < first[companies[j]]
		}
		return companies[i] < companies[j]
	})
	return companies
}

func (e *Extractor) extractYears(lower string) []int {
	years := []int{}
	seen := make(map[int]bool)
	for _, m := range yearPattern.FindAllStringSubmatch(lower, -1) {
		year, err := strconv.Atoi(m[1])
		if err != nil || !e.vocab.InFiscalRange(year) || seen[year] {
			continue
		}
		seen[year] = true
		years = append(years, year)
	}
	return years
}

// extractMetrics keeps the longest phrase wherever two phrases overlap, so
// "operating margin" suppresses "margin".
func (e *Extractor) extractMetrics(lower string) []string {
	var hits []match
	for _, p := range e.metric {
		for _, loc := range p.re.FindAllStringIndex(lower, -1) {
			hits = append(hits, match{canonical: p.canonical, start: loc[0], end: loc[1]})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		li, lj := hits[i].end-hits[i].start, hits[j].end-hits[j].start
		if li != lj {
			return li > lj
		}
		return hits[i].start < hits[j].start
	})

	var kept []match
	for _, h := range hits {
		overlaps := false
		for _, k := range kept {
			if h.start < k.end && k.start < h.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, h)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].start < kept[j].start })

	metrics := []string{}
	seen := make(map[string]bool)
	for _, k := range kept {
		if !seen[k.canonical] {
			seen[k.canonical] = true
			metrics = append(metrics, k.canonical)
		}
	}
	return metrics
}
