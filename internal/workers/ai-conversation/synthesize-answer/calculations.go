// internal/workers/ai-conversation/synthesize-answer/calculations.go
package synthesizeanswer

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"finqa-agent/internal/models"
)

// Amount is a dollar figure or percentage found in filing text.
type Amount struct {
	Text     string  `json:"text"`
	Value    float64 `json:"value"`
	Unit     string  `json:"unit,omitempty"`
	Percent  bool    `json:"percent"`
	Position int     `json:"position"`
}

var (
	dollarAmount  = regexp.MustCompile(`(?i)\$\s?(\d+(?:,\d{3})*(?:\.\d+)?)\s*(billion|million|thousand)?`)
	wordAmount    = regexp.MustCompile(`(?i)(\d+(?:,\d{3})*(?:\.\d+)?)\s*(billion|million|thousand)?\s*dollars?`)
	percentAmount = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
)

var unitScale = map[string]float64{
	"billion":  1e9,
	"million":  1e6,
	"thousand": 1e3,
}

// ExtractAmounts returns every figure in text scaled to base units, in order
// of position.
func ExtractAmounts(text string) []Amount {
	var (
		out   []Amount
		spans [][2]int
	)
	overlaps := func(start, end int) bool {
		for _, s := range spans {
			if start < s[1] && end > s[0] {
				return true
			}
		}
		return false
	}

	collect := func(re *regexp.Regexp, percent bool) {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			if overlaps(m[0], m[1]) {
				continue
			}
			value, err := strconv.ParseFloat(strings.ReplaceAll(text[m[2]:m[3]], ",", ""), 64)
			if err != nil {
				continue
			}
			var unit string
			if !percent && len(m) > 5 && m[4] >= 0 {
				unit = strings.ToLower(text[m[4]:m[5]])
				value *= unitScale[unit]
			}
			spans = append(spans, [2]int{m[0], m[1]})
			out = append(out, Amount{Text: text[m[0]:m[1]], Value: value, Unit: unit, Percent: percent, Position: m[0]})
		}
	}
	collect(dollarAmount, false)
	collect(wordAmount, false)
	collect(percentAmount, true)

	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// FindMetricValue returns the first figure that directly follows metric in text.
func FindMetricValue(text, metric string) (float64, bool) {
	if metric == "" {
		return 0, false
	}
	m := regexp.QuoteMeta(strings.ToLower(metric))
	patterns := []*regexp.Regexp{
		regexp.MustCompile(m + `(?:\s+(?:was|were|of|totaled|reached))?[:\s]+\$?(\d+(?:,\d{3})*(?:\.\d+)?)\s*(billion|million|thousand)?`),
		regexp.MustCompile(m + `[:\s]+(\d+(?:\.\d+)?)\s*%`),
	}

	lower := strings.ToLower(text)
	for _, re := range patterns {
		match := re.FindStringSubmatch(lower)
		if match == nil {
			continue
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
		if err != nil {
			continue
		}
		if len(match) > 2 && match[2] != "" {
			value *= unitScale[match[2]]
		}
		return value, true
	}
	return 0, false
}

// GrowthRate is the percentage change from old to new. It is zero when old is zero.
func GrowthRate(old, new float64) float64 {
	if old == 0 {
		return 0
	}
	return (new - old) / old * 100
}

// growthHint computes the change between the first and last year covered
// by sub-queries of one company when both figures can be read from the
// retrieved passages.
func growthHint(subQueries []models.SubQuery, results []models.RetrievalResult) string {
	if len(subQueries) < 2 || len(results) != len(subQueries) {
		return ""
	}
	first, last := results[0], results[len(results)-1]
	if first.SubQuery.Company != last.SubQuery.Company || first.SubQuery.Year == last.SubQuery.Year {
		return ""
	}
	metric := first.SubQuery.Metric
	if metric == "" || metric != last.SubQuery.Metric {
		return ""
	}

	oldValue, ok := metricFromPassages(first, metric)
	if !ok {
		return ""
	}
	newValue, ok := metricFromPassages(last, metric)
	if !ok {
		return ""
	}

	return fmt.Sprintf("%s %s changed from %s in %d to %s in %d (%+.1f%%).",
		first.SubQuery.Company, metric,
		formatAmount(oldValue), first.SubQuery.Year,
		formatAmount(newValue), last.SubQuery.Year,
		GrowthRate(oldValue, newValue))
}

func metricFromPassages(r models.RetrievalResult, metric string) (float64, bool) {
	if !r.HasPassages() {
		return 0, false
	}
	for _, p := range r.Passages {
		if v, ok := FindMetricValue(p.Text, metric); ok {
			return v, true
		}
	}
	return 0, false
}

func formatAmount(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("$%.1f billion", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.1f million", v/1e6)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
