// internal/workers/ai-conversation/synthesize-answer/confidence.go
package synthesizeanswer

import (
	"math"
	"strings"

	"finqa-agent/internal/models"
)

var hedgingPhrases = []string{
	"not sure",
	"not certain",
	"uncertain",
	"unclear",
	"cannot determine",
	"can't determine",
	"unable to determine",
	"insufficient",
	"not enough information",
	"does not contain",
	"doesn't contain",
	"not available",
	"no information",
	"it appears",
	"it seems",
	"possibly",
	"might be",
}

// IsHedging reports whether the model expressed doubt in its own words.
func IsHedging(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range hedgingPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Certainty maps a self-reported confidence label onto [0, 1], halved when
// the reply hedges.
func Certainty(label string, hedging bool) float64 {
	c, ok := certaintyByLabel[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		c = absentCertainty
	}
	if hedging {
		c *= 0.5
	}
	return c
}

// Coverage is the fraction of sub-queries that retrieved at least one passage.
func Coverage(results []models.RetrievalResult) float64 {
	if len(results) == 0 {
		return 0
	}
	n := 0
	for _, r := range results {
		if r.HasPassages() {
			n++
		}
	}
	return float64(n) / float64(len(results))
}

// AverageTopScore averages the best passage score per sub-query. Empty and
// failed sub-queries count as zero.
func AverageTopScore(results []models.RetrievalResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += clamp01(r.TopScore())
	}
	return sum / float64(len(results))
}

func (s *Synthesizer) confidence(results []models.RetrievalResult, certainty float64, dropped, fallbacks int) float64 {
	c := s.config.CoverageWeight*Coverage(results) +
		s.config.RelevanceWeight*AverageTopScore(results) +
		s.config.CertaintyWeight*certainty

	c -= s.config.DroppedCitationPenalty * float64(dropped)
	for i := 0; i < fallbacks; i++ {
		c *= 1 - s.config.FallbackPenalty
	}

	return math.Round(clamp01(c)*1000) / 1000
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
