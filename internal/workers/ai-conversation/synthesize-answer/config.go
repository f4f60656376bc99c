// internal/workers/ai-conversation/synthesize-answer/config.go
package synthesizeanswer

type Config struct {
	ContextPassages    int
	ExcerptChars       int
	MaxCitations       int
	CitationsPerResult int

	CoverageWeight         float64
	RelevanceWeight        float64
	CertaintyWeight        float64
	DroppedCitationPenalty float64
	FallbackPenalty        float64
}

func LoadConfig() *Config {
	return &Config{
		ContextPassages:        3,
		ExcerptChars:           500,
		MaxCitations:           5,
		CitationsPerResult:     2,
		CoverageWeight:         0.4,
		RelevanceWeight:        0.4,
		CertaintyWeight:        0.2,
		DroppedCitationPenalty: 0.05,
		FallbackPenalty:        0.15,
	}
}
