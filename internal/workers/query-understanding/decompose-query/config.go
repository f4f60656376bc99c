// internal/workers/query-understanding/decompose-query/config.go
package decomposequery

type Config struct {
	DefaultYear int
	// MaxSubQueries caps model decompositions.
	MaxSubQueries int
	// ModelThreshold is the complexity at which rule types whose entities
	// do not fit the rule are sent to the model instead of kept whole.
	ModelThreshold     float64
	DefaultYoYMetric   string
	DefaultCrossMetric string
}

func LoadConfig() *Config {
	return &Config{
		DefaultYear:        2023,
		MaxSubQueries:      6,
		ModelThreshold:     0.3,
		DefaultYoYMetric:   "revenue",
		DefaultCrossMetric: "operating margin",
	}
}
