// internal/workers/retrieval/execute-retrieval/config.go
package executeretrieval

type Config struct {
	TopK           int
	MaxConcurrency int
	// KeywordBoost multiplies a HYBRID passage score per financial keyword
	// shared by the sub-query and the passage.
	KeywordBoost float64
}

func LoadConfig() *Config {
	return &Config{
		TopK:           5,
		MaxConcurrency: 4,
		KeywordBoost:   0.1,
	}
}
