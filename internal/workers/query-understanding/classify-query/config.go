// internal/workers/query-understanding/classify-query/config.go
package classifyquery

type Config struct {
	// ComplexityThreshold routes questions at or above it to the model.
	ComplexityThreshold float64
}

func LoadConfig() *Config {
	return &Config{
		ComplexityThreshold: 0.6,
	}
}
