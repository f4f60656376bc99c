// internal/workers/infrastructure/validate-question/config.go
package validatequestion

import "finqa-agent/pkg/registry"

type Config struct {
	MinLength  int
	MaxLength  int
	Vocabulary *registry.Vocabulary
}

func LoadConfig() *Config {
	return &Config{
		MinLength:  5,
		MaxLength:  500,
		Vocabulary: registry.Default(),
	}
}
