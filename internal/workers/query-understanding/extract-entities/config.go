// internal/workers/query-understanding/extract-entities/config.go
package extractentities

import "finqa-agent/pkg/registry"

type Config struct {
	Vocabulary *registry.Vocabulary
}

func LoadConfig() *Config {
	return &Config{Vocabulary: registry.Default()}
}
