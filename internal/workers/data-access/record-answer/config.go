// internal/workers/data-access/record-answer/config.go
package recordanswer

import "time"

type Config struct {
	Timeout         time.Duration
	DefaultHistory  int
	MaxHistoryLimit int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         5 * time.Second,
		DefaultHistory:  20,
		MaxHistoryLimit: 100,
	}
}
