// internal/workers/ai-conversation/answer-question/config.go
package answerquestion

import (
	"time"

	formatresponse "finqa-agent/internal/workers/infrastructure/format-response"
)

type Config struct {
	// Timeout bounds one job, broker round trips excluded.
	Timeout time.Duration
	// BrokerTimeout bounds the complete/fail command sent back to Zeebe.
	BrokerTimeout time.Duration
	// Format used to render the answer into the formattedAnswer variable
	// when the job does not ask for one.
	Format formatresponse.Format
}

func LoadConfig() *Config {
	return &Config{
		Timeout:       60 * time.Second,
		BrokerTimeout: 10 * time.Second,
		Format:        formatresponse.FormatText,
	}
}
