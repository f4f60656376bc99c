// internal/workers/ai-conversation/answer-question/models.go
package answerquestion

import (
	"finqa-agent/internal/models"
	formatresponse "finqa-agent/internal/workers/infrastructure/format-response"
)

type Input struct {
	Question string        `json:"question"`
	Hints    *models.Hints `json:"hints,omitempty"`
	Format   string        `json:"format,omitempty"`
}

// Output is merged into the process instance variables.
type Output struct {
	Response        formatresponse.Response `json:"response"`
	FormattedAnswer string                  `json:"formattedAnswer"`
	Confidence      float64                 `json:"confidence"`
	Degraded        bool                    `json:"degraded"`
}
