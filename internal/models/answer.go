package models

import "time"

// State is a step of the per-request pipeline.
type State string

const (
	StateReceived    State = "RECEIVED"
	StateExtracted   State = "EXTRACTED"
	StateClassified  State = "CLASSIFIED"
	StateDecomposed  State = "DECOMPOSED"
	StateRetrieved   State = "RETRIEVED"
	StateSynthesized State = "SYNTHESIZED"
	StateFailed      State = "FAILED"
)

func (s State) Terminal() bool {
	return s == StateSynthesized || s == StateFailed
}

type Transition struct {
	From       State  `json:"from"`
	To         State  `json:"to"`
	DurationMs int64  `json:"durationMs"`
	Note       string `json:"note,omitempty"`
}

type Citation struct {
	Label     string  `json:"label"`
	PassageID string  `json:"passageId"`
	Company   string  `json:"company"`
	Year      int     `json:"year"`
	Section   string  `json:"section,omitempty"`
	Excerpt   string  `json:"excerpt"`
	Relevance float64 `json:"relevance"`
}

type SynthesizedAnswer struct {
	RequestID   string            `json:"requestId"`
	Question    string            `json:"question"`
	QueryType   QueryType         `json:"queryType"`
	Complexity  ComplexityScore   `json:"complexity"`
	Entities    ExtractedEntities `json:"entities"`
	Answer      string            `json:"answer"`
	Reasoning   string            `json:"reasoning,omitempty"`
	SubQueries  []SubQuery        `json:"subQueries"`
	Citations   []Citation        `json:"citations"`
	Confidence  float64           `json:"confidence"`
	Degraded    bool              `json:"degraded"`
	Warnings    []string          `json:"warnings,omitempty"`
	State       State             `json:"state"`
	Transitions []Transition      `json:"transitions,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// SubQueryTexts returns the sub-query strings in order.
func (a *SynthesizedAnswer) SubQueryTexts() []string {
	out := make([]string, len(a.SubQueries))
	for i, sq := range a.SubQueries {
		out[i] = sq.Text
	}
	return out
}
