// internal/workers/data-access/record-answer/models.go
package recordanswer

import "time"

// AuditEntry is one row of answer_audit.
type AuditEntry struct {
	RequestID  string    `json:"requestId"`
	Question   string    `json:"question"`
	QueryType  string    `json:"queryType,omitempty"`
	Complexity float64   `json:"complexity"`
	SubQueries []string  `json:"subQueries"`
	Answer     string    `json:"answer,omitempty"`
	Confidence float64   `json:"confidence"`
	Degraded   bool      `json:"degraded"`
	State      string    `json:"state"`
	ErrorCode  string    `json:"errorCode,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
