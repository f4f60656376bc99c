package models

import "fmt"

type SourceMetadata struct {
	Company    string `json:"company"`
	Year       int    `json:"year"`
	Section    string `json:"section,omitempty"`
	DocumentID string `json:"documentId,omitempty"`
}

// Key identifies the filing section a passage came from.
func (s SourceMetadata) Key() string {
	return fmt.Sprintf("%s_%d_%s", s.Company, s.Year, s.Section)
}

type Passage struct {
	ID     string         `json:"id"`
	Text   string         `json:"text"`
	Score  float64        `json:"score"`
	Source SourceMetadata `json:"source"`
}

type RetrievalStatus string

const (
	RetrievalOK     RetrievalStatus = "OK"
	RetrievalEmpty  RetrievalStatus = "EMPTY"
	RetrievalFailed RetrievalStatus = "FAILED"
)

type RetrievalResult struct {
	SubQuery SubQuery        `json:"subQuery"`
	Passages []Passage       `json:"passages"`
	Status   RetrievalStatus `json:"status"`
	Err      error           `json:"-"`
	Error    string          `json:"error,omitempty"`
}

func (r RetrievalResult) HasPassages() bool {
	return r.Status == RetrievalOK && len(r.Passages) > 0
}

// TopScore returns the best passage score, or 0 when there is none.
func (r RetrievalResult) TopScore() float64 {
	if !r.HasPassages() {
		return 0
	}
	return r.Passages[0].Score
}

// CountByStatus tallies results per status.
func CountByStatus(results []RetrievalResult) map[RetrievalStatus]int {
	counts := make(map[RetrievalStatus]int, 3)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}
