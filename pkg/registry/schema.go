// pkg/registry/schema.go
package registry

// Vocabulary is the fixed domain knowledge used by entity extraction and
// question validation.
type Vocabulary struct {
	Version     string    `json:"version"`
	LastUpdated string    `json:"lastUpdated"`
	Companies   []Company `json:"companies"`
	Metrics     []Metric  `json:"metrics"`
	FiscalYears YearRange `json:"fiscalYears"`
}

// Company order in the vocabulary is the canonical order.
type Company struct {
	Ticker      string   `json:"ticker"`
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Aliases     []string `json:"aliases"`
	Segments    []string `json:"segments"`
}

// Metric is a canonical metric keyword plus phrases that mean the same thing.
type Metric struct {
	Name     string   `json:"name"`
	Synonyms []string `json:"synonyms,omitempty"`
}

type YearRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}
