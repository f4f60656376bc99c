// internal/workers/query-understanding/extract-entities/extractor_test.go
package extractentities

import (
	"testing"

	"finqa-agent/internal/common/logger"
	"finqa-agent/internal/models"
	"finqa-agent/pkg/registry"

	"github.com/stretchr/testify/assert"
)

func newTestExtractor(t *testing.T) *Extractor {
	return NewExtractor(LoadConfig(), logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestExtractor_Extract(t *testing.T) {
	tests := []struct {
		name      string
		question  string
		companies []string
		years     []int
		metrics   []string
	}{
		{
			name:      "simple direct",
			question:  "What was Microsoft's revenue in 2023?",
			companies: []string{"MSFT"},
			years:     []int{2023},
			metrics:   []string{"revenue"},
		},
		{
			name:      "year range keeps mention order",
			question:  "How did NVIDIA grow from 2022 to 2023?",
			companies: []string{"NVDA"},
			years:     []int{2022, 2023},
			metrics:   []string{},
		},
		{
			name:      "companies in order of first mention",
			question:  "Which company had the highest operating margin in 2023, NVDA, Alphabet or Microsoft?",
			companies: []string{"NVDA", "GOOGL", "MSFT"},
			years:     []int{2023},
			metrics:   []string{"operating margin"},
		},
		{
			name:      "aliases collapse to one ticker",
			question:  "Compare Google and GOOGL and Alphabet earnings",
			companies: []string{"GOOGL"},
			years:     []int{},
			metrics:   []string{"earnings"},
		},
		{
			name:      "years outside fiscal range are ignored",
			question:  "Microsoft revenue 2019 versus 2021 and 2030",
			companies: []string{"MSFT"},
			years:     []int{2021},
			metrics:   []string{"revenue"},
		},
		{
			name:      "synonyms map to canonical metric",
			question:  "How much did Nvidia spend on research and development and capital expenditures?",
			companies: []string{"NVDA"},
			years:     []int{},
			metrics:   []string{"r&d", "capex"},
		},
		{
			name:      "longest phrase wins and plurals match",
			question:  "Google net income and gross margins in 2022",
			companies: []string{"GOOGL"},
			years:     []int{2022},
			metrics:   []string{"net income", "gross margin"},
		},
		{
			name:      "unknown company",
			question:  "How is Acme Widgets doing lately?",
			companies: []string{},
			years:     []int{},
			metrics:   []string{},
		},
	}

	e := newTestExtractor(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Extract(tt.question)
			assert.Equal(t, tt.companies, got.Companies)
			assert.Equal(t, tt.years, got.Years)
			assert.Equal(t, tt.metrics, got.Metrics)
		})
	}
}

func TestExtractor_Deterministic(t *testing.T) {
	e := newTestExtractor(t)
	q := "Compare revenue, operating expenses and R&D for Microsoft and NVIDIA in 2022 and 2023"
	first := e.Extract(q)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, e.Extract(q))
	}
	assert.Equal(t, []string{"revenue", "operating expenses", "r&d"}, first.Metrics)
}

// ==========================
// Hints
// ==========================

func TestExtractor_ExtractWithHints(t *testing.T) {
	e := newTestExtractor(t)

	got := e.ExtractWithHints("What was the revenue in 2023?", &models.Hints{
		Companies: []string{"microsoft", "aapl"},
		Years:     []int{2023, 2022, 0},
		Metrics:   []string{"Research and Development"},
	})

	assert.Equal(t, []string{"MSFT", "AAPL"}, got.Companies)
	assert.Equal(t, []int{2023, 2022}, got.Years)
	assert.Equal(t, []string{"revenue", "r&d"}, got.Metrics)

	plain := e.ExtractWithHints("What was the revenue in 2023?", nil)
	assert.Equal(t, e.Extract("What was the revenue in 2023?"), plain)
}

func TestExtractor_CustomVocabulary(t *testing.T) {
	vocab := &registry.Vocabulary{
		Companies:   []registry.Company{{Ticker: "AAPL", Aliases: []string{"apple"}}},
		Metrics:     []registry.Metric{{Name: "revenue", Synonyms: []string{"net sales"}}},
		FiscalYears: registry.YearRange{Min: 2018, Max: 2024},
	}
	e := NewExtractor(&Config{Vocabulary: vocab}, logger.NewNoOpLogger())

	got := e.Extract("Apple net sales in 2019")
	assert.Equal(t, []string{"AAPL"}, got.Companies)
	assert.Equal(t, []int{2019}, got.Years)
	assert.Equal(t, []string{"revenue"}, got.Metrics)
}

func BenchmarkExtractor_Extract(b *testing.B) {
	e := NewExtractor(LoadConfig(), logger.NewNoOpLogger())
	for i := 0; i < b.N; i++ {
		e.Extract("Compare the operating margins of Google, Microsoft and NVIDIA in 2023")
	}
}
