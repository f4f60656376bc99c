// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// LoadVocabulary reads a vocabulary file and validates it.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v Vocabulary
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse vocabulary %s: %w", path, err)
	}
	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("vocabulary %s: %w", path, err)
	}
	return &v, nil
}

// LoadOrDefault falls back to the built-in vocabulary when path is empty.
func LoadOrDefault(path string) (*Vocabulary, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadVocabulary(path)
}

func (v *Vocabulary) Validate() error {
	if len(v.Companies) == 0 {
		return fmt.Errorf("at least one company is required")
	}
	seen := make(map[string]bool)
	for _, c := range v.Companies {
		if c.Ticker == "" {
			return fmt.Errorf("company %q has no ticker", c.Name)
		}
		if seen[c.Ticker] {
			return fmt.Errorf("duplicate ticker %s", c.Ticker)
		}
		seen[c.Ticker] = true
	}
	for _, m := range v.Metrics {
		if m.Name == "" {
			return fmt.Errorf("metric with empty name")
		}
	}
	if v.FiscalYears.Min == 0 || v.FiscalYears.Max < v.FiscalYears.Min {
		return fmt.Errorf("invalid fiscal year range %d-%d", v.FiscalYears.Min, v.FiscalYears.Max)
	}
	return nil
}

// Tickers returns tickers in canonical order.
func (v *Vocabulary) Tickers() []string {
	out := make([]string, len(v.Companies))
	for i, c := range v.Companies {
		out[i] = c.Ticker
	}
	return out
}

func (v *Vocabulary) Company(ticker string) (Company, bool) {
	for _, c := range v.Companies {
		if strings.EqualFold(c.Ticker, ticker) {
			return c, true
		}
	}
	return Company{}, false
}

// ResolveCompany maps a ticker, name or alias to its ticker.
func (v *Vocabulary) ResolveCompany(word string) (string, bool) {
	w := strings.ToLower(strings.TrimSpace(word))
	for _, c := range v.Companies {
		if w == strings.ToLower(c.Ticker) || w == strings.ToLower(c.Name) || w == strings.ToLower(c.DisplayName) {
			return c.Ticker, true
		}
		for _, a := range c.Aliases {
			if w == a {
				return c.Ticker, true
			}
		}
	}
	return "", false
}

func (v *Vocabulary) DisplayName(ticker string) string {
	if c, ok := v.Company(ticker); ok && c.DisplayName != "" {
		return c.DisplayName
	}
	return ticker
}

func (v *Vocabulary) InFiscalRange(year int) bool {
	return year >= v.FiscalYears.Min && year <= v.FiscalYears.Max
}

// MetricPhrases returns every phrase mapped to its canonical metric name.
func (v *Vocabulary) MetricPhrases() map[string]string {
	out := make(map[string]string)
	for _, m := range v.Metrics {
		out[m.Name] = m.Name
		for _, s := range m.Synonyms {
			out[strings.ToLower(s)] = m.Name
		}
	}
	return out
}

// FindSegment returns the first segment of ticker named in text.
func (v *Vocabulary) FindSegment(ticker, text string) string {
	c, ok := v.Company(ticker)
	if !ok {
		return ""
	}
	lower := strings.ToLower(text)
	for _, s := range c.Segments {
		if strings.Contains(lower, strings.ToLower(s)) {
			return s
		}
	}
	return ""
}

// Default is the vocabulary shipped with the agent.
func Default() *Vocabulary {
	return &Vocabulary{
		Version:     "1.0",
		LastUpdated: "2024-01-15",
		Companies: []Company{
			{
				Ticker:      "GOOGL",
				Name:        "Alphabet Inc.",
				DisplayName: "Google",
				Aliases:     []string{"google", "googl", "alphabet"},
				Segments:    []string{"Google Services", "Google Cloud", "Other Bets"},
			},
			{
				Ticker:      "MSFT",
				Name:        "Microsoft Corporation",
				DisplayName: "Microsoft",
				Aliases:     []string{"microsoft", "msft"},
				Segments:    []string{"Productivity and Business Processes", "Intelligent Cloud", "More Personal Computing"},
			},
			{
				Ticker:      "NVDA",
				Name:        "NVIDIA Corporation",
				DisplayName: "NVIDIA",
				Aliases:     []string{"nvidia", "nvda"},
				Segments:    []string{"Data Center", "Gaming", "Professional Visualization", "Automotive"},
			},
		},
		Metrics: []Metric{
			{Name: "revenue"},
			{Name: "sales"},
			{Name: "income"},
			{Name: "earnings"},
			{Name: "profit"},
			{Name: "margin"},
			{Name: "operating margin"},
			{Name: "gross margin"},
			{Name: "net income"},
			{Name: "ebitda"},
			{Name: "cash flow"},
			{Name: "assets"},
			{Name: "liabilities"},
			{Name: "equity"},
			{Name: "expenses"},
			{Name: "r&d", Synonyms: []string{"research and development"}},
			{Name: "capex", Synonyms: []string{"capital expenditures"}},
			{Name: "operating expenses"},
		},
		FiscalYears: YearRange{Min: 2020, Max: 2025},
	}
}
