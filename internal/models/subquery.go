package models

import (
	"fmt"
	"sort"
	"strings"
)

type StrategyKind string

const (
	StrategySemantic       StrategyKind = "SEMANTIC"
	StrategyCompanyFocused StrategyKind = "COMPANY_FOCUSED"
	StrategyTemporal       StrategyKind = "TEMPORAL"
	StrategyHybrid         StrategyKind = "HYBRID"
)

// Metadata filter keys understood by every vector store.
const (
	FilterCompany = "company"
	FilterYear    = "year"
	FilterMetric  = "metric"
)

// MetadataFilter maps chunk metadata keys to the value a passage must carry.
// Years are stored as int, everything else as string.
type MetadataFilter map[string]interface{}

func (f MetadataFilter) Company() (string, bool) {
	v, ok := f[FilterCompany].(string)
	return v, ok && v != ""
}

func (f MetadataFilter) Year() (int, bool) {
	v, ok := f[FilterYear].(int)
	return v, ok && v > 0
}

func (f MetadataFilter) Metric() (string, bool) {
	v, ok := f[FilterMetric].(string)
	return v, ok && v != ""
}

// Key renders the filter deterministically for cache keys and logs.
func (f MetadataFilter) Key() string {
	if len(f) == 0 {
		return ""
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, f[k])
	}
	return strings.Join(parts, ",")
}

type SubQuery struct {
	Index    int            `json:"index"`
	Text     string         `json:"text"`
	Company  string         `json:"company,omitempty"`
	Year     int            `json:"year,omitempty"`
	Metric   string         `json:"metric,omitempty"`
	Strategy StrategyKind   `json:"strategy,omitempty"`
	Filter   MetadataFilter `json:"filter,omitempty"`
}

// WithStrategy returns a copy carrying the selected strategy and filter.
func (s SubQuery) WithStrategy(kind StrategyKind, filter MetadataFilter) SubQuery {
	s.Strategy = kind
	s.Filter = filter
	return s
}
