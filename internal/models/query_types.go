// internal/models/query_types.go
package models

import "strings"

type QueryType string

const (
	QueryTypeSimpleDirect       QueryType = "SIMPLE_DIRECT"
	QueryTypeComparativeYoY     QueryType = "COMPARATIVE_YOY"
	QueryTypeCrossCompany       QueryType = "CROSS_COMPANY"
	QueryTypeComplexMultiAspect QueryType = "COMPLEX_MULTI_ASPECT"
	QueryTypeSegmentAnalysis    QueryType = "SEGMENT_ANALYSIS"
)

// AllQueryTypes lists every variant in a stable order.
var AllQueryTypes = []QueryType{
	QueryTypeSimpleDirect,
	QueryTypeComparativeYoY,
	QueryTypeCrossCompany,
	QueryTypeComplexMultiAspect,
	QueryTypeSegmentAnalysis,
}

// ParseQueryType maps a label such as "comparative_yoy" or "COMPARATIVE YOY"
// onto a QueryType. The second return value is false for unknown labels.
func ParseQueryType(label string) (QueryType, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(label))
	normalized = strings.Trim(normalized, "\"'`.:*")
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)

	for _, qt := range AllQueryTypes {
		if string(qt) == normalized {
			return qt, true
		}
	}
	return "", false
}

func (q QueryType) Valid() bool {
	_, ok := ParseQueryType(string(q))
	return ok
}

// ComplexityScore is bounded to [0.0, 1.0].
type ComplexityScore float64

func (c ComplexityScore) Clamp() ComplexityScore {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
