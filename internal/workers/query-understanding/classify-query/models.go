// internal/workers/query-understanding/classify-query/models.go
package classifyquery

import "finqa-agent/internal/models"

// Method records which path produced the label.
type Method string

const (
	MethodRule    Method = "rule"
	MethodPattern Method = "pattern"
	MethodModel   Method = "model"
)

type Result struct {
	QueryType  models.QueryType       `json:"queryType"`
	Complexity models.ComplexityScore `json:"complexity"`
	Method     Method                 `json:"method"`
}

type modelOutput struct {
	QueryType string `json:"query_type"`
}
