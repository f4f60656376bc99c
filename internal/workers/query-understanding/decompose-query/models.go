// internal/workers/query-understanding/decompose-query/models.go
package decomposequery

import "finqa-agent/internal/models"

type Method string

const (
	MethodIdentity Method = "identity"
	MethodRule     Method = "rule"
	MethodModel    Method = "model"
)

type Result struct {
	SubQueries []models.SubQuery `json:"subQueries"`
	Method     Method            `json:"method"`
}

type modelOutput struct {
	SubQueries []string `json:"sub_queries"`
}
