package vectorstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"finqa-agent/internal/models"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var (
	ErrMissingIndex  = errors.New("index name is required")
	ErrEmptyVector   = errors.New("query vector is empty")
	ErrInvalidTopK   = errors.New("topK must be positive")
	ErrUnknownFilter = errors.New("unsupported filter key")
)

// KNNQuery describes a filtered approximate nearest-neighbour search.
type KNNQuery struct {
	Index          string
	EmbeddingField string
	Vector         []float32
	Filter         models.MetadataFilter
	TopK           int
	NumCandidates  int
}

// BuildKNNSearch builds the search request for a KNNQuery.
func BuildKNNSearch(q KNNQuery) (*esapi.SearchRequest, error) {
	if q.Index == "" {
		return nil, ErrMissingIndex
	}
	if len(q.Vector) == 0 {
		return nil, ErrEmptyVector
	}
	if q.TopK < 1 {
		return nil, ErrInvalidTopK
	}

	filterClauses, err := buildFilterClauses(q.Filter)
	if err != nil {
		return nil, err
	}

	numCandidates := q.NumCandidates
	if numCandidates < q.TopK {
		numCandidates = q.TopK * 10
	}

	knn := map[string]interface{}{
		"field":          q.EmbeddingField,
		"query_vector":   q.Vector,
		"k":              q.TopK,
		"num_candidates": numCandidates,
	}
	if len(filterClauses) > 0 {
		knn["filter"] = filterClauses
	}

	queryBody := map[string]interface{}{
		"knn":     knn,
		"_source": []string{"text", "company", "year", "section", "document_id"},
	}

	body, err := json.Marshal(queryBody)
	if err != nil {
		return nil, fmt.Errorf("marshal knn query: %w", err)
	}

	size := q.TopK
	req := esapi.SearchRequest{
		Index: []string{q.Index},
		Body:  strings.NewReader(string(body)),
		Size:  &size,
	}
	return &req, nil
}

// buildFilterClauses turns company and year into term filters. The metric
// key is a ranking hint only and never restricts the candidate set.
func buildFilterClauses(filter models.MetadataFilter) ([]interface{}, error) {
	var clauses []interface{}
	for key := range filter {
		switch key {
		case models.FilterCompany, models.FilterYear, models.FilterMetric:
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownFilter, key)
		}
	}

	if company, ok := filter.Company(); ok {
		clauses = append(clauses, map[string]interface{}{
			"term": map[string]interface{}{"company": company},
		})
	}
	if year, ok := filter.Year(); ok {
		clauses = append(clauses, map[string]interface{}{
			"term": map[string]interface{}{"year": year},
		})
	}
	return clauses, nil
}

// IndexMapping returns the mapping for the filings index with a dense vector
// field of the given dimensionality.
func IndexMapping(embeddingField string, dims int) string {
	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"text":        map[string]interface{}{"type": "text"},
				"company":     map[string]interface{}{"type": "keyword"},
				"year":        map[string]interface{}{"type": "integer"},
				"section":     map[string]interface{}{"type": "keyword"},
				"document_id": map[string]interface{}{"type": "keyword"},
				embeddingField: map[string]interface{}{
					"type":       "dense_vector",
					"dims":       dims,
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	}
	body, _ := json.Marshal(mapping)
	return string(body)
}
