// Package vectorstore holds the passage stores behind ports.VectorStore.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"finqa-agent/internal/common/errors"
	"finqa-agent/internal/common/retry"
	"finqa-agent/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

type ElasticsearchConfig struct {
	Index          string
	EmbeddingField string
	NumCandidates  int
}

// ElasticsearchStore searches filing chunks with the kNN API.
type ElasticsearchStore struct {
	config *ElasticsearchConfig
	client *elasticsearch.Client
}

func NewElasticsearchStore(config *ElasticsearchConfig, client *elasticsearch.Client) *ElasticsearchStore {
	return &ElasticsearchStore{config: config, client: client}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string  `json:"_id"`
			Score  float64 `json:"_score"`
			Source struct {
				Text       string `json:"text"`
				Company    string `json:"company"`
				Year       int    `json:"year"`
				Section    string `json:"section"`
				DocumentID string `json:"document_id"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *ElasticsearchStore) Search(ctx context.Context, vector []float32, filter models.MetadataFilter, topK int) ([]models.Passage, error) {
	req, err := BuildKNNSearch(KNNQuery{
		Index:          s.config.Index,
		EmbeddingField: s.config.EmbeddingField,
		Vector:         vector,
		Filter:         filter,
		TopK:           topK,
		NumCandidates:  s.config.NumCandidates,
	})
	if err != nil {
		return nil, err
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, errors.NewIndexNotFoundError(s.config.Index)
	}
	if res.IsError() {
		// 429 and 5xx are retried by the caller's policy.
		return nil, &retry.StatusError{StatusCode: res.StatusCode, Body: res.String()}
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	passages := make([]models.Passage, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		passages = append(passages, models.Passage{
			ID:    hit.ID,
			Text:  hit.Source.Text,
			Score: hit.Score,
			Source: models.SourceMetadata{
				Company:    hit.Source.Company,
				Year:       hit.Source.Year,
				Section:    hit.Source.Section,
				DocumentID: hit.Source.DocumentID,
			},
		})
	}
	SortPassages(passages)
	if len(passages) > topK {
		passages = passages[:topK]
	}
	return passages, nil
}

// EnsureIndex creates the filings index when it does not exist yet.
func (s *ElasticsearchStore) EnsureIndex(ctx context.Context, dims int) error {
	res, err := s.client.Indices.Exists([]string{s.config.Index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = s.client.Indices.Create(
		s.config.Index,
		s.client.Indices.Create.WithBody(strings.NewReader(IndexMapping(s.config.EmbeddingField, dims))),
		s.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index: %s", res.String())
	}
	return nil
}

// Store indexes chunks together with their embeddings.
func (s *ElasticsearchStore) Store(ctx context.Context, chunks []Chunk) error {
	for _, chunk := range chunks {
		doc := map[string]interface{}{
			"text":                  chunk.Text,
			"company":               chunk.Company,
			"year":                  chunk.Year,
			"section":               chunk.Section,
			"document_id":           chunk.DocumentID,
			s.config.EmbeddingField: chunk.Embedding,
		}
		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal chunk %s: %w", chunk.ID, err)
		}

		req := esapi.IndexRequest{
			Index:      s.config.Index,
			DocumentID: chunk.ID,
			Body:       strings.NewReader(string(body)),
		}
		res, err := req.Do(ctx, s.client)
		if err != nil {
			return fmt.Errorf("index chunk %s: %w", chunk.ID, err)
		}
		failed := res.IsError()
		status := res.String()
		res.Body.Close()
		if failed {
			return fmt.Errorf("index chunk %s: %s", chunk.ID, status)
		}
	}
	return nil
}

// SortPassages orders by descending score, breaking ties by ID.
func SortPassages(passages []models.Passage) {
	sort.SliceStable(passages, func(i, j int) bool {
		if passages[i].Score != passages[j].Score {
			return passages[i].Score > passages[j].Score
		}
		return passages[i].ID < passages[j].ID
	})
}
