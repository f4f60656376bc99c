package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"

	"finqa-agent/internal/models"
	"finqa-agent/internal/ports"
)

// Chunk is a filing passage with its embedding, as stored.
type Chunk struct {
	ID         string    `json:"chunk_id"`
	Text       string    `json:"text"`
	Company    string    `json:"company"`
	Year       int       `json:"year"`
	Section    string    `json:"section"`
	DocumentID string    `json:"document_id,omitempty"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// ChunkID follows the company_year_section_n convention of the ingestion job.
func ChunkID(company string, year int, section string, n int) string {
	return fmt.Sprintf("%s_%d_%s_%d", company, year, section, n)
}

// MemoryStore is an in-process cosine similarity store for local runs and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[string]Chunk
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[string]Chunk)}
}

func (s *MemoryStore) Store(ctx context.Context, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		if chunk.ID == "" {
			return fmt.Errorf("chunk without id")
		}
		s.chunks[chunk.ID] = chunk
	}
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Search scores every matching chunk. Scores are (1+cos)/2, the same scale
// Elasticsearch reports for cosine dense vectors.
func (s *MemoryStore) Search(ctx context.Context, vector []float32, filter models.MetadataFilter, topK int) ([]models.Passage, error) {
	if len(vector) == 0 {
		return nil, ErrEmptyVector
	}
	if topK < 1 {
		return nil, ErrInvalidTopK
	}
	if _, err := buildFilterClauses(filter); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	company, hasCompany := filter.Company()
	year, hasYear := filter.Year()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []models.Passage
	for _, chunk := range s.chunks {
		if hasCompany && chunk.Company != company {
			continue
		}
		if hasYear && chunk.Year != year {
			continue
		}
		results = append(results, models.Passage{
			ID:    chunk.ID,
			Text:  chunk.Text,
			Score: (1 + cosineSimilarity(vector, chunk.Embedding)) / 2,
			Source: models.SourceMetadata{
				Company:    chunk.Company,
				Year:       chunk.Year,
				Section:    chunk.Section,
				DocumentID: chunk.DocumentID,
			},
		})
	}

	SortPassages(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Indexer is any store that accepts embedded chunks.
type Indexer interface {
	Store(ctx context.Context, chunks []Chunk) error
}

// LoadSeed reads chunks from a JSON file, embeds those without a vector in
// document mode and stores them. It returns the number of chunks stored.
func LoadSeed(ctx context.Context, path string, embedder ports.Embedder, store Indexer) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	var chunks []Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}

	for i := range chunks {
		if chunks[i].ID == "" {
			chunks[i].ID = ChunkID(chunks[i].Company, chunks[i].Year, chunks[i].Section, i)
		}
		if len(chunks[i].Embedding) > 0 {
			continue
		}
		vec, err := embedder.Embed(ctx, chunks[i].Text, ports.EmbedModeDocument)
		if err != nil {
			return 0, fmt.Errorf("embed chunk %s: %w", chunks[i].ID, err)
		}
		chunks[i].Embedding = vec
	}

	if err := store.Store(ctx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}
