// Package ports defines the collaborators the answering pipeline depends on.
// Stages only see these interfaces; the adapters live under internal/common.
package ports

import (
	"context"

	"finqa-agent/internal/models"
)

// EmbedMode selects how text is embedded. Questions and filing passages use
// different task types on most embedding models.
type EmbedMode string

const (
	EmbedModeQuery    EmbedMode = "query"
	EmbedModeDocument EmbedMode = "document"
)

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string, mode EmbedMode) ([]float32, error)
}

// VectorStore returns passages ordered by descending similarity.
// An empty filter means no metadata restriction.
type VectorStore interface {
	Search(ctx context.Context, vector []float32, filter models.MetadataFilter, topK int) ([]models.Passage, error)
}

// LLM completes a prompt.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// AnswerCache stores finished answers keyed by normalized question.
type AnswerCache interface {
	Get(ctx context.Context, key string) (*models.SynthesizedAnswer, bool, error)
	Set(ctx context.Context, key string, answer *models.SynthesizedAnswer) error
}

// AnswerRecorder keeps an audit trail of answered questions.
type AnswerRecorder interface {
	Record(ctx context.Context, answer *models.SynthesizedAnswer, failure error) error
}

// EventPublisher announces completed answers to downstream consumers.
type EventPublisher interface {
	PublishAnswer(ctx context.Context, answer *models.SynthesizedAnswer) error
}
