package ports

import (
	"context"

	"finqa-agent/internal/common/errors"
	"finqa-agent/internal/common/retry"
	"finqa-agent/internal/models"
)

// Collaborator names used in errors, logs and metrics.
const (
	CollaboratorEmbedder    = "embedder"
	CollaboratorVectorStore = "vector_store"
	CollaboratorLLM         = "llm"
)

// Resilient bundles the three collaborators behind the shared retry policy.
// Failures surface as EMBEDDING_FAILED, STORE_FAILED or GENERATION_FAILED,
// wrapping COLLABORATOR_TIMEOUT when the last attempt hit its deadline.
type Resilient struct {
	Embedder    Embedder
	VectorStore VectorStore
	LLM         LLM
}

func NewResilient(embedder Embedder, store VectorStore, llm LLM, policy retry.Policy) *Resilient {
	return &Resilient{
		Embedder:    &retryingEmbedder{next: embedder, policy: policy},
		VectorStore: &retryingStore{next: store, policy: policy},
		LLM:         &retryingLLM{next: llm, policy: policy},
	}
}

type retryingEmbedder struct {
	next   Embedder
	policy retry.Policy
}

func (r *retryingEmbedder) Embed(ctx context.Context, text string, mode EmbedMode) ([]float32, error) {
	vec, err := retry.Do(ctx, r.policy, CollaboratorEmbedder, func(ctx context.Context) ([]float32, error) {
		return r.next.Embed(ctx, text, mode)
	})
	if err != nil {
		return nil, errors.NewEmbeddingError(classify(ctx, CollaboratorEmbedder, err))
	}
	return vec, nil
}

type retryingStore struct {
	next   VectorStore
	policy retry.Policy
}

func (r *retryingStore) Search(ctx context.Context, vector []float32, filter models.MetadataFilter, topK int) ([]models.Passage, error) {
	passages, err := retry.Do(ctx, r.policy, CollaboratorVectorStore, func(ctx context.Context) ([]models.Passage, error) {
		return r.next.Search(ctx, vector, filter, topK)
	})
	if err != nil {
		return nil, errors.NewStoreError(classify(ctx, CollaboratorVectorStore, err))
	}
	return passages, nil
}

type retryingLLM struct {
	next   LLM
	policy retry.Policy
}

func (r *retryingLLM) Complete(ctx context.Context, prompt string) (string, error) {
	text, err := retry.Do(ctx, r.policy, CollaboratorLLM, func(ctx context.Context) (string, error) {
		return r.next.Complete(ctx, prompt)
	})
	if err != nil {
		return "", errors.NewGenerationError(classify(ctx, CollaboratorLLM, err))
	}
	return text, nil
}

func classify(ctx context.Context, collaborator string, err error) error {
	if ctx.Err() == nil && retry.TimedOut(err) {
		return errors.NewCollaboratorTimeoutError(collaborator, err)
	}
	return err
}
