package ports

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"finqa-agent/internal/common/errors"
	"finqa-agent/internal/common/retry"
	"finqa-agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyLLM struct {
	failures int
	calls    int
	err      error
}

func (f *flakyLLM) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.err
	}
	return "done", nil
}

type slowStore struct{ calls int }

func (s *slowStore) Search(ctx context.Context, _ []float32, _ models.MetadataFilter, _ int) ([]models.Passage, error) {
	s.calls++
	<-ctx.Done()
	return nil, ctx.Err()
}

type brokenEmbedder struct{}

func (brokenEmbedder) Embed(context.Context, string, EmbedMode) ([]float32, error) {
	return nil, &retry.StatusError{StatusCode: 400, Body: "text too long"}
}

func testPolicy() retry.Policy {
	return retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond, CallTimeout: 20 * time.Millisecond}
}

func TestResilientLLM_RetriesTransientErrors(t *testing.T) {
	llm := &flakyLLM{failures: 2, err: &retry.StatusError{StatusCode: 503}}
	r := NewResilient(brokenEmbedder{}, &slowStore{}, llm, testPolicy())

	text, err := r.LLM.Complete(context.Background(), "prompt")

	require.NoError(t, err)
	assert.Equal(t, "done", text)
	assert.Equal(t, 3, llm.calls)
}

func TestResilientLLM_GivesUpAfterTwoRetries(t *testing.T) {
	llm := &flakyLLM{failures: 5, err: &retry.StatusError{StatusCode: 500}}
	r := NewResilient(brokenEmbedder{}, &slowStore{}, llm, testPolicy())

	_, err := r.LLM.Complete(context.Background(), "prompt")

	require.Error(t, err)
	assert.Equal(t, 3, llm.calls)
	assert.True(t, errors.HasCode(err, errors.ErrCodeGenerationFailed))
}

func TestResilientStore_TimeoutIsReported(t *testing.T) {
	store := &slowStore{}
	r := NewResilient(brokenEmbedder{}, store, &flakyLLM{}, testPolicy())

	_, err := r.VectorStore.Search(context.Background(), []float32{1}, nil, 5)

	require.Error(t, err)
	assert.Equal(t, 3, store.calls)
	assert.True(t, errors.HasCode(err, errors.ErrCodeStoreFailed))
	assert.True(t, errors.HasCode(err, errors.ErrCodeCollaboratorTimeout))
}

func TestResilientEmbedder_PermanentErrorNotRetried(t *testing.T) {
	r := NewResilient(brokenEmbedder{}, &slowStore{}, &flakyLLM{}, testPolicy())

	_, err := r.Embedder.Embed(context.Background(), "text", EmbedModeQuery)

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeEmbeddingFailed, errors.CodeOf(err))
	var statusErr *retry.StatusError
	assert.True(t, stderrors.As(err, &statusErr))
}

func TestResilient_CancellationIsNotATimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewResilient(brokenEmbedder{}, &slowStore{}, &flakyLLM{failures: 1, err: stderrors.New("connection reset")}, testPolicy())
	_, err := r.LLM.Complete(ctx, "prompt")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.HasCode(err, errors.ErrCodeCollaboratorTimeout))
}
