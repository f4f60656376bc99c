package orchestrator

import (
	"context"
	stderrors "errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"finqa-agent/internal/common/cache"
	"finqa-agent/internal/common/config"
	"finqa-agent/internal/common/errors"
	"finqa-agent/internal/common/logger"
	"finqa-agent/internal/models"
	"finqa-agent/internal/ports/portstest"
	"finqa-agent/pkg/registry"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Fixtures
// ==========================

func passage(id, company string, year int, score float64, text string) models.Passage {
	return models.Passage{
		ID:     id,
		Text:   text,
		Score:  score,
		Source: models.SourceMetadata{Company: company, Year: year, Section: "mdna"},
	}
}

func filingPassages() []models.Passage {
	return []models.Passage{
		passage("MSFT_2023_mdna_0", "MSFT", 2023, 0.91, "Revenue was $211.9 billion and increased 7% driven by growth in Microsoft Cloud."),
		passage("NVDA_2023_mdna_0", "NVDA", 2023, 0.89, "Revenue was $60.9 billion, up 126% from a year ago, led by Data Center."),
		passage("NVDA_2022_mdna_0", "NVDA", 2022, 0.87, "Revenue was $26.9 billion, up 61% from a year ago."),
		passage("GOOGL_2023_mdna_0", "GOOGL", 2023, 0.85, "Revenues were $307.4 billion, an increase of 9% year over year."),
		passage("MSFT_2023_mdna_1", "MSFT", 2023, 0.80, "Operating income increased $5.4 billion or 6%."),
	}
}

var labelPattern = regexp.MustCompile(`\[(S\d+)\] ([A-Z]+ \d{4})`)

// labelFor returns the context label the prompt assigned to a company-year.
func labelFor(prompt, companyYear string) string {
	for _, m := range labelPattern.FindAllStringSubmatch(prompt, -1) {
		if m[2] == companyYear {
			return m[1]
		}
	}
	return ""
}

func isClassifyPrompt(prompt string) bool {
	return strings.HasPrefix(prompt, "Classify this financial question")
}

func isDecomposePrompt(prompt string) bool {
	return strings.HasPrefix(prompt, "Break down this financial question")
}

// citingReply answers synthesis prompts by citing the passage of companyYear.
func citingReply(companyYear string) func(string) (string, error) {
	return func(prompt string) (string, error) {
		label := labelFor(prompt, companyYear)
		if label == "" {
			label = "S1"
		}
		return "ANSWER: The filing states the figure [" + label + "].\nREASONING: Taken from the MD&A [" + label + "].\nCONFIDENCE: high", nil
	}
}

type recorded struct {
	answer  *models.SynthesizedAnswer
	failure error
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []recorded
}

func (r *fakeRecorder) Record(_ context.Context, answer *models.SynthesizedAnswer, failure error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, recorded{answer: answer, failure: failure})
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []*models.SynthesizedAnswer
	err       error
}

func (p *fakePublisher) PublishAnswer(_ context.Context, answer *models.SynthesizedAnswer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, answer)
	return p.err
}

type fixture struct {
	llm       *portstest.LLM
	embedder  *portstest.Embedder
	store     *portstest.Store
	recorder  *fakeRecorder
	publisher *fakePublisher
	deps      Dependencies
	options   Options
}

func newFixture() *fixture {
	f := &fixture{
		llm:       &portstest.LLM{},
		embedder:  &portstest.Embedder{},
		store:     &portstest.Store{Passages: filingPassages()},
		recorder:  &fakeRecorder{},
		publisher: &fakePublisher{},
		options:   DefaultOptions(),
	}
	f.options.Retry.BaseDelay = time.Millisecond
	f.options.Retry.OnRetry = nil
	f.deps = Dependencies{
		Embedder:    f.embedder,
		VectorStore: f.store,
		LLM:         f.llm,
		Recorder:    f.recorder,
		Publisher:   f.publisher,
	}
	return f
}

func (f *fixture) agent(t *testing.T) *Agent {
	t.Helper()
	a, err := NewAgent(f.options, f.deps, logger.NewTestLogger(t))
	require.NoError(t, err)
	return a
}

func states(transitions []models.Transition) []models.State {
	out := make([]models.State, 0, len(transitions)+1)
	if len(transitions) > 0 {
		out = append(out, transitions[0].From)
	}
	for _, tr := range transitions {
		out = append(out, tr.To)
	}
	return out
}

var happyPath = []models.State{
	models.StateReceived,
	models.StateExtracted,
	models.StateClassified,
	models.StateDecomposed,
	models.StateRetrieved,
	models.StateSynthesized,
}

// ==========================
// End-to-end Scenarios
// ==========================

func TestAnswer_SimpleDirectMicrosoft(t *testing.T) {
	f := newFixture()
	f.llm.Fn = citingReply("MSFT 2023")

	answer, err := f.agent(t).Answer(context.Background(), "What was Microsoft's revenue in 2023?", nil)

	require.NoError(t, err)
	assert.Equal(t, models.QueryTypeSimpleDirect, answer.QueryType)
	assert.Equal(t, models.StateSynthesized, answer.State)
	assert.NotEmpty(t, answer.RequestID)

	require.Len(t, answer.SubQueries, 1)
	sq := answer.SubQueries[0]
	assert.Equal(t, "MSFT", sq.Company)
	assert.Equal(t, 2023, sq.Year)
	assert.Equal(t, "revenue", sq.Metric)
	assert.Equal(t, models.StrategySemantic, sq.Strategy)

	require.NotEmpty(t, answer.Citations)
	cited := false
	for _, c := range answer.Citations {
		if c.Company == "MSFT" && c.Year == 2023 {
			cited = true
		}
	}
	assert.True(t, cited, "expected a Microsoft 2023 citation, got %+v", answer.Citations)
	assert.Greater(t, answer.Confidence, 0.0)
	assert.Equal(t, 1, f.llm.Calls(), "only synthesis should reach the model")
}

func TestAnswer_YearOverYearNvidia(t *testing.T) {
	f := newFixture()
	f.llm.Fn = citingReply("NVDA 2023")

	answer, err := f.agent(t).Answer(context.Background(), "How did NVIDIA grow from 2022 to 2023?", nil)

	require.NoError(t, err)
	assert.Equal(t, models.QueryTypeComparativeYoY, answer.QueryType)
	require.Len(t, answer.SubQueries, 2)
	assert.Equal(t, 2022, answer.SubQueries[0].Year)
	assert.Equal(t, 2023, answer.SubQueries[1].Year)
	for i, sq := range answer.SubQueries {
		assert.Equal(t, i, sq.Index)
		assert.Equal(t, "NVDA", sq.Company)
		assert.Equal(t, models.StrategyTemporal, sq.Strategy)
		year, ok := sq.Filter.Year()
		require.True(t, ok)
		assert.Equal(t, sq.Year, year)
	}

	calls := f.store.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, 5, calls[0].TopK)
}

func TestAnswer_UnknownCompanyFallsBackToSimpleDirect(t *testing.T) {
	f := newFixture()
	f.llm.Fn = func(prompt string) (string, error) {
		if isClassifyPrompt(prompt) {
			return "Hard to say without more detail.", nil
		}
		return citingReply("MSFT 2023")(prompt)
	}

	answer, err := f.agent(t).Answer(context.Background(), "How is Acme Widgets doing lately?", nil)

	require.NoError(t, err)
	assert.True(t, answer.Entities.Empty())
	assert.Equal(t, models.QueryTypeSimpleDirect, answer.QueryType)
	assert.InDelta(t, 0.1, float64(answer.Complexity), 1e-9)
	assert.Equal(t, models.StateSynthesized, answer.State)
	assert.NotEmpty(t, answer.Answer)
	assert.Greater(t, answer.Confidence, 0.0)
	assert.Less(t, answer.Confidence, 1.0)
	require.NotEmpty(t, answer.Warnings)
	assert.Contains(t, answer.Warnings[0], "classify-query fell back")
	assert.Equal(t, "fallback to SIMPLE_DIRECT", answer.Transitions[1].Note)
}

// ==========================
// State Machine
// ==========================

func TestAnswer_RecordsEveryTransition(t *testing.T) {
	f := newFixture()
	f.llm.Fn = citingReply("MSFT 2023")

	answer, err := f.agent(t).Answer(context.Background(), "What was Microsoft's revenue in 2023?", nil)

	require.NoError(t, err)
	assert.Equal(t, happyPath, states(answer.Transitions))
	for _, tr := range answer.Transitions {
		assert.GreaterOrEqual(t, tr.DurationMs, int64(0))
	}
	assert.Equal(t, "ok=1 empty=0 failed=0", answer.Transitions[4].Note)
	assert.False(t, answer.CreatedAt.IsZero())
}

func TestAnswer_DecompositionFailureFallsBackToIdentity(t *testing.T) {
	f := newFixture()
	f.llm.Fn = func(prompt string) (string, error) {
		switch {
		case isClassifyPrompt(prompt):
			return "COMPLEX_MULTI_ASPECT", nil
		case isDecomposePrompt(prompt):
			return "", nil
		}
		return citingReply("MSFT 2023")(prompt)
	}

	question := "Explain Microsoft's profitability drivers in 2023"
	answer, err := f.agent(t).Answer(context.Background(), question, nil)

	require.NoError(t, err)
	assert.Equal(t, models.QueryTypeComplexMultiAspect, answer.QueryType)
	require.Len(t, answer.SubQueries, 1)
	assert.Equal(t, question, answer.SubQueries[0].Text)
	assert.Equal(t, models.StrategySemantic, answer.SubQueries[0].Strategy)
	assert.Equal(t, "fallback to identity, 1 sub-queries", answer.Transitions[2].Note)
	require.NotEmpty(t, answer.Warnings)
	assert.Contains(t, answer.Warnings[0], "decompose-query fell back")
}

func TestAnswer_AllRetrievalsFailed(t *testing.T) {
	f := newFixture()
	f.store.Err = stderrors.New("index missing")
	f.llm.Fn = citingReply("MSFT 2023")

	answer, err := f.agent(t).Answer(context.Background(), "What was Microsoft's revenue in 2023?", nil)

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRetrievalFailed))
	require.NotNil(t, answer)
	assert.Equal(t, models.StateFailed, answer.State)
	last := answer.Transitions[len(answer.Transitions)-1]
	assert.Equal(t, models.StateDecomposed, last.From)
	assert.Equal(t, models.StateFailed, last.To)
	assert.Equal(t, 0, f.llm.Calls())

	require.Len(t, f.recorder.entries, 1)
	assert.Error(t, f.recorder.entries[0].failure)
	assert.Empty(t, f.publisher.published)
}

func TestAnswer_PartialRetrievalFailureWarns(t *testing.T) {
	f := newFixture()
	f.embedder.Fail = map[string]error{"NVDA": stderrors.New("embedding rejected")}
	f.llm.Fn = citingReply("MSFT 2023")

	answer, err := f.agent(t).Answer(context.Background(),
		"Did Microsoft or NVIDIA have the highest operating margin in 2023?", nil)

	require.NoError(t, err)
	assert.Equal(t, models.QueryTypeCrossCompany, answer.QueryType)
	assert.Len(t, answer.SubQueries, 2)
	assert.Contains(t, answer.Warnings, "retrieval failed for 1 of 2 sub-queries")
	assert.Equal(t, models.StateSynthesized, answer.State)
}

func TestAnswer_SynthesisFailureDegrades(t *testing.T) {
	f := newFixture()
	f.llm.Err = stderrors.New("model overloaded")

	answer, err := f.agent(t).Answer(context.Background(), "What was Microsoft's revenue in 2023?", nil)

	require.NoError(t, err)
	assert.True(t, answer.Degraded)
	assert.Equal(t, models.StateSynthesized, answer.State)
	assert.Equal(t, "degraded", answer.Transitions[len(answer.Transitions)-1].Note)
	assert.NotEmpty(t, answer.Citations)
	assert.Contains(t, answer.Answer, "most relevant retrieved excerpts")
}

func TestAnswer_SynthesisFailureWithoutPassagesFails(t *testing.T) {
	f := newFixture()
	f.store.Passages = nil
	f.llm.Err = stderrors.New("model overloaded")

	answer, err := f.agent(t).Answer(context.Background(), "What was Microsoft's revenue in 2023?", nil)

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNoUsableContext))
	assert.Equal(t, models.StateFailed, answer.State)
	assert.Equal(t, models.StateRetrieved, answer.Transitions[len(answer.Transitions)-1].From)
}

func TestAnswer_CancelledContext(t *testing.T) {
	f := newFixture()
	f.llm.Fn = citingReply("MSFT 2023")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	answer, err := f.agent(t).Answer(ctx, "What was Microsoft's revenue in 2023?", nil)

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRequestCancelled))
	assert.Equal(t, models.StateFailed, answer.State)
	assert.Equal(t, []models.State{models.StateReceived, models.StateExtracted, models.StateFailed}, states(answer.Transitions))
	assert.Equal(t, 0, f.llm.Calls())
	assert.Empty(t, f.store.Calls())
}

func TestAnswer_RequestTimeout(t *testing.T) {
	f := newFixture()
	f.options.RequestTimeout = 20 * time.Millisecond
	f.store.Fn = func(ctx context.Context, _ models.MetadataFilter, _ int) ([]models.Passage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	answer, err := f.agent(t).Answer(context.Background(), "What was Microsoft's revenue in 2023?", nil)

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCollaboratorTimeout))
	assert.Equal(t, models.StateFailed, answer.State)
}

// ==========================
// Input and Side Effects
// ==========================

func TestAnswer_RejectsEmptyQuestion(t *testing.T) {
	f := newFixture()

	answer, err := f.agent(t).Answer(context.Background(), "   ", nil)

	assert.Nil(t, answer)
	assert.True(t, errors.HasCode(err, errors.ErrCodeQuestionValidationFailed))
	assert.Empty(t, f.recorder.entries)
}

func TestAnswer_ValidationWhenEnabled(t *testing.T) {
	f := newFixture()
	f.options.ValidateQuestions = true
	f.llm.Fn = citingReply("MSFT 2023")
	a := f.agent(t)

	_, err := a.Answer(context.Background(), "Tell me a joke about penguins", nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeQuestionValidationFailed))

	answer, err := a.Answer(context.Background(), "  What was Microsoft's revenue in 2023?  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "What was Microsoft's revenue in 2023?", answer.Question)
}

func TestAnswer_HintsAddEntities(t *testing.T) {
	f := newFixture()
	f.llm.Fn = citingReply("NVDA 2023")

	answer, err := f.agent(t).Answer(context.Background(), "What was the revenue in 2023?",
		&models.Hints{Companies: []string{"nvidia"}})

	require.NoError(t, err)
	assert.Equal(t, []string{"NVDA"}, answer.Entities.Companies)
	assert.Equal(t, "NVDA", answer.SubQueries[0].Company)
}

func TestAnswer_RecordsAndPublishes(t *testing.T) {
	f := newFixture()
	f.publisher.err = stderrors.New("topic unavailable")
	f.llm.Fn = citingReply("MSFT 2023")

	answer, err := f.agent(t).Answer(context.Background(), "What was Microsoft's revenue in 2023?", nil)

	require.NoError(t, err, "publish failures must not fail the answer")
	require.Len(t, f.recorder.entries, 1)
	assert.Same(t, answer, f.recorder.entries[0].answer)
	assert.NoError(t, f.recorder.entries[0].failure)
	require.Len(t, f.publisher.published, 1)
	assert.Equal(t, answer.RequestID, f.publisher.published[0].RequestID)
}

func TestAnswer_CachesSuccessfulAnswers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture()
	f.deps.Cache = cache.NewAnswerCache(client, time.Minute, "finqa:test:")
	f.llm.Fn = citingReply("MSFT 2023")
	a := f.agent(t)

	first, err := a.Answer(context.Background(), "What was Microsoft's revenue in 2023?", nil)
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 1)

	second, err := a.Answer(context.Background(), "what was microsoft's revenue in 2023?", nil)
	require.NoError(t, err)
	assert.Equal(t, first.RequestID, second.RequestID)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, 1, f.llm.Calls())
}

func TestAnswer_DoesNotCacheDegradedAnswers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture()
	f.deps.Cache = cache.NewAnswerCache(client, time.Minute, "finqa:test:")
	f.llm.Err = stderrors.New("model overloaded")

	answer, err := f.agent(t).Answer(context.Background(), "What was Microsoft's revenue in 2023?", nil)

	require.NoError(t, err)
	assert.True(t, answer.Degraded)
	assert.Empty(t, mr.Keys())
}

func TestAnswer_IsDeterministic(t *testing.T) {
	f := newFixture()
	f.llm.Fn = citingReply("NVDA 2023")
	a := f.agent(t)

	first, err := a.Answer(context.Background(), "How did NVIDIA grow from 2022 to 2023?", nil)
	require.NoError(t, err)
	second, err := a.Answer(context.Background(), "How did NVIDIA grow from 2022 to 2023?", nil)
	require.NoError(t, err)

	assert.Equal(t, first.QueryType, second.QueryType)
	assert.Equal(t, first.SubQueries, second.SubQueries)
	assert.Equal(t, first.Citations, second.Citations)
	assert.NotEqual(t, first.RequestID, second.RequestID)
}

// ==========================
// Construction
// ==========================

func TestNewAgent_RequiresCollaborators(t *testing.T) {
	_, err := NewAgent(DefaultOptions(), Dependencies{LLM: &portstest.LLM{}}, logger.NewNoOpLogger())
	assert.Error(t, err)
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.Equal(t, 5, opts.Retrieval.TopK)
	assert.Equal(t, 4, opts.Retrieval.MaxConcurrency)
	assert.Equal(t, 2, opts.Retry.MaxRetries)
	assert.Equal(t, 15*time.Second, opts.Retry.CallTimeout)
	assert.Equal(t, 60*time.Second, opts.RequestTimeout)
	assert.InDelta(t, 0.4, opts.Synthesis.CoverageWeight, 1e-9)
	assert.InDelta(t, 0.4, opts.Synthesis.RelevanceWeight, 1e-9)
	assert.InDelta(t, 0.2, opts.Synthesis.CertaintyWeight, 1e-9)
	assert.InDelta(t, 0.6, opts.Classify.ComplexityThreshold, 1e-9)
	assert.Equal(t, 2023, opts.Decompose.DefaultYear)
	assert.False(t, opts.ValidateQuestions)
}

func TestOptionsFromConfig(t *testing.T) {
	agent := config.DefaultAgentConfig()
	agent.TopK = 8
	agent.MaxConcurrency = 2
	agent.DefaultYear = 2024
	agent.CallTimeout = 500
	agent.ValidateQuestions = true

	vocab := registry.Default()
	opts := OptionsFromConfig(agent, vocab)

	assert.Equal(t, 8, opts.Retrieval.TopK)
	assert.Equal(t, 2, opts.Retrieval.MaxConcurrency)
	assert.Equal(t, 2024, opts.Decompose.DefaultYear)
	assert.Equal(t, 500*time.Millisecond, opts.Retry.CallTimeout)
	assert.True(t, opts.ValidateQuestions)
	assert.Same(t, vocab, opts.Extract.Vocabulary)
	assert.Same(t, vocab, opts.Validate.Vocabulary)
	assert.NotNil(t, opts.Retry.OnRetry)
}
