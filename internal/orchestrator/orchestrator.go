// Package orchestrator runs a question through extraction, classification,
// decomposition, retrieval and synthesis, and owns the per-request state.
package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"finqa-agent/internal/common/cache"
	"finqa-agent/internal/common/errors"
	"finqa-agent/internal/common/logger"
	"finqa-agent/internal/common/metrics"
	"finqa-agent/internal/common/observability"
	"finqa-agent/internal/models"
	"finqa-agent/internal/ports"
	synthesizeanswer "finqa-agent/internal/workers/ai-conversation/synthesize-answer"
	validatequestion "finqa-agent/internal/workers/infrastructure/validate-question"
	classifyquery "finqa-agent/internal/workers/query-understanding/classify-query"
	decomposequery "finqa-agent/internal/workers/query-understanding/decompose-query"
	extractentities "finqa-agent/internal/workers/query-understanding/extract-entities"
	executeretrieval "finqa-agent/internal/workers/retrieval/execute-retrieval"
	selectstrategy "finqa-agent/internal/workers/retrieval/select-strategy"
)

// Dependencies are the collaborators an Agent calls. Embedder, VectorStore
// and LLM are required; the rest are skipped when nil.
type Dependencies struct {
	Embedder    ports.Embedder
	VectorStore ports.VectorStore
	LLM         ports.LLM

	Cache         ports.AnswerCache
	Recorder      ports.AnswerRecorder
	Publisher     ports.EventPublisher
	Observability *observability.Observability
}

// Agent answers financial questions. It is safe for concurrent use; each
// call to Answer is independent.
type Agent struct {
	options Options

	validator   *validatequestion.Validator
	extractor   *extractentities.Extractor
	classifier  *classifyquery.Classifier
	decomposer  *decomposequery.Decomposer
	executor    *executeretrieval.Executor
	synthesizer *synthesizeanswer.Synthesizer

	cache     ports.AnswerCache
	recorder  ports.AnswerRecorder
	publisher ports.EventPublisher
	obs       *observability.Observability
	logger    logger.Logger
}

func NewAgent(options Options, deps Dependencies, log logger.Logger) (*Agent, error) {
	if deps.Embedder == nil || deps.VectorStore == nil || deps.LLM == nil {
		return nil, fmt.Errorf("embedder, vector store and llm are required")
	}

	resilient := ports.NewResilient(deps.Embedder, deps.VectorStore, deps.LLM, options.Retry)

	extract := options.Extract
	classify := options.Classify
	decompose := options.Decompose
	retrieval := options.Retrieval
	synthesis := options.Synthesis

	extractor := extractentities.NewExtractor(&extract, log)
	a := &Agent{
		options:     options,
		extractor:   extractor,
		classifier:  classifyquery.NewClassifier(&classify, resilient.LLM, log),
		decomposer:  decomposequery.NewDecomposer(&decompose, resilient.LLM, extractor, log),
		executor:    executeretrieval.NewExecutor(&retrieval, resilient.Embedder, resilient.VectorStore, log),
		synthesizer: synthesizeanswer.NewSynthesizer(&synthesis, resilient.LLM, log),
		cache:       deps.Cache,
		recorder:    deps.Recorder,
		publisher:   deps.Publisher,
		obs:         deps.Observability,
		logger:      log.With(map[string]interface{}{"component": "orchestrator"}),
	}
	if options.ValidateQuestions {
		validate := options.Validate
		a.validator = validatequestion.NewValidator(&validate, log)
	}
	return a, nil
}

// Answer runs the full pipeline for question. Rejected questions return a
// nil answer. Any other failure returns an answer in state FAILED, carrying
// the transitions taken, together with the error.
func (a *Agent) Answer(ctx context.Context, question string, hints *models.Hints) (*models.SynthesizedAnswer, error) {
	question = strings.TrimSpace(question)
	if a.validator != nil {
		validated, err := a.validator.Validate(question)
		if err != nil {
			return nil, err
		}
		question = validated.Question
	} else if question == "" {
		return nil, errors.NewQuestionValidationError("question is empty")
	}

	key := cache.Key(question, hints)
	if cached, ok := a.lookup(ctx, key); ok {
		return cached, nil
	}

	if a.options.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.options.RequestTimeout)
		defer cancel()
	}

	r := newRun(uuid.NewString(), question)
	log := a.logger.With(map[string]interface{}{"requestId": r.requestID})

	ctx, span := a.obs.StartSpan(ctx, "answer", attribute.String("requestId", r.requestID))
	defer span.End()

	answer, err := a.pipeline(ctx, r, hints, log)
	if err != nil {
		answer = a.fail(ctx, r, err, log)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(errors.CodeOf(err)))
	}

	a.finish(ctx, key, answer, err, log)
	return answer, err
}

func (a *Agent) pipeline(ctx context.Context, r *run, hints *models.Hints, log logger.Logger) (*models.SynthesizedAnswer, error) {
	_, span := a.span(ctx, r, extractentities.Stage)
	r.entities = a.extractor.ExtractWithHints(r.question, hints)
	span.End()
	a.advance(ctx, r, models.StateExtracted, extractentities.Stage, "")
	if err := interrupted(ctx); err != nil {
		return nil, err
	}

	stageCtx, span := a.span(ctx, r, classifyquery.Stage)
	classified, err := a.classifier.Classify(stageCtx, r.question, r.entities)
	span.End()
	note := ""
	if err != nil {
		if cerr := interrupted(ctx); cerr != nil {
			return nil, cerr
		}
		r.queryType = models.QueryTypeSimpleDirect
		r.complexity = models.ComplexityScore(a.options.ClassificationFallbackComplexity).Clamp()
		a.fallback(r, classifyquery.Stage, err, log)
		note = "fallback to " + string(models.QueryTypeSimpleDirect)
	} else {
		r.queryType = classified.QueryType
		r.complexity = classified.Complexity
		note = string(classified.Method)
	}
	a.advance(ctx, r, models.StateClassified, classifyquery.Stage, note)

	stageCtx, span = a.span(ctx, r, decomposequery.Stage)
	decomposed, err := a.decomposer.Decompose(stageCtx, r.question, r.entities, r.queryType, r.complexity)
	span.End()
	if err != nil {
		if cerr := interrupted(ctx); cerr != nil {
			return nil, cerr
		}
		// The identity sub-query is a single direct lookup whatever the type.
		r.subQueries = selectstrategy.Apply(decomposequery.Identity(r.question, r.entities), models.QueryTypeSimpleDirect)
		a.fallback(r, decomposequery.Stage, err, log)
		note = "fallback to identity"
	} else {
		r.subQueries = selectstrategy.Apply(decomposed.SubQueries, r.queryType)
		note = string(decomposed.Method)
	}
	a.advance(ctx, r, models.StateDecomposed, decomposequery.Stage, fmt.Sprintf("%s, %d sub-queries", note, len(r.subQueries)))

	stageCtx, span = a.span(ctx, r, executeretrieval.Stage)
	results := a.executor.Execute(stageCtx, r.subQueries)
	span.End()
	if err := interrupted(ctx); err != nil {
		return nil, err
	}
	counts := models.CountByStatus(results)
	if counts[models.RetrievalFailed] == len(results) {
		failure := errors.NewRetrievalFailedError(len(results))
		if len(results) > 0 {
			failure = failure.WithMetadata("firstError", results[0].Error)
		}
		return nil, failure
	}
	if n := counts[models.RetrievalFailed]; n > 0 {
		r.warnings = append(r.warnings, fmt.Sprintf("retrieval failed for %d of %d sub-queries", n, len(results)))
	}
	a.advance(ctx, r, models.StateRetrieved, executeretrieval.Stage, fmt.Sprintf("ok=%d empty=%d failed=%d",
		counts[models.RetrievalOK], counts[models.RetrievalEmpty], counts[models.RetrievalFailed]))

	opts := synthesizeanswer.Options{Fallbacks: r.fallbacks}
	stageCtx, span = a.span(ctx, r, synthesizeanswer.Stage)
	answer, err := a.synthesizer.Synthesize(stageCtx, r.question, r.queryType, r.subQueries, results, opts)
	span.End()
	note = ""
	if err != nil {
		if cerr := interrupted(ctx); cerr != nil {
			return nil, cerr
		}
		metrics.Fallbacks.WithLabelValues(synthesizeanswer.Stage).Inc()
		answer, err = a.synthesizer.Degraded(r.question, r.queryType, r.subQueries, results, opts, err)
		if err != nil {
			return nil, err
		}
		note = "degraded"
	}
	a.advance(ctx, r, models.StateSynthesized, synthesizeanswer.Stage, note)

	answer.RequestID = r.requestID
	answer.Complexity = r.complexity
	answer.Entities = r.entities
	answer.State = r.state
	answer.Transitions = r.transitions
	answer.Warnings = append(r.warnings, answer.Warnings...)
	answer.CreatedAt = r.started
	return answer, nil
}

// fail moves the run to FAILED and returns what is known so far.
func (a *Agent) fail(ctx context.Context, r *run, err error, log logger.Logger) *models.SynthesizedAnswer {
	a.advance(ctx, r, models.StateFailed, "failed", string(errors.CodeOf(err)))
	log.Error("question failed", map[string]interface{}{
		"state":     r.previous,
		"errorCode": errors.CodeOf(err),
		"error":     err.Error(),
	})
	return &models.SynthesizedAnswer{
		RequestID:   r.requestID,
		Question:    r.question,
		QueryType:   r.queryType,
		Complexity:  r.complexity,
		Entities:    r.entities,
		SubQueries:  r.subQueries,
		Citations:   []models.Citation{},
		State:       models.StateFailed,
		Transitions: r.transitions,
		Warnings:    r.warnings,
		CreatedAt:   r.started,
	}
}

// finish records metrics and runs the optional side effects. Their failures
// are logged and never change the answer.
func (a *Agent) finish(ctx context.Context, key string, answer *models.SynthesizedAnswer, failure error, log logger.Logger) {
	metrics.QuestionsTotal.WithLabelValues(string(answer.QueryType), string(answer.State)).Inc()
	a.obs.RecordAnswer(ctx, string(answer.QueryType), string(answer.State), len(answer.SubQueries))

	sideCtx := context.WithoutCancel(ctx)

	if a.recorder != nil {
		if err := a.recorder.Record(sideCtx, answer, failure); err != nil {
			log.Warn("failed to record answer", map[string]interface{}{"error": err.Error()})
		}
	}
	if failure != nil {
		return
	}

	metrics.AnswerConfidence.Observe(answer.Confidence)
	log.Info("question answered", map[string]interface{}{
		"queryType":  answer.QueryType,
		"subQueries": len(answer.SubQueries),
		"citations":  len(answer.Citations),
		"confidence": answer.Confidence,
		"degraded":   answer.Degraded,
		"durationMs": time.Since(answer.CreatedAt).Milliseconds(),
	})

	if a.publisher != nil {
		if err := a.publisher.PublishAnswer(sideCtx, answer); err != nil {
			log.Warn("failed to publish answer event", map[string]interface{}{"error": err.Error()})
		}
	}
	if a.cache != nil && !answer.Degraded {
		if err := a.cache.Set(sideCtx, key, answer); err != nil {
			log.Warn("failed to cache answer", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (a *Agent) lookup(ctx context.Context, key string) (*models.SynthesizedAnswer, bool) {
	if a.cache == nil {
		return nil, false
	}
	cached, ok, err := a.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.AnswerCacheLookups.WithLabelValues("error").Inc()
		a.logger.Warn("answer cache lookup failed", map[string]interface{}{"error": err.Error()})
		return nil, false
	case !ok:
		metrics.AnswerCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.AnswerCacheLookups.WithLabelValues("hit").Inc()
	a.logger.Debug("answer served from cache", map[string]interface{}{"requestId": cached.RequestID})
	return cached, true
}

func (a *Agent) span(ctx context.Context, r *run, stage string) (context.Context, trace.Span) {
	return a.obs.StartSpan(ctx, stage, attribute.String("requestId", r.requestID))
}

func (a *Agent) advance(ctx context.Context, r *run, to models.State, stage, note string) {
	elapsed := r.advance(to, note)
	metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	a.obs.RecordStageDuration(ctx, stage, elapsed)
}

func (a *Agent) fallback(r *run, stage string, cause error, log logger.Logger) {
	r.fallbacks++
	r.warnings = append(r.warnings, fmt.Sprintf("%s fell back: %s", stage, cause.Error()))
	metrics.Fallbacks.WithLabelValues(stage).Inc()
	log.Warn("stage fell back", map[string]interface{}{
		"stage": stage,
		"error": cause.Error(),
	})
}

// interrupted maps a done request context to its pipeline error.
func interrupted(ctx context.Context) error {
	err := ctx.Err()
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewCollaboratorTimeoutError("request", err)
	default:
		return errors.NewRequestCancelledError(err)
	}
}
