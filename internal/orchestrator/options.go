package orchestrator

import (
	"time"

	"finqa-agent/internal/common/config"
	"finqa-agent/internal/common/metrics"
	"finqa-agent/internal/common/retry"
	synthesizeanswer "finqa-agent/internal/workers/ai-conversation/synthesize-answer"
	validatequestion "finqa-agent/internal/workers/infrastructure/validate-question"
	classifyquery "finqa-agent/internal/workers/query-understanding/classify-query"
	decomposequery "finqa-agent/internal/workers/query-understanding/decompose-query"
	extractentities "finqa-agent/internal/workers/query-understanding/extract-entities"
	executeretrieval "finqa-agent/internal/workers/retrieval/execute-retrieval"
	"finqa-agent/pkg/registry"
)

// Options is the per-stage configuration of an Agent. NewAgent copies it, so
// later changes to the caller's value have no effect.
type Options struct {
	Extract   extractentities.Config
	Validate  validatequestion.Config
	Classify  classifyquery.Config
	Decompose decomposequery.Config
	Retrieval executeretrieval.Config
	Synthesis synthesizeanswer.Config

	Retry          retry.Policy
	RequestTimeout time.Duration

	ValidateQuestions bool
	// ClassificationFallbackComplexity is assigned when classification
	// fails and the question is treated as SIMPLE_DIRECT.
	ClassificationFallbackComplexity float64
}

// DefaultOptions uses the shipped vocabulary and every stage default.
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultAgentConfig(), registry.Default())
}

// OptionsFromConfig builds Options from the agent section of the configuration.
func OptionsFromConfig(agent config.AgentConfig, vocab *registry.Vocabulary) Options {
	if vocab == nil {
		vocab = registry.Default()
	}

	decompose := *decomposequery.LoadConfig()
	decompose.DefaultYear = agent.DefaultYear
	decompose.MaxSubQueries = agent.MaxSubQueries
	decompose.ModelThreshold = agent.ModelDecompositionThreshold

	retrieval := *executeretrieval.LoadConfig()
	retrieval.TopK = agent.TopK
	retrieval.MaxConcurrency = agent.MaxConcurrency

	synthesis := *synthesizeanswer.LoadConfig()
	synthesis.ContextPassages = agent.ContextPassages
	synthesis.ExcerptChars = agent.ExcerptChars
	synthesis.MaxCitations = agent.MaxCitations
	synthesis.CoverageWeight = agent.CoverageWeight
	synthesis.RelevanceWeight = agent.RelevanceWeight
	synthesis.CertaintyWeight = agent.CertaintyWeight
	synthesis.DroppedCitationPenalty = agent.DroppedCitationPenalty
	synthesis.FallbackPenalty = agent.FallbackPenalty

	validate := *validatequestion.LoadConfig()
	validate.Vocabulary = vocab

	policy := retry.DefaultPolicy()
	policy.MaxRetries = agent.MaxRetries
	policy.CallTimeout = config.GetDuration(agent.CallTimeout)
	policy.OnRetry = func(operation string, _ int, _ error) {
		metrics.CollaboratorRetries.WithLabelValues(operation).Inc()
	}

	return Options{
		Extract:                          extractentities.Config{Vocabulary: vocab},
		Validate:                         validate,
		Classify:                         classifyquery.Config{ComplexityThreshold: agent.ComplexityThreshold},
		Decompose:                        decompose,
		Retrieval:                        retrieval,
		Synthesis:                        synthesis,
		Retry:                            policy,
		RequestTimeout:                   config.GetDuration(agent.RequestTimeout),
		ValidateQuestions:                agent.ValidateQuestions,
		ClassificationFallbackComplexity: 0.1,
	}
}
