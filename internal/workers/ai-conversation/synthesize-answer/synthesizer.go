// internal/workers/ai-conversation/synthesize-answer/synthesizer.go
package synthesizeanswer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"finqa-agent/internal/common/errors"
	"finqa-agent/internal/common/genai"
	"finqa-agent/internal/common/logger"
	"finqa-agent/internal/models"
	"finqa-agent/internal/ports"
)

const Stage = "synthesize-answer"

var (
	answerSection     = regexp.MustCompile(`(?is)ANSWER:\s*(.+?)\s*(?:REASONING:|CONFIDENCE:|$)`)
	reasoningSection  = regexp.MustCompile(`(?is)REASONING:\s*(.+?)\s*(?:CONFIDENCE:|$)`)
	confidenceSection = regexp.MustCompile(`(?i)CONFIDENCE:[\s*\[]*(\w+)`)
)

type Synthesizer struct {
	config *Config
	llm    ports.LLM
	logger logger.Logger
}

func NewSynthesizer(config *Config, llm ports.LLM, log logger.Logger) *Synthesizer {
	return &Synthesizer{
		config: config,
		llm:    llm,
		logger: log.With(map[string]interface{}{"stage": Stage}),
	}
}

// Synthesize answers question from the retrieved passages. Every citation
// on the returned answer points at a passage that was in the prompt.
func (s *Synthesizer) Synthesize(
	ctx context.Context,
	question string,
	queryType models.QueryType,
	subQueries []models.SubQuery,
	results []models.RetrievalResult,
	opts Options,
) (*models.SynthesizedAnswer, error) {
	contextText, labels := s.buildContext(results)

	var hint string
	if queryType == models.QueryTypeComparativeYoY {
		hint = growthHint(subQueries, results)
	}

	reply, err := s.llm.Complete(ctx, buildPrompt(question, queryType, subQueries, contextText, hint))
	if err != nil {
		return nil, errors.NewSynthesisError(err)
	}
	if strings.TrimSpace(reply) == "" {
		return nil, errors.NewSynthesisError(errors.NewGenerationError(fmt.Errorf("empty completion")))
	}

	parsed := ParseReply(reply)
	cited := s.newCitationSet(labels)
	answerText := cited.resolve(parsed.Answer)
	parsed.Reasoning = cited.resolve(parsed.Reasoning)
	citations, dropped := cited.citations, cited.dropped

	var warnings []string
	if dropped > 0 {
		warnings = append(warnings, fmt.Sprintf("dropped %d citation(s) not present in the retrieved context", dropped))
	}
	if len(citations) == 0 {
		citations = s.fallbackCitations(results, labels)
	}

	hedging := IsHedging(answerText)
	certainty := Certainty(parsed.Confidence, hedging)
	confidence := s.confidence(results, certainty, dropped, opts.Fallbacks)

	s.logger.Info("answer synthesized", map[string]interface{}{
		"queryType":  queryType,
		"citations":  len(citations),
		"dropped":    dropped,
		"hedging":    hedging,
		"confidence": confidence,
	})

	return &models.SynthesizedAnswer{
		Question:   question,
		QueryType:  queryType,
		Answer:     answerText,
		Reasoning:  parsed.Reasoning,
		SubQueries: subQueries,
		Citations:  nonNilCitations(citations),
		Confidence: confidence,
		Warnings:   warnings,
	}, nil
}

// Degraded builds an answer from raw excerpts when generation failed.
// It returns a NoUsableContext error when nothing was retrieved.
func (s *Synthesizer) Degraded(
	question string,
	queryType models.QueryType,
	subQueries []models.SubQuery,
	results []models.RetrievalResult,
	opts Options,
	cause error,
) (*models.SynthesizedAnswer, error) {
	_, labels := s.buildContext(results)
	citations := s.fallbackCitations(results, labels)
	if len(citations) == 0 {
		return nil, errors.NewNoUsableContextError(cause)
	}

	var parts []string
	parts = append(parts, "Answer synthesis failed; the most relevant retrieved excerpts are shown instead:")
	for _, c := range citations {
		parts = append(parts, fmt.Sprintf("- %s: %s", describeSource(c), c.Excerpt))
	}

	warnings := []string{"synthesis failed: " + causeText(cause)}
	confidence := s.confidence(results, 0, 0, opts.Fallbacks)

	s.logger.Warn("returning degraded answer", map[string]interface{}{
		"queryType": queryType,
		"citations": len(citations),
		"error":     causeText(cause),
	})

	return &models.SynthesizedAnswer{
		Question:   question,
		QueryType:  queryType,
		Answer:     strings.Join(parts, "\n"),
		SubQueries: subQueries,
		Citations:  citations,
		Confidence: confidence,
		Degraded:   true,
		Warnings:   warnings,
	}, nil
}

// ParseReply splits an ANSWER/REASONING/CONFIDENCE reply. Replies without an
// ANSWER section are taken whole as the answer.
func ParseReply(reply string) modelReply {
	text := strings.TrimSpace(genai.StripCodeFence(reply))

	var out modelReply
	if m := answerSection.FindStringSubmatch(text); m != nil {
		out.Answer = strings.TrimSpace(m[1])
	}
	if m := reasoningSection.FindStringSubmatch(text); m != nil {
		out.Reasoning = strings.TrimSpace(m[1])
	}
	if m := confidenceSection.FindStringSubmatch(text); m != nil {
		out.Confidence = strings.ToLower(m[1])
	}

	if out.Answer == "" {
		out.Answer = text
		if out.Reasoning == "" {
			out.Reasoning = "Generated from available context"
		}
	}
	return out
}

func nonNilCitations(c []models.Citation) []models.Citation {
	if c == nil {
		return []models.Citation{}
	}
	return c
}

func causeText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
