// internal/workers/query-understanding/classify-query/classifier.go
package classifyquery

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"finqa-agent/internal/common/errors"
	"finqa-agent/internal/common/genai"
	"finqa-agent/internal/common/logger"
	"finqa-agent/internal/common/validation"
	"finqa-agent/internal/models"
	"finqa-agent/internal/ports"
)

const Stage = "classify-query"

var (
	superlatives = []string{"highest", "lowest", "best", "worst", "most", "least", "largest", "smallest"}

	// Whole words only: "almost" is not "most".
	superlativePattern = regexp.MustCompile(`\b(` + strings.Join(superlatives, "|") + `)\b`)

	allCompaniesPhrases = []string{"all companies", "all three", "each company", "across companies", "which company"}

	segmentKeywords = []string{"segment", "percentage of", "% of", "portion", "came from", "breakdown", "share of"}

	operationKeywords = []string{"compare", "growth", "change", "ratio", "percentage", "breakdown", "rank", "versus"}
)

type phraseRule struct {
	queryType models.QueryType
	pattern   *regexp.Regexp
}

// Evaluated in order after the decisive entity rules.
var phraseRules = []phraseRule{
	{models.QueryTypeComparativeYoY, regexp.MustCompile(`(grow|growth|increase|decrease|change)\b.*\bfrom \d{4} to \d{4}`)},
	{models.QueryTypeComparativeYoY, regexp.MustCompile(`compare .+ \d{4} (and|to|vs) \d{4}`)},
	{models.QueryTypeComparativeYoY, regexp.MustCompile(`\b(year over year|year-over-year|yoy|annually)\b`)},
	{models.QueryTypeCrossCompany, regexp.MustCompile(`which company .+ (highest|lowest|best|worst)`)},
	{models.QueryTypeCrossCompany, regexp.MustCompile(`compare .+ (across|between) .+ (companies|google|microsoft|nvidia)`)},
	{models.QueryTypeCrossCompany, regexp.MustCompile(`\b(vs\.?|versus|compared to)\b`)},
	{models.QueryTypeSimpleDirect, regexp.MustCompile(`what (was|is|were) .+ (revenue|income|profit|margin|sales|earnings)`)},
	{models.QueryTypeSimpleDirect, regexp.MustCompile(`(revenue|income|sales|profit) .+ (in|for) \d{4}`)},
	{models.QueryTypeSimpleDirect, regexp.MustCompile(`total .+ \d{4}`)},
}

var leadingNumber = regexp.MustCompile(`^\s*\d+[.)]\s*`)

// Classifier assigns exactly one QueryType to a question.
type Classifier struct {
	config *Config
	llm    ports.LLM
	logger logger.Logger
}

func NewClassifier(config *Config, llm ports.LLM, log logger.Logger) *Classifier {
	return &Classifier{
		config: config,
		llm:    llm,
		logger: log.With(map[string]interface{}{"stage": Stage}),
	}
}

// Classify tries the decisive entity rules, then the model when the question
// is complex, then phrase patterns, then the model. A model reply that does
// not name a known type yields a ClassificationError.
func (c *Classifier) Classify(ctx context.Context, question string, entities models.ExtractedEntities) (*Result, error) {
	lower := strings.ToLower(question)
	complexity := Complexity(lower, entities)

	if qt, ok := decisiveRule(lower, entities); ok {
		return c.done(&Result{QueryType: qt, Complexity: complexity, Method: MethodRule}), nil
	}

	if float64(complexity) < c.config.ComplexityThreshold {
		for _, r := range phraseRules {
			if r.pattern.MatchString(lower) {
				return c.done(&Result{QueryType: r.queryType, Complexity: complexity, Method: MethodPattern}), nil
			}
		}
	}

	qt, err := c.classifyWithModel(ctx, question, entities)
	if err != nil {
		return nil, err
	}
	return c.done(&Result{QueryType: qt, Complexity: complexity, Method: MethodModel}), nil
}

func (c *Classifier) done(r *Result) *Result {
	c.logger.Info("question classified", map[string]interface{}{
		"queryType":  r.QueryType,
		"complexity": r.Complexity,
		"method":     r.Method,
	})
	return r
}

func decisiveRule(lower string, entities models.ExtractedEntities) (models.QueryType, bool) {
	switch {
	case len(entities.Years) >= 2 && len(entities.Companies) <= 1:
		return models.QueryTypeComparativeYoY, true
	case len(entities.Companies) >= 2 && (superlativePattern.MatchString(lower) || containsAny(lower, allCompaniesPhrases)):
		return models.QueryTypeCrossCompany, true
	case containsAny(lower, segmentKeywords):
		return models.QueryTypeSegmentAnalysis, true
	}
	return "", false
}

// Complexity grows with every entity category holding more than one value
// and with every operation keyword.
func Complexity(lower string, entities models.ExtractedEntities) models.ComplexityScore {
	raw := 1
	if n := len(entities.Companies); n > 1 {
		raw += n
	}
	if n := len(entities.Years); n > 1 {
		raw += n
	}
	if n := len(entities.Metrics); n > 1 {
		raw += n
	}
	for _, kw := range operationKeywords {
		if strings.Contains(lower, kw) {
			raw++
		}
	}
	return models.ComplexityScore(float64(raw-1) / 9).Clamp()
}

func (c *Classifier) classifyWithModel(ctx context.Context, question string, entities models.ExtractedEntities) (models.QueryType, error) {
	reply, err := c.llm.Complete(ctx, buildPrompt(question, entities))
	if err != nil {
		return "", errors.NewClassificationError(err)
	}

	qt, err := ParseLabel(reply)
	if err != nil {
		c.logger.Warn("unparseable classification reply", map[string]interface{}{
			"reply": truncate(reply, 200),
		})
		return "", errors.NewClassificationError(err)
	}
	return qt, nil
}

// ParseLabel accepts a bare label or {"query_type": "<LABEL>"}.
func ParseLabel(reply string) (models.QueryType, error) {
	if obj, ok := genai.JSONObject(reply); ok {
		result, err := validation.ClassificationOutput.ValidateJSON([]byte(obj))
		if err != nil {
			return "", fmt.Errorf("malformed classification json: %w", err)
		}
		if !result.Valid {
			return "", fmt.Errorf("classification json: %s", strings.Join(result.GetErrorMessages(), "; "))
		}
		var out modelOutput
		if err := json.Unmarshal([]byte(obj), &out); err != nil {
			return "", fmt.Errorf("decode classification json: %w", err)
		}
		return parseBare(out.QueryType)
	}

	for _, line := range strings.Split(genai.StripCodeFence(reply), "\n") {
		if strings.TrimSpace(line) != "" {
			return parseBare(line)
		}
	}
	return "", fmt.Errorf("empty classification reply")
}

func parseBare(label string) (models.QueryType, error) {
	label = strings.TrimSpace(leadingNumber.ReplaceAllString(label, ""))
	if i := strings.LastIndex(label, ":"); i >= 0 && i < len(label)-1 {
		label = label[i+1:]
	}
	if qt, ok := models.ParseQueryType(label); ok {
		return qt, nil
	}
	return "", fmt.Errorf("unknown query type label %q", strings.TrimSpace(label))
}

func buildPrompt(question string, entities models.ExtractedEntities) string {
	var parts []string
	parts = append(parts, "Classify this financial question into exactly one category:")
	parts = append(parts, "")
	parts = append(parts, "1. SIMPLE_DIRECT: a single metric for one company and year")
	parts = append(parts, "2. COMPARATIVE_YOY: a metric compared across years")
	parts = append(parts, "3. CROSS_COMPANY: a metric compared across companies")
	parts = append(parts, "4. COMPLEX_MULTI_ASPECT: several metrics, calculations or comparisons")
	parts = append(parts, "5. SEGMENT_ANALYSIS: business segment breakdowns")
	parts = append(parts, "")
	parts = append(parts, fmt.Sprintf("Question: %q", question))
	parts = append(parts, fmt.Sprintf("Companies mentioned: %v", entities.Companies))
	parts = append(parts, fmt.Sprintf("Years mentioned: %v", entities.Years))
	parts = append(parts, fmt.Sprintf("Metrics mentioned: %v", entities.Metrics))
	parts = append(parts, "")
	parts = append(parts, `Respond with just the category name, or JSON {"query_type": "<CATEGORY>"}.`)
	return strings.Join(parts, "\n")
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
