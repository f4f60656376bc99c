// internal/workers/query-understanding/decompose-query/decomposer.go
package decomposequery

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"finqa-agent/internal/common/errors"
	"finqa-agent/internal/common/genai"
	"finqa-agent/internal/common/logger"
	"finqa-agent/internal/common/validation"
	"finqa-agent/internal/models"
	"finqa-agent/internal/ports"
	extractentities "finqa-agent/internal/workers/query-understanding/extract-entities"
)

const Stage = "decompose-query"

var (
	allCompaniesPhrases = []string{"all companies", "all three", "each company", "across companies", "which company", "these companies"}

	linePrefix = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s*`)
)

// Decomposer splits a classified question into ordered sub-queries.
type Decomposer struct {
	config    *Config
	llm       ports.LLM
	extractor *extractentities.Extractor
	logger    logger.Logger
}

func NewDecomposer(config *Config, llm ports.LLM, extractor *extractentities.Extractor, log logger.Logger) *Decomposer {
	return &Decomposer{
		config:    config,
		llm:       llm,
		extractor: extractor,
		logger:    log.With(map[string]interface{}{"stage": Stage}),
	}
}

// Decompose never reorders or drops a company or year named in the question.
func (d *Decomposer) Decompose(
	ctx context.Context,
	question string,
	entities models.ExtractedEntities,
	queryType models.QueryType,
	complexity models.ComplexityScore,
) (*Result, error) {
	var (
		result *Result
		err    error
	)

	switch queryType {
	case models.QueryTypeSimpleDirect:
		result = &Result{SubQueries: Identity(question, entities), Method: MethodIdentity}
	case models.QueryTypeComparativeYoY:
		result, err = d.ruleOrFallback(ctx, question, entities, complexity, d.yearOverYear(entities))
	case models.QueryTypeCrossCompany:
		result, err = d.ruleOrFallback(ctx, question, entities, complexity, d.crossCompany(question, entities))
	case models.QueryTypeSegmentAnalysis:
		result = &Result{SubQueries: d.segment(question, entities), Method: MethodRule}
	case models.QueryTypeComplexMultiAspect:
		result, err = d.withModel(ctx, question, entities)
	default:
		return nil, errors.NewDecompositionError(fmt.Errorf("unsupported query type %q", queryType))
	}
	if err != nil {
		return nil, err
	}

	d.logger.Info("question decomposed", map[string]interface{}{
		"queryType":  queryType,
		"method":     result.Method,
		"subQueries": len(result.SubQueries),
	})
	return result, nil
}

// Identity keeps the question whole, annotated with any single entity.
func Identity(question string, entities models.ExtractedEntities) []models.SubQuery {
	sq := models.SubQuery{Index: 0, Text: question}
	if len(entities.Companies) == 1 {
		sq.Company = entities.Companies[0]
	}
	if len(entities.Years) == 1 {
		sq.Year = entities.Years[0]
	}
	if len(entities.Metrics) == 1 {
		sq.Metric = entities.Metrics[0]
	}
	return []models.SubQuery{sq}
}

func (d *Decomposer) ruleOrFallback(
	ctx context.Context,
	question string,
	entities models.ExtractedEntities,
	complexity models.ComplexityScore,
	subQueries []models.SubQuery,
) (*Result, error) {
	if len(subQueries) > 0 {
		return &Result{SubQueries: subQueries, Method: MethodRule}, nil
	}
	if float64(complexity) >= d.config.ModelThreshold {
		return d.withModel(ctx, question, entities)
	}
	return &Result{SubQueries: Identity(question, entities), Method: MethodIdentity}, nil
}

// yearOverYear emits company-major, year-minor sub-queries with years in
// chronological order. It returns nil with fewer than two years.
func (d *Decomposer) yearOverYear(entities models.ExtractedEntities) []models.SubQuery {
	if len(entities.Years) < 2 {
		return nil
	}
	years := append([]int(nil), entities.Years...)
	sort.Ints(years)

	metric := firstOr(entities.Metrics, d.config.DefaultYoYMetric)
	companies := entities.Companies
	if len(companies) == 0 {
		companies = []string{""}
	}

	var out []models.SubQuery
	for _, company := range companies {
		for _, year := range years {
			out = append(out, models.SubQuery{
				Index:   len(out),
				Text:    joinNonEmpty(company, metric, strconv.Itoa(year)),
				Company: company,
				Year:    year,
				Metric:  metric,
			})
		}
	}
	return out
}

// crossCompany emits one sub-query per company in mention order, followed by
// vocabulary companies implied by an all-companies phrase.
func (d *Decomposer) crossCompany(question string, entities models.ExtractedEntities) []models.SubQuery {
	companies := append([]string(nil), entities.Companies...)
	if len(companies) == 0 || containsAny(strings.ToLower(question), allCompaniesPhrases) {
		for _, ticker := range d.extractor.Vocabulary().Tickers() {
			if !contains(companies, ticker) {
				companies = append(companies, ticker)
			}
		}
	}
	if len(companies) < 2 {
		return nil
	}

	metric := firstOr(entities.Metrics, d.config.DefaultCrossMetric)
	years := entities.Years
	if len(years) == 0 {
		years = []int{0}
	}

	var out []models.SubQuery
	for _, company := range companies {
		for _, year := range years {
			textYear := year
			if textYear == 0 {
				textYear = d.config.DefaultYear
			}
			out = append(out, models.SubQuery{
				Index:   len(out),
				Text:    joinNonEmpty(company, metric, strconv.Itoa(textYear)),
				Company: company,
				Year:    year,
				Metric:  metric,
			})
		}
	}
	return out
}

// segment emits a segment-level then a total sub-query per company and year.
func (d *Decomposer) segment(question string, entities models.ExtractedEntities) []models.SubQuery {
	vocab := d.extractor.Vocabulary()
	companies := entities.Companies
	if len(companies) == 0 {
		companies = vocab.Tickers()
	}
	years := entities.Years
	if len(years) == 0 {
		years = []int{0}
	}

	var out []models.SubQuery
	add := func(text, company string, year int) {
		out = append(out, models.SubQuery{Index: len(out), Text: text, Company: company, Year: year, Metric: "revenue"})
	}

	for _, company := range companies {
		for _, year := range years {
			textYear := year
			if textYear == 0 {
				textYear = d.config.DefaultYear
			}
			if seg := vocab.FindSegment(company, question); seg != "" {
				add(fmt.Sprintf("%s %s segment revenue %d", company, seg, textYear), company, year)
			} else {
				add(fmt.Sprintf("%s segment revenue breakdown %d", company, textYear), company, year)
			}
			add(fmt.Sprintf("%s total revenue %d", company, textYear), company, year)
		}
	}
	return out
}

func (d *Decomposer) withModel(ctx context.Context, question string, entities models.ExtractedEntities) (*Result, error) {
	reply, err := d.llm.Complete(ctx, buildPrompt(question, entities))
	if err != nil {
		return nil, errors.NewDecompositionError(err)
	}

	lines, err := ParseSubQueries(reply)
	if err != nil {
		d.logger.Warn("unparseable decomposition reply", map[string]interface{}{"error": err})
		return nil, errors.NewDecompositionError(err)
	}
	if max := d.config.MaxSubQueries; max > 0 && len(lines) > max {
		lines = lines[:max]
	}

	named := d.extractor.Extract(question)
	out := make([]models.SubQuery, 0, len(lines))
	covered := models.ExtractedEntities{}
	for i, line := range lines {
		found := d.extractor.Extract(line)

		sq := models.SubQuery{Index: i, Text: line}
		sq.Company = firstOr(found.Companies, single(named.Companies))
		if len(found.Years) > 0 {
			sq.Year = found.Years[0]
		} else if len(named.Years) == 1 {
			sq.Year = named.Years[0]
		}
		sq.Metric = firstOr(found.Metrics, "")
		out = append(out, sq)

		covered = covered.Merge(found)
		if sq.Company != "" && !covered.HasCompany(sq.Company) {
			covered.Companies = append(covered.Companies, sq.Company)
		}
		if sq.Year != 0 && !covered.HasYear(sq.Year) {
			covered.Years = append(covered.Years, sq.Year)
		}
	}

	for _, c := range named.Companies {
		if !covered.HasCompany(c) {
			return nil, errors.NewDecompositionError(fmt.Errorf("sub-queries dropped company %s", c))
		}
	}
	for _, y := range named.Years {
		if !covered.HasYear(y) {
			return nil, errors.NewDecompositionError(fmt.Errorf("sub-queries dropped year %d", y))
		}
	}

	return &Result{SubQueries: out, Method: MethodModel}, nil
}

// ParseSubQueries accepts numbered or bulleted lines, or
// {"sub_queries": [...]}.
func ParseSubQueries(reply string) ([]string, error) {
	var raw []string
	if obj, ok := genai.JSONObject(reply); ok {
		result, err := validation.DecompositionOutput.ValidateJSON([]byte(obj))
		if err != nil {
			return nil, fmt.Errorf("malformed decomposition json: %w", err)
		}
		if !result.Valid {
			return nil, fmt.Errorf("decomposition json: %s", strings.Join(result.GetErrorMessages(), "; "))
		}
		var out modelOutput
		if err := json.Unmarshal([]byte(obj), &out); err != nil {
			return nil, fmt.Errorf("decode decomposition json: %w", err)
		}
		raw = out.SubQueries
	} else {
		raw = strings.Split(genai.StripCodeFence(reply), "\n")
	}

	var lines []string
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(strings.ToLower(line), "sub-queries") {
			continue
		}
		line = linePrefix.ReplaceAllString(line, "")
		line = strings.NewReplacer("[", "", "]", "").Replace(line)
		line = strings.Trim(strings.TrimSpace(line), `"'`)
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("no sub-queries in reply")
	}
	return lines, nil
}

func buildPrompt(question string, entities models.ExtractedEntities) string {
	var parts []string
	parts = append(parts, "Break down this financial question into 2-4 simpler sub-queries that can be answered independently.")
	parts = append(parts, "Each sub-query should ask for one metric for one company and year.")
	parts = append(parts, "")
	parts = append(parts, fmt.Sprintf("Original question: %q", question))
	parts = append(parts, fmt.Sprintf("Companies mentioned: %v", entities.Companies))
	parts = append(parts, fmt.Sprintf("Years mentioned: %v", entities.Years))
	parts = append(parts, fmt.Sprintf("Metrics mentioned: %v", entities.Metrics))
	parts = append(parts, "")
	parts = append(parts, "Keep every company and year mentioned above in at least one sub-query.")
	parts = append(parts, "Format each sub-query on its own line as: [COMPANY] [METRIC] [YEAR]")
	parts = append(parts, "")
	parts = append(parts, "Sub-queries:")
	return strings.Join(parts, "\n")
}

func firstOr(values []string, fallback string) string {
	if len(values) > 0 {
		return values[0]
	}
	return fallback
}

func single(values []string) string {
	if len(values) == 1 {
		return values[0]
	}
	return ""
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
