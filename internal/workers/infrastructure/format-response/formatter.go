// internal/workers/infrastructure/format-response/formatter.go
package formatresponse

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"finqa-agent/internal/common/errors"
	"finqa-agent/internal/common/logger"
	"finqa-agent/internal/common/validation"
	"finqa-agent/internal/models"
)

const Stage = "format-response"

type Formatter struct {
	config *Config
	logger logger.Logger
}

func NewFormatter(config *Config, log logger.Logger) *Formatter {
	return &Formatter{
		config: config,
		logger: log.With(map[string]interface{}{"stage": Stage}),
	}
}

// BuildResponse maps an answer onto the public response shape.
func (f *Formatter) BuildResponse(answer *models.SynthesizedAnswer) Response {
	sources := make([]Source, 0, len(answer.Citations))
	for _, c := range answer.Citations {
		sources = append(sources, Source{
			Label:     c.Label,
			Company:   c.Company,
			Year:      c.Year,
			Section:   c.Section,
			Excerpt:   c.Excerpt,
			Relevance: c.Relevance,
		})
	}

	created := answer.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	return Response{
		RequestID:  answer.RequestID,
		Question:   answer.Question,
		QueryType:  string(answer.QueryType),
		Answer:     answer.Answer,
		Reasoning:  answer.Reasoning,
		Confidence: answer.Confidence,
		Degraded:   answer.Degraded,
		State:      string(answer.State),
		SubQueries: answer.SubQueryTexts(),
		Sources:    sources,
		Warnings:   answer.Warnings,
		Metadata: ResponseMetadata{
			Timestamp: created.UTC().Format(time.RFC3339),
			Version:   f.config.AppVersion,
		},
	}
}

// Format renders answer. JSON output is checked against the response schema.
func (f *Formatter) Format(answer *models.SynthesizedAnswer, format Format, pretty bool) (*Output, error) {
	if format == "" {
		format = f.config.DefaultFormat
	}
	resp := f.BuildResponse(answer)

	switch format {
	case FormatJSON:
		body, err := f.renderJSON(resp, pretty)
		if err != nil {
			return nil, err
		}
		return &Output{ContentType: format.ContentType(), Body: body}, nil
	case FormatText:
		return &Output{ContentType: format.ContentType(), Body: []byte(RenderText(resp))}, nil
	case FormatMarkdown:
		return &Output{ContentType: format.ContentType(), Body: []byte(RenderMarkdown(resp))}, nil
	default:
		return nil, errors.NewResponseValidationError(fmt.Sprintf("unsupported format %q", format))
	}
}

func (f *Formatter) renderJSON(resp Response, pretty bool) ([]byte, error) {
	result, err := validation.AnswerResponse.ValidateDocument(resp)
	if err != nil {
		return nil, errors.NewResponseValidationError(err.Error())
	}
	if !result.Valid {
		msgs := result.GetErrorMessages()
		f.logger.Error("response failed schema validation", map[string]interface{}{
			"requestId": resp.RequestID,
			"errors":    msgs,
		})
		return nil, errors.NewResponseValidationError(strings.Join(msgs, "; "))
	}

	if pretty {
		return json.MarshalIndent(resp, "", "  ")
	}
	return json.Marshal(resp)
}

func RenderText(resp Response) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Query: %s", resp.Question))
	parts = append(parts, fmt.Sprintf("Answer: %s", resp.Answer))
	if resp.Reasoning != "" {
		parts = append(parts, fmt.Sprintf("Reasoning: %s", resp.Reasoning))
	}
	if len(resp.SubQueries) > 0 {
		parts = append(parts, fmt.Sprintf("Sub-queries analyzed: %s", strings.Join(resp.SubQueries, ", ")))
	}
	if len(resp.Sources) > 0 {
		parts = append(parts, "\nSources:")
		for i, s := range resp.Sources {
			parts = append(parts, fmt.Sprintf("  %d. %s %d: %s", i+1, s.Company, s.Year, s.Excerpt))
		}
	}
	parts = append(parts, fmt.Sprintf("Confidence: %s", confidenceText(resp)))

	return strings.Join(parts, "\n")
}

func RenderMarkdown(resp Response) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("## Query\n%s\n", resp.Question))
	parts = append(parts, fmt.Sprintf("## Answer\n%s\n", resp.Answer))
	if resp.Reasoning != "" {
		parts = append(parts, fmt.Sprintf("## Reasoning\n%s\n", resp.Reasoning))
	}
	if len(resp.SubQueries) > 0 {
		parts = append(parts, "## Sub-queries Analyzed")
		for _, sq := range resp.SubQueries {
			parts = append(parts, "- "+sq)
		}
		parts = append(parts, "")
	}
	if len(resp.Sources) > 0 {
		parts = append(parts, "## Sources")
		for i, s := range resp.Sources {
			parts = append(parts, fmt.Sprintf("%d. **%s %d**: %s", i+1, s.Company, s.Year, s.Excerpt))
		}
		parts = append(parts, "")
	}
	parts = append(parts, fmt.Sprintf("**Confidence**: %s", confidenceText(resp)))

	return strings.Join(parts, "\n")
}

func confidenceText(resp Response) string {
	text := fmt.Sprintf("%.2f", resp.Confidence)
	if resp.Degraded {
		text += " (degraded)"
	}
	return text
}
