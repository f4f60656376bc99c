// internal/workers/infrastructure/format-response/formatter_test.go
package formatresponse

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"finqa-agent/internal/common/errors"
	"finqa-agent/internal/common/logger"
	"finqa-agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestFormatter(t *testing.T) *Formatter {
	return NewFormatter(LoadConfig(), logger.NewTestLogger(t))
}

func createTestAnswer() *models.SynthesizedAnswer {
	return &models.SynthesizedAnswer{
		RequestID: "req-123",
		Question:  "What was Microsoft's revenue in 2023?",
		QueryType: models.QueryTypeSimpleDirect,
		Answer:    "Microsoft reported revenue of $211.9 billion [S1].",
		Reasoning: "Stated in the MD&A.",
		SubQueries: []models.SubQuery{
			{Index: 0, Text: "What was Microsoft's revenue in 2023?", Company: "MSFT", Year: 2023},
		},
		Citations: []models.Citation{
			{Label: "S1", PassageID: "MSFT_2023_mdna_0", Company: "MSFT", Year: 2023, Section: "mdna",
				Excerpt: "Revenue was $211.9 billion", Relevance: 0.92},
		},
		Confidence: 0.968,
		State:      models.StateSynthesized,
		CreatedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestFormatter_JSON(t *testing.T) {
	f := createTestFormatter(t)

	out, err := f.Format(createTestAnswer(), FormatJSON, false)

	require.NoError(t, err)
	assert.Equal(t, "application/json", out.ContentType)

	var resp Response
	require.NoError(t, json.Unmarshal(out.Body, &resp))
	assert.Equal(t, "req-123", resp.RequestID)
	assert.Equal(t, "SIMPLE_DIRECT", resp.QueryType)
	assert.Equal(t, "SYNTHESIZED", resp.State)
	assert.Equal(t, []string{"What was Microsoft's revenue in 2023?"}, resp.SubQueries)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "S1", resp.Sources[0].Label)
	assert.Equal(t, "2024-03-01T12:00:00Z", resp.Metadata.Timestamp)
	assert.Equal(t, "1.0.0", resp.Metadata.Version)
	assert.NotContains(t, string(out.Body), "\n  ")
}

func TestFormatter_PrettyJSON(t *testing.T) {
	out, err := createTestFormatter(t).Format(createTestAnswer(), FormatJSON, true)
	require.NoError(t, err)
	assert.Contains(t, string(out.Body), "\n  \"requestId\": \"req-123\"")
}

func TestFormatter_DefaultFormatIsJSON(t *testing.T) {
	out, err := createTestFormatter(t).Format(createTestAnswer(), "", false)
	require.NoError(t, err)
	assert.Equal(t, "application/json", out.ContentType)
}

func TestFormatter_JSONRejectsInvalidResponse(t *testing.T) {
	answer := createTestAnswer()
	answer.Confidence = 1.4

	_, err := createTestFormatter(t).Format(answer, FormatJSON, false)

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeResponseValidationFailed))
	assert.Contains(t, err.Error(), "confidence")
}

func TestFormatter_FailedAnswerWithoutQueryType(t *testing.T) {
	answer := &models.SynthesizedAnswer{
		RequestID: "req-9",
		Question:  "Net income?",
		Answer:    "",
		State:     models.StateFailed,
	}

	out, err := createTestFormatter(t).Format(answer, FormatJSON, false)

	require.NoError(t, err)
	assert.NotContains(t, string(out.Body), "queryType")
	assert.Contains(t, string(out.Body), `"sources":[]`)
}

func TestFormatter_Text(t *testing.T) {
	out, err := createTestFormatter(t).Format(createTestAnswer(), FormatText, false)

	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=utf-8", out.ContentType)
	text := string(out.Body)
	assert.True(t, strings.HasPrefix(text, "Query: What was Microsoft's revenue in 2023?\nAnswer: Microsoft reported"))
	assert.Contains(t, text, "Sources:\n  1. MSFT 2023: Revenue was $211.9 billion")
	assert.True(t, strings.HasSuffix(text, "Confidence: 0.97"))
}

func TestFormatter_Markdown(t *testing.T) {
	answer := createTestAnswer()
	answer.Degraded = true

	out, err := createTestFormatter(t).Format(answer, FormatMarkdown, false)

	require.NoError(t, err)
	md := string(out.Body)
	assert.Contains(t, md, "## Answer\nMicrosoft reported")
	assert.Contains(t, md, "## Sub-queries Analyzed\n- What was Microsoft's revenue in 2023?")
	assert.Contains(t, md, "1. **MSFT 2023**: Revenue was $211.9 billion")
	assert.True(t, strings.HasSuffix(md, "**Confidence**: 0.97 (degraded)"))
}

func TestFormatter_UnsupportedFormat(t *testing.T) {
	_, err := createTestFormatter(t).Format(createTestAnswer(), Format("yaml"), false)
	assert.True(t, errors.HasCode(err, errors.ErrCodeResponseValidationFailed))
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"", FormatJSON, true},
		{"JSON", FormatJSON, true},
		{"md", FormatMarkdown, true},
		{" text ", FormatText, true},
		{"yaml", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseFormat(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
