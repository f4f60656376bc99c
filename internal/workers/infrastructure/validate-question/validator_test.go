// internal/workers/infrastructure/validate-question/validator_test.go
package validatequestion

import (
	"strings"
	"testing"

	"finqa-agent/internal/common/errors"
	"finqa-agent/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_Validate(t *testing.T) {
	v := NewValidator(LoadConfig(), logger.NewTestLogger(t))

	tests := []struct {
		name     string
		question string
		valid    bool
		reason   string
	}{
		{"simple", "What was Microsoft's revenue in 2023?", true, ""},
		{"metric synonym", "How much did NVIDIA spend on research and development?", true, ""},
		{"too short", "  rev ", false, "too short"},
		{"too long", "revenue " + strings.Repeat("x", 500), false, "too long"},
		{"not financial", "Who is the CEO of Google?", false, "financial"},
		{"blank", "   ", false, "too short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := v.Validate(tt.question)
			if tt.valid {
				require.NoError(t, err)
				assert.Equal(t, strings.TrimSpace(tt.question), result.Question)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeQuestionValidationFailed))
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestValidator_TrimsBeforeMeasuring(t *testing.T) {
	v := NewValidator(LoadConfig(), logger.NewTestLogger(t))

	result, err := v.Validate("\n  Net income for 2024?  \t")

	require.NoError(t, err)
	assert.Equal(t, "Net income for 2024?", result.Question)
}

func TestValidator_Normalize(t *testing.T) {
	v := NewValidator(LoadConfig(), logger.NewTestLogger(t))

	assert.Equal(t, "Compare Google and Microsoft revenue", v.Normalize("Compare alphabet and MSFT revenue"))
	assert.Equal(t, "NVIDIA earnings in 2023", v.Normalize("nvda earnings in 2023"))
	assert.Equal(t, "Googleplex revenue", v.Normalize("Googleplex revenue"), "aliases match whole words only")

	result, err := v.Validate("What was GOOGL revenue in 2022?")
	require.NoError(t, err)
	assert.Equal(t, "What was GOOGL revenue in 2022?", result.Question)
	assert.Equal(t, "What was Google revenue in 2022?", result.Display)
}

func TestValidator_WithoutVocabulary(t *testing.T) {
	v := NewValidator(&Config{MinLength: 5, MaxLength: 50}, logger.NewNoOpLogger())

	_, err := v.Validate("annual report please")
	assert.NoError(t, err)
	assert.Equal(t, "msft", v.Normalize("msft"))
}
