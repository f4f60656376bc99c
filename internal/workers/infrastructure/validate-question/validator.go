// internal/workers/infrastructure/validate-question/validator.go
package validatequestion

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"finqa-agent/internal/common/errors"
	"finqa-agent/internal/common/logger"
)

const Stage = "validate-question"

var baseKeywords = []string{
	"revenue", "income", "profit", "sales", "margin", "earnings",
	"financial", "money", "dollar", "billion", "million", "growth",
	"year", "annual", "quarterly", "fiscal", "operating", "net",
}

type Validator struct {
	config   *Config
	keywords []string
	aliases  []aliasReplacement
	logger   logger.Logger
}

func NewValidator(config *Config, log logger.Logger) *Validator {
	v := &Validator{
		config: config,
		logger: log.With(map[string]interface{}{"stage": Stage}),
	}

	seen := make(map[string]bool)
	add := func(k string) {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && !seen[k] {
			seen[k] = true
			v.keywords = append(v.keywords, k)
		}
	}
	for _, k := range baseKeywords {
		add(k)
	}

	if vocab := config.Vocabulary; vocab != nil {
		for phrase := range vocab.MetricPhrases() {
			add(phrase)
		}
		for _, c := range vocab.Companies {
			display := vocab.DisplayName(c.Ticker)
			for _, alias := range c.Aliases {
				v.aliases = append(v.aliases, aliasReplacement{
					pattern: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(alias) + `\b`),
					display: display,
				})
			}
		}
	}
	sort.Strings(v.keywords)
	return v
}

// Validate trims question and rejects text that is too short, too long or
// not about finance.
func (v *Validator) Validate(question string) (*Result, error) {
	trimmed := strings.TrimSpace(question)
	length := utf8.RuneCountInString(trimmed)

	var reason string
	switch {
	case length < v.config.MinLength:
		reason = fmt.Sprintf("question too short: %d characters, minimum %d", length, v.config.MinLength)
	case length > v.config.MaxLength:
		reason = fmt.Sprintf("question too long: %d characters, maximum %d", length, v.config.MaxLength)
	case !v.isFinancial(trimmed):
		reason = "question does not appear to be financial"
	}
	if reason != "" {
		v.logger.Info("question rejected", map[string]interface{}{"reason": reason, "length": length})
		return nil, errors.NewQuestionValidationError(reason)
	}

	return &Result{Question: trimmed, Display: v.Normalize(trimmed)}, nil
}

func (v *Validator) isFinancial(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range v.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Normalize replaces company aliases with display names.
func (v *Validator) Normalize(text string) string {
	for _, a := range v.aliases {
		text = a.pattern.ReplaceAllString(text, a.display)
	}
	return text
}
