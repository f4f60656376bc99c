// internal/workers/infrastructure/validate-question/models.go
package validatequestion

import "regexp"

type Result struct {
	// Question is the trimmed text the pipeline answers.
	Question string `json:"question"`
	// Display has company aliases replaced by display names.
	Display string `json:"display"`
}

type aliasReplacement struct {
	pattern *regexp.Regexp
	display string
}
