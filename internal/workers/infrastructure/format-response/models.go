// internal/workers/infrastructure/format-response/models.go
package formatresponse

import "strings"

type Format string

const (
	FormatJSON     Format = "json"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts json, text, markdown and md. Empty input is json.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, true
	case "text", "txt":
		return FormatText, true
	case "markdown", "md":
		return FormatMarkdown, true
	default:
		return "", false
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatText:
		return "text/plain; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "application/json"
	}
}

// Response is the public JSON shape of an answer.
type Response struct {
	RequestID  string           `json:"requestId"`
	Question   string           `json:"question"`
	QueryType  string           `json:"queryType,omitempty"`
	Answer     string           `json:"answer"`
	Reasoning  string           `json:"reasoning,omitempty"`
	Confidence float64          `json:"confidence"`
	Degraded   bool             `json:"degraded"`
	State      string           `json:"state"`
	SubQueries []string         `json:"subQueries"`
	Sources    []Source         `json:"sources"`
	Warnings   []string         `json:"warnings,omitempty"`
	Metadata   ResponseMetadata `json:"metadata"`
}

type Source struct {
	Label     string  `json:"label"`
	Company   string  `json:"company"`
	Year      int     `json:"year"`
	Section   string  `json:"section,omitempty"`
	Excerpt   string  `json:"excerpt"`
	Relevance float64 `json:"relevance"`
}

type ResponseMetadata struct {
	Timestamp string `json:"timestamp"` // ISO 8601
	Version   string `json:"version"`
}

type Output struct {
	ContentType string
	Body        []byte
}
