// internal/workers/query-understanding/extract-entities/models.go
package extractentities

type phrasePattern struct {
	canonical string
	phrase    string
}

// match is one vocabulary hit inside the lower-cased question.
type match struct {
	canonical string
	start     int
	end       int
}
