package orchestrator

import (
	"time"

	"finqa-agent/internal/models"
)

// run is the state of one request as it moves through the pipeline.
type run struct {
	requestID string
	question  string
	started   time.Time

	state       models.State
	previous    models.State
	last        time.Time
	transitions []models.Transition

	entities   models.ExtractedEntities
	queryType  models.QueryType
	complexity models.ComplexityScore
	subQueries []models.SubQuery

	fallbacks int
	warnings  []string
}

func newRun(requestID, question string) *run {
	now := time.Now().UTC()
	return &run{
		requestID: requestID,
		question:  question,
		started:   now,
		state:     models.StateReceived,
		last:      now,
	}
}

// advance records a transition and returns the time spent in the state
// being left.
func (r *run) advance(to models.State, note string) time.Duration {
	now := time.Now().UTC()
	elapsed := now.Sub(r.last)
	r.transitions = append(r.transitions, models.Transition{
		From:       r.state,
		To:         to,
		DurationMs: elapsed.Milliseconds(),
		Note:       note,
	})
	r.previous = r.state
	r.state = to
	r.last = now
	return elapsed
}
