// internal/workers/ai-conversation/synthesize-answer/models.go
package synthesizeanswer

import "finqa-agent/internal/models"

// Options carries per-request adjustments from earlier stages.
type Options struct {
	// Fallbacks counts upstream fallbacks; each one discounts confidence.
	Fallbacks int
}

// labeledPassage is a passage as it was shown to the model.
type labeledPassage struct {
	Label    string
	Passage  models.Passage
	SubQuery models.SubQuery
}

type modelReply struct {
	Answer     string
	Reasoning  string
	Confidence string
}

// certainty per self-reported confidence label. Missing labels count as medium.
var certaintyByLabel = map[string]float64{
	"high":   1.0,
	"medium": 0.6,
	"low":    0.2,
}

const absentCertainty = 0.6
