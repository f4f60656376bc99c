package validation

// ClassificationOutput is the JSON form a model may use to name a query type.
var ClassificationOutput = MustCompile("classification-output", `{
	"type": "object",
	"required": ["query_type"],
	"properties": {
		"query_type": {"type": "string", "minLength": 1}
	}
}`)

// DecompositionOutput is the JSON form a model may use to list sub-queries.
var DecompositionOutput = MustCompile("decomposition-output", `{
	"type": "object",
	"required": ["sub_queries"],
	"properties": {
		"sub_queries": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "string", "minLength": 1}
		}
	}
}`)

var AnswerRequest = MustCompile("answer-request", `{
	"type": "object",
	"required": ["question"],
	"properties": {
		"question": {"type": "string", "minLength": 1, "maxLength": 2000},
		"format": {"type": "string", "enum": ["json", "text", "markdown"]},
		"pretty": {"type": "boolean"},
		"hints": {
			"type": "object",
			"properties": {
				"companies": {"type": "array", "items": {"type": "string"}},
				"years": {"type": "array", "items": {"type": "integer", "minimum": 1990, "maximum": 2100}},
				"metrics": {"type": "array", "items": {"type": "string"}}
			}
		}
	}
}`)

var AnswerResponse = MustCompile("answer-response", `{
	"type": "object",
	"required": ["requestId", "question", "answer", "confidence", "state", "sources"],
	"properties": {
		"requestId": {"type": "string"},
		"question": {"type": "string"},
		"queryType": {
			"type": "string",
			"enum": ["SIMPLE_DIRECT", "COMPARATIVE_YOY", "CROSS_COMPANY", "COMPLEX_MULTI_ASPECT", "SEGMENT_ANALYSIS"]
		},
		"answer": {"type": "string"},
		"reasoning": {"type": "string"},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"degraded": {"type": "boolean"},
		"state": {"type": "string", "enum": ["SYNTHESIZED", "FAILED"]},
		"subQueries": {"type": "array", "items": {"type": "string"}},
		"sources": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["label", "company", "year", "excerpt"],
				"properties": {
					"label": {"type": "string"},
					"company": {"type": "string"},
					"year": {"type": "integer"},
					"section": {"type": "string"},
					"excerpt": {"type": "string"},
					"relevance": {"type": "number"}
				}
			}
		}
	}
}`)
