package report

import "github.com/abhisek/classeval/internal/llm"

var stringList = map[string]any{
	"type":  "array",
	"items": map[string]any{"type": "string"},
}

// Schema is the contract for exported JSON reports.
var Schema = &llm.Schema{
	Name:        "class-report",
	Description: "A class evaluation report with per-student evaluations",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":             map[string]any{"type": "string", "minLength": 1},
			"created_at":     map[string]any{"type": "string"},
			"format_version": map[string]any{"type": "string", "pattern": `^v\d+\.\d+\.\d+$`},
			"provider":       map[string]any{"type": "string"},
			"model":          map[string]any{"type": "string"},
			"match_rate":     map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
			"data": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"active_students":       map[string]any{"type": "integer", "minimum": 0},
					"activity_rows":         map[string]any{"type": "integer", "minimum": 0},
					"skipped_activity_rows": map[string]any{"type": "integer", "minimum": 0},
					"roster_rows":           map[string]any{"type": "integer", "minimum": 0},
					"skipped_roster_rows":   map[string]any{"type": "integer", "minimum": 0},
					"duplicate_roster_ids":  map[string]any{"type": "integer", "minimum": 0},
					"matched_records":       map[string]any{"type": "integer", "minimum": 0},
					"unmatched_records":     map[string]any{"type": "integer", "minimum": 0},
					"unmatched_ids":         stringList,
				},
				"required": []any{"active_students", "matched_records", "unmatched_records"},
			},
			"inactive": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":   map[string]any{"type": "string"},
						"name": map[string]any{"type": "string"},
					},
					"required": []any{"id", "name"},
				},
			},
			"overall": map[string]any{"type": "string"},
			"evaluations": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":   map[string]any{"type": "string", "minLength": 1},
						"text":   map[string]any{"type": "string", "minLength": 1},
						"index":  map[string]any{"type": "integer", "minimum": 0},
						"source": map[string]any{"type": "string", "enum": []any{"marker", "fallback"}},
					},
					"required":             []any{"name", "text", "index", "source"},
					"additionalProperties": false,
				},
			},
			"validation": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"expected":   map[string]any{"type": "integer", "minimum": 0},
					"found":      map[string]any{"type": "integer", "minimum": 0},
					"missing":    stringList,
					"extra":      stringList,
					"match_rate": map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
				},
				"required": []any{"expected", "found", "missing", "extra", "match_rate"},
			},
			"generation": map[string]any{"type": "object"},
		},
		"required": []any{"id", "created_at", "format_version", "match_rate", "data", "inactive",
			"overall", "evaluations", "validation"},
	},
}

// HighlightsSchema is the structured response requested by Summarize.
var HighlightsSchema = &llm.Schema{
	Name:        "class-highlights",
	Description: "A short structured digest of a class evaluation report",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary":   map[string]any{"type": "string", "minLength": 1},
			"strengths": stringList,
			"concerns":  stringList,
			"attention": stringList,
		},
		"required":             []any{"summary", "strengths", "concerns", "attention"},
		"additionalProperties": false,
	},
}
