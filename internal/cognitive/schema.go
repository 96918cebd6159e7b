package cognitive

import "github.com/abhisek/querywise/internal/llm"

// DecisionSchema is the exact shape a delegated explanation decision must have.
var DecisionSchema = &llm.Schema{
	Name:        "explanation-decision",
	Description: "Whether a user needs an explanation of a SQL statement, and at what level",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"explanation_needed": map[string]any{
				"type":        "boolean",
				"description": "True when the user should receive an explanation",
			},
			"explanation_type": map[string]any{
				"type":        "string",
				"enum":        explanationTypeEnum(),
				"description": "Depth of the explanation; none when no explanation is needed",
			},
			"reasoning": map[string]any{
				"type":        "string",
				"description": "One sentence on why",
			},
		},
		"required":             []any{"explanation_needed", "explanation_type", "reasoning"},
		"additionalProperties": false,
	},
}

func explanationTypeEnum() []any {
	types := ExplanationTypes()
	out := make([]any, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
