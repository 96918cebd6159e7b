package cognitive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/abhisek/querywise/internal/llm"
)

// Delegation is the result of asking the text-generation collaborator for a
// decision. Exactly one of Decision and FallbackReason is set.
type Delegation struct {
	Decision       *Decision
	FallbackReason string
}

// Delegated reports whether the collaborator produced a usable decision.
func (d Delegation) Delegated() bool {
	return d.Decision != nil
}

// decisionOutput is the raw collaborator reply.
type decisionOutput struct {
	ExplanationNeeded *bool   `json:"explanation_needed"`
	ExplanationType   *string `json:"explanation_type"`
	Reasoning         *string `json:"reasoning"`
}

const decisionSystemPrompt = `You are an expert educational assessment system for SQL learning. Decide whether a user needs an explanation for a SQL statement, given their expertise and the statement's complexity.

Expertise levels:
- 1: complete beginner
- 2: novice (basic SELECT statements)
- 3: intermediate (JOINs, GROUP BY, subqueries)
- 4: advanced (window functions, CTEs)
- 5: expert (complex analytics)

Explanation types: basic, intermediate, advanced, simplified, conceptual, detailed, or none.

Users typically need explanations for concepts one or two levels above their expertise. Experts rarely need one unless the concept is very advanced.

Reply with a single JSON object and nothing else:
{"explanation_needed": true|false, "explanation_type": "<type>", "reasoning": "<one sentence>"}`

var decisionUserTemplate = template.Must(template.New("decision").Parse(`User SQL expertise level: {{.Expertise}}/5
Task complexity score: {{.IntrinsicLoad}}/5
SQL concept category: {{.Concept}}

SQL statement to assess:
{{.Statement}}

Should this user receive an explanation for this statement, and of what type?`))

func buildDecisionMessage(s Subject) (string, error) {
	var buf bytes.Buffer
	if err := decisionUserTemplate.Execute(&buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var errMalformed = errors.New("malformed decision")

// decodeDecision parses a collaborator reply. Code fences and text around
// the JSON object are tolerated; anything else that deviates from
// DecisionSchema is rejected.
func decodeDecision(text string) (Decision, error) {
	raw := jsonObject(text)
	if raw == "" {
		return Decision{}, fmt.Errorf("%w: no JSON object in reply", errMalformed)
	}
	if err := llm.ValidateJSON(DecisionSchema, json.RawMessage(raw)); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", errMalformed, err)
	}

	var out decisionOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if out.ExplanationNeeded == nil || out.ExplanationType == nil || out.Reasoning == nil {
		return Decision{}, fmt.Errorf("%w: missing field", errMalformed)
	}

	typ := ExplanationType(strings.ToLower(strings.TrimSpace(*out.ExplanationType)))
	if !typ.Valid() {
		return Decision{}, fmt.Errorf("%w: unknown explanation type %q", errMalformed, typ)
	}

	d := Decision{
		Needed:    *out.ExplanationNeeded,
		Type:      typ,
		Reasoning: strings.TrimSpace(*out.Reasoning),
	}
	if !d.Needed {
		d.Type = None
	} else if d.Type == None {
		return Decision{}, fmt.Errorf("%w: explanation needed but type is none", errMalformed)
	}
	return d, nil
}

// jsonObject returns the outermost {...} span of text, or "".
func jsonObject(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
