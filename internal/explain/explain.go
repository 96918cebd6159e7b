// Package explain produces user-facing explanations of SQL statements
// through the text-generation collaborator.
package explain

import (
	"bytes"
	"context"
	"text/template"

	"go.uber.org/zap"

	"github.com/abhisek/querywise/internal/cognitive"
	"github.com/abhisek/querywise/internal/llm"
)

// Levels reported for explanations that were not generated.
const (
	LevelNone  = "none"
	LevelError = "error"
)

const (
	notNeededText = "No explanation needed - you can handle this query complexity."
	failedText    = "Sorry, I couldn't generate an explanation at this time."
)

// Content is a generated explanation.
type Content struct {
	Text          string   `json:"text"`
	Concepts      []string `json:"concepts"`
	Objectives    []string `json:"objectives"`
	Level         string   `json:"level"`
	EstimatedLoad int      `json:"estimated_load"`
}

// Generated reports whether c carries a real explanation.
func (c Content) Generated() bool {
	return c.Level != LevelNone && c.Level != LevelError
}

// Request is everything the collaborator needs to tailor an explanation.
type Request struct {
	Question     string
	Statement    string
	Assessment   cognitive.Assessment
	Expertise    int
	ConceptLevel int
	Capacity     int
}

// Builder generates explanations.
type Builder struct {
	provider  llm.Provider
	logger    *zap.Logger
	maxTokens int
}

// NewBuilder creates a Builder. A nil logger means no logging.
func NewBuilder(provider llm.Provider, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{provider: provider, logger: logger, maxTokens: 800}
}

// Build returns the explanation for req. It never fails: when no explanation
// is needed or the collaborator cannot be reached, fixed content is returned.
func (b *Builder) Build(ctx context.Context, req Request) Content {
	a := req.Assessment
	if !a.ExplanationNeeded {
		return Content{Text: notNeededText, Concepts: []string{}, Objectives: []string{}, Level: LevelNone, EstimatedLoad: 1}
	}
	if b.provider == nil {
		return failed()
	}

	system, user, err := buildMessages(req)
	if err != nil {
		b.logger.Error("build explanation prompt", zap.Error(err))
		return failed()
	}

	llmReq := llm.UserRequest(system, user)
	llmReq.MaxTokens = b.maxTokens
	llmReq.Temperature = 0.3

	resp, err := b.provider.Generate(llm.WithPurpose(ctx, llm.PurposeExplanation), llmReq)
	if err != nil {
		b.logger.Warn("explanation generation failed", zap.Error(err))
		return failed()
	}

	sections := Parse(resp.Text())
	return Content{
		Text:          FormatText(sections.Explanation),
		Concepts:      sections.Concepts,
		Objectives:    sections.Objectives,
		Level:         string(a.ExplanationType),
		EstimatedLoad: a.IntrinsicLoad,
	}
}

func failed() Content {
	return Content{Text: failedText, Concepts: []string{}, Objectives: []string{}, Level: LevelError, EstimatedLoad: 1}
}

var systemTemplate = template.Must(template.New("system").Parse(`You are an intelligent SQL tutor providing clear, easy-to-read explanations.

User context:
- Task SQL concept: {{.Assessment.Concept}}
- User concept level: {{.ConceptLevel}}/5
- User expertise: {{.Expertise}}/5
- Cognitive load: {{.Assessment.IntrinsicLoad}}/5
- Cognitive capacity: {{.Capacity}}/5
- Explanation type: {{.Assessment.ExplanationType}}

Provide a {{.Assessment.ExplanationType}} explanation that uses clear, simple language, breaks the SQL down step by step and says why each part is needed. Use short paragraphs separated by blank lines, and lists where helpful.

Format your response as:
EXPLANATION:
[the explanation]

SQL_CONCEPTS:
[SQL concepts covered, separated by commas]

LEARNING_OBJECTIVES:
[what the user should learn, separated by commas]`))

var userTemplate = template.Must(template.New("user").Parse(`Original question: {{.Question}}

SQL statement to explain:
{{.Statement}}
{{if eq .Assessment.ExplanationType "error_handling"}}
The statement failed with this error:
{{.Assessment.Reasoning}}

Explain what went wrong and how to fix it.
{{else}}
Please provide a {{.Assessment.ExplanationType}} explanation for the {{.Assessment.Concept}} concept.
{{end}}`))

func buildMessages(req Request) (system, user string, err error) {
	var sb, ub bytes.Buffer
	if err := systemTemplate.Execute(&sb, req); err != nil {
		return "", "", err
	}
	if err := userTemplate.Execute(&ub, req); err != nil {
		return "", "", err
	}
	return sb.String(), ub.String(), nil
}
