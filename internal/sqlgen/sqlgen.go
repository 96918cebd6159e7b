// Package sqlgen asks the text-generation collaborator for a SQL statement
// answering a natural-language question.
package sqlgen

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"text/template"

	"go.uber.org/zap"

	"github.com/abhisek/querywise/internal/extract"
	"github.com/abhisek/querywise/internal/llm"
)

// Catalog describes the database statements will run against.
type Catalog interface {
	Dialect() string
	Schema(ctx context.Context) (string, error)
}

// Result is one generation: the raw completion and what was extracted from it.
type Result struct {
	extract.Extraction
	Raw string
}

// Generator builds generation requests and parses the replies.
type Generator struct {
	provider  llm.Provider
	catalog   Catalog
	logger    *zap.Logger
	maxTokens int

	mu     sync.Mutex
	schema string
}

// NewGenerator creates a Generator. A nil logger means no logging.
func NewGenerator(provider llm.Provider, catalog Catalog, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{provider: provider, catalog: catalog, logger: logger, maxTokens: 2000}
}

// Generate requests a statement for question. Only transport failures are
// returned as errors; an unusable reply yields a Result whose Err is set.
func (g *Generator) Generate(ctx context.Context, question string) (*Result, error) {
	system, err := g.systemPrompt(ctx)
	if err != nil {
		return nil, fmt.Errorf("build generation prompt: %w", err)
	}

	req := llm.UserRequest(system, "Generate SQL for: "+question)
	req.MaxTokens = g.maxTokens
	req.Temperature = 0.1

	resp, err := g.provider.Generate(llm.WithPurpose(ctx, llm.PurposeSQLGeneration), req)
	if err != nil {
		return nil, err
	}

	raw := resp.Text()
	res := &Result{Extraction: extract.Parse(raw), Raw: raw}
	if res.Err() != nil {
		g.logger.Warn("no statement in completion", zap.Int("length", len(raw)))
	}
	return res, nil
}

// schemaText returns the cached schema, loading it on first use. A failed
// load is not cached so the next call retries.
func (g *Generator) schemaText(ctx context.Context) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.schema != "" {
		return g.schema
	}
	if g.catalog == nil {
		return ""
	}
	s, err := g.catalog.Schema(ctx)
	if err != nil {
		g.logger.Warn("failed to load database schema", zap.Error(err))
		return ""
	}
	g.schema = s
	return s
}

// Invalidate drops the cached schema.
func (g *Generator) Invalidate() {
	g.mu.Lock()
	g.schema = ""
	g.mu.Unlock()
}

var systemTemplate = template.Must(template.New("sqlgen").Parse(`You are an expert SQL analyst. Think through the request step by step: what is being asked, which tables and columns hold the answer, and how to structure the query.

{{if .Schema}}{{.Schema}}{{else}}The database schema is not available; use the most likely table and column names.{{end}}

Rules:
- Generate exactly one SQL statement.
- Keep the query focused on the core question.
- Use CTEs only when necessary.

Format your final response as:
REASONING:
[Summary of your reasoning]

SQL:
[Your SQL statement, valid {{.Dialect}} syntax]`))

func (g *Generator) systemPrompt(ctx context.Context) (string, error) {
	data := struct {
		Schema  string
		Dialect string
	}{
		Schema:  g.schemaText(ctx),
		Dialect: "SQL",
	}
	if g.catalog != nil {
		data.Dialect = g.catalog.Dialect()
	}
	var buf bytes.Buffer
	if err := systemTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
