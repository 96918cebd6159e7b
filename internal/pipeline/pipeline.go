// Package pipeline runs one natural-language question through generation,
// extraction, scoring, execution, assessment and explanation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/querywise/internal/cognitive"
	"github.com/abhisek/querywise/internal/complexity"
	"github.com/abhisek/querywise/internal/concept"
	"github.com/abhisek/querywise/internal/executor"
	"github.com/abhisek/querywise/internal/explain"
	"github.com/abhisek/querywise/internal/profile"
	"github.com/abhisek/querywise/internal/sqlgen"
	"github.com/abhisek/querywise/internal/store"
)

var (
	// ErrParseFailure means no statement could be extracted from the completion.
	ErrParseFailure = errors.New("could not understand the request")

	// ErrGeneration means the generation call itself failed.
	ErrGeneration = errors.New("statement generation failed")

	// ErrEmptyQuestion is returned for a blank question.
	ErrEmptyQuestion = errors.New("question is required")
)

// Presentation row limits.
const (
	OverloadedRowLimit = 5
	DefaultRowLimit    = 15
)

// Generator produces a statement for a question.
type Generator interface {
	Generate(ctx context.Context, question string) (*sqlgen.Result, error)
}

// Assessor decides on explanations.
type Assessor interface {
	Assess(ctx context.Context, p *profile.Profile, load int, c concept.Concept, statement string) cognitive.Assessment
}

// Explainer builds explanations.
type Explainer interface {
	Build(ctx context.Context, req explain.Request) explain.Content
}

// EventLog receives one record per run.
type EventLog interface {
	AppendInteraction(ctx context.Context, data store.InteractionEventData) error
}

// Deps holds the collaborators of a Pipeline. Explainer and Events are
// optional.
type Deps struct {
	Generator Generator
	Executor  executor.Executor
	Assessor  Assessor
	Profiles  *profile.Store
	Explainer Explainer
	Events    EventLog
	Logger    *zap.Logger
}

// Request is one user question.
type Request struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
}

// QueryResult is the execution outcome shown to the user.
type QueryResult struct {
	Success    bool          `json:"success"`
	Statement  string        `json:"statement"`
	Rationale  string        `json:"rationale"`
	Columns    []string      `json:"columns,omitempty"`
	Rows       [][]any       `json:"rows,omitempty"`
	TotalRows  int           `json:"total_rows"`
	// Truncated is set when the executor stopped reading before the last
	// row; TotalRows is then a lower bound.
	Truncated  bool          `json:"truncated,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	Complexity int           `json:"complexity"`
}

// Outcome is everything one run produced.
type Outcome struct {
	ID          string               `json:"id"`
	Result      QueryResult          `json:"result"`
	Assessment  cognitive.Assessment `json:"assessment"`
	Explanation *explain.Content     `json:"explanation,omitempty"`
	Profile     *profile.Profile     `json:"profile"`
}

// Pipeline processes questions. It is safe for concurrent use.
type Pipeline struct {
	deps Deps
}

// New validates deps and creates a Pipeline.
func New(deps Deps) (*Pipeline, error) {
	switch {
	case deps.Generator == nil:
		return nil, errors.New("pipeline: generator is required")
	case deps.Executor == nil:
		return nil, errors.New("pipeline: executor is required")
	case deps.Assessor == nil:
		return nil, errors.New("pipeline: assessor is required")
	case deps.Profiles == nil:
		return nil, errors.New("pipeline: profile store is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Pipeline{deps: deps}, nil
}

// Run processes one question. It returns ErrParseFailure or ErrGeneration
// (wrapped) for terminal failures; an execution failure is reported inside
// the Outcome.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Outcome, error) {
	if req.UserID == "" {
		return nil, profile.ErrEmptyUserID
	}
	if req.Question == "" {
		return nil, ErrEmptyQuestion
	}

	start := time.Now()
	rec := store.InteractionEventData{
		ID:       uuid.NewString(),
		UserID:   req.UserID,
		Question: req.Question,
	}
	log := p.deps.Logger.With(zap.String("interaction_id", rec.ID), zap.String("user_id", req.UserID))

	gen, err := p.deps.Generator.Generate(ctx, req.Question)
	if err != nil {
		rec.ErrorMessage = err.Error()
		p.append(ctx, log, rec, start)
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	if err := gen.Err(); err != nil {
		rec.ErrorMessage = gen.Rationale
		p.append(ctx, log, rec, start)
		return nil, fmt.Errorf("%w: %w", ErrParseFailure, err)
	}

	statement := gen.Statement
	load := complexity.Score(statement)
	c := concept.Classify(statement)
	rec.Statement = statement

	prof, err := p.deps.Profiles.Get(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	result := QueryResult{
		Statement:  statement,
		Rationale:  gen.Rationale,
		Complexity: load,
	}

	var a cognitive.Assessment
	res, execErr := p.deps.Executor.Execute(ctx, statement)
	if execErr != nil {
		log.Info("statement rejected", zap.String("statement", statement), zap.Error(execErr))
		result.Error = execErr.Error()
		a = cognitive.AssessFailure(result.Error)
	} else {
		result.Success = true
		result.Columns = res.Columns
		result.TotalRows = len(res.Rows)
		result.Truncated = res.Truncated
		a = p.deps.Assessor.Assess(ctx, prof, load, c, statement)
		result.Rows = limitRows(res.Rows, RowLimit(a.IntrinsicLoad, prof.Capacity))
	}

	updated, err := p.deps.Profiles.Record(ctx, req.UserID, profile.Interaction{
		Query:            req.Question,
		Concept:          a.Concept,
		IntrinsicLoad:    a.IntrinsicLoad,
		ExplanationGiven: a.ExplanationNeeded,
		ExplanationType:  string(a.ExplanationType),
	})
	if err != nil {
		return nil, fmt.Errorf("record interaction: %w", err)
	}

	out := &Outcome{
		ID:         rec.ID,
		Assessment: a,
		Profile:    updated,
	}

	if a.ExplanationNeeded && p.deps.Explainer != nil {
		content := p.deps.Explainer.Build(ctx, explain.Request{
			Question:     req.Question,
			Statement:    statement,
			Assessment:   a,
			Expertise:    prof.ExpertiseLevel,
			ConceptLevel: prof.ConceptLevel(a.Concept),
			Capacity:     prof.Capacity,
		})
		out.Explanation = &content
		rec.ExplanationGenerated = content.Generated()
	}

	result.Duration = time.Since(start)
	out.Result = result

	rec.Success = result.Success
	rec.ErrorMessage = result.Error
	rec.Concept = string(a.Concept)
	rec.IntrinsicLoad = a.IntrinsicLoad
	rec.ExplanationNeeded = a.ExplanationNeeded
	rec.ExplanationType = string(a.ExplanationType)
	rec.Provenance = string(a.Provenance)
	p.append(ctx, log, rec, start)

	return out, nil
}

// append records the run. Failures are logged, never returned.
func (p *Pipeline) append(ctx context.Context, log *zap.Logger, rec store.InteractionEventData, start time.Time) {
	if p.deps.Events == nil {
		return
	}
	rec.DurationMs = time.Since(start).Milliseconds()
	if err := p.deps.Events.AppendInteraction(ctx, rec); err != nil {
		log.Warn("failed to record interaction", zap.Error(err))
	}
}

// RowLimit is how many rows to present: fewer when the statement's load
// exceeds the user's capacity.
func RowLimit(load, capacity int) int {
	if load > capacity {
		return OverloadedRowLimit
	}
	return DefaultRowLimit
}

func limitRows(rows [][]any, n int) [][]any {
	if len(rows) <= n {
		return rows
	}
	return rows[:n]
}
