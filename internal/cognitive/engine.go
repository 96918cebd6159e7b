package cognitive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/querywise/internal/complexity"
	"github.com/abhisek/querywise/internal/concept"
	"github.com/abhisek/querywise/internal/llm"
	"github.com/abhisek/querywise/internal/profile"
)

// DefaultDelegationTimeout bounds one delegated decision.
const DefaultDelegationTimeout = 8 * time.Second

// Engine assesses statements against user profiles. Without a provider it
// uses the deterministic rule only.
type Engine struct {
	provider   llm.Provider
	logger     *zap.Logger
	loadFactor float64
	timeout    time.Duration
	maxTokens  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithProvider enables delegated decisions through p.
func WithProvider(p llm.Provider) Option {
	return func(e *Engine) { e.provider = p }
}

// WithLogger sets the logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithLoadFactor sets k in the rule. Non-positive values keep the default.
func WithLoadFactor(k float64) Option {
	return func(e *Engine) {
		if k > 0 {
			e.loadFactor = k
		}
	}
}

// WithDelegationTimeout bounds each delegated call. Non-positive values keep
// the default.
func WithDelegationTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:     zap.NewNop(),
		loadFactor: DefaultLoadFactor,
		timeout:    DefaultDelegationTimeout,
		maxTokens:  256,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Assess decides whether the owner of p needs an explanation of statement.
// It never fails: delegation problems fall back to the rule.
func (e *Engine) Assess(ctx context.Context, p *profile.Profile, load int, c concept.Concept, statement string) Assessment {
	s := Subject{
		Expertise:     p.ExpertiseLevel,
		Capacity:      p.Capacity,
		ConceptLevel:  p.ConceptLevel(c),
		IntrinsicLoad: complexity.Clamp(load),
		Concept:       c,
		Statement:     statement,
	}

	a := Assessment{
		IntrinsicLoad: s.IntrinsicLoad,
		Concept:       c,
	}

	if e.provider != nil {
		d := e.Delegate(ctx, s)
		if d.Delegated() {
			a.ExplanationNeeded = d.Decision.Needed
			a.ExplanationType = d.Decision.Type
			a.Reasoning = d.Decision.Reasoning
			a.Provenance = ProvenanceDelegated
			return a
		}
		e.logger.Warn("delegated assessment failed, using rule",
			zap.String("reason", d.FallbackReason),
			zap.String("concept", c.String()),
			zap.Int("load", s.IntrinsicLoad),
		)
	}

	dec := Decide(s.Expertise, s.IntrinsicLoad, e.loadFactor)
	a.ExplanationNeeded = dec.Needed
	a.ExplanationType = dec.Type
	a.Reasoning = dec.Reasoning
	a.Provenance = ProvenanceRule
	return a
}

// Delegate asks the provider for a decision, bounded by the delegation
// timeout. It never returns an error; failures come back as a fallback reason.
func (e *Engine) Delegate(ctx context.Context, s Subject) Delegation {
	if e.provider == nil {
		return Delegation{FallbackReason: "no provider configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	ctx = llm.WithPurpose(ctx, llm.PurposeAssessment)

	msg, err := buildDecisionMessage(s)
	if err != nil {
		return Delegation{FallbackReason: fmt.Sprintf("build prompt: %v", err)}
	}

	req := llm.UserRequest(decisionSystemPrompt, msg)
	req.Schema = DecisionSchema
	req.MaxTokens = e.maxTokens
	req.Temperature = 0.1

	resp, err := e.provider.Generate(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Delegation{FallbackReason: "delegation timed out"}
		}
		return Delegation{FallbackReason: fmt.Sprintf("generate: %v", err)}
	}

	d, err := decodeDecision(resp.Text())
	if err != nil {
		return Delegation{FallbackReason: err.Error()}
	}
	return Delegation{Decision: &d}
}
