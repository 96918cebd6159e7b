package cognitive

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"

	"github.com/abhisek/querywise/internal/concept"
	"github.com/abhisek/querywise/internal/llm"
	"github.com/abhisek/querywise/internal/profile"
)

func testProfile(expertise int) *profile.Profile {
	p := profile.New("u", time.Now())
	p.ExpertiseLevel = expertise
	return p
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name      string
		expertise int
		load      int
		needed    bool
		typ       ExplanationType
	}{
		{"expert light task", 5, 2, false, None},
		{"novice heavy task", 1, 5, true, Basic},
		{"novice at own level", 2, 2, false, None},
		{"novice one above", 2, 3, true, Basic},
		{"intermediate never exceeds twice", 3, 5, false, None},
		{"expert heavy task", 4, 5, false, None},
		{"beginner trivial", 1, 1, false, None},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.expertise, tt.load, DefaultLoadFactor)
			if d.Needed != tt.needed || d.Type != tt.typ {
				t.Errorf("Decide(%d, %d) = (%v, %s), want (%v, %s)",
					tt.expertise, tt.load, d.Needed, d.Type, tt.needed, tt.typ)
			}
			if d.Reasoning == "" {
				t.Error("empty reasoning")
			}
		})
	}
}

func TestDecide_LoadFactor(t *testing.T) {
	// With k=1 an intermediate user needs help above their level.
	d := Decide(3, 4, 1)
	if !d.Needed || d.Type != Intermediate {
		t.Errorf("k=1: got (%v, %s), want (true, intermediate)", d.Needed, d.Type)
	}
	d = Decide(4, 5, 1)
	if !d.Needed || d.Type != Advanced {
		t.Errorf("k=1 expert: got (%v, %s), want (true, advanced)", d.Needed, d.Type)
	}
	// Expert override holds whatever k is.
	if d := Decide(4, 2, 0.1); d.Needed {
		t.Error("expert on light task should never need an explanation")
	}
	// Non-positive k falls back to the default.
	if Decide(2, 5, 0) != Decide(2, 5, DefaultLoadFactor) {
		t.Error("k=0 should behave like the default factor")
	}
}

func TestDecide_TypeOnlyWhenNeeded(t *testing.T) {
	for e := 1; e <= 5; e++ {
		for l := 1; l <= 5; l++ {
			d := Decide(e, l, DefaultLoadFactor)
			if d.Needed == (d.Type == None) {
				t.Errorf("Decide(%d, %d): needed=%v type=%s", e, l, d.Needed, d.Type)
			}
		}
	}
}

func TestAssessFailure(t *testing.T) {
	a := AssessFailure("no such column: revenue")
	want := Assessment{
		IntrinsicLoad:     5,
		Concept:           concept.Error,
		ExplanationNeeded: true,
		ExplanationType:   ErrorHandling,
		Reasoning:         "no such column: revenue",
		Provenance:        ProvenanceRule,
	}
	if a != want {
		t.Errorf("got %+v, want %+v", a, want)
	}
}

func TestAssess_RuleOnly(t *testing.T) {
	e := NewEngine()
	a := e.Assess(context.Background(), testProfile(1), 5, concept.WindowFunctions, "SELECT 1")
	if !a.ExplanationNeeded || a.ExplanationType != Basic {
		t.Errorf("got (%v, %s), want (true, basic)", a.ExplanationNeeded, a.ExplanationType)
	}
	if a.Provenance != ProvenanceRule {
		t.Errorf("provenance = %s, want rule", a.Provenance)
	}
	if a.Concept != concept.WindowFunctions || a.IntrinsicLoad != 5 {
		t.Errorf("concept/load = %s/%d", a.Concept, a.IntrinsicLoad)
	}
}

func TestAssess_ClampsLoad(t *testing.T) {
	a := NewEngine().Assess(context.Background(), testProfile(2), 9, concept.Joins, "")
	if a.IntrinsicLoad != 5 {
		t.Errorf("load = %d, want 5", a.IntrinsicLoad)
	}
}

func TestAssess_Delegated(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"explanation_needed":true,"explanation_type":"conceptual","reasoning":"Window functions are new to this user"}`),
	})
	e := NewEngine(WithProvider(mock))

	a := e.Assess(context.Background(), testProfile(5), 2, concept.WindowFunctions, "SELECT RANK() OVER (ORDER BY x) FROM t")
	if a.Provenance != ProvenanceDelegated {
		t.Fatalf("provenance = %s, want delegated", a.Provenance)
	}
	if !a.ExplanationNeeded || a.ExplanationType != Conceptual {
		t.Errorf("got (%v, %s), want (true, conceptual)", a.ExplanationNeeded, a.ExplanationType)
	}

	call := mock.LastCall()
	if call.Schema != DecisionSchema {
		t.Error("expected the decision schema on the request")
	}
	msg := call.Messages[0].Content
	for _, want := range []string{"5/5", "2/5", "window_functions", "RANK() OVER"} {
		if !strings.Contains(msg, want) {
			t.Errorf("prompt missing %q:\n%s", want, msg)
		}
	}
}

func TestAssess_DelegatedNotNeededNormalizesType(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockText("```json\n{\"explanation_needed\": false, \"explanation_type\": \"basic\", \"reasoning\": \"familiar\"}\n```"))
	a := NewEngine(WithProvider(mock)).Assess(context.Background(), testProfile(1), 5, concept.Joins, "SELECT 1")
	if a.Provenance != ProvenanceDelegated {
		t.Fatalf("provenance = %s, want delegated", a.Provenance)
	}
	if a.ExplanationNeeded || a.ExplanationType != None {
		t.Errorf("got (%v, %s), want (false, none)", a.ExplanationNeeded, a.ExplanationType)
	}
}

func TestAssess_FallbackSafety(t *testing.T) {
	tests := []struct {
		name string
		resp llm.MockResponse
	}{
		{"unparsable", llm.MockText("I think they need help.")},
		{"missing field", llm.MockText(`{"explanation_needed": true, "reasoning": "x"}`)},
		{"extra field", llm.MockText(`{"explanation_needed": true, "explanation_type": "basic", "reasoning": "x", "score": 3}`)},
		{"bad enum", llm.MockText(`{"explanation_needed": true, "explanation_type": "verbose", "reasoning": "x"}`)},
		{"needed without type", llm.MockText(`{"explanation_needed": true, "explanation_type": "none", "reasoning": "x"}`)},
		{"wrong type", llm.MockText(`{"explanation_needed": "yes", "explanation_type": "basic", "reasoning": "x"}`)},
		{"transport", llm.MockResponse{Err: &llm.ErrProviderUnavailable{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			mock := llm.NewMockProvider(tt.resp)
			e := NewEngine(WithProvider(mock), WithLogger(zap.New(core)))

			a := e.Assess(context.Background(), testProfile(1), 5, concept.Joins, "SELECT 1")
			if a.Provenance != ProvenanceRule {
				t.Errorf("provenance = %s, want rule", a.Provenance)
			}
			if !a.ExplanationNeeded || a.ExplanationType != Basic {
				t.Errorf("got (%v, %s), want rule decision (true, basic)", a.ExplanationNeeded, a.ExplanationType)
			}
			if n := logs.FilterMessage("delegated assessment failed, using rule").Len(); n != 1 {
				t.Errorf("got %d fallback warnings, want 1", n)
			}
		})
	}
}

func TestAssess_DelegationTimeout(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"explanation_needed":true,"explanation_type":"basic","reasoning":"late"}`),
		Delay:   5 * time.Second,
	})
	e := NewEngine(WithProvider(mock), WithDelegationTimeout(50*time.Millisecond))

	start := time.Now()
	a := e.Assess(context.Background(), testProfile(5), 2, concept.BasicSelect, "SELECT 1")
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("assessment blocked for %s", elapsed)
	}
	if a.Provenance != ProvenanceRule || a.ExplanationNeeded {
		t.Errorf("got %+v, want rule fallback with no explanation", a)
	}
}

func TestDelegate_Reasons(t *testing.T) {
	d := NewEngine().Delegate(context.Background(), Subject{})
	if d.Delegated() || d.FallbackReason == "" {
		t.Errorf("no provider: got %+v", d)
	}

	mock := llm.NewMockProvider(llm.MockResponse{Delay: time.Second})
	d = NewEngine(WithProvider(mock), WithDelegationTimeout(10*time.Millisecond)).Delegate(context.Background(), Subject{})
	if d.FallbackReason != "delegation timed out" {
		t.Errorf("timeout reason = %q", d.FallbackReason)
	}
}

func TestDelegate_RateLimitedReportsTimeout(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockText(`{"explanation_needed":false,"explanation_type":"none","reasoning":"fine"}`),
		llm.MockText(`{"explanation_needed":false,"explanation_type":"none","reasoning":"fine"}`),
	)
	limited := llm.WithRateLimit(mock, llm.RateLimitConfig{RequestsPerSecond: 0.1, Burst: 1})
	e := NewEngine(WithProvider(limited), WithDelegationTimeout(100*time.Millisecond))

	e.Delegate(context.Background(), Subject{})
	d := e.Delegate(context.Background(), Subject{})
	if d.FallbackReason != "delegation timed out" {
		t.Errorf("reason = %q, want delegation timed out", d.FallbackReason)
	}
	if mock.CallCount() != 1 {
		t.Errorf("expected 1 call to reach the provider, got %d", mock.CallCount())
	}
}

func TestDecodeDecision_SurroundingText(t *testing.T) {
	d, err := decodeDecision("Here you go:\n{\"explanation_needed\": true, \"explanation_type\": \"advanced\", \"reasoning\": \" CTEs \"}\nThanks")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d != (Decision{Needed: true, Type: Advanced, Reasoning: "CTEs"}) {
		t.Errorf("got %+v", d)
	}
}
