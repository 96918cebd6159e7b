package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/querywise/internal/store"
)

type recordingSink struct {
	mu     sync.Mutex
	events []store.LLMRequestEventData
	err    error
}

func (r *recordingSink) AppendLLMRequest(_ context.Context, data store.LLMRequestEventData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, data)
	return r.err
}

func TestLogging_RecordsSuccess(t *testing.T) {
	mock := NewMockProvider(MockResponse{
		Content: json.RawMessage("SELECT 1;"),
		Usage:   Usage{InputTokens: 12, OutputTokens: 3},
	})
	sink := &recordingSink{}
	p := WithLogging(mock, sink, zap.NewNop())

	ctx := WithPurpose(context.Background(), PurposeSQLGeneration)
	if _, err := p.Generate(ctx, UserRequest("sys", "how many rows?")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sink.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(sink.events))
	}
	ev := sink.events[0]
	if ev.Purpose != PurposeSQLGeneration {
		t.Errorf("purpose = %q", ev.Purpose)
	}
	if !ev.Success || ev.ErrorMessage != "" {
		t.Errorf("expected success event, got %+v", ev)
	}
	if ev.InputTokens != 12 || ev.OutputTokens != 3 {
		t.Errorf("unexpected tokens: %d/%d", ev.InputTokens, ev.OutputTokens)
	}
	if ev.ResponseBody != "SELECT 1;" {
		t.Errorf("response body = %q", ev.ResponseBody)
	}
}

func TestLogging_RecordsFailureAndSurvivesSinkError(t *testing.T) {
	mock := NewMockProvider(MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}})
	sink := &recordingSink{err: errors.New("disk full")}
	p := WithLogging(mock, sink, nil)

	_, err := p.Generate(context.Background(), Request{})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected provider error to pass through, got %v", err)
	}
	if len(sink.events) != 1 || sink.events[0].Success {
		t.Fatalf("expected one failure event, got %+v", sink.events)
	}
	if sink.events[0].Purpose != "unknown" {
		t.Errorf("purpose = %q, want unknown", sink.events[0].Purpose)
	}
}

func TestLogging_NilRecorder(t *testing.T) {
	mock := NewMockProvider(MockText("ok"))
	p := WithLogging(mock, nil, zap.NewNop())
	if _, err := p.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ModelID() != "mock" {
		t.Fatalf("ModelID = %q", p.ModelID())
	}
}

func TestRateLimit_DisabledReturnsInner(t *testing.T) {
	mock := NewMockProvider()
	if got := WithRateLimit(mock, RateLimitConfig{}); got != Provider(mock) {
		t.Fatal("expected the inner provider when limiting is disabled")
	}
}

func TestRateLimit_WaitHonorsContext(t *testing.T) {
	mock := NewMockProvider(MockText("a"), MockText("b"))
	p := WithRateLimit(mock, RateLimitConfig{RequestsPerSecond: 0.1, Burst: 1})

	if _, err := p.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("first call should use the burst: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Generate(ctx, Request{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected a deadline error waiting for a token, got %v", err)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 call to reach the provider, got %d", mock.CallCount())
	}
}

func TestRateLimit_ExhaustedBudgetIsNotRetried(t *testing.T) {
	mock := NewMockProvider(MockText("a"), MockText("b"))
	limited := &countingProvider{inner: WithRateLimit(mock, RateLimitConfig{RequestsPerSecond: 0.1, Burst: 1})}
	p := WithRetry(limited, RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond, Multiplier: 1})

	if _, err := p.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("first call should use the burst: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	start := time.Now()
	_, err := p.Generate(ctx, Request{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected a deadline error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("refusal took %s, expected an immediate answer", elapsed)
	}
	if n := limited.calls(); n != 2 {
		t.Fatalf("expected 2 attempts through the limiter, got %d", n)
	}
}

type countingProvider struct {
	inner Provider
	mu    sync.Mutex
	n     int
}

func (c *countingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return c.inner.Generate(ctx, req)
}

func (c *countingProvider) ModelID() string { return c.inner.ModelID() }

func (c *countingProvider) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestNewProvider_Mock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = "mock"
	p, err := NewProvider(context.Background(), cfg, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ModelID() != "mock" {
		t.Fatalf("ModelID = %q", p.ModelID())
	}
}

func TestNewProvider_Unknown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = "carrier-pigeon"
	if _, err := NewProvider(context.Background(), cfg, nil, nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewProvider_MissingKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = "openai"
	if _, err := NewProvider(context.Background(), cfg, nil, nil); err == nil {
		t.Fatal("expected error for missing key")
	}
}
