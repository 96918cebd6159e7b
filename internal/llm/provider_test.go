package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProvider(t *testing.T) {
	mock := NewMockProvider(
		MockText("SQL: SELECT 1;"),
		MockResponse{Err: &ErrRateLimit{}},
	)
	assert.Equal(t, "mock", mock.ModelID())

	ctx := context.Background()
	resp, err := mock.Generate(ctx, UserRequest("sys", "first"))
	require.NoError(t, err)
	assert.Equal(t, "SQL: SELECT 1;", resp.Text())
	assert.Equal(t, StopEnd, resp.StopReason)

	_, err = mock.Generate(ctx, UserRequest("", "second"))
	var rl *ErrRateLimit
	assert.ErrorAs(t, err, &rl)

	_, err = mock.Generate(ctx, Request{})
	var unavail *ErrProviderUnavailable
	assert.ErrorAs(t, err, &unavail, "drained queue")

	require.Equal(t, 3, mock.CallCount())
	assert.Equal(t, "sys", mock.Calls[0].System)
	assert.Equal(t, "second", mock.Calls[1].Messages[0].Content)
}

func TestPurposeContext(t *testing.T) {
	ctx := context.Background()
	if p := PurposeFrom(ctx); p != "unknown" {
		t.Fatalf("expected 'unknown', got %q", p)
	}

	ctx = WithPurpose(ctx, PurposeAssessment)
	if p := PurposeFrom(ctx); p != PurposeAssessment {
		t.Fatalf("expected %q, got %q", PurposeAssessment, p)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "anthropic without key",
			cfg:     Config{Provider: "anthropic"},
			wantErr: true,
		},
		{
			name:    "anthropic with key",
			cfg:     Config{Provider: "anthropic", Anthropic: AnthropicConfig{APIKey: "sk-test"}},
			wantErr: false,
		},
		{
			name:    "openai without key",
			cfg:     Config{Provider: "openai"},
			wantErr: true,
		},
		{
			name:    "openai with key",
			cfg:     Config{Provider: "openai", OpenAI: OpenAIConfig{APIKey: "sk-test"}},
			wantErr: false,
		},
		{
			name:    "mock needs no key",
			cfg:     Config{Provider: "mock"},
			wantErr: false,
		},
		{
			name:    "openrouter without key",
			cfg:     Config{Provider: "openrouter"},
			wantErr: true,
		},
		{
			name:    "unknown provider",
			cfg:     Config{Provider: "unknown"},
			wantErr: true,
		},
		{
			name:    "negative timeout",
			cfg:     Config{Provider: "mock", Timeout: -time.Second},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cfg.Timeout == 0 {
				tt.cfg.Timeout = time.Second
			}
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMockProvider_DelayHonorsContext(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`{}`), Delay: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := mock.Generate(ctx, Request{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got: %v", err)
	}
}

func TestResponse_Text(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"raw text", "SELECT 1;", "SELECT 1;"},
		{"json string literal", `"SELECT 1;\nFROM t"`, "SELECT 1;\nFROM t"},
		{"json object untouched", `{"a":1}`, `{"a":1}`},
		{"broken literal kept", `"unterminated`, `"unterminated`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Response{Content: json.RawMessage(tt.content)}
			if got := r.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}

	var nilResp *Response
	if nilResp.Text() != "" {
		t.Error("nil response should yield empty text")
	}
}

func TestUserRequest(t *testing.T) {
	req := UserRequest("sys", "question")
	if req.System != "sys" {
		t.Fatalf("System = %q", req.System)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != RoleUser || req.Messages[0].Content != "question" {
		t.Fatalf("unexpected messages: %+v", req.Messages)
	}
}

func TestLookupCost(t *testing.T) {
	if c := LookupCost("gpt-4o-mini"); c == nil || c.InputPerMTok != 0.15 {
		t.Fatalf("unexpected gpt-4o-mini cost: %+v", c)
	}
	if c := LookupCost("openai/gpt-4o"); c == nil || c.OutputPerMTok != 10 {
		t.Fatalf("vendor-prefixed id should resolve, got %+v", c)
	}
	if LookupCost("no-such-model") != nil {
		t.Fatal("expected nil for unknown model")
	}
}

func TestEstimateCost(t *testing.T) {
	total, unknown := EstimateCost([]ModelUsage{
		{Model: "gpt-4o", InputTokens: 1_000_000, OutputTokens: 0},
		{Model: "gpt-4o", InputTokens: 0, OutputTokens: 1_000_000},
		{Model: "mock", InputTokens: 10, OutputTokens: 10},
	})
	if total != 12.5 {
		t.Fatalf("total = %v, want 12.5", total)
	}
	if unknown != 1 {
		t.Fatalf("unknown = %d, want 1", unknown)
	}
}
