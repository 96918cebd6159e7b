package store

import "time"

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	After   int64     // sequence > After
	Before  int64     // sequence < Before
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
	UserID  string    // interaction events only
	Purpose string    // LLM events only
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEvent is a stored LLM request event.
type LLMRequestEvent struct {
	ID        int64
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// PurposeUsage aggregates LLM usage for one purpose.
type PurposeUsage struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// ModelUsage aggregates LLM usage for one model.
type ModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// InteractionEventData is the durable record of one pipeline run.
type InteractionEventData struct {
	ID                   string `json:"id"`
	UserID               string `json:"user_id"`
	Question             string `json:"question"`
	Statement            string `json:"statement,omitempty"`
	Success              bool   `json:"success"`
	ErrorMessage         string `json:"error_message,omitempty"`
	Concept              string `json:"concept,omitempty"`
	IntrinsicLoad        int    `json:"intrinsic_load"`
	ExplanationNeeded    bool   `json:"explanation_needed"`
	ExplanationType      string `json:"explanation_type,omitempty"`
	Provenance           string `json:"provenance,omitempty"`
	ExplanationGenerated bool   `json:"explanation_generated"`
	DurationMs           int64  `json:"duration_ms"`
}

// InteractionEvent is a stored interaction event.
type InteractionEvent struct {
	Sequence  int64     `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	InteractionEventData
}
