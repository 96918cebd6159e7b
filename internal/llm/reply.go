package llm

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Stop reasons reported in Response.StopReason.
const (
	StopEnd       = "end"
	StopMaxTokens = "max_tokens"
	StopFiltered  = "filtered"
)

// reply is what every SDK adapter reduces a completion to before it is
// checked and turned into a Response.
type reply struct {
	text  string
	usage Usage
	model string
	stop  string
}

// finish checks a reply against the request. Structured requests cut off at
// the token limit fail with ErrMaxTokensExceeded instead of a schema error.
func finish(provider string, req Request, r reply) (*Response, error) {
	if r.text == "" {
		return nil, &ErrInvalidResponse{Err: fmt.Errorf("no text content in %s response", provider)}
	}
	content := json.RawMessage(r.text)

	if req.Schema != nil {
		if r.stop == StopMaxTokens {
			return nil, &ErrMaxTokensExceeded{Content: content}
		}
		if err := ValidateJSON(req.Schema, content); err != nil {
			return nil, err
		}
	}

	if r.usage.TotalTokens == 0 {
		r.usage.TotalTokens = r.usage.InputTokens + r.usage.OutputTokens
	}
	return &Response{
		Content:    content,
		Usage:      r.usage,
		Model:      r.model,
		StopReason: r.stop,
	}, nil
}

// classifyStatus turns the HTTP status of a failed provider call into one of
// the package errors. A zero status means the call never got a response.
func classifyStatus(status int, header http.Header, err error) error {
	switch {
	case status == http.StatusTooManyRequests:
		return &ErrRateLimit{RetryAfter: retryAfter(header), Err: err}
	case status == 0, status == http.StatusRequestTimeout, status >= 500:
		return &ErrProviderUnavailable{Err: err}
	default:
		return &ErrRequestRejected{Status: status, Err: err}
	}
}

// retryAfter reads a Retry-After header given either in seconds or as an
// HTTP date.
func retryAfter(header http.Header) time.Duration {
	v := header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
