// Package llmclient adapts the teacher's Anthropic wire format
// (internal/brain.ClaudeProvider) into ports.MessageClient, classifying
// transport/API failures into the executor's retryable error codes
// (spec.md §4.3, §7) instead of brain's opaque wrapped errors.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/marketeros/runtime/internal/executor"
	"github.com/marketeros/runtime/internal/ports"
)

// Error carries one of the executor's API-level codes so
// executor.asExecError can classify it without string matching.
type Error struct {
	code    executor.Code
	message string
}

func (e *Error) Error() string        { return fmt.Sprintf("llmclient: %s: %s", e.code, e.message) }
func (e *Error) Code() executor.Code { return e.code }

func newError(code executor.Code, msg string) *Error { return &Error{code: code, message: msg} }

// ClaudeOption configures a ClaudeClient.
type ClaudeOption func(*ClaudeClient)

// WithBaseURL overrides the API base URL (used by tests against httptest).
func WithBaseURL(url string) ClaudeOption {
	return func(c *ClaudeClient) { c.baseURL = url }
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) ClaudeOption {
	return func(c *ClaudeClient) { c.http = hc }
}

// ClaudeClient implements ports.MessageClient against the Anthropic
// Messages API.
type ClaudeClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClaudeClient builds a ClaudeClient authenticated with apiKey.
func NewClaudeClient(apiKey string, opts ...ClaudeOption) *ClaudeClient {
	c := &ClaudeClient{
		apiKey:  apiKey,
		baseURL: "https://api.anthropic.com",
		http:    &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type claudeRequest struct {
	Model     string      `json:"model"`
	MaxTokens int         `json:"max_tokens"`
	System    string      `json:"system,omitempty"`
	Messages  []claudeMsg `json:"messages"`
}

type claudeMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type claudeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete implements ports.MessageClient.
func (c *ClaudeClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	body, err := json.Marshal(claudeRequest{
		Model:     req.Model,
		MaxTokens: maxTokens,
		System:    req.SystemPrompt,
		Messages:  []claudeMsg{{Role: "user", Content: req.UserMessage}},
	})
	if err != nil {
		return nil, newError(executor.CodeAPIError, "marshal request: "+err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, newError(executor.CodeAPIError, "build request: "+err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newError(executor.CodeAborted, ctx.Err().Error())
		}
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, newError(executor.CodeAPITimeout, err.Error())
		}
		return nil, newError(executor.CodeAPIError, "http request: "+err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(executor.CodeAPIError, "read response: "+err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(respBody)
		var e claudeErrorResponse
		if json.Unmarshal(respBody, &e) == nil && e.Error.Message != "" {
			msg = e.Error.Message
		}
		return nil, newError(classifyStatus(resp.StatusCode), fmt.Sprintf("API error %d: %s", resp.StatusCode, msg))
	}

	var cr claudeResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return nil, newError(executor.CodeAPIError, "unmarshal response: "+err.Error())
	}

	var text []string
	for _, block := range cr.Content {
		if block.Type == "text" {
			text = append(text, block.Text)
		}
	}

	return &ports.CompletionResponse{
		Content:      strings.Join(text, ""),
		InputTokens:  cr.Usage.InputTokens,
		OutputTokens: cr.Usage.OutputTokens,
		StopReason:   mapStopReason(cr.StopReason),
	}, nil
}

func classifyStatus(status int) executor.Code {
	switch status {
	case http.StatusTooManyRequests:
		return executor.CodeAPIRateLimited
	case http.StatusServiceUnavailable, 529:
		return executor.CodeAPIOverloaded
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return executor.CodeAPITimeout
	default:
		return executor.CodeAPIError
	}
}

func mapStopReason(s string) ports.StopReason {
	switch s {
	case "max_tokens":
		return ports.StopMaxTokens
	case "stop_sequence":
		return ports.StopStopSequence
	default:
		return ports.StopEndTurn
	}
}

type timeouter interface{ Timeout() bool }

func isTimeout(err error) bool {
	var t timeouter
	if errors.As(err, &t) {
		return t.Timeout()
	}
	return false
}
