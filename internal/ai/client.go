// Package ai provides the LLM integration layer for the game server: a
// provider-agnostic structured-completion client with synchronous calls
// and slow "background" jobs polled by id.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/codewords-live/server/internal/platform/metrics"
)

// Message represents a chat message for the LLM.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Request is the input for one structured completion.
type Request struct {
	Messages        []Message       `json:"messages"`
	Schema          json.RawMessage `json:"schema,omitempty"` // JSON shape of the expected output
	Model           string          `json:"model,omitempty"`
	ReasoningEffort string          `json:"reasoning_effort,omitempty"`
	MaxTokens       int             `json:"max_tokens,omitempty"`
}

// Result is the parsed output of a completion.
type Result struct {
	Content      json.RawMessage `json:"content"`
	Model        string          `json:"model"`
	PromptTokens int             `json:"prompt_tokens"`
	OutputTokens int             `json:"output_tokens"`
	Latency      time.Duration   `json:"latency"`
}

// JobStatus is the lifecycle of a background completion job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Service is the agnostic interface for the structured-completion
// backend. The orchestration layer uses this without knowing which
// provider is behind it.
type Service interface {
	// Complete sends a request and waits for the structured result.
	Complete(ctx context.Context, req Request) (*Result, error)

	// StartJob submits a request in background mode and returns an
	// opaque job id immediately.
	StartJob(ctx context.Context, req Request) (string, error)

	// PollJob queries a background job. The result is non-nil only
	// when the status is JobCompleted.
	PollJob(ctx context.Context, jobID string) (JobStatus, *Result, error)

	// Name returns the provider name (for logging).
	Name() string

	// IsAvailable checks if the provider is configured.
	IsAvailable() bool
}

// HTTPService is an OpenAI-style HTTP adapter implementing Service.
type HTTPService struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	budgetGate *BudgetGate

	statsMu    sync.Mutex
	usageStats UsageStats
}

// HTTPServiceOptions tunes the adapter.
type HTTPServiceOptions struct {
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// NewHTTPService creates the adapter, reading the API key from the
// LLM_API_KEY environment variable.
func NewHTTPService(gate *BudgetGate, opts HTTPServiceOptions) *HTTPService {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	if opts.DefaultModel == "" {
		opts.DefaultModel = "gpt-4o-mini"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 120 * time.Second
	}

	return &HTTPService{
		apiKey:     os.Getenv("LLM_API_KEY"),
		baseURL:    opts.BaseURL,
		model:      opts.DefaultModel,
		httpClient: &http.Client{Timeout: opts.Timeout},
		budgetGate: gate,
	}
}

// Name returns the provider name.
func (p *HTTPService) Name() string {
	return "openai-compatible"
}

// IsAvailable checks if the API key is configured.
func (p *HTTPService) IsAvailable() bool {
	return p.apiKey != ""
}

// Wire structures for the completions endpoint.
type wireRequest struct {
	Model           string         `json:"model"`
	Messages        []Message      `json:"messages"`
	MaxTokens       int            `json:"max_tokens,omitempty"`
	ReasoningEffort string         `json:"reasoning_effort,omitempty"`
	ResponseFormat  *wireRespFmt   `json:"response_format,omitempty"`
	Background      bool           `json:"background,omitempty"`
}

type wireRespFmt struct {
	Type       string          `json:"type"`
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

type wireResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status,omitempty"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends a synchronous completion request.
func (p *HTTPService) Complete(ctx context.Context, req Request) (*Result, error) {
	body, err := p.roundTrip(ctx, req, false)
	if err != nil {
		return nil, err
	}
	return p.parseResult(body, req.Model)
}

// StartJob submits a background completion and returns the job id.
func (p *HTTPService) StartJob(ctx context.Context, req Request) (string, error) {
	body, err := p.roundTrip(ctx, req, true)
	if err != nil {
		return "", err
	}
	var resp wireResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse job response: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("background job did not return an id")
	}
	return resp.ID, nil
}

// PollJob queries the status of a background completion.
func (p *HTTPService) PollJob(ctx context.Context, jobID string) (JobStatus, *Result, error) {
	if !p.IsAvailable() {
		return JobFailed, nil, fmt.Errorf("LLM API key not configured")
	}

	httpReq, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/jobs/"+jobID, nil)
	if err != nil {
		return JobFailed, nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return JobFailed, nil, fmt.Errorf("poll request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return JobFailed, nil, fmt.Errorf("failed to read poll response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return JobFailed, nil, fmt.Errorf("poll error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var wire wireResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return JobFailed, nil, fmt.Errorf("failed to parse poll response: %w", err)
	}

	switch wire.Status {
	case "queued":
		return JobQueued, nil, nil
	case "in_progress", "":
		return JobInProgress, nil, nil
	case "failed":
		msg := "background job failed"
		if wire.Error != nil {
			msg = wire.Error.Message
		}
		return JobFailed, nil, fmt.Errorf("%s", msg)
	case "completed":
		result, err := p.parseResult(respBody, wire.Model)
		if err != nil {
			return JobFailed, nil, err
		}
		return JobCompleted, result, nil
	default:
		return JobFailed, nil, fmt.Errorf("unknown job status %q", wire.Status)
	}
}

func (p *HTTPService) roundTrip(ctx context.Context, req Request, background bool) ([]byte, error) {
	if !p.IsAvailable() {
		return nil, fmt.Errorf("LLM API key not configured")
	}

	estimatedCost := p.estimateCost(req)
	if p.budgetGate != nil && !p.budgetGate.CanSpend(estimatedCost) {
		return nil, fmt.Errorf("budget limit exceeded: %s", p.budgetGate.GetStatus())
	}

	model := p.model
	if req.Model != "" {
		model = req.Model
	}

	wireReq := wireRequest{
		Model:           model,
		Messages:        req.Messages,
		MaxTokens:       req.MaxTokens,
		ReasoningEffort: req.ReasoningEffort,
		Background:      background,
	}
	if len(req.Schema) > 0 {
		wireReq.ResponseFormat = &wireRespFmt{Type: "json_schema", JSONSchema: req.Schema}
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		metrics.Get().RecordLLMCall(0, 0, time.Since(start), err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("completion error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func (p *HTTPService) parseResult(body []byte, model string) (*Result, error) {
	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(wire.Choices) == 0 {
		return nil, fmt.Errorf("no response content returned")
	}

	totalTokens := wire.Usage.TotalTokens
	if totalTokens == 0 {
		totalTokens = wire.Usage.PromptTokens + wire.Usage.CompletionTokens
	}

	actualCost := p.calculateCost(totalTokens, wire.Model)
	if p.budgetGate != nil {
		p.budgetGate.RecordSpend(actualCost)
	}
	p.statsMu.Lock()
	p.usageStats.TotalRequests++
	p.usageStats.TotalTokens += totalTokens
	p.usageStats.TotalCostUSD += actualCost
	p.statsMu.Unlock()
	metrics.Get().RecordLLMCall(totalTokens, actualCost, 0, nil)

	return &Result{
		Content:      json.RawMessage(wire.Choices[0].Message.Content),
		Model:        wire.Model,
		PromptTokens: wire.Usage.PromptTokens,
		OutputTokens: wire.Usage.CompletionTokens,
	}, nil
}

// estimateCost estimates cost before making a request.
func (p *HTTPService) estimateCost(req Request) float64 {
	estimatedTokens := 2000 + req.MaxTokens
	return p.calculateCost(estimatedTokens, p.model)
}

// calculateCost computes actual cost based on tokens. Averaged blended
// per-1K-token rates per model family.
func (p *HTTPService) calculateCost(tokens int, model string) float64 {
	switch model {
	case "gpt-4o-mini":
		return float64(tokens) * 0.0000005
	case "gpt-4o":
		return float64(tokens) * 0.000009
	default:
		return float64(tokens) * 0.00001
	}
}

// GetUsageStats returns a copy of the current usage statistics.
func (p *HTTPService) GetUsageStats() UsageStats {
	p.statsMu.Lock()
	stats := p.usageStats
	p.statsMu.Unlock()
	if p.budgetGate != nil {
		stats.BudgetRemaining = p.budgetGate.Remaining()
	}
	return stats
}

// Ensure HTTPService implements Service
var _ Service = (*HTTPService)(nil)
