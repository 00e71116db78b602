package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// openAIModelPricing maps model families to their approximate per-token
// cost in USD, averaged across prompt and completion pricing.
var openAIModelPricing = map[string]float64{
	"gpt-4o":        0.0000075,
	"gpt-4o-mini":   0.00000045,
	"gpt-4-turbo":   0.00002,
	"gpt-3.5-turbo": 0.000001,
}

// OpenAIAdapter talks to an OpenAI-compatible chat completions backend.
// It requires an API key and estimates prompt tokens with the
// four-characters-per-token heuristic when the backend omits usage.
type OpenAIAdapter struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
}

// NewOpenAIAdapter creates an adapter from resolved configuration.
func NewOpenAIAdapter(cfg Config) (*OpenAIAdapter, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &OpenAIAdapter{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  cfg.Credential,
		client:  client,
	}, nil
}

// Name returns "openai".
func (a *OpenAIAdapter) Name() string { return "openai" }

// Init validates the adapter configuration.
func (a *OpenAIAdapter) Init(_ context.Context) error {
	if a.apiKey == "" {
		return &AuthError{Provider: a.Name(), Message: "api key is required"}
	}
	return nil
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []Message       `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
	Tools       []openAITool    `json:"tools,omitempty"`
}

type openAITool struct {
	Type     string  `json:"type"`
	Function ToolDef `json:"function"`
}

type openAIChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (a *OpenAIAdapter) chatBody(req CompletionRequest, stream bool) openAIChatRequest {
	messages := req.Messages
	if req.System != "" {
		messages = append([]Message{{Role: RoleSystem, Content: req.System}}, messages...)
	}

	body := openAIChatRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	for _, tool := range req.Tools {
		body.Tools = append(body.Tools, openAITool{Type: "function", Function: tool})
	}
	return body
}

func (a *OpenAIAdapter) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	return req, nil
}

func (a *OpenAIAdapter) do(req *http.Request) (*http.Response, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &TransientError{Provider: a.Name(), Message: "request failed", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		message := readErrorMessage(resp.Body)
		return nil, classifyStatus(a.Name(), resp.StatusCode, message)
	}
	return resp, nil
}

// readErrorMessage extracts the backend error message from a non-2xx
// body, falling back to the raw text.
func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4<<10))
	if err != nil || len(raw) == 0 {
		return "no response body"
	}
	var apiErr openAIErrorResponse
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return strings.TrimSpace(string(raw))
}

// Complete performs a blocking chat completion call.
func (a *OpenAIAdapter) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	httpReq, err := a.newRequest(ctx, http.MethodPost, "/chat/completions", a.chatBody(req, false))
	if err != nil {
		return CompletionResponse{}, err
	}

	resp, err := a.do(httpReq)
	if err != nil {
		return CompletionResponse{}, err
	}
	defer resp.Body.Close()

	var decoded openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return CompletionResponse{}, &TransientError{Provider: a.Name(), Message: "malformed response body", Cause: err}
	}
	if len(decoded.Choices) == 0 {
		return CompletionResponse{}, &TransientError{Provider: a.Name(), Message: "response contained no choices"}
	}

	out := CompletionResponse{
		Content:  decoded.Choices[0].Message.Content,
		Model:    decoded.Model,
		Provider: a.Name(),
	}
	if out.Model == "" {
		out.Model = req.Model
	}

	if decoded.Usage != nil {
		out.Usage = *decoded.Usage
	} else {
		out.Usage.PromptTokens = estimateRequestTokens(req, 4)
		out.Usage.CompletionTokens = estimateTokensByChars(out.Content)
		out.Usage.TotalTokens = out.Usage.PromptTokens + out.Usage.CompletionTokens
	}

	cost := a.EstimateCost(out.Usage.TotalTokens, out.Model)
	out.Cost = &cost

	return out, nil
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

// StreamComplete performs a streaming chat completion call. Connection
// errors are returned directly; mid-stream errors arrive on the final
// chunk. The channel closes when the stream ends for any reason.
func (a *OpenAIAdapter) StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	httpReq, err := a.newRequest(ctx, http.MethodPost, "/chat/completions", a.chatBody(req, true))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := a.do(httpReq)
	if err != nil {
		return nil, err
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				return
			}

			var chunk openAIStreamChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				sendChunk(ctx, out, StreamChunk{Err: &TransientError{
					Provider: a.Name(), Message: "malformed stream chunk", Cause: err,
				}})
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}

			sc := StreamChunk{
				Content:      chunk.Choices[0].Delta.Content,
				FinishReason: chunk.Choices[0].FinishReason,
				Usage:        chunk.Usage,
			}
			if !sendChunk(ctx, out, sc) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			sendChunk(ctx, out, StreamChunk{Err: &TransientError{
				Provider: a.Name(), Message: "stream read failed", Cause: err,
			}})
		}
	}()

	return out, nil
}

// sendChunk delivers a chunk unless the consumer has gone away.
func sendChunk(ctx context.Context, out chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

type openAIModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ListModels fetches the backend model catalog.
func (a *OpenAIAdapter) ListModels(ctx context.Context) ([]ModelInfo, error) {
	httpReq, err := a.newRequest(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded openAIModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &TransientError{Provider: a.Name(), Message: "malformed response body", Cause: err}
	}

	models := make([]ModelInfo, 0, len(decoded.Data))
	for _, m := range decoded.Data {
		info := ModelInfo{
			Name:          m.ID,
			Provider:      a.Name(),
			ContextWindow: openAIContextWindow(m.ID),
			Capabilities:  []Capability{CapabilityChat, CapabilityCompletion, CapabilityFunctionCalling},
		}
		if cost, ok := openAIModelPricing[pricingFamily(m.ID)]; ok {
			c := cost
			info.CostPerToken = &c
		}
		models = append(models, info)
	}
	return models, nil
}

func openAIContextWindow(model string) int {
	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "gpt-4-turbo"):
		return 128000
	case strings.HasPrefix(model, "gpt-4"):
		return 8192
	case strings.HasPrefix(model, "gpt-3.5"):
		return 16385
	default:
		return 8192
	}
}

// pricingFamily strips version suffixes so dated snapshots share their
// family's pricing row.
func pricingFamily(model string) string {
	// Longest match wins so gpt-4o-mini snapshots do not land on gpt-4o.
	best := ""
	for family := range openAIModelPricing {
		if (model == family || strings.HasPrefix(model, family+"-")) && len(family) > len(best) {
			best = family
		}
	}
	if best == "" {
		return model
	}
	return best
}

// HealthCheck probes the models endpoint and reports latency.
func (a *OpenAIAdapter) HealthCheck(ctx context.Context) HealthStatus {
	start := time.Now()
	_, err := a.ListModels(ctx)
	latency := time.Since(start)

	if err != nil {
		return HealthStatus{Healthy: false, Latency: latency, Err: err}
	}
	return HealthStatus{Healthy: true, Latency: latency}
}

// EstimateCost returns the approximate cost in USD for a token count.
func (a *OpenAIAdapter) EstimateCost(tokens int, model string) float64 {
	cost, ok := openAIModelPricing[pricingFamily(model)]
	if !ok {
		return 0
	}
	return cost * float64(tokens)
}

var _ Adapter = (*OpenAIAdapter)(nil)

func init() {
	Register("openai", func(cfg Config) (Adapter, error) {
		return NewOpenAIAdapter(cfg)
	})
}
