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

const ollamaDefaultBaseURL = "http://localhost:11434"

// OllamaAdapter talks to a local Ollama instance. No authentication,
// zero cost, and prompt tokens estimated via a per-model ratio table
// when the backend omits counts.
type OllamaAdapter struct {
	baseURL string
	client  HTTPDoer
}

// NewOllamaAdapter creates an adapter from resolved configuration.
func NewOllamaAdapter(cfg Config) (*OllamaAdapter, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = ollamaDefaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &OllamaAdapter{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}, nil
}

// Name returns "ollama".
func (a *OllamaAdapter) Name() string { return "ollama" }

// Init is a no-op; a local backend needs no credential validation.
func (a *OllamaAdapter) Init(_ context.Context) error { return nil }

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model   string `json:"model"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (a *OllamaAdapter) chatBody(req CompletionRequest, stream bool) ollamaChatRequest {
	messages := req.Messages
	if req.System != "" {
		messages = append([]Message{{Role: RoleSystem, Content: req.System}}, messages...)
	}

	body := ollamaChatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   stream,
	}
	options := make(map[string]any)
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		options["num_predict"] = *req.MaxTokens
	}
	if len(options) > 0 {
		body.Options = options
	}
	return body
}

func (a *OllamaAdapter) post(ctx context.Context, path string, body any) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return a.do(req)
}

func (a *OllamaAdapter) do(req *http.Request) (*http.Response, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &TransientError{Provider: a.Name(), Message: "request failed", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, classifyStatus(a.Name(), resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return resp, nil
}

// usage fills missing token counts from the ratio table.
func (a *OllamaAdapter) usage(req CompletionRequest, resp ollamaChatResponse) Usage {
	u := Usage{
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
	}
	ratio := ratioForModel(req.Model)
	if u.PromptTokens == 0 {
		u.PromptTokens = estimateRequestTokens(req, ratio)
	}
	if u.CompletionTokens == 0 && resp.Message.Content != "" {
		n := int(float64(len(resp.Message.Content)) / ratio)
		if n == 0 {
			n = 1
		}
		u.CompletionTokens = n
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return u
}

// Complete performs a blocking chat call against /api/chat.
func (a *OllamaAdapter) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	resp, err := a.post(ctx, "/api/chat", a.chatBody(req, false))
	if err != nil {
		return CompletionResponse{}, err
	}
	defer resp.Body.Close()

	var decoded ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return CompletionResponse{}, &TransientError{Provider: a.Name(), Message: "malformed response body", Cause: err}
	}

	out := CompletionResponse{
		Content:  decoded.Message.Content,
		Model:    decoded.Model,
		Provider: a.Name(),
		Usage:    a.usage(req, decoded),
	}
	if out.Model == "" {
		out.Model = req.Model
	}

	cost := 0.0
	out.Cost = &cost

	return out, nil
}

// StreamComplete performs a streaming chat call. Ollama streams
// newline-delimited JSON objects; the final object has done set and
// carries the token counts.
func (a *OllamaAdapter) StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	resp, err := a.post(ctx, "/api/chat", a.chatBody(req, true))
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
			if line == "" {
				continue
			}

			var chunk ollamaChatResponse
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				sendChunk(ctx, out, StreamChunk{Err: &TransientError{
					Provider: a.Name(), Message: "malformed stream chunk", Cause: err,
				}})
				return
			}

			sc := StreamChunk{Content: chunk.Message.Content}
			if chunk.Done {
				usage := a.usage(req, chunk)
				sc.Usage = &usage
				sc.FinishReason = chunk.DoneReason
				if sc.FinishReason == "" {
					sc.FinishReason = "stop"
				}
			}
			if !sendChunk(ctx, out, sc) {
				return
			}
			if chunk.Done {
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

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels fetches the locally installed model list from /api/tags.
func (a *OllamaAdapter) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &TransientError{Provider: a.Name(), Message: "malformed response body", Cause: err}
	}

	models := make([]ModelInfo, 0, len(decoded.Models))
	for _, m := range decoded.Models {
		models = append(models, ModelInfo{
			Name:          m.Name,
			Provider:      a.Name(),
			ContextWindow: ollamaContextWindow(m.Name),
			Capabilities:  []Capability{CapabilityChat, CapabilityCompletion},
		})
	}
	return models, nil
}

func ollamaContextWindow(model string) int {
	switch {
	case strings.HasPrefix(model, "llama3"):
		return 8192
	case strings.HasPrefix(model, "mistral"):
		return 32768
	case strings.HasPrefix(model, "codellama"):
		return 16384
	default:
		return 4096
	}
}

// HealthCheck probes /api/tags and reports latency.
func (a *OllamaAdapter) HealthCheck(ctx context.Context) HealthStatus {
	start := time.Now()
	_, err := a.ListModels(ctx)
	latency := time.Since(start)

	if err != nil {
		return HealthStatus{Healthy: false, Latency: latency, Err: err}
	}
	return HealthStatus{Healthy: true, Latency: latency}
}

// EstimateCost always returns zero; local inference is free.
func (a *OllamaAdapter) EstimateCost(int, string) float64 { return 0 }

var _ Adapter = (*OllamaAdapter)(nil)

func init() {
	Register("ollama", func(cfg Config) (Adapter, error) {
		return NewOllamaAdapter(cfg)
	})
}
