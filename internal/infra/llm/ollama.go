package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	mimeJSON          = "application/json"
	headerContentType = "Content-Type"
)

// OllamaProvider runs generation and embedding against a locally hosted
// Ollama instance over its REST API. No API key is required. Endpoints used:
//   - POST /api/chat        — non-streaming chat completion
//   - POST /api/embeddings  — single text embedding
//   - GET  /api/tags        — health check
type OllamaProvider struct {
	baseURL    string
	chatModel  string
	embedModel string
	opts       Options
	httpClient *http.Client
}

// NewOllamaProvider creates an OllamaProvider with a 60s default timeout.
// Local models can be slow on first token; the per-request context still
// bounds individual calls.
func NewOllamaProvider(baseURL, chatModel, embedModel string, opts Options) *OllamaProvider {
	return &OllamaProvider{
		baseURL:    baseURL,
		chatModel:  chatModel,
		embedModel: embedModel,
		opts:       opts,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message    ollamaChatMessage `json:"message"`
	DoneReason string            `json:"done_reason"`
	Done       bool              `json:"done"`
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Generate performs a non-streaming chat via POST /api/chat.
func (p *OllamaProvider) Generate(ctx context.Context, turns []Turn) (string, error) {
	msgs := make([]ollamaChatMessage, len(turns))
	for i, t := range turns {
		msgs[i] = ollamaChatMessage{Role: string(t.Role), Content: t.Content}
	}

	body, err := json.Marshal(ollamaChatRequest{
		Model:    p.chatModel,
		Messages: msgs,
		Stream:   false,
		Options:  p.chatOptions(),
	})
	if err != nil {
		return "", err
	}

	respBody, postErr := p.doPost(ctx, "/api/chat", body)
	if postErr != nil {
		return "", postErr
	}
	defer respBody.Close()

	var resp ollamaChatResponse
	if decodeErr := json.NewDecoder(respBody).Decode(&resp); decodeErr != nil {
		return "", fmt.Errorf("decode chat response: %w", decodeErr)
	}
	return resp.Message.Content, nil
}

func (p *OllamaProvider) chatOptions() map[string]any {
	opts := map[string]any{}
	if p.opts.Temperature != 0 {
		opts["temperature"] = p.opts.Temperature
	}
	if p.opts.MaxTokens != 0 {
		opts["num_predict"] = p.opts.MaxTokens
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

// Embed computes embeddings via POST /api/embeddings, one call per text —
// Ollama does not support batch embeddings in a single request.
func (p *OllamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := p.embedOne(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("ollama embed: %w", err)
		}
		embeddings = append(embeddings, vec)
	}
	return embeddings, nil
}

func (p *OllamaProvider) embedOne(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: p.embedModel, Prompt: text})
	if err != nil {
		return nil, err
	}

	respBody, postErr := p.doPost(ctx, "/api/embeddings", body)
	if postErr != nil {
		return nil, postErr
	}
	defer respBody.Close()

	var resp ollamaEmbedResponse
	if decodeErr := json.NewDecoder(respBody).Decode(&resp); decodeErr != nil {
		return nil, fmt.Errorf("decode embed response: %w", decodeErr)
	}
	return resp.Embedding, nil
}

// ModelID identifies the embedding model for collection introspection.
func (p *OllamaProvider) ModelID() string { return p.embedModel }

// ModelInfo returns static metadata for this provider/model.
func (p *OllamaProvider) ModelInfo() ModelMeta {
	return ModelMeta{
		ID:           p.chatModel,
		Provider:     "ollama",
		Kind:         "local",
		Capabilities: []Capability{CapabilityGenerate, CapabilityModelInfo},
	}
}

// HealthCheck calls GET /api/tags; nil means Ollama is reachable.
func (p *OllamaProvider) HealthCheck(ctx context.Context) error {
	url := p.baseURL + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("ollama healthcheck: build request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama healthcheck: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama healthcheck: status %d", resp.StatusCode)
	}
	return nil
}

// doPost sends a POST to baseURL+path; the caller closes the returned body.
func (p *OllamaProvider) doPost(ctx context.Context, path string, body []byte) (io.ReadCloser, error) {
	url := p.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama post %s: build request: %w", path, err)
	}
	req.Header.Set(headerContentType, mimeJSON)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama post %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close() //nolint:errcheck
		return nil, fmt.Errorf("ollama post %s: status %d", path, resp.StatusCode)
	}
	return resp.Body, nil
}
