package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider generates text and embeddings through the Google
// Generative AI API. Requires an API key.
type GeminiProvider struct {
	client     *genai.Client
	chatModel  string
	embedModel string
	opts       Options
}

// NewGeminiProvider dials the Generative AI API with the given key.
func NewGeminiProvider(ctx context.Context, apiKey, chatModel, embedModel string, opts Options) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiProvider{
		client:     client,
		chatModel:  chatModel,
		embedModel: embedModel,
		opts:       opts,
	}, nil
}

// Generate runs the conversation through a chat session. System turns are
// collapsed into the model's system instruction; assistant turns map to the
// API's "model" role.
func (p *GeminiProvider) Generate(ctx context.Context, turns []Turn) (string, error) {
	model := p.client.GenerativeModel(p.chatModel)
	model.SetTemperature(p.opts.Temperature)
	if p.opts.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(p.opts.MaxTokens))
	}

	var sys []string
	var history []*genai.Content
	for _, t := range turns {
		switch t.Role {
		case RoleSystem:
			sys = append(sys, t.Content)
		case RoleAssistant:
			history = append(history, &genai.Content{
				Role:  "model",
				Parts: []genai.Part{genai.Text(t.Content)},
			})
		default:
			history = append(history, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(t.Content)},
			})
		}
	}
	if len(sys) > 0 {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(strings.Join(sys, "\n\n"))},
		}
	}
	if len(history) == 0 {
		return "", fmt.Errorf("gemini: no user content to send")
	}

	last := history[len(history)-1]
	session := model.StartChat()
	session.History = history[:len(history)-1]

	resp, err := session.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return collectText(resp), nil
}

func collectText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return sb.String()
}

// Embed computes one embedding per text through the embedding model.
func (p *GeminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	em := p.client.EmbeddingModel(p.embedModel)
	embeddings := make([][]float32, 0, len(texts))
	for _, text := range texts {
		res, err := em.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, fmt.Errorf("gemini embed: %w", err)
		}
		if res.Embedding == nil {
			return nil, fmt.Errorf("gemini embed: empty embedding in response")
		}
		embeddings = append(embeddings, res.Embedding.Values)
	}
	return embeddings, nil
}

// ModelID identifies the embedding model for collection introspection.
func (p *GeminiProvider) ModelID() string { return p.embedModel }

// ModelInfo returns static metadata for this provider/model.
func (p *GeminiProvider) ModelInfo() ModelMeta {
	return ModelMeta{
		ID:           p.chatModel,
		Provider:     "gemini",
		Kind:         "hosted",
		Capabilities: []Capability{CapabilityGenerate, CapabilityModelInfo},
	}
}

// Close releases the underlying API client.
func (p *GeminiProvider) Close() error { return p.client.Close() }
