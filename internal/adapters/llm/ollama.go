// Package llm provides language model adapters implementing ports.Generator.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// Defaults shared by the generator adapters.
const (
	DefaultMaxTokens = 700
	DefaultTimeout   = 120 * time.Second

	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.2"
)

// OllamaGenerator implements ports.Generator using the Ollama chat API.
type OllamaGenerator struct {
	client    *api.Client
	model     string
	maxTokens int
}

// NewOllamaGenerator creates an Ollama generator.
func NewOllamaGenerator(baseURL, model string, maxTokens int, timeout time.Duration) (*OllamaGenerator, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if model == "" {
		model = defaultOllamaModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing ollama url: %w", err)
	}

	return &OllamaGenerator{
		client:    api.NewClient(base, &http.Client{Timeout: timeout}),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Name identifies the provider and model.
func (g *OllamaGenerator) Name() string {
	return "ollama/" + g.model
}

// Generate sends one non-streaming chat turn and returns the reply.
func (g *OllamaGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model: g.model,
		Messages: []api.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream:  &stream,
		Options: map[string]any{"num_predict": g.maxTokens},
	}

	var sb strings.Builder
	err := g.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("calling ollama: %w", err)
	}

	return sb.String(), nil
}
