package engine

import (
	"context"

	"github.com/kalambet/mavkus/internal/ollama"
)

// OllamaEngine adapts the internal/ollama.Client to the Engine interface.
type OllamaEngine struct {
	client *ollama.Client
	model  string
}

// NewOllamaEngine creates an OllamaEngine from s. BaseURL defaults to the
// local server; Temperature and MaxTokens are sent as model options.
func NewOllamaEngine(s Settings) *OllamaEngine {
	baseURL := s.BaseURL
	if baseURL == "" {
		baseURL = ollama.DefaultBaseURL
	}
	client := ollama.New(baseURL).WithOptions(ollama.Options{
		Temperature: s.Temperature,
		NumPredict:  s.MaxTokens,
	})
	return &OllamaEngine{client: client, model: s.Model}
}

// Client exposes the underlying Ollama client for readiness checks.
func (e *OllamaEngine) Client() *ollama.Client { return e.client }

func (e *OllamaEngine) Model() string { return e.model }

func (e *OllamaEngine) Chat(ctx context.Context, messages []Message) (string, error) {
	msgs := make([]ollama.Message, len(messages))
	for i, m := range messages {
		msgs[i] = ollama.Message{Role: m.Role, Content: m.Content}
	}
	return e.client.Chat(ctx, e.model, msgs)
}
