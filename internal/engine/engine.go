package engine

import (
	"context"
	"errors"
	"fmt"
)

// Engine abstracts a text-generation backend (Groq or any OpenAI-compatible
// API, or a local Ollama server). The orchestrator and the critic depend on
// this interface instead of a concrete client.
type Engine interface {
	// Chat sends the message list to the model and returns the assistant's reply.
	Chat(ctx context.Context, messages []Message) (string, error)

	// Model returns the model identifier the engine sends requests to.
	Model() string
}

// Providers accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderOllama = "ollama"
)

// ErrMissingAPIKey is returned when a hosted provider is selected without a key.
var ErrMissingAPIKey = errors.New("missing API key")

// Settings configures a single engine instance.
type Settings struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	MaxRetries  int
}

// New builds the engine described by s.
func New(s Settings) (Engine, error) {
	switch s.Provider {
	case "", ProviderGroq, ProviderOpenAI:
		e, err := NewOpenAIEngine(s)
		if err != nil {
			return nil, err
		}
		return e, nil
	case ProviderOllama:
		return NewOllamaEngine(s), nil
	default:
		return nil, fmt.Errorf("unknown engine provider %q", s.Provider)
	}
}
