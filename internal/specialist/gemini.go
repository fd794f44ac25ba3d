package specialist

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// ErrMissingAPIKey is returned by NewGemini without a credential.
var ErrMissingAPIKey = errors.New("missing Gemini API key")

// GeminiConfig configures the Gemini answerer.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string // optional endpoint override
}

// Gemini answers prompts with the Google Gen AI SDK.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini builds a Gemini answerer.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Answer sends prompt as a single user turn and returns the response text.
func (g *Gemini) Answer(ctx context.Context, prompt string) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if result == nil {
		return "", errors.New("gemini generate: empty response")
	}
	text := result.Text()
	if text == "" {
		return "", errors.New("gemini generate: no text in response")
	}
	return text, nil
}

// NewAdapter builds an Adapter backed by Gemini. When the credential is
// missing or the client cannot be created the adapter is returned
// unavailable and the cause is logged by the caller through the error.
func NewAdapter(ctx context.Context, cfg GeminiConfig, opts ...Option) (*Adapter, error) {
	g, err := NewGemini(ctx, cfg)
	if err != nil {
		return New(nil, opts...), err
	}
	return New(g, opts...), nil
}
