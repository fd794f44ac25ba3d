package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultGroqBaseURL is Groq's OpenAI-compatible endpoint.
const DefaultGroqBaseURL = "https://api.groq.com/openai/v1/"

// OpenAIEngine talks to any OpenAI-compatible chat completions API using the
// official openai-go client. Groq is the default target.
type OpenAIEngine struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewOpenAIEngine creates an OpenAIEngine. An empty APIKey yields ErrMissingAPIKey.
func NewOpenAIEngine(s Settings) (*OpenAIEngine, error) {
	if s.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	baseURL := s.BaseURL
	if baseURL == "" {
		baseURL = DefaultGroqBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(s.APIKey),
		option.WithBaseURL(baseURL),
	}
	if s.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(s.MaxRetries))
	}

	return &OpenAIEngine{
		client:      openai.NewClient(opts...),
		model:       s.Model,
		temperature: s.Temperature,
		maxTokens:   s.MaxTokens,
	}, nil
}

func (e *OpenAIEngine) Model() string { return e.model }

func (e *OpenAIEngine) Chat(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       e.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: openai.Float(e.temperature),
	}
	if e.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(e.maxTokens))
	}

	resp, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
