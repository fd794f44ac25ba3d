// Package ollama talks to a local Ollama server. It is the generalist backend
// when no hosted provider is configured.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// DefaultBaseURL is where a local Ollama server listens by default.
const DefaultBaseURL = "http://localhost:11434"

// Message is a chat message in the Ollama wire format.
type Message = api.Message

// Options are sampling parameters sent with every chat request. Zero values
// are left out so the model defaults apply.
type Options struct {
	Temperature float64
	NumPredict  int
}

func (o Options) asMap() map[string]any {
	m := map[string]any{}
	if o.Temperature != 0 {
		m["temperature"] = o.Temperature
	}
	if o.NumPredict != 0 {
		m["num_predict"] = o.NumPredict
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// PullProgress is one progress update of a model download.
type PullProgress = api.ProgressResponse

// ErrEmptyResponse is returned when the server closes a chat without a reply.
var ErrEmptyResponse = errors.New("ollama returned no response")

// Client is a thin wrapper over the official Ollama API client.
type Client struct {
	api     *api.Client
	options Options
}

// New creates a Client for the server at baseURL.
func New(baseURL string) *Client {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Host == "" {
		u, _ = url.Parse(DefaultBaseURL)
	}
	return &Client{api: api.NewClient(u, &http.Client{})}
}

// WithOptions returns a copy of c that sends opts with every chat request.
func (c *Client) WithOptions(opts Options) *Client {
	cp := *c
	cp.options = opts
	return &cp
}

// IsRunning reports whether the server answers a heartbeat within 2s.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.api.Heartbeat(ctx) == nil
}

// ListModels returns the names of the locally available models.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := c.api.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	names := make([]string, len(resp.Models))
	for i, m := range resp.Models {
		names[i] = m.Name
	}
	return names, nil
}

// HasModel reports whether name is available locally. A bare name matches
// any tag, so "llama3.2" matches "llama3.2:latest".
func (c *Client) HasModel(ctx context.Context, name string) bool {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false
	}
	for _, m := range models {
		if m == name || strings.HasPrefix(m, name+":") {
			return true
		}
	}
	return false
}

// PullModel downloads name. onProgress may be nil.
func (c *Client) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	err := c.api.Pull(ctx, &api.PullRequest{Model: name}, func(p api.ProgressResponse) error {
		if onProgress != nil {
			onProgress(p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pulling model %s: %w", name, err)
	}
	return nil
}

// Chat sends messages to model and returns the assistant reply.
func (c *Client) Chat(ctx context.Context, model string, messages []Message) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
		Options:  c.options.asMap(),
	}

	var (
		reply    strings.Builder
		received bool
	)
	err := c.api.Chat(ctx, req, func(resp api.ChatResponse) error {
		received = true
		reply.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("chat with %s: %w", model, err)
	}
	if !received {
		return "", ErrEmptyResponse
	}
	return reply.String(), nil
}
